package models

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/abdoul9859/techplus/config"
)

func TestCreateDeliveryNoteFromInvoice(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	client, err := CreateClient(ctx, &NewClient{
		Name:    "Moussa Diop",
		Address: "Rue 12, Dakar",
		Phone:   "+221771234567",
	})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	product := mustCreateProduct(t, "iPhone 14", 0, "IMEI-A")
	variant := variantByImei(t, product, "IMEI-A")

	input := invoiceInput(client.ID, "450000", NewInvoiceItem{
		ProductId: &product.ID,
		Quantity:  1,
		Price:     dec("450000"),
		Total:     dec("450000"),
		VariantId: &variant.ID,
	}, NewInvoiceItem{
		ProductName: "Installation",
		Quantity:    1,
		Price:       dec("0"),
		Total:       dec("0"),
	})
	input.Notes = "Merci\n__SIGNATURE__=data:image/png;base64,QUJD"
	invoice, err := CreateInvoice(ctx, input)
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	note, err := CreateDeliveryNoteFromInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("create delivery note: %v", err)
	}

	wantPrefix := time.Now().Format("BL-20060102-")
	if !strings.HasPrefix(note.DeliveryNoteNumber, wantPrefix) {
		t.Fatalf("unexpected number %q", note.DeliveryNoteNumber)
	}
	if note.Status != DeliveryNoteStatusPreparing {
		t.Fatalf("unexpected status %q", note.Status)
	}
	if note.DeliveryAddress != "Rue 12, Dakar" || note.DeliveryContact != "Moussa Diop" {
		t.Fatalf("client address book not copied: %+v", note)
	}
	if note.SignatureDataUrl != "data:image/png;base64,QUJD" {
		t.Fatalf("signature not extracted: %q", note.SignatureDataUrl)
	}
	if !note.Total.Equal(invoice.Total) {
		t.Fatalf("amounts must mirror the invoice, got %s", note.Total)
	}

	if len(note.Items) != 2 {
		t.Fatalf("all lines are copied, got %d", len(note.Items))
	}
	var serialLine *DeliveryNoteItem
	for i := range note.Items {
		if note.Items[i].ProductId != nil {
			serialLine = &note.Items[i]
		}
	}
	if serialLine == nil || serialLine.SerialNumbers == nil || !strings.Contains(*serialLine.SerialNumbers, "IMEI-A") {
		t.Fatalf("serials must be attached to the product line: %+v", serialLine)
	}

	second, err := CreateDeliveryNoteFromInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("second note: %v", err)
	}
	if second.DeliveryNoteNumber != wantPrefix+"0002" {
		t.Fatalf("daily sequence must increment, got %q", second.DeliveryNoteNumber)
	}
}

func TestDeleteInvoiceCascadesDeliveryNotes(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	client := mustCreateClient(t, "Client")
	invoice, err := CreateInvoice(ctx, invoiceInput(client.ID, "1000"))
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if _, err := CreateDeliveryNoteFromInvoice(ctx, invoice.ID); err != nil {
		t.Fatalf("create note: %v", err)
	}

	if err := DeleteInvoice(ctx, invoice.ID); err != nil {
		t.Fatalf("delete invoice: %v", err)
	}

	var notes, items int64
	config.GetDB().Model(&DeliveryNote{}).Count(&notes)
	config.GetDB().Model(&DeliveryNoteItem{}).Count(&items)
	if notes != 0 || items != 0 {
		t.Fatalf("delivery notes must be cascaded, notes=%d items=%d", notes, items)
	}
}

func TestUpdateDeliveryNoteStatus(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	client := mustCreateClient(t, "Client")
	invoice, err := CreateInvoice(ctx, invoiceInput(client.ID, "1000"))
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	note, err := CreateDeliveryNoteFromInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("create note: %v", err)
	}

	if err := UpdateDeliveryNoteStatus(ctx, note.ID, DeliveryNoteStatusShipped); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := UpdateDeliveryNoteStatus(ctx, note.ID, "perdu"); err == nil {
		t.Fatal("unknown status must be rejected")
	}
}
