package models

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/abdoul9859/techplus/config"
	"github.com/abdoul9859/techplus/utils"
)

func TestCreateQuotationGeneratesNumber(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	client := mustCreateClient(t, "Client")
	product := mustCreateProduct(t, "Imprimante", 4)

	quotation, err := CreateQuotation(ctx, &NewQuotation{
		ClientId: client.ID,
		Date:     time.Now(),
		Subtotal: dec("60000"),
		Total:    dec("60000"),
		Items: []NewQuotationItem{
			{ProductId: &product.ID, Quantity: 2, Price: dec("30000"), Total: dec("60000")},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if quotation.QuotationNumber != "DEV-0001" {
		t.Fatalf("expected DEV-0001, got %s", quotation.QuotationNumber)
	}
	if quotation.Status != QuotationStatusDraft {
		t.Fatalf("expected draft status, got %q", quotation.Status)
	}
	if quotation.Items[0].ProductName != "Imprimante" {
		t.Fatalf("product name must be snapshotted, got %q", quotation.Items[0].ProductName)
	}

	// Quotations never move stock.
	if mustGetProduct(t, product.ID).Quantity != 4 {
		t.Fatal("quotation must not touch stock")
	}

	if err := UpdateQuotationStatus(ctx, quotation.ID, QuotationStatusAccepted); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := UpdateQuotationStatus(ctx, quotation.ID, "inconnu"); !errors.Is(err, utils.ErrorInvalidState) {
		t.Fatalf("unknown status must be rejected, got %v", err)
	}
}

func TestCreateQuotationDuplicateNumber(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	client := mustCreateClient(t, "Client")

	input := &NewQuotation{
		QuotationNumber: "DEV-0042",
		ClientId:        client.ID,
		Date:            time.Now(),
		Total:           dec("1000"),
	}
	if _, err := CreateQuotation(ctx, input); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := CreateQuotation(ctx, input); !errors.Is(err, utils.ErrorConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestDeleteQuotationRemovesItems(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	client := mustCreateClient(t, "Client")

	quotation, err := CreateQuotation(ctx, &NewQuotation{
		ClientId: client.ID,
		Date:     time.Now(),
		Total:    dec("500"),
		Items:    []NewQuotationItem{{ProductName: "Forfait", Quantity: 1, Price: dec("500"), Total: dec("500")}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := DeleteQuotation(ctx, quotation.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var items int64
	config.GetDB().Model(&QuotationItem{}).Count(&items)
	if items != 0 {
		t.Fatalf("items must be removed, found %d", items)
	}
}
