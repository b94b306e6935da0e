package models

import (
	"context"
	"errors"
	"testing"

	"github.com/abdoul9859/techplus/utils"
)

func TestCreateProductWithVariants(t *testing.T) {
	setupTestDB(t)

	product := mustCreateProduct(t, "iPhone 13", 0, "IMEI-A", "IMEI-B")
	if product.Quantity != 2 {
		t.Fatalf("quantity must equal variant count, got %d", product.Quantity)
	}
	if !product.HasUniqueSerial {
		t.Fatal("variant products are serial-tracked")
	}
	if got := countMovements(t, product.ID, MovementIn, ReferenceCreation); got != 1 {
		t.Fatalf("expected initial stock movement, got %d", got)
	}
}

func TestCreateProductRejectsBarcodeWithVariants(t *testing.T) {
	setupTestDB(t)

	_, err := CreateProduct(context.Background(), &NewProduct{
		Name:    "Montre connectée",
		Barcode: strPtr("123456789"),
		Variants: []NewProductVariant{
			{ImeiSerial: "SN-1"},
		},
	})
	if !errors.Is(err, utils.ErrorInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestCreateProductDuplicateImei(t *testing.T) {
	setupTestDB(t)

	mustCreateProduct(t, "Pixel 8", 0, "IMEI-DUP")
	_, err := CreateProduct(context.Background(), &NewProduct{
		Name:     "Pixel 8 Pro",
		Variants: []NewProductVariant{{ImeiSerial: "IMEI-DUP"}},
	})
	if !errors.Is(err, utils.ErrorConflict) {
		t.Fatalf("expected conflict on duplicate IMEI, got %v", err)
	}
}

func TestUpdateProductFullRewriteWhenNeverInvoiced(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	product := mustCreateProduct(t, "Galaxy A54", 0, "IMEI-A", "IMEI-B")

	variants := []NewProductVariant{
		{ImeiSerial: "IMEI-A", Condition: "occasion"},
		{ImeiSerial: "IMEI-C"},
	}
	updated, err := UpdateProduct(ctx, product.ID, &UpdateProductInput{
		Name:     strPtr("Galaxy A54 5G"),
		Variants: &variants,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.Name != "Galaxy A54 5G" {
		t.Fatalf("scalar update must apply, got %q", updated.Name)
	}
	if len(updated.Variants) != 2 {
		t.Fatalf("expected 2 variants after rewrite, got %d", len(updated.Variants))
	}
	if variantByImei(t, updated, "IMEI-A").Condition != "occasion" {
		t.Fatal("existing variant must be updated in place")
	}
	for _, v := range updated.Variants {
		if v.ImeiSerial == "IMEI-B" {
			t.Fatal("absent variant must be removed")
		}
	}
	if updated.Quantity != 2 {
		t.Fatalf("quantity must track unsold variants, got %d", updated.Quantity)
	}
}

func TestUpdateProductKeepsVariantFieldsWhenOmitted(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	product, err := CreateProduct(ctx, &NewProduct{
		Name: "Tablette",
		Variants: []NewProductVariant{
			{ImeiSerial: "SN-1", Barcode: strPtr("VB-1"), Condition: "occasion"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	variants := []NewProductVariant{{ImeiSerial: "SN-1"}}
	updated, err := UpdateProduct(ctx, product.ID, &UpdateProductInput{Variants: &variants})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	v := variantByImei(t, updated, "SN-1")
	if v.Barcode == nil || *v.Barcode != "VB-1" {
		t.Fatal("omitted barcode must keep its stored value")
	}
	if v.Condition != "occasion" {
		t.Fatalf("omitted condition must keep its stored value, got %q", v.Condition)
	}
}

func TestUpdateProductFrozenOnceInvoiced(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	client := mustCreateClient(t, "Client")
	product := mustCreateProduct(t, "Huawei P30", 0, "IMEI-A", "IMEI-B")

	if _, err := CreateInvoice(ctx, invoiceInput(client.ID, "100000", NewInvoiceItem{
		ProductId: &product.ID,
		Quantity:  1,
		Price:     dec("100000"),
		Total:     dec("100000"),
	})); err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	variants := []NewProductVariant{
		{ImeiSerial: "IMEI-A", Condition: "occasion"},
		{ImeiSerial: "IMEI-C"},
	}
	updated, err := UpdateProduct(ctx, product.ID, &UpdateProductInput{
		Name:            strPtr("Renamed"),
		Variants:        &variants,
		DeletedVariants: []int{variantByImei(t, product, "IMEI-B").ID},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.Name != "Huawei P30" {
		t.Fatalf("scalars are frozen once invoiced, got %q", updated.Name)
	}
	if variantByImei(t, updated, "IMEI-A").Condition == "occasion" {
		t.Fatal("existing variants must not be rewritten once invoiced")
	}
	variantByImei(t, updated, "IMEI-B") // still present despite deleted_variants
	variantByImei(t, updated, "IMEI-C") // additions are allowed
	if len(updated.Variants) != 3 {
		t.Fatalf("expected 3 variants, got %d", len(updated.Variants))
	}
}

func TestScanBarcode(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	plain, err := CreateProduct(ctx, &NewProduct{
		Name:     "Câble USB-C",
		Quantity: 5,
		Barcode:  strPtr("CODE-123"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	serial := mustCreateProduct(t, "AirPods Pro", 0, "SN-777")

	result, err := ScanBarcode(ctx, "CODE-123")
	if err != nil {
		t.Fatalf("scan product barcode: %v", err)
	}
	if result.Source != "product" || result.Product.ID != plain.ID {
		t.Fatalf("unexpected scan result: %+v", result)
	}

	result, err = ScanBarcode(ctx, "SN-777")
	if err != nil {
		t.Fatalf("scan serial: %v", err)
	}
	if result.Source != "variant" || result.Variant == nil || result.Product.ID != serial.ID {
		t.Fatalf("unexpected variant scan: %+v", result)
	}

	if _, err := ScanBarcode(ctx, "UNKNOWN"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteProductBlockedWhenInvoiced(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	client := mustCreateClient(t, "Client")
	product := mustCreateProduct(t, "Clavier", 3)
	if _, err := CreateInvoice(ctx, invoiceInput(client.ID, "15000", NewInvoiceItem{
		ProductId: &product.ID,
		Quantity:  1,
		Price:     dec("15000"),
		Total:     dec("15000"),
	})); err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	if err := DeleteProduct(ctx, product.ID); !errors.Is(err, utils.ErrorConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestProductConditionsSettings(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	conditions := GetProductConditions(ctx)
	if conditions.Default != "neuf" || len(conditions.Options) != 3 {
		t.Fatalf("unexpected defaults: %+v", conditions)
	}

	saved, err := SetProductConditions(ctx, ProductConditions{
		Options: []string{"neuf", "reconditionné"},
		Default: "reconditionné",
	})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if saved.Default != "reconditionné" {
		t.Fatalf("default not kept: %+v", saved)
	}

	if _, err := CreateProduct(ctx, &NewProduct{Name: "Souris", Condition: "venant"}); !errors.Is(err, utils.ErrorInvalidState) {
		t.Fatalf("condition outside the allow-list must fail, got %v", err)
	}

	if _, err := SetProductConditions(ctx, ProductConditions{}); !errors.Is(err, utils.ErrorInvalidState) {
		t.Fatalf("empty list must be rejected, got %v", err)
	}
}
