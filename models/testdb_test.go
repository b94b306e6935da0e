package models

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/abdoul9859/techplus/config"
	"github.com/shopspring/decimal"
)

// setupTestDB points the global connection at a fresh in-memory sqlite
// database named after the test, then migrates the schema.
func setupTestDB(t *testing.T) {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "file:"+name+"?mode=memory&cache=shared")
	if err := config.ConnectDatabase(); err != nil {
		t.Fatalf("connect database: %v", err)
	}
	if err := MigrateTable(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	InvoiceListCache.Clear()
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func mustCreateClient(t *testing.T, name string) *Client {
	t.Helper()
	client, err := CreateClient(context.Background(), &NewClient{Name: name})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return client
}

// mustCreateProduct creates a plain product, or a serial-tracked one when
// imeis are given.
func mustCreateProduct(t *testing.T, name string, quantity int, imeis ...string) *Product {
	t.Helper()
	input := NewProduct{
		Name:     name,
		Quantity: quantity,
		Price:    dec("100000"),
	}
	for _, imei := range imeis {
		input.Variants = append(input.Variants, NewProductVariant{ImeiSerial: imei})
	}
	product, err := CreateProduct(context.Background(), &input)
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func mustGetProduct(t *testing.T, id int) *Product {
	t.Helper()
	product, err := GetProductById(context.Background(), id)
	if err != nil {
		t.Fatalf("get product %d: %v", id, err)
	}
	return product
}

func variantByImei(t *testing.T, product *Product, imei string) *ProductVariant {
	t.Helper()
	for i := range product.Variants {
		if product.Variants[i].ImeiSerial == imei {
			return &product.Variants[i]
		}
	}
	t.Fatalf("variant %s not found on product %d", imei, product.ID)
	return nil
}

func invoiceInput(clientId int, total string, items ...NewInvoiceItem) *NewInvoice {
	return &NewInvoice{
		ClientId: clientId,
		Date:     time.Now(),
		Subtotal: dec(total),
		Total:    dec(total),
		Items:    items,
	}
}

func countMovements(t *testing.T, productId int, movementType MovementType, refType ReferenceType) int64 {
	t.Helper()
	var count int64
	err := config.GetDB().Model(&StockMovement{}).
		Where("product_id = ? AND movement_type = ? AND reference_type = ?", productId, movementType, refType).
		Count(&count).Error
	if err != nil {
		t.Fatalf("count movements: %v", err)
	}
	return count
}
