package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abdoul9859/techplus/config"
	"github.com/abdoul9859/techplus/models"
	"github.com/gin-gonic/gin"
)

func setupHandlerDB(t *testing.T) {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "file:"+name+"?mode=memory&cache=shared")
	if err := config.ConnectDatabase(); err != nil {
		t.Fatalf("connect database: %v", err)
	}
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	models.InvoiceListCache.Clear()
}

func postJSON(t *testing.T, router *gin.Engine, path, payload string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodPost, path, strings.NewReader(payload))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

// Write endpoints answer 200 on success, never 201.
func TestWriteEndpointsReturnOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	setupHandlerDB(t)

	router := gin.New()
	router.POST("/api/invoices", createInvoiceHandler())
	router.POST("/api/invoices/:id/payments", addInvoicePaymentHandler())
	router.POST("/api/invoices/:id/delivery-note", createDeliveryNoteFromInvoiceHandler())
	router.POST("/api/products", createProductHandler())

	w := postJSON(t, router, "/api/products", `{"name":"Clavier","quantity":3,"price":15000}`)
	if w.Code != http.StatusOK {
		t.Fatalf("create product: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	client, err := models.CreateClient(context.Background(), &models.NewClient{Name: "Client"})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	payload := fmt.Sprintf(`{"client_id":%d,"date":"2026-09-01T00:00:00Z","subtotal":1000,"total":1000}`, client.ID)
	w = postJSON(t, router, "/api/invoices", payload)
	if w.Code != http.StatusOK {
		t.Fatalf("create invoice: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var invoice models.Invoice
	if err := json.Unmarshal(w.Body.Bytes(), &invoice); err != nil {
		t.Fatalf("decode invoice: %v", err)
	}

	w = postJSON(t, router, fmt.Sprintf("/api/invoices/%d/payments", invoice.ID), `{"amount":400}`)
	if w.Code != http.StatusOK {
		t.Fatalf("add payment: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = postJSON(t, router, fmt.Sprintf("/api/invoices/%d/delivery-note", invoice.ID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("create delivery note: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}
