package models

import (
	"context"
	"errors"
	"testing"

	"github.com/abdoul9859/techplus/utils"
)

func TestDeleteClientBlockedByInvoices(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	client := mustCreateClient(t, "Fatou Ndiaye")
	if _, err := CreateInvoice(ctx, invoiceInput(client.ID, "1000")); err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	if err := DeleteClient(ctx, client.ID); !errors.Is(err, utils.ErrorConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	free := mustCreateClient(t, "Sans facture")
	if err := DeleteClient(ctx, free.ID); err != nil {
		t.Fatalf("delete free client: %v", err)
	}
}

func TestCreateClientInvalidPhone(t *testing.T) {
	setupTestDB(t)

	_, err := CreateClient(context.Background(), &NewClient{Name: "X", Phone: "not-a-number"})
	if !errors.Is(err, utils.ErrorInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestGetClientsSearch(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	mustCreateClient(t, "Boutique Almadies")
	mustCreateClient(t, "Garage Pikine")

	clients, total, err := GetClients(ctx, "almadies", 10, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 || len(clients) != 1 || clients[0].Name != "Boutique Almadies" {
		t.Fatalf("search failed: total=%d", total)
	}
}
