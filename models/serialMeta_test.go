package models

import (
	"strings"
	"testing"
)

func TestParseSerialsFromNotes(t *testing.T) {
	notes := "Livraison urgente\n__SERIALS__=[{\"product_id\":7,\"imeis\":[\"356000111\",\"356000222\"]}]\n__SIGNATURE__=data:image/png;base64,AAAA"

	entries := ParseSerialsFromNotes(notes)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ProductId != 7 {
		t.Fatalf("expected product 7, got %d", entries[0].ProductId)
	}
	if len(entries[0].Imeis) != 2 || entries[0].Imeis[0] != "356000111" {
		t.Fatalf("unexpected imeis: %v", entries[0].Imeis)
	}
}

func TestParseSerialsFromNotesFallbackScan(t *testing.T) {
	// Trailing junk after the JSON defeats the strict parse; the balanced
	// scan must still recover the block, past the inner imeis arrays.
	notes := "__SERIALS__=[{\"product_id\":3,\"imeis\":[\"IMEI-X\"]},{\"product_id\":4,\"imeis\":[\"IMEI-Y\",\"IMEI-Z\"]}] reformatted by a client"

	entries := ParseSerialsFromNotes(notes)
	if len(entries) != 2 || entries[0].ProductId != 3 || entries[1].ProductId != 4 {
		t.Fatalf("fallback parse failed: %+v", entries)
	}
	if len(entries[1].Imeis) != 2 || entries[1].Imeis[1] != "IMEI-Z" {
		t.Fatalf("unexpected imeis: %v", entries[1].Imeis)
	}
}

func TestParseSerialsFromNotesAbsent(t *testing.T) {
	if entries := ParseSerialsFromNotes("plain notes"); entries != nil {
		t.Fatalf("expected nil, got %+v", entries)
	}
}

func TestExtractSignatureFromNotes(t *testing.T) {
	notes := "Merci\n__SIGNATURE__=data:image/png;base64,QUJD\nsuite"
	if sig := ExtractSignatureFromNotes(notes); sig != "data:image/png;base64,QUJD" {
		t.Fatalf("unexpected signature: %q", sig)
	}

	if sig := ExtractSignatureFromNotes("__SIGNATURE__=javascript:alert(1)"); sig != "" {
		t.Fatalf("non data/http signature must be rejected, got %q", sig)
	}
	if sig := ExtractSignatureFromNotes("no marker here"); sig != "" {
		t.Fatalf("expected empty signature, got %q", sig)
	}
}

func TestEncodeSerialsIntoNotesReplacesBlock(t *testing.T) {
	notes := "Texte libre\n__SERIALS__=[{\"product_id\":1,\"imeis\":[\"OLD\"]}]\n__SIGNATURE__=data:image/png;base64,AAAA"

	out := encodeSerialsIntoNotes(notes, map[int][]string{5: {"NEW-1"}})
	if strings.Contains(out, "OLD") {
		t.Fatalf("old block must be replaced: %q", out)
	}
	if !strings.Contains(out, "__SIGNATURE__=data:image/png;base64,AAAA") {
		t.Fatalf("signature must survive: %q", out)
	}

	entries := ParseSerialsFromNotes(out)
	if len(entries) != 1 || entries[0].ProductId != 5 || entries[0].Imeis[0] != "NEW-1" {
		t.Fatalf("round-trip failed: %+v", entries)
	}
}

func TestEncodeSerialsIntoNotesPassthrough(t *testing.T) {
	notes := "Texte\n__SERIALS__=[{\"product_id\":9,\"imeis\":[\"KEEP\"]}]"
	if out := encodeSerialsIntoNotes(notes, nil); out != notes {
		t.Fatalf("notes must pass through untouched when nothing was consumed: %q", out)
	}
}
