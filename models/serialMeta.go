package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Invoice notes carry two machine-readable blocks appended after the free
// text, each introduced by a marker on its own line:
//
//	__SERIALS__=[{"product_id":12,"imeis":["356789..."]}]
//	__SIGNATURE__=data:image/png;base64,...
//
// The rest of the notes text is untouched and blocks survive round-trips
// through the API unchanged.
const (
	serialsMarker   = "__SERIALS__="
	signatureMarker = "__SIGNATURE__="
)

type SerialEntry struct {
	ProductId int      `json:"product_id"`
	Imeis     []string `json:"imeis"`
}

// ParseSerialsFromNotes extracts the serial metadata block. The strict path
// takes everything after the marker up to the next line starting with "__"
// and JSON-decodes it; when that fails, a bracket-balanced scan recovers
// blocks mangled by clients that appended or re-flowed text after the JSON.
func ParseSerialsFromNotes(notes string) []SerialEntry {
	idx := strings.Index(notes, serialsMarker)
	if idx < 0 {
		return nil
	}
	raw := notes[idx+len(serialsMarker):]
	strict := raw
	if cut := strings.Index(strict, "\n__"); cut >= 0 {
		strict = strict[:cut]
	}
	strict = strings.TrimSpace(strict)

	var entries []SerialEntry
	if err := json.Unmarshal([]byte(strict), &entries); err == nil {
		return entries
	}

	block := scanBalancedArray(raw)
	if block == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(block), &entries); err != nil {
		return nil
	}
	return entries
}

// scanBalancedArray returns the first bracket-balanced JSON array in s,
// skipping brackets inside string literals.
func scanBalancedArray(s string) string {
	start := strings.IndexByte(s, '[')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// ExtractSignatureFromNotes returns the embedded signature image reference,
// or "" when absent or not a data:/http(s) URI.
func ExtractSignatureFromNotes(notes string) string {
	idx := strings.Index(notes, signatureMarker)
	if idx < 0 {
		return ""
	}
	sig := notes[idx+len(signatureMarker):]
	if cut := strings.IndexByte(sig, '\n'); cut >= 0 {
		sig = sig[:cut]
	}
	sig = strings.TrimSpace(sig)
	if strings.HasPrefix(sig, "data:") || strings.HasPrefix(sig, "http") {
		return sig
	}
	return ""
}

// stripSerialsBlock removes the serials block from notes, keeping any text
// before it and any later marker blocks (the signature in particular).
func stripSerialsBlock(notes string) string {
	idx := strings.Index(notes, serialsMarker)
	if idx < 0 {
		return notes
	}
	prefix := strings.TrimRight(notes[:idx], "\n")
	rest := notes[idx+len(serialsMarker):]
	cut := strings.Index(rest, "\n__")
	if cut < 0 {
		return prefix
	}
	suffix := rest[cut+1:]
	if prefix == "" {
		return suffix
	}
	return prefix + "\n" + suffix
}

// encodeSerialsIntoNotes rewrites the serials block to reflect the variants
// an invoice actually consumed. Entries are keyed by product and sorted so
// the block is deterministic for a given set of consumed variants. When no
// variants were consumed through item payloads the notes pass through
// verbatim, preserving any block the client embedded itself.
func encodeSerialsIntoNotes(notes string, consumed map[int][]string) string {
	if len(consumed) == 0 {
		return notes
	}
	out := stripSerialsBlock(notes)

	ids := make([]int, 0, len(consumed))
	for id := range consumed {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	entries := make([]SerialEntry, 0, len(ids))
	for _, id := range ids {
		imeis := consumed[id]
		sort.Strings(imeis)
		entries = append(entries, SerialEntry{ProductId: id, Imeis: imeis})
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		return out
	}
	if out != "" {
		out = strings.TrimRight(out, "\n") + "\n"
	}
	return out + fmt.Sprintf("%s%s", serialsMarker, payload)
}
