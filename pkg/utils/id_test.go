package utils

import (
	"strings"
	"testing"
)

func TestNewPrefixedID(t *testing.T) {
	id := NewPrefixedID("CHT-", 8)

	if !strings.HasPrefix(id, "CHT-") {
		t.Errorf("expected CHT- prefix, got %s", id)
	}
	if len(id) != 12 {
		t.Errorf("expected 12 chars total, got %d (%s)", len(id), id)
	}
	for _, c := range id[4:] {
		if !strings.ContainsRune(idAlphabet, c) {
			t.Errorf("unexpected character %q in id %s", c, id)
		}
	}

	// Collisions at this length are negligible; a small sample should be unique.
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		v := NewPrefixedID("CHT-", 8)
		if seen[v] {
			t.Fatalf("duplicate id generated: %s", v)
		}
		seen[v] = true
	}
}
