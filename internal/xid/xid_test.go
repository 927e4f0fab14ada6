package xid

import (
	"strings"
	"testing"
)

func TestNewCarriesPrefix(t *testing.T) {
	id := New("ord")
	if !strings.HasPrefix(id, "ord-") {
		t.Fatalf("expected ord- prefix, got %s", id)
	}
	if id == New("ord") {
		t.Fatalf("expected distinct ids")
	}
}

func TestNewEmptyPrefixFallsBack(t *testing.T) {
	id := New("")
	if !strings.HasPrefix(id, "id-") {
		t.Fatalf("expected id- fallback prefix, got %s", id)
	}
}
