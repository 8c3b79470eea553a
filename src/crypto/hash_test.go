package crypto

import (
	"bytes"
	"testing"
)

func TestEntryHashDeterministic(t *testing.T) {
	data := []byte("Jackson Donald")

	h1 := EntryHash(data)
	h2 := EntryHash([]byte("Jackson Donald"))

	if len(h1) != 32 {
		t.Fatalf("entry hash should be 32 bytes, not %d", len(h1))
	}

	if !bytes.Equal(h1, h2) {
		t.Fatalf("identical bytes should give identical hashes")
	}

	if bytes.Equal(h1, EntryHash([]byte("Jackson Donalds"))) {
		t.Fatalf("different bytes should give different hashes")
	}
}

func TestDomainSeparation(t *testing.T) {
	data := "all_health_records"

	entry := EntryHash([]byte(data))
	anchor := AnchorHash(data)
	plain := SHA256([]byte(data))

	if bytes.Equal(entry, anchor) {
		t.Fatalf("entry and anchor domains should not collide")
	}

	if bytes.Equal(anchor, plain) || bytes.Equal(entry, plain) {
		t.Fatalf("keyed hashes should differ from SHA256")
	}
}
