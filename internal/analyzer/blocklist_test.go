package analyzer

import (
	"strings"
	"testing"

	"github.com/corona10/goimagehash"
)

func TestNewBlocklist(t *testing.T) {
	bl, err := NewBlocklist([]string{"00000000000000ff", "d:FFFF000000000000", "  ", ""})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if bl.Len() != 2 {
		t.Errorf("Expected 2 hashes, got %d", bl.Len())
	}
}

func TestNewBlocklist_Invalid(t *testing.T) {
	_, err := NewBlocklist([]string{"not-a-hash"})
	if err == nil {
		t.Fatal("Expected error for invalid hash")
	}
	if !strings.Contains(err.Error(), "not-a-hash") {
		t.Errorf("Expected error to name the bad hash, got %v", err)
	}
}

func TestBlocklist_Match(t *testing.T) {
	bl, err := NewBlocklist([]string{"00000000000000ff"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	tests := []struct {
		name        string
		hash        uint64
		maxDistance int
		expectDist  int
		expectMatch bool
	}{
		{"identical", 0xff, 0, 0, true},
		{"within distance", 0x0f, 4, 4, true},
		{"outside distance", 0x0f, 3, 4, false},
		{"far away", 0xffffffff00000000, 6, 40, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dist, ok := bl.Match(goimagehash.NewImageHash(tt.hash, goimagehash.DHash), tt.maxDistance)
			if dist != tt.expectDist {
				t.Errorf("Expected distance %d, got %d", tt.expectDist, dist)
			}
			if ok != tt.expectMatch {
				t.Errorf("Expected match %v, got %v", tt.expectMatch, ok)
			}
		})
	}
}

func TestBlocklist_EmptyNeverMatches(t *testing.T) {
	var bl *Blocklist
	if _, ok := bl.Match(goimagehash.NewImageHash(0, goimagehash.DHash), 64); ok {
		t.Error("Expected nil blocklist not to match")
	}

	empty, _ := NewBlocklist(nil)
	if _, ok := empty.Match(goimagehash.NewImageHash(0, goimagehash.DHash), 64); ok {
		t.Error("Expected empty blocklist not to match")
	}
}

func TestFormatHash_RoundTrip(t *testing.T) {
	hash, err := DifferenceHash(createGradientImage(64, 64))
	if err != nil {
		t.Fatalf("Failed to hash image: %v", err)
	}

	formatted := FormatHash(hash)
	if len(formatted) != 16 {
		t.Errorf("Expected 16 hex digits, got %q", formatted)
	}

	bl, err := NewBlocklist([]string{formatted})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if dist, ok := bl.Match(hash, 0); !ok || dist != 0 {
		t.Errorf("Expected exact match, got distance %d", dist)
	}
}
