package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv4_Format(t *testing.T) {
	id := UUIDv4()()
	if len(id) != 36 {
		t.Fatalf("UUIDv4: expected length 36, got %d in %q", len(id), id)
	}
	if v := Version(id); v != 4 {
		t.Fatalf("UUIDv4: expected version 4, got %d", v)
	}
}

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	// UUID format: 8-4-4-4-12
	parts := strings.Split(id, "-")
	if len(parts) != 5 {
		t.Fatalf("UUIDv7: expected 5 parts, got %d in %q", len(parts), id)
	}
	if v := Version(id); v != 7 {
		t.Fatalf("UUIDv7: expected version 7, got %d", v)
	}
}

func TestGenerators_Uniqueness(t *testing.T) {
	for name, gen := range map[string]Generator{"v4": UUIDv4(), "v7": UUIDv7()} {
		seen := make(map[string]struct{}, 1000)
		for i := 0; i < 1000; i++ {
			id := gen()
			if _, ok := seen[id]; ok {
				t.Fatalf("%s: duplicate at iteration %d: %q", name, i, id)
			}
			seen[id] = struct{}{}
		}
	}
}

func TestDefault_IsValid(t *testing.T) {
	id := New()
	if !Valid(id) {
		t.Fatalf("New: default should produce a valid UUID, got %q", id)
	}
}

func TestParse(t *testing.T) {
	original := UUIDv7()()
	parsed, err := Parse(strings.ToUpper(original))
	if err != nil {
		t.Fatalf("Parse valid UUID: %v", err)
	}
	if parsed != original {
		t.Fatalf("Parse: got %q, want %q", parsed, original)
	}

	if _, err := Parse("not-a-uuid"); err == nil {
		t.Fatal("Parse: expected error for invalid UUID")
	}
}

func TestVersion_Invalid(t *testing.T) {
	if v := Version("12345"); v != 0 {
		t.Fatalf("Version: expected 0 for invalid input, got %d", v)
	}
	if Valid("") {
		t.Fatal("Valid: empty string accepted")
	}
}
