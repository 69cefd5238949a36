package horosafe

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"BaseModel", false},
		{"first_name", false},
		{"max-guests", false},
		{"", true},
		{"Base.Model", true},
		{"with space", true},
		{"émoji", true},
		{strings.Repeat("a", MaxIdentLen), false},
		{strings.Repeat("a", MaxIdentLen+1), true},
	}
	for _, tt := range tests {
		err := ValidateIdentifier(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateIdentifier(%q) error=%v, wantErr=%v", tt.in, err, tt.wantErr)
		}
	}
}

func TestSafePath(t *testing.T) {
	tests := []struct {
		base, rel string
		wantErr   bool
	}{
		{"/data", "file.json", false},
		{"/data", "snapshots/file.json", false},
		{"/data", "../etc/passwd", true},
		{"/data", "a/../../outside", true},
		{"/data", "/etc/passwd", true},
	}
	for _, tt := range tests {
		got, err := SafePath(tt.base, tt.rel)
		if (err != nil) != tt.wantErr {
			t.Errorf("SafePath(%q, %q) error=%v, wantErr=%v", tt.base, tt.rel, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrPathTraversal) {
			t.Errorf("SafePath(%q, %q) error=%v, want ErrPathTraversal", tt.base, tt.rel, err)
		}
		if err == nil && got != filepath.Join(tt.base, tt.rel) {
			t.Errorf("SafePath(%q, %q) = %q", tt.base, tt.rel, got)
		}
	}
}

func TestReadLimited(t *testing.T) {
	data, err := ReadLimited(strings.NewReader("hello"), 5)
	if err != nil {
		t.Fatalf("exact limit: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q", data)
	}

	if _, err := ReadLimited(strings.NewReader("hello!"), 5); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("over limit: err=%v, want ErrTooLarge", err)
	}

	data, err = ReadLimited(strings.NewReader(strings.Repeat("x", 1000)), 0)
	if err != nil || len(data) != 1000 {
		t.Fatalf("unlimited: len=%d err=%v", len(data), err)
	}
}
