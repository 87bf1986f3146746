package raster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pavelanni/examparser/internal/model"
)

func TestIsPDF(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"pdf header", []byte("%PDF-1.7\n..."), true},
		{"plain text", []byte("hello"), false},
		{"empty", nil, false},
		{"truncated header", []byte("%PD"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPDF(tt.data); got != tt.want {
				t.Errorf("IsPDF(%q) = %v, want %v", tt.data, got, tt.want)
			}
		})
	}
}

func TestOpenRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("just a text file"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(path, 0)
	if err == nil {
		t.Fatal("Open should reject a file without the PDF header")
	}
	if model.KindOf(err) != model.KindInput {
		t.Errorf("kind = %q, want %q", model.KindOf(err), model.KindInput)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.pdf"), 0)
	if err == nil {
		t.Fatal("Open should fail for a missing file")
	}
	if model.KindOf(err) != model.KindInput {
		t.Errorf("kind = %q, want %q", model.KindOf(err), model.KindInput)
	}
}
