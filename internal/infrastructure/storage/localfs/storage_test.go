package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/mail-triage/internal/core/domain"
)

func TestArchiveRoundTrip(t *testing.T) {
	base := t.TempDir()
	archive, err := New(base)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := archive.Archive(context.Background(), "rec-1", "nota.pdf", []byte("%PDF-1.4")); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "rec-1", "nota.pdf")); err != nil {
		t.Fatalf("expected archived file: %v", err)
	}

	rc, err := archive.Open(context.Background(), "rec-1", "nota.pdf")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read archived file: %v", err)
	}
	if string(got) != "%PDF-1.4" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestArchiveKeepsFilesInsideBase(t *testing.T) {
	base := t.TempDir()
	archive, err := New(base)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := archive.Archive(context.Background(), "rec-2", "../../etc/passwd.txt", []byte("x")); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "rec-2", "passwd.txt")); err != nil {
		t.Fatalf("expected file reduced to its base name: %v", err)
	}

	for _, id := range []string{"", "..", "a/b", `a\b`} {
		err := archive.Archive(context.Background(), id, "x.txt", []byte("x"))
		if !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("expected invalid input for record id %q, got %v", id, err)
		}
	}
}

func TestOpenMissingIsNotFound(t *testing.T) {
	archive, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = archive.Open(context.Background(), "rec-3", "missing.txt")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
