package localfs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveOpenDeleteRoundTrip(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	n, err := storage.Save(ctx, "doc-1_notes.txt", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if n != 5 {
		t.Fatalf("Save() wrote %d bytes, want 5", n)
	}

	reader, err := storage.Open(ctx, "doc-1_notes.txt")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	raw, _ := io.ReadAll(reader)
	_ = reader.Close()
	if string(raw) != "hello" {
		t.Fatalf("Open() content = %q", raw)
	}

	if err := storage.Delete(ctx, "doc-1_notes.txt"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := storage.Delete(ctx, "doc-1_notes.txt"); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if _, err := storage.Open(ctx, "doc-1_notes.txt"); err == nil {
		t.Fatalf("expected error opening deleted file")
	}
}

func TestRejectsKeysOutsideBasePath(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := storage.Save(context.Background(), "../escape.txt", strings.NewReader("x")); err == nil {
		t.Fatalf("expected traversal key to be rejected")
	}
}
