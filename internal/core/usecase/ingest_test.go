package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/didembi/documind/internal/core/domain"
)

func newIngestFixture(maxBytes int64) (*IngestDocumentUseCase, *memRepo, *memStorage, *queueFake) {
	repo := newMemRepo()
	storage := newMemStorage()
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(NewIndexStore(repo, &memChunks{}, IndexStoreOptions{}), storage, queue, maxBytes)
	return uc, repo, storage, queue
}

func TestIngestUploadSuccess(t *testing.T) {
	uc, repo, storage, queue := newIngestFixture(1024)

	doc, err := uc.Upload(context.Background(), domain.UploadRequest{
		UserID:   "user-1",
		Filename: "my report.txt",
	}, strings.NewReader("The sky is blue."))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.Status != domain.StatusProcessing {
		t.Fatalf("expected processing, got %s", doc.Status)
	}
	if doc.MimeType != "text/plain" || doc.FileSize != 16 {
		t.Fatalf("unexpected metadata: %+v", doc)
	}
	if !strings.HasSuffix(doc.FilePath, "_my_report.txt") {
		t.Fatalf("unexpected storage key: %s", doc.FilePath)
	}
	if got := string(storage.files[doc.FilePath]); got != "The sky is blue." {
		t.Fatalf("unexpected stored body: %q", got)
	}
	if _, err := repo.GetByID(context.Background(), doc.ID); err != nil {
		t.Fatalf("expected document metadata, got %v", err)
	}
	if len(queue.jobs) != 1 || queue.jobs[0].DocumentID != doc.ID || queue.jobs[0].UserID != "user-1" {
		t.Fatalf("unexpected jobs: %+v", queue.jobs)
	}
}

func TestIngestUploadRejectsEmptyAndUnsupported(t *testing.T) {
	uc, _, storage, _ := newIngestFixture(1024)

	_, err := uc.Upload(context.Background(), domain.UploadRequest{UserID: "u", Filename: "a.txt"}, strings.NewReader(""))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty file, got %v", err)
	}

	_, err = uc.Upload(context.Background(), domain.UploadRequest{
		UserID:   "u",
		Filename: "image.png",
		MimeType: "image/png",
	}, bytes.NewReader([]byte{0x89, 'P', 'N', 'G'}))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for png, got %v", err)
	}
	if len(storage.files) != 0 {
		t.Fatalf("rejected uploads must not be stored")
	}
}

func TestIngestUploadRequiresUser(t *testing.T) {
	uc, _, _, _ := newIngestFixture(1024)
	_, err := uc.Upload(context.Background(), domain.UploadRequest{Filename: "a.txt"}, strings.NewReader("x"))
	if !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestIngestUploadRejectsOversizedFile(t *testing.T) {
	uc, repo, storage, queue := newIngestFixture(10)

	_, err := uc.Upload(context.Background(), domain.UploadRequest{UserID: "u", Filename: "a.txt"},
		strings.NewReader(strings.Repeat("x", 11)))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(storage.files) != 0 || len(storage.deleted) != 1 {
		t.Fatalf("expected stored file to be removed, files=%d deleted=%v", len(storage.files), storage.deleted)
	}
	if len(repo.docs) != 0 || len(queue.jobs) != 0 {
		t.Fatalf("oversized upload must not create a document")
	}

	if _, err := uc.Upload(context.Background(), domain.UploadRequest{UserID: "u", Filename: "a.txt"},
		strings.NewReader(strings.Repeat("x", 10))); err != nil {
		t.Fatalf("Upload() at the limit error = %v", err)
	}
}

func TestIngestUploadDetectsPDFByContent(t *testing.T) {
	uc, _, _, _ := newIngestFixture(1024)

	doc, err := uc.Upload(context.Background(), domain.UploadRequest{
		UserID:   "u",
		Filename: "scan",
		MimeType: "application/octet-stream",
	}, strings.NewReader("%PDF-1.7\n..."))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.MimeType != "application/pdf" {
		t.Fatalf("expected application/pdf, got %s", doc.MimeType)
	}
}

func TestIngestUploadPublishFailureMarksFailed(t *testing.T) {
	uc, repo, _, queue := newIngestFixture(1024)
	queue.err = domain.WrapError(domain.ErrTemporary, "publish", errors.New("nats: no servers available"))

	_, err := uc.Upload(context.Background(), domain.UploadRequest{UserID: "u", Filename: "a.txt"}, strings.NewReader("hello"))
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	docs, _ := repo.ListByUser(context.Background(), "u")
	if len(docs) != 1 || docs[0].Status != domain.StatusFailed {
		t.Fatalf("expected one failed document, got %+v", docs)
	}
}

func TestIngestUploadCreateFailureRemovesFile(t *testing.T) {
	uc, repo, storage, _ := newIngestFixture(1024)
	repo.createErr = domain.WrapError(domain.ErrStore, "create document", errors.New("duplicate key"))

	_, err := uc.Upload(context.Background(), domain.UploadRequest{UserID: "u", Filename: "a.txt"}, strings.NewReader("hello"))
	if !domain.IsKind(err, domain.ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
	if len(storage.files) != 0 {
		t.Fatalf("expected orphan file to be deleted")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":       "report.pdf",
		"../../etc/passwd": "passwd",
		"my file (1).txt":  "my_file__1_.txt",
		"özet.md":          "_zet.md",
		"":                 "document.bin",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
