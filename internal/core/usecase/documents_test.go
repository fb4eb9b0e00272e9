package usecase

import (
	"context"
	"testing"

	"github.com/didembi/documind/internal/core/domain"
)

func newDocumentFixture(docs ...domain.Document) (*DocumentService, *memRepo, *memChunks, *memStorage, *memQueryLog) {
	repo := newMemRepo(docs...)
	chunks := &memChunks{}
	storage := newMemStorage()
	log := &memQueryLog{}
	return NewDocumentService(NewIndexStore(repo, chunks, IndexStoreOptions{}), storage, log), repo, chunks, storage, log
}

func TestDocumentServiceChecksOwnership(t *testing.T) {
	svc, _, _, _, _ := newDocumentFixture(readyDoc("doc-a", "owner"))
	ctx := context.Background()

	if _, err := svc.Get(ctx, "intruder", "doc-a"); !domain.IsKind(err, domain.ErrForbidden) {
		t.Fatalf("Get() expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Chunks(ctx, "intruder", "doc-a"); !domain.IsKind(err, domain.ErrForbidden) {
		t.Fatalf("Chunks() expected ErrForbidden, got %v", err)
	}
	if _, err := svc.KeywordSearch(ctx, "intruder", "doc-a", "x", 5); !domain.IsKind(err, domain.ErrForbidden) {
		t.Fatalf("KeywordSearch() expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(ctx, "intruder", "doc-a"); !domain.IsKind(err, domain.ErrForbidden) {
		t.Fatalf("Delete() expected ErrForbidden, got %v", err)
	}
	if _, err := svc.List(ctx, ""); !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("List() expected ErrUnauthorized, got %v", err)
	}
	if doc, err := svc.Get(ctx, "owner", "doc-a"); err != nil || doc.ID != "doc-a" {
		t.Fatalf("Get() = %+v, %v", doc, err)
	}
}

func TestDocumentServiceDeleteRemovesEverything(t *testing.T) {
	doc := readyDoc("doc-a", "u")
	doc.FilePath = "doc-a_report.pdf"
	svc, repo, chunks, storage, _ := newDocumentFixture(doc)
	storage.files[doc.FilePath] = []byte("%PDF-")
	chunks.chunks = []domain.Chunk{{DocumentID: "doc-a", Text: "x"}, {DocumentID: "doc-b", Text: "y"}}

	if err := svc.Delete(context.Background(), "u", "doc-a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(context.Background(), "doc-a"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected document to be gone, got %v", err)
	}
	if chunks.count("doc-a") != 0 || chunks.count("doc-b") != 1 {
		t.Fatalf("expected only doc-a chunks removed")
	}
	if _, ok := storage.files[doc.FilePath]; ok {
		t.Fatalf("expected stored file to be removed")
	}
}

func TestDocumentServiceRecentQueries(t *testing.T) {
	svc, _, _, _, log := newDocumentFixture()
	log.entries = []domain.QueryLogEntry{
		{ID: "q1", UserID: "u"},
		{ID: "q2", UserID: "other"},
		{ID: "q3", UserID: "u"},
	}

	entries, err := svc.RecentQueries(context.Background(), "u", 0)
	if err != nil {
		t.Fatalf("RecentQueries() error = %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "q3" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestDocumentServiceHidesChunksOfUnreadyDocuments(t *testing.T) {
	failed := readyDoc("doc-failed", "u")
	failed.Status = domain.StatusFailed
	processing := readyDoc("doc-processing", "u")
	processing.Status = domain.StatusProcessing
	svc, _, chunks, _, _ := newDocumentFixture(failed, processing)
	chunks.chunks = []domain.Chunk{
		{ID: "c-1", DocumentID: "doc-failed", Text: "partial sky text"},
		{ID: "c-2", DocumentID: "doc-processing", Index: 0, Text: "the sky so far"},
	}
	ctx := context.Background()

	for _, id := range []string{"doc-failed", "doc-processing"} {
		got, err := svc.KeywordSearch(ctx, "u", id, "sky", 5)
		if !domain.IsKind(err, domain.ErrDocumentNotReady) {
			t.Fatalf("KeywordSearch(%s) expected ErrDocumentNotReady, got %v", id, err)
		}
		if len(got) != 0 {
			t.Fatalf("KeywordSearch(%s) returned partial chunks: %+v", id, got)
		}
		if _, err := svc.Chunks(ctx, "u", id); !domain.IsKind(err, domain.ErrDocumentNotReady) {
			t.Fatalf("Chunks(%s) expected ErrDocumentNotReady, got %v", id, err)
		}
	}
}
