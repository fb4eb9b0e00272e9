package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/didembi/documind/internal/core/domain"
)

type queryFixture struct {
	uc        *QueryUseCase
	repo      *memRepo
	chunks    *memChunks
	embedder  *keywordEmbedder
	generator *generatorFake
	log       *memQueryLog
}

func newQueryFixture(docs ...domain.Document) *queryFixture {
	f := &queryFixture{
		repo:      newMemRepo(docs...),
		chunks:    &memChunks{},
		embedder:  newKeywordEmbedder("invoice", "payment", "weather"),
		generator: &generatorFake{},
		log:       &memQueryLog{},
	}
	f.uc = NewQueryUseCase(NewIndexStore(f.repo, f.chunks, IndexStoreOptions{}), f.embedder, f.generator, f.log, QueryOptions{})
	return f
}

func (f *queryFixture) addChunk(docID string, index int, text string) {
	vector, _ := f.embedder.Embed(context.Background(), text)
	f.chunks.chunks = append(f.chunks.chunks, domain.Chunk{
		ID:         docID + "-" + text,
		DocumentID: docID,
		Index:      index,
		Text:       text,
		PageNumber: index + 1,
		Embedding:  vector,
	})
}

func readyDoc(id, userID string) domain.Document {
	return domain.Document{ID: id, UserID: userID, Filename: id + ".pdf", Status: domain.StatusReady}
}

func TestAnswerValidatesInput(t *testing.T) {
	f := newQueryFixture()

	_, err := f.uc.Answer(context.Background(), domain.QueryRequest{UserID: "u", Question: "  "})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	_, err = f.uc.Answer(context.Background(), domain.QueryRequest{Question: "what?"})
	if !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAnswerWithoutReadyDocumentsSkipsRetrieval(t *testing.T) {
	pending := readyDoc("doc-p", "u")
	pending.Status = domain.StatusProcessing
	f := newQueryFixture(pending)

	answer, err := f.uc.Answer(context.Background(), domain.QueryRequest{UserID: "u", Question: "what is due?"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != domain.InsufficientContextAnswer {
		t.Fatalf("unexpected answer: %q", answer.Text)
	}
	if len(answer.Sources) != 0 {
		t.Fatalf("expected no sources, got %+v", answer.Sources)
	}
	if f.embedder.calls != 0 {
		t.Fatalf("expected no embedding call, got %d", f.embedder.calls)
	}
	if f.generator.lastContext != "" {
		t.Fatalf("expected empty context, got %q", f.generator.lastContext)
	}
}

func TestAnswerOnlySearchesOwnedReadyDocuments(t *testing.T) {
	failed := readyDoc("doc-f", "u")
	failed.Status = domain.StatusFailed
	f := newQueryFixture(readyDoc("doc-a", "u"), readyDoc("doc-other", "someone-else"), failed)
	f.addChunk("doc-a", 0, "invoice total is 40 EUR")
	f.addChunk("doc-other", 0, "invoice from another tenant")
	f.addChunk("doc-f", 0, "invoice draft")

	answer, err := f.uc.Answer(context.Background(), domain.QueryRequest{
		UserID:      "u",
		Question:    "What does the invoice say?",
		DocumentIDs: []string{"doc-a", "doc-other", "doc-f", "doc-missing", "doc-a"},
	})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if len(answer.Sources) != 1 || answer.Sources[0].DocumentID != "doc-a" {
		t.Fatalf("expected one source from doc-a, got %+v", answer.Sources)
	}
	if answer.Sources[0].Location != "Page 1" || answer.Sources[0].Similarity <= 0 {
		t.Fatalf("unexpected source: %+v", answer.Sources[0])
	}
	if f.generator.lastContext != "[Page 1]\ninvoice total is 40 EUR" {
		t.Fatalf("unexpected context: %q", f.generator.lastContext)
	}
	if answer.QueryID == "" || answer.Question != "What does the invoice say?" {
		t.Fatalf("unexpected answer metadata: %+v", answer)
	}
	if len(f.log.entries) != 1 || f.log.entries[0].SourceCount != 1 || f.log.entries[0].ID != answer.QueryID {
		t.Fatalf("unexpected query log: %+v", f.log.entries)
	}
}

func TestAnswerSourcesMatchIncludedContext(t *testing.T) {
	f := newQueryFixture(readyDoc("doc-a", "u"))
	f.uc.options.ContextBudget = 40
	f.addChunk("doc-a", 0, "invoice number 17 for March")
	f.addChunk("doc-a", 1, "invoice payment due in April")

	answer, err := f.uc.Answer(context.Background(), domain.QueryRequest{UserID: "u", Question: "invoice"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if len(answer.Sources) != 1 {
		t.Fatalf("expected sources limited to the included chunk, got %+v", answer.Sources)
	}
}

func TestAnswerQueryLogFailureIsSwallowed(t *testing.T) {
	f := newQueryFixture(readyDoc("doc-a", "u"))
	f.addChunk("doc-a", 0, "weather is sunny")
	f.log.err = errors.New("relation queries does not exist")

	answer, err := f.uc.Answer(context.Background(), domain.QueryRequest{UserID: "u", Question: "weather?"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != "answer from context" {
		t.Fatalf("unexpected answer: %q", answer.Text)
	}
}

func TestAnswerPropagatesGeneratorErrors(t *testing.T) {
	f := newQueryFixture(readyDoc("doc-a", "u"))
	f.addChunk("doc-a", 0, "weather is sunny")
	f.generator.err = domain.WrapError(domain.ErrLLMTimeout, "ollama generate answer", context.DeadlineExceeded)

	_, err := f.uc.Answer(context.Background(), domain.QueryRequest{UserID: "u", Question: "weather?"})
	if !domain.IsKind(err, domain.ErrLLMTimeout) {
		t.Fatalf("expected ErrLLMTimeout, got %v", err)
	}
	if len(f.log.entries) != 0 {
		t.Fatalf("failed answers must not be logged")
	}
}
