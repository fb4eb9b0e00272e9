package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/didembi/documind/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, user_id, notebook_id, filename, mime_type, file_size, file_path, status,
	error_message, short_summary, long_summary, created_at, updated_at`

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (`+documentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		doc.ID, doc.UserID, nullString(doc.NotebookID), doc.Filename, doc.MimeType, doc.FileSize, doc.FilePath,
		string(doc.Status), nullString(doc.Error), nullString(doc.ShortSummary), nullString(doc.LongSummary),
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return domain.WrapError(domain.ErrStore, "insert document", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, domain.WrapError(domain.ErrStore, "get document", err)
	}
	return doc, nil
}

// ListByUser returns the user's documents, newest first.
func (r *DocumentRepository) ListByUser(ctx context.Context, userID string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE user_id = $1
ORDER BY created_at DESC
`, userID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStore, "list documents", err)
	}
	defer rows.Close()

	docs := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, domain.WrapError(domain.ErrStore, "scan document", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStore, "iterate documents", err)
	}
	return docs, nil
}

// UpdateStatus moves a document from one status to another. The update is
// guarded on the current status, so a lost race reports
// ErrInvalidStatusTransition instead of overwriting a terminal state.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, from, to domain.DocumentStatus, errMessage string) error {
	if !domain.CanTransition(from, to) {
		return domain.WrapError(domain.ErrInvalidStatusTransition, "update document status", fmt.Errorf("%s -> %s", from, to))
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $3, error_message = $4, updated_at = $5
WHERE id = $1 AND status = $2
`, id, string(from), string(to), nullString(errMessage), time.Now().UTC())
	if err != nil {
		return domain.WrapError(domain.ErrStore, "update document status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.WrapError(domain.ErrStore, "update document status rows affected", err)
	}
	if affected > 0 {
		return nil
	}

	var current string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapError(domain.ErrDocumentNotFound, "update document status", fmt.Errorf("id=%s", id))
	}
	if err != nil {
		return domain.WrapError(domain.ErrStore, "update document status", err)
	}
	return domain.WrapError(domain.ErrInvalidStatusTransition, "update document status",
		fmt.Errorf("document %s is %s, not %s", id, current, from))
}

// SaveSummary writes only the summaries present in update.
func (r *DocumentRepository) SaveSummary(ctx context.Context, id string, update domain.SummaryUpdate) error {
	if update.Empty() {
		return nil
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET short_summary = COALESCE($2, short_summary),
	long_summary = COALESCE($3, long_summary),
	updated_at = $4
WHERE id = $1
`, id, nullStringPtr(update.Short), nullStringPtr(update.Long), time.Now().UTC())
	if err != nil {
		return domain.WrapError(domain.ErrStore, "save summary", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.WrapError(domain.ErrStore, "save summary rows affected", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "save summary", fmt.Errorf("id=%s", id))
	}
	return nil
}

// Delete removes the document row; chunks go with it through the foreign key.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return domain.WrapError(domain.ErrStore, "delete document", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.WrapError(domain.ErrStore, "delete document rows affected", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "delete document", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *DocumentRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var status string
	var notebookID, errMessage, shortSummary, longSummary sql.NullString
	err := row.Scan(
		&doc.ID, &doc.UserID, &notebookID, &doc.Filename, &doc.MimeType, &doc.FileSize, &doc.FilePath, &status,
		&errMessage, &shortSummary, &longSummary, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Status = domain.DocumentStatus(status)
	doc.NotebookID = notebookID.String
	doc.Error = errMessage.String
	doc.ShortSummary = shortSummary.String
	doc.LongSummary = longSummary.String
	return &doc, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
