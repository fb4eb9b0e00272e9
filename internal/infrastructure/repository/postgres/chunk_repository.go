package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/didembi/documind/internal/core/domain"
)

// ChunkRepository stores chunks with their embeddings in a pgvector column.
type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

const chunkColumns = `id, document_id, chunk_text, chunk_index, page_number, line_start, line_end`

func (r *ChunkRepository) InsertChunk(ctx context.Context, chunk domain.Chunk) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO document_chunks (id, document_id, chunk_text, chunk_number, chunk_index, page_number, line_start, line_end, embedding)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		chunk.ID, chunk.DocumentID, chunk.Text, chunk.Index+1, chunk.Index,
		nullPage(chunk.PageNumber), nullInt(chunk.LineStart), nullInt(chunk.LineEnd),
		pgvector.NewVector(chunk.Embedding),
	)
	if err != nil {
		return domain.WrapError(domain.ErrStore, "insert chunk", err)
	}
	return nil
}

func (r *ChunkRepository) MatchChunks(ctx context.Context, req domain.MatchRequest) ([]domain.ScoredChunk, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+chunkColumns+`, similarity
FROM match_document_chunks($1, $2, $3, $4)
`, pgvector.NewVector(req.QueryVector), req.Threshold, req.Count, req.DocumentIDs)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStore, "match document chunks", err)
	}
	defer rows.Close()

	out := make([]domain.ScoredChunk, 0, req.Count)
	for rows.Next() {
		var scored domain.ScoredChunk
		var page, lineStart, lineEnd sql.NullInt64
		if err := rows.Scan(
			&scored.ID, &scored.DocumentID, &scored.Text, &scored.Index,
			&page, &lineStart, &lineEnd, &scored.Similarity,
		); err != nil {
			return nil, domain.WrapError(domain.ErrStore, "scan matched chunk", err)
		}
		applyLocation(&scored.Chunk, page, lineStart, lineEnd)
		out = append(out, scored)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStore, "iterate matched chunks", err)
	}
	return out, nil
}

func (r *ChunkRepository) ListChunks(ctx context.Context, documentIDs []string, withEmbeddings bool) ([]domain.Chunk, error) {
	if len(documentIDs) == 0 {
		return []domain.Chunk{}, nil
	}
	columns := chunkColumns
	if withEmbeddings {
		columns += ", embedding"
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+columns+`
FROM document_chunks
WHERE document_id = ANY($1)
ORDER BY document_id, chunk_index
`, documentIDs)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStore, "list chunks", err)
	}
	defer rows.Close()
	return scanChunks(rows, withEmbeddings)
}

func (r *ChunkRepository) KeywordMatch(ctx context.Context, documentID, query string, limit int) ([]domain.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+chunkColumns+`
FROM search_chunks_by_keyword($1, $2, $3)
`, query, documentID, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStore, "search chunks by keyword", err)
	}
	defer rows.Close()
	return scanChunks(rows, false)
}

func (r *ChunkRepository) FilterChunksContaining(ctx context.Context, documentID, query string, limit int) ([]domain.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+chunkColumns+`
FROM document_chunks
WHERE document_id = $1 AND strpos(lower(chunk_text), lower($2)) > 0
ORDER BY chunk_index
LIMIT $3
`, documentID, strings.TrimSpace(query), limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStore, "filter chunks", err)
	}
	defer rows.Close()
	return scanChunks(rows, false)
}

func (r *ChunkRepository) DeleteDocumentChunks(ctx context.Context, documentID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return domain.WrapError(domain.ErrStore, "delete document chunks", err)
	}
	return nil
}

func scanChunks(rows *sql.Rows, withEmbeddings bool) ([]domain.Chunk, error) {
	out := make([]domain.Chunk, 0)
	for rows.Next() {
		var chunk domain.Chunk
		var page, lineStart, lineEnd sql.NullInt64
		dest := []any{&chunk.ID, &chunk.DocumentID, &chunk.Text, &chunk.Index, &page, &lineStart, &lineEnd}
		var embedding *pgvector.Vector
		if withEmbeddings {
			dest = append(dest, &embedding)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, domain.WrapError(domain.ErrStore, "scan chunk", err)
		}
		applyLocation(&chunk, page, lineStart, lineEnd)
		if embedding != nil {
			chunk.Embedding = embedding.Slice()
		}
		out = append(out, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStore, "iterate chunks", err)
	}
	return out, nil
}

func applyLocation(chunk *domain.Chunk, page, lineStart, lineEnd sql.NullInt64) {
	if page.Valid {
		chunk.PageNumber = int(page.Int64)
	}
	if lineStart.Valid && lineEnd.Valid {
		chunk.LineStart = domain.IntPtr(int(lineStart.Int64))
		chunk.LineEnd = domain.IntPtr(int(lineEnd.Int64))
	}
}

func nullPage(page int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(page), Valid: page > 0}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
