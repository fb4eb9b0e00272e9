package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const schemaLockKey = int64(2026021001)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// The embedding column has no fixed dimension so the embedding backend can
// change without a migration. Rows of another dimension make the server-side
// match fail, which the index store answers with its in-process fallback.
const schemaDDL = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	notebook_id TEXT,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	file_size BIGINT NOT NULL DEFAULT 0,
	file_path TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT,
	short_summary TEXT,
	long_summary TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_user_created ON documents(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS document_chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chunk_text TEXT NOT NULL,
	chunk_number INT NOT NULL,
	chunk_index INT NOT NULL,
	page_number INT,
	line_start INT,
	line_end INT,
	embedding vector,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (document_id, chunk_index)
);

CREATE TABLE IF NOT EXISTS queries (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	source_count INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_queries_user_created ON queries(user_id, created_at DESC);

CREATE OR REPLACE FUNCTION match_document_chunks(
	query_embedding vector,
	match_threshold float,
	match_count int,
	filter_document_ids text[]
) RETURNS TABLE (
	id text,
	document_id text,
	chunk_text text,
	chunk_index int,
	page_number int,
	line_start int,
	line_end int,
	similarity float
)
LANGUAGE sql STABLE AS $$
	SELECT c.id, c.document_id, c.chunk_text, c.chunk_index, c.page_number, c.line_start, c.line_end,
		1 - (c.embedding <=> query_embedding) AS similarity
	FROM document_chunks c
	WHERE c.document_id = ANY(filter_document_ids)
		AND c.embedding IS NOT NULL
		AND 1 - (c.embedding <=> query_embedding) >= match_threshold
	ORDER BY c.embedding <=> query_embedding, c.document_id, c.chunk_index
	LIMIT match_count;
$$;

CREATE OR REPLACE FUNCTION search_chunks_by_keyword(
	search_query text,
	target_document_id text,
	result_limit int
) RETURNS TABLE (
	id text,
	document_id text,
	chunk_text text,
	chunk_index int,
	page_number int,
	line_start int,
	line_end int
)
LANGUAGE sql STABLE AS $$
	SELECT c.id, c.document_id, c.chunk_text, c.chunk_index, c.page_number, c.line_start, c.line_end
	FROM document_chunks c
	WHERE c.document_id = target_document_id
		AND strpos(lower(c.chunk_text), lower(search_query)) > 0
	ORDER BY c.chunk_index
	LIMIT result_limit;
$$;
`

// EnsureSchema creates the tables and SQL functions. Concurrent api and
// worker startups are serialized by an advisory lock.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
