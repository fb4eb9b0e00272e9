package postgres

import (
	"context"
	"database/sql"

	"github.com/didembi/documind/internal/core/domain"
)

type QueryLogRepository struct {
	db *sql.DB
}

func NewQueryLogRepository(db *sql.DB) *QueryLogRepository {
	return &QueryLogRepository{db: db}
}

func (r *QueryLogRepository) Record(ctx context.Context, entry domain.QueryLogEntry) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO queries (id, user_id, question, answer, source_count, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, entry.ID, entry.UserID, entry.Question, entry.Answer, entry.SourceCount, entry.CreatedAt)
	if err != nil {
		return domain.WrapError(domain.ErrStore, "record query", err)
	}
	return nil
}

func (r *QueryLogRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.QueryLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, question, answer, source_count, created_at
FROM queries
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStore, "list queries", err)
	}
	defer rows.Close()

	out := make([]domain.QueryLogEntry, 0)
	for rows.Next() {
		var entry domain.QueryLogEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Question, &entry.Answer, &entry.SourceCount, &entry.CreatedAt); err != nil {
			return nil, domain.WrapError(domain.ErrStore, "scan query", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStore, "iterate queries", err)
	}
	return out, nil
}
