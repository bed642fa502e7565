package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"kidchat-backend/internal/models"
)

type CompletionLogRepo struct {
	pool *pgxpool.Pool
}

func NewCompletionLogRepo(pool *pgxpool.Pool) *CompletionLogRepo {
	return &CompletionLogRepo{pool: pool}
}

func (r *CompletionLogRepo) Create(ctx context.Context, e *models.CompletionLogEntry) error {
	e.ID = uuid.New()

	query := `INSERT INTO completion_log (id, request_id, session_id, model, kind, http_status, latency_ms, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		e.ID, e.RequestID, e.SessionID, e.Model, e.Kind, e.HTTPStatus, e.LatencyMS, e.ErrorMessage,
	).Scan(&e.CreatedAt)
}

func (r *CompletionLogRepo) ListRecent(ctx context.Context, limit int) ([]*models.CompletionLogEntry, error) {
	query := `SELECT id, request_id, session_id, model, kind, http_status, latency_ms, error_message, created_at
		FROM completion_log ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.CompletionLogEntry
	for rows.Next() {
		e := &models.CompletionLogEntry{}
		if err := rows.Scan(
			&e.ID, &e.RequestID, &e.SessionID, &e.Model, &e.Kind,
			&e.HTTPStatus, &e.LatencyMS, &e.ErrorMessage, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *CompletionLogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, "DELETE FROM completion_log WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
