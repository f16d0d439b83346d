package repository

import (
	"context"

	"github.com/cloo-solutions/studybuddy/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// QueryLogRepository stores answered questions with their query embedding.
type QueryLogRepository struct {
	pool *pgxpool.Pool
}

func NewQueryLogRepository(pool *pgxpool.Pool) *QueryLogRepository {
	return &QueryLogRepository{pool: pool}
}

func (r *QueryLogRepository) Create(ctx context.Context, entry *domain.QueryLog) error {
	var embedding *pgvector.Vector
	if len(entry.Embedding) > 0 {
		v := pgvector.NewVector(entry.Embedding)
		embedding = &v
	}

	rows := make([]int32, len(entry.Rows))
	for i, row := range entry.Rows {
		rows[i] = int32(row)
	}

	return r.pool.QueryRow(ctx,
		`INSERT INTO query_logs (pipeline, user_id, question, embedding, result_rows, status, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		entry.Pipeline,
		nullableString(entry.UserID),
		entry.Question,
		embedding,
		rows,
		string(entry.Status),
		entry.DurationMs,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
