//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/cloo-solutions/studybuddy/internal/domain"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingOf(v float32, dim int) []float32 {
	out := make([]float32, dim)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestQueryLogRepository_Create(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(ctx, t)
	user := createUser(ctx, t, NewUserRepository(pool), "ada")
	repo := NewQueryLogRepository(pool)

	entry := &domain.QueryLog{
		Pipeline:   "document",
		UserID:     user.ID,
		Question:   "what is mitosis?",
		Embedding:  embeddingOf(0.25, domain.DefaultEmbeddingDimensions),
		Rows:       []int{4, 1, 7},
		Status:     domain.AnswerStatusAnswered,
		DurationMs: 42,
	}
	require.NoError(t, repo.Create(ctx, entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())

	var (
		question string
		rows     []int32
		distance float64
	)
	err := pool.QueryRow(ctx,
		`SELECT question, result_rows, embedding <-> $2 FROM query_logs WHERE id = $1`,
		entry.ID, pgvector.NewVector(embeddingOf(0.25, domain.DefaultEmbeddingDimensions)),
	).Scan(&question, &rows, &distance)
	require.NoError(t, err)
	assert.Equal(t, "what is mitosis?", question)
	assert.Equal(t, []int32{4, 1, 7}, rows)
	assert.InDelta(t, 0, distance, 1e-6)
}

func TestQueryLogRepository_Create_AnonymousWithoutEmbedding(t *testing.T) {
	ctx := context.Background()
	repo := NewQueryLogRepository(newTestPool(ctx, t))

	entry := &domain.QueryLog{
		Pipeline: "web",
		Question: "anything?",
		Status:   domain.AnswerStatusEmpty,
	}
	require.NoError(t, repo.Create(ctx, entry))
	assert.NotEmpty(t, entry.ID)
}

func TestQueryLogRepository_Create_AnyEmbeddingWidth(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(ctx, t)
	repo := NewQueryLogRepository(pool)

	for _, dim := range []int{8, 768} {
		entry := &domain.QueryLog{
			Pipeline:  "document",
			Question:  "width?",
			Embedding: embeddingOf(0.5, dim),
			Status:    domain.AnswerStatusAnswered,
		}
		require.NoError(t, repo.Create(ctx, entry), dim)

		var stored int
		err := pool.QueryRow(ctx, `SELECT vector_dims(embedding) FROM query_logs WHERE id = $1`, entry.ID).Scan(&stored)
		require.NoError(t, err)
		assert.Equal(t, dim, stored)
	}
}
