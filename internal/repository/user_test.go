//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/studybuddy/internal/domain"
	"github.com/cloo-solutions/studybuddy/internal/pagination"
	"github.com/cloo-solutions/studybuddy/internal/testutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { pc.Terminate(context.Background()) })

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	t.Cleanup(pool.Close)
	return pool
}

func createUser(ctx context.Context, t *testing.T, repo *UserRepository, username string) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: "$2a$10$hash",
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Create(ctx, user))
	return user
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestPool(ctx, t))

	user := createUser(ctx, t, repo, "ada")

	byID, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada", byID.Username)
	assert.Equal(t, user.PasswordHash, byID.PasswordHash)
	assert.True(t, user.CreatedAt.Equal(byID.CreatedAt))

	byName, err := repo.GetByUsername(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)
}

func TestUserRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestPool(ctx, t))

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = repo.GetByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(ctx, t)
	repo := NewUserRepository(pool)

	createUser(ctx, t, repo, "ada")

	dup := &domain.User{
		ID:           uuid.NewString(),
		Username:     "ada",
		PasswordHash: "x",
		CreatedAt:    time.Now().UTC(),
	}
	assert.ErrorIs(t, repo.Create(ctx, dup), domain.ErrUserAlreadyExists)

	require.NoError(t, testutil.TruncateAll(ctx, pool))
	assert.NoError(t, repo.Create(ctx, dup))
}

func TestUserRepository_ListWithCursor(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestPool(ctx, t))

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		createUser(ctx, t, repo, name)
		time.Sleep(2 * time.Millisecond)
	}

	first, err := repo.ListWithCursor(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, "e", first.Items[0].Username)

	seen := map[string]bool{}
	for _, u := range first.Items {
		seen[u.Username] = true
	}

	cursor := first.NextCursor
	for cursor != "" {
		c, err := pagination.DecodeCursor(cursor)
		require.NoError(t, err)
		page, err := repo.ListWithCursor(ctx, c, 2)
		require.NoError(t, err)
		for _, u := range page.Items {
			assert.False(t, seen[u.Username], "user %s listed twice", u.Username)
			seen[u.Username] = true
		}
		cursor = page.NextCursor
	}
	assert.Len(t, seen, 5)
}
