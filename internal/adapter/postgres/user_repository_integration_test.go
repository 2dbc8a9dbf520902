package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmanilo/paralimni/internal/domain"
)

func TestUserRepo_Create(t *testing.T) {
	repo := NewUserRepo(setupTestDB(t))
	ctx := context.Background()

	user, err := repo.Create(ctx, "alice@example.com")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	_, err = uuid.Parse(user.Token)
	assert.NoError(t, err)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestUserRepo_CreateDuplicateEmail(t *testing.T) {
	repo := NewUserRepo(setupTestDB(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, "bob@example.com")
	require.NoError(t, err)

	_, err = repo.Create(ctx, "bob@example.com")
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestUserRepo_IsValidToken(t *testing.T) {
	repo := NewUserRepo(setupTestDB(t))
	ctx := context.Background()

	user, err := repo.Create(ctx, "carol@example.com")
	require.NoError(t, err)

	ok, err := repo.IsValidToken(ctx, user.Token)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IsValidToken(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.IsValidToken(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}
