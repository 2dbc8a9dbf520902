package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vmanilo/paralimni/internal/domain"
)

const uniqueViolation = "23505"

// UserRepo stores API consumers and their bearer tokens.
type UserRepo struct {
	pool *pgxpool.Pool
}

var _ domain.UserRepository = (*UserRepo)(nil)

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// Create registers email with a fresh random token. A duplicate email returns domain.ErrEmailTaken.
func (r *UserRepo) Create(ctx context.Context, email string) (*domain.User, error) {
	user := domain.User{
		ID:    uuid.New(),
		Email: email,
		Token: uuid.NewString(),
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, token) VALUES ($1, $2, $3) RETURNING created_at`,
		user.ID, user.Email, user.Token,
	).Scan(&user.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return nil, domain.ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

func (r *UserRepo) IsValidToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT id FROM users WHERE token = $1`, token).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up token: %w", err)
	}
	return true, nil
}
