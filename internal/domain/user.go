package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is an API consumer holding a bearer token.
type User struct {
	ID        uuid.UUID
	Email     string
	Token     string
	CreatedAt time.Time
}

type UserRepository interface {
	Create(ctx context.Context, email string) (*User, error)
	IsValidToken(ctx context.Context, token string) (bool, error)
}
