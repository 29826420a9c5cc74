package token

import (
	"context"
	"time"
)

// Token binds an opaque session token to a browsing session.
type Token struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type Repository interface {
	// Create fails with domain.ErrConflict when the token already exists.
	Create(ctx context.Context, token Token) error
	Get(ctx context.Context, token string) (*Token, error)
	Extend(ctx context.Context, token string, expiresAt time.Time) error
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
