// Package localcart keeps anonymous carts in ephemeral, session-scoped storage.
package localcart

import (
	"context"

	"maktaba-storefront/internal/domain"
)

// Store holds the anonymous cart of one session. Read returns nil lines when the
// session has nothing stored.
type Store interface {
	Read(ctx context.Context, sessionID string) ([]domain.CartLine, error)
	Write(ctx context.Context, sessionID string, lines []domain.CartLine) error
	Clear(ctx context.Context, sessionID string) error
}
