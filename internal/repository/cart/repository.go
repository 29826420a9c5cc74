package cart

import (
	"context"

	"maktaba-storefront/internal/domain"
)

// Repository is the remote per-user cart record. It must give a single caller
// read-your-writes consistency.
type Repository interface {
	// GetLine returns domain.ErrNotFound when the user has no line for bookID.
	GetLine(ctx context.Context, userID, bookID string) (*domain.CartLine, error)
	// UpsertLine writes the line with its quantity as given, replacing any existing row.
	UpsertLine(ctx context.Context, userID string, line domain.CartLine) error
	// IncrementLine atomically adds delta to the existing quantity, or inserts the
	// line with quantity delta when absent. A result above domain.MaxLineQuantity
	// is refused with domain.ErrValidation and leaves the line unchanged.
	IncrementLine(ctx context.Context, userID string, line domain.CartLine, delta int) (*domain.CartLine, error)
	// UpdateQuantity overwrites the quantity of an existing line only.
	UpdateQuantity(ctx context.Context, userID, bookID string, quantity int) (*domain.CartLine, error)
	// DeleteLine is a no-op when the line is absent.
	DeleteLine(ctx context.Context, userID, bookID string) error
	DeleteAll(ctx context.Context, userID string) error
	ListLines(ctx context.Context, userID string) ([]domain.CartLine, error)
}
