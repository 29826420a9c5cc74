package book

import (
	"context"

	"maktaba-storefront/internal/domain"
)

// Resolver maps book ids to catalog metadata. Ids without a catalog entry are
// simply absent from the result.
type Resolver interface {
	ResolveBooks(ctx context.Context, ids []string) (map[string]domain.Book, error)
}

type Repository interface {
	Resolver
	List(ctx context.Context) ([]domain.Book, error)
	Upsert(ctx context.Context, b domain.Book) (*domain.Book, error)
}
