package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"maktaba-storefront/internal/domain"
	"maktaba-storefront/internal/metrics"
	bookrepo "maktaba-storefront/internal/repository/book"
)

// Placer hands a finalized order to the ordering backend.
type Placer interface {
	Place(ctx context.Context, order domain.Order) error
}

// Cart is the part of the cart engine checkout needs.
type Cart interface {
	Owner() domain.Owner
	Snapshot(ctx context.Context) (*domain.Cart, error)
	Clear(ctx context.Context) (*domain.Cart, error)
}

type Service struct {
	catalog  bookrepo.Resolver
	placer   Placer
	currency string
	logger   *slog.Logger
	now      func() time.Time
}

func New(catalog bookrepo.Resolver, placer Placer, currency string, logger *slog.Logger) *Service {
	return &Service{
		catalog:  catalog,
		placer:   placer,
		currency: currency,
		logger:   logger,
		now:      time.Now,
	}
}

// Checkout turns the signed-in cart into an order at current catalog prices,
// publishes it and empties the cart.
func (s *Service) Checkout(ctx context.Context, cart Cart) (*domain.Order, error) {
	owner := cart.Owner()
	if !owner.IsAuthenticated() {
		return nil, s.reject(fmt.Errorf("%w: sign in to check out", domain.ErrValidation))
	}

	snap, err := cart.Snapshot(ctx)
	if err != nil {
		return nil, s.fail(err)
	}
	if len(snap.Lines) == 0 {
		return nil, s.reject(fmt.Errorf("%w: cart is empty", domain.ErrValidation))
	}

	ids := make([]string, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		ids = append(ids, l.BookID)
	}
	books, err := s.catalog.ResolveBooks(ctx, ids)
	if err != nil {
		return nil, s.fail(err)
	}

	order := domain.Order{
		ID:       uuid.NewString(),
		UserID:   owner.UserID,
		Lines:    make([]domain.OrderLine, 0, len(snap.Lines)),
		Total:    decimal.Zero,
		Currency: s.currency,
		PlacedAt: s.now().UTC(),
	}
	var unknown, soldOut []string
	for _, l := range snap.Lines {
		b, ok := books[l.BookID]
		switch {
		case !ok:
			unknown = append(unknown, l.BookID)
			continue
		case !b.InStock:
			soldOut = append(soldOut, l.BookID)
			continue
		}
		lineTotal := b.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		order.Lines = append(order.Lines, domain.OrderLine{
			BookID:    l.BookID,
			Title:     b.Title,
			Quantity:  l.Quantity,
			UnitPrice: b.Price,
			LineTotal: lineTotal,
		})
		order.Total = order.Total.Add(lineTotal)
	}
	if len(unknown) > 0 {
		return nil, s.reject(fmt.Errorf("%w: books no longer available: %s", domain.ErrValidation, strings.Join(unknown, ",")))
	}
	if len(soldOut) > 0 {
		return nil, s.reject(fmt.Errorf("%w: books out of stock: %s", domain.ErrValidation, strings.Join(soldOut, ",")))
	}

	if err := s.placer.Place(ctx, order); err != nil {
		return nil, s.fail(err)
	}
	metrics.OrdersPlaced.WithLabelValues("ok").Inc()
	s.logger.Info("order placed", "order_id", order.ID, "user_id", order.UserID,
		"total", order.Total.StringFixed(2), "currency", order.Currency)

	if _, err := cart.Clear(ctx); err != nil {
		// the order is already out; a stale cart is the lesser problem
		s.logger.Error("checkout: cart not cleared after order", "order_id", order.ID, "user_id", order.UserID, "error", err)
	}
	return &order, nil
}

func (s *Service) reject(err error) error {
	metrics.OrdersPlaced.WithLabelValues("rejected").Inc()
	return err
}

func (s *Service) fail(err error) error {
	metrics.OrdersPlaced.WithLabelValues("error").Inc()
	s.logger.Error("checkout failed", "error", err)
	return err
}
