package db

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"maktaba-storefront/internal/domain"
)

// Classify maps driver errors onto the domain taxonomy: connectivity problems and
// timeouts become domain.ErrTransientStore, serialization failures and deadlocks
// become domain.ErrConflict, check violations and out-of-range numbers become
// domain.ErrValidation. Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23514", "22003":
			return fmt.Errorf("%w: %w", domain.ErrValidation, err)
		case "40001", "40P01":
			return fmt.Errorf("%w: %w", domain.ErrConflict, err)
		case "08000", "08003", "08006", "53300", "57P01", "57P03":
			return fmt.Errorf("%w: %w", domain.ErrTransientStore, err)
		}
		return err
	}
	var connErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &connErr),
		errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded),
		pgconn.Timeout(err),
		pgconn.SafeToRetry(err):
		return fmt.Errorf("%w: %w", domain.ErrTransientStore, err)
	}
	return err
}
