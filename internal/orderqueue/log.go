package orderqueue

import (
	"context"
	"log/slog"

	"maktaba-storefront/internal/domain"
)

// Log records orders in the service log. Used when no broker is configured.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Place(_ context.Context, order domain.Order) error {
	l.logger.Warn("no order broker configured, order only logged",
		"order_id", order.ID, "user_id", order.UserID, "total", order.Total.StringFixed(2), "currency", order.Currency)
	return nil
}
