package localcart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"maktaba-storefront/internal/domain"
	"maktaba-storefront/internal/logging"
)

const keyPrefix = "cart:local:"

// Redis stores each session's anonymous cart as one JSON value. Every write
// refreshes the TTL, so idle anonymous carts expire on their own.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Redis{rdb: rdb, ttl: ttl, logger: logger}
}

func (s *Redis) Read(ctx context.Context, sessionID string) ([]domain.CartLine, error) {
	raw, err := s.rdb.Get(ctx, keyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read local cart: %w", domain.ErrTransientStore, err)
	}
	var lines []domain.CartLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		// an undecodable cart can never be read back; start the session over
		s.logger.Warn("local cart: discarding undecodable value", "session_id", sessionID, "bytes", len(raw), "error", err)
		if derr := s.rdb.Del(ctx, keyPrefix+sessionID).Err(); derr != nil {
			s.logger.Error("local cart: delete undecodable value", "session_id", sessionID, "error", derr)
		}
		return nil, nil
	}
	return lines, nil
}

func (s *Redis) Write(ctx context.Context, sessionID string, lines []domain.CartLine) error {
	if len(lines) == 0 {
		return s.Clear(ctx, sessionID)
	}
	body, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode local cart: %w", err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+sessionID, body, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: write local cart: %w", domain.ErrTransientStore, err)
	}
	return nil
}

func (s *Redis) Clear(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("%w: clear local cart: %w", domain.ErrTransientStore, err)
	}
	return nil
}

var _ Store = (*Redis)(nil)
