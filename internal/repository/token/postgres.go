package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"maktaba-storefront/internal/db"
	"maktaba-storefront/internal/domain"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) Create(ctx context.Context, token Token) error {
	const q = `
INSERT INTO session_tokens (token, session_id, expires_at)
VALUES ($1, $2, $3)
`
	_, err := r.pool.Exec(ctx, q, token.Token, token.SessionID, token.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: token exists", domain.ErrConflict)
		}
		return db.Classify(err)
	}
	return nil
}

func (r *postgresRepo) Get(ctx context.Context, token string) (*Token, error) {
	const q = `
SELECT token, session_id, expires_at, created_at
FROM session_tokens
WHERE token = $1
LIMIT 1
`
	var out Token
	if err := r.pool.QueryRow(ctx, q, token).Scan(
		&out.Token,
		&out.SessionID,
		&out.ExpiresAt,
		&out.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, db.Classify(err)
	}
	return &out, nil
}

func (r *postgresRepo) Extend(ctx context.Context, token string, expiresAt time.Time) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE session_tokens SET expires_at = $2 WHERE token = $1`, token, expiresAt)
	if err != nil {
		return db.Classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) Delete(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM session_tokens WHERE token = $1`, token)
	return db.Classify(err)
}

func (r *postgresRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM session_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, db.Classify(err)
	}
	if n := cmd.RowsAffected(); n > 0 && r.logger != nil {
		r.logger.Info("expired session tokens removed", "count", n)
	}
	return cmd.RowsAffected(), nil
}
