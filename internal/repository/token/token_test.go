package token

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"maktaba-storefront/internal/domain"
	"maktaba-storefront/internal/migrate"
)

func exerciseRepository(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	tok := Token{Token: "tok-1", SessionID: "sess-1", ExpiresAt: now.Add(time.Hour)}
	if err := repo.Create(ctx, tok); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, tok); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on duplicate token, got %v", err)
	}

	got, err := repo.Get(ctx, "tok-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SessionID != "sess-1" || !got.ExpiresAt.Equal(tok.ExpiresAt) {
		t.Fatalf("unexpected token %+v", got)
	}

	later := now.Add(2 * time.Hour)
	if err := repo.Extend(ctx, "tok-1", later); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	got, _ = repo.Get(ctx, "tok-1")
	if !got.ExpiresAt.Equal(later) {
		t.Fatalf("expected extended expiry, got %s", got.ExpiresAt)
	}
	if err := repo.Extend(ctx, "missing", later); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	_ = repo.Create(ctx, Token{Token: "tok-old", SessionID: "sess-2", ExpiresAt: now.Add(-time.Minute)})
	n, err := repo.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired token removed, got %d", n)
	}

	if err := repo.Delete(ctx, "tok-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, "tok-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestMemory(t *testing.T) {
	exerciseRepository(t, NewMemory())
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if err := migrate.Apply(ctx, pool, nil); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE session_tokens`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	exerciseRepository(t, NewPostgres(pool, nil))
}
