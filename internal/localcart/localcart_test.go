package localcart

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"maktaba-storefront/internal/domain"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	lines, err := s.Read(ctx, "sess")
	if err != nil {
		t.Fatalf("Read empty: %v", err)
	}
	if lines != nil {
		t.Fatalf("expected nil lines for unknown session, got %v", lines)
	}

	want := []domain.CartLine{
		{BookID: "42", Quantity: 2, PriceSnapshot: decimal.RequireFromString("35.50"), Title: "Riyad as-Salihin"},
		{BookID: "7", Quantity: 1, PriceSnapshot: decimal.NewFromInt(10)},
	}
	if err := s.Write(ctx, "sess", want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read(ctx, "sess")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 2 || got[0].BookID != "42" || got[0].Quantity != 2 {
		t.Fatalf("unexpected lines %+v", got)
	}
	if !got[0].PriceSnapshot.Equal(decimal.RequireFromString("35.5")) {
		t.Fatalf("price snapshot lost: %s", got[0].PriceSnapshot)
	}

	other, _ := s.Read(ctx, "other")
	if other != nil {
		t.Fatalf("sessions must not share carts")
	}

	if err := s.Clear(ctx, "sess"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, _ = s.Read(ctx, "sess")
	if got != nil {
		t.Fatalf("expected cleared cart, got %v", got)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryWriteEmptyClears(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Write(ctx, "s", []domain.CartLine{{BookID: "1", Quantity: 1}})
	_ = m.Write(ctx, "s", nil)
	if got, _ := m.Read(ctx, "s"); got != nil {
		t.Fatalf("expected empty write to clear, got %v", got)
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	if err := rdb.Del(context.Background(), keyPrefix+"sess", keyPrefix+"other").Err(); err != nil {
		t.Fatalf("reset keys: %v", err)
	}
	exerciseStore(t, NewRedis(rdb, time.Minute, nil))
}

func TestRedisStoreDiscardsUndecodableCart(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	if err := rdb.Set(ctx, keyPrefix+"corrupt", "{not json", time.Minute).Err(); err != nil {
		t.Fatalf("seed corrupt value: %v", err)
	}

	s := NewRedis(rdb, time.Minute, nil)
	lines, err := s.Read(ctx, "corrupt")
	if err != nil {
		t.Fatalf("expected corrupt cart to read as empty, got %v", err)
	}
	if lines != nil {
		t.Fatalf("expected no lines, got %v", lines)
	}
	if n, _ := rdb.Exists(ctx, keyPrefix+"corrupt").Result(); n != 0 {
		t.Fatalf("expected corrupt key to be deleted")
	}
	if err := s.Write(ctx, "corrupt", []domain.CartLine{{BookID: "1", Quantity: 1}}); err != nil {
		t.Fatalf("Write after discard: %v", err)
	}
}
