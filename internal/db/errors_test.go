package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"maktaba-storefront/internal/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{name: "serialization", in: &pgconn.PgError{Code: "40001"}, want: domain.ErrConflict},
		{name: "deadlock", in: &pgconn.PgError{Code: "40P01"}, want: domain.ErrConflict},
		{name: "admin shutdown", in: &pgconn.PgError{Code: "57P01"}, want: domain.ErrTransientStore},
		{name: "check violation", in: &pgconn.PgError{Code: "23514"}, want: domain.ErrValidation},
		{name: "out of range", in: &pgconn.PgError{Code: "22003"}, want: domain.ErrValidation},
		{name: "deadline", in: context.DeadlineExceeded, want: domain.ErrTransientStore},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.in)
			if !errors.Is(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			if !errors.Is(got, tc.in) {
				t.Fatalf("expected original error to stay wrapped, got %v", got)
			}
		})
	}
}

func TestClassifyPassesThroughOtherErrors(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}
	if got := Classify(unique); got != unique {
		t.Fatalf("expected unique violation unchanged, got %v", got)
	}
	if Classify(nil) != nil {
		t.Fatalf("expected nil for nil")
	}
}
