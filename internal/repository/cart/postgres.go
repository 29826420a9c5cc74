package cart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"maktaba-storefront/internal/db"
	"maktaba-storefront/internal/domain"
)

const lineColumns = `book_id, quantity, price_snapshot::text, title, title_ar, author, publisher, image_url`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) Repository {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) GetLine(ctx context.Context, userID, bookID string) (*domain.CartLine, error) {
	q := `SELECT ` + lineColumns + ` FROM cart_lines WHERE user_id = $1 AND book_id = $2`
	line, err := scanLine(r.pool.QueryRow(ctx, q, userID, bookID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("cart repo: get line", "user_id", userID, "book_id", bookID, "error", err)
		return nil, db.Classify(err)
	}
	return line, nil
}

func (r *postgresRepo) UpsertLine(ctx context.Context, userID string, line domain.CartLine) error {
	const q = `
INSERT INTO cart_lines (user_id, book_id, quantity, price_snapshot, title, title_ar, author, publisher, image_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (user_id, book_id) DO UPDATE SET
    quantity = EXCLUDED.quantity,
    price_snapshot = EXCLUDED.price_snapshot,
    title = EXCLUDED.title,
    title_ar = EXCLUDED.title_ar,
    author = EXCLUDED.author,
    publisher = EXCLUDED.publisher,
    image_url = EXCLUDED.image_url,
    updated_at = now()
`
	_, err := r.pool.Exec(ctx, q, lineArgs(userID, line, line.Quantity)...)
	if err != nil {
		r.logger.Error("cart repo: upsert line", "user_id", userID, "book_id", line.BookID, "error", err)
		return db.Classify(err)
	}
	return nil
}

func (r *postgresRepo) IncrementLine(ctx context.Context, userID string, line domain.CartLine, delta int) (*domain.CartLine, error) {
	if delta < 1 || delta > domain.MaxLineQuantity {
		return nil, fmt.Errorf("%w: quantity %d out of range", domain.ErrValidation, delta)
	}
	// The conditional update returns no row when the sum would pass the cap.
	q := `
INSERT INTO cart_lines (user_id, book_id, quantity, price_snapshot, title, title_ar, author, publisher, image_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (user_id, book_id) DO UPDATE SET
    quantity = cart_lines.quantity + EXCLUDED.quantity,
    updated_at = now()
WHERE cart_lines.quantity + EXCLUDED.quantity <= $10
RETURNING ` + lineColumns
	args := append(lineArgs(userID, line, delta), domain.MaxLineQuantity)
	out, err := scanLine(r.pool.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: book %s would exceed %d copies", domain.ErrValidation, line.BookID, domain.MaxLineQuantity)
	}
	if err != nil {
		r.logger.Error("cart repo: increment line", "user_id", userID, "book_id", line.BookID, "delta", delta, "error", err)
		return nil, db.Classify(err)
	}
	r.logger.Debug("cart repo: incremented line", "user_id", userID, "book_id", out.BookID, "quantity", out.Quantity)
	return out, nil
}

func (r *postgresRepo) UpdateQuantity(ctx context.Context, userID, bookID string, quantity int) (*domain.CartLine, error) {
	q := `
UPDATE cart_lines
SET quantity = $3, updated_at = now()
WHERE user_id = $1 AND book_id = $2
RETURNING ` + lineColumns
	out, err := scanLine(r.pool.QueryRow(ctx, q, userID, bookID, quantity))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("cart repo: update quantity", "user_id", userID, "book_id", bookID, "error", err)
		return nil, db.Classify(err)
	}
	return out, nil
}

func (r *postgresRepo) DeleteLine(ctx context.Context, userID, bookID string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1 AND book_id = $2`, userID, bookID)
	if err != nil {
		r.logger.Error("cart repo: delete line", "user_id", userID, "book_id", bookID, "error", err)
		return db.Classify(err)
	}
	r.logger.Debug("cart repo: delete line", "user_id", userID, "book_id", bookID, "rows", cmd.RowsAffected())
	return nil
}

func (r *postgresRepo) DeleteAll(ctx context.Context, userID string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, userID)
	if err != nil {
		r.logger.Error("cart repo: delete all", "user_id", userID, "error", err)
		return db.Classify(err)
	}
	r.logger.Info("cart repo: cleared", "user_id", userID, "rows", cmd.RowsAffected())
	return nil
}

func (r *postgresRepo) ListLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	q := `SELECT ` + lineColumns + ` FROM cart_lines WHERE user_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		r.logger.Error("cart repo: list", "user_id", userID, "error", err)
		return nil, db.Classify(err)
	}
	defer rows.Close()

	var out []domain.CartLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, db.Classify(err)
		}
		out = append(out, *line)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("cart repo: list rows", "user_id", userID, "error", err)
		return nil, db.Classify(err)
	}
	return out, nil
}

func lineArgs(userID string, line domain.CartLine, quantity int) []interface{} {
	return []interface{}{
		userID,
		line.BookID,
		quantity,
		line.PriceSnapshot.StringFixed(2),
		line.Title,
		line.TitleAr,
		line.Author,
		line.Publisher,
		line.Image,
	}
}

func scanLine(row pgx.Row) (*domain.CartLine, error) {
	var line domain.CartLine
	var price string
	if err := row.Scan(
		&line.BookID,
		&line.Quantity,
		&price,
		&line.Title,
		&line.TitleAr,
		&line.Author,
		&line.Publisher,
		&line.Image,
	); err != nil {
		return nil, err
	}
	parsed, err := decimal.NewFromString(price)
	if err != nil {
		return nil, err
	}
	line.PriceSnapshot = parsed
	return &line, nil
}
