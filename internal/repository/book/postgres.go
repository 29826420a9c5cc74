package book

import (
	"context"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"maktaba-storefront/internal/db"
	"maktaba-storefront/internal/domain"
)

const bookColumns = `id, title, COALESCE(title_ar, ''), COALESCE(author, ''), COALESCE(publisher, ''), COALESCE(image_url, ''), price::text, in_stock, created_at`

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

func (r *postgresRepo) ResolveBooks(ctx context.Context, ids []string) (map[string]domain.Book, error) {
	out := make(map[string]domain.Book, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := `SELECT ` + bookColumns + ` FROM books WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		r.logger.Error("book repo: resolve", "count", len(ids), "error", err)
		return nil, db.Classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, db.Classify(err)
		}
		out[b.ID] = *b
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	r.logger.Debug("book repo: resolve", "requested", len(ids), "found", len(out))
	return out, nil
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.Book, error) {
	q := `SELECT ` + bookColumns + ` FROM books ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		r.logger.Error("book repo: list", "error", err)
		return nil, db.Classify(err)
	}
	defer rows.Close()

	var result []domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, db.Classify(err)
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	return result, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, b domain.Book) (*domain.Book, error) {
	q := `
INSERT INTO books (id, title, title_ar, author, publisher, image_url, price, in_stock)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8)
ON CONFLICT (id) DO UPDATE SET
    title = EXCLUDED.title,
    title_ar = EXCLUDED.title_ar,
    author = EXCLUDED.author,
    publisher = EXCLUDED.publisher,
    image_url = EXCLUDED.image_url,
    price = EXCLUDED.price,
    in_stock = EXCLUDED.in_stock
RETURNING ` + bookColumns
	res, err := scanBook(r.pool.QueryRow(ctx, q,
		b.ID,
		b.Title,
		b.TitleAr,
		b.Author,
		b.Publisher,
		b.Image,
		b.Price.StringFixed(2),
		b.InStock,
	))
	if err != nil {
		r.logger.Error("book repo: upsert", "id", b.ID, "error", err)
		return nil, db.Classify(err)
	}
	r.logger.Info("book repo: upserted", "id", res.ID, "price", res.Price.String())
	return res, nil
}

func scanBook(row pgx.Row) (*domain.Book, error) {
	var b domain.Book
	var price string
	if err := row.Scan(&b.ID, &b.Title, &b.TitleAr, &b.Author, &b.Publisher, &b.Image, &price, &b.InStock, &b.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := decimal.NewFromString(price)
	if err != nil {
		return nil, err
	}
	b.Price = parsed
	return &b, nil
}
