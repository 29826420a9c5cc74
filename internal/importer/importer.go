package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"maktaba-storefront/internal/domain"
)

type BookWriter interface {
	Upsert(ctx context.Context, b domain.Book) (*domain.Book, error)
}

// CSVImporter reads catalog CSV exports and inserts or updates books.
//
// Expected headers: id, title, title_ar, author, publisher, price, in_stock, image_url.
// Only id, title and price are required; column order does not matter.
type CSVImporter struct {
	reader *csv.Reader
	books  BookWriter
}

func NewCSVImporter(r io.Reader, books BookWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader: csvr,
		books:  books,
	}
}

// Run upserts every row and returns how many books were written.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, col := range []string{"id", "title", "price"} {
		if _, ok := index[col]; !ok {
			return 0, fmt.Errorf("missing required column %q", col)
		}
	}

	imported := 0
	line := 1
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return imported, fmt.Errorf("read row %d: %w", line, err)
		}

		b, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("row %d: %w", line, err)
		}
		if b == nil {
			continue
		}
		if _, err := i.books.Upsert(ctx, *b); err != nil {
			return imported, fmt.Errorf("upsert book %q: %w", b.ID, err)
		}
		imported++
	}
	return imported, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	return idx
}

// parseRow returns nil for blank rows.
func parseRow(record []string, index map[string]int) (*domain.Book, error) {
	id := pick(record, index, "id")
	title := pick(record, index, "title")
	priceStr := pick(record, index, "price")
	if id == "" && title == "" && priceStr == "" {
		return nil, nil
	}
	if id == "" || title == "" || priceStr == "" {
		return nil, fmt.Errorf("%w: id, title and price are required", domain.ErrValidation)
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil || price.IsNegative() {
		return nil, fmt.Errorf("%w: invalid price %q for book %s", domain.ErrValidation, priceStr, id)
	}

	inStock := true
	if v := pick(record, index, "in_stock"); v != "" {
		inStock, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid in_stock %q for book %s", domain.ErrValidation, v, id)
		}
	}

	return &domain.Book{
		ID:        id,
		Title:     title,
		TitleAr:   pick(record, index, "title_ar"),
		Author:    pick(record, index, "author"),
		Publisher: pick(record, index, "publisher"),
		Image:     pick(record, index, "image_url"),
		Price:     price.Round(2),
		InStock:   inStock,
	}, nil
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
