package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderLine struct {
	BookID    string          `json:"bookId"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// Order is the finalized cart handed to the ordering backend.
type Order struct {
	ID       string          `json:"id"`
	UserID   string          `json:"userId"`
	Lines    []OrderLine     `json:"lines"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
	PlacedAt time.Time       `json:"placedAt"`
}
