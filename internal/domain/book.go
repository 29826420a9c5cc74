package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Book is catalog metadata used to hydrate cart lines and re-validate prices at checkout.
type Book struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	TitleAr   string          `json:"titleAr,omitempty"`
	Author    string          `json:"author,omitempty"`
	Publisher string          `json:"publisher,omitempty"`
	Image     string          `json:"image,omitempty"`
	Price     decimal.Decimal `json:"price"`
	InStock   bool            `json:"inStock"`
	CreatedAt time.Time       `json:"createdAt"`
}
