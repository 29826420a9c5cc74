package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"maktaba-storefront/internal/domain"
)

type BookWriter interface {
	Upsert(ctx context.Context, b domain.Book) (*domain.Book, error)
}

type bookSeed struct {
	ID        string
	Title     string
	TitleAr   string
	Author    string
	Publisher string
	Price     string
	InStock   bool
}

var books = []bookSeed{
	{ID: "bk-riyad", Title: "Riyad as-Salihin", TitleAr: "رياض الصالحين", Author: "Imam an-Nawawi", Publisher: "Darussalam", Price: "45.00", InStock: true},
	{ID: "bk-hisn", Title: "Fortress of the Muslim", TitleAr: "حصن المسلم", Author: "Said al-Qahtani", Publisher: "Darussalam", Price: "12.00", InStock: true},
	{ID: "bk-bukhari", Title: "Sahih al-Bukhari", TitleAr: "صحيح البخاري", Author: "Imam al-Bukhari", Publisher: "Dar Ibn Kathir", Price: "150.00", InStock: true},
	{ID: "bk-arbaeen", Title: "The Forty Hadith", TitleAr: "الأربعون النووية", Author: "Imam an-Nawawi", Publisher: "Dar al-Minhaj", Price: "18.50", InStock: true},
	{ID: "bk-sirah", Title: "The Sealed Nectar", TitleAr: "الرحيق المختوم", Author: "Safiur-Rahman al-Mubarakpuri", Publisher: "Darussalam", Price: "55.00", InStock: false},
}

// Apply upserts a small bilingual catalog for manual testing. Safe to re-run.
func Apply(ctx context.Context, w BookWriter) (int, error) {
	for i, s := range books {
		b := domain.Book{
			ID:        s.ID,
			Title:     s.Title,
			TitleAr:   s.TitleAr,
			Author:    s.Author,
			Publisher: s.Publisher,
			Price:     decimal.RequireFromString(s.Price),
			InStock:   s.InStock,
		}
		if _, err := w.Upsert(ctx, b); err != nil {
			return i, fmt.Errorf("upsert book %s: %w", s.ID, err)
		}
	}
	return len(books), nil
}
