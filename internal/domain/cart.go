package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// OwnerKind tags who owns a cart.
type OwnerKind int

const (
	OwnerAnonymous OwnerKind = iota
	OwnerAuthenticated
)

func (k OwnerKind) String() string {
	if k == OwnerAuthenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Owner is either Anonymous or Authenticated(UserID).
type Owner struct {
	Kind   OwnerKind `json:"kind"`
	UserID string    `json:"userId,omitempty"`
}

func Anonymous() Owner { return Owner{Kind: OwnerAnonymous} }

func Authenticated(userID string) Owner {
	return Owner{Kind: OwnerAuthenticated, UserID: userID}
}

func (o Owner) IsAuthenticated() bool { return o.Kind == OwnerAuthenticated }

// MaxLineQuantity bounds the quantity of a single cart line.
const MaxLineQuantity = 999

// UnknownTitle is shown for lines whose book can no longer be resolved in the catalog.
const UnknownTitle = "Unavailable title / عنوان غير متوفر"

// CartLine is one book in a cart. Only BookID and Quantity are authoritative; the
// rest is carried for rendering.
type CartLine struct {
	BookID        string          `json:"bookId"`
	Quantity      int             `json:"quantity"`
	PriceSnapshot decimal.Decimal `json:"priceSnapshot"`
	Title         string          `json:"title,omitempty"`
	TitleAr       string          `json:"titleAr,omitempty"`
	Author        string          `json:"author,omitempty"`
	Publisher     string          `json:"publisher,omitempty"`
	Image         string          `json:"image,omitempty"`
	InStock       bool            `json:"inStock"`
}

// LineTotal is the snapshot price times quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.PriceSnapshot.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an observable view of a session's cart.
type Cart struct {
	Owner         Owner           `json:"owner"`
	Lines         []CartLine      `json:"lines"`
	TotalQuantity int             `json:"totalQuantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}

// NewCart builds a Cart from lines keyed by book id, ordering lines by BookID.
func NewCart(owner Owner, lines map[string]CartLine) *Cart {
	out := &Cart{Owner: owner, Lines: make([]CartLine, 0, len(lines)), Subtotal: decimal.Zero}
	for _, l := range lines {
		out.Lines = append(out.Lines, l)
		out.TotalQuantity += l.Quantity
		out.Subtotal = out.Subtotal.Add(l.LineTotal())
	}
	sort.Slice(out.Lines, func(i, j int) bool { return out.Lines[i].BookID < out.Lines[j].BookID })
	return out
}

// IndexLines collapses a line list into a map. Repeated ids add their quantities.
func IndexLines(lines []CartLine) map[string]CartLine {
	out := make(map[string]CartLine, len(lines))
	for _, l := range lines {
		if existing, ok := out[l.BookID]; ok {
			existing.Quantity += l.Quantity
			out[l.BookID] = existing
			continue
		}
		out[l.BookID] = l
	}
	return out
}
