package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"maktaba-storefront/internal/domain"
	"maktaba-storefront/internal/localcart"
	"maktaba-storefront/internal/logging"
	"maktaba-storefront/internal/metrics"
	bookrepo "maktaba-storefront/internal/repository/book"
	cartrepo "maktaba-storefront/internal/repository/cart"
)

// Deps are the collaborators an Engine works against.
type Deps struct {
	Remote  cartrepo.Repository
	Local   localcart.Store
	Catalog bookrepo.Resolver
	Logger  *slog.Logger
}

// Engine owns the cart of one session. Anonymous carts live in the local store,
// authenticated carts in the remote store; exactly one of them is authoritative
// at any time and the engine keeps a cache of its lines.
//
// Lock order: gate, then localMu or a key lock, then mu.
type Engine struct {
	sessionID string
	remote    cartrepo.Repository
	local     localcart.Store
	catalog   bookrepo.Resolver
	logger    *slog.Logger

	// gate is held exclusively by merge, clear, refresh and sign-out, and shared
	// by line mutations, so a mutation never straddles an owner change.
	gate    sync.RWMutex
	localMu sync.Mutex
	keys    *keyedMutex

	mu    sync.RWMutex
	owner domain.Owner
	lines map[string]domain.CartLine
}

// MergeResult reports which anonymous lines reached the remote cart at sign-in.
type MergeResult struct {
	Merged []string `json:"merged"`
	Failed []string `json:"failed"`
	// Rejected lines can never merge (bad quantity, or the sum would pass
	// domain.MaxLineQuantity) and are dropped from the local cart.
	Rejected []string `json:"rejected,omitempty"`
	// LocalUnavailable is set when the local cart could not be read at all; it
	// is left untouched for the next sign-in.
	LocalUnavailable bool `json:"localUnavailable,omitempty"`
}

// NewEngine returns an empty anonymous cart for sessionID.
func NewEngine(sessionID string, deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{
		sessionID: sessionID,
		remote:    deps.Remote,
		local:     deps.Local,
		catalog:   deps.Catalog,
		logger:    logger.With("session_id", sessionID),
		keys:      newKeyedMutex(),
		owner:     domain.Anonymous(),
		lines:     make(map[string]domain.CartLine),
	}
}

// Owner reports the current ownership mode.
func (e *Engine) Owner() domain.Owner {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.owner
}

// Cached returns the cached cart without touching any store.
func (e *Engine) Cached() *domain.Cart {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return domain.NewCart(e.owner, e.lines)
}

// AddItem adds qty copies of item, collapsing into an existing line for the same book.
func (e *Engine) AddItem(ctx context.Context, item domain.CartLine, qty int) (*domain.Cart, error) {
	item.BookID = strings.TrimSpace(item.BookID)
	if item.BookID == "" {
		return nil, fmt.Errorf("%w: book id required", domain.ErrValidation)
	}
	if qty < 1 || qty > domain.MaxLineQuantity {
		return nil, fmt.Errorf("%w: quantity must be between 1 and %d, got %d", domain.ErrValidation, domain.MaxLineQuantity, qty)
	}

	e.gate.RLock()
	defer e.gate.RUnlock()

	owner := e.Owner()
	switch owner.Kind {
	case domain.OwnerAuthenticated:
		unlock := e.keys.Lock(owner.UserID + "|" + item.BookID)
		defer unlock()

		line, err := e.remote.IncrementLine(ctx, owner.UserID, item, qty)
		if err != nil {
			return nil, e.failed("add", owner, err, "book_id", item.BookID, "quantity", qty)
		}
		line.InStock = item.InStock
		e.mu.Lock()
		e.lines[line.BookID] = *line
		e.mu.Unlock()
	default:
		e.localMu.Lock()
		defer e.localMu.Unlock()

		lines, err := e.local.Read(ctx, e.sessionID)
		if err != nil {
			return nil, e.failed("add", owner, err, "book_id", item.BookID)
		}
		idx := domain.IndexLines(lines)
		if existing, ok := idx[item.BookID]; ok {
			if existing.Quantity > domain.MaxLineQuantity-qty {
				return nil, e.failed("add", owner, exceedsMax(item.BookID), "book_id", item.BookID, "quantity", qty)
			}
			existing.Quantity += qty
			idx[item.BookID] = existing
		} else {
			item.Quantity = qty
			idx[item.BookID] = item
		}
		if err := e.local.Write(ctx, e.sessionID, flatten(idx)); err != nil {
			return nil, e.failed("add", owner, err, "book_id", item.BookID)
		}
		e.replaceLines(idx)
	}

	e.succeeded("add", owner)
	return e.Cached(), nil
}

// RemoveItem deletes the line for bookID whatever its quantity. Removing a book
// that is not in the cart is a no-op.
func (e *Engine) RemoveItem(ctx context.Context, bookID string) (*domain.Cart, error) {
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		return nil, fmt.Errorf("%w: book id required", domain.ErrValidation)
	}

	e.gate.RLock()
	defer e.gate.RUnlock()

	owner := e.Owner()
	switch owner.Kind {
	case domain.OwnerAuthenticated:
		unlock := e.keys.Lock(owner.UserID + "|" + bookID)
		defer unlock()

		if err := e.remote.DeleteLine(ctx, owner.UserID, bookID); err != nil {
			return nil, e.failed("remove", owner, err, "book_id", bookID)
		}
		e.mu.Lock()
		delete(e.lines, bookID)
		e.mu.Unlock()
	default:
		e.localMu.Lock()
		defer e.localMu.Unlock()

		lines, err := e.local.Read(ctx, e.sessionID)
		if err != nil {
			return nil, e.failed("remove", owner, err, "book_id", bookID)
		}
		idx := domain.IndexLines(lines)
		if _, ok := idx[bookID]; ok {
			delete(idx, bookID)
			if err := e.local.Write(ctx, e.sessionID, flatten(idx)); err != nil {
				return nil, e.failed("remove", owner, err, "book_id", bookID)
			}
		}
		e.replaceLines(idx)
	}

	e.succeeded("remove", owner)
	return e.Cached(), nil
}

// UpdateQuantity overwrites the quantity of an existing line. A quantity of zero
// or less removes the line; a book that is not in the cart is a validation error.
func (e *Engine) UpdateQuantity(ctx context.Context, bookID string, qty int) (*domain.Cart, error) {
	if qty <= 0 {
		return e.RemoveItem(ctx, bookID)
	}
	if qty > domain.MaxLineQuantity {
		return nil, fmt.Errorf("%w: quantity must be at most %d, got %d", domain.ErrValidation, domain.MaxLineQuantity, qty)
	}
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		return nil, fmt.Errorf("%w: book id required", domain.ErrValidation)
	}

	e.gate.RLock()
	defer e.gate.RUnlock()

	owner := e.Owner()
	switch owner.Kind {
	case domain.OwnerAuthenticated:
		unlock := e.keys.Lock(owner.UserID + "|" + bookID)
		defer unlock()

		line, err := e.remote.UpdateQuantity(ctx, owner.UserID, bookID, qty)
		if errors.Is(err, domain.ErrNotFound) {
			err = fmt.Errorf("%w: book %s is not in the cart", domain.ErrValidation, bookID)
		}
		if err != nil {
			return nil, e.failed("update", owner, err, "book_id", bookID)
		}
		e.mu.Lock()
		if cached, ok := e.lines[bookID]; ok {
			line.InStock = cached.InStock
		}
		e.lines[bookID] = *line
		e.mu.Unlock()
	default:
		e.localMu.Lock()
		defer e.localMu.Unlock()

		lines, err := e.local.Read(ctx, e.sessionID)
		if err != nil {
			return nil, e.failed("update", owner, err, "book_id", bookID)
		}
		idx := domain.IndexLines(lines)
		existing, ok := idx[bookID]
		if !ok {
			return nil, e.failed("update", owner, fmt.Errorf("%w: book %s is not in the cart", domain.ErrValidation, bookID))
		}
		existing.Quantity = qty
		idx[bookID] = existing
		if err := e.local.Write(ctx, e.sessionID, flatten(idx)); err != nil {
			return nil, e.failed("update", owner, err, "book_id", bookID)
		}
		e.replaceLines(idx)
	}

	e.succeeded("update", owner)
	return e.Cached(), nil
}

// Clear empties the authoritative store and the cache. Called after an order is placed.
func (e *Engine) Clear(ctx context.Context) (*domain.Cart, error) {
	e.gate.Lock()
	defer e.gate.Unlock()

	owner := e.Owner()
	var err error
	if owner.IsAuthenticated() {
		err = e.remote.DeleteAll(ctx, owner.UserID)
	} else {
		err = e.local.Clear(ctx, e.sessionID)
	}
	if err != nil {
		return nil, e.failed("clear", owner, err)
	}
	e.replaceLines(nil)
	e.succeeded("clear", owner)
	return e.Cached(), nil
}

// MergeOnSignIn folds the anonymous cart into userID's remote cart and makes the
// remote cart authoritative. Quantities add up per book. A line that fails to
// merge is logged, kept in local storage and retried at the next sign-in; lines
// that merged or were rejected are removed from local storage.
func (e *Engine) MergeOnSignIn(ctx context.Context, userID string) (*domain.Cart, MergeResult, error) {
	var result MergeResult
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, result, fmt.Errorf("%w: user id required", domain.ErrValidation)
	}

	e.gate.Lock()
	defer e.gate.Unlock()

	owner := e.Owner()
	if owner.IsAuthenticated() {
		if owner.UserID != userID {
			return nil, result, fmt.Errorf("%w: session already signed in as another user", domain.ErrValidation)
		}
		cart, err := e.loadRemote(ctx, userID)
		return cart, result, err
	}

	e.localMu.Lock()
	defer e.localMu.Unlock()

	local, err := e.local.Read(ctx, e.sessionID)
	if err != nil {
		e.logger.Warn("cart merge: local cart unreadable, keeping it for next sign-in", "user_id", userID, "error", err)
		result.LocalUnavailable = true
	}

	var pending []domain.CartLine
	for _, line := range flatten(domain.IndexLines(local)) {
		if line.Quantity < 1 || line.Quantity > domain.MaxLineQuantity {
			e.logger.Warn("cart merge: line rejected", "user_id", userID, "book_id", line.BookID, "quantity", line.Quantity)
			metrics.MergeLines.WithLabelValues("rejected").Inc()
			result.Rejected = append(result.Rejected, line.BookID)
			continue
		}
		_, err := e.remote.IncrementLine(ctx, userID, line, line.Quantity)
		if errors.Is(err, domain.ErrValidation) {
			e.logger.Warn("cart merge: line rejected", "user_id", userID, "book_id", line.BookID, "quantity", line.Quantity, "error", err)
			metrics.MergeLines.WithLabelValues("rejected").Inc()
			result.Rejected = append(result.Rejected, line.BookID)
			continue
		}
		if err != nil {
			e.logger.Warn("cart merge: line skipped", "user_id", userID, "book_id", line.BookID, "quantity", line.Quantity, "error", err)
			metrics.MergeLines.WithLabelValues("failed").Inc()
			result.Failed = append(result.Failed, line.BookID)
			pending = append(pending, line)
			continue
		}
		metrics.MergeLines.WithLabelValues("merged").Inc()
		result.Merged = append(result.Merged, line.BookID)
	}

	if !result.LocalUnavailable {
		var werr error
		if len(pending) == 0 {
			werr = e.local.Clear(ctx, e.sessionID)
		} else {
			werr = e.local.Write(ctx, e.sessionID, pending)
		}
		if werr != nil {
			e.logger.Error("cart merge: local cart not trimmed, merged lines may be merged again",
				"user_id", userID, "merged", result.Merged, "error", werr)
		}
	}

	e.mu.Lock()
	e.owner = domain.Authenticated(userID)
	e.lines = make(map[string]domain.CartLine)
	e.mu.Unlock()

	e.logger.Info("cart merge: signed in", "user_id", userID,
		"merged", len(result.Merged), "failed", len(result.Failed), "rejected", len(result.Rejected))
	cart, err := e.loadRemote(ctx, userID)
	return cart, result, err
}

// RefreshFromRemote replaces the cache with userID's remote cart.
func (e *Engine) RefreshFromRemote(ctx context.Context, userID string) (*domain.Cart, error) {
	e.gate.Lock()
	defer e.gate.Unlock()

	owner := e.Owner()
	if !owner.IsAuthenticated() || owner.UserID != userID {
		return nil, fmt.Errorf("%w: cart is not owned by user %s", domain.ErrValidation, userID)
	}
	return e.loadRemote(ctx, userID)
}

// SignOut returns the engine to anonymous mode with an empty cache. Local
// storage is left alone, so lines that failed to merge become the anonymous cart again.
func (e *Engine) SignOut(_ context.Context) *domain.Cart {
	e.gate.Lock()
	defer e.gate.Unlock()

	e.mu.Lock()
	prev := e.owner
	e.owner = domain.Anonymous()
	e.lines = make(map[string]domain.CartLine)
	e.mu.Unlock()

	if prev.IsAuthenticated() {
		e.logger.Info("cart: signed out", "user_id", prev.UserID)
	}
	return e.Cached()
}

// Snapshot reads the cart from the authoritative store only and refreshes the cache.
func (e *Engine) Snapshot(ctx context.Context) (*domain.Cart, error) {
	e.gate.RLock()
	defer e.gate.RUnlock()

	owner := e.Owner()
	if owner.IsAuthenticated() {
		return e.loadRemote(ctx, owner.UserID)
	}

	e.localMu.Lock()
	defer e.localMu.Unlock()
	lines, err := e.local.Read(ctx, e.sessionID)
	if err != nil {
		return nil, err
	}
	e.replaceLines(domain.IndexLines(lines))
	return e.Cached(), nil
}

// Line returns the line for bookID from the authoritative store, or domain.ErrNotFound.
func (e *Engine) Line(ctx context.Context, bookID string) (*domain.CartLine, error) {
	e.gate.RLock()
	defer e.gate.RUnlock()

	owner := e.Owner()
	if owner.IsAuthenticated() {
		return e.remote.GetLine(ctx, owner.UserID, bookID)
	}
	e.localMu.Lock()
	defer e.localMu.Unlock()
	lines, err := e.local.Read(ctx, e.sessionID)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		if l.BookID == bookID {
			return &l, nil
		}
	}
	return nil, domain.ErrNotFound
}

// loadRemote must be called with gate held.
func (e *Engine) loadRemote(ctx context.Context, userID string) (*domain.Cart, error) {
	lines, err := e.remote.ListLines(ctx, userID)
	if err != nil {
		e.logger.Error("cart: remote list failed", "user_id", userID, "error", err)
		return nil, err
	}
	idx := domain.IndexLines(lines)
	e.hydrate(ctx, idx)
	e.replaceLines(idx)
	return e.Cached(), nil
}

// hydrate fills display fields from the catalog. A book the catalog does not know
// gets domain.UnknownTitle; a failed catalog call keeps the stored fields.
func (e *Engine) hydrate(ctx context.Context, idx map[string]domain.CartLine) {
	if len(idx) == 0 {
		return
	}
	var books map[string]domain.Book
	if e.catalog != nil {
		ids := make([]string, 0, len(idx))
		for id := range idx {
			ids = append(ids, id)
		}
		var err error
		books, err = e.catalog.ResolveBooks(ctx, ids)
		if err != nil {
			e.logger.Warn("cart: catalog lookup failed, using stored display fields", "count", len(ids), "error", err)
			books = nil
		}
	}

	for id, line := range idx {
		b, ok := books[id]
		switch {
		case ok:
			line.Title = b.Title
			line.TitleAr = b.TitleAr
			line.Author = b.Author
			line.Publisher = b.Publisher
			line.Image = b.Image
			line.InStock = b.InStock
			if line.PriceSnapshot.IsZero() {
				line.PriceSnapshot = b.Price
			}
		case books != nil || line.Title == "":
			line.Title = domain.UnknownTitle
			line.InStock = false
		}
		idx[id] = line
	}
}

func (e *Engine) replaceLines(idx map[string]domain.CartLine) {
	if idx == nil {
		idx = make(map[string]domain.CartLine)
	}
	e.mu.Lock()
	e.lines = idx
	e.mu.Unlock()
}

func (e *Engine) failed(op string, owner domain.Owner, err error, attrs ...any) error {
	metrics.CartMutations.WithLabelValues(op, owner.Kind.String(), "error").Inc()
	attrs = append(attrs, "op", op, "mode", owner.Kind.String(), "error", err)
	if owner.IsAuthenticated() {
		attrs = append(attrs, "user_id", owner.UserID)
	}
	if errors.Is(err, domain.ErrValidation) {
		e.logger.Info("cart: rejected", attrs...)
	} else {
		e.logger.Error("cart: mutation failed", attrs...)
	}
	return err
}

func (e *Engine) succeeded(op string, owner domain.Owner) {
	metrics.CartMutations.WithLabelValues(op, owner.Kind.String(), "ok").Inc()
}

func exceedsMax(bookID string) error {
	return fmt.Errorf("%w: book %s would exceed %d copies", domain.ErrValidation, bookID, domain.MaxLineQuantity)
}

func flatten(idx map[string]domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, 0, len(idx))
	for _, l := range idx {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookID < out[j].BookID })
	return out
}
