package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"maktaba-storefront/internal/domain"
	cartsvc "maktaba-storefront/internal/service/cart"
	"maktaba-storefront/internal/service/session"
)

const storeTimeout = 3 * time.Second

type handlers struct {
	deps Deps
}

type sessionResponse struct {
	SessionToken string `json:"sessionToken"`
	ExpiresIn    int    `json:"expiresIn"`
}

type addItemRequest struct {
	BookID   string `json:"bookId" binding:"required"`
	Quantity *int   `json:"quantity"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type cartResponse struct {
	*domain.Cart
	Merge *cartsvc.MergeResult `json:"merge,omitempty"`
}

func (h *handlers) createSession(c *gin.Context) {
	issued, err := h.deps.Sessions.Issue(c.Request.Context())
	if err != nil {
		abortDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{
		SessionToken: issued.Token,
		ExpiresIn:    h.deps.Sessions.TTLSeconds(),
	})
}

// endSession revokes the session token and forgets its engine. Stored cart
// lines are left to expire with the store TTL.
func (h *handlers) endSession(c *gin.Context) {
	token := strings.TrimSpace(c.GetHeader(sessionHeader))
	if token == "" {
		abortError(c, http.StatusUnauthorized, "missing_session", "missing "+sessionHeader+" header")
		return
	}
	ctx := c.Request.Context()
	sessionID, err := h.deps.Sessions.LookupByToken(ctx, token)
	if errors.Is(err, session.ErrInvalidToken) {
		c.Status(http.StatusNoContent)
		return
	}
	if err != nil {
		abortDomainError(c, err)
		return
	}
	if err := h.deps.Sessions.Revoke(ctx, token); err != nil {
		abortDomainError(c, err)
		return
	}
	h.deps.Carts.Drop(sessionID)
	c.Status(http.StatusNoContent)
}

func (h *handlers) listBooks(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()
	books, err := h.deps.Books.List(ctx)
	if err != nil {
		abortDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": books, "count": len(books)})
}

func (h *handlers) getCart(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()
	cart, err := engineFrom(c).Snapshot(ctx)
	h.respond(c, http.StatusOK, cart, err)
}

func (h *handlers) getItem(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()
	line, err := engineFrom(c).Line(ctx, strings.TrimSpace(c.Param("bookId")))
	if err != nil {
		abortDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, line)
}

func (h *handlers) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "bad_request", "bookId is required")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	bookID := strings.TrimSpace(req.BookID)

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	books, err := h.deps.Catalog.ResolveBooks(ctx, []string{bookID})
	if err != nil {
		abortDomainError(c, err)
		return
	}
	b, ok := books[bookID]
	if !ok {
		abortDomainError(c, fmt.Errorf("%w: book %s", domain.ErrNotFound, bookID))
		return
	}
	item := domain.CartLine{
		BookID:        b.ID,
		PriceSnapshot: b.Price,
		Title:         b.Title,
		TitleAr:       b.TitleAr,
		Author:        b.Author,
		Publisher:     b.Publisher,
		Image:         b.Image,
		InStock:       b.InStock,
	}
	cart, err := engineFrom(c).AddItem(ctx, item, qty)
	h.respond(c, http.StatusOK, cart, err)
}

func (h *handlers) updateItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "bad_request", "quantity is required")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()
	cart, err := engineFrom(c).UpdateQuantity(ctx, c.Param("bookId"), *req.Quantity)
	h.respond(c, http.StatusOK, cart, err)
}

func (h *handlers) removeItem(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()
	cart, err := engineFrom(c).RemoveItem(ctx, c.Param("bookId"))
	h.respond(c, http.StatusOK, cart, err)
}

func (h *handlers) clearCart(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()
	cart, err := engineFrom(c).Clear(ctx)
	h.respond(c, http.StatusOK, cart, err)
}

func (h *handlers) refreshCart(c *gin.Context) {
	e := engineFrom(c)
	owner := e.Owner()
	if !owner.IsAuthenticated() {
		abortError(c, http.StatusUnauthorized, "sign_in_required", "refresh needs a signed-in user")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()
	cart, err := e.RefreshFromRemote(ctx, owner.UserID)
	h.respond(c, http.StatusOK, cart, err)
}

func (h *handlers) checkout(c *gin.Context) {
	e := engineFrom(c)
	if !e.Owner().IsAuthenticated() {
		abortError(c, http.StatusUnauthorized, "sign_in_required", "checkout needs a signed-in user")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*storeTimeout)
	defer cancel()
	order, err := h.deps.Checkout.Checkout(ctx, e)
	if err != nil {
		abortDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *handlers) respond(c *gin.Context, status int, cart *domain.Cart, err error) {
	if err != nil {
		abortDomainError(c, err)
		return
	}
	c.JSON(status, cartResponse{Cart: cart, Merge: mergeFrom(c)})
}
