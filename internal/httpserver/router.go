package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"maktaba-storefront/internal/domain"
	"maktaba-storefront/internal/logging"
	"maktaba-storefront/internal/metrics"
	bookrepo "maktaba-storefront/internal/repository/book"
	cartsvc "maktaba-storefront/internal/service/cart"
	"maktaba-storefront/internal/service/checkout"
	"maktaba-storefront/internal/service/session"
)

type SessionService interface {
	Issue(ctx context.Context) (session.Issued, error)
	LookupByToken(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
	TTLSeconds() int
}

type CartSessions interface {
	Acquire(sessionID string) (*cartsvc.Engine, func())
	Drop(sessionID string)
}

type TokenVerifier interface {
	Verify(raw string) (string, error)
}

type CheckoutService interface {
	Checkout(ctx context.Context, cart checkout.Cart) (*domain.Order, error)
}

type BookLister interface {
	List(ctx context.Context) ([]domain.Book, error)
}

// Deps are the services the router dispatches to. Books and Checkout are
// optional; their routes are left out when nil.
type Deps struct {
	Sessions    SessionService
	Carts       CartSessions
	Identity    TokenVerifier
	Catalog     bookrepo.Resolver
	Books       BookLister
	Checkout    CheckoutService
	Ready       map[string]Pinger
	CORSOrigins []string
}

// buildRouter wires routes for the API.
func buildRouter(logger *slog.Logger, deps Deps) (*gin.Engine, error) {
	if deps.Sessions == nil || deps.Carts == nil || deps.Identity == nil || deps.Catalog == nil {
		return nil, errors.New("httpserver: sessions, carts, identity and catalog are required")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), logging.Middleware(logger), metrics.Middleware())
	router.Use(cors.New(corsConfig(deps.CORSOrigins)))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Ready))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := &handlers{deps: deps}
	router.POST("/sessions", h.createSession)
	router.DELETE("/sessions", h.endSession)
	if deps.Books != nil {
		router.GET("/books", h.listBooks)
	}

	cart := router.Group("/cart", sessionMiddleware(deps.Sessions, deps.Carts), ownerMiddleware(deps.Identity))
	{
		cart.GET("", h.getCart)
		cart.DELETE("", h.clearCart)
		cart.POST("/items", h.addItem)
		cart.GET("/items/:bookId", h.getItem)
		cart.PUT("/items/:bookId", h.updateItem)
		cart.DELETE("/items/:bookId", h.removeItem)
		cart.POST("/refresh", h.refreshCart)
		if deps.Checkout != nil {
			cart.POST("/checkout", h.checkout)
		}
	}

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", sessionHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
