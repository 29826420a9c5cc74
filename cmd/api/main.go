package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"maktaba-storefront/internal/config"
	"maktaba-storefront/internal/db"
	"maktaba-storefront/internal/httpserver"
	"maktaba-storefront/internal/identity"
	"maktaba-storefront/internal/localcart"
	"maktaba-storefront/internal/logging"
	"maktaba-storefront/internal/orderqueue"
	bookrepo "maktaba-storefront/internal/repository/book"
	cartrepo "maktaba-storefront/internal/repository/cart"
	tokenrepo "maktaba-storefront/internal/repository/token"
	cartsvc "maktaba-storefront/internal/service/cart"
	"maktaba-storefront/internal/service/checkout"
	"maktaba-storefront/internal/service/session"
)

func main() {
	cfg := config.FromEnv()
	logger := logging.New("api", cfg.LogFile, cfg.LogLevel)

	if cfg.JWTSecret == "" {
		logger.Error("MAKTABA_JWT_SECRET is required")
		os.Exit(1)
	}

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		logger.Error("connect to db", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()

	ready := map[string]httpserver.Pinger{"postgres": dbpool}

	var local localcart.Store
	rdb, err := db.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, logger)
	switch {
	case err != nil:
		logger.Error("connect to redis", "error", err)
		os.Exit(1)
	case rdb == nil:
		logger.Warn("MAKTABA_REDIS_ADDR not set, anonymous carts are kept in process memory")
		local = localcart.NewMemory()
	default:
		defer rdb.Close()
		local = localcart.NewRedis(rdb, cfg.LocalCartTTL, logger.With("module", "localcart"))
		ready["redis"] = httpserver.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	var placer checkout.Placer
	if cfg.AMQPURL == "" {
		logger.Warn("MAKTABA_AMQP_URL not set, orders are only logged")
		placer = orderqueue.NewLog(logger)
	} else {
		ch, closeAMQP, err := orderqueue.Dial(cfg.AMQPURL)
		if err != nil {
			logger.Error("connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer closeAMQP()
		rabbit, err := orderqueue.NewRabbit(ch, logger.With("module", "orderqueue"))
		if err != nil {
			logger.Error("init order publisher", "error", err)
			os.Exit(1)
		}
		placer = rabbit
	}

	books := bookrepo.NewPostgres(dbpool, logger)
	catalog := bookrepo.NewCached(books, cfg.CatalogCacheSize, cfg.CatalogCacheTTL)
	carts := cartsvc.NewSessions(cartsvc.Deps{
		Remote:  cartrepo.NewPostgres(dbpool, logger),
		Local:   local,
		Catalog: catalog,
		Logger:  logger.With("module", "cart"),
	}, cfg.SessionCacheSize, cfg.SessionTTL)

	sessions := session.New(tokenrepo.NewPostgres(dbpool, logger), cfg.SessionTTL, logger)
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go sessions.RunJanitor(janitorCtx, 10*time.Minute)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		Sessions:    sessions,
		Carts:       carts,
		Identity:    identity.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		Catalog:     catalog,
		Books:       books,
		Checkout:    checkout.New(catalog, placer, cfg.Currency, logger.With("module", "checkout")),
		Ready:       ready,
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		logger.Error("init server", "error", err)
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	} else {
		logger.Info("server stopped")
	}
}
