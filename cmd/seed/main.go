package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"maktaba-storefront/internal/config"
	"maktaba-storefront/internal/db"
	"maktaba-storefront/internal/identity"
	"maktaba-storefront/internal/logging"
	bookrepo "maktaba-storefront/internal/repository/book"
	"maktaba-storefront/internal/seed"
)

func main() {
	var devUser string
	flag.StringVar(&devUser, "dev-user", "", "Print a bearer token for this user id (needs MAKTABA_JWT_SECRET)")
	flag.Parse()

	cfg := config.FromEnv()
	logger := logging.New("seed", "", cfg.LogLevel)

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		logger.Error("connect db", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	n, err := seed.Apply(ctx, bookrepo.NewPostgres(pool, logger))
	if err != nil {
		logger.Error("seed apply", "error", err)
		os.Exit(1)
	}
	logger.Info("seed applied", "books", n)

	if devUser != "" {
		if cfg.JWTSecret == "" {
			logger.Error("dev token requested but MAKTABA_JWT_SECRET is empty")
			os.Exit(1)
		}
		token, err := identity.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer).Sign(devUser, 24*time.Hour)
		if err != nil {
			logger.Error("sign dev token", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
	}
}
