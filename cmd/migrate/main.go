package main

import (
	"context"
	"os"

	"maktaba-storefront/internal/config"
	"maktaba-storefront/internal/db"
	"maktaba-storefront/internal/logging"
	"maktaba-storefront/internal/migrate"
)

func main() {
	cfg := config.FromEnv()
	logger := logging.New("migrate", "", cfg.LogLevel)

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		logger.Error("connect db", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := migrate.Apply(ctx, pool, logger); err != nil {
		logger.Error("apply migrations", "error", err)
		os.Exit(1)
	}

	logger.Info("migrations applied")
}
