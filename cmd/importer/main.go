package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"maktaba-storefront/internal/config"
	"maktaba-storefront/internal/db"
	"maktaba-storefront/internal/importer"
	"maktaba-storefront/internal/logging"
	bookrepo "maktaba-storefront/internal/repository/book"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to the catalog CSV export")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	logger := logging.New("importer", "", cfg.LogLevel)
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		logger.Error("connect db", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	f, err := os.Open(filePath)
	if err != nil {
		logger.Error("open file", "error", err)
		os.Exit(1)
	}
	defer f.Close()

	start := time.Now()
	count, err := importer.NewCSVImporter(f, bookrepo.NewPostgres(pool, logger)).Run(ctx)
	if err != nil {
		logger.Error("import failed", "imported", count, "error", err)
		os.Exit(1)
	}

	fmt.Printf("Imported %d books in %s\n", count, time.Since(start).Truncate(time.Millisecond))
}
