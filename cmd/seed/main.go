package main

import (
	"context"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"fundops/backend/internal/config"
	"fundops/backend/internal/logging"
	"fundops/backend/internal/repository"
	"fundops/backend/internal/services"
)

func main() {
	ctx := context.Background()

	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	logger = logger.With("seed_run", uuid.NewString())

	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	if err := repository.Migrate(pool); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}

	store := repository.NewPostgresStore(pool)
	templates := services.NewTemplateService(store, logger, nil)

	if _, err := seed(ctx, store, templates, logger); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	logger.Info("Seeding complete!")
}
