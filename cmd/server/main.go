// Package main provides the entry point for the tumor response derivation
// server backed by PostgreSQL.
package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/recist-derivation-server/internal/api"
	"github.com/recist-derivation-server/internal/config"
	"github.com/recist-derivation-server/internal/database"
	"github.com/recist-derivation-server/internal/domain"
	"github.com/recist-derivation-server/internal/repository"
	"github.com/recist-derivation-server/internal/results"
	"github.com/recist-derivation-server/internal/service"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Connect to Postgres
	db, err := database.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// Run migrations
	migrationsPath := os.Getenv("RECIST_MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}
	runner, err := database.NewMigrationRunner(databaseURL(cfg.Database), migrationsPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create migration runner")
	}
	if err := runner.Up(); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}
	runner.Close()

	// Wire the pipeline and persistence
	deriver := service.NewDeriver(logger)
	runs := repository.NewRunRepository(db.Pool, logger)
	responses := repository.NewResponseRepository(db.Pool, logger)

	store, err := results.NewPostgresStoreFromURL(databaseURL(cfg.Database))
	if err != nil {
		logger.WithError(err).Fatal("Failed to open results store")
	}
	defer store.Close()

	server := api.NewServer(configManager, deriver, runs, responses, store, db, logger)

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting tumor response derivation server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// newLogger builds the process logger from configuration.
func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return logger
}

// databaseURL formats the migration/lib-pq connection URL.
func databaseURL(db domain.DatabaseConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(db.Username),
		url.QueryEscape(db.Password),
		db.Host, db.Port, db.Database, db.SSLMode,
	)
}
