// Package main provides the lightweight entry point for the tumor response
// derivation server. This version requires no external database - run output
// is persisted to a local SQLite file.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/recist-derivation-server/internal/api"
	"github.com/recist-derivation-server/internal/config"
	"github.com/recist-derivation-server/internal/results"
	"github.com/recist-derivation-server/internal/service"
)

func main() {
	// Load lightweight configuration
	cfg := config.LoadLiteConfig()
	manager := config.NewLiteManager(cfg)
	if err := manager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if err := cfg.EnsureDataDir(); err != nil {
		logger.WithError(err).Fatal("Failed to create data directory")
	}
	logger.WithField("data_dir", cfg.DataDir).Info("Starting tumor response derivation server (lite)")

	// SQLite-backed run storage
	store, err := results.NewSQLiteStore(cfg.ResultsDBPath())
	if err != nil {
		logger.WithError(err).Fatal("Failed to open results store")
	}
	defer store.Close()

	server := api.NewServer(
		manager,
		service.NewDeriver(logger),
		results.NewRunView(store),
		results.NewResponseView(store),
		store,
		nil,
		logger,
	)

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}
