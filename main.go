// Package main is the entry point for the travel standards service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/minqi/travel-standards/internal/api"
	"gitlab.com/minqi/travel-standards/internal/config"
	"gitlab.com/minqi/travel-standards/internal/database"
	"gitlab.com/minqi/travel-standards/internal/exchange"
	"gitlab.com/minqi/travel-standards/internal/logger"
	"gitlab.com/minqi/travel-standards/internal/policy"
	"gitlab.com/minqi/travel-standards/internal/repository"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("travel-standards %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.SetLevel(cfg.LogLevel)
	if cfg.LogJSON {
		logger.SetJSON()
	}
	logger.InitHashSalt()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	if err := database.SeedExpenseItems(ctx, pool); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to seed expense items")
	}

	if err := database.SeedLocations(ctx, pool); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to seed locations")
	}

	logger.Log.Info().Msg("Database initialized successfully")

	standards := repository.NewStandardRepository(pool)
	locations := repository.NewLocationRepository(pool)
	travelers := repository.NewTravelerRepository(pool)

	rates := exchange.NewProvider(
		exchange.NewHTTPSource(cfg.RatesAPIBaseURL, cfg.RatesAPITimeout),
		cfg.RateCacheTTL,
	)

	engine := policy.NewEngine(standards, rates, locations)

	handlers := api.NewHandlers(engine, travelers, standards, rates, cfg.DefaultCurrency)
	server := api.NewServer(cfg.ListenAddr, handlers)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Log.Info().Msg("Shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error().Err(err).Msg("Graceful shutdown failed")
		}
		cancel()
	}()

	if err := server.Start(); err != nil {
		logger.Log.Fatal().Err(err).Msg("HTTP server failed")
	}
}
