package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sippey/fog-city-dispatch-sub000/internal/api"
	"github.com/sippey/fog-city-dispatch-sub000/internal/cards"
	"github.com/sippey/fog-city-dispatch-sub000/internal/config"
	"github.com/sippey/fog-city-dispatch-sub000/internal/db"
	"github.com/sippey/fog-city-dispatch-sub000/internal/logging"
	mw "github.com/sippey/fog-city-dispatch-sub000/internal/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Start the HTTP API. Settings come from the environment (PORT, DB_PATH, CATALOG_PATH, GAME_CONFIG, JWT_SECRET, TRUST_PROXY, ...).`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadServer()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	gameCfg, err := config.LoadGame(cfg.GameConfigPath)
	if err != nil {
		return err
	}
	catalog, err := cards.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}
	logger.Info("catalog loaded", "path", cfg.CatalogPath, "cards", len(catalog))
	for _, arc := range gameCfg.ArcMismatches(catalog) {
		logger.Warn("story arc size does not match catalog; it may never complete", "arc", arc)
	}

	database, err := db.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	secret := cfg.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}

	server := api.NewServer(database, api.Options{
		Catalog:        catalog,
		Game:           gameCfg,
		Tokens:         mw.NewTokenIssuer(secret, cfg.TokenTTL),
		Logger:         logger,
		TickInterval:   cfg.TickInterval,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		TrustProxy:     cfg.TrustProxy,
		MaxBodyBytes:   cfg.MaxBodyBytes,
	})
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("received shutdown signal, gracefully stopping")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
