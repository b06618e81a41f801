package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/propertysearch/backend/internal/adapters/database"
	"github.com/zatekoja/propertysearch/backend/internal/api/handlers"
	"github.com/zatekoja/propertysearch/backend/internal/api/routes"
	"github.com/zatekoja/propertysearch/backend/internal/application/services"
	"github.com/zatekoja/propertysearch/backend/internal/domain/entities"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/observability"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized successfully")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	// The pool opens on first use so a missing database only fails the
	// requests that need it.
	pgClient := postgres.NewClient(&cfg.Database, cfg.OutboundTimeout)
	defer pgClient.Close()
	if !cfg.Database.HasCredentials() {
		log.Warn().Msg("DB_PASSWORD is not set; database backed modes may fail")
	}

	deps := connectDependencies(ctx, cfg, metrics)
	defer deps.Close()

	historyService := services.NewHistoryService(database.NewHistoryAdapter(pgClient, metrics))

	defaultMode, ok := entities.ParseSearchMode(cfg.Search.DefaultMode)
	if !ok {
		log.Warn().Str("mode", cfg.Search.DefaultMode).Msg("Unknown default search mode, using data_agent")
		defaultMode = entities.SearchModeDataAgent
	}

	searchService := services.NewSearchService(
		services.SearchBackends{
			Listings:      database.NewListingAdapter(pgClient, metrics),
			Index:         deps.Index,
			TextEmbedder:  deps.TextEmbedder,
			ImageEmbedder: deps.ImageEmbedder,
			Agent:         deps.Agent,
			History:       historyService,
		},
		services.SearchOptions{
			DefaultMode:   defaultMode,
			DefaultWeight: cfg.Search.DefaultWeight,
			NLConfigID:    cfg.Search.NLConfigID,
			Timeout:       cfg.OutboundTimeout,
		},
		metrics,
	)
	imageService := services.NewImageService(deps.Store, cfg.Storage.AllowedBucket, cfg.OutboundTimeout)

	router := routes.NewRouter(
		handlers.NewSearchHandler(searchService),
		handlers.NewImageHandler(imageService),
		handlers.NewHistoryHandler(historyService),
		cfg.CORS.AllowedOrigins,
		metrics,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.OutboundTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	log.Info().Msg("Server stopped")
}
