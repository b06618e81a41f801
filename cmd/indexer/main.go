package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/propertysearch/backend/internal/adapters/database"
	"github.com/zatekoja/propertysearch/backend/internal/adapters/search"
	"github.com/zatekoja/propertysearch/backend/internal/domain/repositories"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/observability"
	"github.com/zatekoja/propertysearch/backend/pkg/config"
)

const pageSize = 500

func main() {
	var reset bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete existing Typesense collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	observability.InitLogger("property-search-indexer", os.Getenv("APP_ENV"))

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	var err error
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatal().Err(err).Str("interval", intervalValue).Msg("Invalid interval")
		}
		if interval <= 0 {
			log.Fatal().Msg("Interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, reset); err != nil {
			log.Error().Err(err).Msg("Reindex failed")
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Info().Dur("next_run_in", interval).Msg("Reindex complete")

		select {
		case <-ctx.Done():
			log.Info().Msg("Reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, reset bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pgClient := postgres.NewClient(&cfg.Database, cfg.OutboundTimeout)
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(ctx, &cfg.Typesense, cfg.OutboundTimeout)
	if err != nil {
		return err
	}

	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		log.Info().Msg("Deleting listings collection before reindex")
		if err := tsClient.DropListings(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to delete collection")
		}
	}

	if err := tsClient.InitSchema(ctx); err != nil {
		return err
	}

	indexed, failed, err := copyListings(ctx, database.NewListingAdapter(pgClient, nil), search.NewTypesenseAdapter(tsClient, nil))
	if err != nil {
		return err
	}
	log.Info().Int("indexed", indexed).Int("failed", failed).Msg("Listings indexed")
	return nil
}

// copyListings pages through the relational store and upserts every
// property into the index. Per-document failures are counted, not fatal.
func copyListings(ctx context.Context, source repositories.ListingRepository, index repositories.ListingSearchRepository) (indexed, failed int, err error) {
	for offset := 0; ; offset += pageSize {
		page, err := source.List(ctx, pageSize, offset)
		if err != nil {
			return indexed, failed, err
		}

		for _, property := range page {
			if property == nil {
				continue
			}
			if err := index.Index(ctx, property); err != nil {
				failed++
				log.Warn().Err(err).Int64("id", property.ID).Msg("Failed to index listing")
				continue
			}
			indexed++
		}

		if len(page) < pageSize {
			return indexed, failed, nil
		}
	}
}
