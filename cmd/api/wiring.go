package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/propertysearch/backend/internal/adapters/cache"
	"github.com/zatekoja/propertysearch/backend/internal/adapters/search"
	"github.com/zatekoja/propertysearch/backend/internal/domain/providers"
	"github.com/zatekoja/propertysearch/backend/internal/domain/repositories"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/clients/dataagent"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/clients/gcpauth"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/clients/gcs"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/clients/openai"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/clients/vertexai"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/observability"
	"github.com/zatekoja/propertysearch/backend/pkg/config"
	"github.com/zatekoja/propertysearch/backend/pkg/secrets"
)

// dependencies holds the optional outbound clients. A nil field means the
// client failed to start and the modes that need it report not initialized.
type dependencies struct {
	Index         repositories.ListingSearchRepository
	TextEmbedder  providers.TextEmbedder
	ImageEmbedder providers.ImageEmbedder
	Agent         providers.DataAgent
	Store         providers.ObjectStore

	closers []func() error
}

func (d *dependencies) Close() {
	for _, closeFn := range d.closers {
		if err := closeFn(); err != nil {
			log.Warn().Err(err).Msg("Error closing client")
		}
	}
}

// loadConfig reads the environment, overlays Secret Manager values when
// enabled, then reads the environment again.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if !cfg.Secrets.Enabled {
		return cfg, nil
	}

	accessor, err := secrets.NewManagerAccessor(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Secret Manager unavailable, using environment only")
		return cfg, nil
	}
	defer accessor.Close()

	result, err := secrets.Apply(ctx, secrets.OverlayConfig{
		Enabled:   true,
		ProjectID: cfg.GCP.ProjectID,
		Keys:      cfg.Secrets.Keys,
	}, accessor)
	if err != nil {
		return nil, fmt.Errorf("secret overlay: %w", err)
	}
	for key, keyErr := range result.Failed {
		log.Warn().Err(keyErr).Str("key", key).Msg("Failed to load secret")
	}
	log.Info().Strs("loaded", result.Loaded).Msg("Secret Manager overlay applied")

	return config.Load()
}

func connectDependencies(ctx context.Context, cfg *config.Config, metrics *observability.Metrics) *dependencies {
	deps := &dependencies{}

	var cacheProvider providers.CacheProvider
	if cfg.Redis.Host != "" {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis, cfg.OutboundTimeout)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Redis client, embeddings will not be cached")
		} else {
			deps.closers = append(deps.closers, redisClient.Close)
			cacheProvider = cache.NewRedisAdapter(redisClient, "propertysearch")
			log.Info().Msg("Redis client initialized successfully")
		}
	}

	if cfg.Typesense.URL != "" {
		tsClient, err := typesense.NewClient(ctx, &cfg.Typesense, cfg.OutboundTimeout)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Typesense client")
		} else {
			deps.Index = search.NewTypesenseAdapter(tsClient, metrics)
			log.Info().Msg("Typesense client initialized successfully")
		}
	}

	storeClient, err := gcs.NewClient(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize storage client")
	} else {
		deps.Store = storeClient
		deps.closers = append(deps.closers, storeClient.Close)
	}

	var authClient *http.Client
	if cfg.GCP.ProjectID != "" {
		authClient, err = gcpauth.NewHTTPClient(ctx, cfg.DataAgent.AccessToken, cfg.OutboundTimeout)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to obtain Google credentials")
		}
	} else {
		log.Warn().Msg("GCP_PROJECT_ID is not set; Google backed modes are disabled")
	}

	connectEmbedders(ctx, cfg, authClient, cacheProvider, metrics, deps)

	if authClient != nil {
		contextSet := ""
		if cfg.DataAgent.ContextSetID != "" {
			contextSet = cfg.DataAgent.ContextSetName(cfg.GCP.ProjectID)
		}
		agent, err := dataagent.NewClient(authClient, dataagent.Config{
			Endpoint:       cfg.DataAgent.Endpoint,
			ProjectID:      cfg.GCP.ProjectID,
			Location:       cfg.DataAgent.Location,
			DatabaseRegion: cfg.GCP.Location,
			ClusterID:      cfg.DataAgent.ClusterID,
			InstanceID:     cfg.DataAgent.InstanceID,
			DatabaseID:     cfg.DataAgent.DatabaseID,
			ContextSetName: contextSet,
		}, metrics)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize data agent")
		} else {
			deps.Agent = agent
		}
	}

	return deps
}

func connectEmbedders(ctx context.Context, cfg *config.Config, authClient *http.Client, cacheProvider providers.CacheProvider, metrics *observability.Metrics, deps *dependencies) {
	var text providers.TextEmbedder
	var image providers.ImageEmbedder

	textModel, imageModel := cfg.Embedding.TextModel, cfg.Embedding.ImageModel

	switch cfg.Embedding.Provider {
	case "openai":
		textModel, imageModel = cfg.Embedding.OpenAIModel, cfg.Embedding.OpenAIImageModel
		var err error
		text, image, err = openAIEmbedders(&cfg.Embedding, metrics)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize OpenAI embedder")
			return
		}
		if image == nil {
			log.Warn().Msg("OPENAI_IMAGE_EMBEDDING_MODEL is not set; semantic search is unavailable")
		}
	default:
		if cfg.GCP.ProjectID == "" {
			return
		}
		textEmbedder, err := vertexai.NewTextEmbedder(ctx, vertexai.TextEmbedderConfig{
			ProjectID: cfg.GCP.ProjectID,
			Location:  cfg.GCP.Location,
			Model:     cfg.Embedding.TextModel,
			Dimension: cfg.Embedding.TextDimension,
		}, metrics)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize text embedding model")
		} else {
			text = textEmbedder
		}

		if authClient != nil {
			imageEmbedder, err := vertexai.NewMultimodalEmbedder(authClient, vertexai.MultimodalConfig{
				ProjectID: cfg.GCP.ProjectID,
				Location:  cfg.GCP.Location,
				Model:     cfg.Embedding.ImageModel,
				Dimension: cfg.Embedding.ImageDimension,
			}, metrics)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to initialize multimodal embedding model")
			} else {
				image = imageEmbedder
			}
		}
	}

	if cacheProvider != nil {
		if text != nil {
			text = cache.NewCachedTextEmbedder(text, cacheProvider, cfg.Embedding.Provider+":"+textModel, cfg.Embedding.CacheTTL, metrics)
		}
		if image != nil {
			image = cache.NewCachedImageEmbedder(image, cacheProvider, cfg.Embedding.Provider+":"+imageModel, cfg.Embedding.CacheTTL, metrics)
		}
	}

	deps.TextEmbedder = text
	deps.ImageEmbedder = image
}

// openAIEmbedders builds one embedder per query signal. The image embedder is
// nil unless a model for the image vector space is configured.
func openAIEmbedders(cfg *config.EmbeddingConfig, metrics *observability.Metrics) (providers.TextEmbedder, providers.ImageEmbedder, error) {
	text, err := openai.NewEmbedder(openai.Config{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.OpenAIModel,
		Dimensions: cfg.TextDimension,
	}, metrics)
	if err != nil {
		return nil, nil, err
	}

	if cfg.OpenAIImageModel == "" {
		return text, nil, nil
	}

	image, err := openai.NewEmbedder(openai.Config{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.OpenAIImageModel,
		Dimensions: cfg.ImageDimension,
	}, metrics)
	if err != nil {
		return nil, nil, err
	}
	return text, image, nil
}
