package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/zatekoja/propertysearch/backend/internal/domain/providers"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/observability"
)

type embedFunc func(ctx context.Context, text string) ([]float32, error)

// embeddingCache memoizes query embeddings. Cache failures never fail the embedding call.
type embeddingCache struct {
	cache     providers.CacheProvider
	namespace string
	ttl       time.Duration
	metrics   *observability.Metrics
}

func (c *embeddingCache) embed(ctx context.Context, text string, fn embedFunc) ([]float32, error) {
	key := c.cacheKey(text)
	logger := observability.LoggerFromContext(ctx)

	if raw, err := c.cache.Get(ctx, key); err == nil {
		var vector []float32
		if err := json.Unmarshal(raw, &vector); err == nil && len(vector) > 0 {
			observability.RecordCacheHit(ctx, c.metrics, c.namespace)
			return vector, nil
		}
		logger.Warn().Str("cache", c.namespace).Msg("discarding undecodable cached embedding")
	} else if !errors.Is(err, providers.ErrCacheMiss) {
		logger.Warn().Err(err).Str("cache", c.namespace).Msg("embedding cache read failed")
	}
	observability.RecordCacheMiss(ctx, c.metrics, c.namespace)

	vector, err := fn(ctx, text)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(vector); err == nil {
		if err := c.cache.Set(ctx, key, raw, int(c.ttl.Seconds())); err != nil {
			logger.Warn().Err(err).Str("cache", c.namespace).Msg("embedding cache write failed")
		}
	}
	return vector, nil
}

func (c *embeddingCache) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embedding:" + c.namespace + ":" + hex.EncodeToString(sum[:])
}

// CachedTextEmbedder wraps a TextEmbedder with a cache
type CachedTextEmbedder struct {
	inner providers.TextEmbedder
	cache *embeddingCache
}

// NewCachedTextEmbedder creates a cached text embedder. namespace should identify the model.
func NewCachedTextEmbedder(inner providers.TextEmbedder, cache providers.CacheProvider, namespace string, ttl time.Duration, metrics *observability.Metrics) *CachedTextEmbedder {
	return &CachedTextEmbedder{
		inner: inner,
		cache: &embeddingCache{cache: cache, namespace: namespace, ttl: ttl, metrics: metrics},
	}
}

// EmbedText implements providers.TextEmbedder
func (e *CachedTextEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return e.cache.embed(ctx, text, e.inner.EmbedText)
}

// CachedImageEmbedder wraps an ImageEmbedder with a cache
type CachedImageEmbedder struct {
	inner providers.ImageEmbedder
	cache *embeddingCache
}

// NewCachedImageEmbedder creates a cached image query embedder
func NewCachedImageEmbedder(inner providers.ImageEmbedder, cache providers.CacheProvider, namespace string, ttl time.Duration, metrics *observability.Metrics) *CachedImageEmbedder {
	return &CachedImageEmbedder{
		inner: inner,
		cache: &embeddingCache{cache: cache, namespace: namespace, ttl: ttl, metrics: metrics},
	}
}

// EmbedImageQuery implements providers.ImageEmbedder
func (e *CachedImageEmbedder) EmbedImageQuery(ctx context.Context, text string) ([]float32, error) {
	return e.cache.embed(ctx, text, e.inner.EmbedImageQuery)
}
