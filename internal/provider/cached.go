package provider

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"pairwatch/internal/cache"
)

const (
	pairCacheKey      = "pairs:usd"
	metadataKeyPrefix = "meta:"

	defaultPairTTL     = time.Hour
	defaultMetadataTTL = 24 * time.Hour
)

// CachedCatalog wraps a PairCatalog with a read-through cache. Cache
// failures degrade to the inner catalog.
type CachedCatalog struct {
	inner  PairCatalog
	store  cache.Store
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedCatalog builds a caching pair catalog.
func NewCachedCatalog(inner PairCatalog, store cache.Store, ttl time.Duration, logger zerolog.Logger) *CachedCatalog {
	if ttl <= 0 {
		ttl = defaultPairTTL
	}
	return &CachedCatalog{
		inner:  inner,
		store:  store,
		ttl:    ttl,
		logger: logger.With().Str("component", "pair_cache").Logger(),
	}
}

// FetchUSDPairs serves from cache when possible, otherwise hits the inner
// catalog and stores the result.
func (c *CachedCatalog) FetchUSDPairs(ctx context.Context) ([]Pair, error) {
	var pairs []Pair
	err := c.store.Get(ctx, pairCacheKey, &pairs)
	if err == nil {
		return pairs, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		c.logger.Warn().Err(err).Msg("pair cache read failed")
	}

	pairs, err = c.inner.FetchUSDPairs(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.store.Set(ctx, pairCacheKey, pairs, c.ttl); err != nil {
		c.logger.Warn().Err(err).Msg("pair cache write failed")
	}
	return pairs, nil
}

// CachedMetadata wraps a MetadataSource with a read-through cache.
type CachedMetadata struct {
	inner  MetadataSource
	store  cache.Store
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedMetadata builds a caching metadata source.
func NewCachedMetadata(inner MetadataSource, store cache.Store, ttl time.Duration, logger zerolog.Logger) *CachedMetadata {
	if ttl <= 0 {
		ttl = defaultMetadataTTL
	}
	return &CachedMetadata{
		inner:  inner,
		store:  store,
		ttl:    ttl,
		logger: logger.With().Str("component", "metadata_cache").Logger(),
	}
}

// FetchMetadata serves from cache when possible, otherwise hits the inner
// source and stores the result.
func (c *CachedMetadata) FetchMetadata(ctx context.Context, symbol string) (Metadata, error) {
	key := metadataKeyPrefix + symbol

	var meta Metadata
	err := c.store.Get(ctx, key, &meta)
	if err == nil {
		return meta, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		c.logger.Warn().Err(err).Msg("metadata cache read failed")
	}

	meta, err = c.inner.FetchMetadata(ctx, symbol)
	if err != nil {
		return Metadata{}, err
	}

	if err := c.store.Set(ctx, key, meta, c.ttl); err != nil {
		c.logger.Warn().Err(err).Msg("metadata cache write failed")
	}
	return meta, nil
}

var (
	_ PairCatalog    = (*CachedCatalog)(nil)
	_ MetadataSource = (*CachedMetadata)(nil)
)
