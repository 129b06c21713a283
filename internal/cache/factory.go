package cache

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// CacheFactory creates cache instances based on configuration
type CacheFactory struct {
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(logger *zap.Logger) *CacheFactory {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CacheFactory{
		logger: logger,
	}
}

// CreateCache creates a cache instance based on the configuration. The
// engine is a single process (see the warehouse access layer's pool
// design), so memory is the only supported backend.
func (cf *CacheFactory) CreateCache(config *CacheConfig) (Cache, error) {
	if config == nil {
		return nil, fmt.Errorf("cache configuration cannot be nil")
	}

	switch config.Type {
	case MemoryCache, "":
		return cf.createMemoryCache(config)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
}

// createMemoryCache creates a memory cache instance
func (cf *CacheFactory) createMemoryCache(config *CacheConfig) (Cache, error) {
	cf.logger.Info("Creating memory cache",
		zap.Int64("max_size", config.MaxSize),
		zap.Duration("default_ttl", config.DefaultTTL))

	return NewMemoryCache(config), nil
}

// CreateDefaultCache creates a cache with default configuration, sized
// for caching warehouse information_schema catalogs and Bitrix field
// metadata across a sync run.
func (cf *CacheFactory) CreateDefaultCache() (Cache, error) {
	config := &CacheConfig{
		Type:            MemoryCache,
		DefaultTTL:      1 * time.Hour,
		MaxSize:         1000,
		KeyPrefix:       "epl",
		KeySeparator:    ":",
		CleanupInterval: 5 * time.Minute,
		MetricsInterval: 1 * time.Minute,
	}

	return cf.CreateCache(config)
}

// CreateMemoryCacheWithConfig creates a memory cache with specific configuration
func (cf *CacheFactory) CreateMemoryCacheWithConfig(config *CacheConfig) (Cache, error) {
	if config == nil {
		return nil, fmt.Errorf("cache configuration cannot be nil")
	}

	// Ensure it's a memory cache
	config.Type = MemoryCache

	cf.logger.Info("Creating memory cache with custom configuration",
		zap.Int64("max_size", config.MaxSize),
		zap.Duration("default_ttl", config.DefaultTTL))

	return NewMemoryCache(config), nil
}
