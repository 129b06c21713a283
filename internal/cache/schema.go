package cache

import (
	"context"
	"encoding/json"
	"time"
)

// SchemaCatalogCache memoizes warehouse information_schema column-type
// lookups, so repeated column-type lookups inside a batch upsert don't
// re-hit the catalog. One instance is shared by the whole process;
// entries expire after the configured TTL and are dropped early through
// Invalidate whenever the table builder changes a table, since the
// warehouse schema can change between runs (schema drift, §4.F.2).
type SchemaCatalogCache struct {
	cache Cache
	keys  *CacheKeyManager
}

// NewSchemaCatalogCache wraps a Cache with typed helpers for column-type
// maps.
func NewSchemaCatalogCache(ttl time.Duration) *SchemaCatalogCache {
	cfg := CacheConfig{
		Type:            MemoryCache,
		DefaultTTL:      ttl,
		MaxSize:         512,
		KeyPrefix:       "schema",
		KeySeparator:    ":",
		CleanupInterval: ttl,
	}
	factory := NewCacheFactory(nil)
	c, _ := factory.CreateCache(&cfg)
	return &SchemaCatalogCache{cache: c, keys: NewCacheKeyManager(cfg, nil)}
}

// ColumnTypes returns the cached column-name -> SQL-type map for a table,
// if present and unexpired.
func (s *SchemaCatalogCache) ColumnTypes(ctx context.Context, table string) (map[string]string, bool) {
	raw, err := s.cache.Get(ctx, s.columnsKey(table))
	if err != nil {
		return nil, false
	}
	var cols map[string]string
	if err := json.Unmarshal(raw, &cols); err != nil {
		return nil, false
	}
	return cols, true
}

// SetColumnTypes stores a table's column-name -> SQL-type map.
func (s *SchemaCatalogCache) SetColumnTypes(ctx context.Context, table string, cols map[string]string) {
	raw, err := json.Marshal(cols)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, s.columnsKey(table), raw, 0)
}

// Invalidate drops a table's cached catalog entry, called by the dynamic
// table builder whenever it adds a column so stale reads never survive a
// schema change.
func (s *SchemaCatalogCache) Invalidate(ctx context.Context, table string) {
	_ = s.cache.Delete(ctx, s.columnsKey(table))
}

// columnsKey derives the cache key for a table's column-type map through
// the shared key manager so every cache consumer picks keys the same way.
func (s *SchemaCatalogCache) columnsKey(table string) string {
	return s.keys.GenerateKeyWithNamespace("columns", table)
}

// Stats exposes the underlying cache's hit/miss counters.
func (s *SchemaCatalogCache) Stats(ctx context.Context) *CacheStats {
	stats, err := s.cache.GetStats(ctx)
	if err != nil {
		return &CacheStats{}
	}
	return stats
}

// Close stops the cache's background cleanup goroutine.
func (s *SchemaCatalogCache) Close() error {
	return s.cache.Close()
}
