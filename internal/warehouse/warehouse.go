// Package warehouse is the Warehouse Access Layer (spec.md §4.K): it owns
// the single connection pool and the active SQL dialect, and exposes the
// dialect-specific SQL snippets every other warehouse component (schema,
// upsert) branches on instead of re-detecting the driver.
package warehouse

import (
	"context"

	"github.com/bitrixepl/engine/internal/config"
	"github.com/bitrixepl/engine/internal/database"
)

// Warehouse is the process-wide singleton handed to every component that
// touches the relational store: schema builder, upsert writer, sync-config
// store, reference service.
type Warehouse struct {
	pool *database.Pool
}

// Open establishes the warehouse's connection pool.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Warehouse, error) {
	pool, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Warehouse{pool: pool}, nil
}

// Pool exposes the underlying *database.Pool for components that need raw
// database/sql access (transactions, prepared statements).
func (w *Warehouse) Pool() *database.Pool {
	return w.pool
}

// Dialect reports the active SQL dialect.
func (w *Warehouse) Dialect() config.DBDialect {
	return w.pool.Dialect
}

// Close releases the connection pool.
func (w *Warehouse) Close() error {
	return w.pool.Close()
}

// Ping verifies the pool is still usable. The admin /health handler calls
// it; the sync tasks do not.
func (w *Warehouse) Ping(ctx context.Context) error {
	return w.pool.Ping(ctx)
}
