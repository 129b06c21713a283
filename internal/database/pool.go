// Package database provides the generic database/sql connection-pool
// helpers shared by every SQL-backed component. It knows nothing about
// Bitrix, warehouse tables, or sync semantics — that lives in
// internal/warehouse, which wraps a *Pool with dialect-aware SQL
// generation, keeping a thin connection layer separate from domain
// repositories.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/bitrixepl/engine/internal/config"
)

// Pool wraps a *sql.DB configured per spec.md §4.K / §6.5: pool size 5,
// max overflow 10 (translated to MaxOpenConns), pre-ping on, one-hour
// connection recycle.
type Pool struct {
	DB      *sql.DB
	Dialect config.DBDialect
}

// driverName maps a dialect to the database/sql driver registered by its
// blank import above.
func driverName(dialect config.DBDialect) (string, error) {
	switch dialect {
	case config.DialectPostgres:
		return "postgres", nil
	case config.DialectMySQL:
		return "mysql", nil
	default:
		return "", fmt.Errorf("database: unsupported dialect %q", dialect)
	}
}

// Open opens and configures a connection pool from configuration. The
// original's SQLAlchemy engine uses pool_pre_ping=True; database/sql has
// no built-in equivalent, so Open performs one PingContext immediately
// after configuring the pool. Connections are not pinged again when they
// are checked out.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	driver, err := driverName(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", driver, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns())
	db.SetMaxIdleConns(cfg.PoolSize)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if cfg.PrePing {
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, fmt.Errorf("database: ping %s: %w", driver, err)
		}
	}

	return &Pool{DB: db, Dialect: cfg.Dialect}, nil
}

// Ping checks that the database is reachable. The warehouse layer exposes
// it for the admin /health check; the sync tasks do not call it.
func (p *Pool) Ping(ctx context.Context) error {
	return p.DB.PingContext(ctx)
}

// Close releases all pooled connections.
func (p *Pool) Close() error {
	return p.DB.Close()
}

// IsPostgres reports whether the pool's dialect is PostgreSQL.
func (p *Pool) IsPostgres() bool {
	return p.Dialect == config.DialectPostgres
}

// IsMySQL reports whether the pool's dialect is MySQL.
func (p *Pool) IsMySQL() bool {
	return p.Dialect == config.DialectMySQL
}
