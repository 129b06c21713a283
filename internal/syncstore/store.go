package syncstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bitrixepl/engine/internal/warehouse"
)

// defaultSyncIntervalMinutes mirrors SYNC_DEFAULT_INTERVAL_MINUTES
// (spec.md §6.5) for rows seeded before the scheduler has read config.
const defaultSyncIntervalMinutes = 30

// Store is the administrative-table CRUD layer.
type Store struct {
	wh *warehouse.Warehouse
}

// New constructs a Store.
func New(wh *warehouse.Warehouse) *Store {
	return &Store{wh: wh}
}

// EnsureAdminTables creates the three administrative tables if absent,
// then seeds sync_config for every known entity type (spec.md §3.2
// "seeded for all known types at first start").
func (s *Store) EnsureAdminTables(ctx context.Context) error {
	db := s.wh.Pool().DB
	dialect := s.wh.Dialect()
	ts := warehouse.TimestampType(dialect)

	ddls := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS sync_config (
			entity_type VARCHAR(64) PRIMARY KEY,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			sync_interval_minutes BIGINT NOT NULL DEFAULT %d,
			webhook_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			last_sync_at %s
		)`, defaultSyncIntervalMinutes, ts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS sync_state (
			entity_type VARCHAR(64) PRIMARY KEY,
			last_modified_date %s,
			last_bitrix_id VARCHAR(255),
			total_records BIGINT NOT NULL DEFAULT 0
		)`, ts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS sync_logs (
			id VARCHAR(64) PRIMARY KEY,
			entity_type VARCHAR(64) NOT NULL,
			sync_type VARCHAR(32) NOT NULL,
			status VARCHAR(32) NOT NULL,
			records_processed BIGINT NOT NULL DEFAULT 0,
			records_fetched BIGINT NOT NULL DEFAULT 0,
			error_message TEXT,
			started_at %s NOT NULL,
			completed_at %s
		)`, ts, ts),
	}

	for _, ddl := range ddls {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("syncstore: ensure admin tables: %w", err)
		}
	}

	for _, entityType := range KnownEntityTypes {
		if err := s.seedSyncConfig(ctx, entityType); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) seedSyncConfig(ctx context.Context, entityType string) error {
	dialect := s.wh.Dialect()
	var stmt string
	if dialect == "mysql" {
		stmt = `INSERT IGNORE INTO sync_config (entity_type, enabled, sync_interval_minutes, webhook_enabled) VALUES (?, TRUE, ?, FALSE)`
	} else {
		stmt = `INSERT INTO sync_config (entity_type, enabled, sync_interval_minutes, webhook_enabled) VALUES ($1, TRUE, $2, FALSE) ON CONFLICT (entity_type) DO NOTHING`
	}
	_, err := s.wh.Pool().DB.ExecContext(ctx, stmt, entityType, defaultSyncIntervalMinutes)
	if err != nil {
		return fmt.Errorf("syncstore: seed sync_config for %s: %w", entityType, err)
	}
	return nil
}

// ListSyncConfig returns every sync_config row.
func (s *Store) ListSyncConfig(ctx context.Context) ([]SyncConfig, error) {
	rows, err := s.wh.Pool().DB.QueryContext(ctx, `SELECT entity_type, enabled, sync_interval_minutes, webhook_enabled, last_sync_at FROM sync_config ORDER BY entity_type`)
	if err != nil {
		return nil, fmt.Errorf("syncstore: list sync_config: %w", err)
	}
	defer rows.Close()

	var configs []SyncConfig
	for rows.Next() {
		var c SyncConfig
		var lastSync sql.NullTime
		if err := rows.Scan(&c.EntityType, &c.Enabled, &c.SyncIntervalMinutes, &c.WebhookEnabled, &lastSync); err != nil {
			return nil, fmt.Errorf("syncstore: scan sync_config: %w", err)
		}
		if lastSync.Valid {
			c.LastSyncAt = &lastSync.Time
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

// GetSyncConfig returns one sync_config row.
func (s *Store) GetSyncConfig(ctx context.Context, entityType string) (*SyncConfig, error) {
	ph := s.wh.Placeholder(1)
	row := s.wh.Pool().DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT entity_type, enabled, sync_interval_minutes, webhook_enabled, last_sync_at FROM sync_config WHERE entity_type = %s`, ph),
		entityType)

	var c SyncConfig
	var lastSync sql.NullTime
	if err := row.Scan(&c.EntityType, &c.Enabled, &c.SyncIntervalMinutes, &c.WebhookEnabled, &lastSync); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("syncstore: get sync_config for %s: %w", entityType, err)
	}
	if lastSync.Valid {
		c.LastSyncAt = &lastSync.Time
	}
	return &c, nil
}

// UpsertSyncConfig inserts a row with seed defaults or updates an
// existing one on conflict (spec.md §4.L "the only non-trivial
// operation is the upsert used by the config endpoint"). Callers
// (the admin HTTP layer) are responsible for calling the scheduler to
// reschedule or remove the corresponding job afterward.
func (s *Store) UpsertSyncConfig(ctx context.Context, c SyncConfig) error {
	dialect := s.wh.Dialect()
	var stmt string
	if dialect == "mysql" {
		stmt = `INSERT INTO sync_config (entity_type, enabled, sync_interval_minutes, webhook_enabled)
			VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE enabled = VALUES(enabled), sync_interval_minutes = VALUES(sync_interval_minutes), webhook_enabled = VALUES(webhook_enabled)`
	} else {
		stmt = `INSERT INTO sync_config (entity_type, enabled, sync_interval_minutes, webhook_enabled)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (entity_type) DO UPDATE SET enabled = EXCLUDED.enabled, sync_interval_minutes = EXCLUDED.sync_interval_minutes, webhook_enabled = EXCLUDED.webhook_enabled`
	}
	_, err := s.wh.Pool().DB.ExecContext(ctx, stmt, c.EntityType, c.Enabled, c.SyncIntervalMinutes, c.WebhookEnabled)
	if err != nil {
		return fmt.Errorf("syncstore: upsert sync_config for %s: %w", c.EntityType, err)
	}
	return nil
}

// TouchLastSyncAt sets sync_config.last_sync_at = now() for entityType.
func (s *Store) TouchLastSyncAt(ctx context.Context, entityType string) error {
	ph := s.wh.Placeholder(1)
	stmt := fmt.Sprintf(`UPDATE sync_config SET last_sync_at = %s WHERE entity_type = %s`, warehouse.NowExpr(s.wh.Dialect()), ph)
	_, err := s.wh.Pool().DB.ExecContext(ctx, stmt, entityType)
	if err != nil {
		return fmt.Errorf("syncstore: touch last_sync_at for %s: %w", entityType, err)
	}
	return nil
}

// GetSyncState returns one sync_state row, or nil if none exists yet.
func (s *Store) GetSyncState(ctx context.Context, entityType string) (*SyncState, error) {
	ph := s.wh.Placeholder(1)
	row := s.wh.Pool().DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT entity_type, last_modified_date, last_bitrix_id, total_records FROM sync_state WHERE entity_type = %s`, ph),
		entityType)

	var st SyncState
	var lastModified sql.NullTime
	var lastBitrixID sql.NullString
	if err := row.Scan(&st.EntityType, &lastModified, &lastBitrixID, &st.TotalRecords); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("syncstore: get sync_state for %s: %w", entityType, err)
	}
	if lastModified.Valid {
		st.LastModifiedDate = &lastModified.Time
	}
	st.LastBitrixID = lastBitrixID.String
	return &st, nil
}

// SetSyncState upserts sync_state, preserving the full-sync semantics of
// spec.md §4.F.1 step 6 (overwrite total_records) vs §4.F.2 step 6
// (leave total_records untouched) — callers pass the value they intend
// to persist; SetSyncStateModifiedOnly covers the incremental case.
func (s *Store) SetSyncState(ctx context.Context, st SyncState) error {
	dialect := s.wh.Dialect()
	var stmt string
	if dialect == "mysql" {
		stmt = `INSERT INTO sync_state (entity_type, last_modified_date, last_bitrix_id, total_records)
			VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE last_modified_date = VALUES(last_modified_date), last_bitrix_id = VALUES(last_bitrix_id), total_records = VALUES(total_records)`
	} else {
		stmt = `INSERT INTO sync_state (entity_type, last_modified_date, last_bitrix_id, total_records)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (entity_type) DO UPDATE SET last_modified_date = EXCLUDED.last_modified_date, last_bitrix_id = EXCLUDED.last_bitrix_id, total_records = EXCLUDED.total_records`
	}
	_, err := s.wh.Pool().DB.ExecContext(ctx, stmt, st.EntityType, st.LastModifiedDate, st.LastBitrixID, st.TotalRecords)
	if err != nil {
		return fmt.Errorf("syncstore: set sync_state for %s: %w", st.EntityType, err)
	}
	return nil
}

// SetSyncStateModifiedOnly advances last_modified_date without touching
// total_records, for the incremental-sync path (spec.md §4.F.2 step 6).
func (s *Store) SetSyncStateModifiedOnly(ctx context.Context, entityType string, modifiedAt time.Time) error {
	dialect := s.wh.Dialect()
	var stmt string
	if dialect == "mysql" {
		stmt = `INSERT INTO sync_state (entity_type, last_modified_date, total_records)
			VALUES (?, ?, 0)
			ON DUPLICATE KEY UPDATE last_modified_date = VALUES(last_modified_date)`
	} else {
		stmt = `INSERT INTO sync_state (entity_type, last_modified_date, total_records)
			VALUES ($1, $2, 0)
			ON CONFLICT (entity_type) DO UPDATE SET last_modified_date = EXCLUDED.last_modified_date`
	}
	_, err := s.wh.Pool().DB.ExecContext(ctx, stmt, entityType, modifiedAt)
	if err != nil {
		return fmt.Errorf("syncstore: advance last_modified_date for %s: %w", entityType, err)
	}
	return nil
}

// StartSyncLog inserts a new running sync_logs row and returns its id.
func (s *Store) StartSyncLog(ctx context.Context, entityType string, syncType SyncType) (string, error) {
	id := uuid.NewString()
	ph1, ph2, ph3, ph4 := s.wh.Placeholder(1), s.wh.Placeholder(2), s.wh.Placeholder(3), s.wh.Placeholder(4)
	stmt := fmt.Sprintf(`INSERT INTO sync_logs (id, entity_type, sync_type, status, started_at) VALUES (%s, %s, %s, %s, %s)`,
		ph1, ph2, ph3, ph4, warehouse.NowExpr(s.wh.Dialect()))
	_, err := s.wh.Pool().DB.ExecContext(ctx, stmt, id, entityType, string(syncType), string(StatusRunning))
	if err != nil {
		return "", fmt.Errorf("syncstore: start sync_logs row: %w", err)
	}
	return id, nil
}

// CompleteSyncLog transitions a running sync_logs row to a terminal
// state (spec.md §4.F.4). completedAt is set to the current database
// time so it is always >= started_at.
func (s *Store) CompleteSyncLog(ctx context.Context, id string, status SyncStatus, recordsProcessed, recordsFetched int, errMessage string) error {
	dialect := s.wh.Dialect()
	ph1, ph2, ph3, ph4, ph5 := s.wh.Placeholder(1), s.wh.Placeholder(2), s.wh.Placeholder(3), s.wh.Placeholder(4), s.wh.Placeholder(5)
	stmt := fmt.Sprintf(`UPDATE sync_logs SET status = %s, records_processed = %s, records_fetched = %s, error_message = %s, completed_at = %s WHERE id = %s`,
		ph1, ph2, ph3, ph4, warehouse.NowExpr(dialect), ph5)
	_, err := s.wh.Pool().DB.ExecContext(ctx, stmt, string(status), recordsProcessed, recordsFetched, errMessage, id)
	if err != nil {
		return fmt.Errorf("syncstore: complete sync_logs row %s: %w", id, err)
	}
	return nil
}

// ListSyncLogs returns sync_logs rows, optionally filtered by entity
// type, newest first, bounded by limit/offset for the admin /sync/history
// endpoint.
func (s *Store) ListSyncLogs(ctx context.Context, entityType string, limit, offset int) ([]SyncLog, error) {
	var rows *sql.Rows
	var err error
	if entityType != "" {
		stmt := fmt.Sprintf(`SELECT id, entity_type, sync_type, status, records_processed, records_fetched, error_message, started_at, completed_at
			FROM sync_logs WHERE entity_type = %s ORDER BY started_at DESC LIMIT %s OFFSET %s`,
			s.wh.Placeholder(1), s.wh.Placeholder(2), s.wh.Placeholder(3))
		rows, err = s.wh.Pool().DB.QueryContext(ctx, stmt, entityType, limit, offset)
	} else {
		stmt := fmt.Sprintf(`SELECT id, entity_type, sync_type, status, records_processed, records_fetched, error_message, started_at, completed_at
			FROM sync_logs ORDER BY started_at DESC LIMIT %s OFFSET %s`,
			s.wh.Placeholder(1), s.wh.Placeholder(2))
		rows, err = s.wh.Pool().DB.QueryContext(ctx, stmt, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("syncstore: list sync_logs: %w", err)
	}
	defer rows.Close()

	var logs []SyncLog
	for rows.Next() {
		var l SyncLog
		var errMsg sql.NullString
		var completedAt sql.NullTime
		if err := rows.Scan(&l.ID, &l.EntityType, &l.SyncType, &l.Status, &l.RecordsProcessed, &l.RecordsFetched, &errMsg, &l.StartedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("syncstore: scan sync_logs row: %w", err)
		}
		l.ErrorMessage = errMsg.String
		if completedAt.Valid {
			l.CompletedAt = &completedAt.Time
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
