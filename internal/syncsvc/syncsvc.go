// Package syncsvc is the Entity Sync Service (spec.md §4.F): it
// orchestrates the extract-project-load cycle for a single Bitrix entity
// type, driving the field mapper, dynamic table builder, bitrix client
// and upsert writer through full, incremental and webhook sync paths.
package syncsvc

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bitrixepl/engine/internal/bitrix"
	"github.com/bitrixepl/engine/internal/fieldmap"
	"github.com/bitrixepl/engine/internal/observability"
	"github.com/bitrixepl/engine/internal/syncstore"
	"github.com/bitrixepl/engine/internal/warehouse"
	"github.com/bitrixepl/engine/internal/warehouse/schema"
	"github.com/bitrixepl/engine/internal/warehouse/upsert"
)

// SyncError wraps a failure from one of the EPL steps so callers can
// distinguish it from a plain programming error and drive HTTP status
// mapping off its EntityType/Step fields.
type SyncError struct {
	EntityType string
	Step       string
	Err        error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("syncsvc: sync for %s failed at %s: %v", e.EntityType, e.Step, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// incrementalCompareField maps an entity type to the Bitrix field
// compared against the stored high-water mark for incremental sync
// (spec.md §4.F.2 step 3). CRM entities default to DATE_MODIFY.
var incrementalCompareField = map[bitrix.EntityType]string{
	bitrix.EntityDeal:             "DATE_MODIFY",
	bitrix.EntityContact:          "DATE_MODIFY",
	bitrix.EntityLead:             "DATE_MODIFY",
	bitrix.EntityCompany:          "DATE_MODIFY",
	bitrix.EntityTask:             "CHANGED_DATE",
	bitrix.EntityStageHistoryDeal: "CREATED_TIME",
	bitrix.EntityStageHistoryLead: "CREATED_TIME",
	bitrix.EntityUser:             "LAST_LOGIN",
	bitrix.EntityCall:             "CALL_START_DATE",
}

const bitrixTimeLayout = "2006-01-02T15:04:05"

// entityTableNames maps each entity type to its warehouse table name
// (spec.md §3.1: "crm_<plural>" for CRM entities, bitrix_users/tasks/
// calls, stage_history_deals/leads for the rest). sync_config,
// sync_state and sync_logs key on the entity type string itself
// (bitrix.EntityType's underlying value, e.g. "deal"), not the table
// name — the two only happen to coincide for nothing in this map.
var entityTableNames = map[bitrix.EntityType]string{
	bitrix.EntityDeal:             "crm_deals",
	bitrix.EntityContact:          "crm_contacts",
	bitrix.EntityLead:             "crm_leads",
	bitrix.EntityCompany:          "crm_companies",
	bitrix.EntityUser:             "bitrix_users",
	bitrix.EntityTask:             "bitrix_tasks",
	bitrix.EntityCall:             "bitrix_calls",
	bitrix.EntityStageHistoryDeal: "stage_history_deals",
	bitrix.EntityStageHistoryLead: "stage_history_leads",
}

// tableName is the warehouse table for an entity type (spec.md §3.1).
func tableName(entityType bitrix.EntityType) string {
	if name, ok := entityTableNames[entityType]; ok {
		return name
	}
	return string(entityType)
}

// Service runs the EPL cycle for the core entity types.
type Service struct {
	client  *bitrix.Client
	wh      *warehouse.Warehouse
	builder *schema.Builder
	writer  *upsert.Writer
	store   *syncstore.Store
	logger  *observability.Logger
}

// New constructs a Service.
func New(client *bitrix.Client, wh *warehouse.Warehouse, builder *schema.Builder, writer *upsert.Writer, store *syncstore.Store, logger *observability.Logger) *Service {
	return &Service{client: client, wh: wh, builder: builder, writer: writer, store: store, logger: logger}
}

// FullSync runs spec.md §4.F.1 for entityType, optionally against a
// caller-supplied filter (nil means the default {>ID: 0}).
func (s *Service) FullSync(ctx context.Context, entityType bitrix.EntityType, filter map[string]any) (records int, err error) {
	key := string(entityType)
	table := tableName(entityType)

	logID, err := s.store.StartSyncLog(ctx, key, syncstore.SyncTypeFull)
	if err != nil {
		return 0, fmt.Errorf("syncsvc: start log for %s: %w", key, err)
	}

	processed, fetchErr := s.runFullSync(ctx, entityType, table, key, filter)
	s.finishLog(ctx, logID, key, processed, processed, fetchErr)
	if fetchErr != nil {
		return processed, &SyncError{EntityType: key, Step: "full_sync", Err: fetchErr}
	}
	return processed, nil
}

func (s *Service) runFullSync(ctx context.Context, entityType bitrix.EntityType, table, key string, filter map[string]any) (int, error) {
	fields, err := s.mergedFields(ctx, entityType)
	if err != nil {
		return 0, err
	}

	if err := s.builder.EnsureTable(ctx, table, fields); err != nil {
		return 0, err
	}

	records, err := s.client.GetEntities(ctx, entityType, filter, nil)
	if err != nil {
		return 0, err
	}

	processed, err := s.writer.Write(ctx, table, records, []string{"bitrix_id"})
	if err != nil {
		return processed, err
	}

	now := time.Now().UTC()
	if err := s.store.SetSyncState(ctx, syncstore.SyncState{
		EntityType:       key,
		LastModifiedDate: &now,
		TotalRecords:     len(records),
	}); err != nil {
		return processed, err
	}
	if err := s.store.TouchLastSyncAt(ctx, key); err != nil {
		return processed, err
	}

	return processed, nil
}

// IncrementalSync runs spec.md §4.F.2 for entityType, falling back to a
// full sync when the table is missing or no high-water mark is known
// yet.
func (s *Service) IncrementalSync(ctx context.Context, entityType bitrix.EntityType) (records int, err error) {
	key := string(entityType)
	table := tableName(entityType)

	exists, err := s.builder.TableExists(ctx, table)
	if err != nil {
		return 0, fmt.Errorf("syncsvc: check table %s: %w", table, err)
	}
	if !exists {
		return s.FullSync(ctx, entityType, nil)
	}

	state, err := s.store.GetSyncState(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("syncsvc: read sync_state for %s: %w", key, err)
	}
	lastModified, err := s.resolveLastModified(ctx, table, state)
	if err != nil {
		return 0, err
	}
	if lastModified == nil {
		return s.FullSync(ctx, entityType, nil)
	}

	logID, err := s.store.StartSyncLog(ctx, key, syncstore.SyncTypeIncremental)
	if err != nil {
		return 0, fmt.Errorf("syncsvc: start log for %s: %w", key, err)
	}

	processed, fetched, incErr := s.runIncrementalSync(ctx, entityType, table, key, *lastModified)
	s.finishLog(ctx, logID, key, processed, fetched, incErr)
	if incErr != nil {
		return processed, &SyncError{EntityType: key, Step: "incremental_sync", Err: incErr}
	}
	return processed, nil
}

// resolveLastModified implements the supplemented `_get_last_modified_date`
// fallback: when sync_state has no high-water mark yet but the table
// already has rows, fall back to MAX(updated_at) instead of forcing an
// unnecessary full resync.
func (s *Service) resolveLastModified(ctx context.Context, table string, state *syncstore.SyncState) (*time.Time, error) {
	if state != nil && state.LastModifiedDate != nil {
		return state.LastModifiedDate, nil
	}

	quoted := warehouse.QuoteIdent(s.wh.Dialect(), "updated_at")
	query := fmt.Sprintf("SELECT MAX(%s) FROM %s", quoted, warehouse.QuoteIdent(s.wh.Dialect(), table))
	var max sql.NullTime
	if err := s.wh.Pool().DB.QueryRowContext(ctx, query).Scan(&max); err != nil {
		return nil, fmt.Errorf("syncsvc: fallback last-modified lookup for %s: %w", table, err)
	}
	if !max.Valid {
		return nil, nil
	}
	return &max.Time, nil
}

func (s *Service) runIncrementalSync(ctx context.Context, entityType bitrix.EntityType, table, key string, since time.Time) (int, int, error) {
	compareField, ok := incrementalCompareField[entityType]
	if !ok {
		compareField = "DATE_MODIFY"
	}

	filter := map[string]any{
		">" + compareField: since.UTC().Format(bitrixTimeLayout),
	}

	records, err := s.client.GetEntities(ctx, entityType, filter, nil)
	if err != nil {
		return 0, 0, err
	}
	if len(records) == 0 {
		return 0, 0, nil
	}

	fields, err := s.mergedFields(ctx, entityType)
	if err != nil {
		return 0, len(records), err
	}
	if err := s.builder.EnsureTable(ctx, table, fields); err != nil {
		return 0, len(records), err
	}

	processed, err := s.writer.Write(ctx, table, records, []string{"bitrix_id"})
	if err != nil {
		return processed, len(records), err
	}

	now := time.Now().UTC()
	if err := s.store.SetSyncStateModifiedOnly(ctx, key, now); err != nil {
		return processed, len(records), err
	}
	if err := s.store.TouchLastSyncAt(ctx, key); err != nil {
		return processed, len(records), err
	}

	return processed, len(records), nil
}

// SyncEntityByID fetches and upserts a single record (spec.md §4.F.3).
// It returns ok=false (without error) when the target table does not
// exist, the "skipped" outcome.
func (s *Service) SyncEntityByID(ctx context.Context, entityType bitrix.EntityType, id string) (ok bool, err error) {
	key := string(entityType)
	table := tableName(entityType)

	exists, err := s.builder.TableExists(ctx, table)
	if err != nil {
		return false, fmt.Errorf("syncsvc: check table %s: %w", table, err)
	}
	if !exists {
		return false, nil
	}

	record, err := s.client.GetEntity(ctx, entityType, id)
	if err != nil {
		return false, &SyncError{EntityType: key, Step: "webhook_sync", Err: err}
	}
	if record == nil {
		return false, nil
	}

	if _, err := s.writer.Write(ctx, table, []map[string]any{record}, []string{"bitrix_id"}); err != nil {
		return false, &SyncError{EntityType: key, Step: "webhook_sync", Err: err}
	}
	return true, nil
}

// DeleteEntityByID removes one record by its Bitrix id (spec.md §4.F.3).
// It returns ok=false when the target table does not exist.
func (s *Service) DeleteEntityByID(ctx context.Context, entityType bitrix.EntityType, id string) (ok bool, err error) {
	key := string(entityType)
	table := tableName(entityType)

	exists, err := s.builder.TableExists(ctx, table)
	if err != nil {
		return false, fmt.Errorf("syncsvc: check table %s: %w", table, err)
	}
	if !exists {
		return false, nil
	}

	ph := s.wh.Placeholder(1)
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		warehouse.QuoteIdent(s.wh.Dialect(), table),
		warehouse.QuoteIdent(s.wh.Dialect(), "bitrix_id"),
		ph)
	if _, err := s.wh.Pool().DB.ExecContext(ctx, stmt, id); err != nil {
		return false, &SyncError{EntityType: key, Step: "webhook_delete", Err: err}
	}
	return true, nil
}

// mergedFields fetches standard and user-defined field metadata and
// merges them via the field mapper (spec.md §4.F.1 step 2).
func (s *Service) mergedFields(ctx context.Context, entityType bitrix.EntityType) ([]fieldmap.Field, error) {
	standard, err := s.client.GetEntityFields(ctx, entityType)
	if err != nil {
		return nil, fmt.Errorf("syncsvc: fetch standard fields for %s: %w", entityType, err)
	}
	user, err := s.client.GetUserFields(ctx, entityType)
	if err != nil {
		return nil, fmt.Errorf("syncsvc: fetch user fields for %s: %w", entityType, err)
	}
	return fieldmap.Merge(standard, user), nil
}

func (s *Service) finishLog(ctx context.Context, logID, key string, processed, fetched int, err error) {
	status := syncstore.StatusCompleted
	errMsg := ""
	if err != nil {
		status = syncstore.StatusFailed
		errMsg = err.Error()
	}
	if completeErr := s.store.CompleteSyncLog(ctx, logID, status, processed, fetched, errMsg); completeErr != nil && s.logger != nil {
		s.logger.LogDatabaseOperation(ctx, "complete_sync_log", "sync_logs", 0, 0, completeErr)
	}
	if s.logger != nil {
		s.logger.LogSyncRun(ctx, key, "entity", string(status), processed, 0)
	}
}

// TableName exposes the entity-type-to-warehouse-table mapping (spec.md
// §3.1) for callers outside this package, such as the admin HTTP
// layer's row-count endpoint.
func TableName(entityType bitrix.EntityType) string {
	return tableName(entityType)
}

// EntityTypeFromKey resolves a logical entity-type string (as stored in
// sync_config/sync_state/sync_logs, or passed on the wire by the admin
// HTTP layer) back to the bitrix.EntityType it names.
func EntityTypeFromKey(key string) (bitrix.EntityType, bool) {
	for et := range entityTableNames {
		if string(et) == key {
			return et, true
		}
	}
	return "", false
}
