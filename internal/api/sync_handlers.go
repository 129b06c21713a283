package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bitrixepl/engine/internal/queue"
	"github.com/bitrixepl/engine/internal/syncstore"
	"github.com/bitrixepl/engine/internal/syncsvc"
	"github.com/bitrixepl/engine/internal/warehouse"
)

// listSyncConfigHandler is GET /sync/config (spec.md §6.3).
func (s *Server) listSyncConfigHandler(w http.ResponseWriter, r *http.Request) {
	configs, err := s.store.ListSyncConfig(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, configs)
}

// upsertSyncConfigHandler is PUT /sync/config: it persists the row and,
// per spec.md §4.I "On config mutation", reschedules or unregisters the
// entity's scheduler job in place.
func (s *Server) upsertSyncConfigHandler(w http.ResponseWriter, r *http.Request) {
	var body syncstore.SyncConfig
	if err := decodeJSON(r, &body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if body.EntityType == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "entity_type is required")
		return
	}
	if body.SyncIntervalMinutes <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "sync_interval_minutes must be positive")
		return
	}

	if err := s.store.UpsertSyncConfig(r.Context(), body); err != nil {
		writeErr(w, err)
		return
	}

	if body.Enabled {
		s.scheduler.Register(r.Context(), body.EntityType, time.Duration(body.SyncIntervalMinutes)*time.Minute)
	} else {
		s.scheduler.Unregister(body.EntityType)
	}

	writeJSON(w, body)
}

// startSyncHandler is POST /sync/start/{entity}?sync_type=full|incremental
// (spec.md §8.2 example 4: two requests within the dedup window return
// the same task_id with a different status).
func (s *Server) startSyncHandler(w http.ResponseWriter, r *http.Request) {
	entityKey := r.PathValue("entity")
	if _, ok := syncsvc.EntityTypeFromKey(entityKey); !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "unknown entity type: "+entityKey)
		return
	}

	syncType := r.URL.Query().Get("sync_type")
	taskType := queue.TaskIncremental
	if syncType == "full" {
		taskType = queue.TaskFull
	}

	result := s.queue.Enqueue(queue.Task{
		TaskType:   taskType,
		EntityType: entityKey,
		SyncType:   syncType,
		Priority:   queue.PriorityManual,
		CreatedAt:  time.Now().UnixNano(),
	})

	status := "started"
	if result.Outcome != queue.OutcomeQueued {
		status = "already_queued"
	}
	writeJSON(w, map[string]any{"status": status, "task_id": result.TaskID})
}

// syncStatusHandler is GET /sync/status: running/pending/last-known
// state per entity, drawn from the queue snapshot and sync_config.
func (s *Server) syncStatusHandler(w http.ResponseWriter, r *http.Request) {
	qs := s.queue.Status()
	configs, err := s.store.ListSyncConfig(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"queue":       qs,
		"jobs":        s.scheduler.Jobs(),
		"sync_config": configs,
	})
}

// syncHistoryHandler is GET /sync/history?entity_type=&limit=&offset=
// (paginated sync_logs, spec.md §6.3).
func (s *Server) syncHistoryHandler(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("entity_type")
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	logs, err := s.store.ListSyncLogs(r.Context(), entityType, limit, offset)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, logs)
}

// syncStatsHandler is GET /sync/stats: row counts and last-sync
// timestamps per known entity type (spec.md §6.3).
func (s *Server) syncStatsHandler(w http.ResponseWriter, r *http.Request) {
	configs, err := s.store.ListSyncConfig(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}

	type entityStat struct {
		EntityType string     `json:"entity_type"`
		RowCount   int64      `json:"row_count"`
		LastSyncAt *time.Time `json:"last_sync_at"`
	}

	stats := make([]entityStat, 0, len(configs))
	for _, c := range configs {
		et, ok := syncsvc.EntityTypeFromKey(c.EntityType)
		if !ok {
			// reference types (crm_status, crm_deal_category, crm_currency)
			// are reported by GET /references/status instead.
			continue
		}
		count, err := s.tableRowCount(r.Context(), syncsvc.TableName(et))
		if err != nil {
			writeErr(w, err)
			return
		}
		stats = append(stats, entityStat{EntityType: c.EntityType, RowCount: count, LastSyncAt: c.LastSyncAt})
	}
	writeJSON(w, stats)
}

// tableRowCount returns 0 without querying when table does not exist
// yet (no sync has run), rather than surfacing a missing-relation SQL
// error to the caller.
func (s *Server) tableRowCount(ctx context.Context, table string) (int64, error) {
	exists, err := s.builder.TableExists(ctx, table)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	quoted := warehouse.QuoteIdent(s.wh.Dialect(), table)
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoted)
	if err := s.wh.Pool().DB.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("api: count rows in %s: %w", table, err)
	}
	return count, nil
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
