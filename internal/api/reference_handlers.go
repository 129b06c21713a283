package api

import (
	"net/http"
	"time"

	"github.com/bitrixepl/engine/internal/queue"
	"github.com/bitrixepl/engine/internal/reference"
)

// syncOneReferenceHandler is POST /references/sync/{name}: it enqueues a
// reference task at reference priority rather than running the sync
// inline, so the HTTP call returns immediately (spec.md §6.3).
func (s *Server) syncOneReferenceHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, ok := reference.Lookup(s.reference.Entries(), name); !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "unknown reference entry: "+name)
		return
	}

	result := s.queue.Enqueue(queue.Task{
		TaskType:   queue.TaskReference,
		EntityType: name,
		SyncType:   "reference",
		Priority:   queue.PriorityReference,
		CreatedAt:  time.Now().UnixNano(),
	})

	status := "started"
	if result.Outcome != queue.OutcomeQueued {
		status = "already_queued"
	}
	writeJSON(w, map[string]any{"status": status, "task_id": result.TaskID})
}

// syncAllReferencesHandler is POST /references/sync-all.
func (s *Server) syncAllReferencesHandler(w http.ResponseWriter, r *http.Request) {
	result := s.queue.Enqueue(queue.Task{
		TaskType:  queue.TaskReferenceAll,
		SyncType:  "reference_all",
		Priority:  queue.PriorityReference,
		CreatedAt: time.Now().UnixNano(),
	})

	status := "started"
	if result.Outcome != queue.OutcomeQueued {
		status = "already_queued"
	}
	writeJSON(w, map[string]any{"status": status, "task_id": result.TaskID})
}

// referenceStatusHandler is GET /references/status: per-reference row
// count (spec.md §6.3); entries with no Bitrix-backed API method (
// enum_values) report their row count only, with no associated task
// type to re-enqueue.
func (s *Server) referenceStatusHandler(w http.ResponseWriter, r *http.Request) {
	type refStat struct {
		Name     string `json:"name"`
		Table    string `json:"table"`
		RowCount int64  `json:"row_count"`
	}

	entries := s.reference.Entries()
	stats := make([]refStat, 0, len(entries))
	for _, e := range entries {
		count, err := s.tableRowCount(r.Context(), e.TableName)
		if err != nil {
			writeErr(w, err)
			return
		}
		stats = append(stats, refStat{Name: e.Name, Table: e.TableName, RowCount: count})
	}
	writeJSON(w, stats)
}
