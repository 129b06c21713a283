// Package syncstore is the Sync-config / State Store (spec.md §4.L): CRUD
// over the three administrative tables (sync_config, sync_state,
// sync_logs) that back the scheduler and the admin HTTP surface.
package syncstore

import "time"

// SyncConfig is one row of sync_config: per-entity sync policy.
type SyncConfig struct {
	EntityType           string     `json:"entity_type" db:"entity_type"`
	Enabled              bool       `json:"enabled" db:"enabled"`
	SyncIntervalMinutes  int        `json:"sync_interval_minutes" db:"sync_interval_minutes"`
	WebhookEnabled       bool       `json:"webhook_enabled" db:"webhook_enabled"`
	LastSyncAt           *time.Time `json:"last_sync_at" db:"last_sync_at"`
}

// SyncState is one row of sync_state: the incremental high-water mark.
type SyncState struct {
	EntityType       string     `json:"entity_type" db:"entity_type"`
	LastModifiedDate *time.Time `json:"last_modified_date" db:"last_modified_date"`
	LastBitrixID     string     `json:"last_bitrix_id" db:"last_bitrix_id"`
	TotalRecords     int        `json:"total_records" db:"total_records"`
}

// SyncStatus is the sync_logs.status enumeration (spec.md §3.2).
type SyncStatus string

const (
	StatusRunning   SyncStatus = "running"
	StatusCompleted SyncStatus = "completed"
	StatusFailed    SyncStatus = "failed"
)

// SyncType is the sync_logs.sync_type enumeration (spec.md §3.2).
type SyncType string

const (
	SyncTypeFull        SyncType = "full"
	SyncTypeIncremental SyncType = "incremental"
	SyncTypeWebhook     SyncType = "webhook"
	SyncTypeReference   SyncType = "reference"
)

// SyncLog is one row of sync_logs: an append-only record of one sync
// attempt.
type SyncLog struct {
	ID               string     `json:"id" db:"id"`
	EntityType       string     `json:"entity_type" db:"entity_type"`
	SyncType         SyncType   `json:"sync_type" db:"sync_type"`
	Status           SyncStatus `json:"status" db:"status"`
	RecordsProcessed int        `json:"records_processed" db:"records_processed"`
	RecordsFetched   int        `json:"records_fetched" db:"records_fetched"`
	ErrorMessage     string     `json:"error_message" db:"error_message"`
	StartedAt        time.Time  `json:"started_at" db:"started_at"`
	CompletedAt      *time.Time `json:"completed_at" db:"completed_at"`
}

// KnownEntityTypes is every entity/reference type sync_config is seeded
// for at first start (spec.md §3.2 "seeded for all known types").
var KnownEntityTypes = []string{
	"deal", "contact", "lead", "company",
	"user", "task", "call",
	"stage_history_deal", "stage_history_lead",
	"crm_status", "crm_deal_category", "crm_currency",
}
