// Package upsert is the Upsert Writer (spec.md §4.E): it coerces a batch
// of source records to a table's declared column types and emits one
// conflict-resolving INSERT per record.
package upsert

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bitrixepl/engine/internal/observability"
	"github.com/bitrixepl/engine/internal/warehouse"
	"github.com/bitrixepl/engine/internal/warehouse/schema"
)

// Writer upserts records into warehouse tables.
type Writer struct {
	wh      *warehouse.Warehouse
	builder *schema.Builder
	logger  *observability.Logger
}

// New constructs a Writer.
func New(wh *warehouse.Warehouse, builder *schema.Builder, logger *observability.Logger) *Writer {
	return &Writer{wh: wh, builder: builder, logger: logger}
}

// Write upserts records into table, using uniqueKey as the conflict
// target ([]string{"bitrix_id"} for entity tables, the registry's
// composite key for reference tables). It returns the count of records
// whose statement executed without error; any statement failure
// propagates immediately so the calling sync service can fail the whole
// task (spec.md §4.E "Failures ... propagate to the calling service").
func (w *Writer) Write(ctx context.Context, table string, records []map[string]any, uniqueKey []string) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	columnTypes, err := w.builder.GetColumnTypes(ctx, table)
	if err != nil {
		return 0, fmt.Errorf("upsert: load column types for %s: %w", table, err)
	}

	processed := 0
	for _, record := range records {
		prepared := prepareRecord(record, columnTypes)

		if !hasUniqueKey(prepared, uniqueKey) {
			continue
		}

		if err := w.upsertOne(ctx, table, prepared, uniqueKey); err != nil {
			return processed, fmt.Errorf("upsert: write to %s: %w", table, err)
		}
		processed++
	}

	if w.logger != nil {
		w.logger.LogDatabaseOperation(ctx, "upsert", table, int64(processed), 0, nil)
	}

	return processed, nil
}

// hasUniqueKey reports whether every component of the conflict target is
// present and non-nil in the prepared record. For entity tables this is
// spec.md §4.E step 3's "skip the record if bitrix_id is absent" rule,
// generalized to reference tables' composite keys.
func hasUniqueKey(prepared map[string]any, uniqueKey []string) bool {
	for _, k := range uniqueKey {
		v, ok := prepared[k]
		if !ok || v == nil {
			return false
		}
	}
	return true
}

func (w *Writer) upsertOne(ctx context.Context, table string, prepared map[string]any, uniqueKey []string) error {
	columns := sortedColumns(prepared)

	dialect := w.wh.Dialect()
	placeholders := make([]string, len(columns))
	args := make([]any, len(columns))
	quotedCols := make([]string, len(columns))
	for i, col := range columns {
		quotedCols[i] = warehouse.QuoteIdent(dialect, col)
		placeholders[i] = warehouse.Placeholder(dialect, i+1)
		args[i] = prepared[col]
	}

	updateCols := make([]string, 0, len(columns))
	for _, col := range columns {
		if !contains(uniqueKey, col) {
			updateCols = append(updateCols, col)
		}
	}

	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) %s",
		warehouse.QuoteIdent(dialect, table),
		strings.Join(quotedCols, ", "),
		strings.Join(placeholders, ", "),
		warehouse.UpsertConflictClause(dialect, uniqueKey, updateCols),
	)

	_, err := w.wh.Pool().DB.ExecContext(ctx, stmt, args...)
	return err
}

func sortedColumns(prepared map[string]any) []string {
	cols := make([]string, 0, len(prepared))
	for c := range prepared {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
