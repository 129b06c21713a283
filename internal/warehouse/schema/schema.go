// Package schema is the Dynamic Table Builder (spec.md §4.C): it brings
// a warehouse table into agreement with a field list without ever
// dropping or altering an existing column.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/bitrixepl/engine/internal/cache"
	"github.com/bitrixepl/engine/internal/fieldmap"
	"github.com/bitrixepl/engine/internal/observability"
	"github.com/bitrixepl/engine/internal/warehouse"
)

// Builder reconciles warehouse tables against Bitrix field metadata.
// Every table it creates carries the invariant prefix from spec.md
// §3.1/§3.2: a surrogate key, the replication key, and the two audit
// timestamps, followed by one column per known field.
type Builder struct {
	wh     *warehouse.Warehouse
	cache  *cache.SchemaCatalogCache
	logger *observability.Logger
}

// New constructs a Builder. cache may be nil, in which case every lookup
// hits information_schema directly.
func New(wh *warehouse.Warehouse, schemaCache *cache.SchemaCatalogCache, logger *observability.Logger) *Builder {
	return &Builder{wh: wh, cache: schemaCache, logger: logger}
}

// TableExists reports whether table is present in the current schema.
func (b *Builder) TableExists(ctx context.Context, table string) (bool, error) {
	var query string
	if b.wh.Dialect() == "mysql" {
		query = `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`
	} else {
		query = `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1`
	}
	var count int
	if err := b.wh.Pool().DB.QueryRowContext(ctx, query, table).Scan(&count); err != nil {
		return false, fmt.Errorf("schema: check table existence for %s: %w", table, err)
	}
	return count > 0, nil
}

// GetTableColumns returns the table's column names from
// information_schema.columns.
func (b *Builder) GetTableColumns(ctx context.Context, table string) ([]string, error) {
	cols, err := b.GetColumnTypes(ctx, table)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	return names, nil
}

// GetColumnTypes returns a column-name -> declared-SQL-type map for
// table, consulting the schema cache first if one was provided.
func (b *Builder) GetColumnTypes(ctx context.Context, table string) (map[string]string, error) {
	if b.cache != nil {
		if cols, ok := b.cache.ColumnTypes(ctx, table); ok {
			return cols, nil
		}
	}

	var query string
	if b.wh.Dialect() == "mysql" {
		query = `SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ?`
	} else {
		query = `SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1`
	}

	rows, err := b.wh.Pool().DB.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("schema: query columns for %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]string)
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, fmt.Errorf("schema: scan column row for %s: %w", table, err)
		}
		cols[name] = dataType
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema: iterate columns for %s: %w", table, err)
	}

	if b.cache != nil {
		b.cache.SetColumnTypes(ctx, table, cols)
	}
	return cols, nil
}

// EnsureTable brings table into agreement with fields: CREATE it (with
// the invariant prefix plus one column per field) if absent, or ALTER it
// to add any missing columns if present. Existing columns are never
// altered or dropped.
func (b *Builder) EnsureTable(ctx context.Context, table string, fields []fieldmap.Field) error {
	return b.ensureTableWithKey(ctx, table, fields, nil)
}

// EnsureReferenceTable is EnsureTable's sibling for reference tables,
// which declare a composite natural-key UNIQUE constraint over uniqueKey
// instead of relying on bitrix_id alone.
func (b *Builder) EnsureReferenceTable(ctx context.Context, table string, fields []fieldmap.Field, uniqueKey []string) error {
	return b.ensureTableWithKey(ctx, table, fields, uniqueKey)
}

func (b *Builder) ensureTableWithKey(ctx context.Context, table string, fields []fieldmap.Field, uniqueKey []string) error {
	exists, err := b.TableExists(ctx, table)
	if err != nil {
		return err
	}

	if !exists {
		ddl := b.createTableSQL(table, fields, uniqueKey)
		if _, err := b.wh.Pool().DB.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("schema: create table %s: %w", table, err)
		}
		if err := b.applyComments(ctx, table, fields); err != nil {
			return err
		}
		if b.logger != nil {
			b.logger.LogSchemaChange(ctx, table, "create", columnNames(fields))
		}
		if b.cache != nil {
			b.cache.Invalidate(ctx, table)
		}
		return nil
	}

	existing, err := b.GetColumnTypes(ctx, table)
	if err != nil {
		return err
	}

	var added []string
	for _, f := range fields {
		if _, ok := existing[f.Column]; ok {
			continue
		}
		colDef := fmt.Sprintf("%s %s", quote(b, f.Column), f.SQLType)
		if b.wh.Dialect() == "mysql" && f.Description != "" {
			colDef += fmt.Sprintf(" COMMENT '%s'", escapeComment(f.Description))
		}
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quote(b, table), colDef)
		if _, err := b.wh.Pool().DB.ExecContext(ctx, alter); err != nil {
			return fmt.Errorf("schema: add column %s.%s: %w", table, f.Column, err)
		}
		added = append(added, f.Column)
	}

	if len(added) > 0 {
		if err := b.applyComments(ctx, table, fieldsByColumn(fields, added)); err != nil {
			return err
		}
		if b.logger != nil {
			b.logger.LogSchemaChange(ctx, table, "alter_add_columns", added)
		}
		if b.cache != nil {
			b.cache.Invalidate(ctx, table)
		}
	}

	return nil
}

func fieldsByColumn(fields []fieldmap.Field, columns []string) []fieldmap.Field {
	want := make(map[string]bool, len(columns))
	for _, c := range columns {
		want[c] = true
	}
	out := make([]fieldmap.Field, 0, len(columns))
	for _, f := range fields {
		if want[f.Column] {
			out = append(out, f)
		}
	}
	return out
}

func columnNames(fields []fieldmap.Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Column
	}
	return names
}

func quote(b *Builder, name string) string {
	return warehouse.QuoteIdent(b.wh.Dialect(), name)
}

// createTableSQL builds the CREATE TABLE statement: invariant prefix
// (record_id, bitrix_id unique not null, created_at/updated_at with
// defaults) for entity tables; reference tables get the same prefix with
// bitrix_id nullable and not unique, plus a composite UNIQUE constraint
// over uniqueKey.
func (b *Builder) createTableSQL(table string, fields []fieldmap.Field, uniqueKey []string) string {
	dialect := b.wh.Dialect()
	cols := []string{
		warehouse.AutoIncrementColumn(dialect),
	}

	if uniqueKey == nil {
		cols = append(cols, fmt.Sprintf("%s VARCHAR(255) NOT NULL UNIQUE", quote(b, "bitrix_id")))
	} else {
		cols = append(cols, fmt.Sprintf("%s VARCHAR(255)", quote(b, "bitrix_id")))
	}

	cols = append(cols,
		fmt.Sprintf("%s %s DEFAULT %s", quote(b, "created_at"), warehouse.TimestampType(dialect), warehouse.NowExpr(dialect)),
		fmt.Sprintf("%s %s DEFAULT %s", quote(b, "updated_at"), warehouse.TimestampType(dialect), warehouse.NowExpr(dialect)),
	)

	for _, f := range fields {
		colDef := fmt.Sprintf("%s %s", quote(b, f.Column), f.SQLType)
		if dialect == "mysql" && f.Description != "" {
			colDef += fmt.Sprintf(" COMMENT '%s'", escapeComment(f.Description))
		}
		cols = append(cols, colDef)
	}

	if uniqueKey != nil {
		quoted := make([]string, len(uniqueKey))
		for i, k := range uniqueKey {
			quoted[i] = quote(b, k)
		}
		cols = append(cols, fmt.Sprintf("UNIQUE (%s)", strings.Join(quoted, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", quote(b, table), strings.Join(cols, ",\n  "))
}

// applyComments emits column comments on PostgreSQL (MySQL comments are
// already inline in the CREATE/ALTER above). Duplicate comment text
// across columns is disambiguated by appending "_<col>" to the comment,
// per spec.md §4.C.
func (b *Builder) applyComments(ctx context.Context, table string, fields []fieldmap.Field) error {
	if b.wh.Dialect() != "postgresql" {
		return nil
	}

	seen := make(map[string]bool)
	for _, f := range fields {
		if f.Description == "" {
			continue
		}
		comment := f.Description
		if seen[comment] {
			comment = fmt.Sprintf("%s_%s", comment, f.Column)
		}
		seen[comment] = true

		stmt := fmt.Sprintf("COMMENT ON COLUMN %s.%s IS '%s'", quote(b, table), quote(b, f.Column), escapeComment(comment))
		if _, err := b.wh.Pool().DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema: comment column %s.%s: %w", table, f.Column, err)
		}
	}
	return nil
}

func escapeComment(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
