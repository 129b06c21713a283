package warehouse

import (
	"fmt"
	"strings"

	"github.com/bitrixepl/engine/internal/config"
)

// Placeholder returns the positional bind-parameter syntax for position n
// (1-indexed) in the active dialect: PostgreSQL uses $1, $2, ...; MySQL
// uses a bare "?" regardless of position.
func (w *Warehouse) Placeholder(n int) string {
	return Placeholder(w.Dialect(), n)
}

// Placeholder is the dialect-free form, usable by components that only
// know the dialect value (e.g. the upsert writer building a statement for
// a batch before it has a *Warehouse in scope).
func Placeholder(dialect config.DBDialect, n int) string {
	if dialect == config.DialectMySQL {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// QuoteIdent quotes a column/table identifier for the active dialect.
// Every identifier passed through this package is already lower-cased and
// restricted to [a-z0-9_] by the field mapper's name normalization, so
// escaping embedded quote characters is not a concern here.
func QuoteIdent(dialect config.DBDialect, name string) string {
	if dialect == config.DialectMySQL {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

// AutoIncrementColumn returns the dialect's surrogate-key column
// definition for record_id.
func AutoIncrementColumn(dialect config.DBDialect) string {
	if dialect == config.DialectMySQL {
		return "record_id BIGINT AUTO_INCREMENT PRIMARY KEY"
	}
	return "record_id BIGSERIAL PRIMARY KEY"
}

// TimestampType returns the dialect's TIMESTAMP column type.
func TimestampType(dialect config.DBDialect) string {
	if dialect == config.DialectMySQL {
		return "TIMESTAMP NULL"
	}
	return "TIMESTAMP"
}

// NowExpr returns the dialect's "current timestamp" SQL expression.
func NowExpr(dialect config.DBDialect) string {
	if dialect == config.DialectMySQL {
		return "CURRENT_TIMESTAMP"
	}
	return "NOW()"
}

// UpsertConflictClause builds the ON CONFLICT / ON DUPLICATE KEY UPDATE
// tail of an INSERT statement. uniqueKey is the conflict target's column
// list (bitrix_id for entity tables, the registry's composite key for
// reference tables); updateCols is every other column that should be
// refreshed on conflict.
func UpsertConflictClause(dialect config.DBDialect, uniqueKey, updateCols []string) string {
	if len(updateCols) == 0 {
		if dialect == config.DialectMySQL {
			// MySQL has no no-op upsert shorthand; update the conflict
			// key onto itself so the statement stays a valid upsert.
			col := updateCols
			_ = col
			first := uniqueKey[0]
			return fmt.Sprintf("ON DUPLICATE KEY UPDATE %s = VALUES(%s)", QuoteIdent(dialect, first), QuoteIdent(dialect, first))
		}
		return fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", quoteIdentList(dialect, uniqueKey))
	}

	if dialect == config.DialectMySQL {
		sets := make([]string, 0, len(updateCols)+1)
		for _, c := range updateCols {
			q := QuoteIdent(dialect, c)
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", q, q))
		}
		sets = append(sets, fmt.Sprintf("%s = %s", QuoteIdent(dialect, "updated_at"), NowExpr(dialect)))
		return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}

	sets := make([]string, 0, len(updateCols)+1)
	for _, c := range updateCols {
		q := QuoteIdent(dialect, c)
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
	}
	sets = append(sets, fmt.Sprintf("%s = %s", QuoteIdent(dialect, "updated_at"), NowExpr(dialect)))
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", quoteIdentList(dialect, uniqueKey), strings.Join(sets, ", "))
}

func quoteIdentList(dialect config.DBDialect, names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdent(dialect, n)
	}
	return strings.Join(quoted, ", ")
}
