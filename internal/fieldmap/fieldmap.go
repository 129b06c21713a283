// Package fieldmap is the Field Mapper (spec.md §4.B): it turns Bitrix's
// field-metadata vocabulary into warehouse column definitions.
package fieldmap

import "strings"

// Field is a normalized warehouse column definition derived from one
// Bitrix field.
type Field struct {
	// Column is the normalized (lower-cased) column name.
	Column string
	// SQLType is the dialect-neutral SQL type (VARCHAR(255), TEXT,
	// BIGINT, FLOAT, TIMESTAMP, BOOLEAN).
	SQLType string
	// Description is the human-readable label, used as a column comment.
	Description string
	// Multiple marks an isMultiple=true field (stored as JSON-array TEXT).
	Multiple bool
}

// BitrixFieldMeta is the subset of a Bitrix `crm.*.fields` /
// `user.fields` response this package needs per field.
type BitrixFieldMeta struct {
	FieldID         string
	Type            string
	Title           string
	FormLabel       string
	ListColumnLabel string
	EditFormLabel   string
	IsMultiple      bool
}

// typeTable is the complete Bitrix-type -> SQL-type mapping from
// spec.md §4.B. Unknown types fall through to VARCHAR(255).
var typeTable = map[string]string{
	"string":          "VARCHAR(255)",
	"char":            "VARCHAR(255)",
	"url":             "VARCHAR(255)",
	"file":            "VARCHAR(255)",
	"disk_file":       "VARCHAR(255)",
	"employee":        "VARCHAR(255)",
	"enumeration":     "VARCHAR(255)",
	"resourcebooking": "VARCHAR(255)",
	"hlblock":         "VARCHAR(255)",
	"video":           "VARCHAR(255)",
	"text":            "TEXT",
	"address":         "TEXT",
	"integer":         "BIGINT",
	"double":          "FLOAT",
	"float":           "FLOAT",
	"money":           "FLOAT",
	"datetime":        "TIMESTAMP",
	"date":            "TIMESTAMP",
	"boolean":         "BOOLEAN",
}

// sqlTypeForBitrixType returns the warehouse column type for a Bitrix
// field type. Types prefixed crm_ or iblock_ map to VARCHAR(255) like the
// rest of the enumerated "reference-ish" types; everything else not in
// typeTable also defaults to VARCHAR(255).
func sqlTypeForBitrixType(bitrixType string) string {
	t := strings.ToLower(bitrixType)
	if strings.HasPrefix(t, "crm_") || strings.HasPrefix(t, "iblock_") {
		return "VARCHAR(255)"
	}
	if sqlType, ok := typeTable[t]; ok {
		return sqlType
	}
	return "VARCHAR(255)"
}

// normalizeName lower-cases a Bitrix field ID into a warehouse column
// name. Bitrix field IDs are already restricted to [A-Z0-9_], so
// lower-casing is the entire transformation.
func normalizeName(fieldID string) string {
	return strings.ToLower(fieldID)
}

// description picks the first non-empty label in spec.md §4.B order:
// title, formLabel, LIST_COLUMN_LABEL.ru, EDIT_FORM_LABEL.ru.
func description(f BitrixFieldMeta) string {
	for _, candidate := range []string{f.Title, f.FormLabel, f.ListColumnLabel, f.EditFormLabel} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// MapField converts one Bitrix field definition into a warehouse Field.
func MapField(f BitrixFieldMeta) Field {
	sqlType := sqlTypeForBitrixType(f.Type)
	if f.IsMultiple {
		sqlType = "TEXT"
	}
	return Field{
		Column:      normalizeName(f.FieldID),
		SQLType:     sqlType,
		Description: description(f),
		Multiple:    f.IsMultiple,
	}
}

// Merge combines standard entity fields with user-defined (UF_*) fields,
// normalizing both and letting user-field entries override standard
// entries that normalize to the same column name (spec.md §4.B "merging
// standard with user fields"). Order is preserved: standard fields first
// in their original order, then any user fields whose column name wasn't
// already present.
func Merge(standard, user []BitrixFieldMeta) []Field {
	order := make([]string, 0, len(standard)+len(user))
	byColumn := make(map[string]Field, len(standard)+len(user))

	for _, f := range standard {
		mapped := MapField(f)
		if _, exists := byColumn[mapped.Column]; !exists {
			order = append(order, mapped.Column)
		}
		byColumn[mapped.Column] = mapped
	}
	for _, f := range user {
		mapped := MapField(f)
		if _, exists := byColumn[mapped.Column]; !exists {
			order = append(order, mapped.Column)
		}
		byColumn[mapped.Column] = mapped
	}

	fields := make([]Field, 0, len(order))
	for _, col := range order {
		fields = append(fields, byColumn[col])
	}
	return fields
}
