// Package reference is the Reference Registry (spec.md §4.D) and
// Reference Sync Service (spec.md §4.G): a declarative catalogue of
// dictionary tables plus the service that keeps them in sync.
package reference

// FieldDef is one declared column of a reference table.
type FieldDef struct {
	Name     string
	SQLType  string
	Nullable bool
}

// Entry is one registered reference/dictionary type.
type Entry struct {
	// Name is the registry key (spec.md §4.D "Name" column).
	Name string
	// TableName is the warehouse table, always ref_<slug>.
	TableName string
	// APIMethod is the Bitrix method used to populate the table. Empty
	// for registry entries populated only as a side effect of entity
	// syncs (enum_values).
	APIMethod string
	// UniqueKey is the ordered column list forming the composite
	// natural-key UNIQUE constraint.
	UniqueKey []string
	// Fields is the ordered column list beyond the invariant prefix.
	Fields []FieldDef
	// RequiresCategoryIteration marks entries (crm_status) whose sync
	// must iterate every deal-pipeline category to assemble the full
	// stage list.
	RequiresCategoryIteration bool
}

// ColumnNames returns Fields in declaration order as bare column names,
// for callers building a fieldmap.Field-shaped column list.
func (e Entry) ColumnNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
	}
	return names
}

// DefaultRegistry returns the stable set of registered reference types
// from spec.md §4.D.
func DefaultRegistry() []Entry {
	return []Entry{
		{
			Name:      "crm_status",
			TableName: "ref_crm_statuses",
			APIMethod: "crm.status.list",
			UniqueKey: []string{"status_id", "entity_id", "category_id"},
			Fields: []FieldDef{
				{Name: "status_id", SQLType: "VARCHAR(255)"},
				{Name: "entity_id", SQLType: "VARCHAR(255)"},
				{Name: "category_id", SQLType: "VARCHAR(255)"},
				{Name: "name", SQLType: "VARCHAR(255)", Nullable: true},
				{Name: "name_init", SQLType: "VARCHAR(255)", Nullable: true},
				{Name: "sort", SQLType: "BIGINT", Nullable: true},
				{Name: "semantics", SQLType: "VARCHAR(255)", Nullable: true},
				{Name: "color", SQLType: "VARCHAR(255)", Nullable: true},
			},
			RequiresCategoryIteration: true,
		},
		{
			Name:      "crm_deal_category",
			TableName: "ref_crm_deal_categories",
			APIMethod: "crm.dealcategory.list",
			UniqueKey: []string{"id"},
			Fields: []FieldDef{
				{Name: "id", SQLType: "VARCHAR(255)"},
				{Name: "name", SQLType: "VARCHAR(255)", Nullable: true},
				{Name: "sort", SQLType: "BIGINT", Nullable: true},
				{Name: "is_default", SQLType: "BOOLEAN", Nullable: true},
			},
		},
		{
			Name:      "crm_currency",
			TableName: "ref_crm_currencies",
			APIMethod: "crm.currency.list",
			UniqueKey: []string{"currency"},
			Fields: []FieldDef{
				{Name: "currency", SQLType: "VARCHAR(255)"},
				{Name: "full_name", SQLType: "VARCHAR(255)", Nullable: true},
				{Name: "sort", SQLType: "BIGINT", Nullable: true},
				{Name: "dec_places", SQLType: "BIGINT", Nullable: true},
				{Name: "decimals", SQLType: "BIGINT", Nullable: true},
				{Name: "amount_cnt", SQLType: "VARCHAR(255)", Nullable: true},
			},
		},
		{
			Name:      "enum_values",
			TableName: "ref_enum_values",
			APIMethod: "",
			UniqueKey: []string{"field_name", "entity_type", "item_id"},
			Fields: []FieldDef{
				{Name: "field_name", SQLType: "VARCHAR(255)"},
				{Name: "entity_type", SQLType: "VARCHAR(255)"},
				{Name: "item_id", SQLType: "VARCHAR(255)"},
				{Name: "value", SQLType: "VARCHAR(255)", Nullable: true},
				{Name: "sort", SQLType: "BIGINT", Nullable: true},
			},
		},
	}
}

// Lookup finds a registry entry by name.
func Lookup(entries []Entry, name string) (Entry, bool) {
	for _, e := range entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}
