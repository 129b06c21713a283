package fieldmap

import "testing"

func TestMapFieldTypes(t *testing.T) {
	cases := []struct {
		bitrixType string
		multiple   bool
		wantSQL    string
	}{
		{"string", false, "VARCHAR(255)"},
		{"text", false, "TEXT"},
		{"integer", false, "BIGINT"},
		{"double", false, "FLOAT"},
		{"money", false, "FLOAT"},
		{"datetime", false, "TIMESTAMP"},
		{"date", false, "TIMESTAMP"},
		{"boolean", false, "BOOLEAN"},
		{"crm_status", false, "VARCHAR(255)"},
		{"iblock_element", false, "VARCHAR(255)"},
		{"unknown_weird_type", false, "VARCHAR(255)"},
		{"string", true, "TEXT"},
	}
	for _, tc := range cases {
		f := MapField(BitrixFieldMeta{FieldID: "FOO", Type: tc.bitrixType, IsMultiple: tc.multiple})
		if f.SQLType != tc.wantSQL {
			t.Errorf("MapField(type=%s, multiple=%v).SQLType = %s, want %s", tc.bitrixType, tc.multiple, f.SQLType, tc.wantSQL)
		}
	}
}

func TestMapFieldNameNormalization(t *testing.T) {
	f := MapField(BitrixFieldMeta{FieldID: "UF_CRM_1234_FOO", Type: "string"})
	if f.Column != "uf_crm_1234_foo" {
		t.Errorf("Column = %q, want lowercased field id", f.Column)
	}
}

func TestMapFieldDescriptionPriority(t *testing.T) {
	f := MapField(BitrixFieldMeta{FieldID: "X", Type: "string", FormLabel: "form", ListColumnLabel: "list"})
	if f.Description != "form" {
		t.Errorf("Description = %q, want formLabel to win over ListColumnLabel when Title is empty", f.Description)
	}

	f2 := MapField(BitrixFieldMeta{FieldID: "X", Type: "string", Title: "title", FormLabel: "form"})
	if f2.Description != "title" {
		t.Errorf("Description = %q, want Title to take priority", f2.Description)
	}
}

func TestMergeUserFieldsOverrideStandard(t *testing.T) {
	standard := []BitrixFieldMeta{
		{FieldID: "TITLE", Type: "string", Title: "Standard Title"},
		{FieldID: "STAGE_ID", Type: "crm_status"},
	}
	user := []BitrixFieldMeta{
		{FieldID: "TITLE", Type: "text", Title: "User Override"},
		{FieldID: "UF_CRM_FOO", Type: "string"},
	}

	merged := Merge(standard, user)
	if len(merged) != 3 {
		t.Fatalf("expected 3 merged fields, got %d: %+v", len(merged), merged)
	}

	byColumn := make(map[string]Field, len(merged))
	for _, f := range merged {
		byColumn[f.Column] = f
	}

	title, ok := byColumn["title"]
	if !ok {
		t.Fatal("expected title column present")
	}
	if title.SQLType != "TEXT" || title.Description != "User Override" {
		t.Errorf("expected user field to override standard: got %+v", title)
	}

	if _, ok := byColumn["uf_crm_foo"]; !ok {
		t.Error("expected uf_crm_foo column present")
	}
	if _, ok := byColumn["stage_id"]; !ok {
		t.Error("expected stage_id column to survive from standard fields")
	}
}

func TestMergeEmptyFieldList(t *testing.T) {
	merged := Merge(nil, nil)
	if len(merged) != 0 {
		t.Errorf("expected empty merge result, got %+v", merged)
	}
}
