package upsert

import "testing"

func TestPrepareRecordRenamesAndFilters(t *testing.T) {
	colTypes := map[string]string{"bitrix_id": "character varying", "title": "character varying"}
	record := map[string]any{"ID": "42", "TITLE": "Deal 1", "UNKNOWN_FIELD": "drop me"}

	prepared := prepareRecord(record, colTypes)

	if prepared["bitrix_id"] != "42" {
		t.Errorf("expected id renamed to bitrix_id, got %+v", prepared)
	}
	if _, ok := prepared["unknown_field"]; ok {
		t.Errorf("expected unknown_field dropped, got %+v", prepared)
	}
	if len(prepared) != 2 {
		t.Errorf("expected 2 surviving columns, got %+v", prepared)
	}
}

func TestCoerceEmptyStringToNull(t *testing.T) {
	if v := coerceValue("", "character varying"); v != nil {
		t.Errorf("expected empty string to coerce to nil, got %v", v)
	}
}

func TestCoerceListToJSON(t *testing.T) {
	v := coerceValue([]any{"a", "b"}, "text")
	s, ok := v.(string)
	if !ok {
		t.Fatalf("expected string JSON, got %T", v)
	}
	if s != `["a","b"]` {
		t.Errorf("expected compact JSON array, got %q", s)
	}
}

func TestCoerceIntegerParseFailureToNull(t *testing.T) {
	if v := coerceValue("not-a-number", "bigint"); v != nil {
		t.Errorf("expected parse failure to coerce to nil, got %v", v)
	}
}

func TestCoerceNumericParsesFloat(t *testing.T) {
	v := coerceValue("12.5", "double precision")
	f, ok := v.(float64)
	if !ok || f != 12.5 {
		t.Errorf("expected 12.5 float64, got %v (%T)", v, v)
	}
}

func TestCoerceTimestampDropsTZAndConvertsUTC(t *testing.T) {
	v := coerceValue("2024-01-15T10:00:00+03:00", "timestamp without time zone")
	s, ok := v.(interface{ Format(string) string })
	if !ok {
		t.Fatalf("expected time.Time-like value, got %T", v)
	}
	got := s.Format("2006-01-02 15:04:05")
	if got != "2024-01-15 07:00:00" {
		t.Errorf("got %s, want 2024-01-15 07:00:00", got)
	}
}

func TestCoerceUnparseableTimestampToNull(t *testing.T) {
	if v := coerceValue("not-a-date", "timestamp"); v != nil {
		t.Errorf("expected unparseable timestamp to coerce to nil, got %v", v)
	}
}

func TestHasUniqueKey(t *testing.T) {
	prepared := map[string]any{"bitrix_id": "1", "title": "x"}
	if !hasUniqueKey(prepared, []string{"bitrix_id"}) {
		t.Error("expected bitrix_id present to satisfy unique key")
	}
	if hasUniqueKey(prepared, []string{"status_id", "entity_id"}) {
		t.Error("expected missing composite key components to fail")
	}
}
