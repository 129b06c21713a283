package reference

import "testing"

func TestDedupeByKey(t *testing.T) {
	records := []map[string]any{
		{"STATUS_ID": "NEW", "ENTITY_ID": "DEAL_STAGE", "CATEGORY_ID": "0"},
		{"STATUS_ID": "NEW", "ENTITY_ID": "DEAL_STAGE", "CATEGORY_ID": "0"},
		{"STATUS_ID": "NEW", "ENTITY_ID": "DEAL_STAGE_14", "CATEGORY_ID": "14"},
	}
	deduped := dedupeByKey(records, []string{"STATUS_ID", "ENTITY_ID", "CATEGORY_ID"})
	if len(deduped) != 2 {
		t.Errorf("expected 2 deduplicated records, got %d: %+v", len(deduped), deduped)
	}
}

func TestLowerKeys(t *testing.T) {
	lowered := lowerKeys(map[string]any{"STATUS_ID": "NEW", "NAME": "New"})
	if lowered["status_id"] != "NEW" || lowered["name"] != "New" {
		t.Errorf("expected lower-cased keys, got %+v", lowered)
	}
}
