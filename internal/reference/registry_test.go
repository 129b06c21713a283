package reference

import "testing"

func TestDefaultRegistryHasFourEntries(t *testing.T) {
	entries := DefaultRegistry()
	want := map[string]bool{"crm_status": false, "crm_deal_category": false, "crm_currency": false, "enum_values": false}
	for _, e := range entries {
		if _, ok := want[e.Name]; !ok {
			t.Errorf("unexpected registry entry %q", e.Name)
		}
		want[e.Name] = true
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing registry entry %q", name)
		}
	}
}

func TestCrmStatusRequiresCategoryIteration(t *testing.T) {
	entry, ok := Lookup(DefaultRegistry(), "crm_status")
	if !ok {
		t.Fatal("expected crm_status entry")
	}
	if !entry.RequiresCategoryIteration {
		t.Error("expected crm_status.RequiresCategoryIteration = true")
	}
	want := []string{"status_id", "entity_id", "category_id"}
	for i, k := range want {
		if entry.UniqueKey[i] != k {
			t.Errorf("UniqueKey[%d] = %s, want %s", i, entry.UniqueKey[i], k)
		}
	}
}

func TestEnumValuesHasNoAPIMethod(t *testing.T) {
	entry, ok := Lookup(DefaultRegistry(), "enum_values")
	if !ok {
		t.Fatal("expected enum_values entry")
	}
	if entry.APIMethod != "" {
		t.Errorf("expected enum_values to have no API method, got %q", entry.APIMethod)
	}
}

func TestLookupUnknownReturnsFalse(t *testing.T) {
	if _, ok := Lookup(DefaultRegistry(), "nonexistent"); ok {
		t.Error("expected Lookup to return false for unknown entry")
	}
}
