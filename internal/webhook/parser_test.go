package webhook

import "testing"

func TestParseFormNestedBrackets(t *testing.T) {
	body := "event=ONCRMDEALUPDATE&data[FIELDS][ID]=4215&data[FIELDS][STATUS]=NEW"
	form, err := ParseForm(body)
	if err != nil {
		t.Fatalf("ParseForm error: %v", err)
	}
	if got := StringAt(form, "event"); got != "ONCRMDEALUPDATE" {
		t.Errorf("event = %q, want ONCRMDEALUPDATE", got)
	}
	if got := StringAt(form, "data.FIELDS.ID"); got != "4215" {
		t.Errorf("data.FIELDS.ID = %q, want 4215", got)
	}
	if got := StringAt(form, "data.FIELDS.STATUS"); got != "NEW" {
		t.Errorf("data.FIELDS.STATUS = %q, want NEW", got)
	}
}

func TestSplitBracketKeyDropsEmptySegments(t *testing.T) {
	got := splitBracketKey("data[FIELDS][]")
	want := []string{"data", "FIELDS"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAssignTerminalPromotesToList(t *testing.T) {
	node := map[string]any{}
	assignTerminal(node, "tag", "a")
	assignTerminal(node, "tag", "b")

	list, ok := node["tag"].([]string)
	if !ok {
		t.Fatalf("expected []string, got %T", node["tag"])
	}
	if len(list) != 2 || list[0] != "a" || list[1] != "b" {
		t.Errorf("unexpected list contents: %+v", list)
	}
}

func TestStringAtMissingPathReturnsEmpty(t *testing.T) {
	form := map[string]any{"event": "X"}
	if got := StringAt(form, "data.FIELDS.ID"); got != "" {
		t.Errorf("expected empty string for missing path, got %q", got)
	}
}
