package bitrix

import "testing"

func TestCamelToUpperSnake(t *testing.T) {
	cases := map[string]string{
		"responsibleId": "RESPONSIBLE_ID",
		"createdDate":   "CREATED_DATE",
		"ID":            "ID",
		"UF_CRM_TASK":   "UF_CRM_TASK",
		"RESPONSIBLE_ID": "RESPONSIBLE_ID",
		"groupId":       "GROUP_ID",
		"title2Field":   "TITLE2_FIELD",
	}
	for input, want := range cases {
		if got := CamelToUpperSnake(input); got != want {
			t.Errorf("CamelToUpperSnake(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeTaskKeys(t *testing.T) {
	record := map[string]any{
		"responsibleId": "1",
		"UF_CRM_TASK":   []string{"D_1"},
		"ID":            "42",
	}
	normalized := NormalizeTaskKeys(record)
	if normalized["RESPONSIBLE_ID"] != "1" {
		t.Errorf("expected RESPONSIBLE_ID key, got %+v", normalized)
	}
	if _, ok := normalized["UF_CRM_TASK"]; !ok {
		t.Errorf("expected UF_CRM_TASK to survive unchanged, got %+v", normalized)
	}
	if normalized["ID"] != "42" {
		t.Errorf("expected ID key unchanged, got %+v", normalized)
	}
}
