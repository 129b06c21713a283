package api

import (
	"net/http/httptest"
	"testing"
)

func TestQueryIntDefaults(t *testing.T) {
	tests := []struct {
		name string
		url  string
		key  string
		def  int
		want int
	}{
		{"missing param returns default", "/sync/history", "limit", 50, 50},
		{"valid value overrides default", "/sync/history?limit=10", "limit", 50, 10},
		{"non-numeric value returns default", "/sync/history?limit=abc", "limit", 50, 50},
		{"negative value returns default", "/sync/history?limit=-5", "limit", 50, 50},
		{"zero is a valid value", "/sync/history?limit=0", "limit", 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.url, nil)
			got := queryInt(req, tt.key, tt.def)
			if got != tt.want {
				t.Errorf("queryInt(%q, %q, %d) = %d, want %d", tt.url, tt.key, tt.def, got, tt.want)
			}
		})
	}
}
