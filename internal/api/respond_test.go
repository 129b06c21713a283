package api

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/bitrixepl/engine/internal/bitrix"
	"github.com/bitrixepl/engine/internal/syncsvc"
)

func TestWriteJSONStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSONStatus(rec, 201, map[string]string{"ok": "yes"})

	if rec.Code != 201 {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json content type, got %q", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	if body["ok"] != "yes" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestWriteErr(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			"authentication error maps to 401",
			&bitrix.AuthenticationError{Code: "expired_token", Message: "token expired"},
			401,
			"authentication_error",
		},
		{
			"api error maps to 502",
			&bitrix.APIError{Code: "ERROR", Message: "boom"},
			502,
			"bitrix_api_error",
		},
		{
			"rate limited error maps to 502",
			&bitrix.RateLimitedError{Code: "QUERY_LIMIT_EXCEEDED", Message: "slow down"},
			502,
			"bitrix_api_error",
		},
		{
			"operation time limit error maps to 502",
			&bitrix.OperationTimeLimitError{Code: "OPERATION_TIME_LIMIT", Message: "narrow your filter"},
			502,
			"bitrix_api_error",
		},
		{
			"sync error maps to 500",
			&syncsvc.SyncError{EntityType: "deal", Step: "fetch", Err: errors.New("boom")},
			500,
			"sync_error",
		},
		{
			"unrecognized error maps to 500",
			errors.New("something else"),
			500,
			"internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeErr(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode response body: %v", err)
			}
			if body["error"] != tt.wantCode {
				t.Errorf("expected error code %q, got %q", tt.wantCode, body["error"])
			}
		})
	}
}
