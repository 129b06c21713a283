package syncsvc

import (
	"testing"

	"github.com/bitrixepl/engine/internal/bitrix"
)

func TestIncrementalCompareFieldCoversEveryKnownEntity(t *testing.T) {
	want := map[bitrix.EntityType]string{
		bitrix.EntityDeal:             "DATE_MODIFY",
		bitrix.EntityContact:          "DATE_MODIFY",
		bitrix.EntityLead:             "DATE_MODIFY",
		bitrix.EntityCompany:          "DATE_MODIFY",
		bitrix.EntityTask:             "CHANGED_DATE",
		bitrix.EntityStageHistoryDeal: "CREATED_TIME",
		bitrix.EntityStageHistoryLead: "CREATED_TIME",
		bitrix.EntityUser:             "LAST_LOGIN",
		bitrix.EntityCall:             "CALL_START_DATE",
	}
	for entityType, field := range want {
		got, ok := incrementalCompareField[entityType]
		if !ok {
			t.Errorf("missing compare field entry for %s", entityType)
			continue
		}
		if got != field {
			t.Errorf("compare field for %s = %s, want %s", entityType, got, field)
		}
	}
}

func TestTableNameUsesPluralCRMPrefix(t *testing.T) {
	if got := tableName(bitrix.EntityDeal); got != "crm_deals" {
		t.Errorf("tableName(deal) = %s, want crm_deals", got)
	}
	if got := tableName(bitrix.EntityUser); got != "bitrix_users" {
		t.Errorf("tableName(user) = %s, want bitrix_users", got)
	}
}

func TestEntityTypeFromKeyRoundTrips(t *testing.T) {
	et, ok := EntityTypeFromKey("deal")
	if !ok || et != bitrix.EntityDeal {
		t.Errorf("EntityTypeFromKey(deal) = %v, %v", et, ok)
	}
	if _, ok := EntityTypeFromKey("nonexistent"); ok {
		t.Error("expected EntityTypeFromKey to fail for unknown key")
	}
}

func TestSyncErrorUnwrap(t *testing.T) {
	inner := errUnwrapSentinel{}
	wrapped := &SyncError{EntityType: "deal", Step: "full_sync", Err: inner}
	if wrapped.Unwrap() != inner {
		t.Error("Unwrap did not return the wrapped error")
	}
	if wrapped.Error() == "" {
		t.Error("expected non-empty error message")
	}
}

type errUnwrapSentinel struct{}

func (errUnwrapSentinel) Error() string { return "sentinel" }
