package webhook

import (
	"testing"

	"github.com/bitrixepl/engine/internal/queue"
)

func TestDispatchUnsupportedEvent(t *testing.T) {
	d := New(queue.New(nil))
	result := d.Dispatch(map[string]any{"event": "ONCRMDEALJUNK"})
	if result.Accepted {
		t.Fatal("expected unsupported event to not be accepted")
	}
	if result.Reason != "unsupported_event" {
		t.Errorf("reason = %q, want unsupported_event", result.Reason)
	}
}

func TestDispatchDeleteRoutesToDeleteTask(t *testing.T) {
	q := queue.New(nil)
	d := New(q)

	form := map[string]any{
		"event": "ONCRMLEADDELETE",
		"data":  map[string]any{"FIELDS": map[string]any{"ID": "99"}},
	}
	result := d.Dispatch(form)
	if !result.Accepted {
		t.Fatal("expected delete event to be accepted")
	}
	if result.Outcome != queue.OutcomeQueued {
		t.Errorf("outcome = %s, want queued", result.Outcome)
	}
}

func TestDispatchUpdateRoutesToWebhookTask(t *testing.T) {
	q := queue.New(nil)
	d := New(q)

	form := map[string]any{
		"event": "oncrmcontactupdate",
		"data":  map[string]any{"FIELDS": map[string]any{"ID": "5"}},
	}
	result := d.Dispatch(form)
	if !result.Accepted {
		t.Fatal("expected update event to be accepted")
	}
}
