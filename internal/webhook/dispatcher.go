package webhook

import (
	"strings"

	"github.com/bitrixepl/engine/internal/bitrix"
	"github.com/bitrixepl/engine/internal/queue"
)

// eventEntityType maps the 12 known ONCRM*{ADD,UPDATE,DELETE} events to
// their entity type (spec.md §4.J "entity type is derived from the
// event substring").
var eventEntityType = map[string]bitrix.EntityType{
	"ONCRMDEALADD":       bitrix.EntityDeal,
	"ONCRMDEALUPDATE":    bitrix.EntityDeal,
	"ONCRMDEALDELETE":    bitrix.EntityDeal,
	"ONCRMCONTACTADD":    bitrix.EntityContact,
	"ONCRMCONTACTUPDATE": bitrix.EntityContact,
	"ONCRMCONTACTDELETE": bitrix.EntityContact,
	"ONCRMLEADADD":       bitrix.EntityLead,
	"ONCRMLEADUPDATE":    bitrix.EntityLead,
	"ONCRMLEADDELETE":    bitrix.EntityLead,
	"ONCRMCOMPANYADD":    bitrix.EntityCompany,
	"ONCRMCOMPANYUPDATE": bitrix.EntityCompany,
	"ONCRMCOMPANYDELETE": bitrix.EntityCompany,
}

// DispatchResult is what the HTTP handler needs to build its response
// and, in the accepted case, what was enqueued.
type DispatchResult struct {
	Accepted bool
	Reason   string // "unsupported_event" when Accepted is false
	Outcome  queue.EnqueueOutcome
	TaskID   string
}

// Dispatcher turns a parsed webhook form into a queued task.
type Dispatcher struct {
	q *queue.Queue
}

// New constructs a Dispatcher.
func New(q *queue.Queue) *Dispatcher {
	return &Dispatcher{q: q}
}

// Dispatch implements spec.md §4.J's event routing. The caller is
// expected to have already responded {status: accepted} to Bitrix
// before calling this — Dispatch itself only enqueues, it never blocks
// on the sync work.
func (d *Dispatcher) Dispatch(form map[string]any) DispatchResult {
	event := strings.ToUpper(StringAt(form, "event"))
	entityType, known := eventEntityType[event]
	if !known {
		return DispatchResult{Accepted: false, Reason: "unsupported_event"}
	}

	id := StringAt(form, "data.FIELDS.ID")

	taskType := queue.TaskWebhook
	if strings.HasSuffix(event, "DELETE") {
		taskType = queue.TaskWebhookDelete
	}

	result := d.q.Enqueue(queue.Task{
		TaskType:   taskType,
		EntityType: string(entityType),
		SyncType:   "webhook",
		Priority:   queue.PriorityWebhook,
		Payload:    map[string]any{"id": id},
	})

	return DispatchResult{Accepted: true, Outcome: result.Outcome, TaskID: result.TaskID}
}
