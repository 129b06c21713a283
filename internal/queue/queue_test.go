package queue

import "testing"

func TestEnqueueHeavyDeduplicatesAgainstPending(t *testing.T) {
	q := New(nil)

	first := q.Enqueue(Task{TaskType: TaskIncremental, EntityType: "deal", Priority: PriorityScheduled})
	if first.Outcome != OutcomeQueued {
		t.Fatalf("first enqueue outcome = %s, want queued", first.Outcome)
	}

	second := q.Enqueue(Task{TaskType: TaskIncremental, EntityType: "deal", Priority: PriorityManual})
	if second.Outcome != OutcomeDuplicate {
		t.Fatalf("second enqueue outcome = %s, want duplicate", second.Outcome)
	}
	if second.TaskID != first.TaskID {
		t.Errorf("duplicate result should reference the original task id")
	}
}

func TestEnqueueHeavyAgainstRunningTask(t *testing.T) {
	q := New(nil)
	running := Task{TaskID: "running-1", TaskType: TaskFull, EntityType: "contact"}
	q.currentHeavyTask = &running

	result := q.Enqueue(Task{TaskType: TaskFull, EntityType: "contact"})
	if result.Outcome != OutcomeAlreadyRunning {
		t.Fatalf("outcome = %s, want already_running", result.Outcome)
	}
	if result.TaskID != "running-1" {
		t.Errorf("expected task id of the running task, got %s", result.TaskID)
	}
}

func TestEnqueueWebhookNeverDedups(t *testing.T) {
	q := New(nil)

	first := q.Enqueue(Task{TaskType: TaskWebhook, EntityType: "deal"})
	second := q.Enqueue(Task{TaskType: TaskWebhook, EntityType: "deal"})

	if first.Outcome != OutcomeQueued || second.Outcome != OutcomeQueued {
		t.Errorf("expected both webhook enqueues to be queued, got %s and %s", first.Outcome, second.Outcome)
	}
	if first.TaskID == second.TaskID {
		t.Error("expected distinct task ids for two webhook enqueues")
	}
}

func TestHeavyHeapOrdersByPriorityThenInsertion(t *testing.T) {
	q := New(nil)
	q.Enqueue(Task{TaskType: TaskReference, EntityType: "crm_status", Priority: PriorityReference})
	q.Enqueue(Task{TaskType: TaskIncremental, EntityType: "deal", Priority: PriorityScheduled})
	q.Enqueue(Task{TaskType: TaskFull, EntityType: "lead", Priority: PriorityManual})

	task, ok := q.popHeavy()
	if !ok {
		t.Fatal("expected a task")
	}
	if task.Priority != PriorityManual {
		t.Errorf("first popped priority = %d, want %d (manual)", task.Priority, PriorityManual)
	}

	// Equal priority: the earlier-inserted task comes out first.
	q.Enqueue(Task{TaskType: TaskFull, EntityType: "company", Priority: PriorityReference})
	task, ok = q.popHeavy()
	if !ok {
		t.Fatal("expected a task")
	}
	if task.EntityType != "crm_status" {
		t.Errorf("second popped entity = %s, want crm_status (inserted before company)", task.EntityType)
	}
}

func TestStatusReportsPendingKeys(t *testing.T) {
	q := New(nil)
	q.Enqueue(Task{TaskType: TaskIncremental, EntityType: "deal"})

	status := q.Status()
	if status.HeavyQueueSize != 1 {
		t.Errorf("HeavyQueueSize = %d, want 1", status.HeavyQueueSize)
	}
	if len(status.PendingHeavyKeys) != 1 || status.PendingHeavyKeys[0] != "incremental:deal" {
		t.Errorf("unexpected pending keys: %+v", status.PendingHeavyKeys)
	}
}
