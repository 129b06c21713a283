// Package scheduler is the Scheduler (spec.md §4.I): it translates
// sync_config rows into periodic incremental-sync enqueue operations,
// one ticking job per enabled entity type.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/bitrixepl/engine/internal/observability"
	"github.com/bitrixepl/engine/internal/queue"
	"github.com/bitrixepl/engine/internal/syncstore"
)

// misfireGrace is the allowance spec.md §4.I grants a job whose tick
// fired late (e.g. the process was busy); within this window the job
// still runs, not skips to the next interval.
const misfireGrace = 60 * time.Second

// job is one entity type's ticking schedule.
type job struct {
	entityType string
	interval   time.Duration
	cancel     context.CancelFunc
	running    bool // set only while fire is enqueuing; a pending or running task for the same entity is rejected by the queue's dedup instead
}

// Scheduler owns one ticker per enabled entity type and enqueues a
// scheduled-priority incremental task on every firing.
type Scheduler struct {
	store  *syncstore.Store
	q      *queue.Queue
	logger *observability.Logger

	mu   sync.Mutex
	jobs map[string]*job
	wg   sync.WaitGroup
}

// New constructs a Scheduler.
func New(store *syncstore.Store, q *queue.Queue, logger *observability.Logger) *Scheduler {
	return &Scheduler{
		store:  store,
		q:      q,
		logger: logger,
		jobs:   make(map[string]*job),
	}
}

// Start reads every enabled sync_config row and registers its job
// (spec.md §4.I "On startup").
func (s *Scheduler) Start(ctx context.Context) error {
	configs, err := s.store.ListSyncConfig(ctx)
	if err != nil {
		return err
	}
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		s.Register(ctx, cfg.EntityType, time.Duration(cfg.SyncIntervalMinutes)*time.Minute)
	}
	return nil
}

// Stop cancels every running job and waits for their goroutines to
// return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for _, j := range s.jobs {
		j.cancel()
	}
	s.jobs = make(map[string]*job)
	s.mu.Unlock()
	s.wg.Wait()
}

// Register starts (or restarts) a ticking job for entityType at the
// given interval. Calling it again for an entity already registered
// reschedules it in place (spec.md §4.I "On config mutation").
func (s *Scheduler) Register(ctx context.Context, entityType string, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	s.mu.Lock()
	if existing, ok := s.jobs[entityType]; ok {
		existing.cancel()
		delete(s.jobs, entityType)
	}

	jobCtx, cancel := context.WithCancel(ctx)
	j := &job{entityType: entityType, interval: interval, cancel: cancel}
	s.jobs[entityType] = j
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(jobCtx, j)
}

// Unregister stops entityType's job, used when a sync_config row is
// disabled or deleted.
func (s *Scheduler) Unregister(entityType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[entityType]; ok {
		j.cancel()
		delete(s.jobs, entityType)
	}
}

// Jobs lists the currently registered entity types, for the admin
// status endpoint.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jobs))
	for entityType := range s.jobs {
		out = append(out, entityType)
	}
	return out
}

func (s *Scheduler) run(ctx context.Context, j *job) {
	defer s.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case fired := <-ticker.C:
			// coalesce: a ticker that has backed up delivers ticks as
			// fast as the loop can drain them; draining any extra
			// pending ticks here collapses them into a single firing.
			for drained := true; drained; {
				select {
				case <-ticker.C:
				default:
					drained = false
				}
			}

			if time.Since(fired) > misfireGrace {
				continue
			}

			s.mu.Lock()
			if j.running {
				s.mu.Unlock()
				continue
			}
			j.running = true
			s.mu.Unlock()

			s.fire(ctx, j)

			s.mu.Lock()
			j.running = false
			s.mu.Unlock()
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, j *job) {
	result := s.q.Enqueue(queue.Task{
		TaskType:   queue.TaskIncremental,
		EntityType: j.entityType,
		SyncType:   "incremental",
		Priority:   queue.PriorityScheduled,
	})
	if s.logger != nil {
		s.logger.LogQueueEvent(ctx, string(result.Outcome), queue.TaskIncremental, j.entityType)
	}
}
