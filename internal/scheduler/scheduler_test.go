package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bitrixepl/engine/internal/queue"
)

func TestRegisterAndUnregisterTracksJobs(t *testing.T) {
	s := New(nil, queue.New(nil), nil)
	ctx := context.Background()

	s.Register(ctx, "deal", time.Minute)
	s.Register(ctx, "contact", time.Minute)

	jobs := s.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d: %+v", len(jobs), jobs)
	}

	s.Unregister("deal")
	jobs = s.Jobs()
	if len(jobs) != 1 || jobs[0] != "contact" {
		t.Fatalf("expected only contact to remain, got %+v", jobs)
	}

	s.Stop()
}

func TestRegisterTwiceReplacesExistingJob(t *testing.T) {
	s := New(nil, queue.New(nil), nil)
	ctx := context.Background()

	s.Register(ctx, "deal", time.Minute)
	firstJob := s.jobs["deal"]

	s.Register(ctx, "deal", 2*time.Minute)
	secondJob := s.jobs["deal"]

	if firstJob == secondJob {
		t.Error("expected Register to replace the existing job struct")
	}
	if secondJob.interval != 2*time.Minute {
		t.Errorf("interval = %v, want 2m", secondJob.interval)
	}

	s.Stop()
}

func TestFireEnqueuesScheduledIncrementalTask(t *testing.T) {
	q := queue.New(nil)
	s := New(nil, q, nil)
	j := &job{entityType: "lead", interval: time.Minute}

	s.fire(context.Background(), j)

	status := q.Status()
	if status.HeavyQueueSize != 1 {
		t.Fatalf("expected one queued task, got %d", status.HeavyQueueSize)
	}
}
