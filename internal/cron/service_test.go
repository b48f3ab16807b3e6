package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/dvillegas/storefront-backend/pkg/logger"
)

type singleHolderLock struct {
	held bool
}

func (l *singleHolderLock) Acquire(context.Context) (bool, error) {
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *singleHolderLock) Release(context.Context) error {
	l.held = false
	return nil
}

type countingJob struct {
	name string
	err  error
	runs int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func TestRunCycleRunsEveryJobDespiteFailures(t *testing.T) {
	healthy := &countingJob{name: "cart-expiry"}
	broken := &countingJob{name: "outbox-retention", err: errors.New("boom")}
	trailing := &countingJob{name: "notification-cleanup"}

	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: NewRegistry(healthy, broken, trailing),
		Lock:     &singleHolderLock{},
		Interval: 0,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	// A failing job must not block the jobs scheduled after it.
	for _, job := range []*countingJob{healthy, broken, trailing} {
		if job.runs != 1 {
			t.Fatalf("job %s ran %d times, want 1", job.name, job.runs)
		}
	}
}

func TestRunCycleSkipsWhenLockIsHeld(t *testing.T) {
	job := &countingJob{name: "cart-expiry"}
	lock := &singleHolderLock{held: true}

	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: NewRegistry(job),
		Lock:     lock,
		Interval: 0,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job ran %d times while another instance held the lock", job.runs)
	}
}
