package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/dvillegas/storefront-backend/pkg/logger"
)

type retentionRepoSpy struct {
	cutoffs     []time.Time
	minAttempts int
	err         error
}

func (s *retentionRepoSpy) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error) {
	s.cutoffs = append(s.cutoffs, cutoff)
	s.minAttempts = minAttemptCount
	if s.err != nil {
		return 0, s.err
	}
	return 7, nil
}

type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func buildRetentionJob(t *testing.T, repo *retentionRepoSpy) *outboxRetentionJob {
	t.Helper()
	built, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		DB:         passthroughTxRunner{},
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job, ok := built.(*outboxRetentionJob)
	if !ok {
		t.Fatalf("unexpected job type %T", built)
	}
	return job
}

func TestOutboxRetentionSweepsOldPublishedRows(t *testing.T) {
	frozen := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	repo := &retentionRepoSpy{}
	job := buildRetentionJob(t, repo)
	job.now = func() time.Time { return frozen }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(repo.cutoffs) != 1 {
		t.Fatalf("expected one delete call, got %d", len(repo.cutoffs))
	}
	wantCutoff := frozen.Add(-outboxRetentionDays * 24 * time.Hour)
	if !repo.cutoffs[0].Equal(wantCutoff) {
		t.Fatalf("cutoff %s, want %s", repo.cutoffs[0], wantCutoff)
	}
	if repo.minAttempts != outboxMinAttempts {
		t.Fatalf("min attempts %d, want %d", repo.minAttempts, outboxMinAttempts)
	}
}

func TestOutboxRetentionSurfacesRepoError(t *testing.T) {
	repo := &retentionRepoSpy{err: errors.New("delete failed")}
	job := buildRetentionJob(t, repo)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error from Run")
	}
}
