package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dvillegas/storefront-backend/pkg/logger"
)

// Published outbox rows stay around for a month so operators can trace
// event history. Rows under the attempt floor are skipped: they may still
// be in flight or parked in the DLQ flow.
const (
	outboxRetentionDays = 30
	outboxMinAttempts   = 5
)

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	repo        outboxRetentionRepo
	retention   int
	minAttempts int
	now         func() time.Time
}

// OutboxRetentionJobParams configure the outbox sweep. Zero Retention (days)
// and MinAttempts fall back to the package defaults.
type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  outboxRetentionRepo
	Retention   int
	MinAttempts int
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil || params.DB == nil || params.Repository == nil {
		return nil, fmt.Errorf("outbox retention job: logger, db and repository are all required")
	}

	retention := params.Retention
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	minAttempts := params.MinAttempts
	if minAttempts <= 0 {
		minAttempts = outboxMinAttempts
	}
	return &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		retention:   retention,
		minAttempts: minAttempts,
		now:         time.Now,
	}, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := daysAgo(j.now, j.retention)
	deleted, err := sweepInTx(ctx, j.db, func(tx *gorm.DB) (int64, error) {
		return j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.minAttempts)
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"min_attempts": j.minAttempts,
		"deleted":      deleted,
	}), "outbox retention swept")
	return nil
}

// daysAgo marks the sweep boundary: rows strictly older are eligible.
func daysAgo(now func() time.Time, days int) time.Time {
	return now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
}

// sweepInTx runs one delete pass inside a transaction and reports the
// number of rows it removed.
func sweepInTx(ctx context.Context, db txRunner, del func(tx *gorm.DB) (int64, error)) (int64, error) {
	var deleted int64
	err := db.WithTx(ctx, func(tx *gorm.DB) error {
		n, txErr := del(tx)
		deleted = n
		return txErr
	})
	return deleted, err
}
