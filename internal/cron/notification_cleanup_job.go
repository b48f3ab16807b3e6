package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dvillegas/storefront-backend/pkg/logger"
)

// Read and unread notifications alike are purged once they age out; the
// client only ever pages the recent window.
const notificationRetentionDays = 30

type notificationsCleanupRepo interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type notificationCleanupJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      notificationsCleanupRepo
	retention int
	now       func() time.Time
}

// NotificationCleanupJobParams configure the notification sweep. Zero
// Retention (days) falls back to the package default.
type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository notificationsCleanupRepo
	Retention  int
}

func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Logger == nil || params.DB == nil || params.Repository == nil {
		return nil, fmt.Errorf("notification cleanup job: logger, db and repository are all required")
	}

	retention := params.Retention
	if retention <= 0 {
		retention = notificationRetentionDays
	}
	return &notificationCleanupJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	cutoff := daysAgo(j.now, j.retention)
	deleted, err := sweepInTx(ctx, j.db, func(tx *gorm.DB) (int64, error) {
		return j.repo.DeleteOlderThan(ctx, tx, cutoff)
	})
	if err != nil {
		return fmt.Errorf("notification cleanup: %w", err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"deleted": deleted,
	}), "notifications swept")
	return nil
}
