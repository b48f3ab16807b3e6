package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/dvillegas/storefront-backend/pkg/db/models"
	"github.com/dvillegas/storefront-backend/pkg/logger"
)

const (
	defaultCartTTL        = time.Hour
	defaultCartSweepBatch = 100
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type staleCartReader interface {
	ListStaleActive(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error)
}

type cartExpirer interface {
	ExpireCart(ctx context.Context, cartID uuid.UUID) error
}

// CartExpiryJobParams configure the abandoned cart sweep.
type CartExpiryJobParams struct {
	Logger  *logger.Logger
	Carts   staleCartReader
	Expirer cartExpirer
	TTL     time.Duration
	Batch   int
}

// NewCartExpiryJob builds the cron job that expires abandoned carts and
// returns their reservations to the pool.
func NewCartExpiryJob(params CartExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("cart expirer required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultCartTTL
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultCartSweepBatch
	}
	return &cartExpiryJob{
		logg:    params.Logger,
		carts:   params.Carts,
		expirer: params.Expirer,
		ttl:     ttl,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type cartExpiryJob struct {
	logg    *logger.Logger
	carts   staleCartReader
	expirer cartExpirer
	ttl     time.Duration
	batch   int
	now     func() time.Time
}

func (j *cartExpiryJob) Name() string { return "cart-expiry" }

// Run expires every active cart idle past the TTL. Each cart is expired in
// its own transaction so one poisoned cart cannot wedge the whole sweep.
func (j *cartExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)

	var errs []error
	expired := 0
	for {
		stale, err := j.carts.ListStaleActive(ctx, cutoff, j.batch)
		if err != nil {
			errs = append(errs, fmt.Errorf("list stale carts: %w", err))
			break
		}
		if len(stale) == 0 {
			break
		}

		progressed := 0
		for _, cart := range stale {
			if err := j.expirer.ExpireCart(ctx, cart.ID); err != nil {
				errs = append(errs, fmt.Errorf("expire cart %s: %w", cart.ID, err))
				continue
			}
			progressed++
			expired++
		}
		// Every cart in the batch failed; stop instead of spinning on the
		// same rows.
		if progressed == 0 {
			break
		}
		if len(stale) < j.batch {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"carts_expired": expired,
		"failures":      len(errs),
	})
	j.logg.Info(logCtx, "cart expiry sweep complete")
	return multierr.Combine(errs...)
}
