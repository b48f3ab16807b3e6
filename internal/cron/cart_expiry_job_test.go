package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dvillegas/storefront-backend/pkg/db/models"
	"github.com/dvillegas/storefront-backend/pkg/logger"
)

type fakeStaleCartReader struct {
	batches    [][]models.Cart
	lastCutoff time.Time
	lastLimit  int
	calls      int
	err        error
}

func (f *fakeStaleCartReader) ListStaleActive(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error) {
	f.calls++
	f.lastCutoff = cutoff
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

type fakeCartExpirer struct {
	expired []uuid.UUID
	failOn  map[uuid.UUID]error
}

func (f *fakeCartExpirer) ExpireCart(ctx context.Context, cartID uuid.UUID) error {
	if err, ok := f.failOn[cartID]; ok {
		return err
	}
	f.expired = append(f.expired, cartID)
	return nil
}

func newCartExpiryJob(t *testing.T, reader *fakeStaleCartReader, expirer *fakeCartExpirer, batch int) *cartExpiryJob {
	t.Helper()
	jobIface, err := NewCartExpiryJob(CartExpiryJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Carts:   reader,
		Expirer: expirer,
		TTL:     time.Hour,
		Batch:   batch,
	})
	if err != nil {
		t.Fatalf("NewCartExpiryJob: %v", err)
	}
	job, ok := jobIface.(*cartExpiryJob)
	if !ok {
		t.Fatalf("expected cartExpiryJob, got %T", jobIface)
	}
	return job
}

func staleCarts(n int) []models.Cart {
	carts := make([]models.Cart, n)
	for i := range carts {
		carts[i] = models.Cart{ID: uuid.New()}
	}
	return carts
}

func TestCartExpiryJobExpiresStaleCarts(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	reader := &fakeStaleCartReader{batches: [][]models.Cart{staleCarts(3)}}
	expirer := &fakeCartExpirer{}
	job := newCartExpiryJob(t, reader, expirer, 100)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(expirer.expired) != 3 {
		t.Fatalf("expected 3 expired carts, got %d", len(expirer.expired))
	}
	expectedCutoff := now.Add(-time.Hour)
	if !reader.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, reader.lastCutoff)
	}
	if reader.lastLimit != 100 {
		t.Fatalf("expected batch limit 100, got %d", reader.lastLimit)
	}
}

func TestCartExpiryJobDrainsFullBatches(t *testing.T) {
	reader := &fakeStaleCartReader{batches: [][]models.Cart{staleCarts(2), staleCarts(1)}}
	expirer := &fakeCartExpirer{}
	job := newCartExpiryJob(t, reader, expirer, 2)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(expirer.expired) != 3 {
		t.Fatalf("expected 3 expired carts, got %d", len(expirer.expired))
	}
	if reader.calls != 2 {
		t.Fatalf("expected 2 list calls, got %d", reader.calls)
	}
}

func TestCartExpiryJobContinuesPastFailures(t *testing.T) {
	carts := staleCarts(3)
	reader := &fakeStaleCartReader{batches: [][]models.Cart{carts}}
	expirer := &fakeCartExpirer{failOn: map[uuid.UUID]error{carts[1].ID: errors.New("boom")}}
	job := newCartExpiryJob(t, reader, expirer, 100)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(expirer.expired) != 2 {
		t.Fatalf("expected 2 expired carts despite failure, got %d", len(expirer.expired))
	}
}

func TestCartExpiryJobStopsWhenNothingProgresses(t *testing.T) {
	carts := staleCarts(1)
	reader := &fakeStaleCartReader{batches: [][]models.Cart{carts, carts, carts}}
	expirer := &fakeCartExpirer{failOn: map[uuid.UUID]error{carts[0].ID: errors.New("boom")}}
	job := newCartExpiryJob(t, reader, expirer, 1)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected aggregated error")
	}
	if reader.calls != 1 {
		t.Fatalf("expected the sweep to stop after one stuck batch, got %d calls", reader.calls)
	}
}
