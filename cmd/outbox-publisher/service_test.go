package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dvillegas/storefront-backend/pkg/config"
	"github.com/dvillegas/storefront-backend/pkg/db/models"
	"github.com/dvillegas/storefront-backend/pkg/enums"
	"github.com/dvillegas/storefront-backend/pkg/logger"
	"github.com/dvillegas/storefront-backend/pkg/outbox"
	"github.com/dvillegas/storefront-backend/pkg/outbox/payloads"
	"github.com/dvillegas/storefront-backend/pkg/outbox/registry"
)

type publisherFixture struct {
	repo    *stubEventRepo
	pub     *stubPublisher
	dlq     *stubDLQ
	service *Service
}

func newPublisherFixture(t *testing.T, events []models.OutboxEvent, results []publishResult, resolver registryResolver, cfg *config.OutboxConfig) *publisherFixture {
	t.Helper()

	f := &publisherFixture{
		repo: &stubEventRepo{events: events},
		pub:  &stubPublisher{results: results},
		dlq:  &stubDLQ{},
	}

	outboxCfg := config.OutboxConfig{BatchSize: 2, PollIntervalMS: 100, MaxAttempts: 5}
	if cfg != nil {
		outboxCfg = *cfg
	}

	service, err := NewService(ServiceParams{
		Config: &config.Config{Outbox: outboxCfg},
		Logger: logger.New(logger.Options{
			ServiceName: "outbox-publisher-test",
			Output:      io.Discard,
		}),
		DB:               stubTxRunner{},
		PubSub:           stubPubSub{},
		Repository:       f.repo,
		Registry:         resolver,
		PublisherFactory: func(string) publisher { return f.pub },
		DLQRepository:    f.dlq,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	f.service = service
	return f
}

func (f *publisherFixture) runBatch(t *testing.T) {
	t.Helper()
	processed, err := f.service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
}

func orderEvent(t *testing.T, eventType enums.OutboxEventType, attempts int) models.OutboxEvent {
	t.Helper()
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       envelope,
		AttemptCount:  attempts,
	}
}

func ordersResolver(payload interface{}) *stubResolver {
	return &stubResolver{
		resolved: &registry.ResolvedEvent{
			Descriptor: registry.EventDescriptor{
				Topic:         "orders-topic",
				AggregateType: enums.AggregateOrder,
			},
			Envelope: outbox.PayloadEnvelope{
				EventID:    uuid.NewString(),
				OccurredAt: time.Now(),
			},
			Payload: payload,
		},
	}
}

func TestProcessBatchContinuesAfterFailure(t *testing.T) {
	events := []models.OutboxEvent{
		orderEvent(t, enums.EventOrderCreated, 0),
		orderEvent(t, enums.EventOrderCreated, 0),
	}
	f := newPublisherFixture(t, events,
		[]publishResult{
			stubResult{err: errors.New("transient")},
			stubResult{},
		},
		ordersResolver(&payloads.OrderCreatedEvent{}), nil)

	f.runBatch(t)

	if len(f.repo.failed) != 1 || f.repo.failed[0] != events[0].ID {
		t.Fatalf("expected first event marked failed, got %v", f.repo.failed)
	}
	if len(f.repo.published) != 1 || f.repo.published[0] != events[1].ID {
		t.Fatalf("expected second event marked published, got %v", f.repo.published)
	}
}

func TestProcessBatchPublishesToResolvedTopic(t *testing.T) {
	events := []models.OutboxEvent{orderEvent(t, enums.EventOrderPaid, 0)}
	f := newPublisherFixture(t, events,
		[]publishResult{stubResult{}},
		ordersResolver(&payloads.OrderPaidEvent{}), nil)

	var topics []string
	pub := f.pub
	f.service.publisherFactory = func(topic string) publisher {
		topics = append(topics, topic)
		return pub
	}

	f.runBatch(t)

	if len(topics) != 1 || topics[0] != "orders-topic" {
		t.Fatalf("unexpected topics %v", topics)
	}
	if len(pub.results) != 0 {
		t.Fatalf("expected all publish results consumed, got %d left", len(pub.results))
	}
	if len(f.repo.published) != 1 {
		t.Fatalf("expected one published row, got %d", len(f.repo.published))
	}
}

func TestProcessBatchParksNonRetryableInDLQ(t *testing.T) {
	events := []models.OutboxEvent{orderEvent(t, enums.EventOrderCreated, 0)}
	resolver := &stubResolver{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	f := newPublisherFixture(t, events, nil, resolver, nil)

	f.runBatch(t)

	if len(f.dlq.entries) != 1 {
		t.Fatalf("expected one dlq entry, got %d", len(f.dlq.entries))
	}
	entry := f.dlq.entries[0]
	if entry.EventID != events[0].ID {
		t.Fatalf("dlq event_id mismatch: %s", entry.EventID)
	}
	if !bytes.Equal(entry.Payload, events[0].Payload) {
		t.Fatalf("dlq payload mismatch")
	}
	if entry.ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("unexpected error reason: %s", entry.ErrorReason)
	}
}

func TestProcessBatchParksExhaustedEventInDLQ(t *testing.T) {
	// One prior attempt plus this failure reaches the two-attempt cap.
	events := []models.OutboxEvent{orderEvent(t, enums.EventOrderCreated, 1)}
	f := newPublisherFixture(t, events,
		[]publishResult{stubResult{err: errors.New("transient")}},
		ordersResolver(&payloads.OrderCreatedEvent{}),
		&config.OutboxConfig{BatchSize: 1, PollIntervalMS: 100, MaxAttempts: 2})

	f.runBatch(t)

	if len(f.dlq.entries) != 1 {
		t.Fatalf("expected one dlq entry, got %d", len(f.dlq.entries))
	}
	entry := f.dlq.entries[0]
	if entry.EventID != events[0].ID {
		t.Fatalf("dlq event_id mismatch: %s", entry.EventID)
	}
	if entry.ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("unexpected error reason: %s", entry.ErrorReason)
	}
}

type stubEventRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
}

func (s *stubEventRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return s.events, nil
}

func (s *stubEventRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	s.published = append(s.published, id)
	return nil
}

func (s *stubEventRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	s.failed = append(s.failed, id)
	return nil
}

func (s *stubEventRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	s.failed = append(s.failed, id)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) Ping(context.Context) error { return nil }

func (stubTxRunner) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type stubPubSub struct{}

func (stubPubSub) Ping(context.Context) error { return nil }

func (stubPubSub) Publisher(string) *gcppubsub.Publisher { return nil }

type stubPublisher struct {
	results []publishResult
}

func (s *stubPublisher) Publish(context.Context, *gcppubsub.Message) publishResult {
	if len(s.results) == 0 {
		return nil
	}
	next := s.results[0]
	s.results = s.results[1:]
	return next
}

type stubResult struct {
	err error
}

func (s stubResult) Get(context.Context) (string, error) { return "", s.err }

type stubResolver struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (s *stubResolver) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if s.resolved == nil {
		return nil, s.err
	}
	resolved := *s.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope.EventID = event.ID.String()
	resolved.Envelope.OccurredAt = time.Now()
	return &resolved, s.err
}

type stubDLQ struct {
	entries []models.OutboxDLQ
}

func (s *stubDLQ) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	s.entries = append(s.entries, entry)
	return nil
}
