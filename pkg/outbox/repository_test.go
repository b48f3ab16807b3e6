package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dvillegas/storefront-backend/pkg/db/models"
	"github.com/dvillegas/storefront-backend/pkg/enums"
)

func setupOutboxDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	ddl := `CREATE TABLE IF NOT EXISTS outbox_events (
		id TEXT,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`
	if err := conn.Exec(ddl).Error; err != nil {
		t.Fatalf("create outbox table: %v", err)
	}
	return conn
}

func countOutboxEvents(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := conn.Model(&models.OutboxEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count outbox events: %v", err)
	}
	return count
}

func TestRepositoryExistsTxScopesToUnpublished(t *testing.T) {
	conn := setupOutboxDB(t)
	repo := NewRepository(conn)

	eventID := uuid.New()
	orderID := uuid.New()
	if err := repo.Insert(conn, models.OutboxEvent{
		ID:            eventID,
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       []byte(`{}`),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	exists, err := repo.ExistsTx(conn, enums.EventOrderCreated, enums.AggregateOrder, orderID)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("queued event not reported by ExistsTx")
	}

	exists, err = repo.ExistsTx(conn, enums.EventOrderPaid, enums.AggregateOrder, orderID)
	if err != nil {
		t.Fatalf("exists other type: %v", err)
	}
	if exists {
		t.Fatal("ExistsTx matched a different event type")
	}

	if err := repo.MarkPublishedTx(conn, eventID); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	exists, err = repo.ExistsTx(conn, enums.EventOrderCreated, enums.AggregateOrder, orderID)
	if err != nil {
		t.Fatalf("exists after publish: %v", err)
	}
	if exists {
		t.Fatal("published event must not block a re-emit")
	}
}

func TestServiceEmitIfNotExistsSkipsQueuedDuplicate(t *testing.T) {
	conn := setupOutboxDB(t)
	svc := NewService(NewRepository(conn), nil)
	ctx := context.Background()

	event := DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Data:          map[string]any{"total_cents": 2500},
		Version:       1,
		OccurredAt:    time.Now().UTC(),
	}

	if err := svc.EmitIfNotExists(ctx, conn, event); err != nil {
		t.Fatalf("first emit: %v", err)
	}
	if err := svc.EmitIfNotExists(ctx, conn, event); err != nil {
		t.Fatalf("second emit: %v", err)
	}
	if got := countOutboxEvents(t, conn); got != 1 {
		t.Fatalf("expected one queued event, got %d", got)
	}
}
