package notifications

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/dvillegas/storefront-backend/pkg/enums"
	"github.com/dvillegas/storefront-backend/pkg/outbox/payloads"
)

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func TestBuildNotificationOrderCreated(t *testing.T) {
	c := &Consumer{}
	userID := uuid.New()
	orderID := uuid.New()

	notification, err := c.buildNotification(enums.EventOrderCreated, mustJSON(t, payloads.OrderCreatedEvent{
		OrderID:    orderID,
		UserID:     userID,
		TotalCents: 2599,
	}))
	if err != nil {
		t.Fatalf("buildNotification: %v", err)
	}
	if notification.UserID != userID {
		t.Fatalf("unexpected user %s", notification.UserID)
	}
	if notification.Type != enums.NotificationTypeOrder {
		t.Fatalf("unexpected type %s", notification.Type)
	}
	if !strings.Contains(notification.Message, "$25.99") {
		t.Fatalf("expected formatted amount in %q", notification.Message)
	}
	if notification.Link == nil || !strings.Contains(*notification.Link, orderID.String()) {
		t.Fatalf("expected order link, got %v", notification.Link)
	}
}

func TestBuildNotificationOrderPaidUsesReceiptType(t *testing.T) {
	c := &Consumer{}

	notification, err := c.buildNotification(enums.EventOrderPaid, mustJSON(t, payloads.OrderPaidEvent{
		OrderID:     uuid.New(),
		UserID:      uuid.New(),
		AmountCents: 100,
	}))
	if err != nil {
		t.Fatalf("buildNotification: %v", err)
	}
	if notification.Type != enums.NotificationTypeReceipt {
		t.Fatalf("unexpected type %s", notification.Type)
	}
}

func TestBuildNotificationFulfillmentCopy(t *testing.T) {
	c := &Consumer{}

	for status, wantTitle := range map[enums.OrderStatus]string{
		enums.OrderStatusShipped:   "Order shipped",
		enums.OrderStatusDelivered: "Order delivered",
	} {
		notification, err := c.buildNotification(enums.EventOrderStatusChanged, mustJSON(t, payloads.OrderStatusChangedEvent{
			OrderID: uuid.New(),
			UserID:  uuid.New(),
			To:      status,
		}))
		if err != nil {
			t.Fatalf("buildNotification(%s): %v", status, err)
		}
		if notification.Title != wantTitle {
			t.Fatalf("expected %q, got %q", wantTitle, notification.Title)
		}
	}
}

func TestBuildNotificationCartExpired(t *testing.T) {
	c := &Consumer{}
	userID := uuid.New()

	notification, err := c.buildNotification(enums.EventCartExpired, mustJSON(t, payloads.CartExpiredEvent{
		CartID: uuid.New(),
		UserID: userID,
	}))
	if err != nil {
		t.Fatalf("buildNotification: %v", err)
	}
	if notification.Type != enums.NotificationTypeSystem {
		t.Fatalf("unexpected type %s", notification.Type)
	}
	if notification.Link == nil || *notification.Link != "/cart" {
		t.Fatalf("expected cart link, got %v", notification.Link)
	}
}

func TestBuildNotificationBadPayload(t *testing.T) {
	c := &Consumer{}
	if _, err := c.buildNotification(enums.EventOrderCreated, json.RawMessage(`{"order_id":42}`)); err == nil {
		t.Fatal("expected unmarshal error")
	}
}
