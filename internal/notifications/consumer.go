package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/dvillegas/storefront-backend/pkg/db/models"
	"github.com/dvillegas/storefront-backend/pkg/enums"
	"github.com/dvillegas/storefront-backend/pkg/logger"
	"github.com/dvillegas/storefront-backend/pkg/money"
	"github.com/dvillegas/storefront-backend/pkg/outbox"
	"github.com/dvillegas/storefront-backend/pkg/outbox/idempotency"
	"github.com/dvillegas/storefront-backend/pkg/outbox/payloads"
)

const notificationConsumer = "order-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches domain events and turns order and cart transitions into
// in-app notifications.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	rawType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": rawType,
	})

	eventType, err := enums.ParseOutboxEventType(rawType)
	if err != nil {
		c.logg.Info(logCtx, "skipping unknown event type")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, notificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	notification, err := c.buildNotification(eventType, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, notificationConsumer, eventID)
		return processResult{nack: true}
	}
	if notification == nil {
		c.logg.Info(logCtx, "event type not handled")
		return processResult{ack: true}
	}

	if err := c.repo.Create(ctx, notification); err != nil {
		c.logg.Error(logCtx, "failed to store notification", err)
		_ = c.idempotency.Delete(ctx, notificationConsumer, eventID)
		return processResult{nack: true}
	}

	c.logg.Info(c.logg.WithField(logCtx, "user_id", notification.UserID.String()), "user notified")
	return processResult{ack: true}
}

func (c *Consumer) buildNotification(eventType enums.OutboxEventType, data json.RawMessage) (*models.Notification, error) {
	switch eventType {
	case enums.EventOrderCreated:
		var payload payloads.OrderCreatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return newNotification(payload.UserID, enums.NotificationTypeOrder,
			"Order placed",
			fmt.Sprintf("Your order for %s is awaiting payment.", money.FormatUSD(payload.TotalCents)),
			orderLink(payload.OrderID)), nil

	case enums.EventOrderPaid:
		var payload payloads.OrderPaidEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return newNotification(payload.UserID, enums.NotificationTypeReceipt,
			"Payment received",
			fmt.Sprintf("We received your payment of %s. Your order is being prepared.", money.FormatUSD(payload.AmountCents)),
			orderLink(payload.OrderID)), nil

	case enums.EventOrderCanceled:
		var payload payloads.OrderCanceledEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return newNotification(payload.UserID, enums.NotificationTypeOrder,
			"Order canceled",
			"Your order was canceled and any held stock was returned.",
			orderLink(payload.OrderID)), nil

	case enums.EventOrderStatusChanged:
		var payload payloads.OrderStatusChangedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		title, message := fulfillmentCopy(payload.To)
		return newNotification(payload.UserID, enums.NotificationTypeOrder,
			title, message, orderLink(payload.OrderID)), nil

	case enums.EventCartExpired:
		var payload payloads.CartExpiredEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return newNotification(payload.UserID, enums.NotificationTypeSystem,
			"Cart expired",
			"Your cart sat idle too long, so its items were released back to stock.",
			"/cart"), nil
	}
	return nil, nil
}

func fulfillmentCopy(status enums.OrderStatus) (string, string) {
	switch status {
	case enums.OrderStatusShipped:
		return "Order shipped", "Your order is on its way."
	case enums.OrderStatusDelivered:
		return "Order delivered", "Your order has been delivered. Enjoy!"
	default:
		return "Order updated", fmt.Sprintf("Your order status changed to %s.", status)
	}
}

func newNotification(userID uuid.UUID, kind enums.NotificationType, title, message, link string) *models.Notification {
	return &models.Notification{
		ID:      uuid.New(),
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		Link:    &link,
	}
}

func orderLink(orderID uuid.UUID) string {
	return fmt.Sprintf("/orders/%s", orderID)
}
