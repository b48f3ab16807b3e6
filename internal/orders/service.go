package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/dvillegas/storefront-backend/internal/cart"
	"github.com/dvillegas/storefront-backend/internal/inventory"
	"github.com/dvillegas/storefront-backend/pkg/db"
	"github.com/dvillegas/storefront-backend/pkg/db/models"
	"github.com/dvillegas/storefront-backend/pkg/enums"
	pkgerrors "github.com/dvillegas/storefront-backend/pkg/errors"
	"github.com/dvillegas/storefront-backend/pkg/logger"
	"github.com/dvillegas/storefront-backend/pkg/money"
	"github.com/dvillegas/storefront-backend/pkg/outbox"
	"github.com/dvillegas/storefront-backend/pkg/outbox/payloads"
	"github.com/dvillegas/storefront-backend/pkg/pagination"
	"github.com/dvillegas/storefront-backend/pkg/square"
)

const paymentProvider = "square"

// Service exposes the order lifecycle: checkout, payment, cancellation, and
// fulfillment transitions.
type Service interface {
	CreateOrderFromCart(ctx context.Context, userID uuid.UUID) (*OrderDTO, error)
	PayOrder(ctx context.Context, userID, orderID uuid.UUID, input PayOrderInput) (*OrderDTO, error)
	CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*OrderDTO, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderListResult, error)
}

// PayOrderInput carries the client-provided payment source.
type PayOrderInput struct {
	SourceID       string `json:"source_id" validate:"required"`
	IdempotencyKey string `json:"idempotency_key"`
}

type eventEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type paymentGateway interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
	CancelPayment(ctx context.Context, paymentID string) error
	LocationID() string
}

type service struct {
	repo     *Repository
	carts    *cart.Repository
	dbClient *db.Client
	ledger   *inventory.Ledger
	events   eventEmitter
	gateway  paymentGateway
	logg     *logger.Logger
}

// ServiceParams bundles the dependencies for the order service.
type ServiceParams struct {
	Repo     *Repository
	Carts    *cart.Repository
	DBClient *db.Client
	Ledger   *inventory.Ledger
	Events   eventEmitter
	Gateway  paymentGateway
	Logger   *logger.Logger
}

// NewService constructs an order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.DBClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	return &service{
		repo:     params.Repo,
		carts:    params.Carts,
		dbClient: params.DBClient,
		ledger:   params.Ledger,
		events:   params.Events,
		gateway:  params.Gateway,
		logg:     params.Logger,
	}, nil
}

// CreateOrderFromCart converts the user's active cart into a pending order.
// Line prices and product names are snapshotted so later catalog edits never
// rewrite the purchase. Stock reservations stay held until payment or
// cancellation.
func (s *service) CreateOrderFromCart(ctx context.Context, userID uuid.UUID) (*OrderDTO, error) {
	var orderID uuid.UUID
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txCarts := s.carts.WithTx(tx)
		txRepo := s.repo.WithTx(tx)

		activeCart, err := txCarts.FindActiveByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeCartNotFound, "no active cart")
			}
			return err
		}

		lines, err := txCarts.ListLineViews(ctx, activeCart.ID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		// Reservations were taken at add-to-cart; re-read each line's
		// inventory so an admin stock discount racing checkout surfaces
		// here instead of failing the payment later.
		txLedger := s.ledger.WithTx(tx)
		for _, line := range lines {
			item, err := txLedger.Get(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if item.StockTotal < line.Quantity {
				return pkgerrors.New(pkgerrors.CodeOutOfStock,
					fmt.Sprintf("stock no longer covers %d of product %s", line.Quantity, line.ProductID))
			}
		}

		rows, err := txCarts.UpdateStatus(ctx, activeCart.ID, enums.CartStatusActive, enums.CartStatusCompleted)
		if err != nil {
			return err
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart already checked out")
		}

		order := &models.Order{
			ID:     uuid.New(),
			UserID: userID,
			CartID: activeCart.ID,
			Status: enums.OrderStatusPending,
		}
		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			lineTotal := line.Quantity * line.UnitPriceCents
			order.TotalCents += lineTotal
			items = append(items, models.OrderItem{
				ID:             uuid.New(),
				OrderID:        order.ID,
				ProductID:      line.ProductID,
				ProductName:    line.ProductName,
				UnitPriceCents: line.UnitPriceCents,
				Quantity:       line.Quantity,
				TotalCents:     lineTotal,
			})
		}

		if err := txRepo.CreateOrder(ctx, order); err != nil {
			return err
		}
		if err := txRepo.CreateItems(ctx, items); err != nil {
			return err
		}
		orderID = order.ID

		return s.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCreatedEvent{
				OrderID:    order.ID,
				UserID:     userID,
				CartID:     activeCart.ID,
				TotalCents: order.TotalCents,
				ItemCount:  len(items),
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logOrder(ctx, orderID, "order created")
	return s.loadDTO(ctx, orderID)
}

// PayOrder charges the order total through the payment gateway, then settles
// the order in one transaction: reserved stock is consumed, the payment row
// is recorded, and the order moves to paid. If settlement fails after the
// charge, the payment is voided.
func (s *service) PayOrder(ctx context.Context, userID, orderID uuid.UUID, input PayOrderInput) (*OrderDTO, error) {
	order, err := s.loadOwnedOrder(ctx, s.repo, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not payable")
	}

	payment, err := s.gateway.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    int64(order.TotalCents),
		Currency:       "USD",
		LocationID:     s.gateway.LocationID(),
		SourceID:       input.SourceID,
		IdempotencyKey: input.IdempotencyKey,
		ReferenceID:    order.ID.String(),
		Note:           "storefront order",
	})
	if err != nil {
		return nil, err
	}

	paidAt := time.Now().UTC()
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		txLedger := s.ledger.WithTx(tx)

		rows, err := txRepo.MarkPaid(ctx, order.ID, paidAt)
		if err != nil {
			return err
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not payable")
		}

		for _, item := range order.Items {
			if err := txLedger.Confirm(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		record := &models.Payment{
			ID:                uuid.New(),
			OrderID:           order.ID,
			Status:            enums.PaymentStatusSucceeded,
			AmountCents:       order.TotalCents,
			Provider:          paymentProvider,
			ProviderPaymentID: payment.ID,
		}
		if err := txRepo.CreatePayment(ctx, record); err != nil {
			return err
		}

		return s.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderPaidEvent{
				OrderID:     order.ID,
				UserID:      order.UserID,
				AmountCents: order.TotalCents,
				PaidAt:      paidAt,
			},
			Version: 1,
		})
	})
	if err != nil {
		s.voidPayment(ctx, order.ID, payment)
		return nil, err
	}
	s.logOrder(ctx, order.ID, "order paid")
	return s.loadDTO(ctx, order.ID)
}

// voidPayment unwinds a gateway charge when settlement fails, so a lost race
// or a stock conflict after the charge does not leave the buyer paying for an
// order that never reached paid.
func (s *service) voidPayment(ctx context.Context, orderID uuid.UUID, payment *sq.Payment) {
	if payment == nil || payment.GetID() == nil {
		return
	}
	if err := s.gateway.CancelPayment(ctx, *payment.GetID()); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, orderID.String()), "void payment after settlement failure", err)
	}
}

// CancelOrder cancels a pending or paid order. Pending orders return their
// reservations to the pool; paid orders restock the confirmed quantities.
func (s *service) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		txLedger := s.ledger.WithTx(tx)

		order, err := s.loadOwnedOrder(ctx, txRepo, userID, orderID)
		if err != nil {
			return err
		}

		previous := order.Status
		switch previous {
		case enums.OrderStatusPending, enums.OrderStatusPaid:
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be canceled")
		}

		canceledAt := time.Now().UTC()
		rows, err := txRepo.MarkCanceled(ctx, order.ID, previous, canceledAt)
		if err != nil {
			return err
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be canceled")
		}

		cartRows, err := s.carts.WithTx(tx).UpdateStatus(ctx, order.CartID, enums.CartStatusCompleted, enums.CartStatusCanceled)
		if err != nil {
			return err
		}
		if cartRows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cart is not in a completed state")
		}

		for _, item := range order.Items {
			if previous == enums.OrderStatusPending {
				err = txLedger.Release(ctx, item.ProductID, item.Quantity)
			} else {
				err = txLedger.Recover(ctx, item.ProductID, item.Quantity)
			}
			if err != nil {
				return err
			}
		}

		return s.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCanceledEvent{
				OrderID:        order.ID,
				UserID:         order.UserID,
				PreviousStatus: previous,
				CanceledAt:     canceledAt,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logOrder(ctx, orderID, "order canceled")
	return s.loadDTO(ctx, orderID)
}

// fulfillmentPredecessor maps each fulfillment status to the only status it
// may be entered from.
var fulfillmentPredecessor = map[enums.OrderStatus]enums.OrderStatus{
	enums.OrderStatusShipped:   enums.OrderStatusPaid,
	enums.OrderStatusDelivered: enums.OrderStatusShipped,
}

// UpdateOrderStatus advances fulfillment: paid orders ship, shipped orders
// deliver. Any other transition is rejected.
func (s *service) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*OrderDTO, error) {
	from, ok := fulfillmentPredecessor[to]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported status transition to %s", to))
	}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		order, err := txRepo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
			}
			return err
		}

		rows, err := txRepo.UpdateStatus(ctx, order.ID, from, to)
		if err != nil {
			return err
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order must be %s to become %s", from, to))
		}

		return s.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderStatusChangedEvent{
				OrderID: order.ID,
				UserID:  order.UserID,
				From:    from,
				To:      to,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logOrder(ctx, orderID, "order status changed")
	return s.loadDTO(ctx, orderID)
}

// GetOrder returns the user's order with items and payment.
func (s *service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadOwnedOrder(ctx, s.repo, userID, orderID)
	if err != nil {
		return nil, err
	}
	return newOrderDTO(order), nil
}

// ListOrders returns the user's order history, newest first.
func (s *service) ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderListResult, error) {
	records, nextCursor, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, err
	}
	result := &OrderListResult{
		Orders:     make([]OrderSummary, 0, len(records)),
		NextCursor: nextCursor,
	}
	for _, record := range records {
		result.Orders = append(result.Orders, OrderSummary{
			ID:         record.ID,
			Status:     record.Status,
			TotalCents: record.TotalCents,
			Total:      money.FormatUSD(record.TotalCents),
			ItemCount:  record.ItemCount,
			CreatedAt:  record.CreatedAt,
		})
	}
	return result, nil
}

// loadOwnedOrder fetches an order and hides other users' orders behind a
// not-found error.
func (s *service) loadOwnedOrder(ctx context.Context, repo *Repository, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
	}
	return order, nil
}

func (s *service) loadDTO(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return newOrderDTO(order), nil
}

func (s *service) logOrder(ctx context.Context, orderID uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), msg)
}
