package receipts

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dvillegas/storefront-backend/pkg/db/models"
	"github.com/dvillegas/storefront-backend/pkg/logger"
	"github.com/dvillegas/storefront-backend/pkg/money"
)

// Sender delivers a rendered receipt to the customer.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type orderReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

const defaultStoreName = "Storefront"

// Service renders and delivers order receipts.
type Service struct {
	orders    orderReader
	users     userReader
	renderer  *Renderer
	sender    Sender
	storeName string
	logg      *logger.Logger
}

// ServiceParams bundles the receipt service dependencies.
type ServiceParams struct {
	Orders    orderReader
	Users     userReader
	Renderer  *Renderer
	Sender    Sender
	StoreName string
	Logger    *logger.Logger
}

// NewService constructs a receipt service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user reader required")
	}
	if params.Renderer == nil {
		return nil, fmt.Errorf("renderer required")
	}
	if params.Sender == nil {
		return nil, fmt.Errorf("sender required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	storeName := params.StoreName
	if storeName == "" {
		storeName = defaultStoreName
	}
	return &Service{
		orders:    params.Orders,
		users:     params.Users,
		renderer:  params.Renderer,
		sender:    params.Sender,
		storeName: storeName,
		logg:      params.Logger,
	}, nil
}

// SendForOrder renders the receipt for a paid order and hands it to the
// sender.
func (s *Service) SendForOrder(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	user, err := s.users.FindByID(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	data := Data{
		StoreName:    s.storeName,
		OrderID:      order.ID.String(),
		CustomerName: user.FirstName,
		Total:        money.FormatUSD(order.TotalCents),
	}
	if order.PaidAt != nil {
		data.PaidAt = *order.PaidAt
	}
	for _, item := range order.Items {
		data.Lines = append(data.Lines, Line{
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: money.FormatUSD(item.UnitPriceCents),
			Total:     money.FormatUSD(item.TotalCents),
		})
	}

	body, err := s.renderer.Render(data)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Your %s receipt for order %s", s.storeName, order.ID)
	if err := s.sender.Send(ctx, user.Email, subject, body); err != nil {
		return fmt.Errorf("send receipt: %w", err)
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, "receipt sent")
	return nil
}

// LogSender writes receipts to the log instead of delivering them. Used
// until an email provider is wired in.
type LogSender struct {
	from string
	logg *logger.Logger
}

// NewLogSender builds a sender that only logs deliveries.
func NewLogSender(logg *logger.Logger, from string) (*LogSender, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &LogSender{from: from, logg: logg}, nil
}

// Send logs the would-be delivery.
func (s *LogSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"from":       s.from,
		"to":         to,
		"subject":    subject,
		"body_bytes": len(htmlBody),
	})
	s.logg.Info(logCtx, "receipt delivery skipped: no email provider configured")
	return nil
}
