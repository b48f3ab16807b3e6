package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dvillegas/storefront-backend/internal/inventory"
	"github.com/dvillegas/storefront-backend/pkg/db"
	"github.com/dvillegas/storefront-backend/pkg/db/models"
	"github.com/dvillegas/storefront-backend/pkg/enums"
	pkgerrors "github.com/dvillegas/storefront-backend/pkg/errors"
	"github.com/dvillegas/storefront-backend/pkg/logger"
	"github.com/dvillegas/storefront-backend/pkg/outbox"
	"github.com/dvillegas/storefront-backend/pkg/outbox/payloads"
)

// Service exposes cart mutation and read operations. Every mutation reserves
// or releases stock in the same transaction that touches the cart rows.
type Service interface {
	GetActiveCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	AddProduct(ctx context.Context, userID, productID uuid.UUID, qty int) (*CartDTO, error)
	IncreaseQuantity(ctx context.Context, userID, productID uuid.UUID, qty int) (*CartDTO, error)
	DecreaseQuantity(ctx context.Context, userID, productID uuid.UUID, qty int) (*CartDTO, error)
	RemoveProduct(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error)
	ExpireCart(ctx context.Context, cartID uuid.UUID) error
}

type eventEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	ledger   *inventory.Ledger
	events   eventEmitter
	logg     *logger.Logger
}

// ServiceParams bundles the dependencies for the cart service.
type ServiceParams struct {
	Repo     *Repository
	DBClient *db.Client
	Ledger   *inventory.Ledger
	Events   eventEmitter
	Logger   *logger.Logger
}

// NewService constructs a cart service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
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
	return &service{
		repo:     params.Repo,
		dbClient: params.DBClient,
		ledger:   params.Ledger,
		events:   params.Events,
		logg:     params.Logger,
	}, nil
}

// GetActiveCart returns the user's active cart, creating an empty one on
// first use.
func (s *service) GetActiveCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	cart, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		cart = &models.Cart{ID: uuid.New(), UserID: userID, Status: enums.CartStatusActive}
		if err := s.repo.CreateCart(ctx, cart); err != nil {
			return nil, err
		}
	}
	return s.buildDTO(ctx, s.repo, cart)
}

// AddProduct reserves stock and adds (or tops up) a line in the active cart.
func (s *service) AddProduct(ctx context.Context, userID, productID uuid.UUID, qty int) (*CartDTO, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var cartID uuid.UUID
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		txLedger := s.ledger.WithTx(tx)

		cart, err := s.ensureActiveCart(ctx, txRepo, userID)
		if err != nil {
			return err
		}
		cartID = cart.ID

		product, err := s.loadSellableProduct(ctx, tx, productID)
		if err != nil {
			return err
		}

		if err := txLedger.Reserve(ctx, productID, qty); err != nil {
			return err
		}

		line, err := txRepo.FindLine(ctx, cart.ID, productID)
		switch {
		case err == nil:
			if err := txRepo.UpdateLineQuantity(ctx, line.ID, line.Quantity+qty); err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			newLine := &models.CartLine{
				ID:             uuid.New(),
				CartID:         cart.ID,
				ProductID:      productID,
				Quantity:       qty,
				UnitPriceCents: product.PriceCents,
			}
			if err := txRepo.CreateLine(ctx, newLine); err != nil {
				return err
			}
		default:
			return err
		}

		return s.recomputeSubtotal(ctx, txRepo, cart.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.loadDTO(ctx, cartID)
}

// IncreaseQuantity reserves qty more units of a product, creating the line
// when the product is not in the cart yet. It shares AddProduct's
// reserve-then-upsert path so both entry points behave identically.
func (s *service) IncreaseQuantity(ctx context.Context, userID, productID uuid.UUID, qty int) (*CartDTO, error) {
	return s.AddProduct(ctx, userID, productID, qty)
}

// DecreaseQuantity releases stock; dropping to zero removes the line.
func (s *service) DecreaseQuantity(ctx context.Context, userID, productID uuid.UUID, qty int) (*CartDTO, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var cartID uuid.UUID
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		txLedger := s.ledger.WithTx(tx)

		cart, line, err := s.requireLine(ctx, txRepo, userID, productID)
		if err != nil {
			return err
		}
		cartID = cart.ID

		released := qty
		if released > line.Quantity {
			released = line.Quantity
		}
		if err := txLedger.Release(ctx, productID, released); err != nil {
			return err
		}

		remaining := line.Quantity - qty
		if remaining <= 0 {
			if err := txRepo.DeleteLine(ctx, line.ID); err != nil {
				return err
			}
		} else {
			if err := txRepo.UpdateLineQuantity(ctx, line.ID, remaining); err != nil {
				return err
			}
		}
		return s.recomputeSubtotal(ctx, txRepo, cart.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.loadDTO(ctx, cartID)
}

// RemoveProduct releases the full line reservation and deletes the line.
func (s *service) RemoveProduct(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error) {
	var cartID uuid.UUID
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		txLedger := s.ledger.WithTx(tx)

		cart, line, err := s.requireLine(ctx, txRepo, userID, productID)
		if err != nil {
			return err
		}
		cartID = cart.ID

		if err := txLedger.Release(ctx, productID, line.Quantity); err != nil {
			return err
		}
		if err := txRepo.DeleteLine(ctx, line.ID); err != nil {
			return err
		}
		return s.recomputeSubtotal(ctx, txRepo, cart.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.loadDTO(ctx, cartID)
}

// ExpireCart transitions an abandoned active cart to expired, returning its
// reservations to the pool. Carts that already left ACTIVE are skipped.
func (s *service) ExpireCart(ctx context.Context, cartID uuid.UUID) error {
	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		txLedger := s.ledger.WithTx(tx)

		cart, err := txRepo.FindByID(ctx, cartID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeCartNotFound, "cart not found")
			}
			return err
		}

		rows, err := txRepo.UpdateStatus(ctx, cart.ID, enums.CartStatusActive, enums.CartStatusExpired)
		if err != nil {
			return err
		}
		if rows == 0 {
			// Checkout or another sweep won the race.
			return nil
		}

		lines, err := txRepo.ListLines(ctx, cart.ID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if err := txLedger.Release(ctx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventCartExpired,
			AggregateType: enums.AggregateCart,
			AggregateID:   cart.ID,
			Data: payloads.CartExpiredEvent{
				CartID:        cart.ID,
				UserID:        cart.UserID,
				ReleasedLines: len(lines),
				ExpiredAt:     time.Now().UTC(),
			},
			Version: 1,
		}
		if err := s.events.EmitIfNotExists(ctx, tx, event); err != nil {
			return err
		}

		if s.logg != nil {
			logCtx := s.logg.WithCartID(ctx, cart.ID.String())
			s.logg.Info(logCtx, "cart expired")
		}
		return nil
	})
}

func (s *service) ensureActiveCart(ctx context.Context, repo *Repository, userID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.FindActiveByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	cart = &models.Cart{ID: uuid.New(), UserID: userID, Status: enums.CartStatusActive}
	if err := repo.CreateCart(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *service) requireLine(ctx context.Context, repo *Repository, userID, productID uuid.UUID) (*models.Cart, *models.CartLine, error) {
	cart, err := repo.FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeCartNotFound, "no active cart")
		}
		return nil, nil, err
	}
	line, err := repo.FindLine(ctx, cart.ID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeProductNotInCart, "product not in cart")
		}
		return nil, nil, err
	}
	return cart, line, nil
}

func (s *service) loadSellableProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := tx.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found")
		}
		return nil, err
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found")
	}
	return &product, nil
}

func (s *service) recomputeSubtotal(ctx context.Context, repo *Repository, cartID uuid.UUID) error {
	lines, err := repo.ListLines(ctx, cartID)
	if err != nil {
		return err
	}
	subtotal := 0
	for _, line := range lines {
		subtotal += line.TotalCents()
	}
	return repo.UpdateSubtotal(ctx, cartID, subtotal)
}

func (s *service) loadDTO(ctx context.Context, cartID uuid.UUID) (*CartDTO, error) {
	cart, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return s.buildDTO(ctx, s.repo, cart)
}

func (s *service) buildDTO(ctx context.Context, repo *Repository, cart *models.Cart) (*CartDTO, error) {
	views, err := repo.ListLineViews(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	return newCartDTO(cart, views), nil
}
