package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dvillegas/storefront-backend/pkg/db/models"
	pkgerrors "github.com/dvillegas/storefront-backend/pkg/errors"
)

// Ledger exposes guarded stock movements over the inventory repository. Every
// mutation runs against the DB handle the ledger is bound to, so callers that
// need atomicity bind it to their transaction via WithTx.
type Ledger struct {
	repo *Repository
}

// StockDetails is attached to stock errors so API clients can retry with a
// valid quantity.
type StockDetails struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// NewLedger wires a stock ledger with the provided repository.
func NewLedger(repo *Repository) (*Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &Ledger{repo: repo}, nil
}

// WithTx returns a ledger bound to the provided transaction.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{repo: l.repo.WithTx(tx)}
}

// Get returns the inventory row for a product.
func (l *Ledger) Get(ctx context.Context, productID uuid.UUID) (*models.InventoryItem, error) {
	item, err := l.repo.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeProductNotFound, "product has no inventory")
		}
		return nil, err
	}
	return item, nil
}

// Available returns the purchasable quantity for a product.
func (l *Ledger) Available(ctx context.Context, productID uuid.UUID) (int, error) {
	item, err := l.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	return item.Available(), nil
}

// Reserve holds qty units for a cart. Fails with an out-of-stock error when
// available stock cannot cover the request.
func (l *Ledger) Reserve(ctx context.Context, productID uuid.UUID, qty int) error {
	if err := validateQty(qty); err != nil {
		return err
	}
	rows, err := l.repo.ReserveStock(ctx, productID, qty)
	if err != nil {
		return err
	}
	if rows == 0 {
		return l.stockError(ctx, productID, qty, pkgerrors.CodeOutOfStock, "not enough stock to reserve")
	}
	return nil
}

// Release returns qty units from reserved back to available.
func (l *Ledger) Release(ctx context.Context, productID uuid.UUID, qty int) error {
	if err := validateQty(qty); err != nil {
		return err
	}
	rows, err := l.repo.ReleaseStock(ctx, productID, qty)
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeProductNotFound, "product has no inventory")
	}
	return nil
}

// Confirm consumes a reservation when an order settles.
func (l *Ledger) Confirm(ctx context.Context, productID uuid.UUID, qty int) error {
	if err := validateQty(qty); err != nil {
		return err
	}
	rows, err := l.repo.ConfirmStock(ctx, productID, qty)
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, getErr := l.Get(ctx, productID); getErr != nil {
			return getErr
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "reserved stock below confirmation quantity")
	}
	return nil
}

// Recover puts qty units of previously confirmed stock back on sale.
func (l *Ledger) Recover(ctx context.Context, productID uuid.UUID, qty int) error {
	if err := validateQty(qty); err != nil {
		return err
	}
	rows, err := l.repo.RecoverStock(ctx, productID, qty)
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeProductNotFound, "product has no inventory")
	}
	return nil
}

// AddStock raises the total, creating the inventory row on first use.
func (l *Ledger) AddStock(ctx context.Context, productID uuid.UUID, qty int) error {
	if err := validateQty(qty); err != nil {
		return err
	}
	rows, err := l.repo.AddStock(ctx, productID, qty)
	if err != nil {
		return err
	}
	if rows == 0 {
		return l.repo.Create(ctx, &models.InventoryItem{ProductID: productID, StockTotal: qty})
	}
	return nil
}

// DiscountStock lowers the total for shrinkage or manual correction without
// touching live reservations.
func (l *Ledger) DiscountStock(ctx context.Context, productID uuid.UUID, qty int) error {
	if err := validateQty(qty); err != nil {
		return err
	}
	rows, err := l.repo.DiscountStock(ctx, productID, qty)
	if err != nil {
		return err
	}
	if rows == 0 {
		return l.stockError(ctx, productID, qty, pkgerrors.CodeInsufficientStock, "unreserved stock cannot cover the discount")
	}
	return nil
}

// stockError reports a shortfall with the caller's code: a failed reserve
// is out-of-stock toward shoppers, a failed discount is insufficient stock
// toward admins. Availability only fills the detail payload.
func (l *Ledger) stockError(ctx context.Context, productID uuid.UUID, requested int, code pkgerrors.Code, msg string) error {
	item, err := l.Get(ctx, productID)
	if err != nil {
		return err
	}
	details := StockDetails{
		ProductID: productID,
		Requested: requested,
		Available: item.Available(),
	}
	return pkgerrors.New(code, msg).WithDetails(details)
}

func validateQty(qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return nil
}
