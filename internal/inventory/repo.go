package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dvillegas/storefront-backend/pkg/db/models"
)

// Repository owns the inventory_items rows. All stock mutations are guarded
// single-statement updates so concurrent writers can never drive counts
// negative or oversell.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Get loads the inventory row for a product.
func (r *Repository) Get(ctx context.Context, productID uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).First(&item, "product_id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// Create inserts a fresh inventory row.
func (r *Repository) Create(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// ReserveStock moves qty from available into reserved. The guard requires
// stock_total - stock_reserved >= qty, so the update is a no-op when the
// product cannot cover the request.
func (r *Repository) ReserveStock(ctx context.Context, productID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE inventory_items
		 SET stock_reserved = stock_reserved + ?
		 WHERE product_id = ? AND stock_total - stock_reserved >= ?`,
		qty, productID, qty,
	)
	return res.RowsAffected, res.Error
}

// ReleaseStock returns qty from reserved back to available, flooring at zero
// so double releases never corrupt the row.
func (r *Repository) ReleaseStock(ctx context.Context, productID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE inventory_items
		 SET stock_reserved = CASE WHEN stock_reserved >= ? THEN stock_reserved - ? ELSE 0 END
		 WHERE product_id = ?`,
		qty, qty, productID,
	)
	return res.RowsAffected, res.Error
}

// ConfirmStock consumes a reservation on settlement: both reserved and total
// drop by qty.
func (r *Repository) ConfirmStock(ctx context.Context, productID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE inventory_items
		 SET stock_reserved = stock_reserved - ?, stock_total = stock_total - ?
		 WHERE product_id = ? AND stock_reserved >= ? AND stock_total >= ?`,
		qty, qty, productID, qty, qty,
	)
	return res.RowsAffected, res.Error
}

// RecoverStock adds qty back to the total, used when a confirmed sale is
// returned to sellable inventory.
func (r *Repository) RecoverStock(ctx context.Context, productID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE inventory_items
		 SET stock_total = stock_total + ?
		 WHERE product_id = ?`,
		qty, productID,
	)
	return res.RowsAffected, res.Error
}

// AddStock increases the total for an existing row.
func (r *Repository) AddStock(ctx context.Context, productID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE inventory_items
		 SET stock_total = stock_total + ?
		 WHERE product_id = ?`,
		qty, productID,
	)
	return res.RowsAffected, res.Error
}

// DiscountStock removes qty from the total without touching reservations.
// The guard keeps available stock non-negative.
func (r *Repository) DiscountStock(ctx context.Context, productID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE inventory_items
		 SET stock_total = stock_total - ?
		 WHERE product_id = ? AND stock_total - stock_reserved >= ?`,
		qty, productID, qty,
	)
	return res.RowsAffected, res.Error
}
