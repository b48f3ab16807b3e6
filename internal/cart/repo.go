package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dvillegas/storefront-backend/pkg/db/models"
	"github.com/dvillegas/storefront-backend/pkg/enums"
)

// Repository owns cart and cart line persistence.
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

// FindActiveByUser returns the user's single active cart, if any.
func (r *Repository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, enums.CartStatusActive).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByID loads a cart by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.db.WithContext(ctx).First(&cart, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// CreateCart inserts a new cart row.
func (r *Repository) CreateCart(ctx context.Context, cart *models.Cart) error {
	return r.db.WithContext(ctx).Create(cart).Error
}

// FindLine returns the line for (cart, product), if present.
func (r *Repository) FindLine(ctx context.Context, cartID, productID uuid.UUID) (*models.CartLine, error) {
	var line models.CartLine
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// CreateLine inserts a new cart line.
func (r *Repository) CreateLine(ctx context.Context, line *models.CartLine) error {
	return r.db.WithContext(ctx).Create(line).Error
}

// UpdateLineQuantity overwrites the quantity on a line.
func (r *Repository) UpdateLineQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("id = ?", lineID).
		UpdateColumn("quantity", quantity).Error
}

// DeleteLine removes a cart line.
func (r *Repository) DeleteLine(ctx context.Context, lineID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", lineID).Delete(&models.CartLine{}).Error
}

// ListLines returns the raw lines for a cart.
func (r *Repository) ListLines(ctx context.Context, cartID uuid.UUID) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// LineView is a cart line joined with the product name for display and
// order snapshotting.
type LineView struct {
	ProductID      uuid.UUID
	ProductName    string
	Quantity       int
	UnitPriceCents int
}

// ListLineViews returns cart lines joined with product names.
func (r *Repository) ListLineViews(ctx context.Context, cartID uuid.UUID) ([]LineView, error) {
	var views []LineView
	err := r.db.WithContext(ctx).
		Table("cart_lines cl").
		Select("cl.product_id, p.name AS product_name, cl.quantity, cl.unit_price_cents").
		Joins("JOIN products p ON p.id = cl.product_id").
		Where("cl.cart_id = ?", cartID).
		Order("cl.created_at ASC").
		Scan(&views).Error
	if err != nil {
		return nil, err
	}
	return views, nil
}

// UpdateSubtotal overwrites the cached subtotal on the cart. Every cart
// mutation funnels through here, so stamping updated_at keeps the expiry
// sweep's staleness cutoff honest.
func (r *Repository) UpdateSubtotal(ctx context.Context, cartID uuid.UUID, subtotalCents int) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Updates(map[string]any{
			"subtotal_cents": subtotalCents,
			"updated_at":     time.Now().UTC(),
		}).Error
}

// UpdateStatus transitions the cart when the current status matches expected.
// Returns the number of rows moved so callers can detect lost races.
func (r *Repository) UpdateStatus(ctx context.Context, cartID uuid.UUID, from, to enums.CartStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status = ?", cartID, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// ListStaleActive returns active carts idle since before the cutoff.
func (r *Repository) ListStaleActive(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error) {
	var carts []models.Cart
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", enums.CartStatusActive, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&carts).Error
	if err != nil {
		return nil, err
	}
	return carts, nil
}
