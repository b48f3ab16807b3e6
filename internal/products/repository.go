package product

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dvillegas/storefront-backend/pkg/db/models"
	"github.com/dvillegas/storefront-backend/pkg/money"
	"github.com/dvillegas/storefront-backend/pkg/pagination"
)

// Repository wires together product persistence helpers.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *Repository) FindBySKU(ctx context.Context, sku string) (*models.Product, error) {
	return r.findOne(ctx, "sku = ?", sku)
}

func (r *Repository) findOne(ctx context.Context, cond string, arg any) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, cond, arg).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// GetDetail fetches a product with its inventory row preloaded.
func (r *Repository) GetDetail(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Inventory").
		First(&product, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func (r *Repository) Update(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{}).Error
}

// ProductListFilters narrows list queries.
type ProductListFilters struct {
	CategoryID    *uuid.UUID
	PriceMinCents *int
	PriceMaxCents *int
	InStockOnly   bool
	Query         string
}

type productListQuery struct {
	Pagination pagination.Params
	Filters    ProductListFilters
	IncludeAll bool
}

// Available is computed against reservations so the catalog never offers
// stock a pending checkout already holds.
const summaryColumns = "p.id, p.category_id, p.sku, p.name, p.price_cents, p.is_active, " +
	"p.created_at, p.updated_at, COALESCE(i.stock_total - i.stock_reserved, 0) AS available"

// ListSummaries returns one keyset-paginated page of catalog rows, newest
// first. It fetches one row past the page to detect whether more exist.
func (r *Repository) ListSummaries(ctx context.Context, query productListQuery) (*ProductListResult, error) {
	pageSize := pagination.NormalizeLimit(query.Pagination.Limit)
	fetchLimit := pagination.LimitWithBuffer(query.Pagination.Limit)
	if fetchLimit <= pageSize {
		fetchLimit = pageSize + 1
	}

	cursor, err := pagination.ParseCursor(query.Pagination.Cursor)
	if err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).
		Table("products p").
		Select(summaryColumns).
		Joins("LEFT JOIN inventory_items i ON i.product_id = p.id")
	q = applyCatalogFilters(q, query.Filters, query.IncludeAll)
	if cursor != nil {
		q = q.Where(
			"(p.created_at < ?) OR (p.created_at = ? AND p.id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []productSummaryRecord
	err = q.Order("p.created_at DESC, p.id DESC").Limit(fetchLimit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	next := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		tail := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: tail.CreatedAt, ID: tail.ID})
	}

	page := make([]ProductSummary, 0, len(rows))
	for _, row := range rows {
		page = append(page, row.toSummary())
	}
	return &ProductListResult{Products: page, NextCursor: next}, nil
}

func applyCatalogFilters(q *gorm.DB, f ProductListFilters, includeAll bool) *gorm.DB {
	if f.CategoryID != nil {
		q = q.Where("p.category_id = ?", *f.CategoryID)
	}
	if f.PriceMinCents != nil {
		q = q.Where("p.price_cents >= ?", *f.PriceMinCents)
	}
	if f.PriceMaxCents != nil {
		q = q.Where("p.price_cents <= ?", *f.PriceMaxCents)
	}
	if f.InStockOnly {
		q = q.Where("COALESCE(i.stock_total - i.stock_reserved, 0) > 0")
	}
	if search := strings.TrimSpace(f.Query); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("(LOWER(p.name) LIKE ? OR LOWER(p.sku) LIKE ?)", like, like)
	}
	if !includeAll {
		q = q.Where("p.is_active = ?", true)
	}
	return q
}

type productSummaryRecord struct {
	ID         uuid.UUID
	CategoryID *uuid.UUID
	SKU        string
	Name       string
	PriceCents int
	Available  int
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r productSummaryRecord) toSummary() ProductSummary {
	return ProductSummary{
		ID:         r.ID,
		CategoryID: r.CategoryID,
		SKU:        r.SKU,
		Name:       r.Name,
		PriceCents: r.PriceCents,
		Price:      money.FormatUSD(r.PriceCents),
		Available:  r.Available,
		IsActive:   r.IsActive,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
