package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dvillegas/storefront-backend/internal/inventory"
	"github.com/dvillegas/storefront-backend/pkg/db"
	"github.com/dvillegas/storefront-backend/pkg/db/models"
	pkgerrors "github.com/dvillegas/storefront-backend/pkg/errors"
	"github.com/dvillegas/storefront-backend/pkg/pagination"
)

// Service exposes catalog management and stock adjustment operations.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, productID uuid.UUID) error
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	AddStock(ctx context.Context, productID uuid.UUID, qty int) (*ProductDTO, error)
	DiscountStock(ctx context.Context, productID uuid.UUID, qty int) (*ProductDTO, error)
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	SKU          string
	Name         string
	Description  *string
	CategoryID   *uuid.UUID
	PriceCents   int
	ImageURLs    []string
	IsActive     bool
	InitialStock int
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	SKU         *string
	Name        *string
	Description *string
	CategoryID  *uuid.UUID
	PriceCents  *int
	ImageURLs   *[]string
	IsActive    *bool
}

// ListProductsInput carries pagination, filters, and the caller's view.
type ListProductsInput struct {
	Pagination pagination.Params
	Filters    ProductListFilters
	IncludeAll bool
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	ledger   *inventory.Ledger
}

// NewService constructs a product service instance.
func NewService(repo *Repository, dbClient *db.Client, ledger *inventory.Ledger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	return &service{repo: repo, dbClient: dbClient, ledger: ledger}, nil
}

// CreateProduct creates the product together with its inventory row.
func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	if err := validateSKU(input.SKU); err != nil {
		return nil, err
	}
	if err := validateName(input.Name); err != nil {
		return nil, err
	}
	if err := validatePrice(input.PriceCents); err != nil {
		return nil, err
	}
	if input.InitialStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial_stock cannot be negative")
	}

	var createdID uuid.UUID
	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		product := &models.Product{
			ID:          uuid.New(),
			CategoryID:  input.CategoryID,
			SKU:         strings.TrimSpace(input.SKU),
			Name:        strings.TrimSpace(input.Name),
			Description: input.Description,
			PriceCents:  input.PriceCents,
			ImageURLs:   input.ImageURLs,
			IsActive:    input.IsActive,
		}
		if _, err := txRepo.Create(ctx, product); err != nil {
			if db.IsUniqueViolation(err, "ux_products_sku") {
				return pkgerrors.New(pkgerrors.CodeConflict, "sku already exists")
			}
			return err
		}

		item := &models.InventoryItem{ProductID: product.ID, StockTotal: input.InitialStock}
		if err := tx.WithContext(ctx).Create(item).Error; err != nil {
			return err
		}

		createdID = product.ID
		return nil
	}); err != nil {
		return nil, err
	}

	return s.GetProduct(ctx, createdID)
}

// UpdateProduct applies partial edits to a product.
func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, notFoundOr(err)
	}

	if input.SKU != nil {
		if err := validateSKU(*input.SKU); err != nil {
			return nil, err
		}
		product.SKU = strings.TrimSpace(*input.SKU)
	}
	if input.Name != nil {
		if err := validateName(*input.Name); err != nil {
			return nil, err
		}
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.CategoryID != nil {
		product.CategoryID = input.CategoryID
	}
	if input.PriceCents != nil {
		if err := validatePrice(*input.PriceCents); err != nil {
			return nil, err
		}
		product.PriceCents = *input.PriceCents
	}
	if input.ImageURLs != nil {
		product.ImageURLs = *input.ImageURLs
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}

	if _, err := s.repo.Update(ctx, product); err != nil {
		if db.IsUniqueViolation(err, "ux_products_sku") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "sku already exists")
		}
		return nil, err
	}
	return s.GetProduct(ctx, productID)
}

// DeleteProduct removes a product and its inventory via FK cascade.
func (s *service) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, productID); err != nil {
		return notFoundOr(err)
	}
	return s.repo.Delete(ctx, productID)
}

// GetProduct returns the product detail with stock counts.
func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.GetDetail(ctx, productID)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return NewProductDTO(product), nil
}

// ListProducts returns a filtered catalog page.
func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	return s.repo.ListSummaries(ctx, productListQuery{
		Pagination: input.Pagination,
		Filters:    input.Filters,
		IncludeAll: input.IncludeAll,
	})
}

// AddStock raises the sellable total for a product.
func (s *service) AddStock(ctx context.Context, productID uuid.UUID, qty int) (*ProductDTO, error) {
	if _, err := s.repo.FindByID(ctx, productID); err != nil {
		return nil, notFoundOr(err)
	}
	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ledger.WithTx(tx).AddStock(ctx, productID, qty)
	}); err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, productID)
}

// DiscountStock lowers the sellable total, never below live reservations.
func (s *service) DiscountStock(ctx context.Context, productID uuid.UUID, qty int) (*ProductDTO, error) {
	if _, err := s.repo.FindByID(ctx, productID); err != nil {
		return nil, notFoundOr(err)
	}
	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ledger.WithTx(tx).DiscountStock(ctx, productID, qty)
	}); err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, productID)
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found")
	}
	return err
}

func validateSKU(sku string) error {
	if strings.TrimSpace(sku) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	return nil
}

func validatePrice(cents int) error {
	if cents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "price_cents cannot be negative")
	}
	return nil
}
