package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dvillegas/storefront-backend/api/middleware"
	"github.com/dvillegas/storefront-backend/api/responses"
	"github.com/dvillegas/storefront-backend/api/validators"
	productsvc "github.com/dvillegas/storefront-backend/internal/products"
	"github.com/dvillegas/storefront-backend/pkg/enums"
	pkgerrors "github.com/dvillegas/storefront-backend/pkg/errors"
	"github.com/dvillegas/storefront-backend/pkg/logger"
)

const maxPriceCents = 100_000_000

// ListProducts returns the catalog page for the storefront. Admins see
// inactive products as well.
func ListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		params, err := parsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters, err := parseProductFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := productsvc.ListProductsInput{
			Pagination: params,
			Filters:    filters,
			IncludeAll: middleware.RoleFromContext(r.Context()) == string(enums.UserRoleAdmin),
		}

		result, err := svc.ListProducts(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// GetProduct returns a single product with its stock counts.
func GetProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := parseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

type createProductRequest struct {
	SKU          string   `json:"sku" validate:"required"`
	Name         string   `json:"name" validate:"required"`
	Description  *string  `json:"description,omitempty"`
	CategoryID   *string  `json:"category_id,omitempty"`
	PriceCents   int      `json:"price_cents" validate:"required,min=1"`
	ImageURLs    []string `json:"image_urls,omitempty"`
	IsActive     *bool    `json:"is_active,omitempty"`
	InitialStock int      `json:"initial_stock" validate:"omitempty,min=0"`
}

func (req createProductRequest) toInput() (productsvc.CreateProductInput, error) {
	categoryID, err := parseOptionalUUID(req.CategoryID, "category_id")
	if err != nil {
		return productsvc.CreateProductInput{}, err
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	return productsvc.CreateProductInput{
		SKU:          strings.TrimSpace(req.SKU),
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		CategoryID:   categoryID,
		PriceCents:   req.PriceCents,
		ImageURLs:    req.ImageURLs,
		IsActive:     isActive,
		InitialStock: req.InitialStock,
	}, nil
}

// AdminCreateProduct creates a catalog entry plus its stock row.
func AdminCreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var body createProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

type updateProductRequest struct {
	SKU         *string   `json:"sku,omitempty"`
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	CategoryID  *string   `json:"category_id,omitempty"`
	PriceCents  *int      `json:"price_cents,omitempty" validate:"omitempty,min=1"`
	ImageURLs   *[]string `json:"image_urls,omitempty"`
	IsActive    *bool     `json:"is_active,omitempty"`
}

// AdminUpdateProduct applies a partial update to a product.
func AdminUpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := parseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		categoryID, err := parseOptionalUUID(body.CategoryID, "category_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), productID, productsvc.UpdateProductInput{
			SKU:         body.SKU,
			Name:        body.Name,
			Description: body.Description,
			CategoryID:  categoryID,
			PriceCents:  body.PriceCents,
			ImageURLs:   body.ImageURLs,
			IsActive:    body.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

// AdminDeleteProduct retires a product from the catalog.
func AdminDeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := parseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteProduct(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type stockAdjustRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// AdminAddStock replenishes stock for a product.
func AdminAddStock(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminAdjustStock(svc, logg, svcAddStock).ServeHTTP(w, r)
	}
}

// AdminDiscountStock removes sellable stock, e.g. for shrinkage.
func AdminDiscountStock(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminAdjustStock(svc, logg, svcDiscountStock).ServeHTTP(w, r)
	}
}

type stockAdjustKind int

const (
	svcAddStock stockAdjustKind = iota
	svcDiscountStock
)

func adminAdjustStock(svc productsvc.Service, logg *logger.Logger, kind stockAdjustKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := parseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body stockAdjustRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var product *productsvc.ProductDTO
		if kind == svcAddStock {
			product, err = svc.AddStock(r.Context(), productID, body.Quantity)
		} else {
			product, err = svc.DiscountStock(r.Context(), productID, body.Quantity)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

func parseProductFilters(r *http.Request) (productsvc.ProductListFilters, error) {
	var filters productsvc.ProductListFilters

	if raw := strings.TrimSpace(r.URL.Query().Get("category_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category id")
		}
		filters.CategoryID = &id
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("price_min_cents")); raw != "" {
		value, err := validators.ParseQueryInt(r, "price_min_cents", 0, 0, maxPriceCents)
		if err != nil {
			return filters, err
		}
		filters.PriceMinCents = &value
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("price_max_cents")); raw != "" {
		value, err := validators.ParseQueryInt(r, "price_max_cents", 0, 0, maxPriceCents)
		if err != nil {
			return filters, err
		}
		filters.PriceMaxCents = &value
	}

	filters.InStockOnly = r.URL.Query().Get("in_stock") == "true"
	filters.Query = validators.SanitizeString(r.URL.Query().Get("q"), 128)
	return filters, nil
}

func parseOptionalUUID(raw *string, field string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid identifier").WithDetails(map[string]any{"field": field})
	}
	return &id, nil
}
