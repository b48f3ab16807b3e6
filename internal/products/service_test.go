package product

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dvillegas/storefront-backend/internal/inventory"
	"github.com/dvillegas/storefront-backend/pkg/db"
	"github.com/dvillegas/storefront-backend/pkg/db/models"
	pkgerrors "github.com/dvillegas/storefront-backend/pkg/errors"
)

func newValidationService(t *testing.T) Service {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.InventoryItem{}); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	// The products table is created by hand so the Postgres array column maps
	// onto a plain text column under sqlite.
	if err := conn.Exec(`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		category_id TEXT,
		sku TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		price_cents INTEGER NOT NULL,
		image_urls TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME,
		updated_at DATETIME
	)`).Error; err != nil {
		t.Fatalf("create products table: %v", err)
	}
	ledger, err := inventory.NewLedger(inventory.NewRepository(conn))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	svc, err := NewService(NewRepository(conn), db.NewWithConn(conn), ledger)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCreateProductValidation(t *testing.T) {
	svc := newValidationService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateProductInput
	}{
		{"missing sku", CreateProductInput{Name: "N", PriceCents: 100}},
		{"missing name", CreateProductInput{SKU: "sku", PriceCents: 100}},
		{"negative price", CreateProductInput{SKU: "sku", Name: "N", PriceCents: -1}},
		{"negative stock", CreateProductInput{SKU: "sku", Name: "N", PriceCents: 1, InitialStock: -2}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateProduct(ctx, tt.input)
			assertServiceCode(t, err, pkgerrors.CodeValidation)
		})
	}
}

func TestGetProductNotFound(t *testing.T) {
	svc := newValidationService(t)
	_, err := svc.GetProduct(context.Background(), uuid.New())
	assertServiceCode(t, err, pkgerrors.CodeProductNotFound)
}

func TestAddStockUnknownProduct(t *testing.T) {
	svc := newValidationService(t)
	_, err := svc.AddStock(context.Background(), uuid.New(), 5)
	assertServiceCode(t, err, pkgerrors.CodeProductNotFound)
}

func assertServiceCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	var domainErr *pkgerrors.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected domain error, got %v", err)
	}
	if domainErr.Code() != code {
		t.Fatalf("expected code %s, got %s", code, domainErr.Code())
	}
}
