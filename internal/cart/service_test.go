package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dvillegas/storefront-backend/internal/inventory"
	"github.com/dvillegas/storefront-backend/pkg/db"
	"github.com/dvillegas/storefront-backend/pkg/db/models"
	"github.com/dvillegas/storefront-backend/pkg/enums"
	pkgerrors "github.com/dvillegas/storefront-backend/pkg/errors"
	"github.com/dvillegas/storefront-backend/pkg/outbox"
)

type capturedEmitter struct {
	events []outbox.DomainEvent
}

func (c *capturedEmitter) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	c.events = append(c.events, event)
	return nil
}

type cartFixture struct {
	svc     Service
	conn    *gorm.DB
	ledger  *inventory.Ledger
	emitter *capturedEmitter
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	// Raw DDL instead of AutoMigrate: the Postgres column defaults and the
	// text[] column on products do not translate to sqlite.
	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS carts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			subtotal_cents INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS cart_lines (
			id TEXT PRIMARY KEY,
			cart_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			unit_price_cents INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (cart_id, product_id)
		)`,
		`CREATE TABLE IF NOT EXISTS inventory_items (
			product_id TEXT PRIMARY KEY,
			stock_total INTEGER NOT NULL DEFAULT 0,
			stock_reserved INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			category_id TEXT,
			sku TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			price_cents INTEGER NOT NULL,
			image_urls TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	} {
		if err := conn.Exec(ddl).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	ledger, err := inventory.NewLedger(inventory.NewRepository(conn))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	emitter := &capturedEmitter{}
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		DBClient: db.NewWithConn(conn),
		Ledger:   ledger,
		Events:   emitter,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &cartFixture{svc: svc, conn: conn, ledger: ledger, emitter: emitter}
}

func (f *cartFixture) seedProduct(t *testing.T, priceCents, stock int) uuid.UUID {
	t.Helper()
	productID := uuid.New()
	if err := f.conn.Exec(
		`INSERT INTO products (id, sku, name, price_cents, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, TRUE, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		productID, "sku-"+productID.String()[:8], "Widget", priceCents,
	).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	item := models.InventoryItem{ProductID: productID, StockTotal: stock}
	if err := f.conn.Create(&item).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return productID
}

func (f *cartFixture) stock(t *testing.T, productID uuid.UUID) models.InventoryItem {
	t.Helper()
	var item models.InventoryItem
	if err := f.conn.First(&item, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	return item
}

func TestGetActiveCartCreatesOnFirstUse(t *testing.T) {
	f := newCartFixture(t)
	userID := uuid.New()

	first, err := f.svc.GetActiveCart(context.Background(), userID)
	if err != nil {
		t.Fatalf("get active cart: %v", err)
	}
	if first.Status != enums.CartStatusActive {
		t.Fatalf("expected active status, got %s", first.Status)
	}

	second, err := f.svc.GetActiveCart(context.Background(), userID)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("expected the same cart across calls")
	}
}

func TestAddProductReservesStockAndSnapshotsPrice(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	productID := f.seedProduct(t, 1999, 10)

	dto, err := f.svc.AddProduct(ctx, userID, productID, 3)
	if err != nil {
		t.Fatalf("add product: %v", err)
	}
	if len(dto.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(dto.Lines))
	}
	line := dto.Lines[0]
	if line.Quantity != 3 || line.UnitPriceCents != 1999 {
		t.Fatalf("unexpected line %+v", line)
	}
	if dto.SubtotalCents != 3*1999 {
		t.Fatalf("unexpected subtotal %d", dto.SubtotalCents)
	}

	item := f.stock(t, productID)
	if item.StockReserved != 3 {
		t.Fatalf("expected 3 reserved, got %d", item.StockReserved)
	}

	// Raising the catalog price must not rewrite the snapshotted line price.
	if err := f.conn.Exec(`UPDATE products SET price_cents = 2999 WHERE id = ?`, productID).Error; err != nil {
		t.Fatalf("update price: %v", err)
	}
	dto, err = f.svc.AddProduct(ctx, userID, productID, 1)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if dto.Lines[0].UnitPriceCents != 1999 {
		t.Fatalf("line price changed to %d", dto.Lines[0].UnitPriceCents)
	}
	if dto.Lines[0].Quantity != 4 {
		t.Fatalf("expected quantity 4, got %d", dto.Lines[0].Quantity)
	}
}

func TestAddProductStockShortfallLeavesCartUntouched(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	productID := f.seedProduct(t, 500, 2)

	_, err := f.svc.AddProduct(ctx, userID, productID, 5)
	assertCartCode(t, err, pkgerrors.CodeOutOfStock)

	item := f.stock(t, productID)
	if item.StockReserved != 0 {
		t.Fatalf("reservation leaked: %d", item.StockReserved)
	}
	dto, err := f.svc.GetActiveCart(ctx, userID)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if len(dto.Lines) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(dto.Lines))
	}
}

func TestAddProductUnknownOrInactive(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := f.svc.AddProduct(ctx, userID, uuid.New(), 1)
	assertCartCode(t, err, pkgerrors.CodeProductNotFound)

	productID := f.seedProduct(t, 500, 5)
	if err := f.conn.Exec(`UPDATE products SET is_active = FALSE WHERE id = ?`, productID).Error; err != nil {
		t.Fatalf("deactivate product: %v", err)
	}
	_, err = f.svc.AddProduct(ctx, userID, productID, 1)
	assertCartCode(t, err, pkgerrors.CodeProductNotFound)
}

func TestIncreaseQuantityCreatesLineWhenMissing(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	productID := f.seedProduct(t, 500, 5)

	dto, err := f.svc.IncreaseQuantity(ctx, userID, productID, 2)
	if err != nil {
		t.Fatalf("increase without line: %v", err)
	}
	if len(dto.Lines) != 1 || dto.Lines[0].Quantity != 2 {
		t.Fatalf("expected a fresh line with quantity 2, got %+v", dto.Lines)
	}

	dto, err = f.svc.IncreaseQuantity(ctx, userID, productID, 1)
	if err != nil {
		t.Fatalf("increase existing line: %v", err)
	}
	if dto.Lines[0].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", dto.Lines[0].Quantity)
	}
	item := f.stock(t, productID)
	if item.StockReserved != 3 {
		t.Fatalf("expected 3 reserved, got %d", item.StockReserved)
	}

	_, err = f.svc.IncreaseQuantity(ctx, userID, uuid.New(), 1)
	assertCartCode(t, err, pkgerrors.CodeProductNotFound)
}

func TestDecreaseQuantityRemovesLineAtZero(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	productID := f.seedProduct(t, 500, 10)

	if _, err := f.svc.AddProduct(ctx, userID, productID, 3); err != nil {
		t.Fatalf("add product: %v", err)
	}

	dto, err := f.svc.DecreaseQuantity(ctx, userID, productID, 2)
	if err != nil {
		t.Fatalf("decrease: %v", err)
	}
	if dto.Lines[0].Quantity != 1 {
		t.Fatalf("expected quantity 1, got %d", dto.Lines[0].Quantity)
	}

	dto, err = f.svc.DecreaseQuantity(ctx, userID, productID, 5)
	if err != nil {
		t.Fatalf("decrease past zero: %v", err)
	}
	if len(dto.Lines) != 0 {
		t.Fatalf("expected line removed, got %d lines", len(dto.Lines))
	}
	if dto.SubtotalCents != 0 {
		t.Fatalf("expected zero subtotal, got %d", dto.SubtotalCents)
	}

	item := f.stock(t, productID)
	if item.StockReserved != 0 {
		t.Fatalf("expected all reservations released, got %d", item.StockReserved)
	}
}

func TestRemoveProductReleasesReservation(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	productID := f.seedProduct(t, 500, 10)

	if _, err := f.svc.AddProduct(ctx, userID, productID, 4); err != nil {
		t.Fatalf("add product: %v", err)
	}

	dto, err := f.svc.RemoveProduct(ctx, userID, productID)
	if err != nil {
		t.Fatalf("remove product: %v", err)
	}
	if len(dto.Lines) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(dto.Lines))
	}

	item := f.stock(t, productID)
	if item.StockReserved != 0 {
		t.Fatalf("expected reservation released, got %d", item.StockReserved)
	}
}

func TestExpireCartReleasesAndEmits(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	productID := f.seedProduct(t, 500, 10)

	dto, err := f.svc.AddProduct(ctx, userID, productID, 4)
	if err != nil {
		t.Fatalf("add product: %v", err)
	}

	if err := f.svc.ExpireCart(ctx, dto.ID); err != nil {
		t.Fatalf("expire cart: %v", err)
	}

	var cart models.Cart
	if err := f.conn.First(&cart, "id = ?", dto.ID).Error; err != nil {
		t.Fatalf("load cart: %v", err)
	}
	if cart.Status != enums.CartStatusExpired {
		t.Fatalf("expected expired, got %s", cart.Status)
	}

	item := f.stock(t, productID)
	if item.StockReserved != 0 {
		t.Fatalf("expected reservation released, got %d", item.StockReserved)
	}

	if len(f.emitter.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(f.emitter.events))
	}
	if f.emitter.events[0].EventType != enums.EventCartExpired {
		t.Fatalf("unexpected event type %s", f.emitter.events[0].EventType)
	}

	// Expiring again is a silent no-op: the status guard fails.
	if err := f.svc.ExpireCart(ctx, dto.ID); err != nil {
		t.Fatalf("second expire: %v", err)
	}
	if len(f.emitter.events) != 1 {
		t.Fatalf("expected no extra events, got %d", len(f.emitter.events))
	}
}

func TestMutationRefreshesCartStaleness(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	productID := f.seedProduct(t, 500, 10)

	dto, err := f.svc.AddProduct(ctx, userID, productID, 1)
	if err != nil {
		t.Fatalf("add product: %v", err)
	}
	if err := f.conn.Exec(
		`UPDATE carts SET updated_at = datetime('now', '-2 hours') WHERE id = ?`, dto.ID,
	).Error; err != nil {
		t.Fatalf("backdate cart: %v", err)
	}

	repo := NewRepository(f.conn)
	cutoff := time.Now().UTC().Add(-time.Hour)
	stale, err := repo.ListStaleActive(ctx, cutoff, 10)
	if err != nil {
		t.Fatalf("list stale: %v", err)
	}
	if len(stale) != 1 {
		t.Fatalf("backdated cart should be stale, got %d carts", len(stale))
	}

	// Touching the cart must pull it back out of the sweep's window.
	if _, err := f.svc.AddProduct(ctx, userID, productID, 1); err != nil {
		t.Fatalf("second add: %v", err)
	}
	stale, err = repo.ListStaleActive(ctx, cutoff, 10)
	if err != nil {
		t.Fatalf("list stale after mutation: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("freshly mutated cart still reported stale")
	}
}

func assertCartCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	var domainErr *pkgerrors.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected domain error, got %v", err)
	}
	if domainErr.Code() != code {
		t.Fatalf("expected code %s, got %s", code, domainErr.Code())
	}
}
