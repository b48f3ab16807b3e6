package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dvillegas/storefront-backend/internal/auth"
	"github.com/dvillegas/storefront-backend/internal/cart"
	"github.com/dvillegas/storefront-backend/internal/categories"
	"github.com/dvillegas/storefront-backend/internal/notifications"
	"github.com/dvillegas/storefront-backend/internal/orders"
	products "github.com/dvillegas/storefront-backend/internal/products"
	"github.com/dvillegas/storefront-backend/internal/users"
	pkgAuth "github.com/dvillegas/storefront-backend/pkg/auth"
	"github.com/dvillegas/storefront-backend/pkg/auth/session"
	"github.com/dvillegas/storefront-backend/pkg/config"
	"github.com/dvillegas/storefront-backend/pkg/enums"
	"github.com/dvillegas/storefront-backend/pkg/logger"
	"github.com/dvillegas/storefront-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubAuthService struct{}

func (stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	return &auth.LoginResponse{AccessToken: "token", RefreshToken: "refresh"}, nil
}

type stubRegisterService struct{}

func (stubRegisterService) Register(ctx context.Context, req auth.RegisterRequest) (*users.UserDTO, error) {
	return &users.UserDTO{}, nil
}

type stubSessionManager struct{}

func (stubSessionManager) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

func (stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	return "new-access", "new-refresh", nil
}

func (stubSessionManager) Revoke(ctx context.Context, accessID string) error { return nil }

type stubProductService struct{}

func (stubProductService) CreateProduct(ctx context.Context, input products.CreateProductInput) (*products.ProductDTO, error) {
	return &products.ProductDTO{}, nil
}

func (stubProductService) UpdateProduct(ctx context.Context, productID uuid.UUID, input products.UpdateProductInput) (*products.ProductDTO, error) {
	return &products.ProductDTO{}, nil
}

func (stubProductService) DeleteProduct(ctx context.Context, productID uuid.UUID) error { return nil }

func (stubProductService) GetProduct(ctx context.Context, productID uuid.UUID) (*products.ProductDTO, error) {
	return &products.ProductDTO{ID: productID}, nil
}

func (stubProductService) ListProducts(ctx context.Context, input products.ListProductsInput) (*products.ProductListResult, error) {
	return &products.ProductListResult{}, nil
}

func (stubProductService) AddStock(ctx context.Context, productID uuid.UUID, qty int) (*products.ProductDTO, error) {
	return &products.ProductDTO{}, nil
}

func (stubProductService) DiscountStock(ctx context.Context, productID uuid.UUID, qty int) (*products.ProductDTO, error) {
	return &products.ProductDTO{}, nil
}

type stubCategoryService struct{}

func (stubCategoryService) CreateCategory(ctx context.Context, input categories.CreateCategoryInput) (*categories.CategoryDTO, error) {
	return &categories.CategoryDTO{}, nil
}

func (stubCategoryService) UpdateCategory(ctx context.Context, id uuid.UUID, input categories.UpdateCategoryInput) (*categories.CategoryDTO, error) {
	return &categories.CategoryDTO{}, nil
}

func (stubCategoryService) DeleteCategory(ctx context.Context, id uuid.UUID) error { return nil }

func (stubCategoryService) GetCategory(ctx context.Context, id uuid.UUID) (*categories.CategoryDTO, error) {
	return &categories.CategoryDTO{}, nil
}

func (stubCategoryService) ListCategories(ctx context.Context) ([]categories.CategoryDTO, error) {
	return nil, nil
}

type stubCartService struct{}

func (stubCartService) GetActiveCart(ctx context.Context, userID uuid.UUID) (*cart.CartDTO, error) {
	return &cart.CartDTO{UserID: userID}, nil
}

func (stubCartService) AddProduct(ctx context.Context, userID, productID uuid.UUID, qty int) (*cart.CartDTO, error) {
	return &cart.CartDTO{UserID: userID}, nil
}

func (stubCartService) IncreaseQuantity(ctx context.Context, userID, productID uuid.UUID, qty int) (*cart.CartDTO, error) {
	return &cart.CartDTO{UserID: userID}, nil
}

func (stubCartService) DecreaseQuantity(ctx context.Context, userID, productID uuid.UUID, qty int) (*cart.CartDTO, error) {
	return &cart.CartDTO{UserID: userID}, nil
}

func (stubCartService) RemoveProduct(ctx context.Context, userID, productID uuid.UUID) (*cart.CartDTO, error) {
	return &cart.CartDTO{UserID: userID}, nil
}

func (stubCartService) ExpireCart(ctx context.Context, cartID uuid.UUID) error { return nil }

type stubOrderService struct{}

func (stubOrderService) CreateOrderFromCart(ctx context.Context, userID uuid.UUID) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{}, nil
}

func (stubOrderService) PayOrder(ctx context.Context, userID, orderID uuid.UUID, input orders.PayOrderInput) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{}, nil
}

func (stubOrderService) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{}, nil
}

func (stubOrderService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{}, nil
}

func (stubOrderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: orderID}, nil
}

func (stubOrderService) ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*orders.OrderListResult, error) {
	return &orders.OrderListResult{}, nil
}

type stubNotificationService struct{}

func (stubNotificationService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return nil
}

func (stubNotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

func testRouter(t *testing.T) (http.Handler, config.JWTConfig) {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

	handler := NewRouter(RouterParams{
		Config:          cfg,
		Logger:          logger.New(logger.Options{ServiceName: "test"}),
		DB:              stubPinger{},
		SessionManager:  stubSessionManager{},
		AuthService:     stubAuthService{},
		RegisterService: stubRegisterService{},
		ProductService:  stubProductService{},
		CategoryService: stubCategoryService{},
		CartService:     stubCartService{},
		OrderService:    stubOrderService{},
		Notifications:   stubNotificationService{},
	})
	return handler, cfg.JWT
}

func mintToken(t *testing.T, cfg config.JWTConfig, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestPublicRoutesNeedNoAuth(t *testing.T) {
	handler, _ := testRouter(t)

	for _, path := range []string{"/health/live", "/api/public/ping", "/api/v1/products", "/api/v1/categories"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestPrivateRoutesRejectAnonymous(t *testing.T) {
	handler, _ := testRouter(t)

	for _, path := range []string{"/api/v1/cart", "/api/v1/orders", "/api/v1/notifications"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", path, resp.Code)
		}
	}
}

func TestPrivateRoutesAcceptBearerToken(t *testing.T) {
	handler, jwtCfg := testRouter(t)
	token := mintToken(t, jwtCfg, enums.UserRoleCustomer)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	handler, jwtCfg := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, jwtCfg, enums.UserRoleCustomer))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, jwtCfg, enums.UserRoleAdmin))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func jsonBody(s string) *strings.Reader {
	return strings.NewReader(s)
}

func TestLoginRouteWired(t *testing.T) {
	handler, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", jsonBody(`{"email":"a@b.com","password":"secret123"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}
