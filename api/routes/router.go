package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dvillegas/storefront-backend/api/controllers"
	"github.com/dvillegas/storefront-backend/api/middleware"
	"github.com/dvillegas/storefront-backend/internal/auth"
	"github.com/dvillegas/storefront-backend/internal/cart"
	"github.com/dvillegas/storefront-backend/internal/categories"
	"github.com/dvillegas/storefront-backend/internal/notifications"
	"github.com/dvillegas/storefront-backend/internal/orders"
	products "github.com/dvillegas/storefront-backend/internal/products"
	"github.com/dvillegas/storefront-backend/pkg/auth/session"
	"github.com/dvillegas/storefront-backend/pkg/config"
	"github.com/dvillegas/storefront-backend/pkg/db"
	"github.com/dvillegas/storefront-backend/pkg/enums"
	"github.com/dvillegas/storefront-backend/pkg/logger"
	"github.com/dvillegas/storefront-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// RouterParams bundles everything the HTTP surface depends on.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Redis          *redis.Client
	SessionManager sessionManager

	AuthService     auth.Service
	RegisterService auth.RegisterService
	ProductService  products.Service
	CategoryService categories.Service
	CartService     cart.Service
	OrderService    orders.Service
	Notifications   notifications.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	// A nil *redis.Client would slip past the middleware interface nil
	// checks as a typed nil, so resolve the store here.
	var idemStore redis.IdempotencyStore
	var rateStore redis.RateLimiterStore
	var redisPinger db.Pinger
	if p.Redis != nil {
		idemStore = p.Redis
		rateStore = p.Redis
		redisPinger = p.Redis
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, redisPinger))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, rateStore, logg)).Post("/login", controllers.AuthLogin(p.AuthService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, rateStore, logg)).Post("/register", controllers.AuthRegister(p.RegisterService, p.AuthService, logg))
		r.Post("/logout", controllers.AuthLogout(p.SessionManager, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.SessionManager, cfg.JWT, logg))
	})

	// Catalog browsing is anonymous.
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(p.ProductService, logg))
		r.Get("/{productID}", controllers.GetProduct(p.ProductService, logg))
	})
	r.Route("/api/v1/categories", func(r chi.Router) {
		r.Get("/", controllers.ListCategories(p.CategoryService, logg))
		r.Get("/{categoryID}", controllers.GetCategory(p.CategoryService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.SessionManager, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(p.CartService, logg))
			r.Post("/items", controllers.AddCartItem(p.CartService, logg))
			r.Post("/items/{productID}/increase", controllers.IncreaseCartItem(p.CartService, logg))
			r.Post("/items/{productID}/decrease", controllers.DecreaseCartItem(p.CartService, logg))
			r.Delete("/items/{productID}", controllers.RemoveCartItem(p.CartService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.Checkout(p.OrderService, logg))
			r.Get("/", controllers.ListOrders(p.OrderService, logg))
			r.Get("/{orderID}", controllers.GetOrder(p.OrderService, logg))
			r.Post("/{orderID}/pay", controllers.PayOrder(p.OrderService, logg))
			r.Post("/{orderID}/cancel", controllers.CancelOrder(p.OrderService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(p.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(p.Notifications, logg))
		})
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.SessionManager, logg))
		r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Get("/ping", controllers.AdminPing())

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.AdminCreateProduct(p.ProductService, logg))
			r.Patch("/{productID}", controllers.AdminUpdateProduct(p.ProductService, logg))
			r.Delete("/{productID}", controllers.AdminDeleteProduct(p.ProductService, logg))
			r.Post("/{productID}/stock/add", controllers.AdminAddStock(p.ProductService, logg))
			r.Post("/{productID}/stock/discount", controllers.AdminDiscountStock(p.ProductService, logg))
		})

		r.Route("/categories", func(r chi.Router) {
			r.Post("/", controllers.AdminCreateCategory(p.CategoryService, logg))
			r.Patch("/{categoryID}", controllers.AdminUpdateCategory(p.CategoryService, logg))
			r.Delete("/{categoryID}", controllers.AdminDeleteCategory(p.CategoryService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/{orderID}/status", controllers.AdminUpdateOrderStatus(p.OrderService, logg))
		})
	})

	return r
}
