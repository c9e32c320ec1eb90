package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/laglue/storefront/api/controllers"
	"github.com/laglue/storefront/api/middleware"
	"github.com/laglue/storefront/internal/checkout"
	"github.com/laglue/storefront/pkg/config"
	"github.com/laglue/storefront/pkg/kv"
	"github.com/laglue/storefront/pkg/logger"
)

// RouterParams carries everything the HTTP surface is wired to.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	Store       kv.Store
	Health      controllers.Pinger
	Catalog     controllers.CatalogSource
	Sessions    controllers.SessionProvider
	Checkout    checkout.Service
	Codes       controllers.CodeVerifier
	RateLimiter middleware.RateLimiter
	Metrics     prometheus.Gatherer
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Admin.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginPhoneLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, params.Health, logg))
	})

	if cfg.Metrics.Enabled && params.Metrics != nil {
		r.Handle(cfg.Metrics.Path, promhttp.HandlerFor(params.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/device", controllers.DeviceIssue(cfg.Device, logg))

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/", controllers.CatalogOverview(params.Catalog, logg))
			r.Get("/products", controllers.CatalogProducts(params.Catalog, logg))
			r.Get("/products/{productId}", controllers.CatalogProduct(params.Catalog, logg))
			r.Get("/sections", controllers.CatalogSections(params.Catalog, logg))
		})

		r.Get("/orders/{code}/verify", controllers.OrderVerify(params.Codes, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Device(cfg.Device, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(params.Sessions, logg))
				r.Delete("/", controllers.CartClear(params.Sessions, logg))
				r.Post("/items", controllers.CartAddItem(params.Sessions, logg))
				r.Put("/items/{productId}", controllers.CartSetQuantity(params.Sessions, logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(params.Sessions, logg))
			})

			r.Route("/auth", func(r chi.Router) {
				r.With(middleware.AuthRateLimit(loginPolicy, params.RateLimiter, logg)).Post("/login", controllers.AuthLogin(params.Sessions, logg))
				r.Post("/logout", controllers.AuthLogout(params.Sessions, logg))
				r.Get("/profile", controllers.AuthProfile(params.Sessions, logg))
				r.Put("/profile", controllers.AuthUpdateProfile(params.Sessions, logg))
				r.Get("/orders", controllers.AuthOrders(params.Sessions, logg))
			})

			r.With(middleware.Idempotency(params.Store, 0, logg)).Post("/checkout", controllers.Checkout(params.Sessions, params.Checkout, logg))
			r.Get("/orders/{code}/qr", controllers.OrderQRCode(params.Sessions, params.Checkout, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.AdminToken(cfg.Admin.Token, logg))
		r.Get("/orders", controllers.AdminOrders(params.Checkout, logg))
		r.Get("/orders/{code}", controllers.AdminOrder(params.Checkout, logg))
		r.Get("/orders/{code}/qr", controllers.AdminOrderQRCode(params.Checkout, logg))
	})

	return r
}
