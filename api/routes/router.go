package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/pouchlab-backend/api/controllers"
	"github.com/angelmondragon/pouchlab-backend/api/middleware"
	"github.com/angelmondragon/pouchlab-backend/internal/b2b"
	"github.com/angelmondragon/pouchlab-backend/internal/configurator"
	"github.com/angelmondragon/pouchlab-backend/internal/notifications"
	"github.com/angelmondragon/pouchlab-backend/internal/quotes"
	"github.com/angelmondragon/pouchlab-backend/pkg/config"
	"github.com/angelmondragon/pouchlab-backend/pkg/logger"
	"github.com/angelmondragon/pouchlab-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/pouchlab-backend/pkg/redis"
)

// RouterParams carries every dependency the HTTP surface needs. Redis,
// Idempotency, Gatherer and Metrics are optional.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            controllers.Pinger
	Redis         controllers.Pinger
	Idempotency   pkgredis.IdempotencyStore
	Gatherer      prometheus.Gatherer
	Metrics       *metrics.HTTPMetrics
	Configurator  configurator.Service
	Customers     b2b.CustomerService
	PriceLists    b2b.PriceListService
	Pricer        controllers.B2BPricer
	Quotes        quotes.Service
	Notifications notifications.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(p.Metrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(p.Idempotency, logg))

		r.Route("/configurator", func(r chi.Router) {
			r.Get("/options", controllers.ConfiguratorOptions(p.Configurator))
			r.Get("/products", controllers.ConfiguratorProducts(p.Configurator, logg))
			r.Post("/price", controllers.ConfiguratorPrice(p.Configurator, logg))
			r.Post("/matrix", controllers.ConfiguratorMatrix(p.Configurator, logg))
		})

		r.Route("/customers", func(r chi.Router) {
			r.Post("/", controllers.CreateCustomer(p.Customers, logg))
			r.Get("/", controllers.ListCustomers(p.Customers, logg))
			r.Get("/{customerId}", controllers.GetCustomer(p.Customers, logg))
			r.Patch("/{customerId}", controllers.UpdateCustomer(p.Customers, logg))
			r.Post("/{customerId}/group", controllers.ChangeCustomerGroup(p.Customers, logg))
			r.Post("/{customerId}/active", controllers.SetCustomerActive(p.Customers, logg))
		})

		r.Route("/price-lists", func(r chi.Router) {
			r.Post("/", controllers.CreatePriceList(p.PriceLists, logg))
			r.Get("/", controllers.ListPriceLists(p.PriceLists, logg))
			r.Get("/{priceListId}", controllers.GetPriceList(p.PriceLists, logg))
			r.Post("/{priceListId}/deactivate", controllers.DeactivatePriceList(p.PriceLists, logg))
		})

		r.Post("/b2b/price", controllers.B2BPrice(p.Pricer, logg))

		r.Route("/quotes", func(r chi.Router) {
			r.Post("/", controllers.CreateQuote(p.Quotes, logg))
			r.Get("/", controllers.ListQuotes(p.Quotes, logg))
			r.Get("/{quoteId}", controllers.GetQuote(p.Quotes, logg))
			r.Post("/{quoteId}/send", controllers.SendQuote(p.Quotes, logg))
			r.Post("/{quoteId}/status", controllers.UpdateQuoteStatus(p.Quotes, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
		})
	})

	return r
}
