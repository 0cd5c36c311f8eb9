package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/pouchlab-backend/api/routes"
	"github.com/angelmondragon/pouchlab-backend/internal/b2b"
	"github.com/angelmondragon/pouchlab-backend/internal/configurator"
	"github.com/angelmondragon/pouchlab-backend/internal/notifications"
	"github.com/angelmondragon/pouchlab-backend/internal/pricing"
	"github.com/angelmondragon/pouchlab-backend/internal/quotes"
	"github.com/angelmondragon/pouchlab-backend/pkg/config"
	"github.com/angelmondragon/pouchlab-backend/pkg/db"
	"github.com/angelmondragon/pouchlab-backend/pkg/logger"
	"github.com/angelmondragon/pouchlab-backend/pkg/metrics"
	"github.com/angelmondragon/pouchlab-backend/pkg/migrate"
	"github.com/angelmondragon/pouchlab-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "redis not configured; matrix cache, idempotency and redis quote numbering disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pricingMetrics := metrics.NewPricingMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	params, err := buildRouterParams(cfg, logg, dbClient, redisClient, pricingMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}
	params.Gatherer = registry
	params.Metrics = httpMetrics

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"db_driver": cfg.DB.Driver,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(params),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func buildRouterParams(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, pricingMetrics *metrics.PricingMetrics) (routes.RouterParams, error) {
	gdb := dbClient.DB()

	policy, err := pricing.ParseTierPolicy(cfg.Pricing.TierPolicy)
	if err != nil {
		return routes.RouterParams{}, err
	}
	calculator, err := pricing.NewCalculator(pricing.CalculatorParams{
		Catalog: pricing.DefaultCatalog().WithVATRate(cfg.Pricing.VAT()),
		Policy:  policy,
		Metrics: pricingMetrics,
	})
	if err != nil {
		return routes.RouterParams{}, err
	}

	var matrixCache pricing.MatrixCache
	if redisClient != nil && cfg.FeatureFlags.MatrixCache {
		if matrixCache, err = pricing.NewRedisMatrixCache(redisClient); err != nil {
			return routes.RouterParams{}, err
		}
	}

	productRepo := configurator.NewProductRepository(gdb)
	configuratorSvc, err := configurator.NewService(configurator.ServiceParams{
		Products:   productRepo,
		Calculator: calculator,
		Cache:      matrixCache,
		CacheTTL:   cfg.Pricing.MatrixCacheTTL,
		Metrics:    pricingMetrics,
		Logger:     logg,
	})
	if err != nil {
		return routes.RouterParams{}, err
	}

	notificationRepo := notifications.NewRepository(gdb)
	notifier := notifications.NewNotifier(notificationRepo, logg)
	notificationSvc, err := notifications.NewService(notificationRepo)
	if err != nil {
		return routes.RouterParams{}, err
	}

	customerRepo := b2b.NewCustomerRepository(gdb)
	priceListRepo := b2b.NewPriceListRepository(gdb)
	customerSvc, err := b2b.NewCustomerService(b2b.CustomerServiceParams{
		Repository: customerRepo,
		Notifier:   notifier,
		Logger:     logg,
	})
	if err != nil {
		return routes.RouterParams{}, err
	}
	priceListSvc, err := b2b.NewPriceListService(b2b.PriceListServiceParams{
		Repository: priceListRepo,
		Products:   productRepo,
		Notifier:   notifier,
		Logger:     logg,
	})
	if err != nil {
		return routes.RouterParams{}, err
	}
	resolver, err := b2b.NewResolver(b2b.ResolverParams{
		Customers:  customerRepo,
		PriceLists: priceListRepo,
		Metrics:    pricingMetrics,
		Logger:     logg,
	})
	if err != nil {
		return routes.RouterParams{}, err
	}

	quoteParams := quotes.ServiceParams{
		Repository:   quotes.NewRepository(gdb),
		DB:           dbClient,
		Customers:    customerSvc,
		Resolver:     resolver,
		Pricer:       configuratorSvc,
		Notifier:     notifier,
		Logger:       logg,
		TaxRate:      cfg.Quotes.Tax(),
		ValidityDays: cfg.Quotes.ValidityDays,
	}
	if redisClient != nil {
		quoteParams.Numbers = quotes.NewRedisNumberSource(redisClient)
	}
	quoteSvc, err := quotes.NewService(quoteParams)
	if err != nil {
		return routes.RouterParams{}, err
	}

	params := routes.RouterParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Configurator:  configuratorSvc,
		Customers:     customerSvc,
		PriceLists:    priceListSvc,
		Pricer:        resolver,
		Quotes:        quoteSvc,
		Notifications: notificationSvc,
	}
	// interface fields stay untyped nil when redis is off
	if redisClient != nil {
		params.Redis = redisClient
		params.Idempotency = redisClient
	}
	return params, nil
}
