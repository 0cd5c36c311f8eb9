package configurator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pouchlab-backend/internal/pricing"
	"github.com/angelmondragon/pouchlab-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/pouchlab-backend/pkg/errors"
	"github.com/angelmondragon/pouchlab-backend/pkg/logger"
	"github.com/angelmondragon/pouchlab-backend/pkg/metrics"
)

// Service prices configurator selections for a stored product.
type Service interface {
	Options() Options
	Products(ctx context.Context) ([]models.Product, error)
	Price(ctx context.Context, input PriceInput) (*PriceResult, error)
	Matrix(ctx context.Context, input MatrixInput) (*MatrixResult, error)
}

// Options is the static configuration the storefront renders.
type Options struct {
	Tiers           []pricing.Tier         `json:"tiers"`
	Plans           []pricing.LeadTimePlan `json:"plans"`
	Materials       []pricing.Option       `json:"materials"`
	Features        []pricing.Option       `json:"features"`
	Services        []pricing.Service      `json:"services"`
	VATRate         string                 `json:"vat_rate"`
	TierPolicy      pricing.TierPolicy     `json:"tier_policy"`
	DefaultPlan     string                 `json:"default_plan"`
	DefaultMaterial string                 `json:"default_material"`
	DefaultFeature  string                 `json:"default_feature"`
}

// PriceInput is one configurator selection. ProductID is optional; without it
// the catalog reference price applies and no MOQ is enforced.
type PriceInput struct {
	ProductID  *uuid.UUID      `json:"product_id"`
	Quantity   int             `json:"quantity" validate:"required"`
	PlanID     string          `json:"plan_id"`
	MaterialID string          `json:"material_id"`
	FeatureID  string          `json:"feature_id"`
	Services   map[string]bool `json:"services"`
}

// ProductSummary is the product data echoed back with a price.
type ProductSummary struct {
	ID   uuid.UUID `json:"id"`
	SKU  string    `json:"sku"`
	Name string    `json:"name"`
	MOQ  int       `json:"moq"`
}

// PriceResult pairs the exact result with its rounded presentation.
type PriceResult struct {
	Product *ProductSummary `json:"product,omitempty"`
	Result  pricing.Result  `json:"result"`
	Summary pricing.Summary `json:"summary"`
}

// MatrixInput selects the grid axes and the fixed selections.
type MatrixInput struct {
	ProductID  *uuid.UUID      `json:"product_id"`
	Quantities []int           `json:"quantities"`
	PlanIDs    []string        `json:"plan_ids"`
	MaterialID string          `json:"material_id"`
	FeatureID  string          `json:"feature_id"`
	Services   map[string]bool `json:"services"`
}

// MatrixResult wraps the grid with cache provenance.
type MatrixResult struct {
	Product *ProductSummary `json:"product,omitempty"`
	Matrix  pricing.Matrix  `json:"matrix"`
	Cached  bool            `json:"cached"`
}

type service struct {
	products   ProductRepository
	calculator *pricing.Calculator
	cache      pricing.MatrixCache
	cacheTTL   time.Duration
	metrics    *metrics.PricingMetrics
	logg       *logger.Logger
}

// ServiceParams wires configurator dependencies. Cache is optional.
type ServiceParams struct {
	Products   ProductRepository
	Calculator *pricing.Calculator
	Cache      pricing.MatrixCache
	CacheTTL   time.Duration
	Metrics    *metrics.PricingMetrics
	Logger     *logger.Logger
}

// NewService builds a configurator service.
func NewService(params ServiceParams) (Service, error) {
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Calculator == nil {
		return nil, fmt.Errorf("pricing calculator required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &service{
		products:   params.Products,
		calculator: params.Calculator,
		cache:      params.Cache,
		cacheTTL:   ttl,
		metrics:    params.Metrics,
		logg:       logg,
	}, nil
}

func (s *service) Options() Options {
	catalog := s.calculator.Catalog()
	return Options{
		Tiers:           catalog.Tiers,
		Plans:           catalog.Plans,
		Materials:       catalog.Materials,
		Features:        catalog.Features,
		Services:        catalog.Services,
		VATRate:         catalog.VATRate.String(),
		TierPolicy:      s.calculator.Policy(),
		DefaultPlan:     catalog.DefaultPlan,
		DefaultMaterial: catalog.DefaultMaterial,
		DefaultFeature:  catalog.DefaultFeature,
	}
}

func (s *service) Products(ctx context.Context) ([]models.Product, error) {
	products, err := s.products.List(ctx, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return products, nil
}

func (s *service) Price(ctx context.Context, input PriceInput) (*PriceResult, error) {
	product, err := s.loadProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	sel := pricing.Selection{
		Quantity:   input.Quantity,
		PlanID:     input.PlanID,
		MaterialID: input.MaterialID,
		FeatureID:  input.FeatureID,
		Services:   input.Services,
	}
	applyProduct(&sel, product)

	result, err := s.calculator.Calculate(sel)
	if err != nil {
		return nil, err
	}
	if len(result.Warnings) > 0 {
		warnCtx := s.logg.WithFields(ctx, map[string]any{
			"quantity": input.Quantity,
			"warnings": len(result.Warnings),
		})
		s.logg.Warn(warnCtx, "configurator price computed with warnings")
	}

	return &PriceResult{
		Product: summarize(product),
		Result:  result,
		Summary: result.Summary(),
	}, nil
}

func (s *service) Matrix(ctx context.Context, input MatrixInput) (*MatrixResult, error) {
	product, err := s.loadProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	req := pricing.MatrixRequest{
		Quantities: input.Quantities,
		PlanIDs:    input.PlanIDs,
		Selection: pricing.Selection{
			MaterialID: input.MaterialID,
			FeatureID:  input.FeatureID,
			Services:   input.Services,
		},
	}
	applyProduct(&req.Selection, product)

	key := ""
	if s.cache != nil {
		if key, err = s.calculator.CacheKey(req); err != nil {
			s.logg.Warn(ctx, fmt.Sprintf("matrix cache key failed: %v", err))
		} else if cached, cacheErr := s.cache.Get(ctx, key); cacheErr != nil {
			s.logg.Error(ctx, "matrix cache read failed", cacheErr)
		} else if cached != nil {
			s.metrics.IncCalculation(metrics.PricingOutcomeCacheHit)
			return &MatrixResult{Product: summarize(product), Matrix: *cached, Cached: true}, nil
		}
	}

	matrix, err := s.calculator.Matrix(req)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && key != "" {
		if err := s.cache.Set(ctx, key, matrix, s.cacheTTL); err != nil {
			s.logg.Error(ctx, "matrix cache write failed", err)
		}
	}
	return &MatrixResult{Product: summarize(product), Matrix: matrix}, nil
}

func (s *service) loadProduct(ctx context.Context, id *uuid.UUID) (*models.Product, error) {
	if id == nil || *id == uuid.Nil {
		return nil, nil
	}
	product, err := s.products.FindByID(ctx, *id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not active")
	}
	return product, nil
}

func applyProduct(sel *pricing.Selection, product *models.Product) {
	if product == nil {
		return
	}
	sel.ReferenceUnitPrice = product.ReferenceUnitPrice
	sel.MOQ = product.MOQ
}

func summarize(product *models.Product) *ProductSummary {
	if product == nil {
		return nil
	}
	return &ProductSummary{ID: product.ID, SKU: product.SKU, Name: product.Name, MOQ: product.MOQ}
}
