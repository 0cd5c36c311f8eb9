package b2b

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/pouchlab-backend/pkg/db/models"
	"github.com/angelmondragon/pouchlab-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pouchlab-backend/pkg/errors"
	"github.com/angelmondragon/pouchlab-backend/pkg/logger"
	"github.com/angelmondragon/pouchlab-backend/pkg/metrics"
)

// PriceResolution is the discounted price of one line for one customer.
//
// DiscountPercent is the sum of the base and volume percentages, matching what
// customers have always been shown. The volume percentage is applied to the
// already discounted price, so EffectiveDiscountPercent (derived from the
// actual unit price) is the lower, exact figure.
type PriceResolution struct {
	CustomerID               uuid.UUID         `json:"customer_id"`
	ProductID                uuid.UUID         `json:"product_id"`
	Quantity                 int               `json:"quantity"`
	OriginalPrice            decimal.Decimal   `json:"original_price"`
	DiscountedPrice          decimal.Decimal   `json:"discounted_price"`
	DiscountAmount           decimal.Decimal   `json:"discount_amount"`
	DiscountPercent          decimal.Decimal   `json:"discount_percent"`
	EffectiveDiscountPercent decimal.Decimal   `json:"effective_discount_percent"`
	BaseDiscountPercent      decimal.Decimal   `json:"base_discount_percent"`
	VolumeDiscountPercent    decimal.Decimal   `json:"volume_discount_percent"`
	Total                    decimal.Decimal   `json:"total"`
	Source                   enums.PriceSource `json:"source"`
	PriceListID              *uuid.UUID        `json:"price_list_id,omitempty"`
}

// Resolver turns a list price into a customer specific price.
type Resolver struct {
	customers  CustomerRepository
	priceLists PriceListRepository
	metrics    *metrics.PricingMetrics
	logg       *logger.Logger
	now        func() time.Time
}

// ResolverParams wires a Resolver. Metrics, Logger and Now are optional.
type ResolverParams struct {
	Customers  CustomerRepository
	PriceLists PriceListRepository
	Metrics    *metrics.PricingMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

// NewResolver builds a Resolver.
func NewResolver(params ResolverParams) (*Resolver, error) {
	if params.Customers == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	if params.PriceLists == nil {
		return nil, fmt.Errorf("price list repository required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		customers:  params.Customers,
		priceLists: params.PriceLists,
		metrics:    params.Metrics,
		logg:       logg,
		now:        now,
	}, nil
}

// CalculatePrice resolves the unit price basePrice becomes for the customer at
// the given quantity. Unknown and inactive customers get the list price.
func (r *Resolver) CalculatePrice(ctx context.Context, customerID, productID uuid.UUID, basePrice decimal.Decimal, quantity int) (*PriceResolution, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
			WithDetails(map[string]any{"quantity": quantity})
	}
	if basePrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "base price must not be negative")
	}

	res := &PriceResolution{
		CustomerID:               customerID,
		ProductID:                productID,
		Quantity:                 quantity,
		OriginalPrice:            basePrice,
		DiscountedPrice:          basePrice,
		DiscountPercent:          decimal.Zero,
		EffectiveDiscountPercent: decimal.Zero,
		BaseDiscountPercent:      decimal.Zero,
		VolumeDiscountPercent:    decimal.Zero,
		Source:                   enums.PriceSourceList,
	}

	customer, err := r.loadCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil || !customer.IsActive {
		logCtx := r.logg.WithCustomerID(ctx, customerID.String())
		r.logg.Warn(r.logg.WithField(logCtx, "found", customer != nil), "b2b price falls back to list price")
		r.metrics.IncCalculation(metrics.PricingOutcomeFallback)
		return finish(res), nil
	}

	unitPrice := basePrice
	if list, entry, err := r.specialPrice(ctx, customer.Group, productID); err != nil {
		return nil, err
	} else if entry != nil {
		unitPrice = clampPrice(entry.B2BPrice)
		res.BaseDiscountPercent = clampPercent(entry.DiscountPercent)
		res.Source = enums.PriceSourcePriceList
		res.PriceListID = &list.ID
	} else {
		res.BaseDiscountPercent = clampPercent(customer.DiscountPercent)
		unitPrice = applyPercent(basePrice, res.BaseDiscountPercent)
		res.Source = enums.PriceSourceGroup
	}

	volume := VolumeDiscountPercent(quantity)
	if volume.IsPositive() {
		unitPrice = applyPercent(unitPrice, volume)
	}
	res.VolumeDiscountPercent = volume
	res.DiscountPercent = clampPercent(res.BaseDiscountPercent.Add(volume))
	res.DiscountedPrice = unitPrice

	r.metrics.IncCalculation(metrics.PricingOutcomeOK)
	return finish(res), nil
}

func finish(res *PriceResolution) *PriceResolution {
	qty := decimal.NewFromInt(int64(res.Quantity))
	res.Total = res.DiscountedPrice.Mul(qty)
	res.DiscountAmount = res.OriginalPrice.Mul(qty).Sub(res.Total)
	if res.OriginalPrice.IsPositive() {
		ratio := res.DiscountedPrice.Div(res.OriginalPrice)
		res.EffectiveDiscountPercent = decimal.NewFromInt(1).Sub(ratio).Mul(hundred).Round(4)
	}
	return res
}

func (r *Resolver) loadCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	customer, err := r.customers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	return customer, nil
}

func (r *Resolver) specialPrice(ctx context.Context, group enums.CustomerGroup, productID uuid.UUID) (*models.PriceList, *models.PriceListEntry, error) {
	if productID == uuid.Nil {
		return nil, nil, nil
	}
	lists, err := r.priceLists.ListActiveForProduct(ctx, group, productID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active price lists")
	}
	list, entry := selectActiveEntry(lists, productID, r.now().UTC())
	return list, entry, nil
}
