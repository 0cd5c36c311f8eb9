package pricing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pouchlab-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pouchlab-backend/pkg/errors"
	"github.com/angelmondragon/pouchlab-backend/pkg/metrics"
	"github.com/angelmondragon/pouchlab-backend/pkg/types"
)

// Selection is one configuration to price. Empty plan, material and feature
// ids fall back to the catalog defaults; a zero reference price uses the
// catalog reference price.
type Selection struct {
	Quantity           int             `json:"quantity"`
	ReferenceUnitPrice decimal.Decimal `json:"reference_unit_price"`
	MOQ                int             `json:"moq"`
	PlanID             string          `json:"plan_id"`
	MaterialID         string          `json:"material_id"`
	FeatureID          string          `json:"feature_id"`
	Services           map[string]bool `json:"services,omitempty"`
}

// AppliedService records the effect of one active add-on on the net price.
type AppliedService struct {
	ID     string                   `json:"id"`
	Label  string                   `json:"label"`
	Kind   enums.PricingServiceKind `json:"kind"`
	Amount decimal.Decimal          `json:"amount"`
	Effect decimal.Decimal          `json:"effect"`
}

// Breakdown explains how the net price was assembled.
type Breakdown struct {
	TierQuantity       *int             `json:"tier_quantity,omitempty"`
	Interpolated       bool             `json:"interpolated"`
	TableBasePrice     decimal.Decimal  `json:"table_base_price"`
	BasePrice          decimal.Decimal  `json:"base_price"`
	Plan               LeadTimePlan     `json:"plan"`
	LeadTimeAdjustment decimal.Decimal  `json:"lead_time_adjustment"`
	Feature            Option           `json:"feature"`
	FeatureSurcharge   decimal.Decimal  `json:"feature_surcharge"`
	Material           Option           `json:"material"`
	MaterialSurcharge  decimal.Decimal  `json:"material_surcharge"`
	FlatFees           []AppliedService `json:"flat_fees"`
	Modifiers          []AppliedService `json:"modifiers"`
}

// Result carries unrounded amounts. Use Summary for presentation values.
type Result struct {
	Quantity  int                 `json:"quantity"`
	NetPrice  decimal.Decimal     `json:"net_price"`
	VATRate   decimal.Decimal     `json:"vat_rate"`
	VAT       decimal.Decimal     `json:"vat"`
	Total     decimal.Decimal     `json:"total"`
	UnitPrice decimal.Decimal     `json:"unit_price"`
	BelowMOQ  bool                `json:"below_moq"`
	Breakdown Breakdown           `json:"breakdown"`
	Warnings  types.PriceWarnings `json:"warnings"`
}

// Summary holds the rounded strings shown to buyers.
type Summary struct {
	NetPrice  string `json:"net_price"`
	VAT       string `json:"vat"`
	Total     string `json:"total"`
	UnitPrice string `json:"unit_price"`
}

// Summary rounds money to cents and the unit price to four places.
func (r Result) Summary() Summary {
	return Summary{
		NetPrice:  r.NetPrice.StringFixed(2),
		VAT:       r.VAT.StringFixed(2),
		Total:     r.Total.StringFixed(2),
		UnitPrice: r.UnitPrice.StringFixed(4),
	}
}

// Calculator prices selections against a fixed catalog.
type Calculator struct {
	catalog Catalog
	policy  TierPolicy
	metrics *metrics.PricingMetrics
}

// CalculatorParams wires the calculator. A zero Catalog uses DefaultCatalog.
type CalculatorParams struct {
	Catalog Catalog
	Policy  TierPolicy
	Metrics *metrics.PricingMetrics
}

// NewCalculator validates the catalog and returns a ready calculator.
func NewCalculator(params CalculatorParams) (*Calculator, error) {
	catalog := params.Catalog
	if len(catalog.Tiers) == 0 {
		catalog = DefaultCatalog()
	}
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pricing catalog: %w", err)
	}
	policy := params.Policy
	if policy == "" {
		policy = TierPolicyInterpolate
	}
	if policy != TierPolicyExact && policy != TierPolicyInterpolate {
		return nil, fmt.Errorf("invalid tier policy %q", policy)
	}
	return &Calculator{
		catalog: catalog,
		policy:  policy,
		metrics: params.Metrics,
	}, nil
}

// Catalog returns the catalog the calculator prices against.
func (c *Calculator) Catalog() Catalog {
	return c.catalog
}

// Policy returns the tier policy in effect.
func (c *Calculator) Policy() TierPolicy {
	return c.policy
}

// Calculate prices a single selection. Order of operations: tier lookup and
// product scaling, lead-time modifier, per-unit feature then material deltas,
// flat fees, then multipliers compounded in catalog order.
func (c *Calculator) Calculate(sel Selection) (Result, error) {
	result, err := c.calculate(sel)
	switch {
	case err != nil:
		c.metrics.IncCalculation(metrics.PricingOutcomeInvalid)
	case len(result.Warnings) > 0:
		c.metrics.IncCalculation(metrics.PricingOutcomeWarning)
	default:
		c.metrics.IncCalculation(metrics.PricingOutcomeOK)
	}
	return result, err
}

func (c *Calculator) calculate(sel Selection) (Result, error) {
	if sel.Quantity <= 0 {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
			WithDetails(map[string]any{"quantity": sel.Quantity})
	}
	if sel.ReferenceUnitPrice.IsNegative() {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "reference unit price must not be negative")
	}

	plan, material, feature, err := c.resolveOptions(sel)
	if err != nil {
		return Result{}, err
	}
	flatFees, modifiers, err := c.resolveServices(sel.Services)
	if err != nil {
		return Result{}, err
	}

	tier, err := c.catalog.resolveTier(sel.Quantity, c.policy)
	if err != nil {
		return Result{}, err
	}

	qty := decimal.NewFromInt(int64(sel.Quantity))
	base := tier.basePrice
	if !sel.ReferenceUnitPrice.IsZero() && !sel.ReferenceUnitPrice.Equal(c.catalog.ReferenceUnitPrice) {
		base = base.Mul(sel.ReferenceUnitPrice).Div(c.catalog.ReferenceUnitPrice)
	}

	breakdown := Breakdown{
		Interpolated:   tier.interpolated,
		TableBasePrice: tier.basePrice,
		BasePrice:      base,
		Plan:           plan,
		Feature:        feature,
		Material:       material,
		FlatFees:       []AppliedService{},
		Modifiers:      []AppliedService{},
	}
	if tier.exact != nil {
		tierQty := tier.exact.Quantity
		breakdown.TierQuantity = &tierQty
	}

	net := base.Mul(decimal.NewFromInt(1).Add(plan.Modifier))
	breakdown.LeadTimeAdjustment = net.Sub(base)

	breakdown.FeatureSurcharge = feature.UnitDelta.Mul(qty)
	net = net.Add(breakdown.FeatureSurcharge)
	breakdown.MaterialSurcharge = material.UnitDelta.Mul(qty)
	net = net.Add(breakdown.MaterialSurcharge)

	for _, svc := range flatFees {
		net = net.Add(svc.Amount)
		breakdown.FlatFees = append(breakdown.FlatFees, AppliedService{
			ID: svc.ID, Label: svc.Label, Kind: svc.Kind, Amount: svc.Amount, Effect: svc.Amount,
		})
	}
	for _, svc := range modifiers {
		before := net
		net = net.Mul(svc.Amount)
		breakdown.Modifiers = append(breakdown.Modifiers, AppliedService{
			ID: svc.ID, Label: svc.Label, Kind: svc.Kind, Amount: svc.Amount, Effect: net.Sub(before),
		})
	}

	vat := net.Mul(c.catalog.VATRate)
	result := Result{
		Quantity:  sel.Quantity,
		NetPrice:  net,
		VATRate:   c.catalog.VATRate,
		VAT:       vat,
		Total:     net.Add(vat),
		UnitPrice: net.Div(qty),
		Breakdown: breakdown,
		Warnings:  types.PriceWarnings{},
	}

	if sel.MOQ > 0 && sel.Quantity < sel.MOQ {
		result.BelowMOQ = true
		result.Warnings = append(result.Warnings, types.PriceWarning{
			Type:    enums.PriceWarningTypeBelowMOQ,
			Message: fmt.Sprintf("quantity %d is below the minimum order quantity (%d)", sel.Quantity, sel.MOQ),
		})
	}
	if tier.interpolated {
		result.Warnings = append(result.Warnings, types.PriceWarning{
			Type:    enums.PriceWarningTypeInterpolatedTier,
			Message: fmt.Sprintf("quantity %d is not a tabled tier; %s", sel.Quantity, tier.describe()),
		})
	}
	return result, nil
}

func (c *Calculator) resolveOptions(sel Selection) (LeadTimePlan, Option, Option, error) {
	planID := orDefault(sel.PlanID, c.catalog.DefaultPlan)
	plan, ok := c.catalog.Plan(planID)
	if !ok {
		return LeadTimePlan{}, Option{}, Option{}, unknownOption("lead time plan", planID, c.catalog.PlanIDs())
	}
	materialID := orDefault(sel.MaterialID, c.catalog.DefaultMaterial)
	material, ok := c.catalog.Material(materialID)
	if !ok {
		return LeadTimePlan{}, Option{}, Option{}, unknownOption("material", materialID, optionIDs(c.catalog.Materials))
	}
	featureID := orDefault(sel.FeatureID, c.catalog.DefaultFeature)
	feature, ok := c.catalog.Feature(featureID)
	if !ok {
		return LeadTimePlan{}, Option{}, Option{}, unknownOption("feature", featureID, optionIDs(c.catalog.Features))
	}
	return plan, material, feature, nil
}

// resolveServices splits the active toggles into flat fees and multipliers,
// each kept in catalog order.
func (c *Calculator) resolveServices(flags map[string]bool) ([]Service, []Service, error) {
	unknown := []string{}
	for id := range flags {
		if _, ok := c.catalog.Service(id); !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown services: %v", unknown).
			WithDetails(map[string]any{"unknown": unknown})
	}

	var flatFees, modifiers []Service
	for _, svc := range c.catalog.Services {
		if !flags[svc.ID] {
			continue
		}
		switch svc.Kind {
		case enums.PricingServiceKindFlatFee:
			flatFees = append(flatFees, svc)
		case enums.PricingServiceKindMultiplier:
			modifiers = append(modifiers, svc)
		}
	}
	return flatFees, modifiers, nil
}

func unknownOption(kind, id string, allowed []string) error {
	return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown %s %q", kind, id).
		WithDetails(map[string]any{"allowed": allowed})
}

func optionIDs(options []Option) []string {
	out := make([]string, 0, len(options))
	for _, option := range options {
		out = append(out, option.ID)
	}
	return out
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
