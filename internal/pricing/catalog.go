package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angelmondragon/pouchlab-backend/pkg/enums"
)

// Tier maps a tabled order quantity to its net price at the catalog reference unit price.
type Tier struct {
	Quantity  int             `json:"quantity"`
	BasePrice decimal.Decimal `json:"base_price"`
}

// UnitPrice returns the tier's implied price per unit.
func (t Tier) UnitPrice() decimal.Decimal {
	return t.BasePrice.Div(decimal.NewFromInt(int64(t.Quantity)))
}

// LeadTimePlan is a production turnaround with a signed price modifier.
type LeadTimePlan struct {
	ID       string          `json:"id"`
	Label    string          `json:"label"`
	Days     int             `json:"days"`
	Modifier decimal.Decimal `json:"modifier"`
}

// Option is a material or optional feature with a per-unit price delta.
type Option struct {
	ID        string          `json:"id"`
	Label     string          `json:"label"`
	UnitDelta decimal.Decimal `json:"unit_delta"`
}

// Service is a toggleable add-on. Flat fees add Amount to the net price,
// multipliers scale the net price by Amount.
type Service struct {
	ID     string                   `json:"id"`
	Label  string                   `json:"label"`
	Kind   enums.PricingServiceKind `json:"kind"`
	Amount decimal.Decimal          `json:"amount"`
}

// Catalog is the static configuration the calculator prices against.
type Catalog struct {
	ReferenceUnitPrice decimal.Decimal `json:"reference_unit_price"`
	Tiers              []Tier          `json:"tiers"`
	Plans              []LeadTimePlan  `json:"plans"`
	Materials          []Option        `json:"materials"`
	Features           []Option        `json:"features"`
	Services           []Service       `json:"services"`
	VATRate            decimal.Decimal `json:"vat_rate"`
	DefaultPlan        string          `json:"default_plan"`
	DefaultMaterial    string          `json:"default_material"`
	DefaultFeature     string          `json:"default_feature"`
}

const (
	PlanEconomy  = "economy"
	PlanStandard = "standard"
	PlanPriority = "priority"
	PlanExpress  = "express"

	MaterialKraft       = "kraft"
	MaterialMatte       = "matte"
	MaterialTransparent = "transparent"
	MaterialMetallic    = "metallic"

	FeatureNone        = "none"
	FeatureZipper      = "zipper"
	FeatureValve       = "valve"
	FeatureZipperValve = "zipper_valve"

	ServiceInsurance        = "insurance"
	ServiceFileVerification = "file_verification"
	ServiceUseLogo          = "use_logo"
	ServiceDropTrademark    = "drop_trademark"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

// DefaultCatalog returns the production tier table and option lists.
func DefaultCatalog() Catalog {
	return Catalog{
		ReferenceUnitPrice: dec("0.45"),
		Tiers: []Tier{
			{Quantity: 100, BasePrice: dec("85.00")},
			{Quantity: 250, BasePrice: dec("172.50")},
			{Quantity: 500, BasePrice: dec("306.00")},
			{Quantity: 1000, BasePrice: dec("476.00")},
			{Quantity: 2000, BasePrice: dec("840.00")},
			{Quantity: 3000, BasePrice: dec("1170.00")},
			{Quantity: 5000, BasePrice: dec("1750.00")},
		},
		Plans: []LeadTimePlan{
			{ID: PlanEconomy, Label: "Economy", Days: 20, Modifier: dec("-0.05")},
			{ID: PlanStandard, Label: "Standard", Days: 15, Modifier: decimal.Zero},
			{ID: PlanPriority, Label: "Priority", Days: 10, Modifier: dec("0.10")},
			{ID: PlanExpress, Label: "Express", Days: 5, Modifier: dec("0.25")},
		},
		Materials: []Option{
			{ID: MaterialKraft, Label: "Kraft paper", UnitDelta: decimal.Zero},
			{ID: MaterialMatte, Label: "Matte film", UnitDelta: dec("0.02")},
			{ID: MaterialTransparent, Label: "Transparent film", UnitDelta: dec("0.01")},
			{ID: MaterialMetallic, Label: "Metallic film", UnitDelta: dec("0.04")},
		},
		Features: []Option{
			{ID: FeatureNone, Label: "No closure", UnitDelta: decimal.Zero},
			{ID: FeatureZipper, Label: "Zipper", UnitDelta: dec("0.03")},
			{ID: FeatureValve, Label: "Degassing valve", UnitDelta: dec("0.05")},
			{ID: FeatureZipperValve, Label: "Zipper and valve", UnitDelta: dec("0.07")},
		},
		Services: []Service{
			{ID: ServiceInsurance, Label: "Production insurance", Kind: enums.PricingServiceKindFlatFee, Amount: dec("4.68")},
			{ID: ServiceFileVerification, Label: "File verification", Kind: enums.PricingServiceKindFlatFee, Amount: dec("9.90")},
			{ID: ServiceUseLogo, Label: "Allow our logo on the pouch", Kind: enums.PricingServiceKindMultiplier, Amount: dec("0.98")},
			{ID: ServiceDropTrademark, Label: "Drop trademark", Kind: enums.PricingServiceKindMultiplier, Amount: dec("0.97")},
		},
		VATRate:         dec("0.22"),
		DefaultPlan:     PlanStandard,
		DefaultMaterial: MaterialKraft,
		DefaultFeature:  FeatureNone,
	}
}

// WithVATRate returns a copy of the catalog using the given VAT rate.
func (c Catalog) WithVATRate(rate decimal.Decimal) Catalog {
	c.VATRate = rate
	return c
}

// Validate checks the structural invariants the calculator relies on and
// reports every violation at once.
func (c Catalog) Validate() error {
	var errs error
	if !c.ReferenceUnitPrice.IsPositive() {
		errs = multierr.Append(errs, errors.New("reference unit price must be positive"))
	}
	if len(c.Tiers) == 0 {
		errs = multierr.Append(errs, errors.New("tier table is empty"))
	}
	for i, tier := range c.Tiers {
		if tier.Quantity <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("tiers[%d]: quantity must be positive", i))
		}
		if !tier.BasePrice.IsPositive() {
			errs = multierr.Append(errs, fmt.Errorf("tiers[%d]: base price must be positive", i))
		}
		if i > 0 && tier.Quantity <= c.Tiers[i-1].Quantity {
			errs = multierr.Append(errs, fmt.Errorf("tiers[%d]: quantity %d does not increase on %d", i, tier.Quantity, c.Tiers[i-1].Quantity))
		}
	}
	if c.VATRate.IsNegative() {
		errs = multierr.Append(errs, errors.New("vat rate must not be negative"))
	}
	for _, plan := range c.Plans {
		if plan.Modifier.LessThanOrEqual(decimal.NewFromInt(-1)) {
			errs = multierr.Append(errs, fmt.Errorf("plan %s: modifier must be greater than -1", plan.ID))
		}
	}
	for _, option := range append(append([]Option{}, c.Materials...), c.Features...) {
		if option.UnitDelta.IsNegative() {
			errs = multierr.Append(errs, fmt.Errorf("option %s: unit delta must not be negative", option.ID))
		}
	}
	for _, svc := range c.Services {
		if !svc.Kind.IsValid() {
			errs = multierr.Append(errs, fmt.Errorf("service %s: unknown kind %q", svc.ID, svc.Kind))
		}
		if svc.Amount.IsNegative() {
			errs = multierr.Append(errs, fmt.Errorf("service %s: amount must not be negative", svc.ID))
		}
	}
	if _, ok := c.Plan(c.DefaultPlan); !ok {
		errs = multierr.Append(errs, fmt.Errorf("default plan %q is not defined", c.DefaultPlan))
	}
	if _, ok := c.Material(c.DefaultMaterial); !ok {
		errs = multierr.Append(errs, fmt.Errorf("default material %q is not defined", c.DefaultMaterial))
	}
	if _, ok := c.Feature(c.DefaultFeature); !ok {
		errs = multierr.Append(errs, fmt.Errorf("default feature %q is not defined", c.DefaultFeature))
	}
	return errs
}

// Plan looks up a lead-time plan by id.
func (c Catalog) Plan(id string) (LeadTimePlan, bool) {
	for _, plan := range c.Plans {
		if plan.ID == id {
			return plan, true
		}
	}
	return LeadTimePlan{}, false
}

// Material looks up a material option by id.
func (c Catalog) Material(id string) (Option, bool) {
	return findOption(c.Materials, id)
}

// Feature looks up an optional feature by id.
func (c Catalog) Feature(id string) (Option, bool) {
	return findOption(c.Features, id)
}

// Service looks up an add-on service by id.
func (c Catalog) Service(id string) (Service, bool) {
	for _, svc := range c.Services {
		if svc.ID == id {
			return svc, true
		}
	}
	return Service{}, false
}

// TierQuantities lists the tabled quantities in ascending order.
func (c Catalog) TierQuantities() []int {
	out := make([]int, 0, len(c.Tiers))
	for _, tier := range c.Tiers {
		out = append(out, tier.Quantity)
	}
	return out
}

// PlanIDs lists the plan ids in catalog order.
func (c Catalog) PlanIDs() []string {
	out := make([]string, 0, len(c.Plans))
	for _, plan := range c.Plans {
		out = append(out, plan.ID)
	}
	return out
}

func findOption(options []Option, id string) (Option, bool) {
	for _, option := range options {
		if option.ID == id {
			return option, true
		}
	}
	return Option{}, false
}
