package b2b

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pouchlab-backend/pkg/enums"
)

// GroupTerms are the commercial defaults a customer receives when assigned a group.
type GroupTerms struct {
	DiscountPercent  decimal.Decimal `json:"discount_percent"`
	MinOrderAmount   decimal.Decimal `json:"min_order_amount"`
	PaymentTermsDays int             `json:"payment_terms_days"`
}

var defaultGroupTerms = map[enums.CustomerGroup]GroupTerms{
	enums.CustomerGroupRetail:    {DiscountPercent: decimal.Zero, MinOrderAmount: decimal.Zero, PaymentTermsDays: 0},
	enums.CustomerGroupDealer:    {DiscountPercent: decimal.NewFromInt(10), MinOrderAmount: decimal.NewFromInt(500), PaymentTermsDays: 30},
	enums.CustomerGroupChain:     {DiscountPercent: decimal.NewFromInt(15), MinOrderAmount: decimal.NewFromInt(1000), PaymentTermsDays: 45},
	enums.CustomerGroupCorporate: {DiscountPercent: decimal.NewFromInt(20), MinOrderAmount: decimal.NewFromInt(2500), PaymentTermsDays: 60},
	enums.CustomerGroupVIP:       {DiscountPercent: decimal.NewFromInt(25), MinOrderAmount: decimal.NewFromInt(5000), PaymentTermsDays: 60},
}

// DefaultTerms returns the defaults for a group. Unknown groups get retail terms.
func DefaultTerms(group enums.CustomerGroup) GroupTerms {
	if terms, ok := defaultGroupTerms[group]; ok {
		return terms
	}
	return defaultGroupTerms[enums.CustomerGroupRetail]
}

// VolumeTier grants Percent off once an order reaches MinQuantity units.
type VolumeTier struct {
	MinQuantity int             `json:"min_quantity"`
	Percent     decimal.Decimal `json:"percent"`
}

// DefaultVolumeTiers are ordered from the largest threshold down.
var DefaultVolumeTiers = []VolumeTier{
	{MinQuantity: 10000, Percent: decimal.NewFromInt(10)},
	{MinQuantity: 5000, Percent: decimal.NewFromInt(7)},
	{MinQuantity: 2000, Percent: decimal.NewFromInt(5)},
	{MinQuantity: 1000, Percent: decimal.NewFromInt(3)},
}

// VolumeDiscountPercent returns the step-function discount for a quantity.
func VolumeDiscountPercent(quantity int) decimal.Decimal {
	for _, tier := range DefaultVolumeTiers {
		if quantity >= tier.MinQuantity {
			return tier.Percent
		}
	}
	return decimal.Zero
}

var hundred = decimal.NewFromInt(100)

func clampPercent(value decimal.Decimal) decimal.Decimal {
	if value.IsNegative() {
		return decimal.Zero
	}
	if value.GreaterThan(hundred) {
		return hundred
	}
	return value
}

func clampPrice(value decimal.Decimal) decimal.Decimal {
	if value.IsNegative() {
		return decimal.Zero
	}
	return value
}

// applyPercent returns price reduced by percent, clamped to [0, 100].
func applyPercent(price, percent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(clampPercent(percent).Div(hundred))
	return clampPrice(price.Mul(factor))
}
