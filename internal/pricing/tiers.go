package pricing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/pouchlab-backend/pkg/errors"
)

// TierPolicy decides how quantities missing from the tier table are priced.
type TierPolicy string

const (
	// TierPolicyExact rejects quantities that are not tabled.
	TierPolicyExact TierPolicy = "exact"
	// TierPolicyInterpolate prices untabled quantities linearly between the
	// neighbouring tiers and at the end tier's unit price outside the table.
	TierPolicyInterpolate TierPolicy = "interpolate"
)

// ParseTierPolicy converts raw config into a TierPolicy.
func ParseTierPolicy(value string) (TierPolicy, error) {
	switch TierPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case TierPolicyExact:
		return TierPolicyExact, nil
	case TierPolicyInterpolate, "":
		return TierPolicyInterpolate, nil
	default:
		return "", fmt.Errorf("invalid tier policy %q", value)
	}
}

type tierResolution struct {
	basePrice    decimal.Decimal
	exact        *Tier
	lower        *Tier
	upper        *Tier
	interpolated bool
}

func (c Catalog) resolveTier(quantity int, policy TierPolicy) (tierResolution, error) {
	idx := sort.Search(len(c.Tiers), func(i int) bool {
		return c.Tiers[i].Quantity >= quantity
	})
	if idx < len(c.Tiers) && c.Tiers[idx].Quantity == quantity {
		tier := c.Tiers[idx]
		return tierResolution{basePrice: tier.BasePrice, exact: &tier}, nil
	}

	if policy == TierPolicyExact {
		return tierResolution{}, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity %d is not an offered tier", quantity).
			WithDetails(map[string]any{"quantity": quantity, "tiers": c.TierQuantities()})
	}

	qty := decimal.NewFromInt(int64(quantity))
	switch {
	case idx == 0:
		first := c.Tiers[0]
		return tierResolution{
			basePrice:    scaleByQuantity(first, qty),
			upper:        &first,
			interpolated: true,
		}, nil
	case idx == len(c.Tiers):
		last := c.Tiers[len(c.Tiers)-1]
		return tierResolution{
			basePrice:    scaleByQuantity(last, qty),
			lower:        &last,
			interpolated: true,
		}, nil
	default:
		lower, upper := c.Tiers[idx-1], c.Tiers[idx]
		span := decimal.NewFromInt(int64(upper.Quantity - lower.Quantity))
		offset := decimal.NewFromInt(int64(quantity - lower.Quantity))
		step := upper.BasePrice.Sub(lower.BasePrice).Mul(offset).Div(span)
		return tierResolution{
			basePrice:    lower.BasePrice.Add(step),
			lower:        &lower,
			upper:        &upper,
			interpolated: true,
		}, nil
	}
}

// scaleByQuantity prices qty units at the tier's unit price.
func scaleByQuantity(tier Tier, qty decimal.Decimal) decimal.Decimal {
	return tier.BasePrice.Mul(qty).Div(decimal.NewFromInt(int64(tier.Quantity)))
}

func (r tierResolution) describe() string {
	switch {
	case r.lower != nil && r.upper != nil:
		return fmt.Sprintf("interpolated between tiers %d and %d", r.lower.Quantity, r.upper.Quantity)
	case r.upper != nil:
		return fmt.Sprintf("priced at the unit rate of the smallest tier (%d)", r.upper.Quantity)
	case r.lower != nil:
		return fmt.Sprintf("priced at the unit rate of the largest tier (%d)", r.lower.Quantity)
	default:
		return ""
	}
}
