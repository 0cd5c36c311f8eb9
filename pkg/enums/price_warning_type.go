package enums

import "fmt"

// PriceWarningType labels non-fatal conditions raised while pricing a configuration.
type PriceWarningType string

const (
	PriceWarningTypeBelowMOQ          PriceWarningType = "below_moq"
	PriceWarningTypeInterpolatedTier  PriceWarningType = "interpolated_tier"
	PriceWarningTypeBelowMinimumOrder PriceWarningType = "below_minimum_order"
)

var validPriceWarningTypes = []PriceWarningType{
	PriceWarningTypeBelowMOQ,
	PriceWarningTypeInterpolatedTier,
	PriceWarningTypeBelowMinimumOrder,
}

// String implements fmt.Stringer.
func (w PriceWarningType) String() string {
	return string(w)
}

// IsValid reports whether the value is a known PriceWarningType.
func (w PriceWarningType) IsValid() bool {
	for _, candidate := range validPriceWarningTypes {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParsePriceWarningType converts raw input into a PriceWarningType.
func ParsePriceWarningType(value string) (PriceWarningType, error) {
	for _, candidate := range validPriceWarningTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid price warning type %q", value)
}
