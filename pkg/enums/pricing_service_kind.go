package enums

import "fmt"

// PricingServiceKind describes how an add-on service changes the net price.
type PricingServiceKind string

const (
	PricingServiceKindFlatFee    PricingServiceKind = "flat_fee"
	PricingServiceKindMultiplier PricingServiceKind = "multiplier"
)

var validPricingServiceKinds = []PricingServiceKind{
	PricingServiceKindFlatFee,
	PricingServiceKindMultiplier,
}

// String implements fmt.Stringer.
func (k PricingServiceKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known PricingServiceKind.
func (k PricingServiceKind) IsValid() bool {
	for _, candidate := range validPricingServiceKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParsePricingServiceKind converts raw input into a PricingServiceKind.
func ParsePricingServiceKind(value string) (PricingServiceKind, error) {
	for _, candidate := range validPricingServiceKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pricing service kind %q", value)
}
