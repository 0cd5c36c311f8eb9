package enums

import "fmt"

// CustomerGroup classifies B2B customers for default discount terms.
type CustomerGroup string

const (
	CustomerGroupRetail    CustomerGroup = "retail"
	CustomerGroupDealer    CustomerGroup = "dealer"
	CustomerGroupChain     CustomerGroup = "chain"
	CustomerGroupCorporate CustomerGroup = "corporate"
	CustomerGroupVIP       CustomerGroup = "vip"
)

var validCustomerGroups = []CustomerGroup{
	CustomerGroupRetail,
	CustomerGroupDealer,
	CustomerGroupChain,
	CustomerGroupCorporate,
	CustomerGroupVIP,
}

// String implements fmt.Stringer.
func (g CustomerGroup) String() string {
	return string(g)
}

// IsValid reports whether the value is a known CustomerGroup.
func (g CustomerGroup) IsValid() bool {
	for _, candidate := range validCustomerGroups {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseCustomerGroup converts raw input into a CustomerGroup.
func ParseCustomerGroup(value string) (CustomerGroup, error) {
	for _, candidate := range validCustomerGroups {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid customer group %q", value)
}
