package b2b

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/pouchlab-backend/pkg/enums"
)

func TestDefaultTermsPerGroup(t *testing.T) {
	cases := []struct {
		group    enums.CustomerGroup
		discount int64
		minOrder int64
		terms    int
	}{
		{enums.CustomerGroupRetail, 0, 0, 0},
		{enums.CustomerGroupDealer, 10, 500, 30},
		{enums.CustomerGroupChain, 15, 1000, 45},
		{enums.CustomerGroupCorporate, 20, 2500, 60},
		{enums.CustomerGroupVIP, 25, 5000, 60},
		{enums.CustomerGroup("wholesale"), 0, 0, 0},
	}
	for _, tc := range cases {
		got := DefaultTerms(tc.group)
		assert.Truef(t, got.DiscountPercent.Equal(decimal.NewFromInt(tc.discount)), "group %s discount %s", tc.group, got.DiscountPercent)
		assert.Truef(t, got.MinOrderAmount.Equal(decimal.NewFromInt(tc.minOrder)), "group %s min order %s", tc.group, got.MinOrderAmount)
		assert.Equal(t, tc.terms, got.PaymentTermsDays, "group %s", tc.group)
	}
}

func TestVolumeDiscountPercentSteps(t *testing.T) {
	cases := map[int]int64{
		0:     0,
		999:   0,
		1000:  3,
		1999:  3,
		2000:  5,
		4999:  5,
		5000:  7,
		9999:  7,
		10000: 10,
		50000: 10,
	}
	for qty, want := range cases {
		got := VolumeDiscountPercent(qty)
		assert.Truef(t, got.Equal(decimal.NewFromInt(want)), "qty %d expected %d got %s", qty, want, got)
	}
}

func TestApplyPercentClamps(t *testing.T) {
	price := decimal.RequireFromString("2.00")
	assert.True(t, applyPercent(price, decimal.NewFromInt(25)).Equal(decimal.RequireFromString("1.50")))
	assert.True(t, applyPercent(price, decimal.NewFromInt(150)).IsZero())
	assert.True(t, applyPercent(price, decimal.NewFromInt(-10)).Equal(price))
	assert.True(t, applyPercent(decimal.NewFromInt(-5), decimal.Zero).IsZero())
}
