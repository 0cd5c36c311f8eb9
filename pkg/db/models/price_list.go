package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pouchlab-backend/pkg/enums"
)

// PriceList groups special prices for one customer group over a validity window.
type PriceList struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name          string              `gorm:"column:name;not null" json:"name"`
	CustomerGroup enums.CustomerGroup `gorm:"column:customer_group;type:varchar(32);not null;index" json:"customer_group"`
	ValidFrom     time.Time           `gorm:"column:valid_from;not null" json:"valid_from"`
	ValidUntil    *time.Time          `gorm:"column:valid_until" json:"valid_until,omitempty"`
	IsActive      bool                `gorm:"column:is_active;not null" json:"is_active"`
	Entries       []PriceListEntry    `gorm:"foreignKey:PriceListID;constraint:OnDelete:CASCADE" json:"entries"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// ActiveAt reports whether the list applies at the given instant. An open
// ended list has no ValidUntil.
func (p PriceList) ActiveAt(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if now.Before(p.ValidFrom) {
		return false
	}
	return p.ValidUntil == nil || !now.After(*p.ValidUntil)
}

// PriceListEntry overrides the unit price of one product.
type PriceListEntry struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	PriceListID     uuid.UUID       `gorm:"column:price_list_id;type:uuid;not null;uniqueIndex:idx_price_list_entries_product" json:"price_list_id"`
	ProductID       uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_price_list_entries_product" json:"product_id"`
	B2BPrice        decimal.Decimal `gorm:"column:b2b_price;type:numeric(12,4);not null" json:"b2b_price"`
	DiscountPercent decimal.Decimal `gorm:"column:discount_percent;type:numeric(5,2);not null" json:"discount_percent"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
