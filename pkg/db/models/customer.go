package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pouchlab-backend/pkg/enums"
)

// Customer is a registered wholesale buyer. Its terms start from the group
// defaults and may be overridden afterwards.
type Customer struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name             string              `gorm:"column:name;not null" json:"name"`
	Email            string              `gorm:"column:email;not null;uniqueIndex" json:"email"`
	Company          *string             `gorm:"column:company" json:"company,omitempty"`
	VATNumber        *string             `gorm:"column:vat_number" json:"vat_number,omitempty"`
	Group            enums.CustomerGroup `gorm:"column:customer_group;type:varchar(32);not null;index" json:"group"`
	DiscountPercent  decimal.Decimal     `gorm:"column:discount_percent;type:numeric(5,2);not null" json:"discount_percent"`
	MinOrderAmount   decimal.Decimal     `gorm:"column:min_order_amount;type:numeric(12,2);not null" json:"min_order_amount"`
	PaymentTermsDays int                 `gorm:"column:payment_terms_days;not null" json:"payment_terms_days"`
	IsActive         bool                `gorm:"column:is_active;not null" json:"is_active"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
