package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pouchlab-backend/pkg/enums"
)

// Quote is a priced offer for a wholesale customer.
type Quote struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Number            string            `gorm:"column:number;not null;uniqueIndex" json:"number"`
	CustomerID        uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;index" json:"customer_id"`
	Status            enums.QuoteStatus `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	Subtotal          decimal.Decimal   `gorm:"column:subtotal;type:numeric(14,2);not null" json:"subtotal"`
	TaxRate           decimal.Decimal   `gorm:"column:tax_rate;type:numeric(5,4);not null" json:"tax_rate"`
	Tax               decimal.Decimal   `gorm:"column:tax;type:numeric(14,2);not null" json:"tax"`
	Total             decimal.Decimal   `gorm:"column:total;type:numeric(14,2);not null" json:"total"`
	BelowMinimumOrder bool              `gorm:"column:below_minimum_order;not null" json:"below_minimum_order"`
	Notes             *string           `gorm:"column:notes" json:"notes,omitempty"`
	ValidUntil        time.Time         `gorm:"column:valid_until;not null" json:"valid_until"`
	SentAt            *time.Time        `gorm:"column:sent_at" json:"sent_at,omitempty"`
	DecidedAt         *time.Time        `gorm:"column:decided_at" json:"decided_at,omitempty"`
	Items             []QuoteLineItem   `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// QuoteLineItem snapshots the resolved B2B price of one product.
type QuoteLineItem struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	QuoteID         uuid.UUID       `gorm:"column:quote_id;type:uuid;not null;index" json:"quote_id"`
	Position        int             `gorm:"column:position;not null" json:"position"`
	ProductID       uuid.UUID       `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	ProductName     string          `gorm:"column:product_name;not null" json:"product_name"`
	Quantity        int             `gorm:"column:quantity;not null" json:"quantity"`
	BaseUnitPrice   decimal.Decimal `gorm:"column:base_unit_price;type:numeric(12,4);not null" json:"base_unit_price"`
	UnitPrice       decimal.Decimal `gorm:"column:unit_price;type:numeric(12,4);not null" json:"unit_price"`
	DiscountPercent decimal.Decimal `gorm:"column:discount_percent;type:numeric(5,2);not null" json:"discount_percent"`
	LineTotal       decimal.Decimal `gorm:"column:line_total;type:numeric(14,2);not null" json:"line_total"`
}
