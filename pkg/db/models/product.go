package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a configurable pouch line priced off the shared tier table.
type Product struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SKU                string          `gorm:"column:sku;not null;uniqueIndex" json:"sku"`
	Name               string          `gorm:"column:name;not null" json:"name"`
	Description        *string         `gorm:"column:description" json:"description,omitempty"`
	ReferenceUnitPrice decimal.Decimal `gorm:"column:reference_unit_price;type:numeric(12,4);not null" json:"reference_unit_price"`
	MOQ                int             `gorm:"column:moq;not null" json:"moq"`
	IsActive           bool            `gorm:"column:is_active;not null" json:"is_active"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
