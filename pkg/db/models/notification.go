package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pouchlab-backend/pkg/enums"
)

// Notification stores in-app notification payloads, optionally scoped to a customer.
type Notification struct {
	ID         uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CustomerID *uuid.UUID             `gorm:"column:customer_id;type:uuid;index" json:"customer_id,omitempty"`
	Type       enums.NotificationType `gorm:"column:type;type:varchar(32);not null" json:"type"`
	Title      string                 `gorm:"column:title;not null" json:"title"`
	Message    string                 `gorm:"column:message;not null" json:"message"`
	Link       *string                `gorm:"column:link" json:"link,omitempty"`
	ReadAt     *time.Time             `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt  time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
