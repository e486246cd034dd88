package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/duchuyngn/muaban-backend/pkg/enums"
)

// StoreOrder is the per-store slice of a parent order. Shipping fees settle
// per store order: the store absorbs max(actual - estimated, 0).
type StoreOrder struct {
	ID                     uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID                uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index"`
	StoreID                uuid.UUID              `gorm:"column:store_id;type:uuid;not null;index"`
	SubtotalCents          int64                  `gorm:"column:subtotal_cents;not null"`
	EstimatedShippingCents int64                  `gorm:"column:estimated_shipping_cents;not null;default:0"`
	ActualShippingCents    *int64                 `gorm:"column:actual_shipping_cents"`
	Status                 enums.StoreOrderStatus `gorm:"column:status;type:store_order_status;not null;default:'awaiting_shipment'"`
	DeliveredAt            *time.Time             `gorm:"column:delivered_at"`
	CancelledAt            *time.Time             `gorm:"column:cancelled_at"`
	CancelReason           *string                `gorm:"column:cancel_reason"`
	Items                  []OrderLineItem        `gorm:"foreignKey:StoreOrderID;constraint:OnDelete:CASCADE"`
	CreatedAt              time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
