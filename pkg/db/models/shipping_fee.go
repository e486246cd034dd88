package models

import (
	"time"

	"github.com/google/uuid"
)

// ShippingFee records the shipping differential a store owes after carrier
// reconciliation: max(actual - estimated, 0). Charged on the store's next
// payout bill, after which PaidByStore is true.
type ShippingFee struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreOrderID uuid.UUID  `gorm:"column:store_order_id;type:uuid;not null;uniqueIndex"`
	StoreID      uuid.UUID  `gorm:"column:store_id;type:uuid;not null;index"`
	ExtraCents   int64      `gorm:"column:extra_cents;not null"`
	PaidByStore  bool       `gorm:"column:paid_by_store;not null;default:false"`
	PaidAt       *time.Time `gorm:"column:paid_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// ReturnShippingFee is the return-leg shipping charge assigned to a store
// when a return is resolved against it.
type ReturnShippingFee struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReturnRequestID uuid.UUID  `gorm:"column:return_request_id;type:uuid;not null;uniqueIndex"`
	StoreID         uuid.UUID  `gorm:"column:store_id;type:uuid;not null;index"`
	FeeCents        int64      `gorm:"column:fee_cents;not null"`
	Paid            bool       `gorm:"column:paid;not null;default:false"`
	PaidAt          *time.Time `gorm:"column:paid_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
}
