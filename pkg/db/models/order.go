package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/duchuyngn/muaban-backend/pkg/enums"
)

// Order is the parent order a customer paid for. Money movement is tracked
// on SettlementState, which only the settlement service mutates.
type Order struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID      uuid.UUID             `gorm:"column:customer_id;type:uuid;not null;index"`
	TotalCents      int64                 `gorm:"column:total_cents;not null"`
	DiscountCents   int64                 `gorm:"column:discount_cents;not null;default:0"`
	Status          enums.OrderStatus     `gorm:"column:status;type:order_status;not null;default:'pending'"`
	SettlementState enums.SettlementState `gorm:"column:settlement_state;type:settlement_state;not null;default:'none'"`
	PaidAt          *time.Time            `gorm:"column:paid_at"`
	CancelledAt     *time.Time            `gorm:"column:cancelled_at"`
	StoreOrders     []StoreOrder          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
