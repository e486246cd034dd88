package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/duchuyngn/muaban-backend/pkg/enums"
)

// ReturnRequest tracks a customer return or complaint against a single order
// line item. AutoRefundExecuted guards the unresponsive-shop sweeps against
// double-crediting the customer.
type ReturnRequest struct {
	ID                 uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderLineItemID    uuid.UUID          `gorm:"column:order_line_item_id;type:uuid;not null;index"`
	CustomerID         uuid.UUID          `gorm:"column:customer_id;type:uuid;not null"`
	StoreID            uuid.UUID          `gorm:"column:store_id;type:uuid;not null;index"`
	Status             enums.ReturnStatus `gorm:"column:status;type:return_status;not null;default:'pending'"`
	Fault              enums.ReturnFault  `gorm:"column:fault;type:return_fault;not null;default:'unknown'"`
	Reason             string             `gorm:"column:reason;not null"`
	RefundCents        int64              `gorm:"column:refund_cents;not null;default:0"`
	AutoRefundExecuted bool               `gorm:"column:auto_refund_executed;not null;default:false"`
	DisputedAt         *time.Time         `gorm:"column:disputed_at"`
	ResolvedAt         *time.Time         `gorm:"column:resolved_at"`
	CreatedAt          time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
