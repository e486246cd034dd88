package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/duchuyngn/muaban-backend/pkg/enums"
)

// PayoutBill aggregates everything owed to (and by) one store into a single
// payable statement. The line references are immutable once the bill exists;
// only the status and payment metadata change, pending -> paid exactly once.
type PayoutBill struct {
	ID                       uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID                  uuid.UUID              `gorm:"column:store_id;type:uuid;not null;index"`
	Status                   enums.PayoutBillStatus `gorm:"column:status;type:payout_bill_status;not null;default:'pending'"`
	TotalGrossCents          int64                  `gorm:"column:total_gross_cents;not null"`
	TotalPlatformFeeCents    int64                  `gorm:"column:total_platform_fee_cents;not null"`
	TotalShippingFeeCents    int64                  `gorm:"column:total_shipping_fee_cents;not null"`
	TotalReturnShippingCents int64                  `gorm:"column:total_return_shipping_cents;not null"`
	TotalNetPayoutCents      int64                  `gorm:"column:total_net_payout_cents;not null"`
	Reference                *string                `gorm:"column:reference"`
	ReceiptURL               *string                `gorm:"column:receipt_url"`
	Note                     *string                `gorm:"column:note"`
	PaidAt                   *time.Time             `gorm:"column:paid_at"`
	Items                    []PayoutBillItem       `gorm:"foreignKey:BillID;constraint:OnDelete:CASCADE"`
	CreatedAt                time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// PayoutBillItem links one payable line to its bill with the amounts frozen
// at aggregation time.
type PayoutBillItem struct {
	ID                  uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BillID              uuid.UUID  `gorm:"column:bill_id;type:uuid;not null;index"`
	OrderLineItemID     *uuid.UUID `gorm:"column:order_line_item_id;type:uuid;uniqueIndex:ux_payout_bill_items_line"`
	ShippingFeeID       *uuid.UUID `gorm:"column:shipping_fee_id;type:uuid"`
	ReturnShippingFeeID *uuid.UUID `gorm:"column:return_shipping_fee_id;type:uuid"`
	GrossCents          int64      `gorm:"column:gross_cents;not null"`
	PlatformFeeCents    int64      `gorm:"column:platform_fee_cents;not null"`
	ShippingExtraCents  int64      `gorm:"column:shipping_extra_cents;not null"`
	NetCents            int64      `gorm:"column:net_cents;not null"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime"`
}
