package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLineItem captures one product line inside a store order together with
// its payout lifecycle flags. EligibleForPayout, IsPayout and IsReturned only
// ever flip false -> true.
type OrderLineItem struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreOrderID       uuid.UUID       `gorm:"column:store_order_id;type:uuid;not null;index"`
	StoreID            uuid.UUID       `gorm:"column:store_id;type:uuid;not null;index"`
	ProductID          *uuid.UUID      `gorm:"column:product_id;type:uuid"`
	Name               string          `gorm:"column:name;not null"`
	Qty                int             `gorm:"column:qty;not null"`
	GrossTotalCents    int64           `gorm:"column:gross_total_cents;not null"`
	PlatformFeePct     decimal.Decimal `gorm:"column:platform_fee_pct;type:numeric(5,2);not null"`
	PlatformFeeCents   int64           `gorm:"column:platform_fee_cents;not null;default:0"`
	CostOfGoodsCents   int64           `gorm:"column:cost_of_goods_cents;not null;default:0"`
	DeliveredAt        *time.Time      `gorm:"column:delivered_at"`
	EligibleForPayout  bool            `gorm:"column:eligible_for_payout;not null;default:false"`
	IsPayout           bool            `gorm:"column:is_payout;not null;default:false"`
	IsReturned         bool            `gorm:"column:is_returned;not null;default:false"`
	SweepAttempts      int             `gorm:"column:sweep_attempts;not null;default:0"`
	Quarantined        bool            `gorm:"column:quarantined;not null;default:false"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// FeeCents computes the platform fee for the line from its fee percentage,
// rounded to whole cents.
func (i OrderLineItem) FeeCents() int64 {
	gross := decimal.NewFromInt(i.GrossTotalCents)
	return gross.Mul(i.PlatformFeePct).Div(decimal.NewFromInt(100)).Round(0).IntPart()
}

// NetPayoutCents is the amount owed to the store for this line once it is
// paid out. Uses the frozen PlatformFeeCents, not a recomputation. Shipping
// differentials are billed as their own lines from shipping_fees rows.
func (i OrderLineItem) NetPayoutCents() int64 {
	return i.GrossTotalCents - i.PlatformFeeCents
}
