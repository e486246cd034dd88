package payloads

import (
	"time"

	"github.com/duchuyngn/muaban-backend/pkg/enums"
	"github.com/google/uuid"
)

// SettlementHeldEvent is emitted when an order payment lands in the store
// pending buckets and the platform fee is collected.
type SettlementHeldEvent struct {
	OrderID          uuid.UUID `json:"order_id"`
	CustomerID       uuid.UUID `json:"customer_id"`
	GrossCents       int64     `json:"gross_cents"`
	PlatformFeeCents int64     `json:"platform_fee_cents"`
	HeldAt           time.Time `json:"held_at"`
}

// SettlementReleasedEvent is emitted when held funds become available to a store.
type SettlementReleasedEvent struct {
	OrderID       uuid.UUID   `json:"order_id"`
	StoreOrderIDs []uuid.UUID `json:"store_order_ids"`
	ReleasedAt    time.Time   `json:"released_at"`
}

// OrderRefundedEvent is emitted when an entire order is refunded to the customer.
type OrderRefundedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	RefundCents int64     `json:"refund_cents"`
	RefundedAt  time.Time `json:"refunded_at"`
}

// StoreOrderRefundedEvent is emitted when a single store order is refunded.
type StoreOrderRefundedEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	StoreOrderID uuid.UUID `json:"store_order_id"`
	StoreID      uuid.UUID `json:"store_id"`
	CustomerID   uuid.UUID `json:"customer_id"`
	RefundCents  int64     `json:"refund_cents"`
	RefundedAt   time.Time `json:"refunded_at"`
}

// OrderCancelledEvent is emitted when a customer cancels a pending order.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	WasPaid     bool      `json:"was_paid"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
}

// StoreOrderCancelledEvent is emitted when a store order is cancelled before shipment.
type StoreOrderCancelledEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	StoreOrderID uuid.UUID `json:"store_order_id"`
	StoreID      uuid.UUID `json:"store_id"`
	CancelledAt  time.Time `json:"cancelled_at"`
	Reason       string    `json:"reason,omitempty"`
}

// ItemPayoutEligibleEvent is emitted when the sweep marks a line item payable.
type ItemPayoutEligibleEvent struct {
	LineItemID   uuid.UUID `json:"line_item_id"`
	StoreOrderID uuid.UUID `json:"store_order_id"`
	StoreID      uuid.UUID `json:"store_id"`
	DeliveredAt  time.Time `json:"delivered_at"`
	EligibleAt   time.Time `json:"eligible_at"`
}

// PayoutBillCreatedEvent is emitted when eligible items are frozen into a bill.
type PayoutBillCreatedEvent struct {
	BillID         uuid.UUID `json:"bill_id"`
	StoreID        uuid.UUID `json:"store_id"`
	ItemCount      int       `json:"item_count"`
	NetPayoutCents int64     `json:"net_payout_cents"`
	CreatedAt      time.Time `json:"created_at"`
}

// PayoutBillPaidEvent is emitted after an operator settles a bill with the store.
type PayoutBillPaidEvent struct {
	BillID         uuid.UUID `json:"bill_id"`
	StoreID        uuid.UUID `json:"store_id"`
	NetPayoutCents int64     `json:"net_payout_cents"`
	Reference      string    `json:"reference,omitempty"`
	PaidAt         time.Time `json:"paid_at"`
}

// ReturnAutoRefundedEvent is emitted when the platform refunds on a store's behalf
// after a dispute or complaint deadline passes without a response.
type ReturnAutoRefundedEvent struct {
	ReturnRequestID uuid.UUID          `json:"return_request_id"`
	LineItemID      uuid.UUID          `json:"line_item_id"`
	StoreID         uuid.UUID          `json:"store_id"`
	CustomerID      uuid.UUID          `json:"customer_id"`
	Fault           enums.ReturnFault  `json:"fault"`
	Status          enums.ReturnStatus `json:"status"`
	RefundCents     int64              `json:"refund_cents"`
	RefundedAt      time.Time          `json:"refunded_at"`
}

// SweepItemQuarantinedEvent flags a line item the eligibility sweep gave up on.
type SweepItemQuarantinedEvent struct {
	LineItemID    uuid.UUID `json:"line_item_id"`
	StoreOrderID  uuid.UUID `json:"store_order_id"`
	Attempts      int       `json:"attempts"`
	LastError     string    `json:"last_error,omitempty"`
	QuarantinedAt time.Time `json:"quarantined_at"`
}
