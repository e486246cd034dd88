package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateLineItemInput is one product line inside a store order.
type CreateLineItemInput struct {
	ProductID        *uuid.UUID
	Name             string
	Qty              int
	GrossTotalCents  int64
	PlatformFeePct   decimal.Decimal
	CostOfGoodsCents int64
}

// CreateStoreOrderInput is the per-store slice of a new order.
type CreateStoreOrderInput struct {
	StoreID                uuid.UUID
	EstimatedShippingCents int64
	Items                  []CreateLineItemInput
}

// CreateOrderInput registers a new parent order with its store splits.
type CreateOrderInput struct {
	CustomerID    uuid.UUID
	DiscountCents int64
	StoreOrders   []CreateStoreOrderInput
}

// DeliveryInput carries a carrier delivery confirmation.
type DeliveryInput struct {
	StoreOrderID uuid.UUID
	DeliveredAt  time.Time
}

// ShippingFeeInput carries the carrier's actual-fee reconciliation signal.
type ShippingFeeInput struct {
	StoreOrderID   uuid.UUID
	ActualFeeCents int64
}
