package cancellations

import "github.com/google/uuid"

// CancelOrderInput is the customer-initiated whole-order cancellation.
type CancelOrderInput struct {
	OrderID    uuid.UUID `json:"order_id" validate:"required"`
	CustomerID uuid.UUID `json:"customer_id" validate:"required"`
	Reason     string    `json:"reason,omitempty"`
}

// RequestCancelInput asks the store to cancel one of its sub-orders.
type RequestCancelInput struct {
	StoreOrderID uuid.UUID `json:"store_order_id" validate:"required"`
	CustomerID   uuid.UUID `json:"customer_id" validate:"required"`
	Reason       string    `json:"reason" validate:"required"`
}

// ResolveCancelInput is the store's answer to a cancel request. StoreID guards
// against a store resolving another store's sub-order.
type ResolveCancelInput struct {
	StoreOrderID uuid.UUID `json:"store_order_id" validate:"required"`
	StoreID      uuid.UUID `json:"store_id" validate:"required"`
	Note         string    `json:"note,omitempty"`
}
