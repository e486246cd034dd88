package returns

import "github.com/google/uuid"

// CreateReturnInput opens a customer complaint against one line item.
type CreateReturnInput struct {
	LineItemID uuid.UUID `json:"line_item_id" validate:"required"`
	CustomerID uuid.UUID `json:"customer_id" validate:"required"`
	Reason     string    `json:"reason" validate:"required"`
}

// ReceiveInput is the store accepting the returned goods. A refund follows
// immediately; ReturnShippingCents, when set, is charged back to the store on
// its next payout bill.
type ReceiveInput struct {
	ReturnID            uuid.UUID `json:"return_id" validate:"required"`
	StoreID             uuid.UUID `json:"store_id" validate:"required"`
	ReturnShippingCents int64     `json:"return_shipping_cents,omitempty" validate:"gte=0"`
}

// DisputeInput is the store contesting a return.
type DisputeInput struct {
	ReturnID uuid.UUID `json:"return_id" validate:"required"`
	StoreID  uuid.UUID `json:"store_id" validate:"required"`
	Note     string    `json:"note,omitempty"`
}

// ResolveInput settles a disputed return. Fault store refunds the customer
// and charges the store; fault customer closes the return without a refund.
type ResolveInput struct {
	ReturnID            uuid.UUID `json:"return_id" validate:"required"`
	Fault               string    `json:"fault" validate:"required,oneof=customer store"`
	ReturnShippingCents int64     `json:"return_shipping_cents,omitempty" validate:"gte=0"`
}

// AutoRefundResult summarizes one unresponsive-store sweep run.
type AutoRefundResult struct {
	DisputesRefunded   int `json:"disputes_refunded"`
	ComplaintsRefunded int `json:"complaints_refunded"`
}
