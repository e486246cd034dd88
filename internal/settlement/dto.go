package settlement

import "github.com/google/uuid"

// PaymentInput carries a confirmed payment event from the gateway webhook.
// AmountCents is the amount actually captured, after any discount.
type PaymentInput struct {
	CustomerID  uuid.UUID
	OrderID     uuid.UUID
	AmountCents int64
	Reference   string
}
