package payouts

// PayBillInput carries the operator-supplied payment metadata recorded when a
// bill is settled with the store.
type PayBillInput struct {
	Reference  string `json:"reference" validate:"required"`
	ReceiptURL string `json:"receipt_url,omitempty" validate:"omitempty,url"`
	Note       string `json:"note,omitempty"`
}
