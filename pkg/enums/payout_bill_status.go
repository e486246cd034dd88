package enums

import "fmt"

// PayoutBillStatus maps to the payout_bill_status enum in Postgres. A bill
// moves pending -> paid exactly once.
type PayoutBillStatus string

const (
	PayoutBillStatusPending PayoutBillStatus = "pending"
	PayoutBillStatusPaid    PayoutBillStatus = "paid"
)

var validPayoutBillStatuses = []PayoutBillStatus{
	PayoutBillStatusPending,
	PayoutBillStatusPaid,
}

// IsValid reports whether the value is a known PayoutBillStatus.
func (s PayoutBillStatus) IsValid() bool {
	for _, candidate := range validPayoutBillStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePayoutBillStatus converts raw input into a PayoutBillStatus.
func ParsePayoutBillStatus(value string) (PayoutBillStatus, error) {
	for _, candidate := range validPayoutBillStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout bill status %q", value)
}
