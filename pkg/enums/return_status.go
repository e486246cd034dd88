package enums

import "fmt"

// ReturnStatus maps to the return_status enum in Postgres.
type ReturnStatus string

const (
	ReturnStatusPending      ReturnStatus = "pending"
	ReturnStatusApproved     ReturnStatus = "approved"
	ReturnStatusShipping     ReturnStatus = "shipping"
	ReturnStatusDispute      ReturnStatus = "dispute"
	ReturnStatusRefunded     ReturnStatus = "refunded"
	ReturnStatusRejected     ReturnStatus = "rejected"
	ReturnStatusAutoRefunded ReturnStatus = "auto_refunded"
	ReturnStatusCanceled     ReturnStatus = "canceled"
)

var validReturnStatuses = []ReturnStatus{
	ReturnStatusPending,
	ReturnStatusApproved,
	ReturnStatusShipping,
	ReturnStatusDispute,
	ReturnStatusRefunded,
	ReturnStatusRejected,
	ReturnStatusAutoRefunded,
	ReturnStatusCanceled,
}

// IsTerminal reports whether the return can no longer change state.
func (s ReturnStatus) IsTerminal() bool {
	switch s {
	case ReturnStatusRefunded, ReturnStatusRejected, ReturnStatusAutoRefunded, ReturnStatusCanceled:
		return true
	}
	return false
}

// BlocksPayout reports whether an open return in this state must keep the
// linked line item out of payout eligibility. Canceled and store-favorable
// terminal states do not block.
func (s ReturnStatus) BlocksPayout() bool {
	switch s {
	case ReturnStatusCanceled, ReturnStatusRejected:
		return false
	}
	return true
}

// IsValid reports whether the value is a known ReturnStatus.
func (s ReturnStatus) IsValid() bool {
	for _, candidate := range validReturnStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseReturnStatus converts raw input into a ReturnStatus.
func ParseReturnStatus(value string) (ReturnStatus, error) {
	for _, candidate := range validReturnStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return status %q", value)
}
