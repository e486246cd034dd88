package enums

import "fmt"

// ReturnFault records which party a return is attributed to. Store-fault
// refunds charge the store's pending allocation; customer-fault refunds are
// settled purely from platform-held funds.
type ReturnFault string

const (
	ReturnFaultCustomer ReturnFault = "customer"
	ReturnFaultStore    ReturnFault = "store"
	ReturnFaultUnknown  ReturnFault = "unknown"
)

var validReturnFaults = []ReturnFault{
	ReturnFaultCustomer,
	ReturnFaultStore,
	ReturnFaultUnknown,
}

// IsValid reports whether the value is a known ReturnFault.
func (f ReturnFault) IsValid() bool {
	for _, candidate := range validReturnFaults {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseReturnFault converts raw input into a ReturnFault.
func ParseReturnFault(value string) (ReturnFault, error) {
	for _, candidate := range validReturnFaults {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return fault %q", value)
}
