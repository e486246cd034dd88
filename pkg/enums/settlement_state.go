package enums

import "fmt"

// SettlementState tracks where an order's funds sit in the hold/release
// lifecycle. The state is authoritative: release and refund operations gate on
// it instead of inferring progress from the presence of transaction rows.
type SettlementState string

const (
	SettlementStateNone     SettlementState = "none"
	SettlementStateHeld     SettlementState = "held"
	SettlementStateReleased SettlementState = "released"
	SettlementStateRefunded SettlementState = "refunded"
)

var validSettlementStates = []SettlementState{
	SettlementStateNone,
	SettlementStateHeld,
	SettlementStateReleased,
	SettlementStateRefunded,
}

// IsValid reports whether the value is a known SettlementState.
func (s SettlementState) IsValid() bool {
	for _, candidate := range validSettlementStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSettlementState converts raw input into a SettlementState.
func ParseSettlementState(value string) (SettlementState, error) {
	for _, candidate := range validSettlementStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid settlement state %q", value)
}
