package enums

import "fmt"

// StoreOrderStatus tracks the lifecycle of a per-store sub-order.
type StoreOrderStatus string

const (
	StoreOrderStatusAwaitingShipment StoreOrderStatus = "awaiting_shipment"
	StoreOrderStatusCancelRequested  StoreOrderStatus = "cancel_requested"
	StoreOrderStatusShipping         StoreOrderStatus = "shipping"
	StoreOrderStatusDelivered        StoreOrderStatus = "delivered"
	StoreOrderStatusCancelled        StoreOrderStatus = "cancelled"
	StoreOrderStatusCompleted        StoreOrderStatus = "completed"
)

var validStoreOrderStatuses = []StoreOrderStatus{
	StoreOrderStatusAwaitingShipment,
	StoreOrderStatusCancelRequested,
	StoreOrderStatusShipping,
	StoreOrderStatusDelivered,
	StoreOrderStatusCancelled,
	StoreOrderStatusCompleted,
}

// String implements fmt.Stringer.
func (s StoreOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StoreOrderStatus.
func (s StoreOrderStatus) IsValid() bool {
	for _, candidate := range validStoreOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStoreOrderStatus converts raw input into a StoreOrderStatus.
func ParseStoreOrderStatus(value string) (StoreOrderStatus, error) {
	for _, candidate := range validStoreOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid store order status %q", value)
}
