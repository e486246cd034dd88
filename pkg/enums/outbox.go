package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder         OutboxAggregateType = "order"
	AggregateStoreOrder    OutboxAggregateType = "store_order"
	AggregateWallet        OutboxAggregateType = "wallet"
	AggregatePayoutBill    OutboxAggregateType = "payout_bill"
	AggregateReturnRequest OutboxAggregateType = "return_request"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateStoreOrder,
	AggregateWallet,
	AggregatePayoutBill,
	AggregateReturnRequest,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventSettlementHeld       OutboxEventType = "settlement_held"
	EventSettlementReleased   OutboxEventType = "settlement_released"
	EventOrderRefunded        OutboxEventType = "order_refunded"
	EventStoreOrderRefunded   OutboxEventType = "store_order_refunded"
	EventOrderCancelled       OutboxEventType = "order_cancelled"
	EventStoreOrderCancelled  OutboxEventType = "store_order_cancelled"
	EventItemEligible         OutboxEventType = "item_payout_eligible"
	EventPayoutBillCreated    OutboxEventType = "payout_bill_created"
	EventPayoutBillPaid       OutboxEventType = "payout_bill_paid"
	EventReturnAutoRefunded   OutboxEventType = "return_auto_refunded"
	EventSweepItemQuarantined OutboxEventType = "sweep_item_quarantined"
)

var validOutboxEventTypes = []OutboxEventType{
	EventSettlementHeld,
	EventSettlementReleased,
	EventOrderRefunded,
	EventStoreOrderRefunded,
	EventOrderCancelled,
	EventStoreOrderCancelled,
	EventItemEligible,
	EventPayoutBillCreated,
	EventPayoutBillPaid,
	EventReturnAutoRefunded,
	EventSweepItemQuarantined,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
