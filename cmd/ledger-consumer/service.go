package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/duchuyngn/muaban-backend/pkg/enums"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
	"github.com/duchuyngn/muaban-backend/pkg/outbox"
	"github.com/duchuyngn/muaban-backend/pkg/outbox/payloads"
	"github.com/duchuyngn/muaban-backend/pkg/outbox/registry"
)

const (
	consumerName = "ledger-consumer"

	// Processed markers outlive the subscription's retention window so a
	// redelivered message is always recognized.
	processedTTL = 14 * 24 * time.Hour
)

type idempotencyGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type payloadDecoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error)
}

type subscriber interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type ServiceParams struct {
	Logger       *logger.Logger
	Idempotency  idempotencyGuard
	Decoders     payloadDecoder
	Subscription subscriber
}

// Service consumes the ledger event stream and writes the audit trail. Each
// event is processed at most once per consumer name; poison messages are
// acked away instead of looping through redelivery.
type Service struct {
	logg     *logger.Logger
	idem     idempotencyGuard
	decoders payloadDecoder
	sub      subscriber
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Idempotency == nil {
		return nil, errors.New("idempotency guard is required")
	}
	if params.Decoders == nil {
		return nil, errors.New("decoder registry is required")
	}
	if params.Subscription == nil {
		return nil, errors.New("subscription is required")
	}
	return &Service{
		logg:     params.Logger,
		idem:     params.Idempotency,
		decoders: params.Decoders,
		sub:      params.Subscription,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	return s.sub.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if err := s.Handle(ctx, msg.Data, msg.Attributes); err != nil {
			logCtx := s.logg.WithFields(ctx, attributeFields(msg.Attributes))
			logCtx = s.logg.WithField(logCtx, "error", err.Error())
			var nonRetry registry.NonRetryableError
			if errors.As(err, &nonRetry) {
				s.logg.Warn(logCtx, "dropping undecodable ledger event")
				msg.Ack()
				return
			}
			s.logg.Warn(logCtx, "ledger event handling failed, will retry")
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Handle validates, deduplicates and records a single ledger event. A
// NonRetryableError means the message can never succeed and should be acked.
func (s *Service) Handle(ctx context.Context, data []byte, attrs map[string]string) error {
	eventType, err := enums.ParseOutboxEventType(attrs["event_type"])
	if err != nil {
		return registry.NewNonRetryableError(fmt.Errorf("event type attribute: %w", err))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return registry.NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return registry.NewNonRetryableError(fmt.Errorf("envelope event id: %w", err))
	}

	processed, err := s.idem.CheckAndMarkProcessed(ctx, consumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if processed {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event_id":   eventID.String(),
			"event_type": eventType,
		})
		s.logg.Info(logCtx, "ledger event already processed, skipping")
		return nil
	}

	decoded, err := s.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		// Unmark so a redelivery after a registry fix is not skipped.
		if delErr := s.idem.Delete(ctx, consumerName, eventID); delErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", delErr.Error()), "failed to clear processed marker")
		}
		return registry.NewNonRetryableError(fmt.Errorf("decode payload: %w", err))
	}

	fields := map[string]any{
		"event_id":    eventID.String(),
		"event_type":  eventType,
		"version":     envelope.Version,
		"occurred_at": envelope.OccurredAt.Format(time.RFC3339Nano),
	}
	for key, value := range eventFields(decoded) {
		fields[key] = value
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "ledger event recorded")
	return nil
}

// eventFields pulls the identifying references and money amounts out of a
// decoded payload for the audit line.
func eventFields(decoded interface{}) map[string]any {
	switch event := decoded.(type) {
	case *payloads.SettlementHeldEvent:
		return map[string]any{
			"order_id":           event.OrderID.String(),
			"gross_cents":        event.GrossCents,
			"platform_fee_cents": event.PlatformFeeCents,
		}
	case *payloads.SettlementReleasedEvent:
		return map[string]any{
			"order_id":    event.OrderID.String(),
			"store_count": len(event.StoreOrderIDs),
		}
	case *payloads.OrderRefundedEvent:
		return map[string]any{
			"order_id":     event.OrderID.String(),
			"refund_cents": event.RefundCents,
		}
	case *payloads.StoreOrderRefundedEvent:
		return map[string]any{
			"order_id":       event.OrderID.String(),
			"store_order_id": event.StoreOrderID.String(),
			"refund_cents":   event.RefundCents,
		}
	case *payloads.OrderCancelledEvent:
		return map[string]any{
			"order_id": event.OrderID.String(),
			"was_paid": event.WasPaid,
		}
	case *payloads.StoreOrderCancelledEvent:
		return map[string]any{
			"order_id":       event.OrderID.String(),
			"store_order_id": event.StoreOrderID.String(),
		}
	case *payloads.ItemPayoutEligibleEvent:
		return map[string]any{
			"line_item_id": event.LineItemID.String(),
			"store_id":     event.StoreID.String(),
		}
	case *payloads.PayoutBillCreatedEvent:
		return map[string]any{
			"bill_id":          event.BillID.String(),
			"store_id":         event.StoreID.String(),
			"net_payout_cents": event.NetPayoutCents,
		}
	case *payloads.PayoutBillPaidEvent:
		return map[string]any{
			"bill_id":          event.BillID.String(),
			"store_id":         event.StoreID.String(),
			"net_payout_cents": event.NetPayoutCents,
		}
	case *payloads.ReturnAutoRefundedEvent:
		return map[string]any{
			"return_request_id": event.ReturnRequestID.String(),
			"store_id":          event.StoreID.String(),
			"refund_cents":      event.RefundCents,
		}
	case *payloads.SweepItemQuarantinedEvent:
		return map[string]any{
			"line_item_id": event.LineItemID.String(),
			"attempts":     event.Attempts,
		}
	default:
		return nil
	}
}

func attributeFields(attrs map[string]string) map[string]any {
	fields := make(map[string]any, len(attrs))
	for key, value := range attrs {
		fields[key] = value
	}
	return fields
}

func decodeInto[T any]() func(json.RawMessage) (interface{}, error) {
	return func(payload json.RawMessage) (interface{}, error) {
		var out T
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}
}

// newLedgerDecoders registers the version-1 decoder for every ledger event.
func newLedgerDecoders() *registry.DecoderRegistry {
	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventSettlementHeld, 1, decodeInto[payloads.SettlementHeldEvent]())
	decoders.Register(enums.EventSettlementReleased, 1, decodeInto[payloads.SettlementReleasedEvent]())
	decoders.Register(enums.EventOrderRefunded, 1, decodeInto[payloads.OrderRefundedEvent]())
	decoders.Register(enums.EventStoreOrderRefunded, 1, decodeInto[payloads.StoreOrderRefundedEvent]())
	decoders.Register(enums.EventOrderCancelled, 1, decodeInto[payloads.OrderCancelledEvent]())
	decoders.Register(enums.EventStoreOrderCancelled, 1, decodeInto[payloads.StoreOrderCancelledEvent]())
	decoders.Register(enums.EventItemEligible, 1, decodeInto[payloads.ItemPayoutEligibleEvent]())
	decoders.Register(enums.EventPayoutBillCreated, 1, decodeInto[payloads.PayoutBillCreatedEvent]())
	decoders.Register(enums.EventPayoutBillPaid, 1, decodeInto[payloads.PayoutBillPaidEvent]())
	decoders.Register(enums.EventReturnAutoRefunded, 1, decodeInto[payloads.ReturnAutoRefundedEvent]())
	decoders.Register(enums.EventSweepItemQuarantined, 1, decodeInto[payloads.SweepItemQuarantinedEvent]())
	return decoders
}
