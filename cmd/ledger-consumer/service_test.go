package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/duchuyngn/muaban-backend/pkg/logger"
	"github.com/duchuyngn/muaban-backend/pkg/outbox"
	"github.com/duchuyngn/muaban-backend/pkg/outbox/payloads"
	"github.com/duchuyngn/muaban-backend/pkg/outbox/registry"
)

type fakeGuard struct {
	processed map[uuid.UUID]bool
	checkErr  error
	checked   []uuid.UUID
	deleted   []uuid.UUID
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{processed: make(map[uuid.UUID]bool)}
}

func (g *fakeGuard) CheckAndMarkProcessed(_ context.Context, _ string, eventID uuid.UUID) (bool, error) {
	if g.checkErr != nil {
		return false, g.checkErr
	}
	g.checked = append(g.checked, eventID)
	if g.processed[eventID] {
		return true, nil
	}
	g.processed[eventID] = true
	return false, nil
}

func (g *fakeGuard) Delete(_ context.Context, _ string, eventID uuid.UUID) error {
	g.deleted = append(g.deleted, eventID)
	delete(g.processed, eventID)
	return nil
}

func newTestService(t *testing.T, guard idempotencyGuard) *Service {
	t.Helper()
	logg := logger.New(logger.Options{
		ServiceName: "ledger-consumer-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Logger:       logg,
		Idempotency:  guard,
		Decoders:     newLedgerDecoders(),
		Subscription: noopSubscriber{},
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

type noopSubscriber struct{}

func (noopSubscriber) Receive(context.Context, func(context.Context, *gcppubsub.Message)) error {
	return nil
}

func mustSettlementHeldMessage(t *testing.T, eventID uuid.UUID, version int) ([]byte, map[string]string) {
	t.Helper()
	data, err := json.Marshal(payloads.SettlementHeldEvent{
		OrderID:          uuid.New(),
		CustomerID:       uuid.New(),
		GrossCents:       15000,
		PlatformFeeCents: 750,
		HeldAt:           time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    version,
		EventID:    eventID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	attrs := map[string]string{
		"event_id":   eventID.String(),
		"event_type": "settlement_held",
	}
	return envelope, attrs
}

func TestHandleProcessesEventOnce(t *testing.T) {
	guard := newFakeGuard()
	service := newTestService(t, guard)
	eventID := uuid.New()
	data, attrs := mustSettlementHeldMessage(t, eventID, 1)

	if err := service.Handle(context.Background(), data, attrs); err != nil {
		t.Fatalf("first delivery returned error: %v", err)
	}
	if err := service.Handle(context.Background(), data, attrs); err != nil {
		t.Fatalf("redelivery returned error: %v", err)
	}
	if got := len(guard.checked); got != 2 {
		t.Fatalf("unexpected idempotency checks: %d", got)
	}
	if !guard.processed[eventID] {
		t.Fatalf("event not marked processed")
	}
}

func TestHandleRejectsUnknownEventType(t *testing.T) {
	guard := newFakeGuard()
	service := newTestService(t, guard)
	data, attrs := mustSettlementHeldMessage(t, uuid.New(), 1)
	attrs["event_type"] = "price_drop"

	err := service.Handle(context.Background(), data, attrs)
	var nonRetry registry.NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
	if len(guard.checked) != 0 {
		t.Fatalf("idempotency consulted for an invalid message")
	}
}

func TestHandleUnregisteredVersionUnmarksAndDrops(t *testing.T) {
	guard := newFakeGuard()
	service := newTestService(t, guard)
	eventID := uuid.New()
	data, attrs := mustSettlementHeldMessage(t, eventID, 2)

	err := service.Handle(context.Background(), data, attrs)
	var nonRetry registry.NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
	if len(guard.deleted) != 1 || guard.deleted[0] != eventID {
		t.Fatalf("processed marker not cleared: %v", guard.deleted)
	}
	if guard.processed[eventID] {
		t.Fatalf("event still marked processed after decode failure")
	}
}

func TestHandleIdempotencyErrorIsRetryable(t *testing.T) {
	guard := newFakeGuard()
	guard.checkErr = errors.New("redis down")
	service := newTestService(t, guard)
	data, attrs := mustSettlementHeldMessage(t, uuid.New(), 1)

	err := service.Handle(context.Background(), data, attrs)
	if err == nil {
		t.Fatalf("expected error")
	}
	var nonRetry registry.NonRetryableError
	if errors.As(err, &nonRetry) {
		t.Fatalf("idempotency failure must stay retryable: %v", err)
	}
}

func TestHandleRejectsMalformedEnvelope(t *testing.T) {
	guard := newFakeGuard()
	service := newTestService(t, guard)

	err := service.Handle(context.Background(), []byte("{"), map[string]string{"event_type": "settlement_held"})
	var nonRetry registry.NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}
