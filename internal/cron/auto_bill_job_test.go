package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/duchuyngn/muaban-backend/pkg/logger"
)

func TestAutoBillJobCreatesBills(t *testing.T) {
	creator := &fakeBillCreator{billIDs: []uuid.UUID{uuid.New(), uuid.New()}}
	job := newAutoBillJob(t, creator)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if creator.called != 1 {
		t.Fatalf("expected payouts called once, got %d", creator.called)
	}
}

func TestAutoBillJobPropagatesError(t *testing.T) {
	creator := &fakeBillCreator{err: errors.New("store x: boom")}
	job := newAutoBillJob(t, creator)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newAutoBillJob(t *testing.T, creator *fakeBillCreator) Job {
	t.Helper()
	job, err := NewAutoBillJob(AutoBillJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Payouts: creator,
	})
	if err != nil {
		t.Fatalf("NewAutoBillJob: %v", err)
	}
	return job
}

type fakeBillCreator struct {
	billIDs []uuid.UUID
	err     error
	called  int
}

func (f *fakeBillCreator) AutoCreateBillsForAllStores(ctx context.Context) ([]uuid.UUID, error) {
	f.called++
	return f.billIDs, f.err
}
