package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/duchuyngn/muaban-backend/internal/returns"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
)

func TestAutoRefundJobRunsSweep(t *testing.T) {
	refunder := &fakeAutoRefunder{result: &returns.AutoRefundResult{DisputesRefunded: 2, ComplaintsRefunded: 1}}
	job := newAutoRefundJob(t, refunder)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if refunder.called != 1 {
		t.Fatalf("expected returns called once, got %d", refunder.called)
	}
}

func TestAutoRefundJobPropagatesError(t *testing.T) {
	refunder := &fakeAutoRefunder{
		result: &returns.AutoRefundResult{},
		err:    errors.New("return x: boom"),
	}
	job := newAutoRefundJob(t, refunder)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newAutoRefundJob(t *testing.T, refunder *fakeAutoRefunder) Job {
	t.Helper()
	job, err := NewAutoRefundJob(AutoRefundJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Returns: refunder,
	})
	if err != nil {
		t.Fatalf("NewAutoRefundJob: %v", err)
	}
	return job
}

type fakeAutoRefunder struct {
	result *returns.AutoRefundResult
	err    error
	called int
}

func (f *fakeAutoRefunder) AutoRefundUnresponsive(ctx context.Context) (*returns.AutoRefundResult, error) {
	f.called++
	return f.result, f.err
}
