package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/duchuyngn/muaban-backend/pkg/logger"
)

// AutoBillJobParams configures the periodic payout bill creation pass.
type AutoBillJobParams struct {
	Logger  *logger.Logger
	Payouts billCreator
}

type billCreator interface {
	AutoCreateBillsForAllStores(ctx context.Context) ([]uuid.UUID, error)
}

// NewAutoBillJob constructs the auto-billing cron job.
func NewAutoBillJob(params AutoBillJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payouts service required")
	}
	return &autoBillJob{
		logg:    params.Logger,
		payouts: params.Payouts,
	}, nil
}

type autoBillJob struct {
	logg    *logger.Logger
	payouts billCreator
}

func (j *autoBillJob) Name() string { return "auto-bill" }

func (j *autoBillJob) Run(ctx context.Context) error {
	billIDs, err := j.payouts.AutoCreateBillsForAllStores(ctx)
	logCtx := j.logg.WithFields(ctx, map[string]any{"open_bills": len(billIDs)})
	j.logg.Info(logCtx, "auto billing pass complete")
	if err != nil {
		return fmt.Errorf("auto billing: %w", err)
	}
	return nil
}
