package cron

import (
	"context"
	"fmt"

	"github.com/duchuyngn/muaban-backend/internal/returns"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
)

// AutoRefundJobParams configures the unresponsive-store refund sweep.
type AutoRefundJobParams struct {
	Logger  *logger.Logger
	Returns autoRefunder
}

type autoRefunder interface {
	AutoRefundUnresponsive(ctx context.Context) (*returns.AutoRefundResult, error)
}

// NewAutoRefundJob constructs the auto-refund cron job.
func NewAutoRefundJob(params AutoRefundJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Returns == nil {
		return nil, fmt.Errorf("returns service required")
	}
	return &autoRefundJob{
		logg:    params.Logger,
		returns: params.Returns,
	}, nil
}

type autoRefundJob struct {
	logg    *logger.Logger
	returns autoRefunder
}

func (j *autoRefundJob) Name() string { return "auto-refund" }

func (j *autoRefundJob) Run(ctx context.Context) error {
	result, err := j.returns.AutoRefundUnresponsive(ctx)
	if result != nil {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"disputes_refunded":   result.DisputesRefunded,
			"complaints_refunded": result.ComplaintsRefunded,
		})
		j.logg.Info(logCtx, "auto refund pass complete")
	}
	if err != nil {
		return fmt.Errorf("auto refund: %w", err)
	}
	return nil
}
