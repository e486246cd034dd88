package cron

import (
	"context"
	"fmt"

	"github.com/duchuyngn/muaban-backend/internal/eligibility"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
)

// EligibilitySweepJobParams configures the scheduled payout eligibility sweep.
type EligibilitySweepJobParams struct {
	Logger      *logger.Logger
	Eligibility eligibilitySweeper
}

type eligibilitySweeper interface {
	RunSweep(ctx context.Context) (*eligibility.SweepResult, error)
}

// NewEligibilitySweepJob constructs the eligibility sweep cron job.
func NewEligibilitySweepJob(params EligibilitySweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Eligibility == nil {
		return nil, fmt.Errorf("eligibility service required")
	}
	return &eligibilitySweepJob{
		logg:    params.Logger,
		sweeper: params.Eligibility,
	}, nil
}

type eligibilitySweepJob struct {
	logg    *logger.Logger
	sweeper eligibilitySweeper
}

func (j *eligibilitySweepJob) Name() string { return "eligibility-sweep" }

// Run executes one sweep pass. The sweep isolates per-item failures itself;
// a non-nil error here means some items failed, not that the pass aborted.
func (j *eligibilitySweepJob) Run(ctx context.Context) error {
	result, err := j.sweeper.RunSweep(ctx)
	if result != nil {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"backfilled":  result.Backfilled,
			"flagged":     result.Flagged,
			"promoted":    result.Promoted,
			"quarantined": result.Quarantined,
			"released":    len(result.Released),
		})
		j.logg.Info(logCtx, "eligibility sweep pass complete")
	}
	if err != nil {
		return fmt.Errorf("eligibility sweep: %w", err)
	}
	return nil
}
