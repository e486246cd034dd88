package controllers

import (
	"context"
	"net/http"

	"github.com/duchuyngn/muaban-backend/api/responses"
	"github.com/duchuyngn/muaban-backend/internal/eligibility"
	pkgerrors "github.com/duchuyngn/muaban-backend/pkg/errors"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
)

type eligibilitySweeper interface {
	RunSweep(ctx context.Context) (*eligibility.SweepResult, error)
}

// AdminRunEligibilitySweep triggers the payout-eligibility sweep on demand,
// outside the cron cadence.
func AdminRunEligibilitySweep(svc eligibilitySweeper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "eligibility service unavailable"))
			return
		}

		result, err := svc.RunSweep(r.Context())
		if err != nil {
			// A partial sweep still promoted items; report what ran.
			if result != nil {
				ctx := logg.WithField(r.Context(), "promoted", result.Promoted)
				logg.Warn(ctx, "eligibility sweep finished with item errors")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
