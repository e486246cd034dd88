package webhooks

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/duchuyngn/muaban-backend/api/responses"
	"github.com/duchuyngn/muaban-backend/internal/returns"
	"github.com/duchuyngn/muaban-backend/pkg/db/models"
	pkgerrors "github.com/duchuyngn/muaban-backend/pkg/errors"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
)

type returnOpener interface {
	CreateReturnRequest(ctx context.Context, input returns.CreateReturnInput) (*models.ReturnRequest, error)
}

type returnEvent struct {
	LineItemID uuid.UUID `json:"line_item_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	Reason     string    `json:"reason"`
}

// ReturnWebhook receives a complaint opened in the returns portal and
// registers the return request against the line item.
func ReturnWebhook(svc returnOpener, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}

		payload, err := readSignedBody(r, secret)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var event returnEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode return event"))
			return
		}

		request, err := svc.CreateReturnRequest(ctx, returns.CreateReturnInput{
			LineItemID: event.LineItemID,
			CustomerID: event.CustomerID,
			Reason:     event.Reason,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		logCtx := logg.WithField(ctx, "return_id", request.ID.String())
		logg.Info(logCtx, "return webhook opened request")
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"return_id": request.ID})
	}
}
