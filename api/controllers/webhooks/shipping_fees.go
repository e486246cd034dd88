package webhooks

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/duchuyngn/muaban-backend/api/responses"
	"github.com/duchuyngn/muaban-backend/internal/orders"
	pkgerrors "github.com/duchuyngn/muaban-backend/pkg/errors"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
)

type shippingFeeRecorder interface {
	RecordActualShippingFee(ctx context.Context, input orders.ShippingFeeInput) error
}

type shippingFeeEvent struct {
	StoreOrderID   uuid.UUID `json:"store_order_id"`
	ActualFeeCents int64     `json:"actual_fee_cents"`
}

// ShippingFeeWebhook receives the carrier's invoiced fee for a store order.
// Any amount above the estimate becomes a charge on the store's next payout
// bill.
func ShippingFeeWebhook(svc shippingFeeRecorder, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		payload, err := readSignedBody(r, secret)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var event shippingFeeEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode shipping fee event"))
			return
		}

		input := orders.ShippingFeeInput{
			StoreOrderID:   event.StoreOrderID,
			ActualFeeCents: event.ActualFeeCents,
		}
		if err := svc.RecordActualShippingFee(ctx, input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		logCtx := logg.WithField(ctx, "store_order_id", event.StoreOrderID.String())
		logg.Info(logCtx, "shipping fee webhook recorded")
		responses.WriteSuccess(w, nil)
	}
}
