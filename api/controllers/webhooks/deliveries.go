package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/duchuyngn/muaban-backend/api/responses"
	"github.com/duchuyngn/muaban-backend/internal/orders"
	pkgerrors "github.com/duchuyngn/muaban-backend/pkg/errors"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
)

type deliveryConfirmer interface {
	ConfirmDelivery(ctx context.Context, input orders.DeliveryInput) error
}

type deliveryEvent struct {
	StoreOrderID uuid.UUID `json:"store_order_id"`
	DeliveredAt  time.Time `json:"delivered_at"`
}

// DeliveryWebhook receives the carrier's delivered confirmation. The
// delivered timestamp starts the payout hold window for every line item on
// the store order.
func DeliveryWebhook(svc deliveryConfirmer, secret string, logg *logger.Logger) http.HandlerFunc {
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

		var event deliveryEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode delivery event"))
			return
		}
		if event.DeliveredAt.IsZero() {
			event.DeliveredAt = time.Now().UTC()
		}

		input := orders.DeliveryInput{
			StoreOrderID: event.StoreOrderID,
			DeliveredAt:  event.DeliveredAt,
		}
		if err := svc.ConfirmDelivery(ctx, input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		logCtx := logg.WithField(ctx, "store_order_id", event.StoreOrderID.String())
		logg.Info(logCtx, "delivery webhook recorded")
		responses.WriteSuccess(w, nil)
	}
}
