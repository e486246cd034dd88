package webhooks

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/duchuyngn/muaban-backend/api/responses"
	"github.com/duchuyngn/muaban-backend/internal/settlement"
	pkgerrors "github.com/duchuyngn/muaban-backend/pkg/errors"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
)

type paymentSettler interface {
	SettlePayment(ctx context.Context, input settlement.PaymentInput) error
}

type paymentEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	AmountCents int64     `json:"amount_cents"`
	Reference   string    `json:"reference"`
}

// PaymentWebhook receives the provider's capture confirmation and settles
// the order into the wallet ledger. Provider retries replay safely: every
// ledger movement behind SettlePayment is dedup-keyed by order.
func PaymentWebhook(svc paymentSettler, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		payload, err := readSignedBody(r, secret)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var event paymentEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment event"))
			return
		}

		input := settlement.PaymentInput{
			OrderID:     event.OrderID,
			CustomerID:  event.CustomerID,
			AmountCents: event.AmountCents,
			Reference:   event.Reference,
		}
		if err := svc.SettlePayment(ctx, input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		logCtx := logg.WithOrderID(ctx, event.OrderID.String())
		logg.Info(logCtx, "payment webhook settled")
		responses.WriteSuccess(w, nil)
	}
}
