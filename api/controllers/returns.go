package controllers

import (
	"context"
	"net/http"

	"github.com/duchuyngn/muaban-backend/api/responses"
	"github.com/duchuyngn/muaban-backend/api/validators"
	"github.com/duchuyngn/muaban-backend/internal/returns"
	pkgerrors "github.com/duchuyngn/muaban-backend/pkg/errors"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
)

type returnsService interface {
	ShopReceive(ctx context.Context, input returns.ReceiveInput) error
	ShopDispute(ctx context.Context, input returns.DisputeInput) error
	ResolveDispute(ctx context.Context, input returns.ResolveInput) error
}

type returnReceiveRequest struct {
	ReturnShippingCents int64 `json:"return_shipping_cents" validate:"gte=0"`
}

type returnDisputeRequest struct {
	Note string `json:"note" validate:"omitempty,max=500"`
}

type returnResolveRequest struct {
	Fault               string `json:"fault" validate:"required,oneof=customer store"`
	ReturnShippingCents int64  `json:"return_shipping_cents" validate:"gte=0"`
}

// ReturnReceive is the store confirming the returned goods arrived. The
// customer refund runs inside the call.
func ReturnReceive(svc returnsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}

		storeID, err := activeStoreID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		returnID, err := pathUUID(r, "returnId", "return id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload returnReceiveRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		input := returns.ReceiveInput{
			ReturnID:            returnID,
			StoreID:             storeID,
			ReturnShippingCents: payload.ReturnShippingCents,
		}
		if err := svc.ShopReceive(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// ReturnDispute is the store contesting an open return.
func ReturnDispute(svc returnsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}

		storeID, err := activeStoreID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		returnID, err := pathUUID(r, "returnId", "return id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload returnDisputeRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		input := returns.DisputeInput{
			ReturnID: returnID,
			StoreID:  storeID,
			Note:     payload.Note,
		}
		if err := svc.ShopDispute(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, nil)
	}
}

// ReturnResolve settles a disputed return with an admin fault ruling.
func ReturnResolve(svc returnsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}

		returnID, err := pathUUID(r, "returnId", "return id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload returnResolveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := returns.ResolveInput{
			ReturnID:            returnID,
			Fault:               payload.Fault,
			ReturnShippingCents: payload.ReturnShippingCents,
		}
		if err := svc.ResolveDispute(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
