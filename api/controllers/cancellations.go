package controllers

import (
	"context"
	"net/http"

	"github.com/duchuyngn/muaban-backend/api/responses"
	"github.com/duchuyngn/muaban-backend/api/validators"
	"github.com/duchuyngn/muaban-backend/internal/cancellations"
	pkgerrors "github.com/duchuyngn/muaban-backend/pkg/errors"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
)

type cancelService interface {
	CustomerCancelOrderIfPending(ctx context.Context, input cancellations.CancelOrderInput) error
	RequestStoreOrderCancel(ctx context.Context, input cancellations.RequestCancelInput) error
	ApproveCancel(ctx context.Context, input cancellations.ResolveCancelInput) error
	RejectCancel(ctx context.Context, input cancellations.ResolveCancelInput) error
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

type cancelRequestRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type cancelResolveRequest struct {
	Note string `json:"note" validate:"omitempty,max=500"`
}

// CancelOrder lets the paying customer cancel a whole order while it is
// still pending, reversing any captured payment.
func CancelOrder(svc cancelService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cancellation service unavailable"))
			return
		}

		customerID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelOrderRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		input := cancellations.CancelOrderInput{
			OrderID:    orderID,
			CustomerID: customerID,
			Reason:     payload.Reason,
		}
		if err := svc.CustomerCancelOrderIfPending(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// StoreOrderCancelRequest records a customer's cancel request against one
// store order that is still awaiting shipment.
func StoreOrderCancelRequest(svc cancelService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cancellation service unavailable"))
			return
		}

		customerID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		storeOrderID, err := pathUUID(r, "storeOrderId", "store order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelRequestRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := cancellations.RequestCancelInput{
			StoreOrderID: storeOrderID,
			CustomerID:   customerID,
			Reason:       payload.Reason,
		}
		if err := svc.RequestStoreOrderCancel(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, nil)
	}
}

// StoreOrderCancelApprove lets the owning store accept a pending cancel
// request, refunding the customer.
func StoreOrderCancelApprove(svc cancelService, logg *logger.Logger) http.HandlerFunc {
	return resolveCancel(svc, logg, func(ctx context.Context, svc cancelService, input cancellations.ResolveCancelInput) error {
		return svc.ApproveCancel(ctx, input)
	})
}

// StoreOrderCancelReject lets the owning store decline a pending cancel
// request and put the store order back in the shipment queue.
func StoreOrderCancelReject(svc cancelService, logg *logger.Logger) http.HandlerFunc {
	return resolveCancel(svc, logg, func(ctx context.Context, svc cancelService, input cancellations.ResolveCancelInput) error {
		return svc.RejectCancel(ctx, input)
	})
}

func resolveCancel(svc cancelService, logg *logger.Logger, resolve func(context.Context, cancelService, cancellations.ResolveCancelInput) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cancellation service unavailable"))
			return
		}

		storeID, err := activeStoreID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		storeOrderID, err := pathUUID(r, "storeOrderId", "store order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelResolveRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		input := cancellations.ResolveCancelInput{
			StoreOrderID: storeOrderID,
			StoreID:      storeID,
			Note:         payload.Note,
		}
		if err := resolve(r.Context(), svc, input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
