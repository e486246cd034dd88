package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/duchuyngn/muaban-backend/api/responses"
	"github.com/duchuyngn/muaban-backend/api/validators"
	"github.com/duchuyngn/muaban-backend/internal/payouts"
	"github.com/duchuyngn/muaban-backend/pkg/db/models"
	pkgerrors "github.com/duchuyngn/muaban-backend/pkg/errors"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
)

type payoutBillService interface {
	CreateBillForStore(ctx context.Context, storeID uuid.UUID) (*models.PayoutBill, error)
	GetOrCreateBillForStore(ctx context.Context, storeID uuid.UUID) (*models.PayoutBill, error)
	ListBillsForStore(ctx context.Context, storeID uuid.UUID) ([]models.PayoutBill, error)
	MarkBillPaid(ctx context.Context, billID uuid.UUID, input payouts.PayBillInput) (*models.PayoutBill, error)
}

type payBillRequest struct {
	Reference  string `json:"reference" validate:"required,max=200"`
	ReceiptURL string `json:"receipt_url" validate:"omitempty,url"`
	Note       string `json:"note" validate:"omitempty,max=500"`
}

// AdminCreatePayoutBill freezes a store's current payables into a new bill.
func AdminCreatePayoutBill(svc payoutBillService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		storeID, err := pathUUID(r, "storeId", "store id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bill, err := svc.CreateBillForStore(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, bill)
	}
}

// AdminOpenPayoutBill returns the store's open bill, creating one when the
// store has payables and no open bill yet.
func AdminOpenPayoutBill(svc payoutBillService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		storeID, err := pathUUID(r, "storeId", "store id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bill, err := svc.GetOrCreateBillForStore(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bill)
	}
}

// AdminListPayoutBills lists every bill ever cut for a store, newest first.
func AdminListPayoutBills(svc payoutBillService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		storeID, err := pathUUID(r, "storeId", "store id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bills, err := svc.ListBillsForStore(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"bills": bills})
	}
}

// AdminPayPayoutBill records an external disbursement against a pending bill
// and flips every billed item and fee to paid.
func AdminPayPayoutBill(svc payoutBillService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		billID, err := pathUUID(r, "billId", "bill id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload payBillRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bill, err := svc.MarkBillPaid(r.Context(), billID, payouts.PayBillInput{
			Reference:  payload.Reference,
			ReceiptURL: payload.ReceiptURL,
			Note:       payload.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bill)
	}
}
