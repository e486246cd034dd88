package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/duchuyngn/muaban-backend/api/middleware"
	"github.com/duchuyngn/muaban-backend/api/responses"
	"github.com/duchuyngn/muaban-backend/api/validators"
	"github.com/duchuyngn/muaban-backend/internal/wallets"
	"github.com/duchuyngn/muaban-backend/pkg/db/models"
	"github.com/duchuyngn/muaban-backend/pkg/enums"
	pkgerrors "github.com/duchuyngn/muaban-backend/pkg/errors"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
	"github.com/duchuyngn/muaban-backend/pkg/pagination"
)

type walletReader interface {
	Snapshot(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (*wallets.BalanceSnapshot, error)
	ListTransactions(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind, params pagination.Params) ([]models.WalletTransaction, string, error)
}

// WalletMe returns the caller's wallet snapshot. Store operators see their
// store wallet, admins the shared platform wallet, everyone else their
// customer wallet.
func WalletMe(svc walletReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		ownerID, kind, err := walletScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.Snapshot(r.Context(), ownerID, kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// WalletTransactions pages through one wallet's ledger rows, newest first.
// The path wallet id must match the wallet the caller's scope resolves to.
func WalletTransactions(svc walletReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		walletID, err := pathUUID(r, "walletId", "wallet id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ownerID, kind, err := walletScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.Snapshot(r.Context(), ownerID, kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if snapshot.WalletID != walletID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "wallet does not belong to caller"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		rows, next, err := svc.ListTransactions(r.Context(), ownerID, kind, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := walletTransactionsResponse{
			WalletID:     walletID,
			Transactions: make([]walletTransactionRow, 0, len(rows)),
			NextCursor:   next,
		}
		for _, row := range rows {
			out.Transactions = append(out.Transactions, walletTransactionRow{
				ID:                row.ID,
				OrderID:           row.OrderID,
				Kind:              row.Kind,
				Bucket:            row.Bucket,
				AmountCents:       row.AmountCents,
				BalanceAfterCents: row.BalanceAfterCents,
				Description:       row.Description,
				CreatedAt:         row.CreatedAt,
			})
		}
		responses.WriteSuccess(w, out)
	}
}

// walletScope resolves which wallet the JWT context is allowed to read.
func walletScope(r *http.Request) (uuid.UUID, enums.WalletKind, error) {
	if middleware.RoleFromContext(r.Context()) == string(enums.ActorRoleAdmin) {
		return wallets.PlatformOwnerID, enums.WalletKindPlatform, nil
	}
	if middleware.StoreIDFromContext(r.Context()) != "" {
		storeID, err := activeStoreID(r)
		if err != nil {
			return uuid.Nil, "", err
		}
		return storeID, enums.WalletKindStore, nil
	}
	userID, err := actorUserID(r)
	if err != nil {
		return uuid.Nil, "", err
	}
	return userID, enums.WalletKindCustomer, nil
}

type walletTransactionsResponse struct {
	WalletID     uuid.UUID              `json:"wallet_id"`
	Transactions []walletTransactionRow `json:"transactions"`
	NextCursor   string                 `json:"next_cursor,omitempty"`
}

type walletTransactionRow struct {
	ID                uuid.UUID                   `json:"id"`
	OrderID           *uuid.UUID                  `json:"order_id,omitempty"`
	Kind              enums.WalletTransactionKind `json:"kind"`
	Bucket            enums.WalletBucket          `json:"bucket"`
	AmountCents       int64                       `json:"amount_cents"`
	BalanceAfterCents int64                       `json:"balance_after_cents"`
	Description       string                      `json:"description"`
	CreatedAt         time.Time                   `json:"created_at"`
}
