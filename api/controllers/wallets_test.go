package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/duchuyngn/muaban-backend/api/middleware"
	"github.com/duchuyngn/muaban-backend/internal/wallets"
	"github.com/duchuyngn/muaban-backend/pkg/db/models"
	"github.com/duchuyngn/muaban-backend/pkg/enums"
	"github.com/duchuyngn/muaban-backend/pkg/pagination"
)

type testWalletReader struct {
	snapshotFn func(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (*wallets.BalanceSnapshot, error)
	listFn     func(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind, params pagination.Params) ([]models.WalletTransaction, string, error)
}

func (s *testWalletReader) Snapshot(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (*wallets.BalanceSnapshot, error) {
	return s.snapshotFn(ctx, ownerID, kind)
}

func (s *testWalletReader) ListTransactions(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind, params pagination.Params) ([]models.WalletTransaction, string, error) {
	return s.listFn(ctx, ownerID, kind, params)
}

func TestWalletMeResolvesCustomerScope(t *testing.T) {
	userID := uuid.New()
	walletID := uuid.New()
	svc := &testWalletReader{
		snapshotFn: func(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (*wallets.BalanceSnapshot, error) {
			if ownerID != userID {
				t.Fatalf("expected owner %s got %s", userID, ownerID)
			}
			if kind != enums.WalletKindCustomer {
				t.Fatalf("expected customer wallet got %s", kind)
			}
			return &wallets.BalanceSnapshot{WalletID: walletID, OwnerID: ownerID, Kind: kind}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallets/me", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	resp := httptest.NewRecorder()
	WalletMe(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data wallets.BalanceSnapshot `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.WalletID != walletID {
		t.Fatalf("expected wallet %s got %s", walletID, envelope.Data.WalletID)
	}
}

func TestWalletMeResolvesStoreScope(t *testing.T) {
	userID := uuid.New()
	storeID := uuid.New()
	svc := &testWalletReader{
		snapshotFn: func(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (*wallets.BalanceSnapshot, error) {
			if ownerID != storeID {
				t.Fatalf("expected owner %s got %s", storeID, ownerID)
			}
			if kind != enums.WalletKindStore {
				t.Fatalf("expected store wallet got %s", kind)
			}
			return &wallets.BalanceSnapshot{WalletID: uuid.New(), OwnerID: ownerID, Kind: kind}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallets/me", nil)
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithStoreID(ctx, storeID.String())
	req = req.WithContext(ctx)
	resp := httptest.NewRecorder()
	WalletMe(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestWalletMeRequiresIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallets/me", nil)
	resp := httptest.NewRecorder()
	WalletMe(&testWalletReader{}, testLogger(t))(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestWalletTransactionsRejectsForeignWallet(t *testing.T) {
	userID := uuid.New()
	svc := &testWalletReader{
		snapshotFn: func(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (*wallets.BalanceSnapshot, error) {
			return &wallets.BalanceSnapshot{WalletID: uuid.New(), OwnerID: ownerID, Kind: kind}, nil
		},
	}

	foreign := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallets/"+foreign.String()+"/transactions", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	req = addRouteParam(req, "walletId", foreign.String())
	resp := httptest.NewRecorder()
	WalletTransactions(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestWalletTransactionsReturnsPage(t *testing.T) {
	userID := uuid.New()
	walletID := uuid.New()
	rows := []models.WalletTransaction{
		{
			ID:                uuid.New(),
			WalletID:          walletID,
			Kind:              enums.TxnKindRelease,
			Bucket:            enums.BucketAvailable,
			AmountCents:       9500,
			BalanceAfterCents: 9500,
			Description:       "payout released",
			CreatedAt:         time.Now().UTC(),
		},
	}
	svc := &testWalletReader{
		snapshotFn: func(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (*wallets.BalanceSnapshot, error) {
			return &wallets.BalanceSnapshot{WalletID: walletID, OwnerID: ownerID, Kind: kind}, nil
		},
		listFn: func(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind, params pagination.Params) ([]models.WalletTransaction, string, error) {
			if params.Limit != 10 {
				t.Fatalf("expected limit 10 got %d", params.Limit)
			}
			if params.Cursor != "abc" {
				t.Fatalf("expected cursor abc got %q", params.Cursor)
			}
			return rows, "next", nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallets/"+walletID.String()+"/transactions?limit=10&cursor=abc", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	req = addRouteParam(req, "walletId", walletID.String())
	resp := httptest.NewRecorder()
	WalletTransactions(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data walletTransactionsResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(envelope.Data.Transactions) != 1 {
		t.Fatalf("expected 1 row got %d", len(envelope.Data.Transactions))
	}
	if envelope.Data.NextCursor != "next" {
		t.Fatalf("expected next cursor got %q", envelope.Data.NextCursor)
	}
	if envelope.Data.Transactions[0].AmountCents != 9500 {
		t.Fatalf("unexpected amount %d", envelope.Data.Transactions[0].AmountCents)
	}
}
