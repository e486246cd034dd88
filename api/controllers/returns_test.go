package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/duchuyngn/muaban-backend/api/middleware"
	"github.com/duchuyngn/muaban-backend/internal/returns"
)

type testReturnsService struct {
	receiveFn func(ctx context.Context, input returns.ReceiveInput) error
	disputeFn func(ctx context.Context, input returns.DisputeInput) error
	resolveFn func(ctx context.Context, input returns.ResolveInput) error
}

func (s *testReturnsService) ShopReceive(ctx context.Context, input returns.ReceiveInput) error {
	if s.receiveFn != nil {
		return s.receiveFn(ctx, input)
	}
	return nil
}

func (s *testReturnsService) ShopDispute(ctx context.Context, input returns.DisputeInput) error {
	if s.disputeFn != nil {
		return s.disputeFn(ctx, input)
	}
	return nil
}

func (s *testReturnsService) ResolveDispute(ctx context.Context, input returns.ResolveInput) error {
	if s.resolveFn != nil {
		return s.resolveFn(ctx, input)
	}
	return nil
}

func TestReturnReceivePassesShippingFee(t *testing.T) {
	storeID := uuid.New()
	returnID := uuid.New()
	called := false
	svc := &testReturnsService{
		receiveFn: func(ctx context.Context, input returns.ReceiveInput) error {
			called = true
			if input.ReturnID != returnID {
				t.Fatalf("unexpected return %s", input.ReturnID)
			}
			if input.StoreID != storeID {
				t.Fatalf("unexpected store %s", input.StoreID)
			}
			if input.ReturnShippingCents != 400 {
				t.Fatalf("unexpected fee %d", input.ReturnShippingCents)
			}
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/returns/"+returnID.String()+"/receive", strings.NewReader(`{"return_shipping_cents":400}`))
	req = req.WithContext(middleware.WithStoreID(req.Context(), storeID.String()))
	req = addRouteParam(req, "returnId", returnID.String())
	resp := httptest.NewRecorder()
	ReturnReceive(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body %s", resp.Code, resp.Body.String())
	}
	if !called {
		t.Fatal("expected service called")
	}
}

func TestReturnReceiveRequiresStoreContext(t *testing.T) {
	returnID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/returns/"+returnID.String()+"/receive", nil)
	req = addRouteParam(req, "returnId", returnID.String())
	resp := httptest.NewRecorder()
	ReturnReceive(&testReturnsService{}, testLogger(t))(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestReturnDisputeAccepted(t *testing.T) {
	storeID := uuid.New()
	returnID := uuid.New()
	svc := &testReturnsService{
		disputeFn: func(ctx context.Context, input returns.DisputeInput) error {
			if input.Note != "item was fine" {
				t.Fatalf("unexpected note %q", input.Note)
			}
			return nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/returns/"+returnID.String()+"/dispute", strings.NewReader(`{"note":"item was fine"}`))
	req = req.WithContext(middleware.WithStoreID(req.Context(), storeID.String()))
	req = addRouteParam(req, "returnId", returnID.String())
	resp := httptest.NewRecorder()
	ReturnDispute(svc, testLogger(t))(resp, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d", resp.Code)
	}
}

func TestReturnResolveValidatesFault(t *testing.T) {
	returnID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/returns/"+returnID.String()+"/resolve", strings.NewReader(`{"fault":"platform"}`))
	req = addRouteParam(req, "returnId", returnID.String())
	resp := httptest.NewRecorder()
	ReturnResolve(&testReturnsService{}, testLogger(t))(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestReturnResolvePassesRuling(t *testing.T) {
	returnID := uuid.New()
	called := false
	svc := &testReturnsService{
		resolveFn: func(ctx context.Context, input returns.ResolveInput) error {
			called = true
			if input.Fault != "store" {
				t.Fatalf("unexpected fault %q", input.Fault)
			}
			if input.ReturnShippingCents != 250 {
				t.Fatalf("unexpected fee %d", input.ReturnShippingCents)
			}
			return nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/returns/"+returnID.String()+"/resolve", strings.NewReader(`{"fault":"store","return_shipping_cents":250}`))
	req = addRouteParam(req, "returnId", returnID.String())
	resp := httptest.NewRecorder()
	ReturnResolve(svc, testLogger(t))(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !called {
		t.Fatal("expected service called")
	}
}
