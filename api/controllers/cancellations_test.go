package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/duchuyngn/muaban-backend/api/middleware"
	"github.com/duchuyngn/muaban-backend/internal/cancellations"
)

type testCancelService struct {
	cancelOrderFn func(ctx context.Context, input cancellations.CancelOrderInput) error
	requestFn     func(ctx context.Context, input cancellations.RequestCancelInput) error
	approveFn     func(ctx context.Context, input cancellations.ResolveCancelInput) error
	rejectFn      func(ctx context.Context, input cancellations.ResolveCancelInput) error
}

func (s *testCancelService) CustomerCancelOrderIfPending(ctx context.Context, input cancellations.CancelOrderInput) error {
	if s.cancelOrderFn != nil {
		return s.cancelOrderFn(ctx, input)
	}
	return nil
}

func (s *testCancelService) RequestStoreOrderCancel(ctx context.Context, input cancellations.RequestCancelInput) error {
	if s.requestFn != nil {
		return s.requestFn(ctx, input)
	}
	return nil
}

func (s *testCancelService) ApproveCancel(ctx context.Context, input cancellations.ResolveCancelInput) error {
	if s.approveFn != nil {
		return s.approveFn(ctx, input)
	}
	return nil
}

func (s *testCancelService) RejectCancel(ctx context.Context, input cancellations.ResolveCancelInput) error {
	if s.rejectFn != nil {
		return s.rejectFn(ctx, input)
	}
	return nil
}

func TestCancelOrderPassesActorAndReason(t *testing.T) {
	customerID := uuid.New()
	orderID := uuid.New()
	called := false
	svc := &testCancelService{
		cancelOrderFn: func(ctx context.Context, input cancellations.CancelOrderInput) error {
			called = true
			if input.OrderID != orderID {
				t.Fatalf("unexpected order %s", input.OrderID)
			}
			if input.CustomerID != customerID {
				t.Fatalf("unexpected customer %s", input.CustomerID)
			}
			if input.Reason != "changed my mind" {
				t.Fatalf("unexpected reason %q", input.Reason)
			}
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", strings.NewReader(`{"reason":"changed my mind"}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), customerID.String()))
	req = addRouteParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()
	CancelOrder(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body %s", resp.Code, resp.Body.String())
	}
	if !called {
		t.Fatal("expected service called")
	}
}

func TestCancelOrderAllowsEmptyBody(t *testing.T) {
	customerID := uuid.New()
	orderID := uuid.New()
	svc := &testCancelService{}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), customerID.String()))
	req = addRouteParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()
	CancelOrder(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestCancelOrderRequiresUser(t *testing.T) {
	orderID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", nil)
	req = addRouteParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()
	CancelOrder(&testCancelService{}, testLogger(t))(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestStoreOrderCancelRequestRequiresReason(t *testing.T) {
	customerID := uuid.New()
	storeOrderID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/store-orders/"+storeOrderID.String()+"/cancel-request", strings.NewReader(`{}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), customerID.String()))
	req = addRouteParam(req, "storeOrderId", storeOrderID.String())
	resp := httptest.NewRecorder()
	StoreOrderCancelRequest(&testCancelService{}, testLogger(t))(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestStoreOrderCancelRequestAccepted(t *testing.T) {
	customerID := uuid.New()
	storeOrderID := uuid.New()
	svc := &testCancelService{
		requestFn: func(ctx context.Context, input cancellations.RequestCancelInput) error {
			if input.StoreOrderID != storeOrderID {
				t.Fatalf("unexpected store order %s", input.StoreOrderID)
			}
			if input.Reason != "wrong size" {
				t.Fatalf("unexpected reason %q", input.Reason)
			}
			return nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/store-orders/"+storeOrderID.String()+"/cancel-request", strings.NewReader(`{"reason":"wrong size"}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), customerID.String()))
	req = addRouteParam(req, "storeOrderId", storeOrderID.String())
	resp := httptest.NewRecorder()
	StoreOrderCancelRequest(svc, testLogger(t))(resp, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d", resp.Code)
	}
}

func TestStoreOrderCancelApproveRequiresStoreContext(t *testing.T) {
	storeOrderID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/store-orders/"+storeOrderID.String()+"/cancel-approve", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	req = addRouteParam(req, "storeOrderId", storeOrderID.String())
	resp := httptest.NewRecorder()
	StoreOrderCancelApprove(&testCancelService{}, testLogger(t))(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestStoreOrderCancelRejectPassesStore(t *testing.T) {
	storeID := uuid.New()
	storeOrderID := uuid.New()
	called := false
	svc := &testCancelService{
		rejectFn: func(ctx context.Context, input cancellations.ResolveCancelInput) error {
			called = true
			if input.StoreID != storeID {
				t.Fatalf("unexpected store %s", input.StoreID)
			}
			if input.Note != "shipping today" {
				t.Fatalf("unexpected note %q", input.Note)
			}
			return nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/store-orders/"+storeOrderID.String()+"/cancel-reject", strings.NewReader(`{"note":"shipping today"}`))
	ctx := middleware.WithUserID(req.Context(), uuid.NewString())
	ctx = middleware.WithStoreID(ctx, storeID.String())
	req = req.WithContext(ctx)
	req = addRouteParam(req, "storeOrderId", storeOrderID.String())
	resp := httptest.NewRecorder()
	StoreOrderCancelReject(svc, testLogger(t))(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !called {
		t.Fatal("expected service called")
	}
}
