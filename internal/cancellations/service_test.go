package cancellations

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/duchuyngn/muaban-backend/internal/orders"
	"github.com/duchuyngn/muaban-backend/internal/settlement"
	"github.com/duchuyngn/muaban-backend/internal/wallets"
	"github.com/duchuyngn/muaban-backend/pkg/db/models"
	"github.com/duchuyngn/muaban-backend/pkg/enums"
	apperrors "github.com/duchuyngn/muaban-backend/pkg/errors"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
	"github.com/duchuyngn/muaban-backend/pkg/outbox"
)

func setupCancellationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:cancellations_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS wallets (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  balance_cents INTEGER NOT NULL DEFAULT 0,
  pending_balance_cents INTEGER NOT NULL DEFAULT 0,
  available_balance_cents INTEGER NOT NULL DEFAULT 0,
  deposit_balance_cents INTEGER NOT NULL DEFAULT 0,
  total_revenue_cents INTEGER NOT NULL DEFAULT 0,
  total_balance_cents INTEGER NOT NULL DEFAULT 0,
  done_balance_cents INTEGER NOT NULL DEFAULT 0,
  received_total_cents INTEGER NOT NULL DEFAULT 0,
  refunded_total_cents INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_wallets_owner_kind ON wallets (owner_id, kind);`,
		`CREATE TABLE IF NOT EXISTS wallet_transactions (
  id TEXT PRIMARY KEY,
  wallet_id TEXT NOT NULL,
  order_id TEXT,
  kind TEXT NOT NULL,
  bucket TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  balance_after_cents INTEGER NOT NULL,
  dedup_key TEXT,
  description TEXT NOT NULL,
  created_at DATETIME
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_wallet_transactions_dedup ON wallet_transactions (dedup_key) WHERE dedup_key IS NOT NULL;`,
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  total_cents INTEGER NOT NULL,
  discount_cents INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'pending',
  settlement_state TEXT NOT NULL DEFAULT 'none',
  paid_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS store_orders (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  store_id TEXT NOT NULL,
  subtotal_cents INTEGER NOT NULL,
  estimated_shipping_cents INTEGER NOT NULL DEFAULT 0,
  actual_shipping_cents INTEGER,
  status TEXT NOT NULL DEFAULT 'awaiting_shipment',
  delivered_at DATETIME,
  cancelled_at DATETIME,
  cancel_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_line_items (
  id TEXT PRIMARY KEY,
  store_order_id TEXT NOT NULL,
  store_id TEXT NOT NULL,
  product_id TEXT,
  name TEXT NOT NULL,
  qty INTEGER NOT NULL,
  gross_total_cents INTEGER NOT NULL,
  platform_fee_pct NUMERIC NOT NULL,
  platform_fee_cents INTEGER NOT NULL DEFAULT 0,
  cost_of_goods_cents INTEGER NOT NULL DEFAULT 0,
  delivered_at DATETIME,
  eligible_for_payout INTEGER NOT NULL DEFAULT 0,
  is_payout INTEGER NOT NULL DEFAULT 0,
  is_returned INTEGER NOT NULL DEFAULT 0,
  sweep_attempts INTEGER NOT NULL DEFAULT 0,
  quarantined INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type cancelTxRunner struct {
	db *gorm.DB
}

func (r cancelTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type cancelEmitter struct {
	events []outbox.DomainEvent
}

func (e *cancelEmitter) EmitIfNotExists(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	for _, existing := range e.events {
		if existing.EventType == event.EventType && existing.AggregateID == event.AggregateID {
			return nil
		}
	}
	e.events = append(e.events, event)
	return nil
}

func (e *cancelEmitter) count(eventType enums.OutboxEventType) int {
	var n int
	for _, event := range e.events {
		if event.EventType == eventType {
			n++
		}
	}
	return n
}

type cancelFixture struct {
	db         *gorm.DB
	svc        Service
	settlement settlement.Service
	ledger     wallets.Service
	repo       orders.Repository
	emitter    *cancelEmitter
}

func newCancelFixture(t *testing.T) *cancelFixture {
	t.Helper()

	db := setupCancellationsTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "cancellations-test", Output: io.Discard})
	ledger, err := wallets.NewService(wallets.NewRepository(db), logg)
	require.NoError(t, err)
	repo := orders.NewRepository(db)
	emitter := &cancelEmitter{}
	runner := cancelTxRunner{db: db}

	settlementSvc, err := settlement.NewService(repo, ledger, emitter, runner, logg)
	require.NoError(t, err)
	svc, err := NewService(repo, settlementSvc, ledger, emitter, runner, logg)
	require.NoError(t, err)
	return &cancelFixture{db: db, svc: svc, settlement: settlementSvc, ledger: ledger, repo: repo, emitter: emitter}
}

// seedOrder builds two store orders at 10000 and 5000 cents gross, 5% fee.
func (f *cancelFixture) seedOrder(t *testing.T) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:              uuid.New(),
		CustomerID:      uuid.New(),
		TotalCents:      15000,
		Status:          enums.OrderStatusPending,
		SettlementState: enums.SettlementStateNone,
	}
	for _, gross := range []int64{10000, 5000} {
		storeOrder := models.StoreOrder{
			ID:            uuid.New(),
			OrderID:       order.ID,
			StoreID:       uuid.New(),
			SubtotalCents: gross,
			Status:        enums.StoreOrderStatusAwaitingShipment,
		}
		storeOrder.Items = []models.OrderLineItem{{
			ID:              uuid.New(),
			StoreOrderID:    storeOrder.ID,
			StoreID:         storeOrder.StoreID,
			Name:            "item",
			Qty:             1,
			GrossTotalCents: gross,
			PlatformFeePct:  decimal.NewFromInt(5),
		}}
		order.StoreOrders = append(order.StoreOrders, storeOrder)
	}
	require.NoError(t, f.repo.CreateOrder(context.Background(), order))
	return order
}

func (f *cancelFixture) settle(t *testing.T, order *models.Order) {
	t.Helper()
	require.NoError(t, f.settlement.SettlePayment(context.Background(), settlement.PaymentInput{
		CustomerID:  order.CustomerID,
		OrderID:     order.ID,
		AmountCents: order.TotalCents - order.DiscountCents,
		Reference:   "pay_test",
	}))
}

func (f *cancelFixture) bucket(t *testing.T, ownerID uuid.UUID, kind enums.WalletKind, bucket enums.WalletBucket) int64 {
	t.Helper()
	wallet, err := f.ledger.Get(context.Background(), ownerID, kind)
	if err != nil {
		typed := apperrors.As(err)
		if typed != nil && typed.Code() == apperrors.CodeNotFound {
			return 0
		}
		require.NoError(t, err)
	}
	return wallet.BucketCents(bucket)
}

func (f *cancelFixture) reloadOrder(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	order, err := f.repo.FindOrderByID(context.Background(), id)
	require.NoError(t, err)
	return order
}

func TestCustomerCancelPendingUnsettledOrder(t *testing.T) {
	f := newCancelFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t)

	require.NoError(t, f.svc.CustomerCancelOrderIfPending(ctx, CancelOrderInput{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Reason:     "changed my mind",
	}))

	reloaded := f.reloadOrder(t, order.ID)
	assert.Equal(t, enums.OrderStatusCancelled, reloaded.Status)
	assert.NotNil(t, reloaded.CancelledAt)
	for _, storeOrder := range reloaded.StoreOrders {
		assert.Equal(t, enums.StoreOrderStatusCancelled, storeOrder.Status)
	}

	// The captured payment lands back on the customer wallet; no store
	// allocation ever existed.
	assert.Equal(t, int64(15000), f.bucket(t, order.CustomerID, enums.WalletKindCustomer, enums.BucketBalance))
	for _, storeOrder := range order.StoreOrders {
		assert.Equal(t, int64(0), f.bucket(t, storeOrder.StoreID, enums.WalletKindStore, enums.BucketPending))
	}
	assert.Equal(t, 1, f.emitter.count(enums.EventOrderCancelled))

	// Cancelling an already-cancelled order is a no-op, not a second credit.
	require.NoError(t, f.svc.CustomerCancelOrderIfPending(ctx, CancelOrderInput{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
	}))
	assert.Equal(t, int64(15000), f.bucket(t, order.CustomerID, enums.WalletKindCustomer, enums.BucketBalance))
}

func TestCustomerCancelHeldOrderReversesLedger(t *testing.T) {
	f := newCancelFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t)
	f.settle(t, order)

	// Settlement landed before the status webhook advanced the order; the
	// cancel must then unwind the full hold/allocate chain.
	require.NoError(t, f.db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("status", enums.OrderStatusPending).Error)

	require.NoError(t, f.svc.CustomerCancelOrderIfPending(ctx, CancelOrderInput{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
	}))

	reloaded := f.reloadOrder(t, order.ID)
	assert.Equal(t, enums.OrderStatusCancelled, reloaded.Status)
	assert.Equal(t, enums.SettlementStateRefunded, reloaded.SettlementState)

	assert.Equal(t, int64(15000), f.bucket(t, order.CustomerID, enums.WalletKindCustomer, enums.BucketBalance))
	assert.Equal(t, int64(0), f.bucket(t, wallets.PlatformOwnerID, enums.WalletKindPlatform, enums.BucketPending))
	assert.Equal(t, int64(15000), f.bucket(t, wallets.PlatformOwnerID, enums.WalletKindPlatform, enums.BucketRefundedTotal))
	for _, storeOrder := range order.StoreOrders {
		assert.Equal(t, int64(0), f.bucket(t, storeOrder.StoreID, enums.WalletKindStore, enums.BucketPending))
	}
}

func TestCustomerCancelHeldDiscountedOrderRefundsCapturedAmount(t *testing.T) {
	f := newCancelFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t)
	require.NoError(t, f.db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("discount_cents", 1000).Error)
	order.DiscountCents = 1000
	f.settle(t, order)

	require.NoError(t, f.db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("status", enums.OrderStatusPending).Error)

	require.NoError(t, f.svc.CustomerCancelOrderIfPending(ctx, CancelOrderInput{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
	}))

	// The customer paid 14000; the 1000 discount subsidy stays with the
	// platform instead of leaking out as extra refund.
	assert.Equal(t, int64(14000), f.bucket(t, order.CustomerID, enums.WalletKindCustomer, enums.BucketBalance))
	assert.Equal(t, int64(14000), f.bucket(t, wallets.PlatformOwnerID, enums.WalletKindPlatform, enums.BucketRefundedTotal))
	assert.Equal(t, int64(0), f.bucket(t, wallets.PlatformOwnerID, enums.WalletKindPlatform, enums.BucketPending))
	for _, storeOrder := range order.StoreOrders {
		assert.Equal(t, int64(0), f.bucket(t, storeOrder.StoreID, enums.WalletKindStore, enums.BucketPending))
	}
}

func TestCustomerCancelRejectsPaidOrder(t *testing.T) {
	f := newCancelFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t)
	f.settle(t, order)

	err := f.svc.CustomerCancelOrderIfPending(ctx, CancelOrderInput{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
	})
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeStateConflict, typed.Code())
}

func TestCustomerCancelForbiddenForOtherCustomer(t *testing.T) {
	f := newCancelFixture(t)
	order := f.seedOrder(t)

	err := f.svc.CustomerCancelOrderIfPending(context.Background(), CancelOrderInput{
		OrderID:    order.ID,
		CustomerID: uuid.New(),
	})
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeForbidden, typed.Code())
}

func TestRequestApproveCancelFlow(t *testing.T) {
	f := newCancelFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t)
	f.settle(t, order)

	storeA := order.StoreOrders[0]
	storeB := order.StoreOrders[1]

	require.NoError(t, f.svc.RequestStoreOrderCancel(ctx, RequestCancelInput{
		StoreOrderID: storeA.ID,
		CustomerID:   order.CustomerID,
		Reason:       "ordered the wrong size",
	}))
	// Repeated requests are no-ops.
	require.NoError(t, f.svc.RequestStoreOrderCancel(ctx, RequestCancelInput{
		StoreOrderID: storeA.ID,
		CustomerID:   order.CustomerID,
		Reason:       "ordered the wrong size",
	}))

	require.NoError(t, f.svc.ApproveCancel(ctx, ResolveCancelInput{
		StoreOrderID: storeA.ID,
		StoreID:      storeA.StoreID,
	}))

	reloaded := f.reloadOrder(t, order.ID)
	assert.Equal(t, enums.SettlementStateHeld, reloaded.SettlementState)
	assert.Equal(t, enums.OrderStatusPaid, reloaded.Status)

	assert.Equal(t, int64(10000), f.bucket(t, order.CustomerID, enums.WalletKindCustomer, enums.BucketBalance))
	assert.Equal(t, int64(0), f.bucket(t, storeA.StoreID, enums.WalletKindStore, enums.BucketPending))
	assert.Equal(t, int64(5000), f.bucket(t, storeB.StoreID, enums.WalletKindStore, enums.BucketPending))
	assert.Equal(t, 1, f.emitter.count(enums.EventStoreOrderCancelled))

	// Cancelling the last sibling cancels the parent and empties the hold.
	require.NoError(t, f.svc.RequestStoreOrderCancel(ctx, RequestCancelInput{
		StoreOrderID: storeB.ID,
		CustomerID:   order.CustomerID,
		Reason:       "no longer needed",
	}))
	require.NoError(t, f.svc.ApproveCancel(ctx, ResolveCancelInput{
		StoreOrderID: storeB.ID,
		StoreID:      storeB.StoreID,
	}))

	reloaded = f.reloadOrder(t, order.ID)
	assert.Equal(t, enums.OrderStatusCancelled, reloaded.Status)
	assert.Equal(t, enums.SettlementStateRefunded, reloaded.SettlementState)
	assert.Equal(t, int64(15000), f.bucket(t, order.CustomerID, enums.WalletKindCustomer, enums.BucketBalance))
	assert.Equal(t, int64(0), f.bucket(t, wallets.PlatformOwnerID, enums.WalletKindPlatform, enums.BucketPending))

	// Approving an already-cancelled store order is a no-op.
	require.NoError(t, f.svc.ApproveCancel(ctx, ResolveCancelInput{
		StoreOrderID: storeB.ID,
		StoreID:      storeB.StoreID,
	}))
	assert.Equal(t, int64(15000), f.bucket(t, order.CustomerID, enums.WalletKindCustomer, enums.BucketBalance))
}

func TestRequestCancelOnlyWhileAwaitingShipment(t *testing.T) {
	f := newCancelFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t)
	storeOrder := order.StoreOrders[0]

	require.NoError(t, f.db.Model(&models.StoreOrder{}).
		Where("id = ?", storeOrder.ID).
		Update("status", enums.StoreOrderStatusShipping).Error)

	err := f.svc.RequestStoreOrderCancel(ctx, RequestCancelInput{
		StoreOrderID: storeOrder.ID,
		CustomerID:   order.CustomerID,
		Reason:       "too late anyway",
	})
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeStateConflict, typed.Code())
}

func TestRejectCancelRestoresShipmentQueue(t *testing.T) {
	f := newCancelFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t)
	storeOrder := order.StoreOrders[0]

	require.NoError(t, f.svc.RequestStoreOrderCancel(ctx, RequestCancelInput{
		StoreOrderID: storeOrder.ID,
		CustomerID:   order.CustomerID,
		Reason:       "ordered twice",
	}))
	require.NoError(t, f.svc.RejectCancel(ctx, ResolveCancelInput{
		StoreOrderID: storeOrder.ID,
		StoreID:      storeOrder.StoreID,
	}))

	reloaded, err := f.repo.FindStoreOrderByID(ctx, storeOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.StoreOrderStatusAwaitingShipment, reloaded.Status)
	assert.Nil(t, reloaded.CancelReason)

	// Rejecting again is a no-op; approving now is a conflict.
	require.NoError(t, f.svc.RejectCancel(ctx, ResolveCancelInput{
		StoreOrderID: storeOrder.ID,
		StoreID:      storeOrder.StoreID,
	}))
	err = f.svc.ApproveCancel(ctx, ResolveCancelInput{
		StoreOrderID: storeOrder.ID,
		StoreID:      storeOrder.StoreID,
	})
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeStateConflict, typed.Code())
}

func TestResolveCancelGuardsStoreOwnership(t *testing.T) {
	f := newCancelFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t)
	storeOrder := order.StoreOrders[0]

	require.NoError(t, f.svc.RequestStoreOrderCancel(ctx, RequestCancelInput{
		StoreOrderID: storeOrder.ID,
		CustomerID:   order.CustomerID,
		Reason:       "wrong color",
	}))

	err := f.svc.ApproveCancel(ctx, ResolveCancelInput{
		StoreOrderID: storeOrder.ID,
		StoreID:      uuid.New(),
	})
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeForbidden, typed.Code())
}
