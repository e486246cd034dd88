package payouts

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/duchuyngn/muaban-backend/pkg/db/models"
	"github.com/duchuyngn/muaban-backend/pkg/enums"
	apperrors "github.com/duchuyngn/muaban-backend/pkg/errors"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
	"github.com/duchuyngn/muaban-backend/pkg/outbox"
)

func setupPayoutsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:payouts_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
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
		`CREATE TABLE IF NOT EXISTS shipping_fees (
  id TEXT PRIMARY KEY,
  store_order_id TEXT NOT NULL,
  store_id TEXT NOT NULL,
  extra_cents INTEGER NOT NULL,
  paid_by_store INTEGER NOT NULL DEFAULT 0,
  paid_at DATETIME,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS return_shipping_fees (
  id TEXT PRIMARY KEY,
  return_request_id TEXT NOT NULL,
  store_id TEXT NOT NULL,
  fee_cents INTEGER NOT NULL,
  paid INTEGER NOT NULL DEFAULT 0,
  paid_at DATETIME,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS payout_bills (
  id TEXT PRIMARY KEY,
  store_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  total_gross_cents INTEGER NOT NULL DEFAULT 0,
  total_platform_fee_cents INTEGER NOT NULL DEFAULT 0,
  total_shipping_fee_cents INTEGER NOT NULL DEFAULT 0,
  total_return_shipping_cents INTEGER NOT NULL DEFAULT 0,
  total_net_payout_cents INTEGER NOT NULL DEFAULT 0,
  reference TEXT,
  receipt_url TEXT,
  note TEXT,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_payout_bills_store_pending
  ON payout_bills (store_id) WHERE status = 'pending';`,
		`CREATE TABLE IF NOT EXISTS payout_bill_items (
  id TEXT PRIMARY KEY,
  bill_id TEXT NOT NULL,
  order_line_item_id TEXT,
  shipping_fee_id TEXT,
  return_shipping_fee_id TEXT,
  gross_cents INTEGER NOT NULL DEFAULT 0,
  platform_fee_cents INTEGER NOT NULL DEFAULT 0,
  shipping_extra_cents INTEGER NOT NULL DEFAULT 0,
  net_cents INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_payout_bill_items_line
  ON payout_bill_items (order_line_item_id) WHERE order_line_item_id IS NOT NULL;`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type payoutsTxRunner struct {
	db *gorm.DB
}

func (r payoutsTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type payoutsEmitter struct {
	events []outbox.DomainEvent
}

func (e *payoutsEmitter) EmitIfNotExists(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	for _, existing := range e.events {
		if existing.EventType == event.EventType && existing.AggregateID == event.AggregateID {
			return nil
		}
	}
	e.events = append(e.events, event)
	return nil
}

func (e *payoutsEmitter) count(eventType enums.OutboxEventType) int {
	var n int
	for _, event := range e.events {
		if event.EventType == eventType {
			n++
		}
	}
	return n
}

type payoutsFixture struct {
	db      *gorm.DB
	svc     Service
	repo    Repository
	emitter *payoutsEmitter
}

func newPayoutsFixture(t *testing.T) *payoutsFixture {
	t.Helper()

	db := setupPayoutsTestDB(t)
	repo := NewRepository(db)
	emitter := &payoutsEmitter{}
	logg := logger.New(logger.Options{ServiceName: "payouts-test", Output: io.Discard})

	svc, err := NewService(repo, emitter, payoutsTxRunner{db: db}, logg)
	require.NoError(t, err)
	return &payoutsFixture{db: db, svc: svc, repo: repo, emitter: emitter}
}

type payableItemOpts struct {
	storeID     uuid.UUID
	grossCents  int64
	feeCents    int64
	eligible    bool
	isReturned  bool
	deliveredAt time.Time
}

func (f *payoutsFixture) seedPayableItem(t *testing.T, opts payableItemOpts) *models.OrderLineItem {
	t.Helper()

	deliveredAt := opts.deliveredAt
	if deliveredAt.IsZero() {
		deliveredAt = time.Now().Add(-10 * 24 * time.Hour)
	}
	storeOrder := &models.StoreOrder{
		ID:            uuid.New(),
		OrderID:       uuid.New(),
		StoreID:       opts.storeID,
		SubtotalCents: opts.grossCents,
		Status:        enums.StoreOrderStatusDelivered,
		DeliveredAt:   &deliveredAt,
	}
	require.NoError(t, f.db.Create(storeOrder).Error)

	item := &models.OrderLineItem{
		ID:                uuid.New(),
		StoreOrderID:      storeOrder.ID,
		StoreID:           opts.storeID,
		Name:              "widget",
		Qty:               1,
		GrossTotalCents:   opts.grossCents,
		PlatformFeePct:    decimal.NewFromInt(5),
		PlatformFeeCents:  opts.feeCents,
		DeliveredAt:       &deliveredAt,
		EligibleForPayout: opts.eligible,
		IsReturned:        opts.isReturned,
	}
	require.NoError(t, f.db.Create(item).Error)
	return item
}

func (f *payoutsFixture) seedShippingFee(t *testing.T, storeID uuid.UUID, extraCents int64, delivered bool) *models.ShippingFee {
	t.Helper()

	storeOrder := &models.StoreOrder{
		ID:            uuid.New(),
		OrderID:       uuid.New(),
		StoreID:       storeID,
		SubtotalCents: 1000,
		Status:        enums.StoreOrderStatusDelivered,
	}
	if delivered {
		deliveredAt := time.Now().Add(-10 * 24 * time.Hour)
		storeOrder.DeliveredAt = &deliveredAt
	}
	require.NoError(t, f.db.Create(storeOrder).Error)

	fee := &models.ShippingFee{
		ID:           uuid.New(),
		StoreOrderID: storeOrder.ID,
		StoreID:      storeID,
		ExtraCents:   extraCents,
	}
	require.NoError(t, f.db.Create(fee).Error)
	return fee
}

func (f *payoutsFixture) seedReturnShippingFee(t *testing.T, storeID uuid.UUID, feeCents int64) *models.ReturnShippingFee {
	t.Helper()

	fee := &models.ReturnShippingFee{
		ID:              uuid.New(),
		ReturnRequestID: uuid.New(),
		StoreID:         storeID,
		FeeCents:        feeCents,
	}
	require.NoError(t, f.db.Create(fee).Error)
	return fee
}

func TestCreateBillForStoreFreezesPayables(t *testing.T) {
	f := newPayoutsFixture(t)
	ctx := context.Background()
	storeID := uuid.New()

	f.seedPayableItem(t, payableItemOpts{storeID: storeID, grossCents: 10000, feeCents: 500, eligible: true})
	f.seedPayableItem(t, payableItemOpts{storeID: storeID, grossCents: 5000, feeCents: 250, eligible: true})
	f.seedShippingFee(t, storeID, 300, true)
	f.seedReturnShippingFee(t, storeID, 200)

	// Not yet eligible, returned, and foreign-store items stay out of the bill.
	f.seedPayableItem(t, payableItemOpts{storeID: storeID, grossCents: 7000, feeCents: 350, eligible: false})
	f.seedPayableItem(t, payableItemOpts{storeID: storeID, grossCents: 4000, feeCents: 200, eligible: true, isReturned: true})
	f.seedPayableItem(t, payableItemOpts{storeID: uuid.New(), grossCents: 9000, feeCents: 450, eligible: true})

	bill, err := f.svc.CreateBillForStore(ctx, storeID)
	require.NoError(t, err)
	require.Len(t, bill.Items, 4)

	assert.Equal(t, enums.PayoutBillStatusPending, bill.Status)
	assert.Equal(t, int64(15000), bill.TotalGrossCents)
	assert.Equal(t, int64(750), bill.TotalPlatformFeeCents)
	assert.Equal(t, int64(300), bill.TotalShippingFeeCents)
	assert.Equal(t, int64(200), bill.TotalReturnShippingCents)
	// 15000 - 750 - 300 - 200
	assert.Equal(t, int64(13750), bill.TotalNetPayoutCents)

	assert.Equal(t, 1, f.emitter.count(enums.EventPayoutBillCreated))

	stored, err := f.svc.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 4)
}

func TestCreateBillForStoreSignalsNothingToPayout(t *testing.T) {
	f := newPayoutsFixture(t)

	_, err := f.svc.CreateBillForStore(context.Background(), uuid.New())
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeNothingToPayout, typed.Code())
}

func TestCreateBillForStoreAllowsOneOpenBill(t *testing.T) {
	f := newPayoutsFixture(t)
	ctx := context.Background()
	storeID := uuid.New()

	f.seedPayableItem(t, payableItemOpts{storeID: storeID, grossCents: 10000, feeCents: 500, eligible: true})

	first, err := f.svc.CreateBillForStore(ctx, storeID)
	require.NoError(t, err)

	// The first bill already holds the only payable item, so a second create
	// is a NOTHING_TO_PAYOUT... unless new payables arrived, in which case the
	// open-bill unique index rejects the duplicate.
	f.seedPayableItem(t, payableItemOpts{storeID: storeID, grossCents: 2000, feeCents: 100, eligible: true})
	_, err = f.svc.CreateBillForStore(ctx, storeID)
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeStateConflict, typed.Code())

	open, err := f.svc.GetOrCreateBillForStore(ctx, storeID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, open.ID)
}

func TestCreateBillSkipsAlreadyBilledItems(t *testing.T) {
	f := newPayoutsFixture(t)
	ctx := context.Background()
	storeID := uuid.New()

	billed := f.seedPayableItem(t, payableItemOpts{storeID: storeID, grossCents: 10000, feeCents: 500, eligible: true})

	first, err := f.svc.CreateBillForStore(ctx, storeID)
	require.NoError(t, err)
	_, err = f.svc.MarkBillPaid(ctx, first.ID, PayBillInput{Reference: "bank-001"})
	require.NoError(t, err)

	f.seedPayableItem(t, payableItemOpts{storeID: storeID, grossCents: 3000, feeCents: 150, eligible: true})

	second, err := f.svc.CreateBillForStore(ctx, storeID)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.NotEqual(t, billed.ID, *second.Items[0].OrderLineItemID)
	assert.Equal(t, int64(3000), second.TotalGrossCents)
}

func TestMarkBillPaidFlipsFlagsExactlyOnce(t *testing.T) {
	f := newPayoutsFixture(t)
	ctx := context.Background()
	storeID := uuid.New()

	item := f.seedPayableItem(t, payableItemOpts{storeID: storeID, grossCents: 10000, feeCents: 500, eligible: true})
	shippingFee := f.seedShippingFee(t, storeID, 300, true)
	returnFee := f.seedReturnShippingFee(t, storeID, 200)

	bill, err := f.svc.CreateBillForStore(ctx, storeID)
	require.NoError(t, err)

	paid, err := f.svc.MarkBillPaid(ctx, bill.ID, PayBillInput{Reference: "bank-042", Note: "august payout"})
	require.NoError(t, err)
	assert.Equal(t, enums.PayoutBillStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	require.NotNil(t, paid.Reference)
	assert.Equal(t, "bank-042", *paid.Reference)

	var reloadedItem models.OrderLineItem
	require.NoError(t, f.db.First(&reloadedItem, "id = ?", item.ID).Error)
	assert.True(t, reloadedItem.IsPayout)

	var reloadedShipping models.ShippingFee
	require.NoError(t, f.db.First(&reloadedShipping, "id = ?", shippingFee.ID).Error)
	assert.True(t, reloadedShipping.PaidByStore)
	assert.NotNil(t, reloadedShipping.PaidAt)

	var reloadedReturn models.ReturnShippingFee
	require.NoError(t, f.db.First(&reloadedReturn, "id = ?", returnFee.ID).Error)
	assert.True(t, reloadedReturn.Paid)

	assert.Equal(t, 1, f.emitter.count(enums.EventPayoutBillPaid))

	_, err = f.svc.MarkBillPaid(ctx, bill.ID, PayBillInput{Reference: "bank-042"})
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeStateConflict, typed.Code())
	assert.Equal(t, 1, f.emitter.count(enums.EventPayoutBillPaid))
}

func TestMarkBillPaidExcludesItemsReturnedAfterFreeze(t *testing.T) {
	f := newPayoutsFixture(t)
	ctx := context.Background()
	storeID := uuid.New()

	refunded := f.seedPayableItem(t, payableItemOpts{storeID: storeID, grossCents: 10000, feeCents: 500, eligible: true})
	kept := f.seedPayableItem(t, payableItemOpts{storeID: storeID, grossCents: 4000, feeCents: 200, eligible: true})

	bill, err := f.svc.CreateBillForStore(ctx, storeID)
	require.NoError(t, err)
	require.Len(t, bill.Items, 2)
	assert.Equal(t, int64(13300), bill.TotalNetPayoutCents)

	// The customer was refunded between bill creation and payment.
	require.NoError(t, f.db.Model(&models.OrderLineItem{}).
		Where("id = ?", refunded.ID).
		Update("is_returned", true).Error)

	paid, err := f.svc.MarkBillPaid(ctx, bill.ID, PayBillInput{Reference: "bank-099"})
	require.NoError(t, err)
	assert.Equal(t, enums.PayoutBillStatusPaid, paid.Status)
	require.Len(t, paid.Items, 1)
	assert.Equal(t, kept.ID, *paid.Items[0].OrderLineItemID)
	assert.Equal(t, int64(4000), paid.TotalGrossCents)
	assert.Equal(t, int64(200), paid.TotalPlatformFeeCents)
	assert.Equal(t, int64(3800), paid.TotalNetPayoutCents)

	var refundedItem models.OrderLineItem
	require.NoError(t, f.db.First(&refundedItem, "id = ?", refunded.ID).Error)
	assert.False(t, refundedItem.IsPayout)

	var keptItem models.OrderLineItem
	require.NoError(t, f.db.First(&keptItem, "id = ?", kept.ID).Error)
	assert.True(t, keptItem.IsPayout)

	var lineCount int64
	require.NoError(t, f.db.Model(&models.PayoutBillItem{}).
		Where("bill_id = ?", bill.ID).
		Count(&lineCount).Error)
	assert.Equal(t, int64(1), lineCount)
}

func TestMarkBillPaidValidatesInput(t *testing.T) {
	f := newPayoutsFixture(t)

	_, err := f.svc.MarkBillPaid(context.Background(), uuid.New(), PayBillInput{})
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeValidation, typed.Code())

	_, err = f.svc.MarkBillPaid(context.Background(), uuid.New(), PayBillInput{Reference: "bank-001"})
	require.Error(t, err)
	typed = apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeNotFound, typed.Code())
}

func TestAutoCreateBillsForAllStores(t *testing.T) {
	f := newPayoutsFixture(t)
	ctx := context.Background()
	storeA := uuid.New()
	storeB := uuid.New()
	storeC := uuid.New()

	f.seedPayableItem(t, payableItemOpts{storeID: storeA, grossCents: 10000, feeCents: 500, eligible: true})
	f.seedShippingFee(t, storeB, 300, true)
	// Undelivered store order fees are not payable yet.
	f.seedShippingFee(t, storeC, 400, false)

	billIDs, err := f.svc.AutoCreateBillsForAllStores(ctx)
	require.NoError(t, err)
	assert.Len(t, billIDs, 2)

	// A second pass converges on the same open bills.
	again, err := f.svc.AutoCreateBillsForAllStores(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, billIDs, again)
	assert.Equal(t, 2, f.emitter.count(enums.EventPayoutBillCreated))
}

func TestGetOrCreateBillForStoreReusesOpenBill(t *testing.T) {
	f := newPayoutsFixture(t)
	ctx := context.Background()
	storeID := uuid.New()

	f.seedPayableItem(t, payableItemOpts{storeID: storeID, grossCents: 10000, feeCents: 500, eligible: true})

	first, err := f.svc.GetOrCreateBillForStore(ctx, storeID)
	require.NoError(t, err)

	second, err := f.svc.GetOrCreateBillForStore(ctx, storeID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	bills, err := f.svc.ListBillsForStore(ctx, storeID)
	require.NoError(t, err)
	assert.Len(t, bills, 1)
}
