package settlement

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/duchuyngn/muaban-backend/internal/orders"
	"github.com/duchuyngn/muaban-backend/internal/wallets"
	"github.com/duchuyngn/muaban-backend/pkg/db/models"
	"github.com/duchuyngn/muaban-backend/pkg/enums"
	apperrors "github.com/duchuyngn/muaban-backend/pkg/errors"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
	"github.com/duchuyngn/muaban-backend/pkg/outbox"
	"github.com/duchuyngn/muaban-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service moves money between the customer, platform and store wallets as an
// order progresses. Every operation is one DB transaction; every ledger write
// carries a dedup key so webhook redelivery and cron re-runs are no-ops.
//
// Order funds follow settlement_state: none -> held -> released | refunded.
// The state column is the authoritative guard; operations never infer progress
// from the presence of transaction rows.
type Service interface {
	SettlePayment(ctx context.Context, input PaymentInput) error
	ReleaseAfterHold(ctx context.Context, orderID uuid.UUID) error
	RefundOrderToCustomer(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error
	RefundStoreOrderToCustomer(ctx context.Context, tx *gorm.DB, storeOrderID uuid.UUID, reason string) error
}

type service struct {
	repo    orders.Repository
	ledger  wallets.Service
	emitter outboxEmitter
	tx      txRunner
	logg    *logger.Logger
}

// NewService wires the settlement orchestrator with its dependencies.
func NewService(repo orders.Repository, ledger wallets.Service, emitter outboxEmitter, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, ledger: ledger, emitter: emitter, tx: tx, logg: logg}, nil
}

// SettlePayment runs the full hold sequence for a confirmed payment: record
// the customer payment, move the gross into the platform pending bucket and
// allocate each store's share into its pending bucket, all in one transaction.
// Replayed webhooks short-circuit on settlement_state.
func (s *service) SettlePayment(ctx context.Context, input PaymentInput) error {
	if input.OrderID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "order id is required")
	}
	if input.CustomerID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "customer id is required")
	}
	if input.AmountCents <= 0 {
		return apperrors.New(apperrors.CodeValidation, "amount must be positive")
	}

	logCtx := s.logg.WithOrderID(ctx, input.OrderID.String())
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrderByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "order not found")
			}
			return err
		}
		if order.SettlementState != enums.SettlementStateNone {
			s.logg.Info(logCtx, "payment already settled, skipping")
			return nil
		}
		if order.Status == enums.OrderStatusCancelled {
			return apperrors.New(apperrors.CodeStateConflict, "cancelled order cannot settle")
		}
		if order.CustomerID != input.CustomerID {
			return apperrors.New(apperrors.CodeValidation, "customer does not own this order")
		}

		expected := order.TotalCents - order.DiscountCents
		if input.AmountCents != expected {
			err := apperrors.New(apperrors.CodeReconciliationMismatch, "confirmed amount does not match order total").
				WithDetails(map[string]any{
					"order_id":       order.ID.String(),
					"expected_cents": expected,
					"amount_cents":   input.AmountCents,
				})
			s.logg.Error(logCtx, "settlement reconciliation mismatch", err)
			return err
		}

		// Fixed step order: record payment, hold, allocate. Each write is
		// dedup-keyed so a partially replayed webhook applies nothing twice.
		if err := s.recordCustomerPayment(ctx, tx, order, input); err != nil {
			return err
		}
		if err := s.moveToPlatformHold(ctx, tx, order, input.AmountCents); err != nil {
			return err
		}
		totalFee, err := s.allocateToStoresPending(ctx, tx, repo, order, logCtx)
		if err != nil {
			return err
		}

		now := time.Now()
		order.Status = enums.OrderStatusPaid
		order.PaidAt = &now
		order.SettlementState = enums.SettlementStateHeld
		if err := repo.SaveOrder(ctx, order); err != nil {
			return err
		}

		if err := s.emitter.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSettlementHeld,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.SettlementHeldEvent{
				OrderID:          order.ID,
				CustomerID:       order.CustomerID,
				GrossCents:       order.TotalCents,
				PlatformFeeCents: totalFee,
				HeldAt:           now,
			},
		}); err != nil {
			return err
		}
		s.logg.Info(logCtx, "payment settled and held")
		return nil
	})
}

// recordCustomerPayment appends the informational row for the off-ledger
// gateway capture. The customer balance does not change, so ledger replay
// stays exact.
func (s *service) recordCustomerPayment(ctx context.Context, tx *gorm.DB, order *models.Order, input PaymentInput) error {
	memoKey := wallets.DedupKey(order.ID, enums.TxnKindDeposit, order.CustomerID, enums.BucketBalance)
	_, err := s.ledger.RecordMemo(ctx, tx, wallets.MemoInput{
		OwnerID:     order.CustomerID,
		Kind:        enums.WalletKindCustomer,
		TxKind:      enums.TxnKindDeposit,
		OrderID:     &order.ID,
		DedupKey:    &memoKey,
		Description: fmt.Sprintf("gateway payment confirmed, %d cents (%s)", input.AmountCents, input.Reference),
	})
	return err
}

// moveToPlatformHold credits the platform pending and total buckets with the
// order gross and books the captured amount into received total.
func (s *service) moveToPlatformHold(ctx context.Context, tx *gorm.DB, order *models.Order, amountCents int64) error {
	gross := order.TotalCents
	moves := []wallets.AdjustInput{
		{Bucket: enums.BucketPending, TxKind: enums.TxnKindPendingHold, AmountCents: gross, Description: "hold for order settlement"},
		{Bucket: enums.BucketTotal, TxKind: enums.TxnKindHold, AmountCents: gross, Description: "hold for order settlement"},
		{Bucket: enums.BucketReceivedTotal, TxKind: enums.TxnKindDeposit, AmountCents: amountCents, Description: "gateway capture received"},
	}
	for _, move := range moves {
		move.OwnerID = wallets.PlatformOwnerID
		move.Kind = enums.WalletKindPlatform
		move.OrderID = &order.ID
		key := wallets.DedupKey(order.ID, move.TxKind, wallets.PlatformOwnerID, move.Bucket)
		move.DedupKey = &key
		if _, err := s.ledger.Adjust(ctx, tx, move); err != nil {
			return err
		}
	}
	return nil
}

// allocateToStoresPending splits the platform hold into per-store pending
// shares computed from line item gross totals, freezing each item's platform
// fee on the way. The shares must sum to the hold exactly; a mismatch aborts
// the settlement and is never auto-corrected.
func (s *service) allocateToStoresPending(ctx context.Context, tx *gorm.DB, repo orders.Repository, order *models.Order, logCtx context.Context) (int64, error) {
	var allocated, totalFee int64
	for i := range order.StoreOrders {
		storeOrder := &order.StoreOrders[i]
		var share int64
		for j := range storeOrder.Items {
			item := &storeOrder.Items[j]
			item.PlatformFeeCents = item.FeeCents()
			if err := repo.SaveLineItem(ctx, item); err != nil {
				return 0, err
			}
			share += item.GrossTotalCents
			totalFee += item.PlatformFeeCents
		}
		if share != storeOrder.SubtotalCents {
			err := apperrors.New(apperrors.CodeReconciliationMismatch, "store share does not match store order subtotal").
				WithDetails(map[string]any{
					"store_order_id": storeOrder.ID.String(),
					"subtotal_cents": storeOrder.SubtotalCents,
					"share_cents":    share,
				})
			s.logg.Error(logCtx, "settlement reconciliation mismatch", err)
			return 0, err
		}
		if err := s.creditStoreHold(ctx, tx, order.ID, storeOrder, share); err != nil {
			return 0, err
		}
		allocated += share
	}
	if allocated != order.TotalCents {
		err := apperrors.New(apperrors.CodeReconciliationMismatch, "store allocations do not sum to the platform hold").
			WithDetails(map[string]any{
				"order_id":        order.ID.String(),
				"hold_cents":      order.TotalCents,
				"allocated_cents": allocated,
			})
		s.logg.Error(logCtx, "settlement reconciliation mismatch", err)
		return 0, err
	}
	return totalFee, nil
}

func (s *service) creditStoreHold(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, storeOrder *models.StoreOrder, share int64) error {
	moves := []wallets.AdjustInput{
		{Bucket: enums.BucketPending, TxKind: enums.TxnKindPendingHold, AmountCents: share, Description: "order share held"},
		{Bucket: enums.BucketTotalRevenue, TxKind: enums.TxnKindDeposit, AmountCents: share, Description: "order share booked as revenue"},
	}
	for _, move := range moves {
		move.OwnerID = storeOrder.StoreID
		move.Kind = enums.WalletKindStore
		move.OrderID = &orderID
		// Keyed by store order so two stores on one order never collide.
		key := wallets.DedupKey(storeOrder.ID, move.TxKind, storeOrder.StoreID, move.Bucket)
		move.DedupKey = &key
		if _, err := s.ledger.Adjust(ctx, tx, move); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseAfterHold promotes an order's held funds: platform pending -> done,
// store pending -> available. Only the amounts still outstanding move; shares
// of cancelled store orders and returned items already left pending through
// the refund path. Guarded by settlement_state so it can never run twice.
func (s *service) ReleaseAfterHold(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "order id is required")
	}

	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrderByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "order not found")
			}
			return err
		}
		switch order.SettlementState {
		case enums.SettlementStateReleased:
			return nil
		case enums.SettlementStateHeld:
		default:
			return apperrors.New(apperrors.CodeStateConflict,
				fmt.Sprintf("settlement state %q cannot release", order.SettlementState))
		}

		var released int64
		var releasedStoreOrders []uuid.UUID
		for i := range order.StoreOrders {
			storeOrder := &order.StoreOrders[i]
			if storeOrder.Status == enums.StoreOrderStatusCancelled {
				continue
			}
			remaining := outstandingCents(storeOrder)
			if remaining == 0 {
				continue
			}
			moves := []wallets.AdjustInput{
				{Bucket: enums.BucketPending, TxKind: enums.TxnKindReleasePending, AmountCents: -remaining, Description: "hold window cleared"},
				{Bucket: enums.BucketAvailable, TxKind: enums.TxnKindRelease, AmountCents: remaining, Description: "funds released for payout"},
			}
			for _, move := range moves {
				move.OwnerID = storeOrder.StoreID
				move.Kind = enums.WalletKindStore
				move.OrderID = &order.ID
				key := wallets.DedupKey(storeOrder.ID, move.TxKind, storeOrder.StoreID, move.Bucket)
				move.DedupKey = &key
				if _, err := s.ledger.Adjust(ctx, tx, move); err != nil {
					return err
				}
			}
			released += remaining
			releasedStoreOrders = append(releasedStoreOrders, storeOrder.ID)
		}

		if released > 0 {
			moves := []wallets.AdjustInput{
				{Bucket: enums.BucketPending, TxKind: enums.TxnKindReleasePending, AmountCents: -released, Description: "hold window cleared"},
				{Bucket: enums.BucketDone, TxKind: enums.TxnKindRelease, AmountCents: released, Description: "funds released to stores"},
			}
			for _, move := range moves {
				move.OwnerID = wallets.PlatformOwnerID
				move.Kind = enums.WalletKindPlatform
				move.OrderID = &order.ID
				key := wallets.DedupKey(order.ID, move.TxKind, wallets.PlatformOwnerID, move.Bucket)
				move.DedupKey = &key
				if _, err := s.ledger.Adjust(ctx, tx, move); err != nil {
					return err
				}
			}
		}

		now := time.Now()
		order.SettlementState = enums.SettlementStateReleased
		order.Status = enums.OrderStatusCompleted
		if err := repo.SaveOrder(ctx, order); err != nil {
			return err
		}

		if err := s.emitter.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSettlementReleased,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.SettlementReleasedEvent{
				OrderID:       order.ID,
				StoreOrderIDs: releasedStoreOrders,
				ReleasedAt:    now,
			},
		}); err != nil {
			return err
		}
		s.logg.Info(logCtx, "held funds released")
		return nil
	})
}

// RefundOrderToCustomer reverses every outstanding store allocation of a held
// order and credits the customer wallet with the sum. Runs inside the caller's
// transaction so the cancellation state change commits with the money moves.
func (s *service) RefundOrderToCustomer(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	repo := s.repo.WithTx(tx)
	order, err := repo.FindOrderByIDForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "order not found")
		}
		return err
	}
	switch order.SettlementState {
	case enums.SettlementStateRefunded:
		return nil
	case enums.SettlementStateHeld:
	default:
		return apperrors.New(apperrors.CodeStateConflict,
			fmt.Sprintf("settlement state %q cannot refund", order.SettlementState))
	}

	var refunded int64
	for i := range order.StoreOrders {
		amount, err := s.reverseStoreOrderLedger(ctx, tx, repo, order, &order.StoreOrders[i], reason)
		if err != nil {
			return err
		}
		refunded += amount
	}

	now := time.Now()
	order.SettlementState = enums.SettlementStateRefunded
	if err := repo.SaveOrder(ctx, order); err != nil {
		return err
	}

	if err := s.emitter.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderRefunded,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderRefundedEvent{
			OrderID:     order.ID,
			CustomerID:  order.CustomerID,
			RefundCents: refunded,
			RefundedAt:  now,
		},
	}); err != nil {
		return err
	}
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, "order refunded to customer")
	return nil
}

// RefundStoreOrderToCustomer reverses one store's allocation of a held order.
// When the last store order is reversed the parent settlement flips to
// refunded.
func (s *service) RefundStoreOrderToCustomer(ctx context.Context, tx *gorm.DB, storeOrderID uuid.UUID, reason string) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	repo := s.repo.WithTx(tx)
	storeOrder, err := repo.FindStoreOrderByID(ctx, storeOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "store order not found")
		}
		return err
	}
	order, err := repo.FindOrderByIDForUpdate(ctx, storeOrder.OrderID)
	if err != nil {
		return err
	}
	switch order.SettlementState {
	case enums.SettlementStateRefunded:
		return nil
	case enums.SettlementStateHeld:
	default:
		return apperrors.New(apperrors.CodeStateConflict,
			fmt.Sprintf("settlement state %q cannot refund", order.SettlementState))
	}

	refunded, err := s.reverseStoreOrderLedger(ctx, tx, repo, order, storeOrder, reason)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := s.emitter.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventStoreOrderRefunded,
		AggregateType: enums.AggregateStoreOrder,
		AggregateID:   storeOrder.ID,
		Data: payloads.StoreOrderRefundedEvent{
			OrderID:      order.ID,
			StoreOrderID: storeOrder.ID,
			StoreID:      storeOrder.StoreID,
			CustomerID:   order.CustomerID,
			RefundCents:  refunded,
			RefundedAt:   now,
		},
	}); err != nil {
		return err
	}

	// The parent settlement closes once every line item has been reversed.
	items, err := repo.FindLineItemsByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	allReturned := true
	for _, item := range items {
		if !item.IsReturned {
			allReturned = false
			break
		}
	}
	if allReturned {
		order.SettlementState = enums.SettlementStateRefunded
		if err := repo.SaveOrder(ctx, order); err != nil {
			return err
		}
	}
	return nil
}

// reverseStoreOrderLedger undoes the hold allocations for one store order:
// store pending and total revenue go down, platform pending and total go down,
// refunded total and the customer balance go up. Items are flagged returned so
// they can never reach payout. Amounts already reversed contribute zero.
//
// The customer credit is capped at what was captured: the store order's share
// of the order discount comes off the gross before it reaches the customer,
// returning the platform's discount subsidy with the rest of the hold.
func (s *service) reverseStoreOrderLedger(ctx context.Context, tx *gorm.DB, repo orders.Repository, order *models.Order, storeOrder *models.StoreOrder, reason string) (int64, error) {
	remaining := outstandingCents(storeOrder)
	if remaining == 0 {
		return 0, nil
	}
	if reason == "" {
		reason = "order cancelled"
	}
	discount := discountShareCents(order, storeOrder.ID)
	if discount > remaining {
		discount = remaining
	}
	customerShare := remaining - discount

	storeMoves := []wallets.AdjustInput{
		{Bucket: enums.BucketPending, TxKind: enums.TxnKindRefund, AmountCents: -remaining},
		{Bucket: enums.BucketTotalRevenue, TxKind: enums.TxnKindRefund, AmountCents: -remaining},
	}
	for _, move := range storeMoves {
		move.OwnerID = storeOrder.StoreID
		move.Kind = enums.WalletKindStore
		move.OrderID = &order.ID
		move.Description = reason
		key := wallets.DedupKey(storeOrder.ID, move.TxKind, storeOrder.StoreID, move.Bucket)
		move.DedupKey = &key
		if _, err := s.ledger.Adjust(ctx, tx, move); err != nil {
			return 0, err
		}
	}

	platformMoves := []wallets.AdjustInput{
		{Bucket: enums.BucketPending, TxKind: enums.TxnKindRefund, AmountCents: -remaining},
		{Bucket: enums.BucketTotal, TxKind: enums.TxnKindRefund, AmountCents: -remaining},
	}
	if customerShare > 0 {
		platformMoves = append(platformMoves,
			wallets.AdjustInput{Bucket: enums.BucketRefundedTotal, TxKind: enums.TxnKindRefund, AmountCents: customerShare})
	}
	for _, move := range platformMoves {
		move.OwnerID = wallets.PlatformOwnerID
		move.Kind = enums.WalletKindPlatform
		move.OrderID = &order.ID
		move.Description = reason
		key := wallets.DedupKey(storeOrder.ID, move.TxKind, wallets.PlatformOwnerID, move.Bucket)
		move.DedupKey = &key
		if _, err := s.ledger.Adjust(ctx, tx, move); err != nil {
			return 0, err
		}
	}

	if customerShare > 0 {
		customerKey := wallets.DedupKey(storeOrder.ID, enums.TxnKindRefund, order.CustomerID, enums.BucketBalance)
		if _, err := s.ledger.Adjust(ctx, tx, wallets.AdjustInput{
			OwnerID:     order.CustomerID,
			Kind:        enums.WalletKindCustomer,
			Bucket:      enums.BucketBalance,
			TxKind:      enums.TxnKindRefund,
			AmountCents: customerShare,
			OrderID:     &order.ID,
			DedupKey:    &customerKey,
			Description: reason,
		}); err != nil {
			return 0, err
		}
	}

	for i := range storeOrder.Items {
		item := &storeOrder.Items[i]
		if item.IsReturned {
			continue
		}
		item.IsReturned = true
		if err := repo.SaveLineItem(ctx, item); err != nil {
			return 0, err
		}
	}
	return customerShare, nil
}

// discountShareCents apportions the order-level discount across store orders
// pro rata by subtotal. Floors are taken first and the rounding remainder is
// handed out one cent at a time in store order ID order, so the split is a
// pure function of the order and partial reversals always agree on it.
func discountShareCents(order *models.Order, storeOrderID uuid.UUID) int64 {
	discount := order.DiscountCents
	if discount <= 0 || order.TotalCents <= 0 {
		return 0
	}
	shares := make(map[uuid.UUID]int64, len(order.StoreOrders))
	ids := make([]uuid.UUID, 0, len(order.StoreOrders))
	var assigned int64
	for i := range order.StoreOrders {
		storeOrder := &order.StoreOrders[i]
		share := discount * storeOrder.SubtotalCents / order.TotalCents
		shares[storeOrder.ID] = share
		assigned += share
		ids = append(ids, storeOrder.ID)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	for _, id := range ids {
		if assigned >= discount {
			break
		}
		shares[id]++
		assigned++
	}
	return shares[storeOrderID]
}

// outstandingCents sums the gross of line items whose money is still held for
// the store order. Returned items were reversed individually already.
func outstandingCents(storeOrder *models.StoreOrder) int64 {
	var total int64
	for _, item := range storeOrder.Items {
		if item.IsReturned {
			continue
		}
		total += item.GrossTotalCents
	}
	return total
}
