package cancellations

import (
	"context"
	"errors"
	"fmt"
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

type orderRefunder interface {
	RefundOrderToCustomer(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error
	RefundStoreOrderToCustomer(ctx context.Context, tx *gorm.DB, storeOrderID uuid.UUID, reason string) error
}

type walletAdjuster interface {
	Adjust(ctx context.Context, tx *gorm.DB, input wallets.AdjustInput) (*models.WalletTransaction, error)
}

// Service handles order cancellation on both sides of the marketplace: the
// customer's immediate cancel while the order is still pending, and the
// request/approve/reject flow once a store order is in flight.
type Service interface {
	CustomerCancelOrderIfPending(ctx context.Context, input CancelOrderInput) error
	RequestStoreOrderCancel(ctx context.Context, input RequestCancelInput) error
	ApproveCancel(ctx context.Context, input ResolveCancelInput) error
	RejectCancel(ctx context.Context, input ResolveCancelInput) error
}

type service struct {
	repo     orders.Repository
	refunder orderRefunder
	ledger   walletAdjuster
	emitter  outboxEmitter
	tx       txRunner
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the cancellation flows.
func NewService(repo orders.Repository, refunder orderRefunder, ledger walletAdjuster, emitter outboxEmitter, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if refunder == nil {
		return nil, fmt.Errorf("refunder required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("wallet ledger required")
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
	return &service{
		repo:     repo,
		refunder: refunder,
		ledger:   ledger,
		emitter:  emitter,
		tx:       tx,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// CustomerCancelOrderIfPending cancels a whole order without store approval.
// Allowed only while the parent order is still pending; anything later has to
// go through the per-store request flow.
func (s *service) CustomerCancelOrderIfPending(ctx context.Context, input CancelOrderInput) error {
	if input.OrderID == uuid.Nil || input.CustomerID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "order id and customer id are required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrderByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "order not found")
			}
			return err
		}
		if order.CustomerID != input.CustomerID {
			return apperrors.New(apperrors.CodeForbidden, "order does not belong to customer")
		}
		if order.Status == enums.OrderStatusCancelled {
			return nil
		}
		if order.Status != enums.OrderStatusPending {
			return apperrors.New(apperrors.CodeStateConflict, "order status must be PENDING to cancel immediately").
				WithDetails(map[string]any{"order_id": order.ID, "status": order.Status})
		}

		wasPaid := order.SettlementState == enums.SettlementStateHeld
		reason := input.Reason
		if reason == "" {
			reason = "cancelled by customer"
		}
		if wasPaid {
			if err := s.refunder.RefundOrderToCustomer(ctx, tx, order.ID, reason); err != nil {
				return err
			}
			order.SettlementState = enums.SettlementStateRefunded
		} else if amount := order.TotalCents - order.DiscountCents; amount > 0 {
			// Payment captured but not yet settled through the ledger: the
			// reversal goes straight to the customer wallet.
			dedupKey := wallets.DedupKey(order.ID, enums.TxnKindRefund, order.CustomerID, enums.BucketBalance)
			if _, err := s.ledger.Adjust(ctx, tx, wallets.AdjustInput{
				OwnerID:     order.CustomerID,
				Kind:        enums.WalletKindCustomer,
				Bucket:      enums.BucketBalance,
				TxKind:      enums.TxnKindRefund,
				AmountCents: amount,
				OrderID:     &order.ID,
				DedupKey:    &dedupKey,
				Description: "payment reversed on order cancellation",
			}); err != nil {
				return err
			}
		}

		now := s.now()
		for i := range order.StoreOrders {
			storeOrder := &order.StoreOrders[i]
			if storeOrder.Status == enums.StoreOrderStatusCancelled {
				continue
			}
			storeOrder.Status = enums.StoreOrderStatusCancelled
			storeOrder.CancelledAt = &now
			storeOrder.CancelReason = &reason
			if err := repo.SaveStoreOrder(ctx, storeOrder); err != nil {
				return err
			}
		}
		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now
		if err := repo.SaveOrder(ctx, order); err != nil {
			return err
		}

		if err := s.emitter.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				CustomerID:  order.CustomerID,
				WasPaid:     wasPaid,
				CancelledAt: now,
				Reason:      input.Reason,
			},
		}); err != nil {
			return err
		}

		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Info(logCtx, "order cancelled by customer")
		return nil
	})
}

// RequestStoreOrderCancel moves one store order into cancel_requested. Only a
// sub-order still awaiting shipment can be asked to cancel.
func (s *service) RequestStoreOrderCancel(ctx context.Context, input RequestCancelInput) error {
	if input.StoreOrderID == uuid.Nil || input.CustomerID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "store order id and customer id are required")
	}
	if input.Reason == "" {
		return apperrors.New(apperrors.CodeValidation, "cancellation reason is required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		storeOrder, err := repo.FindStoreOrderByID(ctx, input.StoreOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "store order not found")
			}
			return err
		}
		order, err := repo.FindOrderByID(ctx, storeOrder.OrderID)
		if err != nil {
			return err
		}
		if order.CustomerID != input.CustomerID {
			return apperrors.New(apperrors.CodeForbidden, "order does not belong to customer")
		}
		if storeOrder.Status == enums.StoreOrderStatusCancelRequested {
			return nil
		}
		if storeOrder.Status != enums.StoreOrderStatusAwaitingShipment {
			return apperrors.New(apperrors.CodeStateConflict, "only store orders awaiting shipment can be cancel-requested").
				WithDetails(map[string]any{"store_order_id": storeOrder.ID, "status": storeOrder.Status})
		}

		storeOrder.Status = enums.StoreOrderStatusCancelRequested
		storeOrder.CancelReason = &input.Reason
		return repo.SaveStoreOrder(ctx, storeOrder)
	})
}

// ApproveCancel accepts a pending cancel request: the store order is
// cancelled, its settled allocation is reversed back to the customer, and the
// parent order is cancelled once every sibling is.
func (s *service) ApproveCancel(ctx context.Context, input ResolveCancelInput) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		storeOrder, err := s.findStoreOrderForStore(ctx, repo, input)
		if err != nil {
			return err
		}
		if storeOrder.Status == enums.StoreOrderStatusCancelled {
			return nil
		}
		if storeOrder.Status != enums.StoreOrderStatusCancelRequested {
			return apperrors.New(apperrors.CodeStateConflict, "no pending cancel request for store order").
				WithDetails(map[string]any{"store_order_id": storeOrder.ID, "status": storeOrder.Status})
		}

		order, err := repo.FindOrderByIDForUpdate(ctx, storeOrder.OrderID)
		if err != nil {
			return err
		}
		reason := "cancel request approved by store"
		if storeOrder.CancelReason != nil {
			reason = *storeOrder.CancelReason
		}
		if order.SettlementState == enums.SettlementStateHeld {
			if err := s.refunder.RefundStoreOrderToCustomer(ctx, tx, storeOrder.ID, reason); err != nil {
				return err
			}
		}

		now := s.now()
		storeOrder.Status = enums.StoreOrderStatusCancelled
		storeOrder.CancelledAt = &now
		if err := repo.SaveStoreOrder(ctx, storeOrder); err != nil {
			return err
		}

		// The refund path may have advanced the parent's settlement state, so
		// the all-cancelled check works on a fresh load.
		order, err = repo.FindOrderByID(ctx, order.ID)
		if err != nil {
			return err
		}
		siblings, err := repo.FindStoreOrdersByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		allCancelled := true
		for _, sibling := range siblings {
			if sibling.Status != enums.StoreOrderStatusCancelled {
				allCancelled = false
				break
			}
		}
		if allCancelled && order.Status != enums.OrderStatusCancelled {
			order.Status = enums.OrderStatusCancelled
			order.CancelledAt = &now
			if err := repo.SaveOrder(ctx, order); err != nil {
				return err
			}
		}

		if err := s.emitter.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStoreOrderCancelled,
			AggregateType: enums.AggregateStoreOrder,
			AggregateID:   storeOrder.ID,
			Data: payloads.StoreOrderCancelledEvent{
				OrderID:      order.ID,
				StoreOrderID: storeOrder.ID,
				StoreID:      storeOrder.StoreID,
				CancelledAt:  now,
				Reason:       reason,
			},
		}); err != nil {
			return err
		}

		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		logCtx = s.logg.WithStoreID(logCtx, storeOrder.StoreID.String())
		s.logg.Info(logCtx, "store order cancel approved")
		return nil
	})
}

// RejectCancel declines a pending cancel request and puts the store order back
// in the shipment queue.
func (s *service) RejectCancel(ctx context.Context, input ResolveCancelInput) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		storeOrder, err := s.findStoreOrderForStore(ctx, repo, input)
		if err != nil {
			return err
		}
		if storeOrder.Status == enums.StoreOrderStatusAwaitingShipment {
			return nil
		}
		if storeOrder.Status != enums.StoreOrderStatusCancelRequested {
			return apperrors.New(apperrors.CodeStateConflict, "no pending cancel request for store order").
				WithDetails(map[string]any{"store_order_id": storeOrder.ID, "status": storeOrder.Status})
		}

		storeOrder.Status = enums.StoreOrderStatusAwaitingShipment
		storeOrder.CancelReason = nil
		return repo.SaveStoreOrder(ctx, storeOrder)
	})
}

func (s *service) findStoreOrderForStore(ctx context.Context, repo orders.Repository, input ResolveCancelInput) (*models.StoreOrder, error) {
	if input.StoreOrderID == uuid.Nil || input.StoreID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "store order id and store id are required")
	}
	storeOrder, err := repo.FindStoreOrderByID(ctx, input.StoreOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "store order not found")
		}
		return nil, err
	}
	if storeOrder.StoreID != input.StoreID {
		return nil, apperrors.New(apperrors.CodeForbidden, "store order belongs to a different store")
	}
	return storeOrder, nil
}
