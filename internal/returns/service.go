package returns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/duchuyngn/muaban-backend/internal/orders"
	"github.com/duchuyngn/muaban-backend/internal/wallets"
	"github.com/duchuyngn/muaban-backend/pkg/config"
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

type walletAdjuster interface {
	Adjust(ctx context.Context, tx *gorm.DB, input wallets.AdjustInput) (*models.WalletTransaction, error)
}

// Service drives the return lifecycle: the customer opens a complaint, the
// store receives the goods or disputes, an operator resolves disputes, and a
// scheduled sweep refunds on behalf of stores that never answer. Every refund
// credits the customer wallet exactly once.
type Service interface {
	CreateReturnRequest(ctx context.Context, input CreateReturnInput) (*models.ReturnRequest, error)
	ShopReceive(ctx context.Context, input ReceiveInput) error
	ShopDispute(ctx context.Context, input DisputeInput) error
	ResolveDispute(ctx context.Context, input ResolveInput) error
	AutoRefundUnresponsive(ctx context.Context) (*AutoRefundResult, error)
}

type service struct {
	repo    orders.Repository
	ledger  walletAdjuster
	emitter outboxEmitter
	tx      txRunner
	cfg     config.SettlementConfig
	logg    *logger.Logger
	now     func() time.Time
}

// NewService wires the return/refund flows.
func NewService(repo orders.Repository, ledger walletAdjuster, emitter outboxEmitter, tx txRunner, cfg config.SettlementConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
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
		repo:    repo,
		ledger:  ledger,
		emitter: emitter,
		tx:      tx,
		cfg:     cfg,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// CreateReturnRequest opens a complaint against a delivered line item. One
// open return per item; the refund amount is frozen at the item's gross.
func (s *service) CreateReturnRequest(ctx context.Context, input CreateReturnInput) (*models.ReturnRequest, error) {
	if input.LineItemID == uuid.Nil || input.CustomerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "line item id and customer id are required")
	}
	if input.Reason == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "return reason is required")
	}

	var request *models.ReturnRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindLineItemByID(ctx, input.LineItemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "line item not found")
			}
			return err
		}
		if item.IsReturned {
			return apperrors.New(apperrors.CodeStateConflict, "line item already returned")
		}
		storeOrder, err := repo.FindStoreOrderByID(ctx, item.StoreOrderID)
		if err != nil {
			return err
		}
		order, err := repo.FindOrderByID(ctx, storeOrder.OrderID)
		if err != nil {
			return err
		}
		if order.CustomerID != input.CustomerID {
			return apperrors.New(apperrors.CodeForbidden, "line item does not belong to customer")
		}

		latest, err := repo.FindLatestReturnForItem(ctx, item.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil && !latest.Status.IsTerminal() {
			return apperrors.New(apperrors.CodeStateConflict, "line item already has an open return").
				WithDetails(map[string]any{"return_id": latest.ID, "status": latest.Status})
		}

		request = &models.ReturnRequest{
			ID:              uuid.New(),
			OrderLineItemID: item.ID,
			CustomerID:      input.CustomerID,
			StoreID:         item.StoreID,
			Status:          enums.ReturnStatusPending,
			Fault:           enums.ReturnFaultUnknown,
			Reason:          input.Reason,
			RefundCents:     item.GrossTotalCents,
		}
		return repo.CreateReturnRequest(ctx, request)
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// ShopReceive accepts the returned goods and refunds the customer from the
// store's allocation. The return shipping charge, when given, lands on the
// store's next payout bill.
func (s *service) ShopReceive(ctx context.Context, input ReceiveInput) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := s.findReturnForStore(ctx, repo, input.ReturnID, input.StoreID)
		if err != nil {
			return err
		}
		if request.Status == enums.ReturnStatusRefunded {
			return nil
		}
		if request.Status != enums.ReturnStatusPending && request.Status != enums.ReturnStatusShipping &&
			request.Status != enums.ReturnStatusDispute {
			return apperrors.New(apperrors.CodeStateConflict, "return cannot be received in its current state").
				WithDetails(map[string]any{"return_id": request.ID, "status": request.Status})
		}

		request.Fault = enums.ReturnFaultStore
		if err := s.executeRefund(ctx, tx, repo, request, enums.ReturnStatusRefunded); err != nil {
			return err
		}
		if input.ReturnShippingCents > 0 {
			if err := repo.CreateReturnShippingFee(ctx, &models.ReturnShippingFee{
				ID:              uuid.New(),
				ReturnRequestID: request.ID,
				StoreID:         request.StoreID,
				FeeCents:        input.ReturnShippingCents,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// ShopDispute contests an open return. The dispute clock starts now; an
// unanswered dispute is auto-refunded by the sweep.
func (s *service) ShopDispute(ctx context.Context, input DisputeInput) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := s.findReturnForStore(ctx, repo, input.ReturnID, input.StoreID)
		if err != nil {
			return err
		}
		if request.Status == enums.ReturnStatusDispute {
			return nil
		}
		if request.Status != enums.ReturnStatusPending && request.Status != enums.ReturnStatusShipping {
			return apperrors.New(apperrors.CodeStateConflict, "only open returns can be disputed").
				WithDetails(map[string]any{"return_id": request.ID, "status": request.Status})
		}

		now := s.now()
		request.Status = enums.ReturnStatusDispute
		request.DisputedAt = &now
		return repo.SaveReturnRequest(ctx, request)
	})
}

// ResolveDispute settles a disputed return: store fault refunds the customer,
// customer fault rejects the return and unblocks the item for payout.
func (s *service) ResolveDispute(ctx context.Context, input ResolveInput) error {
	fault, err := enums.ParseReturnFault(input.Fault)
	if err != nil || fault == enums.ReturnFaultUnknown {
		return apperrors.New(apperrors.CodeValidation, "fault must be customer or store")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := repo.FindReturnRequestByID(ctx, input.ReturnID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "return request not found")
			}
			return err
		}
		if request.Status.IsTerminal() {
			return nil
		}
		if request.Status != enums.ReturnStatusDispute {
			return apperrors.New(apperrors.CodeStateConflict, "only disputed returns can be resolved").
				WithDetails(map[string]any{"return_id": request.ID, "status": request.Status})
		}

		request.Fault = fault
		if fault == enums.ReturnFaultCustomer {
			now := s.now()
			request.Status = enums.ReturnStatusRejected
			request.ResolvedAt = &now
			return repo.SaveReturnRequest(ctx, request)
		}

		if err := s.executeRefund(ctx, tx, repo, request, enums.ReturnStatusRefunded); err != nil {
			return err
		}
		if input.ReturnShippingCents > 0 {
			if err := repo.CreateReturnShippingFee(ctx, &models.ReturnShippingFee{
				ID:              uuid.New(),
				ReturnRequestID: request.ID,
				StoreID:         request.StoreID,
				FeeCents:        input.ReturnShippingCents,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// AutoRefundUnresponsive sweeps disputes past the dispute window and open
// complaints past the complaint window, refunding each customer exactly once.
// Per-return failures are isolated.
func (s *service) AutoRefundUnresponsive(ctx context.Context) (*AutoRefundResult, error) {
	result := &AutoRefundResult{}
	var errs error

	// A store that disputed and went silent pays for the refund itself; an
	// ignored complaint never proved the goods came back, so the platform
	// absorbs that one.
	disputeCutoff := s.now().Add(-s.cfg.DisputeWindow())
	refunded, err := s.autoRefundBatch(ctx, enums.ReturnStatusDispute, disputeCutoff, enums.ReturnFaultStore)
	result.DisputesRefunded = refunded
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("dispute sweep: %w", err))
	}

	complaintCutoff := s.now().Add(-s.cfg.ComplaintWindow())
	refunded, err = s.autoRefundBatch(ctx, enums.ReturnStatusPending, complaintCutoff, enums.ReturnFaultUnknown)
	result.ComplaintsRefunded = refunded
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("complaint sweep: %w", err))
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"disputes_refunded":   result.DisputesRefunded,
		"complaints_refunded": result.ComplaintsRefunded,
	})
	s.logg.Info(logCtx, "auto refund sweep finished")
	return result, errs
}

func (s *service) autoRefundBatch(ctx context.Context, status enums.ReturnStatus, cutoff time.Time, fault enums.ReturnFault) (int, error) {
	candidates, err := s.repo.ListReturnsByStatusOlderThan(ctx, status, cutoff)
	if err != nil {
		return 0, err
	}

	var refunded int
	var errs error
	for _, candidate := range candidates {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			request, err := repo.FindReturnRequestByID(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if request.AutoRefundExecuted || request.Status.IsTerminal() {
				return nil
			}

			request.Fault = fault
			request.AutoRefundExecuted = true
			if err := s.executeRefund(ctx, tx, repo, request, enums.ReturnStatusAutoRefunded); err != nil {
				return err
			}
			refunded++

			return s.emitter.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventReturnAutoRefunded,
				AggregateType: enums.AggregateReturnRequest,
				AggregateID:   request.ID,
				Data: payloads.ReturnAutoRefundedEvent{
					ReturnRequestID: request.ID,
					LineItemID:      request.OrderLineItemID,
					StoreID:         request.StoreID,
					CustomerID:      request.CustomerID,
					Fault:           request.Fault,
					Status:          request.Status,
					RefundCents:     request.RefundCents,
					RefundedAt:      s.now(),
				},
			})
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("return %s: %w", candidate.ID, err))
			logCtx := s.logg.WithField(ctx, "return_id", candidate.ID.String())
			s.logg.Error(logCtx, "auto refund failed", err)
		}
	}
	return refunded, errs
}

// executeRefund moves the item's gross back to the customer and marks the
// item returned. Held orders reverse the pending allocation; released orders
// charge the store's available funds on store fault and the platform's done
// bucket otherwise. All movements are keyed by the return request, so a
// replay cannot double-credit.
func (s *service) executeRefund(ctx context.Context, tx *gorm.DB, repo orders.Repository, request *models.ReturnRequest, terminal enums.ReturnStatus) error {
	item, err := repo.FindLineItemByID(ctx, request.OrderLineItemID)
	if err != nil {
		return err
	}
	storeOrder, err := repo.FindStoreOrderByID(ctx, item.StoreOrderID)
	if err != nil {
		return err
	}
	order, err := repo.FindOrderByIDForUpdate(ctx, storeOrder.OrderID)
	if err != nil {
		return err
	}

	amount := request.RefundCents
	if amount <= 0 {
		amount = item.GrossTotalCents
	}

	switch order.SettlementState {
	case enums.SettlementStateHeld:
		if err := s.reverseHeldAllocation(ctx, tx, request, order, storeOrder, amount); err != nil {
			return err
		}
	case enums.SettlementStateReleased:
		if err := s.reverseReleasedAllocation(ctx, tx, request, order, storeOrder, amount); err != nil {
			return err
		}
	default:
		return apperrors.New(apperrors.CodeStateConflict, "order funds are not refundable in the current settlement state").
			WithDetails(map[string]any{"order_id": order.ID, "settlement_state": order.SettlementState})
	}

	if err := s.creditCustomer(ctx, tx, request, order, amount); err != nil {
		return err
	}

	if !item.IsReturned {
		item.IsReturned = true
		if err := repo.SaveLineItem(ctx, item); err != nil {
			return err
		}
	}

	now := s.now()
	request.Status = terminal
	request.RefundCents = amount
	request.ResolvedAt = &now
	if err := repo.SaveReturnRequest(ctx, request); err != nil {
		return err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"return_id":    request.ID,
		"refund_cents": amount,
		"fault":        request.Fault,
	})
	s.logg.Info(logCtx, "return refunded to customer")
	return nil
}

// reverseHeldAllocation unwinds the item's share of a held settlement: the
// store gives back pending and revenue, the platform gives back its hold.
func (s *service) reverseHeldAllocation(ctx context.Context, tx *gorm.DB, request *models.ReturnRequest, order *models.Order, storeOrder *models.StoreOrder, amount int64) error {
	moves := []wallets.AdjustInput{
		{
			OwnerID:     storeOrder.StoreID,
			Kind:        enums.WalletKindStore,
			Bucket:      enums.BucketPending,
			AmountCents: -amount,
			Description: "return refund, pending allocation reversed",
		},
		{
			OwnerID:     storeOrder.StoreID,
			Kind:        enums.WalletKindStore,
			Bucket:      enums.BucketTotalRevenue,
			AmountCents: -amount,
			Description: "return refund, revenue reversed",
		},
		{
			OwnerID:     wallets.PlatformOwnerID,
			Kind:        enums.WalletKindPlatform,
			Bucket:      enums.BucketPending,
			AmountCents: -amount,
			Description: "return refund, platform hold reversed",
		},
		{
			OwnerID:     wallets.PlatformOwnerID,
			Kind:        enums.WalletKindPlatform,
			Bucket:      enums.BucketTotal,
			AmountCents: -amount,
			Description: "return refund, platform hold reversed",
		},
		{
			OwnerID:     wallets.PlatformOwnerID,
			Kind:        enums.WalletKindPlatform,
			Bucket:      enums.BucketRefundedTotal,
			AmountCents: amount,
			Description: "return refund recorded",
		},
	}
	return s.applyRefundMoves(ctx, tx, request, order, moves)
}

// reverseReleasedAllocation refunds after funds already cleared the hold.
// Store fault debits the store's available balance; otherwise the platform
// absorbs the refund from its done bucket.
func (s *service) reverseReleasedAllocation(ctx context.Context, tx *gorm.DB, request *models.ReturnRequest, order *models.Order, storeOrder *models.StoreOrder, amount int64) error {
	var moves []wallets.AdjustInput
	if request.Fault == enums.ReturnFaultStore {
		moves = append(moves, wallets.AdjustInput{
			OwnerID:     storeOrder.StoreID,
			Kind:        enums.WalletKindStore,
			Bucket:      enums.BucketAvailable,
			AmountCents: -amount,
			Description: "return refund charged to store",
		}, wallets.AdjustInput{
			OwnerID:     storeOrder.StoreID,
			Kind:        enums.WalletKindStore,
			Bucket:      enums.BucketTotalRevenue,
			AmountCents: -amount,
			Description: "return refund, revenue reversed",
		})
	} else {
		moves = append(moves, wallets.AdjustInput{
			OwnerID:     wallets.PlatformOwnerID,
			Kind:        enums.WalletKindPlatform,
			Bucket:      enums.BucketDone,
			AmountCents: -amount,
			Description: "return refund absorbed by platform",
		}, wallets.AdjustInput{
			OwnerID:     wallets.PlatformOwnerID,
			Kind:        enums.WalletKindPlatform,
			Bucket:      enums.BucketTotal,
			AmountCents: -amount,
			Description: "return refund absorbed by platform",
		})
	}
	moves = append(moves, wallets.AdjustInput{
		OwnerID:     wallets.PlatformOwnerID,
		Kind:        enums.WalletKindPlatform,
		Bucket:      enums.BucketRefundedTotal,
		AmountCents: amount,
		Description: "return refund recorded",
	})
	return s.applyRefundMoves(ctx, tx, request, order, moves)
}

func (s *service) creditCustomer(ctx context.Context, tx *gorm.DB, request *models.ReturnRequest, order *models.Order, amount int64) error {
	return s.applyRefundMoves(ctx, tx, request, order, []wallets.AdjustInput{{
		OwnerID:     request.CustomerID,
		Kind:        enums.WalletKindCustomer,
		Bucket:      enums.BucketBalance,
		AmountCents: amount,
		Description: "return refund",
	}})
}

func (s *service) applyRefundMoves(ctx context.Context, tx *gorm.DB, request *models.ReturnRequest, order *models.Order, moves []wallets.AdjustInput) error {
	for _, move := range moves {
		move.TxKind = enums.TxnKindRefund
		move.OrderID = &order.ID
		dedupKey := wallets.DedupKey(request.ID, enums.TxnKindRefund, move.OwnerID, move.Bucket)
		move.DedupKey = &dedupKey
		if _, err := s.ledger.Adjust(ctx, tx, move); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) findReturnForStore(ctx context.Context, repo orders.Repository, returnID, storeID uuid.UUID) (*models.ReturnRequest, error) {
	if returnID == uuid.Nil || storeID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "return id and store id are required")
	}
	request, err := repo.FindReturnRequestByID(ctx, returnID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "return request not found")
		}
		return nil, err
	}
	if request.StoreID != storeID {
		return nil, apperrors.New(apperrors.CodeForbidden, "return belongs to a different store")
	}
	return request, nil
}
