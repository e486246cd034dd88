package payouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	dbpkg "github.com/duchuyngn/muaban-backend/pkg/db"
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

// Service aggregates payable lines into store-scoped bills and tracks them
// through the pending to paid lifecycle. Marking a bill paid is the single
// point at which items and fees are considered disbursed; wallet balances are
// reconciled against the sum of paid bills, never mutated here.
type Service interface {
	CreateBillForStore(ctx context.Context, storeID uuid.UUID) (*models.PayoutBill, error)
	GetOrCreateBillForStore(ctx context.Context, storeID uuid.UUID) (*models.PayoutBill, error)
	GetBill(ctx context.Context, billID uuid.UUID) (*models.PayoutBill, error)
	ListBillsForStore(ctx context.Context, storeID uuid.UUID) ([]models.PayoutBill, error)
	MarkBillPaid(ctx context.Context, billID uuid.UUID, input PayBillInput) (*models.PayoutBill, error)
	AutoCreateBillsForAllStores(ctx context.Context) ([]uuid.UUID, error)
}

type service struct {
	repo    Repository
	emitter outboxEmitter
	tx      txRunner
	logg    *logger.Logger
	now     func() time.Time
}

// NewService wires the payout bill aggregator.
func NewService(repo Repository, emitter outboxEmitter, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payout repository required")
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
		emitter: emitter,
		tx:      tx,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// CreateBillForStore freezes every payable item, uncharged shipping fee and
// unpaid return shipping fee of the store into a new pending bill. A store
// with nothing to pay out gets a NOTHING_TO_PAYOUT signal, not a bill.
func (s *service) CreateBillForStore(ctx context.Context, storeID uuid.UUID) (*models.PayoutBill, error) {
	if storeID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "store id is required")
	}

	var bill *models.PayoutBill
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		built, err := s.buildBill(ctx, repo, storeID)
		if err != nil {
			return err
		}
		if err := repo.CreateBill(ctx, built); err != nil {
			return err
		}
		if err := s.emitter.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutBillCreated,
			AggregateType: enums.AggregatePayoutBill,
			AggregateID:   built.ID,
			Data: payloads.PayoutBillCreatedEvent{
				BillID:         built.ID,
				StoreID:        storeID,
				ItemCount:      len(built.Items),
				NetPayoutCents: built.TotalNetPayoutCents,
				CreatedAt:      s.now(),
			},
		}); err != nil {
			return err
		}
		bill = built
		return nil
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_payout_bills_store_pending") {
			return nil, apperrors.New(apperrors.CodeStateConflict, "store already has an open payout bill").
				WithDetails(map[string]any{"store_id": storeID})
		}
		return nil, err
	}

	logCtx := s.logg.WithStoreID(ctx, storeID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"bill_id":          bill.ID,
		"item_count":       len(bill.Items),
		"net_payout_cents": bill.TotalNetPayoutCents,
	})
	s.logg.Info(logCtx, "payout bill created")
	return bill, nil
}

// GetOrCreateBillForStore returns the store's open bill when one exists and
// creates one otherwise. Concurrent callers converge on the same bill.
func (s *service) GetOrCreateBillForStore(ctx context.Context, storeID uuid.UUID) (*models.PayoutBill, error) {
	bill, err := s.repo.FindOpenBillForStore(ctx, storeID)
	if err == nil {
		return bill, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	bill, err = s.CreateBillForStore(ctx, storeID)
	if err != nil {
		typed := apperrors.As(err)
		if typed != nil && typed.Code() == apperrors.CodeStateConflict {
			// Lost the race to a concurrent creator.
			return s.repo.FindOpenBillForStore(ctx, storeID)
		}
		return nil, err
	}
	return bill, nil
}

func (s *service) GetBill(ctx context.Context, billID uuid.UUID) (*models.PayoutBill, error) {
	bill, err := s.repo.FindBillByID(ctx, billID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "payout bill not found")
		}
		return nil, err
	}
	return bill, nil
}

func (s *service) ListBillsForStore(ctx context.Context, storeID uuid.UUID) ([]models.PayoutBill, error) {
	return s.repo.ListBillsForStore(ctx, storeID)
}

// MarkBillPaid moves the bill to paid and, in the same transaction, flips the
// payout flags on every referenced item and fee. A bill is paid exactly once;
// a second call is a state conflict.
func (s *service) MarkBillPaid(ctx context.Context, billID uuid.UUID, input PayBillInput) (*models.PayoutBill, error) {
	if input.Reference == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "payment reference is required")
	}

	var bill *models.PayoutBill
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.FindBillByIDForUpdate(ctx, billID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "payout bill not found")
			}
			return err
		}
		if found.Status == enums.PayoutBillStatusPaid {
			return apperrors.New(apperrors.CodeStateConflict, "payout bill already paid").
				WithDetails(map[string]any{"bill_id": found.ID, "paid_at": found.PaidAt})
		}

		// Items refunded through a return after the bill froze must not be
		// disbursed on top of the refund; their lines leave the bill here.
		excluded, err := s.dropReturnedLines(ctx, repo, found)
		if err != nil {
			return err
		}

		var itemIDs, shippingFeeIDs, returnFeeIDs []uuid.UUID
		for _, line := range found.Items {
			switch {
			case line.OrderLineItemID != nil:
				itemIDs = append(itemIDs, *line.OrderLineItemID)
			case line.ShippingFeeID != nil:
				shippingFeeIDs = append(shippingFeeIDs, *line.ShippingFeeID)
			case line.ReturnShippingFeeID != nil:
				returnFeeIDs = append(returnFeeIDs, *line.ReturnShippingFeeID)
			}
		}

		if excluded > 0 {
			logCtx := s.logg.WithStoreID(ctx, found.StoreID.String())
			logCtx = s.logg.WithFields(logCtx, map[string]any{
				"bill_id":        found.ID,
				"excluded_items": excluded,
			})
			s.logg.Warn(logCtx, "returned items excluded from payout bill before payment")
		}

		paidAt := s.now()
		if err := repo.MarkItemsPaidOut(ctx, itemIDs); err != nil {
			return err
		}
		if err := repo.MarkShippingFeesCharged(ctx, shippingFeeIDs, paidAt); err != nil {
			return err
		}
		if err := repo.MarkReturnFeesPaid(ctx, returnFeeIDs, paidAt); err != nil {
			return err
		}

		found.Status = enums.PayoutBillStatusPaid
		found.PaidAt = &paidAt
		found.Reference = &input.Reference
		if input.ReceiptURL != "" {
			found.ReceiptURL = &input.ReceiptURL
		}
		if input.Note != "" {
			found.Note = &input.Note
		}
		if err := repo.SaveBill(ctx, found); err != nil {
			return err
		}

		if err := s.emitter.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutBillPaid,
			AggregateType: enums.AggregatePayoutBill,
			AggregateID:   found.ID,
			Data: payloads.PayoutBillPaidEvent{
				BillID:         found.ID,
				StoreID:        found.StoreID,
				NetPayoutCents: found.TotalNetPayoutCents,
				Reference:      input.Reference,
				PaidAt:         paidAt,
			},
		}); err != nil {
			return err
		}
		bill = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithStoreID(ctx, bill.StoreID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"bill_id":          bill.ID,
		"net_payout_cents": bill.TotalNetPayoutCents,
	})
	s.logg.Info(logCtx, "payout bill paid")
	return bill, nil
}

// dropReturnedLines removes bill lines whose order line item flipped
// is_returned after the bill was frozen and deducts them from the bill
// totals. Returns the number of lines removed.
func (s *service) dropReturnedLines(ctx context.Context, repo Repository, bill *models.PayoutBill) (int, error) {
	var refIDs []uuid.UUID
	for _, line := range bill.Items {
		if line.OrderLineItemID != nil {
			refIDs = append(refIDs, *line.OrderLineItemID)
		}
	}
	if len(refIDs) == 0 {
		return 0, nil
	}

	items, err := repo.ListLineItemsByIDs(ctx, refIDs)
	if err != nil {
		return 0, err
	}
	returned := make(map[uuid.UUID]bool, len(items))
	for _, item := range items {
		if item.IsReturned {
			returned[item.ID] = true
		}
	}
	if len(returned) == 0 {
		return 0, nil
	}

	var dropIDs []uuid.UUID
	kept := bill.Items[:0]
	for _, line := range bill.Items {
		if line.OrderLineItemID != nil && returned[*line.OrderLineItemID] {
			dropIDs = append(dropIDs, line.ID)
			bill.TotalGrossCents -= line.GrossCents
			bill.TotalPlatformFeeCents -= line.PlatformFeeCents
			bill.TotalNetPayoutCents -= line.NetCents
			continue
		}
		kept = append(kept, line)
	}
	bill.Items = kept
	if err := repo.DeleteBillItems(ctx, dropIDs); err != nil {
		return 0, err
	}
	return len(dropIDs), nil
}

// AutoCreateBillsForAllStores walks every store with payables and ensures each
// has an open bill. Stores that fail do not abort the loop.
func (s *service) AutoCreateBillsForAllStores(ctx context.Context) ([]uuid.UUID, error) {
	storeIDs, err := s.repo.ListStoreIDsWithPayables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stores with payables: %w", err)
	}

	var errs error
	var billIDs []uuid.UUID
	for _, storeID := range storeIDs {
		bill, err := s.GetOrCreateBillForStore(ctx, storeID)
		if err != nil {
			typed := apperrors.As(err)
			if typed != nil && typed.Code() == apperrors.CodeNothingToPayout {
				// Payables were consumed between the listing and the bill build.
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("store %s: %w", storeID, err))
			continue
		}
		billIDs = append(billIDs, bill.ID)
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"stores": len(storeIDs),
		"bills":  len(billIDs),
	})
	s.logg.Info(logCtx, "auto billing pass finished")
	return billIDs, errs
}

// buildBill assembles the bill and its frozen line references. Net payout is
// the item totals minus the frozen platform fees, minus shipping overages and
// return shipping charged back to the store.
func (s *service) buildBill(ctx context.Context, repo Repository, storeID uuid.UUID) (*models.PayoutBill, error) {
	items, err := repo.ListPayableItemsForStore(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("list payable items: %w", err)
	}
	shippingFees, err := repo.ListUnchargedShippingFees(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("list shipping fees: %w", err)
	}
	returnFees, err := repo.ListUnpaidReturnShippingFees(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("list return shipping fees: %w", err)
	}
	if len(items) == 0 && len(shippingFees) == 0 && len(returnFees) == 0 {
		return nil, apperrors.New(apperrors.CodeNothingToPayout, "store has no payable items or fees").
			WithDetails(map[string]any{"store_id": storeID})
	}

	bill := &models.PayoutBill{
		ID:      uuid.New(),
		StoreID: storeID,
		Status:  enums.PayoutBillStatusPending,
	}
	for _, item := range items {
		lineItemID := item.ID
		net := item.NetPayoutCents()
		bill.Items = append(bill.Items, models.PayoutBillItem{
			ID:               uuid.New(),
			BillID:           bill.ID,
			OrderLineItemID:  &lineItemID,
			GrossCents:       item.GrossTotalCents,
			PlatformFeeCents: item.PlatformFeeCents,
			NetCents:         net,
		})
		bill.TotalGrossCents += item.GrossTotalCents
		bill.TotalPlatformFeeCents += item.PlatformFeeCents
		bill.TotalNetPayoutCents += net
	}
	for _, fee := range shippingFees {
		feeID := fee.ID
		bill.Items = append(bill.Items, models.PayoutBillItem{
			ID:                 uuid.New(),
			BillID:             bill.ID,
			ShippingFeeID:      &feeID,
			ShippingExtraCents: fee.ExtraCents,
			NetCents:           -fee.ExtraCents,
		})
		bill.TotalShippingFeeCents += fee.ExtraCents
		bill.TotalNetPayoutCents -= fee.ExtraCents
	}
	for _, fee := range returnFees {
		feeID := fee.ID
		bill.Items = append(bill.Items, models.PayoutBillItem{
			ID:                  uuid.New(),
			BillID:              bill.ID,
			ReturnShippingFeeID: &feeID,
			NetCents:            -fee.FeeCents,
		})
		bill.TotalReturnShippingCents += fee.FeeCents
		bill.TotalNetPayoutCents -= fee.FeeCents
	}
	return bill, nil
}
