package eligibility

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/duchuyngn/muaban-backend/pkg/config"
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

type holdReleaser interface {
	ReleaseAfterHold(ctx context.Context, orderID uuid.UUID) error
}

// SweepResult summarizes one sweep run.
type SweepResult struct {
	Backfilled  int64       `json:"backfilled"`
	Flagged     int         `json:"flagged"`
	Promoted    int         `json:"promoted"`
	Quarantined int         `json:"quarantined"`
	Released    []uuid.UUID `json:"released_orders,omitempty"`
}

// Service runs the payout eligibility sweeps. All three sweeps are idempotent:
// re-running over an already-processed item is a no-op, so the cron cadence
// and the on-demand admin trigger can overlap safely.
type Service interface {
	RunSweep(ctx context.Context) (*SweepResult, error)
}

type service struct {
	repo     Repository
	releaser holdReleaser
	emitter  outboxEmitter
	tx       txRunner
	cfg      config.SettlementConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the eligibility evaluator.
func NewService(repo Repository, releaser holdReleaser, emitter outboxEmitter, tx txRunner, cfg config.SettlementConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("eligibility repository required")
	}
	if releaser == nil {
		return nil, fmt.Errorf("hold releaser required")
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
		releaser: releaser,
		emitter:  emitter,
		tx:       tx,
		cfg:      cfg,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// RunSweep executes the three sweeps in dependency order: backfill delivery
// timestamps, flag refunded items, promote items past the hold window. A
// failing item is isolated; the sweep continues and reports combined errors.
func (s *service) RunSweep(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{}
	var errs error

	if err := s.backfillDeliveredAt(ctx, result); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("delivered-at backfill: %w", err))
	}
	if err := s.flagReturnedItems(ctx, result); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("return flagging: %w", err))
	}

	releaseCandidates, promoteErr := s.promoteEligibleItems(ctx, result)
	if promoteErr != nil {
		errs = multierr.Append(errs, promoteErr)
	}

	for _, orderID := range releaseCandidates {
		if err := s.releaser.ReleaseAfterHold(ctx, orderID); err != nil {
			typed := apperrors.As(err)
			if typed != nil && typed.Code() == apperrors.CodeStateConflict {
				// Another path (refund, concurrent sweep) moved the order on.
				logCtx := s.logg.WithOrderID(ctx, orderID.String())
				s.logg.Warn(logCtx, "order no longer held, release skipped")
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("release order %s: %w", orderID, err))
			continue
		}
		result.Released = append(result.Released, orderID)
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"backfilled":  result.Backfilled,
		"flagged":     result.Flagged,
		"promoted":    result.Promoted,
		"quarantined": result.Quarantined,
		"released":    len(result.Released),
	})
	s.logg.Info(logCtx, "eligibility sweep finished")
	return result, errs
}

func (s *service) backfillDeliveredAt(ctx context.Context, result *SweepResult) error {
	storeOrders, err := s.repo.ListBackfillStoreOrders(ctx)
	if err != nil {
		return err
	}
	var errs error
	for _, storeOrder := range storeOrders {
		if storeOrder.DeliveredAt == nil {
			continue
		}
		affected, err := s.repo.BackfillItemDeliveredAt(ctx, storeOrder.ID, *storeOrder.DeliveredAt)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("store order %s: %w", storeOrder.ID, err))
			continue
		}
		result.Backfilled += affected
	}
	return errs
}

func (s *service) flagReturnedItems(ctx context.Context, result *SweepResult) error {
	items, err := s.repo.ListReturnFlagCandidates(ctx)
	if err != nil {
		return err
	}
	var errs error
	for _, candidate := range items {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			item, err := repo.FindItemByIDForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if item.IsReturned {
				return nil
			}
			item.IsReturned = true
			if err := repo.SaveItem(ctx, item); err != nil {
				return err
			}
			result.Flagged++
			return nil
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("flag item %s: %w", candidate.ID, err))
		}
	}
	return errs
}

func (s *service) promoteEligibleItems(ctx context.Context, result *SweepResult) ([]uuid.UUID, error) {
	cutoff := s.now().Add(-s.cfg.HoldWindow())
	items, err := s.repo.ListPromotionCandidates(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list promotion candidates: %w", err)
	}

	var errs error
	releaseSet := make(map[uuid.UUID]struct{})
	var releaseOrder []uuid.UUID
	for _, candidate := range items {
		orderID, promoted, err := s.promoteItem(ctx, candidate.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("promote item %s: %w", candidate.ID, err))
			s.recordSweepFailure(ctx, candidate.ID, err, result)
			continue
		}
		if promoted {
			result.Promoted++
		}
		if orderID != uuid.Nil {
			if _, seen := releaseSet[orderID]; !seen {
				releaseSet[orderID] = struct{}{}
				releaseOrder = append(releaseOrder, orderID)
			}
		}
	}
	return releaseOrder, errs
}

// promoteItem flips one item eligible inside its own transaction. Returns the
// parent order id when this flip left the order with no outstanding items.
func (s *service) promoteItem(ctx context.Context, itemID uuid.UUID) (uuid.UUID, bool, error) {
	var releaseOrderID uuid.UUID
	var promoted bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItemByIDForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if item.EligibleForPayout || item.IsPayout || item.IsReturned || item.Quarantined {
			return nil
		}
		if item.DeliveredAt == nil || item.DeliveredAt.Add(s.cfg.HoldWindow()).After(s.now()) {
			return nil
		}

		lastReturn, err := repo.FindLatestReturnForItem(ctx, item.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil && lastReturn.Status.BlocksPayout() {
			return nil
		}

		item.EligibleForPayout = true
		if err := repo.SaveItem(ctx, item); err != nil {
			return err
		}
		promoted = true

		storeOrder, err := repo.FindStoreOrderByID(ctx, item.StoreOrderID)
		if err != nil {
			return err
		}
		deliveredAt := *item.DeliveredAt
		if err := s.emitter.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventItemEligible,
			AggregateType: enums.AggregateStoreOrder,
			AggregateID:   item.ID,
			Data: payloads.ItemPayoutEligibleEvent{
				LineItemID:   item.ID,
				StoreOrderID: storeOrder.ID,
				StoreID:      storeOrder.StoreID,
				DeliveredAt:  deliveredAt,
				EligibleAt:   s.now(),
			},
		}); err != nil {
			return err
		}

		outstanding, err := repo.CountOutstandingItems(ctx, storeOrder.OrderID)
		if err != nil {
			return err
		}
		if outstanding == 0 {
			releaseOrderID = storeOrder.OrderID
		}
		return nil
	})
	return releaseOrderID, promoted, err
}

// recordSweepFailure bumps the item's attempt counter; after the configured
// number of failures the item is quarantined and skipped until an operator
// clears it.
func (s *service) recordSweepFailure(ctx context.Context, itemID uuid.UUID, cause error, result *SweepResult) {
	maxAttempts := s.cfg.SweepMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItemByIDForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		item.SweepAttempts++
		if item.SweepAttempts >= maxAttempts && !item.Quarantined {
			item.Quarantined = true
			result.Quarantined++
			if err := s.emitter.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventSweepItemQuarantined,
				AggregateType: enums.AggregateStoreOrder,
				AggregateID:   item.ID,
				Data: payloads.SweepItemQuarantinedEvent{
					LineItemID:    item.ID,
					StoreOrderID:  item.StoreOrderID,
					Attempts:      item.SweepAttempts,
					LastError:     cause.Error(),
					QuarantinedAt: s.now(),
				},
			}); err != nil {
				return err
			}
		}
		return repo.SaveItem(ctx, item)
	})
	if err != nil {
		logCtx := s.logg.WithField(ctx, "line_item_id", itemID.String())
		s.logg.Error(logCtx, "failed to record sweep failure", err)
	}
}
