package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/duchuyngn/muaban-backend/pkg/db"
	"github.com/duchuyngn/muaban-backend/pkg/db/models"
	"github.com/duchuyngn/muaban-backend/pkg/enums"
	apperrors "github.com/duchuyngn/muaban-backend/pkg/errors"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

var maxFeePct = decimal.NewFromInt(100)

// Service covers order ingestion plus the carrier-facing mutations: delivery
// confirmations and actual-shipping-fee reconciliation.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ConfirmDelivery(ctx context.Context, input DeliveryInput) error
	RecordActualShippingFee(ctx context.Context, input ShippingFeeInput) error
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
}

// NewService wires an order service with its dependencies.
func NewService(repo Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, logg: logg}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.CustomerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "customer id is required")
	}
	if len(input.StoreOrders) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "at least one store order is required")
	}
	if input.DiscountCents < 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "discount must not be negative")
	}

	var totalCents int64
	order := &models.Order{
		ID:              uuid.New(),
		CustomerID:      input.CustomerID,
		DiscountCents:   input.DiscountCents,
		Status:          enums.OrderStatusPending,
		SettlementState: enums.SettlementStateNone,
	}

	for _, storeInput := range input.StoreOrders {
		if storeInput.StoreID == uuid.Nil {
			return nil, apperrors.New(apperrors.CodeValidation, "store id is required")
		}
		if len(storeInput.Items) == 0 {
			return nil, apperrors.New(apperrors.CodeValidation, "store order requires at least one item")
		}
		storeOrder := models.StoreOrder{
			ID:                     uuid.New(),
			OrderID:                order.ID,
			StoreID:                storeInput.StoreID,
			EstimatedShippingCents: storeInput.EstimatedShippingCents,
			Status:                 enums.StoreOrderStatusAwaitingShipment,
		}
		for _, itemInput := range storeInput.Items {
			if err := validateLineItem(itemInput); err != nil {
				return nil, err
			}
			storeOrder.SubtotalCents += itemInput.GrossTotalCents
			storeOrder.Items = append(storeOrder.Items, models.OrderLineItem{
				ID:               uuid.New(),
				StoreOrderID:     storeOrder.ID,
				StoreID:          storeInput.StoreID,
				ProductID:        itemInput.ProductID,
				Name:             itemInput.Name,
				Qty:              itemInput.Qty,
				GrossTotalCents:  itemInput.GrossTotalCents,
				PlatformFeePct:   itemInput.PlatformFeePct,
				CostOfGoodsCents: itemInput.CostOfGoodsCents,
			})
		}
		totalCents += storeOrder.SubtotalCents
		order.StoreOrders = append(order.StoreOrders, storeOrder)
	}
	order.TotalCents = totalCents

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, "order registered")
	return order, nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return order, nil
}

// ConfirmDelivery stamps delivered_at on the store order and every item
// missing it, starting the payout hold clock. Repeat confirmations are no-ops.
func (s *service) ConfirmDelivery(ctx context.Context, input DeliveryInput) error {
	if input.StoreOrderID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "store order id is required")
	}
	if input.DeliveredAt.IsZero() {
		return apperrors.New(apperrors.CodeValidation, "delivered_at is required")
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
		if storeOrder.DeliveredAt != nil {
			return nil
		}
		switch storeOrder.Status {
		case enums.StoreOrderStatusCancelled:
			return apperrors.New(apperrors.CodeStateConflict, "cancelled store order cannot be delivered")
		}

		deliveredAt := input.DeliveredAt
		storeOrder.DeliveredAt = &deliveredAt
		storeOrder.Status = enums.StoreOrderStatusDelivered
		if err := repo.SaveStoreOrder(ctx, storeOrder); err != nil {
			return err
		}
		if _, err := repo.BackfillItemDeliveredAt(ctx, storeOrder.ID, deliveredAt); err != nil {
			return err
		}
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"store_order_id": storeOrder.ID.String(),
			"delivered_at":   deliveredAt,
		})
		s.logg.Info(logCtx, "delivery confirmed")
		return nil
	})
}

// RecordActualShippingFee stores the carrier-reconciled fee and, when the
// actual exceeds the estimate, books the differential against the store.
func (s *service) RecordActualShippingFee(ctx context.Context, input ShippingFeeInput) error {
	if input.StoreOrderID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "store order id is required")
	}
	if input.ActualFeeCents < 0 {
		return apperrors.New(apperrors.CodeValidation, "actual fee must not be negative")
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

		actual := input.ActualFeeCents
		storeOrder.ActualShippingCents = &actual
		if err := repo.SaveStoreOrder(ctx, storeOrder); err != nil {
			return err
		}

		extra := actual - storeOrder.EstimatedShippingCents
		if extra <= 0 {
			return nil
		}
		fee := &models.ShippingFee{
			ID:           uuid.New(),
			StoreOrderID: storeOrder.ID,
			StoreID:      storeOrder.StoreID,
			ExtraCents:   extra,
		}
		if err := repo.CreateShippingFee(ctx, fee); err != nil {
			// One differential per store order; replays keep the first row.
			if dbpkg.IsUniqueViolation(err, "ux_shipping_fees_store_order_id") {
				return nil
			}
			return err
		}
		return nil
	})
}

func validateLineItem(input CreateLineItemInput) error {
	if input.Name == "" {
		return apperrors.New(apperrors.CodeValidation, "item name is required")
	}
	if input.Qty <= 0 {
		return apperrors.New(apperrors.CodeValidation, "item qty must be positive")
	}
	if input.GrossTotalCents <= 0 {
		return apperrors.New(apperrors.CodeValidation, "item gross total must be positive")
	}
	if input.PlatformFeePct.IsNegative() || input.PlatformFeePct.GreaterThan(maxFeePct) {
		return apperrors.New(apperrors.CodeValidation, "platform fee pct must be between 0 and 100")
	}
	if input.CostOfGoodsCents < 0 {
		return apperrors.New(apperrors.CodeValidation, "cost of goods must not be negative")
	}
	return nil
}
