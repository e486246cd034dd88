package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/duchuyngn/muaban-backend/pkg/db/models"
	"github.com/duchuyngn/muaban-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payout repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// ListPayableItemsForStore returns line items cleared for payout and not yet
// billed. Returned items stay excluded even when they were eligible before.
func (r *repository) ListPayableItemsForStore(ctx context.Context, storeID uuid.UUID) ([]models.OrderLineItem, error) {
	var items []models.OrderLineItem
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND eligible_for_payout = ? AND is_payout = ? AND is_returned = ?",
			storeID, true, false, false).
		Order("delivered_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ListUnchargedShippingFees returns shipping differentials for delivered store
// orders that have not yet been charged on a bill.
func (r *repository) ListUnchargedShippingFees(ctx context.Context, storeID uuid.UUID) ([]models.ShippingFee, error) {
	var fees []models.ShippingFee
	err := r.db.WithContext(ctx).
		Joins("JOIN store_orders ON store_orders.id = shipping_fees.store_order_id").
		Where("shipping_fees.store_id = ? AND shipping_fees.paid_by_store = ?", storeID, false).
		Where("store_orders.delivered_at IS NOT NULL").
		Find(&fees).Error
	if err != nil {
		return nil, err
	}
	return fees, nil
}

func (r *repository) ListUnpaidReturnShippingFees(ctx context.Context, storeID uuid.UUID) ([]models.ReturnShippingFee, error) {
	var fees []models.ReturnShippingFee
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND paid = ?", storeID, false).
		Find(&fees).Error
	if err != nil {
		return nil, err
	}
	return fees, nil
}

// ListStoreIDsWithPayables returns every store that has at least one payable
// item or uncharged fee. Drives the periodic auto-billing loop.
func (r *repository) ListStoreIDsWithPayables(ctx context.Context) ([]uuid.UUID, error) {
	var itemStores []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.OrderLineItem{}).
		Distinct("store_id").
		Where("eligible_for_payout = ? AND is_payout = ? AND is_returned = ?", true, false, false).
		Pluck("store_id", &itemStores).Error
	if err != nil {
		return nil, err
	}

	var feeStores []uuid.UUID
	err = r.db.WithContext(ctx).
		Model(&models.ShippingFee{}).
		Distinct("shipping_fees.store_id").
		Joins("JOIN store_orders ON store_orders.id = shipping_fees.store_order_id").
		Where("shipping_fees.paid_by_store = ? AND store_orders.delivered_at IS NOT NULL", false).
		Pluck("store_id", &feeStores).Error
	if err != nil {
		return nil, err
	}

	var returnFeeStores []uuid.UUID
	err = r.db.WithContext(ctx).
		Model(&models.ReturnShippingFee{}).
		Distinct("store_id").
		Where("paid = ?", false).
		Pluck("store_id", &returnFeeStores).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{})
	var storeIDs []uuid.UUID
	for _, group := range [][]uuid.UUID{itemStores, feeStores, returnFeeStores} {
		for _, id := range group {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			storeIDs = append(storeIDs, id)
		}
	}
	return storeIDs, nil
}

func (r *repository) CreateBill(ctx context.Context, bill *models.PayoutBill) error {
	return r.db.WithContext(ctx).Create(bill).Error
}

func (r *repository) SaveBill(ctx context.Context, bill *models.PayoutBill) error {
	return r.db.WithContext(ctx).Omit("Items").Save(bill).Error
}

func (r *repository) FindBillByID(ctx context.Context, id uuid.UUID) (*models.PayoutBill, error) {
	var bill models.PayoutBill
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&bill).Error
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

// FindBillByIDForUpdate locks the bill row. The item references are immutable
// once the bill exists, so only the header needs the lock.
func (r *repository) FindBillByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PayoutBill, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var bill models.PayoutBill
	if err := query.Where("id = ?", id).First(&bill).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("bill_id = ?", bill.ID).Find(&bill.Items).Error; err != nil {
		return nil, err
	}
	return &bill, nil
}

func (r *repository) FindOpenBillForStore(ctx context.Context, storeID uuid.UUID) (*models.PayoutBill, error) {
	var bill models.PayoutBill
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("store_id = ? AND status = ?", storeID, enums.PayoutBillStatusPending).
		First(&bill).Error
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

func (r *repository) ListBillsForStore(ctx context.Context, storeID uuid.UUID) ([]models.PayoutBill, error) {
	var bills []models.PayoutBill
	err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("created_at DESC").
		Find(&bills).Error
	if err != nil {
		return nil, err
	}
	return bills, nil
}

func (r *repository) ListLineItemsByIDs(ctx context.Context, itemIDs []uuid.UUID) ([]models.OrderLineItem, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	var items []models.OrderLineItem
	err := r.db.WithContext(ctx).
		Where("id IN ?", itemIDs).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) DeleteBillItems(ctx context.Context, billItemIDs []uuid.UUID) error {
	if len(billItemIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("id IN ?", billItemIDs).
		Delete(&models.PayoutBillItem{}).Error
}

func (r *repository) MarkItemsPaidOut(ctx context.Context, itemIDs []uuid.UUID) error {
	if len(itemIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.OrderLineItem{}).
		Where("id IN ?", itemIDs).
		Update("is_payout", true).Error
}

func (r *repository) MarkShippingFeesCharged(ctx context.Context, feeIDs []uuid.UUID, paidAt time.Time) error {
	if len(feeIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.ShippingFee{}).
		Where("id IN ?", feeIDs).
		Updates(map[string]any{"paid_by_store": true, "paid_at": paidAt}).Error
}

func (r *repository) MarkReturnFeesPaid(ctx context.Context, feeIDs []uuid.UUID, paidAt time.Time) error {
	if len(feeIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.ReturnShippingFee{}).
		Where("id IN ?", feeIDs).
		Updates(map[string]any{"paid": true, "paid_at": paidAt}).Error
}
