package eligibility

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

// NewRepository builds an eligibility repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// ListBackfillStoreOrders returns delivered store orders that still have line
// items without a delivered timestamp. Covers delivery confirmations that
// arrived while the items were being written.
func (r *repository) ListBackfillStoreOrders(ctx context.Context) ([]models.StoreOrder, error) {
	var storeOrders []models.StoreOrder
	err := r.db.WithContext(ctx).
		Distinct("store_orders.*").
		Joins("JOIN order_line_items ON order_line_items.store_order_id = store_orders.id").
		Where("store_orders.delivered_at IS NOT NULL AND order_line_items.delivered_at IS NULL").
		Find(&storeOrders).Error
	if err != nil {
		return nil, err
	}
	return storeOrders, nil
}

func (r *repository) BackfillItemDeliveredAt(ctx context.Context, storeOrderID uuid.UUID, deliveredAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.OrderLineItem{}).
		Where("store_order_id = ? AND delivered_at IS NULL", storeOrderID).
		Update("delivered_at", deliveredAt)
	return result.RowsAffected, result.Error
}

// ListReturnFlagCandidates returns items not yet flagged returned whose linked
// return reached a refunded terminal state.
func (r *repository) ListReturnFlagCandidates(ctx context.Context) ([]models.OrderLineItem, error) {
	var items []models.OrderLineItem
	err := r.db.WithContext(ctx).
		Distinct("order_line_items.*").
		Joins("JOIN return_requests ON return_requests.order_line_item_id = order_line_items.id").
		Where("order_line_items.is_returned = ? AND return_requests.status IN ?",
			false, []enums.ReturnStatus{enums.ReturnStatusRefunded, enums.ReturnStatusAutoRefunded}).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ListPromotionCandidates returns items delivered on or before the cutoff that
// have not been promoted, paid, returned or quarantined.
func (r *repository) ListPromotionCandidates(ctx context.Context, cutoff time.Time) ([]models.OrderLineItem, error) {
	var items []models.OrderLineItem
	err := r.db.WithContext(ctx).
		Where("eligible_for_payout = ? AND is_payout = ? AND is_returned = ? AND quarantined = ?",
			false, false, false, false).
		Where("delivered_at IS NOT NULL AND delivered_at <= ?", cutoff).
		Order("delivered_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindItemByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.OrderLineItem, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var item models.OrderLineItem
	if err := query.Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) SaveItem(ctx context.Context, item *models.OrderLineItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *repository) FindLatestReturnForItem(ctx context.Context, lineItemID uuid.UUID) (*models.ReturnRequest, error) {
	var request models.ReturnRequest
	err := r.db.WithContext(ctx).
		Where("order_line_item_id = ?", lineItemID).
		Order("created_at DESC").
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindStoreOrderByID(ctx context.Context, id uuid.UUID) (*models.StoreOrder, error) {
	var storeOrder models.StoreOrder
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&storeOrder).Error; err != nil {
		return nil, err
	}
	return &storeOrder, nil
}

// CountOutstandingItems counts line items of an order still waiting on
// promotion. Returned and quarantined items no longer hold up the order-level
// release.
func (r *repository) CountOutstandingItems(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderLineItem{}).
		Joins("JOIN store_orders ON store_orders.id = order_line_items.store_order_id").
		Where("store_orders.order_id = ?", orderID).
		Where("order_line_items.eligible_for_payout = ? AND order_line_items.is_returned = ? AND order_line_items.quarantined = ?",
			false, false, false).
		Count(&count).Error
	return count, err
}
