package orders

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

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("StoreOrders.Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var order models.Order
	if err := query.Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	// Associations load outside the locking clause; FOR UPDATE does not span joins.
	var storeOrders []models.StoreOrder
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_id = ?", id).
		Order("created_at ASC").
		Find(&storeOrders).Error; err != nil {
		return nil, err
	}
	order.StoreOrders = storeOrders
	return &order, nil
}

func (r *repository) SaveOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("StoreOrders").Save(order).Error
}

func (r *repository) FindStoreOrderByID(ctx context.Context, id uuid.UUID) (*models.StoreOrder, error) {
	var storeOrder models.StoreOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&storeOrder).Error
	if err != nil {
		return nil, err
	}
	return &storeOrder, nil
}

func (r *repository) FindStoreOrdersByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StoreOrder, error) {
	var storeOrders []models.StoreOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&storeOrders).Error
	if err != nil {
		return nil, err
	}
	return storeOrders, nil
}

func (r *repository) SaveStoreOrder(ctx context.Context, storeOrder *models.StoreOrder) error {
	return r.db.WithContext(ctx).Omit("Items").Save(storeOrder).Error
}

func (r *repository) FindLineItemByID(ctx context.Context, id uuid.UUID) (*models.OrderLineItem, error) {
	var item models.OrderLineItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindLineItemsByStoreOrder(ctx context.Context, storeOrderID uuid.UUID) ([]models.OrderLineItem, error) {
	var items []models.OrderLineItem
	err := r.db.WithContext(ctx).
		Where("store_order_id = ?", storeOrderID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindLineItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderLineItem, error) {
	var items []models.OrderLineItem
	err := r.db.WithContext(ctx).
		Joins("JOIN store_orders ON store_orders.id = order_line_items.store_order_id").
		Where("store_orders.order_id = ?", orderID).
		Order("order_line_items.created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) SaveLineItem(ctx context.Context, item *models.OrderLineItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *repository) BackfillItemDeliveredAt(ctx context.Context, storeOrderID uuid.UUID, deliveredAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.OrderLineItem{}).
		Where("store_order_id = ? AND delivered_at IS NULL", storeOrderID).
		Update("delivered_at", deliveredAt)
	return result.RowsAffected, result.Error
}

func (r *repository) CreateShippingFee(ctx context.Context, fee *models.ShippingFee) error {
	return r.db.WithContext(ctx).Create(fee).Error
}

func (r *repository) FindShippingFeeByStoreOrder(ctx context.Context, storeOrderID uuid.UUID) (*models.ShippingFee, error) {
	var fee models.ShippingFee
	err := r.db.WithContext(ctx).
		Where("store_order_id = ?", storeOrderID).
		First(&fee).Error
	if err != nil {
		return nil, err
	}
	return &fee, nil
}

func (r *repository) CreateReturnRequest(ctx context.Context, request *models.ReturnRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindReturnRequestByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	var request models.ReturnRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
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

func (r *repository) SaveReturnRequest(ctx context.Context, request *models.ReturnRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

func (r *repository) CreateReturnShippingFee(ctx context.Context, fee *models.ReturnShippingFee) error {
	return r.db.WithContext(ctx).Create(fee).Error
}

// ListReturnsByStatusOlderThan ages a return against the moment its current
// window opened: disputed_at for disputes, created_at for everything else.
// Unrelated saves must not reset the clock.
func (r *repository) ListReturnsByStatusOlderThan(ctx context.Context, status enums.ReturnStatus, cutoff time.Time) ([]models.ReturnRequest, error) {
	ageColumn := "created_at"
	if status == enums.ReturnStatusDispute {
		ageColumn = "disputed_at"
	}
	var requests []models.ReturnRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND auto_refund_executed = ? AND "+ageColumn+" <= ?", status, false, cutoff).
		Order(ageColumn + " ASC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}
