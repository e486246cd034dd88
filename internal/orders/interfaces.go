package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/duchuyngn/muaban-backend/pkg/db/models"
	"github.com/duchuyngn/muaban-backend/pkg/enums"
)

// Repository defines persistence operations for orders, store orders, line
// items and the fee/return rows hanging off them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindOrderByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	SaveOrder(ctx context.Context, order *models.Order) error

	FindStoreOrderByID(ctx context.Context, id uuid.UUID) (*models.StoreOrder, error)
	FindStoreOrdersByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StoreOrder, error)
	SaveStoreOrder(ctx context.Context, storeOrder *models.StoreOrder) error

	FindLineItemByID(ctx context.Context, id uuid.UUID) (*models.OrderLineItem, error)
	FindLineItemsByStoreOrder(ctx context.Context, storeOrderID uuid.UUID) ([]models.OrderLineItem, error)
	FindLineItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderLineItem, error)
	SaveLineItem(ctx context.Context, item *models.OrderLineItem) error
	BackfillItemDeliveredAt(ctx context.Context, storeOrderID uuid.UUID, deliveredAt time.Time) (int64, error)

	CreateShippingFee(ctx context.Context, fee *models.ShippingFee) error
	FindShippingFeeByStoreOrder(ctx context.Context, storeOrderID uuid.UUID) (*models.ShippingFee, error)

	CreateReturnShippingFee(ctx context.Context, fee *models.ReturnShippingFee) error

	CreateReturnRequest(ctx context.Context, request *models.ReturnRequest) error
	FindReturnRequestByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	FindLatestReturnForItem(ctx context.Context, lineItemID uuid.UUID) (*models.ReturnRequest, error)
	SaveReturnRequest(ctx context.Context, request *models.ReturnRequest) error
	ListReturnsByStatusOlderThan(ctx context.Context, status enums.ReturnStatus, cutoff time.Time) ([]models.ReturnRequest, error)
}
