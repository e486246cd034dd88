package eligibility

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/duchuyngn/muaban-backend/pkg/db/models"
)

// Repository defines the sweep's view of line items, store orders and returns.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	ListBackfillStoreOrders(ctx context.Context) ([]models.StoreOrder, error)
	BackfillItemDeliveredAt(ctx context.Context, storeOrderID uuid.UUID, deliveredAt time.Time) (int64, error)

	ListReturnFlagCandidates(ctx context.Context) ([]models.OrderLineItem, error)
	ListPromotionCandidates(ctx context.Context, cutoff time.Time) ([]models.OrderLineItem, error)

	FindItemByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.OrderLineItem, error)
	SaveItem(ctx context.Context, item *models.OrderLineItem) error
	FindLatestReturnForItem(ctx context.Context, lineItemID uuid.UUID) (*models.ReturnRequest, error)
	FindStoreOrderByID(ctx context.Context, id uuid.UUID) (*models.StoreOrder, error)
	CountOutstandingItems(ctx context.Context, orderID uuid.UUID) (int64, error)
}
