package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/duchuyngn/muaban-backend/pkg/db/models"
)

// Repository is the persistence surface of the payout bill aggregator. It
// reads payable lines owned by other subsystems and owns the bill tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	ListPayableItemsForStore(ctx context.Context, storeID uuid.UUID) ([]models.OrderLineItem, error)
	ListUnchargedShippingFees(ctx context.Context, storeID uuid.UUID) ([]models.ShippingFee, error)
	ListUnpaidReturnShippingFees(ctx context.Context, storeID uuid.UUID) ([]models.ReturnShippingFee, error)
	ListStoreIDsWithPayables(ctx context.Context) ([]uuid.UUID, error)

	CreateBill(ctx context.Context, bill *models.PayoutBill) error
	SaveBill(ctx context.Context, bill *models.PayoutBill) error
	FindBillByID(ctx context.Context, id uuid.UUID) (*models.PayoutBill, error)
	FindBillByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PayoutBill, error)
	FindOpenBillForStore(ctx context.Context, storeID uuid.UUID) (*models.PayoutBill, error)
	ListBillsForStore(ctx context.Context, storeID uuid.UUID) ([]models.PayoutBill, error)

	ListLineItemsByIDs(ctx context.Context, itemIDs []uuid.UUID) ([]models.OrderLineItem, error)
	DeleteBillItems(ctx context.Context, billItemIDs []uuid.UUID) error
	MarkItemsPaidOut(ctx context.Context, itemIDs []uuid.UUID) error
	MarkShippingFeesCharged(ctx context.Context, feeIDs []uuid.UUID, paidAt time.Time) error
	MarkReturnFeesPaid(ctx context.Context, feeIDs []uuid.UUID, paidAt time.Time) error
}
