package wallets

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/duchuyngn/muaban-backend/pkg/db/models"
	"github.com/duchuyngn/muaban-backend/pkg/enums"
	"github.com/duchuyngn/muaban-backend/pkg/pagination"
)

// Repository manages persistence for wallets and their ledger rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, wallet *models.Wallet) error
	FindByOwner(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (*models.Wallet, error)
	FindByOwnerForUpdate(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (*models.Wallet, error)
	Save(ctx context.Context, wallet *models.Wallet) error
	InsertTransaction(ctx context.Context, txn *models.WalletTransaction) error
	FindTransactionByDedupKey(ctx context.Context, key string) (*models.WalletTransaction, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.WalletTransaction, error)
	ListAllTransactions(ctx context.Context, walletID uuid.UUID) ([]models.WalletTransaction, error)
	ListTransactionsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.WalletTransaction, error)
}
