package wallets

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/duchuyngn/muaban-backend/pkg/db/models"
	"github.com/duchuyngn/muaban-backend/pkg/enums"
)

func setupWalletsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	wallets := `
CREATE TABLE IF NOT EXISTS wallets (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  balance_cents INTEGER NOT NULL DEFAULT 0,
  pending_balance_cents INTEGER NOT NULL DEFAULT 0,
  available_balance_cents INTEGER NOT NULL DEFAULT 0,
  deposit_balance_cents INTEGER NOT NULL DEFAULT 0,
  total_revenue_cents INTEGER NOT NULL DEFAULT 0,
  total_balance_cents INTEGER NOT NULL DEFAULT 0,
  done_balance_cents INTEGER NOT NULL DEFAULT 0,
  received_total_cents INTEGER NOT NULL DEFAULT 0,
  refunded_total_cents INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	walletTransactions := `
CREATE TABLE IF NOT EXISTS wallet_transactions (
  id TEXT PRIMARY KEY,
  wallet_id TEXT NOT NULL,
  order_id TEXT,
  kind TEXT NOT NULL,
  bucket TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  balance_after_cents INTEGER NOT NULL,
  dedup_key TEXT,
  description TEXT NOT NULL,
  created_at DATETIME
);`
	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_wallets_owner_kind ON wallets (owner_id, kind);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_wallet_transactions_dedup ON wallet_transactions (dedup_key) WHERE dedup_key IS NOT NULL;`,
	}

	require.NoError(t, db.Exec(wallets).Error)
	require.NoError(t, db.Exec(walletTransactions).Error)
	for _, stmt := range indexes {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func TestWalletRepositoryCreateAndFind(t *testing.T) {
	db := setupWalletsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	ownerID := uuid.New()
	wallet := &models.Wallet{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Kind:    enums.WalletKindStore,
		Status:  enums.WalletStatusActive,
	}
	require.NoError(t, repo.Create(ctx, wallet))

	found, err := repo.FindByOwner(ctx, ownerID, enums.WalletKindStore)
	require.NoError(t, err)
	assert.Equal(t, wallet.ID, found.ID)

	_, err = repo.FindByOwner(ctx, ownerID, enums.WalletKindCustomer)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestWalletRepositoryUniqueOwnerKind(t *testing.T) {
	db := setupWalletsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	ownerID := uuid.New()
	first := &models.Wallet{ID: uuid.New(), OwnerID: ownerID, Kind: enums.WalletKindCustomer, Status: enums.WalletStatusActive}
	require.NoError(t, repo.Create(ctx, first))

	dup := &models.Wallet{ID: uuid.New(), OwnerID: ownerID, Kind: enums.WalletKindCustomer, Status: enums.WalletStatusActive}
	assert.Error(t, repo.Create(ctx, dup))
}

func TestWalletRepositoryTransactionDedup(t *testing.T) {
	db := setupWalletsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	wallet := &models.Wallet{ID: uuid.New(), OwnerID: uuid.New(), Kind: enums.WalletKindStore, Status: enums.WalletStatusActive}
	require.NoError(t, repo.Create(ctx, wallet))

	orderID := uuid.New()
	key := DedupKey(orderID, enums.TxnKindPendingHold, wallet.OwnerID, enums.BucketPending)

	first := &models.WalletTransaction{
		ID:                uuid.New(),
		WalletID:          wallet.ID,
		OrderID:           &orderID,
		Kind:              enums.TxnKindPendingHold,
		Bucket:            enums.BucketPending,
		AmountCents:       9500,
		BalanceAfterCents: 9500,
		DedupKey:          &key,
		Description:       "hold for order",
	}
	require.NoError(t, repo.InsertTransaction(ctx, first))

	dup := &models.WalletTransaction{
		ID:                uuid.New(),
		WalletID:          wallet.ID,
		OrderID:           &orderID,
		Kind:              enums.TxnKindPendingHold,
		Bucket:            enums.BucketPending,
		AmountCents:       9500,
		BalanceAfterCents: 19000,
		DedupKey:          &key,
		Description:       "hold for order",
	}
	assert.Error(t, repo.InsertTransaction(ctx, dup))

	found, err := repo.FindTransactionByDedupKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	// NULL dedup keys never collide.
	for i := 0; i < 2; i++ {
		txn := &models.WalletTransaction{
			ID:                uuid.New(),
			WalletID:          wallet.ID,
			Kind:              enums.TxnKindAdjustment,
			Bucket:            enums.BucketAvailable,
			AmountCents:       100,
			BalanceAfterCents: int64(100 * (i + 1)),
			Description:       "manual adjustment",
		}
		require.NoError(t, repo.InsertTransaction(ctx, txn))
	}
}

func TestWalletRepositoryListTransactions(t *testing.T) {
	db := setupWalletsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	wallet := &models.Wallet{ID: uuid.New(), OwnerID: uuid.New(), Kind: enums.WalletKindCustomer, Status: enums.WalletStatusActive}
	require.NoError(t, repo.Create(ctx, wallet))

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		txn := &models.WalletTransaction{
			ID:                uuid.New(),
			WalletID:          wallet.ID,
			Kind:              enums.TxnKindDeposit,
			Bucket:            enums.BucketBalance,
			AmountCents:       int64(1000 * (i + 1)),
			BalanceAfterCents: int64(1000 * (i + 1)),
			Description:       "deposit",
			CreatedAt:         base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.InsertTransaction(ctx, txn))
	}

	rows, err := repo.ListTransactions(ctx, wallet.ID, nil, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.True(t, rows[0].CreatedAt.After(rows[2].CreatedAt))

	ordered, err := repo.ListAllTransactions(ctx, wallet.ID)
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	assert.True(t, ordered[0].CreatedAt.Before(ordered[2].CreatedAt))
}
