package wallets

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/duchuyngn/muaban-backend/pkg/db"
	"github.com/duchuyngn/muaban-backend/pkg/db/models"
	"github.com/duchuyngn/muaban-backend/pkg/enums"
	apperrors "github.com/duchuyngn/muaban-backend/pkg/errors"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
	"github.com/duchuyngn/muaban-backend/pkg/pagination"
)

// Service defines wallet operations. Adjust is the single write path: every
// money movement in the system lands here so that wallet buckets and the
// append-only transaction log can never diverge.
type Service interface {
	GetOrCreate(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (*models.Wallet, error)
	Get(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (*models.Wallet, error)
	SetStatus(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind, status enums.WalletStatus) (*models.Wallet, error)
	Adjust(ctx context.Context, tx *gorm.DB, input AdjustInput) (*models.WalletTransaction, error)
	RecordMemo(ctx context.Context, tx *gorm.DB, input MemoInput) (*models.WalletTransaction, error)
	Snapshot(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (*BalanceSnapshot, error)
	ListTransactions(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind, params pagination.Params) ([]models.WalletTransaction, string, error)
	ReplayBalances(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (map[enums.WalletBucket]int64, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires a wallet service with the provided repository.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) GetOrCreate(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (*models.Wallet, error) {
	if ownerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "owner id is required")
	}
	if !kind.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid wallet kind %q", kind))
	}

	wallet, err := s.repo.FindByOwner(ctx, ownerID, kind)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := &models.Wallet{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Kind:    kind,
		Status:  enums.WalletStatusActive,
	}
	if err := s.repo.Create(ctx, created); err != nil {
		// Lost the creation race; the winner's row is authoritative.
		if dbpkg.IsUniqueViolation(err, "ux_wallets_owner_kind") {
			return s.repo.FindByOwner(ctx, ownerID, kind)
		}
		return nil, err
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (*models.Wallet, error) {
	if ownerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "owner id is required")
	}
	if !kind.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid wallet kind %q", kind))
	}
	wallet, err := s.repo.FindByOwner(ctx, ownerID, kind)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "wallet not found")
		}
		return nil, err
	}
	return wallet, nil
}

func (s *service) SetStatus(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind, status enums.WalletStatus) (*models.Wallet, error) {
	if !status.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid wallet status %q", status))
	}
	wallet, err := s.Get(ctx, ownerID, kind)
	if err != nil {
		return nil, err
	}
	if wallet.Status == status {
		return wallet, nil
	}
	wallet.Status = status
	if err := s.repo.Save(ctx, wallet); err != nil {
		return nil, err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"wallet_id": wallet.ID.String(),
		"status":    status,
	})
	s.logg.Info(logCtx, "wallet status changed")
	return wallet, nil
}

// Adjust applies one signed bucket movement inside the caller's transaction.
// When the input carries a dedup key that has already been recorded, the
// existing ledger row is returned and no balances change.
func (s *service) Adjust(ctx context.Context, tx *gorm.DB, input AdjustInput) (*models.WalletTransaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if err := validateAdjustInput(input); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)

	if input.DedupKey != nil {
		existing, err := repo.FindTransactionByDedupKey(ctx, *input.DedupKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	wallet, err := repo.FindByOwnerForUpdate(ctx, input.OwnerID, input.Kind)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		// Wallets materialize on first movement.
		wallet = &models.Wallet{
			ID:      uuid.New(),
			OwnerID: input.OwnerID,
			Kind:    input.Kind,
			Status:  enums.WalletStatusActive,
		}
		if err := repo.Create(ctx, wallet); err != nil {
			return nil, err
		}
	}

	if wallet.Status == enums.WalletStatusLocked {
		return nil, apperrors.New(apperrors.CodeWalletLocked, "wallet does not accept adjustments")
	}

	newBalance := wallet.BucketCents(input.Bucket) + input.AmountCents
	if newBalance < 0 {
		return nil, apperrors.New(apperrors.CodeInsufficientFunds, "bucket balance would go negative").
			WithDetails(map[string]any{
				"wallet_id":     wallet.ID.String(),
				"bucket":        input.Bucket,
				"balance_cents": wallet.BucketCents(input.Bucket),
				"amount_cents":  input.AmountCents,
			})
	}

	wallet.SetBucketCents(input.Bucket, newBalance)
	if err := repo.Save(ctx, wallet); err != nil {
		return nil, err
	}

	txn := &models.WalletTransaction{
		ID:                uuid.New(),
		WalletID:          wallet.ID,
		OrderID:           input.OrderID,
		Kind:              input.TxKind,
		Bucket:            input.Bucket,
		AmountCents:       input.AmountCents,
		BalanceAfterCents: newBalance,
		DedupKey:          input.DedupKey,
		Description:       input.Description,
	}
	if err := repo.InsertTransaction(ctx, txn); err != nil {
		if input.DedupKey != nil && dbpkg.IsUniqueViolation(err, "ux_wallet_transactions_dedup") {
			return repo.FindTransactionByDedupKey(ctx, *input.DedupKey)
		}
		return nil, err
	}
	return txn, nil
}

// RecordMemo appends a zero-amount ledger row. Used for movements that
// happened off-ledger (gateway payments) but still belong in the audit trail;
// balances are untouched so ledger replay stays exact.
func (s *service) RecordMemo(ctx context.Context, tx *gorm.DB, input MemoInput) (*models.WalletTransaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if input.OwnerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "owner id is required")
	}
	if !input.Kind.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid wallet kind %q", input.Kind))
	}
	if !input.TxKind.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid transaction kind %q", input.TxKind))
	}
	if input.Description == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "description is required")
	}

	repo := s.repo.WithTx(tx)

	if input.DedupKey != nil {
		existing, err := repo.FindTransactionByDedupKey(ctx, *input.DedupKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	wallet, err := repo.FindByOwnerForUpdate(ctx, input.OwnerID, input.Kind)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		wallet = &models.Wallet{
			ID:      uuid.New(),
			OwnerID: input.OwnerID,
			Kind:    input.Kind,
			Status:  enums.WalletStatusActive,
		}
		if err := repo.Create(ctx, wallet); err != nil {
			return nil, err
		}
	}

	bucket := BucketsFor(input.Kind)[0]
	txn := &models.WalletTransaction{
		ID:                uuid.New(),
		WalletID:          wallet.ID,
		OrderID:           input.OrderID,
		Kind:              input.TxKind,
		Bucket:            bucket,
		AmountCents:       0,
		BalanceAfterCents: wallet.BucketCents(bucket),
		DedupKey:          input.DedupKey,
		Description:       input.Description,
	}
	if err := repo.InsertTransaction(ctx, txn); err != nil {
		if input.DedupKey != nil && dbpkg.IsUniqueViolation(err, "ux_wallet_transactions_dedup") {
			return repo.FindTransactionByDedupKey(ctx, *input.DedupKey)
		}
		return nil, err
	}
	return txn, nil
}

func (s *service) Snapshot(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (*BalanceSnapshot, error) {
	wallet, err := s.Get(ctx, ownerID, kind)
	if err != nil {
		return nil, err
	}
	buckets := make(map[enums.WalletBucket]int64)
	for _, bucket := range BucketsFor(kind) {
		buckets[bucket] = wallet.BucketCents(bucket)
	}
	return &BalanceSnapshot{
		WalletID: wallet.ID,
		OwnerID:  wallet.OwnerID,
		Kind:     wallet.Kind,
		Status:   wallet.Status,
		Buckets:  buckets,
	}, nil
}

func (s *service) ListTransactions(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind, params pagination.Params) ([]models.WalletTransaction, string, error) {
	wallet, err := s.Get(ctx, ownerID, kind)
	if err != nil {
		return nil, "", err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListTransactions(ctx, wallet.ID, cursor, limit+1)
	if err != nil {
		return nil, "", err
	}
	nextCursor := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, nextCursor, nil
}

// ReplayBalances folds the wallet's full transaction history back into bucket
// totals. Used by reconciliation checks: the result must equal the stored
// bucket columns.
func (s *service) ReplayBalances(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (map[enums.WalletBucket]int64, error) {
	wallet, err := s.Get(ctx, ownerID, kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListAllTransactions(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}
	replayed := make(map[enums.WalletBucket]int64)
	for _, bucket := range BucketsFor(kind) {
		replayed[bucket] = 0
	}
	for _, row := range rows {
		replayed[row.Bucket] += row.AmountCents
	}
	return replayed, nil
}

// BucketsFor lists the buckets meaningful for a wallet kind.
func BucketsFor(kind enums.WalletKind) []enums.WalletBucket {
	switch kind {
	case enums.WalletKindCustomer:
		return []enums.WalletBucket{enums.BucketBalance}
	case enums.WalletKindStore:
		return []enums.WalletBucket{
			enums.BucketPending,
			enums.BucketAvailable,
			enums.BucketDeposit,
			enums.BucketTotalRevenue,
		}
	case enums.WalletKindPlatform:
		return []enums.WalletBucket{
			enums.BucketTotal,
			enums.BucketPending,
			enums.BucketDone,
			enums.BucketReceivedTotal,
			enums.BucketRefundedTotal,
		}
	}
	return nil
}

func validateAdjustInput(input AdjustInput) error {
	if input.OwnerID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "owner id is required")
	}
	if !input.Kind.IsValid() {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid wallet kind %q", input.Kind))
	}
	if !input.Bucket.AllowedForKind(input.Kind) {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("bucket %q not allowed for %s wallets", input.Bucket, input.Kind))
	}
	if !input.TxKind.IsValid() {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid transaction kind %q", input.TxKind))
	}
	if input.AmountCents == 0 {
		return apperrors.New(apperrors.CodeValidation, "amount must be non-zero")
	}
	if input.Description == "" {
		return apperrors.New(apperrors.CodeValidation, "description is required")
	}
	return nil
}
