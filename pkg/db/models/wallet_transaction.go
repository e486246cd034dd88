package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/duchuyngn/muaban-backend/pkg/enums"
)

// WalletTransaction is one append-only ledger row. Rows are never updated or
// deleted; replaying a wallet's rows in creation order must reproduce the
// bucket balances exactly.
type WalletTransaction struct {
	ID                uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID          uuid.UUID                   `gorm:"column:wallet_id;type:uuid;not null;index"`
	OrderID           *uuid.UUID                  `gorm:"column:order_id;type:uuid;index"`
	Kind              enums.WalletTransactionKind `gorm:"column:kind;type:wallet_transaction_kind;not null"`
	Bucket            enums.WalletBucket          `gorm:"column:bucket;type:wallet_bucket;not null"`
	AmountCents       int64                       `gorm:"column:amount_cents;not null"`
	BalanceAfterCents int64                       `gorm:"column:balance_after_cents;not null"`
	DedupKey          *string                     `gorm:"column:dedup_key;uniqueIndex:ux_wallet_transactions_dedup"`
	Description       string                      `gorm:"column:description;not null"`
	CreatedAt         time.Time                   `gorm:"column:created_at;autoCreateTime"`
}
