package wallets

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/duchuyngn/muaban-backend/pkg/enums"
)

// PlatformOwnerID owns the singleton platform wallet. There is exactly one
// platform wallet, keyed by this well-known id.
var PlatformOwnerID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// AdjustInput describes one signed bucket movement. AmountCents is a delta:
// positive credits the bucket, negative debits it.
type AdjustInput struct {
	OwnerID     uuid.UUID
	Kind        enums.WalletKind
	Bucket      enums.WalletBucket
	TxKind      enums.WalletTransactionKind
	AmountCents int64
	OrderID     *uuid.UUID
	DedupKey    *string
	Description string
}

// DedupKey builds the canonical idempotency key for an order-scoped movement.
// One key per (order, transaction kind, wallet owner, bucket) tuple.
func DedupKey(orderID uuid.UUID, txKind enums.WalletTransactionKind, ownerID uuid.UUID, bucket enums.WalletBucket) string {
	return fmt.Sprintf("%s:%s:%s:%s", orderID, txKind, ownerID, bucket)
}

// MemoInput describes an informational ledger row with no balance effect.
type MemoInput struct {
	OwnerID     uuid.UUID
	Kind        enums.WalletKind
	TxKind      enums.WalletTransactionKind
	OrderID     *uuid.UUID
	DedupKey    *string
	Description string
}

// BalanceSnapshot reports one wallet's buckets at read time.
type BalanceSnapshot struct {
	WalletID uuid.UUID                    `json:"wallet_id"`
	OwnerID  uuid.UUID                    `json:"owner_id"`
	Kind     enums.WalletKind             `json:"kind"`
	Status   enums.WalletStatus           `json:"status"`
	Buckets  map[enums.WalletBucket]int64 `json:"buckets"`
}
