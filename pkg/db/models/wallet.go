package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/duchuyngn/muaban-backend/pkg/enums"
)

// Wallet holds the balance buckets for one owner of one kind. All three
// wallet kinds share the row shape; the kind decides which cent columns are
// meaningful (see enums.WalletBucket).
type Wallet struct {
	ID      uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID uuid.UUID          `gorm:"column:owner_id;type:uuid;not null;uniqueIndex:ux_wallets_owner_kind"`
	Kind    enums.WalletKind   `gorm:"column:kind;type:wallet_kind;not null;uniqueIndex:ux_wallets_owner_kind"`
	Status  enums.WalletStatus `gorm:"column:status;type:wallet_status;not null;default:'active'"`

	// Customer bucket.
	BalanceCents int64 `gorm:"column:balance_cents;not null;default:0"`

	// Store buckets.
	PendingBalanceCents   int64 `gorm:"column:pending_balance_cents;not null;default:0"`
	AvailableBalanceCents int64 `gorm:"column:available_balance_cents;not null;default:0"`
	DepositBalanceCents   int64 `gorm:"column:deposit_balance_cents;not null;default:0"`
	TotalRevenueCents     int64 `gorm:"column:total_revenue_cents;not null;default:0"`

	// Platform buckets. PendingBalanceCents is shared with the store shape;
	// total_balance == pending_balance + done_balance at rest.
	TotalBalanceCents  int64 `gorm:"column:total_balance_cents;not null;default:0"`
	DoneBalanceCents   int64 `gorm:"column:done_balance_cents;not null;default:0"`
	ReceivedTotalCents int64 `gorm:"column:received_total_cents;not null;default:0"`
	RefundedTotalCents int64 `gorm:"column:refunded_total_cents;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// BucketCents returns the current value of the named bucket.
func (w *Wallet) BucketCents(bucket enums.WalletBucket) int64 {
	switch bucket {
	case enums.BucketBalance:
		return w.BalanceCents
	case enums.BucketPending:
		return w.PendingBalanceCents
	case enums.BucketAvailable:
		return w.AvailableBalanceCents
	case enums.BucketDeposit:
		return w.DepositBalanceCents
	case enums.BucketTotalRevenue:
		return w.TotalRevenueCents
	case enums.BucketTotal:
		return w.TotalBalanceCents
	case enums.BucketDone:
		return w.DoneBalanceCents
	case enums.BucketReceivedTotal:
		return w.ReceivedTotalCents
	case enums.BucketRefundedTotal:
		return w.RefundedTotalCents
	}
	return 0
}

// SetBucketCents overwrites the named bucket with the given value.
func (w *Wallet) SetBucketCents(bucket enums.WalletBucket, value int64) {
	switch bucket {
	case enums.BucketBalance:
		w.BalanceCents = value
	case enums.BucketPending:
		w.PendingBalanceCents = value
	case enums.BucketAvailable:
		w.AvailableBalanceCents = value
	case enums.BucketDeposit:
		w.DepositBalanceCents = value
	case enums.BucketTotalRevenue:
		w.TotalRevenueCents = value
	case enums.BucketTotal:
		w.TotalBalanceCents = value
	case enums.BucketDone:
		w.DoneBalanceCents = value
	case enums.BucketReceivedTotal:
		w.ReceivedTotalCents = value
	case enums.BucketRefundedTotal:
		w.RefundedTotalCents = value
	}
}
