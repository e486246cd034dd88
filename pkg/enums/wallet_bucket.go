package enums

import "fmt"

// WalletBucket names a balance column inside a wallet. Which buckets are legal
// depends on the wallet kind: customers only carry the spendable balance,
// stores carry pending/available/deposit/total_revenue, the platform carries
// total/pending/done plus the lifetime received and refunded aggregates.
type WalletBucket string

const (
	BucketBalance       WalletBucket = "balance"
	BucketPending       WalletBucket = "pending"
	BucketAvailable     WalletBucket = "available"
	BucketDeposit       WalletBucket = "deposit"
	BucketTotalRevenue  WalletBucket = "total_revenue"
	BucketTotal         WalletBucket = "total"
	BucketDone          WalletBucket = "done"
	BucketReceivedTotal WalletBucket = "received_total"
	BucketRefundedTotal WalletBucket = "refunded_total"
)

var validWalletBuckets = []WalletBucket{
	BucketBalance,
	BucketPending,
	BucketAvailable,
	BucketDeposit,
	BucketTotalRevenue,
	BucketTotal,
	BucketDone,
	BucketReceivedTotal,
	BucketRefundedTotal,
}

var bucketsByWalletKind = map[WalletKind][]WalletBucket{
	WalletKindCustomer: {BucketBalance},
	WalletKindStore:    {BucketPending, BucketAvailable, BucketDeposit, BucketTotalRevenue},
	WalletKindPlatform: {BucketTotal, BucketPending, BucketDone, BucketReceivedTotal, BucketRefundedTotal},
}

// IsValid reports whether the value is a known WalletBucket.
func (b WalletBucket) IsValid() bool {
	for _, candidate := range validWalletBuckets {
		if candidate == b {
			return true
		}
	}
	return false
}

// AllowedForKind reports whether the bucket exists on wallets of the given kind.
func (b WalletBucket) AllowedForKind(kind WalletKind) bool {
	for _, candidate := range bucketsByWalletKind[kind] {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseWalletBucket converts raw input into a WalletBucket.
func ParseWalletBucket(value string) (WalletBucket, error) {
	for _, candidate := range validWalletBuckets {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet bucket %q", value)
}
