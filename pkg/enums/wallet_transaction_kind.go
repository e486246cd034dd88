package enums

import "fmt"

// WalletTransactionKind maps to the wallet_transaction_kind enum in Postgres.
type WalletTransactionKind string

const (
	TxnKindHold           WalletTransactionKind = "hold"
	TxnKindRelease        WalletTransactionKind = "release"
	TxnKindRefund         WalletTransactionKind = "refund"
	TxnKindDeposit        WalletTransactionKind = "deposit"
	TxnKindWithdraw       WalletTransactionKind = "withdraw"
	TxnKindPendingHold    WalletTransactionKind = "pending_hold"
	TxnKindReleasePending WalletTransactionKind = "release_pending"
	TxnKindAdjustment     WalletTransactionKind = "adjustment"
)

var validWalletTransactionKinds = []WalletTransactionKind{
	TxnKindHold,
	TxnKindRelease,
	TxnKindRefund,
	TxnKindDeposit,
	TxnKindWithdraw,
	TxnKindPendingHold,
	TxnKindReleasePending,
	TxnKindAdjustment,
}

// String implements fmt.Stringer.
func (k WalletTransactionKind) String() string {
	return string(k)
}

// IsValid reports whether the value matches the canonical transaction kind enum.
func (k WalletTransactionKind) IsValid() bool {
	for _, candidate := range validWalletTransactionKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseWalletTransactionKind converts raw input into WalletTransactionKind.
func ParseWalletTransactionKind(value string) (WalletTransactionKind, error) {
	for _, candidate := range validWalletTransactionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet transaction kind %q", value)
}
