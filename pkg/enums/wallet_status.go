package enums

import "fmt"

// WalletStatus tracks whether a wallet accepts adjustments.
type WalletStatus string

const (
	WalletStatusActive WalletStatus = "active"
	WalletStatusLocked WalletStatus = "locked"
)

var validWalletStatuses = []WalletStatus{
	WalletStatusActive,
	WalletStatusLocked,
}

// IsValid reports whether the value is a known WalletStatus.
func (s WalletStatus) IsValid() bool {
	for _, candidate := range validWalletStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseWalletStatus converts raw input into a WalletStatus.
func ParseWalletStatus(value string) (WalletStatus, error) {
	for _, candidate := range validWalletStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet status %q", value)
}
