package models

import "time"

// ActivityMetrics summarizes a wallet's on-chain behavior. Windowed counts
// cover the trailing 365 days from the analysis time; TotalTransactionCount
// and NFTMarketplaceInteraction are all-time.
type ActivityMetrics struct {
	WalletCreatedAt           *time.Time `json:"walletCreatedAt,omitempty"` // nil when no transaction history exists
	ActiveDayCount            int        `json:"activeDayCount"`
	SwapCount                 int        `json:"swapCount"`
	TotalTransactionCount     int        `json:"totalTransactionCount"`
	UniqueTokensTraded        int        `json:"uniqueTokensTraded"`
	NFTMarketplaceInteraction bool       `json:"nftMarketplaceInteraction"`
}

// WalletAgeYears returns the wallet age in fractional years at the given
// time, 0 when the creation time is unknown.
func (m *ActivityMetrics) WalletAgeYears(now time.Time) float64 {
	if m.WalletCreatedAt == nil || now.Before(*m.WalletCreatedAt) {
		return 0
	}
	return now.Sub(*m.WalletCreatedAt).Hours() / (24 * 365)
}

// CreatedBeforeYear reports whether the wallet's first activity predates the
// given calendar year. Unknown creation time fails the check.
func (m *ActivityMetrics) CreatedBeforeYear(year int) bool {
	return m.WalletCreatedAt != nil && m.WalletCreatedAt.UTC().Year() < year
}

// CreatedAfterYear reports whether the wallet's first activity postdates the
// given calendar year. Unknown creation time fails the check.
func (m *ActivityMetrics) CreatedAfterYear(year int) bool {
	return m.WalletCreatedAt != nil && m.WalletCreatedAt.UTC().Year() > year
}
