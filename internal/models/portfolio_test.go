package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func daysAgo(days int) *time.Time {
	t := testNow.AddDate(0, 0, -days)
	return &t
}

func TestNewTokenHoldingRecomputesValue(t *testing.T) {
	h := NewTokenHolding("", "ETH", 18,
		decimal.NewFromInt(1000), decimal.NewFromFloat(2.50), true, daysAgo(400), testNow)

	assert.Equal(t, "2500", h.ValueUSD.String())
	assert.Equal(t, 400, h.HoldingPeriodDays)
	assert.True(t, h.IsETH())
}

func TestNewTokenHoldingNilAcquisition(t *testing.T) {
	h := NewTokenHolding("0xabc", "ABC", 18,
		decimal.NewFromInt(5), decimal.NewFromInt(10), true, nil, testNow)

	assert.Equal(t, 0, h.HoldingPeriodDays)
	assert.Nil(t, h.AcquiredAt)
}

func TestNewNFTHoldingValueFromFloor(t *testing.T) {
	h := NewNFTHolding("0xcoll", "Punks", []string{"1", "7", "42"},
		decimal.NewFromInt(150), daysAgo(30), testNow)

	assert.Equal(t, 3, h.TokenCount)
	assert.Equal(t, "450", h.ValueUSD.String())
}

func TestSnapshotAggregates(t *testing.T) {
	tokens := []TokenHolding{
		NewTokenHolding("", "ETH", 18, decimal.NewFromInt(1), decimal.NewFromInt(2000), true, daysAgo(400), testNow),
		NewTokenHolding("0xusdc", "USDC", 6, decimal.NewFromInt(500), decimal.NewFromInt(1), true, daysAgo(100), testNow),
	}
	nfts := []NFTHolding{
		NewNFTHolding("0xcoll", "Punks", []string{"1"}, decimal.NewFromInt(500), daysAgo(50), testNow),
	}

	s := NewPortfolioSnapshot("0xwallet", tokens, nfts, testNow)

	assert.Equal(t, "3000", s.TotalValueUSD.String())
	assert.Equal(t, "ETH", s.TopAsset.Symbol)
	assert.False(t, s.TopAsset.IsNFT)
	// 2000/3000
	assert.Equal(t, "0.67", s.TokenConcentrationRatio.StringFixed(2))
	assert.Equal(t, 400, s.LongestHoldingDays)
	assert.True(t, s.HasETH())
}

func TestSnapshotTopAssetTieBreakTokenBeforeNFT(t *testing.T) {
	tokens := []TokenHolding{
		NewTokenHolding("0xa", "AAA", 18, decimal.NewFromInt(1), decimal.NewFromInt(100), true, daysAgo(10), testNow),
	}
	nfts := []NFTHolding{
		NewNFTHolding("0xcoll", "Punks", []string{"1"}, decimal.NewFromInt(100), daysAgo(10), testNow),
	}

	s := NewPortfolioSnapshot("0xwallet", tokens, nfts, testNow)

	assert.Equal(t, "AAA", s.TopAsset.Symbol)
	assert.False(t, s.IsTopAssetNFT())
}

func TestSnapshotTopAssetSourceOrderTieBreak(t *testing.T) {
	tokens := []TokenHolding{
		NewTokenHolding("0xa", "AAA", 18, decimal.NewFromInt(1), decimal.NewFromInt(100), true, daysAgo(10), testNow),
		NewTokenHolding("0xb", "BBB", 18, decimal.NewFromInt(1), decimal.NewFromInt(100), true, daysAgo(10), testNow),
	}

	s := NewPortfolioSnapshot("0xwallet", tokens, nil, testNow)

	assert.Equal(t, "AAA", s.TopAsset.Symbol)
}

func TestSnapshotNFTCanBeTopAsset(t *testing.T) {
	tokens := []TokenHolding{
		NewTokenHolding("", "ETH", 18, decimal.NewFromInt(1), decimal.NewFromInt(100), true, daysAgo(500), testNow),
	}
	nfts := []NFTHolding{
		NewNFTHolding("0xcoll", "Punks", []string{"1"}, decimal.NewFromInt(5000), daysAgo(600), testNow),
	}

	s := NewPortfolioSnapshot("0xwallet", tokens, nfts, testNow)

	require.True(t, s.IsTopAssetNFT())
	assert.Equal(t, "Punks", s.TopAsset.Symbol)
	// Concentration counts tokens only: 100 / 5100
	assert.Equal(t, "0.02", s.TokenConcentrationRatio.StringFixed(2))
	// Longest holding counts tokens only, not the older NFT
	assert.Equal(t, 500, s.LongestHoldingDays)
}

func TestSnapshotEmpty(t *testing.T) {
	s := NewPortfolioSnapshot("0xwallet", nil, nil, testNow)

	assert.True(t, s.TotalValueUSD.IsZero())
	assert.True(t, s.TokenConcentrationRatio.IsZero())
	assert.Equal(t, 0, s.LongestHoldingDays)
	assert.Equal(t, "", s.TopAsset.Symbol)
	assert.False(t, s.HasETH())
	assert.Equal(t, 0, s.NFTCount())
}

func TestSnapshotComposition(t *testing.T) {
	tokens := []TokenHolding{
		NewTokenHolding("", "ETH", 18, decimal.NewFromInt(1), decimal.NewFromInt(500), true, daysAgo(10), testNow),
		NewTokenHolding("0xusdc", "USDC", 6, decimal.NewFromInt(250), decimal.NewFromInt(1), true, daysAgo(10), testNow),
	}
	nfts := []NFTHolding{
		NewNFTHolding("0xcoll", "Punks", []string{"1"}, decimal.NewFromInt(250), daysAgo(10), testNow),
	}

	s := NewPortfolioSnapshot("0xwallet", tokens, nfts, testNow)

	eth, toks, nftFrac := s.Composition()
	assert.Equal(t, "0.50", eth.StringFixed(2))
	assert.Equal(t, "0.25", toks.StringFixed(2))
	assert.Equal(t, "0.25", nftFrac.StringFixed(2))
}

func TestSnapshotDustPositions(t *testing.T) {
	tokens := []TokenHolding{
		NewTokenHolding("0xa", "AAA", 18, decimal.NewFromInt(1), decimal.NewFromInt(2), true, daysAgo(10), testNow),
		NewTokenHolding("0xb", "BBB", 18, decimal.NewFromInt(1), decimal.NewFromInt(50), true, daysAgo(10), testNow),
		NewTokenHolding("0xc", "CCC", 18, decimal.NewFromInt(1), decimal.Zero, false, daysAgo(10), testNow),
	}

	s := NewPortfolioSnapshot("0xwallet", tokens, nil, testNow)

	assert.Equal(t, 1, s.DustPositionsCount())
	assert.Len(t, s.SignificantTokenHoldings(), 1)
}

func TestIsTopAssetTokenNotETH(t *testing.T) {
	tokens := []TokenHolding{
		NewTokenHolding("", "ETH", 18, decimal.NewFromInt(1), decimal.NewFromInt(100), true, daysAgo(10), testNow),
		NewTokenHolding("0xusdc", "USDC", 6, decimal.NewFromInt(500), decimal.NewFromInt(1), true, daysAgo(10), testNow),
	}

	s := NewPortfolioSnapshot("0xwallet", tokens, nil, testNow)

	assert.True(t, s.IsTopAssetTokenNotETH())
	assert.Equal(t, "USDC", s.TopAsset.Symbol)
}

func TestActivityMetricsYearChecks(t *testing.T) {
	created := time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)
	m := &ActivityMetrics{WalletCreatedAt: &created}

	assert.True(t, m.CreatedBeforeYear(2020))
	assert.False(t, m.CreatedAfterYear(2023))
	assert.InDelta(t, 6.6, m.WalletAgeYears(testNow), 0.1)

	empty := &ActivityMetrics{}
	assert.False(t, empty.CreatedBeforeYear(2020))
	assert.False(t, empty.CreatedAfterYear(2023))
	assert.Zero(t, empty.WalletAgeYears(testNow))
}
