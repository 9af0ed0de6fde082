package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/persona-scanner/internal/errors"
	"github.com/persona-scanner/internal/types"
)

func newTestAnalyzer(fallback *mockFallback, rich *mockRich, prices *mockPrices) *WalletAnalyzer {
	builder := NewPortfolioBuilder(fallback, rich, prices, types.ChainBase)
	activity := NewActivityAnalyzer(fallback)
	classifier := NewPersonaClassifier()
	return NewWalletAnalyzer(builder, activity, classifier, types.ChainBase, 30*time.Second).
		WithClock(func() time.Time { return testNow })
}

func TestAnalyzeWalletRejectsInvalidAddress(t *testing.T) {
	analyzer := newTestAnalyzer(&mockFallback{}, &mockRich{}, &mockPrices{})

	_, err := analyzer.AnalyzeWallet(context.Background(), "not-an-address")

	require.Error(t, err)
	catErr := apperrors.Categorize(err)
	assert.Equal(t, "INVALID_ADDRESS", catErr.Code)
}

func TestAnalyzeWalletFullResult(t *testing.T) {
	fallback := &mockFallback{
		balance: decimal.NewFromInt(2),
		normals: []types.NormalTransaction{
			{Hash: "0xh1", Timestamp: tsDaysAgo(400), From: "0xother", To: testWallet, Value: decimal.NewFromInt(2)},
		},
	}
	rich := &mockRich{
		positions: []types.Position{
			{Symbol: "ETH", Balance: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(1500), ValueUSD: decimal.NewFromInt(3000), PriceKnown: true},
		},
	}

	analyzer := newTestAnalyzer(fallback, rich, &mockPrices{})
	result, err := analyzer.AnalyzeWallet(context.Background(), testWallet)

	require.NoError(t, err)
	assert.Equal(t, testWallet, result.Address)
	assert.Equal(t, types.ChainBase, result.Chain)
	assert.Equal(t, types.ModeRich, result.DataSources)
	assert.Equal(t, testNow, result.AnalyzedAt)
	assert.Empty(t, result.Warnings)
	require.NotNil(t, result.Persona)
	assert.Equal(t, "3000", result.Portfolio.TotalValueUSD.String())
	require.NotNil(t, result.Activity.WalletCreatedAt)
}

func TestAnalyzeWalletUppercaseAddressNormalized(t *testing.T) {
	fallback := &mockFallback{balance: decimal.Zero}
	analyzer := newTestAnalyzer(fallback, &mockRich{}, &mockPrices{})

	result, err := analyzer.AnalyzeWallet(context.Background(), "0x1111111111111111111111111111111111111111")

	require.NoError(t, err)
	assert.Equal(t, testWallet, result.Address)
}

func TestAnalyzeWalletActivityFailureIsPartial(t *testing.T) {
	fallback := &mockFallback{
		balance:      decimal.NewFromInt(1),
		internalsErr: fmt.Errorf("timeout"),
	}
	rich := &mockRich{
		positions: []types.Position{
			{Symbol: "ETH", Balance: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1000), ValueUSD: decimal.NewFromInt(1000), PriceKnown: true},
		},
	}

	analyzer := newTestAnalyzer(fallback, rich, &mockPrices{})
	result, err := analyzer.AnalyzeWallet(context.Background(), testWallet)

	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "activity unavailable")
	// Activity degrades to zero values rather than failing the analysis
	assert.Zero(t, result.Activity.TotalTransactionCount)
	assert.Equal(t, "1000", result.Portfolio.TotalValueUSD.String())
}

func TestAnalyzeWalletNothingUsable(t *testing.T) {
	fallback := &mockFallback{
		balanceErr: fmt.Errorf("down"),
		normalsErr: fmt.Errorf("down"),
		tokenTxErr: fmt.Errorf("down"),
		nftTxErr:   fmt.Errorf("down"),
	}
	rich := &mockRich{positionsErr: fmt.Errorf("down"), collectionsErr: fmt.Errorf("down")}

	analyzer := newTestAnalyzer(fallback, rich, &mockPrices{})
	_, err := analyzer.AnalyzeWallet(context.Background(), testWallet)

	require.Error(t, err)
	assert.True(t, apperrors.IsDataUnavailable(err))
}
