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

var testNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

const testWallet = "0x1111111111111111111111111111111111111111"

func tsDaysAgo(days int) time.Time {
	return testNow.AddDate(0, 0, -days)
}

// mockFallback is a canned-response FallbackSource
type mockFallback struct {
	balance      decimal.Decimal
	balanceErr   error
	normals      []types.NormalTransaction
	normalsErr   error
	internals    []types.NormalTransaction
	internalsErr error
	tokenTx      []types.TokenTransferRecord
	tokenTxErr   error
	nftTx        []types.NFTTransferRecord
	nftTxErr     error
}

func (m *mockFallback) GetETHBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	return m.balance, m.balanceErr
}
func (m *mockFallback) GetNormalTransactions(ctx context.Context, address string) ([]types.NormalTransaction, error) {
	return m.normals, m.normalsErr
}
func (m *mockFallback) GetInternalTransactions(ctx context.Context, address string) ([]types.NormalTransaction, error) {
	return m.internals, m.internalsErr
}
func (m *mockFallback) GetTokenTransfers(ctx context.Context, address string) ([]types.TokenTransferRecord, error) {
	return m.tokenTx, m.tokenTxErr
}
func (m *mockFallback) GetNFTTransfers(ctx context.Context, address string) ([]types.NFTTransferRecord, error) {
	return m.nftTx, m.nftTxErr
}

// mockRich is a canned-response RichSource
type mockRich struct {
	positions      []types.Position
	positionsErr   error
	collections    []types.NFTCollectionInfo
	collectionsErr error
}

func (m *mockRich) GetPositions(ctx context.Context, address string) ([]types.Position, error) {
	return m.positions, m.positionsErr
}
func (m *mockRich) GetNFTCollections(ctx context.Context, address string) ([]types.NFTCollectionInfo, error) {
	return m.collections, m.collectionsErr
}

// mockPrices is a canned-response PriceSource that counts calls
type mockPrices struct {
	tokenPrices map[string]decimal.Decimal
	ethPrice    decimal.Decimal
	tokenCalls  int
	ethCalls    int
	requested   [][]string
}

func (m *mockPrices) GetTokenPrices(ctx context.Context, addresses []string) (map[string]decimal.Decimal, error) {
	m.tokenCalls++
	m.requested = append(m.requested, addresses)
	out := make(map[string]decimal.Decimal)
	for _, addr := range addresses {
		if price, ok := m.tokenPrices[addr]; ok {
			out[addr] = price
		}
	}
	return out, nil
}

func (m *mockPrices) GetETHPrice(ctx context.Context) (decimal.Decimal, error) {
	m.ethCalls++
	return m.ethPrice, nil
}

func TestBuildRichMode(t *testing.T) {
	fallback := &mockFallback{
		balance: decimal.NewFromInt(1000),
		normals: []types.NormalTransaction{
			{Hash: "0xh1", Timestamp: tsDaysAgo(400), From: "0xother", To: testWallet, Value: decimal.NewFromInt(1000)},
		},
	}
	rich := &mockRich{
		positions: []types.Position{
			{Symbol: "ETH", Balance: decimal.NewFromInt(999), UnitPrice: decimal.NewFromFloat(2.50), ValueUSD: decimal.NewFromFloat(2497.5), PriceKnown: true},
		},
	}

	builder := NewPortfolioBuilder(fallback, rich, &mockPrices{}, types.ChainBase)
	snapshot, mode, err := builder.Build(context.Background(), testWallet, testNow)

	require.NoError(t, err)
	assert.Equal(t, types.ModeRich, mode)
	require.Len(t, snapshot.TokenHoldings, 1)

	eth := snapshot.TokenHoldings[0]
	assert.True(t, eth.IsETH())
	// Amount from the balance lookup, not the rich position
	assert.Equal(t, "1000", eth.Balance.String())
	// Price from the rich native position
	assert.Equal(t, "2500", eth.ValueUSD.String())
	assert.Equal(t, 400, eth.HoldingPeriodDays)
	assert.Equal(t, "1", snapshot.TokenConcentrationRatio.String())
}

func TestBuildRichModeSkipsPricedDustKeepsUnpriced(t *testing.T) {
	fallback := &mockFallback{balance: decimal.Zero}
	rich := &mockRich{
		positions: []types.Position{
			{TokenAddress: "0xdust", Symbol: "DUST", Balance: decimal.NewFromInt(10), UnitPrice: decimal.NewFromFloat(0.01), ValueUSD: decimal.NewFromFloat(0.10), PriceKnown: true},
			{TokenAddress: "0xmystery", Symbol: "MYST", Balance: decimal.NewFromInt(10)},
		},
	}

	builder := NewPortfolioBuilder(fallback, rich, &mockPrices{}, types.ChainBase)
	snapshot, _, err := builder.Build(context.Background(), testWallet, testNow)

	require.NoError(t, err)
	require.Len(t, snapshot.TokenHoldings, 1)
	assert.Equal(t, "MYST", snapshot.TokenHoldings[0].Symbol)
	assert.False(t, snapshot.TokenHoldings[0].PriceKnown)
}

func TestBuildFallbackModeWhenRichDown(t *testing.T) {
	usdc := "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"
	fallback := &mockFallback{
		balance: decimal.NewFromInt(2),
		tokenTx: []types.TokenTransferRecord{
			// 500 USDC in, 100 out, record carries no metadata
			{Hash: "0xh1", Timestamp: tsDaysAgo(200), TokenAddress: usdc, From: "0xother", To: testWallet, Amount: decimal.New(500, 6)},
			{Hash: "0xh2", Timestamp: tsDaysAgo(100), TokenAddress: usdc, From: testWallet, To: "0xother", Amount: decimal.New(100, 6)},
			// Unknown token fully exited, must not appear
			{Hash: "0xh3", Timestamp: tsDaysAgo(90), TokenAddress: "0xgone11", From: "0xother", To: testWallet, Amount: decimal.New(5, 18)},
			{Hash: "0xh4", Timestamp: tsDaysAgo(80), TokenAddress: "0xgone11", From: testWallet, To: "0xother", Amount: decimal.New(5, 18)},
		},
	}
	rich := &mockRich{positionsErr: fmt.Errorf("503")}
	prices := &mockPrices{
		tokenPrices: map[string]decimal.Decimal{usdc: decimal.NewFromInt(1)},
		ethPrice:    decimal.NewFromInt(2000),
	}

	builder := NewPortfolioBuilder(fallback, rich, prices, types.ChainBase)
	snapshot, mode, err := builder.Build(context.Background(), testWallet, testNow)

	require.NoError(t, err)
	assert.Equal(t, types.ModeFallbackOnly, mode)
	require.Len(t, snapshot.TokenHoldings, 2)

	// ETH first, then tokens in first-appearance order
	eth := snapshot.TokenHoldings[0]
	assert.True(t, eth.IsETH())
	assert.Equal(t, "4000", eth.ValueUSD.String())

	holding := snapshot.TokenHoldings[1]
	// Metadata from the known-token table
	assert.Equal(t, "USDC", holding.Symbol)
	assert.Equal(t, 6, holding.Decimals)
	assert.Equal(t, "400000000", holding.Balance.Shift(6).String())
	assert.Equal(t, "400", holding.Balance.String())
	assert.Equal(t, "400", holding.ValueUSD.String())
	assert.Equal(t, 200, holding.HoldingPeriodDays)
}

func TestBuildFallbackPlaceholderSymbol(t *testing.T) {
	token := "0x8335000000000000000000000000000000000001"
	fallback := &mockFallback{
		balance: decimal.Zero,
		tokenTx: []types.TokenTransferRecord{
			{Hash: "0xh1", Timestamp: tsDaysAgo(10), TokenAddress: token, From: "0xother", To: testWallet, Amount: decimal.New(7, 18)},
		},
	}
	rich := &mockRich{positionsErr: fmt.Errorf("down")}

	builder := NewPortfolioBuilder(fallback, rich, &mockPrices{}, types.ChainBase)
	snapshot, _, err := builder.Build(context.Background(), testWallet, testNow)

	require.NoError(t, err)
	require.Len(t, snapshot.TokenHoldings, 1)
	holding := snapshot.TokenHoldings[0]
	assert.Equal(t, "TOKEN-0x8335", holding.Symbol)
	assert.Equal(t, 18, holding.Decimals)
	assert.Equal(t, "7", holding.Balance.String())
	assert.False(t, holding.PriceKnown)
}

func TestBuildNFTHoldingsFromTransfers(t *testing.T) {
	coll := "0xcccccccccccccccccccccccccccccccccccccccc"
	fallback := &mockFallback{
		balance: decimal.Zero,
		nftTx: []types.NFTTransferRecord{
			{Hash: "0xn1", Timestamp: tsDaysAgo(60), CollectionAddress: coll, CollectionName: "Punks", TokenID: "1", From: "0xother", To: testWallet},
			{Hash: "0xn2", Timestamp: tsDaysAgo(50), CollectionAddress: coll, CollectionName: "Punks", TokenID: "2", From: "0xother", To: testWallet},
			// Token 2 was sold again
			{Hash: "0xn3", Timestamp: tsDaysAgo(40), CollectionAddress: coll, CollectionName: "Punks", TokenID: "2", From: testWallet, To: "0xother"},
		},
	}
	rich := &mockRich{
		collections: []types.NFTCollectionInfo{
			{CollectionAddress: coll, Name: "Punks", NFTCount: 1, TotalFloorUSD: decimal.NewFromInt(300)},
		},
	}

	builder := NewPortfolioBuilder(fallback, rich, &mockPrices{}, types.ChainBase)
	snapshot, mode, err := builder.Build(context.Background(), testWallet, testNow)

	require.NoError(t, err)
	assert.Equal(t, types.ModeRich, mode)
	require.Len(t, snapshot.NFTHoldings, 1)

	nft := snapshot.NFTHoldings[0]
	assert.Equal(t, []string{"1"}, nft.TokenIDs)
	assert.Equal(t, "300", nft.ValueUSD.String())
	assert.Equal(t, 60, nft.HoldingPeriodDays)
}

func TestBuildNFTFloorZeroInFallbackMode(t *testing.T) {
	coll := "0xcccccccccccccccccccccccccccccccccccccccc"
	fallback := &mockFallback{
		balance: decimal.Zero,
		nftTx: []types.NFTTransferRecord{
			{Hash: "0xn1", Timestamp: tsDaysAgo(60), CollectionAddress: coll, CollectionName: "Punks", TokenID: "1", From: "0xother", To: testWallet},
		},
	}
	rich := &mockRich{positionsErr: fmt.Errorf("down"), collectionsErr: fmt.Errorf("down")}

	builder := NewPortfolioBuilder(fallback, rich, &mockPrices{}, types.ChainBase)
	snapshot, mode, err := builder.Build(context.Background(), testWallet, testNow)

	require.NoError(t, err)
	assert.Equal(t, types.ModeFallbackOnly, mode)
	require.Len(t, snapshot.NFTHoldings, 1)
	assert.True(t, snapshot.NFTHoldings[0].ValueUSD.IsZero())
}

func TestBuildBothSourcesDead(t *testing.T) {
	fallback := &mockFallback{
		balanceErr: fmt.Errorf("timeout"),
		tokenTxErr: fmt.Errorf("timeout"),
	}
	rich := &mockRich{positionsErr: fmt.Errorf("503"), collectionsErr: fmt.Errorf("503")}

	builder := NewPortfolioBuilder(fallback, rich, &mockPrices{}, types.ChainBase)
	_, _, err := builder.Build(context.Background(), testWallet, testNow)

	require.Error(t, err)
	assert.True(t, apperrors.IsDataUnavailable(err))
}

func TestBuildNilRichSource(t *testing.T) {
	fallback := &mockFallback{balance: decimal.NewFromInt(1)}

	builder := NewPortfolioBuilder(fallback, nil, &mockPrices{ethPrice: decimal.NewFromInt(100)}, types.ChainBase)
	snapshot, mode, err := builder.Build(context.Background(), testWallet, testNow)

	require.NoError(t, err)
	assert.Equal(t, types.ModeFallbackOnly, mode)
	require.Len(t, snapshot.TokenHoldings, 1)
	assert.Equal(t, "100", snapshot.TokenHoldings[0].ValueUSD.String())
}

func TestBuildDeterministic(t *testing.T) {
	usdc := "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"
	weth := "0x4200000000000000000000000000000000000006"
	fallback := &mockFallback{
		balance: decimal.NewFromInt(1),
		tokenTx: []types.TokenTransferRecord{
			{Hash: "0xh1", Timestamp: tsDaysAgo(30), TokenAddress: weth, From: "0xother", To: testWallet, Amount: decimal.New(1, 18)},
			{Hash: "0xh2", Timestamp: tsDaysAgo(20), TokenAddress: usdc, From: "0xother", To: testWallet, Amount: decimal.New(100, 6)},
		},
	}
	rich := &mockRich{positionsErr: fmt.Errorf("down")}

	builder := NewPortfolioBuilder(fallback, rich, &mockPrices{}, types.ChainBase)

	first, _, err := builder.Build(context.Background(), testWallet, testNow)
	require.NoError(t, err)
	second, _, err := builder.Build(context.Background(), testWallet, testNow)
	require.NoError(t, err)

	require.Equal(t, len(first.TokenHoldings), len(second.TokenHoldings))
	for i := range first.TokenHoldings {
		assert.Equal(t, first.TokenHoldings[i].Symbol, second.TokenHoldings[i].Symbol)
	}
	// First-appearance order after ETH
	assert.Equal(t, "ETH", first.TokenHoldings[0].Symbol)
	assert.Equal(t, "WETH", first.TokenHoldings[1].Symbol)
	assert.Equal(t, "USDC", first.TokenHoldings[2].Symbol)
}

func TestBuildEmptyWallet(t *testing.T) {
	fallback := &mockFallback{balance: decimal.Zero}
	rich := &mockRich{}

	builder := NewPortfolioBuilder(fallback, rich, &mockPrices{}, types.ChainBase)
	snapshot, _, err := builder.Build(context.Background(), testWallet, testNow)

	require.NoError(t, err)
	assert.Empty(t, snapshot.TokenHoldings)
	assert.Empty(t, snapshot.NFTHoldings)
	assert.True(t, snapshot.TotalValueUSD.IsZero())
}
