package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/persona-scanner/internal/errors"
	"github.com/persona-scanner/internal/logging"
	"github.com/persona-scanner/internal/models"
	"github.com/persona-scanner/internal/types"
)

// richDustUSD is the cutoff under which priced rich-source positions are
// dropped as dust. Positions without a price are kept: unpriced is not
// the same as worthless.
var richDustUSD = decimal.NewFromInt(1)

// PortfolioBuilder reconstructs a wallet's portfolio snapshot from the
// rich source when it answers and from raw transfer history otherwise.
// The mode is decided once per Build call.
type PortfolioBuilder struct {
	fallback FallbackSource
	rich     RichSource
	prices   PriceSource
	chain    types.ChainID
}

// NewPortfolioBuilder creates a portfolio builder. rich and prices may be
// nil; the builder then degrades to fallback-only, unpriced holdings.
func NewPortfolioBuilder(fallback FallbackSource, rich RichSource, prices PriceSource, chain types.ChainID) *PortfolioBuilder {
	return &PortfolioBuilder{
		fallback: fallback,
		rich:     rich,
		prices:   prices,
		chain:    chain,
	}
}

// sourceData holds everything the two sources produced for one wallet
type sourceData struct {
	balance     decimal.Decimal
	balanceErr  error
	normals     []types.NormalTransaction
	normalsErr  error
	tokenTx     []types.TokenTransferRecord
	tokenTxErr  error
	nftTx       []types.NFTTransferRecord
	nftTxErr    error
	positions   []types.Position
	positionErr error
	collections []types.NFTCollectionInfo
	collectErr  error
}

// Build reconstructs the portfolio for one wallet. The returned mode
// records whether the rich source contributed.
func (b *PortfolioBuilder) Build(ctx context.Context, address string, now time.Time) (*models.PortfolioSnapshot, types.DataSourceMode, error) {
	address = strings.ToLower(address)
	logger := logging.FromContext(ctx).WithField("address", address)

	data := b.fetchAll(ctx, address)

	mode := types.ModeRich
	if data.positionErr != nil {
		mode = types.ModeFallbackOnly
		logger.WithError(data.positionErr).Warn("Rich source unavailable, building from transfer history")
	}

	// Terminal only when neither source produced anything to build from
	if mode == types.ModeFallbackOnly && data.tokenTxErr != nil && data.balanceErr != nil {
		return nil, mode, errors.NewDataUnavailableError(address, map[string]string{
			"rich":     data.positionErr.Error(),
			"fallback": fmt.Sprintf("balance: %v; token transfers: %v", data.balanceErr, data.tokenTxErr),
		})
	}

	resolver := newPriceResolver(b.prices)
	firstSeen := walletFirstSeen(data.normals, data.tokenTx, data.nftTx)

	var tokens []models.TokenHolding
	if mode == types.ModeRich {
		tokens = b.buildRichTokens(ctx, data, resolver, address, firstSeen, now)
	} else {
		tokens = b.buildFallbackTokens(ctx, data, resolver, address, firstSeen, now)
	}

	if eth, ok := b.buildETHHolding(ctx, data, resolver, mode, address, firstSeen, now); ok {
		tokens = append([]models.TokenHolding{eth}, tokens...)
	}

	nfts := b.buildNFTHoldings(ctx, data, mode, address, now)

	return models.NewPortfolioSnapshot(address, tokens, nfts, now), mode, nil
}

// fetchAll fans out the independent source calls. Errors are captured per
// call instead of cancelling the group: a dead endpoint must not take the
// healthy ones down with it.
func (b *PortfolioBuilder) fetchAll(ctx context.Context, address string) *sourceData {
	data := &sourceData{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		data.balance, data.balanceErr = b.fallback.GetETHBalance(gctx, address)
		return nil
	})
	g.Go(func() error {
		data.normals, data.normalsErr = b.fallback.GetNormalTransactions(gctx, address)
		return nil
	})
	g.Go(func() error {
		data.tokenTx, data.tokenTxErr = b.fallback.GetTokenTransfers(gctx, address)
		return nil
	})
	g.Go(func() error {
		data.nftTx, data.nftTxErr = b.fallback.GetNFTTransfers(gctx, address)
		return nil
	})
	g.Go(func() error {
		if b.rich == nil {
			data.positionErr = fmt.Errorf("rich source not configured")
			return nil
		}
		data.positions, data.positionErr = b.rich.GetPositions(gctx, address)
		return nil
	})
	g.Go(func() error {
		if b.rich == nil {
			data.collectErr = fmt.Errorf("rich source not configured")
			return nil
		}
		data.collections, data.collectErr = b.rich.GetNFTCollections(gctx, address)
		return nil
	})

	_ = g.Wait()
	return data
}

// buildRichTokens converts rich-source positions into token holdings.
// The native position is skipped here; ETH is built from the balance
// lookup, the position only contributes its price.
func (b *PortfolioBuilder) buildRichTokens(ctx context.Context, data *sourceData, resolver *priceResolver, address string, firstSeen *time.Time, now time.Time) []models.TokenHolding {
	var holdings []models.TokenHolding

	for _, pos := range data.positions {
		if pos.PriceKnown {
			resolver.prime(pos.TokenAddress, pos.UnitPrice)
		}
		if pos.IsNative() {
			continue
		}
		if pos.PriceKnown && pos.ValueUSD.LessThan(richDustUSD) {
			continue
		}

		price, known := pos.UnitPrice, pos.PriceKnown
		if !known {
			price, known = resolver.resolve(ctx, pos.TokenAddress)
		}

		acquired := earliestInboundTokenTransfer(data.tokenTx, address, pos.TokenAddress)
		if acquired == nil {
			acquired = firstSeen
		}

		holdings = append(holdings, models.NewTokenHolding(
			pos.TokenAddress, pos.Symbol, pos.Decimals, pos.Balance, price, known, acquired, now))
	}

	return holdings
}

// tokenLedger accumulates signed transfer sums for one token contract
type tokenLedger struct {
	rawSum   decimal.Decimal
	symbol   string
	decimals int
	order    int
}

// buildFallbackTokens derives holdings from signed sums over the transfer
// log: inbound adds, outbound subtracts, negatives clamp to zero. Holdings
// come out in first-appearance order.
func (b *PortfolioBuilder) buildFallbackTokens(ctx context.Context, data *sourceData, resolver *priceResolver, address string, firstSeen *time.Time, now time.Time) []models.TokenHolding {
	if data.tokenTxErr != nil {
		logging.FromContext(ctx).WithError(data.tokenTxErr).
			Warn("Token transfer history unavailable, token holdings omitted")
		return nil
	}

	ledgers := make(map[string]*tokenLedger)
	var order []string

	for _, tr := range data.tokenTx {
		ledger, ok := ledgers[tr.TokenAddress]
		if !ok {
			ledger = &tokenLedger{rawSum: decimal.Zero, order: len(order)}
			ledgers[tr.TokenAddress] = ledger
			order = append(order, tr.TokenAddress)
		}
		if tr.To == address {
			ledger.rawSum = ledger.rawSum.Add(tr.Amount)
		}
		if tr.From == address {
			ledger.rawSum = ledger.rawSum.Sub(tr.Amount)
		}
		if ledger.symbol == "" {
			ledger.symbol = tr.TokenSymbol
		}
		if ledger.decimals == 0 {
			ledger.decimals = tr.TokenDecimals
		}
	}

	var held []string
	for _, addr := range order {
		if ledgers[addr].rawSum.IsPositive() {
			held = append(held, addr)
		}
	}
	resolver.prefetch(ctx, held)

	holdings := make([]models.TokenHolding, 0, len(held))
	for _, addr := range held {
		ledger := ledgers[addr]

		decimals := ledger.decimals
		symbol := ledger.symbol
		if meta, ok := knownTokens[addr]; ok {
			if decimals == 0 {
				decimals = meta.Decimals
			}
			if symbol == "" {
				symbol = meta.Symbol
			}
		}
		if decimals == 0 {
			decimals = defaultTokenDecimals
		}
		if symbol == "" {
			symbol = placeholderSymbol(addr)
		}

		price, known := resolver.resolve(ctx, addr)

		acquired := earliestInboundTokenTransfer(data.tokenTx, address, addr)
		if acquired == nil {
			acquired = firstSeen
		}

		holdings = append(holdings, models.NewTokenHolding(
			addr, symbol, decimals, ledger.rawSum.Shift(int32(-decimals)), price, known, acquired, now))
	}

	return holdings
}

// buildETHHolding builds the native ETH holding. The amount always comes
// from the balance lookup; the rich native position only supplies a price
// and, when the balance lookup failed, a degraded stand-in amount.
func (b *PortfolioBuilder) buildETHHolding(ctx context.Context, data *sourceData, resolver *priceResolver, mode types.DataSourceMode, address string, firstSeen *time.Time, now time.Time) (models.TokenHolding, bool) {
	logger := logging.FromContext(ctx)

	balance := data.balance
	degraded := false

	if data.balanceErr != nil {
		native := findNativePosition(data.positions)
		if mode != types.ModeRich || native == nil {
			logger.WithError(data.balanceErr).Warn("ETH balance unavailable, ETH holding omitted")
			return models.TokenHolding{}, false
		}
		balance = native.Balance
		degraded = true
		logger.WithError(data.balanceErr).Warn("ETH balance lookup failed, using rich-source amount")
	}

	if !balance.IsPositive() {
		return models.TokenHolding{}, false
	}

	price, known := resolver.resolveETH(ctx)

	acquired := earliestInboundETH(data.normals, address)
	if acquired == nil {
		acquired = firstSeen
	}

	eth := models.NewTokenHolding("", models.EthereumSymbol, 18, balance, price, known, acquired, now)
	eth.Degraded = degraded
	return eth, true
}

// buildNFTHoldings derives held NFTs from transfer history: net count per
// collection and token id, kept when positive. Floor values come from the
// rich source's collection data when available.
func (b *PortfolioBuilder) buildNFTHoldings(ctx context.Context, data *sourceData, mode types.DataSourceMode, address string, now time.Time) []models.NFTHolding {
	if data.nftTxErr != nil {
		logging.FromContext(ctx).WithError(data.nftTxErr).
			Warn("NFT transfer history unavailable, NFT holdings omitted")
		return nil
	}
	if len(data.nftTx) == 0 {
		return nil
	}

	type nftState struct {
		net     int
		firstIn *time.Time
	}
	type collectionState struct {
		name    string
		tokens  map[string]*nftState
		idOrder []string
		order   int
	}

	colls := make(map[string]*collectionState)
	var collOrder []string

	for i := range data.nftTx {
		tr := &data.nftTx[i]
		coll, ok := colls[tr.CollectionAddress]
		if !ok {
			coll = &collectionState{tokens: make(map[string]*nftState), order: len(collOrder)}
			colls[tr.CollectionAddress] = coll
			collOrder = append(collOrder, tr.CollectionAddress)
		}
		if coll.name == "" {
			coll.name = tr.CollectionName
		}
		state, ok := coll.tokens[tr.TokenID]
		if !ok {
			state = &nftState{}
			coll.tokens[tr.TokenID] = state
			coll.idOrder = append(coll.idOrder, tr.TokenID)
		}
		if tr.To == address {
			state.net++
			if state.firstIn == nil || tr.Timestamp.Before(*state.firstIn) {
				ts := tr.Timestamp
				state.firstIn = &ts
			}
		}
		if tr.From == address {
			state.net--
		}
	}

	floors := richCollectionFloors(ctx, data, mode)

	var holdings []models.NFTHolding
	for _, collAddr := range collOrder {
		coll := colls[collAddr]

		var heldIDs []string
		var acquired *time.Time
		for _, id := range coll.idOrder {
			state := coll.tokens[id]
			if state.net <= 0 {
				continue
			}
			heldIDs = append(heldIDs, id)
			if state.firstIn != nil && (acquired == nil || state.firstIn.Before(*acquired)) {
				acquired = state.firstIn
			}
		}
		if len(heldIDs) == 0 {
			continue
		}

		name := coll.name
		floor := decimal.Zero
		if info, ok := floors[collAddr]; ok {
			floor = info.perNFTFloor
			if name == "" {
				name = info.name
			}
		}
		if name == "" {
			name = collAddr
		}

		holdings = append(holdings, models.NewNFTHolding(collAddr, name, heldIDs, floor, acquired, now))
	}

	return holdings
}

// collectionFloor is the per-NFT floor derived from rich collection data
type collectionFloor struct {
	name        string
	perNFTFloor decimal.Decimal
}

// richCollectionFloors indexes rich-source collection floors by address
func richCollectionFloors(ctx context.Context, data *sourceData, mode types.DataSourceMode) map[string]collectionFloor {
	floors := make(map[string]collectionFloor)
	if mode != types.ModeRich {
		return floors
	}
	if data.collectErr != nil {
		logging.FromContext(ctx).WithError(data.collectErr).
			Warn("NFT collection floors unavailable, NFT values default to zero")
		return floors
	}

	for _, info := range data.collections {
		if info.CollectionAddress == "" || info.NFTCount <= 0 {
			continue
		}
		floors[info.CollectionAddress] = collectionFloor{
			name:        info.Name,
			perNFTFloor: info.TotalFloorUSD.Div(decimal.NewFromInt(int64(info.NFTCount))),
		}
	}
	return floors
}

// findNativePosition returns the rich source's native asset position, nil
// when absent
func findNativePosition(positions []types.Position) *types.Position {
	for i := range positions {
		if positions[i].IsNative() {
			return &positions[i]
		}
	}
	return nil
}

// earliestInboundTokenTransfer finds the oldest transfer of a token into
// the wallet
func earliestInboundTokenTransfer(transfers []types.TokenTransferRecord, address, tokenAddress string) *time.Time {
	var earliest *time.Time
	for i := range transfers {
		tr := &transfers[i]
		if tr.TokenAddress != tokenAddress || tr.To != address {
			continue
		}
		if earliest == nil || tr.Timestamp.Before(*earliest) {
			ts := tr.Timestamp
			earliest = &ts
		}
	}
	return earliest
}

// earliestInboundETH finds the oldest value-bearing transaction into the
// wallet
func earliestInboundETH(normals []types.NormalTransaction, address string) *time.Time {
	var earliest *time.Time
	for i := range normals {
		tx := &normals[i]
		if tx.To != address || !tx.Value.IsPositive() {
			continue
		}
		if earliest == nil || tx.Timestamp.Before(*earliest) {
			ts := tx.Timestamp
			earliest = &ts
		}
	}
	return earliest
}

// walletFirstSeen returns the oldest timestamp across all fetched history,
// the lower bound used when a holding has no inbound transfer record
func walletFirstSeen(normals []types.NormalTransaction, tokenTx []types.TokenTransferRecord, nftTx []types.NFTTransferRecord) *time.Time {
	var earliest *time.Time
	consider := func(ts time.Time) {
		if earliest == nil || ts.Before(*earliest) {
			t := ts
			earliest = &t
		}
	}
	for i := range normals {
		consider(normals[i].Timestamp)
	}
	for i := range tokenTx {
		consider(tokenTx[i].Timestamp)
	}
	for i := range nftTx {
		consider(nftTx[i].Timestamp)
	}
	return earliest
}
