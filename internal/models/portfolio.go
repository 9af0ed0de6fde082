// Package models contains the domain models for wallet persona analysis.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EthereumSymbol is the identifier used for the native ETH holding
const EthereumSymbol = "ETH"

// dustThresholdUSD separates dust positions from significant ones
var dustThresholdUSD = decimal.NewFromInt(5)

// TokenHolding represents a token holding with valuation data.
// ValueUSD is always recomputed from balance and price at construction,
// never stored independently.
type TokenHolding struct {
	ContractAddress   string          `json:"contractAddress,omitempty"` // empty for native ETH
	Symbol            string          `json:"symbol"`
	Decimals          int             `json:"decimals"`
	Balance           decimal.Decimal `json:"balance"` // scaled by token decimals
	PriceUSD          decimal.Decimal `json:"priceUsd"`
	ValueUSD          decimal.Decimal `json:"valueUsd"`
	PriceKnown        bool            `json:"priceKnown"`
	Degraded          bool            `json:"degraded,omitempty"` // source answered with missing or unparseable fields
	AcquiredAt        *time.Time      `json:"acquiredAt,omitempty"`
	HoldingPeriodDays int             `json:"holdingPeriodDays"`
}

// NewTokenHolding builds a token holding, recomputing value and holding
// period from the inputs. A nil acquiredAt means the acquisition could not
// be established and the holding period is 0.
func NewTokenHolding(contract, symbol string, decimals int, balance, priceUSD decimal.Decimal, priceKnown bool, acquiredAt *time.Time, now time.Time) TokenHolding {
	h := TokenHolding{
		ContractAddress: contract,
		Symbol:          symbol,
		Decimals:        decimals,
		Balance:         balance,
		PriceUSD:        priceUSD,
		PriceKnown:      priceKnown,
		AcquiredAt:      acquiredAt,
	}
	h.ValueUSD = balance.Mul(priceUSD)
	if acquiredAt != nil {
		h.HoldingPeriodDays = daysBetween(*acquiredAt, now)
	}
	return h
}

// IsETH reports whether the holding is the native ETH position
func (h *TokenHolding) IsETH() bool {
	return h.ContractAddress == "" && h.Symbol == EthereumSymbol
}

// NFTHolding represents the wallet's position in one NFT collection
type NFTHolding struct {
	CollectionAddress string          `json:"collectionAddress"`
	CollectionName    string          `json:"collectionName"`
	TokenIDs          []string        `json:"tokenIds,omitempty"`
	TokenCount        int             `json:"tokenCount"`
	FloorPriceUSD     decimal.Decimal `json:"floorPriceUsd"`
	ValueUSD          decimal.Decimal `json:"valueUsd"`
	AcquiredAt        *time.Time      `json:"acquiredAt,omitempty"`
	HoldingPeriodDays int             `json:"holdingPeriodDays"`
}

// NewNFTHolding builds an NFT holding. Value is the per-NFT floor price
// times the held token count; a collection without a floor contributes 0.
func NewNFTHolding(collectionAddress, collectionName string, tokenIDs []string, floorPriceUSD decimal.Decimal, acquiredAt *time.Time, now time.Time) NFTHolding {
	h := NFTHolding{
		CollectionAddress: collectionAddress,
		CollectionName:    collectionName,
		TokenIDs:          tokenIDs,
		TokenCount:        len(tokenIDs),
		FloorPriceUSD:     floorPriceUSD,
		AcquiredAt:        acquiredAt,
	}
	h.ValueUSD = floorPriceUSD.Mul(decimal.NewFromInt(int64(h.TokenCount)))
	if acquiredAt != nil {
		h.HoldingPeriodDays = daysBetween(*acquiredAt, now)
	}
	return h
}

// TopAsset identifies the single most valuable holding in a snapshot
type TopAsset struct {
	Symbol   string          `json:"symbol"`
	ValueUSD decimal.Decimal `json:"valueUsd"`
	IsNFT    bool            `json:"isNft"`
}

// PortfolioSnapshot is a reconciled portfolio for one wallet at one point
// in time. It is built once per analysis and not mutated afterwards.
type PortfolioSnapshot struct {
	Address                 string          `json:"address"`
	TokenHoldings           []TokenHolding  `json:"tokenHoldings"`
	NFTHoldings             []NFTHolding    `json:"nftHoldings"`
	TotalValueUSD           decimal.Decimal `json:"totalValueUsd"`
	TopAsset                TopAsset        `json:"topAsset"`
	TokenConcentrationRatio decimal.Decimal `json:"tokenConcentrationRatio"`
	LongestHoldingDays      int             `json:"longestHoldingDays"`
	AnalyzedAt              time.Time       `json:"analyzedAt"`
}

// NewPortfolioSnapshot computes all derived fields from the holding lists.
// Holding order is preserved. Ties on top asset go token before NFT, then
// first-seen in source order: replacement only happens on strictly greater
// value.
func NewPortfolioSnapshot(address string, tokens []TokenHolding, nfts []NFTHolding, now time.Time) *PortfolioSnapshot {
	s := &PortfolioSnapshot{
		Address:                 address,
		TokenHoldings:           tokens,
		NFTHoldings:             nfts,
		TotalValueUSD:           decimal.Zero,
		TokenConcentrationRatio: decimal.Zero,
		AnalyzedAt:              now,
	}

	total := decimal.Zero
	for i := range tokens {
		total = total.Add(tokens[i].ValueUSD)
	}
	for i := range nfts {
		total = total.Add(nfts[i].ValueUSD)
	}
	s.TotalValueUSD = total

	haveTop := false
	for i := range tokens {
		if !haveTop || tokens[i].ValueUSD.GreaterThan(s.TopAsset.ValueUSD) {
			s.TopAsset = TopAsset{Symbol: tokens[i].Symbol, ValueUSD: tokens[i].ValueUSD}
			haveTop = true
		}
	}
	for i := range nfts {
		if !haveTop || nfts[i].ValueUSD.GreaterThan(s.TopAsset.ValueUSD) {
			s.TopAsset = TopAsset{Symbol: nfts[i].CollectionName, ValueUSD: nfts[i].ValueUSD, IsNFT: true}
			haveTop = true
		}
	}

	// Concentration is defined over token holdings only; NFT value still
	// counts in the denominator
	topTokenValue := decimal.Zero
	for i := range tokens {
		if tokens[i].ValueUSD.GreaterThan(topTokenValue) {
			topTokenValue = tokens[i].ValueUSD
		}
	}
	if total.IsPositive() {
		s.TokenConcentrationRatio = topTokenValue.Div(total)
	}

	for i := range tokens {
		if tokens[i].HoldingPeriodDays > s.LongestHoldingDays {
			s.LongestHoldingDays = tokens[i].HoldingPeriodDays
		}
	}

	return s
}

// ETHBalance returns the native ETH balance, zero when no ETH is held
func (s *PortfolioSnapshot) ETHBalance() decimal.Decimal {
	for i := range s.TokenHoldings {
		if s.TokenHoldings[i].IsETH() {
			return s.TokenHoldings[i].Balance
		}
	}
	return decimal.Zero
}

// HasETH reports whether the wallet holds any ETH
func (s *PortfolioSnapshot) HasETH() bool {
	return s.ETHBalance().IsPositive()
}

// IsTopAssetNFT reports whether the most valuable holding is an NFT collection
func (s *PortfolioSnapshot) IsTopAssetNFT() bool {
	return s.TopAsset.IsNFT
}

// IsTopAssetTokenNotETH reports whether the top asset is a token other than ETH
func (s *PortfolioSnapshot) IsTopAssetTokenNotETH() bool {
	return !s.TopAsset.IsNFT && s.TopAsset.Symbol != "" && s.TopAsset.Symbol != EthereumSymbol
}

// NFTCount returns the total number of NFTs held across all collections
func (s *PortfolioSnapshot) NFTCount() int {
	count := 0
	for i := range s.NFTHoldings {
		count += s.NFTHoldings[i].TokenCount
	}
	return count
}

// AverageHoldingDays returns the mean holding period across token holdings
func (s *PortfolioSnapshot) AverageHoldingDays() float64 {
	if len(s.TokenHoldings) == 0 {
		return 0
	}
	sum := 0
	for i := range s.TokenHoldings {
		sum += s.TokenHoldings[i].HoldingPeriodDays
	}
	return float64(sum) / float64(len(s.TokenHoldings))
}

// TotalTokenValue returns the combined value of token holdings
func (s *PortfolioSnapshot) TotalTokenValue() decimal.Decimal {
	total := decimal.Zero
	for i := range s.TokenHoldings {
		total = total.Add(s.TokenHoldings[i].ValueUSD)
	}
	return total
}

// TotalNFTValue returns the combined value of NFT holdings
func (s *PortfolioSnapshot) TotalNFTValue() decimal.Decimal {
	total := decimal.Zero
	for i := range s.NFTHoldings {
		total = total.Add(s.NFTHoldings[i].ValueUSD)
	}
	return total
}

// Composition returns the fraction of portfolio value held as ETH, other
// tokens, and NFTs. All fractions are zero for an empty portfolio.
func (s *PortfolioSnapshot) Composition() (eth, tokens, nfts decimal.Decimal) {
	if !s.TotalValueUSD.IsPositive() {
		return decimal.Zero, decimal.Zero, decimal.Zero
	}
	ethValue := decimal.Zero
	tokenValue := decimal.Zero
	for i := range s.TokenHoldings {
		if s.TokenHoldings[i].IsETH() {
			ethValue = ethValue.Add(s.TokenHoldings[i].ValueUSD)
		} else {
			tokenValue = tokenValue.Add(s.TokenHoldings[i].ValueUSD)
		}
	}
	return ethValue.Div(s.TotalValueUSD),
		tokenValue.Div(s.TotalValueUSD),
		s.TotalNFTValue().Div(s.TotalValueUSD)
}

// SignificantTokenHoldings returns token holdings worth at least $5
func (s *PortfolioSnapshot) SignificantTokenHoldings() []TokenHolding {
	var out []TokenHolding
	for i := range s.TokenHoldings {
		if s.TokenHoldings[i].ValueUSD.GreaterThanOrEqual(dustThresholdUSD) {
			out = append(out, s.TokenHoldings[i])
		}
	}
	return out
}

// DustPositionsCount counts positions worth more than zero but under $5
func (s *PortfolioSnapshot) DustPositionsCount() int {
	count := 0
	for i := range s.TokenHoldings {
		v := s.TokenHoldings[i].ValueUSD
		if v.IsPositive() && v.LessThan(dustThresholdUSD) {
			count++
		}
	}
	for i := range s.NFTHoldings {
		v := s.NFTHoldings[i].ValueUSD
		if v.IsPositive() && v.LessThan(dustThresholdUSD) {
			count++
		}
	}
	return count
}

// daysBetween returns full days elapsed from a to b
func daysBetween(a, b time.Time) int {
	if b.Before(a) {
		return 0
	}
	return int(b.Sub(a).Hours() / 24)
}
