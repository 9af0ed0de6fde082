// Package types provides common type definitions for the persona scanner system.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChainID represents supported blockchain networks
type ChainID string

const (
	// ChainEthereum represents the Ethereum mainnet
	ChainEthereum ChainID = "ethereum"
	// ChainBase represents the Base network
	ChainBase ChainID = "base"
	// ChainArbitrum represents the Arbitrum network
	ChainArbitrum ChainID = "arbitrum"
	// ChainOptimism represents the Optimism network
	ChainOptimism ChainID = "optimism"
)

// NumericChainID returns the EVM chain id used by explorer-style APIs
func (c ChainID) NumericChainID() int {
	switch c {
	case ChainEthereum:
		return 1
	case ChainBase:
		return 8453
	case ChainArbitrum:
		return 42161
	case ChainOptimism:
		return 10
	default:
		return 1
	}
}

// NativeAsset returns the native asset symbol for a chain
func (c ChainID) NativeAsset() string {
	// All currently supported chains settle in ETH
	return "ETH"
}

// DataSourceMode indicates which data sources contributed to an analysis.
// The mode is decided once per analysis call and threaded through, so the
// two portfolio paths stay testable in isolation.
type DataSourceMode string

const (
	// ModeRich means the curated portfolio source answered and the
	// transfer-history source supplied acquisition backfill
	ModeRich DataSourceMode = "rich+fallback"
	// ModeFallbackOnly means holdings were derived purely from
	// transfer-history records
	ModeFallbackOnly DataSourceMode = "fallback-only"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// NormalTransaction represents a normal or internal transaction from the
// transfer-history source
type NormalTransaction struct {
	Hash       string          `json:"hash"`
	Timestamp  time.Time       `json:"timestamp"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Value      decimal.Decimal `json:"value"` // native units (ETH), not wei
	IsInternal bool            `json:"isInternal"`
}

// TokenTransferRecord represents a single ERC20 transfer touching the wallet
type TokenTransferRecord struct {
	Hash          string          `json:"hash"`
	Timestamp     time.Time       `json:"timestamp"`
	TokenAddress  string          `json:"tokenAddress"`
	TokenSymbol   string          `json:"tokenSymbol,omitempty"`
	TokenDecimals int             `json:"tokenDecimals,omitempty"`
	From          string          `json:"from"`
	To            string          `json:"to"`
	Amount        decimal.Decimal `json:"amount"` // raw amount, unscaled
}

// NFTTransferRecord represents a single NFT transfer touching the wallet
type NFTTransferRecord struct {
	Hash              string    `json:"hash"`
	Timestamp         time.Time `json:"timestamp"`
	CollectionAddress string    `json:"collectionAddress"`
	CollectionName    string    `json:"collectionName,omitempty"`
	TokenID           string    `json:"tokenId"`
	From              string    `json:"from"`
	To                string    `json:"to"`
}

// Position represents a priced holding from the rich portfolio source
type Position struct {
	TokenAddress string          `json:"tokenAddress"` // empty for the native asset
	Symbol       string          `json:"symbol"`
	Decimals     int             `json:"decimals"`
	Balance      decimal.Decimal `json:"balance"` // scaled by token decimals
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	ValueUSD     decimal.Decimal `json:"valueUsd"`
	PriceKnown   bool            `json:"priceKnown"`
}

// IsNative reports whether the position is the chain's native asset
func (p *Position) IsNative() bool {
	return p.TokenAddress == ""
}

// NFTCollectionInfo represents an NFT collection summary from the rich source
type NFTCollectionInfo struct {
	CollectionAddress string          `json:"collectionAddress"`
	Name              string          `json:"name"`
	NFTCount          int             `json:"nftCount"`
	TotalFloorUSD     decimal.Decimal `json:"totalFloorUsd"`
}
