// Package service implements portfolio reconstruction, activity analysis
// and persona classification for wallets.
package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/persona-scanner/internal/types"
)

// FallbackSource provides balance and transfer history from an
// explorer-style API. It is always consulted: acquisition times and
// activity metrics come from transfer history even when the rich source
// is healthy.
type FallbackSource interface {
	GetETHBalance(ctx context.Context, address string) (decimal.Decimal, error)
	GetNormalTransactions(ctx context.Context, address string) ([]types.NormalTransaction, error)
	GetInternalTransactions(ctx context.Context, address string) ([]types.NormalTransaction, error)
	GetTokenTransfers(ctx context.Context, address string) ([]types.TokenTransferRecord, error)
	GetNFTTransfers(ctx context.Context, address string) ([]types.NFTTransferRecord, error)
}

// RichSource provides curated, priced portfolio data
type RichSource interface {
	GetPositions(ctx context.Context, address string) ([]types.Position, error)
	GetNFTCollections(ctx context.Context, address string) ([]types.NFTCollectionInfo, error)
}

// PriceSource provides spot prices for tokens the rich source did not cover
type PriceSource interface {
	GetTokenPrices(ctx context.Context, addresses []string) (map[string]decimal.Decimal, error)
	GetETHPrice(ctx context.Context) (decimal.Decimal, error)
}
