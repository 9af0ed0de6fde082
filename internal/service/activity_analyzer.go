package service

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/persona-scanner/internal/errors"
	"github.com/persona-scanner/internal/logging"
	"github.com/persona-scanner/internal/models"
	"github.com/persona-scanner/internal/types"
)

// activityWindow is the trailing window for the windowed activity metrics
const activityWindow = 365 * 24 * time.Hour

// ActivityAnalyzer computes behavioral metrics from raw transaction
// history. Unlike the portfolio builder it has no second source to fall
// back on, so history fetch failures are fatal.
type ActivityAnalyzer struct {
	source FallbackSource
}

// NewActivityAnalyzer creates an activity analyzer over the history source
func NewActivityAnalyzer(source FallbackSource) *ActivityAnalyzer {
	return &ActivityAnalyzer{source: source}
}

// Analyze computes activity metrics for one wallet. Windowed metrics
// cover the trailing 365 days ending at now; total transaction count and
// marketplace interaction are all-time.
func (a *ActivityAnalyzer) Analyze(ctx context.Context, address string, now time.Time) (*models.ActivityMetrics, error) {
	address = strings.ToLower(address)

	var (
		normals     []types.NormalTransaction
		internals   []types.NormalTransaction
		tokenTx     []types.TokenTransferRecord
		normalsErr  error
		internalErr error
		tokenTxErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		normals, normalsErr = a.source.GetNormalTransactions(gctx, address)
		return nil
	})
	g.Go(func() error {
		internals, internalErr = a.source.GetInternalTransactions(gctx, address)
		return nil
	})
	g.Go(func() error {
		tokenTx, tokenTxErr = a.source.GetTokenTransfers(gctx, address)
		return nil
	})
	_ = g.Wait()

	if normalsErr != nil {
		return nil, errors.NewProviderError("etherscan", "activity-history", normalsErr)
	}
	if internalErr != nil {
		return nil, errors.NewProviderError("etherscan", "activity-history", internalErr)
	}
	if tokenTxErr != nil {
		return nil, errors.NewProviderError("etherscan", "activity-history", tokenTxErr)
	}

	windowStart := now.Add(-activityWindow)

	metrics := &models.ActivityMetrics{
		WalletCreatedAt:           firstActivity(normals, internals, tokenTx),
		ActiveDayCount:            countActiveDays(normals, windowStart, now),
		SwapCount:                 countSwaps(normals, tokenTx, windowStart, now),
		TotalTransactionCount:     len(normals),
		UniqueTokensTraded:        countUniqueTokens(tokenTx, windowStart, now),
		NFTMarketplaceInteraction: hasMarketplaceInteraction(normals),
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"address":    address,
		"activeDays": metrics.ActiveDayCount,
		"swaps":      metrics.SwapCount,
		"totalTxs":   metrics.TotalTransactionCount,
	}).Debug("Activity metrics computed")

	return metrics, nil
}

// firstActivity returns the oldest timestamp across all history record
// kinds, nil for a wallet with no history at all
func firstActivity(normals, internals []types.NormalTransaction, tokenTx []types.TokenTransferRecord) *time.Time {
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
	for i := range internals {
		consider(internals[i].Timestamp)
	}
	for i := range tokenTx {
		consider(tokenTx[i].Timestamp)
	}
	return earliest
}

// countActiveDays counts distinct UTC calendar days inside the window
// with at least one transaction
func countActiveDays(normals []types.NormalTransaction, windowStart, now time.Time) int {
	days := make(map[string]struct{})
	for i := range normals {
		tx := &normals[i]
		if !inWindow(tx.Timestamp, windowStart, now) {
			continue
		}
		days[tx.Timestamp.UTC().Format("2006-01-02")] = struct{}{}
	}
	return len(days)
}

// countSwaps applies the swap heuristic inside the window: a transaction
// that moves native value and carries at least one token transfer under
// the same hash. The token leg always differs from the native leg, which
// is what makes the pairing look like an exchange.
func countSwaps(normals []types.NormalTransaction, tokenTx []types.TokenTransferRecord, windowStart, now time.Time) int {
	tokenHashes := make(map[string]struct{})
	for i := range tokenTx {
		tr := &tokenTx[i]
		if !inWindow(tr.Timestamp, windowStart, now) {
			continue
		}
		tokenHashes[tr.Hash] = struct{}{}
	}

	count := 0
	for i := range normals {
		tx := &normals[i]
		if !inWindow(tx.Timestamp, windowStart, now) || !tx.Value.IsPositive() {
			continue
		}
		if _, ok := tokenHashes[tx.Hash]; ok {
			count++
		}
	}
	return count
}

// countUniqueTokens counts distinct token contracts transferred inside
// the window
func countUniqueTokens(tokenTx []types.TokenTransferRecord, windowStart, now time.Time) int {
	tokens := make(map[string]struct{})
	for i := range tokenTx {
		tr := &tokenTx[i]
		if !inWindow(tr.Timestamp, windowStart, now) {
			continue
		}
		tokens[tr.TokenAddress] = struct{}{}
	}
	return len(tokens)
}

// hasMarketplaceInteraction reports whether any transaction, regardless of
// age, targeted a known NFT marketplace contract
func hasMarketplaceInteraction(normals []types.NormalTransaction) bool {
	for i := range normals {
		if _, ok := nftMarketplaces[strings.ToLower(normals[i].To)]; ok {
			return true
		}
	}
	return false
}

// inWindow reports whether ts falls inside (windowStart, now]
func inWindow(ts, windowStart, now time.Time) bool {
	return ts.After(windowStart) && !ts.After(now)
}
