package service

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/persona-scanner/internal/models"
)

var hundred = decimal.NewFromInt(100)

// FormatReport renders an analysis result as a plain-text report for the
// CLI. The layout is stable enough to eyeball-diff two runs of the same
// wallet.
func FormatReport(result *models.AnalysisResult) string {
	var b strings.Builder
	line := strings.Repeat("=", 64)

	fmt.Fprintf(&b, "%s\n", line)
	fmt.Fprintf(&b, "Wallet Persona Report\n")
	fmt.Fprintf(&b, "%s\n", line)
	fmt.Fprintf(&b, "Address:      %s\n", result.Address)
	fmt.Fprintf(&b, "Chain:        %s\n", result.Chain)
	fmt.Fprintf(&b, "Analyzed at:  %s\n", result.AnalyzedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "Data sources: %s\n", result.DataSources)

	fmt.Fprintf(&b, "\nPersona: %s (confidence %.0f%%)\n", result.Persona.Label, result.Persona.Confidence*100)
	fmt.Fprintf(&b, "Persona score: %.1f/100 (%d of %d metrics)\n",
		result.Persona.PersonaScore, result.Persona.MetricsPassed, result.Persona.TotalMetrics)

	s := result.Portfolio
	fmt.Fprintf(&b, "\nPortfolio\n")
	fmt.Fprintf(&b, "  Total value:    $%s\n", s.TotalValueUSD.StringFixed(2))
	if s.TopAsset.Symbol != "" {
		kind := "token"
		if s.TopAsset.IsNFT {
			kind = "NFT"
		}
		fmt.Fprintf(&b, "  Top asset:      %s ($%s, %s)\n",
			s.TopAsset.Symbol, s.TopAsset.ValueUSD.StringFixed(2), kind)
	}
	fmt.Fprintf(&b, "  Concentration:  %s\n", s.TokenConcentrationRatio.StringFixed(2))
	fmt.Fprintf(&b, "  Longest hold:   %d days\n", s.LongestHoldingDays)

	eth, tokens, nfts := s.Composition()
	if s.TotalValueUSD.IsPositive() {
		fmt.Fprintf(&b, "  Composition:    ETH %s%%  tokens %s%%  NFTs %s%%\n",
			eth.Mul(hundred).StringFixed(1), tokens.Mul(hundred).StringFixed(1), nfts.Mul(hundred).StringFixed(1))
	}
	if dust := s.DustPositionsCount(); dust > 0 {
		fmt.Fprintf(&b, "  Dust positions: %d\n", dust)
	}

	if len(s.TokenHoldings) > 0 {
		fmt.Fprintf(&b, "\n  Token holdings:\n")
		for i := range s.TokenHoldings {
			h := &s.TokenHoldings[i]
			priced := fmt.Sprintf("$%s", h.ValueUSD.StringFixed(2))
			if !h.PriceKnown {
				priced = "price unknown"
			}
			fmt.Fprintf(&b, "    %-12s %s (%s, held %dd)\n",
				h.Symbol, h.Balance.String(), priced, h.HoldingPeriodDays)
		}
	}
	if len(s.NFTHoldings) > 0 {
		fmt.Fprintf(&b, "\n  NFT holdings:\n")
		for i := range s.NFTHoldings {
			h := &s.NFTHoldings[i]
			fmt.Fprintf(&b, "    %-24s x%d ($%s, held %dd)\n",
				h.CollectionName, h.TokenCount, h.ValueUSD.StringFixed(2), h.HoldingPeriodDays)
		}
	}

	m := result.Activity
	fmt.Fprintf(&b, "\nActivity\n")
	if m.WalletCreatedAt != nil {
		fmt.Fprintf(&b, "  Wallet created: %s\n", m.WalletCreatedAt.Format("2006-01-02"))
	} else {
		fmt.Fprintf(&b, "  Wallet created: unknown\n")
	}
	fmt.Fprintf(&b, "  Active days (365d):  %d\n", m.ActiveDayCount)
	fmt.Fprintf(&b, "  Swaps (365d):        %d\n", m.SwapCount)
	fmt.Fprintf(&b, "  Unique tokens (365d): %d\n", m.UniqueTokensTraded)
	fmt.Fprintf(&b, "  Total transactions:  %d\n", m.TotalTransactionCount)
	fmt.Fprintf(&b, "  NFT marketplace use: %t\n", m.NFTMarketplaceInteraction)

	fmt.Fprintf(&b, "\nCriteria\n")
	currentPersona := ""
	for _, crit := range result.Persona.Criteria {
		if crit.Persona != currentPersona {
			currentPersona = crit.Persona
			fmt.Fprintf(&b, "  [%s]\n", currentPersona)
		}
		mark := "fail"
		if crit.Passed {
			mark = "pass"
		}
		fmt.Fprintf(&b, "    %-28s %s  %s\n", crit.Name, mark, crit.Detail)
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintf(&b, "\nWarnings\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
	}

	fmt.Fprintf(&b, "%s\n", line)
	return b.String()
}
