package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/persona-scanner/internal/models"
)

// Classification thresholds. These numbers are the contract: changing one
// changes which wallets land in which bucket.
var (
	concentration50 = decimal.NewFromFloat(0.50)
	concentration60 = decimal.NewFromFloat(0.60)
	concentration70 = decimal.NewFromFloat(0.70)
	usd2000         = decimal.NewFromInt(2000)
	usd5000         = decimal.NewFromInt(5000)
)

const (
	ogCreatedBeforeYear    = 2020
	virginCreatedAfterYear = 2023
	longestHoldingOGDays   = 365
	longestHoldingMidDays  = 90
	avgHoldingShortDays    = 90
	activeDaysChad         = 120
	activeDaysDegen        = 180
	activeDaysVirgin       = 30
	swapCountDegen         = 100
	totalTxsVirgin         = 50
)

// classifierInput bundles everything a criterion can look at
type classifierInput struct {
	snapshot *models.PortfolioSnapshot
	activity *models.ActivityMetrics
	now      time.Time
}

// criterion is one named predicate over a classifier input
type criterion struct {
	name string
	eval func(in *classifierInput) (bool, string)
}

// personaRuleSet is a conjunction of criteria for one persona label
type personaRuleSet struct {
	label    string
	criteria []criterion
}

// personaRuleSets holds the four rule sets in classification priority
// order. The first set whose criteria all pass wins.
var personaRuleSets = []personaRuleSet{
	{
		label: models.PersonaOG,
		criteria: []criterion{
			concentrationAbove(concentration60),
			longestHoldingAbove(longestHoldingOGDays),
			topAssetBelow(usd5000),
			createdBefore(ogCreatedBeforeYear),
			holdsETH(),
		},
	},
	{
		label: models.PersonaDeFiChad,
		criteria: []criterion{
			longestHoldingAbove(longestHoldingMidDays),
			concentrationAbove(concentration50),
			activeDaysAbove(activeDaysChad),
			topAssetBetween(usd2000, usd5000),
		},
	},
	{
		label: models.PersonaDegen,
		criteria: []criterion{
			activeDaysAbove(activeDaysDegen),
			swapsAbove(swapCountDegen),
			longestHoldingBelow(longestHoldingMidDays),
			concentrationAbove(concentration70),
			topAssetTokenNotETH(),
		},
	},
	{
		label: models.PersonaVirginCT,
		criteria: []criterion{
			createdAfter(virginCreatedAfterYear),
			activeDaysAbove(activeDaysVirgin),
			portfolioBelow(usd5000),
			totalTxsBelow(totalTxsVirgin),
		},
	},
}

// behavioralMetrics are the independent pass/fail checks behind the 0-100
// persona score. They overlap with the rule sets on purpose: the score
// measures how much recognizable behavior a wallet shows overall.
var behavioralMetrics = []criterion{
	concentrationAbove(concentration60),
	concentrationAbove(concentration50),
	concentrationAbove(concentration70),
	longestHoldingAbove(longestHoldingOGDays),
	longestHoldingAbove(longestHoldingMidDays),
	avgHoldingBelow(avgHoldingShortDays),
	topAssetBelow(usd5000),
	topAssetBetween(usd2000, usd5000),
	portfolioBelow(usd5000),
	createdBefore(ogCreatedBeforeYear),
	createdAfter(virginCreatedAfterYear),
	holdsETH(),
	topAssetTokenNotETH(),
	topAssetIsNFT(),
	activeDaysAbove(activeDaysChad),
	activeDaysAbove(activeDaysDegen),
	activeDaysAbove(activeDaysVirgin),
	swapsAbove(swapCountDegen),
	marketplaceInteraction(),
	totalTxsBelow(totalTxsVirgin),
	holdsNFTs(),
}

func concentrationAbove(threshold decimal.Decimal) criterion {
	return criterion{
		name: fmt.Sprintf("concentration_above_%s", threshold.StringFixed(2)),
		eval: func(in *classifierInput) (bool, string) {
			ratio := in.snapshot.TokenConcentrationRatio
			return ratio.GreaterThan(threshold),
				fmt.Sprintf("concentration %s vs %s", ratio.StringFixed(2), threshold.StringFixed(2))
		},
	}
}

func longestHoldingAbove(days int) criterion {
	return criterion{
		name: fmt.Sprintf("longest_holding_above_%dd", days),
		eval: func(in *classifierInput) (bool, string) {
			longest := in.snapshot.LongestHoldingDays
			return longest > days, fmt.Sprintf("longest holding %dd vs %dd", longest, days)
		},
	}
}

func longestHoldingBelow(days int) criterion {
	return criterion{
		name: fmt.Sprintf("longest_holding_below_%dd", days),
		eval: func(in *classifierInput) (bool, string) {
			longest := in.snapshot.LongestHoldingDays
			return longest < days, fmt.Sprintf("longest holding %dd vs %dd", longest, days)
		},
	}
}

func avgHoldingBelow(days int) criterion {
	return criterion{
		name: fmt.Sprintf("avg_holding_below_%dd", days),
		eval: func(in *classifierInput) (bool, string) {
			avg := in.snapshot.AverageHoldingDays()
			return len(in.snapshot.TokenHoldings) > 0 && avg < float64(days),
				fmt.Sprintf("average holding %.0fd vs %dd", avg, days)
		},
	}
}

func topAssetBelow(limit decimal.Decimal) criterion {
	return criterion{
		name: fmt.Sprintf("top_asset_below_%s", limit.StringFixed(0)),
		eval: func(in *classifierInput) (bool, string) {
			v := in.snapshot.TopAsset.ValueUSD
			return v.IsPositive() && v.LessThan(limit),
				fmt.Sprintf("top asset $%s vs $%s", v.StringFixed(2), limit.StringFixed(0))
		},
	}
}

func topAssetBetween(low, high decimal.Decimal) criterion {
	return criterion{
		name: fmt.Sprintf("top_asset_between_%s_%s", low.StringFixed(0), high.StringFixed(0)),
		eval: func(in *classifierInput) (bool, string) {
			v := in.snapshot.TopAsset.ValueUSD
			return v.GreaterThan(low) && v.LessThan(high),
				fmt.Sprintf("top asset $%s vs ($%s, $%s)", v.StringFixed(2), low.StringFixed(0), high.StringFixed(0))
		},
	}
}

func portfolioBelow(limit decimal.Decimal) criterion {
	return criterion{
		name: fmt.Sprintf("portfolio_below_%s", limit.StringFixed(0)),
		eval: func(in *classifierInput) (bool, string) {
			v := in.snapshot.TotalValueUSD
			return v.LessThan(limit),
				fmt.Sprintf("portfolio $%s vs $%s", v.StringFixed(2), limit.StringFixed(0))
		},
	}
}

// createdBefore fails, not errors, when the wallet creation time is
// unknown. Missing history must never invent wallet age.
func createdBefore(year int) criterion {
	return criterion{
		name: fmt.Sprintf("wallet_created_before_%d", year),
		eval: func(in *classifierInput) (bool, string) {
			if in.activity.WalletCreatedAt == nil {
				return false, "wallet creation time unknown"
			}
			return in.activity.CreatedBeforeYear(year),
				fmt.Sprintf("created %d vs before %d", in.activity.WalletCreatedAt.UTC().Year(), year)
		},
	}
}

func createdAfter(year int) criterion {
	return criterion{
		name: fmt.Sprintf("wallet_created_after_%d", year),
		eval: func(in *classifierInput) (bool, string) {
			if in.activity.WalletCreatedAt == nil {
				return false, "wallet creation time unknown"
			}
			return in.activity.CreatedAfterYear(year),
				fmt.Sprintf("created %d vs after %d", in.activity.WalletCreatedAt.UTC().Year(), year)
		},
	}
}

func holdsETH() criterion {
	return criterion{
		name: "holds_eth",
		eval: func(in *classifierInput) (bool, string) {
			return in.snapshot.HasETH(),
				fmt.Sprintf("ETH balance %s", in.snapshot.ETHBalance().String())
		},
	}
}

func topAssetTokenNotETH() criterion {
	return criterion{
		name: "top_asset_token_not_eth",
		eval: func(in *classifierInput) (bool, string) {
			return in.snapshot.IsTopAssetTokenNotETH(),
				fmt.Sprintf("top asset %q", in.snapshot.TopAsset.Symbol)
		},
	}
}

func topAssetIsNFT() criterion {
	return criterion{
		name: "top_asset_is_nft",
		eval: func(in *classifierInput) (bool, string) {
			return in.snapshot.IsTopAssetNFT(),
				fmt.Sprintf("top asset %q", in.snapshot.TopAsset.Symbol)
		},
	}
}

func activeDaysAbove(days int) criterion {
	return criterion{
		name: fmt.Sprintf("active_days_above_%d", days),
		eval: func(in *classifierInput) (bool, string) {
			active := in.activity.ActiveDayCount
			return active > days, fmt.Sprintf("active days %d vs %d", active, days)
		},
	}
}

func swapsAbove(count int) criterion {
	return criterion{
		name: fmt.Sprintf("swaps_above_%d", count),
		eval: func(in *classifierInput) (bool, string) {
			swaps := in.activity.SwapCount
			return swaps > count, fmt.Sprintf("swaps %d vs %d", swaps, count)
		},
	}
}

func marketplaceInteraction() criterion {
	return criterion{
		name: "nft_marketplace_interaction",
		eval: func(in *classifierInput) (bool, string) {
			if in.activity.NFTMarketplaceInteraction {
				return true, "marketplace contract in transaction history"
			}
			return false, "no marketplace contracts in transaction history"
		},
	}
}

func totalTxsBelow(count int) criterion {
	return criterion{
		name: fmt.Sprintf("total_txs_below_%d", count),
		eval: func(in *classifierInput) (bool, string) {
			total := in.activity.TotalTransactionCount
			return total < count, fmt.Sprintf("transactions %d vs %d", total, count)
		},
	}
}

func holdsNFTs() criterion {
	return criterion{
		name: "holds_nft",
		eval: func(in *classifierInput) (bool, string) {
			count := in.snapshot.NFTCount()
			return count > 0, fmt.Sprintf("%d NFTs held", count)
		},
	}
}
