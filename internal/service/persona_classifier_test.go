package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/persona-scanner/internal/models"
	"github.com/persona-scanner/internal/types"
)

func holdingDaysAgo(contract, symbol string, valueUSD int64, days int) models.TokenHolding {
	acquired := testNow.AddDate(0, 0, -days)
	return models.NewTokenHolding(contract, symbol, 18,
		decimal.NewFromInt(1), decimal.NewFromInt(valueUSD), true, &acquired, testNow)
}

func createdIn(year int) *time.Time {
	t := time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestClassifyOG(t *testing.T) {
	snapshot := models.NewPortfolioSnapshot(testWallet, []models.TokenHolding{
		holdingDaysAgo("", "ETH", 3000, 400),
	}, nil, testNow)
	activity := &models.ActivityMetrics{
		WalletCreatedAt:       createdIn(2019),
		ActiveDayCount:        10,
		TotalTransactionCount: 200,
	}

	result := NewPersonaClassifier().Classify(snapshot, activity, types.ModeRich, testNow)

	assert.Equal(t, models.PersonaOG, result.Label)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestClassifyDeFiChad(t *testing.T) {
	snapshot := models.NewPortfolioSnapshot(testWallet, []models.TokenHolding{
		holdingDaysAgo("", "ETH", 500, 120),
		holdingDaysAgo("0xusdc", "USDC", 3000, 100),
	}, nil, testNow)
	activity := &models.ActivityMetrics{
		WalletCreatedAt:       createdIn(2022),
		ActiveDayCount:        150,
		TotalTransactionCount: 300,
	}

	result := NewPersonaClassifier().Classify(snapshot, activity, types.ModeRich, testNow)

	assert.Equal(t, models.PersonaDeFiChad, result.Label)
}

func TestClassifyDegen(t *testing.T) {
	snapshot := models.NewPortfolioSnapshot(testWallet, []models.TokenHolding{
		holdingDaysAgo("0xmeme", "MEME", 800, 30),
		holdingDaysAgo("", "ETH", 200, 30),
	}, nil, testNow)
	activity := &models.ActivityMetrics{
		WalletCreatedAt:       createdIn(2022),
		ActiveDayCount:        200,
		SwapCount:             150,
		TotalTransactionCount: 900,
	}

	result := NewPersonaClassifier().Classify(snapshot, activity, types.ModeRich, testNow)

	assert.Equal(t, models.PersonaDegen, result.Label)
}

func TestClassifyVirginCT(t *testing.T) {
	snapshot := models.NewPortfolioSnapshot(testWallet, []models.TokenHolding{
		holdingDaysAgo("", "ETH", 1000, 20),
	}, nil, testNow)
	activity := &models.ActivityMetrics{
		WalletCreatedAt:       createdIn(2024),
		ActiveDayCount:        40,
		TotalTransactionCount: 10,
	}

	result := NewPersonaClassifier().Classify(snapshot, activity, types.ModeRich, testNow)

	assert.Equal(t, models.PersonaVirginCT, result.Label)
}

func TestClassifyUnclassifiedEmptyWallet(t *testing.T) {
	snapshot := models.NewPortfolioSnapshot(testWallet, nil, nil, testNow)
	activity := &models.ActivityMetrics{}

	result := NewPersonaClassifier().Classify(snapshot, activity, types.ModeFallbackOnly, testNow)

	assert.Equal(t, models.PersonaUnclassified, result.Label)
	assert.Zero(t, result.Confidence)
	// Empty wallets still pass the two "small wallet" metrics
	assert.Equal(t, 2, result.MetricsPassed)
	assert.Equal(t, 21, result.TotalMetrics)
}

// A wallet satisfying both DeFi Chad and Virgin CT lands in DeFi Chad:
// rule-set order is part of the contract.
func TestClassifyPriorityChadOverVirgin(t *testing.T) {
	snapshot := models.NewPortfolioSnapshot(testWallet, []models.TokenHolding{
		holdingDaysAgo("0xusdc", "USDC", 3000, 100),
		holdingDaysAgo("", "ETH", 500, 100),
	}, nil, testNow)
	activity := &models.ActivityMetrics{
		WalletCreatedAt:       createdIn(2024),
		ActiveDayCount:        150,
		TotalTransactionCount: 40,
	}

	result := NewPersonaClassifier().Classify(snapshot, activity, types.ModeRich, testNow)

	require.Equal(t, models.PersonaDeFiChad, result.Label)

	// Virgin CT would also have matched on its own criteria
	virginPassed := 0
	for _, crit := range result.Criteria {
		if crit.Persona == models.PersonaVirginCT && crit.Passed {
			virginPassed++
		}
	}
	assert.Equal(t, 4, virginPassed)
}

func TestClassifyUnknownCreationFailsAgeCriteria(t *testing.T) {
	// OG in every respect except the creation time is unknown
	snapshot := models.NewPortfolioSnapshot(testWallet, []models.TokenHolding{
		holdingDaysAgo("", "ETH", 3000, 400),
	}, nil, testNow)
	activity := &models.ActivityMetrics{TotalTransactionCount: 200}

	result := NewPersonaClassifier().Classify(snapshot, activity, types.ModeRich, testNow)

	assert.NotEqual(t, models.PersonaOG, result.Label)
}

func TestClassifyReportsAllCriteria(t *testing.T) {
	snapshot := models.NewPortfolioSnapshot(testWallet, nil, nil, testNow)
	result := NewPersonaClassifier().Classify(snapshot, &models.ActivityMetrics{}, types.ModeRich, testNow)

	// 5 OG + 4 Chad + 5 Degen + 4 Virgin
	assert.Len(t, result.Criteria, 18)
	assert.Len(t, result.Metrics, 21)
	for _, crit := range result.Criteria {
		assert.NotEmpty(t, crit.Name)
		assert.NotEmpty(t, crit.Persona)
	}
}
