package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/persona-scanner/internal/errors"
	"github.com/persona-scanner/internal/logging"
	"github.com/persona-scanner/internal/models"
	"github.com/persona-scanner/internal/types"
)

// WalletAnalyzer orchestrates one full analysis: portfolio reconstruction
// and activity analysis in parallel, then classification over the results.
type WalletAnalyzer struct {
	builder    *PortfolioBuilder
	activity   *ActivityAnalyzer
	classifier *PersonaClassifier
	chain      types.ChainID
	deadline   time.Duration
	nowFn      func() time.Time
}

// NewWalletAnalyzer creates a wallet analyzer with the given wall-clock
// ceiling for a whole analysis
func NewWalletAnalyzer(builder *PortfolioBuilder, activity *ActivityAnalyzer, classifier *PersonaClassifier, chain types.ChainID, deadline time.Duration) *WalletAnalyzer {
	return &WalletAnalyzer{
		builder:    builder,
		activity:   activity,
		classifier: classifier,
		chain:      chain,
		deadline:   deadline,
		nowFn:      time.Now,
	}
}

// WithClock overrides the analyzer's clock, used by tests
func (a *WalletAnalyzer) WithClock(nowFn func() time.Time) *WalletAnalyzer {
	a.nowFn = nowFn
	return a
}

// AnalyzeWallet runs one complete analysis. With at least one usable
// source the result is best-effort with warnings attached; only when
// nothing usable was produced does it fail with DataUnavailable.
func (a *WalletAnalyzer) AnalyzeWallet(ctx context.Context, address string) (*models.AnalysisResult, error) {
	if !common.IsHexAddress(address) {
		return nil, errors.NewInvalidAddressError(address)
	}
	address = strings.ToLower(address)

	now := a.nowFn().UTC()
	logger := logging.FromContext(ctx).WithField("address", address)

	ctx, cancel := context.WithTimeout(ctx, a.deadline)
	defer cancel()

	var (
		snapshot     *models.PortfolioSnapshot
		mode         types.DataSourceMode
		portfolioErr error
		metrics      *models.ActivityMetrics
		activityErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snapshot, mode, portfolioErr = a.builder.Build(gctx, address, now)
		return nil
	})
	g.Go(func() error {
		metrics, activityErr = a.activity.Analyze(gctx, address, now)
		return nil
	})
	_ = g.Wait()

	if portfolioErr != nil && activityErr != nil {
		return nil, errors.NewDataUnavailableError(address, map[string]string{
			"portfolio": portfolioErr.Error(),
			"activity":  activityErr.Error(),
		})
	}

	var warnings []string
	if portfolioErr != nil {
		logger.WithError(portfolioErr).Warn("Portfolio reconstruction failed, classifying on activity alone")
		warnings = append(warnings, fmt.Sprintf("portfolio unavailable: %v", portfolioErr))
		snapshot = models.NewPortfolioSnapshot(address, nil, nil, now)
		mode = types.ModeFallbackOnly
	}
	if activityErr != nil {
		logger.WithError(activityErr).Warn("Activity analysis failed, classifying on portfolio alone")
		warnings = append(warnings, fmt.Sprintf("activity unavailable: %v", activityErr))
		metrics = &models.ActivityMetrics{}
	}

	persona := a.classifier.Classify(snapshot, metrics, mode, now)

	logger.WithFields(map[string]interface{}{
		"persona":     persona.Label,
		"score":       persona.PersonaScore,
		"dataSources": mode,
	}).Info("Wallet analysis complete")

	return &models.AnalysisResult{
		Address:     address,
		Chain:       a.chain,
		Portfolio:   snapshot,
		Activity:    metrics,
		Persona:     persona,
		DataSources: mode,
		Warnings:    warnings,
		AnalyzedAt:  now,
	}, nil
}
