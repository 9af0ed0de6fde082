package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/persona-scanner/internal/adapter"
	"github.com/persona-scanner/internal/api"
	"github.com/persona-scanner/internal/config"
	"github.com/persona-scanner/internal/logging"
	"github.com/persona-scanner/internal/retry"
	"github.com/persona-scanner/internal/service"
	"github.com/persona-scanner/internal/storage"
	"github.com/persona-scanner/internal/types"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	chain := types.ChainID(cfg.Chain.ID)
	analyzer := buildAnalyzer(cfg, chain)

	server := api.NewServer(analyzer, chain, cfg.Server)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Shutdown error: %v", err)
	}
	logger.Info("Server stopped")
}

// buildAnalyzer wires the data-source clients and services from config
func buildAnalyzer(cfg *config.Config, chain types.ChainID) *service.WalletAnalyzer {
	retryCfg := retry.DefaultRetryConfig()
	retryCfg.MaxAttempts = cfg.Analysis.RetryAttempts

	etherscan := adapter.NewEtherscanClient(adapter.EtherscanClientOptions{
		APIKey:            cfg.Etherscan.APIKey,
		BaseURL:           cfg.Etherscan.BaseURL,
		Chain:             chain,
		RequestsPerSecond: cfg.Etherscan.RequestsPerSecond,
		HTTPTimeout:       cfg.Analysis.HTTPTimeout,
		RetryConfig:       retryCfg,
	})
	zerion := adapter.NewZerionClient(adapter.ZerionClientOptions{
		APIKey:      cfg.Zerion.APIKey,
		BaseURL:     cfg.Zerion.BaseURL,
		Chain:       chain,
		RetryConfig: retryCfg,
	})
	llama := adapter.NewLlamaClient(adapter.LlamaClientOptions{
		Chain:       chain,
		HTTPTimeout: cfg.Analysis.HTTPTimeout,
	})

	var prices service.PriceSource = llama
	if cfg.Cache.Enabled {
		cache, err := storage.NewRedisCache(cfg.Cache)
		if err != nil {
			logging.WithError(err).Warn("Price cache unavailable, using direct price lookups")
		} else {
			prices = storage.NewCachedPriceSource(cache, llama, chain, cfg.Cache.PriceTTL)
		}
	}

	builder := service.NewPortfolioBuilder(etherscan, zerion, prices, chain)
	activity := service.NewActivityAnalyzer(etherscan)
	classifier := service.NewPersonaClassifier()

	return service.NewWalletAnalyzer(builder, activity, classifier, chain, cfg.Analysis.Deadline)
}
