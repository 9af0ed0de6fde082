package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/persona-scanner/internal/adapter"
	"github.com/persona-scanner/internal/config"
	"github.com/persona-scanner/internal/logging"
	"github.com/persona-scanner/internal/retry"
	"github.com/persona-scanner/internal/service"
	"github.com/persona-scanner/internal/storage"
	"github.com/persona-scanner/internal/types"
)

func main() {
	address := flag.String("address", "", "wallet address to analyze")
	jsonOut := flag.Bool("json", false, "emit the raw result as JSON instead of the text report")
	flag.Parse()

	if *address == "" {
		fmt.Fprintln(os.Stderr, "usage: analyze -address 0x... [-json]")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Keep stdout clean for the report; logs go to stderr
	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logging.GetGlobalLogger().SetOutput(os.Stderr)

	chain := types.ChainID(cfg.Chain.ID)
	analyzer := buildAnalyzer(cfg, chain)

	result, err := analyzer.AnalyzeWallet(context.Background(), *address)
	if err != nil {
		fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Print(service.FormatReport(result))
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
