package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/persona-scanner/internal/errors"
	"github.com/persona-scanner/internal/logging"
	"github.com/persona-scanner/internal/retry"
	"github.com/persona-scanner/internal/types"
)

// ethPriceKey is the coin key used for the native ETH spot price
const ethPriceKey = "ethereum:0x0000000000000000000000000000000000000000"

// LlamaClient fetches spot prices from the DeFiLlama coins API. No API key
// is required. Used to price holdings the rich source did not cover.
type LlamaClient struct {
	baseURL     string
	chain       types.ChainID
	client      *http.Client
	retryConfig *retry.RetryConfig
}

// LlamaClientOptions configures a LlamaClient
type LlamaClientOptions struct {
	BaseURL     string
	Chain       types.ChainID
	HTTPTimeout time.Duration
	RetryConfig *retry.RetryConfig
}

// NewLlamaClient creates a new DeFiLlama price client
func NewLlamaClient(opts LlamaClientOptions) *LlamaClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://coins.llama.fi"
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 15 * time.Second
	}
	if opts.RetryConfig == nil {
		opts.RetryConfig = &retry.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		}
	}

	return &LlamaClient{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		chain:       opts.Chain,
		client:      &http.Client{Timeout: opts.HTTPTimeout},
		retryConfig: opts.RetryConfig,
	}
}

// llamaPricesResponse is the shape of /prices/current/{coins}
type llamaPricesResponse struct {
	Coins map[string]struct {
		Price  float64 `json:"price"`
		Symbol string  `json:"symbol"`
	} `json:"coins"`
}

// GetTokenPrices fetches current USD prices for the given token contract
// addresses on the configured chain. Tokens the API does not know are
// simply absent from the returned map, not an error.
func (c *LlamaClient) GetTokenPrices(ctx context.Context, addresses []string) (map[string]decimal.Decimal, error) {
	if len(addresses) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	keys := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		keys = append(keys, fmt.Sprintf("%s:%s", c.chain, strings.ToLower(addr)))
	}

	resp, err := c.fetchPrices(ctx, keys)
	if err != nil {
		return nil, err
	}

	prices := make(map[string]decimal.Decimal, len(resp.Coins))
	for key, coin := range resp.Coins {
		idx := strings.LastIndex(key, ":")
		if idx < 0 {
			continue
		}
		addr := strings.ToLower(key[idx+1:])
		prices[addr] = decimal.NewFromFloat(coin.Price)
	}

	return prices, nil
}

// GetETHPrice fetches the current ETH spot price in USD
func (c *LlamaClient) GetETHPrice(ctx context.Context) (decimal.Decimal, error) {
	resp, err := c.fetchPrices(ctx, []string{ethPriceKey})
	if err != nil {
		return decimal.Zero, err
	}

	coin, ok := resp.Coins[ethPriceKey]
	if !ok {
		return decimal.Zero, errors.NewProviderError("defillama", "eth-price",
			fmt.Errorf("no ETH price in response"))
	}

	return decimal.NewFromFloat(coin.Price), nil
}

// fetchPrices runs one priced-coins lookup with retry
func (c *LlamaClient) fetchPrices(ctx context.Context, keys []string) (*llamaPricesResponse, error) {
	url := fmt.Sprintf("%s/prices/current/%s", c.baseURL, strings.Join(keys, ","))

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"provider": "defillama",
		"coins":    len(keys),
	})

	var parsed llamaPricesResponse

	result := retry.WithExponentialBackoff(ctx, c.retryConfig, func(ctx context.Context, attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to make request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("HTTP error: %d - %s", resp.StatusCode, truncate(string(body), 200))
		}

		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		return nil
	})

	if !result.Success {
		logger.WithError(result.LastError).Warn("Price lookup failed")
		return nil, errors.NewProviderError("defillama", "prices", result.LastError)
	}

	return &parsed, nil
}
