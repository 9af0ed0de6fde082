package adapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/persona-scanner/internal/circuitbreaker"
	"github.com/persona-scanner/internal/errors"
	"github.com/persona-scanner/internal/logging"
	"github.com/persona-scanner/internal/retry"
	"github.com/persona-scanner/internal/types"
)

// ZerionClient fetches curated portfolio data from the Zerion API. It is
// the rich data source: priced token positions and NFT collection floors.
// Portfolio endpoints can take a while on cold wallets, so the HTTP
// timeout here is deliberately generous.
type ZerionClient struct {
	authHeader  string
	baseURL     string
	chain       types.ChainID
	client      *http.Client
	breaker     *circuitbreaker.CircuitBreaker
	retryConfig *retry.RetryConfig
}

// ZerionClientOptions configures a ZerionClient
type ZerionClientOptions struct {
	APIKey      string
	BaseURL     string
	Chain       types.ChainID
	HTTPTimeout time.Duration
	RetryConfig *retry.RetryConfig
}

// NewZerionClient creates a new Zerion API client
func NewZerionClient(opts ZerionClientOptions) *ZerionClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.zerion.io/v1"
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 120 * time.Second
	}
	if opts.RetryConfig == nil {
		opts.RetryConfig = retry.DefaultRetryConfig()
	}

	authHeader := ""
	if opts.APIKey != "" {
		authHeader = "Basic " + base64.StdEncoding.EncodeToString([]byte(opts.APIKey+":"))
	}

	return &ZerionClient{
		authHeader:  authHeader,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		chain:       opts.Chain,
		client:      &http.Client{Timeout: opts.HTTPTimeout},
		breaker:     circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("zerion")),
		retryConfig: opts.RetryConfig,
	}
}

// zerionImplementation describes one on-chain deployment of a fungible asset
type zerionImplementation struct {
	ChainID  string `json:"chain_id"`
	Address  string `json:"address"` // empty for native assets
	Decimals int    `json:"decimals"`
}

// zerionPositionsResponse is the shape of /wallets/{addr}/positions
type zerionPositionsResponse struct {
	Data []struct {
		Attributes struct {
			FungibleInfo struct {
				Symbol          string                 `json:"symbol"`
				Name            string                 `json:"name"`
				Implementations []zerionImplementation `json:"implementations"`
			} `json:"fungible_info"`
			Quantity struct {
				Float   float64 `json:"float"`
				Numeric string  `json:"numeric"`
			} `json:"quantity"`
			Value *float64 `json:"value"`
			Price *float64 `json:"price"`
		} `json:"attributes"`
	} `json:"data"`
}

// zerionNFTCollectionsResponse is the shape of /wallets/{addr}/nft-collections
type zerionNFTCollectionsResponse struct {
	Data []struct {
		Attributes struct {
			CollectionInfo struct {
				Name string `json:"name"`
			} `json:"collection_info"`
			NFTsCount       json.Number `json:"nfts_count"`
			TotalFloorPrice *float64    `json:"total_floor_price"`
		} `json:"attributes"`
		Relationships struct {
			NFTCollection struct {
				Data struct {
					ID string `json:"id"` // "chain:address"
				} `json:"data"`
			} `json:"nft_collection"`
		} `json:"relationships"`
	} `json:"data"`
}

// GetPositions fetches the wallet's priced fungible positions on the
// configured chain. Quantities use the numeric string when present so
// large balances survive the trip without float truncation.
func (c *ZerionClient) GetPositions(ctx context.Context, address string) ([]types.Position, error) {
	url := fmt.Sprintf("%s/wallets/%s/positions/?currency=usd&filter[chain_ids]=%s&filter[trash]=only_non_trash&page[size]=100",
		c.baseURL, address, c.chain)

	body, err := c.fetch(ctx, url, "positions")
	if err != nil {
		return nil, err
	}

	var resp zerionPositionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.NewPartialDataError("zerion", "positions", err)
	}

	positions := make([]types.Position, 0, len(resp.Data))
	for _, item := range resp.Data {
		attrs := item.Attributes

		balance := decimal.NewFromFloat(attrs.Quantity.Float)
		if attrs.Quantity.Numeric != "" {
			if parsed, err := decimal.NewFromString(attrs.Quantity.Numeric); err == nil {
				balance = parsed
			}
		}

		pos := types.Position{
			Symbol:  attrs.FungibleInfo.Symbol,
			Balance: balance,
		}

		for _, impl := range attrs.FungibleInfo.Implementations {
			if impl.ChainID == string(c.chain) {
				pos.TokenAddress = strings.ToLower(impl.Address)
				pos.Decimals = impl.Decimals
				break
			}
		}

		if attrs.Price != nil {
			pos.UnitPrice = decimal.NewFromFloat(*attrs.Price)
			pos.PriceKnown = true
		}
		if attrs.Value != nil {
			pos.ValueUSD = decimal.NewFromFloat(*attrs.Value)
		} else if pos.PriceKnown {
			pos.ValueUSD = pos.Balance.Mul(pos.UnitPrice)
		}

		positions = append(positions, pos)
	}

	return positions, nil
}

// GetNFTCollections fetches the wallet's NFT collections with floor data
func (c *ZerionClient) GetNFTCollections(ctx context.Context, address string) ([]types.NFTCollectionInfo, error) {
	url := fmt.Sprintf("%s/wallets/%s/nft-collections/?currency=usd&filter[chain_ids]=%s",
		c.baseURL, address, c.chain)

	body, err := c.fetch(ctx, url, "nft-collections")
	if err != nil {
		return nil, err
	}

	var resp zerionNFTCollectionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.NewPartialDataError("zerion", "nft-collections", err)
	}

	collections := make([]types.NFTCollectionInfo, 0, len(resp.Data))
	for _, item := range resp.Data {
		info := types.NFTCollectionInfo{
			Name:          item.Attributes.CollectionInfo.Name,
			TotalFloorUSD: decimal.Zero,
		}

		// Collection ids come as "chain:address"
		if id := item.Relationships.NFTCollection.Data.ID; id != "" {
			if idx := strings.LastIndex(id, ":"); idx >= 0 {
				info.CollectionAddress = strings.ToLower(id[idx+1:])
			}
		}

		if count, err := item.Attributes.NFTsCount.Int64(); err == nil {
			info.NFTCount = int(count)
		}
		if item.Attributes.TotalFloorPrice != nil {
			info.TotalFloorUSD = decimal.NewFromFloat(*item.Attributes.TotalFloorPrice)
		}

		collections = append(collections, info)
	}

	return collections, nil
}

// fetch runs one API call through the circuit breaker and retry loop
func (c *ZerionClient) fetch(ctx context.Context, url, operation string) ([]byte, error) {
	if c.authHeader == "" {
		return nil, errors.NewProviderError("zerion", operation,
			fmt.Errorf("API key not configured"))
	}

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"provider":  "zerion",
		"operation": operation,
	})

	var body []byte

	result := retry.WithExponentialBackoff(ctx, c.retryConfig, func(ctx context.Context, attempt int) error {
		return c.breaker.Execute(ctx, func() error {
			var err error
			body, err = c.doRequest(ctx, url)
			return err
		})
	})

	if !result.Success {
		logger.WithError(result.LastError).WithField("attempts", result.Attempts).
			Error("Zerion request failed")
		return nil, errors.NewProviderError("zerion", operation, result.LastError)
	}

	return body, nil
}

// doRequest performs one authenticated HTTP request
func (c *ZerionClient) doRequest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.NewProviderRateLimitError("zerion")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d - %s", resp.StatusCode, truncate(string(body), 200))
	}

	return body, nil
}

// BreakerState exposes the circuit breaker state for health reporting
func (c *ZerionClient) BreakerState() circuitbreaker.State {
	return c.breaker.GetState()
}
