package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/persona-scanner/internal/circuitbreaker"
	"github.com/persona-scanner/internal/errors"
	"github.com/persona-scanner/internal/logging"
	"github.com/persona-scanner/internal/retry"
	"github.com/persona-scanner/internal/types"
)

// EtherscanClient fetches balances and complete transfer history from the
// Etherscan v2 API. It is the fallback data source: always consulted for
// transaction history, and the only source for holdings when the rich
// source is down.
type EtherscanClient struct {
	apiKey      string
	baseURL     string
	chain       types.ChainID
	client      *http.Client
	limiter     *rate.Limiter // free tier allows 3 req/sec across all chains
	breaker     *circuitbreaker.CircuitBreaker
	retryConfig *retry.RetryConfig
}

// EtherscanClientOptions configures an EtherscanClient
type EtherscanClientOptions struct {
	APIKey            string
	BaseURL           string
	Chain             types.ChainID
	RequestsPerSecond float64
	HTTPTimeout       time.Duration
	RetryConfig       *retry.RetryConfig
}

// NewEtherscanClient creates a new Etherscan v2 API client
func NewEtherscanClient(opts EtherscanClientOptions) *EtherscanClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.etherscan.io/v2/api"
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 3.0
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 30 * time.Second
	}
	if opts.RetryConfig == nil {
		opts.RetryConfig = retry.DefaultRetryConfig()
	}

	return &EtherscanClient{
		apiKey:      opts.APIKey,
		baseURL:     opts.BaseURL,
		chain:       opts.Chain,
		client:      &http.Client{Timeout: opts.HTTPTimeout},
		limiter:     rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		breaker:     circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("etherscan")),
		retryConfig: opts.RetryConfig,
	}
}

// etherscanEnvelope is the outer response shape shared by all actions.
// Result stays raw because the API returns an array on success and a
// bare string on errors and empty results.
type etherscanEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// etherscanTransaction represents a normal or internal transaction record
type etherscanTransaction struct {
	Hash      string `json:"hash"`
	TimeStamp string `json:"timeStamp"`
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
	IsError   string `json:"isError"`
}

// etherscanTokenTransfer represents an ERC20 transfer record
type etherscanTokenTransfer struct {
	Hash            string `json:"hash"`
	TimeStamp       string `json:"timeStamp"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	ContractAddress string `json:"contractAddress"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenDecimal    string `json:"tokenDecimal"`
}

// etherscanNFTTransfer represents an ERC721 transfer record
type etherscanNFTTransfer struct {
	Hash            string `json:"hash"`
	TimeStamp       string `json:"timeStamp"`
	From            string `json:"from"`
	To              string `json:"to"`
	ContractAddress string `json:"contractAddress"`
	TokenID         string `json:"tokenID"`
	TokenName       string `json:"tokenName"`
}

// GetETHBalance fetches the wallet's native ETH balance in ETH units
func (c *EtherscanClient) GetETHBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s?chainid=%d&module=account&action=balance&address=%s&tag=latest&apikey=%s",
		c.baseURL, c.chain.NumericChainID(), address, c.apiKey)

	env, err := c.fetch(ctx, url, "balance")
	if err != nil {
		return decimal.Zero, err
	}

	// The balance action returns the wei amount as a quoted string
	var weiStr string
	if err := json.Unmarshal(env.Result, &weiStr); err != nil {
		return decimal.Zero, errors.NewPartialDataError("etherscan", "balance", err)
	}

	wei, err := decimal.NewFromString(weiStr)
	if err != nil {
		return decimal.Zero, errors.NewPartialDataError("etherscan", "balance",
			fmt.Errorf("unparseable balance %q: %w", weiStr, err))
	}

	return wei.Shift(-18), nil
}

// GetNormalTransactions fetches all normal (external) transactions for an address
func (c *EtherscanClient) GetNormalTransactions(ctx context.Context, address string) ([]types.NormalTransaction, error) {
	return c.fetchTransactionList(ctx, address, "txlist", false)
}

// GetInternalTransactions fetches all internal transactions for an address
func (c *EtherscanClient) GetInternalTransactions(ctx context.Context, address string) ([]types.NormalTransaction, error) {
	return c.fetchTransactionList(ctx, address, "txlistinternal", true)
}

// fetchTransactionList fetches normal or internal transactions, oldest first
func (c *EtherscanClient) fetchTransactionList(ctx context.Context, address, action string, isInternal bool) ([]types.NormalTransaction, error) {
	url := fmt.Sprintf("%s?chainid=%d&module=account&action=%s&address=%s&sort=asc&apikey=%s",
		c.baseURL, c.chain.NumericChainID(), action, address, c.apiKey)

	env, err := c.fetch(ctx, url, action)
	if err != nil {
		return nil, err
	}
	if env == nil {
		return []types.NormalTransaction{}, nil
	}

	var txList []etherscanTransaction
	if err := json.Unmarshal(env.Result, &txList); err != nil {
		return nil, errors.NewPartialDataError("etherscan", action, err)
	}

	transactions := make([]types.NormalTransaction, 0, len(txList))
	for _, tx := range txList {
		converted, ok := c.convertTransaction(tx, isInternal)
		if !ok {
			continue
		}
		transactions = append(transactions, converted)
	}

	return transactions, nil
}

// GetTokenTransfers fetches all ERC20 transfers touching the address, oldest first
func (c *EtherscanClient) GetTokenTransfers(ctx context.Context, address string) ([]types.TokenTransferRecord, error) {
	url := fmt.Sprintf("%s?chainid=%d&module=account&action=tokentx&address=%s&sort=asc&apikey=%s",
		c.baseURL, c.chain.NumericChainID(), address, c.apiKey)

	env, err := c.fetch(ctx, url, "tokentx")
	if err != nil {
		return nil, err
	}
	if env == nil {
		return []types.TokenTransferRecord{}, nil
	}

	var txList []etherscanTokenTransfer
	if err := json.Unmarshal(env.Result, &txList); err != nil {
		return nil, errors.NewPartialDataError("etherscan", "tokentx", err)
	}

	transfers := make([]types.TokenTransferRecord, 0, len(txList))
	for _, tx := range txList {
		converted, ok := c.convertTokenTransfer(tx)
		if !ok {
			continue
		}
		transfers = append(transfers, converted)
	}

	return transfers, nil
}

// GetNFTTransfers fetches all ERC721 transfers touching the address, oldest first
func (c *EtherscanClient) GetNFTTransfers(ctx context.Context, address string) ([]types.NFTTransferRecord, error) {
	url := fmt.Sprintf("%s?chainid=%d&module=account&action=tokennfttx&address=%s&sort=asc&apikey=%s",
		c.baseURL, c.chain.NumericChainID(), address, c.apiKey)

	env, err := c.fetch(ctx, url, "tokennfttx")
	if err != nil {
		return nil, err
	}
	if env == nil {
		return []types.NFTTransferRecord{}, nil
	}

	var txList []etherscanNFTTransfer
	if err := json.Unmarshal(env.Result, &txList); err != nil {
		return nil, errors.NewPartialDataError("etherscan", "tokennfttx", err)
	}

	transfers := make([]types.NFTTransferRecord, 0, len(txList))
	for _, tx := range txList {
		converted, ok := c.convertNFTTransfer(tx)
		if !ok {
			continue
		}
		transfers = append(transfers, converted)
	}

	return transfers, nil
}

// fetch runs one API call through the rate limiter, circuit breaker and
// retry loop. A nil envelope with nil error means a valid empty result.
func (c *EtherscanClient) fetch(ctx context.Context, url, operation string) (*etherscanEnvelope, error) {
	if c.apiKey == "" {
		return nil, errors.NewProviderError("etherscan", operation,
			fmt.Errorf("API key not configured"))
	}

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"provider":  "etherscan",
		"operation": operation,
	})

	var env *etherscanEnvelope
	var empty bool

	result := retry.WithExponentialBackoff(ctx, c.retryConfig, func(ctx context.Context, attempt int) error {
		return c.breaker.Execute(ctx, func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}

			body, err := c.doRequest(ctx, url)
			if err != nil {
				return err
			}

			var resp etherscanEnvelope
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if resp.Status != "1" {
				if isEmptyResult(&resp) {
					empty = true
					return nil
				}
				// NOTOK covers transient free-tier refusals, worth retrying
				return fmt.Errorf("etherscan API error: %s: %s",
					resp.Message, truncate(string(resp.Result), 100))
			}

			// Some actions return a bare string on success too
			if len(resp.Result) > 0 && resp.Result[0] == '"' && operation != "balance" {
				empty = true
				return nil
			}

			env = &resp
			return nil
		})
	})

	if !result.Success {
		logger.WithError(result.LastError).WithField("attempts", result.Attempts).
			Error("Etherscan request failed")
		return nil, errors.NewProviderError("etherscan", operation, result.LastError)
	}

	if empty {
		return nil, nil
	}
	return env, nil
}

// isEmptyResult recognizes the API's empty-result responses, which come
// back with status "0" rather than an empty array
func isEmptyResult(resp *etherscanEnvelope) bool {
	if resp.Message == "No transactions found" || resp.Message == "No records found" {
		return true
	}
	if resp.Message == "NOTOK" && strings.Contains(string(resp.Result), "No record") {
		return true
	}
	return false
}

// doRequest performs one HTTP request, honoring Retry-After on 429
func (c *EtherscanClient) doRequest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

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
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil {
				select {
				case <-time.After(time.Duration(seconds) * time.Second):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
		}
		return nil, errors.NewProviderRateLimitError("etherscan")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d - %s", resp.StatusCode, truncate(string(body), 200))
	}

	return body, nil
}

// convertTransaction converts an API transaction record. Failed transactions
// and records with unparseable timestamps are dropped.
func (c *EtherscanClient) convertTransaction(tx etherscanTransaction, isInternal bool) (types.NormalTransaction, bool) {
	if tx.IsError == "1" {
		return types.NormalTransaction{}, false
	}

	ts, err := strconv.ParseInt(tx.TimeStamp, 10, 64)
	if err != nil {
		return types.NormalTransaction{}, false
	}

	wei, err := decimal.NewFromString(tx.Value)
	if err != nil {
		wei = decimal.Zero
	}

	return types.NormalTransaction{
		Hash:       tx.Hash,
		Timestamp:  time.Unix(ts, 0).UTC(),
		From:       strings.ToLower(tx.From),
		To:         strings.ToLower(tx.To),
		Value:      wei.Shift(-18),
		IsInternal: isInternal,
	}, true
}

// convertTokenTransfer converts an ERC20 transfer record. The raw amount is
// kept unscaled; decimals travel alongside for the portfolio builder.
func (c *EtherscanClient) convertTokenTransfer(tx etherscanTokenTransfer) (types.TokenTransferRecord, bool) {
	ts, err := strconv.ParseInt(tx.TimeStamp, 10, 64)
	if err != nil {
		return types.TokenTransferRecord{}, false
	}

	amount, err := decimal.NewFromString(tx.Value)
	if err != nil {
		return types.TokenTransferRecord{}, false
	}

	decimals, err := strconv.Atoi(tx.TokenDecimal)
	if err != nil {
		decimals = 0
	}

	return types.TokenTransferRecord{
		Hash:          tx.Hash,
		Timestamp:     time.Unix(ts, 0).UTC(),
		TokenAddress:  strings.ToLower(tx.ContractAddress),
		TokenSymbol:   tx.TokenSymbol,
		TokenDecimals: decimals,
		From:          strings.ToLower(tx.From),
		To:            strings.ToLower(tx.To),
		Amount:        amount,
	}, true
}

// convertNFTTransfer converts an ERC721 transfer record
func (c *EtherscanClient) convertNFTTransfer(tx etherscanNFTTransfer) (types.NFTTransferRecord, bool) {
	ts, err := strconv.ParseInt(tx.TimeStamp, 10, 64)
	if err != nil {
		return types.NFTTransferRecord{}, false
	}

	return types.NFTTransferRecord{
		Hash:              tx.Hash,
		Timestamp:         time.Unix(ts, 0).UTC(),
		CollectionAddress: strings.ToLower(tx.ContractAddress),
		CollectionName:    tx.TokenName,
		TokenID:           tx.TokenID,
		From:              strings.ToLower(tx.From),
		To:                strings.ToLower(tx.To),
	}, true
}

// BreakerState exposes the circuit breaker state for health reporting
func (c *EtherscanClient) BreakerState() circuitbreaker.State {
	return c.breaker.GetState()
}

// truncate caps a string for log and error output
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
