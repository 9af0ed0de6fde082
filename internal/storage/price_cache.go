package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/persona-scanner/internal/logging"
	"github.com/persona-scanner/internal/types"
)

// PriceSource is the upstream price lookup the cache wraps
type PriceSource interface {
	GetTokenPrices(ctx context.Context, addresses []string) (map[string]decimal.Decimal, error)
	GetETHPrice(ctx context.Context) (decimal.Decimal, error)
}

// CachedPriceSource is a read-through cache over a PriceSource. Cache
// failures degrade to the upstream source, never to an error: prices are
// an enrichment, not a dependency.
type CachedPriceSource struct {
	cache    *RedisCache
	upstream PriceSource
	chain    types.ChainID
	ttl      time.Duration
}

// NewCachedPriceSource wraps a price source with a Redis read-through cache
func NewCachedPriceSource(cache *RedisCache, upstream PriceSource, chain types.ChainID, ttl time.Duration) *CachedPriceSource {
	return &CachedPriceSource{
		cache:    cache,
		upstream: upstream,
		chain:    chain,
		ttl:      ttl,
	}
}

// priceKey builds the cache key for one token address
func (s *CachedPriceSource) priceKey(address string) string {
	return fmt.Sprintf("price:%s:%s", s.chain, strings.ToLower(address))
}

// GetTokenPrices returns cached prices where available and fetches the
// rest from the upstream source in one batch
func (s *CachedPriceSource) GetTokenPrices(ctx context.Context, addresses []string) (map[string]decimal.Decimal, error) {
	logger := logging.FromContext(ctx)
	prices := make(map[string]decimal.Decimal, len(addresses))
	var misses []string

	for _, addr := range addresses {
		addr = strings.ToLower(addr)
		cached, err := s.cache.Get(ctx, s.priceKey(addr))
		if err != nil {
			if err != redis.Nil {
				logger.WithError(err).Warn("Price cache read failed, falling through")
			}
			misses = append(misses, addr)
			continue
		}
		price, err := decimal.NewFromString(cached)
		if err != nil {
			misses = append(misses, addr)
			continue
		}
		prices[addr] = price
	}

	if len(misses) == 0 {
		return prices, nil
	}

	fetched, err := s.upstream.GetTokenPrices(ctx, misses)
	if err != nil {
		return nil, err
	}

	for addr, price := range fetched {
		prices[addr] = price
		if err := s.cache.Set(ctx, s.priceKey(addr), price.String(), s.ttl); err != nil {
			logger.WithError(err).Warn("Price cache write failed")
		}
	}

	return prices, nil
}

// GetETHPrice returns the cached ETH spot price or fetches it upstream
func (s *CachedPriceSource) GetETHPrice(ctx context.Context) (decimal.Decimal, error) {
	logger := logging.FromContext(ctx)
	key := fmt.Sprintf("price:%s:eth", s.chain)

	cached, err := s.cache.Get(ctx, key)
	if err == nil {
		if price, perr := decimal.NewFromString(cached); perr == nil {
			return price, nil
		}
	} else if err != redis.Nil {
		logger.WithError(err).Warn("Price cache read failed, falling through")
	}

	price, err := s.upstream.GetETHPrice(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	if err := s.cache.Set(ctx, key, price.String(), s.ttl); err != nil {
		logger.WithError(err).Warn("Price cache write failed")
	}

	return price, nil
}
