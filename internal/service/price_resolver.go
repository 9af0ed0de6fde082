package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/persona-scanner/internal/logging"
)

// ethResolverKey is the resolver cache key for the native asset
const ethResolverKey = "ETH"

// priceEntry is one resolved lookup. Negative results are cached too so a
// token the source does not know is asked about at most once per analysis.
type priceEntry struct {
	price decimal.Decimal
	known bool
}

// priceResolver deduplicates price lookups within a single analysis call.
// It is not safe for concurrent use and is created fresh per analysis, so
// stale prices never leak between calls.
type priceResolver struct {
	source PriceSource
	cache  map[string]priceEntry
}

// newPriceResolver creates a resolver over the given source. A nil source
// resolves nothing, which the fallback path treats as price-unknown.
func newPriceResolver(source PriceSource) *priceResolver {
	return &priceResolver{
		source: source,
		cache:  make(map[string]priceEntry),
	}
}

// prime seeds a price that came from the rich source. Primed prices are
// authoritative and never overwritten by later lookups.
func (r *priceResolver) prime(tokenAddress string, price decimal.Decimal) {
	key := strings.ToLower(tokenAddress)
	if key == "" {
		key = ethResolverKey
	}
	r.cache[key] = priceEntry{price: price, known: true}
}

// prefetch resolves a batch of token addresses in one upstream call,
// skipping any already cached
func (r *priceResolver) prefetch(ctx context.Context, tokenAddresses []string) {
	if r.source == nil {
		return
	}

	var misses []string
	for _, addr := range tokenAddresses {
		addr = strings.ToLower(addr)
		if _, ok := r.cache[addr]; !ok {
			misses = append(misses, addr)
		}
	}
	if len(misses) == 0 {
		return
	}

	prices, err := r.source.GetTokenPrices(ctx, misses)
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Batch price lookup failed, holdings stay unpriced")
		prices = map[string]decimal.Decimal{}
	}

	for _, addr := range misses {
		if price, ok := prices[addr]; ok {
			r.cache[addr] = priceEntry{price: price, known: true}
		} else {
			r.cache[addr] = priceEntry{}
		}
	}
}

// resolve returns the USD price for a token contract, with known=false
// when no source can price it
func (r *priceResolver) resolve(ctx context.Context, tokenAddress string) (decimal.Decimal, bool) {
	key := strings.ToLower(tokenAddress)
	if entry, ok := r.cache[key]; ok {
		return entry.price, entry.known
	}

	r.prefetch(ctx, []string{key})

	if entry, ok := r.cache[key]; ok {
		return entry.price, entry.known
	}
	r.cache[key] = priceEntry{}
	return decimal.Zero, false
}

// resolveETH returns the native ETH spot price
func (r *priceResolver) resolveETH(ctx context.Context) (decimal.Decimal, bool) {
	if entry, ok := r.cache[ethResolverKey]; ok {
		return entry.price, entry.known
	}

	if r.source == nil {
		r.cache[ethResolverKey] = priceEntry{}
		return decimal.Zero, false
	}

	price, err := r.source.GetETHPrice(ctx)
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("ETH price lookup failed")
		r.cache[ethResolverKey] = priceEntry{}
		return decimal.Zero, false
	}

	r.cache[ethResolverKey] = priceEntry{price: price, known: true}
	return price, true
}
