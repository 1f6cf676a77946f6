package rate

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/go-faster/sdk/zctx"
)

// Cache is the byte cache used to memoize resolved quotes.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// QuoteTTL bounds how stale a cached quote may be after a rate change that
// was not followed by an explicit invalidation.
const QuoteTTL = 5 * time.Minute

// CachedResolver wraps a Resolver with a per-customer-and-bracket cache.
// Cache failures degrade to a direct resolve; a broken cache never breaks
// quoting.
type CachedResolver struct {
	inner *Resolver
	cache Cache
}

func NewCachedResolver(inner *Resolver, cache Cache) *CachedResolver {
	return &CachedResolver{inner: inner, cache: cache}
}

func quoteKey(customerID string, bracket decimal.Decimal) string {
	if customerID == "" {
		customerID = "-"
	}
	return "quote:" + customerID + ":" + bracket.String()
}

// Resolve returns the cached price when present, otherwise resolves and
// caches the result.
func (r *CachedResolver) Resolve(ctx context.Context, customerID string, weight decimal.Decimal) (decimal.Decimal, error) {
	bracket, err := BracketFor(weight)
	if err != nil {
		return decimal.Zero, err
	}
	key := quoteKey(customerID, bracket)

	if raw, ok, err := r.cache.Get(ctx, key); err != nil {
		zctx.From(ctx).Warn("Quote cache read failed", zap.Error(err))
	} else if ok {
		price, err := decimal.NewFromString(string(raw))
		if err == nil {
			return price, nil
		}
		zctx.From(ctx).Warn("Dropping malformed cached quote", zap.String("key", key))
	}

	price, err := r.inner.Resolve(ctx, customerID, weight)
	if err != nil {
		return decimal.Zero, err
	}
	if err := r.cache.Set(ctx, key, []byte(price.String()), QuoteTTL); err != nil {
		zctx.From(ctx).Warn("Quote cache write failed", zap.Error(err))
	}
	return price, nil
}

// InvalidateCustomer drops cached quotes for one customer. An empty
// customerID means the default list changed, which can affect any customer
// that falls back to it, so everything goes.
func (r *CachedResolver) InvalidateCustomer(ctx context.Context, customerID string) error {
	pattern := "quote:*"
	if customerID != "" {
		pattern = "quote:" + customerID + ":*"
	}
	if err := r.cache.Invalidate(ctx, pattern); err != nil {
		return errors.Wrap(err, "invalidate quotes")
	}
	return nil
}
