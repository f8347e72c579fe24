package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/alanyoungcy/liqguard/internal/domain"
)

// DefaultSKU is offered whenever the catalog endpoint is unavailable.
var DefaultSKU = domain.SKU{
	Code:        "LIQ-STANDARD",
	Label:       "Standard liquidation cover",
	Description: "Default liquidation protection product",
}

const skuCacheKey = "skus"

// SKUSource fetches the SKU catalog from the backend.
type SKUSource interface {
	ListSKUs(ctx context.Context) ([]domain.SKU, error)
}

// SKUCatalog caches the backend SKU list and falls back to DefaultSKU when
// the backend cannot be reached or returns nothing.
type SKUCatalog struct {
	source SKUSource
	ttl    time.Duration
	cache  *cache.Cache
	logger *slog.Logger
}

// NewSKUCatalog creates a catalog backed by source. Results are cached for
// ttl; a zero ttl disables caching.
func NewSKUCatalog(source SKUSource, ttl time.Duration, logger *slog.Logger) *SKUCatalog {
	return &SKUCatalog{
		source: source,
		ttl:    ttl,
		cache:  cache.New(ttl, 2*ttl+time.Minute),
		logger: logger.With(slog.String("component", "sku_catalog")),
	}
}

// List returns the available SKUs. It never fails: fetch errors degrade to
// the single fallback SKU, which is not cached so the next call retries.
func (c *SKUCatalog) List(ctx context.Context) []domain.SKU {
	if v, ok := c.cache.Get(skuCacheKey); ok {
		return v.([]domain.SKU)
	}
	if c.source == nil {
		return []domain.SKU{DefaultSKU}
	}
	skus, err := c.source.ListSKUs(ctx)
	if err != nil {
		c.logger.Warn("sku catalog unavailable, using fallback",
			slog.String("error", err.Error()),
		)
		return []domain.SKU{DefaultSKU}
	}
	if len(skus) == 0 {
		return []domain.SKU{DefaultSKU}
	}
	if c.ttl > 0 {
		c.cache.Set(skuCacheKey, skus, cache.DefaultExpiration)
	}
	return skus
}

// Invalidate drops the cached list.
func (c *SKUCatalog) Invalidate() {
	c.cache.Delete(skuCacheKey)
}
