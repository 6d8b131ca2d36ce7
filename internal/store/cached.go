// Package store selects a persistence backend and puts a lookup cache in
// front of its catalog.
package store

import (
	"context"
	"time"

	"github.com/JonMunkholm/bomimport/internal/core"
	"github.com/JonMunkholm/bomimport/internal/metrics"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedCatalog caches the per-row lookups of a tree import: stock units and
// valuation rates. Existence checks are not cached, since an item import
// can create items between two tree imports. Entries expire after ttl so
// rate changes made outside imports are picked up.
type CachedCatalog struct {
	core.Catalog
	uoms  *expirable.LRU[string, string]
	rates *expirable.LRU[string, float64]
}

// NewCachedCatalog wraps c. A size <= 0 disables caching.
func NewCachedCatalog(c core.Catalog, size int, ttl time.Duration) *CachedCatalog {
	cc := &CachedCatalog{Catalog: c}
	if size <= 0 {
		return cc
	}
	cc.uoms = expirable.NewLRU[string, string](size, nil, ttl)
	cc.rates = expirable.NewLRU[string, float64](size, nil, ttl)
	return cc
}

// DefaultUOM caches only non-empty units, so an item created later is seen.
func (c *CachedCatalog) DefaultUOM(ctx context.Context, code string) (string, error) {
	if c.uoms == nil {
		return c.Catalog.DefaultUOM(ctx, code)
	}
	if uom, ok := c.uoms.Get(code); ok {
		metrics.RecordCache("default_uom", true)
		return uom, nil
	}
	metrics.RecordCache("default_uom", false)

	uom, err := c.Catalog.DefaultUOM(ctx, code)
	if err != nil {
		return "", err
	}
	if uom != "" {
		c.uoms.Add(code, uom)
	}
	return uom, nil
}

func (c *CachedCatalog) ValuationRate(ctx context.Context, code string) (float64, error) {
	if c.rates == nil {
		return c.Catalog.ValuationRate(ctx, code)
	}
	if rate, ok := c.rates.Get(code); ok {
		metrics.RecordCache("valuation_rate", true)
		return rate, nil
	}
	metrics.RecordCache("valuation_rate", false)

	rate, err := c.Catalog.ValuationRate(ctx, code)
	if err != nil {
		return 0, err
	}
	c.rates.Add(code, rate)
	return rate, nil
}

// CreateItem drops any cached entries for the new item.
func (c *CachedCatalog) CreateItem(ctx context.Context, item core.Item) error {
	if err := c.Catalog.CreateItem(ctx, item); err != nil {
		return err
	}
	c.Purge(item.Code)
	return nil
}

// Purge forgets cached lookups for codes, or everything when none are given.
func (c *CachedCatalog) Purge(codes ...string) {
	if c.uoms == nil {
		return
	}
	if len(codes) == 0 {
		c.uoms.Purge()
		c.rates.Purge()
		return
	}
	for _, code := range codes {
		c.uoms.Remove(code)
		c.rates.Remove(code)
	}
}
