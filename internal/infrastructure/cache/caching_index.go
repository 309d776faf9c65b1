package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/productmatch/backend/internal/domain"
)

const keyPrefix = "productmatch:"

// Cache lookup results reported to a HitObserver
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// HitObserver receives one observation per cache lookup
type HitObserver interface {
	ObserveCache(result string)
}

// CachingIndex is a read-through cache in front of a product index.
// Cache failures are logged and never fail a lookup.
type CachingIndex struct {
	next     domain.ProductIndex
	cache    domain.CacheRepository
	ttl      time.Duration
	logger   *zap.Logger
	observer HitObserver
}

// cachedLookup also records misses so unknown GTINs are not re-queried
type cachedLookup struct {
	Found   bool                  `json:"found"`
	Product *domain.ProductRecord `json:"product,omitempty"`
}

// NewCachingIndex wraps next. ttl defaults to one hour.
func NewCachingIndex(next domain.ProductIndex, cache domain.CacheRepository, ttl time.Duration, logger *zap.Logger) *CachingIndex {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingIndex{next: next, cache: cache, ttl: ttl, logger: logger}
}

// SetObserver registers a cache hit/miss observer
func (c *CachingIndex) SetObserver(o HitObserver) {
	c.observer = o
}

// LookupByGTIN serves exact lookups from cache when possible
func (c *CachingIndex) LookupByGTIN(ctx context.Context, code string) (*domain.ProductRecord, error) {
	key := gtinKey(code)

	var cached cachedLookup
	if c.load(ctx, key, &cached) {
		if !cached.Found {
			return nil, nil
		}
		return cached.Product, nil
	}

	rec, err := c.next.LookupByGTIN(ctx, code)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, cachedLookup{Found: rec != nil, Product: rec})
	return rec, nil
}

// SearchByText serves ranked searches from cache when possible
func (c *CachingIndex) SearchByText(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	key := searchKey(query, limit)

	var cached []domain.Candidate
	if c.load(ctx, key, &cached) {
		return cached, nil
	}

	candidates, err := c.next.SearchByText(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if candidates == nil {
		candidates = []domain.Candidate{}
	}
	c.store(ctx, key, candidates)
	return candidates, nil
}

func (c *CachingIndex) load(ctx context.Context, key string, out interface{}) bool {
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrCacheMiss) {
			c.observe(ResultMiss)
		} else {
			c.observe(ResultError)
			c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.observe(ResultError)
		c.logger.Warn("discarding corrupt cache entry", zap.String("key", key), zap.Error(err))
		if err := c.cache.Delete(ctx, key); err != nil {
			c.logger.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	c.observe(ResultHit)
	return true
}

func (c *CachingIndex) store(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachingIndex) observe(result string) {
	if c.observer != nil {
		c.observer.ObserveCache(result)
	}
}

func gtinKey(code string) string {
	if canonical, ok := domain.NormalizeGTIN(code); ok {
		code = canonical
	}
	return keyPrefix + "gtin:" + code
}

// searchKey ignores whitespace differences only, since an index may rank by
// case. The query is hashed to bound key length.
func searchKey(query string, limit int) string {
	normalized := strings.Join(strings.Fields(query), " ")
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%ssearch:%d:%s", keyPrefix, limit, hex.EncodeToString(sum[:]))
}
