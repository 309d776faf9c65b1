package domain

import (
	"context"
	"time"
)

// ProductIndex is the queryable reference catalog.
//
// LookupByGTIN returns nil and no error when the code is not catalogued.
// SearchByText returns at most limit candidates ordered by descending score;
// limit <= 0 means the implementation default.
type ProductIndex interface {
	LookupByGTIN(ctx context.Context, code string) (*ProductRecord, error)
	SearchByText(ctx context.Context, query string, limit int) ([]Candidate, error)
}

// CatalogWriter is implemented by indexes that can be loaded with catalog records
type CatalogWriter interface {
	Import(ctx context.Context, records []ProductRecord) (int, error)
}

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
