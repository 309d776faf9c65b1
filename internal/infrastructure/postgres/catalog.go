// Package postgres serves the reference catalog from PostgreSQL full-text search
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/productmatch/backend/internal/domain"
)

const (
	tableName    = "products"
	defaultLimit = 10
	importChunk  = 500
)

// Schema creates the products table. search_vector is derived from the text
// columns so imports never have to maintain it.
const Schema = `
CREATE TABLE IF NOT EXISTS products (
	gtin          CHAR(13) PRIMARY KEY,
	product_name  TEXT NOT NULL DEFAULT '',
	brand_name    TEXT NOT NULL DEFAULT '',
	product_code  TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL DEFAULT '',
	attribute1    TEXT NOT NULL DEFAULT '',
	attribute2    TEXT NOT NULL DEFAULT '',
	attribute3    TEXT NOT NULL DEFAULT '',
	search_vector TSVECTOR GENERATED ALWAYS AS (
		to_tsvector('simple',
			product_name || ' ' || brand_name || ' ' || category || ' ' ||
			product_code || ' ' || attribute1 || ' ' || attribute2 || ' ' || attribute3)
	) STORED
);
CREATE INDEX IF NOT EXISTS products_search_vector_idx ON products USING GIN (search_vector);
`

var productColumns = []string{
	"gtin", "product_name", "brand_name", "product_code",
	"category", "attribute1", "attribute2", "attribute3",
}

// Config holds connection pool settings
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Catalog is a domain.ProductIndex backed by PostgreSQL
type Catalog struct {
	db *sqlx.DB
}

type rankedRow struct {
	domain.ProductRecord
	Rank float64 `db:"rank"`
}

// Connect opens a pooled connection and verifies it
func Connect(ctx context.Context, cfg Config) (*Catalog, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return NewCatalog(db), nil
}

// NewCatalog wraps an existing connection
func NewCatalog(db *sqlx.DB) *Catalog {
	return &Catalog{db: db}
}

// Close closes the connection pool
func (c *Catalog) Close() error {
	return c.db.Close()
}

// EnsureSchema creates the products table and its search index
func (c *Catalog) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// LookupByGTIN returns the product with the given code, or nil
func (c *Catalog) LookupByGTIN(ctx context.Context, code string) (*domain.ProductRecord, error) {
	canonical, ok := domain.NormalizeGTIN(code)
	if !ok {
		return nil, nil
	}

	query, args := buildLookupQuery(canonical)
	var rec domain.ProductRecord
	err := c.db.GetContext(ctx, &rec, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	rec.GTIN = strings.TrimSpace(rec.GTIN)
	return &rec, nil
}

// SearchByText ranks products with ts_rank_cd against an any-token query
func (c *Catalog) SearchByText(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	tsQuery := buildTSQuery(query)
	if tsQuery == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	sqlText, args := buildSearchQuery(tsQuery, limit)
	var rows []rankedRow
	if err := c.db.SelectContext(ctx, &rows, sqlText, args...); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}

	candidates := make([]domain.Candidate, 0, len(rows))
	for _, row := range rows {
		if row.Rank <= 0 {
			continue
		}
		row.ProductRecord.GTIN = strings.TrimSpace(row.ProductRecord.GTIN)
		candidates = append(candidates, domain.Candidate{Product: row.ProductRecord, Score: row.Rank})
	}
	return candidates, nil
}

// Import upserts records in chunks inside one transaction. Records whose GTIN
// does not canonicalize are skipped.
func (c *Catalog) Import(ctx context.Context, records []domain.ProductRecord) (int, error) {
	// one statement may not upsert the same key twice, so later duplicates replace earlier ones
	valid := make([]domain.ProductRecord, 0, len(records))
	seen := make(map[string]int, len(records))
	for _, rec := range records {
		code, ok := domain.NormalizeGTIN(rec.GTIN)
		if !ok {
			continue
		}
		rec.GTIN = code
		if i, dup := seen[code]; dup {
			valid[i] = rec
			continue
		}
		seen[code] = len(valid)
		valid = append(valid, rec)
	}

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(valid); start += importChunk {
		end := min(start+importChunk, len(valid))
		query, args := buildUpsertQuery(valid[start:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("upsert products: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return len(valid), nil
}

func buildLookupQuery(code string) (string, []interface{}) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(productColumns...)
	sb.From(tableName)
	sb.Where(sb.Equal("gtin", code))
	return sb.Build()
}

func buildSearchQuery(tsQuery string, limit int) (string, []interface{}) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	rank := fmt.Sprintf("ts_rank_cd(search_vector, to_tsquery('simple', %s))", sb.Var(tsQuery))

	cols := append([]string{}, productColumns...)
	cols = append(cols, sb.As(rank, "rank"))
	sb.Select(cols...)
	sb.From(tableName)
	sb.Where(fmt.Sprintf("search_vector @@ to_tsquery('simple', %s)", sb.Var(tsQuery)))
	sb.OrderBy("rank DESC", "gtin")
	sb.Limit(limit)
	return sb.Build()
}

func buildUpsertQuery(records []domain.ProductRecord) (string, []interface{}) {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(tableName)
	ib.Cols(productColumns...)
	for _, rec := range records {
		ib.Values(rec.GTIN, rec.ProductName, rec.BrandName, rec.ProductCode,
			rec.Category, rec.Attribute1, rec.Attribute2, rec.Attribute3)
	}

	query, args := ib.Build()
	query += ` ON CONFLICT (gtin) DO UPDATE SET
		product_name = EXCLUDED.product_name,
		brand_name = EXCLUDED.brand_name,
		product_code = EXCLUDED.product_code,
		category = EXCLUDED.category,
		attribute1 = EXCLUDED.attribute1,
		attribute2 = EXCLUDED.attribute2,
		attribute3 = EXCLUDED.attribute3`
	return query, args
}

// buildTSQuery ORs the query tokens. Tokens hold only letters and digits so
// they cannot carry tsquery operators.
func buildTSQuery(text string) string {
	return strings.Join(domain.UniqueTokens(text), " | ")
}
