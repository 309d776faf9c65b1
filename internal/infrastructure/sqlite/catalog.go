// Package sqlite stores the reference catalog in an embedded SQLite database
// and ranks free-text queries with the FTS5 bm25 function.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/productmatch/backend/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	gtin         TEXT PRIMARY KEY,
	product_name TEXT NOT NULL DEFAULT '',
	brand_name   TEXT NOT NULL DEFAULT '',
	product_code TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	attribute1   TEXT NOT NULL DEFAULT '',
	attribute2   TEXT NOT NULL DEFAULT '',
	attribute3   TEXT NOT NULL DEFAULT ''
);

CREATE VIRTUAL TABLE IF NOT EXISTS products_fts USING fts5(
	gtin UNINDEXED,
	product_name,
	brand_name,
	category,
	extra
);
`

const productColumns = `p.gtin, p.product_name, p.brand_name, p.product_code, p.category, p.attribute1, p.attribute2, p.attribute3`

const defaultLimit = 10

// Catalog is a domain.ProductIndex backed by SQLite
type Catalog struct {
	db *sqlx.DB
}

type rankedRow struct {
	domain.ProductRecord
	Rank float64 `db:"rank"`
}

// Open opens (creating if needed) the catalog database at path
func Open(path string) (*Catalog, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the database
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Count returns the number of catalogued products
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM products`); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return n, nil
}

// Import upserts records in one transaction. Records whose GTIN does not
// canonicalize are skipped; the number of stored records is returned.
func (c *Catalog) Import(ctx context.Context, records []domain.ProductRecord) (int, error) {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	stored := 0
	for _, rec := range records {
		code, ok := domain.NormalizeGTIN(rec.GTIN)
		if !ok {
			continue
		}
		rec.GTIN = code

		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO products (gtin, product_name, brand_name, product_code, category, attribute1, attribute2, attribute3)
			VALUES (:gtin, :product_name, :brand_name, :product_code, :category, :attribute1, :attribute2, :attribute3)
			ON CONFLICT(gtin) DO UPDATE SET
				product_name = excluded.product_name,
				brand_name = excluded.brand_name,
				product_code = excluded.product_code,
				category = excluded.category,
				attribute1 = excluded.attribute1,
				attribute2 = excluded.attribute2,
				attribute3 = excluded.attribute3`, rec); err != nil {
			return 0, fmt.Errorf("upsert %s: %w", code, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM products_fts WHERE gtin = ?`, code); err != nil {
			return 0, fmt.Errorf("reindex %s: %w", code, err)
		}
		extra := strings.Join([]string{rec.ProductCode, rec.Attribute1, rec.Attribute2, rec.Attribute3}, " ")
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO products_fts (gtin, product_name, brand_name, category, extra) VALUES (?, ?, ?, ?, ?)`,
			code, rec.ProductName, rec.BrandName, rec.Category, extra,
		); err != nil {
			return 0, fmt.Errorf("reindex %s: %w", code, err)
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return stored, nil
}

// LookupByGTIN returns the product with the given code, or nil
func (c *Catalog) LookupByGTIN(ctx context.Context, code string) (*domain.ProductRecord, error) {
	canonical, ok := domain.NormalizeGTIN(code)
	if !ok {
		return nil, nil
	}

	var rec domain.ProductRecord
	err := c.db.GetContext(ctx, &rec, `SELECT `+productColumns+` FROM products p WHERE p.gtin = ?`, canonical)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return &rec, nil
}

// SearchByText ranks products sharing at least one token with the query.
// Scores are the negated FTS5 bm25 rank, so higher is better.
func (c *Catalog) SearchByText(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	expr := matchExpression(query)
	if expr == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	var rows []rankedRow
	err := c.db.SelectContext(ctx, &rows, `
		SELECT `+productColumns+`, bm25(products_fts) AS rank
		FROM products_fts
		JOIN products p ON p.gtin = products_fts.gtin
		WHERE products_fts MATCH ?
		ORDER BY rank, p.gtin
		LIMIT ?`, expr, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}

	candidates := make([]domain.Candidate, 0, len(rows))
	for _, row := range rows {
		score := -row.Rank
		if score <= 0 {
			continue
		}
		candidates = append(candidates, domain.Candidate{Product: row.ProductRecord, Score: score})
	}
	return candidates, nil
}

// matchExpression turns free text into an FTS5 query that matches any token.
// Tokens are quoted so punctuation in the input can never form FTS5 syntax.
func matchExpression(query string) string {
	tokens := domain.UniqueTokens(query)
	if len(tokens) == 0 {
		return ""
	}
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " OR ")
}
