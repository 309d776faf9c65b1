// Package memindex is an in-process product index over a fixed catalog.
//
// Text search ranks products with Okapi BM25. The summed term scores are
// multiplied by the share of query terms the product matched (Lucene's
// coordination factor) and by a constant boost that puts them on the scale
// of the matching thresholds. Products matching fewer than a minimum share of
// the query terms are not returned.
package memindex

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/productmatch/backend/internal/domain"
)

const (
	defaultK1           = 1.2
	defaultB            = 0.75
	defaultBoost        = 2.0
	defaultMinimumMatch = 0.25
	defaultLimit        = 10
)

type posting struct {
	doc int
	tf  int
}

type document struct {
	record domain.ProductRecord
	length int
}

// Index is immutable after construction and safe for concurrent reads
type Index struct {
	docs     []document
	byGTIN   map[string]int
	postings map[string][]posting
	idf      map[string]float64
	avgLen   float64
	k1       float64
	b        float64
	boost    float64
	minMatch float64
}

// Option customizes the ranking parameters
type Option func(*Index)

// WithBM25 overrides the term saturation (k1) and length normalization (b) parameters
func WithBM25(k1, b float64) Option {
	return func(idx *Index) {
		idx.k1 = k1
		idx.b = b
	}
}

// WithBoost multiplies every search score by boost
func WithBoost(boost float64) Option {
	return func(idx *Index) {
		idx.boost = boost
	}
}

// WithMinimumMatch drops products matching fewer than share (0 to 1) of the
// distinct query terms. At least one term must always match.
func WithMinimumMatch(share float64) Option {
	return func(idx *Index) {
		idx.minMatch = share
	}
}

// New builds an index over records. Catalog GTINs are canonicalized; when two
// records share a code the first one wins the exact lookup.
func New(records []domain.ProductRecord, opts ...Option) *Index {
	idx := &Index{
		docs:     make([]document, 0, len(records)),
		byGTIN:   make(map[string]int, len(records)),
		postings: make(map[string][]posting),
		k1:       defaultK1,
		b:        defaultB,
		boost:    defaultBoost,
		minMatch: defaultMinimumMatch,
	}
	for _, opt := range opts {
		opt(idx)
	}

	totalLen := 0
	for _, rec := range records {
		if code, ok := domain.NormalizeGTIN(rec.GTIN); ok {
			rec.GTIN = code
			if _, dup := idx.byGTIN[code]; !dup {
				idx.byGTIN[code] = len(idx.docs)
			}
		}

		tokens := domain.Tokenize(searchableText(rec))
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}

		id := len(idx.docs)
		for term, n := range tf {
			idx.postings[term] = append(idx.postings[term], posting{doc: id, tf: n})
		}
		idx.docs = append(idx.docs, document{record: rec, length: len(tokens)})
		totalLen += len(tokens)
	}

	if len(idx.docs) > 0 {
		idx.avgLen = float64(totalLen) / float64(len(idx.docs))
	}

	n := float64(len(idx.docs))
	idx.idf = make(map[string]float64, len(idx.postings))
	for term, list := range idx.postings {
		df := float64(len(list))
		idx.idf[term] = math.Log(1 + (n-df+0.5)/(df+0.5))
	}
	return idx
}

// searchableText is the text a product is found by
func searchableText(rec domain.ProductRecord) string {
	return strings.Join([]string{
		rec.ProductName,
		rec.BrandName,
		rec.Category,
		rec.ProductCode,
		rec.Attribute1,
		rec.Attribute2,
		rec.Attribute3,
	}, " ")
}

// Len returns the number of catalogued products
func (idx *Index) Len() int {
	return len(idx.docs)
}

// LookupByGTIN returns the product with the given code, or nil
func (idx *Index) LookupByGTIN(ctx context.Context, code string) (*domain.ProductRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	canonical, ok := domain.NormalizeGTIN(code)
	if !ok {
		return nil, nil
	}
	i, ok := idx.byGTIN[canonical]
	if !ok {
		return nil, nil
	}
	rec := idx.docs[i].record
	return &rec, nil
}

// SearchByText ranks products against the query. Only products sharing the
// minimum share of distinct query tokens are returned.
func (idx *Index) SearchByText(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	terms := domain.UniqueTokens(query)
	if len(terms) == 0 {
		return nil, nil
	}

	scores := make(map[int]float64)
	matched := make(map[int]int)
	for _, term := range terms {
		idf := idx.idf[term]
		for _, p := range idx.postings[term] {
			scores[p.doc] += idf * idx.termWeight(p)
			matched[p.doc]++
		}
	}

	required := max(1, int(math.Ceil(idx.minMatch*float64(len(terms)))))
	order := make([]int, 0, len(scores))
	for doc, score := range scores {
		if matched[doc] < required {
			continue
		}
		score *= idx.boost * float64(matched[doc]) / float64(len(terms))
		if score <= 0 {
			continue
		}
		scores[doc] = score
		order = append(order, doc)
	}
	sort.Slice(order, func(i, j int) bool {
		si, sj := scores[order[i]], scores[order[j]]
		if si != sj {
			return si > sj
		}
		gi, gj := idx.docs[order[i]].record.GTIN, idx.docs[order[j]].record.GTIN
		if gi != gj {
			return gi < gj
		}
		return order[i] < order[j]
	})

	candidates := make([]domain.Candidate, 0, min(limit, len(order)))
	for _, doc := range order {
		if len(candidates) == limit {
			break
		}
		candidates = append(candidates, domain.Candidate{
			Product: idx.docs[doc].record,
			Score:   scores[doc],
		})
	}
	return candidates, nil
}

// termWeight is the BM25 saturated term frequency of one posting
func (idx *Index) termWeight(p posting) float64 {
	tf := float64(p.tf)
	norm := 1 - idx.b
	if idx.avgLen > 0 {
		norm += idx.b * float64(idx.docs[p.doc].length) / idx.avgLen
	}
	return tf * (idx.k1 + 1) / (tf + idx.k1*norm)
}
