package usecase

import (
	"strings"

	"github.com/productmatch/backend/internal/domain"
)

// PlanKind selects how a record is resolved against the index
type PlanKind int

const (
	PlanEmpty PlanKind = iota
	PlanGTINLookup
	PlanTextSearch
)

// String returns the log/metric label of the plan kind
func (k PlanKind) String() string {
	switch k {
	case PlanGTINLookup:
		return "gtin"
	case PlanTextSearch:
		return "text"
	default:
		return "empty"
	}
}

// QueryPlan is the retrieval decision for one record
type QueryPlan struct {
	Kind PlanKind
	GTIN string // canonical code, set for PlanGTINLookup
	Text string // joined free text, set for PlanTextSearch
}

// BuildPlan decides between an exact GTIN lookup, a free-text search or nothing.
//
// The first GTIN value that canonicalizes wins over any text. Otherwise the
// trimmed, non-blank text values are joined with a single space in input order.
func BuildPlan(q domain.Query) QueryPlan {
	for _, fv := range q {
		if fv.Field != domain.FieldGTINCode || fv.Value == nil {
			continue
		}
		if code, ok := domain.NormalizeGTIN(*fv.Value); ok {
			return QueryPlan{Kind: PlanGTINLookup, GTIN: code}
		}
	}

	parts := make([]string, 0, len(q))
	for _, fv := range q {
		if !fv.Field.IsText() || fv.Value == nil {
			continue
		}
		if v := strings.TrimSpace(*fv.Value); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return QueryPlan{Kind: PlanEmpty}
	}
	return QueryPlan{Kind: PlanTextSearch, Text: strings.Join(parts, " ")}
}
