package domain

// MatchOutcome classifies how confidently a record was resolved
type MatchOutcome string

const (
	OutcomeSkipped        MatchOutcome = "SKIPPED"
	OutcomeNoMatch        MatchOutcome = "NO_MATCH"
	OutcomePotentialMatch MatchOutcome = "POTENTIAL_MATCH"
	OutcomeGoodMatch      MatchOutcome = "GOOD_MATCH"
)

// IsMatch reports whether the outcome carries a matched catalog record
func (o MatchOutcome) IsMatch() bool {
	return o == OutcomeGoodMatch || o == OutcomePotentialMatch
}

// OutputColumns names the ten values of a MatchResult in output order
var OutputColumns = []string{
	"Match status",
	"Match score",
	"GTIN code",
	"Product name",
	"Brand name",
	"Product code",
	"Category",
	"Attribute 1",
	"Attribute 2",
	"Attribute 3",
}

// MatchResult is the fixed-width enrichment produced for every record.
// Absent values are nil pointers and serialize as JSON null.
type MatchResult struct {
	Outcome     MatchOutcome `json:"matchOutcome"`
	Score       *float64     `json:"score"`
	GTINCode    *string      `json:"gtinCode"`
	ProductName *string      `json:"productName"`
	BrandName   *string      `json:"brandName"`
	ProductCode *string      `json:"productCode"`
	Category    *string      `json:"category"`
	Attribute1  *string      `json:"attribute1"`
	Attribute2  *string      `json:"attribute2"`
	Attribute3  *string      `json:"attribute3"`
}

// Values returns the ten output values in column order, nil where absent
func (r *MatchResult) Values() []any {
	return []any{
		string(r.Outcome),
		floatOrNil(r.Score),
		stringOrNil(r.GTINCode),
		stringOrNil(r.ProductName),
		stringOrNil(r.BrandName),
		stringOrNil(r.ProductCode),
		stringOrNil(r.Category),
		stringOrNil(r.Attribute1),
		stringOrNil(r.Attribute2),
		stringOrNil(r.Attribute3),
	}
}

func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringOrNil(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
