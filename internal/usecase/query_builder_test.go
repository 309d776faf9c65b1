package usecase

import (
	"testing"

	"github.com/productmatch/backend/internal/domain"
)

func str(s string) *string { return &s }

func TestBuildPlan(t *testing.T) {
	testCases := []struct {
		name     string
		query    domain.Query
		wantKind PlanKind
		wantGTIN string
		wantText string
	}{
		{
			name:     "no fields",
			query:    nil,
			wantKind: PlanEmpty,
		},
		{
			name: "all values absent",
			query: domain.Query{
				{Field: domain.FieldGTINCode},
				{Field: domain.FieldProductName},
			},
			wantKind: PlanEmpty,
		},
		{
			name: "blank text only",
			query: domain.Query{
				{Field: domain.FieldProductName, Value: str("   ")},
				{Field: domain.FieldBrandName, Value: str("")},
			},
			wantKind: PlanEmpty,
		},
		{
			name: "gtin wins over text",
			query: domain.Query{
				{Field: domain.FieldProductName, Value: str("Bbq Sauce")},
				{Field: domain.FieldGTINCode, Value: str("765390-68309")},
			},
			wantKind: PlanGTINLookup,
			wantGTIN: "0076539068309",
		},
		{
			name: "unparseable gtin falls back to text",
			query: domain.Query{
				{Field: domain.FieldGTINCode, Value: str("n/a")},
				{Field: domain.FieldProductName, Value: str("Coca cola zero 1 liter")},
			},
			wantKind: PlanTextSearch,
			wantText: "Coca cola zero 1 liter",
		},
		{
			name: "first parseable gtin wins",
			query: domain.Query{
				{Field: domain.FieldGTINCode, Value: str("--")},
				{Field: domain.FieldGTINCode, Value: str("2")},
				{Field: domain.FieldGTINCode, Value: str("3")},
			},
			wantKind: PlanGTINLookup,
			wantGTIN: "0000000000002",
		},
		{
			name: "text joined in configuration order",
			query: domain.Query{
				{Field: domain.FieldBrandName, Value: str(" Coca-cola ")},
				{Field: domain.FieldProductName, Value: str("2")},
			},
			wantKind: PlanTextSearch,
			wantText: "Coca-cola 2",
		},
		{
			name: "blank values skipped when joining",
			query: domain.Query{
				{Field: domain.FieldProductName, Value: str("Lego")},
				{Field: domain.FieldBrandName, Value: str(" ")},
				{Field: domain.FieldDescriptionText, Value: str("Star wars destroyer")},
			},
			wantKind: PlanTextSearch,
			wantText: "Lego Star wars destroyer",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			plan := BuildPlan(tc.query)
			if plan.Kind != tc.wantKind {
				t.Fatalf("Kind = %v, want %v", plan.Kind, tc.wantKind)
			}
			if plan.GTIN != tc.wantGTIN {
				t.Errorf("GTIN = %q, want %q", plan.GTIN, tc.wantGTIN)
			}
			if plan.Text != tc.wantText {
				t.Errorf("Text = %q, want %q", plan.Text, tc.wantText)
			}
		})
	}
}

func TestPlanKindString(t *testing.T) {
	if PlanGTINLookup.String() != "gtin" || PlanTextSearch.String() != "text" || PlanEmpty.String() != "empty" {
		t.Errorf("unexpected plan kind labels")
	}
}
