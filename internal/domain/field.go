package domain

import (
	"fmt"
	"strings"
)

// SemanticField tags what an input value means to the matcher
type SemanticField string

const (
	FieldGTINCode        SemanticField = "GTIN_CODE"
	FieldProductName     SemanticField = "PRODUCT_NAME"
	FieldBrandName       SemanticField = "BRAND_NAME"
	FieldDescriptionText SemanticField = "PRODUCT_DESCRIPTION_TEXT"
)

// SemanticFields lists every field kind in declaration order
var SemanticFields = []SemanticField{
	FieldGTINCode,
	FieldProductName,
	FieldBrandName,
	FieldDescriptionText,
}

// IsText reports whether values of this kind feed the free-text query
func (f SemanticField) IsText() bool {
	return f == FieldProductName || f == FieldBrandName || f == FieldDescriptionText
}

// Valid reports whether f is one of the known field kinds
func (f SemanticField) Valid() bool {
	for _, known := range SemanticFields {
		if f == known {
			return true
		}
	}
	return false
}

// ParseSemanticField parses a field kind case-insensitively.
// Dashes and spaces are accepted in place of underscores, and "DESCRIPTION_TEXT"
// is accepted as a short form of PRODUCT_DESCRIPTION_TEXT.
func ParseSemanticField(s string) (SemanticField, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)

	switch key {
	case "GTIN_CODE", "GTIN":
		return FieldGTINCode, nil
	case "PRODUCT_NAME":
		return FieldProductName, nil
	case "BRAND_NAME", "BRAND":
		return FieldBrandName, nil
	case "PRODUCT_DESCRIPTION_TEXT", "DESCRIPTION_TEXT", "DESCRIPTION":
		return FieldDescriptionText, nil
	}
	return "", fmt.Errorf("%w: unknown field kind %q", ErrInvalidBinding, s)
}

// ParseSemanticFields parses a list of field kinds, keeping their order
func ParseSemanticFields(values []string) ([]SemanticField, error) {
	fields := make([]SemanticField, 0, len(values))
	for _, v := range values {
		f, err := ParseSemanticField(v)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// FieldValue is one bound input value. A nil Value means the host supplied no value.
type FieldValue struct {
	Field SemanticField `json:"field"`
	Value *string       `json:"value"`
}

// Query is the ordered set of field values for one record
type Query []FieldValue

// BindRow zips positional row values with their configured field kinds
func BindRow(bindings []SemanticField, values []*string) (Query, error) {
	if len(values) != len(bindings) {
		return nil, fmt.Errorf("%w: got %d values for %d input fields", ErrInvalidBinding, len(values), len(bindings))
	}
	q := make(Query, len(bindings))
	for i, field := range bindings {
		q[i] = FieldValue{Field: field, Value: values[i]}
	}
	return q, nil
}
