package domain

// ProductRecord is a read-only entry of the reference catalog. Any field may be empty.
type ProductRecord struct {
	GTIN        string `json:"gtin" yaml:"gtin" db:"gtin"`
	ProductName string `json:"productName,omitempty" yaml:"productName" db:"product_name"`
	BrandName   string `json:"brandName,omitempty" yaml:"brandName" db:"brand_name"`
	ProductCode string `json:"productCode,omitempty" yaml:"productCode" db:"product_code"`
	Category    string `json:"category,omitempty" yaml:"category" db:"category"`
	Attribute1  string `json:"attribute1,omitempty" yaml:"attribute1" db:"attribute1"`
	Attribute2  string `json:"attribute2,omitempty" yaml:"attribute2" db:"attribute2"`
	Attribute3  string `json:"attribute3,omitempty" yaml:"attribute3" db:"attribute3"`
}

// Candidate is a ranked free-text search hit. Score is non-negative and index-defined.
type Candidate struct {
	Product ProductRecord `json:"product"`
	Score   float64       `json:"score"`
}
