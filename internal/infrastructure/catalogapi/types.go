package catalogapi

// ProductDTO is a catalog product on the wire
type ProductDTO struct {
	GTIN        string   `json:"gtin"`
	ProductName string   `json:"productName,omitempty"`
	BrandName   string   `json:"brandName,omitempty"`
	ProductCode string   `json:"productCode,omitempty"`
	Category    string   `json:"category,omitempty"`
	Attributes  []string `json:"attributes,omitempty"`
}

// ProductResponse is the body of GET /v1/products/{gtin}
type ProductResponse struct {
	Product ProductDTO `json:"product"`
}

// NotFoundResponse is the body of a 404 from GET /v1/products/{gtin}. Any
// other 404 means the endpoint itself is missing.
type NotFoundResponse struct {
	Error string `json:"error"`
	GTIN  string `json:"gtin"`
}

// SearchHit is one ranked search result
type SearchHit struct {
	Product ProductDTO `json:"product"`
	Score   float64    `json:"score"`
}

// SearchResponse is the body of GET /v1/products/search
type SearchResponse struct {
	Hits  []SearchHit `json:"hits"`
	Total int         `json:"total"`
}
