package catalogapi

import (
	"fmt"
	"math"
	"sort"

	"github.com/productmatch/backend/internal/domain"
)

// maxAttributes is how many supplementary attributes a record carries
const maxAttributes = 3

// MapToProductRecord converts a wire product to the domain model.
// Attributes beyond the third are dropped.
func MapToProductRecord(dto ProductDTO) domain.ProductRecord {
	rec := domain.ProductRecord{
		GTIN:        dto.GTIN,
		ProductName: dto.ProductName,
		BrandName:   dto.BrandName,
		ProductCode: dto.ProductCode,
		Category:    dto.Category,
	}
	attrs := []*string{&rec.Attribute1, &rec.Attribute2, &rec.Attribute3}
	for i := 0; i < len(dto.Attributes) && i < maxAttributes; i++ {
		*attrs[i] = dto.Attributes[i]
	}
	return rec
}

// MapFromProductRecord converts a domain record to its wire form
func MapFromProductRecord(rec domain.ProductRecord) ProductDTO {
	dto := ProductDTO{
		GTIN:        rec.GTIN,
		ProductName: rec.ProductName,
		BrandName:   rec.BrandName,
		ProductCode: rec.ProductCode,
		Category:    rec.Category,
	}
	// keep positions: a missing attribute1 must not shift attribute2 forward
	attrs := []string{rec.Attribute1, rec.Attribute2, rec.Attribute3}
	last := -1
	for i, a := range attrs {
		if a != "" {
			last = i
		}
	}
	if last >= 0 {
		dto.Attributes = attrs[:last+1]
	}
	return dto
}

// MapSearchResponse validates hits and returns them ordered by descending score
func MapSearchResponse(resp *SearchResponse) ([]domain.Candidate, error) {
	candidates := make([]domain.Candidate, 0, len(resp.Hits))
	for i, hit := range resp.Hits {
		if hit.Score < 0 || math.IsNaN(hit.Score) || math.IsInf(hit.Score, 0) {
			return nil, fmt.Errorf("%w: hit %d has invalid score %v", domain.ErrIndexData, i, hit.Score)
		}
		candidates = append(candidates, domain.Candidate{
			Product: MapToProductRecord(hit.Product),
			Score:   hit.Score,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates, nil
}

// MapCandidates converts ranked candidates to a search response
func MapCandidates(candidates []domain.Candidate) *SearchResponse {
	resp := &SearchResponse{Hits: make([]SearchHit, 0, len(candidates)), Total: len(candidates)}
	for _, c := range candidates {
		resp.Hits = append(resp.Hits, SearchHit{Product: MapFromProductRecord(c.Product), Score: c.Score})
	}
	return resp
}
