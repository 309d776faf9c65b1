package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/productmatch/backend/internal/domain"
	"github.com/productmatch/backend/internal/infrastructure/catalogapi"
)

const (
	maxBatchRecords    = 1000
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// Matcher is the matching service as seen by the HTTP layer
type Matcher interface {
	Match(ctx context.Context, q domain.Query) (*domain.MatchResult, error)
	Transform(ctx context.Context, values []*string) (*domain.MatchResult, error)
	MatchBatch(ctx context.Context, queries []domain.Query) ([]*domain.MatchResult, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	matcher     Matcher
	index       domain.ProductIndex
	logger      *zap.Logger
	searchLimit int
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithSearchLimit sets the hit count returned by product search when the
// request has no limit. Values outside 1..maxSearchLimit are ignored.
func WithSearchLimit(limit int) HandlerOption {
	return func(h *Handler) {
		if limit >= 1 && limit <= maxSearchLimit {
			h.searchLimit = limit
		}
	}
}

// NewHandler creates a new HTTP handler. Either dependency may be nil, in
// which case its endpoints answer 503.
func NewHandler(matcher Matcher, index domain.ProductIndex, logger *zap.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{matcher: matcher, index: index, logger: logger, searchLimit: defaultSearchLimit}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// FieldValueRequest is one typed input value
type FieldValueRequest struct {
	Field string  `json:"field" binding:"required"`
	Value *string `json:"value"`
}

// MatchRequest is the body of POST /api/v1/match
type MatchRequest struct {
	Fields []FieldValueRequest `json:"fields" binding:"required,dive"`
}

// RowRequest is the body of POST /api/v1/match/row
type RowRequest struct {
	Values []*string `json:"values" binding:"required"`
}

// BatchRequest is the body of POST /api/v1/match/batch
type BatchRequest struct {
	Records []MatchRequest `json:"records" binding:"required,min=1,max=1000,dive"`
}

// BatchResponse holds results in request order
type BatchResponse struct {
	Results []*domain.MatchResult `json:"results"`
}

// SearchQuery holds the query string of GET /api/v1/products/search
type SearchQuery struct {
	Q     string `form:"q" binding:"required"`
	Limit int    `form:"limit" binding:"omitempty,min=1"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "productmatch",
		"version": "1.0.0",
	})
}

// Match resolves one record given as typed field values
func (h *Handler) Match(c *gin.Context) {
	if h.matcher == nil {
		h.notConfigured(c, "Matching service")
		return
	}

	var req MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	q, err := toQuery(req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.matcher.Match(c.Request.Context(), q)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// MatchRow resolves one positional row bound by the configured input fields
func (h *Handler) MatchRow(c *gin.Context) {
	if h.matcher == nil {
		h.notConfigured(c, "Matching service")
		return
	}

	var req RowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	result, err := h.matcher.Transform(c.Request.Context(), req.Values)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// MatchBatch resolves up to maxBatchRecords records concurrently
func (h *Handler) MatchBatch(c *gin.Context) {
	if h.matcher == nil {
		h.notConfigured(c, "Matching service")
		return
	}

	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	queries := make([]domain.Query, len(req.Records))
	for i, record := range req.Records {
		q, err := toQuery(record)
		if err != nil {
			h.respondError(c, err)
			return
		}
		queries[i] = q
	}

	results, err := h.matcher.MatchBatch(c.Request.Context(), queries)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, BatchResponse{Results: results})
}

// GetProduct returns the catalog entry for a GTIN in the remote catalog wire format
func (h *Handler) GetProduct(c *gin.Context) {
	if h.index == nil {
		h.notConfigured(c, "Product index")
		return
	}

	code, ok := domain.NormalizeGTIN(c.Param("gtin"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid GTIN"})
		return
	}

	rec, err := h.index.LookupByGTIN(c.Request.Context(), code)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, catalogapi.NotFoundResponse{Error: "Product not found", GTIN: code})
		return
	}
	c.JSON(http.StatusOK, catalogapi.ProductResponse{Product: catalogapi.MapFromProductRecord(*rec)})
}

// SearchProducts returns ranked catalog hits in the remote catalog wire format
func (h *Handler) SearchProducts(c *gin.Context) {
	if h.index == nil {
		h.notConfigured(c, "Product index")
		return
	}

	var query SearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if query.Limit > maxSearchLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("limit must not exceed %d", maxSearchLimit)})
		return
	}
	if query.Limit == 0 {
		query.Limit = h.searchLimit
	}

	candidates, err := h.index.SearchByText(c.Request.Context(), query.Q, query.Limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if len(candidates) > query.Limit {
		candidates = candidates[:query.Limit]
	}
	c.JSON(http.StatusOK, catalogapi.MapCandidates(candidates))
}

func toQuery(req MatchRequest) (domain.Query, error) {
	q := make(domain.Query, 0, len(req.Fields))
	for _, fv := range req.Fields {
		field, err := domain.ParseSemanticField(fv.Field)
		if err != nil {
			return nil, err
		}
		q = append(q, domain.FieldValue{Field: field, Value: fv.Value})
	}
	return q, nil
}

func (h *Handler) notConfigured(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": what + " not configured"})
}

// respondError maps domain errors to status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidBinding), errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrIndexData):
		h.logger.Error("product index returned invalid data", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Product index returned invalid data"})
	case errors.Is(err, domain.ErrIndexUnavailable), errors.Is(err, domain.ErrRateLimited):
		h.logger.Warn("product index unavailable", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Product index temporarily unavailable"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Request timed out"})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
