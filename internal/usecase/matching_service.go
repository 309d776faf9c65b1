package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/productmatch/backend/internal/domain"
)

const (
	// DefaultGoodMatchThreshold separates GOOD_MATCH from POTENTIAL_MATCH on the text path
	DefaultGoodMatchThreshold = 7.0

	// DefaultExactMatchScore is reported for exact GTIN hits. It sits above every
	// free-text score seen on the reference catalog.
	DefaultExactMatchScore = 14.041802
)

const tracerName = "github.com/productmatch/backend/internal/usecase"

// OutcomeRecorder receives one observation per matched record
type OutcomeRecorder interface {
	RecordOutcome(path string, outcome domain.MatchOutcome)
}

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	// InputFields binds positional row values to field kinds for Transform
	InputFields        []domain.SemanticField
	GoodMatchThreshold float64
	ExactMatchScore    float64
	BatchWorkers       int
	Logger             *zap.Logger
	Recorder           OutcomeRecorder
	// TracerProvider defaults to the global provider
	TracerProvider trace.TracerProvider
}

// MatchingService resolves records against a product index and classifies the result.
// It holds no per-call state and is safe for concurrent use when the index is.
type MatchingService struct {
	index              domain.ProductIndex
	inputFields        []domain.SemanticField
	goodMatchThreshold float64
	exactMatchScore    float64
	batchWorkers       int
	logger             *zap.Logger
	recorder           OutcomeRecorder
	tracer             trace.Tracer
}

// NewMatchingService creates a new matching service with the given configuration
func NewMatchingService(index domain.ProductIndex, config MatchConfig) (*MatchingService, error) {
	if index == nil {
		return nil, errors.New("product index is required")
	}

	for _, f := range config.InputFields {
		if !f.Valid() {
			return nil, fmt.Errorf("%w: unknown field kind %q", domain.ErrInvalidBinding, f)
		}
	}

	threshold := config.GoodMatchThreshold
	if threshold <= 0 {
		threshold = DefaultGoodMatchThreshold
	}

	exact := config.ExactMatchScore
	if exact <= 0 {
		exact = DefaultExactMatchScore
	}

	workers := config.BatchWorkers
	if workers <= 0 {
		workers = 4
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	provider := config.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}

	fields := make([]domain.SemanticField, len(config.InputFields))
	copy(fields, config.InputFields)

	return &MatchingService{
		index:              index,
		inputFields:        fields,
		goodMatchThreshold: threshold,
		exactMatchScore:    exact,
		batchWorkers:       workers,
		logger:             logger,
		recorder:           config.Recorder,
		tracer:             provider.Tracer(tracerName),
	}, nil
}

// InputFields returns a copy of the configured positional binding
func (s *MatchingService) InputFields() []domain.SemanticField {
	fields := make([]domain.SemanticField, len(s.inputFields))
	copy(fields, s.inputFields)
	return fields
}

// Transform matches one positional row using the configured input fields
func (s *MatchingService) Transform(ctx context.Context, values []*string) (*domain.MatchResult, error) {
	q, err := domain.BindRow(s.inputFields, values)
	if err != nil {
		return nil, err
	}
	return s.Match(ctx, q)
}

// Match resolves one record. Index failures are returned as errors and never
// reported as NO_MATCH.
func (s *MatchingService) Match(ctx context.Context, q domain.Query) (*domain.MatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "MatchingService.Match")
	defer span.End()

	plan := BuildPlan(q)
	span.SetAttributes(attribute.String("match.path", plan.Kind.String()))

	var (
		record *domain.ProductRecord
		score  *float64
	)

	switch plan.Kind {
	case PlanGTINLookup:
		rec, err := s.index.LookupByGTIN(ctx, plan.GTIN)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "gtin lookup failed")
			return nil, wrapIndexError(err)
		}
		record = rec
		score = s.scoreLookup(rec)

	case PlanTextSearch:
		candidates, err := s.index.SearchByText(ctx, plan.Text, 1)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "text search failed")
			return nil, wrapIndexError(err)
		}
		if len(candidates) > 0 {
			top := candidates[0]
			record = &top.Product
		}
		score = scoreSearch(candidates)
	}

	outcome := s.classify(plan.Kind, score)
	result := assemble(plan, outcome, score, record)

	span.SetAttributes(attribute.String("match.outcome", string(outcome)))
	if s.recorder != nil {
		s.recorder.RecordOutcome(plan.Kind.String(), outcome)
	}

	if ce := s.logger.Check(zap.DebugLevel, "record matched"); ce != nil {
		fields := []zap.Field{
			zap.String("path", plan.Kind.String()),
			zap.String("outcome", string(outcome)),
		}
		if plan.Kind == PlanTextSearch {
			fields = append(fields, zap.String("query", plan.Text))
		}
		if plan.Kind == PlanGTINLookup {
			fields = append(fields, zap.String("gtin", plan.GTIN))
		}
		if result.Score != nil {
			fields = append(fields, zap.Float64("score", *result.Score))
		}
		ce.Write(fields...)
	}

	return result, nil
}

// scoreLookup gives an exact GTIN hit the configured sentinel score
func (s *MatchingService) scoreLookup(rec *domain.ProductRecord) *float64 {
	if rec == nil {
		return nil
	}
	score := s.exactMatchScore
	return &score
}

// scoreSearch passes the top candidate's raw score through unchanged
func scoreSearch(candidates []domain.Candidate) *float64 {
	if len(candidates) == 0 {
		return nil
	}
	score := candidates[0].Score
	return &score
}

func (s *MatchingService) classify(kind PlanKind, score *float64) domain.MatchOutcome {
	switch kind {
	case PlanEmpty:
		return domain.OutcomeSkipped
	case PlanGTINLookup:
		if score == nil {
			return domain.OutcomeNoMatch
		}
		return domain.OutcomeGoodMatch
	}

	switch {
	case score == nil:
		return domain.OutcomeNoMatch
	case *score >= s.goodMatchThreshold:
		return domain.OutcomeGoodMatch
	case *score > 0:
		return domain.OutcomePotentialMatch
	default:
		// zero, negative and NaN scores never qualify
		return domain.OutcomeNoMatch
	}
}

// assemble builds the ten-value result. Catalog attributes are only copied for
// matched outcomes; the GTIN path always echoes the canonical code it looked up.
func assemble(plan QueryPlan, outcome domain.MatchOutcome, score *float64, record *domain.ProductRecord) *domain.MatchResult {
	result := &domain.MatchResult{Outcome: outcome}

	if plan.Kind == PlanGTINLookup {
		code := plan.GTIN
		result.GTINCode = &code
	}

	if !outcome.IsMatch() || record == nil {
		return result
	}

	value := *score
	result.Score = &value
	if result.GTINCode == nil {
		if code, ok := domain.NormalizeGTIN(record.GTIN); ok {
			result.GTINCode = &code
		}
	}
	result.ProductName = optional(record.ProductName)
	result.BrandName = optional(record.BrandName)
	result.ProductCode = optional(record.ProductCode)
	result.Category = optional(record.Category)
	result.Attribute1 = optional(record.Attribute1)
	result.Attribute2 = optional(record.Attribute2)
	result.Attribute3 = optional(record.Attribute3)
	return result
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func wrapIndexError(err error) error {
	if errors.Is(err, domain.ErrIndexUnavailable) || errors.Is(err, domain.ErrIndexData) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
}
