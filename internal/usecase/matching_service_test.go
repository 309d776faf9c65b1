package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/productmatch/backend/internal/domain"
)

// mockProductIndex is a hand-written domain.ProductIndex for engine tests
type mockProductIndex struct {
	mu         sync.Mutex
	byGTIN     map[string]domain.ProductRecord
	candidates map[string][]domain.Candidate
	err        error

	lookups  []string
	searches []string
	limits   []int
}

func newMockProductIndex() *mockProductIndex {
	return &mockProductIndex{
		byGTIN:     make(map[string]domain.ProductRecord),
		candidates: make(map[string][]domain.Candidate),
	}
}

func (m *mockProductIndex) LookupByGTIN(ctx context.Context, code string) (*domain.ProductRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups = append(m.lookups, code)
	if m.err != nil {
		return nil, m.err
	}
	rec, ok := m.byGTIN[code]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *mockProductIndex) SearchByText(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = append(m.searches, query)
	m.limits = append(m.limits, limit)
	if m.err != nil {
		return nil, m.err
	}
	return m.candidates[query], nil
}

func (m *mockProductIndex) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lookups) + len(m.searches)
}

type recordedOutcome struct {
	path    string
	outcome domain.MatchOutcome
}

type mockRecorder struct {
	mu       sync.Mutex
	outcomes []recordedOutcome
}

func (r *mockRecorder) RecordOutcome(path string, outcome domain.MatchOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, recordedOutcome{path: path, outcome: outcome})
}

var (
	abbottTablets = domain.ProductRecord{
		GTIN:        "0300743288131",
		ProductName: "1 Er Tablets 1x100 Mfg. Abbott Laboratories 240 mg,1 count",
		BrandName:   "Abbott Laboratories",
		ProductCode: "JLI2V7",
		Category:    "Healthcare",
	}
	cocaCola2L = domain.ProductRecord{
		GTIN:        "7894900011517",
		ProductName: "Coca cola 2 litros",
		BrandName:   "Coca-Cola",
		ProductCode: "5MRM4M",
		Category:    "Food/Beverage/Tobacco",
	}
	legoDestroyer = domain.ProductRecord{
		GTIN:        "82493500007",
		ProductName: "Star Wars Imperial Star Destroyer",
		BrandName:   "Lego",
		ProductCode: "GSD9GK",
		Category:    "Toys/Games",
	}
	bbqSauce = domain.ProductRecord{
		GTIN:        "0076539068309",
		ProductName: "Bbq Sauce",
		BrandName:   "Naturally Fresh",
		ProductCode: "KYSXQI",
	}
)

func newTestService(t *testing.T, index domain.ProductIndex, fields ...domain.SemanticField) *MatchingService {
	t.Helper()
	svc, err := NewMatchingService(index, MatchConfig{
		InputFields:        fields,
		GoodMatchThreshold: 7.0,
		ExactMatchScore:    14.041802,
	})
	require.NoError(t, err)
	return svc
}

func assertOnlyOutcome(t *testing.T, result *domain.MatchResult, outcome domain.MatchOutcome) {
	t.Helper()
	require.NotNil(t, result)
	assert.Equal(t, outcome, result.Outcome)
	for i, v := range result.Values()[1:] {
		assert.Nil(t, v, "value %d (%s) should be absent", i+1, domain.OutputColumns[i+1])
	}
}

func TestNewMatchingService(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		svc, err := NewMatchingService(newMockProductIndex(), MatchConfig{})
		require.NoError(t, err)
		assert.Equal(t, DefaultGoodMatchThreshold, svc.goodMatchThreshold)
		assert.Equal(t, DefaultExactMatchScore, svc.exactMatchScore)
		assert.Equal(t, 4, svc.batchWorkers)
		assert.NotNil(t, svc.logger)
	})

	t.Run("requires an index", func(t *testing.T) {
		_, err := NewMatchingService(nil, MatchConfig{})
		assert.Error(t, err)
	})

	t.Run("rejects unknown field kinds", func(t *testing.T) {
		_, err := NewMatchingService(newMockProductIndex(), MatchConfig{
			InputFields: []domain.SemanticField{"PRICE"},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidBinding)
	})

	t.Run("copies input fields", func(t *testing.T) {
		fields := []domain.SemanticField{domain.FieldBrandName}
		svc, err := NewMatchingService(newMockProductIndex(), MatchConfig{InputFields: fields})
		require.NoError(t, err)
		fields[0] = domain.FieldGTINCode
		assert.Equal(t, []domain.SemanticField{domain.FieldBrandName}, svc.InputFields())
	})
}

func TestMatch_Skipped(t *testing.T) {
	index := newMockProductIndex()
	svc := newTestService(t, index)

	queries := map[string]domain.Query{
		"no fields":    nil,
		"nil values":   {{Field: domain.FieldProductName}, {Field: domain.FieldGTINCode}},
		"blank values": {{Field: domain.FieldProductName, Value: str("")}, {Field: domain.FieldBrandName, Value: str("  ")}},
	}

	for name, q := range queries {
		t.Run(name, func(t *testing.T) {
			result, err := svc.Match(context.Background(), q)
			require.NoError(t, err)
			assertOnlyOutcome(t, result, domain.OutcomeSkipped)
		})
	}
	assert.Zero(t, index.calls(), "skipped records must not query the index")
}

func TestMatch_GTINPath(t *testing.T) {
	index := newMockProductIndex()
	index.byGTIN[abbottTablets.GTIN] = abbottTablets
	index.byGTIN[bbqSauce.GTIN] = bbqSauce
	svc := newTestService(t, index, domain.FieldGTINCode)

	t.Run("found gives good match with sentinel score", func(t *testing.T) {
		for _, raw := range []string{"0300743288131", "300743288131"} {
			result, err := svc.Transform(context.Background(), []*string{str(raw)})
			require.NoError(t, err)

			assert.Equal(t, domain.OutcomeGoodMatch, result.Outcome)
			require.NotNil(t, result.Score)
			assert.Equal(t, 14.041802, *result.Score)
			assert.Equal(t, "0300743288131", *result.GTINCode)
			assert.Equal(t, abbottTablets.ProductName, *result.ProductName)
			assert.Equal(t, "Abbott Laboratories", *result.BrandName)
			assert.Equal(t, "JLI2V7", *result.ProductCode)
			assert.Equal(t, "Healthcare", *result.Category)
			assert.Nil(t, result.Attribute1)
		}
		assert.Equal(t, []string{"0300743288131", "0300743288131"}, index.lookups)
	})

	t.Run("undefined attributes stay absent", func(t *testing.T) {
		result, err := svc.Transform(context.Background(), []*string{str("765390-68309")})
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeGoodMatch, result.Outcome)
		assert.Equal(t, "0076539068309", *result.GTINCode)
		assert.Equal(t, "Bbq Sauce", *result.ProductName)
		assert.Nil(t, result.Category)
	})

	t.Run("not found echoes gtin only", func(t *testing.T) {
		result, err := svc.Transform(context.Background(), []*string{str("9999999999999")})
		require.NoError(t, err)

		assert.Equal(t, domain.OutcomeNoMatch, result.Outcome)
		require.NotNil(t, result.GTINCode)
		assert.Equal(t, "9999999999999", *result.GTINCode)
		assert.Nil(t, result.Score)
		assert.Nil(t, result.ProductName)
		assert.Nil(t, result.BrandName)
		assert.Nil(t, result.ProductCode)
		assert.Nil(t, result.Category)
	})

	t.Run("gtin wins over text", func(t *testing.T) {
		index := newMockProductIndex()
		index.byGTIN[abbottTablets.GTIN] = abbottTablets
		svc := newTestService(t, index)

		result, err := svc.Match(context.Background(), domain.Query{
			{Field: domain.FieldProductName, Value: str("Coca-cola")},
			{Field: domain.FieldGTINCode, Value: str("300743288131")},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeGoodMatch, result.Outcome)
		assert.Empty(t, index.searches)
	})
}

func TestMatch_TextPath(t *testing.T) {
	testCases := []struct {
		name        string
		score       float64
		wantOutcome domain.MatchOutcome
	}{
		{name: "high relevance", score: 7.85, wantOutcome: domain.OutcomeGoodMatch},
		{name: "exactly at threshold", score: 7.0, wantOutcome: domain.OutcomeGoodMatch},
		{name: "just below threshold", score: 6.999, wantOutcome: domain.OutcomePotentialMatch},
		{name: "lower relevance", score: 6.07, wantOutcome: domain.OutcomePotentialMatch},
		{name: "barely positive", score: 0.0001, wantOutcome: domain.OutcomePotentialMatch},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			index := newMockProductIndex()
			index.candidates["Lego Star wars destroyer"] = []domain.Candidate{
				{Product: legoDestroyer, Score: tc.score},
				{Product: cocaCola2L, Score: tc.score / 2},
			}
			svc := newTestService(t, index, domain.FieldBrandName, domain.FieldProductName)

			result, err := svc.Transform(context.Background(), []*string{str("Lego"), str("Star wars destroyer")})
			require.NoError(t, err)

			assert.Equal(t, tc.wantOutcome, result.Outcome)
			require.NotNil(t, result.Score)
			assert.Equal(t, tc.score, *result.Score)
			assert.Equal(t, "0082493500007", *result.GTINCode)
			assert.Equal(t, "Star Wars Imperial Star Destroyer", *result.ProductName)
			assert.Equal(t, "Lego", *result.BrandName)
			assert.Equal(t, "GSD9GK", *result.ProductCode)
			assert.Equal(t, "Toys/Games", *result.Category)
			assert.Equal(t, []int{1}, index.limits, "only the top candidate is requested")
		})
	}

	t.Run("zero score is no match", func(t *testing.T) {
		index := newMockProductIndex()
		index.candidates["helloworldabracadabra"] = []domain.Candidate{{Product: cocaCola2L, Score: 0}}
		svc := newTestService(t, index, domain.FieldProductName)

		result, err := svc.Transform(context.Background(), []*string{str("helloworldabracadabra")})
		require.NoError(t, err)
		assertOnlyOutcome(t, result, domain.OutcomeNoMatch)
	})

	t.Run("no candidates is no match", func(t *testing.T) {
		index := newMockProductIndex()
		svc := newTestService(t, index, domain.FieldProductName, domain.FieldBrandName)

		result, err := svc.Transform(context.Background(), []*string{str("Hello world"), str("Lego")})
		require.NoError(t, err)
		assertOnlyOutcome(t, result, domain.OutcomeNoMatch)
		assert.Equal(t, []string{"Hello world Lego"}, index.searches)
	})

	t.Run("text joined in configuration order", func(t *testing.T) {
		index := newMockProductIndex()
		index.candidates["Coca-cola 2"] = []domain.Candidate{{Product: cocaCola2L, Score: 7.85}}
		svc := newTestService(t, index, domain.FieldBrandName, domain.FieldProductName)

		result, err := svc.Transform(context.Background(), []*string{str("Coca-cola"), str("2")})
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeGoodMatch, result.Outcome)
		assert.Equal(t, "7894900011517", *result.GTINCode)
		assert.Equal(t, "Coca-Cola", *result.BrandName)
	})

	t.Run("catalog gtin that does not canonicalize is left absent", func(t *testing.T) {
		index := newMockProductIndex()
		noCode := cocaCola2L
		noCode.GTIN = "n/a"
		index.candidates["cola"] = []domain.Candidate{{Product: noCode, Score: 3}}
		svc := newTestService(t, index, domain.FieldProductName)

		result, err := svc.Transform(context.Background(), []*string{str("cola")})
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomePotentialMatch, result.Outcome)
		assert.Nil(t, result.GTINCode)
		assert.NotNil(t, result.ProductName)
	})
}

func TestMatch_ConfigurableThresholds(t *testing.T) {
	index := newMockProductIndex()
	index.byGTIN[abbottTablets.GTIN] = abbottTablets
	index.candidates["free"] = []domain.Candidate{{Product: cocaCola2L, Score: 5}}

	svc, err := NewMatchingService(index, MatchConfig{GoodMatchThreshold: 4.5, ExactMatchScore: 100})
	require.NoError(t, err)

	result, err := svc.Match(context.Background(), domain.Query{{Field: domain.FieldProductName, Value: str("free")}})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeGoodMatch, result.Outcome)

	result, err = svc.Match(context.Background(), domain.Query{{Field: domain.FieldGTINCode, Value: str("300743288131")}})
	require.NoError(t, err)
	assert.Equal(t, 100.0, *result.Score)
}

func TestMatch_IndexFailure(t *testing.T) {
	index := newMockProductIndex()
	index.err = errors.New("connection refused")
	svc := newTestService(t, index)

	queries := []domain.Query{
		{{Field: domain.FieldGTINCode, Value: str("2")}},
		{{Field: domain.FieldProductName, Value: str("Coca-cola")}},
	}
	for _, q := range queries {
		result, err := svc.Match(context.Background(), q)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
		assert.Contains(t, err.Error(), "connection refused")
	}

	t.Run("malformed data is passed through", func(t *testing.T) {
		index.err = domain.ErrIndexData
		_, err := svc.Match(context.Background(), queries[1])
		assert.ErrorIs(t, err, domain.ErrIndexData)
		assert.NotErrorIs(t, err, domain.ErrIndexUnavailable)
	})

	t.Run("cancellation is passed through", func(t *testing.T) {
		index.err = context.Canceled
		_, err := svc.Match(context.Background(), queries[0])
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTransform_BindingMismatch(t *testing.T) {
	svc := newTestService(t, newMockProductIndex(), domain.FieldBrandName, domain.FieldProductName)

	_, err := svc.Transform(context.Background(), []*string{str("Lego")})
	assert.ErrorIs(t, err, domain.ErrInvalidBinding)
}

func TestMatch_RecordsOutcomes(t *testing.T) {
	index := newMockProductIndex()
	index.byGTIN[abbottTablets.GTIN] = abbottTablets
	recorder := &mockRecorder{}

	svc, err := NewMatchingService(index, MatchConfig{Recorder: recorder})
	require.NoError(t, err)

	_, err = svc.Match(context.Background(), domain.Query{{Field: domain.FieldGTINCode, Value: str("300743288131")}})
	require.NoError(t, err)
	_, err = svc.Match(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []recordedOutcome{
		{path: "gtin", outcome: domain.OutcomeGoodMatch},
		{path: "empty", outcome: domain.OutcomeSkipped},
	}, recorder.outcomes)
}

func TestMatch_ConcurrentUse(t *testing.T) {
	index := newMockProductIndex()
	index.byGTIN[abbottTablets.GTIN] = abbottTablets
	index.candidates["Coca-cola 2"] = []domain.Candidate{{Product: cocaCola2L, Score: 7.85}}
	svc := newTestService(t, index, domain.FieldBrandName, domain.FieldProductName, domain.FieldGTINCode)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			row := []*string{str("Coca-cola"), str("2"), nil}
			want := domain.OutcomeGoodMatch
			if i%2 == 0 {
				row = []*string{nil, nil, str("300743288131")}
			}
			result, err := svc.Transform(context.Background(), row)
			assert.NoError(t, err)
			assert.Equal(t, want, result.Outcome)
		}(i)
	}
	wg.Wait()
}
