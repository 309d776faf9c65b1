// Package metrics provides Prometheus metrics for the product match service.
package metrics

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/productmatch/backend/internal/domain"
)

var (
	// MatchOutcomesTotal tracks classified records by retrieval path and outcome
	MatchOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "productmatch",
			Subsystem: "matching",
			Name:      "outcomes_total",
			Help:      "Total number of matched records by path and outcome",
		},
		[]string{"path", "outcome"},
	)

	// IndexRequestDuration tracks product index call latency
	IndexRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "productmatch",
			Subsystem: "index",
			Name:      "request_duration_seconds",
			Help:      "Duration of product index calls in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"backend", "operation"},
	)

	// IndexErrorsTotal tracks failed product index calls
	IndexErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "productmatch",
			Subsystem: "index",
			Name:      "errors_total",
			Help:      "Total number of failed product index calls",
		},
		[]string{"backend", "operation"},
	)

	// CacheRequestsTotal tracks index cache lookups by result
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "productmatch",
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Total number of index cache lookups by result",
		},
		[]string{"result"},
	)

	// CacheEntries reports the size of the in-process index cache
	CacheEntries = promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "productmatch",
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Number of entries held by the in-process index cache",
		},
		func() float64 {
			if size := cacheSize.Load(); size != nil {
				return float64((*size)())
			}
			return 0
		},
	)

	// StreamRecordsTotal tracks records handled by the stream worker
	StreamRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "productmatch",
			Subsystem: "stream",
			Name:      "records_total",
			Help:      "Total number of stream records by status",
		},
		[]string{"status"},
	)
)

var cacheSize atomic.Pointer[func() int]

// TrackCacheSize makes CacheEntries report size. The latest call wins.
func TrackCacheSize(size func() int) {
	cacheSize.Store(&size)
}

// Recorder adapts the package metrics to the service observer interfaces
type Recorder struct{}

// RecordOutcome counts one classified record
func (Recorder) RecordOutcome(path string, outcome domain.MatchOutcome) {
	MatchOutcomesTotal.WithLabelValues(path, string(outcome)).Inc()
}

// ObserveCache counts one cache lookup
func (Recorder) ObserveCache(result string) {
	CacheRequestsTotal.WithLabelValues(result).Inc()
}

// RecordStream counts one stream record by status
func (Recorder) RecordStream(status string) {
	StreamRecordsTotal.WithLabelValues(status).Inc()
}

// InstrumentedIndex times every call to the wrapped product index
type InstrumentedIndex struct {
	next    domain.ProductIndex
	backend string
}

// NewInstrumentedIndex wraps next, labelling its metrics with backend
func NewInstrumentedIndex(next domain.ProductIndex, backend string) *InstrumentedIndex {
	return &InstrumentedIndex{next: next, backend: backend}
}

// LookupByGTIN delegates and records latency and failures
func (i *InstrumentedIndex) LookupByGTIN(ctx context.Context, code string) (*domain.ProductRecord, error) {
	start := time.Now()
	rec, err := i.next.LookupByGTIN(ctx, code)
	i.observe("lookup", start, err)
	return rec, err
}

// SearchByText delegates and records latency and failures
func (i *InstrumentedIndex) SearchByText(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	start := time.Now()
	candidates, err := i.next.SearchByText(ctx, query, limit)
	i.observe("search", start, err)
	return candidates, err
}

func (i *InstrumentedIndex) observe(operation string, start time.Time, err error) {
	IndexRequestDuration.WithLabelValues(i.backend, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		IndexErrorsTotal.WithLabelValues(i.backend, operation).Inc()
	}
}
