// Package batch enriches CSV files with match results, one row per record
package batch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/productmatch/backend/internal/domain"
)

const defaultChunkSize = 256

// Matcher resolves records in input order
type Matcher interface {
	MatchBatch(ctx context.Context, queries []domain.Query) ([]*domain.MatchResult, error)
}

// Binding maps one input column to a field kind
type Binding struct {
	Column string
	Field  domain.SemanticField
}

// ParseBindings parses COLUMN=KIND specs, keeping their order
func ParseBindings(specs []string) ([]Binding, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: at least one column binding is required", domain.ErrInvalidBinding)
	}
	bindings := make([]Binding, 0, len(specs))
	for _, spec := range specs {
		column, kind, ok := strings.Cut(spec, "=")
		column = strings.TrimSpace(column)
		if !ok || column == "" {
			return nil, fmt.Errorf("%w: binding %q is not COLUMN=KIND", domain.ErrInvalidBinding, spec)
		}
		field, err := domain.ParseSemanticField(kind)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, Binding{Column: column, Field: field})
	}
	return bindings, nil
}

// Summary counts rows by outcome
type Summary struct {
	Rows     int
	Outcomes map[domain.MatchOutcome]int
}

// Transformer appends the match columns to every row of a CSV stream
type Transformer struct {
	matcher   Matcher
	bindings  []Binding
	chunkSize int
	logger    *zap.Logger
}

// NewTransformer creates a transformer. Rows are matched chunkSize at a time
// (256 when zero).
func NewTransformer(matcher Matcher, bindings []Binding, chunkSize int, logger *zap.Logger) *Transformer {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transformer{matcher: matcher, bindings: bindings, chunkSize: chunkSize, logger: logger}
}

// Transform reads a CSV with a header row from r and writes it to w with the
// ten match columns appended. Empty cells are absent values. An index failure
// stops the run; rows already written stay written.
func (t *Transformer) Transform(ctx context.Context, r io.Reader, w io.Writer) (Summary, error) {
	summary := Summary{Outcomes: make(map[domain.MatchOutcome]int)}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return summary, fmt.Errorf("%w: input has no header row", domain.ErrInvalidRequest)
	}
	if err != nil {
		return summary, fmt.Errorf("read header: %w", err)
	}

	columns, err := t.resolve(header)
	if err != nil {
		return summary, err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(append(append([]string{}, header...), domain.OutputColumns...)); err != nil {
		return summary, fmt.Errorf("write header: %w", err)
	}

	rows := make([][]string, 0, t.chunkSize)
	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		if err := t.matchChunk(ctx, writer, rows, columns, &summary); err != nil {
			return err
		}
		rows = rows[:0]
		writer.Flush()
		return writer.Error()
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("read row %d: %w", summary.Rows+len(rows)+1, err)
		}
		rows = append(rows, row)
		if len(rows) == t.chunkSize {
			if err := flush(); err != nil {
				return summary, err
			}
		}
	}
	if err := flush(); err != nil {
		return summary, err
	}

	t.logger.Info("batch complete", zap.Int("rows", summary.Rows), zap.Any("outcomes", summary.Outcomes))
	return summary, nil
}

// resolve finds the header index of every bound column
func (t *Transformer) resolve(header []string) ([]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	columns := make([]int, len(t.bindings))
	for i, b := range t.bindings {
		pos, ok := index[b.Column]
		if !ok {
			return nil, fmt.Errorf("%w: column %q not found in header", domain.ErrInvalidBinding, b.Column)
		}
		columns[i] = pos
	}
	return columns, nil
}

func (t *Transformer) matchChunk(ctx context.Context, writer *csv.Writer, rows [][]string, columns []int, summary *Summary) error {
	queries := make([]domain.Query, len(rows))
	for i, row := range rows {
		q := make(domain.Query, len(t.bindings))
		for j, b := range t.bindings {
			q[j] = domain.FieldValue{Field: b.Field, Value: cell(row, columns[j])}
		}
		queries[i] = q
	}

	results, err := t.matcher.MatchBatch(ctx, queries)
	if err != nil {
		return fmt.Errorf("match rows %d-%d: %w", summary.Rows+1, summary.Rows+len(rows), err)
	}

	for i, row := range rows {
		out := append(append([]string{}, row...), formatResult(results[i])...)
		if err := writer.Write(out); err != nil {
			return fmt.Errorf("write row %d: %w", summary.Rows+1, err)
		}
		summary.Rows++
		summary.Outcomes[results[i].Outcome]++
	}
	return nil
}

// cell returns nil for missing or empty cells
func cell(row []string, i int) *string {
	if i >= len(row) || row[i] == "" {
		return nil
	}
	v := row[i]
	return &v
}

// formatResult renders the ten output values; absent values are empty cells
func formatResult(r *domain.MatchResult) []string {
	values := r.Values()
	out := make([]string, len(values))
	for i, v := range values {
		switch v := v.(type) {
		case nil:
		case string:
			out[i] = v
		case float64:
			out[i] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}
