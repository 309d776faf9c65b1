// Package stream matches records consumed from a Kafka topic and publishes
// the results to another topic
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/productmatch/backend/internal/domain"
)

// Record statuses reported to a StatusRecorder
const (
	StatusMatched = "matched"
	StatusInvalid = "invalid"
	StatusFailed  = "failed"
)

// MessageReader is the consuming half of a kafka.Reader
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageWriter is the producing half of a kafka.Writer
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Matcher resolves typed and positional records
type Matcher interface {
	Match(ctx context.Context, q domain.Query) (*domain.MatchResult, error)
	Transform(ctx context.Context, values []*string) (*domain.MatchResult, error)
}

// StatusRecorder counts handled records
type StatusRecorder interface {
	RecordStream(status string)
}

// FieldValue is one typed input value on the wire
type FieldValue struct {
	Field string  `json:"field"`
	Value *string `json:"value"`
}

// Request is one input message. Exactly one of Fields or Values is set;
// Values is bound by the configured input fields.
type Request struct {
	ID     string       `json:"id"`
	Fields []FieldValue `json:"fields,omitempty"`
	Values []*string    `json:"values,omitempty"`
}

// Response is one output message, keyed by the request id
type Response struct {
	ID     string              `json:"id"`
	Result *domain.MatchResult `json:"result,omitempty"`
	Error  string              `json:"error,omitempty"`
}

// Config holds the Kafka settings of a worker
type Config struct {
	Brokers     []string
	InputTopic  string
	OutputTopic string
	GroupID     string
}

// NewReader creates a consumer-group reader for the input topic. Offsets are
// committed explicitly by the worker.
func NewReader(cfg Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.InputTopic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})
}

// NewWriter creates a writer for the output topic, hashing keys so results
// for one id stay on one partition
func NewWriter(cfg Config) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.OutputTopic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// Worker consumes requests, matches them and publishes responses
type Worker struct {
	reader   MessageReader
	writer   MessageWriter
	matcher  Matcher
	logger   *zap.Logger
	recorder StatusRecorder
}

// NewWorker creates a worker. logger and recorder may be nil.
func NewWorker(reader MessageReader, writer MessageWriter, matcher Matcher, logger *zap.Logger, recorder StatusRecorder) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		reader:   reader,
		writer:   writer,
		matcher:  matcher,
		logger:   logger,
		recorder: recorder,
	}
}

// Run processes messages until ctx is cancelled, which returns nil.
//
// A message is committed only after its response is written. Malformed
// requests get an error response and are committed. Index, encoding and write
// failures stop the worker with the message uncommitted so it is redelivered.
func (w *Worker) Run(ctx context.Context) error {
	for {
		msg, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		out, status, err := w.handle(ctx, msg)
		if err != nil {
			w.record(StatusFailed)
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("stopping stream worker",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			return err
		}

		if err := w.writer.WriteMessages(ctx, out); err != nil {
			w.record(StatusFailed)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("write result for offset %d: %w", msg.Offset, err)
		}
		if err := w.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
		w.record(status)
	}
}

// Close closes the reader and the writer
func (w *Worker) Close() error {
	return errors.Join(w.reader.Close(), w.writer.Close())
}

// handle turns one input message into its output message
func (w *Worker) handle(ctx context.Context, msg kafka.Message) (kafka.Message, string, error) {
	var req Request
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		w.logger.Warn("malformed stream request", zap.Int64("offset", msg.Offset), zap.Error(err))
		out, err := w.response(msg, Response{ID: string(msg.Key), Error: "malformed request: " + err.Error()})
		return out, StatusInvalid, err
	}
	if req.ID == "" {
		req.ID = string(msg.Key)
	}

	result, err := w.match(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidBinding) || errors.Is(err, domain.ErrInvalidRequest) {
			w.logger.Warn("invalid stream request", zap.String("id", req.ID), zap.Error(err))
			out, err := w.response(msg, Response{ID: req.ID, Error: err.Error()})
			return out, StatusInvalid, err
		}
		return kafka.Message{}, "", err
	}
	out, err := w.response(msg, Response{ID: req.ID, Result: result})
	return out, StatusMatched, err
}

func (w *Worker) match(ctx context.Context, req Request) (*domain.MatchResult, error) {
	switch {
	case req.Fields != nil && req.Values != nil:
		return nil, fmt.Errorf("%w: request has both fields and values", domain.ErrInvalidRequest)
	case req.Values != nil:
		return w.matcher.Transform(ctx, req.Values)
	}

	q := make(domain.Query, 0, len(req.Fields))
	for _, fv := range req.Fields {
		field, err := domain.ParseSemanticField(fv.Field)
		if err != nil {
			return nil, err
		}
		q = append(q, domain.FieldValue{Field: field, Value: fv.Value})
	}
	return w.matcher.Match(ctx, q)
}

// response fails for scores JSON cannot encode, such as NaN or infinity
func (w *Worker) response(in kafka.Message, resp Response) (kafka.Message, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode response %q: %w", resp.ID, err)
	}
	key := in.Key
	if resp.ID != "" {
		key = []byte(resp.ID)
	}
	return kafka.Message{Key: key, Value: data, Headers: in.Headers}, nil
}

func (w *Worker) record(status string) {
	if w.recorder != nil {
		w.recorder.RecordStream(status)
	}
}
