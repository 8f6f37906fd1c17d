package query

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/logger"
	"github.com/ajitpratap0/strata/pkg/metrics"
	"github.com/ajitpratap0/strata/pkg/observability"
)

// ErrSessionClosed is returned by loads on a closed session.
var ErrSessionClosed = errors.Sentinel("query session closed")

// State is the lifecycle state of a Session.
type State int

const (
	// StateBuilt is a session whose query has been issued but not read.
	StateBuilt State = iota
	// StateDraining is a session that has loaded at least once.
	StateDraining
	// StateClosed is a session whose stream has been released.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger. The global logger is used otherwise.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithCollector enables Prometheus recording for the session.
func WithCollector(c *metrics.Collector) Option {
	return func(s *Session) { s.collector = c }
}

// WithTracer sets the tracer used for load spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Session) { s.tracer = t }
}

// WithNamespace labels logs and spans with a "db.collection" name.
func WithNamespace(ns string) Option {
	return func(s *Session) { s.namespace = ns }
}

// Session pairs one document stream with one column set and drains the
// stream into the set's buffers. It does not own the set. A Session is not
// safe for concurrent use.
type Session struct {
	stream Stream
	set    *columnar.Set

	state    State
	row      int
	failures int64
	err      error

	namespace string
	logger    *zap.Logger
	collector *metrics.Collector
	tracer    trace.Tracer
	reported  map[string]int64
}

// NewSession creates a session over stream that loads into set. Every column
// of set must be bound.
func NewSession(stream Stream, set *columnar.Set, opts ...Option) (*Session, error) {
	if stream == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "stream is required")
	}
	if set == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "column set is required")
	}
	if err := set.Ready(); err != nil {
		return nil, err
	}

	s := &Session{
		stream:   stream,
		set:      set,
		state:    StateBuilt,
		reported: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.namespace == "" && s.collector != nil {
		s.namespace = s.collector.Collection()
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger = s.logger.With(zap.String("collection", s.namespace))
	return s, nil
}

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// RowsLoaded returns the current row index, the number of rows written since
// the session was built or the last block started.
func (s *Session) RowsLoaded() int { return s.row }

// Failures returns the total number of failed fields across all loads.
func (s *Session) Failures() int64 { return s.failures }

// Err returns the last transport error observed by Load.
func (s *Session) Err() error { return s.err }

// Set returns the destination column set.
func (s *Session) Set() *columnar.Set { return s.set }

// Load drains the stream into the column set until the set is full, the
// stream is exhausted or the stream reports a transport error. It returns
// the number of rows written by this call. On a transport error the rows
// already written stay valid and the error is returned alongside the count.
func (s *Session) Load(ctx context.Context) (int, error) {
	if s.state == StateClosed {
		return 0, errors.Wrap(ErrSessionClosed, errors.ErrorTypeQuery, "cannot load")
	}
	s.state = StateDraining

	capacity := s.set.NumRows()
	start := s.row

	ctx, span := observability.StartSpan(ctx, s.tracer, "strata.query.load",
		attribute.String("strata.collection", s.namespace),
		attribute.Int("strata.capacity", capacity),
		attribute.Int("strata.start_row", start),
	)
	defer span.End()
	timer := metrics.NewTimer()

	s.logger.Debug("load started",
		zap.Int("start_row", start),
		zap.Int("capacity", capacity),
		zap.Int("columns", s.set.NumColumns()))

	var failures int64
	for s.stream.Err() == nil && s.stream.More() && s.row < capacity {
		doc, ok := s.stream.Next(ctx)
		if !ok {
			continue
		}
		failures += int64(s.set.DecodeRow(doc, s.row))
		s.row++
	}

	loaded := s.row - start
	s.failures += failures
	elapsed := timer.Stop()
	s.recordFailures()

	span.SetAttribute("strata.rows", loaded)
	span.SetAttribute("strata.failures", failures)

	if err := s.stream.Err(); err != nil {
		s.err = err
		if s.collector != nil {
			s.collector.StreamError()
			s.collector.ObserveLoad(loaded, elapsed)
		}
		s.logger.Warn("load stopped by stream error",
			zap.Int("rows", loaded),
			zap.Int64("failures", failures),
			zap.Duration("duration", elapsed),
			zap.Error(err))
		werr := errors.Wrap(err, errors.ErrorTypeConnection, "cursor error during load").
			WithDetail("rows_loaded", loaded)
		span.RecordError(werr)
		return loaded, werr
	}

	if s.collector != nil {
		s.collector.ObserveLoad(loaded, elapsed)
	}
	s.logger.Info("load completed",
		zap.Int("rows", loaded),
		zap.Int64("failures", failures),
		zap.Duration("duration", elapsed),
		zap.Bool("full", s.row == capacity))
	span.RecordError(nil)
	return loaded, nil
}

// recordFailures pushes per-field failure deltas to the collector.
func (s *Session) recordFailures() {
	if s.collector == nil {
		return
	}
	for field, total := range s.set.FailureCounts() {
		if delta := total - s.reported[field]; delta > 0 {
			s.collector.AddFieldFailures(field, delta)
		}
		s.reported[field] = total
	}
}

// NextBlock rewinds the row index and loads the next block of documents
// into the same buffers. Rows past the returned count hold data from the
// previous block.
func (s *Session) NextBlock(ctx context.Context) (int, error) {
	if s.state == StateClosed {
		return 0, errors.Wrap(ErrSessionClosed, errors.ErrorTypeQuery, "cannot load block")
	}
	s.row = 0
	return s.Load(ctx)
}

// LoadBlocks streams the whole result through the column set one block at
// a time, calling fn with the row count of each non-empty block. It stops at
// the first short block, the first error from fn, or a transport error, and
// returns the total number of rows loaded.
func (s *Session) LoadBlocks(ctx context.Context, fn func(rows int) error) (int, error) {
	if s.set.NumRows() == 0 {
		return 0, errors.New(errors.ErrorTypeValidation, "block loading needs a non-empty column set")
	}

	total := 0
	for block := 0; ; block++ {
		n, err := s.NextBlock(ctx)
		total += n
		if n > 0 {
			if ferr := fn(n); ferr != nil {
				return total, errors.Wrap(ferr, errors.ErrorTypeQuery, "block handler failed").
					WithDetail("block", block)
			}
		}
		if err != nil {
			return total, err
		}
		if n < s.set.NumRows() {
			return total, nil
		}
	}
}

// Close releases the stream. It is safe to call in any state and more than
// once; the stream is closed exactly once. The column set is never touched.
func (s *Session) Close(ctx context.Context) error {
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	if err := s.stream.Close(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to close stream")
	}
	s.logger.Debug("session closed",
		zap.Int("rows", s.row),
		zap.Int64("failures", s.failures))
	return nil
}
