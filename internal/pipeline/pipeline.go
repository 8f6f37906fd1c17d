// Package pipeline runs a strata job end to end: it sizes and allocates
// column buffers, issues the query, drains the cursor into the buffers and
// exports the result.
//
// # Overview
//
// A Pipeline is single-threaded and pull-based. In full mode the buffers
// hold every matching document and are exported once. In block mode
// (block_size > 0) the buffers hold one block and are refilled until the
// cursor is drained, each block appended to the same output file.
//
// # Basic Usage
//
//	p, err := pipeline.New(cfg, client.Collection(db, coll), logger)
//	if err != nil {
//		return err
//	}
//	result, err := p.Run(ctx, out)
package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/config"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/export"
	"github.com/ajitpratap0/strata/pkg/metrics"
	"github.com/ajitpratap0/strata/pkg/observability"
	"github.com/ajitpratap0/strata/pkg/query"
)

// Result summarizes a finished run.
type Result struct {
	Namespace     string           `json:"namespace"`
	Format        string           `json:"format"`
	Capacity      int              `json:"capacity"`
	Rows          int              `json:"rows"`
	Blocks        int              `json:"blocks"`
	Failures      int64            `json:"failures"`
	FieldFailures map[string]int64 `json:"field_failures"`
	Duration      time.Duration    `json:"duration_ns"`
}

// Pipeline executes one job configuration against a collection.
type Pipeline struct {
	cfg       *config.JobConfig
	coll      query.Collection
	logger    *zap.Logger
	collector *metrics.Collector
	mem       memory.Allocator
}

// New validates cfg and prepares a pipeline over coll.
func New(cfg *config.JobConfig, coll query.Collection, logger *zap.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "job configuration is required")
	}
	if coll == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "collection is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ns := cfg.Query.Namespace()
	p := &Pipeline{
		cfg:    cfg,
		coll:   coll,
		logger: logger.With(zap.String("collection", ns)),
		mem:    memory.NewGoAllocator(),
	}
	if cfg.Observability.EnableMetrics {
		p.collector = metrics.NewCollector(ns)
	}
	return p, nil
}

// Capacity returns the number of rows the column buffers must hold.
func (p *Pipeline) Capacity(ctx context.Context) (int, error) {
	q := &p.cfg.Query
	switch {
	case q.BlockSize > 0:
		return q.BlockSize, nil
	case q.Rows > 0:
		return q.Rows, nil
	case len(q.Pipeline) > 0:
		return 0, errors.New(errors.ErrorTypeConfig, "query.rows or query.block_size is required with a pipeline")
	}

	filter, err := q.FilterDocument()
	if err != nil {
		return 0, err
	}
	n, err := query.Count(ctx, p.coll, filter, q.Skip, q.Limit)
	if err != nil {
		return 0, err
	}
	p.logger.Debug("sized buffers from count", zap.Int64("count", n))
	return int(n), nil
}

// NewColumnSet allocates buffers for every configured column.
func (p *Pipeline) NewColumnSet(capacity int) (*columnar.Set, error) {
	specs, err := p.cfg.ColumnSpecs()
	if err != nil {
		return nil, err
	}
	set, err := columnar.New(len(specs), capacity)
	if err != nil {
		return nil, err
	}
	for i, spec := range specs {
		storage, mask, err := columnar.AllocColumn(spec.Type, spec.TypeArg, capacity)
		if err != nil {
			return nil, err
		}
		if err := set.SetColumn(i, spec.Field, spec.Type, spec.TypeArg, storage, mask); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func (p *Pipeline) openStream(ctx context.Context, set *columnar.Set) (query.Stream, error) {
	q := &p.cfg.Query
	if len(q.Pipeline) > 0 {
		stages, err := q.PipelineDocuments()
		if err != nil {
			return nil, err
		}
		return query.Aggregate(ctx, p.coll, stages, q.BatchSize)
	}

	filter, err := q.FilterDocument()
	if err != nil {
		return nil, err
	}
	req := query.Request{
		Filter:       filter,
		Skip:         q.Skip,
		Limit:        q.Limit,
		SelectFields: q.SelectFields,
		BatchSize:    q.BatchSize,
	}
	if q.SelectFields {
		req.Projection = query.Projection(set)
	}
	return query.Find(ctx, p.coll, req)
}

// Run executes the job and writes the export to out.
func (p *Pipeline) Run(ctx context.Context, out io.Writer) (*Result, error) {
	ctx, span := observability.StartSpan(ctx, nil, "strata.pipeline.run")
	defer span.End()

	result, err := p.run(ctx, out)
	span.RecordError(err)
	if result != nil {
		span.SetAttribute("strata.rows", result.Rows)
		span.SetAttribute("strata.blocks", result.Blocks)
	}
	return result, err
}

func (p *Pipeline) run(ctx context.Context, out io.Writer) (*Result, error) {
	start := time.Now()
	format, opts, err := p.cfg.Output.ExportOptions()
	if err != nil {
		return nil, err
	}

	capacity, err := p.Capacity(ctx)
	if err != nil {
		return nil, err
	}
	set, err := p.NewColumnSet(capacity)
	if err != nil {
		return nil, err
	}
	defer set.Release()

	stream, err := p.openStream(ctx, set)
	if err != nil {
		return nil, err
	}

	sessionOpts := []query.Option{
		query.WithLogger(p.logger),
		query.WithNamespace(p.cfg.Query.Namespace()),
	}
	if p.collector != nil {
		sessionOpts = append(sessionOpts, query.WithCollector(p.collector))
	}
	session, err := query.NewSession(stream, set, sessionOpts...)
	if err != nil {
		_ = stream.Close(ctx)
		return nil, err
	}
	defer session.Close(context.Background()) //nolint:errcheck // closed explicitly below

	w, err := export.NewWriter(out, format, set.ArrowSchema(), opts)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Namespace: p.cfg.Query.Namespace(),
		Format:    string(format),
		Capacity:  capacity,
	}

	writeBlock := func(rows int) error {
		rec, err := set.ToArrow(p.mem, rows)
		if err != nil {
			return err
		}
		defer rec.Release()
		result.Blocks++
		return w.Write(rec)
	}

	var loadErr error
	if p.cfg.Query.BlockSize > 0 {
		result.Rows, loadErr = session.LoadBlocks(ctx, writeBlock)
	} else {
		// Rows loaded before a transport error are valid and still exported.
		result.Rows, loadErr = session.Load(ctx)
		if werr := writeBlock(result.Rows); loadErr == nil {
			loadErr = werr
		}
	}

	closeErr := w.Close()
	if err := session.Close(ctx); err != nil && loadErr == nil {
		loadErr = err
	}
	if loadErr == nil {
		loadErr = closeErr
	}

	result.Failures = session.Failures()
	result.FieldFailures = set.FailureCounts()
	result.Duration = time.Since(start)

	if loadErr != nil {
		p.logger.Error("pipeline failed", zap.Int("rows", result.Rows), zap.Error(loadErr))
		return result, loadErr
	}
	p.logger.Info("pipeline completed",
		zap.Int("rows", result.Rows),
		zap.Int("blocks", result.Blocks),
		zap.Int64("failures", result.Failures),
		zap.Duration("duration", result.Duration))
	return result, nil
}
