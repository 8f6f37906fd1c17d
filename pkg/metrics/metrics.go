// Package metrics provides Prometheus instrumentation for strata loads.
//
// # Overview
//
// All collectors are registered with the default Prometheus registry at
// package init and labelled by the queried namespace ("db.collection").
// A Collector binds those vectors to one namespace so a query session can
// record without repeating label values:
//
//	collector := metrics.NewCollector("shop.orders")
//	timer := metrics.NewTimer()
//	rows, err := session.Load(ctx)
//	collector.ObserveLoad(rows, timer.Stop())
//
// Per-field decode failures are counted with a field label so a dashboard can
// spot document shapes drifting away from the declared columns.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsLoaded counts documents decoded into column buffers.
	// Labels: collection
	RowsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_rows_loaded_total",
			Help: "Total number of documents decoded into column buffers",
		},
		[]string{"collection"},
	)

	// FieldFailures counts fields that were absent or had an incompatible wire type.
	// Labels: collection, field
	FieldFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_field_failures_total",
			Help: "Total number of fields that could not be decoded",
		},
		[]string{"collection", "field"},
	)

	// LoadDuration tracks the wall time of one Load call.
	// Labels: collection
	LoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "strata_load_duration_seconds",
			Help: "Duration of a column load in seconds",
			Buckets: []float64{
				0.001, // 1ms - small blocks from a warm cursor
				0.01,
				0.1,
				1,
				10,
				60, // 1m - multi-million row loads
			},
		},
		[]string{"collection"},
	)

	// StreamErrors counts transport errors that ended a load early.
	// Labels: collection
	StreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_stream_errors_total",
			Help: "Total number of cursor errors that stopped a load",
		},
		[]string{"collection"},
	)

	// Throughput tracks the rows per second of the last load.
	// Labels: collection
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strata_throughput_rows_per_second",
			Help: "Rows per second of the most recent load",
		},
		[]string{"collection"},
	)
)

// Collector records metrics for one namespace.
type Collector struct {
	collection string

	rows       prometheus.Counter
	duration   prometheus.Observer
	streamErrs prometheus.Counter
	throughput prometheus.Gauge

	mu     sync.Mutex
	fields map[string]prometheus.Counter
}

// NewCollector creates a collector for the given namespace.
func NewCollector(collection string) *Collector {
	return &Collector{
		collection: collection,
		rows:       RowsLoaded.WithLabelValues(collection),
		duration:   LoadDuration.WithLabelValues(collection),
		streamErrs: StreamErrors.WithLabelValues(collection),
		throughput: Throughput.WithLabelValues(collection),
		fields:     make(map[string]prometheus.Counter),
	}
}

// Collection returns the namespace label of the collector.
func (c *Collector) Collection() string {
	return c.collection
}

// ObserveLoad records the rows and duration of one load.
func (c *Collector) ObserveLoad(rows int, d time.Duration) {
	c.rows.Add(float64(rows))
	c.duration.Observe(d.Seconds())
	if secs := d.Seconds(); secs > 0 {
		c.throughput.Set(float64(rows) / secs)
	}
}

// AddFieldFailures adds n failures for field.
func (c *Collector) AddFieldFailures(field string, n int64) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	counter, ok := c.fields[field]
	if !ok {
		counter = FieldFailures.WithLabelValues(c.collection, field)
		c.fields[field] = counter
	}
	c.mu.Unlock()
	counter.Add(float64(n))
}

// StreamError records a transport error.
func (c *Collector) StreamError() {
	c.streamErrs.Inc()
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. It can be called
// repeatedly.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
