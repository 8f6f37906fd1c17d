package config

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap/zapcore"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/compression"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/export"
)

// JobConfig describes one load: where to connect, what to query, which
// fields to extract and where to write them.
type JobConfig struct {
	// Connection settings for the MongoDB deployment
	Connection ConnectionConfig `yaml:"connection" json:"connection"`

	// Query selects the documents to load
	Query QueryConfig `yaml:"query" json:"query"`

	// Columns lists the extracted fields in output order
	Columns []ColumnConfig `yaml:"columns" json:"columns"`

	// Output controls the exported file
	Output OutputConfig `yaml:"output" json:"output"`

	// Observability settings for logging, metrics and tracing
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// ConnectionConfig contains MongoDB client settings.
type ConnectionConfig struct {
	// URI is a mongodb:// or mongodb+srv:// connection string
	URI string `yaml:"uri" json:"uri"`
	// AppName is reported to the server in the handshake
	AppName string `yaml:"app_name" json:"app_name"`
	// Username and Password override credentials in the URI when set
	Username   string `yaml:"username" json:"username"`
	Password   string `yaml:"password" json:"-"`
	AuthSource string `yaml:"auth_source" json:"auth_source"`
	// ConnectTimeout bounds dialing a single server
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	// ServerSelectionTimeout bounds finding a suitable server
	ServerSelectionTimeout time.Duration `yaml:"server_selection_timeout" json:"server_selection_timeout"`
	// MaxPoolSize caps open connections per server
	MaxPoolSize uint64 `yaml:"max_pool_size" json:"max_pool_size"`
}

// QueryConfig selects the documents to load.
type QueryConfig struct {
	Database   string `yaml:"database" json:"database"`
	Collection string `yaml:"collection" json:"collection"`
	// Filter is a query document in Extended JSON
	Filter string `yaml:"filter" json:"filter"`
	// Pipeline is a list of aggregation stages in Extended JSON. When set
	// the load runs an aggregation instead of a find.
	Pipeline []string `yaml:"pipeline" json:"pipeline"`
	Skip     int64    `yaml:"skip" json:"skip"`
	Limit    int64    `yaml:"limit" json:"limit"`
	// SelectFields sends a projection of the configured columns
	SelectFields bool  `yaml:"select_fields" json:"select_fields"`
	BatchSize    int32 `yaml:"batch_size" json:"batch_size"`
	// Rows is the buffer capacity. Zero sizes the buffers from a count
	// of the matching documents.
	Rows int `yaml:"rows" json:"rows"`
	// BlockSize enables block loading: buffers hold BlockSize rows and are
	// refilled until the cursor is drained.
	BlockSize int `yaml:"block_size" json:"block_size"`
}

// ColumnConfig declares one extracted field.
type ColumnConfig struct {
	// Field is a top-level or dotted field path
	Field string `yaml:"field" json:"field"`
	// Type is a semantic type such as "int32" or "string:16"
	Type string `yaml:"type" json:"type"`
}

// OutputConfig controls the exported file.
type OutputConfig struct {
	// Path of the output file; "-" writes to stdout
	Path string `yaml:"path" json:"path"`
	// Format is parquet, arrow or jsonl. Guessed from Path when empty.
	Format      string `yaml:"format" json:"format"`
	Compression string `yaml:"compression" json:"compression"`
}

// ObservabilityConfig contains logging, metrics and tracing settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level" json:"log_level"`
	LogEncoding string `yaml:"log_encoding" json:"log_encoding"`
	// EnableMetrics records Prometheus series during the load
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// MetricsFile receives the registry in text format at the end of the
	// run, for the node exporter textfile collector.
	MetricsFile   string  `yaml:"metrics_file" json:"metrics_file"`
	EnableTracing bool    `yaml:"enable_tracing" json:"enable_tracing"`
	SamplingRate  float64 `yaml:"sampling_rate" json:"sampling_rate"`
}

// NewJobConfig returns a configuration with defaults applied.
func NewJobConfig() *JobConfig {
	cfg := &JobConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields with sensible defaults.
func (c *JobConfig) ApplyDefaults() {
	if c.Connection.URI == "" {
		c.Connection.URI = "mongodb://localhost:27017"
	}
	if c.Connection.AppName == "" {
		c.Connection.AppName = "strata"
	}
	if c.Connection.ConnectTimeout == 0 {
		c.Connection.ConnectTimeout = 10 * time.Second
	}
	if c.Connection.ServerSelectionTimeout == 0 {
		c.Connection.ServerSelectionTimeout = 10 * time.Second
	}
	if c.Query.BatchSize == 0 {
		c.Query.BatchSize = 1000
	}
	if c.Output.Format == "" {
		if f, ok := export.FormatFromPath(c.Output.Path); ok {
			c.Output.Format = string(f)
		} else {
			c.Output.Format = string(export.Parquet)
		}
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
	if c.Observability.LogEncoding == "" {
		c.Observability.LogEncoding = "json"
	}
	if c.Observability.SamplingRate == 0 {
		c.Observability.SamplingRate = 1.0
	}
}

func invalid(message string) *errors.Error {
	return errors.New(errors.ErrorTypeConfig, message)
}

// Validate validates the configuration for correctness.
func (c *JobConfig) Validate() error {
	if c.Connection.URI == "" {
		return invalid("connection.uri is required")
	}
	if c.Query.Database == "" {
		return invalid("query.database is required")
	}
	if c.Query.Collection == "" {
		return invalid("query.collection is required")
	}
	if c.Query.Skip < 0 || c.Query.Limit < 0 {
		return invalid("query.skip and query.limit cannot be negative")
	}
	if c.Query.Rows < 0 {
		return invalid("query.rows cannot be negative")
	}
	if c.Query.BlockSize < 0 {
		return invalid("query.block_size cannot be negative")
	}
	if c.Query.BatchSize < 0 {
		return invalid("query.batch_size cannot be negative")
	}
	if len(c.Query.Pipeline) > 0 && (c.Query.Filter != "" || c.Query.Skip > 0 || c.Query.Limit > 0) {
		return invalid("query.pipeline cannot be combined with filter, skip or limit")
	}
	if _, err := c.Query.FilterDocument(); err != nil {
		return err
	}
	if _, err := c.Query.PipelineDocuments(); err != nil {
		return err
	}

	if len(c.Columns) == 0 {
		return invalid("at least one column is required")
	}
	if len(c.Columns) > columnar.MaxColumns {
		return errors.Newf(errors.ErrorTypeConfig, "at most %d columns are supported", columnar.MaxColumns)
	}
	for i, col := range c.Columns {
		if col.Field == "" {
			return invalid("column field is required").WithDetail("index", i)
		}
		if _, _, err := columnar.ParseType(col.Type); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid column type").
				WithDetail("index", i).
				WithDetail("field", col.Field)
		}
	}

	format, err := export.ParseFormat(c.Output.Format)
	if err != nil {
		return err
	}
	alg, err := compression.ParseAlgorithm(c.Output.Compression)
	if err != nil {
		return err
	}
	if err := (export.Options{Compression: alg}).Validate(format); err != nil {
		return err
	}

	if _, err := zapcore.ParseLevel(c.Observability.LogLevel); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid observability.log_level")
	}
	switch c.Observability.LogEncoding {
	case "json", "console":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "invalid observability.log_encoding %q", c.Observability.LogEncoding)
	}
	if c.Observability.SamplingRate < 0 || c.Observability.SamplingRate > 1 {
		return invalid("observability.sampling_rate must be between 0 and 1")
	}
	return nil
}

// Namespace returns "database.collection".
func (q *QueryConfig) Namespace() string {
	return q.Database + "." + q.Collection
}

// FilterDocument converts Filter to BSON. An empty filter yields nil, which
// matches every document.
func (q *QueryConfig) FilterDocument() (bson.Raw, error) {
	if q.Filter == "" {
		return nil, nil
	}
	return parseExtJSON(q.Filter, "query.filter", -1)
}

// PipelineDocuments converts Pipeline to BSON stages.
func (q *QueryConfig) PipelineDocuments() ([]bson.Raw, error) {
	if len(q.Pipeline) == 0 {
		return nil, nil
	}
	stages := make([]bson.Raw, len(q.Pipeline))
	for i, s := range q.Pipeline {
		doc, err := parseExtJSON(s, "query.pipeline", i)
		if err != nil {
			return nil, err
		}
		stages[i] = doc
	}
	return stages, nil
}

func parseExtJSON(s, what string, stage int) (bson.Raw, error) {
	var doc bson.Raw
	if err := bson.UnmarshalExtJSON([]byte(s), false, &doc); err != nil {
		werr := errors.Wrap(err, errors.ErrorTypeConfig, "invalid Extended JSON in "+what)
		if stage >= 0 {
			werr.WithDetail("stage", stage)
		}
		return nil, werr
	}
	return doc, nil
}

// ColumnSpec is a parsed column declaration.
type ColumnSpec struct {
	Field   string
	Type    columnar.Type
	TypeArg int
}

// ColumnSpecs parses the configured column types.
func (c *JobConfig) ColumnSpecs() ([]ColumnSpec, error) {
	specs := make([]ColumnSpec, len(c.Columns))
	for i, col := range c.Columns {
		typ, arg, err := columnar.ParseType(col.Type)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid column type").
				WithDetail("index", i).
				WithDetail("field", col.Field)
		}
		specs[i] = ColumnSpec{Field: col.Field, Type: typ, TypeArg: arg}
	}
	return specs, nil
}

// ExportOptions returns the parsed output format and writer options.
func (o *OutputConfig) ExportOptions() (export.Format, export.Options, error) {
	format, err := export.ParseFormat(o.Format)
	if err != nil {
		return "", export.Options{}, err
	}
	alg, err := compression.ParseAlgorithm(o.Compression)
	if err != nil {
		return "", export.Options{}, err
	}
	opts := export.Options{Compression: alg}
	if err := opts.Validate(format); err != nil {
		return "", export.Options{}, err
	}
	return format, opts, nil
}
