// Package export writes loaded column sets to files.
//
// A Writer accepts one Arrow record per block, so a result larger than the
// column buffers can be streamed into a single output:
//
//	w, err := export.NewWriter(f, export.Parquet, set.ArrowSchema(), export.Options{
//		Compression: compression.Zstd,
//	})
//	if err != nil {
//		return err
//	}
//	_, err = session.LoadBlocks(ctx, func(rows int) error {
//		rec, err := set.ToArrow(nil, rows)
//		if err != nil {
//			return err
//		}
//		defer rec.Release()
//		return w.Write(rec)
//	})
//	if cerr := w.Close(); err == nil {
//		err = cerr
//	}
//
// Closing a Writer finishes the file format but leaves the destination open.
package export

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/strata/pkg/compression"
	"github.com/ajitpratap0/strata/pkg/errors"
)

// Format is an output file format.
type Format string

const (
	// Parquet writes an Apache Parquet file.
	Parquet Format = "parquet"
	// Arrow writes an Arrow IPC file.
	Arrow Format = "arrow"
	// JSONLines writes one JSON object per row.
	JSONLines Format = "jsonl"
)

// Formats returns every supported format.
func Formats() []Format {
	return []Format{Parquet, Arrow, JSONLines}
}

// ParseFormat resolves a case-insensitive format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case Parquet, Arrow, JSONLines:
		return f, nil
	case "ipc", "feather":
		return Arrow, nil
	case "ndjson":
		return JSONLines, nil
	}
	return "", errors.Newf(errors.ErrorTypeConfig, "unsupported output format %q", s)
}

// FormatFromPath guesses the format from a file name, ignoring a trailing
// compression suffix.
func FormatFromPath(path string) (Format, bool) {
	name := strings.ToLower(filepath.Base(path))
	for _, alg := range compression.Algorithms() {
		if ext := compression.Extension(alg); ext != "" {
			name = strings.TrimSuffix(name, ext)
		}
	}
	switch filepath.Ext(name) {
	case ".parquet", ".pq":
		return Parquet, true
	case ".arrow", ".ipc", ".feather":
		return Arrow, true
	case ".jsonl", ".ndjson", ".json":
		return JSONLines, true
	}
	return "", false
}

// Options tunes a Writer.
type Options struct {
	// Compression applies to Parquet column chunks, Arrow IPC buffers
	// or the whole JSON lines stream.
	Compression compression.Algorithm
	Level       compression.Level
}

var supported = map[Format][]compression.Algorithm{
	Parquet:   {compression.None, compression.Snappy, compression.Gzip, compression.Zstd, compression.LZ4},
	Arrow:     {compression.None, compression.LZ4, compression.Zstd},
	JSONLines: compression.Algorithms(),
}

// Validate checks that the compression is supported by format.
func (o Options) Validate(format Format) error {
	algs, ok := supported[format]
	if !ok {
		return errors.Newf(errors.ErrorTypeConfig, "unsupported output format %q", string(format))
	}
	c := o.Compression
	if c == "" {
		c = compression.None
	}
	for _, alg := range algs {
		if alg == c {
			return nil
		}
	}
	return errors.Newf(errors.ErrorTypeConfig, "compression %q is not supported for %s output", string(c), format)
}

// Writer appends Arrow records to an output stream.
type Writer interface {
	// Write appends every row of rec. The record must match the schema
	// the writer was created with.
	Write(rec arrow.Record) error
	// Rows returns the number of rows written so far.
	Rows() int64
	// Close finishes the file. It does not close the destination.
	Close() error
}

// writerOnly hides a destination's Close from format writers that would
// otherwise close it.
type writerOnly struct{ io.Writer }

// NewWriter creates a Writer for schema on w.
func NewWriter(w io.Writer, format Format, schema *arrow.Schema, opts Options) (Writer, error) {
	if err := opts.Validate(format); err != nil {
		return nil, err
	}
	if schema == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "schema is required")
	}
	if opts.Level == 0 {
		opts.Level = compression.Default
	}

	switch format {
	case Parquet:
		return newParquetWriter(writerOnly{w}, schema, opts)
	case Arrow:
		return newArrowWriter(writerOnly{w}, schema, opts)
	default:
		return newJSONWriter(w, schema, opts)
	}
}

// Write writes a single record to w as a complete file.
func Write(w io.Writer, format Format, rec arrow.Record, opts Options) error {
	fw, err := NewWriter(w, format, rec.Schema(), opts)
	if err != nil {
		return err
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

func checkSchema(want *arrow.Schema, rec arrow.Record) error {
	if !want.Equal(rec.Schema()) {
		return errors.New(errors.ErrorTypeValidation, "record schema does not match writer schema")
	}
	return nil
}
