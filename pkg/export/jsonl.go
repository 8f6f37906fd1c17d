package export

import (
	"bufio"
	"io"
	"math"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	json "github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/compression"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/pool"
)

// jsonWriter emits one object per row with keys in column order. Masked
// values are null, object ids are hex strings, dates are RFC 3339 and raw
// bytes are base64.
type jsonWriter struct {
	schema *arrow.Schema
	keys   [][]byte
	ids    []bool
	codec  io.WriteCloser
	buf    *bufio.Writer
	line   []byte
	rows   int64
}

func newJSONWriter(w io.Writer, schema *arrow.Schema, opts Options) (*jsonWriter, error) {
	codec, err := compression.NewWriter(w, opts.Compression, opts.Level)
	if err != nil {
		return nil, err
	}

	jw := &jsonWriter{
		schema: schema,
		keys:   make([][]byte, schema.NumFields()),
		ids:    make([]bool, schema.NumFields()),
		codec:  codec,
		buf:    bufio.NewWriterSize(codec, 64*1024),
		line:   pool.Buffers.Get(4096)[:0],
	}
	for i, f := range schema.Fields() {
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to encode field name")
		}
		jw.keys[i] = key
		if v, ok := f.Metadata.GetValue(columnar.TypeMetadataKey); ok && v == columnar.TypeObjectID.String() {
			jw.ids[i] = true
		}
	}
	return jw, nil
}

func (jw *jsonWriter) Write(rec arrow.Record) error {
	if err := checkSchema(jw.schema, rec); err != nil {
		return err
	}
	cols := rec.Columns()
	for row := 0; row < int(rec.NumRows()); row++ {
		line := append(jw.line[:0], '{')
		for i, col := range cols {
			if i > 0 {
				line = append(line, ',')
			}
			line = append(line, jw.keys[i]...)
			line = append(line, ':')
			var err error
			line, err = jw.appendValue(line, i, col, row)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeData, "failed to encode value").
					WithDetail("field", jw.schema.Field(i).Name).
					WithDetail("row", jw.rows+int64(row))
			}
		}
		line = append(line, '}', '\n')
		if _, err := jw.buf.Write(line); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write JSON line")
		}
		jw.line = line
	}
	jw.rows += rec.NumRows()
	return nil
}

func (jw *jsonWriter) appendValue(dst []byte, col int, arr arrow.Array, row int) ([]byte, error) {
	if arr.IsNull(row) {
		return append(dst, "null"...), nil
	}

	var v interface{}
	switch a := arr.(type) {
	case *array.FixedSizeBinary:
		if jw.ids[col] {
			var oid primitive.ObjectID
			copy(oid[:], a.Value(row))
			v = oid.Hex()
		} else {
			v = a.Value(row)
		}
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		v = a.Value(row).ToTime(unit).UTC().Format(time.RFC3339Nano)
	case *array.Float32:
		if f := float64(a.Value(row)); math.IsNaN(f) || math.IsInf(f, 0) {
			return append(dst, "null"...), nil
		}
		v = a.Value(row)
	case *array.Float64:
		if f := a.Value(row); math.IsNaN(f) || math.IsInf(f, 0) {
			return append(dst, "null"...), nil
		}
		v = a.Value(row)
	default:
		v = arr.GetOneForMarshal(row)
	}

	b, err := json.Marshal(v)
	if err != nil {
		return dst, err
	}
	return append(dst, b...), nil
}

func (jw *jsonWriter) Rows() int64 { return jw.rows }

func (jw *jsonWriter) Close() error {
	if jw.line != nil {
		pool.Buffers.Put(jw.line)
		jw.line = nil
	}
	if err := jw.buf.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush JSON lines")
	}
	if err := jw.codec.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to finish compressed stream")
	}
	return nil
}
