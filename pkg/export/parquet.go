package export

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	pqcompress "github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/strata/pkg/compression"
	"github.com/ajitpratap0/strata/pkg/errors"
)

type parquetWriter struct {
	schema     *arrow.Schema
	fileWriter *pqarrow.FileWriter
	rows       int64
}

func newParquetWriter(w io.Writer, schema *arrow.Schema, opts Options) (*parquetWriter, error) {
	pool := memory.NewGoAllocator()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(parquetCodec(opts.Compression)),
		parquet.WithDictionaryDefault(true),
		parquet.WithAllocator(pool),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(pool),
		pqarrow.WithStoreSchema(),
	)

	fw, err := pqarrow.NewFileWriter(schema, w, props, arrowProps)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to create Parquet writer")
	}
	return &parquetWriter{schema: schema, fileWriter: fw}, nil
}

func parquetCodec(alg compression.Algorithm) pqcompress.Compression {
	switch alg {
	case compression.Snappy:
		return pqcompress.Codecs.Snappy
	case compression.Gzip:
		return pqcompress.Codecs.Gzip
	case compression.Zstd:
		return pqcompress.Codecs.Zstd
	case compression.LZ4:
		return pqcompress.Codecs.Lz4Raw
	default:
		return pqcompress.Codecs.Uncompressed
	}
}

// Write stores rec as one row group.
func (pw *parquetWriter) Write(rec arrow.Record) error {
	if err := checkSchema(pw.schema, rec); err != nil {
		return err
	}
	if rec.NumRows() == 0 {
		return nil
	}
	if err := pw.fileWriter.Write(rec); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to write Parquet row group")
	}
	pw.rows += rec.NumRows()
	return nil
}

func (pw *parquetWriter) Rows() int64 { return pw.rows }

func (pw *parquetWriter) Close() error {
	if err := pw.fileWriter.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to close Parquet writer")
	}
	return nil
}
