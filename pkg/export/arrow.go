package export

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/strata/pkg/compression"
	"github.com/ajitpratap0/strata/pkg/errors"
)

type arrowWriter struct {
	schema     *arrow.Schema
	fileWriter *ipc.FileWriter
	rows       int64
}

func newArrowWriter(w io.Writer, schema *arrow.Schema, opts Options) (*arrowWriter, error) {
	ipcOpts := []ipc.Option{
		ipc.WithSchema(schema),
		ipc.WithAllocator(memory.NewGoAllocator()),
	}
	switch opts.Compression {
	case compression.LZ4:
		ipcOpts = append(ipcOpts, ipc.WithLZ4())
	case compression.Zstd:
		ipcOpts = append(ipcOpts, ipc.WithZstd())
	}

	fw, err := ipc.NewFileWriter(w, ipcOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to create Arrow writer")
	}
	return &arrowWriter{schema: schema, fileWriter: fw}, nil
}

// Write stores rec as one record batch.
func (aw *arrowWriter) Write(rec arrow.Record) error {
	if err := checkSchema(aw.schema, rec); err != nil {
		return err
	}
	if err := aw.fileWriter.Write(rec); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to write Arrow record batch")
	}
	aw.rows += rec.NumRows()
	return nil
}

func (aw *arrowWriter) Rows() int64 { return aw.rows }

func (aw *arrowWriter) Close() error {
	if err := aw.fileWriter.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to close Arrow writer")
	}
	return nil
}
