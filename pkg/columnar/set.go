package columnar

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/ajitpratap0/strata/pkg/errors"
)

const (
	// MaxColumns bounds the number of columns in a Set.
	MaxColumns = 1024
	// MaxFieldLength bounds the byte length of a column's field name.
	MaxFieldLength = 1024
)

var (
	ErrTooManyColumns  = errors.Sentinel("too many columns")
	ErrInvalidRows     = errors.Sentinel("invalid row count")
	ErrIndexOutOfRange = errors.Sentinel("column index out of range")
	ErrInvalidType     = errors.Sentinel("invalid column type")
	ErrTypeArg         = errors.Sentinel("invalid type argument")
	ErrFieldName       = errors.Sentinel("invalid field name")
	ErrMissingBuffer   = errors.Sentinel("missing or short buffer")
	ErrUnbound         = errors.Sentinel("column not bound")
	ErrReleased        = errors.Sentinel("column set released")
)

// Set is the destination layout for one query: an ordered list of columns
// sharing a row capacity. It owns its field name copies, never the buffers.
type Set struct {
	columns  []Column
	numRows  int
	released bool
}

// New allocates an empty Set. Columns must be bound with SetColumn before the
// Set is handed to a query session.
func New(numColumns, numRows int) (*Set, error) {
	if numColumns < 0 || numColumns > MaxColumns {
		return nil, errors.Wrap(ErrTooManyColumns, errors.ErrorTypeValidation, "cannot allocate column set").
			WithDetail("num_columns", numColumns).
			WithDetail("max_columns", MaxColumns)
	}
	if numRows < 0 {
		return nil, errors.Wrap(ErrInvalidRows, errors.ErrorTypeValidation, "cannot allocate column set").
			WithDetail("num_rows", numRows)
	}
	return &Set{
		columns: make([]Column, numColumns),
		numRows: numRows,
	}, nil
}

// NumColumns returns the number of column slots.
func (s *Set) NumColumns() int { return len(s.columns) }

// NumRows returns the row capacity.
func (s *Set) NumRows() int { return s.numRows }

// Column returns the column at index i.
func (s *Set) Column(i int) *Column { return &s.columns[i] }

// Columns returns the column slots in order. The slice aliases the Set.
func (s *Set) Columns() []Column { return s.columns }

// Fields returns the field names in column order.
func (s *Set) Fields() []string {
	out := make([]string, len(s.columns))
	for i := range s.columns {
		out[i] = s.columns[i].field
	}
	return out
}

// SetColumn binds one column slot to a field, a semantic type and caller
// buffers. storage must hold at least NumRows slots of the type's width and
// mask at least NumRows bytes. On failure the slot is left unchanged.
func (s *Set) SetColumn(index int, field string, typ Type, typeArg int, storage, mask []byte) error {
	if s.released {
		return errors.Wrap(ErrReleased, errors.ErrorTypeValidation, "cannot bind column")
	}
	if index < 0 || index >= len(s.columns) {
		return errors.Wrap(ErrIndexOutOfRange, errors.ErrorTypeValidation, "cannot bind column").
			WithDetail("index", index).
			WithDetail("num_columns", len(s.columns))
	}
	if !typ.Valid() {
		return errors.Wrap(ErrInvalidType, errors.ErrorTypeValidation, "cannot bind column").
			WithDetail("index", index).
			WithDetail("type", int(typ))
	}
	stride := typ.Width(typeArg)
	if stride == 0 {
		return errors.Wrap(ErrTypeArg, errors.ErrorTypeValidation, "variable-width type needs a positive width").
			WithDetail("index", index).
			WithDetail("type", typ.String()).
			WithDetail("type_arg", typeArg)
	}
	field = strings.Clone(field)
	path, err := splitField(field)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "cannot bind column").
			WithDetail("index", index).
			WithDetail("field_length", len(field))
	}
	if storage == nil || mask == nil || len(storage) < s.numRows*stride || len(mask) < s.numRows {
		return errors.Wrap(ErrMissingBuffer, errors.ErrorTypeValidation, "cannot bind column").
			WithDetail("index", index).
			WithDetail("storage_bytes", len(storage)).
			WithDetail("mask_bytes", len(mask)).
			WithDetail("required_storage_bytes", s.numRows*stride)
	}

	if !typ.VariableWidth() {
		typeArg = 0
	}
	s.columns[index] = Column{
		field:   field,
		path:    path,
		typ:     typ,
		typeArg: typeArg,
		stride:  stride,
		storage: storage[: s.numRows*stride : s.numRows*stride],
		mask:    mask[:s.numRows:s.numRows],
		load:    loaders[typ],
	}
	return nil
}

func splitField(field string) ([]string, error) {
	if field == "" || len(field) > MaxFieldLength {
		return nil, ErrFieldName
	}
	path := strings.Split(field, ".")
	for _, p := range path {
		if p == "" {
			return nil, ErrFieldName
		}
	}
	return path, nil
}

// Ready returns an error naming the first unbound column.
func (s *Set) Ready() error {
	if s.released {
		return errors.Wrap(ErrReleased, errors.ErrorTypeValidation, "column set not usable")
	}
	for i := range s.columns {
		if !s.columns[i].Bound() {
			return errors.Wrap(ErrUnbound, errors.ErrorTypeValidation, "column set not usable").
				WithDetail("index", i)
		}
	}
	return nil
}

// DecodeRow loads every column of doc into row and records the outcome in
// each column's mask. It returns the number of fields that were absent or
// could not be decoded. A row outside the capacity is not written and counts
// every column as failed.
func (s *Set) DecodeRow(doc bson.Raw, row int) int {
	if row < 0 || row >= s.numRows {
		return len(s.columns)
	}

	failed := 0
	for i := range s.columns {
		c := &s.columns[i]
		v, err := doc.LookupErr(c.path...)
		if err != nil || !c.load(c, v, row) {
			c.mask[row] = 1
			c.failures++
			failed++
			continue
		}
		c.mask[row] = 0
	}
	return failed
}

// FailureCounts returns the per-column failure totals keyed by field.
func (s *Set) FailureCounts() map[string]int64 {
	out := make(map[string]int64, len(s.columns))
	for i := range s.columns {
		out[s.columns[i].field] += s.columns[i].failures
	}
	return out
}

// ResetFailures zeroes the per-column failure totals.
func (s *Set) ResetFailures() {
	for i := range s.columns {
		s.columns[i].failures = 0
	}
}

// Release drops the Set's own metadata. Bound buffers are not touched and
// remain owned by the caller. Release is idempotent.
func (s *Set) Release() {
	s.columns = nil
	s.released = true
}

// AllocColumn allocates storage and mask buffers for a column of the given
// type. Every mask byte starts at 1 so rows that are never loaded read as
// absent.
func AllocColumn(typ Type, typeArg, numRows int) (storage, mask []byte, err error) {
	if !typ.Valid() {
		return nil, nil, errors.Wrap(ErrInvalidType, errors.ErrorTypeValidation, "cannot allocate column").
			WithDetail("type", int(typ))
	}
	stride := typ.Width(typeArg)
	if stride == 0 {
		return nil, nil, errors.Wrap(ErrTypeArg, errors.ErrorTypeValidation, "cannot allocate column").
			WithDetail("type", typ.String())
	}
	if numRows < 0 {
		return nil, nil, errors.Wrap(ErrInvalidRows, errors.ErrorTypeValidation, "cannot allocate column")
	}
	storage = make([]byte, numRows*stride)
	mask = make([]byte, numRows)
	for i := range mask {
		mask[i] = 1
	}
	return storage, mask, nil
}
