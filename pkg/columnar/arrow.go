package columnar

import (
	"encoding/binary"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/strata/pkg/errors"
)

// TypeMetadataKey is the Arrow field metadata key holding a column's type
// string, as accepted by ParseType.
const TypeMetadataKey = "strata.type"

// ArrowType returns the Arrow data type a column of type t is exported as.
func ArrowType(t Type) arrow.DataType {
	switch t {
	case TypeObjectID:
		return &arrow.FixedSizeBinaryType{ByteWidth: 12}
	case TypeBool:
		return arrow.FixedWidthTypes.Boolean
	case TypeInt8:
		return arrow.PrimitiveTypes.Int8
	case TypeInt16:
		return arrow.PrimitiveTypes.Int16
	case TypeInt32:
		return arrow.PrimitiveTypes.Int32
	case TypeInt64:
		return arrow.PrimitiveTypes.Int64
	case TypeUint8, TypeTypeCode:
		return arrow.PrimitiveTypes.Uint8
	case TypeUint16:
		return arrow.PrimitiveTypes.Uint16
	case TypeUint32, TypeLength:
		return arrow.PrimitiveTypes.Uint32
	case TypeUint64, TypeTimestamp:
		return arrow.PrimitiveTypes.Uint64
	case TypeFloat32:
		return arrow.PrimitiveTypes.Float32
	case TypeFloat64:
		return arrow.PrimitiveTypes.Float64
	case TypeDate:
		return arrow.FixedWidthTypes.Timestamp_ms
	case TypeString:
		return arrow.BinaryTypes.String
	case TypeBinary, TypeDocument, TypeArray:
		return arrow.BinaryTypes.Binary
	}
	return arrow.Null
}

// ArrowSchema returns the Arrow schema of the Set, one nullable field per
// column in column order.
func (s *Set) ArrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, len(s.columns))
	for i := range s.columns {
		c := &s.columns[i]
		fields[i] = arrow.Field{
			Name:     c.field,
			Type:     ArrowType(c.typ),
			Nullable: true,
			Metadata: arrow.NewMetadata([]string{TypeMetadataKey}, []string{FormatType(c.typ, c.typeArg)}),
		}
	}
	return arrow.NewSchema(fields, nil)
}

// ToArrow copies the first rows rows of the Set into a new Arrow record.
// Masked rows become nulls. The caller must Release the record.
func (s *Set) ToArrow(mem memory.Allocator, rows int) (arrow.Record, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}
	if rows < 0 || rows > s.numRows {
		return nil, errors.Wrap(ErrInvalidRows, errors.ErrorTypeValidation, "cannot export column set").
			WithDetail("rows", rows).
			WithDetail("num_rows", s.numRows)
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	b := array.NewRecordBuilder(mem, s.ArrowSchema())
	defer b.Release()

	for i := range s.columns {
		c := &s.columns[i]
		fb := b.Field(i)
		fb.Reserve(rows)
		for row := 0; row < rows; row++ {
			if !c.Valid(row) {
				fb.AppendNull()
				continue
			}
			appendSlot(fb, c, row)
		}
	}
	return b.NewRecord(), nil
}

func appendSlot(fb array.Builder, c *Column, row int) {
	slot := c.Slot(row)
	switch b := fb.(type) {
	case *array.FixedSizeBinaryBuilder:
		b.Append(slot)
	case *array.BooleanBuilder:
		b.Append(slot[0] != 0)
	case *array.Int8Builder:
		b.Append(c.Int8At(row))
	case *array.Int16Builder:
		b.Append(c.Int16At(row))
	case *array.Int32Builder:
		b.Append(c.Int32At(row))
	case *array.Int64Builder:
		b.Append(c.Int64At(row))
	case *array.Uint8Builder:
		b.Append(slot[0])
	case *array.Uint16Builder:
		b.Append(c.Uint16At(row))
	case *array.Uint32Builder:
		b.Append(c.Uint32At(row))
	case *array.Uint64Builder:
		b.Append(c.Uint64At(row))
	case *array.Float32Builder:
		b.Append(c.Float32At(row))
	case *array.Float64Builder:
		b.Append(c.Float64At(row))
	case *array.TimestampBuilder:
		b.Append(arrow.Timestamp(c.Int64At(row)))
	case *array.StringBuilder:
		b.Append(c.StringAt(row))
	case *array.BinaryBuilder:
		b.Append(trimRawBSON(c.typ, slot))
	default:
		fb.AppendNull()
	}
}

// trimRawBSON cuts a sub-document or array slot to its declared length when
// the whole value fit. Truncated values and binary slots are kept whole.
func trimRawBSON(t Type, slot []byte) []byte {
	if (t != TypeDocument && t != TypeArray) || len(slot) < 5 {
		return slot
	}
	n := int(int32(binary.LittleEndian.Uint32(slot)))
	if n >= 5 && n <= len(slot) && slot[n-1] == 0 {
		return slot[:n]
	}
	return slot
}
