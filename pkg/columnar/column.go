package columnar

import (
	"bytes"
	"encoding/binary"
	"math"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Column describes one destination field bound to caller-owned memory. The
// storage and mask views are sliced to exactly NumRows slots at bind time, so
// every row write is bounds-checked against the declared capacity.
type Column struct {
	field   string
	path    []string
	typ     Type
	typeArg int
	stride  int
	storage []byte
	mask    []byte
	load    loadFunc

	failures int64
}

// Field returns the field name or dotted path.
func (c *Column) Field() string { return c.field }

// Path returns the field split on dots.
func (c *Column) Path() []string { return c.path }

// Type returns the semantic type.
func (c *Column) Type() Type { return c.typ }

// TypeArg returns the declared width of variable-width types, 0 otherwise.
func (c *Column) TypeArg() int { return c.typeArg }

// Stride returns the slot width in bytes.
func (c *Column) Stride() int { return c.stride }

// Storage returns the bound storage view.
func (c *Column) Storage() []byte { return c.storage }

// Mask returns the bound validity mask view.
func (c *Column) Mask() []byte { return c.mask }

// Failures returns how many rows failed to load into this column.
func (c *Column) Failures() int64 { return c.failures }

// Bound reports whether the column slot has been populated.
func (c *Column) Bound() bool { return c.typ != TypeUndefined }

// Slot returns the storage bytes of one row.
func (c *Column) Slot(row int) []byte {
	off := row * c.stride
	return c.storage[off : off+c.stride : off+c.stride]
}

// Valid reports whether row holds a successfully decoded value.
func (c *Column) Valid(row int) bool {
	return c.mask[row] == 0
}

func (c *Column) Int8At(row int) int8   { return int8(c.Slot(row)[0]) }
func (c *Column) Uint8At(row int) uint8 { return c.Slot(row)[0] }
func (c *Column) BoolAt(row int) bool   { return c.Slot(row)[0] != 0 }

func (c *Column) Int16At(row int) int16 { return int16(binary.NativeEndian.Uint16(c.Slot(row))) }
func (c *Column) Int32At(row int) int32 { return int32(binary.NativeEndian.Uint32(c.Slot(row))) }
func (c *Column) Int64At(row int) int64 { return int64(binary.NativeEndian.Uint64(c.Slot(row))) }

func (c *Column) Uint16At(row int) uint16 { return binary.NativeEndian.Uint16(c.Slot(row)) }
func (c *Column) Uint32At(row int) uint32 { return binary.NativeEndian.Uint32(c.Slot(row)) }
func (c *Column) Uint64At(row int) uint64 { return binary.NativeEndian.Uint64(c.Slot(row)) }

func (c *Column) Float32At(row int) float32 {
	return math.Float32frombits(binary.NativeEndian.Uint32(c.Slot(row)))
}

func (c *Column) Float64At(row int) float64 {
	return math.Float64frombits(binary.NativeEndian.Uint64(c.Slot(row)))
}

// StringAt returns a text slot with its zero padding removed.
func (c *Column) StringAt(row int) string {
	return string(bytes.TrimRight(c.Slot(row), "\x00"))
}

// Value returns the decoded Go value of a row and whether it is valid. The
// value of a masked row is nil.
func (c *Column) Value(row int) (interface{}, bool) {
	if !c.Valid(row) {
		return nil, false
	}
	switch c.typ {
	case TypeObjectID:
		var oid primitive.ObjectID
		copy(oid[:], c.Slot(row))
		return oid, true
	case TypeBool:
		return c.BoolAt(row), true
	case TypeInt8:
		return c.Int8At(row), true
	case TypeInt16:
		return c.Int16At(row), true
	case TypeInt32:
		return c.Int32At(row), true
	case TypeInt64:
		return c.Int64At(row), true
	case TypeUint8, TypeTypeCode:
		return c.Uint8At(row), true
	case TypeUint16:
		return c.Uint16At(row), true
	case TypeUint32, TypeLength:
		return c.Uint32At(row), true
	case TypeUint64, TypeTimestamp:
		return c.Uint64At(row), true
	case TypeFloat32:
		return c.Float32At(row), true
	case TypeFloat64:
		return c.Float64At(row), true
	case TypeDate:
		return primitive.DateTime(c.Int64At(row)), true
	case TypeString:
		return c.StringAt(row), true
	case TypeBinary, TypeDocument, TypeArray:
		return bytes.Clone(c.Slot(row)), true
	}
	return nil, false
}
