package columnar

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// loadFunc decodes one wire value into storage[row]. It returns false when
// the wire type is not compatible with the column's semantic type, in which
// case the slot is left untouched. Loaders never allocate.
type loadFunc func(c *Column, v bson.RawValue, row int) bool

var loaders = [typeCount]loadFunc{
	TypeObjectID:  loadObjectID,
	TypeBool:      loadBool,
	TypeInt8:      loadInt8,
	TypeInt16:     loadInt16,
	TypeInt32:     loadInt32,
	TypeInt64:     loadInt64,
	TypeUint8:     loadUint8,
	TypeUint16:    loadUint16,
	TypeUint32:    loadUint32,
	TypeUint64:    loadUint64,
	TypeFloat32:   loadFloat32,
	TypeFloat64:   loadFloat64,
	TypeDate:      loadDate,
	TypeTimestamp: loadTimestamp,
	TypeString:    loadString,
	TypeBinary:    loadBinary,
	TypeDocument:  loadDocument,
	TypeArray:     loadArray,
	TypeTypeCode:  loadTypeCode,
	TypeLength:    loadLength,
}

// LoaderFor returns the decode routine registered for t, or nil.
func LoaderFor(t Type) func(c *Column, v bson.RawValue, row int) bool {
	if !t.Valid() {
		return nil
	}
	return loaders[t]
}

// asInt64 accepts every numeric wire type and booleans. Doubles truncate
// toward zero.
func asInt64(v bson.RawValue) (int64, bool) {
	switch v.Type {
	case bsontype.Int32:
		n, ok := v.Int32OK()
		return int64(n), ok
	case bsontype.Int64:
		return v.Int64OK()
	case bsontype.Double:
		f, ok := v.DoubleOK()
		return int64(f), ok
	case bsontype.Boolean:
		b, ok := v.BooleanOK()
		if b {
			return 1, ok
		}
		return 0, ok
	}
	return 0, false
}

func asFloat64(v bson.RawValue) (float64, bool) {
	switch v.Type {
	case bsontype.Double:
		return v.DoubleOK()
	case bsontype.Int32:
		n, ok := v.Int32OK()
		return float64(n), ok
	case bsontype.Int64:
		n, ok := v.Int64OK()
		return float64(n), ok
	case bsontype.Boolean:
		b, ok := v.BooleanOK()
		if b {
			return 1, ok
		}
		return 0, ok
	}
	return 0, false
}

func loadObjectID(c *Column, v bson.RawValue, row int) bool {
	if v.Type != bsontype.ObjectID || len(v.Value) < 12 {
		return false
	}
	copy(c.Slot(row), v.Value[:12])
	return true
}

func loadBool(c *Column, v bson.RawValue, row int) bool {
	b, ok := v.BooleanOK()
	if !ok {
		return false
	}
	if b {
		c.Slot(row)[0] = 1
	} else {
		c.Slot(row)[0] = 0
	}
	return true
}

func loadInt8(c *Column, v bson.RawValue, row int) bool {
	n, ok := asInt64(v)
	if !ok {
		return false
	}
	c.Slot(row)[0] = byte(int8(n))
	return true
}

func loadInt16(c *Column, v bson.RawValue, row int) bool {
	n, ok := asInt64(v)
	if !ok {
		return false
	}
	binary.NativeEndian.PutUint16(c.Slot(row), uint16(int16(n)))
	return true
}

func loadInt32(c *Column, v bson.RawValue, row int) bool {
	n, ok := asInt64(v)
	if !ok {
		return false
	}
	binary.NativeEndian.PutUint32(c.Slot(row), uint32(int32(n)))
	return true
}

func loadInt64(c *Column, v bson.RawValue, row int) bool {
	n, ok := asInt64(v)
	if !ok {
		return false
	}
	binary.NativeEndian.PutUint64(c.Slot(row), uint64(n))
	return true
}

func loadUint8(c *Column, v bson.RawValue, row int) bool {
	n, ok := asInt64(v)
	if !ok {
		return false
	}
	c.Slot(row)[0] = uint8(n)
	return true
}

func loadUint16(c *Column, v bson.RawValue, row int) bool {
	n, ok := asInt64(v)
	if !ok {
		return false
	}
	binary.NativeEndian.PutUint16(c.Slot(row), uint16(n))
	return true
}

func loadUint32(c *Column, v bson.RawValue, row int) bool {
	n, ok := asInt64(v)
	if !ok {
		return false
	}
	binary.NativeEndian.PutUint32(c.Slot(row), uint32(n))
	return true
}

func loadUint64(c *Column, v bson.RawValue, row int) bool {
	n, ok := asInt64(v)
	if !ok {
		return false
	}
	binary.NativeEndian.PutUint64(c.Slot(row), uint64(n))
	return true
}

func loadFloat32(c *Column, v bson.RawValue, row int) bool {
	f, ok := asFloat64(v)
	if !ok {
		return false
	}
	binary.NativeEndian.PutUint32(c.Slot(row), math.Float32bits(float32(f)))
	return true
}

func loadFloat64(c *Column, v bson.RawValue, row int) bool {
	f, ok := asFloat64(v)
	if !ok {
		return false
	}
	binary.NativeEndian.PutUint64(c.Slot(row), math.Float64bits(f))
	return true
}

func loadDate(c *Column, v bson.RawValue, row int) bool {
	ms, ok := v.DateTimeOK()
	if !ok {
		return false
	}
	binary.NativeEndian.PutUint64(c.Slot(row), uint64(ms))
	return true
}

func loadTimestamp(c *Column, v bson.RawValue, row int) bool {
	t, i, ok := v.TimestampOK()
	if !ok {
		return false
	}
	binary.NativeEndian.PutUint64(c.Slot(row), uint64(t)<<32|uint64(i))
	return true
}

// stringBytes returns the payload of a string or symbol value without the
// length prefix and trailing NUL.
func stringBytes(v bson.RawValue) ([]byte, bool) {
	if v.Type != bsontype.String && v.Type != bsontype.Symbol {
		return nil, false
	}
	if len(v.Value) < 5 {
		return nil, false
	}
	l := int(int32(binary.LittleEndian.Uint32(v.Value)))
	if l < 1 || 4+l > len(v.Value) {
		return nil, false
	}
	return v.Value[4 : 4+l-1], true
}

// copyPadded copies at most len(slot) bytes of src and zero-fills the rest.
// Longer sources are truncated silently.
func copyPadded(slot, src []byte) {
	n := copy(slot, src)
	clear(slot[n:])
}

func loadString(c *Column, v bson.RawValue, row int) bool {
	s, ok := stringBytes(v)
	if !ok {
		return false
	}
	copyPadded(c.Slot(row), s)
	return true
}

func loadBinary(c *Column, v bson.RawValue, row int) bool {
	_, data, ok := v.BinaryOK()
	if !ok {
		return false
	}
	copyPadded(c.Slot(row), data)
	return true
}

func loadDocument(c *Column, v bson.RawValue, row int) bool {
	doc, ok := v.DocumentOK()
	if !ok {
		return false
	}
	copyPadded(c.Slot(row), doc)
	return true
}

func loadArray(c *Column, v bson.RawValue, row int) bool {
	arr, ok := v.ArrayOK()
	if !ok {
		return false
	}
	copyPadded(c.Slot(row), arr)
	return true
}

func loadTypeCode(c *Column, v bson.RawValue, row int) bool {
	c.Slot(row)[0] = byte(v.Type)
	return true
}

func loadLength(c *Column, v bson.RawValue, row int) bool {
	var n uint32
	switch v.Type {
	case bsontype.String, bsontype.Symbol:
		s, ok := stringBytes(v)
		if !ok {
			return false
		}
		n = uint32(utf8.RuneCount(s))
	case bsontype.Binary:
		_, data, ok := v.BinaryOK()
		if !ok {
			return false
		}
		n = uint32(len(data))
	case bsontype.EmbeddedDocument, bsontype.Array:
		count, ok := countElements(v.Value)
		if !ok {
			return false
		}
		n = count
	default:
		return false
	}
	binary.NativeEndian.PutUint32(c.Slot(row), n)
	return true
}

// countElements walks a document or array without materialising elements.
func countElements(doc []byte) (uint32, bool) {
	if len(doc) < 5 {
		return 0, false
	}
	l := int(int32(binary.LittleEndian.Uint32(doc)))
	if l < 5 || l > len(doc) {
		return 0, false
	}
	rem := doc[4 : l-1]
	var n uint32
	for len(rem) > 0 {
		var ok bool
		_, rem, ok = bsoncore.ReadElement(rem)
		if !ok {
			return 0, false
		}
		n++
	}
	return n, true
}
