package columnar

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/strata/pkg/errors"
)

// Type is the semantic type a column decodes into, chosen independently of
// the wire type found in the document.
type Type uint8

const (
	TypeUndefined Type = iota
	TypeObjectID
	TypeBool
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeFloat32
	TypeFloat64
	TypeDate
	TypeTimestamp
	TypeString
	TypeBinary
	TypeDocument
	TypeArray
	TypeTypeCode
	TypeLength

	typeCount
)

// LastType is the highest valid semantic type tag.
const LastType = typeCount - 1

type typeInfo struct {
	name  string
	width int // 0 means the slot width is the column's type argument
}

var typeTable = [typeCount]typeInfo{
	TypeUndefined: {name: "undefined"},
	TypeObjectID:  {name: "id", width: 12},
	TypeBool:      {name: "bool", width: 1},
	TypeInt8:      {name: "int8", width: 1},
	TypeInt16:     {name: "int16", width: 2},
	TypeInt32:     {name: "int32", width: 4},
	TypeInt64:     {name: "int64", width: 8},
	TypeUint8:     {name: "uint8", width: 1},
	TypeUint16:    {name: "uint16", width: 2},
	TypeUint32:    {name: "uint32", width: 4},
	TypeUint64:    {name: "uint64", width: 8},
	TypeFloat32:   {name: "float32", width: 4},
	TypeFloat64:   {name: "float64", width: 8},
	TypeDate:      {name: "date", width: 8},
	TypeTimestamp: {name: "timestamp", width: 8},
	TypeString:    {name: "string"},
	TypeBinary:    {name: "binary"},
	TypeDocument:  {name: "bson"},
	TypeArray:     {name: "array"},
	TypeTypeCode:  {name: "type", width: 1},
	TypeLength:    {name: "length", width: 4},
}

// String returns the configuration name of the type.
func (t Type) String() string {
	if t >= typeCount {
		return "Type(" + strconv.Itoa(int(t)) + ")"
	}
	return typeTable[t].name
}

// Valid reports whether t may be bound to a column.
func (t Type) Valid() bool {
	return t > TypeUndefined && t <= LastType
}

// VariableWidth reports whether the slot width comes from the type argument.
func (t Type) VariableWidth() bool {
	return t.Valid() && typeTable[t].width == 0
}

// Width returns the slot width in bytes for a column of type t with the
// given type argument, or 0 if the combination is invalid.
func (t Type) Width(typeArg int) int {
	if !t.Valid() {
		return 0
	}
	if w := typeTable[t].width; w > 0 {
		return w
	}
	if typeArg <= 0 {
		return 0
	}
	return typeArg
}

// Types returns every valid semantic type in tag order.
func Types() []Type {
	out := make([]Type, 0, int(LastType))
	for t := TypeUndefined + 1; t <= LastType; t++ {
		out = append(out, t)
	}
	return out
}

// ParseType parses a type string such as "int32" or "string:16" into the
// semantic type and its type argument.
func ParseType(s string) (Type, int, error) {
	name, arg, hasArg := strings.Cut(strings.TrimSpace(s), ":")
	name = strings.ToLower(name)

	var typ Type
	for t := TypeUndefined + 1; t <= LastType; t++ {
		if typeTable[t].name == name {
			typ = t
			break
		}
	}
	if typ == TypeUndefined {
		return TypeUndefined, 0, errors.Newf(errors.ErrorTypeValidation, "unknown column type %q", s)
	}

	if !typ.VariableWidth() {
		if hasArg {
			return TypeUndefined, 0, errors.Newf(errors.ErrorTypeValidation, "type %q takes no width", name)
		}
		return typ, 0, nil
	}

	if !hasArg {
		return TypeUndefined, 0, errors.Newf(errors.ErrorTypeValidation, "type %q requires a width, e.g. %s:16", name, name)
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return TypeUndefined, 0, errors.Newf(errors.ErrorTypeValidation, "invalid width %q for type %q", arg, name)
	}
	return typ, n, nil
}

// FormatType is the inverse of ParseType.
func FormatType(t Type, typeArg int) string {
	if t.VariableWidth() {
		return t.String() + ":" + strconv.Itoa(typeArg)
	}
	return t.String()
}
