package schema

import (
	"reflect"

	"github.com/ShadowGHO/strata/internal/arena"
)

// TypeTag identifies the wire type of a struct field.
type TypeTag uint8

// Supported field types.
const (
	TagBool TypeTag = iota + 1
	TagInt8
	TagUint8
	TagInt16
	TagUint16
	TagInt32
	TagUint32
	TagInt64
	TagUint64
	TagFloat32
	TagFloat64
	TagPtr
)

// Size returns the serialized width of one element in bytes.
func (t TypeTag) Size() int {
	switch t {
	case TagBool, TagInt8, TagUint8:
		return 1
	case TagInt16, TagUint16:
		return 2
	case TagInt32, TagUint32, TagFloat32:
		return 4
	case TagInt64, TagUint64, TagFloat64, TagPtr:
		return 8
	default:
		return 0
	}
}

// String returns the wire-type name used in the file's embedded catalog.
func (t TypeTag) String() string {
	switch t {
	case TagBool:
		return "bool"
	case TagInt8:
		return "int8"
	case TagUint8:
		return "uint8"
	case TagInt16:
		return "int16"
	case TagUint16:
		return "uint16"
	case TagInt32:
		return "int32"
	case TagUint32:
		return "uint32"
	case TagInt64:
		return "int64"
	case TagUint64:
		return "uint64"
	case TagFloat32:
		return "float32"
	case TagFloat64:
		return "float64"
	case TagPtr:
		return "ptr"
	default:
		return "unknown"
	}
}

// TagForName is the inverse of String, used when reconciling a file's
// embedded catalog against the runtime one.
func TagForName(s string) (TypeTag, bool) {
	for t := TagBool; t <= TagPtr; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

// Field describes one serialized field of a struct. Nested struct fields are
// flattened at registration time, so every Field is a scalar or a fixed-size
// array of scalars.
type Field struct {
	Name     string  // dotted path for flattened nested fields, e.g. "ID.Next"
	Tag      TypeTag // wire type of one element
	Offset   int     // packed byte offset within the serialized struct
	ArrayLen int     // element count, 1 for plain scalars
	Pointer  bool    // true for Ptr-typed fields

	index []int // reflect field index path
}

// ByteSize returns the serialized width of the whole field.
func (f *Field) ByteSize() int {
	return f.Tag.Size() * f.ArrayLen
}

// StructDescriptor is the compiled layout of one registered struct type.
// Built once at catalog registration and immutable afterwards.
type StructDescriptor struct {
	Name   string
	ID     int
	Size   int // packed payload size of one instance
	Fields []Field

	rtype     reflect.Type
	nextField int // index into Fields of the top-level "Next" Ptr field, -1 if absent
	prevField int
}

// Type returns the registered Go type.
func (d *StructDescriptor) Type() reflect.Type {
	return d.rtype
}

// HasListLinks reports whether the struct carries top-level Next/Prev pointer
// fields and therefore may be used as a linked-list node.
func (d *StructDescriptor) HasListLinks() bool {
	return d.nextField >= 0 && d.prevField >= 0
}

// ListNext reads the Next link of a node value.
func (d *StructDescriptor) ListNext(v reflect.Value) arena.Ptr {
	return arena.Ptr(v.FieldByIndex(d.Fields[d.nextField].index).Uint())
}

// ListPrev reads the Prev link of a node value.
func (d *StructDescriptor) ListPrev(v reflect.Value) arena.Ptr {
	return arena.Ptr(v.FieldByIndex(d.Fields[d.prevField].index).Uint())
}

// SetListNext rewrites the Next link of an addressable node value.
func (d *StructDescriptor) SetListNext(v reflect.Value, p arena.Ptr) {
	v.FieldByIndex(d.Fields[d.nextField].index).SetUint(uint64(p))
}

// SetListPrev rewrites the Prev link of an addressable node value.
func (d *StructDescriptor) SetListPrev(v reflect.Value, p arena.Ptr) {
	v.FieldByIndex(d.Fields[d.prevField].index).SetUint(uint64(p))
}
