package schema

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/ShadowGHO/strata/internal/arena"
)

// StructIDNone is the sentinel returned for unregistered struct names.
// Callers treat it as a programming error, not a recoverable I/O error.
const StructIDNone = -1

// Common registration errors.
var (
	ErrNotStruct        = errors.New("exemplar is not a struct")
	ErrAnonymousStruct  = errors.New("anonymous struct types cannot be registered")
	ErrDuplicateStruct  = errors.New("struct name already registered")
	ErrUnsupportedField = errors.New("unsupported field type")
)

var addrType = reflect.TypeOf(arena.Address(0))

// Catalog maps struct names to compact integer ids and compiled layout
// metadata. Register all types at process start; the catalog is read-only
// during write and load sessions.
type Catalog struct {
	byName map[string]*StructDescriptor
	byType map[reflect.Type]*StructDescriptor
	byID   []*StructDescriptor
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		byName: make(map[string]*StructDescriptor),
		byType: make(map[reflect.Type]*StructDescriptor),
	}
}

// Register derives the layout descriptor for the exemplar's type and assigns
// it the next struct id. The exemplar may be a struct value or a pointer to
// one. Fields tagged `strata:"runtime"` and unexported fields are excluded
// from the layout and never serialized. Nested struct fields are flattened
// into the parent layout.
func (c *Catalog) Register(exemplar any) (*StructDescriptor, error) {
	t := reflect.TypeOf(exemplar)
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, ErrNotStruct
	}
	name := t.Name()
	if name == "" {
		return nil, ErrAnonymousStruct
	}
	if _, exists := c.byName[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateStruct, name)
	}

	desc := &StructDescriptor{
		Name:      name,
		ID:        len(c.byID),
		rtype:     t,
		nextField: -1,
		prevField: -1,
	}
	offset := 0
	if err := collectFields(t, nil, "", &desc.Fields, &offset); err != nil {
		return nil, fmt.Errorf("register %s: %w", name, err)
	}
	desc.Size = offset

	for i := range desc.Fields {
		f := &desc.Fields[i]
		if f.Tag != TagPtr || f.ArrayLen != 1 || len(f.index) != 1 {
			continue
		}
		switch f.Name {
		case "Next":
			desc.nextField = i
		case "Prev":
			desc.prevField = i
		}
	}

	c.byName[name] = desc
	c.byType[t] = desc
	c.byID = append(c.byID, desc)
	return desc, nil
}

// MustRegister is Register for init-time use; it panics on registration
// errors since struct layouts are compile-time constants.
func (c *Catalog) MustRegister(exemplar any) *StructDescriptor {
	desc, err := c.Register(exemplar)
	if err != nil {
		panic(err)
	}
	return desc
}

// collectFields appends the flattened serialized fields of t, advancing the
// packed offset as it goes.
func collectFields(t reflect.Type, path []int, prefix string, fields *[]Field, offset *int) error {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Tag.Get("strata") == "runtime" {
			continue
		}
		name := prefix + sf.Name
		index := append(append([]int(nil), path...), i)
		ft := sf.Type

		if ft == addrType {
			*fields = append(*fields, Field{Name: name, Tag: TagPtr, Offset: *offset, ArrayLen: 1, Pointer: true, index: index})
			*offset += TagPtr.Size()
			continue
		}

		switch ft.Kind() {
		case reflect.Struct:
			if err := collectFields(ft, index, name+".", fields, offset); err != nil {
				return err
			}
		case reflect.Array:
			et := ft.Elem()
			tag, ok := scalarTag(et)
			if !ok {
				return fmt.Errorf("%w: %s (%s)", ErrUnsupportedField, name, ft)
			}
			*fields = append(*fields, Field{Name: name, Tag: tag, Offset: *offset, ArrayLen: ft.Len(), Pointer: tag == TagPtr, index: index})
			*offset += tag.Size() * ft.Len()
		default:
			tag, ok := scalarTag(ft)
			if !ok {
				return fmt.Errorf("%w: %s (%s)", ErrUnsupportedField, name, ft)
			}
			*fields = append(*fields, Field{Name: name, Tag: tag, Offset: *offset, ArrayLen: 1, Pointer: tag == TagPtr, index: index})
			*offset += tag.Size()
		}
	}
	return nil
}

// scalarTag maps a Go scalar type to its wire tag. Platform-sized int/uint
// are rejected: field widths must be identical on every host.
func scalarTag(t reflect.Type) (TypeTag, bool) {
	if t == addrType {
		return TagPtr, true
	}
	switch t.Kind() {
	case reflect.Bool:
		return TagBool, true
	case reflect.Int8:
		return TagInt8, true
	case reflect.Uint8:
		return TagUint8, true
	case reflect.Int16:
		return TagInt16, true
	case reflect.Uint16:
		return TagUint16, true
	case reflect.Int32:
		return TagInt32, true
	case reflect.Uint32:
		return TagUint32, true
	case reflect.Int64:
		return TagInt64, true
	case reflect.Uint64:
		return TagUint64, true
	case reflect.Float32:
		return TagFloat32, true
	case reflect.Float64:
		return TagFloat64, true
	default:
		return 0, false
	}
}

// IDForName returns the struct id for name, or StructIDNone if unregistered.
func (c *Catalog) IDForName(name string) int {
	if desc, ok := c.byName[name]; ok {
		return desc.ID
	}
	return StructIDNone
}

// ByName returns the descriptor registered under name, or nil.
func (c *Catalog) ByName(name string) *StructDescriptor {
	return c.byName[name]
}

// ByID returns the descriptor with the given id, or nil.
func (c *Catalog) ByID(id int) *StructDescriptor {
	if id < 0 || id >= len(c.byID) {
		return nil
	}
	return c.byID[id]
}

// ByType returns the descriptor for a registered Go type, or nil. The type
// may be given as a pointer type.
func (c *Catalog) ByType(t reflect.Type) *StructDescriptor {
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return c.byType[t]
}

// Len returns the number of registered structs.
func (c *Catalog) Len() int {
	return len(c.byID)
}

// Descriptors returns the registered descriptors in id order.
func (c *Catalog) Descriptors() []*StructDescriptor {
	out := make([]*StructDescriptor, len(c.byID))
	copy(out, c.byID)
	return out
}
