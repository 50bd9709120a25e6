package schema

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
)

// Encode serializes one struct value into its packed wire form under the
// given byte order. v must be the registered struct type (not a pointer).
// Pointer fields are written as their address tokens; the targets are never
// followed.
func Encode(d *StructDescriptor, v reflect.Value, order binary.ByteOrder) []byte {
	buf := make([]byte, d.Size)
	for i := range d.Fields {
		f := &d.Fields[i]
		fv := v.FieldByIndex(f.index)
		if fv.Kind() == reflect.Array {
			es := f.Tag.Size()
			for j := 0; j < f.ArrayLen; j++ {
				putScalar(buf[f.Offset+j*es:], f.Tag, fv.Index(j), order)
			}
		} else {
			putScalar(buf[f.Offset:], f.Tag, fv, order)
		}
	}
	return buf
}

// Decode deserializes one packed instance into a freshly allocated value and
// returns a pointer to it.
func Decode(d *StructDescriptor, data []byte, order binary.ByteOrder) (any, error) {
	pv := reflect.New(d.rtype)
	if err := DecodeInto(d, data, order, pv.Elem()); err != nil {
		return nil, err
	}
	return pv.Interface(), nil
}

// DecodeInto deserializes one packed instance into an addressable value of
// the registered type.
func DecodeInto(d *StructDescriptor, data []byte, order binary.ByteOrder, v reflect.Value) error {
	if len(data) < d.Size {
		return fmt.Errorf("struct %s: payload is %d bytes, layout needs %d", d.Name, len(data), d.Size)
	}
	for i := range d.Fields {
		f := &d.Fields[i]
		fv := v.FieldByIndex(f.index)
		if fv.Kind() == reflect.Array {
			es := f.Tag.Size()
			for j := 0; j < f.ArrayLen; j++ {
				getScalar(data[f.Offset+j*es:], f.Tag, fv.Index(j), order)
			}
		} else {
			getScalar(data[f.Offset:], f.Tag, fv, order)
		}
	}
	return nil
}

func putScalar(b []byte, tag TypeTag, fv reflect.Value, order binary.ByteOrder) {
	switch tag {
	case TagBool:
		if fv.Bool() {
			b[0] = 1
		} else {
			b[0] = 0
		}
	case TagInt8:
		b[0] = byte(fv.Int())
	case TagUint8:
		b[0] = byte(fv.Uint())
	case TagInt16:
		order.PutUint16(b, uint16(fv.Int()))
	case TagUint16:
		order.PutUint16(b, uint16(fv.Uint()))
	case TagInt32:
		order.PutUint32(b, uint32(fv.Int()))
	case TagUint32:
		order.PutUint32(b, uint32(fv.Uint()))
	case TagInt64:
		order.PutUint64(b, uint64(fv.Int()))
	case TagUint64, TagPtr:
		order.PutUint64(b, fv.Uint())
	case TagFloat32:
		order.PutUint32(b, math.Float32bits(float32(fv.Float())))
	case TagFloat64:
		order.PutUint64(b, math.Float64bits(fv.Float()))
	}
}

func getScalar(b []byte, tag TypeTag, fv reflect.Value, order binary.ByteOrder) {
	switch tag {
	case TagBool:
		fv.SetBool(b[0] != 0)
	case TagInt8:
		fv.SetInt(int64(int8(b[0])))
	case TagUint8:
		fv.SetUint(uint64(b[0]))
	case TagInt16:
		fv.SetInt(int64(int16(order.Uint16(b))))
	case TagUint16:
		fv.SetUint(uint64(order.Uint16(b)))
	case TagInt32:
		fv.SetInt(int64(int32(order.Uint32(b))))
	case TagUint32:
		fv.SetUint(uint64(order.Uint32(b)))
	case TagInt64:
		fv.SetInt(int64(order.Uint64(b)))
	case TagUint64, TagPtr:
		fv.SetUint(order.Uint64(b))
	case TagFloat32:
		fv.SetFloat(float64(math.Float32frombits(order.Uint32(b))))
	case TagFloat64:
		fv.SetFloat(math.Float64frombits(order.Uint64(b)))
	}
}
