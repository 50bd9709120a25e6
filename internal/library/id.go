package library

import (
	"bytes"
	"reflect"

	"github.com/google/uuid"

	"github.com/ShadowGHO/strata/internal/arena"
)

// IDNameLen is the fixed width of the serialized identifier-block name,
// including the NUL terminator.
const IDNameLen = 66

// ID is the common header embedded as the first field of every
// identifier-block struct. The list links place the block into its Main
// list; Lib points to the Library the block originated from (Nil for blocks
// owned by the local file).
//
// SessionUUID and Tag are runtime-only bookkeeping: they are excluded from
// the serialized layout, and a fresh session UUID is assigned every load.
type ID struct {
	Next, Prev arena.Ptr
	Lib        arena.Ptr
	Flag       int32
	Name       [IDNameLen]byte

	SessionUUID string `strata:"runtime"`
	Tag         int32  `strata:"runtime"`
}

// NameString returns the name without the fixed-width padding.
func (id *ID) NameString() string {
	if i := bytes.IndexByte(id.Name[:], 0); i >= 0 {
		return string(id.Name[:i])
	}
	return string(id.Name[:])
}

// SetName stores s into the fixed-width name buffer, truncating if needed
// and always keeping a NUL terminator.
func (id *ID) SetName(s string) {
	id.Name = [IDNameLen]byte{}
	n := copy(id.Name[:IDNameLen-1], s)
	id.Name[n] = 0
}

// RefreshSessionUUID assigns a new runtime session identifier. Called for
// every identifier block materialized by a load.
func (id *ID) RefreshSessionUUID() {
	id.SessionUUID = uuid.NewString()
}

// Library represents a linked source file that identifier blocks can
// originate from.
type Library struct {
	ID       ID
	Filepath [192]byte
}

// FilepathString returns the library path without the fixed-width padding.
func (l *Library) FilepathString() string {
	if i := bytes.IndexByte(l.Filepath[:], 0); i >= 0 {
		return string(l.Filepath[:i])
	}
	return string(l.Filepath[:])
}

// SetFilepath stores the library path, truncating if needed.
func (l *Library) SetFilepath(s string) {
	l.Filepath = [192]byte{}
	n := copy(l.Filepath[:191], s)
	l.Filepath[n] = 0
}

var idType = reflect.TypeOf(ID{})

// IDOf returns the embedded ID header of an identifier-block struct. obj
// must be a pointer to a struct whose first exported field is (or embeds)
// ID; ok is false otherwise.
func IDOf(obj any) (*ID, bool) {
	v := reflect.ValueOf(obj)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() {
		return nil, false
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct || v.NumField() == 0 {
		return nil, false
	}
	f := v.Field(0)
	if f.Type() != idType || !f.CanAddr() {
		return nil, false
	}
	return f.Addr().Interface().(*ID), true
}
