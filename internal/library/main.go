package library

import (
	"errors"
	"fmt"

	"github.com/ShadowGHO/strata/internal/arena"
)

// ErrDuplicateID is returned when a second identifier block with the same
// (library, name) key is added to a Main. Identifier blocks are singletons
// per key; resolution must never create duplicates.
var ErrDuplicateID = errors.New("duplicate identifier block")

// Entry is one identifier block tracked by a Main.
type Entry struct {
	TypeName string        // registered struct name of the block
	Addr     arena.Address // address of the block in its arena
	OldAddr  arena.Address // on-disk address, set for entries built by a load
	Obj      any           // pointer to the block struct
}

type idKey struct {
	lib  arena.Address
	name string
}

// Main is the catalog of all live identifier blocks belonging to one
// authored or loaded file, indexed by address and by (library, name).
type Main struct {
	entries []*Entry
	byAddr  map[arena.Address]*Entry
	byKey   map[idKey]*Entry
}

// NewMain returns an empty Main.
func NewMain() *Main {
	return &Main{
		byAddr: make(map[arena.Address]*Entry),
		byKey:  make(map[idKey]*Entry),
	}
}

// Add registers an identifier block. obj must carry an embedded ID header;
// the (ID.Lib, ID.Name) pair must be unique within this Main.
func (m *Main) Add(typeName string, addr arena.Address, obj any) (*Entry, error) {
	id, ok := IDOf(obj)
	if !ok {
		return nil, fmt.Errorf("type %s does not embed an ID header", typeName)
	}
	key := idKey{lib: id.Lib, name: id.NameString()}
	if prev, exists := m.byKey[key]; exists {
		return prev, fmt.Errorf("%w: %q", ErrDuplicateID, id.NameString())
	}
	e := &Entry{TypeName: typeName, Addr: addr, Obj: obj}
	m.entries = append(m.entries, e)
	m.byAddr[addr] = e
	m.byKey[key] = e
	return e, nil
}

// ByAddress returns the entry registered under addr, or nil.
func (m *Main) ByAddress(addr arena.Address) *Entry {
	return m.byAddr[addr]
}

// ByName returns the entry for the given library of origin and block name,
// or nil.
func (m *Main) ByName(lib arena.Address, name string) *Entry {
	return m.byKey[idKey{lib: lib, name: name}]
}

// Entries returns the tracked blocks in insertion order.
func (m *Main) Entries() []*Entry {
	return m.entries
}

// Len returns the number of tracked blocks.
func (m *Main) Len() int {
	return len(m.entries)
}
