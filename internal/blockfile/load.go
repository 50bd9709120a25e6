package blockfile

import (
	"fmt"
	"io"
	"reflect"

	"github.com/voodooEntity/archivist"

	"github.com/ShadowGHO/strata/internal/arena"
	"github.com/ShadowGHO/strata/internal/library"
	"github.com/ShadowGHO/strata/internal/schema"
)

// Result is the outcome of a load: the identifier-block catalog, the arena
// owning every materialized object, the blocks the expand pass reached and
// the identifier references that must be satisfied from other files.
type Result struct {
	Header    Header
	Main      *library.Main
	Arena     *arena.Arena
	Scheduled []arena.Ptr
	Missing   []MissingRef
}

// Save runs one write session over a Main: every identifier block's write
// handler is invoked with the session, then the container is assembled.
// A block type without a write handler is a programming error and aborts
// the session.
func Save(dst io.Writer, m *library.Main, cat *schema.Catalog, resolver arena.Resolver, opts SaveOptions) error {
	w := NewWriter(dst, cat, resolver, opts)
	for _, entry := range m.Entries() {
		h, ok := handlerFor(entry.TypeName)
		if !ok || h.Write == nil {
			w.fail(fmt.Errorf("%w: %s", ErrNoWriteHandler, entry.TypeName))
			break
		}
		h.Write(w, entry.Addr, entry.Obj)
	}
	return w.Close()
}

// Load reads a container and runs the three read passes strictly in order.
//
// Data pass: every identifier block is materialized, its read-data handler
// relocates the data pointers it owns, and a fresh session UUID is
// assigned. Lib pass: the Main is indexed and every block's read-lib
// handler resolves its identifier references. Expand pass: every loaded
// block declares its dependencies; blocks referenced but absent end up in
// Result.Missing for the host to fetch.
func Load(src io.Reader, cat *schema.Catalog, opts LoadOptions) (*Result, error) {
	r, err := NewDataReader(src, cat, opts)
	if err != nil {
		return nil, err
	}

	// Data pass.
	main := library.NewMain()
	for _, old := range r.idOrder {
		newAddr := r.GetNew(old)
		if newAddr == arena.Nil {
			continue // already reported by the reader
		}
		obj := r.Object(newAddr)
		desc := cat.ByType(reflect.TypeOf(obj))
		if desc == nil {
			archivist.Error("strata: id block of unregistered type addr=", uint64(old))
			continue
		}
		if h, ok := handlerFor(desc.Name); ok && h.ReadData != nil {
			h.ReadData(r, obj)
		}
		id, ok := library.IDOf(obj)
		if !ok {
			archivist.Error("strata: id block without ID header struct=", desc.Name)
			continue
		}
		id.RefreshSessionUUID()
		id.Tag = 0

		entry, err := main.Add(desc.Name, newAddr, obj)
		if err != nil {
			archivist.Error("strata: ", err.Error())
			continue
		}
		entry.OldAddr = old
	}

	// Lib pass. All intra-block pointers are relocated by now; identifier
	// references still hold their old tokens.
	lr := newLibReader(main, r.arena)
	for _, entry := range main.Entries() {
		if id, ok := library.IDOf(entry.Obj); ok {
			lr.register(id.Lib, entry.OldAddr, entry.Addr)
		}
	}
	for _, entry := range main.Entries() {
		if h, ok := handlerFor(entry.TypeName); ok && h.ReadLib != nil {
			h.ReadLib(lr, entry.Obj)
		}
	}

	// Expand pass over the fully resolved graph.
	e := NewExpander()
	for _, entry := range main.Entries() {
		e.Expand(entry.Addr)
	}
	e.Run(main)

	return &Result{
		Header:    r.Header(),
		Main:      main,
		Arena:     r.arena,
		Scheduled: e.Scheduled(),
		Missing:   lr.missingRefs(),
	}, nil
}
