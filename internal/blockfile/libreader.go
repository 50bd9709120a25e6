package blockfile

import (
	"github.com/voodooEntity/archivist"

	"github.com/ShadowGHO/strata/internal/arena"
	"github.com/ShadowGHO/strata/internal/library"
)

// MissingRef identifies an identifier block that was referenced during the
// lib pass but is not present in this file. The host is expected to load
// it (the expand pass schedules it) and run a later resolution pass to
// backfill the reference.
type MissingRef struct {
	Lib arena.Ptr // library of origin the reference is relative to
	Old arena.Ptr // original address token of the referenced block
}

type libKey struct {
	lib arena.Address
	old arena.Address
}

// LibReader is the second load pass: it resolves references to identifier
// blocks, scoped by the library the reference is nominally relative to, so
// the same name may exist independently in multiple linked files.
type LibReader struct {
	main    *library.Main
	ar      *arena.Arena
	byOld   map[libKey]arena.Address
	pending map[libKey]struct{}
	missing []MissingRef
}

func newLibReader(m *library.Main, ar *arena.Arena) *LibReader {
	return &LibReader{
		main:    m,
		ar:      ar,
		byOld:   make(map[libKey]arena.Address),
		pending: make(map[libKey]struct{}),
	}
}

// register records the relocation of one loaded identifier block.
func (r *LibReader) register(lib, old, newAddr arena.Address) {
	r.byOld[libKey{lib: lib, old: old}] = newAddr
}

// GetNewID resolves a reference to an identifier block. Repeated calls with
// identical inputs return the identical result for the duration of the
// load. A target that is not loaded resolves null and is recorded as
// missing; this is an expected transient state, not an error.
func (r *LibReader) GetNewID(lib, old arena.Ptr) arena.Ptr {
	if old == arena.Nil {
		return arena.Nil
	}
	key := libKey{lib: lib, old: old}
	if newAddr, ok := r.byOld[key]; ok {
		return newAddr
	}
	if _, seen := r.pending[key]; !seen {
		r.pending[key] = struct{}{}
		r.missing = append(r.missing, MissingRef{Lib: lib, Old: old})
		archivist.Debug("strata: unresolved id reference lib=", uint64(lib), " addr=", uint64(old))
	}
	return arena.Nil
}

// RelocID rewrites an identifier pointer field in place through GetNewID.
func (r *LibReader) RelocID(lib arena.Ptr, p *arena.Ptr) {
	*p = r.GetNewID(lib, *p)
}

// Object dereferences a relocated handle.
func (r *LibReader) Object(addr arena.Address) any {
	return r.ar.Lookup(addr)
}

// Main returns the identifier-block catalog built by this load.
func (r *LibReader) Main() *library.Main {
	return r.main
}

// missingRefs returns the references that could not be resolved, in
// first-seen order.
func (r *LibReader) missingRefs() []MissingRef {
	return r.missing
}
