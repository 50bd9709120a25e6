package blockfile

import (
	"sync"

	"github.com/ShadowGHO/strata/internal/arena"
)

// WriteFn serializes one identifier block and the buffers it owns.
type WriteFn func(w *Writer, addr arena.Address, obj any)

// ReadDataFn relocates the block's own data pointers after the data pass
// has materialized it.
type ReadDataFn func(r *DataReader, obj any)

// ReadLibFn relocates the block's references to other identifier blocks.
type ReadLibFn func(r *LibReader, obj any)

// ExpandFn declares the block's identifier dependencies to the expander.
type ExpandFn func(e *Expander, obj any)

// Handler carries the four per-type callbacks a data-owning module provides
// to participate in file I/O. Any slot may be nil; a nil slot is a no-op
// for that pass.
type Handler struct {
	Write    WriteFn
	ReadData ReadDataFn
	ReadLib  ReadLibFn
	Expand   ExpandFn
}

// handlerRegistry holds the per-struct-name handler table.
type handlerRegistry struct {
	mu     sync.RWMutex
	byName map[string]Handler
}

var handlers = &handlerRegistry{
	byName: make(map[string]Handler),
}

// RegisterHandler installs the handler for a struct name. Modules call this
// at init time; a later registration for the same name replaces the earlier
// one.
func RegisterHandler(structName string, h Handler) {
	handlers.mu.Lock()
	defer handlers.mu.Unlock()
	handlers.byName[structName] = h
}

// handlerFor looks up the handler registered for a struct name.
func handlerFor(structName string) (Handler, bool) {
	handlers.mu.RLock()
	defer handlers.mu.RUnlock()
	h, ok := handlers.byName[structName]
	return h, ok
}
