package blockfile

import (
	"github.com/voodooEntity/archivist"

	"github.com/ShadowGHO/strata/internal/arena"
	"github.com/ShadowGHO/strata/internal/library"
)

// Expander is the dependency-discovery pass. Identifier blocks declare the
// blocks they reference through Expand; each reachable block is scheduled
// exactly once, and the traversal is iterative so arbitrarily deep
// reference chains cannot exhaust the stack. Traversal order is not a
// contract; completeness is.
type Expander struct {
	seen      map[arena.Ptr]struct{}
	queue     []arena.Ptr
	scheduled []arena.Ptr
}

// NewExpander returns an empty expander.
func NewExpander() *Expander {
	return &Expander{
		seen: make(map[arena.Ptr]struct{}),
	}
}

// Expand registers id as reachable and schedules it for traversal if it
// has not been scheduled before. The null token is ignored, so expand
// callbacks can pass optional references unconditionally.
func (e *Expander) Expand(id arena.Ptr) {
	if id == arena.Nil {
		return
	}
	if _, ok := e.seen[id]; ok {
		return
	}
	e.seen[id] = struct{}{}
	e.queue = append(e.queue, id)
	e.scheduled = append(e.scheduled, id)
}

// Run drains the frontier against a Main: every scheduled block that is
// loaded gets its own expand callback invoked, which may schedule further
// blocks. Blocks scheduled but absent from the Main are left for the host
// to fetch (they appear in Scheduled but resolve to no entry).
func (e *Expander) Run(m *library.Main) {
	for len(e.queue) > 0 {
		id := e.queue[0]
		e.queue = e.queue[1:]

		entry := m.ByAddress(id)
		if entry == nil {
			archivist.Debug("strata: expand target not loaded addr=", uint64(id))
			continue
		}
		if h, ok := handlerFor(entry.TypeName); ok && h.Expand != nil {
			h.Expand(e, entry.Obj)
		}
	}
}

// Scheduled returns every block scheduled so far, in schedule order.
func (e *Expander) Scheduled() []arena.Ptr {
	out := make([]arena.Ptr, len(e.scheduled))
	copy(out, e.scheduled)
	return out
}
