package arena

// Address is an opaque token identifying one registered object. It is only
// ever used as a map key for relocation lookups and is never dereferenced as
// memory. The zero value is the null token.
type Address uint64

// Ptr is the type used for pointer-valued struct fields. On the write side a
// Ptr holds the original address of its target; after a load it holds the
// relocated address in the read session's arena (or Nil for a dangling or
// absent target).
type Ptr = Address

// Nil is the null address token.
const Nil Address = 0

// Resolver resolves an address to the live object registered under it.
// The write session uses it to walk linked lists.
type Resolver interface {
	Lookup(addr Address) any
}

// Arena is a handle table mapping addresses to live objects. One arena backs
// the caller's objects on the write side; a fresh arena owns the objects
// produced by a load.
type Arena struct {
	objects map[Address]any
	next    Address
}

// New returns an empty arena.
func New() *Arena {
	return &Arena{
		objects: make(map[Address]any),
		next:    1,
	}
}

// Put registers v under a fresh address and returns it. v should be a pointer
// or slice so that later mutation through the handle is visible.
func (a *Arena) Put(v any) Address {
	addr := a.next
	a.next++
	a.objects[addr] = v
	return addr
}

// Lookup returns the object registered under addr, or nil for Nil or an
// unknown address.
func (a *Arena) Lookup(addr Address) any {
	if addr == Nil {
		return nil
	}
	return a.objects[addr]
}

// Len returns the number of registered objects.
func (a *Arena) Len() int {
	return len(a.objects)
}
