// Package arena provides the opaque address model shared by the write and
// read sides of the serialization engine.
//
// Objects are identified by Address tokens handed out by an Arena instead
// of raw memory addresses. The tokens are stable for the lifetime of the
// arena, are never dereferenced directly, and address 0 is reserved as the
// null token. Pointer-valued struct fields use the Ptr alias and are
// serialized as their token value, to be relocated on load.
package arena
