// Package schema implements the struct catalog: the mapping from
// human-readable struct names to compact integer ids and compiled layout
// metadata (packed field offsets, sizes, pointer locations, array arity).
//
// Layouts are derived once from registered Go exemplar structs via
// reflection. The packed offsets are the wire contract of the file format
// and are independent of Go's in-memory field alignment. A catalog is built
// at process start and treated as immutable for the lifetime of every write
// and load session that uses it.
package schema
