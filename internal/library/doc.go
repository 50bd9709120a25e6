// Package library models identifier blocks: named, independently
// lifetime-managed entities (top-level assets) that are referenced by name
// and address across files, as opposed to plain embedded structs.
//
// Every identifier-block struct embeds an ID header as its first field. The
// Main type is the per-file catalog of live identifier blocks, and Library
// represents a linked source file that blocks may originate from.
package library
