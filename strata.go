// Copyright 2025 The Strata Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package strata is the public API of the strata serialization engine.
//
// Data-owning modules register their struct layouts in a Catalog and their
// per-type callbacks in the handler registry, then drive file I/O through
// Save and Load.
package strata

import (
	"io"

	"github.com/ShadowGHO/strata/internal/arena"
	"github.com/ShadowGHO/strata/internal/blockfile"
	"github.com/ShadowGHO/strata/internal/library"
	"github.com/ShadowGHO/strata/internal/schema"
)

// Address model.

// Address is an opaque token identifying one registered object.
type Address = arena.Address

// Ptr is the type of pointer-valued struct fields.
type Ptr = arena.Ptr

// Nil is the null address token.
const Nil = arena.Nil

// Arena is the handle table mapping addresses to live objects.
type Arena = arena.Arena

// ListBase is the header of a doubly-linked list of nodes.
type ListBase = arena.ListBase

// Resolver resolves an address to the live object registered under it.
type Resolver = arena.Resolver

// NewArena returns an empty arena.
func NewArena() *Arena {
	return arena.New()
}

// Struct catalog.

// Catalog maps struct names to ids and compiled layout metadata.
type Catalog = schema.Catalog

// StructDescriptor is the compiled layout of one registered struct.
type StructDescriptor = schema.StructDescriptor

// Field describes one serialized field.
type Field = schema.Field

// StructIDNone is the sentinel id returned for unregistered struct names.
const StructIDNone = schema.StructIDNone

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return schema.NewCatalog()
}

// Identifier blocks.

// ID is the header embedded as the first field of every identifier block.
type ID = library.ID

// Library represents a linked source file.
type Library = library.Library

// Main is the per-file catalog of live identifier blocks.
type Main = library.Main

// Entry is one identifier block tracked by a Main.
type Entry = library.Entry

// NewMain returns an empty Main.
func NewMain() *Main {
	return library.NewMain()
}

// IDOf returns the embedded ID header of an identifier-block struct.
func IDOf(obj any) (*ID, bool) {
	return library.IDOf(obj)
}

// Sessions and passes.

// Writer is one write session.
type Writer = blockfile.Writer

// DataReader is the data pass of a load session.
type DataReader = blockfile.DataReader

// LibReader is the identifier-resolution pass of a load session.
type LibReader = blockfile.LibReader

// Expander is the dependency-discovery pass of a load session.
type Expander = blockfile.Expander

// Handler carries the four per-type I/O callbacks of a data-owning module.
type Handler = blockfile.Handler

// SaveOptions configures a write session.
type SaveOptions = blockfile.SaveOptions

// LoadOptions configures a load session.
type LoadOptions = blockfile.LoadOptions

// Result is the outcome of a load.
type Result = blockfile.Result

// Header is the parsed file header.
type Header = blockfile.Header

// MissingRef identifies a referenced identifier block absent from the file.
type MissingRef = blockfile.MissingRef

// Validation levels for load sessions.
const (
	ValidationStrict = blockfile.ValidationStrict
	ValidationNormal = blockfile.ValidationNormal
	ValidationNone   = blockfile.ValidationNone
)

// RegisterHandler installs the I/O callbacks for a struct name.
func RegisterHandler(structName string, h Handler) {
	blockfile.RegisterHandler(structName, h)
}

// Save writes every identifier block of m into one container on dst.
func Save(dst io.Writer, m *Main, cat *Catalog, res Resolver, opts SaveOptions) error {
	return blockfile.Save(dst, m, cat, res, opts)
}

// Load reads a container from src and runs the data, lib and expand passes
// in order.
func Load(src io.Reader, cat *Catalog, opts LoadOptions) (*Result, error) {
	return blockfile.Load(src, cat, opts)
}
