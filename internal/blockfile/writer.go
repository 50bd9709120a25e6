package blockfile

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
	"time"

	"github.com/voodooEntity/archivist"

	"github.com/ShadowGHO/strata/internal/arena"
	"github.com/ShadowGHO/strata/internal/library"
	"github.com/ShadowGHO/strata/internal/schema"
)

// SaveOptions configures a write session.
type SaveOptions struct {
	ByteOrder binary.ByteOrder  // byte order of the block section, nil means little-endian
	Checksum  bool              // store a SHA-256 checksum of the block section
	Metadata  map[string]string // free-form metadata for the file header
}

// Writer is one write session. Data-owning modules are handed a Writer and
// emit their structs and buffers through it; blocks are buffered and the
// container is assembled on Close.
//
// All write operations are silent no-ops when given the null address or a
// nil value. The first programming error (unknown struct name, type
// mismatch) fails the session: subsequent writes do nothing and Close
// returns the error. Partial output is never produced.
type Writer struct {
	out      io.Writer
	catalog  *schema.Catalog
	resolver arena.Resolver
	order    binary.ByteOrder
	opts     SaveOptions

	blocks  bytes.Buffer
	written map[arena.Address]struct{}
	err     error
	closed  bool
}

// NewWriter starts a write session. The resolver is used to walk linked
// lists; it is typically the arena holding the caller's objects.
func NewWriter(out io.Writer, cat *schema.Catalog, resolver arena.Resolver, opts SaveOptions) *Writer {
	order := opts.ByteOrder
	if order == nil {
		order = binary.LittleEndian
	}
	return &Writer{
		out:      out,
		catalog:  cat,
		resolver: resolver,
		order:    order,
		opts:     opts,
		written:  make(map[arena.Address]struct{}),
	}
}

// fail records the first programming error and poisons the session.
func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// Err returns the sticky session error, if any.
func (w *Writer) Err() error {
	return w.err
}

// IDForName returns the struct id for a registered name, or
// schema.StructIDNone. An unregistered name is a programming error at the
// call site, not a recoverable I/O condition.
func (w *Writer) IDForName(name string) int {
	return w.catalog.IDForName(name)
}

// emit appends one block record to the buffered block section.
func (w *Writer) emit(code [4]byte, kind BlockKind, structID int32, count int32, addr arena.Address, payload []byte) {
	h := blockHeader{
		code:     code,
		kind:     kind,
		structID: structID,
		count:    count,
		old:      addr,
		length:   uint32(len(payload)),
	}
	w.blocks.Write(h.encode(w.order))
	w.blocks.Write(payload)
}

// writeStruct is the shared struct emission path. v must be a pointer to a
// registered struct or a slice of such structs.
func (w *Writer) writeStruct(code [4]byte, id int, addr arena.Address, v any) {
	if w.err != nil || addr == arena.Nil || v == nil {
		return
	}
	if _, dup := w.written[addr]; dup {
		// Shared sub-structure reached via a second owner; the payload
		// is already in the stream under this address.
		archivist.Debug("strata: duplicate write deduplicated addr=", uint64(addr))
		return
	}
	desc := w.catalog.ByID(id)
	if desc == nil {
		w.fail(fmt.Errorf("%w: struct id %d", ErrUnknownStruct, id))
		return
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	var payload []byte
	var count int32
	switch {
	case rv.Kind() == reflect.Struct && rv.Type() == desc.Type():
		payload = schema.Encode(desc, rv, w.order)
		count = 1
	case rv.Kind() == reflect.Slice && rv.Type().Elem() == desc.Type():
		count = int32(rv.Len())
		if count == 0 {
			return
		}
		payload = make([]byte, 0, int(count)*desc.Size)
		for i := 0; i < rv.Len(); i++ {
			payload = append(payload, schema.Encode(desc, rv.Index(i), w.order)...)
		}
	default:
		w.fail(fmt.Errorf("%w: %s written as %s", ErrTypeMismatch, rv.Type(), desc.Name))
		return
	}

	w.emit(code, KindStruct, int32(desc.ID), count, addr, payload)
	w.written[addr] = struct{}{}
}

// WriteStruct serializes a single struct instance under its original
// address. Pointer fields are written as placeholder address tokens and are
// never followed; serializing pointees is the owning module's
// responsibility through further write calls.
func (w *Writer) WriteStruct(name string, addr arena.Address, v any) {
	w.WriteStructByID(w.IDForName(name), addr, v)
}

// WriteStructByID is WriteStruct with a pre-resolved struct id.
func (w *Writer) WriteStructByID(id int, addr arena.Address, v any) {
	w.writeStruct(codeData, id, addr, v)
}

// WriteStructArray serializes count contiguous instances from a slice under
// one address.
func (w *Writer) WriteStructArray(name string, addr arena.Address, slice any) {
	w.writeStruct(codeData, w.IDForName(name), addr, slice)
}

// WriteStructList walks a doubly-linked list of homogeneous nodes and
// writes each one. The node type must carry top-level Next/Prev pointer
// fields; the links themselves are written as placeholder tokens like any
// other pointer field.
func (w *Writer) WriteStructList(name string, list arena.ListBase) {
	if w.err != nil {
		return
	}
	id := w.IDForName(name)
	desc := w.catalog.ByID(id)
	if desc == nil {
		w.fail(fmt.Errorf("%w: %q", ErrUnknownStruct, name))
		return
	}
	if !desc.HasListLinks() {
		w.fail(fmt.Errorf("%w: %s", ErrNoListLinks, name))
		return
	}
	visited := make(map[arena.Address]struct{})
	for cur := list.First; cur != arena.Nil; {
		if _, seen := visited[cur]; seen {
			archivist.Error("strata: list cycle detected addr=", uint64(cur))
			break
		}
		visited[cur] = struct{}{}
		obj := w.resolver.Lookup(cur)
		if obj == nil {
			archivist.Error("strata: list node not registered in arena addr=", uint64(cur))
			break
		}
		// A node already serialized through another owner is deduplicated
		// by the struct path; the walk still follows its Next link so the
		// rest of the list is written.
		w.WriteStructByID(id, cur, obj)
		if w.err != nil {
			return
		}
		cur = desc.ListNext(reflect.Indirect(reflect.ValueOf(obj)))
	}
}

// WriteIDStruct serializes an identifier block. The value must embed an ID
// header as its first field; runtime-only ID bookkeeping (session UUID,
// tag bits) is excluded from the layout by the catalog and never reaches
// the stream. The block is tagged so the load seeds its Main from it.
func (w *Writer) WriteIDStruct(name string, addr arena.Address, v any) {
	if w.err != nil || addr == arena.Nil || v == nil {
		return
	}
	if _, ok := library.IDOf(v); !ok {
		w.fail(fmt.Errorf("%w: %s", ErrNotIDStruct, name))
		return
	}
	w.writeStruct(codeID, w.IDForName(name), addr, v)
}

// writeTagged is the shared path for raw and scalar-array payloads.
func (w *Writer) writeTagged(kind BlockKind, count int32, addr arena.Address, payload []byte) {
	if w.err != nil || addr == arena.Nil || payload == nil {
		return
	}
	if _, dup := w.written[addr]; dup {
		return
	}
	w.emit(codeData, kind, int32(schema.StructIDNone), count, addr, payload)
	w.written[addr] = struct{}{}
}

// WriteRaw writes an opaque buffer verbatim: no pointer rewriting, no
// structure awareness, no byte-order correction on load.
func (w *Writer) WriteRaw(addr arena.Address, data []byte) {
	if data == nil {
		return
	}
	w.writeTagged(KindRaw, int32(len(data)), addr, data)
}

// WriteString writes a NUL-terminated byte sequence including the
// terminator.
func (w *Writer) WriteString(addr arena.Address, s string) {
	if w.err != nil || addr == arena.Nil {
		return
	}
	payload := append([]byte(s), 0)
	w.writeTagged(KindString, int32(len(payload)), addr, payload)
}

// WriteInt32Array writes an int32 array tagged for byte-order correction.
func (w *Writer) WriteInt32Array(addr arena.Address, data []int32) {
	if data == nil {
		return
	}
	payload := make([]byte, 4*len(data))
	for i, v := range data {
		w.order.PutUint32(payload[4*i:], uint32(v))
	}
	w.writeTagged(KindInt32Array, int32(len(data)), addr, payload)
}

// WriteUint32Array writes a uint32 array tagged for byte-order correction.
func (w *Writer) WriteUint32Array(addr arena.Address, data []uint32) {
	if data == nil {
		return
	}
	payload := make([]byte, 4*len(data))
	for i, v := range data {
		w.order.PutUint32(payload[4*i:], v)
	}
	w.writeTagged(KindUint32Array, int32(len(data)), addr, payload)
}

// WriteFloatArray writes a float32 array tagged for byte-order correction.
func (w *Writer) WriteFloatArray(addr arena.Address, data []float32) {
	if data == nil {
		return
	}
	w.writeTagged(KindFloatArray, int32(len(data)), addr, w.encodeFloats(data))
}

// WriteFloat3Array writes an array of float triplets. data holds the
// flattened components; its length must be a multiple of 3.
func (w *Writer) WriteFloat3Array(addr arena.Address, data []float32) {
	if data == nil {
		return
	}
	if len(data)%3 != 0 {
		w.fail(fmt.Errorf("%w: float3 array of %d components", ErrTypeMismatch, len(data)))
		return
	}
	w.writeTagged(KindFloat3Array, int32(len(data)/3), addr, w.encodeFloats(data))
}

// WriteDoubleArray writes a float64 array tagged for byte-order correction.
func (w *Writer) WriteDoubleArray(addr arena.Address, data []float64) {
	if data == nil {
		return
	}
	payload := make([]byte, 8*len(data))
	for i, v := range data {
		w.order.PutUint64(payload[8*i:], math.Float64bits(v))
	}
	w.writeTagged(KindDoubleArray, int32(len(data)), addr, payload)
}

// WritePointerArray writes an array of pointer tokens; each element is
// relocated individually on load.
func (w *Writer) WritePointerArray(addr arena.Address, ptrs []arena.Ptr) {
	if ptrs == nil {
		return
	}
	payload := make([]byte, 8*len(ptrs))
	for i, p := range ptrs {
		w.order.PutUint64(payload[8*i:], uint64(p))
	}
	w.writeTagged(KindPointerArray, int32(len(ptrs)), addr, payload)
}

func (w *Writer) encodeFloats(data []float32) []byte {
	payload := make([]byte, 4*len(data))
	for i, v := range data {
		w.order.PutUint32(payload[4*i:], math.Float32bits(v))
	}
	return payload
}

// Close assembles and writes the container: fixed header, JSON header with
// the embedded struct catalog, optional checksum, then the buffered block
// section and the end block. Returns the sticky session error if the
// session failed; nothing is written in that case.
func (w *Writer) Close() error {
	if w.closed {
		return ErrSessionClosed
	}
	w.closed = true
	if w.err != nil {
		return w.err
	}

	// Terminate the block stream.
	w.emit(codeEnd, 0, int32(schema.StructIDNone), 0, arena.Nil, nil)

	header := Header{
		FormatVersion: FormatVersion,
		EngineVersion: engineVersion,
		CreatedAt:     time.Now().UTC(),
		ByteOrder:     byteOrderName(w.order),
		Structs:       structMetas(w.catalog),
		Metadata:      w.opts.Metadata,
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	flags := uint32(0)
	if w.order == binary.ByteOrder(binary.BigEndian) {
		flags |= FlagBigEndian
	}
	if w.opts.Checksum {
		flags |= FlagHasChecksum
	}

	// The fixed header and JSON header are always little-endian; only the
	// block section uses the session byte order.
	fixed := make([]byte, fixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], uint32(FormatVersion))
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[12:20], uint64(len(headerJSON)))
	if _, err := w.out.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}

	if w.opts.Checksum {
		sum := ComputeChecksum(w.blocks.Bytes())
		if _, err := w.out.Write(sum[:]); err != nil {
			return fmt.Errorf("failed to write checksum: %w", err)
		}
	}

	if _, err := w.out.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := w.out.Write(w.blocks.Bytes()); err != nil {
		return fmt.Errorf("failed to write block section: %w", err)
	}
	return nil
}

// byteOrderName records the block-section byte order in the JSON header.
func byteOrderName(order binary.ByteOrder) string {
	if order == binary.ByteOrder(binary.BigEndian) {
		return "big"
	}
	return "little"
}
