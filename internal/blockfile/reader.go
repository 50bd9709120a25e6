package blockfile

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"

	"github.com/voodooEntity/archivist"

	"github.com/ShadowGHO/strata/internal/arena"
	"github.com/ShadowGHO/strata/internal/schema"
)

// LoadOptions configures a load session.
type LoadOptions struct {
	// HostOrder is the byte order the running host expects for scalar
	// data; nil means little-endian. Tests inject an explicit order so
	// the endian-switch path is exercised regardless of the machine.
	HostOrder binary.ByteOrder
	// ValidationLevel controls block-stream strictness.
	ValidationLevel ValidationLevel
	// SkipChecksum disables checksum verification even when present.
	SkipChecksum bool
}

// blockRecord is one parsed block of the stream, payload still in file
// byte order until the block is materialized.
type blockRecord struct {
	code     [4]byte
	kind     BlockKind
	structID int32
	count    int
	old      arena.Address
	payload  []byte
}

// DataReader is the data pass of a load session. It owns the block index
// keyed by original address and materializes blocks on demand, recording
// the old-to-new relocation for every block it decodes.
type DataReader struct {
	catalog   *schema.Catalog
	header    Header
	fileOrder binary.ByteOrder
	swap      bool
	opts      LoadOptions

	blocks   map[arena.Address]*blockRecord
	idOrder  []arena.Address // identifier blocks in stream order
	byFileID map[int32]*schema.StructDescriptor
	newAddr  map[arena.Address]arena.Address
	arena    *arena.Arena
}

// NewDataReader parses the container from src: fixed header, JSON header,
// checksum and the block index. Block payloads are not decoded yet; they
// materialize on first relocation.
func NewDataReader(src io.Reader, cat *schema.Catalog, opts LoadOptions) (*DataReader, error) {
	if opts.HostOrder == nil {
		opts.HostOrder = binary.LittleEndian
	}

	fixed := make([]byte, fixedHeaderSize)
	if _, err := io.ReadFull(src, fixed); err != nil {
		return nil, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	version := binary.LittleEndian.Uint32(fixed[4:8])
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}
	flags := binary.LittleEndian.Uint32(fixed[8:12])
	headerSize := binary.LittleEndian.Uint64(fixed[12:20])
	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}

	var stored [ChecksumSize]byte
	hasChecksum := flags&FlagHasChecksum != 0
	if hasChecksum {
		if _, err := io.ReadFull(src, stored[:]); err != nil {
			return nil, fmt.Errorf("failed to read checksum: %w", err)
		}
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(src, headerBytes); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	section, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read block section: %w", err)
	}
	if hasChecksum && !opts.SkipChecksum && opts.ValidationLevel != ValidationNone {
		if err := ValidateChecksum(ComputeChecksum(section), stored); err != nil {
			return nil, err
		}
	}

	fileOrder := binary.ByteOrder(binary.LittleEndian)
	if flags&FlagBigEndian != 0 {
		fileOrder = binary.BigEndian
	}

	r := &DataReader{
		catalog:   cat,
		header:    header,
		fileOrder: fileOrder,
		swap:      (flags&FlagBigEndian != 0) != (opts.HostOrder == binary.ByteOrder(binary.BigEndian)),
		opts:      opts,
		blocks:    make(map[arena.Address]*blockRecord),
		byFileID:  make(map[int32]*schema.StructDescriptor),
		newAddr:   make(map[arena.Address]arena.Address),
		arena:     arena.New(),
	}

	if err := r.reconcileCatalog(); err != nil {
		return nil, err
	}
	if err := r.scanBlocks(section); err != nil {
		return nil, err
	}
	return r, nil
}

// reconcileCatalog maps the file's struct ids onto the runtime catalog by
// name. Struct names unknown to the runtime catalog are reported; their
// blocks will be skipped and pointers into them resolve null.
func (r *DataReader) reconcileCatalog() error {
	for _, m := range r.header.Structs {
		desc := r.catalog.ByName(m.Name)
		if desc == nil {
			archivist.Info("strata: file struct not registered, its blocks will be skipped name=", m.Name)
			continue
		}
		if err := checkLayout(desc, m); err != nil {
			if r.opts.ValidationLevel == ValidationStrict {
				return err
			}
			archivist.Error("strata: ", err.Error())
			continue
		}
		r.byFileID[int32(m.ID)] = desc
	}
	return nil
}

// checkLayout compares one file catalog entry against the runtime
// descriptor of the same name.
func checkLayout(desc *schema.StructDescriptor, m StructMeta) error {
	if desc.Size != m.Size {
		return &CorruptionError{
			Kind:   "layout_mismatch",
			Detail: fmt.Sprintf("struct %s: file size %d, runtime size %d", m.Name, m.Size, desc.Size),
		}
	}
	for _, f := range m.Fields {
		if _, ok := schema.TagForName(f.Type); !ok {
			return &CorruptionError{
				Kind:   "layout_mismatch",
				Detail: fmt.Sprintf("struct %s: field %s has unknown wire type %q", m.Name, f.Name, f.Type),
			}
		}
	}
	return nil
}

// scanBlocks builds the block index from the raw section.
func (r *DataReader) scanBlocks(section []byte) error {
	off := 0
	for {
		if off+blockHeaderSize > len(section) {
			if r.opts.ValidationLevel == ValidationStrict {
				return fmt.Errorf("%w: no end block", ErrTruncatedStream)
			}
			archivist.Error("strata: block stream truncated, loaded what was indexed")
			return nil
		}
		h := decodeBlockHeader(section[off:], r.fileOrder)
		if h.code == codeEnd {
			return nil
		}
		off += blockHeaderSize

		if off+int(h.length) > len(section) {
			if r.opts.ValidationLevel == ValidationStrict {
				return fmt.Errorf("%w: block 0x%x overruns section", ErrTruncatedStream, uint64(h.old))
			}
			archivist.Error("strata: truncated block dropped addr=", uint64(h.old))
			return nil
		}
		payload := section[off : off+int(h.length)]
		off += int(h.length)

		if len(r.blocks) >= MaxBlockCount {
			return ErrTooManyBlocks
		}
		if r.opts.ValidationLevel != ValidationNone {
			if err := validateBlock(h); err != nil {
				if r.opts.ValidationLevel == ValidationStrict {
					return err
				}
				archivist.Error("strata: ", err.Error())
				continue
			}
		}
		if _, dup := r.blocks[h.old]; dup {
			err := &CorruptionError{Kind: "duplicate_address", Address: uint64(h.old), Detail: "second block with same original address"}
			if r.opts.ValidationLevel == ValidationStrict {
				return err
			}
			archivist.Error("strata: ", err.Error())
			continue
		}

		rec := &blockRecord{
			code:     h.code,
			kind:     h.kind,
			structID: h.structID,
			count:    int(h.count),
			old:      h.old,
			payload:  payload,
		}
		r.blocks[h.old] = rec
		if h.code == codeID {
			r.idOrder = append(r.idOrder, h.old)
		}
	}
}

// Header returns the parsed file header.
func (r *DataReader) Header() Header {
	return r.header
}

// RequiresEndianSwitch reports whether the file's byte order differs from
// the host order of this session. Constant for the whole session.
func (r *DataReader) RequiresEndianSwitch() bool {
	return r.swap
}

// Arena returns the arena owning every object materialized by this load.
func (r *DataReader) Arena() *arena.Arena {
	return r.arena
}

// Object dereferences a relocated handle.
func (r *DataReader) Object(addr arena.Address) any {
	return r.arena.Lookup(addr)
}

// GetNew is the relocation primitive: it maps an original address to the
// handle of the materialized object, decoding the block on first use.
// A null input yields null. A non-null address without a block is a
// reportable inconsistency in the file: it is logged and resolves null,
// never a dangling handle.
func (r *DataReader) GetNew(old arena.Address) arena.Address {
	if old == arena.Nil {
		return arena.Nil
	}
	if newAddr, done := r.newAddr[old]; done {
		return newAddr
	}
	rec, ok := r.blocks[old]
	if !ok {
		archivist.Error("strata: dangling reference, no block for addr=", uint64(old))
		r.newAddr[old] = arena.Nil
		return arena.Nil
	}
	newAddr := r.materialize(rec)
	r.newAddr[old] = newAddr
	return newAddr
}

// RelocPtr rewrites a pointer field in place through GetNew.
func (r *DataReader) RelocPtr(p *arena.Ptr) {
	*p = r.GetNew(*p)
}

// materialize decodes one block into a fresh object registered in the
// session arena. Struct pointer fields still hold their old tokens after
// this; relocating them is the owning module's read callback's job.
func (r *DataReader) materialize(rec *blockRecord) arena.Address {
	// Under ValidationNone the scan-time count/length cross-check is
	// skipped, so the count is clamped to the payload here before any
	// slice is sized from it.
	if rec.count < 0 {
		rec.count = 0
	}
	if es := rec.kind.ElemSize(); es > 0 {
		if max := len(rec.payload) / es; rec.count > max {
			archivist.Error("strata: block count exceeds payload, clamped addr=", uint64(rec.old))
			rec.count = max
		}
	}
	switch rec.kind {
	case KindStruct:
		return r.materializeStruct(rec)
	case KindRaw:
		buf := make([]byte, len(rec.payload))
		copy(buf, rec.payload)
		return r.arena.Put(buf)
	case KindString:
		s := rec.payload
		if i := bytes.IndexByte(s, 0); i >= 0 {
			s = s[:i]
		}
		return r.arena.Put(string(s))
	case KindInt32Array:
		out := make([]int32, rec.count)
		for i := range out {
			out[i] = int32(r.fileOrder.Uint32(rec.payload[4*i:]))
		}
		return r.arena.Put(out)
	case KindUint32Array:
		out := make([]uint32, rec.count)
		for i := range out {
			out[i] = r.fileOrder.Uint32(rec.payload[4*i:])
		}
		return r.arena.Put(out)
	case KindFloatArray:
		out := make([]float32, rec.count)
		for i := range out {
			out[i] = math.Float32frombits(r.fileOrder.Uint32(rec.payload[4*i:]))
		}
		return r.arena.Put(out)
	case KindFloat3Array:
		// count is the triplet count; the slice holds the flattened
		// components.
		out := make([]float32, 3*rec.count)
		for i := range out {
			out[i] = math.Float32frombits(r.fileOrder.Uint32(rec.payload[4*i:]))
		}
		return r.arena.Put(out)
	case KindDoubleArray:
		out := make([]float64, rec.count)
		for i := range out {
			out[i] = math.Float64frombits(r.fileOrder.Uint64(rec.payload[8*i:]))
		}
		return r.arena.Put(out)
	case KindPointerArray:
		out := make([]arena.Ptr, rec.count)
		// Register the slice before relocating its elements so a
		// self-referential pointer array terminates.
		newAddr := r.arena.Put(out)
		r.newAddr[rec.old] = newAddr
		for i := range out {
			out[i] = r.GetNew(arena.Address(r.fileOrder.Uint64(rec.payload[8*i:])))
		}
		return newAddr
	default:
		archivist.Error("strata: unknown block kind skipped kind=", uint64(rec.kind), " addr=", uint64(rec.old))
		return arena.Nil
	}
}

// materializeStruct decodes one struct block, single instance or array.
func (r *DataReader) materializeStruct(rec *blockRecord) arena.Address {
	desc := r.byFileID[rec.structID]
	if desc == nil {
		archivist.Error("strata: block with unknown struct id skipped id=", uint64(rec.structID), " addr=", uint64(rec.old))
		return arena.Nil
	}
	if rec.count < 1 || len(rec.payload) < rec.count*desc.Size {
		archivist.Error("strata: short struct block skipped struct=", desc.Name, " addr=", uint64(rec.old))
		return arena.Nil
	}
	if rec.count == 1 {
		obj, err := schema.Decode(desc, rec.payload, r.fileOrder)
		if err != nil {
			archivist.Error("strata: struct decode failed: ", err.Error())
			return arena.Nil
		}
		return r.arena.Put(obj)
	}
	slice := reflect.MakeSlice(reflect.SliceOf(desc.Type()), rec.count, rec.count)
	for i := 0; i < rec.count; i++ {
		if err := schema.DecodeInto(desc, rec.payload[i*desc.Size:], r.fileOrder, slice.Index(i)); err != nil {
			archivist.Error("strata: struct array decode failed: ", err.Error())
			return arena.Nil
		}
	}
	return r.arena.Put(slice.Interface())
}

// ReadList reconstructs a doubly-linked list: every node is materialized,
// its links are relocated and re-linked in original order, and fn (may be
// nil) is invoked per node for the owning module's extra fixups. The last
// node's Next is null.
func (r *DataReader) ReadList(lb *arena.ListBase, fn func(obj any)) {
	oldCur := lb.First
	lb.Clear()

	var desc *schema.StructDescriptor
	var prevNew arena.Address
	var prevVal reflect.Value
	visited := make(map[arena.Address]struct{})

	for oldCur != arena.Nil {
		if _, seen := visited[oldCur]; seen {
			archivist.Error("strata: list cycle detected addr=", uint64(oldCur))
			break
		}
		visited[oldCur] = struct{}{}

		newCur := r.GetNew(oldCur)
		if newCur == arena.Nil {
			break
		}
		obj := r.arena.Lookup(newCur)
		if desc == nil {
			desc = r.catalog.ByType(reflect.TypeOf(obj))
			if desc == nil || !desc.HasListLinks() {
				archivist.Error("strata: list node type has no links, list truncated addr=", uint64(oldCur))
				break
			}
		}
		val := reflect.ValueOf(obj).Elem()

		oldNext := desc.ListNext(val)
		desc.SetListNext(val, arena.Nil)
		desc.SetListPrev(val, prevNew)
		if prevNew != arena.Nil {
			desc.SetListNext(prevVal, newCur)
		} else {
			lb.First = newCur
		}
		lb.Last = newCur

		if fn != nil {
			fn(obj)
		}

		prevNew = newCur
		prevVal = val
		oldCur = oldNext
	}
}

// readArray is the shared relocation path of the typed array readers. It
// rewrites the pointer in place and returns the materialized object, or
// nil with the pointer nulled when the block is absent or of the wrong
// kind.
func (r *DataReader) readArray(p *arena.Ptr, want BlockKind) any {
	old := *p
	if old == arena.Nil {
		return nil
	}
	if rec, ok := r.blocks[old]; ok && rec.kind != want {
		archivist.Error("strata: block kind mismatch, expected ", want.String(), " got ", rec.kind.String(), " addr=", uint64(old))
		*p = arena.Nil
		return nil
	}
	*p = r.GetNew(old)
	return r.arena.Lookup(*p)
}

// ReadInt32Array materializes an int32 array, byte-order corrected.
func (r *DataReader) ReadInt32Array(p *arena.Ptr) []int32 {
	if out, ok := r.readArray(p, KindInt32Array).([]int32); ok {
		return out
	}
	return nil
}

// ReadUint32Array materializes a uint32 array, byte-order corrected.
func (r *DataReader) ReadUint32Array(p *arena.Ptr) []uint32 {
	if out, ok := r.readArray(p, KindUint32Array).([]uint32); ok {
		return out
	}
	return nil
}

// ReadFloatArray materializes a float32 array, byte-order corrected.
func (r *DataReader) ReadFloatArray(p *arena.Ptr) []float32 {
	if out, ok := r.readArray(p, KindFloatArray).([]float32); ok {
		return out
	}
	return nil
}

// ReadFloat3Array materializes a float-triplet array as its flattened
// components, byte-order corrected.
func (r *DataReader) ReadFloat3Array(p *arena.Ptr) []float32 {
	if out, ok := r.readArray(p, KindFloat3Array).([]float32); ok {
		return out
	}
	return nil
}

// ReadDoubleArray materializes a float64 array, byte-order corrected.
func (r *DataReader) ReadDoubleArray(p *arena.Ptr) []float64 {
	if out, ok := r.readArray(p, KindDoubleArray).([]float64); ok {
		return out
	}
	return nil
}

// ReadPointerArray materializes an array of pointer tokens with every
// element relocated.
func (r *DataReader) ReadPointerArray(p *arena.Ptr) []arena.Ptr {
	if out, ok := r.readArray(p, KindPointerArray).([]arena.Ptr); ok {
		return out
	}
	return nil
}

// ReadRaw materializes an opaque buffer written with WriteRaw.
func (r *DataReader) ReadRaw(p *arena.Ptr) []byte {
	if out, ok := r.readArray(p, KindRaw).([]byte); ok {
		return out
	}
	return nil
}

// ReadString materializes a NUL-terminated string block.
func (r *DataReader) ReadString(p *arena.Ptr) string {
	if out, ok := r.readArray(p, KindString).(string); ok {
		return out
	}
	return ""
}
