package blockfile

import (
	"encoding/binary"
	"time"

	"github.com/ShadowGHO/strata/internal/arena"
	"github.com/ShadowGHO/strata/internal/schema"
)

const engineVersion = "0.4.1" // Current strata version

// Format constants.
const (
	MagicBytes      = "STRA"
	FormatVersion   = 1
	MaxHeaderSize   = 16 * 1024 * 1024 // 16MB cap on the JSON header
	ChecksumSize    = 32               // SHA-256 checksum size
	fixedHeaderSize = 4 + 4 + 4 + 8    // magic + version + flags + header size
	blockHeaderSize = 32
)

// Container flags.
const (
	FlagBigEndian   uint32 = 1 << 0 // bit 0: block section uses big-endian byte order
	FlagHasChecksum uint32 = 1 << 1 // bit 1: SHA-256 checksum of the block section present
)

// Block codes. The fixed container header and the JSON header are always
// little-endian; block headers and payloads use the byte order recorded in
// the flags.
var (
	codeData = [4]byte{'D', 'A', 'T', 'A'} // plain struct or buffer block
	codeID   = [4]byte{'I', 'D', 'B', 'L'} // identifier block, seeds the Main on load
	codeEnd  = [4]byte{'E', 'N', 'D', 'B'} // stream terminator
)

// BlockKind tags how a block's payload is interpreted on load, in
// particular whether and how scalar elements are byte-swapped.
type BlockKind uint8

// Payload kinds.
const (
	KindStruct BlockKind = iota + 1
	KindRaw
	KindString
	KindInt32Array
	KindUint32Array
	KindFloatArray
	KindFloat3Array
	KindDoubleArray
	KindPointerArray
)

// ElemSize returns the serialized width of one array element, or 0 for
// kinds without a fixed element width.
func (k BlockKind) ElemSize() int {
	switch k {
	case KindInt32Array, KindUint32Array, KindFloatArray:
		return 4
	case KindFloat3Array:
		return 12
	case KindDoubleArray, KindPointerArray:
		return 8
	default:
		return 0
	}
}

// String returns a short name for diagnostics.
func (k BlockKind) String() string {
	switch k {
	case KindStruct:
		return "struct"
	case KindRaw:
		return "raw"
	case KindString:
		return "string"
	case KindInt32Array:
		return "int32[]"
	case KindUint32Array:
		return "uint32[]"
	case KindFloatArray:
		return "float[]"
	case KindFloat3Array:
		return "float3[]"
	case KindDoubleArray:
		return "double[]"
	case KindPointerArray:
		return "ptr[]"
	default:
		return "unknown"
	}
}

// Header is the JSON metadata header of a container. It embeds the full
// struct catalog used at write time, so a reader reconciles the file's
// struct ids against its own compiled-in catalog by name.
type Header struct {
	FormatVersion int               `json:"format_version"` // Version of the container format
	EngineVersion string            `json:"engine_version"` // Version of strata that created this file
	CreatedAt     time.Time         `json:"created_at"`     // When the file was created
	ByteOrder     string            `json:"byte_order"`     // "little" or "big"
	Structs       []StructMeta      `json:"structs"`        // Embedded struct catalog
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// StructMeta describes one catalog entry in the file header.
type StructMeta struct {
	Name   string      `json:"name"`
	ID     int         `json:"id"`
	Size   int         `json:"size"` // packed payload size of one instance
	Fields []FieldMeta `json:"fields"`
}

// FieldMeta describes one serialized field.
type FieldMeta struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Offset   int    `json:"offset"`
	ArrayLen int    `json:"array_len"`
	Pointer  bool   `json:"pointer,omitempty"`
}

// structMetas converts a runtime catalog into its file-header form.
func structMetas(cat *schema.Catalog) []StructMeta {
	descs := cat.Descriptors()
	out := make([]StructMeta, len(descs))
	for i, d := range descs {
		fields := make([]FieldMeta, len(d.Fields))
		for j := range d.Fields {
			f := &d.Fields[j]
			fields[j] = FieldMeta{
				Name:     f.Name,
				Type:     f.Tag.String(),
				Offset:   f.Offset,
				ArrayLen: f.ArrayLen,
				Pointer:  f.Pointer,
			}
		}
		out[i] = StructMeta{Name: d.Name, ID: d.ID, Size: d.Size, Fields: fields}
	}
	return out
}

// blockHeader is the fixed 32-byte record preceding every block payload.
type blockHeader struct {
	code     [4]byte
	kind     BlockKind
	structID int32
	count    int32
	old      arena.Address
	length   uint32
}

// encode serializes the header under the file byte order.
//
//	0x00-0x03: block code
//	0x04:      payload kind
//	0x05-0x07: reserved
//	0x08-0x0B: struct id (int32)
//	0x0C-0x0F: instance count (int32)
//	0x10-0x17: original address token (uint64)
//	0x18-0x1B: payload length (uint32)
//	0x1C-0x1F: reserved
func (h *blockHeader) encode(order binary.ByteOrder) []byte {
	buf := make([]byte, blockHeaderSize)
	copy(buf[0:4], h.code[:])
	buf[4] = byte(h.kind)
	order.PutUint32(buf[8:12], uint32(h.structID))
	order.PutUint32(buf[12:16], uint32(h.count))
	order.PutUint64(buf[16:24], uint64(h.old))
	order.PutUint32(buf[24:28], h.length)
	return buf
}

// decodeBlockHeader parses a fixed block header; b must hold at least
// blockHeaderSize bytes.
func decodeBlockHeader(b []byte, order binary.ByteOrder) blockHeader {
	var h blockHeader
	copy(h.code[:], b[0:4])
	h.kind = BlockKind(b[4])
	h.structID = int32(order.Uint32(b[8:12]))
	h.count = int32(order.Uint32(b[12:16]))
	h.old = arena.Address(order.Uint64(b[16:24]))
	h.length = order.Uint32(b[24:28])
	return h
}
