package blockfile

import "fmt"

// Validation limits for resource protection.
const (
	// MaxBlockCount caps the number of blocks in a file.
	MaxBlockCount = 1_000_000
	// MaxBlockSize caps a single block payload at 1GB.
	MaxBlockSize = 1 << 30
)

// ValidationLevel controls the strictness of block-stream validation.
type ValidationLevel int

const (
	// ValidationStrict aborts the load on any stream inconsistency
	// (default, recommended for untrusted input).
	ValidationStrict ValidationLevel = iota
	// ValidationNormal reports inconsistencies and skips the affected
	// blocks, preferring partial success over total failure.
	ValidationNormal
	// ValidationNone skips block validation and checksum verification.
	ValidationNone
)

// validateBlock checks one block header against its payload length.
// Returns a *CorruptionError describing the first inconsistency found.
func validateBlock(h blockHeader) error {
	if h.length > MaxBlockSize {
		return fmt.Errorf("%w: block 0x%x payload %d bytes, max %d", ErrBlockTooLarge, uint64(h.old), h.length, MaxBlockSize)
	}
	if h.count < 0 {
		return &CorruptionError{
			Kind:    "negative_count",
			Address: uint64(h.old),
			Detail:  fmt.Sprintf("count=%d", h.count),
		}
	}
	// Fixed-width array payloads must match their element count exactly.
	if es := h.kind.ElemSize(); es > 0 && int(h.count)*es != int(h.length) {
		return &CorruptionError{
			Kind:    "size_mismatch",
			Address: uint64(h.old),
			Detail:  fmt.Sprintf("%s block: count %d x %d bytes != payload %d bytes", h.kind, h.count, es, h.length),
		}
	}
	return nil
}
