package blockfile

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrUnknownStruct      = errors.New("unknown struct name")
	ErrTypeMismatch       = errors.New("value type does not match registered struct layout")
	ErrNotIDStruct        = errors.New("struct does not embed an ID header")
	ErrNoWriteHandler     = errors.New("no write handler registered")
	ErrNoListLinks        = errors.New("struct has no Next/Prev list links")
	ErrSessionClosed      = errors.New("session is closed")
	ErrTruncatedStream    = errors.New("truncated block stream")
	ErrTooManyBlocks      = errors.New("too many blocks in file")
	ErrBlockTooLarge      = errors.New("block exceeds maximum size")
)

// CorruptionError describes a data inconsistency found in a block stream.
// Under strict validation it aborts the load; otherwise the affected block
// is reported and skipped so that the rest of the file can still load.
type CorruptionError struct {
	Kind    string // kind of inconsistency (e.g. "size_mismatch", "duplicate_address")
	Address uint64 // original address token of the affected block, 0 if not block-scoped
	Detail  string
}

// Error implements the error interface.
func (e *CorruptionError) Error() string {
	if e.Address != 0 {
		return fmt.Sprintf("%s: block 0x%x: %s", e.Kind, e.Address, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}
