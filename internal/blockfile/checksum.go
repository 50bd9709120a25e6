package blockfile

import "crypto/sha256"

// ComputeChecksum computes the SHA-256 checksum of the block section.
func ComputeChecksum(data []byte) [ChecksumSize]byte {
	return sha256.Sum256(data)
}

// ValidateChecksum compares a computed checksum against the stored one.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(computed, stored [ChecksumSize]byte) error {
	if computed != stored {
		return ErrChecksumMismatch
	}
	return nil
}
