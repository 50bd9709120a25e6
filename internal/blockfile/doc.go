// Package blockfile implements the versioned binary container and the four
// session types of the serialization engine: the write session and the
// three read passes (data, lib, expand).
//
//	Container structure:
//	  [4 bytes: Magic "STRA"]
//	  [4 bytes: Version (uint32 LE)]
//	  [4 bytes: Flags (uint32 LE)]
//	  [8 bytes: Header Size (uint64 LE)]
//	  [32 bytes: SHA-256 checksum of the block section, if flagged]
//	  [Header: JSON metadata, embeds the struct catalog]
//	  [Block section: tagged blocks, ends with ENDB]
//
// Every block carries its payload kind, struct id, instance count and the
// original address of the data it was written from. On load the original
// addresses key the relocation table: pointer fields are rewritten from
// old tokens to handles in the load session's arena, dangling references
// resolve null, and scalar arrays are byte-order corrected against the
// order recorded in the flags.
//
// Data-owning modules participate through the handler registry: one write
// callback and three read callbacks per identifier-block type, invoked by
// the Save and Load drivers.
package blockfile
