// Copyright 2026 The Halocache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cache

import "errors"

// Structural errors: the buffer does not describe a well-formed cache
// file, independent of what it claims to contain.
var (
	// ErrTruncated is returned when the buffer is smaller than the
	// smallest structure being decoded from it requires.
	ErrTruncated = errors.New("cache: buffer truncated")

	// ErrBadMagic is returned when the head/foot/tags magic does not
	// match exactly.
	ErrBadMagic = errors.New("cache: magic number mismatch")

	// ErrOutOfRange is returned when a decoded offset, address, or
	// count falls outside the bounds that contain it.
	ErrOutOfRange = errors.New("cache: offset, address, or count out of range")

	// ErrOrphanedSBSP is returned when an sbsp tag has no corresponding
	// entry in the scenario's sbsp table.
	ErrOrphanedSBSP = errors.New("cache: sbsp tag is not referenced by the scenario")

	// ErrStringNotTerminated is returned when a Latin-1 string field has
	// no null terminator before the end of its containing buffer.
	ErrStringNotTerminated = errors.New("cache: string has no null terminator")

	// ErrInvalidLatin1 is returned when a byte sequence cannot be
	// decoded as Latin-1, or a string cannot be encoded as Latin-1.
	ErrInvalidLatin1 = errors.New("cache: invalid Latin-1 string")

	// ErrOverflow is returned when an arithmetic bounds check would
	// wrap around before comparison.
	ErrOverflow = errors.New("cache: size computation overflowed")
)

// Semantic errors: the buffer is well-formed but violates a rule about
// what it means.
var (
	// ErrNameTooLong is returned when a map name or build string
	// encodes to more than 31 bytes.
	ErrNameTooLong = errors.New("cache: name or build exceeds 31 encoded bytes")

	// ErrCacheTooLarge is returned when an encoded cache file would
	// exceed 2 GiB - 1.
	ErrCacheTooLarge = errors.New("cache: encoded file exceeds 2GiB-1")

	// ErrDataAndResourceIndex is returned when a tag carries both an
	// owned data buffer and a resource-map index.
	ErrDataAndResourceIndex = errors.New("cache: tag has both data and a resource index")
)

// Array errors: a TagArray operation could not honor its contract
// without corrupting the graph.
var (
	// ErrDuplicateTag is returned by Insert when a tag with the same
	// path and class triple already exists in the destination array.
	// InsertRecursive returns the existing tag's index instead.
	ErrDuplicateTag = errors.New("cache: tag already exists in destination array")

	// ErrMissingReferenceTarget is returned by Insert when one of the
	// inserted tag's references has no matching tag in the destination
	// array.
	ErrMissingReferenceTarget = errors.New("cache: destination array is missing a referenced tag")

	// ErrTagArrayFull is returned when an insert would push a TagArray
	// past 65535 entries.
	ErrTagArrayFull = errors.New("cache: tag array would exceed 65535 entries")
)
