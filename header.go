// Copyright 2026 The Halocache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cache

import "encoding/binary"

// Header field offsets within the fixed 2048-byte header region.
const (
	headMagicOff  = 0x000
	versionOff    = 0x004
	fileSizeOff   = 0x008
	metaOffsetOff = 0x010
	metaLengthOff = 0x014
	nameOff       = 0x020
	nameSize      = 0x20
	buildOff      = 0x040
	buildSize     = 0x20
	mapTypeOff    = 0x060
	footMagicOff  = headerSize - 0x4
)

// Magic values, as the little-endian uint32 the engine actually reads
// and writes at each of the offsets above, not the ASCII bytes a naive
// reading of "head"/"foot"/"tags" would suggest.
const (
	headMagicValue = 0x68656164
	footMagicValue = 0x666F6F74
	tagsMagicValue = 0x74616773
)

// Tag-header field offsets, relative to the start of the meta block.
const (
	tagArrayAddrOff   = 0x00
	principalIdentOff = 0x04
	tagCountOff       = 0x0C
	modelPartCountAOff = 0x10
	modelFileOffsetOff  = 0x14
	modelPartCountBOff = 0x18
	modelVertexSizeOff = 0x1C
	modelTotalSizeOff  = 0x20
	tagsMagicOff       = 0x24
	tagHeaderSize      = 0x28
)

// Tag-directory entry field offsets. Each entry is 32 bytes.
const (
	entryPrimaryOff   = 0x00
	entrySecondaryOff = 0x04
	entryTertiaryOff  = 0x08
	entryIdentityOff  = 0x0C
	entryPathAddrOff  = 0x10
	entryDataAddrOff  = 0x14
	entryFlagsOff     = 0x18
	tagEntrySize      = 0x20
)

// entryImplicitBit marks a tag-directory entry whose data lives in an
// external resource map rather than in this file.
const entryImplicitBit = 1 << 0

func checkMagic(b []byte, offset uint32, want uint32) error {
	if uint64(offset)+4 > uint64(len(b)) {
		return ErrTruncated
	}
	if binary.LittleEndian.Uint32(b[offset:offset+4]) != want {
		return ErrBadMagic
	}
	return nil
}

func writeMagic(b []byte, offset uint32, magic uint32) {
	binary.LittleEndian.PutUint32(b[offset:offset+4], magic)
}
