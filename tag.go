// Copyright 2026 The Halocache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cache

import "encoding/binary"

// TagClass is the three-level class triple every tag carries. Unused
// slots are 0xFFFFFFFF. Only Primary participates in references and in
// TagArray.FindAll; TagArray.Find compares the whole triple.
type TagClass struct {
	Primary   uint32
	Secondary uint32
	Tertiary  uint32
}

// Tag is one typed record inside a cache file: a path, a class triple,
// and up to two owned byte buffers (the tag's "meta" and, for a
// handful of classes, externalized asset bytes).
type Tag struct {
	Path  string
	Class TagClass

	// Data holds the tag's in-memory representation (the "meta"). It is
	// nil when the tag lives entirely in an external resource map.
	Data []byte

	// AssetData holds raw asset bytes (bitmap pixels, sound PCM, model
	// vertices/indices) referenced from within Data by offset, with
	// those offsets normalized to be relative to AssetData itself.
	AssetData []byte

	// Implicit marks a tag whose data lives in an external resource map
	// (Custom Edition indexed tags).
	Implicit bool

	// ResourceIndex is the index into an external resource map. It is
	// mutually exclusive with Data.
	ResourceIndex *uint32

	// MemoryAddress is the absolute address the engine would load Data
	// at. Every in-Data pointer is expressed in this address space.
	MemoryAddress *uint32
}

// TagReferenceKind distinguishes the two on-wire shapes a tag can use
// to point at another tag.
type TagReferenceKind int

const (
	// ReferenceIdentity is a single 4-byte tag identity slot.
	ReferenceIdentity TagReferenceKind = iota

	// ReferenceDependency is a 16-byte slot: class, 8 unused bytes,
	// identity.
	ReferenceDependency
)

// TagReference is a computed (never stored) description of one outward
// pointer from a tag's Data to another tag in the same TagArray.
type TagReference struct {
	TagIndex        uint32
	ByteOffset      uint32
	ReferencedClass uint32
	Kind            TagReferenceKind
}

// HasData reports whether the tag owns a data buffer.
func (t *Tag) HasData() bool {
	return t.Data != nil
}

// OffsetToAddress converts an offset within Data to the absolute
// address the engine would see. The one-past-end offset is valid,
// since a zero-count reflexive may legitimately point there.
//
// Panics if the tag has no MemoryAddress or Data.
func (t *Tag) OffsetToAddress(offset uint32) (uint32, bool) {
	base := t.requireMemoryAddress()
	if uint64(offset) > uint64(len(t.Data)) {
		return 0, false
	}
	return base + offset, true
}

// AddressToOffset converts an absolute address to an offset within
// Data, the inverse of OffsetToAddress.
//
// Panics if the tag has no MemoryAddress or Data.
func (t *Tag) AddressToOffset(address uint32) (uint32, bool) {
	base := t.requireMemoryAddress()
	if address < base {
		return 0, false
	}
	offset := address - base
	if uint64(offset) > uint64(len(t.Data)) {
		return 0, false
	}
	return offset, true
}

func (t *Tag) requireMemoryAddress() uint32 {
	if t.MemoryAddress == nil || t.Data == nil {
		panic("cache: tag has no memory address or data to map addresses against")
	}
	return *t.MemoryAddress
}

// SetMemoryAddress relocates the tag to newAddress, shifting every
// discovered in-Data pointer by the delta between the old and new
// base. Pointers holding an address before the current (old) base are
// left untouched, as they lie outside the tag and are not pointers.
//
// Panics if the tag has no MemoryAddress or Data.
func (t *Tag) SetMemoryAddress(newAddress uint32) {
	oldAddress := t.requireMemoryAddress()
	if newAddress > oldAddress {
		t.offsetPointers(0, newAddress-oldAddress, false)
	} else {
		t.offsetPointers(0, oldAddress-newAddress, true)
	}
	t.MemoryAddress = &newAddress
}

// CreateData inserts size bytes, each set to value, at offset.
func (t *Tag) CreateData(offset uint32, size int, value byte) {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = value
	}
	t.InsertData(offset, buf)
}

// InsertData splices data into the tag's buffer at offset, shifting
// every in-Data pointer at or beyond the insertion point forward by
// len(data).
//
// Panics if the tag has no MemoryAddress or Data.
func (t *Tag) InsertData(offset uint32, data []byte) {
	t.offsetPointers(offset, uint32(len(data)), false)
	merged := make([]byte, 0, len(t.Data)+len(data))
	merged = append(merged, t.Data[:offset]...)
	merged = append(merged, data...)
	merged = append(merged, t.Data[offset:]...)
	t.Data = merged
}

// DeleteData removes size bytes starting at offset. Pointers at or
// beyond the end of the deleted region shift left by size; pointers
// inside the deleted region are left as-is (they no longer point at
// anything meaningful, matching the upstream format's behavior of
// leaving dangling-but-unused pointers alone).
//
// Panics if the tag has no MemoryAddress or Data.
func (t *Tag) DeleteData(offset, size uint32) {
	t.offsetPointers(offset+size, size, true)
	t.Data = append(t.Data[:offset], t.Data[offset+size:]...)
}

// offsetPointers walks every pointer discovered by pointerOffsets and
// shifts those at or beyond base+offset by size (added, or subtracted
// when subtract is true).
func (t *Tag) offsetPointers(offset uint32, size uint32, subtract bool) {
	base := t.requireMemoryAddress()
	minAddress := base + offset
	for _, off := range t.pointerOffsets() {
		address := binary.LittleEndian.Uint32(t.Data[off:])
		if address >= minAddress {
			if subtract {
				binary.LittleEndian.PutUint32(t.Data[off:], address-size)
			} else {
				binary.LittleEndian.PutUint32(t.Data[off:], address+size)
			}
		}
	}
}

// SetReference writes ref back into the tag's data: the identity alone
// for ReferenceIdentity, or the (class, identity) pair for
// ReferenceDependency.
func (t *Tag) SetReference(ref TagReference) {
	identity := indexToIdentity(ref.TagIndex)
	switch ref.Kind {
	case ReferenceIdentity:
		binary.LittleEndian.PutUint32(t.Data[ref.ByteOffset:], identity)
	case ReferenceDependency:
		binary.LittleEndian.PutUint32(t.Data[ref.ByteOffset:], ref.ReferencedClass)
		binary.LittleEndian.PutUint32(t.Data[ref.ByteOffset+0xC:], identity)
	}
}
