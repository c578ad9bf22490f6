// Copyright 2026 The Halocache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cache

// reflexive is the canonical pointer-to-block shape used throughout
// tag data: a count, the absolute address of the first element, and an
// unused word. It occupies 12 bytes on the wire.
type reflexive struct {
	count   uint32
	address uint32
	unused  uint32
}

const reflexiveSize = 0xC

// decodeReflexive reads a reflexive from b at offset and validates
// that its block fits within [minAddress, maxAddress) when the count
// is nonzero. A zero count is always valid regardless of address.
func decodeReflexive(b []byte, offset uint32, minAddress, maxAddress uint32, elementSize uint32) (reflexive, error) {
	if uint64(offset)+reflexiveSize > uint64(len(b)) {
		return reflexive{}, ErrTruncated
	}
	count, _ := readUint32(b, offset)
	address, _ := readUint32(b, offset+4)
	unused, _ := readUint32(b, offset+8)

	if count > 0 {
		if address < minAddress || address >= maxAddress {
			return reflexive{}, ErrOutOfRange
		}
		end := uint64(address) + uint64(count)*uint64(elementSize)
		if end > uint64(maxAddress) {
			return reflexive{}, ErrOutOfRange
		}
	}

	return reflexive{count: count, address: address, unused: unused}, nil
}
