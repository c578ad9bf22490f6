// Copyright 2026 The Halocache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cache

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/text/encoding/charmap"
)

// readUint32 reads a little-endian 32-bit integer at offset.
func readUint32(b []byte, offset uint32) (uint32, error) {
	if uint64(offset)+4 > uint64(len(b)) {
		return 0, ErrTruncated
	}
	return binary.LittleEndian.Uint32(b[offset:]), nil
}

// readUint16 reads a little-endian 16-bit integer at offset.
func readUint16(b []byte, offset uint32) (uint16, error) {
	if uint64(offset)+2 > uint64(len(b)) {
		return 0, ErrTruncated
	}
	return binary.LittleEndian.Uint16(b[offset:]), nil
}

// writeUint32 writes a little-endian 32-bit integer at offset.
func writeUint32(b []byte, offset uint32, v uint32) {
	binary.LittleEndian.PutUint32(b[offset:], v)
}

// writeUint16 writes a little-endian 16-bit integer at offset.
func writeUint16(b []byte, offset uint32, v uint16) {
	binary.LittleEndian.PutUint16(b[offset:], v)
}

// readLatin1String scans b starting at offset for a null-terminated
// Latin-1 string and decodes it.
func readLatin1String(b []byte, offset uint32) (string, error) {
	if uint64(offset) > uint64(len(b)) {
		return "", ErrOutOfRange
	}
	rest := b[offset:]
	n := bytes.IndexByte(rest, 0)
	if n < 0 {
		return "", ErrStringNotTerminated
	}
	return encodeLatin1Decode(rest[:n])
}

// encodeLatin1Decode decodes raw bytes as Latin-1 without requiring or
// consuming a null terminator.
func encodeLatin1Decode(b []byte) (string, error) {
	s, err := charmap.ISO8859_1.NewDecoder().String(string(b))
	if err != nil {
		return "", ErrInvalidLatin1
	}
	return s, nil
}

// encodeLatin1String encodes s strictly as Latin-1, failing if any
// character falls outside U+0000-U+00FF.
func encodeLatin1String(s string) ([]byte, error) {
	for _, r := range s {
		if r > 0xFF {
			return nil, ErrInvalidLatin1
		}
	}
	encoded, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil {
		return nil, ErrInvalidLatin1
	}
	return []byte(encoded), nil
}

// pad4 rounds n up to the next multiple of 4.
func pad4(n int) int {
	return n + (4-n%4)%4
}
