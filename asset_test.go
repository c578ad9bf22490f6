// Copyright 2026 The Halocache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cache

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// fillPattern returns n bytes of a recognizable, position-dependent
// pattern, so a round-trip test catches an off-by-one slice as readily
// as a wrong base offset.
func fillPattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

func TestBitmapExternalizeInternalizeRoundTrip(t *testing.T) {
	const (
		base          = 0x1000
		elementsAddr  = base + 0x80
		fileDataOff   = 0x2000
		fileDataSize  = 16
	)

	tag := Tag{
		Path:          `bitmaps\test`,
		Class:         TagClass{Primary: classBitm},
		Data:          make([]byte, 0xB0),
		MemoryAddress: addressOf(base),
	}
	binary.LittleEndian.PutUint32(tag.Data[bitmapElementsOff:], 1)
	binary.LittleEndian.PutUint32(tag.Data[bitmapElementsOff+4:], elementsAddr)

	const elemOff = 0x80
	binary.LittleEndian.PutUint32(tag.Data[elemOff+bitmapDataOffOff:], fileDataOff)
	binary.LittleEndian.PutUint32(tag.Data[elemOff+bitmapDataSizeOff:], fileDataSize)

	file := make([]byte, fileDataOff+fileDataSize+16)
	pixels := fillPattern(fileDataSize, 0x10)
	copy(file[fileDataOff:], pixels)

	externalizeBitmap(&tag, file, nil)

	if !bytes.Equal(tag.AssetData, pixels) {
		t.Fatalf("AssetData = %x, want %x", tag.AssetData, pixels)
	}
	if got := binary.LittleEndian.Uint32(tag.Data[elemOff+bitmapDataOffOff:]); got != 0 {
		t.Errorf("element data offset after externalize = %d, want 0 (start of AssetData)", got)
	}

	const streamBase = 0x500
	out := internalizeResourceAsset(&tag, streamBase)
	if !bytes.Equal(out, pixels) {
		t.Fatalf("internalizeResourceAsset returned %x, want %x", out, pixels)
	}
	if tag.AssetData != nil {
		t.Errorf("AssetData = %v, want nil after internalize", tag.AssetData)
	}
	if got := binary.LittleEndian.Uint32(tag.Data[elemOff+bitmapDataOffOff:]); got != streamBase {
		t.Errorf("element data offset after internalize = %d, want %d", got, streamBase)
	}
}

func TestSoundExternalizeInternalizeRoundTrip(t *testing.T) {
	const (
		base         = 0x1000
		rangesAddr   = base + 0x100
		rangeOff     = 0x100
		permsAddr    = base + 0x200
		permOff      = 0x200
		fileDataOff  = 0x3000
		fileDataSize = 20
	)

	tag := Tag{
		Path:          `sound\test`,
		Class:         TagClass{Primary: classSnd},
		Data:          make([]byte, 0x300),
		MemoryAddress: addressOf(base),
	}
	binary.LittleEndian.PutUint32(tag.Data[soundRangesOff:], 1)
	binary.LittleEndian.PutUint32(tag.Data[soundRangesOff+4:], rangesAddr)

	binary.LittleEndian.PutUint32(tag.Data[rangeOff+soundPermsOff:], 1)
	binary.LittleEndian.PutUint32(tag.Data[rangeOff+soundPermsOff+4:], permsAddr)

	binary.LittleEndian.PutUint32(tag.Data[permOff+soundDataSizeOff:], fileDataSize)
	binary.LittleEndian.PutUint32(tag.Data[permOff+soundDataOffOff:], fileDataOff)

	file := make([]byte, fileDataOff+fileDataSize+16)
	pcm := fillPattern(fileDataSize, 0x40)
	copy(file[fileDataOff:], pcm)

	externalizeSound(&tag, file, nil)

	if !bytes.Equal(tag.AssetData, pcm) {
		t.Fatalf("AssetData = %x, want %x", tag.AssetData, pcm)
	}
	if got := binary.LittleEndian.Uint32(tag.Data[permOff+soundDataOffOff:]); got != 0 {
		t.Errorf("permutation data offset after externalize = %d, want 0", got)
	}

	const streamBase = 0x777
	out := internalizeResourceAsset(&tag, streamBase)
	if !bytes.Equal(out, pcm) {
		t.Fatalf("internalizeResourceAsset returned %x, want %x", out, pcm)
	}
	if got := binary.LittleEndian.Uint32(tag.Data[permOff+soundDataOffOff:]); got != streamBase {
		t.Errorf("permutation data offset after internalize = %d, want %d", got, streamBase)
	}
}

func TestModelExternalizeInternalizeRoundTrip(t *testing.T) {
	const (
		base         = 0x1000
		geomAddr     = base + 0x100
		geomOff      = 0x100
		partsAddr    = base + 0x200
		partOff      = 0x200
		vertexCount  = 2
		indexCount   = 3
		fileVertexOff = 0x4000
		fileIndexOff  = 0x5000
	)
	vertexBytes := vertexCount * modelVertexStride
	indexBytes := indexCount*2 + 4

	tag := Tag{
		Path:          `models\test`,
		Class:         TagClass{Primary: classMod2},
		Data:          make([]byte, 0x300),
		MemoryAddress: addressOf(base),
	}
	binary.LittleEndian.PutUint32(tag.Data[modelGeometriesOff:], 1)
	binary.LittleEndian.PutUint32(tag.Data[modelGeometriesOff+4:], geomAddr)

	binary.LittleEndian.PutUint32(tag.Data[geomOff+modelPartsOff:], 1)
	binary.LittleEndian.PutUint32(tag.Data[geomOff+modelPartsOff+4:], partsAddr)

	binary.LittleEndian.PutUint32(tag.Data[partOff+modelVertexCountOff:], vertexCount)
	binary.LittleEndian.PutUint32(tag.Data[partOff+modelVertexOffOff:], fileVertexOff)
	binary.LittleEndian.PutUint32(tag.Data[partOff+modelIndexCountOff:], indexCount)
	binary.LittleEndian.PutUint32(tag.Data[partOff+modelIndexOffOff:], fileIndexOff)
	binary.LittleEndian.PutUint32(tag.Data[partOff+modelIndexOffDupOff:], fileIndexOff)

	file := make([]byte, fileIndexOff+indexBytes+16)
	vertices := fillPattern(vertexBytes, 0x80)
	indices := fillPattern(indexBytes, 0xC0)
	copy(file[fileVertexOff:], vertices)
	copy(file[fileIndexOff:], indices)

	externalizeModel(&tag, file, nil)

	wantAsset := append(append([]byte{}, vertices...), indices...)
	if !bytes.Equal(tag.AssetData, wantAsset) {
		t.Fatalf("AssetData = %x, want %x", tag.AssetData, wantAsset)
	}
	if got := binary.LittleEndian.Uint32(tag.Data[partOff+modelVertexOffOff:]); got != 0 {
		t.Errorf("vertex offset after externalize = %d, want 0", got)
	}
	if got := binary.LittleEndian.Uint32(tag.Data[partOff+modelIndexOffOff:]); got != uint32(vertexBytes) {
		t.Errorf("index offset after externalize = %d, want %d", got, vertexBytes)
	}
	if got := binary.LittleEndian.Uint32(tag.Data[partOff+modelIndexOffDupOff:]); got != uint32(vertexBytes) {
		t.Errorf("duplicate index offset after externalize = %d, want %d", got, vertexBytes)
	}

	const vertexStreamBase, indexStreamBase = 0x10000, 0x20000
	var vertexBuf, indexBuf []byte
	internalizeModel(&tag, &vertexBuf, &indexBuf, vertexStreamBase, indexStreamBase)

	if !bytes.Equal(vertexBuf, vertices) {
		t.Fatalf("vertexBuf = %x, want %x", vertexBuf, vertices)
	}
	if !bytes.Equal(indexBuf, indices) {
		t.Fatalf("indexBuf = %x, want %x", indexBuf, indices)
	}
	if tag.AssetData != nil {
		t.Errorf("AssetData = %v, want nil after internalizeModel", tag.AssetData)
	}
	if got := binary.LittleEndian.Uint32(tag.Data[partOff+modelVertexOffOff:]); got != vertexStreamBase {
		t.Errorf("vertex offset after internalize = %d, want %d", got, vertexStreamBase)
	}
	if got := binary.LittleEndian.Uint32(tag.Data[partOff+modelIndexOffOff:]); got != indexStreamBase {
		t.Errorf("index offset after internalize = %d, want %d", got, indexStreamBase)
	}
	if got := binary.LittleEndian.Uint32(tag.Data[partOff+modelIndexOffDupOff:]); got != indexStreamBase {
		t.Errorf("duplicate index offset after internalize = %d, want %d", got, indexStreamBase)
	}
}
