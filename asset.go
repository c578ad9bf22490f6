// Copyright 2026 The Halocache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cache

import (
	"encoding/binary"

	"github.com/mapforge/halocache/internal/log"
)

const (
	bitmapElementsOff  = 0x60
	bitmapElementSize  = 0x30
	bitmapFlagsOff     = 0x0F
	bitmapDataOffOff   = 0x18
	bitmapDataSizeOff  = 0x1C
	bitmapExternalBit  = 1 << 0

	soundRangesOff   = 0x98
	soundRangeSize   = 0x48
	soundPermsOff    = 0x3C
	soundPermSize    = 0x7C
	soundFlagsOff    = 0x44
	soundDataSizeOff = 0x40
	soundDataOffOff  = 0x48
	soundExternalBit = 1 << 0

	modelGeometriesOff = 0xD0
	modelGeometrySize  = 0x30
	modelPartsOff      = 0x24
	modelPartSize      = 0x84
	modelIndexCountOff = 0x48
	modelIndexOffOff   = 0x4C
	modelIndexOffDupOff = 0x50
	modelVertexCountOff = 0x58
	modelVertexOffOff   = 0x64
	modelVertexStride   = 0x44
)

// externalizeAsset pulls per-class raw asset bytes (bitmap pixels,
// sound permutation PCM, model vertex/index buffers) out of file and
// into tag.AssetData, rewriting the in-tag offset fields to be
// relative to the start of AssetData instead of absolute file offsets.
func externalizeAsset(tag *Tag, file []byte, helper *log.Helper) {
	switch tag.Class.Primary {
	case classBitm:
		externalizeBitmap(tag, file, helper)
	case classSnd:
		externalizeSound(tag, file, helper)
	case classMod2:
		externalizeModel(tag, file, helper)
	}
}

func externalizeBitmap(tag *Tag, file []byte, helper *log.Helper) {
	elementsOffset, count, ok := readReflexiveOffset(tag, bitmapElementsOff)
	if !ok {
		return
	}
	var asset []byte
	for i := uint32(0); i < count; i++ {
		elemOff := elementsOffset + i*bitmapElementSize
		if int(elemOff+bitmapElementSize) > len(tag.Data) {
			return
		}
		if tag.Data[elemOff+bitmapFlagsOff]&bitmapExternalBit != 0 {
			continue
		}
		dataOff := binary.LittleEndian.Uint32(tag.Data[elemOff+bitmapDataOffOff:])
		dataSize := binary.LittleEndian.Uint32(tag.Data[elemOff+bitmapDataSizeOff:])
		if uint64(dataOff)+uint64(dataSize) > uint64(len(file)) {
			continue
		}
		relative := uint32(len(asset))
		asset = append(asset, file[dataOff:dataOff+dataSize]...)
		binary.LittleEndian.PutUint32(tag.Data[elemOff+bitmapDataOffOff:], relative)
	}
	if len(asset) > 0 {
		tag.AssetData = asset
		if helper != nil {
			helper.Debugf("externalized %d bytes of bitmap data from %q", len(asset), tag.Path)
		}
	}
}

func externalizeSound(tag *Tag, file []byte, helper *log.Helper) {
	rangesOffset, rangeCount, ok := readReflexiveOffset(tag, soundRangesOff)
	if !ok {
		return
	}
	var asset []byte
	for r := uint32(0); r < rangeCount; r++ {
		rangeOff := rangesOffset + r*soundRangeSize
		permsOffset, permCount, ok := readReflexiveOffset(tag, rangeOff+soundPermsOff)
		if !ok {
			continue
		}
		for p := uint32(0); p < permCount; p++ {
			permOff := permsOffset + p*soundPermSize
			if int(permOff+soundPermSize) > len(tag.Data) {
				continue
			}
			if tag.Data[permOff+soundFlagsOff]&soundExternalBit != 0 {
				continue
			}
			dataOff := binary.LittleEndian.Uint32(tag.Data[permOff+soundDataOffOff:])
			dataSize := binary.LittleEndian.Uint32(tag.Data[permOff+soundDataSizeOff:])
			if uint64(dataOff)+uint64(dataSize) > uint64(len(file)) {
				continue
			}
			relative := uint32(len(asset))
			asset = append(asset, file[dataOff:dataOff+dataSize]...)
			binary.LittleEndian.PutUint32(tag.Data[permOff+soundDataOffOff:], relative)
		}
	}
	if len(asset) > 0 {
		tag.AssetData = asset
		if helper != nil {
			helper.Debugf("externalized %d bytes of sound data from %q", len(asset), tag.Path)
		}
	}
}

func externalizeModel(tag *Tag, file []byte, helper *log.Helper) {
	geomOffset, geomCount, ok := readReflexiveOffset(tag, modelGeometriesOff)
	if !ok {
		return
	}
	var asset []byte
	for g := uint32(0); g < geomCount; g++ {
		geomOff := geomOffset + g*modelGeometrySize
		partsOffset, partCount, ok := readReflexiveOffset(tag, geomOff+modelPartsOff)
		if !ok {
			continue
		}
		for p := uint32(0); p < partCount; p++ {
			partOff := partsOffset + p*modelPartSize
			if int(partOff+modelPartSize) > len(tag.Data) {
				continue
			}
			vertexCount := binary.LittleEndian.Uint32(tag.Data[partOff+modelVertexCountOff:])
			vertexOff := binary.LittleEndian.Uint32(tag.Data[partOff+modelVertexOffOff:])
			indexCount := binary.LittleEndian.Uint32(tag.Data[partOff+modelIndexCountOff:])
			indexOff := binary.LittleEndian.Uint32(tag.Data[partOff+modelIndexOffOff:])

			vertexBytes := uint64(vertexCount) * modelVertexStride
			indexBytes := uint64(indexCount)*2 + 4

			if uint64(vertexOff)+vertexBytes > uint64(len(file)) || uint64(indexOff)+indexBytes > uint64(len(file)) {
				continue
			}

			vertexRelative := uint32(len(asset))
			asset = append(asset, file[vertexOff:uint64(vertexOff)+vertexBytes]...)
			indexRelative := uint32(len(asset))
			asset = append(asset, file[indexOff:uint64(indexOff)+indexBytes]...)

			binary.LittleEndian.PutUint32(tag.Data[partOff+modelVertexOffOff:], vertexRelative)
			binary.LittleEndian.PutUint32(tag.Data[partOff+modelIndexOffOff:], indexRelative)
			binary.LittleEndian.PutUint32(tag.Data[partOff+modelIndexOffDupOff:], indexRelative)
		}
	}
	if len(asset) > 0 {
		tag.AssetData = asset
		if helper != nil {
			helper.Debugf("externalized %d bytes of model data from %q", len(asset), tag.Path)
		}
	}
}

// readReflexiveOffset reads the (count, address) pair of a reflexive
// embedded in tag.Data at fieldOffset and resolves address to an
// in-tag offset. Returns ok=false for a zero-count reflexive or one
// whose address does not resolve.
func readReflexiveOffset(tag *Tag, fieldOffset uint32) (offset, count uint32, ok bool) {
	if int(fieldOffset+reflexiveSize) > len(tag.Data) {
		return 0, 0, false
	}
	count = binary.LittleEndian.Uint32(tag.Data[fieldOffset:])
	if count == 0 {
		return 0, 0, false
	}
	address := binary.LittleEndian.Uint32(tag.Data[fieldOffset+4:])
	offset, ok = tag.AddressToOffset(address)
	return offset, count, ok
}

// internalizeResourceAsset is the inverse of bitm/snd! externalization:
// it rewrites the in-tag offset fields back to absolute file offsets
// within the shared resource stream starting at streamBase, then
// returns the bytes that must be appended to that stream. mod2 uses
// internalizeModel instead, since it splits across two streams.
func internalizeResourceAsset(tag *Tag, streamBase uint32) []byte {
	if tag.AssetData == nil {
		return nil
	}
	switch tag.Class.Primary {
	case classBitm:
		internalizeBitmap(tag, streamBase)
	case classSnd:
		internalizeSound(tag, streamBase)
	}
	out := tag.AssetData
	tag.AssetData = nil
	return out
}

func internalizeBitmap(tag *Tag, streamBase uint32) {
	elementsOffset, count, ok := readReflexiveOffset(tag, bitmapElementsOff)
	if !ok {
		return
	}
	for i := uint32(0); i < count; i++ {
		elemOff := elementsOffset + i*bitmapElementSize
		if int(elemOff+bitmapElementSize) > len(tag.Data) {
			return
		}
		if tag.Data[elemOff+bitmapFlagsOff]&bitmapExternalBit != 0 {
			continue
		}
		relative := binary.LittleEndian.Uint32(tag.Data[elemOff+bitmapDataOffOff:])
		binary.LittleEndian.PutUint32(tag.Data[elemOff+bitmapDataOffOff:], streamBase+relative)
	}
}

func internalizeSound(tag *Tag, streamBase uint32) {
	rangesOffset, rangeCount, ok := readReflexiveOffset(tag, soundRangesOff)
	if !ok {
		return
	}
	for r := uint32(0); r < rangeCount; r++ {
		rangeOff := rangesOffset + r*soundRangeSize
		permsOffset, permCount, ok := readReflexiveOffset(tag, rangeOff+soundPermsOff)
		if !ok {
			continue
		}
		for p := uint32(0); p < permCount; p++ {
			permOff := permsOffset + p*soundPermSize
			if int(permOff+soundPermSize) > len(tag.Data) {
				continue
			}
			if tag.Data[permOff+soundFlagsOff]&soundExternalBit != 0 {
				continue
			}
			relative := binary.LittleEndian.Uint32(tag.Data[permOff+soundDataOffOff:])
			binary.LittleEndian.PutUint32(tag.Data[permOff+soundDataOffOff:], streamBase+relative)
		}
	}
}

// internalizeModel splits a mod2 tag's AssetData back into its
// per-part vertex and index buffers, appending each to the shared
// model vertex/index streams and rewriting the tag's offset fields to
// the final absolute file offsets of where they landed. mod2 does not
// go through internalizeResourceAsset, since it needs two destination
// streams instead of one; this function clears AssetData itself.
func internalizeModel(tag *Tag, vertexBuf, indexBuf *[]byte, vertexStreamBase, indexStreamBase uint32) {
	if tag.AssetData == nil {
		return
	}
	geomOffset, geomCount, ok := readReflexiveOffset(tag, modelGeometriesOff)
	if !ok {
		tag.AssetData = nil
		return
	}
	for g := uint32(0); g < geomCount; g++ {
		geomOff := geomOffset + g*modelGeometrySize
		partsOffset, partCount, ok := readReflexiveOffset(tag, geomOff+modelPartsOff)
		if !ok {
			continue
		}
		for p := uint32(0); p < partCount; p++ {
			partOff := partsOffset + p*modelPartSize
			if int(partOff+modelPartSize) > len(tag.Data) {
				continue
			}
			vertexCount := binary.LittleEndian.Uint32(tag.Data[partOff+modelVertexCountOff:])
			indexCount := binary.LittleEndian.Uint32(tag.Data[partOff+modelIndexCountOff:])
			vertexRelative := binary.LittleEndian.Uint32(tag.Data[partOff+modelVertexOffOff:])
			indexRelative := binary.LittleEndian.Uint32(tag.Data[partOff+modelIndexOffOff:])

			vertexBytes := uint64(vertexCount) * modelVertexStride
			indexBytes := uint64(indexCount)*2 + 4

			if uint64(vertexRelative)+vertexBytes > uint64(len(tag.AssetData)) ||
				uint64(indexRelative)+indexBytes > uint64(len(tag.AssetData)) {
				continue
			}

			newVertexOff := vertexStreamBase + uint32(len(*vertexBuf))
			*vertexBuf = append(*vertexBuf, tag.AssetData[vertexRelative:uint64(vertexRelative)+vertexBytes]...)

			newIndexOff := indexStreamBase + uint32(len(*indexBuf))
			*indexBuf = append(*indexBuf, tag.AssetData[indexRelative:uint64(indexRelative)+indexBytes]...)

			binary.LittleEndian.PutUint32(tag.Data[partOff+modelVertexOffOff:], newVertexOff)
			binary.LittleEndian.PutUint32(tag.Data[partOff+modelIndexOffOff:], newIndexOff)
			binary.LittleEndian.PutUint32(tag.Data[partOff+modelIndexOffDupOff:], newIndexOff)
		}
	}
	tag.AssetData = nil
}
