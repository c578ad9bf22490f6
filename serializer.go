// Copyright 2026 The Halocache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cache

import (
	"encoding/binary"

	"github.com/dustin/go-humanize"
)

// sbspPlacement records where one sbsp tag's body landed in the
// freshly built sbsp stream, so the scenario's own sbsp table (which
// the engine reads at load time to find structural BSP data outside
// the meta region) can be rewritten to match.
type sbspPlacement struct {
	tagIndex   uint32
	fileOffset uint32
	size       uint32
}

// Encode rewrites m as a complete cache file: header, sbsp stream,
// resource stream (bitmap/sound assets), model stream (vertices then
// indices), and the meta block (tag header, directory, paths, tag
// data), in that order. Every tag's data is repacked at a fresh
// address and relocated via SetMemoryAddress so its internal pointers
// stay consistent.
func (m *Map) Encode() ([]byte, error) {
	helper := logHelper(m.Options.Logger)

	nameBytes, err := encodeLatin1String(m.Name)
	if err != nil {
		return nil, err
	}
	if len(nameBytes) > nameSize-1 {
		return nil, ErrNameTooLong
	}
	buildBytes, err := encodeLatin1String(m.Build)
	if err != nil {
		return nil, err
	}
	if len(buildBytes) > buildSize-1 {
		return nil, ErrNameTooLong
	}

	tags := m.Tags.Tags
	tagCount := len(tags)
	if tagCount > maxTagCount {
		return nil, ErrTagArrayFull
	}
	for i := range tags {
		if tags[i].HasData() && tags[i].ResourceIndex != nil {
			return nil, ErrDataAndResourceIndex
		}
	}

	// Pass 1: patch references, externalize assets to their streams,
	// and pull sbsp tag bodies out into the sbsp stream. Everything
	// else accumulates in meta-tag-data, not yet placed at a final
	// address.
	var sbspStream []byte
	var sbspTable []sbspPlacement

	for i := range tags {
		if tags[i].Implicit || !tags[i].HasData() {
			continue
		}
		for _, ref := range tags[i].References(tags) {
			if ref.TagIndex == nullIndex {
				continue
			}
			if int(ref.TagIndex) < len(tags) {
				ref.ReferencedClass = tags[ref.TagIndex].Class.Primary
			}
			tags[i].SetReference(ref)
		}
	}

	for i := range tags {
		if tags[i].Class.Primary == classSbsp && tags[i].HasData() {
			placement := sbspPlacement{tagIndex: uint32(i), fileOffset: 0, size: uint32(len(tags[i].Data))}
			sbspTable = append(sbspTable, placement)
			continue
		}
	}
	sbspStreamStart := uint32(headerSize)
	for idx := range sbspTable {
		sbspTable[idx].fileOffset = sbspStreamStart + uint32(len(sbspStream))
		sbspStream = append(sbspStream, tags[sbspTable[idx].tagIndex].Data...)
	}
	sbspStream = padToMultiple(sbspStream, 32)
	rewriteScenarioSBSPTable(tags, sbspTable)

	resourceStreamStart := sbspStreamStart + uint32(len(sbspStream))
	var resourceStream []byte
	for i := range tags {
		if tags[i].Class.Primary != classBitm && tags[i].Class.Primary != classSnd {
			continue
		}
		if !tags[i].HasData() || tags[i].AssetData == nil {
			continue
		}
		appended := internalizeResourceAsset(&tags[i], resourceStreamStart+uint32(len(resourceStream)))
		resourceStream = append(resourceStream, appended...)
	}
	resourceStream = padToMultiple(resourceStream, 32)

	modelStreamStart := resourceStreamStart + uint32(len(resourceStream))
	var vertexStream, indexStream []byte
	for i := range tags {
		if tags[i].Class.Primary != classMod2 || !tags[i].HasData() || tags[i].AssetData == nil {
			continue
		}
		internalizeModel(&tags[i], &vertexStream, &indexStream, modelStreamStart, 0)
	}
	vertexStream = padToMultiple(vertexStream, 32)
	// Index offsets were computed against 0; shift them now that the
	// vertex buffer's final padded length is known.
	indexStreamBase := modelStreamStart + uint32(len(vertexStream))
	rebaseIndexOffsets(tags, indexStreamBase)
	indexStream = padToMultiple(indexStream, 32)

	modelStream := append(append([]byte{}, vertexStream...), indexStream...)
	metaStreamStart := modelStreamStart + uint32(len(modelStream))

	modelPartCount := countModelParts(tags)

	// Pass 2: lay out the meta block and relocate every tag with data
	// (sbsp tags were already pulled into the sbsp stream and carry no
	// meta-resident data of their own).
	directorySize := tagCount * tagEntrySize

	pathOffsets := make([]uint32, tagCount)
	var paths []byte
	for i := range tags {
		pathOffsets[i] = uint32(tagHeaderSize+directorySize) + uint32(len(paths))
		encoded, err := encodeLatin1String(tags[i].Path)
		if err != nil {
			return nil, err
		}
		paths = append(paths, encoded...)
		paths = append(paths, 0)
	}
	paths = padToMultiple(paths, 32)

	dataRegionStart := uint32(tagHeaderSize+directorySize) + uint32(len(paths))
	dataOffsets := make([]uint32, tagCount)
	var dataRegion []byte
	for i := range tags {
		if tags[i].Implicit || tags[i].Class.Primary == classSbsp || !tags[i].HasData() {
			continue
		}
		offset := dataRegionStart + uint32(len(dataRegion))
		newAddress := engineLoadBase + offset

		if tags[i].MemoryAddress != nil {
			tags[i].SetMemoryAddress(newAddress)
		} else {
			tags[i].MemoryAddress = &newAddress
		}

		dataOffsets[i] = offset
		dataRegion = append(dataRegion, tags[i].Data...)
		for len(dataRegion)%4 != 0 {
			dataRegion = append(dataRegion, 0)
		}
	}

	meta := make([]byte, dataRegionStart+uint32(len(dataRegion)))
	copy(meta[tagHeaderSize+directorySize:], paths)
	copy(meta[dataRegionStart:], dataRegion)

	principalIdentity := uint32(nullIdentity)
	if m.Tags.Principal != nullIndex && int(m.Tags.Principal) < tagCount {
		principalIdentity = indexToIdentity(m.Tags.Principal)
	}
	writeUint32(meta, tagArrayAddrOff, engineLoadBase+tagHeaderSize)
	writeUint32(meta, principalIdentOff, principalIdentity)
	writeUint32(meta, tagCountOff, uint32(tagCount))
	writeUint32(meta, modelPartCountAOff, modelPartCount)
	writeUint32(meta, modelPartCountBOff, modelPartCount)
	writeUint32(meta, modelFileOffsetOff, modelStreamStart)
	writeUint32(meta, modelVertexSizeOff, uint32(len(vertexStream)))
	writeUint32(meta, modelTotalSizeOff, uint32(len(modelStream)))
	writeMagic(meta, tagsMagicOff, tagsMagicValue)

	for i := range tags {
		entryOff := uint32(tagHeaderSize + i*tagEntrySize)
		writeUint32(meta, entryOff+entryPrimaryOff, tags[i].Class.Primary)
		writeUint32(meta, entryOff+entrySecondaryOff, tags[i].Class.Secondary)
		writeUint32(meta, entryOff+entryTertiaryOff, tags[i].Class.Tertiary)
		writeUint32(meta, entryOff+entryIdentityOff, indexToIdentity(uint32(i)))
		writeUint32(meta, entryOff+entryPathAddrOff, engineLoadBase+pathOffsets[i])

		if tags[i].Implicit {
			writeUint32(meta, entryOff+entryDataAddrOff, *tags[i].ResourceIndex)
			writeUint32(meta, entryOff+entryFlagsOff, entryImplicitBit)
		} else {
			writeUint32(meta, entryOff+entryDataAddrOff, *tags[i].MemoryAddress)
		}
	}

	fileSize := uint32(metaStreamStart) + uint32(len(meta))
	if fileSize > maxCacheFileSize {
		return nil, ErrCacheTooLarge
	}

	out := make([]byte, fileSize)
	copy(out[sbspStreamStart:], sbspStream)
	copy(out[resourceStreamStart:], resourceStream)
	copy(out[modelStreamStart:], modelStream)
	copy(out[metaStreamStart:], meta)

	writeMagic(out, headMagicOff, headMagicValue)
	writeMagic(out, footMagicOff, footMagicValue)
	writeUint32(out, versionOff, uint32(m.Kind.Game))
	writeUint32(out, mapTypeOff, uint32(m.Kind.Type))
	writeUint32(out, fileSizeOff, fileSize)
	writeUint32(out, metaOffsetOff, metaStreamStart)
	writeUint32(out, metaLengthOff, uint32(len(meta)))
	copy(out[nameOff:nameOff+nameSize], nameBytes)
	copy(out[buildOff:buildOff+buildSize], buildBytes)

	if helper != nil {
		helper.Infof("encoded %q: %d tags, %s", m.Name, tagCount, humanize.Bytes(uint64(fileSize)))
	}

	return out, nil
}

// countModelParts sums the part count across every mod2 tag's geometries,
// for the tag header's model-part-count fields (spec.md §4.E: two equal
// copies at +0x10 and +0x18).
func countModelParts(tags []Tag) uint32 {
	var total uint32
	for i := range tags {
		if tags[i].Class.Primary != classMod2 || !tags[i].HasData() {
			continue
		}
		geomOffset, geomCount, ok := readReflexiveOffset(&tags[i], modelGeometriesOff)
		if !ok {
			continue
		}
		for g := uint32(0); g < geomCount; g++ {
			geomOff := geomOffset + g*modelGeometrySize
			_, partCount, ok := readReflexiveOffset(&tags[i], geomOff+modelPartsOff)
			if !ok {
				continue
			}
			total += partCount
		}
	}
	return total
}

func padToMultiple(b []byte, n int) []byte {
	for len(b)%n != 0 {
		b = append(b, 0)
	}
	return b
}

// rewriteScenarioSBSPTable updates every scenario tag's structure-bsp
// table so each record's file_offset matches where that sbsp tag's
// body landed in the freshly built sbsp stream. size, mem_address, and
// identity are untouched: the sbsp keeps its original memory address,
// and tag indices do not shift during Encode.
func rewriteScenarioSBSPTable(tags []Tag, table []sbspPlacement) {
	if len(table) == 0 {
		return
	}
	for i := range tags {
		if tags[i].Class.Primary != classScnr || !tags[i].HasData() {
			continue
		}
		base := tags[i].MemoryAddress
		if base == nil {
			continue
		}
		r, err := decodeReflexive(tags[i].Data, scenarioSBSPTableOff, *base, *base+uint32(len(tags[i].Data)), sbspRecordSize)
		if err != nil || r.count == 0 {
			continue
		}
		recordsOffset, ok := tags[i].AddressToOffset(r.address)
		if !ok {
			continue
		}
		for rec := uint32(0); rec < r.count; rec++ {
			recOff := recordsOffset + rec*sbspRecordSize
			identity := binary.LittleEndian.Uint32(tags[i].Data[recOff+sbspIdentityOff:])
			tagIndex := identityToIndex(identity)
			for _, p := range table {
				if p.tagIndex == tagIndex {
					binary.LittleEndian.PutUint32(tags[i].Data[recOff+sbspFileOffsetOff:], p.fileOffset)
					break
				}
			}
		}
	}
}

// rebaseIndexOffsets shifts every mod2 index-buffer offset already
// written relative to a zero base up to indexStreamBase, once the
// vertex stream's final padded length fixes where the index stream
// actually starts.
func rebaseIndexOffsets(tags []Tag, indexStreamBase uint32) {
	for i := range tags {
		if tags[i].Class.Primary != classMod2 || !tags[i].HasData() {
			continue
		}
		geomOffset, geomCount, ok := readReflexiveOffset(&tags[i], modelGeometriesOff)
		if !ok {
			continue
		}
		for g := uint32(0); g < geomCount; g++ {
			geomOff := geomOffset + g*modelGeometrySize
			partsOffset, partCount, ok := readReflexiveOffset(&tags[i], geomOff+modelPartsOff)
			if !ok {
				continue
			}
			for p := uint32(0); p < partCount; p++ {
				partOff := partsOffset + p*modelPartSize
				if int(partOff+modelPartSize) > len(tags[i].Data) {
					continue
				}
				current := readUint32Unchecked(tags[i].Data, partOff+modelIndexOffOff)
				writeUint32(tags[i].Data, partOff+modelIndexOffOff, current+indexStreamBase)
				writeUint32(tags[i].Data, partOff+modelIndexOffDupOff, current+indexStreamBase)
			}
		}
	}
}

func readUint32Unchecked(b []byte, offset uint32) uint32 {
	v, _ := readUint32(b, offset)
	return v
}
