// Copyright 2026 The Halocache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cache

import (
	"github.com/dustin/go-humanize"

	"github.com/mapforge/halocache/internal/log"
)

// sbspRecordSize is the stride of one entry in the scenario's
// structure-bsp table.
const sbspRecordSize = 0x20

const (
	sbspFileOffsetOff = 0x00
	sbspSizeOff       = 0x04
	sbspMemAddressOff = 0x08
	sbspIdentityOff   = 0x14
)

const scenarioSBSPTableOff = 0x5A4

type sbspEntry struct {
	tagIndex   uint32
	fileOffset uint32
	size       uint32
	memAddress uint32
}

// Parse decodes a complete cache file from data.
func Parse(data []byte, opts Options) (*Map, error) {
	helper := logHelper(opts.Logger)

	if len(data) < headerSize {
		return nil, ErrTruncated
	}
	if err := checkMagic(data, headMagicOff, headMagicValue); err != nil {
		return nil, err
	}
	if err := checkMagic(data, footMagicOff, footMagicValue); err != nil {
		return nil, err
	}

	version, err := readUint32(data, versionOff)
	if err != nil {
		return nil, err
	}
	fileSize, err := readUint32(data, fileSizeOff)
	if err != nil {
		return nil, err
	}
	if uint64(fileSize) > uint64(len(data)) || fileSize > maxCacheFileSize {
		return nil, ErrTruncated
	}
	mapType, err := readUint32(data, mapTypeOff)
	if err != nil {
		return nil, err
	}
	name, err := readLatin1Fixed(data, nameOff, nameSize)
	if err != nil {
		return nil, err
	}
	build, err := readLatin1Fixed(data, buildOff, buildSize)
	if err != nil {
		return nil, err
	}

	metaOffset, err := readUint32(data, metaOffsetOff)
	if err != nil {
		return nil, err
	}
	metaLength, err := readUint32(data, metaLengthOff)
	if err != nil {
		return nil, err
	}
	if uint64(metaOffset)+uint64(metaLength) > uint64(fileSize) {
		return nil, ErrOutOfRange
	}
	if uint64(metaOffset)+uint64(metaLength) > uint64(len(data)) {
		return nil, ErrTruncated
	}
	meta := data[metaOffset : metaOffset+metaLength]
	if uint64(tagHeaderSize) > uint64(len(meta)) {
		return nil, ErrTruncated
	}
	if err := checkMagic(meta, tagsMagicOff, tagsMagicValue); err != nil {
		return nil, err
	}

	tagArrayAddr, err := readUint32(meta, tagArrayAddrOff)
	if err != nil {
		return nil, err
	}
	principalIdentity, err := readUint32(meta, principalIdentOff)
	if err != nil {
		return nil, err
	}
	tagCount, err := readUint32(meta, tagCountOff)
	if err != nil {
		return nil, err
	}
	if tagCount > maxTagCount {
		return nil, ErrOutOfRange
	}

	if tagArrayAddr < engineLoadBase {
		return nil, ErrOutOfRange
	}
	directoryOffset := tagArrayAddr - engineLoadBase
	if uint64(directoryOffset)+uint64(tagCount)*tagEntrySize > uint64(len(meta)) {
		return nil, ErrTruncated
	}

	m := &Map{
		Name:    name,
		Build:   build,
		Kind:    Kind{Game: Game(version), Type: MapType(mapType)},
		Options: opts,
	}

	dataAddrs := make([]uint32, tagCount)
	flags := make([]uint32, tagCount)
	for i := uint32(0); i < tagCount; i++ {
		entryOff := directoryOffset + i*tagEntrySize
		addr, err := readUint32(meta, entryOff+entryDataAddrOff)
		if err != nil {
			return nil, err
		}
		fl, err := readUint32(meta, entryOff+entryFlagsOff)
		if err != nil {
			return nil, err
		}
		dataAddrs[i] = addr
		flags[i] = fl
	}

	var scnrIndex uint32 = nullIndex
	if principalIdentity != nullIdentity {
		scnrIndex = identityToIndex(principalIdentity)
		if scnrIndex >= tagCount {
			return nil, ErrOutOfRange
		}
	}

	tags := make([]Tag, tagCount)
	for i := uint32(0); i < tagCount; i++ {
		entryOff := directoryOffset + i*tagEntrySize

		primary, _ := readUint32(meta, entryOff+entryPrimaryOff)
		secondary, _ := readUint32(meta, entryOff+entrySecondaryOff)
		tertiary, _ := readUint32(meta, entryOff+entryTertiaryOff)
		class := TagClass{Primary: primary, Secondary: secondary, Tertiary: tertiary}

		pathAddr, err := readUint32(meta, entryOff+entryPathAddrOff)
		if err != nil {
			return nil, err
		}
		if pathAddr < engineLoadBase {
			return nil, ErrOutOfRange
		}
		path, err := readLatin1String(meta, pathAddr-engineLoadBase)
		if err != nil {
			return nil, err
		}

		tag := Tag{Path: path, Class: class}
		implicit := flags[i]&entryImplicitBit != 0

		switch {
		case implicit && primary != classSbsp:
			resourceIndex := dataAddrs[i]
			tag.Implicit = true
			tag.ResourceIndex = &resourceIndex

		case primary == classSbsp:
			if scnrIndex == nullIndex {
				return nil, ErrOrphanedSBSP
			}
			table, err := readSBSPTable(meta, directoryOffset, tagCount, scnrIndex)
			if err != nil {
				return nil, err
			}
			var found *sbspEntry
			for j := range table {
				if table[j].tagIndex == i {
					found = &table[j]
					break
				}
			}
			if found == nil {
				if opts.StrictSBSP {
					return nil, ErrOrphanedSBSP
				}
				if helper != nil {
					helper.Warnf("sbsp tag %q has no entry in the scenario's structure-bsp table", path)
				}
				break
			}
			if uint64(found.fileOffset)+uint64(found.size) > uint64(len(data)) {
				return nil, ErrTruncated
			}
			body := make([]byte, found.size)
			copy(body, data[found.fileOffset:found.fileOffset+found.size])
			tag.Data = body
			memAddr := found.memAddress
			tag.MemoryAddress = &memAddr

		default:
			dataAddr := dataAddrs[i]
			if dataAddr < engineLoadBase {
				return nil, ErrOutOfRange
			}
			dataOffset := dataAddr - engineLoadBase

			upperBound := uint32(len(meta))
			if directoryOffset < upperBound && dataOffset < directoryOffset {
				upperBound = directoryOffset
			}
			for j := uint32(0); j < tagCount; j++ {
				if flags[j]&entryImplicitBit != 0 {
					continue
				}
				otherPrimary, _ := readUint32(meta, directoryOffset+j*tagEntrySize+entryPrimaryOff)
				if otherPrimary == classSbsp {
					continue
				}
				if dataAddrs[j] > dataAddr {
					otherOffset := dataAddrs[j] - engineLoadBase
					if otherOffset < upperBound {
						upperBound = otherOffset
					}
				}
			}
			if dataOffset > upperBound {
				return nil, ErrOutOfRange
			}
			size := upperBound - dataOffset
			if uint64(dataOffset)+uint64(size) > uint64(len(meta)) {
				return nil, ErrTruncated
			}
			body := make([]byte, size)
			copy(body, meta[dataOffset:dataOffset+size])
			tag.Data = body
			tag.MemoryAddress = &dataAddr

			externalizeAsset(&tag, data, helper)
		}

		tags[i] = tag
	}

	m.Tags = TagArray{Tags: tags, Principal: scnrIndex}

	if helper != nil {
		helper.Infof("parsed %q: %d tags, %s of meta", m.Name, tagCount, humanize.Bytes(uint64(metaLength)))
	}

	return m, nil
}

// readSBSPTable decodes the scenario tag's structure-bsp table.
func readSBSPTable(meta []byte, directoryOffset uint32, tagCount, scnrIndex uint32) ([]sbspEntry, error) {
	entryOff := directoryOffset + scnrIndex*tagEntrySize
	dataAddr, err := readUint32(meta, entryOff+entryDataAddrOff)
	if err != nil {
		return nil, err
	}
	if dataAddr < engineLoadBase {
		return nil, ErrOutOfRange
	}
	scnrOffset := dataAddr - engineLoadBase
	tableOff := scnrOffset + scenarioSBSPTableOff
	r, err := decodeReflexive(meta, tableOff, engineLoadBase, engineLoadBase+uint32(len(meta)), sbspRecordSize)
	if err != nil {
		return nil, err
	}
	recordsOffset := r.address - engineLoadBase
	table := make([]sbspEntry, r.count)
	for i := uint32(0); i < r.count; i++ {
		recOff := recordsOffset + i*sbspRecordSize
		fileOffset, err := readUint32(meta, recOff+sbspFileOffsetOff)
		if err != nil {
			return nil, err
		}
		size, err := readUint32(meta, recOff+sbspSizeOff)
		if err != nil {
			return nil, err
		}
		memAddress, err := readUint32(meta, recOff+sbspMemAddressOff)
		if err != nil {
			return nil, err
		}
		identity, err := readUint32(meta, recOff+sbspIdentityOff)
		if err != nil {
			return nil, err
		}
		table[i] = sbspEntry{
			tagIndex:   identityToIndex(identity),
			fileOffset: fileOffset,
			size:       size,
			memAddress: memAddress,
		}
	}
	return table, nil
}

func logHelper(l Logger) *log.Helper {
	if l == nil {
		return nil
	}
	return log.NewHelper(l)
}

// readLatin1Fixed decodes a Latin-1 string from a fixed-size field,
// ending at the first null byte or at the end of the field. A string
// longer than 31 bytes (such as one filling a 32-byte field with no
// null byte) is rejected with ErrNameTooLong.
func readLatin1Fixed(b []byte, offset, size uint32) (string, error) {
	if uint64(offset)+uint64(size) > uint64(len(b)) {
		return "", ErrTruncated
	}
	field := b[offset : offset+size]
	n := len(field)
	for i, c := range field {
		if c == 0 {
			n = i
			break
		}
	}
	if n > 31 {
		return "", ErrNameTooLong
	}
	return encodeLatin1Decode(field[:n])
}
