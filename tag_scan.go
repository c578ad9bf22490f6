// Copyright 2026 The Halocache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cache

import "encoding/binary"

// pointerOffsets returns the byte offset of every reflexive/pointer
// address field discovered in the tag's data, used by offsetPointers
// to relocate a tag without corrupting its internal structure.
//
// Bitmap, effect, and scenario tags carry enough internal structure
// that their pointers are enumerated from known fixed offsets
// (mirroring the engine's own tag definitions). Damage-effect (jpt!)
// tags carry none. Every other class falls back to a heuristic scan
// for the canonical (count, address, 0) reflexive shape.
func (t *Tag) pointerOffsets() []uint32 {
	switch t.Class.Primary {
	case classBitm:
		return t.bitmapPointers()
	case classEffe:
		return t.effectPointers()
	case classJpt:
		return nil
	case classScnr:
		return t.scenarioPointers()
	default:
		return t.heuristicPointers()
	}
}

// maybeAddPointer appends offset to pointers when the tag's data holds
// a nonzero address there, and panics if the address does not resolve
// to a valid in-tag offset (a malformed engine-generated tag, which
// this codec does not try to repair).
func (t *Tag) maybeAddPointer(pointers []uint32, offset uint32) []uint32 {
	if int(offset+4) > len(t.Data) {
		return pointers
	}
	address := binary.LittleEndian.Uint32(t.Data[offset:])
	if address == 0 {
		return pointers
	}
	if _, ok := t.AddressToOffset(address); !ok {
		panic("cache: tag pointer does not resolve to an in-tag offset")
	}
	return append(pointers, offset)
}

func (t *Tag) bitmapPointers() []uint32 {
	var pointers []uint32

	const sequencesCountOff = 0x54
	const sequencesAddressOff = 0x58
	const sequenceStride = 64
	const sequenceBitmapsCountOff = 0x34
	const sequenceBitmapsAddressOff = 0x38
	const bitmapsCountOff = 0x60
	const bitmapsAddressOff = 0x64

	sequencesCount := binary.LittleEndian.Uint32(t.Data[sequencesCountOff:])
	if sequencesCount > 0 {
		pointers = t.maybeAddPointer(pointers, sequencesAddressOff)
		sequencesOffset, ok := t.AddressToOffset(binary.LittleEndian.Uint32(t.Data[sequencesAddressOff:]))
		if ok {
			for i := uint32(0); i < sequencesCount; i++ {
				seqOff := sequencesOffset + i*sequenceStride
				if int(seqOff+sequenceStride) > len(t.Data) {
					break
				}
				seqCount := binary.LittleEndian.Uint32(t.Data[seqOff+sequenceBitmapsCountOff:])
				if seqCount > 0 {
					pointers = t.maybeAddPointer(pointers, seqOff+sequenceBitmapsAddressOff)
				}
			}
		}
	}

	bitmapsCount := binary.LittleEndian.Uint32(t.Data[bitmapsCountOff:])
	if bitmapsCount > 0 {
		pointers = t.maybeAddPointer(pointers, bitmapsAddressOff)
	}

	return pointers
}

func (t *Tag) effectPointers() []uint32 {
	var pointers []uint32

	const locationsCountOff = 0x28
	const locationsAddressOff = 0x2C
	const eventsCountOff = 0x34
	const eventsAddressOff = 0x38
	const eventStride = 68
	const eventPartsCountOff = 0x2C
	const eventPartsAddressOff = 0x30
	const eventParticlesCountOff = 0x38
	const eventParticlesAddressOff = 0x3C

	pointers = t.maybeAddPointerIfCounted(pointers, locationsCountOff, locationsAddressOff)

	eventsCount := binary.LittleEndian.Uint32(t.Data[eventsCountOff:])
	if eventsCount > 0 {
		pointers = t.maybeAddPointer(pointers, eventsAddressOff)
		eventsOffset, ok := t.AddressToOffset(binary.LittleEndian.Uint32(t.Data[eventsAddressOff:]))
		if ok {
			for i := uint32(0); i < eventsCount; i++ {
				evOff := eventsOffset + i*eventStride
				if int(evOff+eventStride) > len(t.Data) {
					break
				}
				pointers = t.maybeAddPointerIfCounted(pointers, evOff+eventPartsCountOff, evOff+eventPartsAddressOff)
				pointers = t.maybeAddPointerIfCounted(pointers, evOff+eventParticlesCountOff, evOff+eventParticlesAddressOff)
			}
		}
	}

	return pointers
}

// maybeAddPointerIfCounted is maybeAddPointer gated on a preceding
// 4-byte count field: the address at addressOff is only a pointer
// worth recording when the count at countOff is nonzero.
func (t *Tag) maybeAddPointerIfCounted(pointers []uint32, countOff, addressOff uint32) []uint32 {
	if int(countOff+4) > len(t.Data) {
		return pointers
	}
	count := binary.LittleEndian.Uint32(t.Data[countOff:])
	if count == 0 {
		return pointers
	}
	return t.maybeAddPointer(pointers, addressOff)
}

// scenarioPointers enumerates the large, fixed set of pointers a
// scenario tag's root structure carries, plus the nested per-element
// pointers of its comment, recorded-animation, encounter, command-list,
// and conversation blocks. Offsets follow the engine's scnr tag
// definition field order.
func (t *Tag) scenarioPointers() []uint32 {
	var pointers []uint32

	maybeAdd := func(offset uint32) {
		if int(offset+4) > len(t.Data) {
			return
		}
		if binary.LittleEndian.Uint32(t.Data[offset:]) != 0 {
			pointers = append(pointers, offset)
		}
	}

	flat := []uint32{
		0x34, 0x44, 0xF0, 0xFC, 0x110,
		0x208, 0x214, 0x220, 0x22C, 0x238,
		0x244, 0x250, 0x25C, 0x268, 0x274,
		0x280, 0x28C, 0x298, 0x2A4, 0x2B0,
		0x2BC, 0x2C8, 0x2D4, 0x2E0, 0x2EC,
		0x34C, 0x358, 0x364,
		0x37C, 0x388, 0x394, 0x3A0, 0x3AC,
		0x3B8, 0x3C4, 0x424,
		0x448, 0x454, 0x460,
		0x480, 0x494, 0x4A0, 0x4AC, 0x4B8,
		0x4E8, 0x4F4, 0x500, 0x5A8,
	}
	for _, off := range flat {
		maybeAdd(off)
	}

	// Comments: stride 48, inner pointer at +0x28.
	if offset, count, ok := readReflexiveOffset(t, 0x118); ok {
		for i := uint32(0); i < count; i++ {
			maybeAdd(offset + i*48 + 0x28)
		}
		maybeAdd(0x11C)
	}

	// Recorded animations: stride 64, inner pointer at +0x38 (no
	// preceding count field of its own — a single address slot).
	if offset, count, ok := readReflexiveOffset(t, 0x36C); ok {
		for i := uint32(0); i < count; i++ {
			maybeAdd(offset + i*64 + 0x38)
		}
		maybeAdd(0x370)
	}

	// Encounters: stride 176, each with a nested squads reflexive at
	// +0x80 (stride 232, inner pointers at +0xC8/+0xD4) plus three
	// unconditional pointers per encounter.
	if offset, count, ok := readReflexiveOffset(t, 0x42C); ok {
		for i := uint32(0); i < count; i++ {
			blockOff := offset + i*176
			if squadOffset, squadCount, ok := readReflexiveOffset(t, blockOff+0x80); ok {
				for s := uint32(0); s < squadCount; s++ {
					maybeAdd(squadOffset + s*232 + 0xC8)
					maybeAdd(squadOffset + s*232 + 0xD4)
				}
				maybeAdd(blockOff + 0x84)
			}
			maybeAdd(blockOff + 0x90)
			maybeAdd(blockOff + 0x9C)
			maybeAdd(blockOff + 0xA8)
		}
		maybeAdd(0x430)
	}

	// Command lists: stride 96, inner pointers at +0x34/+0x40.
	if offset, count, ok := readReflexiveOffset(t, 0x438); ok {
		for i := uint32(0); i < count; i++ {
			blockOff := offset + i*96
			maybeAdd(blockOff + 0x34)
			maybeAdd(blockOff + 0x40)
		}
		maybeAdd(0x43C)
	}

	// Conversations: stride 116, inner pointers at +0x54/+0x60.
	if offset, count, ok := readReflexiveOffset(t, 0x468); ok {
		for i := uint32(0); i < count; i++ {
			blockOff := offset + i*116
			maybeAdd(blockOff + 0x54)
			maybeAdd(blockOff + 0x60)
		}
		maybeAdd(0x46C)
	}

	return pointers
}

// heuristicPointers scans every 4-byte-aligned 12-byte window in the
// tag's data for the (count, address, 0) shape of a reflexive whose
// address resolves inside this same tag. It is the fallback used for
// every class without a hand-enumerated offset table, and is what lets
// this codec relocate tag classes it has no special knowledge of. The
// source's own equivalent scan uses a 2-byte stride; this codec uses
// 4, which spec.md's design notes sanction as an equivalent,
// faster-and-still-correct alternative given reflexive alignment.
func (t *Tag) heuristicPointers() []uint32 {
	var pointers []uint32
	data := t.Data
	if len(data) < reflexiveSize {
		return pointers
	}
	for i := 0; i+reflexiveSize <= len(data); i += 4 {
		count := binary.LittleEndian.Uint32(data[i:])
		address := binary.LittleEndian.Uint32(data[i+4:])
		unused := binary.LittleEndian.Uint32(data[i+8:])
		if count == 0 || unused != 0 {
			continue
		}
		if _, ok := t.AddressToOffset(address); !ok {
			continue
		}
		pointers = append(pointers, uint32(i)+4)
	}
	return pointers
}

// References enumerates every outward tag reference this tag's data
// holds, resolving each to the index of the target tag in tags (looked
// up by its identity or, for the generic path, validated against the
// expected referenced class). Object-derived tags, scenario tags, and
// structural-BSP cluster tables additionally contribute "predicted
// resource" references regardless of primary class.
func (t *Tag) References(tags []Tag) []TagReference {
	var refs []TagReference
	switch t.Class.Primary {
	case classAntr:
		refs = t.antrReferences()
	case classBitm:
		refs = t.bitmReferences()
	case classEffe:
		refs = t.effeReferences(tags)
	case classJpt:
		refs = t.jptReferences(tags)
	case classSnd:
		refs = t.sndReferences(tags)
	default:
		refs = t.genericReferences(tags)
	}

	if t.Class.Primary == classObje || t.Class.Secondary == classObje || t.Class.Tertiary == classObje {
		refs = append(refs, t.predictedResourceReferences(0x170, tags)...)
	}
	if t.Class.Primary == classScnr {
		refs = append(refs, t.predictedResourceReferences(0xEC, tags)...)
	}
	if t.Class.Primary == classSbsp {
		refs = append(refs, t.sbspClusterReferences(tags)...)
	}

	return refs
}

func identityReference(data []byte, offset uint32, referencedClass uint32) (TagReference, bool) {
	identity := binary.LittleEndian.Uint32(data[offset:])
	if identity == nullIdentity {
		return TagReference{}, false
	}
	return TagReference{
		TagIndex:        identityToIndex(identity),
		ByteOffset:      offset,
		ReferencedClass: referencedClass,
		Kind:            ReferenceIdentity,
	}, true
}

func dependencyReference(data []byte, offset uint32) (TagReference, bool) {
	identity := binary.LittleEndian.Uint32(data[offset+0xC:])
	if identity == nullIdentity {
		return TagReference{}, false
	}
	return TagReference{
		TagIndex:        identityToIndex(identity),
		ByteOffset:      offset,
		ReferencedClass: binary.LittleEndian.Uint32(data[offset:]),
		Kind:            ReferenceDependency,
	}, true
}

// antrReferences walks a model-animation tag's sound reflexive: a
// Dependency (class, identity) pair per 20-byte entry.
func (t *Tag) antrReferences() []TagReference {
	var refs []TagReference
	const soundsOff = 0x54
	const soundStride = 20
	offset, count, ok := readReflexiveOffset(t, soundsOff)
	if !ok {
		return refs
	}
	for i := uint32(0); i < count; i++ {
		entryOff := offset + i*soundStride
		if int(entryOff+soundStride) > len(t.Data) {
			break
		}
		if ref, ok := dependencyReference(t.Data, entryOff); ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

// bitmReferences walks a bitmap tag's element reflexive (the same one
// pointerOffsets relocates): each element carries an Identity reference
// to another bitmap tag at +0x20.
func (t *Tag) bitmReferences() []TagReference {
	var refs []TagReference
	offset, count, ok := readReflexiveOffset(t, bitmapElementsOff)
	if !ok {
		return refs
	}
	for i := uint32(0); i < count; i++ {
		elemOff := offset + i*bitmapElementSize
		if int(elemOff+bitmapElementSize) > len(t.Data) {
			break
		}
		if ref, ok := identityReference(t.Data, elemOff+0x20, classBitm); ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

func (t *Tag) effeReferences(tags []Tag) []TagReference {
	var refs []TagReference
	const eventsCountOff = 0x34
	const eventStride = 68
	const eventPartsCountOff = 0x2C
	const partStride = 104
	const eventParticlesCountOff = 0x38
	const particleStride = 232

	eventsOffset, eventsCount, ok := readReflexiveOffset(t, eventsCountOff)
	if !ok {
		return refs
	}
	for i := uint32(0); i < eventsCount; i++ {
		evOff := eventsOffset + i*eventStride
		if int(evOff+eventStride) > len(t.Data) {
			break
		}
		if partsOffset, partsCount, ok := readReflexiveOffset(t, evOff+eventPartsCountOff); ok {
			for j := uint32(0); j < partsCount; j++ {
				pOff := partsOffset + j*partStride
				if int(pOff+partStride) > len(t.Data) {
					break
				}
				if ref, ok := dependencyReference(t.Data, pOff+0x18); ok {
					refs = append(refs, ref)
				}
			}
		}
		if particlesOffset, particlesCount, ok := readReflexiveOffset(t, evOff+eventParticlesCountOff); ok {
			for j := uint32(0); j < particlesCount; j++ {
				pOff := particlesOffset + j*particleStride
				if int(pOff+particleStride) > len(t.Data) {
					break
				}
				if ref, ok := dependencyReference(t.Data, pOff+0x54); ok {
					refs = append(refs, ref)
				}
			}
		}
	}
	return refs
}

// jptReferences reads a damage-effect tag's single Dependency slot.
func (t *Tag) jptReferences(tags []Tag) []TagReference {
	var refs []TagReference
	const soundEffectOff = 0x114
	if int(soundEffectOff+0x10) > len(t.Data) {
		return refs
	}
	if ref, ok := dependencyReference(t.Data, soundEffectOff); ok {
		refs = append(refs, ref)
	}
	return refs
}

// sndReferences reads a sound tag's promotion-sound Dependency slot
// plus, per range/permutation, up to two alternate-permutation Identity
// slots.
func (t *Tag) sndReferences(tags []Tag) []TagReference {
	var refs []TagReference
	const promotionOff = 0x70
	const rangesOff = 0x98
	const rangeStride = 0x48
	const permsOff = 0x3C
	const permStride = 124
	const permAltOff = 0x34

	if int(promotionOff+0x10) <= len(t.Data) {
		if ref, ok := dependencyReference(t.Data, promotionOff); ok {
			refs = append(refs, ref)
		}
	}

	rangesOffset, rangeCount, ok := readReflexiveOffset(t, rangesOff)
	if !ok {
		return refs
	}
	for r := uint32(0); r < rangeCount; r++ {
		rangeOff := rangesOffset + r*rangeStride
		permsOffset, permCount, ok := readReflexiveOffset(t, rangeOff+permsOff)
		if !ok {
			continue
		}
		for p := uint32(0); p < permCount; p++ {
			permOff := permsOffset + p*permStride
			if int(permOff+permStride) > len(t.Data) {
				break
			}
			for k := uint32(0); k < 2; k++ {
				if ref, ok := identityReference(t.Data, permOff+permAltOff+k*8, classSnd); ok {
					refs = append(refs, ref)
				}
			}
		}
	}
	return refs
}

// genericReferences scans every 4-byte-aligned 16-byte window for the
// canonical dependency shape (class fourcc, 8 unused bytes, identity)
// whose class matches some tag actually present in tags and whose
// identity resolves to one of them. A match consumes the full 16-byte
// record; a miss advances by 4, mirroring the source's own scan.
func (t *Tag) genericReferences(tags []Tag) []TagReference {
	var refs []TagReference
	data := t.Data
	if len(data) < 16 {
		return refs
	}
	for i := 0; i+16 <= len(data); {
		class := binary.LittleEndian.Uint32(data[i:])
		unused1 := binary.LittleEndian.Uint32(data[i+4:])
		unused2 := binary.LittleEndian.Uint32(data[i+8:])
		identity := binary.LittleEndian.Uint32(data[i+12:])
		if unused1 != 0 || unused2 != 0 || identity == nullIdentity {
			i += 4
			continue
		}
		index := identityToIndex(identity)
		if int(index) >= len(tags) || tags[index].Class.Primary != class {
			i += 4
			continue
		}
		refs = append(refs, TagReference{
			TagIndex:        index,
			ByteOffset:      uint32(i),
			ReferencedClass: class,
			Kind:            ReferenceDependency,
		})
		i += 16
	}
	return refs
}

// predictedResourceReferences decodes the 8-byte-record reflexive at
// fieldOffset (a preload hint list of bitm/snd! tags an object,
// scenario, or BSP cluster expects to need): type:u16 at +0, identity
// at +4. type 0 expects a bitm target, type 1 a snd! target; any other
// pairing is a malformed tag this codec does not try to repair.
func (t *Tag) predictedResourceReferences(fieldOffset uint32, tags []Tag) []TagReference {
	var refs []TagReference
	const recordSize = 8
	const typeOff = 0x0
	const identityOff = 0x4

	offset, count, ok := readReflexiveOffset(t, fieldOffset)
	if !ok {
		return refs
	}
	for i := uint32(0); i < count; i++ {
		recOff := offset + i*recordSize
		if int(recOff+recordSize) > len(t.Data) {
			break
		}
		identity := binary.LittleEndian.Uint32(t.Data[recOff+identityOff:])
		if identity == nullIdentity {
			continue
		}
		index := identityToIndex(identity)
		if int(index) >= len(tags) {
			continue
		}
		typ := binary.LittleEndian.Uint16(t.Data[recOff+typeOff:])
		var wantClass uint32
		switch typ {
		case 0:
			wantClass = classBitm
		case 1:
			wantClass = classSnd
		default:
			panic("cache: invalid predicted-resource type")
		}
		if tags[index].Class.Primary != wantClass {
			panic("cache: predicted-resource target type does not match referenced tag's class")
		}
		refs = append(refs, TagReference{
			TagIndex:        index,
			ByteOffset:      recOff + identityOff,
			ReferencedClass: wantClass,
			Kind:            ReferenceIdentity,
		})
	}
	return refs
}

// sbspClusterReferences walks a structural-BSP tag's cluster table and
// collects each cluster's predicted-resources block.
func (t *Tag) sbspClusterReferences(tags []Tag) []TagReference {
	var refs []TagReference
	const clustersOff = 0x14C
	const clusterStride = 104
	const clusterPredictedResourcesOff = 0x28

	offset, count, ok := readReflexiveOffset(t, clustersOff)
	if !ok {
		return refs
	}
	for i := uint32(0); i < count; i++ {
		clusterOff := offset + i*clusterStride
		refs = append(refs, t.predictedResourceReferences(clusterOff+clusterPredictedResourcesOff, tags)...)
	}
	return refs
}
