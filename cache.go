// Copyright 2026 The Halocache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cache parses and rewrites Halo: Combat Evolved cache files
// (maps). A cache file packs the geometry, bitmaps, sounds, gameplay
// scripts, and the relational graph of typed "tag" records an engine
// instance needs to run one map, laid out at the absolute memory
// addresses the engine expects when the file is mapped into RAM.
//
// The package exposes three layers: Map/Tag/TagArray (the in-memory
// object graph), Parse/Encode (the codec that moves bytes in and out
// of that graph), and the TagArray operations that keep the graph
// consistent under insertion, deletion, and relocation.
package cache

// Game identifies which engine build produced a cache file. Maps from
// one game will not load in another.
type Game uint32

// Known engine versions. CombatEvolved is the retail boxed release;
// CustomEdition adds indexed (implicit) tags resolved from an external
// resource map.
const (
	CombatEvolved Game = 0x7
	CustomEdition Game = 0x261
)

// MapType identifies what a map is used for.
type MapType uint32

// Known map types.
const (
	Singleplayer  MapType = 0x0
	Multiplayer   MapType = 0x1
	UserInterface MapType = 0x2
)

// Kind pairs a Game and a MapType, the two fields the header's version
// and map-type slots decode to.
type Kind struct {
	Game Game
	Type MapType
}

// Tag class FourCCs that require special handling somewhere in the
// codec (pointer discovery, reference extraction, or asset
// externalization). Every other class is treated as an opaque blob
// subject to the generic heuristic scanners.
const (
	classAntr uint32 = 0x616E7472 // antr - animation
	classBitm uint32 = 0x6269746D // bitm - bitmap
	classEffe uint32 = 0x65666665 // effe - effect
	classJpt  uint32 = 0x6A707421 // jpt! - damage effect
	classMod2 uint32 = 0x6D6F6432 // mod2 - PC model
	classObje uint32 = 0x6F626A65 // obje - object (base class, never a primary class alone)
	classSbsp uint32 = 0x73627370 // sbsp - structural bsp
	classScnr uint32 = 0x73636E72 // scnr - scenario
	classSnd  uint32 = 0x736E6421 // snd! - sound
	classTagc uint32 = 0x74616763 // tagc - tag collection
	classMatg uint32 = 0x6D617467 // matg - globals
	classUstr uint32 = 0x75737472 // ustr - unicode string list
)

// nullIdentity marks the absence of a tag reference.
const nullIdentity uint32 = 0xFFFFFFFF

// nullIndex marks the absence of a tag index.
const nullIndex uint32 = 0xFFFFFFFF

// engineLoadBase is the fixed absolute address the meta block of every
// cache file is based at. Every in-tag pointer lives in this address
// space.
const engineLoadBase uint32 = 0x40440000

// maxTagCount bounds a TagArray; the identity scheme packs the index
// into the low 16 bits of a 32-bit handle.
const maxTagCount = 65535

// maxCacheFileSize is the largest file size the header's 32-bit length
// field can carry (2 GiB - 1).
const maxCacheFileSize = 0x7FFFFFFF

// headerSize is the fixed size of a cache file header.
const headerSize = 0x800
