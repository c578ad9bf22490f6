// Copyright 2026 The Halocache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cache

// identityOffset is the constant added to an index before it is
// shifted into the high 16 bits of a tag identity. The engine uses
// this to make identities churn across rebuilds instead of simply
// mirroring the index.
const identityOffset = 0xE174

// indexToIdentity packs a tag-array index into the 32-bit identity the
// engine stores wherever one tag refers to another. nullIndex maps to
// nullIdentity.
func indexToIdentity(index uint32) uint32 {
	if index == nullIndex {
		return nullIdentity
	}
	return (index & 0xFFFF) | ((index + identityOffset) << 16)
}

// identityToIndex extracts the tag-array index from a 32-bit identity.
// The upper 16 bits are a salt and carry no information beyond
// round-trip validation, which callers that care about can redo via
// indexToIdentity.
func identityToIndex(identity uint32) uint32 {
	return identity & 0xFFFF
}

// essentialTags is the hard-coded whitelist of (primary class, path)
// pairs RemoveDeadTags always keeps regardless of reachability: the
// engine's own UI chrome and globals, never reached purely by
// following gameplay references downward from the scenario.
var essentialTags = map[uint32]map[string]bool{
	classBitm: {
		`ui\shell\bitmaps\background`:      true,
		`ui\shell\bitmaps\trouble_brewing`: true,
	},
	classSnd: {
		`sound\sfx\ui\cursor`:  true,
		`sound\sfx\ui\forward`: true,
		`sound\sfx\ui\back`:    true,
	},
	classUstr: {
		`ui\shell\strings\loading`:       true,
		`ui\shell\main_menu\mp_map_list`: true,
	},
	classMatg: {
		`globals\globals`: true,
	},
}

// isEssentialTag reports whether tag is a hard-coded root: a member of
// essentialTags by (primary class, path), or any tag collection.
func isEssentialTag(tag Tag) bool {
	if tag.Class.Primary == classTagc {
		return true
	}
	paths := essentialTags[tag.Class.Primary]
	return paths != nil && paths[tag.Path]
}

// TagArray is an ordered collection of tags together with the index of
// the distinguished "principal" tag (the map's scenario, by
// convention index 0).
type TagArray struct {
	Tags      []Tag
	Principal uint32
}

// Find returns the index of the first tag matching path and the full
// class triple, and whether one was found. A tag whose primary class
// matches but whose secondary or tertiary class differs is not a match.
func (a *TagArray) Find(path string, class TagClass) (uint32, bool) {
	for i := range a.Tags {
		if a.Tags[i].Path == path && a.Tags[i].Class == class {
			return uint32(i), true
		}
	}
	return 0, false
}

// FindAll returns the index of every tag whose primary class matches
// primaryClass.
func (a *TagArray) FindAll(primaryClass uint32) []uint32 {
	var indexes []uint32
	for i := range a.Tags {
		if a.Tags[i].Class.Primary == primaryClass {
			indexes = append(indexes, uint32(i))
		}
	}
	return indexes
}

// Insert appends tag to the array, rewriting every reference the tag
// carries to point at its counterpart already present in this array,
// located by (path, class) the same way InsertRecursive's non-recursive
// base case does. sourceIndex and source identify the array tag was
// read out of, since tag's own Data encodes reference indexes relative
// to that array, not this one. It fails if a tag with the same path and
// class already exists, the array is full, or a reference's target is
// not already present in this array.
func (a *TagArray) Insert(tag Tag, sourceIndex uint32, source *TagArray) (uint32, error) {
	if _, found := a.Find(tag.Path, tag.Class); found {
		return 0, ErrDuplicateTag
	}
	if len(a.Tags) >= maxTagCount {
		return 0, ErrTagArrayFull
	}

	if tag.HasData() {
		refs := tag.References(source.Tags)
		for _, ref := range refs {
			dep := source.Tags[ref.TagIndex]
			newIndex, found := a.Find(dep.Path, dep.Class)
			if !found {
				return 0, ErrMissingReferenceTarget
			}
			ref.TagIndex = newIndex
			tag.SetReference(ref)
		}
	}

	newIndex := uint32(len(a.Tags))
	a.Tags = append(a.Tags, tag)
	return newIndex, nil
}

// InsertRecursive inserts tag and, transitively, every tag it
// references out of source that is not already present in this array
// (matched by path and class), returning the new index of tag itself.
// It is safe against reference cycles: a tag is marked present in the
// destination before its own dependencies are walked.
func (a *TagArray) InsertRecursive(tag Tag, sourceIndex uint32, source *TagArray) (uint32, error) {
	if existing, found := a.Find(tag.Path, tag.Class); found {
		return existing, nil
	}

	mapping := map[uint32]uint32{}
	mapping[sourceIndex] = uint32(len(a.Tags))

	placeholder := tag
	destIndex := uint32(len(a.Tags))
	a.Tags = append(a.Tags, Tag{Path: tag.Path, Class: tag.Class})

	if placeholder.HasData() {
		refs := placeholder.References(source.Tags)

		for _, ref := range refs {
			if _, already := mapping[ref.TagIndex]; already {
				continue
			}
			dep := source.Tags[ref.TagIndex]
			if existing, found := a.Find(dep.Path, dep.Class); found {
				mapping[ref.TagIndex] = existing
				continue
			}
			depIndex, err := a.InsertRecursive(dep, ref.TagIndex, source)
			if err != nil {
				return 0, err
			}
			mapping[ref.TagIndex] = depIndex
		}

		for _, ref := range refs {
			newIndex, ok := mapping[ref.TagIndex]
			if !ok {
				return 0, ErrMissingReferenceTarget
			}
			ref.TagIndex = newIndex
			placeholder.SetReference(ref)
		}
	}

	a.Tags[destIndex] = placeholder
	return destIndex, nil
}

// Remove deletes the tag at index and rewrites every remaining tag's
// outward references to account for the shift: indexes above index
// shift down by one, and any reference that pointed at index itself is
// nulled out (the caller is expected to have already verified nothing
// still depends on the removed tag if that matters to them).
func (a *TagArray) Remove(index uint32) {
	for i := range a.Tags {
		if uint32(i) == index || !a.Tags[i].HasData() {
			continue
		}
		for _, ref := range a.Tags[i].References(a.Tags) {
			switch {
			case ref.TagIndex == index:
				ref.TagIndex = nullIndex
				a.Tags[i].SetReference(ref)
			case ref.TagIndex > index:
				ref.TagIndex--
				a.Tags[i].SetReference(ref)
			}
		}
	}

	a.Tags = append(a.Tags[:index], a.Tags[index+1:]...)
	if a.Principal == index {
		a.Principal = nullIndex
	} else if a.Principal > index && a.Principal != nullIndex {
		a.Principal--
	}
}

// RemoveDeadTags prunes every tag unreachable from the principal tag
// or from the hard-coded essential-tag whitelist, via a mark phase
// that follows References transitively followed by a sweep that
// removes unmarked tags in descending index order so earlier removals
// never invalidate the indexes still queued for removal.
func (a *TagArray) RemoveDeadTags() {
	live := make([]bool, len(a.Tags))

	var mark func(index uint32)
	mark = func(index uint32) {
		if index == nullIndex || int(index) >= len(a.Tags) || live[index] {
			return
		}
		live[index] = true
		tag := a.Tags[index]
		if !tag.HasData() {
			return
		}
		for _, ref := range tag.References(a.Tags) {
			mark(ref.TagIndex)
		}
	}

	if a.Principal != nullIndex {
		mark(a.Principal)
	}
	for i := range a.Tags {
		if isEssentialTag(a.Tags[i]) {
			mark(uint32(i))
		}
	}

	for i := len(a.Tags) - 1; i >= 0; i-- {
		if !live[i] {
			a.Remove(uint32(i))
		}
	}
}
