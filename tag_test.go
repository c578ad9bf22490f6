// Copyright 2026 The Halocache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cache

import (
	"encoding/binary"
	"testing"
)

const testClass uint32 = 0x74657374 // "test" - an arbitrary class with no special-case table

// appendDependency writes the 16-byte (class, 0, 0, identity) shape
// genericReferences scans for at offset in data, growing data as needed.
func appendDependency(data []byte, offset uint32, class uint32, index uint32) []byte {
	need := int(offset) + 16
	if len(data) < need {
		grown := make([]byte, need)
		copy(grown, data)
		data = grown
	}
	binary.LittleEndian.PutUint32(data[offset:], class)
	binary.LittleEndian.PutUint32(data[offset+12:], indexToIdentity(index))
	return data
}

func addressOf(base uint32) *uint32 {
	v := base
	return &v
}

func TestSetMemoryAddressShiftsDiscoveredPointers(t *testing.T) {
	data := make([]byte, 200)
	const reflexiveOff = 40
	binary.LittleEndian.PutUint32(data[reflexiveOff:], 2)      // count
	binary.LittleEndian.PutUint32(data[reflexiveOff+4:], 0x1096) // address = base+0x96, resolves in-tag
	binary.LittleEndian.PutUint32(data[reflexiveOff+8:], 0)     // unused

	tag := Tag{
		Class:         TagClass{Primary: testClass},
		Data:          data,
		MemoryAddress: addressOf(0x1000),
	}

	const delta = 0x500
	tag.SetMemoryAddress(0x1000 + delta)

	got := binary.LittleEndian.Uint32(tag.Data[reflexiveOff+4:])
	want := uint32(0x1096 + delta)
	if got != want {
		t.Errorf("shifted address = 0x%X, want 0x%X", got, want)
	}
	if *tag.MemoryAddress != 0x1000+delta {
		t.Errorf("MemoryAddress = 0x%X, want 0x%X", *tag.MemoryAddress, 0x1000+delta)
	}

	// Shifting back down must restore the original value exactly.
	tag.SetMemoryAddress(0x1000)
	got = binary.LittleEndian.Uint32(tag.Data[reflexiveOff+4:])
	if got != 0x1096 {
		t.Errorf("restored address = 0x%X, want 0x1096", got)
	}
}

func TestGenericReferencesTargetClassMatchesReferencedClass(t *testing.T) {
	data := appendDependency(make([]byte, 0), 0, classBitm, 1)
	tag := Tag{Class: TagClass{Primary: testClass}, Data: data}
	tags := []Tag{
		{Path: "self", Class: TagClass{Primary: testClass}},
		{Path: "target", Class: TagClass{Primary: classBitm}},
	}

	refs := tag.References(tags)
	if len(refs) != 1 {
		t.Fatalf("len(refs) = %d, want 1", len(refs))
	}
	ref := refs[0]
	if ref.TagIndex != 1 {
		t.Errorf("TagIndex = %d, want 1", ref.TagIndex)
	}
	if tags[ref.TagIndex].Class.Primary != ref.ReferencedClass {
		t.Errorf("referenced tag's primary class %#x != ReferencedClass %#x",
			tags[ref.TagIndex].Class.Primary, ref.ReferencedClass)
	}
}

func TestGenericReferencesSkipsOnClassMismatch(t *testing.T) {
	data := appendDependency(make([]byte, 0), 0, classSnd, 1) // claims snd!, tags[1] is bitm
	tag := Tag{Class: TagClass{Primary: testClass}, Data: data}
	tags := []Tag{
		{Path: "self", Class: TagClass{Primary: testClass}},
		{Path: "target", Class: TagClass{Primary: classBitm}},
	}
	if refs := tag.References(tags); len(refs) != 0 {
		t.Errorf("len(refs) = %d, want 0 for a class/target mismatch", len(refs))
	}
}

func newArrayTag(path string, class uint32, data []byte) Tag {
	return Tag{Path: path, Class: TagClass{Primary: class}, Data: data}
}

func TestTagArrayRemoveFixesUpReferences(t *testing.T) {
	// tag0 references tag2; tag1 is an unrelated tag between them.
	refData := appendDependency(make([]byte, 0), 0, testClass, 2)
	tags := []Tag{
		newArrayTag("zero", testClass, refData),
		newArrayTag("one", testClass, nil),
		newArrayTag("two", testClass, nil),
	}
	arr := TagArray{Tags: tags, Principal: 0}

	arr.Remove(1)

	if len(arr.Tags) != 2 {
		t.Fatalf("len(Tags) = %d, want 2", len(arr.Tags))
	}
	refs := arr.Tags[0].References(arr.Tags)
	if len(refs) != 1 {
		t.Fatalf("len(refs) = %d, want 1", len(refs))
	}
	if refs[0].TagIndex != 1 {
		t.Errorf("TagIndex after removal = %d, want 1 (was 2, shifted down by the removed index-1 tag)", refs[0].TagIndex)
	}
}

func TestTagArrayRemoveNullsReferencesToRemovedTag(t *testing.T) {
	refData := appendDependency(make([]byte, 0), 0, testClass, 1)
	tags := []Tag{
		newArrayTag("zero", testClass, refData),
		newArrayTag("one", testClass, nil),
	}
	arr := TagArray{Tags: tags, Principal: 0}

	arr.Remove(1)

	refs := arr.Tags[0].References(arr.Tags)
	if len(refs) != 0 {
		t.Errorf("len(refs) = %d, want 0 (reference retargeted to the null index, which never resolves)", len(refs))
	}
}

func TestRemoveDeadTagsKeepsPrincipalReachableAndEssential(t *testing.T) {
	refToOne := appendDependency(make([]byte, 0), 0, testClass, 1)
	tags := []Tag{
		newArrayTag("principal", testClass, refToOne),
		newArrayTag("reachable", testClass, nil),
		newArrayTag(`globals\globals`, classMatg, nil),
		newArrayTag("dead", testClass, nil),
	}
	arr := TagArray{Tags: tags, Principal: 0}

	arr.RemoveDeadTags()

	paths := map[string]bool{}
	for _, tag := range arr.Tags {
		paths[tag.Path] = true
	}
	if !paths["principal"] || !paths["reachable"] || !paths[`globals\globals`] {
		t.Errorf("expected principal, reachable, and essential tags to survive, got %v", paths)
	}
	if paths["dead"] {
		t.Errorf("expected unreachable non-essential tag to be pruned")
	}
}

func TestInsertRecursiveHandlesCycle(t *testing.T) {
	// source[0] ("a") references source[1] ("b"); source[1] references
	// source[0] back, forming a 2-tag cycle.
	aData := appendDependency(make([]byte, 0), 0, testClass, 1)
	bData := appendDependency(make([]byte, 0), 0, testClass, 0)
	source := TagArray{Tags: []Tag{
		newArrayTag("a", testClass, aData),
		newArrayTag("b", testClass, bData),
	}}

	dest := TagArray{}
	newIndex, err := dest.InsertRecursive(source.Tags[0], 0, &source)
	if err != nil {
		t.Fatalf("InsertRecursive: %v", err)
	}
	if len(dest.Tags) != 2 {
		t.Fatalf("len(dest.Tags) = %d, want 2", len(dest.Tags))
	}

	aRefs := dest.Tags[newIndex].References(dest.Tags)
	if len(aRefs) != 1 {
		t.Fatalf("len(aRefs) = %d, want 1", len(aRefs))
	}
	bIndex := aRefs[0].TagIndex
	bRefs := dest.Tags[bIndex].References(dest.Tags)
	if len(bRefs) != 1 || bRefs[0].TagIndex != newIndex {
		t.Errorf("b's reference back to a did not resolve to %d: %v", newIndex, bRefs)
	}
}

func TestInsertResolvesReferenceByPathAndClassInDestination(t *testing.T) {
	// source[0] ("a") references source[1] ("b") by index. The
	// destination already holds a same-path-and-class counterpart of
	// "b" at a different index, and Insert must retarget "a"'s
	// reference to that counterpart rather than to source's index 1.
	aData := appendDependency(make([]byte, 0), 0, testClass, 1)
	source := &TagArray{Tags: []Tag{
		newArrayTag("a", testClass, aData),
		newArrayTag("b", testClass, nil),
	}}

	dest := TagArray{Tags: []Tag{
		newArrayTag("unrelated", testClass, nil),
		newArrayTag("b", testClass, nil),
	}}

	newIndex, err := dest.Insert(source.Tags[0], 0, source)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	refs := dest.Tags[newIndex].References(dest.Tags)
	if len(refs) != 1 || refs[0].TagIndex != 1 {
		t.Fatalf("refs = %+v, want a single reference to destination index 1", refs)
	}
}

func TestInsertDuplicatePathAndClassFails(t *testing.T) {
	arr := TagArray{Tags: []Tag{newArrayTag("dup", testClass, nil)}}
	source := &TagArray{Tags: []Tag{newArrayTag("dup", testClass, nil)}}
	_, err := arr.Insert(newArrayTag("dup", testClass, nil), 0, source)
	if err != ErrDuplicateTag {
		t.Errorf("err = %v, want ErrDuplicateTag", err)
	}
}

func TestInsertMissingReferenceTargetFails(t *testing.T) {
	// jpt! reads its single Dependency slot unconditionally, so unlike
	// the generic scanner it doesn't need a populated tags array to
	// discover the reference in the first place.
	data := make([]byte, 0x124)
	binary.LittleEndian.PutUint32(data[0x114:], classSnd)
	binary.LittleEndian.PutUint32(data[0x114+0xC:], indexToIdentity(5))
	tag := newArrayTag("a", classJpt, data)

	// source has an entry at index 5 (the reference's target in the
	// source array), but it doesn't match anything in the (empty)
	// destination array, so Find fails and the insert is rejected.
	source := &TagArray{Tags: make([]Tag, 6)}
	source.Tags[5] = newArrayTag("unreachable", classSnd, nil)

	arr := TagArray{}
	_, err := arr.Insert(tag, 0, source)
	if err != ErrMissingReferenceTarget {
		t.Errorf("err = %v, want ErrMissingReferenceTarget", err)
	}
}

func TestTagArrayFullRejectsInsert(t *testing.T) {
	arr := TagArray{Tags: make([]Tag, maxTagCount)}
	for i := range arr.Tags {
		arr.Tags[i] = newArrayTag("", testClass, nil)
	}
	source := &TagArray{Tags: []Tag{newArrayTag("overflow", testClass, nil)}}
	_, err := arr.Insert(newArrayTag("overflow", testClass, nil), 0, source)
	if err != ErrTagArrayFull {
		t.Errorf("err = %v, want ErrTagArrayFull", err)
	}
}

func TestOffsetToAddressRoundTrip(t *testing.T) {
	tag := Tag{Data: make([]byte, 64), MemoryAddress: addressOf(0x2000)}
	addr, ok := tag.OffsetToAddress(16)
	if !ok || addr != 0x2010 {
		t.Fatalf("OffsetToAddress(16) = (0x%X, %v), want (0x2010, true)", addr, ok)
	}
	off, ok := tag.AddressToOffset(addr)
	if !ok || off != 16 {
		t.Fatalf("AddressToOffset(0x%X) = (%d, %v), want (16, true)", addr, off, ok)
	}
}
