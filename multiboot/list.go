package multiboot

import (
	"unsafe"

	"mb2os/kernel"
)

// Capacity limits of an InformationList. The limits are sized for what
// GRUB and QEMU report on common configurations with a generous margin.
const (
	// MaxTags is the maximum number of tags (excluding the end tag).
	MaxTags = 64

	// MaxMemoryRegions is the maximum number of memory map entries across
	// all memory map tags.
	MaxMemoryRegions = 128

	// PayloadArenaSize is the number of bytes available for copies of
	// strings and raw payloads.
	PayloadArenaSize = 8192
)

// TagVisitor defines a visitor function that gets invoked for each tag in an
// InformationList. The visitor must return true to continue or false to abort
// the scan.
type TagVisitor func(*Tag) bool

// InformationList is the ordered list of tags decoded from a boot information
// structure. Tags appear in the order they were found in the structure and
// duplicates are preserved.
//
// An InformationList uses fixed-size inline storage so it can be declared as
// a global variable and populated before any memory allocator is available.
// The zero value is an empty list.
type InformationList struct {
	tags    [MaxTags]Tag
	numTags int

	regions    [MaxMemoryRegions]MemoryMapEntry
	numRegions int

	arena     [PayloadArenaSize]byte
	arenaUsed int
}

// Len returns the number of tags in the list.
func (l *InformationList) Len() int {
	return l.numTags
}

// At returns the tag at index or nil if index is out of range.
func (l *InformationList) At(index int) *Tag {
	if index < 0 || index >= l.numTags {
		return nil
	}

	return &l.tags[index]
}

// First returns the first tag with the requested type.
func (l *InformationList) First(tagType TagType) (*Tag, bool) {
	for i := 0; i < l.numTags; i++ {
		if l.tags[i].tagType == tagType {
			return &l.tags[i], true
		}
	}

	return nil, false
}

// Count returns the number of tags with the requested type.
func (l *InformationList) Count(tagType TagType) int {
	var count int
	for i := 0; i < l.numTags; i++ {
		if l.tags[i].tagType == tagType {
			count++
		}
	}

	return count
}

// Visit invokes visitor for each tag in the list in the order the tags appear
// in the boot information structure.
func (l *InformationList) Visit(visitor TagVisitor) {
	for i := 0; i < l.numTags; i++ {
		if !visitor(&l.tags[i]) {
			return
		}
	}
}

// VisitKind invokes visitor for each tag with the requested type.
func (l *InformationList) VisitKind(tagType TagType, visitor TagVisitor) {
	for i := 0; i < l.numTags; i++ {
		if l.tags[i].tagType != tagType {
			continue
		}

		if !visitor(&l.tags[i]) {
			return
		}
	}
}

// VisitMemRegions invokes visitor for each memory region reported by every
// memory map tag in the list. Region types that the kernel does not
// understand are reported as MemReserved.
func (l *InformationList) VisitMemRegions(visitor MemRegionVisitor) {
	for i := 0; i < l.numTags; i++ {
		if l.tags[i].tagType != TagMemoryMap {
			continue
		}

		for _, region := range l.tags[i].regions {
			region.Type = region.Type.Normalized()
			if !visitor(region) {
				return
			}
		}
	}
}

// Equal returns true if both lists contain equal tags in the same order.
func (l *InformationList) Equal(other *InformationList) bool {
	if l.numTags != other.numTags {
		return false
	}

	for i := 0; i < l.numTags; i++ {
		if !l.tags[i].Equal(&other.tags[i]) {
			return false
		}
	}

	return true
}

// reset empties the list and drops any references into its storage.
func (l *InformationList) reset() {
	for i := 0; i < l.numTags; i++ {
		l.tags[i] = Tag{}
	}

	l.numTags = 0
	l.numRegions = 0
	l.arenaUsed = 0
}

// appendTag reserves the next tag slot.
func (l *InformationList) appendTag(tagType TagType) (*Tag, *kernel.Error) {
	if l.numTags == MaxTags {
		return nil, ErrCapacityExceeded
	}

	tag := &l.tags[l.numTags]
	tag.tagType = tagType
	l.numTags++

	return tag, nil
}

// copyBytes copies p into the payload arena and returns the copy.
func (l *InformationList) copyBytes(p []byte) ([]byte, *kernel.Error) {
	if len(p) == 0 {
		return nil, nil
	}

	if len(p) > PayloadArenaSize-l.arenaUsed {
		return nil, ErrCapacityExceeded
	}

	start, end := l.arenaUsed, l.arenaUsed+len(p)
	copy(l.arena[start:end], p)
	l.arenaUsed = end

	return l.arena[start:end:end], nil
}

// copyString copies p into the payload arena and returns a string that
// references the copy. Converting p with string(p) would require an
// allocation.
func (l *InformationList) copyString(p []byte) (string, *kernel.Error) {
	buf, err := l.copyBytes(p)
	if err != nil || len(buf) == 0 {
		return "", err
	}

	return unsafe.String(&buf[0], len(buf)), nil
}

// allocRegions reserves count memory map entries.
func (l *InformationList) allocRegions(count int) ([]MemoryMapEntry, *kernel.Error) {
	if count > MaxMemoryRegions-l.numRegions {
		return nil, ErrCapacityExceeded
	}

	start, end := l.numRegions, l.numRegions+count
	l.numRegions = end

	return l.regions[start:end:end], nil
}
