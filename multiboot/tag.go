package multiboot

import (
	"bytes"
	"encoding/binary"
)

// MemoryEntryType defines the type of a MemoryMapEntry.
type MemoryEntryType uint32

const (
	// MemAvailable indicates that the memory region is available for use.
	MemAvailable MemoryEntryType = iota + 1

	// MemReserved indicates that the memory region is not available for use.
	MemReserved

	// MemAcpiReclaimable indicates a memory region that holds ACPI info that
	// can be reused by the OS.
	MemAcpiReclaimable

	// MemNvs indicates memory that must be preserved when hibernating.
	MemNvs

	// MemBadRAM indicates defective memory.
	MemBadRAM

	// Any value >= memUnknown is reported as MemReserved by
	// InformationList.VisitMemRegions.
	memUnknown
)

// String implements fmt.Stringer for MemoryEntryType.
func (t MemoryEntryType) String() string {
	switch t {
	case MemAvailable:
		return "available"
	case MemReserved:
		return "reserved"
	case MemAcpiReclaimable:
		return "ACPI (reclaimable)"
	case MemNvs:
		return "NVS"
	case MemBadRAM:
		return "bad RAM"
	default:
		return "unknown"
	}
}

// Normalized maps types that the kernel does not understand to MemReserved.
func (t MemoryEntryType) Normalized() MemoryEntryType {
	if t == 0 || t >= memUnknown {
		return MemReserved
	}

	return t
}

// MemoryMapEntry describes a memory region entry, namely its physical address,
// its length and its type.
type MemoryMapEntry struct {
	// The physical address for this memory region.
	PhysAddress uint64

	// The length of the memory region.
	Length uint64

	// The type of this entry as reported by the bootloader.
	Type MemoryEntryType
}

// MemRegionVisitor defines a visitor function that gets invoked for each
// memory region provided by the boot loader. The visitor must return true
// to continue or false to abort the scan.
type MemRegionVisitor func(MemoryMapEntry) bool

// Module describes a boot module loaded by the bootloader.
type Module struct {
	// Physical start and end addresses of the module contents.
	Start, End uint32

	// The string associated with the module (usually its command line).
	CmdLine string
}

// BootDevice describes the BIOS disk and partition the kernel image was
// loaded from. Unused partition levels are set to 0xFFFFFFFF.
type BootDevice struct {
	BIOSDevice   uint32
	Partition    uint32
	SubPartition uint32
}

// FramebufferType defines the type of the initialized framebuffer.
type FramebufferType uint8

const (
	// FramebufferTypeIndexed specifies a 256-color palette.
	FramebufferTypeIndexed FramebufferType = iota

	// FramebufferTypeRGB specifies direct RGB mode.
	FramebufferTypeRGB

	// FramebufferTypeEGA specifies EGA text mode.
	FramebufferTypeEGA
)

// FramebufferInfo provides information about the initialized framebuffer.
type FramebufferInfo struct {
	// The framebuffer physical address.
	PhysAddr uint64

	// Row pitch in bytes.
	Pitch uint32

	// Width and height in pixels (or characters if Type = FramebufferTypeEGA)
	Width, Height uint32

	// Bits per pixel (non EGA modes only).
	Bpp uint8

	// Framebuffer type.
	Type FramebufferType

	// Number of palette entries (FramebufferTypeIndexed only).
	NumColors uint16

	colorInfo FramebufferRGBColorInfo
}

// RGBColorInfo returns the FramebufferRGBColorInfo for a RGB framebuffer.
func (i *FramebufferInfo) RGBColorInfo() *FramebufferRGBColorInfo {
	if i.Type != FramebufferTypeRGB {
		return nil
	}

	return &i.colorInfo
}

// FramebufferRGBColorInfo describes the order and width of each color component
// for a 15-, 16-, 24- or 32-bit framebuffer.
type FramebufferRGBColorInfo struct {
	// The position and width (in bits) of the red component.
	RedPosition uint8
	RedMaskSize uint8

	// The position and width (in bits) of the green component.
	GreenPosition uint8
	GreenMaskSize uint8

	// The position and width (in bits) of the blue component.
	BluePosition uint8
	BlueMaskSize uint8
}

// FramebufferColor is a single entry of an indexed framebuffer palette.
type FramebufferColor struct {
	Red, Green, Blue uint8
}

// ElfSectionFlag defines an OR-able flag associated with an ElfSection.
type ElfSectionFlag uint64

const (
	// ElfSectionWritable marks the section as writable.
	ElfSectionWritable ElfSectionFlag = 1 << iota

	// ElfSectionAllocated means that the section is allocated in memory
	// when the image is loaded (e.g .bss sections)
	ElfSectionAllocated

	// ElfSectionExecutable marks the section as executable.
	ElfSectionExecutable
)

const (
	elfSection32Size = 40
	elfSection64Size = 64
)

// ElfSection describes a section header of the loaded kernel image.
type ElfSection struct {
	// Offset of the section name in the string table section.
	NameIndex uint32
	Type      uint32
	Flags     ElfSectionFlag
	Address   uint64
	Size      uint64
}

// ElfSectionVisitor defines a visitor function that gets invoked by
// ElfSections.Visit for each section header. The visitor must return true to
// continue or false to abort the scan.
type ElfSectionVisitor func(index int, section ElfSection) bool

// ElfSections holds the section headers of the loaded kernel image. Section
// names are not part of the boot information; they live in the string table
// section whose index is StringTableIndex.
type ElfSections struct {
	Num              uint32
	EntrySize        uint32
	StringTableIndex uint32

	headers []byte
}

// Section decodes the section header at index. It returns false if index is
// out of range.
func (s ElfSections) Section(index int) (ElfSection, bool) {
	if index < 0 || uint32(index) >= s.Num {
		return ElfSection{}, false
	}

	hdr := s.headers[index*int(s.EntrySize):]
	sec := ElfSection{
		NameIndex: binary.LittleEndian.Uint32(hdr[0:]),
		Type:      binary.LittleEndian.Uint32(hdr[4:]),
	}

	if s.EntrySize == elfSection32Size {
		sec.Flags = ElfSectionFlag(binary.LittleEndian.Uint32(hdr[8:]))
		sec.Address = uint64(binary.LittleEndian.Uint32(hdr[12:]))
		sec.Size = uint64(binary.LittleEndian.Uint32(hdr[20:]))
	} else {
		sec.Flags = ElfSectionFlag(binary.LittleEndian.Uint64(hdr[8:]))
		sec.Address = binary.LittleEndian.Uint64(hdr[16:])
		sec.Size = binary.LittleEndian.Uint64(hdr[32:])
	}

	return sec, true
}

// Visit invokes visitor for each section header in order.
func (s ElfSections) Visit(visitor ElfSectionVisitor) {
	for index := 0; uint32(index) < s.Num; index++ {
		sec, _ := s.Section(index)
		if !visitor(index, sec) {
			return
		}
	}
}

// Tag is a single decoded boot information record. A Tag is populated once by
// the parser and is read-only afterwards. Accessors for a kind other than the
// tag's Type return zero values.
type Tag struct {
	tagType TagType

	// raw holds a copy of the payload for tags whose payload is kept
	// verbatim (unknown types, ELF sections, ACPI RSDP copies) and the
	// palette entries of indexed framebuffers.
	raw []byte

	// text holds the command line, boot loader name or module string.
	text string

	regions      []MemoryMapEntry
	entryVersion uint32

	memLower, memUpper uint32
	modStart, modEnd   uint32
	bootDevice         BootDevice
	framebuffer        FramebufferInfo
	elfSections        ElfSections
	loadBaseAddr       uint32
}

// Type returns the type of this tag.
func (t *Tag) Type() TagType {
	return t.tagType
}

// Text returns the string payload of a TagCommandLine, TagBootLoaderName or
// TagModule tag without its NULL terminator.
func (t *Tag) Text() string {
	return t.text
}

// Module returns the contents of a TagModule tag.
func (t *Tag) Module() Module {
	if t.tagType != TagModule {
		return Module{}
	}

	return Module{Start: t.modStart, End: t.modEnd, CmdLine: t.text}
}

// BasicMemory returns the amount of lower and upper memory in kilobytes as
// reported by a TagBasicMemoryInfo tag.
func (t *Tag) BasicMemory() (lower, upper uint32) {
	return t.memLower, t.memUpper
}

// BootDevice returns the contents of a TagBIOSBootDevice tag.
func (t *Tag) BootDevice() BootDevice {
	return t.bootDevice
}

// EntryVersion returns the entry version of a TagMemoryMap tag.
func (t *Tag) EntryVersion() uint32 {
	return t.entryVersion
}

// NumRegions returns the number of entries of a TagMemoryMap tag.
func (t *Tag) NumRegions() int {
	return len(t.regions)
}

// Region returns a copy of the memory map entry at index. It returns false if
// index is out of range.
func (t *Tag) Region(index int) (MemoryMapEntry, bool) {
	if index < 0 || index >= len(t.regions) {
		return MemoryMapEntry{}, false
	}

	return t.regions[index], true
}

// VisitRegions invokes visitor for each entry of a TagMemoryMap tag. Entry
// types are passed through exactly as reported by the bootloader.
func (t *Tag) VisitRegions(visitor MemRegionVisitor) {
	for _, region := range t.regions {
		if !visitor(region) {
			return
		}
	}
}

// Framebuffer returns the contents of a TagFramebufferInfo tag.
func (t *Tag) Framebuffer() FramebufferInfo {
	return t.framebuffer
}

// PaletteColor returns the palette entry at index for an indexed
// framebuffer. It returns false if index is out of range.
func (t *Tag) PaletteColor(index int) (FramebufferColor, bool) {
	if t.tagType != TagFramebufferInfo || index < 0 || index >= int(t.framebuffer.NumColors) {
		return FramebufferColor{}, false
	}

	entry := t.raw[index*3:]
	return FramebufferColor{Red: entry[0], Green: entry[1], Blue: entry[2]}, true
}

// ElfSections returns the section headers of a TagElfSections tag.
func (t *Tag) ElfSections() ElfSections {
	return t.elfSections
}

// LoadBaseAddr returns the physical load address of the kernel image as
// reported by a TagLoadBaseAddr tag.
func (t *Tag) LoadBaseAddr() uint32 {
	return t.loadBaseAddr
}

// Raw returns the verbatim payload of tags that are not decoded into
// structured fields (unknown types, ELF sections and ACPI RSDP tags). The
// returned slice references the storage of the InformationList that owns the
// tag and must not be modified.
func (t *Tag) Raw() []byte {
	if t.tagType == TagFramebufferInfo {
		return nil
	}

	return t.raw
}

// Equal returns true if t and other hold the same decoded contents.
func (t *Tag) Equal(other *Tag) bool {
	if t.tagType != other.tagType ||
		t.text != other.text ||
		!bytes.Equal(t.raw, other.raw) ||
		len(t.regions) != len(other.regions) {
		return false
	}

	for i := range t.regions {
		if t.regions[i] != other.regions[i] {
			return false
		}
	}

	return t.entryVersion == other.entryVersion &&
		t.memLower == other.memLower && t.memUpper == other.memUpper &&
		t.modStart == other.modStart && t.modEnd == other.modEnd &&
		t.bootDevice == other.bootDevice &&
		t.framebuffer == other.framebuffer &&
		t.elfSections.Num == other.elfSections.Num &&
		t.elfSections.EntrySize == other.elfSections.EntrySize &&
		t.elfSections.StringTableIndex == other.elfSections.StringTableIndex &&
		t.loadBaseAddr == other.loadBaseAddr
}
