// Package multiboot decodes the Multiboot2 boot information structure that a
// compliant bootloader passes to the kernel.
//
// The decoder runs before the Go allocator is initialized. It never allocates:
// decoded records are stored in a fixed-capacity InformationList supplied by
// the caller, and every string or raw payload is copied into the list so that
// the bootloader-owned memory can be reclaimed once parsing completes.
package multiboot

// BootloaderMagic is the value that a Multiboot2 compliant bootloader stores
// in EAX before jumping to the kernel entrypoint.
const BootloaderMagic = 0x36D76289

const (
	// infoHeaderSize is the size of the fixed boot info header
	// (total_size, reserved).
	infoHeaderSize = 8

	// tagHeaderSize is the size of the header that precedes each tag
	// (type, size).
	tagHeaderSize = 8

	// tagAlignment is the alignment of each tag start offset and of the
	// boot info structure itself.
	tagAlignment = 8
)

// TagType identifies the contents of a boot information tag.
type TagType uint32

// Tag types defined by revision 1.6 of the Multiboot2 specification.
const (
	TagEnd TagType = iota
	TagCommandLine
	TagBootLoaderName
	TagModule
	TagBasicMemoryInfo
	TagBIOSBootDevice
	TagMemoryMap
	TagVBEInfo
	TagFramebufferInfo
	TagElfSections
	TagAPMTable
	TagEFI32SystemTable
	TagEFI64SystemTable
	TagSMBIOSTables
	TagACPIOldRSDP
	TagACPINewRSDP
	TagNetworkInfo
	TagEFIMemoryMap
	TagEFIBootServicesNotTerminated
	TagEFI32ImageHandle
	TagEFI64ImageHandle
	TagLoadBaseAddr
)

var tagTypeNames = [...]string{
	TagEnd:                          "end",
	TagCommandLine:                  "cmdline",
	TagBootLoaderName:               "boot loader name",
	TagModule:                       "module",
	TagBasicMemoryInfo:              "basic memory info",
	TagBIOSBootDevice:               "BIOS boot device",
	TagMemoryMap:                    "memory map",
	TagVBEInfo:                      "VBE info",
	TagFramebufferInfo:              "framebuffer info",
	TagElfSections:                  "ELF sections",
	TagAPMTable:                     "APM table",
	TagEFI32SystemTable:             "EFI32 system table",
	TagEFI64SystemTable:             "EFI64 system table",
	TagSMBIOSTables:                 "SMBIOS tables",
	TagACPIOldRSDP:                  "ACPI old RSDP",
	TagACPINewRSDP:                  "ACPI new RSDP",
	TagNetworkInfo:                  "network info",
	TagEFIMemoryMap:                 "EFI memory map",
	TagEFIBootServicesNotTerminated: "EFI boot services not terminated",
	TagEFI32ImageHandle:             "EFI32 image handle",
	TagEFI64ImageHandle:             "EFI64 image handle",
	TagLoadBaseAddr:                 "image load base address",
}

// String implements fmt.Stringer for TagType.
func (t TagType) String() string {
	if int(t) < len(tagTypeNames) {
		return tagTypeNames[t]
	}

	return "unknown"
}

// Known returns true if the decoder interprets the payload of tags with this
// type. Tags with other types are kept as opaque payload copies.
func (t TagType) Known() bool {
	switch t {
	case TagCommandLine, TagBootLoaderName, TagModule, TagBasicMemoryInfo,
		TagBIOSBootDevice, TagMemoryMap, TagFramebufferInfo, TagElfSections,
		TagACPIOldRSDP, TagACPINewRSDP, TagLoadBaseAddr:
		return true
	default:
		return false
	}
}

// alignTag rounds size up to the next tag boundary. The calculation is done
// in 64 bits so that a bogus size close to 4G cannot wrap around.
func alignTag(size uint32) uint64 {
	return (uint64(size) + tagAlignment - 1) &^ (tagAlignment - 1)
}
