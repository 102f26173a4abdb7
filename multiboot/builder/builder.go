// Package builder encodes Multiboot2 boot information structures. It is the
// host-side counterpart of the multiboot package and is used for generating
// test fixtures and emulator inputs; it allocates freely and must not be
// imported by kernel code.
package builder

import (
	"encoding/binary"

	"mb2os/multiboot"
)

const (
	headerSize       = 8
	tagAlignment     = 8
	memoryEntrySize  = 24
	elfSection64Size = 64
)

// Builder accumulates boot information tags in the order they are added.
type Builder struct {
	tags []byte
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{}
}

// Raw appends a tag with the given type and payload. The tag size is set to
// len(payload)+8 and the tag is padded to the next 8-byte boundary.
func (b *Builder) Raw(tagType multiboot.TagType, payload []byte) *Builder {
	hdr := make([]byte, 8)
	binary.LittleEndian.PutUint32(hdr[0:], uint32(tagType))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(payload)+8))

	b.tags = append(b.tags, hdr...)
	b.tags = append(b.tags, payload...)
	b.pad()
	return b
}

// CommandLine appends a command line tag.
func (b *Builder) CommandLine(cmdLine string) *Builder {
	return b.Raw(multiboot.TagCommandLine, cString(cmdLine))
}

// BootLoaderName appends a boot loader name tag.
func (b *Builder) BootLoaderName(name string) *Builder {
	return b.Raw(multiboot.TagBootLoaderName, cString(name))
}

// Module appends a boot module tag.
func (b *Builder) Module(mod multiboot.Module) *Builder {
	payload := make([]byte, 8)
	binary.LittleEndian.PutUint32(payload[0:], mod.Start)
	binary.LittleEndian.PutUint32(payload[4:], mod.End)
	return b.Raw(multiboot.TagModule, append(payload, cString(mod.CmdLine)...))
}

// BasicMemory appends a basic memory info tag. Sizes are in kilobytes.
func (b *Builder) BasicMemory(lower, upper uint32) *Builder {
	payload := make([]byte, 8)
	binary.LittleEndian.PutUint32(payload[0:], lower)
	binary.LittleEndian.PutUint32(payload[4:], upper)
	return b.Raw(multiboot.TagBasicMemoryInfo, payload)
}

// BootDevice appends a BIOS boot device tag.
func (b *Builder) BootDevice(dev multiboot.BootDevice) *Builder {
	payload := make([]byte, 12)
	binary.LittleEndian.PutUint32(payload[0:], dev.BIOSDevice)
	binary.LittleEndian.PutUint32(payload[4:], dev.Partition)
	binary.LittleEndian.PutUint32(payload[8:], dev.SubPartition)
	return b.Raw(multiboot.TagBIOSBootDevice, payload)
}

// MemoryMap appends a memory map tag using 24-byte entries.
func (b *Builder) MemoryMap(entryVersion uint32, regions ...multiboot.MemoryMapEntry) *Builder {
	payload := make([]byte, 8+len(regions)*memoryEntrySize)
	binary.LittleEndian.PutUint32(payload[0:], memoryEntrySize)
	binary.LittleEndian.PutUint32(payload[4:], entryVersion)

	for i, region := range regions {
		entry := payload[8+i*memoryEntrySize:]
		binary.LittleEndian.PutUint64(entry[0:], region.PhysAddress)
		binary.LittleEndian.PutUint64(entry[8:], region.Length)
		binary.LittleEndian.PutUint32(entry[16:], uint32(region.Type))
	}

	return b.Raw(multiboot.TagMemoryMap, payload)
}

// Framebuffer appends a framebuffer info tag. rgb is encoded for
// FramebufferTypeRGB framebuffers and palette for FramebufferTypeIndexed
// ones; the NumColors field of fb is ignored in favor of len(palette).
func (b *Builder) Framebuffer(fb multiboot.FramebufferInfo, rgb *multiboot.FramebufferRGBColorInfo, palette []multiboot.FramebufferColor) *Builder {
	payload := make([]byte, 24)
	binary.LittleEndian.PutUint64(payload[0:], fb.PhysAddr)
	binary.LittleEndian.PutUint32(payload[8:], fb.Pitch)
	binary.LittleEndian.PutUint32(payload[12:], fb.Width)
	binary.LittleEndian.PutUint32(payload[16:], fb.Height)
	payload[20] = fb.Bpp
	payload[21] = byte(fb.Type)

	switch fb.Type {
	case multiboot.FramebufferTypeRGB:
		var info multiboot.FramebufferRGBColorInfo
		if rgb != nil {
			info = *rgb
		}
		payload = append(payload,
			info.RedPosition, info.RedMaskSize,
			info.GreenPosition, info.GreenMaskSize,
			info.BluePosition, info.BlueMaskSize,
		)
	case multiboot.FramebufferTypeIndexed:
		numColors := make([]byte, 2)
		binary.LittleEndian.PutUint16(numColors, uint16(len(palette)))
		payload = append(payload, numColors...)
		for _, color := range palette {
			payload = append(payload, color.Red, color.Green, color.Blue)
		}
	}

	return b.Raw(multiboot.TagFramebufferInfo, payload)
}

// ElfSections appends an ELF sections tag with 64-bit section headers.
func (b *Builder) ElfSections(stringTableIndex uint32, sections ...multiboot.ElfSection) *Builder {
	payload := make([]byte, 12+len(sections)*elfSection64Size)
	binary.LittleEndian.PutUint32(payload[0:], uint32(len(sections)))
	binary.LittleEndian.PutUint32(payload[4:], elfSection64Size)
	binary.LittleEndian.PutUint32(payload[8:], stringTableIndex)

	for i, sec := range sections {
		hdr := payload[12+i*elfSection64Size:]
		binary.LittleEndian.PutUint32(hdr[0:], sec.NameIndex)
		binary.LittleEndian.PutUint32(hdr[4:], sec.Type)
		binary.LittleEndian.PutUint64(hdr[8:], uint64(sec.Flags))
		binary.LittleEndian.PutUint64(hdr[16:], sec.Address)
		binary.LittleEndian.PutUint64(hdr[32:], sec.Size)
	}

	return b.Raw(multiboot.TagElfSections, payload)
}

// ACPIRSDP appends a copy of an ACPI RSDP structure. newRSDP selects the
// ACPI 2.0+ tag type.
func (b *Builder) ACPIRSDP(newRSDP bool, rsdp []byte) *Builder {
	if newRSDP {
		return b.Raw(multiboot.TagACPINewRSDP, rsdp)
	}
	return b.Raw(multiboot.TagACPIOldRSDP, rsdp)
}

// LoadBaseAddr appends an image load base address tag.
func (b *Builder) LoadBaseAddr(addr uint32) *Builder {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, addr)
	return b.Raw(multiboot.TagLoadBaseAddr, payload)
}

// Bytes returns the encoded boot information structure including the end
// tag.
func (b *Builder) Bytes() []byte {
	end := make([]byte, 8)
	binary.LittleEndian.PutUint32(end[4:], 8)
	return b.encode(end)
}

// UnterminatedBytes returns the encoded boot information structure without an
// end tag.
func (b *Builder) UnterminatedBytes() []byte {
	return b.encode(nil)
}

func (b *Builder) encode(trailer []byte) []byte {
	out := make([]byte, headerSize, headerSize+len(b.tags)+len(trailer))
	out = append(out, b.tags...)
	out = append(out, trailer...)
	binary.LittleEndian.PutUint32(out[0:], uint32(len(out)))
	return out
}

func (b *Builder) pad() {
	for len(b.tags)%tagAlignment != 0 {
		b.tags = append(b.tags, 0)
	}
}

func cString(s string) []byte {
	return append([]byte(s), 0)
}
