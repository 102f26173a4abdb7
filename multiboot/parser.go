package multiboot

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"mb2os/kernel"
)

// Minimum payload sizes (excluding the tag header) for the tag types with a
// fixed layout.
const (
	moduleMinSize           = 8 + 1
	basicMemoryInfoSize     = 8
	bootDeviceSize          = 12
	memoryMapHeaderSize     = 8
	memoryMapEntryMinSize   = 24
	framebufferInfoMinSize  = 22
	framebufferColorInfoOff = 24
	framebufferRGBInfoSize  = 6
	framebufferPaletteHdr   = 2
	elfSectionsHeaderSize   = 12
	acpiOldRSDPMinSize      = 20
	acpiNewRSDPMinSize      = 36
	loadBaseAddrSize        = 4
)

// Parse validates the magic value passed by the bootloader and decodes the
// boot information structure located at infoPtr into list.
//
// maxSize is the number of bytes starting at infoPtr that the caller
// considers safe to read. A boot information structure whose declared size
// exceeds maxSize is rejected with ErrTruncatedHeader.
//
// The magic value is checked before infoPtr is dereferenced. On failure, list
// is left empty and one of the Err* values of this package is returned.
func Parse(magic uint32, infoPtr uintptr, maxSize uint32, list *InformationList) *kernel.Error {
	list.reset()

	if magic != BootloaderMagic {
		return ErrInvalidMagic
	}

	if infoPtr == 0 || infoPtr&(tagAlignment-1) != 0 {
		return ErrInvalidAddress
	}

	if maxSize < infoHeaderSize {
		return ErrTruncatedHeader
	}

	header := unsafe.Slice((*byte)(unsafe.Pointer(infoPtr)), infoHeaderSize)
	totalSize := binary.LittleEndian.Uint32(header)
	if totalSize < infoHeaderSize || totalSize > maxSize {
		return ErrTruncatedHeader
	}

	return list.decode(unsafe.Slice((*byte)(unsafe.Pointer(infoPtr)), totalSize))
}

// ParseBytes behaves like Parse but reads the boot information structure from
// blob. Bytes past the declared total size are ignored.
func ParseBytes(magic uint32, blob []byte, list *InformationList) *kernel.Error {
	list.reset()

	if magic != BootloaderMagic {
		return ErrInvalidMagic
	}

	if len(blob) < infoHeaderSize {
		return ErrTruncatedHeader
	}

	totalSize := binary.LittleEndian.Uint32(blob)
	if totalSize < infoHeaderSize || uint64(totalSize) > uint64(len(blob)) {
		return ErrTruncatedHeader
	}

	return list.decode(blob[:totalSize])
}

// decode walks the tags in blob and appends them to the list. A failure
// discards every tag decoded so far.
func (l *InformationList) decode(blob []byte) *kernel.Error {
	if err := l.walkTags(blob); err != nil {
		l.reset()
		return err
	}

	return nil
}

func (l *InformationList) walkTags(blob []byte) *kernel.Error {
	var (
		totalSize = uint64(len(blob))
		offset    = uint64(infoHeaderSize)
	)

	for {
		remaining := totalSize - offset
		if remaining == 0 {
			return ErrMissingTerminator
		}

		if remaining < tagHeaderSize {
			return ErrMalformedTag
		}

		tagType := TagType(binary.LittleEndian.Uint32(blob[offset:]))
		tagSize := binary.LittleEndian.Uint32(blob[offset+4:])
		if tagSize < tagHeaderSize || uint64(tagSize) > remaining {
			return ErrMalformedTag
		}

		if tagType == TagEnd {
			if tagSize != tagHeaderSize {
				return ErrMalformedTag
			}
			return nil
		}

		if err := l.decodeTag(tagType, blob[offset+tagHeaderSize:offset+uint64(tagSize)]); err != nil {
			return err
		}

		// Tags start at 8-byte aligned offsets
		advance := alignTag(tagSize)
		if advance > remaining {
			return ErrMalformedTag
		}
		offset += advance
	}
}

// decodeTag appends a tag of the given type and populates it from payload.
func (l *InformationList) decodeTag(tagType TagType, payload []byte) *kernel.Error {
	tag, err := l.appendTag(tagType)
	if err != nil {
		return err
	}

	switch tagType {
	case TagCommandLine, TagBootLoaderName:
		tag.text, err = l.decodeString(payload)
	case TagModule:
		err = l.decodeModule(tag, payload)
	case TagBasicMemoryInfo:
		if len(payload) < basicMemoryInfoSize {
			return ErrMalformedTag
		}
		tag.memLower = binary.LittleEndian.Uint32(payload[0:])
		tag.memUpper = binary.LittleEndian.Uint32(payload[4:])
	case TagBIOSBootDevice:
		if len(payload) < bootDeviceSize {
			return ErrMalformedTag
		}
		tag.bootDevice = BootDevice{
			BIOSDevice:   binary.LittleEndian.Uint32(payload[0:]),
			Partition:    binary.LittleEndian.Uint32(payload[4:]),
			SubPartition: binary.LittleEndian.Uint32(payload[8:]),
		}
	case TagMemoryMap:
		err = l.decodeMemoryMap(tag, payload)
	case TagFramebufferInfo:
		err = l.decodeFramebuffer(tag, payload)
	case TagElfSections:
		err = l.decodeElfSections(tag, payload)
	case TagACPIOldRSDP, TagACPINewRSDP:
		minSize := acpiOldRSDPMinSize
		if tagType == TagACPINewRSDP {
			minSize = acpiNewRSDPMinSize
		}
		if len(payload) < minSize {
			return ErrMalformedTag
		}
		tag.raw, err = l.copyBytes(payload)
	case TagLoadBaseAddr:
		if len(payload) < loadBaseAddrSize {
			return ErrMalformedTag
		}
		tag.loadBaseAddr = binary.LittleEndian.Uint32(payload)
	default:
		tag.raw, err = l.copyBytes(payload)
	}

	return err
}

// decodeString copies the NULL-terminated string at the start of payload.
// A payload without a NULL terminator is rejected instead of being truncated.
func (l *InformationList) decodeString(payload []byte) (string, *kernel.Error) {
	end := bytes.IndexByte(payload, 0)
	if end < 0 {
		return "", ErrMalformedTag
	}

	return l.copyString(payload[:end])
}

func (l *InformationList) decodeModule(tag *Tag, payload []byte) *kernel.Error {
	if len(payload) < moduleMinSize {
		return ErrMalformedTag
	}

	var err *kernel.Error
	tag.modStart = binary.LittleEndian.Uint32(payload[0:])
	tag.modEnd = binary.LittleEndian.Uint32(payload[4:])
	tag.text, err = l.decodeString(payload[8:])
	return err
}

func (l *InformationList) decodeMemoryMap(tag *Tag, payload []byte) *kernel.Error {
	if len(payload) < memoryMapHeaderSize {
		return ErrMalformedTag
	}

	entrySize := binary.LittleEndian.Uint32(payload[0:])
	tag.entryVersion = binary.LittleEndian.Uint32(payload[4:])

	entries := payload[memoryMapHeaderSize:]
	if entrySize < memoryMapEntryMinSize || uint64(len(entries))%uint64(entrySize) != 0 {
		return ErrMalformedTag
	}

	regions, err := l.allocRegions(len(entries) / int(entrySize))
	if err != nil {
		return err
	}

	for i := range regions {
		entry := entries[uint64(i)*uint64(entrySize):]
		regions[i] = MemoryMapEntry{
			PhysAddress: binary.LittleEndian.Uint64(entry[0:]),
			Length:      binary.LittleEndian.Uint64(entry[8:]),
			Type:        MemoryEntryType(binary.LittleEndian.Uint32(entry[16:])),
		}
	}

	tag.regions = regions
	return nil
}

func (l *InformationList) decodeFramebuffer(tag *Tag, payload []byte) *kernel.Error {
	if len(payload) < framebufferInfoMinSize {
		return ErrMalformedTag
	}

	fb := FramebufferInfo{
		PhysAddr: binary.LittleEndian.Uint64(payload[0:]),
		Pitch:    binary.LittleEndian.Uint32(payload[8:]),
		Width:    binary.LittleEndian.Uint32(payload[12:]),
		Height:   binary.LittleEndian.Uint32(payload[16:]),
		Bpp:      payload[20],
		Type:     FramebufferType(payload[21]),
	}

	// The color info block follows a 16-bit reserved field and its layout
	// depends on the framebuffer type.
	colorInfo := payload[min(len(payload), framebufferColorInfoOff):]

	switch fb.Type {
	case FramebufferTypeRGB:
		if len(colorInfo) < framebufferRGBInfoSize {
			return ErrMalformedTag
		}
		fb.colorInfo = FramebufferRGBColorInfo{
			RedPosition:   colorInfo[0],
			RedMaskSize:   colorInfo[1],
			GreenPosition: colorInfo[2],
			GreenMaskSize: colorInfo[3],
			BluePosition:  colorInfo[4],
			BlueMaskSize:  colorInfo[5],
		}
	case FramebufferTypeIndexed:
		if len(colorInfo) < framebufferPaletteHdr {
			return ErrMalformedTag
		}
		fb.NumColors = binary.LittleEndian.Uint16(colorInfo)

		paletteSize := int(fb.NumColors) * 3
		if len(colorInfo)-framebufferPaletteHdr < paletteSize {
			return ErrMalformedTag
		}

		var err *kernel.Error
		if tag.raw, err = l.copyBytes(colorInfo[framebufferPaletteHdr : framebufferPaletteHdr+paletteSize]); err != nil {
			return err
		}
	}

	tag.framebuffer = fb
	return nil
}

func (l *InformationList) decodeElfSections(tag *Tag, payload []byte) *kernel.Error {
	if len(payload) < elfSectionsHeaderSize {
		return ErrMalformedTag
	}

	sections := ElfSections{
		Num:              binary.LittleEndian.Uint32(payload[0:]),
		EntrySize:        binary.LittleEndian.Uint32(payload[4:]),
		StringTableIndex: binary.LittleEndian.Uint32(payload[8:]),
	}

	if sections.EntrySize != elfSection32Size && sections.EntrySize != elfSection64Size {
		return ErrMalformedTag
	}

	headersSize := uint64(sections.Num) * uint64(sections.EntrySize)
	if headersSize > uint64(len(payload)-elfSectionsHeaderSize) {
		return ErrMalformedTag
	}

	if sections.Num != 0 && sections.StringTableIndex >= sections.Num {
		return ErrMalformedTag
	}

	raw, err := l.copyBytes(payload)
	if err != nil {
		return err
	}

	sections.headers = raw[elfSectionsHeaderSize : elfSectionsHeaderSize+headersSize]
	tag.raw = raw
	tag.elfSections = sections
	return nil
}
