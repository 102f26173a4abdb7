package builder

import "mb2os/multiboot"

// Encode converts a decoded InformationList back to its binary form. Parsing
// the output yields a list equal to the input.
func Encode(list *multiboot.InformationList) []byte {
	b := New()
	list.Visit(func(tag *multiboot.Tag) bool {
		b.appendTag(tag)
		return true
	})

	return b.Bytes()
}

func (b *Builder) appendTag(tag *multiboot.Tag) {
	switch tag.Type() {
	case multiboot.TagCommandLine:
		b.CommandLine(tag.Text())
	case multiboot.TagBootLoaderName:
		b.BootLoaderName(tag.Text())
	case multiboot.TagModule:
		b.Module(tag.Module())
	case multiboot.TagBasicMemoryInfo:
		b.BasicMemory(tag.BasicMemory())
	case multiboot.TagBIOSBootDevice:
		b.BootDevice(tag.BootDevice())
	case multiboot.TagMemoryMap:
		regions := make([]multiboot.MemoryMapEntry, 0, tag.NumRegions())
		tag.VisitRegions(func(region multiboot.MemoryMapEntry) bool {
			regions = append(regions, region)
			return true
		})
		b.MemoryMap(tag.EntryVersion(), regions...)
	case multiboot.TagFramebufferInfo:
		fb := tag.Framebuffer()
		palette := make([]multiboot.FramebufferColor, fb.NumColors)
		for i := range palette {
			palette[i], _ = tag.PaletteColor(i)
		}
		b.Framebuffer(fb, fb.RGBColorInfo(), palette)
	case multiboot.TagLoadBaseAddr:
		b.LoadBaseAddr(tag.LoadBaseAddr())
	default:
		// ELF sections, ACPI RSDP copies and unknown tags keep their
		// payload verbatim.
		b.Raw(tag.Type(), tag.Raw())
	}
}
