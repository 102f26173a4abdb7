package cmd

import (
	"bytes"
	"debug/elf"
	"encoding/hex"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"mb2os/multiboot"
	"mb2os/multiboot/builder"
)

// BlobSpec is the YAML description of a boot information blob.
type BlobSpec struct {
	// Unterminated omits the end tag. It is used to produce fixtures for
	// negative tests.
	Unterminated bool      `yaml:"unterminated"`
	Tags         []TagSpec `yaml:"tags"`
}

// TagSpec describes a single tag. Type selects which of the remaining fields
// are used.
type TagSpec struct {
	Type string `yaml:"type"`

	// cmdline, loader and module
	Text string `yaml:"text"`

	// module
	Start uint32 `yaml:"start"`
	End   uint32 `yaml:"end"`

	// basic_memory
	Lower uint32 `yaml:"lower"`
	Upper uint32 `yaml:"upper"`

	// boot_device
	BIOSDevice   uint32 `yaml:"bios_device"`
	Partition    uint32 `yaml:"partition"`
	SubPartition uint32 `yaml:"sub_partition"`

	// memory_map
	EntryVersion uint32       `yaml:"entry_version"`
	Regions      []RegionSpec `yaml:"regions"`

	// framebuffer
	Framebuffer *FramebufferSpec `yaml:"framebuffer"`

	// elf_sections: either the path of an ELF image or explicit headers
	Kernel           string        `yaml:"kernel"`
	StringTableIndex uint32        `yaml:"shndx"`
	Sections         []SectionSpec `yaml:"sections"`

	// load_base
	Addr uint32 `yaml:"addr"`

	// raw, acpi_old and acpi_new; payload is hex encoded
	Tag     uint32 `yaml:"tag"`
	Payload string `yaml:"payload"`
}

type RegionSpec struct {
	Base   uint64 `yaml:"base"`
	Length uint64 `yaml:"length"`
	Type   uint32 `yaml:"type"`
}

type FramebufferSpec struct {
	Addr    uint64      `yaml:"addr"`
	Pitch   uint32      `yaml:"pitch"`
	Width   uint32      `yaml:"width"`
	Height  uint32      `yaml:"height"`
	Bpp     uint8       `yaml:"bpp"`
	Type    string      `yaml:"fb_type"`
	RGB     *RGBReport  `yaml:"rgb"`
	Palette []ColorSpec `yaml:"palette"`
}

type ColorSpec struct {
	Red   uint8 `yaml:"r"`
	Green uint8 `yaml:"g"`
	Blue  uint8 `yaml:"b"`
}

type SectionSpec struct {
	NameIndex uint32 `yaml:"name_index"`
	Type      uint32 `yaml:"type"`
	Flags     uint64 `yaml:"flags"`
	Address   uint64 `yaml:"address"`
	Size      uint64 `yaml:"size"`
}

// ReadBlobSpec decodes a YAML blob description. Unknown fields are rejected.
func ReadBlobSpec(r io.Reader) (*BlobSpec, error) {
	spec := &BlobSpec{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(spec); err != nil {
		return nil, fmt.Errorf("decoding blob description: %w", err)
	}
	return spec, nil
}

// Build encodes the described blob.
func (s *BlobSpec) Build() ([]byte, error) {
	b := builder.New()
	for i, tag := range s.Tags {
		if err := tag.appendTo(b); err != nil {
			return nil, fmt.Errorf("tag %d (%s): %w", i, tag.Type, err)
		}
	}

	if s.Unterminated {
		return b.UnterminatedBytes(), nil
	}
	return b.Bytes(), nil
}

func (t *TagSpec) appendTo(b *builder.Builder) error {
	switch t.Type {
	case "cmdline":
		b.CommandLine(t.Text)
	case "loader":
		b.BootLoaderName(t.Text)
	case "module":
		b.Module(multiboot.Module{Start: t.Start, End: t.End, CmdLine: t.Text})
	case "basic_memory":
		b.BasicMemory(t.Lower, t.Upper)
	case "boot_device":
		b.BootDevice(multiboot.BootDevice{BIOSDevice: t.BIOSDevice, Partition: t.Partition, SubPartition: t.SubPartition})
	case "memory_map":
		regions := make([]multiboot.MemoryMapEntry, 0, len(t.Regions))
		for _, region := range t.Regions {
			regions = append(regions, multiboot.MemoryMapEntry{
				PhysAddress: region.Base,
				Length:      region.Length,
				Type:        multiboot.MemoryEntryType(region.Type),
			})
		}
		b.MemoryMap(t.EntryVersion, regions...)
	case "framebuffer":
		return t.appendFramebuffer(b)
	case "elf_sections":
		return t.appendElfSections(b)
	case "load_base":
		b.LoadBaseAddr(t.Addr)
	case "acpi_old", "acpi_new", "raw":
		payload, err := hex.DecodeString(t.Payload)
		if err != nil {
			return fmt.Errorf("decoding payload: %w", err)
		}

		switch t.Type {
		case "raw":
			b.Raw(multiboot.TagType(t.Tag), payload)
		default:
			b.ACPIRSDP(t.Type == "acpi_new", payload)
		}
	default:
		return fmt.Errorf("unsupported tag type %q", t.Type)
	}

	return nil
}

func (t *TagSpec) appendFramebuffer(b *builder.Builder) error {
	fs := t.Framebuffer
	if fs == nil {
		return fmt.Errorf("missing framebuffer description")
	}

	fb := multiboot.FramebufferInfo{
		PhysAddr: fs.Addr,
		Pitch:    fs.Pitch,
		Width:    fs.Width,
		Height:   fs.Height,
		Bpp:      fs.Bpp,
	}

	var rgb *multiboot.FramebufferRGBColorInfo
	switch fs.Type {
	case "indexed":
		fb.Type = multiboot.FramebufferTypeIndexed
	case "rgb":
		fb.Type = multiboot.FramebufferTypeRGB
		if fs.RGB != nil {
			rgb = &multiboot.FramebufferRGBColorInfo{
				RedPosition:   fs.RGB.RedPosition,
				RedMaskSize:   fs.RGB.RedMaskSize,
				GreenPosition: fs.RGB.GreenPosition,
				GreenMaskSize: fs.RGB.GreenMaskSize,
				BluePosition:  fs.RGB.BluePosition,
				BlueMaskSize:  fs.RGB.BlueMaskSize,
			}
		}
	case "ega":
		fb.Type = multiboot.FramebufferTypeEGA
	default:
		return fmt.Errorf("unsupported framebuffer type %q", fs.Type)
	}

	palette := make([]multiboot.FramebufferColor, 0, len(fs.Palette))
	for _, color := range fs.Palette {
		palette = append(palette, multiboot.FramebufferColor{Red: color.Red, Green: color.Green, Blue: color.Blue})
	}

	b.Framebuffer(fb, rgb, palette)
	return nil
}

func (t *TagSpec) appendElfSections(b *builder.Builder) error {
	if t.Kernel != "" {
		shndx, sections, err := elfSectionHeaders(t.Kernel)
		if err != nil {
			return err
		}
		b.ElfSections(shndx, sections...)
		return nil
	}

	sections := make([]multiboot.ElfSection, 0, len(t.Sections))
	for _, sec := range t.Sections {
		sections = append(sections, multiboot.ElfSection{
			NameIndex: sec.NameIndex,
			Type:      sec.Type,
			Flags:     multiboot.ElfSectionFlag(sec.Flags),
			Address:   sec.Address,
			Size:      sec.Size,
		})
	}
	b.ElfSections(t.StringTableIndex, sections...)
	return nil
}

// elfSectionHeaders reads the section headers of an ELF image the way a
// bootloader reports them for the loaded kernel.
func elfSectionHeaders(imgFile string) (uint32, []multiboot.ElfSection, error) {
	f, err := elf.Open(imgFile)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()

	var (
		shndx   = -1
		strData []byte
	)
	for i, sec := range f.Sections {
		if sec.Type == elf.SHT_STRTAB && sec.Name == ".shstrtab" {
			if strData, err = sec.Data(); err != nil {
				return 0, nil, fmt.Errorf("%s: reading section names: %w", imgFile, err)
			}
			shndx = i
			break
		}
	}
	if shndx < 0 {
		return 0, nil, fmt.Errorf("%s: missing .shstrtab section", imgFile)
	}

	sections := make([]multiboot.ElfSection, 0, len(f.Sections))
	for _, sec := range f.Sections {
		var nameIndex uint32
		if sec.Name != "" {
			if idx := bytes.Index(strData, append([]byte(sec.Name), 0)); idx >= 0 {
				nameIndex = uint32(idx)
			}
		}

		sections = append(sections, multiboot.ElfSection{
			NameIndex: nameIndex,
			Type:      uint32(sec.Type),
			Flags:     multiboot.ElfSectionFlag(sec.Flags),
			Address:   sec.Addr,
			Size:      sec.Size,
		})
	}

	return uint32(shndx), sections, nil
}
