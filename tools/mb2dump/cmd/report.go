package cmd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/docker/go-units"
	"github.com/sanity-io/litter"
	"gopkg.in/yaml.v3"

	"mb2os/multiboot"
)

// Report is a serializable view of a parsed boot information list.
type Report struct {
	Source string      `yaml:"source" json:"source"`
	Tags   []TagReport `yaml:"tags" json:"tags"`
}

// TagReport describes a single tag. Only the field that matches the tag
// type is set.
type TagReport struct {
	Type uint32 `yaml:"type" json:"type"`
	Name string `yaml:"name" json:"name"`

	Text         *string            `yaml:"text,omitempty" json:"text,omitempty"`
	Module       *ModuleReport      `yaml:"module,omitempty" json:"module,omitempty"`
	BasicMemory  *BasicMemoryReport `yaml:"basic_memory,omitempty" json:"basic_memory,omitempty"`
	BootDevice   *BootDeviceReport  `yaml:"boot_device,omitempty" json:"boot_device,omitempty"`
	MemoryMap    *MemoryMapReport   `yaml:"memory_map,omitempty" json:"memory_map,omitempty"`
	Framebuffer  *FramebufferReport `yaml:"framebuffer,omitempty" json:"framebuffer,omitempty"`
	ElfSections  *ElfSectionsReport `yaml:"elf_sections,omitempty" json:"elf_sections,omitempty"`
	LoadBaseAddr *uint32            `yaml:"load_base_addr,omitempty" json:"load_base_addr,omitempty"`
	Payload      string             `yaml:"payload,omitempty" json:"payload,omitempty"`
}

type ModuleReport struct {
	Start   uint32 `yaml:"start" json:"start"`
	End     uint32 `yaml:"end" json:"end"`
	CmdLine string `yaml:"cmdline" json:"cmdline"`
}

type BasicMemoryReport struct {
	LowerKb uint32 `yaml:"lower_kb" json:"lower_kb"`
	UpperKb uint32 `yaml:"upper_kb" json:"upper_kb"`
}

type BootDeviceReport struct {
	BIOSDevice   uint32 `yaml:"bios_device" json:"bios_device"`
	Partition    uint32 `yaml:"partition" json:"partition"`
	SubPartition uint32 `yaml:"sub_partition" json:"sub_partition"`
}

type MemoryMapReport struct {
	EntryVersion uint32         `yaml:"entry_version" json:"entry_version"`
	Regions      []RegionReport `yaml:"regions" json:"regions"`
}

type RegionReport struct {
	Base     uint64 `yaml:"base" json:"base"`
	Length   uint64 `yaml:"length" json:"length"`
	Type     uint32 `yaml:"type" json:"type"`
	TypeName string `yaml:"type_name" json:"type_name"`
}

type FramebufferReport struct {
	Addr    uint64        `yaml:"addr" json:"addr"`
	Pitch   uint32        `yaml:"pitch" json:"pitch"`
	Width   uint32        `yaml:"width" json:"width"`
	Height  uint32        `yaml:"height" json:"height"`
	Bpp     uint8         `yaml:"bpp" json:"bpp"`
	Type    string        `yaml:"fb_type" json:"fb_type"`
	RGB     *RGBReport    `yaml:"rgb,omitempty" json:"rgb,omitempty"`
	Palette []ColorReport `yaml:"palette,omitempty" json:"palette,omitempty"`
}

type RGBReport struct {
	RedPosition   uint8 `yaml:"red_position" json:"red_position"`
	RedMaskSize   uint8 `yaml:"red_mask_size" json:"red_mask_size"`
	GreenPosition uint8 `yaml:"green_position" json:"green_position"`
	GreenMaskSize uint8 `yaml:"green_mask_size" json:"green_mask_size"`
	BluePosition  uint8 `yaml:"blue_position" json:"blue_position"`
	BlueMaskSize  uint8 `yaml:"blue_mask_size" json:"blue_mask_size"`
}

type ColorReport struct {
	Red   uint8 `yaml:"r" json:"r"`
	Green uint8 `yaml:"g" json:"g"`
	Blue  uint8 `yaml:"b" json:"b"`
}

type ElfSectionsReport struct {
	EntrySize        uint32             `yaml:"entry_size" json:"entry_size"`
	StringTableIndex uint32             `yaml:"shndx" json:"shndx"`
	Sections         []ElfSectionReport `yaml:"sections" json:"sections"`
}

type ElfSectionReport struct {
	NameIndex uint32 `yaml:"name_index" json:"name_index"`
	Type      uint32 `yaml:"type" json:"type"`
	Flags     uint64 `yaml:"flags" json:"flags"`
	Address   uint64 `yaml:"address" json:"address"`
	Size      uint64 `yaml:"size" json:"size"`
}

var framebufferTypeNames = map[multiboot.FramebufferType]string{
	multiboot.FramebufferTypeIndexed: "indexed",
	multiboot.FramebufferTypeRGB:     "rgb",
	multiboot.FramebufferTypeEGA:     "ega",
}

// NewReport builds a Report for a parsed list.
func NewReport(source string, list *multiboot.InformationList) *Report {
	report := &Report{Source: source, Tags: make([]TagReport, 0, list.Len())}
	list.Visit(func(tag *multiboot.Tag) bool {
		report.Tags = append(report.Tags, newTagReport(tag))
		return true
	})
	return report
}

func newTagReport(tag *multiboot.Tag) TagReport {
	tr := TagReport{Type: uint32(tag.Type()), Name: tag.Type().String()}

	switch tag.Type() {
	case multiboot.TagCommandLine, multiboot.TagBootLoaderName:
		text := tag.Text()
		tr.Text = &text
	case multiboot.TagModule:
		mod := tag.Module()
		tr.Module = &ModuleReport{Start: mod.Start, End: mod.End, CmdLine: mod.CmdLine}
	case multiboot.TagBasicMemoryInfo:
		lower, upper := tag.BasicMemory()
		tr.BasicMemory = &BasicMemoryReport{LowerKb: lower, UpperKb: upper}
	case multiboot.TagBIOSBootDevice:
		dev := tag.BootDevice()
		tr.BootDevice = &BootDeviceReport{BIOSDevice: dev.BIOSDevice, Partition: dev.Partition, SubPartition: dev.SubPartition}
	case multiboot.TagMemoryMap:
		mm := &MemoryMapReport{EntryVersion: tag.EntryVersion(), Regions: make([]RegionReport, 0, tag.NumRegions())}
		tag.VisitRegions(func(region multiboot.MemoryMapEntry) bool {
			mm.Regions = append(mm.Regions, RegionReport{
				Base:     region.PhysAddress,
				Length:   region.Length,
				Type:     uint32(region.Type),
				TypeName: region.Type.String(),
			})
			return true
		})
		tr.MemoryMap = mm
	case multiboot.TagFramebufferInfo:
		tr.Framebuffer = newFramebufferReport(tag)
	case multiboot.TagElfSections:
		sections := tag.ElfSections()
		es := &ElfSectionsReport{EntrySize: sections.EntrySize, StringTableIndex: sections.StringTableIndex}
		sections.Visit(func(_ int, sec multiboot.ElfSection) bool {
			es.Sections = append(es.Sections, ElfSectionReport{
				NameIndex: sec.NameIndex,
				Type:      sec.Type,
				Flags:     uint64(sec.Flags),
				Address:   sec.Address,
				Size:      sec.Size,
			})
			return true
		})
		tr.ElfSections = es
	case multiboot.TagLoadBaseAddr:
		addr := tag.LoadBaseAddr()
		tr.LoadBaseAddr = &addr
	default:
		tr.Payload = hex.EncodeToString(tag.Raw())
	}

	return tr
}

func newFramebufferReport(tag *multiboot.Tag) *FramebufferReport {
	fb := tag.Framebuffer()
	fr := &FramebufferReport{
		Addr:   fb.PhysAddr,
		Pitch:  fb.Pitch,
		Width:  fb.Width,
		Height: fb.Height,
		Bpp:    fb.Bpp,
		Type:   framebufferTypeNames[fb.Type],
	}

	if rgb := fb.RGBColorInfo(); rgb != nil {
		fr.RGB = &RGBReport{
			RedPosition:   rgb.RedPosition,
			RedMaskSize:   rgb.RedMaskSize,
			GreenPosition: rgb.GreenPosition,
			GreenMaskSize: rgb.GreenMaskSize,
			BluePosition:  rgb.BluePosition,
			BlueMaskSize:  rgb.BlueMaskSize,
		}
	}

	for i := 0; i < int(fb.NumColors); i++ {
		color, _ := tag.PaletteColor(i)
		fr.Palette = append(fr.Palette, ColorReport{Red: color.Red, Green: color.Green, Blue: color.Blue})
	}

	return fr
}

// writeReports renders reports to w using the requested format.
func writeReports(w io.Writer, format string, reports []*Report) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		for _, report := range reports {
			if err := enc.Encode(report); err != nil {
				return err
			}
		}
		return enc.Close()
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		for _, report := range reports {
			if err := enc.Encode(report); err != nil {
				return err
			}
		}
		return nil
	case formatLitter:
		for _, report := range reports {
			if _, err := fmt.Fprintln(w, litter.Sdump(report)); err != nil {
				return err
			}
		}
		return nil
	default:
		for _, report := range reports {
			if err := writeText(w, report); err != nil {
				return err
			}
		}
		return nil
	}
}

// writeText renders a report in a human readable form. Memory sizes are
// reported in binary units.
func writeText(w io.Writer, report *Report) error {
	p := &errWriter{w: w}
	p.printf("==> %s <==\n", report.Source)
	for i, tag := range report.Tags {
		p.printf("[%2d] %s (type %d)\n", i, tag.Name, tag.Type)

		switch {
		case tag.Text != nil:
			p.printf("     %q\n", *tag.Text)
		case tag.Module != nil:
			p.printf("     [0x%08x - 0x%08x] %s, %q\n", tag.Module.Start, tag.Module.End,
				moduleSize(tag.Module), tag.Module.CmdLine)
		case tag.BasicMemory != nil:
			p.printf("     lower: %s, upper: %s\n",
				units.BytesSize(float64(tag.BasicMemory.LowerKb)*units.KiB),
				units.BytesSize(float64(tag.BasicMemory.UpperKb)*units.KiB))
		case tag.BootDevice != nil:
			p.printf("     bios device: 0x%x, partition: 0x%x, sub-partition: 0x%x\n",
				tag.BootDevice.BIOSDevice, tag.BootDevice.Partition, tag.BootDevice.SubPartition)
		case tag.MemoryMap != nil:
			for _, region := range tag.MemoryMap.Regions {
				p.printf("     [0x%010x - 0x%010x] %10s %s\n", region.Base, region.Base+region.Length,
					units.BytesSize(float64(region.Length)), region.TypeName)
			}
		case tag.Framebuffer != nil:
			fb := tag.Framebuffer
			p.printf("     %s at 0x%x, %dx%d, pitch: %d, bpp: %d\n", fb.Type, fb.Addr, fb.Width, fb.Height, fb.Pitch, fb.Bpp)
			if len(fb.Palette) != 0 {
				p.printf("     palette: %d colors\n", len(fb.Palette))
			}
		case tag.ElfSections != nil:
			p.printf("     %d sections, entry size: %d, shndx: %d\n",
				len(tag.ElfSections.Sections), tag.ElfSections.EntrySize, tag.ElfSections.StringTableIndex)
			for j, sec := range tag.ElfSections.Sections {
				if sec.Flags&uint64(multiboot.ElfSectionAllocated) == 0 {
					continue
				}
				p.printf("     %3d: [0x%08x - 0x%08x] %s\n", j, sec.Address, sec.Address+sec.Size, units.BytesSize(float64(sec.Size)))
			}
		case tag.LoadBaseAddr != nil:
			p.printf("     0x%x\n", *tag.LoadBaseAddr)
		default:
			p.printf("     %d bytes: %s\n", len(tag.Payload)/2, tag.Payload)
		}
	}
	return p.err
}

// moduleSize formats the size of a module. The bounds come straight from the
// blob, so an end address below the start is reported instead of wrapping.
func moduleSize(mod *ModuleReport) string {
	if mod.End < mod.Start {
		return "invalid bounds"
	}
	return units.BytesSize(float64(mod.End - mod.Start))
}

// errWriter remembers the first write error so that a sequence of writes
// can be checked once.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
