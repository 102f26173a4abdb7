package cmd

import (
	"os"
	"path/filepath"
	"strings"

	g "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"mb2os/multiboot"
)

var _ = g.Describe("Build", g.Label("build", "cmd"), func() {
	var tmpDir string

	g.BeforeEach(func() {
		resetRootCmd()

		var err error
		tmpDir, err = os.MkdirTemp("", "mb2dump")
		Expect(err).ToNot(HaveOccurred())
		g.DeferCleanup(os.RemoveAll, tmpDir)
	})

	g.It("Builds a blob that parses back to the described tags", func() {
		out := filepath.Join(tmpDir, "bootinfo.bin")
		_, _, err := executeCommandC(rootCmd, "build", "testdata/qemu.yaml", "-o", out)
		Expect(err).ToNot(HaveOccurred())

		blob, err := os.ReadFile(out)
		Expect(err).ToNot(HaveOccurred())

		var list multiboot.InformationList
		Expect(multiboot.ParseBytes(multiboot.BootloaderMagic, blob, &list)).To(BeNil())
		Expect(list.Len()).To(Equal(11))

		value, found := list.LookupCmdLine("root")
		Expect(found).To(BeTrue())
		Expect(value).To(Equal("/dev/sda1"))

		mod, _ := list.First(multiboot.TagModule)
		Expect(mod.Module()).To(Equal(multiboot.Module{Start: 0x200000, End: 0x280000, CmdLine: "initrd"}))

		fbTag, _ := list.First(multiboot.TagFramebufferInfo)
		fb := fbTag.Framebuffer()
		Expect(fb.Type).To(Equal(multiboot.FramebufferTypeRGB))
		Expect(fb.RGBColorInfo().RedPosition).To(Equal(uint8(16)))

		elfTag, _ := list.First(multiboot.TagElfSections)
		sec, ok := elfTag.ElfSections().Section(1)
		Expect(ok).To(BeTrue())
		Expect(sec.Flags & multiboot.ElfSectionAllocated).ToNot(BeZero())
		Expect(sec.Address).To(Equal(uint64(0x100000)))

		raw, _ := list.First(multiboot.TagAPMTable)
		Expect(raw.Raw()).To(Equal([]byte{0x0a, 0x0b, 0x0c}))
	})

	g.It("Round trips through dump", func() {
		out := filepath.Join(tmpDir, "bootinfo.bin")
		_, _, err := executeCommandC(rootCmd, "build", "testdata/qemu.yaml", "--output", out)
		Expect(err).ToNot(HaveOccurred())

		resetRootCmd()
		_, output, err := executeCommandC(rootCmd, "dump", out)
		Expect(err).ToNot(HaveOccurred())
		Expect(output).To(ContainSubstring(`"console=ttyS0 root=/dev/sda1"`))
		Expect(output).To(ContainSubstring("rgb at 0xfd000000, 1024x768, pitch: 4096, bpp: 32"))
		Expect(output).To(ContainSubstring("1: [0x00100000 - 0x00108000] 32KiB"))
	})

	g.It("Builds unterminated blobs", func() {
		desc := filepath.Join(tmpDir, "unterminated.yaml")
		Expect(os.WriteFile(desc, []byte("unterminated: true\ntags:\n  - type: cmdline\n    text: quiet\n"), 0o644)).To(Succeed())

		out := filepath.Join(tmpDir, "bootinfo.bin")
		_, _, err := executeCommandC(rootCmd, "build", desc, "-o", out)
		Expect(err).ToNot(HaveOccurred())

		blob, err := os.ReadFile(out)
		Expect(err).ToNot(HaveOccurred())

		var list multiboot.InformationList
		Expect(multiboot.ParseBytes(multiboot.BootloaderMagic, blob, &list)).To(Equal(multiboot.ErrMissingTerminator))
	})

	g.It("Reads section headers from an ELF image", func() {
		// The test binary doubles as a kernel image on ELF platforms
		if _, _, err := elfSectionHeaders(os.Args[0]); err != nil {
			g.Skip("test binary is not an ELF image: " + err.Error())
		}

		desc := filepath.Join(tmpDir, "elf.yaml")
		Expect(os.WriteFile(desc, []byte("tags:\n  - type: elf_sections\n    kernel: "+os.Args[0]+"\n"), 0o644)).To(Succeed())

		spec, err := readSpecFile(desc)
		Expect(err).ToNot(HaveOccurred())
		blob, err := spec.Build()
		Expect(err).ToNot(HaveOccurred())

		var list multiboot.InformationList
		Expect(multiboot.ParseBytes(multiboot.BootloaderMagic, blob, &list)).To(BeNil())

		elfTag, found := list.First(multiboot.TagElfSections)
		Expect(found).To(BeTrue())
		sections := elfTag.ElfSections()
		Expect(sections.Num).To(BeNumerically(">", 1))
		Expect(sections.StringTableIndex).To(BeNumerically("<", sections.Num))

		var allocated int
		sections.Visit(func(_ int, sec multiboot.ElfSection) bool {
			if sec.Flags&multiboot.ElfSectionAllocated != 0 {
				allocated++
			}
			return true
		})
		Expect(allocated).To(BeNumerically(">", 0))
	})

	g.DescribeTable("Rejects invalid descriptions",
		func(desc, errMsg string) {
			descFile := filepath.Join(tmpDir, "invalid.yaml")
			Expect(os.WriteFile(descFile, []byte(desc), 0o644)).To(Succeed())

			_, _, err := executeCommandC(rootCmd, "build", descFile, "-o", filepath.Join(tmpDir, "out.bin"))
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring(errMsg))
		},
		g.Entry("unknown tag type", "tags:\n  - type: bogus\n", `unsupported tag type "bogus"`),
		g.Entry("unknown field", "tags:\n  - type: cmdline\n    txt: quiet\n", "field txt not found"),
		g.Entry("bad payload", "tags:\n  - type: raw\n    tag: 10\n    payload: zz\n", "decoding payload"),
		g.Entry("missing framebuffer", "tags:\n  - type: framebuffer\n", "missing framebuffer description"),
		g.Entry("bad framebuffer type", "tags:\n  - type: framebuffer\n    framebuffer: {fb_type: vga}\n", `unsupported framebuffer type "vga"`),
		g.Entry("missing kernel image", "tags:\n  - type: elf_sections\n    kernel: /nonexistent/kernel.elf\n", "/nonexistent/kernel.elf"),
	)

	g.It("Fails when the description does not exist", func() {
		_, _, err := executeCommandC(rootCmd, "build", filepath.Join(tmpDir, "missing.yaml"))
		Expect(err).To(HaveOccurred())
		Expect(strings.Contains(err.Error(), "missing.yaml")).To(BeTrue())
	})
})
