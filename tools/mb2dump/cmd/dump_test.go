package cmd

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	g "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gopkg.in/yaml.v3"

	"mb2os/multiboot"
	"mb2os/multiboot/builder"
)

var _ = g.Describe("Dump", g.Label("dump", "cmd"), func() {
	var tmpDir string

	g.BeforeEach(func() {
		resetRootCmd()

		var err error
		tmpDir, err = os.MkdirTemp("", "mb2dump")
		Expect(err).ToNot(HaveOccurred())
		g.DeferCleanup(os.RemoveAll, tmpDir)
	})

	g.It("Prints the grub fixture as text", func() {
		_, output, err := executeCommandC(rootCmd, "dump", grubFixture)
		Expect(err).ToNot(HaveOccurred())
		Expect(output).To(ContainSubstring("==> " + grubFixture + " <=="))
		Expect(output).To(ContainSubstring("[ 1] boot loader name (type 2)"))
		Expect(output).To(ContainSubstring(`"GRUB 2.02~beta2-9ubuntu1.6"`))
		Expect(output).To(ContainSubstring("[ 2] APM table (type 10)"))
		Expect(output).To(ContainSubstring("20 bytes: "))
		Expect(output).To(ContainSubstring("[0x0000000000 - 0x000009fc00]     639KiB available"))
		Expect(output).To(ContainSubstring("24 sections, entry size: 40, shndx: 21"))
		Expect(output).To(ContainSubstring("lower: 639KiB, upper: 126.9MiB"))
		Expect(output).To(ContainSubstring("bios device: 0xe0, partition: 0xffffffff, sub-partition: 0xffffffff"))
		Expect(output).To(ContainSubstring("ega at 0xb8000, 80x25, pitch: 160, bpp: 16"))
		Expect(output).To(ContainSubstring("ACPI old RSDP (type 14)"))
	})

	g.It("Reports module sizes without wrapping inverted bounds", func() {
		blobFile := filepath.Join(tmpDir, "modules.bin")
		blob := builder.New().
			Module(multiboot.Module{Start: 0x200000, End: 0x201000, CmdLine: "initrd"}).
			Module(multiboot.Module{Start: 0x300000, End: 0x2ff000, CmdLine: "bogus"}).
			Bytes()
		Expect(os.WriteFile(blobFile, blob, 0644)).To(Succeed())

		_, output, err := executeCommandC(rootCmd, "dump", blobFile)
		Expect(err).ToNot(HaveOccurred())
		Expect(output).To(ContainSubstring(`[0x00200000 - 0x00201000] 4KiB, "initrd"`))
		Expect(output).To(ContainSubstring(`[0x00300000 - 0x002ff000] invalid bounds, "bogus"`))
		Expect(output).ToNot(ContainSubstring("GiB"))
	})

	g.It("Prints YAML output", g.Label("flags"), func() {
		_, output, err := executeCommandC(rootCmd, "dump", "--format", "yaml", grubFixture)
		Expect(err).ToNot(HaveOccurred())

		var report Report
		Expect(yaml.Unmarshal([]byte(output), &report)).To(Succeed())
		Expect(report.Source).To(Equal(grubFixture))
		Expect(report.Tags).To(HaveLen(9))
		Expect(report.Tags[1].Text).ToNot(BeNil())
		Expect(*report.Tags[1].Text).To(Equal("GRUB 2.02~beta2-9ubuntu1.6"))
		Expect(report.Tags[3].MemoryMap.Regions).To(HaveLen(6))
		Expect(report.Tags[3].MemoryMap.Regions[3]).To(Equal(RegionReport{
			Base: 0x100000, Length: 0x7ee0000, Type: 1, TypeName: "available",
		}))
	})

	g.It("Prints JSON output", g.Label("flags"), func() {
		_, output, err := executeCommandC(rootCmd, "dump", "--format", "json", grubFixture)
		Expect(err).ToNot(HaveOccurred())

		var report Report
		Expect(json.Unmarshal([]byte(output), &report)).To(Succeed())
		Expect(report.Tags[7].Framebuffer).ToNot(BeNil())
		Expect(report.Tags[7].Framebuffer.Type).To(Equal("ega"))
		Expect(report.Tags[4].ElfSections.Sections).To(HaveLen(24))
		Expect(report.Tags[8].Payload).To(HavePrefix(hex.EncodeToString([]byte("RSD PTR "))))
	})

	g.It("Prints litter output", g.Label("flags"), func() {
		_, output, err := executeCommandC(rootCmd, "dump", "--format", "litter", grubFixture)
		Expect(err).ToNot(HaveOccurred())
		Expect(output).To(ContainSubstring(`Source: "` + grubFixture + `"`))
		Expect(output).To(ContainSubstring(`"GRUB 2.02~beta2-9ubuntu1.6"`))
	})

	g.It("Rejects unknown output formats", g.Label("flags"), func() {
		_, _, err := executeCommandC(rootCmd, "dump", "--format", "xml", grubFixture)
		Expect(err).To(HaveOccurred())
	})

	g.It("Reads hex encoded dumps", g.Label("flags"), func() {
		blob, err := os.ReadFile(grubFixture)
		Expect(err).ToNot(HaveOccurred())

		hexFile := filepath.Join(tmpDir, "bootinfo.hex")
		Expect(os.WriteFile(hexFile, []byte(hexDump(blob)), 0o644)).To(Succeed())

		_, output, err := executeCommandC(rootCmd, "dump", "--hex", hexFile)
		Expect(err).ToNot(HaveOccurred())
		Expect(output).To(ContainSubstring(`"GRUB 2.02~beta2-9ubuntu1.6"`))
	})

	g.It("Reads the magic value from the environment", func() {
		Expect(os.Setenv("MB2DUMP_MAGIC", "0x2BADB002")).To(Succeed())
		g.DeferCleanup(os.Unsetenv, "MB2DUMP_MAGIC")

		_, _, err := executeCommandC(rootCmd, "dump", grubFixture)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, multiboot.ErrInvalidMagic)).To(BeTrue())
	})

	g.It("Reads settings from a config file", func() {
		cfgFile := filepath.Join(tmpDir, "mb2dump.yaml")
		Expect(os.WriteFile(cfgFile, []byte("format: json\n"), 0o644)).To(Succeed())

		_, output, err := executeCommandC(rootCmd, "--config", cfgFile, "dump", grubFixture)
		Expect(err).ToNot(HaveOccurred())
		Expect(output).To(HavePrefix("{"))
	})

	g.It("Logs parsing progress in debug mode", g.Label("flags"), func() {
		var logs bytes.Buffer
		rootCmd.SetErr(&logs)

		_, _, err := executeCommandC(rootCmd, "--debug", "dump", grubFixture)
		Expect(err).ToNot(HaveOccurred())
		Expect(logs.String()).To(ContainSubstring("read 1352 bytes from " + grubFixture))
		Expect(logs.String()).To(ContainSubstring("parsed 9 tags from " + grubFixture))
	})

	g.It("Aggregates failures from several files", func() {
		blob, err := os.ReadFile(grubFixture)
		Expect(err).ToNot(HaveOccurred())

		truncated := filepath.Join(tmpDir, "truncated.bin")
		Expect(os.WriteFile(truncated, blob[:100], 0o644)).To(Succeed())
		missing := filepath.Join(tmpDir, "missing.bin")

		_, _, err = executeCommandC(rootCmd, "dump", grubFixture, truncated, missing)
		Expect(err).To(HaveOccurred())

		var merr *multierror.Error
		Expect(errors.As(err, &merr)).To(BeTrue())
		Expect(merr.Errors).To(HaveLen(2))
		Expect(errors.Is(merr.Errors[0], multiboot.ErrTruncatedHeader)).To(BeTrue())
		Expect(merr.Errors[1].Error()).To(ContainSubstring("reading " + missing))
	})

	g.It("Requires at least one file", func() {
		_, _, err := executeCommandC(rootCmd, "dump")
		Expect(err).To(HaveOccurred())
	})
})

// hexDump encodes blob as lines of 16 hex encoded bytes.
func hexDump(blob []byte) string {
	var buf bytes.Buffer
	for len(blob) > 0 {
		n := 16
		if len(blob) < n {
			n = len(blob)
		}
		buf.WriteString(hex.EncodeToString(blob[:n]))
		buf.WriteByte('\n')
		blob = blob[n:]
	}
	return buf.String()
}
