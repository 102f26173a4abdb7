package allocator

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"mb2os/kernel/kfmt"
	"mb2os/kernel/mem/pmm"
	"mb2os/multiboot"
	"mb2os/multiboot/builder"
)

// memoryMapBlob builds boot information that only contains the memory map
// reported by qemu:
// [     0 -   9fc00] available
// [ 9fc00 -   a0000] reserved
// [ f0000 -  100000] reserved
// [100000 - 7fe0000] available
// [7fe0000 - 8000000] reserved
// [fffc0000 - 100000000] reserved
func memoryMapBlob() *builder.Builder {
	return builder.New().MemoryMap(0,
		multiboot.MemoryMapEntry{PhysAddress: 0, Length: 0x9fc00, Type: multiboot.MemAvailable},
		multiboot.MemoryMapEntry{PhysAddress: 0x9fc00, Length: 0x400, Type: multiboot.MemReserved},
		multiboot.MemoryMapEntry{PhysAddress: 0xf0000, Length: 0x10000, Type: multiboot.MemReserved},
		multiboot.MemoryMapEntry{PhysAddress: 0x100000, Length: 0x7ee0000, Type: multiboot.MemAvailable},
		multiboot.MemoryMapEntry{PhysAddress: 0x7fe0000, Length: 0x20000, Type: multiboot.MemReserved},
		multiboot.MemoryMapEntry{PhysAddress: 0xfffc0000, Length: 0x40000, Type: multiboot.MemReserved},
	)
}

func TestBootMemoryAllocator(t *testing.T) {
	var info multiboot.InformationList
	if err := multiboot.ParseBytes(multiboot.BootloaderMagic, memoryMapBlob().Bytes(), &info); err != nil {
		t.Fatal(err)
	}

	specs := []struct {
		kernelStart, kernelEnd uintptr
		expAllocCount          uint64
	}{
		{
			// the kernel is loaded in a reserved memory region
			0xa0000,
			0xa0000,
			// region 1 extents get rounded to [0, 9f000] and provides 159 frames [0 to 158]
			// region 4 uses the original extents [100000 - 7fe0000] and provides 32480 frames [256-32735]
			159 + 32480,
		},
		{
			// the kernel is loaded at the beginning of region 1 taking 2.5 pages
			0x0,
			0x2800,
			// frames 0, 1 and 2 (round up kernel end) are used by the kernel
			159 - 3 + 32480,
		},
		{
			// the kernel is loaded at the end of region 1 taking 2.5 pages
			0x9c800,
			0x9f000,
			// frames 156, 157 and 158 (round down kernel start) are used by the kernel
			159 - 3 + 32480,
		},
		{
			// the kernel (after rounding) uses the entire region 1
			0x123,
			0x9fc00,
			32480,
		},
		{
			// the kernel is loaded at region 4 start + 2K taking 1.5 pages
			0x100800,
			0x102000,
			// frames 256 (kernel start rounded down) and 257 are used by the kernel
			159 + 32480 - 2,
		},
	}

	alloc := bootMemAllocator{info: &info}
	for specIndex, spec := range specs {
		alloc.allocCount = 0
		alloc.lastAllocFrame = 0
		alloc.init(spec.kernelStart, spec.kernelEnd)

		for {
			frame, err := alloc.AllocFrame()
			if err != nil {
				if err == errBootAllocOutOfMemory {
					break
				}
				t.Errorf("[spec %d] [frame %d] unexpected allocator error: %v", specIndex, alloc.allocCount, err)
				break
			}

			if frame != alloc.lastAllocFrame {
				t.Errorf("[spec %d] [frame %d] expected allocated frame to be %d; got %d", specIndex, alloc.allocCount, alloc.lastAllocFrame, frame)
			}

			if frame >= alloc.kernelStartFrame && frame <= alloc.kernelEndFrame {
				t.Errorf("[spec %d] [frame %d] allocated frame %d overlaps the kernel image", specIndex, alloc.allocCount, frame)
			}

			if !frame.Valid() {
				t.Errorf("[spec %d] [frame %d] expected Valid() to return true", specIndex, alloc.allocCount)
			}
		}

		if alloc.allocCount != spec.expAllocCount {
			t.Errorf("[spec %d] expected allocator to allocate %d frames; allocated %d", specIndex, spec.expAllocCount, alloc.allocCount)
		}
	}
}

func TestBootMemoryAllocatorWithoutInfo(t *testing.T) {
	var alloc bootMemAllocator
	if frame, err := alloc.AllocFrame(); err != errBootAllocOutOfMemory || frame.Valid() {
		t.Fatalf("expected (InvalidFrame, errBootAllocOutOfMemory); got (%d, %v)", frame, err)
	}
}

func TestInit(t *testing.T) {
	defer func() {
		kfmt.SetOutputSink(nil)
		earlyAllocator = bootMemAllocator{}
	}()

	blob, err := os.ReadFile("../../../../multiboot/testdata/grub2-qemu.bin")
	if err != nil {
		t.Fatal(err)
	}

	var info multiboot.InformationList
	if err := multiboot.ParseBytes(multiboot.BootloaderMagic, blob, &info); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)

	if err := Init(&info); err != nil {
		t.Fatal(err)
	}

	if exp, got := uintptr(0x100000), earlyAllocator.kernelStartAddr; got != exp {
		t.Errorf("expected kernel start address to be 0x%x; got 0x%x", exp, got)
	}

	if exp, got := uintptr(0x1985e0), earlyAllocator.kernelEndAddr; got != exp {
		t.Errorf("expected kernel end address to be 0x%x; got 0x%x", exp, got)
	}

	for _, exp := range []string{
		"booted by: GRUB 2.02~beta2-9ubuntu1.6\n",
		"[0x0000000000 - 0x000009fc00], size:     654336, type: available\n",
		"[0x00fffc0000 - 0x0100000000], size:     262144, type: reserved\n",
		"available memory: 130559Kb\n",
		"kernel loaded at 0x100000 - 0x1985e0\n",
		"reserved pages: 153\n",
	} {
		if !strings.Contains(buf.String(), exp) {
			t.Errorf("expected output to contain %q; got:\n%s", exp, buf.String())
		}
	}

	// frames 256-408 hold the kernel image
	var allocCount uint64
	for {
		frame, err := AllocFrame()
		if err != nil {
			break
		}
		if frame >= pmm.Frame(256) && frame <= pmm.Frame(408) {
			t.Fatalf("allocated frame %d overlaps the kernel image", frame)
		}
		allocCount++
	}

	if exp := uint64(159 + 32480 - 153); allocCount != exp {
		t.Errorf("expected allocator to allocate %d frames; allocated %d", exp, allocCount)
	}
}

func TestInitErrors(t *testing.T) {
	specs := []struct {
		desc string
		blob []byte
	}{
		{"no ELF sections tag", memoryMapBlob().Bytes()},
		{
			"no allocated sections",
			memoryMapBlob().ElfSections(0,
				multiboot.ElfSection{Type: 3, Address: 0, Size: 0x100},
				multiboot.ElfSection{Type: 1, Flags: multiboot.ElfSectionAllocated, Address: 0x100000},
			).Bytes(),
		},
	}

	for _, spec := range specs {
		t.Run(spec.desc, func(t *testing.T) {
			var info multiboot.InformationList
			if err := multiboot.ParseBytes(multiboot.BootloaderMagic, spec.blob, &info); err != nil {
				t.Fatal(err)
			}

			if err := Init(&info); err != errMissingKernelImage {
				t.Fatalf("expected errMissingKernelImage; got %v", err)
			}
		})
	}
}
