package kmain

import (
	"mb2os/kernel"
	"mb2os/kernel/driver/tty"
	"mb2os/kernel/driver/video/console"
	"mb2os/kernel/kfmt"
	"mb2os/kernel/mem"
	"mb2os/kernel/mem/pmm/allocator"
	"mb2os/multiboot"
)

// maxBootInfoSize bounds the number of bytes that the parser may read from
// the boot information area.
const maxBootInfoSize = uint32(64 * mem.Kb)

var (
	// bootInfo holds the parsed boot information. It lives in the data
	// segment as nothing can be allocated before the memory allocators are
	// initialized.
	bootInfo multiboot.InformationList

	earlyConsole console.Ega
	earlyTerm    tty.Vt

	// The following functions are mocked by tests.
	kernelInitFn = allocator.Init
	panicFn      = kfmt.Panic

	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
)

// Kmain is the only Go symbol that is visible (exported) from the rt0 initialization
// code. This function is invoked by the rt0 assembly code after setting up the GDT
// and setting up a a minimal g0 struct that allows Go code using the 4K stack
// allocated by the assembly code.
//
// The rt0 code passes the magic value that the bootloader left in EAX and the
// address of the boot information area it left in EBX.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(magic uint32, multibootInfoPtr uintptr) {
	if err := multiboot.Parse(magic, multibootInfoPtr, maxBootInfoSize, &bootInfo); err != nil {
		panicFn(err)
		return
	}

	initConsole(&bootInfo)
	kfmt.Printf("[kmain] boot information: %d tags\n", bootInfo.Len())
	if cmdLine, ok := bootInfo.First(multiboot.TagCommandLine); ok {
		kfmt.Printf("[kmain] command line: %s\n", cmdLine.Text())
	}

	if err := kernelInitFn(&bootInfo); err != nil {
		panicFn(err)
		return
	}

	// Use kfmt.Panic instead of panic to prevent the compiler from
	// treating kfmt.Panic as dead-code and eliminating it.
	panicFn(errKmainReturned)
}

// initConsole attaches a terminal to the EGA text framebuffer reported by
// the bootloader and redirects kfmt output to it. Output stays in the kfmt
// ring buffer if no usable text framebuffer is available.
func initConsole(info *multiboot.InformationList) {
	tag, ok := info.First(multiboot.TagFramebufferInfo)
	if !ok {
		return
	}

	if err := earlyConsole.Init(tag.Framebuffer()); err != nil {
		kfmt.Printf("[kmain] text console unavailable: %s\n", err.Message)
		return
	}

	earlyTerm.AttachTo(&earlyConsole)
	earlyTerm.Clear()
	kfmt.SetOutputSink(&earlyTerm)
}
