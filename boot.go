package main

import "mb2os/kernel/kmain"

var (
	// The rt0 code stores the bootloader magic value and the address of
	// the boot information area here before calling main.
	multibootMagic   uint32
	multibootInfoPtr uintptr
)

// main is the only Go symbol that is visible (exported) from the rt0 initialization
// code. This function works as a trampoline for calling the actual kernel entrypoint
// (kmain.Kmain) and its intentionally defined to prevent the Go compiler from
// optimizing away the actual kernel code as its not aware of the presence of the
// rt0 code.
//
// Global variables are passed as arguments to Kmain to prevent the compiler
// from inlining the call and removing Kmain from the generated object file.
//
// main is not expected to return. If it does, the rt0 code will halt the CPU.
func main() {
	kmain.Kmain(multibootMagic, multibootInfoPtr)
}
