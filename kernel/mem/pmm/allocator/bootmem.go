// Package allocator provides the physical frame allocator that the kernel
// uses while it bootstraps.
package allocator

import (
	"mb2os/kernel"
	"mb2os/kernel/kfmt"
	"mb2os/kernel/mem"
	"mb2os/kernel/mem/pmm"
	"mb2os/multiboot"
)

var (
	// earlyAllocator is a boot mem allocator instance used for page
	// allocations before switching to a more advanced allocator.
	earlyAllocator bootMemAllocator

	errBootAllocOutOfMemory = &kernel.Error{Module: "boot_mem_alloc", Message: "out of memory"}
	errMissingKernelImage   = &kernel.Error{Module: "boot_mem_alloc", Message: "boot information does not describe the kernel image"}
)

// bootMemAllocator implements a rudimentary physical memory allocator which is
// used to bootstrap the kernel.
//
// The allocator uses the memory map from the parsed boot information to
// detect free memory blocks and return the next available free frame.
// Allocations are tracked via an internal counter that contains the last
// allocated frame.
//
// Allocated frames cannot be freed. Once the kernel is properly initialized,
// the allocated blocks will be handed over to a more advanced memory
// allocator that does support freeing.
type bootMemAllocator struct {
	info *multiboot.InformationList

	// allocCount tracks the total number of allocated frames.
	allocCount uint64

	// lastAllocFrame tracks the last allocated frame number.
	lastAllocFrame pmm.Frame

	// Keep track of kernel location so we exclude this region.
	kernelStartAddr, kernelEndAddr   uintptr
	kernelStartFrame, kernelEndFrame pmm.Frame
}

// Init sets up the boot memory allocator using the parsed boot information.
// The kernel image bounds are derived from the allocated sections of the
// ELF sections tag; frames overlapping the image are never handed out.
func Init(info *multiboot.InformationList) *kernel.Error {
	kernelStart, kernelEnd, err := kernelImageBounds(info)
	if err != nil {
		return err
	}

	earlyAllocator = bootMemAllocator{info: info}
	earlyAllocator.init(kernelStart, kernelEnd)
	earlyAllocator.printMemoryMap()
	return nil
}

// AllocFrame reserves the next free frame using the boot memory allocator.
func AllocFrame() (pmm.Frame, *kernel.Error) {
	return earlyAllocator.AllocFrame()
}

// kernelImageBounds returns the physical address range spanned by the
// allocated sections of the loaded kernel image.
func kernelImageBounds(info *multiboot.InformationList) (uintptr, uintptr, *kernel.Error) {
	tag, ok := info.First(multiboot.TagElfSections)
	if !ok {
		return 0, 0, errMissingKernelImage
	}

	var start, end uint64
	tag.ElfSections().Visit(func(_ int, section multiboot.ElfSection) bool {
		if section.Flags&multiboot.ElfSectionAllocated == 0 || section.Size == 0 {
			return true
		}

		if end == 0 || section.Address < start {
			start = section.Address
		}
		if section.Address+section.Size > end {
			end = section.Address + section.Size
		}
		return true
	})

	if end == 0 {
		return 0, 0, errMissingKernelImage
	}

	return uintptr(start), uintptr(end), nil
}

// init sets up the boot memory allocator internal state.
func (alloc *bootMemAllocator) init(kernelStart, kernelEnd uintptr) {
	// round down kernel start to the nearest page and round up kernel end
	// to the nearest page.
	pageSizeMinus1 := uintptr(mem.PageSize - 1)
	alloc.kernelStartAddr = kernelStart
	alloc.kernelEndAddr = kernelEnd
	alloc.kernelStartFrame = pmm.FrameFromAddress(kernelStart & ^pageSizeMinus1)
	alloc.kernelEndFrame = pmm.FrameFromAddress((kernelEnd+pageSizeMinus1) & ^pageSizeMinus1) - 1
}

// AllocFrame scans the available memory regions reported by the bootloader
// and reserves the next available free frame.
//
// AllocFrame returns an error if no more memory can be allocated.
func (alloc *bootMemAllocator) AllocFrame() (pmm.Frame, *kernel.Error) {
	if alloc.info == nil {
		return pmm.InvalidFrame, errBootAllocOutOfMemory
	}

	var err = errBootAllocOutOfMemory

	alloc.info.VisitMemRegions(func(region multiboot.MemoryMapEntry) bool {
		// Ignore reserved regions and regions smaller than a single page
		if region.Type != multiboot.MemAvailable || region.Length < uint64(mem.PageSize) {
			return true
		}

		// Reported addresses may not be page-aligned; round up to get
		// the start frame and round down to get the end frame
		pageSizeMinus1 := uint64(mem.PageSize - 1)
		regionStartFrame := pmm.Frame(((region.PhysAddress + pageSizeMinus1) & ^pageSizeMinus1) >> mem.PageShift)
		regionEndFrame := pmm.Frame(((region.PhysAddress+region.Length) & ^pageSizeMinus1)>>mem.PageShift) - 1

		// Skip over already allocated regions
		if alloc.lastAllocFrame >= regionEndFrame {
			return true
		}

		switch {
		case (alloc.lastAllocFrame <= regionStartFrame && alloc.kernelStartFrame == regionStartFrame) ||
			(alloc.lastAllocFrame <= regionEndFrame && alloc.lastAllocFrame+1 == alloc.kernelStartFrame):
			// The kernel image starts at this region or right after the
			// last allocated frame; continue past its end.
			alloc.lastAllocFrame = alloc.kernelEndFrame + 1
		case alloc.lastAllocFrame < regionStartFrame || alloc.allocCount == 0:
			// Moving into this region from a previous one, or this is the
			// first allocation and the region begins at frame 0.
			alloc.lastAllocFrame = regionStartFrame
		default:
			alloc.lastAllocFrame++
		}

		// The above adjustment might push lastAllocFrame outside of the
		// region end (e.g kernel ends at last page in the region)
		if alloc.lastAllocFrame > regionEndFrame {
			return true
		}

		err = nil
		return false
	})

	if err != nil {
		return pmm.InvalidFrame, err
	}

	alloc.allocCount++
	return alloc.lastAllocFrame, nil
}

// printMemoryMap prints the bootloader name, the system memory map and the
// location of the kernel image.
func (alloc *bootMemAllocator) printMemoryMap() {
	if tag, ok := alloc.info.First(multiboot.TagBootLoaderName); ok {
		kfmt.Printf("[boot_mem_alloc] booted by: %s\n", tag.Text())
	}

	kfmt.Printf("[boot_mem_alloc] system memory map:\n")
	var totalFree mem.Size
	alloc.info.VisitMemRegions(func(region multiboot.MemoryMapEntry) bool {
		kfmt.Printf("\t[0x%10x - 0x%10x], size: %10d, type: %s\n", region.PhysAddress, region.PhysAddress+region.Length, region.Length, region.Type.String())

		if region.Type == multiboot.MemAvailable {
			totalFree += mem.Size(region.Length)
		}
		return true
	})
	kfmt.Printf("[boot_mem_alloc] available memory: %dKb\n", uint64(totalFree/mem.Kb))
	kfmt.Printf("[boot_mem_alloc] kernel loaded at 0x%x - 0x%x\n", alloc.kernelStartAddr, alloc.kernelEndAddr)
	kfmt.Printf("[boot_mem_alloc] size: %d bytes, reserved pages: %d\n",
		uint64(alloc.kernelEndAddr-alloc.kernelStartAddr),
		uint64(alloc.kernelEndFrame-alloc.kernelStartFrame+1),
	)
}
