package console

import (
	"unsafe"

	"mb2os/kernel"
	"mb2os/multiboot"
)

const (
	egaBitsPerCell = 16
	egaCellSize    = egaBitsPerCell / 8
	blankChar      = byte(' ')
)

// Ega is a text console backed by an EGA text framebuffer. Each character
// cell is a 16-bit value holding the character in its low byte and the cell
// attribute in its high byte. Rows are pitch bytes apart, which may be more
// than the width of the visible row.
type Ega struct {
	width  uint16
	height uint16

	// stride is the distance between the first cells of two consecutive
	// rows, in cells.
	stride int

	fb []uint16
}

// Init attaches the console to the framebuffer described by fb. The
// framebuffer is used in place; Init fails without touching it if fb does
// not describe a usable EGA text framebuffer.
func (cons *Ega) Init(fb multiboot.FramebufferInfo) *kernel.Error {
	if fb.Type != multiboot.FramebufferTypeEGA || fb.Bpp != egaBitsPerCell {
		return ErrNotTextMode
	}

	if fb.Width == 0 || fb.Height == 0 || fb.PhysAddr == 0 ||
		fb.Pitch%egaCellSize != 0 || uint64(fb.Pitch) < uint64(fb.Width)*egaCellSize ||
		uint64(fb.Pitch)*uint64(fb.Height) > uint64(textWindowSize) {
		return ErrInvalidGeometry
	}

	// The checks above bound width and height by textWindowSize so the
	// conversions below cannot truncate.
	cons.width = uint16(fb.Width)
	cons.height = uint16(fb.Height)
	cons.stride = int(fb.Pitch / egaCellSize)
	cons.fb = unsafe.Slice((*uint16)(unsafe.Pointer(uintptr(fb.PhysAddr))), cons.stride*int(cons.height))
	return nil
}

// Dimensions returns the console width and height in characters.
func (cons *Ega) Dimensions() (uint16, uint16) {
	return cons.width, cons.height
}

// Clear blanks the cells of the rectangle at (x, y) that lie on screen.
func (cons *Ega) Clear(x, y, width, height uint16) {
	if x >= cons.width || y >= cons.height {
		return
	}

	cols := min(int(width), int(cons.width-x))
	rows := min(int(height), int(cons.height-y))
	blank := cell(blankChar, MakeAttr(Black, Black))

	for row := int(y); row < int(y)+rows; row++ {
		start := row*cons.stride + int(x)
		line := cons.fb[start : start+cols]
		for i := range line {
			line[i] = blank
		}
	}
}

// Scroll moves the console rows by lines in the given direction. The rows
// that are scrolled in keep their previous contents.
func (cons *Ega) Scroll(dir ScrollDir, lines uint16) {
	if lines == 0 || lines > cons.height {
		return
	}

	offset := int(lines) * cons.stride
	switch dir {
	case Up:
		copy(cons.fb, cons.fb[offset:])
	case Down:
		copy(cons.fb[offset:], cons.fb)
	}
}

// Write stores ch with the given attribute at (x, y). Writes outside the
// console are ignored.
func (cons *Ega) Write(ch byte, attr Attr, x, y uint16) {
	if x >= cons.width || y >= cons.height {
		return
	}

	cons.fb[int(y)*cons.stride+int(x)] = cell(ch, attr)
}

func cell(ch byte, attr Attr) uint16 {
	return uint16(attr)<<8 | uint16(ch)
}
