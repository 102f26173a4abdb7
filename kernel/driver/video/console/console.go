// Package console draws text on the framebuffer that the bootloader leaves
// behind. Only the EGA text mode reported through the Multiboot2 framebuffer
// tag is supported: the console maps the framebuffer in place and never
// allocates, so it can be attached before the memory allocators are up.
package console

import (
	"mb2os/kernel"
	"mb2os/kernel/mem"
)

// Attr is a 4-bit EGA palette index. A cell attribute packs the background
// color in its upper nibble and the foreground color in the lower one.
type Attr uint16

// EGA palette indices.
const (
	Black Attr = iota
	Blue
	Green
	Cyan
	Red
	Magenta
	Brown
	LightGrey
	Grey
	LightBlue
	LightGreen
	LightCyan
	LightRed
	LightMagenta
	LightBrown
	White
)

// MakeAttr combines a foreground and a background color into a cell
// attribute.
func MakeAttr(fg, bg Attr) Attr {
	return (bg&0xF)<<4 | fg&0xF
}

// ScrollDir selects the direction in which Scroll moves the console rows.
type ScrollDir uint8

// Scroll directions.
const (
	Up ScrollDir = iota
	Down
)

// textWindowSize is the size of the legacy text-mode memory window at
// 0xb8000. A text framebuffer whose rows do not fit in it is bogus.
const textWindowSize = 32 * mem.Kb

var (
	// ErrNotTextMode is returned when the framebuffer is not an EGA text
	// framebuffer with 16-bit cells.
	ErrNotTextMode = &kernel.Error{Module: "console", Message: "framebuffer is not in EGA text mode"}

	// ErrInvalidGeometry is returned when the framebuffer dimensions are
	// zero, its pitch cannot hold a row or it does not fit in the text
	// memory window.
	ErrInvalidGeometry = &kernel.Error{Module: "console", Message: "invalid text framebuffer geometry"}
)
