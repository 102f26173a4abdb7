package tty

import (
	"testing"
	"unsafe"

	"mb2os/kernel/driver/video/console"
	"mb2os/multiboot"
)

func newTestVt() (*Vt, []uint16) {
	fb := make([]uint16, 80*25)
	var cons console.Ega
	if err := cons.Init(multiboot.FramebufferInfo{
		PhysAddr: uint64(uintptr(unsafe.Pointer(&fb[0]))),
		Pitch:    160,
		Width:    80,
		Height:   25,
		Bpp:      16,
		Type:     multiboot.FramebufferTypeEGA,
	}); err != nil {
		panic(err)
	}

	var vt Vt
	vt.AttachTo(&cons)
	return &vt, fb
}

func charAt(fb []uint16, x, y int) byte {
	return byte(fb[y*80+x])
}

func TestVtPosition(t *testing.T) {
	specs := []struct {
		inX, inY   uint16
		expX, expY uint16
	}{
		{20, 20, 20, 20},
		{100, 20, 79, 20},
		{10, 200, 10, 24},
		{100, 100, 79, 24},
	}

	vt, _ := newTestVt()
	for specIndex, spec := range specs {
		vt.SetPosition(spec.inX, spec.inY)
		if x, y := vt.Position(); x != spec.expX || y != spec.expY {
			t.Errorf("[spec %d] expected setting position to (%d, %d) to update the position to (%d, %d); got (%d, %d)", specIndex, spec.inX, spec.inY, spec.expX, spec.expY, x, y)
		}
	}
}

func TestVtWrite(t *testing.T) {
	vt, fb := newTestVt()
	vt.Clear()

	n, err := vt.Write([]byte("12\n\t3\n4\r567\b8"))
	if err != nil || n != 13 {
		t.Fatalf("expected Write to return (13, nil); got (%d, %v)", n, err)
	}

	specs := []struct {
		x, y    int
		expChar byte
	}{
		{0, 0, '1'},
		{1, 0, '2'},
		{2, 0, ' '},
		{3, 1, ' '},
		{4, 1, '3'},
		{0, 2, '5'},
		{1, 2, '6'},
		{2, 2, '8'},
		{3, 2, ' '},
	}

	for specIndex, spec := range specs {
		if got := charAt(fb, spec.x, spec.y); got != spec.expChar {
			t.Errorf("[spec %d] expected char at (%d, %d) to be %q; got %q", specIndex, spec.x, spec.y, spec.expChar, got)
		}
	}

	if exp := console.MakeAttr(defaultFg, defaultBg); console.Attr(fb[0]>>8) != exp {
		t.Errorf("expected char attribute to be %x; got %x", exp, fb[0]>>8)
	}
}

func TestVtWrapAndScroll(t *testing.T) {
	vt, fb := newTestVt()
	vt.Clear()

	vt.SetPosition(79, 23)
	_, _ = vt.Write([]byte("ab"))

	if x, y := vt.Position(); x != 1 || y != 24 {
		t.Fatalf("expected cursor to wrap to (1, 24); got (%d, %d)", x, y)
	}

	// Writing past the last line scrolls the contents up
	vt.SetPosition(79, 24)
	_, _ = vt.Write([]byte("c"))

	if x, y := vt.Position(); x != 0 || y != 24 {
		t.Fatalf("expected cursor to stay on the last line; got (%d, %d)", x, y)
	}

	if got := charAt(fb, 79, 22); got != 'a' {
		t.Errorf("expected 'a' to scroll to (79, 22); got %q", got)
	}

	if got := charAt(fb, 0, 23); got != 'b' {
		t.Errorf("expected 'b' to scroll to (0, 23); got %q", got)
	}

	if got := charAt(fb, 79, 23); got != 'c' {
		t.Errorf("expected 'c' to scroll to (79, 23); got %q", got)
	}

	for x := 0; x < 80; x++ {
		if got := charAt(fb, x, 24); got != ' ' {
			t.Fatalf("expected last line to be cleared after scrolling; got %q at column %d", got, x)
		}
	}
}
