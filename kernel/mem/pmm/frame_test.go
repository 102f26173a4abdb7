package pmm

import (
	"testing"

	"mb2os/kernel/mem"
)

func TestFrameMethods(t *testing.T) {
	for frameIndex := uint64(0); frameIndex < 128; frameIndex++ {
		frame := Frame(frameIndex)

		if !frame.Valid() {
			t.Errorf("expected frame %d to be valid", frameIndex)
		}

		expAddr := uintptr(frameIndex << mem.PageShift)
		if got := frame.Address(); got != expAddr {
			t.Errorf("expected frame %d call to Address() to return %x; got %x", frameIndex, expAddr, got)
		}

		if got := FrameFromAddress(expAddr + uintptr(frameIndex)); got != frame {
			t.Errorf("expected FrameFromAddress(%x) to return frame %d; got %d", expAddr+uintptr(frameIndex), frame, got)
		}
	}

	if InvalidFrame.Valid() {
		t.Error("expected InvalidFrame.Valid() to return false")
	}
}
