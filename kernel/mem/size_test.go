package mem

import "testing"

func TestSizePages(t *testing.T) {
	specs := []struct {
		size     Size
		expPages uint64
	}{
		{0, 0},
		{1, 1},
		{PageSize, 1},
		{PageSize + 1, 2},
		{Mb, 256},
		{2*Gb + 1, 524289},
	}

	for specIndex, spec := range specs {
		if got := spec.size.Pages(); got != spec.expPages {
			t.Errorf("[spec %d] expected Pages() for size %d to return %d; got %d", specIndex, spec.size, spec.expPages, got)
		}
	}
}
