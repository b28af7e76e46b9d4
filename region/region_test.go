package region

import (
	"bytes"
	"testing"

	"github.com/pistonite/blueflame/env"
)

func TestPermissionsString(t *testing.T) {
	cases := []struct {
		p    Permissions
		want string
	}{
		{PermRead | PermWrite | PermExec, "rwx"},
		{PermRead, "r--"},
		{0, "---"},
		{PermRead | PermExec, "r-x"},
	}
	for _, c := range cases {
		if got := c.p.String(); got != c.want {
			t.Errorf("%d.String() = %q, want %q", c.p, got, c.want)
		}
	}
}

func TestAllocateRegionZeroFillsBss(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	r := AllocateRegion(env.Main, 0x1000, PermRead|PermWrite, data, 2*PageSize)
	if r.NumPages() != 2 {
		t.Fatalf("expected 2 pages, got %d", r.NumPages())
	}
	if !bytes.Equal(r.Pages[0][:4], data) {
		t.Errorf("expected first bytes to match data")
	}
	for _, b := range r.Pages[0][4:] {
		if b != 0 {
			t.Fatal("expected zero fill after data")
		}
	}
	for _, b := range r.Pages[1][:] {
		if b != 0 {
			t.Fatal("expected second page fully zeroed")
		}
	}
}

func TestAllocateRegionRoundsMemSizeUp(t *testing.T) {
	r := AllocateRegion(env.Main, 0, PermRead, nil, PageSize+1)
	if r.NumPages() != 2 {
		t.Errorf("expected round-up to 2 pages, got %d", r.NumPages())
	}
}

func TestWriteU64(t *testing.T) {
	r := AllocateRegion(env.Main, 0x2000, PermRead|PermWrite, nil, PageSize)
	if err := r.WriteU64(0x2010, 0x0102030405060708); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := r.Pages[0][0x10:0x18]
	want := []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestWriteU64OutOfRange(t *testing.T) {
	r := AllocateRegion(env.Main, 0x2000, PermRead|PermWrite, nil, PageSize)
	if err := r.WriteU64(0x1000, 1); err == nil {
		t.Error("expected out-of-range error for an offset before the region")
	}
	if err := r.WriteU64(0x2FFC, 1); err == nil {
		t.Error("expected out-of-range error for a write crossing the region end")
	}
}

func TestRegionOverlap(t *testing.T) {
	r := AllocateRegion(env.Main, 0x4000, PermRead|PermExec, bytes.Repeat([]byte{0xAB}, 4*PageSize), 4*PageSize)
	start, data, ok := r.Overlap(0x3000, 3)
	if !ok {
		t.Fatal("expected overlap")
	}
	if start != 0x4000 {
		t.Errorf("overlap start = 0x%x, want 0x4000", start)
	}
	if len(data) != 2*PageSize {
		t.Errorf("overlap length = %d, want %d", len(data), 2*PageSize)
	}
}

func TestRegionOverlapNone(t *testing.T) {
	r := AllocateRegion(env.Main, 0x4000, PermRead, nil, PageSize)
	if _, _, ok := r.Overlap(0x8000, 1); ok {
		t.Error("expected no overlap")
	}
}

func TestAlignDownUp(t *testing.T) {
	if AlignDown(0x1500) != 0x1000 {
		t.Error("AlignDown failed")
	}
	if AlignUp(0x1001) != 0x2000 {
		t.Error("AlignUp failed")
	}
	if AlignUp(0x1000) != 0x1000 {
		t.Error("AlignUp of an already-aligned value should be a no-op")
	}
}
