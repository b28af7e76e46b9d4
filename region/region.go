// Package region implements the page-granular, permission-tagged
// memory model that backs a loaded program image: pages are the
// atomic unit of ownership, Regions group contiguous pages sharing a
// module and permission set.
package region

import (
	"fmt"

	"github.com/pistonite/blueflame/env"
)

// PageSize is the atomic unit of layout, ownership, and extraction.
const PageSize = 0x1000

// Page is a fixed-size, page-aligned chunk of program memory.
type Page [PageSize]byte

// Permissions is an ELF p_flags bitmask, stored verbatim.
type Permissions uint32

const (
	PermExec  Permissions = 1
	PermWrite Permissions = 2
	PermRead  Permissions = 4
)

func (p Permissions) String() string {
	r, w, x := byte('-'), byte('-'), byte('-')
	if p&PermRead != 0 {
		r = 'r'
	}
	if p&PermWrite != 0 {
		w = 'w'
	}
	if p&PermExec != 0 {
		x = 'x'
	}
	return string([]byte{r, w, x})
}

// Region is a contiguous run of pages sharing a module kind and
// permission set. RelStart is relative to the program base and must
// be a page multiple.
type Region struct {
	Module      env.ModuleKind
	RelStart    uint32
	Permissions Permissions
	Pages       []Page
}

// AllocateRegion creates a region large enough to hold memSize bytes
// (rounded up to a whole number of pages), copying data into the
// start of the region and zeroing the remainder (.bss semantics).
func AllocateRegion(module env.ModuleKind, relStart uint32, perm Permissions, data []byte, memSize uint32) Region {
	numPages := memSize / PageSize
	if memSize%PageSize != 0 {
		numPages++
	}
	pages := make([]Page, numPages)
	for i := range pages {
		from := i * PageSize
		if from >= len(data) {
			break
		}
		n := copy(pages[i][:], data[from:])
		_ = n
	}
	return Region{
		Module:      module,
		RelStart:    relStart,
		Permissions: perm,
		Pages:       pages,
	}
}

// NumPages returns the number of pages in the region.
func (r Region) NumPages() uint32 {
	return uint32(len(r.Pages))
}

// ByteLen returns the size of the region in bytes, always a page
// multiple.
func (r Region) ByteLen() uint32 {
	return r.NumPages() * PageSize
}

// Contains reports whether the program-relative offset falls within
// this region.
func (r Region) Contains(offset uint32) bool {
	return offset >= r.RelStart && offset < r.RelStart+r.ByteLen()
}

// OffsetOutOfRangeError is returned when a write targets a byte range
// outside the region's bounds.
type OffsetOutOfRangeError struct {
	RelStart, ByteLen, Offset uint32
}

func (e *OffsetOutOfRangeError) Error() string {
	return fmt.Sprintf("offset 0x%x out of region range [0x%x, 0x%x)", e.Offset, e.RelStart, e.RelStart+e.ByteLen)
}

// WriteU64 writes an 8-byte little-endian value at the program-
// relative offset, which must lie entirely within the region.
func (r *Region) WriteU64(offset uint32, value uint64) error {
	if offset < r.RelStart || offset+8 > r.RelStart+r.ByteLen() {
		return &OffsetOutOfRangeError{RelStart: r.RelStart, ByteLen: r.ByteLen(), Offset: offset}
	}
	relOffset := offset - r.RelStart
	pageIdx := relOffset / PageSize
	pageOffset := relOffset % PageSize
	page := &r.Pages[pageIdx]
	for i := 0; i < 8; i++ {
		page[int(pageOffset)+i] = byte(value >> (8 * i))
	}
	return nil
}

// Overlap returns the bytes of this region that fall within
// [relStart, relStart+numPages*PageSize), along with the aligned
// start of the overlap, or ok=false if there is no overlap.
func (r Region) Overlap(relStart uint32, numPages uint32) (overlapStart uint32, data []byte, ok bool) {
	rangeEnd := relStart + numPages*PageSize
	selfEnd := r.RelStart + r.ByteLen()
	if rangeEnd <= r.RelStart || relStart >= selfEnd {
		return 0, nil, false
	}
	start := relStart
	if r.RelStart > start {
		start = r.RelStart
	}
	end := rangeEnd
	if selfEnd < end {
		end = selfEnd
	}
	startPageIdx := (start - r.RelStart) / PageSize
	endPageIdx := (end - r.RelStart) / PageSize
	out := make([]byte, 0, end-start)
	for i := startPageIdx; i < endPageIdx; i++ {
		out = append(out, r.Pages[i][:]...)
	}
	return start, out, true
}

// AlignDown rounds v down to the nearest page multiple.
func AlignDown(v uint32) uint32 {
	return v &^ (PageSize - 1)
}

// AlignUp rounds v up to the nearest page multiple.
func AlignUp(v uint32) uint32 {
	return AlignDown(v+PageSize-1)
}
