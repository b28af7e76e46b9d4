// Package slicer extracts a minimal, page-aligned set of regions from
// a loaded program image according to a user-supplied region filter.
package slicer

import (
	"sort"

	"github.com/pistonite/blueflame/env"
	"github.com/pistonite/blueflame/region"
)

// Filter is one user-requested extraction range, in module-relative
// byte coordinates.
type Filter struct {
	Module env.ModuleKind
	Start  uint32
	End    uint32
}

// Extracted is one output region produced by the slicer: a page-
// aligned byte range copied out of a single source region.
type Extracted struct {
	RelStart    uint32
	Permissions region.Permissions
	Data        []byte
}

// Slice computes the extracted regions that survive the given
// filters. An empty filter list passes every loaded region through
// whole, in ascending RelStart order.
func Slice(layout env.Modules, loaded []region.Region, filters []Filter) []Extracted {
	if len(filters) == 0 {
		out := make([]Extracted, 0, len(loaded))
		for _, r := range loaded {
			data := make([]byte, 0, r.ByteLen())
			for _, p := range r.Pages {
				data = append(data, p[:]...)
			}
			out = append(out, Extracted{RelStart: r.RelStart, Permissions: r.Permissions, Data: data})
		}
		return out
	}

	pageStarts := make(map[uint32]struct{})
	for _, f := range filters {
		info := layout.Info(f.Module)
		start := region.AlignDown(clamp(info.Start+f.Start, info.End))
		end := region.AlignUp(clamp(info.Start+f.End, info.End))
		for page := start / region.PageSize; page < end/region.PageSize; page++ {
			pageStarts[page*region.PageSize] = struct{}{}
		}
	}

	sorted := make([]uint32, 0, len(pageStarts))
	for p := range pageStarts {
		sorted = append(sorted, p)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	type run struct {
		start    uint32
		numPages uint32
	}
	var runs []run
	for _, p := range sorted {
		if len(runs) > 0 {
			last := &runs[len(runs)-1]
			if p == last.start+last.numPages*region.PageSize {
				last.numPages++
				continue
			}
		}
		runs = append(runs, run{start: p, numPages: 1})
	}

	var out []Extracted
	for _, rn := range runs {
		for _, r := range loaded {
			start, data, ok := r.Overlap(rn.start, rn.numPages)
			if !ok {
				continue
			}
			out = append(out, Extracted{RelStart: start, Permissions: r.Permissions, Data: data})
		}
	}
	return out
}

func clamp(v, max uint32) uint32 {
	if v > max {
		return max
	}
	return v
}
