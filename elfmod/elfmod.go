// Package elfmod parses one statically linked AArch64 ELF module and
// places its PT_LOAD segments into the page/region store, verifying
// the resulting layout against the module's expected offsets.
package elfmod

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"

	"github.com/pistonite/blueflame/env"
	"github.com/pistonite/blueflame/region"
)

// BadELFError wraps an underlying debug/elf parse failure with the
// module it was parsing.
type BadELFError struct {
	Module env.ModuleKind
	Reason error
}

func (e *BadELFError) Error() string {
	return fmt.Sprintf("bad elf for module %s: %v", e.Module, e.Reason)
}

func (e *BadELFError) Unwrap() error { return e.Reason }

// LayoutMismatchError is returned when a module's PT_LOAD segments do
// not land where the expected ModuleInfo says they should.
type LayoutMismatchError struct {
	Module         env.ModuleKind
	Expected       uint32
	Actual         uint32
	Stage          string // "vaddr", "text_end", or "end"
}

func (e *LayoutMismatchError) Error() string {
	return fmt.Sprintf("layout mismatch for module %s at %s: expected 0x%x, got 0x%x",
		e.Module, e.Stage, e.Expected, e.Actual)
}

// MissingSegmentsError is returned when an ELF has no PT_LOAD program
// headers at all.
type MissingSegmentsError struct {
	Module env.ModuleKind
}

func (e *MissingSegmentsError) Error() string {
	return fmt.Sprintf("module %s has no PT_LOAD segments", e.Module)
}

// Loaded is the ELF handle plus information needed by later stages
// (symbol table loading, relocation) to keep reading from it.
type Loaded struct {
	Module env.ModuleKind
	File   *elf.File
	Data   []byte
	// AbsStart is the program-relative start of this module, i.e.
	// info.Start, set by Load (passed through so callers don't need to
	// thread the Modules table again).
	AbsStart uint32
}

// Parse opens an in-memory AArch64 little-endian ELF image without
// validating PT_LOAD layout.
func Parse(kind env.ModuleKind, data []byte) (*Loaded, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, &BadELFError{Module: kind, Reason: err}
	}
	if f.Class != elf.ELFCLASS64 {
		return nil, &BadELFError{Module: kind, Reason: fmt.Errorf("unsupported ELF class %s", f.Class)}
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, &BadELFError{Module: kind, Reason: fmt.Errorf("unsupported ELF endianness %s", f.Data)}
	}
	if f.Machine != elf.EM_AARCH64 {
		return nil, &BadELFError{Module: kind, Reason: fmt.Errorf("unsupported ELF machine %s", f.Machine)}
	}
	return &Loaded{Module: kind, File: f, Data: data}, nil
}

// Load iterates the module's PT_LOAD program headers in file order,
// creating one Region per segment and appending it to regions.
// Returns the updated region slice; the program-relative offset one
// past the module's last segment must equal info.End, or a
// LayoutMismatchError is returned.
func Load(l *Loaded, info env.ModuleInfo, regions []region.Region) ([]region.Region, error) {
	l.AbsStart = info.Start
	segmentStart := info.Start
	found := false

	for _, ph := range l.File.Progs {
		if ph.Type != elf.PT_LOAD {
			continue
		}
		found = true

		if ph.Vaddr != ph.Paddr {
			return nil, &BadELFError{Module: l.Module, Reason: fmt.Errorf("p_vaddr (0x%x) != p_paddr (0x%x)", ph.Vaddr, ph.Paddr)}
		}
		if ph.Vaddr != uint64(segmentStart-info.Start) {
			return nil, &LayoutMismatchError{
				Module:   l.Module,
				Expected: segmentStart - info.Start,
				Actual:   uint32(ph.Vaddr),
				Stage:    "vaddr",
			}
		}

		segData := make([]byte, ph.Filesz)
		if _, err := io.ReadFull(ph.Open(), segData); err != nil {
			return nil, &BadELFError{Module: l.Module, Reason: fmt.Errorf("read segment data: %w", err)}
		}

		perm := region.Permissions(ph.Flags & 0x7)
		r := region.AllocateRegion(l.Module, segmentStart, perm, segData, uint32(ph.Memsz))
		size := r.ByteLen()
		regions = append(regions, r)

		segmentStart += size
		if perm == region.PermRead|region.PermExec {
			if segmentStart != info.TextEnd {
				return nil, &LayoutMismatchError{
					Module: l.Module, Expected: info.TextEnd, Actual: segmentStart, Stage: "text_end",
				}
			}
		}
	}

	if !found {
		return nil, &MissingSegmentsError{Module: l.Module}
	}
	if segmentStart != info.End {
		return nil, &LayoutMismatchError{Module: l.Module, Expected: info.End, Actual: segmentStart, Stage: "end"}
	}

	return regions, nil
}
