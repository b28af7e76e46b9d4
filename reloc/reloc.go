// Package reloc applies AArch64 dynamic relocations read from a
// module's .rela.dyn and .rela.plt sections onto the page/region
// store built by elfmod.
package reloc

import (
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/pistonite/blueflame/env"
	"github.com/pistonite/blueflame/region"
	"github.com/pistonite/blueflame/symtab"
)

// UnexpectedRelocationError is returned for any relocation type
// outside the four AArch64 types this engine understands.
type UnexpectedRelocationError struct {
	Module env.ModuleKind
	Type   elf.R_AARCH64
}

func (e *UnexpectedRelocationError) Error() string {
	return fmt.Sprintf("unexpected relocation type in module %s: %s", e.Module, e.Type)
}

// MalformedRelocationError covers addend/r_sym constraints specific
// to each relocation type.
type MalformedRelocationError struct {
	Module env.ModuleKind
	Reason string
}

func (e *MalformedRelocationError) Error() string {
	return fmt.Sprintf("malformed relocation in module %s: %s", e.Module, e.Reason)
}

// OffsetOutsideRegionsError is returned when a relocation's target
// falls in a hole between loaded regions.
type OffsetOutsideRegionsError struct {
	Offset uint32
}

func (e *OffsetOutsideRegionsError) Error() string {
	return fmt.Sprintf("relocation target 0x%x is not in any region", e.Offset)
}

// Warnings accumulates the soft failures tolerated for GLOB_DAT and
// JUMP_SLOT: an unresolved symbol there is recorded, not fatal, and
// the target is written as zero.
type Warnings struct {
	UnresolvedData []string // from R_AARCH64_GLOB_DAT
	UnresolvedPLT  []string // from R_AARCH64_JUMP_SLOT
}

func (w *Warnings) Empty() bool {
	return len(w.UnresolvedData) == 0 && len(w.UnresolvedPLT) == 0
}

// rela is a parsed relocation entry in engine-neutral form.
type rela struct {
	Offset uint32
	Type   elf.R_AARCH64
	Sym    uint32
	Addend int64
}

// Apply walks the module's .rela.dyn then .rela.plt sections and
// patches region bytes in place, resolving symbols through tables.
// Returns the number of relocations applied and any soft warnings
// collected along the way.
func Apply(
	module env.ModuleKind,
	f *elf.File,
	info env.ModuleInfo,
	programBase uint64,
	dynSyms []elf.Symbol,
	tables *symtab.Tables,
	regions []region.Region,
) (applied int, warnings Warnings, err error) {
	moduleRegions := make([]*region.Region, 0, 4)
	for i := range regions {
		if regions[i].Module == module {
			moduleRegions = append(moduleRegions, &regions[i])
		}
	}

	dynRelas, err := readRelaSection(f, ".rela.dyn")
	if err != nil {
		return 0, warnings, err
	}
	for _, r := range dynRelas {
		n, err := applyDynEntry(module, r, info, programBase, dynSyms, tables, moduleRegions, &warnings)
		if err != nil {
			return applied, warnings, err
		}
		applied += n
	}

	pltRelas, err := readRelaSection(f, ".rela.plt")
	if err != nil {
		return applied, warnings, err
	}
	for _, r := range pltRelas {
		if r.Addend != 0 {
			return applied, warnings, &MalformedRelocationError{Module: module, Reason: fmt.Sprintf(".rela.plt r_addend must be 0, got %d", r.Addend)}
		}
		if r.Type != elf.R_AARCH64_JUMP_SLOT {
			return applied, warnings, &UnexpectedRelocationError{Module: module, Type: r.Type}
		}
		if r.Sym == 0 {
			return applied, warnings, &MalformedRelocationError{Module: module, Reason: fmt.Sprintf("empty r_sym in .rela.plt at 0x%x", r.Offset)}
		}
		symName := symbolName(dynSyms, r.Sym)
		address, resolveErr := tables.Resolve(module, symName)
		if resolveErr != nil {
			warnings.UnresolvedPLT = append(warnings.UnresolvedPLT, symName)
			address = 0
		}
		if err := writeRelocation(moduleRegions, r.Offset, address); err != nil {
			return applied, warnings, err
		}
		applied++
	}

	return applied, warnings, nil
}

func applyDynEntry(
	module env.ModuleKind,
	r rela,
	info env.ModuleInfo,
	programBase uint64,
	dynSyms []elf.Symbol,
	tables *symtab.Tables,
	moduleRegions []*region.Region,
	warnings *Warnings,
) (int, error) {
	switch r.Type {
	case elf.R_AARCH64_ABS64:
		if r.Sym == 0 {
			return 0, &MalformedRelocationError{Module: module, Reason: fmt.Sprintf("empty r_sym in .rela.dyn at 0x%x", r.Offset)}
		}
		if r.Addend < 0 {
			return 0, &MalformedRelocationError{Module: module, Reason: fmt.Sprintf("negative r_addend for ABS64: %d", r.Addend)}
		}
		symName := symbolName(dynSyms, r.Sym)
		address, err := tables.Resolve(module, symName)
		if err != nil {
			return 0, fmt.Errorf("resolve ABS64 symbol %q: %w", symName, err)
		}
		address += uint64(r.Addend)
		if err := writeRelocation(moduleRegions, r.Offset, address); err != nil {
			return 0, err
		}
		return 1, nil

	case elf.R_AARCH64_GLOB_DAT:
		if r.Sym == 0 {
			return 0, &MalformedRelocationError{Module: module, Reason: fmt.Sprintf("empty r_sym in .rela.dyn at 0x%x", r.Offset)}
		}
		if r.Addend != 0 {
			return 0, &MalformedRelocationError{Module: module, Reason: fmt.Sprintf("nonzero r_addend for GLOB_DAT: %d", r.Addend)}
		}
		symName := symbolName(dynSyms, r.Sym)
		address, err := tables.Resolve(module, symName)
		if err != nil {
			warnings.UnresolvedData = append(warnings.UnresolvedData, symName)
			address = 0
		}
		if err := writeRelocation(moduleRegions, r.Offset, address); err != nil {
			return 0, err
		}
		return 1, nil

	case elf.R_AARCH64_RELATIVE:
		if r.Sym != 0 {
			return 0, &MalformedRelocationError{Module: module, Reason: fmt.Sprintf("nonzero r_sym for RELATIVE: %d", r.Sym)}
		}
		if r.Addend < 0 {
			return 0, &MalformedRelocationError{Module: module, Reason: fmt.Sprintf("negative r_addend for RELATIVE: %d", r.Addend)}
		}
		value := programBase + uint64(info.Start) + uint64(r.Addend)
		if err := writeRelocation(moduleRegions, r.Offset, value); err != nil {
			return 0, err
		}
		return 1, nil

	default:
		return 0, &UnexpectedRelocationError{Module: module, Type: r.Type}
	}
}

// writeRelocation converts a module-relative offset to a program-
// relative one and writes the 8-byte value into whichever region
// contains it.
func writeRelocation(moduleRegions []*region.Region, moduleRelOffset uint32, value uint64) error {
	if len(moduleRegions) == 0 {
		return &OffsetOutsideRegionsError{Offset: moduleRelOffset}
	}
	offset := moduleRelOffset + moduleRegions[0].RelStart
	for _, r := range moduleRegions {
		if r.RelStart+r.ByteLen() <= offset {
			continue
		}
		if r.RelStart > offset {
			return &OffsetOutsideRegionsError{Offset: offset}
		}
		return r.WriteU64(offset, value)
	}
	return &OffsetOutsideRegionsError{Offset: offset}
}

func symbolName(dynSyms []elf.Symbol, symIndex uint32) string {
	// debug/elf's DynamicSymbols omits the null symbol at index 0.
	idx := int(symIndex) - 1
	if idx < 0 || idx >= len(dynSyms) {
		return ""
	}
	return dynSyms[idx].Name
}

func readRelaSection(f *elf.File, name string) ([]rela, error) {
	sec := f.Section(name)
	if sec == nil {
		return nil, nil
	}
	data, err := sec.Data()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	const entSize = 24
	if len(data)%entSize != 0 {
		return nil, fmt.Errorf("malformed %s: size %d not a multiple of %d", name, len(data), entSize)
	}
	out := make([]rela, 0, len(data)/entSize)
	for i := 0; i < len(data); i += entSize {
		off := binary.LittleEndian.Uint64(data[i : i+8])
		info := binary.LittleEndian.Uint64(data[i+8 : i+16])
		addend := int64(binary.LittleEndian.Uint64(data[i+16 : i+24]))
		out = append(out, rela{
			Offset: uint32(off),
			Type:   elf.R_AARCH64(elf.R_TYPE64(info)),
			Sym:    uint32(elf.R_SYM64(info)),
			Addend: addend,
		})
	}
	return out, nil
}
