// Package symtab builds the cross-module dynamic-symbol table used to
// resolve relocations: one map per loaded module plus a synthetic
// "magic" map for loader-injected boundary symbols.
package symtab

import (
	"debug/elf"
	"fmt"

	"github.com/pistonite/blueflame/env"
)

// Value is a resolved dynamic symbol: its absolute program address
// plus the ELF binding/visibility bits needed to arbitrate conflicts.
type Value struct {
	Address   uint64
	Weak      bool
	Protected bool
}

// DuplicateStrongSymbolError is returned when a module defines the
// same strongly-bound symbol name twice.
type DuplicateStrongSymbolError struct {
	Module env.ModuleKind
	Name   string
}

func (e *DuplicateStrongSymbolError) Error() string {
	return fmt.Sprintf("duplicate strong symbol %q in module %s", e.Name, e.Module)
}

// UnresolvedSymbolError is returned when a name has no definition in
// any module and isn't a magic symbol.
type UnresolvedSymbolError struct {
	Name string
}

func (e *UnresolvedSymbolError) Error() string {
	return fmt.Sprintf("unresolved dynamic symbol: %q", e.Name)
}

// AmbiguousSymbolError is returned when more than one module strongly
// defines the same symbol name.
type AmbiguousSymbolError struct {
	Name string
}

func (e *AmbiguousSymbolError) Error() string {
	return fmt.Sprintf("ambiguous symbol (multiple strong definitions): %q", e.Name)
}

// Tables holds the four owned per-module maps plus the magic table,
// and answers cross-module resolution queries.
type Tables struct {
	perModule map[env.ModuleKind]map[string]Value
	magic     map[string]Value
}

// New creates an empty Tables with the magic boundary symbols
// (__EX_start, __EX_end) pre-populated from the program's base address
// and size.
func New(programBase uint64, programSize uint32) *Tables {
	t := &Tables{
		perModule: map[env.ModuleKind]map[string]Value{
			env.Rtld:    {},
			env.Main:    {},
			env.Subsdk0: {},
			env.Sdk:     {},
		},
		magic: map[string]Value{
			"__EX_start": {Address: programBase},
			"__EX_end":   {Address: programBase + uint64(programSize)},
		},
	}
	return t
}

// Insert applies the linker's arbitration policy for a single module's
// symbol map:
//   - vacant: insert
//   - occupied, existing weak: replace
//   - occupied, existing strong, new weak: keep existing
//   - occupied, both strong: DuplicateStrongSymbolError
func (t *Tables) Insert(module env.ModuleKind, name string, v Value) error {
	table := t.perModule[module]
	existing, ok := table[name]
	if !ok {
		table[name] = v
		return nil
	}
	if existing.Weak {
		table[name] = v
		return nil
	}
	if v.Weak {
		return nil
	}
	return &DuplicateStrongSymbolError{Module: module, Name: name}
}

// LoadFromELF iterates the dynamic symbol table of an already-parsed
// ELF file and inserts every eligible symbol (skipping undefined,
// nameless, hidden/internal, and local-bound entries) into the
// module's map. absStart is the module's absolute program address
// (program base + module.Start). Returns the count of symbols loaded.
func (t *Tables) LoadFromELF(module env.ModuleKind, absStart uint64, dynSyms []elf.Symbol) (int, error) {
	count := 0
	for _, sym := range dynSyms {
		if sym.Section == elf.SHN_UNDEF {
			continue
		}
		if sym.Name == "" {
			continue
		}
		vis := elf.ST_VISIBILITY(sym.Other)
		if vis == elf.STV_HIDDEN || vis == elf.STV_INTERNAL {
			continue
		}
		bind := elf.ST_BIND(sym.Info)
		if bind == elf.STB_LOCAL {
			continue
		}

		v := Value{
			Address:   absStart + sym.Value,
			Weak:      bind == elf.STB_WEAK,
			Protected: vis == elf.STV_PROTECTED,
		}
		if err := t.Insert(module, sym.Name, v); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Resolve looks up name across the magic table and all four module
// maps, applying ELF binding-strength arbitration.
//
// requestingModule is reserved for future STV_PROTECTED handling (a
// module preferring its own definition of a symbol over another
// module's); it must be accepted but is not currently used to choose
// between candidates.
func (t *Tables) Resolve(requestingModule env.ModuleKind, name string) (uint64, error) {
	_ = requestingModule
	if v, ok := t.magic[name]; ok {
		return v.Address, nil
	}

	type candidate struct {
		kind  env.ModuleKind
		value Value
	}
	var found []candidate
	for _, kind := range env.Kinds {
		if v, ok := t.perModule[kind][name]; ok {
			found = append(found, candidate{kind: kind, value: v})
		}
	}

	switch len(found) {
	case 0:
		return 0, &UnresolvedSymbolError{Name: name}
	case 1:
		return found[0].value.Address, nil
	}

	allWeak := true
	var strong *candidate
	for i := range found {
		if !found[i].value.Weak {
			allWeak = false
			if strong != nil {
				return 0, &AmbiguousSymbolError{Name: name}
			}
			strong = &found[i]
		}
	}
	if allWeak {
		// env.Kinds is already in ascending ModuleKind order, so
		// found[0] is deterministically the lowest module kind.
		return found[0].value.Address, nil
	}
	return strong.value.Address, nil
}
