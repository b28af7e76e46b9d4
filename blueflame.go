// Package blueflame loads the four statically linked ELF modules of a
// supported game build, relocates them against each other, and packs
// the result (optionally sliced down to a requested set of regions)
// into the binary program-image format downstream simulators consume.
package blueflame

import (
	"debug/elf"
	"fmt"
	"reflect"

	"github.com/pistonite/blueflame/elfmod"
	"github.com/pistonite/blueflame/env"
	"github.com/pistonite/blueflame/program"
	"github.com/pistonite/blueflame/region"
	"github.com/pistonite/blueflame/reloc"
	"github.com/pistonite/blueflame/singleton"
	"github.com/pistonite/blueflame/slicer"
	"github.com/pistonite/blueflame/symtab"
)

// MissingModuleDataError is returned when ModuleFiles is missing the
// bytes for one of the four required modules.
type MissingModuleDataError struct {
	Kind env.ModuleKind
}

func (e *MissingModuleDataError) Error() string {
	return fmt.Sprintf("missing module data for %s", e.Kind)
}

// RoundTripMismatchError is returned when packing a freshly built
// Program and unpacking it again does not reproduce the original.
type RoundTripMismatchError struct {
	Reason string
}

func (e *RoundTripMismatchError) Error() string {
	return fmt.Sprintf("round-trip mismatch after pack/unpack: %s", e.Reason)
}

// ModuleFiles is the raw bytes of the four input ELFs, keyed by kind.
type ModuleFiles map[env.ModuleKind][]byte

// BuildOptions configures one full pipeline run.
type BuildOptions struct {
	ProgramBase uint64
	DLC         bool
	Filters     []slicer.Filter
	// ActorInfoData, if non-nil, is attached (already Yaz0-decompressed
	// by the caller, e.g. via romfs.Romfs.LoadActorInfoAttachment).
	ActorInfoData []byte
	// PauseMenuDataMgrRelStart, if nonzero, requests construction of
	// the PauseMenuDataMgr singleton at that program-relative offset.
	PauseMenuDataMgrRelStart uint32
}

// Warnings mirrors reloc.Warnings accumulated across all four modules.
type Warnings struct {
	UnresolvedData []string
	UnresolvedPLT  []string
}

func (w *Warnings) Empty() bool {
	return len(w.UnresolvedData) == 0 && len(w.UnresolvedPLT) == 0
}

// Build runs the full pipeline: parse every module, load its PT_LOAD
// segments, build the cross-module symbol table, apply relocations,
// slice the result down to the requested filters (or keep it whole),
// attach romfs data and singletons, and finalize a Program.
//
// Module loads, symbol table construction, and relocation all proceed
// in env.Kinds order: relocation resolution needs every module's
// symbols loaded first, so the three loops below run to completion in
// sequence rather than interleaved per module.
func Build(files ModuleFiles, e env.Environment, opts BuildOptions) (*program.Program, Warnings, error) {
	layout := env.LayoutFor(e)

	loaded := make(map[env.ModuleKind]*elfmod.Loaded, len(env.Kinds))
	var regions []region.Region
	for _, kind := range env.Kinds {
		data, ok := files[kind]
		if !ok {
			return nil, Warnings{}, &MissingModuleDataError{Kind: kind}
		}
		l, err := elfmod.Parse(kind, data)
		if err != nil {
			return nil, Warnings{}, err
		}
		loaded[kind] = l

		regions, err = elfmod.Load(l, layout.Info(kind), regions)
		if err != nil {
			return nil, Warnings{}, err
		}
	}

	tables := symtab.New(opts.ProgramBase, layout.ProgramSize())
	dynSyms := make(map[env.ModuleKind][]elf.Symbol, len(env.Kinds))
	for _, kind := range env.Kinds {
		syms, err := loaded[kind].File.DynamicSymbols()
		if err != nil {
			return nil, Warnings{}, fmt.Errorf("read dynamic symbols for module %s: %w", kind, err)
		}
		dynSyms[kind] = syms
		info := layout.Info(kind)
		if _, err := tables.LoadFromELF(kind, opts.ProgramBase+uint64(info.Start), syms); err != nil {
			return nil, Warnings{}, err
		}
	}

	var warnings Warnings
	for _, kind := range env.Kinds {
		info := layout.Info(kind)
		_, w, err := reloc.Apply(kind, loaded[kind].File, info, opts.ProgramBase, dynSyms[kind], tables, regions)
		if err != nil {
			return nil, Warnings{}, err
		}
		warnings.UnresolvedData = append(warnings.UnresolvedData, w.UnresolvedData...)
		warnings.UnresolvedPLT = append(warnings.UnresolvedPLT, w.UnresolvedPLT...)
	}

	extracted := slicer.Slice(layout, regions, opts.Filters)

	modulesBuilder := program.NewBuilder(e.WithDLC(opts.DLC), opts.ProgramBase, layout.ProgramSize())
	for _, kind := range env.Kinds {
		modulesBuilder.AddModule(kind, layout.Info(kind).Start)
	}

	sectionsBuilder := modulesBuilder.DoneWithModules()
	for _, ex := range extracted {
		sectionsBuilder.AddSection(ex.RelStart, uint32(ex.Permissions))
	}

	segmentsBuilder := sectionsBuilder.DoneWithSections()
	for _, ex := range extracted {
		segmentsBuilder.AddSegment(ex.RelStart, ex.Data)
	}

	attachmentsBuilder, err := segmentsBuilder.DoneWithSegments()
	if err != nil {
		return nil, Warnings{}, err
	}

	if opts.ActorInfoData != nil {
		attachmentsBuilder.AddAttachment(env.ActorInfoByml, opts.ActorInfoData)
	}
	if opts.PauseMenuDataMgrRelStart != 0 {
		info, err := singleton.NewPauseMenuDataMgr(opts.PauseMenuDataMgrRelStart, e.IsX160())
		if err != nil {
			return nil, Warnings{}, err
		}
		attachmentsBuilder.AddSingleton(info)
	}

	p, err := attachmentsBuilder.Done()
	if err != nil {
		return nil, Warnings{}, err
	}

	if err := verifyRoundTrip(p); err != nil {
		return nil, Warnings{}, err
	}

	return p, warnings, nil
}

// verifyRoundTrip implements the §8 round-trip property at build
// time: pack then unpack must reproduce the program bitwise, or the
// caller must refuse to write output.
func verifyRoundTrip(p *program.Program) error {
	packed, err := program.Pack(p)
	if err != nil {
		return fmt.Errorf("pack program: %w", err)
	}
	unpacked, err := program.Unpack(packed)
	if err != nil {
		return &RoundTripMismatchError{Reason: err.Error()}
	}
	if !reflect.DeepEqual(p, unpacked) {
		return &RoundTripMismatchError{Reason: "unpacked program differs from the original"}
	}
	return nil
}
