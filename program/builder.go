package program

import (
	"fmt"
	"sort"

	"github.com/pistonite/blueflame/env"
	"github.com/pistonite/blueflame/singleton"
)

// The builder enforces ordered construction phases through four handle
// types (ModulesBuilder, SectionsBuilder, SegmentsBuilder,
// AttachmentsBuilder), each exposing only the methods legal at that
// stage; Start is NewBuilder itself and Finalize is Done. So
// calling a later phase's method before its predecessor's Done*
// method is a compile error rather than a runtime check.

// ModulesBuilder is the phase-2 handle returned by NewBuilder.
type ModulesBuilder struct {
	env         env.Environment
	programBase uint64
	programSize uint32
	moduleStart map[env.ModuleKind]uint32
}

// NewBuilder starts construction (phase 1 folds into phase 2: there is
// nothing to add during Start besides the three values given here).
func NewBuilder(e env.Environment, programBase uint64, programSize uint32) *ModulesBuilder {
	return &ModulesBuilder{
		env:         e,
		programBase: programBase,
		programSize: programSize,
		moduleStart: make(map[env.ModuleKind]uint32),
	}
}

// AddModule records a module kind's start offset.
func (b *ModulesBuilder) AddModule(kind env.ModuleKind, start uint32) *ModulesBuilder {
	b.moduleStart[kind] = start
	return b
}

// DoneWithModules completes the Modules phase.
func (b *ModulesBuilder) DoneWithModules() *SectionsBuilder {
	return &SectionsBuilder{
		env:         b.env,
		programBase: b.programBase,
		programSize: b.programSize,
		moduleStart: b.moduleStart,
	}
}

// sectionDecl is a declared (rel_start, permissions) pair awaiting its
// byte payload.
type sectionDecl struct {
	relStart    uint32
	permissions uint32
}

// SectionsBuilder is the phase-3 handle.
type SectionsBuilder struct {
	env         env.Environment
	programBase uint64
	programSize uint32
	moduleStart map[env.ModuleKind]uint32
	sections    []sectionDecl
}

// AddSection declares one region's position and permissions. Its
// bytes are supplied in the next phase via AddSegment.
func (b *SectionsBuilder) AddSection(relStart uint32, permissions uint32) *SectionsBuilder {
	b.sections = append(b.sections, sectionDecl{relStart: relStart, permissions: permissions})
	return b
}

// DoneWithSections completes the Sections phase.
func (b *SectionsBuilder) DoneWithSections() *SegmentsBuilder {
	return &SegmentsBuilder{
		env:         b.env,
		programBase: b.programBase,
		programSize: b.programSize,
		sections:    b.sections,
		segments:    make(map[uint32][]byte, len(b.sections)),
	}
}

// SegmentsBuilder is the phase-4 handle.
type SegmentsBuilder struct {
	env         env.Environment
	programBase uint64
	programSize uint32
	sections    []sectionDecl
	segments    map[uint32][]byte
}

// AddSegment supplies the byte payload for a section declared with
// AddSection at the same rel_start.
func (b *SegmentsBuilder) AddSegment(relStart uint32, data []byte) *SegmentsBuilder {
	b.segments[relStart] = data
	return b
}

// DuplicateSectionError is returned by DoneWithSegments when two
// declared sections share a rel_start.
type DuplicateSectionError struct{ RelStart uint32 }

func (e *DuplicateSectionError) Error() string {
	return fmt.Sprintf("duplicate section declared at rel_start 0x%x", e.RelStart)
}

// MissingSegmentError is returned when a declared section never
// received a matching AddSegment call.
type MissingSegmentError struct{ RelStart uint32 }

func (e *MissingSegmentError) Error() string {
	return fmt.Sprintf("no segment data supplied for section at rel_start 0x%x", e.RelStart)
}

// DoneWithSegments resolves every declared section against its
// payload, in ascending rel_start order, and completes the Segments
// phase. This is what prevents a ProgramRegion's length from ever
// disagreeing with its declared position: the pairing is enforced
// here, once, before Attachments or Finalize can run.
func (b *SegmentsBuilder) DoneWithSegments() (*AttachmentsBuilder, error) {
	sorted := append([]sectionDecl(nil), b.sections...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].relStart < sorted[j].relStart })

	seen := make(map[uint32]struct{}, len(sorted))
	regions := make([]Region, 0, len(sorted))
	for _, s := range sorted {
		if _, dup := seen[s.relStart]; dup {
			return nil, &DuplicateSectionError{RelStart: s.relStart}
		}
		seen[s.relStart] = struct{}{}
		data, ok := b.segments[s.relStart]
		if !ok {
			return nil, &MissingSegmentError{RelStart: s.relStart}
		}
		regions = append(regions, Region{RelStart: s.relStart, Permissions: s.permissions, Data: data})
	}

	return &AttachmentsBuilder{
		env:         b.env,
		programBase: b.programBase,
		programSize: b.programSize,
		regions:     regions,
	}, nil
}

// AttachmentsBuilder is the phase-5 handle. Singleton allocation
// records are added here too: spec §4.6 doesn't carve out a dedicated
// phase for them, and attachments is the last extensible stage before
// Finalize.
type AttachmentsBuilder struct {
	env         env.Environment
	programBase uint64
	programSize uint32
	regions     []Region
	attachments []Attachment
	singletons  []singleton.Info
}

// AddAttachment attaches an auxiliary named byte blob.
func (b *AttachmentsBuilder) AddAttachment(id env.DataID, data []byte) *AttachmentsBuilder {
	b.attachments = append(b.attachments, Attachment{ID: id, Data: data})
	return b
}

// AddSingleton attaches a singleton allocation/construction record.
func (b *AttachmentsBuilder) AddSingleton(info singleton.Info) *AttachmentsBuilder {
	b.singletons = append(b.singletons, info)
	return b
}

// Done finalizes the builder into an immutable, validated Program.
func (b *AttachmentsBuilder) Done() (*Program, error) {
	p := &Program{
		Env:         b.env,
		ProgramBase: b.programBase,
		ProgramSize: b.programSize,
		Regions:     b.regions,
		Attachments: b.attachments,
		Singletons:  b.singletons,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
