package program

import (
	"testing"

	"github.com/pistonite/blueflame/env"
)

func TestBuilderHappyPath(t *testing.T) {
	b := NewBuilder(env.X150, 0x8000_0000, 0x3000)
	b.AddModule(env.Rtld, 0).AddModule(env.Main, 0x2000)

	sections := b.DoneWithModules()
	sections.AddSection(0x2000, 5).AddSection(0, 6)

	segments := sections.DoneWithSections()
	segments.AddSegment(0, make([]byte, pageSize))
	segments.AddSegment(0x2000, make([]byte, pageSize))

	attachments, err := segments.DoneWithSegments()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := attachments.Done()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(p.Regions))
	}
	// DoneWithSegments sorts ascending by rel_start regardless of
	// declaration order.
	if p.Regions[0].RelStart != 0 || p.Regions[1].RelStart != 0x2000 {
		t.Errorf("regions not sorted ascending: %+v", p.Regions)
	}
}

func TestBuilderDuplicateSection(t *testing.T) {
	b := NewBuilder(env.X150, 0x8000_0000, 0x1000)
	sections := b.DoneWithModules()
	sections.AddSection(0, 5).AddSection(0, 6)
	segments := sections.DoneWithSections()
	segments.AddSegment(0, make([]byte, pageSize))
	if _, err := segments.DoneWithSegments(); err == nil {
		t.Fatal("expected DuplicateSectionError")
	}
}

func TestBuilderMissingSegment(t *testing.T) {
	b := NewBuilder(env.X150, 0x8000_0000, 0x1000)
	sections := b.DoneWithModules()
	sections.AddSection(0, 5)
	segments := sections.DoneWithSections()
	// no AddSegment call for rel_start 0
	if _, err := segments.DoneWithSegments(); err == nil {
		t.Fatal("expected MissingSegmentError")
	}
}

func TestBuilderPropagatesValidateErrors(t *testing.T) {
	b := NewBuilder(env.Environment(0), 0x8000_0000, 0x1000)
	sections := b.DoneWithModules()
	segments := sections.DoneWithSections()
	attachments, err := segments.DoneWithSegments()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := attachments.Done(); err == nil {
		t.Fatal("expected Validate to reject the unknown environment tag")
	}
}
