package elfmod

import (
	"encoding/binary"
	"testing"

	"github.com/pistonite/blueflame/env"
	"github.com/pistonite/blueflame/region"
)

type testSegment struct {
	flags uint32 // ELF p_flags bitmask
	data  []byte
	memSz uint32
}

// buildAArch64ELF assembles a minimal, section-less AArch64 ELF64
// image with one PT_LOAD header per segment, placed contiguously
// starting at vaddr 0.
func buildAArch64ELF(t *testing.T, segments []testSegment) []byte {
	t.Helper()

	const ehdrSize = 64
	const phdrSize = 56
	phoff := uint64(ehdrSize)
	dataOff := phoff + uint64(len(segments))*phdrSize

	buf := make([]byte, dataOff)

	// e_ident
	copy(buf[0:4], []byte{0x7f, 'E', 'L', 'F'})
	buf[4] = 2 // ELFCLASS64
	buf[5] = 1 // ELFDATA2LSB
	buf[6] = 1 // EI_VERSION

	le := binary.LittleEndian
	le.PutUint16(buf[16:18], 3)   // e_type = ET_DYN
	le.PutUint16(buf[18:20], 183) // e_machine = EM_AARCH64
	le.PutUint32(buf[20:24], 1)   // e_version
	le.PutUint64(buf[24:32], 0)   // e_entry
	le.PutUint64(buf[32:40], phoff)
	le.PutUint64(buf[40:48], 0) // e_shoff
	le.PutUint32(buf[48:52], 0) // e_flags
	le.PutUint16(buf[52:54], ehdrSize)
	le.PutUint16(buf[54:56], phdrSize)
	le.PutUint16(buf[56:58], uint16(len(segments)))
	le.PutUint16(buf[58:60], 64) // e_shentsize, unused
	le.PutUint16(buf[60:62], 0)  // e_shnum
	le.PutUint16(buf[62:64], 0)  // e_shstrndx

	vaddr := uint64(0)
	for i, seg := range segments {
		segOff := uint64(len(buf))
		buf = append(buf, seg.data...)

		phOff := phoff + uint64(i)*phdrSize
		ph := buf[phOff : phOff+phdrSize]
		le.PutUint32(ph[0:4], 1)        // p_type = PT_LOAD
		le.PutUint32(ph[4:8], seg.flags)
		le.PutUint64(ph[8:16], segOff)  // p_offset
		le.PutUint64(ph[16:24], vaddr)  // p_vaddr
		le.PutUint64(ph[24:32], vaddr)  // p_paddr
		le.PutUint64(ph[32:40], uint64(len(seg.data))) // p_filesz
		le.PutUint64(ph[40:48], uint64(seg.memSz))     // p_memsz
		le.PutUint64(ph[48:56], region.PageSize)       // p_align

		numPages := seg.memSz / region.PageSize
		if seg.memSz%region.PageSize != 0 {
			numPages++
		}
		vaddr += uint64(numPages) * region.PageSize
	}

	return buf
}

func TestParseRejectsWrongMachine(t *testing.T) {
	data := buildAArch64ELF(t, nil)
	// flip e_machine to something else
	binary.LittleEndian.PutUint16(data[18:20], 0x3e) // EM_X86_64
	if _, err := Parse(env.Main, data); err == nil {
		t.Fatal("expected BadELFError for wrong machine")
	}
}

func TestLoadSingleSegment(t *testing.T) {
	page := make([]byte, region.PageSize)
	copy(page, []byte{1, 2, 3, 4})
	data := buildAArch64ELF(t, []testSegment{
		{flags: 5, data: page, memSz: region.PageSize}, // RX
	})

	loaded, err := Parse(env.Main, data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	info := env.ModuleInfo{Start: 0x4000, TextEnd: 0x5000, End: 0x5000}
	regions, err := Load(loaded, info, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(regions) != 1 {
		t.Fatalf("expected 1 region, got %d", len(regions))
	}
	if regions[0].RelStart != 0x4000 {
		t.Errorf("RelStart = 0x%x, want 0x4000", regions[0].RelStart)
	}
	if regions[0].Permissions != region.PermRead|region.PermExec {
		t.Errorf("Permissions = %s, want r-x", regions[0].Permissions)
	}
}

func TestLoadLayoutMismatch(t *testing.T) {
	page := make([]byte, region.PageSize)
	data := buildAArch64ELF(t, []testSegment{
		{flags: 5, data: page, memSz: region.PageSize},
	})
	loaded, err := Parse(env.Main, data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// Wrong End: the single RX page ends at 0x5000, not 0x6000.
	info := env.ModuleInfo{Start: 0x4000, TextEnd: 0x5000, End: 0x6000}
	if _, err := Load(loaded, info, nil); err == nil {
		t.Fatal("expected LayoutMismatchError")
	}
}

func TestLoadMultipleSegmentsAccumulatesRegions(t *testing.T) {
	rx := make([]byte, region.PageSize)
	rw := make([]byte, region.PageSize)
	data := buildAArch64ELF(t, []testSegment{
		{flags: 5, data: rx, memSz: region.PageSize}, // RX
		{flags: 6, data: rw, memSz: region.PageSize}, // RW
	})
	loaded, err := Parse(env.Main, data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	info := env.ModuleInfo{Start: 0, TextEnd: region.PageSize, End: 2 * region.PageSize}
	regions, err := Load(loaded, info, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(regions))
	}
	if regions[1].RelStart != region.PageSize {
		t.Errorf("second region RelStart = 0x%x, want 0x%x", regions[1].RelStart, region.PageSize)
	}
}

func TestLoadMissingSegments(t *testing.T) {
	data := buildAArch64ELF(t, nil)
	loaded, err := Parse(env.Main, data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := Load(loaded, env.ModuleInfo{}, nil); err == nil {
		t.Fatal("expected MissingSegmentsError")
	}
}
