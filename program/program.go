// Package program models the final, relocated program image: the
// structure that gets packed into the binary container a downstream
// emulator loads. It also implements the staged builder that is the
// only legal way to construct one, and the length-prefixed packer and
// its inverse unpacker.
package program

import (
	"fmt"

	"github.com/pistonite/blueflame/env"
	"github.com/pistonite/blueflame/singleton"
)

// Region is one contiguous, page-aligned byte range of the final
// image, tagged with the permissions of its source ELF segment.
type Region struct {
	RelStart    uint32
	Permissions uint32
	Data        []byte
}

// Attachment is an auxiliary named byte blob carried alongside the
// program image (e.g. decompressed game-data tables).
type Attachment struct {
	ID   env.DataID
	Data []byte
}

// Program is the complete, immutable program image: the only way to
// construct one is through NewBuilder's staged phases, which is what
// guarantees every length prefix agrees with its payload.
type Program struct {
	Env         env.Environment
	ProgramBase uint64
	ProgramSize uint32
	Regions     []Region
	Attachments []Attachment
	Singletons  []singleton.Info
}

// CorruptImageError is returned by Unpack (or by Validate) when a
// Program's invariants don't hold.
type CorruptImageError struct {
	Reason string
}

func (e *CorruptImageError) Error() string {
	return fmt.Sprintf("corrupt program image: %s", e.Reason)
}

const pageSize = 0x1000

// Validate checks the Program invariants: a known environment tag, an
// aligned program base, and page-multiple program size, region starts
// and region lengths, with regions in ascending, non-overlapping
// order. It does not check that the regions cover [0, ProgramSize).
func (p *Program) Validate() error {
	if !p.Env.Valid() {
		return &CorruptImageError{Reason: fmt.Sprintf("unknown environment tag %d", uint8(p.Env))}
	}
	if p.ProgramBase&0xFFFFFF00_000FFFFF != 0 {
		return &CorruptImageError{Reason: fmt.Sprintf("program base 0x%x is not 1 MiB-aligned within the low 40 bits", p.ProgramBase)}
	}
	if p.ProgramSize%pageSize != 0 {
		return &CorruptImageError{Reason: fmt.Sprintf("program size 0x%x is not a page multiple", p.ProgramSize)}
	}
	var prevEnd uint32
	for i, r := range p.Regions {
		if r.RelStart%pageSize != 0 {
			return &CorruptImageError{Reason: fmt.Sprintf("region %d rel_start 0x%x is not a page multiple", i, r.RelStart)}
		}
		if uint32(len(r.Data))%pageSize != 0 {
			return &CorruptImageError{Reason: fmt.Sprintf("region %d data length 0x%x is not a page multiple", i, len(r.Data))}
		}
		if r.RelStart < prevEnd {
			return &CorruptImageError{Reason: fmt.Sprintf("region %d overlaps the previous region", i)}
		}
		prevEnd = r.RelStart + uint32(len(r.Data))
	}
	return nil
}
