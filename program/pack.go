package program

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pistonite/blueflame/env"
	"github.com/pistonite/blueflame/singleton"
)

var envTags = map[env.Environment]byte{
	env.X150:    0x01,
	env.X160:    0x02,
	env.X150DLC: 0x03,
	env.X160DLC: 0x04,
}

var envFromTag = map[byte]env.Environment{
	0x01: env.X150,
	0x02: env.X160,
	0x03: env.X150DLC,
	0x04: env.X160DLC,
}

var byteCodeTags = map[singleton.ByteCodeOp]byte{
	singleton.OpEnter:           0x01,
	singleton.OpExecuteUntil:    0x02,
	singleton.OpAllocate:        0x03,
	singleton.OpJump:            0x04,
	singleton.OpExecuteToReturn: 0x05,
	singleton.OpReturn:          0x06,
}

var byteCodeFromTag = map[byte]singleton.ByteCodeOp{
	0x01: singleton.OpEnter,
	0x02: singleton.OpExecuteUntil,
	0x03: singleton.OpAllocate,
	0x04: singleton.OpJump,
	0x05: singleton.OpExecuteToReturn,
	0x06: singleton.OpReturn,
}

// byteCodeHasPayload reports whether a CreateByteCode op is followed
// by a u32 target.
func byteCodeHasPayload(op singleton.ByteCodeOp) bool {
	switch op {
	case singleton.OpEnter, singleton.OpExecuteUntil, singleton.OpJump:
		return true
	default:
		return false
	}
}

// Pack serializes p per the §4.7 wire format. p must already satisfy
// Validate (NewBuilder's Done guarantees this).
func Pack(p *Program) ([]byte, error) {
	tag, ok := envTags[p.Env]
	if !ok {
		return nil, &CorruptImageError{Reason: fmt.Sprintf("unknown environment %v", p.Env)}
	}

	var buf bytes.Buffer
	buf.WriteByte(tag)

	writeU32(&buf, uint32(len(p.Singletons)))
	for _, s := range p.Singletons {
		if err := packSingleton(&buf, s); err != nil {
			return nil, err
		}
	}

	writeU64(&buf, p.ProgramBase)
	writeU32(&buf, p.ProgramSize)

	writeU32(&buf, uint32(len(p.Regions)))
	for _, r := range p.Regions {
		writeU32(&buf, r.RelStart)
		writeU32(&buf, r.Permissions)
		writeU32(&buf, uint32(len(r.Data)))
		buf.Write(r.Data)
	}

	for _, a := range p.Attachments {
		buf.WriteByte(byte(a.ID))
		writeU32(&buf, uint32(len(a.Data)))
		buf.Write(a.Data)
	}

	return buf.Bytes(), nil
}

func packSingleton(buf *bytes.Buffer, s singleton.Info) error {
	buf.WriteByte(byte(s.ID))
	writeU32(buf, s.RelStart)
	writeU32(buf, s.Size)
	writeU32(buf, uint32(len(s.ByteCode)))
	for _, bc := range s.ByteCode {
		tag, ok := byteCodeTags[bc.Op]
		if !ok {
			return &CorruptImageError{Reason: fmt.Sprintf("unknown byte code op %v", bc.Op)}
		}
		buf.WriteByte(tag)
		if byteCodeHasPayload(bc.Op) {
			writeU32(buf, bc.Target)
		}
	}
	return nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
