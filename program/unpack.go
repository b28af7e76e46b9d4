package program

import (
	"encoding/binary"
	"fmt"

	"github.com/pistonite/blueflame/env"
	"github.com/pistonite/blueflame/singleton"
)

// cursor is a tiny bounds-checked byte reader used by Unpack so every
// length prefix is validated against the bytes actually remaining
// before it's trusted.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) remaining() int { return len(c.data) - c.pos }

func (c *cursor) need(n int) error {
	if n < 0 || c.remaining() < n {
		return &CorruptImageError{Reason: fmt.Sprintf("truncated input: need %d bytes, have %d", n, c.remaining())}
	}
	return nil
}

func (c *cursor) readByte() (byte, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) readU32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.data[c.pos : c.pos+4])
	c.pos += 4
	return v, nil
}

func (c *cursor) readU64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(c.data[c.pos : c.pos+8])
	c.pos += 8
	return v, nil
}

func (c *cursor) readBytes(n uint32) ([]byte, error) {
	if err := c.need(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, c.data[c.pos:c.pos+int(n)])
	c.pos += int(n)
	return out, nil
}

// Unpack is the exact inverse of Pack. It validates every length
// prefix against the bytes actually remaining and runs Validate on
// the result before returning.
func Unpack(data []byte) (*Program, error) {
	c := &cursor{data: data}

	tag, err := c.readByte()
	if err != nil {
		return nil, err
	}
	e, ok := envFromTag[tag]
	if !ok {
		return nil, &CorruptImageError{Reason: fmt.Sprintf("unknown environment tag 0x%x", tag)}
	}

	singletonLen, err := c.readU32()
	if err != nil {
		return nil, err
	}
	var singletons []singleton.Info
	if singletonLen > 0 {
		singletons = make([]singleton.Info, 0, singletonLen)
	}
	for i := uint32(0); i < singletonLen; i++ {
		s, err := unpackSingleton(c)
		if err != nil {
			return nil, err
		}
		singletons = append(singletons, s)
	}

	programStart, err := c.readU64()
	if err != nil {
		return nil, err
	}
	programSize, err := c.readU32()
	if err != nil {
		return nil, err
	}

	regionCount, err := c.readU32()
	if err != nil {
		return nil, err
	}
	var regions []Region
	if regionCount > 0 {
		regions = make([]Region, 0, regionCount)
	}
	for i := uint32(0); i < regionCount; i++ {
		relStart, err := c.readU32()
		if err != nil {
			return nil, err
		}
		perms, err := c.readU32()
		if err != nil {
			return nil, err
		}
		dataLen, err := c.readU32()
		if err != nil {
			return nil, err
		}
		regionData, err := c.readBytes(dataLen)
		if err != nil {
			return nil, err
		}
		regions = append(regions, Region{RelStart: relStart, Permissions: perms, Data: regionData})
	}

	var attachments []Attachment
	for c.remaining() > 0 {
		idByte, err := c.readByte()
		if err != nil {
			return nil, err
		}
		dataLen, err := c.readU32()
		if err != nil {
			return nil, err
		}
		attachData, err := c.readBytes(dataLen)
		if err != nil {
			return nil, err
		}
		attachID := env.DataID(idByte)
		if !attachID.Valid() {
			return nil, &CorruptImageError{Reason: fmt.Sprintf("unknown data attachment tag 0x%x", idByte)}
		}
		attachments = append(attachments, Attachment{ID: attachID, Data: attachData})
	}

	p := &Program{
		Env:         e,
		ProgramBase: programStart,
		ProgramSize: programSize,
		Regions:     regions,
		Attachments: attachments,
		Singletons:  singletons,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func unpackSingleton(c *cursor) (singleton.Info, error) {
	idByte, err := c.readByte()
	if err != nil {
		return singleton.Info{}, err
	}
	relStart, err := c.readU32()
	if err != nil {
		return singleton.Info{}, err
	}
	size, err := c.readU32()
	if err != nil {
		return singleton.Info{}, err
	}
	bcLen, err := c.readU32()
	if err != nil {
		return singleton.Info{}, err
	}
	var bytecode []singleton.CreateByteCode
	if bcLen > 0 {
		bytecode = make([]singleton.CreateByteCode, 0, bcLen)
	}
	for i := uint32(0); i < bcLen; i++ {
		tag, err := c.readByte()
		if err != nil {
			return singleton.Info{}, err
		}
		op, ok := byteCodeFromTag[tag]
		if !ok {
			return singleton.Info{}, &CorruptImageError{Reason: fmt.Sprintf("unknown byte code tag 0x%x", tag)}
		}
		bc := singleton.CreateByteCode{Op: op}
		if byteCodeHasPayload(op) {
			target, err := c.readU32()
			if err != nil {
				return singleton.Info{}, err
			}
			bc.Target = target
		}
		bytecode = append(bytecode, bc)
	}
	id := singleton.ID(idByte)
	if !id.Valid() {
		return singleton.Info{}, &CorruptImageError{Reason: fmt.Sprintf("unknown singleton id tag 0x%x", idByte)}
	}
	return singleton.Info{
		ID:       id,
		RelStart: relStart,
		Size:     size,
		ByteCode: bytecode,
	}, nil
}
