// Package singleton stores (without interpreting) the allocation and
// construction byte-code for runtime singletons. Interpretation is a
// downstream simulator's responsibility; this package only models the
// contract it consumes.
package singleton

import "fmt"

// ID identifies a singleton kind.
type ID uint8

const (
	PauseMenuDataMgr ID = iota + 1
)

func (i ID) String() string {
	switch i {
	case PauseMenuDataMgr:
		return "PauseMenuDataMgr"
	default:
		return fmt.Sprintf("ID(%d)", uint8(i))
	}
}

// Valid reports whether i is a recognized singleton ID.
func (i ID) Valid() bool {
	switch i {
	case PauseMenuDataMgr:
		return true
	default:
		return false
	}
}

// ByteCodeOp tags the variant of a CreateByteCode entry.
type ByteCodeOp uint8

const (
	OpEnter ByteCodeOp = iota + 1
	OpExecuteUntil
	OpAllocate
	OpJump
	OpExecuteToReturn
	OpReturn
)

// CreateByteCode is one step of a singleton's construction sequence.
// Enter, ExecuteUntil, and Jump carry a target offset; Allocate,
// ExecuteToReturn, and Return carry none.
type CreateByteCode struct {
	Op     ByteCodeOp
	Target uint32
}

func Enter(target uint32) CreateByteCode {
	return CreateByteCode{Op: OpEnter, Target: target}
}

func ExecuteUntil(target uint32) CreateByteCode {
	return CreateByteCode{Op: OpExecuteUntil, Target: target}
}

func Allocate() CreateByteCode { return CreateByteCode{Op: OpAllocate} }

func Jump(target uint32) CreateByteCode {
	return CreateByteCode{Op: OpJump, Target: target}
}

func ExecuteToReturn() CreateByteCode { return CreateByteCode{Op: OpExecuteToReturn} }

func Return() CreateByteCode { return CreateByteCode{Op: OpReturn} }

// Info is the allocation and initialization recipe for one singleton
// instance: where it lives in the heap and how to construct it.
type Info struct {
	ID       ID
	RelStart uint32
	Size     uint32
	ByteCode []CreateByteCode
}

// Creator is the capability interface a downstream simulator
// implements to actually carry out singleton construction. This
// package never calls it; it exists purely as the documented contract
// for Info.ByteCode.
type Creator interface {
	// SetMainRelPC sets PC relative to the start of the main module
	// without otherwise touching CPU state.
	SetMainRelPC(pc uint32) error
	// Enter treats target as a function start, sets up SP, and jumps.
	Enter(target uint32) error
	// ExecuteUntil runs until the next instruction is at target
	// (relative to the main module).
	ExecuteUntil(target uint32) error
	// Allocate simulates allocating the singleton and places its
	// address in X0.
	Allocate(relStart, size uint32) error
	// ExecuteToReturn runs until control leaves the construction
	// function.
	ExecuteToReturn() error
	// Stop marks singleton construction complete.
	Stop() error
}

// CreateInstance replays info's byte code against a Creator.
func CreateInstance(info Info, creator Creator) error {
	for _, op := range info.ByteCode {
		var err error
		switch op.Op {
		case OpEnter:
			err = creator.Enter(op.Target)
		case OpExecuteUntil:
			err = creator.ExecuteUntil(op.Target)
		case OpAllocate:
			err = creator.Allocate(info.RelStart, info.Size)
		case OpJump:
			err = creator.SetMainRelPC(op.Target)
		case OpExecuteToReturn:
			err = creator.ExecuteToReturn()
		case OpReturn:
			err = creator.Stop()
		default:
			err = fmt.Errorf("unknown singleton byte code op %d", op.Op)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// MainOffset returns the offset (relative to the main module's start)
// of the singleton's static instance pointer variable, i.e.
// program_start + main.Start + offset holds a Singleton*.
func (i ID) MainOffset(isX160 bool) (uint32, error) {
	switch i {
	case PauseMenuDataMgr:
		if isX160 {
			return 0x2ca6d50, nil
		}
		return 0x25d75b8, nil
	default:
		return 0, fmt.Errorf("unknown singleton id %d", uint8(i))
	}
}

// NewPauseMenuDataMgr builds the allocation/construction recipe for
// the PauseMenuDataMgr singleton on the 1.5.0 layout.
//
// relStart is a required input: the original game's true heap offset
// for this singleton is undetermined (the upstream project leaves it
// as a 0xAAAA_AAA0 placeholder). Callers must supply the real value
// rather than have this package guess one.
func NewPauseMenuDataMgr(relStart uint32, isX160 bool) (Info, error) {
	if isX160 {
		return Info{}, fmt.Errorf("PauseMenuDataMgr construction sequence is not yet known for the 1.6.0 layout")
	}
	return Info{
		ID:       PauseMenuDataMgr,
		RelStart: relStart,
		Size:     0x44808,
		ByteCode: []CreateByteCode{
			Enter(0x0096b1cc),
			ExecuteToReturn(),
			Jump(0x0096b23c),
			Allocate(),
			ExecuteUntil(0x0096b23c + 4),
			Return(),
		},
	}, nil
}
