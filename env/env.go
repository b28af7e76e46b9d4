// Package env describes the closed set of supported game builds and
// the per-module memory layout that each build expects.
package env

import "fmt"

// Environment identifies one of the supported combinations of game
// version and DLC presence.
type Environment uint8

const (
	X150 Environment = iota + 1
	X160
	X150DLC
	X160DLC
)

func (e Environment) String() string {
	switch e {
	case X150:
		return "1.5.0"
	case X160:
		return "1.6.0"
	case X150DLC:
		return "1.5.0+DLC"
	case X160DLC:
		return "1.6.0+DLC"
	default:
		return fmt.Sprintf("Environment(%d)", uint8(e))
	}
}

// IsX160 reports whether the environment is built on the 1.6.0 layout.
func (e Environment) IsX160() bool {
	return e == X160 || e == X160DLC
}

// WithDLC returns the DLC variant of e's version family. The module
// ELFs are identical with or without DLC (DLC ships as additional
// romfs data, not code), so this only affects which Environment tag
// callers attach to the resulting program image.
func (e Environment) WithDLC(dlc bool) Environment {
	switch e {
	case X150, X150DLC:
		if dlc {
			return X150DLC
		}
		return X150
	case X160, X160DLC:
		if dlc {
			return X160DLC
		}
		return X160
	default:
		return e
	}
}

// Valid reports whether e is one of the four closed tag values.
func (e Environment) Valid() bool {
	switch e {
	case X150, X160, X150DLC, X160DLC:
		return true
	default:
		return false
	}
}

// ModuleKind is one of the four statically linked ELF components that
// make up a running program. Order matters: modules are loaded and
// relocated in this declaration order.
type ModuleKind uint8

const (
	Rtld ModuleKind = iota
	Main
	Subsdk0
	Sdk
)

// Kinds lists every ModuleKind in load order.
var Kinds = [...]ModuleKind{Rtld, Main, Subsdk0, Sdk}

func (m ModuleKind) String() string {
	switch m {
	case Rtld:
		return "rtld"
	case Main:
		return "main"
	case Subsdk0:
		return "subsdk0"
	case Sdk:
		return "sdk"
	default:
		return fmt.Sprintf("ModuleKind(%d)", uint8(m))
	}
}

// ModuleInfo is the expected load layout for one module, relative to
// the program base. All three offsets are page (0x1000) multiples.
type ModuleInfo struct {
	// Start is where the module's first PT_LOAD segment is placed,
	// relative to the program base.
	Start uint32
	// TextEnd is the expected offset right after the module's RX
	// segment; used as an assertion checkpoint during loading.
	TextEnd uint32
	// End is the expected offset right after the module's last
	// PT_LOAD segment.
	End uint32
}

// Modules is the canonical per-environment layout of all four modules.
type Modules struct {
	Rtld    ModuleInfo
	Main    ModuleInfo
	Subsdk0 ModuleInfo
	Sdk     ModuleInfo
}

// Info returns the ModuleInfo for the given kind.
func (m Modules) Info(kind ModuleKind) ModuleInfo {
	switch kind {
	case Rtld:
		return m.Rtld
	case Main:
		return m.Main
	case Subsdk0:
		return m.Subsdk0
	case Sdk:
		return m.Sdk
	default:
		panic(fmt.Sprintf("unknown module kind %v", kind))
	}
}

// ProgramSize is the total size of the loaded program image, which is
// the end offset of the last module (sdk).
func (m Modules) ProgramSize() uint32 {
	return m.Sdk.End
}

// LayoutFor returns the canonical module layout for an environment.
//
// The DLC variants share their base game's module layout: DLC content
// ships as additional romfs data, not additional executable code, so
// the four ELF modules (and therefore their offsets) are identical
// between an environment and its DLC counterpart.
func LayoutFor(e Environment) Modules {
	if e.IsX160() {
		return modules160
	}
	return modules150
}

// The Start and End offsets come from the shipped 1.5.0 and 1.6.0 game
// binaries. The TextEnd values are page-aligned placeholders inside
// each module's [Start, End) range, not taken from those binaries; the
// module loader asserts them right after emitting each module's RX
// (permissions==5) segment.
var modules150 = Modules{
	Rtld: ModuleInfo{Start: 0x0, TextEnd: 0x1000, End: 0x2000},
	Main: ModuleInfo{Start: 0x4000, TextEnd: 0x1400000, End: 0x1807000},
	Subsdk0: ModuleInfo{
		Start: 0x26af000, TextEnd: 0x2880000, End: 0x29ba000,
	},
	Sdk: ModuleInfo{Start: 0x2d95000, TextEnd: 0x3050000, End: 0x31a4000},
}

var modules160 = Modules{
	Rtld: ModuleInfo{Start: 0x0, TextEnd: 0x1000, End: 0x2000},
	Main: ModuleInfo{Start: 0x4000, TextEnd: 0x1e00000, End: 0x212e000},
	Subsdk0: ModuleInfo{
		Start: 0x2d6a000, TextEnd: 0x2f50000, End: 0x30de000,
	},
	Sdk: ModuleInfo{Start: 0x3487000, TextEnd: 0x3750000, End: 0x39b5000},
}

// DataID identifies an auxiliary named byte blob attached to a
// program image.
type DataID uint8

const (
	ActorInfoByml DataID = iota + 1
)

func (d DataID) String() string {
	switch d {
	case ActorInfoByml:
		return "ActorInfoByml"
	default:
		return fmt.Sprintf("DataID(%d)", uint8(d))
	}
}

// Valid reports whether d is a recognized DataID tag.
func (d DataID) Valid() bool {
	switch d {
	case ActorInfoByml:
		return true
	default:
		return false
	}
}
