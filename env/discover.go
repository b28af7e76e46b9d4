package env

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MissingModuleError is returned when a sibling module file cannot be
// found next to the given sdk path.
type MissingModuleError struct {
	Kind ModuleKind
	Path string
}

func (e *MissingModuleError) Error() string {
	return fmt.Sprintf("missing module %s: expected file at %s", e.Kind, e.Path)
}

// ModulePaths is the resolved filesystem path to each of the four
// modules, derived from the caller-chosen sdk path.
type ModulePaths struct {
	Rtld    string
	Main    string
	Subsdk0 string
	Sdk     string
}

// Path returns the path for the given module kind.
func (p ModulePaths) Path(kind ModuleKind) string {
	switch kind {
	case Rtld:
		return p.Rtld
	case Main:
		return p.Main
	case Subsdk0:
		return p.Subsdk0
	case Sdk:
		return p.Sdk
	default:
		panic(fmt.Sprintf("unknown module kind %v", kind))
	}
}

// DiscoverModulePaths locates the rtld, main, and subsdk0 siblings of
// sdkPath by substituting "sdk" in the filename for each sibling's
// name, in the same directory. sdkPath's filename must contain the
// substring "sdk".
//
// statFile is called to check existence; tests can substitute a fake
// to avoid touching the real filesystem.
func DiscoverModulePaths(sdkPath string, statFile func(string) bool) (ModulePaths, error) {
	dir := filepath.Dir(sdkPath)
	name := filepath.Base(sdkPath)
	if !strings.Contains(name, "sdk") {
		return ModulePaths{}, fmt.Errorf("sdk path filename %q does not contain \"sdk\"", name)
	}

	paths := ModulePaths{
		Sdk:     sdkPath,
		Rtld:    filepath.Join(dir, strings.Replace(name, "sdk", "rtld", 1)),
		Main:    filepath.Join(dir, strings.Replace(name, "sdk", "main", 1)),
		Subsdk0: filepath.Join(dir, strings.Replace(name, "sdk", "subsdk0", 1)),
	}

	for _, kind := range []ModuleKind{Rtld, Main, Subsdk0} {
		p := paths.Path(kind)
		if !statFile(p) {
			return ModulePaths{}, &MissingModuleError{Kind: kind, Path: p}
		}
	}
	return paths, nil
}
