// Package romfs locates and loads the game-data files attached to a
// packed program image: the romfs directory that ships alongside the
// SDK exefs, and the Yaz0-or-plain BYML blobs inside it.
package romfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pistonite/blueflame/env"
	"github.com/pistonite/blueflame/program"
)

// actorInfoRelPath is the romfs-relative path to the actor info table,
// tried first as .sbyml and, failing that, as .byml.
const actorInfoRelPath = "Actor/ActorInfo.product.sbyml"

// NotFoundError is returned when a required romfs file cannot be
// located under any of the searched roots.
type NotFoundError struct {
	File string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("could not find %s under any romfs root", e.File)
}

// Romfs holds the resolved paths to game-data files needed to build a
// program image.
type Romfs struct {
	ActorInfo string
}

// statFile reports whether path names a regular file. Exposed as a
// var so tests can fake the filesystem without touching disk.
var statFile = func(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// isDir reports whether path names a directory.
var isDir = func(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// FindPaths resolves the romfs files needed for packing, searching (in
// order): an explicit override directory, "<sdk-dir>/romfs", then
// "<sdk-dir>/../romfs". Each candidate root is tried with the
// requested extension and its .sbyml/.byml counterpart.
func FindPaths(sdkPath string, romfsOverride string) (*Romfs, error) {
	exefsDir := filepath.Dir(sdkPath)

	actorInfo, err := findRomfsFile(exefsDir, romfsOverride, actorInfoRelPath)
	if err != nil {
		return nil, err
	}
	return &Romfs{ActorInfo: actorInfo}, nil
}

func findRomfsFile(exefsDir, romfsOverride, file string) (string, error) {
	if romfsOverride != "" {
		if path, ok := findFileInRomfsRoot(romfsOverride, file); ok {
			return path, nil
		}
		return "", &NotFoundError{File: file}
	}

	if root := filepath.Join(exefsDir, "romfs"); isDir(root) {
		if path, ok := findFileInRomfsRoot(root, file); ok {
			return path, nil
		}
	}
	parent := filepath.Dir(exefsDir)
	if root := filepath.Join(parent, "romfs"); isDir(root) {
		if path, ok := findFileInRomfsRoot(root, file); ok {
			return path, nil
		}
	}
	return "", &NotFoundError{File: file}
}

// findFileInRomfsRoot tries file under root, then its .sbyml/.byml
// counterpart if file ends in the other extension.
func findFileInRomfsRoot(root, file string) (string, bool) {
	path := filepath.Join(root, filepath.FromSlash(file))
	if statFile(path) {
		return path, true
	}
	switch {
	case strings.HasSuffix(file, ".sbyml"):
		alt := strings.TrimSuffix(path, ".sbyml") + ".byml"
		if statFile(alt) {
			return alt, true
		}
	case strings.HasSuffix(file, ".byml"):
		alt := strings.TrimSuffix(path, ".byml") + ".sbyml"
		if statFile(alt) {
			return alt, true
		}
	}
	return "", false
}

// LoadActorInfoAttachment reads and Yaz0-decompresses the actor info
// table, returning it as a program.Attachment ready for the builder.
func (r *Romfs) LoadActorInfoAttachment(readFile func(string) ([]byte, error)) (program.Attachment, error) {
	raw, err := readFile(r.ActorInfo)
	if err != nil {
		return program.Attachment{}, fmt.Errorf("romfs: reading %s: %w", r.ActorInfo, err)
	}
	decompressed, err := DecompressIfYaz0(raw)
	if err != nil {
		return program.Attachment{}, fmt.Errorf("romfs: decompressing %s: %w", r.ActorInfo, err)
	}
	return program.Attachment{ID: env.ActorInfoByml, Data: decompressed}, nil
}
