package env

import (
	"bytes"
	"fmt"
)

// UnrecognizedVersionError is returned when the sdk module's bytes
// contain zero or more than one of the known version strings.
type UnrecognizedVersionError struct {
	Found []string
}

func (e *UnrecognizedVersionError) Error() string {
	if len(e.Found) == 0 {
		return "unrecognized sdk version: no known version string found"
	}
	return fmt.Sprintf("unrecognized sdk version: found multiple candidates %v", e.Found)
}

var versionMarkers = []struct {
	needle string
	env    Environment
}{
	{"sdk_version: 4.4.0", X150},
	{"sdk_version: 7.3.2", X160},
}

// DetectVersion fingerprints the sdk module's raw bytes against the
// known embedded version strings. Exactly one marker must be present.
//
// File digests are unreliable because distribution/decompression
// paths differ bit-for-bit from the original dump; the embedded
// version string survives all of them.
func DetectVersion(sdkData []byte) (Environment, error) {
	var found []string
	var selected Environment
	for _, marker := range versionMarkers {
		if bytes.Contains(sdkData, []byte(marker.needle)) {
			found = append(found, marker.needle)
			selected = marker.env
		}
	}
	if len(found) != 1 {
		return 0, &UnrecognizedVersionError{Found: found}
	}
	return selected, nil
}
