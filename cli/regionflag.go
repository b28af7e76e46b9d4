package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pistonite/blueflame/env"
	"github.com/pistonite/blueflame/slicer"
)

// ParseRegionFilterError reports a malformed -r/--regions value.
type ParseRegionFilterError struct {
	Input  string
	Reason string
}

func (e *ParseRegionFilterError) Error() string {
	return fmt.Sprintf("invalid region filter %q: %s", e.Input, e.Reason)
}

var moduleTokens = map[string]env.ModuleKind{
	"rtld":      env.Rtld,
	"nnrtld":    env.Rtld,
	"main":      env.Main,
	"uking":     env.Main,
	"u-king":    env.Main,
	"subsdk0":   env.Subsdk0,
	"multimedia": env.Subsdk0,
	"sdk":       env.Sdk,
	"nnsdk":     env.Sdk,
}

// ParseRegionFilter parses one -r/--regions value per the grammar
// "([module]:)?HEX-HEX". The module token has its optional ".nss"
// suffix trimmed and is case-folded before lookup. With no colon, or
// with an empty token before the colon, the module is Rtld; a
// non-empty token that is not a known alias is a parse error.
func ParseRegionFilter(input string) (slicer.Filter, error) {
	spec := input
	module := env.Rtld

	if idx := strings.LastIndex(spec, ":"); idx >= 0 {
		token := spec[:idx]
		spec = spec[idx+1:]
		token = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(token)), ".nss")
		if token == "" {
			module = env.Rtld
		} else {
			kind, ok := moduleTokens[token]
			if !ok {
				return slicer.Filter{}, &ParseRegionFilterError{Input: input, Reason: fmt.Sprintf("unrecognized module token %q", token)}
			}
			module = kind
		}
	}

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return slicer.Filter{}, &ParseRegionFilterError{Input: input, Reason: "expected HEX-HEX range"}
	}
	start, err := parseHex32(parts[0])
	if err != nil {
		return slicer.Filter{}, &ParseRegionFilterError{Input: input, Reason: err.Error()}
	}
	end, err := parseHex32(parts[1])
	if err != nil {
		return slicer.Filter{}, &ParseRegionFilterError{Input: input, Reason: err.Error()}
	}
	if !(start < end) {
		return slicer.Filter{}, &ParseRegionFilterError{Input: input, Reason: "start must be less than end"}
	}
	return slicer.Filter{Module: module, Start: start, End: end}, nil
}

// ParseRegionFilters parses every -r/--regions occurrence.
func ParseRegionFilters(inputs []string) ([]slicer.Filter, error) {
	filters := make([]slicer.Filter, 0, len(inputs))
	for _, in := range inputs {
		f, err := ParseRegionFilter(in)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

func parseHex32(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.TrimPrefix(s, "X")
	if s == "" {
		return 0, fmt.Errorf("empty hex value")
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("not a valid 32-bit hex value: %w", err)
	}
	return uint32(v), nil
}
