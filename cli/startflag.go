package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// InvalidProgramStartError is returned when a program base address
// fails the alignment mask check.
type InvalidProgramStartError struct {
	Value uint64
}

func (e *InvalidProgramStartError) Error() string {
	return fmt.Sprintf("program start 0x%x violates alignment mask 0xFFFFFF00000FFFFF", e.Value)
}

// ParseProgramStart parses the -s/--start value (leading "0x" or "0X"
// optional) and checks the §4.1 alignment invariant.
func ParseProgramStart(input string) (uint64, error) {
	s := strings.TrimPrefix(strings.TrimPrefix(input, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hex start address %q: %w", input, err)
	}
	if v&0xFFFFFF00_000FFFFF != 0 {
		return 0, &InvalidProgramStartError{Value: v}
	}
	return v, nil
}
