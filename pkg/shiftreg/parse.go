package shiftreg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mbalug7/go-gpio-devices/pkg/hal"
)

// ParseValue parses an integer in Go literal syntax: 178, 0xb2, 0b10110010
// or 0o262.
func ParseValue(s string) (int, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 16)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %q: %w: %w", s, hal.ErrInvalidValue, err)
	}
	if v > 0xFF {
		return 0, fmt.Errorf("value %d does not fit in 8 bits: %w", v, hal.ErrInvalidValue)
	}
	return int(v), nil
}

// ParseBits parses the per-output form: exactly eight '0'/'1' characters
// where character n is the level of output Qn.
func ParseBits(s string) (int, error) {
	if len(s) != 8 {
		return 0, fmt.Errorf("expected 8 bits, got %q: %w", s, hal.ErrInvalidValue)
	}
	v := 0
	for n := 0; n < 8; n++ {
		switch s[n] {
		case '0':
		case '1':
			v |= 1 << n
		default:
			return 0, fmt.Errorf("invalid bit %q at position %d: %w", s[n], n, hal.ErrInvalidValue)
		}
	}
	return v, nil
}
