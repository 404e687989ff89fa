// Package versioncheck compares the running mod version with the latest
// published release.
package versioncheck

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/VplusR/VplusReforged/errors"
)

// Version is a dotted numeric version with two to four components.
type Version []int

// Parse parses "major.minor[.build[.revision]]" with an optional leading "v".
func Parse(s string) (Version, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "v"), "V")
	parts := strings.Split(trimmed, ".")
	if len(parts) < 2 || len(parts) > 4 {
		return nil, fmt.Errorf("version %q must have 2 to 4 components: %w", s, errors.ErrParsingFailed)
	}

	v := make(Version, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("version %q component %q: %w", s, part, errors.ErrParsingFailed)
		}
		v[i] = n
	}
	return v, nil
}

// Compare returns -1, 0 or 1 as a is older than, equal to or newer than b.
// Missing trailing components count as zero.
func Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}

	for i := 0; i < max(len(va), len(vb)); i++ {
		x, y := component(va, i), component(vb, i)
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
	}
	return 0, nil
}

func component(v Version, i int) int {
	if i < len(v) {
		return v[i]
	}
	return 0
}
