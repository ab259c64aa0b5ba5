// Package version provides controller firmware version parsing and the
// capability checks that gate command encoding.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is the firmware version reported by the robot controller,
// e.g. "5.9.4.1031". Build is optional and zero when not reported.
type Version struct {
	Major  uint32
	Minor  uint32
	Bugfix uint32
	Build  uint32
}

// Parse parses a "major.minor[.bugfix[.build]]" version string.
func Parse(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) < 2 || len(parts) > 4 {
		return Version{}, fmt.Errorf("invalid version %q: expected 2 to 4 components", s)
	}

	var fields [4]uint32
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil || part == "" {
			return Version{}, fmt.Errorf("invalid version %q: bad component %q", s, part)
		}
		fields[i] = uint32(n)
	}

	return Version{Major: fields[0], Minor: fields[1], Bugfix: fields[2], Build: fields[3]}, nil
}

// String returns the version as "major.minor.bugfix.build", omitting a
// zero build.
func (v Version) String() string {
	if v.Build == 0 {
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Bugfix)
	}
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Bugfix, v.Build)
}

// IsZero reports whether the version is unset.
func (v Version) IsZero() bool {
	return v == Version{}
}

// AtLeast reports whether v is major.minor or newer.
func (v Version) AtLeast(major, minor uint32) bool {
	if v.Major != major {
		return v.Major > major
	}
	return v.Minor >= minor
}

// SupportsGainScaling reports whether the firmware accepts the
// gain-scaling parameter in force-mode start commands. Older firmware
// rejects frames carrying the extra word, so callers must select the
// command shape with this check before encoding.
func (v Version) SupportsGainScaling() bool {
	return v.Major >= 5
}
