// Package version implements semantic version parsing and ordering for
// registry version resolution.
package version

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// Version is a parsed semantic version. The original string is kept so
// protocol responses echo exactly what was published.
type Version struct {
	raw    string
	parsed *semver.Version
}

// Parse parses a version string under strict semver rules: all of
// MAJOR.MINOR.PATCH present, no leading zeros, no "v" prefix. Optional
// pre-release and build metadata are accepted.
func Parse(s string) (Version, error) {
	v, err := semver.StrictNewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("invalid semantic version %q: %w", s, err)
	}
	return Version{raw: s, parsed: v}, nil
}

// MustParse is like Parse but panics on error. For tests and constants.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsValid reports whether s is a syntactically valid semantic version
func IsValid(s string) bool {
	_, err := semver.StrictNewVersion(s)
	return err == nil
}

// String returns the original version string
func (v Version) String() string {
	return v.raw
}

// Compare returns -1, 0 or 1 per semver precedence. Pre-release
// versions sort before the corresponding normal version; build metadata
// is ignored for ordering.
func (v Version) Compare(o Version) int {
	return v.parsed.Compare(o.parsed)
}

// SortDescending sorts versions in place, highest precedence first.
// The sort is stable so equal-precedence versions (differing only in
// build metadata) keep their input order.
func SortDescending(versions []Version) {
	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].Compare(versions[j]) > 0
	})
}
