package versionrange

import (
	"cmp"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is a NuGet version: a semantic version plus an optional fourth
// numeric segment, the revision.
type Version struct {
	sem      *semver.Version
	revision uint64
	raw      string
}

var fourPart = regexp.MustCompile(`^(\d+\.\d+\.\d+)\.(\d+)([-+].*)?$`)

// ParseVersion parses a NuGet version with one to four numeric segments.
func ParseVersion(s string) (*Version, error) {
	s = strings.TrimSpace(s)
	v := &Version{raw: s}
	base := s
	if m := fourPart.FindStringSubmatch(s); m != nil {
		rev, err := strconv.ParseUint(m[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("revision of %q: %w", s, err)
		}
		v.revision = rev
		base = m[1] + m[3]
	}
	sem, err := semver.NewVersion(base)
	if err != nil {
		return nil, err
	}
	v.sem = sem
	return v, nil
}

// String returns the version as written.
func (v *Version) String() string { return v.raw }

// Revision returns the fourth segment, 0 when absent.
func (v *Version) Revision() uint64 { return v.revision }

// Prerelease returns the prerelease label, if any.
func (v *Version) Prerelease() string { return v.sem.Prerelease() }

// Compare orders v against o: major, minor, patch, revision, then
// prerelease. Build metadata is ignored.
func (v *Version) Compare(o *Version) int {
	if c := cmp.Compare(v.sem.Major(), o.sem.Major()); c != 0 {
		return c
	}
	if c := cmp.Compare(v.sem.Minor(), o.sem.Minor()); c != 0 {
		return c
	}
	if c := cmp.Compare(v.sem.Patch(), o.sem.Patch()); c != 0 {
		return c
	}
	if c := cmp.Compare(v.revision, o.revision); c != 0 {
		return c
	}
	// Numeric parts are equal, so semver only decides on prerelease.
	return v.sem.Compare(o.sem)
}

// Compare orders two NuGet version strings. Unparseable versions sort
// before parseable ones and are compared lexically among themselves.
func Compare(a, b string) int {
	va, errA := ParseVersion(a)
	vb, errB := ParseVersion(b)
	switch {
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	return va.Compare(vb)
}

// Normalize returns the form under which two spellings of one version
// string are the same identity: trimmed, lower-cased, and without a zero
// revision. It does not pad or reorder anything else.
//
//	Normalize("1.4.8.0") // "1.4.8"
//	Normalize("1.4.8.1") // "1.4.8.1"
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if m := fourPart.FindStringSubmatch(s); m != nil {
		if rev, err := strconv.ParseUint(m[2], 10, 64); err == nil && rev == 0 {
			return m[1] + m[3]
		}
	}
	return s
}
