// Package versionrange implements NuGet version ranges and the policies
// used to turn a dependency's range into one concrete version.
//
// Supported notation:
//
//	1.0        1.0 <= x
//	[1.0]      x == 1.0
//	(1.0,)     1.0 < x
//	(,1.0]     x <= 1.0
//	[1.0,2.0)  1.0 <= x < 2.0
//	(1.0,2.0)  1.0 < x < 2.0
//	""         any version
//
// Versions are semantic versions plus NuGet's optional fourth (revision)
// segment, which orders after patch and before any prerelease label.
package versionrange

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRange is returned for range strings that do not parse.
	ErrInvalidRange = errors.New("invalid version range")
	// ErrNoVersion is returned when no version can be chosen for a range.
	ErrNoVersion = errors.New("no version satisfies range")
)

// Range is a parsed NuGet version range. The zero Range matches everything.
type Range struct {
	min, max         *Version
	minRaw, maxRaw   string
	minIncl, maxIncl bool
	raw              string
}

// Parse parses a NuGet version range.
func Parse(s string) (Range, error) {
	s = strings.TrimSpace(s)
	r := Range{raw: s}
	if s == "" {
		return r, nil
	}

	if !strings.ContainsAny(s[:1], "[(") {
		v, err := ParseVersion(s)
		if err != nil {
			return Range{}, fmt.Errorf("%w: %q: %v", ErrInvalidRange, s, err)
		}
		r.min, r.minRaw, r.minIncl = v, s, true
		return r, nil
	}

	if len(s) < 3 || !strings.ContainsAny(s[len(s)-1:], "])") {
		return Range{}, fmt.Errorf("%w: %q: unbalanced brackets", ErrInvalidRange, s)
	}
	r.minIncl = s[0] == '['
	r.maxIncl = s[len(s)-1] == ']'
	inner := s[1 : len(s)-1]

	lo, hi, hasComma := strings.Cut(inner, ",")
	if !hasComma {
		if !r.minIncl || !r.maxIncl {
			return Range{}, fmt.Errorf("%w: %q: a single version must use [x]", ErrInvalidRange, s)
		}
		hi = lo
	}
	if strings.Contains(hi, ",") {
		return Range{}, fmt.Errorf("%w: %q: too many bounds", ErrInvalidRange, s)
	}
	lo, hi = strings.TrimSpace(lo), strings.TrimSpace(hi)
	if lo == "" && hi == "" {
		return Range{}, fmt.Errorf("%w: %q: no bounds", ErrInvalidRange, s)
	}

	var err error
	if lo != "" {
		if r.min, err = ParseVersion(lo); err != nil {
			return Range{}, fmt.Errorf("%w: %q: %v", ErrInvalidRange, s, err)
		}
		r.minRaw = lo
	}
	if hi != "" {
		if r.max, err = ParseVersion(hi); err != nil {
			return Range{}, fmt.Errorf("%w: %q: %v", ErrInvalidRange, s, err)
		}
		r.maxRaw = hi
	}

	if r.min != nil && r.max != nil {
		switch c := r.min.Compare(r.max); {
		case c > 0:
			return Range{}, fmt.Errorf("%w: %q: lower bound above upper bound", ErrInvalidRange, s)
		case c == 0 && (!r.minIncl || !r.maxIncl):
			return Range{}, fmt.Errorf("%w: %q: empty range", ErrInvalidRange, s)
		}
	}
	return r, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Range {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}

// String returns the range as written.
func (r Range) String() string { return r.raw }

// IsUnbounded reports whether the range accepts any version.
func (r Range) IsUnbounded() bool { return r.min == nil && r.max == nil }

// Exact returns the pinned version of an [x] range, as written.
func (r Range) Exact() (string, bool) {
	if r.min == nil || r.max == nil || !r.minIncl || !r.maxIncl || r.min.Compare(r.max) != 0 {
		return "", false
	}
	return r.minRaw, true
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v *Version) bool {
	if v == nil {
		return false
	}
	if r.min != nil {
		c := v.Compare(r.min)
		if c < 0 || (c == 0 && !r.minIncl) {
			return false
		}
	}
	if r.max != nil {
		c := v.Compare(r.max)
		if c > 0 || (c == 0 && !r.maxIncl) {
			return false
		}
	}
	return true
}

// ContainsString is Contains for an unparsed version; unparseable
// versions are never contained.
func (r Range) ContainsString(v string) bool {
	sv, err := ParseVersion(v)
	return err == nil && r.Contains(sv)
}

// Best returns the highest candidate within the range, as written in
// candidates. Prerelease candidates are only considered when one of the
// range's own bounds is a prerelease.
func (r Range) Best(candidates []string) (string, error) {
	allowPre := (r.min != nil && r.min.Prerelease() != "") || (r.max != nil && r.max.Prerelease() != "")

	var best *Version
	var bestRaw string
	for _, c := range candidates {
		v, err := ParseVersion(c)
		if err != nil {
			continue
		}
		if v.Prerelease() != "" && !allowPre {
			continue
		}
		if !r.Contains(v) {
			continue
		}
		if best == nil || v.Compare(best) > 0 {
			best, bestRaw = v, c
		}
	}
	if best == nil {
		return "", fmt.Errorf("%w: %q among %d candidates", ErrNoVersion, r.raw, len(candidates))
	}
	return bestRaw, nil
}
