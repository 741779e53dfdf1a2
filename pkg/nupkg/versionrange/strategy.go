package versionrange

import (
	"fmt"
	"regexp"
	"strings"
)

// Strategy selects how a dependency's range becomes a concrete version.
type Strategy string

const (
	// Highest picks the highest index version satisfying the range.
	// Exact pins are used as written without consulting the index.
	Highest Strategy = "highest"
	// Literal takes the first three-part numeric version written in the
	// range text, ignoring bounds. It never consults the index.
	Literal Strategy = "literal"
)

// ParseStrategy parses a strategy name. The empty string means Highest.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Highest:
		return Highest, nil
	case Literal:
		return Literal, nil
	}
	return "", fmt.Errorf("unknown version strategy %q (want %q or %q)", s, Highest, Literal)
}

var literalVersion = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// LiteralVersion scans a range string for the first token that is a
// plain three-part version, splitting on brackets, parentheses, commas
// and whitespace.
//
//	LiteralVersion("[2.28.0]")       // "2.28.0"
//	LiteralVersion("(1.2, 3.4.5]")   // "3.4.5"
//	LiteralVersion("1.0")            // ErrNoVersion
func LiteralVersion(s string) (string, error) {
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case '[', ']', '(', ')', ',', ' ', '\t', '\n', '\r':
			return true
		}
		return false
	})
	for _, t := range tokens {
		if literalVersion.MatchString(t) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: no three-part version in %q", ErrNoVersion, s)
}
