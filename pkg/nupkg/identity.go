package nupkg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Ext is the artifact file extension.
const Ext = ".nupkg"

// ErrInvalidFileName is returned when an artifact file name does not follow
// the Name.Major.Minor.Patch.nupkg grammar.
var ErrInvalidFileName = errors.New("invalid artifact file name")

// Identity is an exact (name, version) pair naming one artifact.
// Two identities are equal only when both fields match exactly.
type Identity struct {
	Name    string `json:"name" bson:"name"`
	Version string `json:"version" bson:"version"`
}

// Key serializes the identity as name@version.
func (id Identity) Key() string { return id.Name + "@" + id.Version }

// String implements fmt.Stringer.
func (id Identity) String() string { return id.Key() }

// FileName is the artifact's deterministic file name.
func (id Identity) FileName() string { return id.Name + "." + id.Version + Ext }

// IsZero reports whether id is the zero Identity.
func (id Identity) IsZero() bool { return id.Name == "" && id.Version == "" }

// ParseFileName recovers an identity from an artifact file name. The last
// three dot separated tokens before .nupkg must be non-negative integers and
// form the version; everything before them is the name.
//
//	Microsoft.Graph.Mail.1.0.0.nupkg -> {Microsoft.Graph.Mail 1.0.0}
//
// Names that themselves end in numeric segments are ambiguous under this
// grammar; artifacts written by pkgferry carry a [Sidecar] instead.
func ParseFileName(name string) (Identity, error) {
	base, ok := strings.CutSuffix(name, Ext)
	if !ok {
		return Identity{}, fmt.Errorf("%w: %q: missing %s extension", ErrInvalidFileName, name, Ext)
	}
	parts := strings.Split(base, ".")
	if len(parts) < 4 {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}
	ver := parts[len(parts)-3:]
	for _, p := range ver {
		if _, err := strconv.ParseUint(p, 10, 64); err != nil {
			return Identity{}, fmt.Errorf("%w: %q: version segment %q is not numeric", ErrInvalidFileName, name, p)
		}
	}
	pkg := strings.Join(parts[:len(parts)-3], ".")
	if pkg == "" {
		return Identity{}, fmt.Errorf("%w: %q: empty package name", ErrInvalidFileName, name)
	}
	return Identity{Name: pkg, Version: strings.Join(ver, ".")}, nil
}
