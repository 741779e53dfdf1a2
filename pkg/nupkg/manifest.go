package nupkg

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ErrInvalidManifest is returned when an artifact has no readable .nuspec.
var ErrInvalidManifest = errors.New("invalid package manifest")

// Dependency is one dependency declaration from a manifest.
type Dependency struct {
	ID    string `json:"id"`
	Range string `json:"range,omitempty"`
}

// Manifest holds the fields of a .nuspec that pkgferry uses.
type Manifest struct {
	ID           string
	Version      string
	Description  string
	Authors      string
	Dependencies []Dependency
}

// Identity returns the identity the manifest declares.
func (m *Manifest) Identity() Identity {
	return Identity{Name: m.ID, Version: m.Version}
}

// ReadManifest opens the artifact at path and parses its manifest. The
// manifest is read in memory; nothing is extracted to disk.
func ReadManifest(path string) (*Manifest, error) {
	zr, err := zip.OpenReader(path)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, path, err)
	}
	defer zr.Close()
	return readManifest(&zr.Reader, path)
}

// ReadManifestFrom parses the manifest of an artifact held in r.
func ReadManifestFrom(r io.ReaderAt, size int64) (*Manifest, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return readManifest(zr, "<memory>")
}

func readManifest(zr *zip.Reader, path string) (*Manifest, error) {
	for _, f := range zr.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".nuspec") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %s: %v", ErrInvalidManifest, path, f.Name, err)
		}
		m, err := ParseManifest(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", path, f.Name, err)
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s: no .nuspec entry", ErrInvalidManifest, path)
}

// ParseManifest decodes a .nuspec document. Flat dependencies and all
// target framework groups are merged, first occurrence of an id wins.
func ParseManifest(r io.Reader) (*Manifest, error) {
	var doc nuspec
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	md := doc.Metadata
	if md.ID == "" {
		return nil, fmt.Errorf("%w: missing <id>", ErrInvalidManifest)
	}

	m := &Manifest{
		ID:          strings.TrimSpace(md.ID),
		Version:     strings.TrimSpace(md.Version),
		Description: strings.TrimSpace(md.Description),
		Authors:     strings.TrimSpace(md.Authors),
	}

	seen := make(map[string]bool)
	add := func(deps []nuspecDependency) {
		for _, d := range deps {
			id := strings.TrimSpace(d.ID)
			key := strings.ToLower(id)
			if id != "" && seen[key] {
				continue
			}
			seen[key] = true
			m.Dependencies = append(m.Dependencies, Dependency{ID: id, Range: strings.TrimSpace(d.Version)})
		}
	}
	add(md.Dependencies.Flat)
	for _, g := range md.Dependencies.Groups {
		add(g.Dependencies)
	}
	return m, nil
}

// xml.Decoder matches element local names, so the nuspec namespace (which
// differs between schema revisions) does not need to be spelled out.
type nuspec struct {
	Metadata nuspecMetadata `xml:"metadata"`
}

type nuspecMetadata struct {
	ID           string             `xml:"id"`
	Version      string             `xml:"version"`
	Description  string             `xml:"description"`
	Authors      string             `xml:"authors"`
	Dependencies nuspecDependencies `xml:"dependencies"`
}

type nuspecDependencies struct {
	Flat   []nuspecDependency `xml:"dependency"`
	Groups []nuspecGroup      `xml:"group"`
}

type nuspecGroup struct {
	TargetFramework string             `xml:"targetFramework,attr"`
	Dependencies    []nuspecDependency `xml:"dependency"`
}

type nuspecDependency struct {
	ID      string `xml:"id,attr"`
	Version string `xml:"version,attr"`
}
