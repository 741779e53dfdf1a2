package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkgferry/pkg/integrations"
	"github.com/matzehuels/pkgferry/pkg/nupkg"
	"github.com/matzehuels/pkgferry/pkg/nupkg/versionrange"
)

// IndexFile is the name of the feed's built-in index.
const IndexFile = "index.json"

// Index lists the artifacts in a feed.
type Index struct {
	Generated time.Time    `json:"generated"`
	Packages  []IndexEntry `json:"packages"`
}

// IndexEntry describes one artifact in a feed.
type IndexEntry struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	File    string `json:"file"`
	SHA256  string `json:"sha256,omitempty"`
	Size    int64  `json:"size"`
}

// Identity returns the entry's identity.
func (e IndexEntry) Identity() nupkg.Identity {
	return nupkg.Identity{Name: e.Name, Version: e.Version}
}

// Identities returns every identity in the index, in index order.
func (ix *Index) Identities() []nupkg.Identity {
	out := make([]nupkg.Identity, len(ix.Packages))
	for i, p := range ix.Packages {
		out[i] = p.Identity()
	}
	return out
}

// Versions returns the entries for name, highest version first. Package
// ids compare case-insensitively, as NuGet does.
func (ix *Index) Versions(name string) []IndexEntry {
	var out []IndexEntry
	for _, p := range ix.Packages {
		if strings.EqualFold(p.Name, name) {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b IndexEntry) int {
		return versionrange.Compare(b.Version, a.Version)
	})
	return out
}

// Lookup finds the entry for an exact identity, ignoring id case. Versions
// match as written, up to a zero revision ("1.0.0" finds "1.0.0.0").
func (ix *Index) Lookup(name, version string) (IndexEntry, bool) {
	want := versionrange.Normalize(version)
	for _, p := range ix.Packages {
		if strings.EqualFold(p.Name, name) && versionrange.Normalize(p.Version) == want {
			return p, true
		}
	}
	return IndexEntry{}, false
}

// ScanIndex builds an index from the artifacts in dir. Identities come
// from sidecars when present, otherwise from file names; artifacts whose
// identity cannot be recovered are logged and left out.
func ScanIndex(dir string, logger *log.Logger) (*Index, error) {
	if logger == nil {
		logger = log.Default()
	}
	paths, err := nupkg.ListArtifacts(dir)
	if err != nil {
		return nil, err
	}
	ix := &Index{Generated: time.Now().UTC()}
	for _, p := range paths {
		id, _, err := nupkg.IdentifyFile(p)
		if err != nil {
			logger.Warn("skipping artifact", "file", filepath.Base(p), "err", err)
			continue
		}
		e := IndexEntry{Name: id.Name, Version: id.Version, File: filepath.Base(p)}
		if sc, err := nupkg.ReadSidecar(p); err == nil {
			e.SHA256 = sc.SHA256
		}
		if fi, err := os.Stat(p); err == nil {
			e.Size = fi.Size()
		}
		ix.Packages = append(ix.Packages, e)
	}
	slices.SortFunc(ix.Packages, func(a, b IndexEntry) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return versionrange.Compare(a.Version, b.Version)
	})
	return ix, nil
}

// WriteIndex writes ix to dir/index.json.
func WriteIndex(dir string, ix *Index) error {
	data, err := json.MarshalIndent(ix, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, IndexFile), append(data, '\n'), 0o644)
}

// ReadIndex reads dir/index.json.
func ReadIndex(dir string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(dir, IndexFile))
	if err != nil {
		return nil, err
	}
	var ix Index
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, fmt.Errorf("parse %s: %w", IndexFile, err)
	}
	return &ix, nil
}

// LoadIndex reads dir/index.json, falling back to a scan when the feed
// has none.
func LoadIndex(dir string, logger *log.Logger) (*Index, error) {
	ix, err := ReadIndex(dir)
	if err == nil {
		return ix, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	return ScanIndex(dir, logger)
}

// FetchIndex reads the index published by a feed [Server] at baseURL.
func FetchIndex(ctx context.Context, client *integrations.Client, baseURL string) (*Index, error) {
	var ix Index
	if err := client.GetJSON(ctx, strings.TrimRight(baseURL, "/")+"/"+IndexFile, &ix); err != nil {
		return nil, err
	}
	return &ix, nil
}
