package nupkg

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SidecarExt is appended to an artifact's file name to name its sidecar.
const SidecarExt = ".json"

// Sidecar is the structured record written next to every downloaded
// artifact. It is the preferred source for recovering an identity from
// disk, since it does not depend on parsing the file name.
type Sidecar struct {
	Name      string    `json:"name" bson:"name"`
	Version   string    `json:"version" bson:"version"`
	File      string    `json:"file" bson:"file"`
	SHA256    string    `json:"sha256,omitempty" bson:"sha256,omitempty"`
	Size      int64     `json:"size,omitempty" bson:"size,omitempty"`
	RunID     string    `json:"run_id,omitempty" bson:"run_id,omitempty"`
	FetchedAt time.Time `json:"fetched_at" bson:"fetched_at"`
	Source    string    `json:"source,omitempty" bson:"source,omitempty"`
}

// Identity returns the identity recorded in the sidecar.
func (s Sidecar) Identity() Identity { return Identity{Name: s.Name, Version: s.Version} }

// SidecarPath returns the sidecar path for the artifact at artifactPath.
func SidecarPath(artifactPath string) string { return artifactPath + SidecarExt }

// WriteSidecar writes s next to the artifact at artifactPath.
func WriteSidecar(artifactPath string, s Sidecar) error {
	if s.File == "" {
		s.File = filepath.Base(artifactPath)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(SidecarPath(artifactPath), append(data, '\n'), 0o644)
}

// ReadSidecar reads the sidecar of the artifact at artifactPath.
// A missing sidecar returns an error satisfying errors.Is(err, fs.ErrNotExist).
func ReadSidecar(artifactPath string) (Sidecar, error) {
	data, err := os.ReadFile(SidecarPath(artifactPath))
	if err != nil {
		return Sidecar{}, err
	}
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return Sidecar{}, fmt.Errorf("sidecar %s: %w", SidecarPath(artifactPath), err)
	}
	if s.Name == "" || s.Version == "" {
		return Sidecar{}, fmt.Errorf("sidecar %s: missing name or version", SidecarPath(artifactPath))
	}
	return s, nil
}

// IdentifyFile recovers the identity of the artifact at path. The sidecar
// wins when present and readable; otherwise the file name is parsed.
// The returned bool reports whether the sidecar was used.
func IdentifyFile(path string) (Identity, bool, error) {
	s, err := ReadSidecar(path)
	if err == nil {
		return s.Identity(), true, nil
	}
	id, perr := ParseFileName(filepath.Base(path))
	if perr != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Identity{}, false, errors.Join(perr, err)
		}
		return Identity{}, false, perr
	}
	return id, false, nil
}

// ListArtifacts returns the paths of all *.nupkg files directly in dir,
// sorted by name.
func ListArtifacts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Ext) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}
