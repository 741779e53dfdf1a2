package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/matzehuels/pkgferry/pkg/nupkg"
)

// SidecarStore keeps the ledger as sidecar files in an artifact directory.
type SidecarStore struct {
	dir string
}

var _ Store = (*SidecarStore)(nil)

// NewSidecarStore returns a store over the artifacts in dir.
func NewSidecarStore(dir string) *SidecarStore {
	return &SidecarStore{dir: dir}
}

// Record writes e's sidecar. An empty Path is derived from the store's
// directory and the entry's identity.
func (s *SidecarStore) Record(_ context.Context, e Entry) error {
	path := e.Path
	if path == "" {
		path = filepath.Join(s.dir, e.Identity().FileName())
	}
	if err := nupkg.WriteSidecar(path, e.Sidecar); err != nil {
		return fmt.Errorf("write sidecar for %s: %w", e.Key(), err)
	}
	return nil
}

// List reads the sidecar of every artifact in the directory. Artifacts
// without a sidecar are skipped.
func (s *SidecarStore) List(_ context.Context) ([]Entry, error) {
	paths, err := nupkg.ListArtifacts(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Entry
	for _, p := range paths {
		sc, err := nupkg.ReadSidecar(p)
		if err != nil {
			continue
		}
		out = append(out, Entry{Sidecar: sc, Path: p})
	}
	return out, nil
}

// Close implements Store.
func (s *SidecarStore) Close() error { return nil }
