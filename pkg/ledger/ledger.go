// Package ledger records which artifacts were fetched, when, and by which
// run.
//
// The primary record is the sidecar JSON written next to every artifact
// ([SidecarStore]); it is what the installer reads to recover identities.
// A [MongoStore] can mirror the same entries into a shared collection so a
// fleet of offline hosts can see what was ferried where.
package ledger

import (
	"context"
	"errors"

	"github.com/matzehuels/pkgferry/pkg/nupkg"
)

// Entry is one recorded download.
type Entry struct {
	nupkg.Sidecar `bson:",inline"`

	// Path is the artifact's location on the recording host.
	Path string `json:"-" bson:"path"`
	// Host is the recording host's name.
	Host string `json:"-" bson:"host,omitempty"`
}

// Key returns the entry's name@version key.
func (e Entry) Key() string { return e.Identity().Key() }

// Store persists ledger entries.
type Store interface {
	// Record stores e, replacing any previous entry for the same identity.
	Record(ctx context.Context, e Entry) error
	// List returns all recorded entries.
	List(ctx context.Context) ([]Entry, error)
	// Close releases backend resources.
	Close() error
}

// Multi fans writes out to several stores. List reads from the first.
type Multi []Store

var _ Store = Multi(nil)

// Record writes e to every store and joins their errors.
func (m Multi) Record(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// List lists the first store.
func (m Multi) List(ctx context.Context) ([]Entry, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return m[0].List(ctx)
}

// Close closes every store.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
