package resolve

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	perrors "github.com/matzehuels/pkgferry/pkg/errors"
	"github.com/matzehuels/pkgferry/pkg/integrations"
	"github.com/matzehuels/pkgferry/pkg/integrations/gallery"
	"github.com/matzehuels/pkgferry/pkg/ledger"
	"github.com/matzehuels/pkgferry/pkg/nupkg"
	"github.com/matzehuels/pkgferry/pkg/nupkg/versionrange"
)

// DefaultMaxDepth bounds how deep dependencies are expanded.
const DefaultMaxDepth = 50

// Index is the remote package index consulted during resolution.
type Index interface {
	// Latest returns the version the index reports first for name.
	Latest(ctx context.Context, name string) (gallery.Version, error)
	// VersionStrings lists the published versions of name.
	VersionStrings(ctx context.Context, name string) ([]string, error)
	// Download writes the artifact for id into dir.
	Download(ctx context.Context, id nupkg.Identity, dir string) (integrations.Downloaded, error)
}

var _ Index = (*gallery.Client)(nil)

// Options configures a Resolver.
type Options struct {
	// OutputDir receives artifacts and their sidecars. Required.
	OutputDir string
	// Strategy picks versions for dependency ranges. Default: highest.
	Strategy versionrange.Strategy
	// MaxDepth bounds expansion below the root. Default: 50.
	MaxDepth int
	// Ledger records each artifact. Default: sidecars in OutputDir.
	Ledger ledger.Store
	// Source is recorded in sidecars as the artifact's origin.
	Source string
	// Logger receives progress and warnings. Default: log.Default().
	Logger *log.Logger
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.Strategy == "" {
		opts.Strategy = versionrange.Highest
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Ledger == nil {
		opts.Ledger = ledger.NewSidecarStore(opts.OutputDir)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return opts
}

// Edge is a resolved dependency: From depends on To via Range.
type Edge struct {
	From  nupkg.Identity `json:"from"`
	To    nupkg.Identity `json:"to"`
	Range string         `json:"range,omitempty"`
}

// Failure records an identity whose artifact could not be obtained.
type Failure struct {
	Identity nupkg.Identity `json:"identity"`
	Err      error          `json:"-"`
	Message  string         `json:"error"`
}

// Skipped records a dependency declaration that produced no identity.
type Skipped struct {
	From       nupkg.Identity   `json:"from"`
	Dependency nupkg.Dependency `json:"dependency"`
	Reason     string           `json:"reason"`
}

// Result summarizes one resolution.
type Result struct {
	RunID      string           `json:"run_id"`
	Root       nupkg.Identity   `json:"root"`
	Identities []nupkg.Identity `json:"identities"`
	Edges      []Edge           `json:"edges"`
	Downloaded int              `json:"downloaded"`
	Present    int              `json:"present"`
	Failed     []Failure        `json:"failed,omitempty"`
	Skipped    []Skipped        `json:"skipped,omitempty"`
}

// Contains reports whether id was visited.
func (r *Result) Contains(id nupkg.Identity) bool {
	for _, x := range r.Identities {
		if x == id {
			return true
		}
	}
	return false
}

// Available returns the visited identities whose artifacts are on disk,
// in discovery order.
func (r *Result) Available() []nupkg.Identity {
	failed := make(map[nupkg.Identity]bool, len(r.Failed))
	for _, f := range r.Failed {
		failed[f.Identity] = true
	}
	out := make([]nupkg.Identity, 0, len(r.Identities))
	for _, id := range r.Identities {
		if !failed[id] {
			out = append(out, id)
		}
	}
	return out
}

// Resolver discovers and downloads a package's transitive dependencies.
// It holds no per-run state and is safe to reuse.
type Resolver struct {
	index Index
	opts  Options
}

// New creates a Resolver over index.
func New(index Index, opts Options) *Resolver {
	return &Resolver{index: index, opts: opts.WithDefaults()}
}

// Resolve walks the dependency graph from root. An empty root version is
// resolved to the index's first listed version.
//
// Failures to resolve or download the root are returned as errors. Failures
// below the root are logged and recorded in the Result. A cancelled context
// stops the walk and is returned.
func (r *Resolver) Resolve(ctx context.Context, root nupkg.Identity) (*Result, error) {
	if err := perrors.ValidatePackageName(root.Name); err != nil {
		return nil, err
	}
	if r.opts.OutputDir == "" {
		return nil, perrors.New(perrors.ErrCodeInvalidPath, "output directory is required")
	}
	if err := os.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	s := &session{
		Resolver: r,
		log:      r.opts.Logger,
		visited:  make(map[string]bool),
		host:     hostname(),
		res:      &Result{RunID: uuid.NewString()},
	}

	if root.Version == "" {
		latest, err := r.index.Latest(ctx, root.Name)
		if err != nil {
			return nil, fmt.Errorf("find latest version of %s: %w", root.Name, err)
		}
		root.Version = latest.Version
		s.log.Info("resolved latest version", "pkg", root.Name, "version", root.Version)
	}
	s.res.Root = root

	if err := s.visit(ctx, root, 0); err != nil {
		return s.res, err
	}
	return s.res, nil
}

// session holds the state of one Resolve call.
type session struct {
	*Resolver
	log     *log.Logger
	visited map[string]bool
	host    string
	res     *Result
}

func (s *session) visit(ctx context.Context, id nupkg.Identity, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := id.Key()
	if s.visited[key] {
		return nil
	}
	s.visited[key] = true
	s.res.Identities = append(s.res.Identities, id)

	path, err := s.materialize(ctx, id)
	if err != nil {
		return s.fail(ctx, id, depth, err)
	}

	m, err := nupkg.ReadManifest(path)
	if err != nil {
		return s.fail(ctx, id, depth, err)
	}
	if len(m.Dependencies) == 0 {
		return nil
	}
	if depth >= s.opts.MaxDepth {
		s.log.Warn("max depth reached, dependencies not expanded", "pkg", id.Name, "version", id.Version, "depth", depth)
		return nil
	}

	for _, dep := range m.Dependencies {
		version, err := s.pick(ctx, dep)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn("skipping dependency", "from", key, "dep", dep.ID, "range", dep.Range, "err", err)
			s.res.Skipped = append(s.res.Skipped, Skipped{From: id, Dependency: dep, Reason: err.Error()})
			continue
		}
		child := nupkg.Identity{Name: dep.ID, Version: version}
		s.res.Edges = append(s.res.Edges, Edge{From: id, To: child, Range: dep.Range})
		if err := s.visit(ctx, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// materialize ensures the artifact for id is on disk and returns its path.
func (s *session) materialize(ctx context.Context, id nupkg.Identity) (string, error) {
	path := filepath.Join(s.opts.OutputDir, id.FileName())

	if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
		s.res.Present++
		s.log.Info("already present", "pkg", id.Name, "version", id.Version)
		if _, err := nupkg.ReadSidecar(path); err != nil {
			s.backfill(ctx, id, path, fi.ModTime())
		}
		return path, nil
	}

	s.log.Info("downloading", "pkg", id.Name, "version", id.Version)
	d, err := s.index.Download(ctx, id, s.opts.OutputDir)
	if err != nil {
		return "", err
	}
	s.res.Downloaded++
	s.record(ctx, ledger.Entry{
		Sidecar: nupkg.Sidecar{
			Name:      id.Name,
			Version:   id.Version,
			File:      id.FileName(),
			SHA256:    d.SHA256,
			Size:      d.Size,
			RunID:     s.res.RunID,
			FetchedAt: time.Now().UTC(),
			Source:    s.opts.Source,
		},
		Path: d.Path,
		Host: s.host,
	})
	return d.Path, nil
}

// backfill writes a sidecar for an artifact that arrived without one.
func (s *session) backfill(ctx context.Context, id nupkg.Identity, path string, mod time.Time) {
	sum, size, err := fileDigest(path)
	if err != nil {
		s.log.Warn("hash artifact", "path", path, "err", err)
	}
	s.record(ctx, ledger.Entry{
		Sidecar: nupkg.Sidecar{
			Name:      id.Name,
			Version:   id.Version,
			File:      id.FileName(),
			SHA256:    sum,
			Size:      size,
			RunID:     s.res.RunID,
			FetchedAt: mod.UTC(),
			Source:    "local",
		},
		Path: path,
		Host: s.host,
	})
}

func (s *session) record(ctx context.Context, e ledger.Entry) {
	if err := s.opts.Ledger.Record(ctx, e); err != nil {
		s.log.Warn("ledger write failed", "pkg", e.Name, "version", e.Version, "err", err)
	}
}

func (s *session) fail(ctx context.Context, id nupkg.Identity, depth int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if depth == 0 {
		return fmt.Errorf("resolve %s: %w", id, err)
	}
	s.log.Warn("dependency unavailable", "pkg", id.Name, "version", id.Version, "err", err)
	s.res.Failed = append(s.res.Failed, Failure{Identity: id, Err: err, Message: err.Error()})
	return nil
}

// pick chooses the concrete version for dep under the configured strategy.
func (s *session) pick(ctx context.Context, dep nupkg.Dependency) (string, error) {
	if err := perrors.ValidatePackageName(dep.ID); err != nil {
		return "", err
	}
	if s.opts.Strategy == versionrange.Literal {
		return versionrange.LiteralVersion(dep.Range)
	}

	rng, err := versionrange.Parse(dep.Range)
	if err != nil {
		return "", err
	}
	if v, ok := rng.Exact(); ok {
		return v, nil
	}
	candidates, err := s.index.VersionStrings(ctx, dep.ID)
	if err != nil {
		return "", err
	}
	return rng.Best(candidates)
}

func fileDigest(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return ""
	}
	return h
}
