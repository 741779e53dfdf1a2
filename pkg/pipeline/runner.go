package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	perrors "github.com/matzehuels/pkgferry/pkg/errors"
	"github.com/matzehuels/pkgferry/pkg/install"
	"github.com/matzehuels/pkgferry/pkg/ledger"
	"github.com/matzehuels/pkgferry/pkg/nupkg"
	"github.com/matzehuels/pkgferry/pkg/nupkg/versionrange"
	"github.com/matzehuels/pkgferry/pkg/privilege"
	"github.com/matzehuels/pkgferry/pkg/psget"
	"github.com/matzehuels/pkgferry/pkg/repository"
	"github.com/matzehuels/pkgferry/pkg/resolve"
)

// Deps holds the collaborators a Runner drives.
type Deps struct {
	// Index is the remote gallery. Required for downloads.
	Index resolve.Index
	// Ledger mirrors download records. Nil keeps sidecars only.
	Ledger ledger.Store
	// Source is recorded as each artifact's origin.
	Source   string
	Strategy versionrange.Strategy
	MaxDepth int

	Builder     *repository.Builder
	PSGet       psget.Client
	MetaPackage string
	Repository  string
	Trusted     bool

	// IsAdmin gates the install phase. Default: privilege.IsAdmin.
	IsAdmin func() bool
	Logger  *log.Logger
}

// Runner executes pipeline runs. It keeps no state between runs.
type Runner struct {
	deps Deps
}

// NewRunner creates a Runner.
func NewRunner(deps Deps) *Runner {
	if deps.IsAdmin == nil {
		deps.IsAdmin = privilege.IsAdmin
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	return &Runner{deps: deps}
}

// Run performs the phases opts.Action selects. The administrator check
// happens before anything is downloaded, so a run that cannot install
// fails fast.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Action.Installs() && !r.deps.IsAdmin() {
		return nil, perrors.Wrap(perrors.ErrCodeNotAdmin, ErrNotAdmin, "installing modules needs an elevated session")
	}

	res := &Result{}
	var ids []nupkg.Identity

	if opts.Action.Downloads() {
		rr, err := r.Download(ctx, opts)
		if err != nil {
			return res, err
		}
		res.Resolve = rr
		ids = rr.Available()

		if opts.Graph != "" {
			if err := WriteGraph(ctx, rr, opts.Graph); err != nil {
				r.deps.Logger.Warn("graph export failed", "path", opts.Graph, "err", err)
			} else {
				res.GraphPath = opts.Graph
			}
		}
	}

	if opts.Action.Installs() {
		sum, err := r.Install(ctx, opts, ids)
		if err != nil {
			return res, err
		}
		res.Install = &sum
	}
	return res, nil
}

// Download resolves opts.Package and materializes its dependency graph in
// opts.Dest.
func (r *Runner) Download(ctx context.Context, opts Options) (*resolve.Result, error) {
	if r.deps.Index == nil {
		return nil, perrors.New(perrors.ErrCodeInternal, "no package index configured")
	}
	start := time.Now()
	resolver := resolve.New(r.deps.Index, resolve.Options{
		OutputDir: opts.Dest,
		Strategy:  r.deps.Strategy,
		MaxDepth:  r.deps.MaxDepth,
		Ledger:    r.ledger(opts.Dest),
		Source:    r.deps.Source,
		Logger:    r.deps.Logger,
	})
	res, err := resolver.Resolve(ctx, nupkg.Identity{Name: opts.Package, Version: opts.Version})
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	r.deps.Logger.Info("download complete",
		"root", res.Root,
		"packages", len(res.Identities),
		"downloaded", res.Downloaded,
		"present", res.Present,
		"failed", len(res.Failed),
		"duration", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// Install installs ids from opts.Dest. Nil ids scans opts.Dest.
func (r *Runner) Install(ctx context.Context, opts Options, ids []nupkg.Identity) (install.Summary, error) {
	in := install.New(install.Options{
		SourceDir:   opts.Dest,
		FeedDir:     opts.Feed,
		ModuleRoot:  opts.ModuleRoot,
		MetaPackage: r.deps.MetaPackage,
		Repository:  r.deps.Repository,
		Trusted:     r.deps.Trusted,
		Builder:     r.deps.Builder,
		PSGet:       r.deps.PSGet,
		Logger:      r.deps.Logger,
	})
	start := time.Now()
	sum, err := in.InstallAll(ctx, ids)
	if err != nil {
		return sum, fmt.Errorf("install: %w", err)
	}
	r.deps.Logger.Info("install complete",
		"installed", len(sum.Installed),
		"skipped", len(sum.Skipped),
		"failed", len(sum.Failed),
		"duration", time.Since(start).Round(time.Millisecond))
	return sum, nil
}

// ledger returns the sidecar store for dest, fanned out to the configured
// mirror when there is one.
func (r *Runner) ledger(dest string) ledger.Store {
	sidecars := ledger.NewSidecarStore(dest)
	if r.deps.Ledger == nil {
		return sidecars
	}
	return ledger.Multi{sidecars, r.deps.Ledger}
}
