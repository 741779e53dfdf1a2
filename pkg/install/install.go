package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	perrors "github.com/matzehuels/pkgferry/pkg/errors"
	"github.com/matzehuels/pkgferry/pkg/nupkg"
	"github.com/matzehuels/pkgferry/pkg/psget"
	"github.com/matzehuels/pkgferry/pkg/repository"
)

const (
	// DefaultMetaPackage is the package that is resolved but never installed.
	DefaultMetaPackage = "Microsoft.Graph"
	// DefaultRepository is the name the local feed is registered under.
	DefaultRepository = "pkgferry"
)

// ErrInvalidSelection is returned when a module root index is out of range.
var ErrInvalidSelection = errors.New("invalid module root selection")

// Options configures an Installer.
type Options struct {
	// SourceDir holds the downloaded artifacts. Required.
	SourceDir string
	// FeedDir is rebuilt from SourceDir on every run. Required.
	FeedDir string
	// ModuleRoot is where modules are saved. Empty lets the package
	// manager pick its default location.
	ModuleRoot string
	// MetaPackage is never installed. Default: DefaultMetaPackage.
	MetaPackage string
	// Repository is the name the feed is registered under.
	// Default: DefaultRepository.
	Repository string
	// Trusted marks the registered repository as trusted.
	Trusted bool

	Builder *repository.Builder
	PSGet   psget.Client
	Logger  *log.Logger
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.MetaPackage == "" {
		opts.MetaPackage = DefaultMetaPackage
	}
	if opts.Repository == "" {
		opts.Repository = DefaultRepository
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Builder == nil {
		opts.Builder = repository.NewBuilder(repository.Options{Logger: opts.Logger})
	}
	if opts.PSGet == nil {
		opts.PSGet = psget.NewPowerShell(psget.Options{Logger: opts.Logger})
	}
	return opts
}

// Summary reports the outcome of an install run.
type Summary struct {
	Installed []nupkg.Identity
	Skipped   []nupkg.Identity
	Failed    []nupkg.Identity
}

// Installer installs artifacts through the package manager.
type Installer struct {
	opts Options
}

// New creates an Installer.
func New(opts Options) *Installer {
	return &Installer{opts: opts.WithDefaults()}
}

// Scan recovers the identities of the artifacts in dir. Artifacts whose
// identity cannot be recovered are logged and skipped.
func Scan(dir string, logger *log.Logger) ([]nupkg.Identity, error) {
	ix, err := repository.ScanIndex(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	return ix.Identities(), nil
}

// IsMetaPackage reports whether id is the configured meta-package.
func (in *Installer) IsMetaPackage(id nupkg.Identity) bool {
	return strings.EqualFold(id.Name, in.opts.MetaPackage)
}

// InstallAll installs ids, or every artifact in the source directory when
// ids is nil. Only setup failures (feed, layout, repository registration)
// and cancellation are returned as errors; per-identity failures end up in
// Summary.Failed.
func (in *Installer) InstallAll(ctx context.Context, ids []nupkg.Identity) (Summary, error) {
	var sum Summary
	logger := in.opts.Logger

	if in.opts.SourceDir == "" || in.opts.FeedDir == "" {
		return sum, perrors.New(perrors.ErrCodeInvalidPath, "source and feed directories are required")
	}
	if ids == nil {
		scanned, err := Scan(in.opts.SourceDir, logger)
		if err != nil {
			return sum, err
		}
		ids = scanned
	}
	if len(ids) == 0 {
		return sum, perrors.New(perrors.ErrCodeArtifactMissing, "no artifacts found in %s", in.opts.SourceDir)
	}

	if _, err := in.opts.Builder.Build(ctx, in.opts.SourceDir, in.opts.FeedDir); err != nil {
		return sum, fmt.Errorf("build feed: %w", err)
	}
	layout, err := repository.Layout(ctx, in.opts.FeedDir, ids, logger)
	if err != nil {
		return sum, err
	}
	unavailable := make(map[string]bool, len(layout.Missing)+len(layout.Failed))
	for _, id := range slices.Concat(layout.Missing, layout.Failed) {
		unavailable[id.Key()] = true
	}

	feed, err := filepath.Abs(in.opts.FeedDir)
	if err != nil {
		return sum, err
	}
	repo := psget.Repository{Name: in.opts.Repository, Location: feed, Trusted: in.opts.Trusted}
	if err := in.opts.PSGet.EnsureRepository(ctx, repo); err != nil {
		return sum, err
	}

	install := psget.InstallOptions{Repository: in.opts.Repository, Path: in.opts.ModuleRoot}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if in.IsMetaPackage(id) {
			logger.Info("skipping meta-package", "pkg", id.Name, "version", id.Version)
			sum.Skipped = append(sum.Skipped, id)
			continue
		}
		if unavailable[id.Key()] {
			logger.Error("install skipped, artifact unavailable", "pkg", id.Name, "version", id.Version)
			sum.Failed = append(sum.Failed, id)
			continue
		}
		logger.Info("installing", "pkg", id.Name, "version", id.Version)
		if err := in.opts.PSGet.Install(ctx, id, install); err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			logger.Error("install failed", "pkg", id.Name, "version", id.Version, "err", err)
			sum.Failed = append(sum.Failed, id)
			continue
		}
		sum.Installed = append(sum.Installed, id)
	}
	return sum, nil
}

// Candidates returns the module roots listed in PSModulePath, in order and
// without duplicates.
func Candidates() []string {
	return SplitModulePath(os.Getenv("PSModulePath"))
}

// SplitModulePath splits a PSModulePath value into its roots.
func SplitModulePath(value string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range filepath.SplitList(value) {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// SelectRoot returns candidates[index], or ErrInvalidSelection when index
// does not name a candidate.
func SelectRoot(candidates []string, index int) (string, error) {
	if index < 0 || index >= len(candidates) {
		return "", perrors.Wrap(perrors.ErrCodeInvalidSelection, ErrInvalidSelection,
			"module root %d is not one of the %d candidates", index, len(candidates))
	}
	return candidates[index], nil
}
