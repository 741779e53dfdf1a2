// Package psget drives the PowerShell package manager (PowerShellGet).
//
// The package manager is an external sink: pkgferry registers the local
// feed as a repository and asks for modules by exact name and version, and
// only observes whether each request succeeded. Scripts are run through a
// [runner.Runner] so tests can capture them instead of starting pwsh.
package psget

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	perrors "github.com/matzehuels/pkgferry/pkg/errors"
	"github.com/matzehuels/pkgferry/pkg/nupkg"
	"github.com/matzehuels/pkgferry/pkg/runner"
)

// DefaultShell is the PowerShell executable used when none is configured.
const DefaultShell = "pwsh"

// Repository is a package source registered with the package manager.
type Repository struct {
	Name     string
	Location string
	Trusted  bool
}

// InstallOptions selects where a module comes from and where it goes.
type InstallOptions struct {
	// Repository is the registered source to install from.
	Repository string
	// Path is the module root to save into. Empty installs into the
	// package manager's default scope.
	Path string
}

// Client is the package-manager surface the installer needs.
type Client interface {
	// EnsureRepository registers repo, or updates its location and trust
	// when a repository with the same name already exists.
	EnsureRepository(ctx context.Context, repo Repository) error
	// Install installs exactly id from the given repository.
	Install(ctx context.Context, id nupkg.Identity, opts InstallOptions) error
}

// Options configures a PowerShell client.
type Options struct {
	// Shell is the PowerShell executable. Default: DefaultShell.
	Shell string
	// Runner executes the shell. Default: runner.Exec{}.
	Runner runner.Runner
	// Logger receives the shell's output. Default: log.Default().
	Logger *log.Logger
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.Shell == "" {
		opts.Shell = DefaultShell
	}
	if opts.Runner == nil {
		opts.Runner = runner.Exec{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return opts
}

// PowerShell implements Client with PowerShellGet cmdlets.
type PowerShell struct {
	opts Options
}

var _ Client = (*PowerShell)(nil)

// NewPowerShell creates a PowerShell client.
func NewPowerShell(opts Options) *PowerShell {
	return &PowerShell{opts: opts.WithDefaults()}
}

// EnsureRepository implements Client.
func (p *PowerShell) EnsureRepository(ctx context.Context, repo Repository) error {
	if repo.Name == "" || repo.Location == "" {
		return perrors.New(perrors.ErrCodeInvalidInput, "repository name and location are required")
	}
	script := RepositoryScript(repo)
	if _, err := p.run(ctx, script); err != nil {
		return perrors.Wrap(perrors.ErrCodeInstallFailed, err, "register repository %s", repo.Name)
	}
	p.opts.Logger.Info("repository ready", "name", repo.Name, "location", repo.Location, "trusted", repo.Trusted)
	return nil
}

// Install implements Client.
func (p *PowerShell) Install(ctx context.Context, id nupkg.Identity, opts InstallOptions) error {
	if err := perrors.ValidatePackageName(id.Name); err != nil {
		return err
	}
	if err := perrors.ValidateVersion(id.Version); err != nil {
		return err
	}
	if _, err := p.run(ctx, InstallScript(id, opts)); err != nil {
		return perrors.Wrap(perrors.ErrCodeInstallFailed, err, "install %s", id)
	}
	return nil
}

func (p *PowerShell) run(ctx context.Context, script string) ([]byte, error) {
	out, err := p.opts.Runner.Run(ctx, p.opts.Shell, "-NoProfile", "-NonInteractive", "-Command", script)
	runner.LogOutput(p.opts.Logger, p.opts.Shell, out)
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return out, fmt.Errorf("%w\n%s", err, msg)
		}
		return out, err
	}
	return out, nil
}

// RepositoryScript returns the script that registers or updates repo.
func RepositoryScript(repo Repository) string {
	policy := "Untrusted"
	if repo.Trusted {
		policy = "Trusted"
	}
	name, loc := Quote(repo.Name), Quote(repo.Location)
	var b strings.Builder
	b.WriteString("$ErrorActionPreference = 'Stop'\n")
	fmt.Fprintf(&b, "if (Get-PSRepository -Name %s -ErrorAction SilentlyContinue) {\n", name)
	fmt.Fprintf(&b, "  Set-PSRepository -Name %s -SourceLocation %s -PublishLocation %s -InstallationPolicy %s\n", name, loc, loc, policy)
	b.WriteString("} else {\n")
	fmt.Fprintf(&b, "  Register-PSRepository -Name %s -SourceLocation %s -PublishLocation %s -InstallationPolicy %s\n", name, loc, loc, policy)
	b.WriteString("}\n")
	return b.String()
}

// InstallScript returns the script that installs exactly id. With a module
// root the module is saved there; otherwise it is installed for all users.
func InstallScript(id nupkg.Identity, opts InstallOptions) string {
	var b strings.Builder
	b.WriteString("$ErrorActionPreference = 'Stop'\n")
	if opts.Path != "" {
		fmt.Fprintf(&b, "Save-Module -Name %s -RequiredVersion %s", Quote(id.Name), Quote(id.Version))
	} else {
		fmt.Fprintf(&b, "Install-Module -Name %s -RequiredVersion %s -Scope AllUsers -Force -AllowClobber", Quote(id.Name), Quote(id.Version))
	}
	if opts.Repository != "" {
		fmt.Fprintf(&b, " -Repository %s", Quote(opts.Repository))
	}
	if opts.Path != "" {
		fmt.Fprintf(&b, " -Path %s -Force", Quote(opts.Path))
	}
	b.WriteString("\n")
	return b.String()
}

// Quote renders s as a single-quoted PowerShell string literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
