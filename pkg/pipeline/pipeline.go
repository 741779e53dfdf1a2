// Package pipeline runs pkgferry's two phases, download and install.
//
// The CLI and any other entry point share this logic so both phases behave
// the same wherever they are invoked from.
//
// # Phases
//
//  1. Download: resolve the root package's dependency graph against the
//     gallery and materialize every artifact in the destination directory.
//  2. Install: rebuild the local feed from the destination directory,
//     register it with the package manager and install each identity.
//
// Either phase can run alone. When Install runs without a Download in the
// same process, the identities are recovered from the artifacts on disk.
//
// # Usage
//
//	runner := pipeline.NewRunner(pipeline.Deps{
//	    Index:  galleryClient,
//	    PSGet:  psget.NewPowerShell(psget.Options{Logger: logger}),
//	    Logger: logger,
//	})
//	res, err := runner.Run(ctx, pipeline.Options{
//	    Action:  pipeline.Both,
//	    Package: "Microsoft.Graph",
//	    Dest:    "/srv/packages",
//	    Feed:    "/srv/feed",
//	})
package pipeline

import (
	"errors"
	"fmt"
	"strings"

	perrors "github.com/matzehuels/pkgferry/pkg/errors"
	"github.com/matzehuels/pkgferry/pkg/install"
	"github.com/matzehuels/pkgferry/pkg/resolve"
)

// =============================================================================
// Actions
// =============================================================================

// Action selects which phases a run performs.
type Action string

const (
	Download Action = "download"
	Install  Action = "install"
	Both     Action = "both"
)

// Actions lists every action in menu order.
var Actions = []Action{Download, Install, Both}

var (
	// ErrInvalidAction is returned for an unknown action name.
	ErrInvalidAction = errors.New("invalid action")
	// ErrNotAdmin is returned when an install runs without administrator
	// rights.
	ErrNotAdmin = errors.New("administrator privileges required")
)

// ParseAction parses an action name. The menu numbers 1, 2 and 3 are
// accepted as well.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "download", "1":
		return Download, nil
	case "install", "2":
		return Install, nil
	case "both", "all", "3":
		return Both, nil
	}
	return "", perrors.Wrap(perrors.ErrCodeInvalidAction, ErrInvalidAction,
		"unknown action %q (want download, install or both)", s)
}

// Downloads reports whether the action includes the download phase.
func (a Action) Downloads() bool { return a == Download || a == Both }

// Installs reports whether the action includes the install phase.
func (a Action) Installs() bool { return a == Install || a == Both }

// Describe returns a one-line description for menus.
func (a Action) Describe() string {
	switch a {
	case Download:
		return "Resolve and download packages"
	case Install:
		return "Install previously downloaded packages"
	case Both:
		return "Download, then install"
	}
	return string(a)
}

// =============================================================================
// Options & Result
// =============================================================================

// Options describes one run.
type Options struct {
	Action Action

	// Package and Version name the root. An empty Version takes the
	// gallery's latest.
	Package string
	Version string

	// Dest receives downloads and is the install phase's source.
	Dest string
	// Feed is the local repository rebuilt by the install phase.
	Feed string
	// ModuleRoot is where modules are installed. Empty uses the package
	// manager's default.
	ModuleRoot string

	// Graph, when set, receives the resolved dependency graph. A .svg
	// extension renders SVG; anything else is written as DOT.
	Graph string
}

// Validate checks the fields the selected action needs.
func (o Options) Validate() error {
	if _, err := ParseAction(string(o.Action)); err != nil {
		return err
	}
	if o.Dest == "" {
		return perrors.New(perrors.ErrCodeInvalidPath, "destination directory is required")
	}
	if o.Action.Downloads() {
		if err := perrors.ValidatePackageName(o.Package); err != nil {
			return err
		}
		if o.Version != "" {
			if err := perrors.ValidateVersion(o.Version); err != nil {
				return err
			}
		}
	}
	if o.Action.Installs() && o.Feed == "" {
		return perrors.New(perrors.ErrCodeInvalidPath, "feed directory is required to install")
	}
	return nil
}

// Result reports what a run did. Phases that did not run are nil.
type Result struct {
	Resolve *resolve.Result
	Install *install.Summary
	// GraphPath is where the dependency graph was written, if anywhere.
	GraphPath string
}

func (r *Result) String() string {
	var parts []string
	if r.Resolve != nil {
		parts = append(parts, fmt.Sprintf("%d resolved, %d downloaded, %d present, %d failed",
			len(r.Resolve.Identities), r.Resolve.Downloaded, r.Resolve.Present, len(r.Resolve.Failed)))
	}
	if r.Install != nil {
		parts = append(parts, fmt.Sprintf("%d installed, %d skipped, %d failed",
			len(r.Install.Installed), len(r.Install.Skipped), len(r.Install.Failed)))
	}
	return strings.Join(parts, "; ")
}
