// Package pkg provides the libraries behind pkgferry, an offline installer
// for PowerShell Gallery modules.
//
// # Overview
//
// pkgferry works in two halves. On a connected machine it resolves a
// module's full dependency closure against the gallery and downloads every
// artifact into a flat directory. That directory is carried to an offline
// machine, where it is turned into a local feed and each module is
// installed from it. The pkg directory is organized into four areas:
//
//  1. [resolve] - Dependency closure (fetch, recurse, deduplicate)
//  2. [nupkg] - Artifact model (identities, manifests, version ranges)
//  3. [repository] and [install] - Feed building and installation
//  4. [pipeline] - Orchestration (download → install)
//
// # Architecture
//
// The typical data flow through pkgferry:
//
//	PowerShell Gallery (OData feed)
//	         ↓
//	    [integrations/gallery] (versions, downloads, retry)
//	         ↓
//	    [resolve] (recursive closure with a visited set)
//	         ↓
//	    destination directory (*.nupkg + sidecars)
//	         ↓
//	    [repository] (local feed, optional index tool)
//	         ↓
//	    [install] (register feed, install every module but the meta-package)
//
// # Quick Start
//
// Download a module and everything it needs:
//
//	import (
//	    "context"
//	    "github.com/matzehuels/pkgferry/pkg/pipeline"
//	)
//
//	runner := pipeline.NewRunner(pipeline.Deps{Index: client, Logger: logger})
//	res, err := runner.Run(ctx, pipeline.Options{
//	    Action:  pipeline.Download,
//	    Package: "Microsoft.Graph",
//	    Dest:    "packages",
//	})
//
// # Main Packages
//
// [integrations/gallery] - Client for the gallery's OData v2 API. Lists
// versions, picks the latest release and downloads artifacts through the
// retrying fetcher in [httputil].
//
// [nupkg] - Artifact identities, file naming, in-memory manifest reading
// and the sidecar files that remember an artifact's canonical identity.
//
// [nupkg/versionrange] - NuGet interval notation on top of semantic
// versions, and the strategies that pick a version out of a range.
//
// [resolve] - Depth-first closure over the dependency graph. Every
// identity is fetched at most once per run.
//
// [ledger] - Where download records go: sidecar files next to each
// artifact, with an optional MongoDB mirror.
//
// [repository] - Builds a local feed from the download directory and
// serves it over HTTP with the same API the gallery speaks.
//
// [psget] - Drives PowerShellGet through a PowerShell subprocess.
//
// [install] - Installs a directory of artifacts, skipping the meta-package.
//
// [cache] - File, Redis and null caches for gallery responses.
//
// [config] - TOML configuration with defaults and validation.
//
// [resolve]: https://pkg.go.dev/github.com/matzehuels/pkgferry/pkg/resolve
// [nupkg]: https://pkg.go.dev/github.com/matzehuels/pkgferry/pkg/nupkg
// [nupkg/versionrange]: https://pkg.go.dev/github.com/matzehuels/pkgferry/pkg/nupkg/versionrange
// [repository]: https://pkg.go.dev/github.com/matzehuels/pkgferry/pkg/repository
// [install]: https://pkg.go.dev/github.com/matzehuels/pkgferry/pkg/install
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/pkgferry/pkg/pipeline
// [integrations/gallery]: https://pkg.go.dev/github.com/matzehuels/pkgferry/pkg/integrations/gallery
// [httputil]: https://pkg.go.dev/github.com/matzehuels/pkgferry/pkg/httputil
// [ledger]: https://pkg.go.dev/github.com/matzehuels/pkgferry/pkg/ledger
// [psget]: https://pkg.go.dev/github.com/matzehuels/pkgferry/pkg/psget
// [cache]: https://pkg.go.dev/github.com/matzehuels/pkgferry/pkg/cache
// [config]: https://pkg.go.dev/github.com/matzehuels/pkgferry/pkg/config
package pkg
