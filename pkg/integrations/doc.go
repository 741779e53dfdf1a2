// Package integrations provides the HTTP plumbing shared by package index
// clients.
//
// # Overview
//
// [Client] is the only code in pkgferry that talks to the network. Every
// request it makes runs through an [httputil.Fetcher], so DNS failures,
// connection resets and 5xx responses are retried under one policy, while a
// 404 is reported once as [ErrNotFound].
//
// Index-specific clients embed it:
//
//   - [gallery]: NuGet v2 / PowerShell Gallery OData feeds
//
// # Client Pattern
//
//	client := gallery.NewClient(backend, gallery.Options{BaseURL: url, Fetcher: f})
//	versions, err := client.Versions(ctx, "Az.Accounts", false)  // false = use cache
//
// Metadata responses are cached through [cache.Cache]; artifacts are written
// to disk with [Client.Download], which never leaves a partial file under
// the final name.
package integrations
