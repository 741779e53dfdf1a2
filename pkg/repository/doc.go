// Package repository turns a flat directory of downloaded artifacts into a
// local package feed that a package manager can install from.
//
// # Building
//
// [Builder.Build] always rebuilds the feed from scratch: it ensures the
// external index tool is on disk (fetching it once if needed), empties the
// feed directory, copies every artifact and sidecar into it, runs the
// tool's init command, and writes index.json describing the result. The
// rebuild is not transactional; a crash midway leaves a partial feed that
// the next build replaces.
//
// # Layout
//
// [Layout] expands each artifact into Name/Version/ beneath the feed, the
// module-shaped tree PowerShell expects when installing from a folder.
//
// # Serving
//
// [Server] exposes a feed over HTTP with the same FindPackagesById() and
// package download endpoints the gallery client consumes, so one host's
// feed can act as another host's upstream index.
package repository
