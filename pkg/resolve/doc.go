// Package resolve walks a package's dependency graph against a remote
// index and materializes every artifact it reaches in one directory.
//
// # Algorithm
//
// Resolution is a sequential depth-first descent from the root identity.
// Each identity is marked visited before its dependencies are expanded, so
// diamonds are downloaded once and manifest cycles terminate. An artifact
// already present in the output directory is not downloaded again, which
// makes a second run over the same directory free of network downloads.
//
// # Version selection
//
// For each dependency declaration the configured
// [versionrange.Strategy] picks a concrete version:
//
//   - highest: exact pins like [2.28.0] are used as written; other ranges
//     take the highest non-prerelease version the index lists within range
//   - literal: the first three-part version written in the range text
//
// A declaration that yields no version is logged and skipped; it never
// aborts the run.
//
// # State
//
// All resolution state (visited set, edges, counters, run id) belongs to a
// single [Resolver.Resolve] call. A Resolver can be reused and shared.
package resolve
