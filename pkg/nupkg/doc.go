// Package nupkg models NuGet package artifacts as they sit on disk.
//
// An artifact is a zip archive named Name.Version.nupkg holding a .nuspec
// manifest that declares the package's own dependencies. This package
// provides the exact [Identity] of an artifact, reads its [Manifest]
// without unpacking the payload, recovers identities from file names or
// [Sidecar] records, and expands archives into a Name/Version/ layout.
package nupkg
