// Package install turns a directory of downloaded artifacts into installed
// PowerShell modules.
//
// # Overview
//
// [Installer.InstallAll] runs the install phase end to end:
//
//  1. Recover the identities to install, either from the caller or by
//     scanning the download directory ([Scan]).
//  2. Rebuild the local feed with a [repository.Builder].
//  3. Expand each artifact into the feed's Name/Version layout.
//  4. Register the feed with the package manager as a repository.
//  5. Install every identity by exact name and version.
//
// The meta-package that seeds discovery (Microsoft.Graph by default) is
// laid out with everything else but never handed to the package manager.
// A failure to install one identity is logged and counted; the batch
// carries on.
//
// # Module roots
//
// Modules are saved into one of the roots listed in PSModulePath.
// [Candidates] lists them and [SelectRoot] validates a choice.
package install
