// Package gallery provides a client for NuGet v2 package indexes such as
// the PowerShell Gallery.
//
// # Overview
//
// Two endpoints of the OData v2 API are used:
//
//	GET {base}/FindPackagesById()?id='Name'   Atom feed of published versions
//	GET {base}/package/{Name}/{Version}       raw .nupkg bytes
//
// Version listings are returned in the order the index reports them and
// are cached under the client's namespace; paging through rel="next" links
// is followed transparently.
//
// # Usage
//
//	client := gallery.NewClient(backend, gallery.Options{Fetcher: f})
//	latest, err := client.Latest(ctx, "Microsoft.Graph")
//	dl, err := client.Download(ctx, nupkg.Identity{Name: "Microsoft.Graph", Version: latest.Version}, dir)
//
// [WriteFeed] renders the same Atom shape, so a directory of artifacts can
// be served back to this client.
package gallery
