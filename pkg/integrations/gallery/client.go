package gallery

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/matzehuels/pkgferry/pkg/cache"
	"github.com/matzehuels/pkgferry/pkg/httputil"
	"github.com/matzehuels/pkgferry/pkg/integrations"
	"github.com/matzehuels/pkgferry/pkg/nupkg"
)

// DefaultBaseURL is the PowerShell Gallery v2 API.
const DefaultBaseURL = "https://www.powershellgallery.com/api/v2"

// maxPages bounds how many rel="next" links one listing follows.
const maxPages = 200

// Version is one published version of a package as reported by the index.
type Version struct {
	ID           string `json:"id"`
	Version      string `json:"version"`
	IsLatest     bool   `json:"is_latest,omitempty"`
	IsPrerelease bool   `json:"is_prerelease,omitempty"`
	Published    string `json:"published,omitempty"`
	DownloadURL  string `json:"download_url,omitempty"`
}

// Identity returns the exact identity of this version.
func (v Version) Identity() nupkg.Identity {
	return nupkg.Identity{Name: v.ID, Version: v.Version}
}

// Options configures a Client.
type Options struct {
	// BaseURL is the index API root. Defaults to DefaultBaseURL.
	BaseURL string
	// CacheTTL is how long version listings are cached.
	CacheTTL time.Duration
	// Fetcher is the retry layer. Nil uses the default policy.
	Fetcher *httputil.Fetcher
	// HTTPClient replaces the default HTTP client.
	HTTPClient *http.Client
	// UserAgent is sent with every request.
	UserAgent string
}

// Client provides access to a NuGet v2 package index.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a gallery client. backend may be nil to disable
// metadata caching. Cache keys are scoped by base URL so two indexes
// never share listings.
func NewClient(backend cache.Cache, opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	var headers map[string]string
	if opts.UserAgent != "" {
		headers = map[string]string{"User-Agent": opts.UserAgent}
	}
	keyer := cache.NewScopedKeyer(nil, cache.Hash([]byte(base))[:12]+":")
	return &Client{
		Client: integrations.NewClient(backend, "gallery:", opts.CacheTTL, headers,
			integrations.WithFetcher(opts.Fetcher),
			integrations.WithHTTPClient(opts.HTTPClient),
			integrations.WithKeyer(keyer),
		),
		baseURL: base,
	}
}

// BaseURL returns the index API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Versions lists every published version of name in index order.
//
// If refresh is true, the cache is bypassed. A package unknown to the index
// yields [integrations.ErrNotFound]; an index that answers with an empty
// feed is treated the same way.
func (c *Client) Versions(ctx context.Context, name string, refresh bool) ([]Version, error) {
	var versions []Version
	err := c.Cached(ctx, "versions:"+strings.ToLower(name), refresh, &versions, func(ctx context.Context) error {
		var err error
		versions, err = c.fetchVersions(ctx, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: package %s", integrations.ErrNotFound, name)
	}
	return versions, nil
}

// Latest returns the first version the index reports for name. The index's
// ordering is trusted as-is.
func (c *Client) Latest(ctx context.Context, name string) (Version, error) {
	versions, err := c.Versions(ctx, name, false)
	if err != nil {
		return Version{}, err
	}
	return versions[0], nil
}

// VersionStrings returns the version numbers of name in index order.
func (c *Client) VersionStrings(ctx context.Context, name string) ([]string, error) {
	versions, err := c.Versions(ctx, name, false)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.Version
	}
	return out, nil
}

// DownloadURL returns the artifact URL for id.
func (c *Client) DownloadURL(id nupkg.Identity) string {
	return fmt.Sprintf("%s/package/%s/%s", c.baseURL, integrations.PathEscape(id.Name), integrations.PathEscape(id.Version))
}

// Download fetches the artifact for id into dir/Name.Version.nupkg.
func (c *Client) Download(ctx context.Context, id nupkg.Identity, dir string) (integrations.Downloaded, error) {
	d, err := c.Client.Download(ctx, c.DownloadURL(id), filepath.Join(dir, id.FileName()))
	if err != nil {
		return d, fmt.Errorf("download %s: %w", id, err)
	}
	return d, nil
}

func (c *Client) fetchVersions(ctx context.Context, name string) ([]Version, error) {
	next := fmt.Sprintf("%s/FindPackagesById()?id=%s", c.baseURL, integrations.URLEncode("'"+name+"'"))

	var out []Version
	for page := 0; next != "" && page < maxPages; page++ {
		var f feed
		if err := c.GetXML(ctx, next, &f); err != nil {
			return nil, err
		}
		for _, e := range f.Entries {
			if v, ok := e.version(); ok {
				out = append(out, v)
			}
		}
		next = f.nextLink()
	}
	return out, nil
}
