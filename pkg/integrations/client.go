package integrations

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/matzehuels/pkgferry/pkg/cache"
	"github.com/matzehuels/pkgferry/pkg/httputil"
	"github.com/matzehuels/pkgferry/pkg/observability"
)

// Client provides shared HTTP functionality for package index clients.
// It handles caching, retries, and common request headers.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	http      *http.Client
	cache     cache.Cache
	keyer     cache.Keyer
	namespace string
	ttl       time.Duration
	headers   map[string]string
	fetcher   *httputil.Fetcher
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithFetcher sets the retry layer. Without it the client uses a Fetcher
// with the default policy.
func WithFetcher(f *httputil.Fetcher) Option {
	return func(c *Client) {
		if f != nil {
			c.fetcher = f
		}
	}
}

// WithKeyer overrides how cache keys are derived.
func WithKeyer(k cache.Keyer) Option {
	return func(c *Client) {
		if k != nil {
			c.keyer = k
		}
	}
}

// NewClient creates a Client. backend may be nil to disable caching;
// namespace separates this client's cache entries (e.g. "gallery:").
// Headers are applied to all requests made through this client.
func NewClient(backend cache.Cache, namespace string, ttl time.Duration, headers map[string]string, opts ...Option) *Client {
	if backend == nil {
		backend = cache.NewNullCache()
	}
	c := &Client{
		http:      NewHTTPClient(),
		cache:     backend,
		keyer:     cache.NewDefaultKeyer(),
		namespace: namespace,
		ttl:       ttl,
		headers:   headers,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = httputil.NewFetcher(httputil.Policy{}, nil)
	}
	return c
}

// Fetcher returns the retry layer used by this client.
func (c *Client) Fetcher() *httputil.Fetcher { return c.fetcher }

// Cached retrieves v from cache or calls fetch and caches the result.
// If refresh is true, the cache is bypassed. fetch should populate v and
// is expected to do its own retrying (the Get methods do).
func (c *Client) Cached(ctx context.Context, key string, refresh bool, v any, fetch func(context.Context) error) error {
	k := c.keyer.HTTPKey(c.namespace, key)
	hooks := observability.Cache()

	if !refresh {
		if data, ok, err := c.cache.Get(ctx, k); err == nil && ok {
			if json.Unmarshal(data, v) == nil {
				hooks.OnCacheHit(ctx, c.namespace)
				return nil
			}
		}
		hooks.OnCacheMiss(ctx, c.namespace)
	}

	if err := fetch(ctx); err != nil {
		return err
	}

	if data, err := json.Marshal(v); err == nil {
		if c.cache.Set(ctx, k, data, c.ttl) == nil {
			hooks.OnCacheSet(ctx, c.namespace, len(data))
		}
	}
	return nil
}

// GetJSON performs a retried GET and JSON-decodes the response into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	return c.fetcher.Do(ctx, "GET "+rawURL, func(ctx context.Context) error {
		body, err := c.doRequest(ctx, rawURL, nil)
		if err != nil {
			return err
		}
		defer body.Close()
		if err := json.NewDecoder(body).Decode(v); err != nil {
			return fmt.Errorf("%w: decode %s: %v", ErrNetwork, rawURL, err)
		}
		return nil
	})
}

// GetXML performs a retried GET and XML-decodes the response into v.
// A truncated body is treated like any other transport failure.
func (c *Client) GetXML(ctx context.Context, rawURL string, v any) error {
	return c.fetcher.Do(ctx, "GET "+rawURL, func(ctx context.Context) error {
		body, err := c.doRequest(ctx, rawURL, map[string]string{"Accept": "application/atom+xml,application/xml"})
		if err != nil {
			return err
		}
		defer body.Close()
		if err := xml.NewDecoder(body).Decode(v); err != nil {
			return fmt.Errorf("%w: decode %s: %v", ErrNetwork, rawURL, err)
		}
		return nil
	})
}

// Downloaded describes an artifact written by [Client.Download].
type Downloaded struct {
	Path   string
	Size   int64
	SHA256 string
}

// Download fetches rawURL into path. The body is streamed into path+".part"
// and renamed on success, so an interrupted download never looks complete.
func (c *Client) Download(ctx context.Context, rawURL, path string) (Downloaded, error) {
	var out Downloaded
	err := c.fetcher.Do(ctx, "download "+filepath.Base(path), func(ctx context.Context) error {
		d, err := c.downloadOnce(ctx, rawURL, path)
		if err != nil {
			return err
		}
		out = d
		return nil
	})
	return out, err
}

func (c *Client) downloadOnce(ctx context.Context, rawURL, path string) (Downloaded, error) {
	body, err := c.doRequest(ctx, rawURL, nil)
	if err != nil {
		return Downloaded{}, err
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Downloaded{}, httputil.Permanent(err)
	}
	part := path + ".part"
	f, err := os.Create(part)
	if err != nil {
		return Downloaded{}, httputil.Permanent(err)
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(part)
		return Downloaded{}, fmt.Errorf("%w: read %s: %v", ErrNetwork, rawURL, err)
	}
	if err := os.Rename(part, path); err != nil {
		os.Remove(part)
		return Downloaded{}, httputil.Permanent(err)
	}
	return Downloaded{Path: path, Size: n, SHA256: hex.EncodeToString(h.Sum(nil))}, nil
}

func (c *Client) doRequest(ctx context.Context, rawURL string, headers map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, httputil.Permanent(err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	host, path := hostPath(rawURL)
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode, rawURL); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func checkStatus(code int, rawURL string) error {
	switch code {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return httputil.Permanent(fmt.Errorf("%w: %s", ErrNotFound, rawURL))
	default:
		return fmt.Errorf("%w: status %d from %s", ErrNetwork, code, rawURL)
	}
}

func hostPath(rawURL string) (string, string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", rawURL
	}
	return u.Host, u.Path
}
