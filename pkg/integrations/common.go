package integrations

import (
	"errors"
	"net/http"
	"net/url"
	"time"
)

const httpTimeout = 5 * time.Minute

var (
	// ErrNotFound is returned when a package or resource doesn't exist in the index.
	// It is always wrapped with [httputil.Permanent]; asking again will not help.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for transport failures and unexpected HTTP statuses.
	// The Fetcher retries these.
	ErrNetwork = errors.New("network error")
)

// NewHTTPClient creates an HTTP client for index requests. The timeout is
// generous because artifact downloads share the client.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// URLEncode percent-encodes a string for use in URLs.
// This is a convenience wrapper around [url.QueryEscape].
func URLEncode(s string) string { return url.QueryEscape(s) }

// PathEscape escapes a string for use as a single URL path segment.
func PathEscape(s string) string { return url.PathEscape(s) }
