// Package httputil provides the retrying fetch layer used by every network
// call in pkgferry.
//
// # Overview
//
// Package indexes on locked-down build hosts fail in boring ways: DNS
// lookups time out, proxies reset connections, and mirrors return 502s for
// a minute at a time. [Fetcher] wraps any network operation and retries it
// with a fixed delay until it succeeds or its [Policy] budget is spent.
//
//	f := httputil.NewFetcher(httputil.Policy{}, logger)
//	err := f.Do(ctx, "download Az.Accounts@2.12.1", func(ctx context.Context) error {
//	    return client.Download(ctx, url, path)
//	})
//
// # Policy
//
// The zero [Policy] retries every 10 seconds for at most 30 attempts. Set
// Forever to retry without an attempt ceiling, and Deadline to bound the
// total wall time. When the budget is spent the last error is returned
// wrapped in [ErrRetriesExhausted].
//
// Every failure is retried, with two exceptions: errors marked with
// [Permanent] (a 404 from the index will not go away by asking again) and
// cancellation of the caller's context.
//
// # Logging
//
// Each failed attempt emits exactly one warning, "fetch failed, retrying",
// with op, attempt and err fields, and fires
// [observability.FetchHooks.OnRetry].
package httputil
