package cli

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkgferry/pkg/observability"
)

// debugHooks logs fetch, cache and HTTP events at debug level.
type debugHooks struct {
	logger *log.Logger
}

var (
	_ observability.FetchHooks = debugHooks{}
	_ observability.CacheHooks = debugHooks{}
	_ observability.HTTPHooks  = debugHooks{}
)

func installDebugHooks(logger *log.Logger) {
	h := debugHooks{logger: logger}
	observability.SetFetchHooks(h)
	observability.SetCacheHooks(h)
	observability.SetHTTPHooks(h)
}

func (h debugHooks) OnRetry(_ context.Context, op string, attempt int, err error) {
	h.logger.Debug("retry scheduled", "op", op, "attempt", attempt, "err", err)
}

func (h debugHooks) OnGiveUp(_ context.Context, op string, attempts int, err error) {
	h.logger.Debug("gave up", "op", op, "attempts", attempts, "err", err)
}

func (h debugHooks) OnSuccess(_ context.Context, op string, attempts int, d time.Duration) {
	h.logger.Debug("fetched", "op", op, "attempts", attempts, "duration", d.Round(time.Millisecond))
}

func (h debugHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "key", keyType)
}

func (h debugHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "key", keyType)
}

func (h debugHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "key", keyType, "bytes", size)
}

func (h debugHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h debugHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("http response", "method", method, "host", host, "path", path, "status", status, "duration", d.Round(time.Millisecond))
}

func (h debugHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Debug("http error", "method", method, "host", host, "path", path, "err", err)
}
