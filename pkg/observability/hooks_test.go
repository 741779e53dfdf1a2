package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("no such host")

	f := NoopFetchHooks{}
	f.OnRetry(ctx, "download Foo@1.0.0", 1, boom)
	f.OnGiveUp(ctx, "download Foo@1.0.0", 30, boom)
	f.OnSuccess(ctx, "download Foo@1.0.0", 2, time.Second)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "versions")
	c.OnCacheMiss(ctx, "versions")
	c.OnCacheSet(ctx, "versions", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "www.powershellgallery.com", "/api/v2/FindPackagesById()")
	h.OnResponse(ctx, "GET", "www.powershellgallery.com", "/api/v2/FindPackagesById()", 200, time.Second)
	h.OnError(ctx, "GET", "www.powershellgallery.com", "/api/v2/FindPackagesById()", boom)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Fetch().(NoopFetchHooks); !ok {
		t.Error("Fetch() should return NoopFetchHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customFetch := &testFetchHooks{}
	SetFetchHooks(customFetch)
	if Fetch() != customFetch {
		t.Error("SetFetchHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	Reset()
	if _, ok := Fetch().(NoopFetchHooks); !ok {
		t.Error("Reset() should restore NoopFetchHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testFetchHooks{}
	SetFetchHooks(custom)
	SetFetchHooks(nil)

	if Fetch() != custom {
		t.Error("SetFetchHooks(nil) should be ignored")
	}

	Reset()
}

type testFetchHooks struct{ NoopFetchHooks }
type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
