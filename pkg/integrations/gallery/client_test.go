package gallery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkgferry/pkg/cache"
	"github.com/matzehuels/pkgferry/pkg/httputil"
	"github.com/matzehuels/pkgferry/pkg/integrations"
	"github.com/matzehuels/pkgferry/pkg/nupkg"
)

const page1 = `<?xml version="1.0" encoding="utf-8"?>
<feed xml:base="https://www.powershellgallery.com/api/v2" xmlns="http://www.w3.org/2005/Atom"
      xmlns:d="http://schemas.microsoft.com/ado/2007/08/dataservices"
      xmlns:m="http://schemas.microsoft.com/ado/2007/08/dataservices/metadata">
  <id>https://www.powershellgallery.com/api/v2/Packages</id>
  <title type="text">Packages</title>
  <entry>
    <id>https://www.powershellgallery.com/api/v2/Packages(Id='Microsoft.Graph',Version='2.28.0')</id>
    <title type="text">Microsoft.Graph</title>
    <content type="application/zip" src="https://www.powershellgallery.com/api/v2/package/Microsoft.Graph/2.28.0" />
    <m:properties>
      <d:Id>Microsoft.Graph</d:Id>
      <d:Version>2.28.0</d:Version>
      <d:IsLatestVersion m:type="Edm.Boolean">true</d:IsLatestVersion>
      <d:IsPrerelease m:type="Edm.Boolean">false</d:IsPrerelease>
      <d:Published m:type="Edm.DateTime">2025-05-20T10:00:00.000</d:Published>
    </m:properties>
  </entry>
  <entry>
    <title type="text">Microsoft.Graph</title>
    <m:properties>
      <d:Version>2.27.0</d:Version>
      <d:IsLatestVersion m:type="Edm.Boolean">false</d:IsLatestVersion>
    </m:properties>
  </entry>
  <link rel="next" href="%s/FindPackagesById()?id='Microsoft.Graph'&amp;$skip=2" />
</feed>`

const page2 = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"
      xmlns:d="http://schemas.microsoft.com/ado/2007/08/dataservices"
      xmlns:m="http://schemas.microsoft.com/ado/2007/08/dataservices/metadata">
  <entry>
    <m:properties>
      <d:Id>Microsoft.Graph</d:Id>
      <d:Version>3.0.0-preview1</d:Version>
      <d:IsPrerelease m:type="Edm.Boolean">true</d:IsPrerelease>
    </m:properties>
  </entry>
</feed>`

const emptyFeed = `<?xml version="1.0" encoding="utf-8"?><feed xmlns="http://www.w3.org/2005/Atom"></feed>`

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	backend, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	f := httputil.NewFetcher(httputil.Policy{Delay: time.Millisecond, MaxAttempts: 3}, log.New(io.Discard))
	c := NewClient(backend, Options{BaseURL: server.URL, CacheTTL: time.Hour, Fetcher: f, HTTPClient: server.Client()})
	return c, server
}

func galleryHandler(t *testing.T, requests *atomic.Int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/FindPackagesById()":
			if requests != nil {
				requests.Add(1)
			}
			id := r.URL.Query().Get("id")
			switch {
			case id == "'Microsoft.Graph'" && r.URL.Query().Get("$skip") == "2":
				io.WriteString(w, page2)
			case id == "'Microsoft.Graph'":
				fmt.Fprintf(w, page1, "http://"+r.Host)
			case id == "'Empty'":
				io.WriteString(w, emptyFeed)
			default:
				http.NotFound(w, r)
			}
		case strings.HasPrefix(r.URL.Path, "/package/Microsoft.Graph/"):
			io.WriteString(w, "nupkg-bytes-"+strings.TrimPrefix(r.URL.Path, "/package/Microsoft.Graph/"))
		default:
			http.NotFound(w, r)
		}
	})
}

func TestVersions(t *testing.T) {
	var requests atomic.Int32
	c, _ := newTestClient(t, galleryHandler(t, &requests))

	versions, err := c.Versions(context.Background(), "Microsoft.Graph", false)
	if err != nil {
		t.Fatalf("Versions() error = %v", err)
	}
	got := make([]string, len(versions))
	for i, v := range versions {
		got[i] = v.Version
	}
	if strings.Join(got, ",") != "2.28.0,2.27.0,3.0.0-preview1" {
		t.Errorf("Versions() = %v", got)
	}
	if !versions[0].IsLatest || versions[1].IsLatest {
		t.Error("IsLatest not decoded")
	}
	if versions[1].ID != "Microsoft.Graph" {
		t.Errorf("ID should fall back to title, got %q", versions[1].ID)
	}
	if !versions[2].IsPrerelease {
		t.Error("IsPrerelease not decoded")
	}
	if requests.Load() != 2 {
		t.Errorf("requests = %d, want 2 pages", requests.Load())
	}

	if _, err := c.Versions(context.Background(), "Microsoft.Graph", false); err != nil {
		t.Fatal(err)
	}
	if requests.Load() != 2 {
		t.Errorf("cached listing should not hit the index, requests = %d", requests.Load())
	}
	if _, err := c.Versions(context.Background(), "Microsoft.Graph", true); err != nil {
		t.Fatal(err)
	}
	if requests.Load() != 4 {
		t.Errorf("refresh should hit the index, requests = %d", requests.Load())
	}
}

func TestLatest(t *testing.T) {
	c, _ := newTestClient(t, galleryHandler(t, nil))

	v, err := c.Latest(context.Background(), "Microsoft.Graph")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if v.Identity() != (nupkg.Identity{Name: "Microsoft.Graph", Version: "2.28.0"}) {
		t.Errorf("Latest() = %+v", v)
	}
}

func TestVersions_NotFound(t *testing.T) {
	c, _ := newTestClient(t, galleryHandler(t, nil))

	for _, name := range []string{"Nope", "Empty"} {
		_, err := c.Versions(context.Background(), name, false)
		if !errors.Is(err, integrations.ErrNotFound) {
			t.Errorf("Versions(%s) error = %v, want ErrNotFound", name, err)
		}
	}
}

func TestDownload(t *testing.T) {
	c, _ := newTestClient(t, galleryHandler(t, nil))
	dir := t.TempDir()
	id := nupkg.Identity{Name: "Microsoft.Graph", Version: "2.28.0"}

	d, err := c.Download(context.Background(), id, dir)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if d.Path != filepath.Join(dir, "Microsoft.Graph.2.28.0.nupkg") {
		t.Errorf("Path = %s", d.Path)
	}
	data, _ := os.ReadFile(d.Path)
	if string(data) != "nupkg-bytes-2.28.0" {
		t.Errorf("content = %q", data)
	}

	_, err = c.Download(context.Background(), nupkg.Identity{Name: "Other", Version: "1.0.0"}, dir)
	if !errors.Is(err, integrations.ErrNotFound) {
		t.Errorf("Download(missing) error = %v, want ErrNotFound", err)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(nil, Options{})
	if c.BaseURL() != DefaultBaseURL {
		t.Errorf("BaseURL() = %s", c.BaseURL())
	}
	c = NewClient(nil, Options{BaseURL: "http://feed.local/api/v2/"})
	if got := c.DownloadURL(nupkg.Identity{Name: "A B", Version: "1.0.0"}); got != "http://feed.local/api/v2/package/A%20B/1.0.0" {
		t.Errorf("DownloadURL() = %s", got)
	}
}

func TestWriteFeed_RoundTrip(t *testing.T) {
	in := []Version{
		{ID: "Pester", Version: "5.5.0", IsLatest: true},
		{ID: "Pester", Version: "5.4.1"},
		{ID: "Pester", Version: "6.0.0-alpha1", IsPrerelease: true},
	}
	var buf bytes.Buffer
	if err := WriteFeed(&buf, "http://feed.local", in); err != nil {
		t.Fatalf("WriteFeed() error = %v", err)
	}

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
	out, err := c.Versions(context.Background(), "Pester", false)
	if err != nil {
		t.Fatalf("Versions() error = %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("round trip = %+v", out)
	}
	for i := range in {
		if out[i].ID != in[i].ID || out[i].Version != in[i].Version ||
			out[i].IsLatest != in[i].IsLatest || out[i].IsPrerelease != in[i].IsPrerelease {
			t.Errorf("entry %d = %+v, want %+v", i, out[i], in[i])
		}
	}
	if out[0].DownloadURL != "http://feed.local/package/Pester/5.5.0" {
		t.Errorf("DownloadURL = %s", out[0].DownloadURL)
	}
}
