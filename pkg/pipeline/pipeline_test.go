package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	perrors "github.com/matzehuels/pkgferry/pkg/errors"
	"github.com/matzehuels/pkgferry/pkg/integrations"
	"github.com/matzehuels/pkgferry/pkg/integrations/gallery"
	"github.com/matzehuels/pkgferry/pkg/ledger"
	"github.com/matzehuels/pkgferry/pkg/nupkg"
	"github.com/matzehuels/pkgferry/pkg/nupkg/nupkgtest"
	"github.com/matzehuels/pkgferry/pkg/psget"
	"github.com/matzehuels/pkgferry/pkg/repository"
	"github.com/matzehuels/pkgferry/pkg/resolve"
)

// memIndex serves a fixed package graph from memory.
type memIndex struct {
	versions  map[string]string
	artifacts map[string][]byte
	downloads int
}

func newMemIndex() *memIndex {
	return &memIndex{versions: map[string]string{}, artifacts: map[string][]byte{}}
}

func (m *memIndex) add(name, version string, deps ...nupkgtest.Dep) {
	m.versions[name] = version
	m.artifacts[name+"@"+version] = nupkgtest.Package(name, version, deps...)
}

func (m *memIndex) Latest(_ context.Context, name string) (gallery.Version, error) {
	v, ok := m.versions[name]
	if !ok {
		return gallery.Version{}, integrations.ErrNotFound
	}
	return gallery.Version{ID: name, Version: v, IsLatest: true}, nil
}

func (m *memIndex) VersionStrings(_ context.Context, name string) ([]string, error) {
	v, ok := m.versions[name]
	if !ok {
		return nil, integrations.ErrNotFound
	}
	return []string{v}, nil
}

func (m *memIndex) Download(_ context.Context, id nupkg.Identity, dir string) (integrations.Downloaded, error) {
	data, ok := m.artifacts[id.Key()]
	if !ok {
		return integrations.Downloaded{}, fmt.Errorf("%w: %s", integrations.ErrNotFound, id)
	}
	m.downloads++
	path := filepath.Join(dir, id.FileName())
	return integrations.Downloaded{Path: path, Size: int64(len(data))}, os.WriteFile(path, data, 0o644)
}

type recordingPSGet struct {
	installed []nupkg.Identity
}

func (r *recordingPSGet) EnsureRepository(context.Context, psget.Repository) error { return nil }

func (r *recordingPSGet) Install(_ context.Context, id nupkg.Identity, _ psget.InstallOptions) error {
	r.installed = append(r.installed, id)
	return nil
}

type memLedger struct{ entries []ledger.Entry }

func (m *memLedger) Record(_ context.Context, e ledger.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}
func (m *memLedger) List(context.Context) ([]ledger.Entry, error) { return m.entries, nil }
func (m *memLedger) Close() error                                 { return nil }

func graphIndex() *memIndex {
	idx := newMemIndex()
	idx.add("Microsoft.Graph", "2.28.0",
		nupkgtest.Dep{ID: "Microsoft.Graph.Mail", Range: "[2.28.0]"},
		nupkgtest.Dep{ID: "Microsoft.Graph.Users", Range: "[2.28.0]"})
	idx.add("Microsoft.Graph.Mail", "2.28.0", nupkgtest.Dep{ID: "Microsoft.Graph.Authentication", Range: "[2.28.0]"})
	idx.add("Microsoft.Graph.Users", "2.28.0", nupkgtest.Dep{ID: "Microsoft.Graph.Authentication", Range: "[2.28.0]"})
	idx.add("Microsoft.Graph.Authentication", "2.28.0")
	return idx
}

func newTestRunner(idx resolve.Index, ps psget.Client, admin bool) *Runner {
	logger := log.New(io.Discard)
	return NewRunner(Deps{
		Index:   idx,
		Builder: repository.NewBuilder(repository.Options{Logger: logger}),
		PSGet:   ps,
		Trusted: true,
		IsAdmin: func() bool { return admin },
		Logger:  logger,
	})
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in      string
		want    Action
		wantErr bool
	}{
		{"download", Download, false},
		{"Install", Install, false},
		{" both ", Both, false},
		{"1", Download, false},
		{"2", Install, false},
		{"3", Both, false},
		{"", "", true},
		{"4", "", true},
		{"upload", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAction(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAction(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidAction) || !perrors.Is(err, perrors.ErrCodeInvalidAction) {
				t.Errorf("ParseAction(%q) error = %v, want ErrInvalidAction", tt.in, err)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAction(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestActionPhases(t *testing.T) {
	if !Download.Downloads() || Download.Installs() {
		t.Error("download phases")
	}
	if Install.Downloads() || !Install.Installs() {
		t.Error("install phases")
	}
	if !Both.Downloads() || !Both.Installs() {
		t.Error("both phases")
	}
	for _, a := range Actions {
		if a.Describe() == string(a) {
			t.Errorf("%s has no description", a)
		}
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"bad action", Options{Action: "sync", Dest: "d"}},
		{"no dest", Options{Action: Download, Package: "A"}},
		{"bad package", Options{Action: Download, Package: "../A", Dest: "d"}},
		{"bad version", Options{Action: Download, Package: "A", Version: "x y", Dest: "d"}},
		{"no feed", Options{Action: Install, Dest: "d"}},
	}
	for _, tt := range tests {
		if err := tt.opts.Validate(); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
	if err := (Options{Action: Install, Dest: "d", Feed: "f"}).Validate(); err != nil {
		t.Errorf("install without package should be valid: %v", err)
	}
}

func TestRun_Both(t *testing.T) {
	idx := graphIndex()
	ps := &recordingPSGet{}
	r := newTestRunner(idx, ps, true)
	dir := t.TempDir()

	res, err := r.Run(context.Background(), Options{
		Action:  Both,
		Package: "Microsoft.Graph",
		Dest:    filepath.Join(dir, "packages"),
		Feed:    filepath.Join(dir, "feed"),
		Graph:   filepath.Join(dir, "graph.dot"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if idx.downloads != 4 || len(res.Resolve.Identities) != 4 {
		t.Errorf("downloads = %d, identities = %d", idx.downloads, len(res.Resolve.Identities))
	}
	if len(ps.installed) != 3 {
		t.Errorf("installed = %v", ps.installed)
	}
	for _, id := range ps.installed {
		if id.Name == "Microsoft.Graph" {
			t.Error("meta-package was installed")
		}
	}
	if res.Install == nil || len(res.Install.Skipped) != 1 {
		t.Errorf("install summary = %+v", res.Install)
	}

	dot, err := os.ReadFile(res.GraphPath)
	if err != nil {
		t.Fatalf("graph not written: %v", err)
	}
	if !strings.Contains(string(dot), `"Microsoft.Graph@2.28.0" -> "Microsoft.Graph.Mail@2.28.0"`) {
		t.Errorf("graph = %s", dot)
	}
	if !strings.Contains(res.String(), "4 resolved") || !strings.Contains(res.String(), "3 installed") {
		t.Errorf("String() = %s", res.String())
	}
}

func TestRun_InstallRequiresAdmin(t *testing.T) {
	idx := graphIndex()
	ps := &recordingPSGet{}
	r := newTestRunner(idx, ps, false)
	dir := t.TempDir()

	_, err := r.Run(context.Background(), Options{
		Action:  Both,
		Package: "Microsoft.Graph",
		Dest:    filepath.Join(dir, "packages"),
		Feed:    filepath.Join(dir, "feed"),
	})
	if !errors.Is(err, ErrNotAdmin) || !perrors.Is(err, perrors.ErrCodeNotAdmin) {
		t.Fatalf("Run() error = %v, want ErrNotAdmin", err)
	}
	if idx.downloads != 0 {
		t.Error("nothing should be downloaded before the admin check fails")
	}

	if _, err := r.Run(context.Background(), Options{
		Action:  Download,
		Package: "Microsoft.Graph",
		Dest:    filepath.Join(dir, "packages"),
	}); err != nil {
		t.Errorf("download-only should not need admin: %v", err)
	}
}

func TestRun_InstallScansDisk(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "packages")
	for _, name := range []string{"Microsoft.Graph", "Microsoft.Graph.Mail"} {
		if _, err := nupkgtest.Write(dest, name, "1.0.0"); err != nil {
			t.Fatal(err)
		}
	}
	ps := &recordingPSGet{}
	r := newTestRunner(nil, ps, true)

	res, err := r.Run(context.Background(), Options{Action: Install, Dest: dest, Feed: filepath.Join(dir, "feed")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Resolve != nil {
		t.Error("download phase should not run")
	}
	if len(ps.installed) != 1 || ps.installed[0] != (nupkg.Identity{Name: "Microsoft.Graph.Mail", Version: "1.0.0"}) {
		t.Errorf("installed = %v", ps.installed)
	}
}

func TestRun_LedgerMirror(t *testing.T) {
	idx := graphIndex()
	mirror := &memLedger{}
	logger := log.New(io.Discard)
	r := NewRunner(Deps{Index: idx, Ledger: mirror, Source: "test", Logger: logger})
	dest := t.TempDir()

	if _, err := r.Run(context.Background(), Options{Action: Download, Package: "Microsoft.Graph", Dest: dest}); err != nil {
		t.Fatal(err)
	}
	if len(mirror.entries) != 4 {
		t.Errorf("mirror has %d entries, want 4", len(mirror.entries))
	}
	sc, err := nupkg.ReadSidecar(filepath.Join(dest, "Microsoft.Graph.Mail.2.28.0.nupkg"))
	if err != nil || sc.Source != "test" {
		t.Errorf("sidecar = %+v, %v", sc, err)
	}
}

func TestRun_UnknownRoot(t *testing.T) {
	r := newTestRunner(newMemIndex(), &recordingPSGet{}, true)
	_, err := r.Run(context.Background(), Options{Action: Download, Package: "Nope", Dest: t.TempDir()})
	if !errors.Is(err, integrations.ErrNotFound) {
		t.Errorf("Run() error = %v, want ErrNotFound", err)
	}
}

func TestToDOT(t *testing.T) {
	root := nupkg.Identity{Name: "A", Version: "1.0.0"}
	b := nupkg.Identity{Name: "B", Version: "2.0.0"}
	res := &resolve.Result{
		Root:       root,
		Identities: []nupkg.Identity{root, b},
		Edges:      []resolve.Edge{{From: root, To: b, Range: "[2.0.0, )"}},
		Failed:     []resolve.Failure{{Identity: b, Message: "boom"}},
	}
	dot := ToDOT(res)
	for _, want := range []string{
		`"A@1.0.0" [label="A\n1.0.0", penwidth=2`,
		`"B@2.0.0" [label="B\n2.0.0", style="rounded,filled,dashed"`,
		`"A@1.0.0" -> "B@2.0.0" [label="[2.0.0, )"`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %s:\n%s", want, dot)
		}
	}
}

func TestWriteGraph_SVG(t *testing.T) {
	root := nupkg.Identity{Name: "A", Version: "1.0.0"}
	res := &resolve.Result{Root: root, Identities: []nupkg.Identity{root}}
	path := filepath.Join(t.TempDir(), "out", "graph.svg")

	if err := WriteGraph(context.Background(), res, path); err != nil {
		t.Fatalf("WriteGraph() error = %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "<svg") {
		t.Error("output is not SVG")
	}
}
