package nupkg

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/pkgferry/pkg/nupkg/nupkgtest"
)

func TestIdentity(t *testing.T) {
	id := Identity{Name: "Microsoft.Graph.Mail", Version: "1.0.0"}
	if got := id.Key(); got != "Microsoft.Graph.Mail@1.0.0" {
		t.Errorf("Key() = %q", got)
	}
	if got := id.FileName(); got != "Microsoft.Graph.Mail.1.0.0.nupkg" {
		t.Errorf("FileName() = %q", got)
	}
	if id.IsZero() || !(Identity{}).IsZero() {
		t.Error("IsZero() wrong")
	}
}

func TestParseFileName(t *testing.T) {
	tests := []struct {
		in      string
		want    Identity
		wantErr bool
	}{
		{"Microsoft.Graph.Mail.1.0.0.nupkg", Identity{"Microsoft.Graph.Mail", "1.0.0"}, false},
		{"Az.Accounts.2.12.1.nupkg", Identity{"Az.Accounts", "2.12.1"}, false},
		{"Pester.5.5.0.nupkg", Identity{"Pester", "5.5.0"}, false},
		{"A.0.0.10.nupkg", Identity{"A", "0.0.10"}, false},
		{"Foo.1.0.nupkg", Identity{}, true},
		{"1.0.0.nupkg", Identity{}, true},
		{".1.0.0.nupkg", Identity{}, true},
		{"Foo.1.0.0-beta.nupkg", Identity{}, true},
		{"Foo.1.0.0.zip", Identity{}, true},
		{"Foo.a.b.c.nupkg", Identity{}, true},
		{"Foo.-1.0.0.nupkg", Identity{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFileName(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFileName) {
					t.Errorf("ParseFileName(%q) error = %v, want ErrInvalidFileName", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFileName(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseFileName(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFileNameRoundTrip(t *testing.T) {
	id := Identity{Name: "Microsoft.Graph.Authentication", Version: "2.28.0"}
	got, err := ParseFileName(id.FileName())
	if err != nil {
		t.Fatal(err)
	}
	if got != id {
		t.Errorf("round trip = %+v, want %+v", got, id)
	}
}

func TestParseManifest(t *testing.T) {
	doc := `<?xml version="1.0"?>
<package xmlns="http://schemas.microsoft.com/packaging/2013/05/nuspec.xsd">
  <metadata>
    <id>Microsoft.Graph.Users</id>
    <version>2.28.0</version>
    <authors>Microsoft Corporation</authors>
    <description>Users module</description>
    <dependencies>
      <group targetFramework=".NETStandard2.0">
        <dependency id="Microsoft.Graph.Authentication" version="[2.28.0]" />
        <dependency id="Newtonsoft.Json" version="13.0.1" />
      </group>
      <group targetFramework=".NETFramework4.7.2">
        <dependency id="Microsoft.Graph.Authentication" version="[2.28.0]" />
      </group>
    </dependencies>
  </metadata>
</package>`

	m, err := ParseManifest(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}
	if m.Identity() != (Identity{"Microsoft.Graph.Users", "2.28.0"}) {
		t.Errorf("Identity() = %+v", m.Identity())
	}
	want := []Dependency{
		{ID: "Microsoft.Graph.Authentication", Range: "[2.28.0]"},
		{ID: "Newtonsoft.Json", Range: "13.0.1"},
	}
	if len(m.Dependencies) != len(want) {
		t.Fatalf("Dependencies = %+v, want %+v", m.Dependencies, want)
	}
	for i := range want {
		if m.Dependencies[i] != want[i] {
			t.Errorf("Dependencies[%d] = %+v, want %+v", i, m.Dependencies[i], want[i])
		}
	}
}

func TestParseManifest_Invalid(t *testing.T) {
	for _, doc := range []string{"", "<package><metadata></metadata></package>", "<package"} {
		if _, err := ParseManifest(strings.NewReader(doc)); !errors.Is(err, ErrInvalidManifest) {
			t.Errorf("ParseManifest(%q) error = %v, want ErrInvalidManifest", doc, err)
		}
	}
}

func TestReadManifest(t *testing.T) {
	dir := t.TempDir()
	path, err := nupkgtest.Write(dir, "A", "1.0.0", nupkgtest.Dep{ID: "B", Range: "[1.0.0]"})
	if err != nil {
		t.Fatal(err)
	}

	m, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if m.ID != "A" || len(m.Dependencies) != 1 || m.Dependencies[0].ID != "B" {
		t.Errorf("ReadManifest() = %+v", m)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("ReadManifest() left %d entries in dir, want 1", len(entries))
	}
}

func TestReadManifest_NestedNuspec(t *testing.T) {
	data := nupkgtest.Archive(map[string]string{
		"payload/module.psm1": "",
		"meta/deep/C.nuspec":  nupkgtest.Nuspec("C", "3.0.0"),
	})
	m, err := ReadManifestFrom(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("ReadManifestFrom() error = %v", err)
	}
	if m.ID != "C" {
		t.Errorf("ID = %q", m.ID)
	}
}

func TestReadManifest_Missing(t *testing.T) {
	data := nupkgtest.Archive(map[string]string{"readme.txt": "hi"})
	if _, err := ReadManifestFrom(bytes.NewReader(data), int64(len(data))); !errors.Is(err, ErrInvalidManifest) {
		t.Errorf("error = %v, want ErrInvalidManifest", err)
	}

	path := filepath.Join(t.TempDir(), "broken.1.0.0.nupkg")
	os.WriteFile(path, []byte("not a zip"), 0o644)
	if _, err := ReadManifest(path); !errors.Is(err, ErrInvalidManifest) {
		t.Errorf("ReadManifest(not zip) error = %v, want ErrInvalidManifest", err)
	}
}

func TestSidecar(t *testing.T) {
	dir := t.TempDir()
	path, _ := nupkgtest.Write(dir, "Weird.Name.2", "1.0.0")

	s := Sidecar{Name: "Weird.Name.2", Version: "1.0.0", SHA256: "abc", RunID: "run", FetchedAt: time.Now().UTC()}
	if err := WriteSidecar(path, s); err != nil {
		t.Fatalf("WriteSidecar() error = %v", err)
	}

	got, err := ReadSidecar(path)
	if err != nil {
		t.Fatalf("ReadSidecar() error = %v", err)
	}
	if got.File != filepath.Base(path) {
		t.Errorf("File = %q", got.File)
	}
	if got.Identity() != (Identity{"Weird.Name.2", "1.0.0"}) {
		t.Errorf("Identity() = %+v", got.Identity())
	}
}

func TestIdentifyFile(t *testing.T) {
	dir := t.TempDir()

	plain, _ := nupkgtest.Write(dir, "Az.Accounts", "2.12.1")
	id, fromSidecar, err := IdentifyFile(plain)
	if err != nil || fromSidecar || id != (Identity{"Az.Accounts", "2.12.1"}) {
		t.Errorf("IdentifyFile(plain) = %+v, %v, %v", id, fromSidecar, err)
	}

	// A name ending in digits is misread by the file name grammar; the
	// sidecar records the truth.
	odd, _ := nupkgtest.Write(dir, "Tool.1", "2.0.0.5")
	WriteSidecar(odd, Sidecar{Name: "Tool.1", Version: "2.0.0.5"})
	id, fromSidecar, err = IdentifyFile(odd)
	if err != nil || !fromSidecar || id != (Identity{"Tool.1", "2.0.0.5"}) {
		t.Errorf("IdentifyFile(sidecar) = %+v, %v, %v", id, fromSidecar, err)
	}

	bad := filepath.Join(dir, "garbage.nupkg")
	os.WriteFile(bad, nil, 0o644)
	if _, _, err := IdentifyFile(bad); !errors.Is(err, ErrInvalidFileName) {
		t.Errorf("IdentifyFile(bad) error = %v", err)
	}
}

func TestListArtifacts(t *testing.T) {
	dir := t.TempDir()
	nupkgtest.Write(dir, "B", "1.0.0")
	nupkgtest.Write(dir, "A", "1.0.0")
	os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644)
	os.Mkdir(filepath.Join(dir, "sub.nupkg"), 0o755)

	got, err := ListArtifacts(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || filepath.Base(got[0]) != "A.1.0.0.nupkg" {
		t.Errorf("ListArtifacts() = %v", got)
	}
}

func TestExpand(t *testing.T) {
	src := t.TempDir()
	path, _ := nupkgtest.Write(src, "A", "1.0.0")

	dst := filepath.Join(t.TempDir(), "A", "1.0.0")
	if err := Expand(path, dst); err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	for _, name := range []string{"A.nuspec", "A.psd1"} {
		if _, err := os.Stat(filepath.Join(dst, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestExpand_RejectsTraversal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evil.1.0.0.nupkg")
	os.WriteFile(path, nupkgtest.Archive(map[string]string{"../../escape.txt": "x"}), 0o644)

	dst := t.TempDir()
	if err := Expand(path, dst); !errors.Is(err, ErrUnsafePath) {
		t.Errorf("Expand() error = %v, want ErrUnsafePath", err)
	}
}
