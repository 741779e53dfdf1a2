// Package nupkgtest builds small in-memory .nupkg archives for tests.
package nupkgtest

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Dep is a dependency declaration written into the generated .nuspec.
type Dep struct {
	ID    string
	Range string
}

// Nuspec renders a minimal .nuspec document.
func Nuspec(name, version string, deps ...Dep) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	b.WriteString(`<package xmlns="http://schemas.microsoft.com/packaging/2011/08/nuspec.xsd">` + "\n")
	b.WriteString("  <metadata>\n")
	fmt.Fprintf(&b, "    <id>%s</id>\n    <version>%s</version>\n", html.EscapeString(name), html.EscapeString(version))
	b.WriteString("    <authors>test</authors>\n    <description>test package</description>\n")
	if len(deps) > 0 {
		b.WriteString("    <dependencies>\n")
		for _, d := range deps {
			fmt.Fprintf(&b, "      <dependency id=%q version=%q />\n", html.EscapeString(d.ID), html.EscapeString(d.Range))
		}
		b.WriteString("    </dependencies>\n")
	}
	b.WriteString("  </metadata>\n</package>\n")
	return b.String()
}

// Archive returns a zip holding the given files.
func Archive(files map[string]string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			panic(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			panic(err)
		}
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Package returns an artifact for name@version declaring deps, plus a
// module manifest so expanded layouts look like a real module.
func Package(name, version string, deps ...Dep) []byte {
	return Archive(map[string]string{
		name + ".nuspec":      Nuspec(name, version, deps...),
		name + ".psd1":        fmt.Sprintf("@{ ModuleVersion = '%s' }\n", version),
		"[Content_Types].xml": `<?xml version="1.0" encoding="utf-8"?><Types/>`,
	})
}

// Write stores the artifact for name@version in dir and returns its path.
func Write(dir, name, version string, deps ...Dep) (string, error) {
	path := filepath.Join(dir, name+"."+version+".nupkg")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return path, os.WriteFile(path, Package(name, version, deps...), 0o644)
}
