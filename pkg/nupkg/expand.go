package nupkg

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	perrors "github.com/matzehuels/pkgferry/pkg/errors"
)

// ErrUnsafePath is returned when an archive entry would be written outside
// the extraction directory.
var ErrUnsafePath = errors.New("archive entry escapes target directory")

// Expand extracts every entry of the artifact at path into dir, creating
// dir if needed. Existing files are overwritten.
func Expand(path, dir string) error {
	// Unsafe entry names are rejected per entry below.
	zr, err := zip.OpenReader(path)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer zr.Close()

	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}

	for _, f := range zr.File {
		target, err := entryPath(root, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func entryPath(root, name string) (string, error) {
	// NuGet packages built on Windows sometimes use backslashes.
	name = strings.ReplaceAll(name, `\`, "/")
	if err := perrors.ValidatePath(name); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnsafePath, name, err)
	}
	target := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
