package repository

import (
	"context"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	perrors "github.com/matzehuels/pkgferry/pkg/errors"
	"github.com/matzehuels/pkgferry/pkg/nupkg"
)

// LayoutResult reports what [Layout] did with each identity.
type LayoutResult struct {
	Expanded []nupkg.Identity
	Missing  []nupkg.Identity
	Failed   []nupkg.Identity
}

// Layout expands the artifact of each identity into feedDir/Name/Version/.
// A missing artifact or a failed extraction is logged and skipped; the
// rest of the batch continues. Only context cancellation stops it early.
func Layout(ctx context.Context, feedDir string, ids []nupkg.Identity, logger *log.Logger) (LayoutResult, error) {
	if logger == nil {
		logger = log.Default()
	}
	var res LayoutResult
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := validIdentity(id); err != nil {
			logger.Warn("invalid identity", "pkg", id.Name, "version", id.Version, "err", err)
			res.Failed = append(res.Failed, id)
			continue
		}
		src := filepath.Join(feedDir, id.FileName())
		if _, err := os.Stat(src); err != nil {
			logger.Warn("artifact missing", "pkg", id.Name, "version", id.Version, "path", src)
			res.Missing = append(res.Missing, id)
			continue
		}
		dst := filepath.Join(feedDir, id.Name, id.Version)
		if err := os.RemoveAll(dst); err != nil {
			logger.Warn("clean module directory", "path", dst, "err", err)
		}
		if err := nupkg.Expand(src, dst); err != nil {
			logger.Warn("expand failed", "pkg", id.Name, "version", id.Version, "err", err)
			res.Failed = append(res.Failed, id)
			continue
		}
		logger.Debug("expanded", "pkg", id.Name, "version", id.Version, "dir", dst)
		res.Expanded = append(res.Expanded, id)
	}
	return res, nil
}

func validIdentity(id nupkg.Identity) error {
	if err := perrors.ValidatePackageName(id.Name); err != nil {
		return err
	}
	return perrors.ValidateVersion(id.Version)
}
