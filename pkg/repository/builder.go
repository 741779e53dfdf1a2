package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	perrors "github.com/matzehuels/pkgferry/pkg/errors"
	"github.com/matzehuels/pkgferry/pkg/integrations"
	"github.com/matzehuels/pkgferry/pkg/nupkg"
	"github.com/matzehuels/pkgferry/pkg/runner"
)

// ErrUnsafeFeed is returned when cleaning the feed directory would delete
// the artifacts it is built from.
var ErrUnsafeFeed = errors.New("feed directory overlaps source directory")

// DefaultToolArgs is the init command line of the index tool.
var DefaultToolArgs = []string{"init", "{source}", "{feed}"}

const (
	// DefaultToolName is the file name the index tool is stored under.
	DefaultToolName = "nuget.exe"
	// DefaultToolURL is the NuGet command-line download.
	DefaultToolURL = "https://dist.nuget.org/win-x86-commandline/latest/nuget.exe"
)

// Tool describes the external package index tool.
type Tool struct {
	// Path is the tool's location on disk. Empty disables the tool and
	// index.json becomes the only index.
	Path string
	// URL is where the tool is fetched from when Path does not exist.
	URL string
	// Args is the init command line. {source} and {feed} are replaced
	// with the directories being built. Default: DefaultToolArgs.
	Args []string
}

// Options configures a Builder.
type Options struct {
	Tool Tool
	// Runner executes the tool. Default: runner.Exec{}.
	Runner runner.Runner
	// Client downloads the tool. Default: a client with the default
	// retry policy and no cache.
	Client *integrations.Client
	// Logger receives progress and tool output. Default: log.Default().
	Logger *log.Logger
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if len(opts.Tool.Args) == 0 {
		opts.Tool.Args = DefaultToolArgs
	}
	if opts.Runner == nil {
		opts.Runner = runner.Exec{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Client == nil {
		opts.Client = integrations.NewClient(nil, "tool:", 0, nil)
	}
	return opts
}

// Builder assembles local package feeds.
type Builder struct {
	opts Options
}

// NewBuilder creates a Builder.
func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts.WithDefaults()}
}

// EnsureTool makes sure the index tool exists on disk and returns its
// path. It downloads the tool at most once: an existing file is never
// fetched again. With no tool configured it returns "".
func (b *Builder) EnsureTool(ctx context.Context) (string, error) {
	t := b.opts.Tool
	if t.Path == "" {
		return "", nil
	}
	if fi, err := os.Stat(t.Path); err == nil && fi.Mode().IsRegular() {
		return t.Path, nil
	}
	if t.URL == "" {
		return "", perrors.New(perrors.ErrCodeToolUnavailable, "index tool %s not found and no download URL configured", t.Path)
	}

	b.opts.Logger.Info("fetching index tool", "url", t.URL, "path", t.Path)
	if _, err := b.opts.Client.Download(ctx, t.URL, t.Path); err != nil {
		return "", perrors.Wrap(perrors.ErrCodeToolUnavailable, err, "fetch index tool")
	}
	if err := os.Chmod(t.Path, 0o755); err != nil {
		return "", err
	}
	return t.Path, nil
}

// Build rebuilds feedDir from the artifacts in sourceDir and returns the
// resulting index. Any previous feed contents are removed first.
func (b *Builder) Build(ctx context.Context, sourceDir, feedDir string) (*Index, error) {
	src, feed, err := checkDirs(sourceDir, feedDir)
	if err != nil {
		return nil, err
	}

	tool, err := b.EnsureTool(ctx)
	if err != nil {
		return nil, err
	}

	if err := os.RemoveAll(feed); err != nil {
		return nil, fmt.Errorf("clean feed: %w", err)
	}
	if err := os.MkdirAll(feed, 0o755); err != nil {
		return nil, fmt.Errorf("create feed: %w", err)
	}

	paths, err := nupkg.ListArtifacts(src)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dst := filepath.Join(feed, filepath.Base(p))
		if err := copyFile(p, dst); err != nil {
			return nil, fmt.Errorf("copy %s: %w", filepath.Base(p), err)
		}
		if _, err := os.Stat(nupkg.SidecarPath(p)); err == nil {
			if err := copyFile(nupkg.SidecarPath(p), nupkg.SidecarPath(dst)); err != nil {
				return nil, fmt.Errorf("copy sidecar of %s: %w", filepath.Base(p), err)
			}
		}
	}
	b.opts.Logger.Info("copied artifacts", "count", len(paths), "feed", feed)

	if tool != "" {
		if err := b.runTool(ctx, tool, src, feed); err != nil {
			return nil, err
		}
	}

	ix, err := ScanIndex(feed, b.opts.Logger)
	if err != nil {
		return nil, err
	}
	if err := WriteIndex(feed, ix); err != nil {
		return nil, fmt.Errorf("write index: %w", err)
	}
	return ix, nil
}

func (b *Builder) runTool(ctx context.Context, tool, src, feed string) error {
	args := make([]string, len(b.opts.Tool.Args))
	r := strings.NewReplacer("{source}", src, "{feed}", feed)
	for i, a := range b.opts.Tool.Args {
		args[i] = r.Replace(a)
	}

	name := filepath.Base(tool)
	b.opts.Logger.Info("running index tool", "cmd", runner.CommandLine(tool, args...))
	out, err := b.opts.Runner.Run(ctx, tool, args...)
	runner.LogOutput(b.opts.Logger, name, out)
	if err != nil {
		return perrors.Wrap(perrors.ErrCodeIndexToolFailed, err, "%s init failed\n%s", name, strings.TrimSpace(string(out)))
	}
	return nil
}

func checkDirs(sourceDir, feedDir string) (string, string, error) {
	if sourceDir == "" || feedDir == "" {
		return "", "", perrors.New(perrors.ErrCodeInvalidPath, "source and feed directories are required")
	}
	src, err := filepath.Abs(sourceDir)
	if err != nil {
		return "", "", err
	}
	feed, err := filepath.Abs(feedDir)
	if err != nil {
		return "", "", err
	}
	if feed == src || feed == filepath.Dir(feed) || strings.HasPrefix(src, feed+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%w: source %s, feed %s", ErrUnsafeFeed, src, feed)
	}
	return src, feed, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
