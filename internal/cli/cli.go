package cli

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pkgferry/pkg/buildinfo"
	"github.com/matzehuels/pkgferry/pkg/cache"
	"github.com/matzehuels/pkgferry/pkg/config"
	"github.com/matzehuels/pkgferry/pkg/httputil"
	"github.com/matzehuels/pkgferry/pkg/integrations"
	"github.com/matzehuels/pkgferry/pkg/integrations/gallery"
	"github.com/matzehuels/pkgferry/pkg/ledger"
	"github.com/matzehuels/pkgferry/pkg/psget"
	"github.com/matzehuels/pkgferry/pkg/repository"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = config.AppName

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	noCache    bool
	cfg        *config.Config

	// interactive reports whether prompts may be shown. Tests replace it
	// together with prompt.
	interactive func() bool
	prompt      prompter
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger:      newLogger(w, level),
		interactive: stdinIsTerminal,
		prompt:      teaPrompter{in: os.Stdin, out: os.Stderr},
	}
}

// SetLogLevel updates the logger's level. Debug level also installs the
// logging observability hooks.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
	if level <= log.DebugLevel {
		installDebugHooks(c.Logger)
	}
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "pkgferry downloads PowerShell Gallery packages for offline installation",
		Long: `pkgferry resolves a package and its transitive dependencies against the
PowerShell Gallery, downloads every artifact with retries that survive flaky
networks, and later installs them from a local feed on a machine that may be
offline.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/pkgferry/config.toml)")
	root.PersistentFlags().BoolVar(&c.noCache, "no-cache", false, "disable the metadata cache")

	root.AddCommand(c.downloadCommand())
	root.AddCommand(c.installCommand())
	root.AddCommand(c.runCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.listCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// conf returns the loaded configuration, or the defaults when a command
// runs without the root pre-run (as in tests).
func (c *CLI) conf() *config.Config {
	if c.cfg == nil {
		c.cfg = config.Default()
	}
	return c.cfg
}

// =============================================================================
// Factories
// =============================================================================

// newCache opens the metadata cache the config selects: Redis when a URL
// is set, files otherwise. Failures degrade to no caching.
func (c *CLI) newCache(ctx context.Context) cache.Cache {
	cfg := c.conf()
	logger := loggerFromContext(ctx)
	if c.noCache || cfg.Cache.Disabled {
		return cache.NewNullCache()
	}
	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL)
		if err == nil {
			return rc
		}
		logger.Warn("redis cache unavailable, falling back to files", "err", err)
	}
	if cfg.Cache.Dir == "" {
		return cache.NewNullCache()
	}
	fc, err := cache.NewFileCache(cfg.Cache.Dir)
	if err != nil {
		logger.Warn("file cache unavailable", "dir", cfg.Cache.Dir, "err", err)
		return cache.NewNullCache()
	}
	return fc
}

// newGallery creates the gallery client with the configured retry policy.
func (c *CLI) newGallery(ctx context.Context, backend cache.Cache) *gallery.Client {
	cfg := c.conf()
	logger := loggerFromContext(ctx)
	return gallery.NewClient(backend, gallery.Options{
		BaseURL:   cfg.Gallery.URL,
		CacheTTL:  cfg.Cache.TTL,
		Fetcher:   httputil.NewFetcher(cfg.RetryPolicy(), logger),
		UserAgent: userAgent(cfg),
	})
}

// newLedger connects the Mongo mirror when one is configured. A nil store
// means sidecars only.
func (c *CLI) newLedger(ctx context.Context) (ledger.Store, error) {
	cfg := c.conf()
	if cfg.Ledger.MongoURI == "" {
		return nil, nil
	}
	return ledger.NewMongoStore(ctx, cfg.Ledger.MongoURI, cfg.Ledger.Database)
}

// newBuilder creates the feed builder for the configured index tool.
func (c *CLI) newBuilder(ctx context.Context) *repository.Builder {
	cfg := c.conf()
	logger := loggerFromContext(ctx)
	return repository.NewBuilder(repository.Options{
		Tool: cfg.IndexTool(),
		Client: integrations.NewClient(nil, "tool:", 0,
			map[string]string{"User-Agent": userAgent(cfg)},
			integrations.WithFetcher(httputil.NewFetcher(cfg.RetryPolicy(), logger))),
		Logger: logger,
	})
}

// newPSGet creates the package-manager client.
func (c *CLI) newPSGet(ctx context.Context) psget.Client {
	return psget.NewPowerShell(psget.Options{
		Shell:  c.conf().Install.Shell,
		Logger: loggerFromContext(ctx),
	})
}

func userAgent(cfg *config.Config) string {
	if cfg.Gallery.UserAgent != "" {
		return cfg.Gallery.UserAgent
	}
	return appName + "/" + buildinfo.Version
}

// source names this machine's download origin in sidecars and the ledger.
func (c *CLI) source() string {
	return c.conf().Gallery.URL
}

func stdinIsTerminal() bool {
	return isTerminal(os.Stdin.Fd())
}
