// Package config loads pkgferry's TOML configuration.
//
// Every field has a default, so a missing config file is not an error.
// Command-line flags override whatever the file sets. An explicit --config
// path must exist.
//
// Example file:
//
//	[gallery]
//	url = "https://www.powershellgallery.com/api/v2"
//
//	[download]
//	package = "Microsoft.Graph"
//	dest = "C:/offline/packages"
//	strategy = "highest"
//
//	[install]
//	feed = "C:/offline/feed"
//	module_root = 0
//
//	[retry]
//	delay = "10s"
//	attempts = 30
//
//	[tool]
//	path = "C:/offline/tools/nuget.exe"
//
//	[cache]
//	redis_url = "redis://cache.internal:6379/0"
//
//	[ledger]
//	mongo_uri = "mongodb://ledger.internal:27017"
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	perrors "github.com/matzehuels/pkgferry/pkg/errors"
	"github.com/matzehuels/pkgferry/pkg/httputil"
	"github.com/matzehuels/pkgferry/pkg/install"
	"github.com/matzehuels/pkgferry/pkg/integrations/gallery"
	"github.com/matzehuels/pkgferry/pkg/ledger"
	"github.com/matzehuels/pkgferry/pkg/nupkg/versionrange"
	"github.com/matzehuels/pkgferry/pkg/psget"
	"github.com/matzehuels/pkgferry/pkg/repository"
	"github.com/matzehuels/pkgferry/pkg/resolve"
)

const (
	// AppName names the config and cache directories.
	AppName = "pkgferry"
	// FileName is the config file inside the config directory.
	FileName = "config.toml"

	DefaultDest      = "packages"
	DefaultFeed      = "feed"
	DefaultCacheTTL  = 24 * time.Hour
	DefaultServeAddr = "127.0.0.1:8624"
)

// Config is the full configuration.
type Config struct {
	Gallery  Gallery  `toml:"gallery"`
	Download Download `toml:"download"`
	Install  Install  `toml:"install"`
	Retry    Retry    `toml:"retry"`
	Tool     Tool     `toml:"tool"`
	Cache    Cache    `toml:"cache"`
	Ledger   Ledger   `toml:"ledger"`
	Serve    Serve    `toml:"serve"`
}

// Gallery configures the remote package index.
type Gallery struct {
	URL       string `toml:"url"`
	UserAgent string `toml:"user_agent,omitempty"`
}

// Download configures the resolve-and-download phase.
type Download struct {
	Package  string `toml:"package"`
	Version  string `toml:"version,omitempty"`
	Dest     string `toml:"dest"`
	Strategy string `toml:"strategy"`
	MaxDepth int    `toml:"max_depth"`
	// Graph, when set, receives the dependency graph (.dot or .svg).
	Graph string `toml:"graph,omitempty"`
}

// Install configures the install phase.
type Install struct {
	Feed        string `toml:"feed"`
	MetaPackage string `toml:"meta_package"`
	Repository  string `toml:"repository"`
	Trusted     *bool  `toml:"trusted"`
	// ModuleRoot indexes PSModulePath. Unset means ask, or fail when
	// there is no terminal to ask on.
	ModuleRoot *int   `toml:"module_root,omitempty"`
	Shell      string `toml:"shell"`
}

// Retry configures the fetcher's retry policy.
type Retry struct {
	Delay    time.Duration `toml:"delay"`
	Attempts int           `toml:"attempts"`
	Forever  bool          `toml:"forever"`
	Deadline time.Duration `toml:"deadline,omitempty"`
}

// Tool configures the external feed index tool. Path defaults to
// tools/nuget.exe under the cache dir and is fetched from URL on first use.
// Disabled skips the tool; index.json is then the only index.
type Tool struct {
	Path     string   `toml:"path,omitempty"`
	URL      string   `toml:"url,omitempty"`
	Args     []string `toml:"args"`
	Disabled bool     `toml:"disabled"`
}

// Cache configures the metadata cache.
type Cache struct {
	Dir      string        `toml:"dir"`
	TTL      time.Duration `toml:"ttl"`
	RedisURL string        `toml:"redis_url,omitempty"`
	Disabled bool          `toml:"disabled"`
}

// Ledger configures where download records are mirrored.
type Ledger struct {
	MongoURI string `toml:"mongo_uri,omitempty"`
	Database string `toml:"database"`
}

// Serve configures the feed server.
type Serve struct {
	Addr string `toml:"addr"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	c := &Config{}
	c.WithDefaults()
	return c
}

// WithDefaults fills zero fields with defaults in place and returns c.
func (c *Config) WithDefaults() *Config {
	setDefault(&c.Gallery.URL, gallery.DefaultBaseURL)
	setDefault(&c.Download.Package, install.DefaultMetaPackage)
	setDefault(&c.Download.Dest, DefaultDest)
	setDefault(&c.Download.Strategy, string(versionrange.Highest))
	if c.Download.MaxDepth <= 0 {
		c.Download.MaxDepth = resolve.DefaultMaxDepth
	}

	setDefault(&c.Install.Feed, DefaultFeed)
	setDefault(&c.Install.MetaPackage, install.DefaultMetaPackage)
	setDefault(&c.Install.Repository, install.DefaultRepository)
	setDefault(&c.Install.Shell, psget.DefaultShell)
	if c.Install.Trusted == nil {
		trusted := true
		c.Install.Trusted = &trusted
	}

	if c.Retry.Delay <= 0 {
		c.Retry.Delay = httputil.DefaultDelay
	}
	if c.Retry.Attempts <= 0 {
		c.Retry.Attempts = httputil.DefaultMaxAttempts
	}

	if c.Cache.Dir == "" {
		if dir, err := CacheDir(); err == nil {
			c.Cache.Dir = dir
		}
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = DefaultCacheTTL
	}

	if len(c.Tool.Args) == 0 {
		c.Tool.Args = append([]string(nil), repository.DefaultToolArgs...)
	}
	if !c.Tool.Disabled {
		if c.Cache.Dir != "" {
			setDefault(&c.Tool.Path, filepath.Join(c.Cache.Dir, "tools", repository.DefaultToolName))
		}
		setDefault(&c.Tool.URL, repository.DefaultToolURL)
	}

	setDefault(&c.Ledger.Database, ledger.DefaultDatabase)
	setDefault(&c.Serve.Addr, DefaultServeAddr)
	return c
}

func setDefault(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if err := perrors.ValidateURL(c.Gallery.URL); err != nil {
		return perrors.Wrap(perrors.ErrCodeInvalidConfig, err, "gallery.url")
	}
	if err := perrors.ValidatePackageName(c.Download.Package); err != nil {
		return perrors.Wrap(perrors.ErrCodeInvalidConfig, err, "download.package")
	}
	if c.Download.Version != "" {
		if err := perrors.ValidateVersion(c.Download.Version); err != nil {
			return perrors.Wrap(perrors.ErrCodeInvalidConfig, err, "download.version")
		}
	}
	if _, err := versionrange.ParseStrategy(c.Download.Strategy); err != nil {
		return perrors.Wrap(perrors.ErrCodeInvalidConfig, err, "download.strategy")
	}
	if c.Tool.URL != "" {
		if err := perrors.ValidateURL(c.Tool.URL); err != nil {
			return perrors.Wrap(perrors.ErrCodeInvalidConfig, err, "tool.url")
		}
	}
	if c.Install.ModuleRoot != nil && *c.Install.ModuleRoot < 0 {
		return perrors.New(perrors.ErrCodeInvalidConfig, "install.module_root must not be negative")
	}
	if c.Retry.Deadline < 0 {
		return perrors.New(perrors.ErrCodeInvalidConfig, "retry.deadline must not be negative")
	}
	return nil
}

// Trusted reports whether the feed is registered as trusted.
func (c *Config) Trusted() bool {
	return c.Install.Trusted == nil || *c.Install.Trusted
}

// IndexTool returns the repository tool settings. A disabled tool has an
// empty path, which the builder treats as no tool.
func (c *Config) IndexTool() repository.Tool {
	if c.Tool.Disabled {
		return repository.Tool{Args: c.Tool.Args}
	}
	return repository.Tool{Path: c.Tool.Path, URL: c.Tool.URL, Args: c.Tool.Args}
}

// RetryPolicy returns the fetcher policy described by the retry section.
func (c *Config) RetryPolicy() httputil.Policy {
	return httputil.Policy{
		Delay:       c.Retry.Delay,
		MaxAttempts: c.Retry.Attempts,
		Forever:     c.Retry.Forever,
		Deadline:    c.Retry.Deadline,
	}
}

// Strategy returns the parsed version strategy. Validate has already
// rejected unknown names, so this falls back to Highest.
func (c *Config) Strategy() versionrange.Strategy {
	s, err := versionrange.ParseStrategy(c.Download.Strategy)
	if err != nil {
		return versionrange.Highest
	}
	return s
}

// Load reads the config at path. An empty path means the default location,
// where a missing file yields the defaults. Unknown keys are rejected so
// typos do not silently fall back to defaults.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return Default(), nil
		}
		path = p
	}

	var c Config
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, perrors.Wrap(perrors.ErrCodeInvalidConfig, err, "read %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, perrors.New(perrors.ErrCodeInvalidConfig, "%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	c.WithDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Encode writes c as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// DefaultPath returns $XDG_CONFIG_HOME/pkgferry/config.toml, falling back
// to the OS user config directory.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, AppName, FileName), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, AppName, FileName), nil
}

// CacheDir returns the cache directory using the XDG standard
// (~/.cache/pkgferry/).
func CacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", AppName), nil
}
