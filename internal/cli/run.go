package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	perrors "github.com/matzehuels/pkgferry/pkg/errors"
	"github.com/matzehuels/pkgferry/pkg/install"
	"github.com/matzehuels/pkgferry/pkg/pipeline"
)

// runFlags holds the flags shared by download, install and run.
type runFlags struct {
	action     string
	pkg        string
	version    string
	dest       string
	feed       string
	moduleRoot int
	strategy   string
	maxDepth   int
	graph      string
	gallery    string
	attempts   int
	delay      time.Duration
	deadline   time.Duration
	forever    bool
	repository string
	meta       string
	noTool     bool
}

// downloadCommand creates the download command.
func (c *CLI) downloadCommand() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "download [package]",
		Short: "Resolve a package and download its dependency graph",
		Long: `Resolve a package against the gallery, follow its dependencies and
download every artifact into the destination directory.

Artifacts already on disk are not downloaded again, so an interrupted run
can simply be repeated.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.execute(cmd, args, &f, pipeline.Download)
		},
	}
	addDownloadFlags(cmd, &f)
	return cmd
}

// installCommand creates the install command.
func (c *CLI) installCommand() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install downloaded packages from a local feed",
		Long: `Rebuild the local feed from the destination directory, register it with
PowerShellGet and install every downloaded package by exact version.

Requires an elevated session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.execute(cmd, args, &f, pipeline.Install)
		},
	}
	addInstallFlags(cmd, &f)
	return cmd
}

// runCommand creates the run command, which asks for the action when
// --action is omitted.
func (c *CLI) runCommand() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [package]",
		Short: "Download, install, or both",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.execute(cmd, args, &f, "")
		},
	}
	cmd.Flags().StringVarP(&f.action, "action", "a", "", "download, install or both (prompted when omitted)")
	addDownloadFlags(cmd, &f)
	addInstallFlags(cmd, &f)
	return cmd
}

func addDownloadFlags(cmd *cobra.Command, f *runFlags) {
	fl := cmd.Flags()
	fl.StringVarP(&f.pkg, "package", "p", "", "root package (default from config)")
	fl.StringVar(&f.version, "version", "", "root version (default: latest)")
	fl.StringVarP(&f.dest, "dest", "d", "", "download directory (prompted when omitted)")
	fl.StringVar(&f.strategy, "strategy", "", "version strategy: highest or literal")
	fl.IntVar(&f.maxDepth, "max-depth", 0, "maximum dependency depth")
	fl.StringVar(&f.graph, "graph", "", "write the dependency graph (.dot or .svg)")
	fl.StringVar(&f.gallery, "gallery", "", "gallery API URL")
	fl.IntVar(&f.attempts, "attempts", 0, "attempts per network operation")
	fl.DurationVar(&f.delay, "delay", 0, "wait between attempts")
	fl.DurationVar(&f.deadline, "deadline", 0, "time budget per network operation")
	fl.BoolVar(&f.forever, "forever", false, "retry network operations without limit")
}

func addInstallFlags(cmd *cobra.Command, f *runFlags) {
	fl := cmd.Flags()
	if fl.Lookup("dest") == nil {
		fl.StringVarP(&f.dest, "dest", "d", "", "directory holding the downloads (prompted when omitted)")
	}
	fl.StringVar(&f.feed, "feed", "", "local feed directory")
	fl.IntVar(&f.moduleRoot, "module-root", 0, "index into PSModulePath to install into (prompted when omitted)")
	fl.StringVar(&f.repository, "repository", "", "name to register the feed under")
	fl.StringVar(&f.meta, "meta-package", "", "package that is never installed")
	fl.BoolVar(&f.noTool, "no-index-tool", false, "build the feed without the external index tool")
}

// execute applies flags to the config, fills the remaining options from
// prompts or config, and runs the pipeline.
func (c *CLI) execute(cmd *cobra.Command, args []string, f *runFlags, action pipeline.Action) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	if len(args) == 1 {
		if err := cmd.Flags().Set("package", args[0]); err != nil {
			return err
		}
	}
	if err := c.applyFlags(cmd, f); err != nil {
		return err
	}
	opts, err := c.options(cmd, f, action)
	if err != nil {
		return err
	}

	backend := c.newCache(ctx)
	defer backend.Close()

	deps := pipeline.Deps{
		Strategy:    c.conf().Strategy(),
		MaxDepth:    c.conf().Download.MaxDepth,
		Source:      c.source(),
		Builder:     c.newBuilder(ctx),
		PSGet:       c.newPSGet(ctx),
		MetaPackage: c.conf().Install.MetaPackage,
		Repository:  c.conf().Install.Repository,
		Trusted:     c.conf().Trusted(),
		Logger:      logger,
	}
	if opts.Action.Downloads() {
		deps.Index = c.newGallery(ctx, backend)
		mirror, err := c.newLedger(ctx)
		if err != nil {
			logger.Warn("ledger mirror unavailable, keeping sidecars only", "err", err)
		} else if mirror != nil {
			defer mirror.Close()
			deps.Ledger = mirror
		}
	}

	st := startStep(logger, string(opts.Action))
	res, err := pipeline.NewRunner(deps).Run(ctx, opts)
	if res != nil {
		printResult(res)
	}
	if err != nil {
		return err
	}
	st.done("package", opts.Package)

	if opts.Action == pipeline.Download {
		printNewline()
		printNextStep("Install on the target machine", fmt.Sprintf("%s install --dest %s", appName, opts.Dest))
	}
	return nil
}

// applyFlags copies explicitly set flags over the loaded config.
func (c *CLI) applyFlags(cmd *cobra.Command, f *runFlags) error {
	cfg := c.conf()
	changed := cmd.Flags().Changed

	if changed("package") {
		cfg.Download.Package = f.pkg
	}
	if changed("version") {
		cfg.Download.Version = f.version
	}
	if changed("strategy") {
		cfg.Download.Strategy = f.strategy
	}
	if changed("max-depth") {
		cfg.Download.MaxDepth = f.maxDepth
	}
	if changed("graph") {
		cfg.Download.Graph = f.graph
	}
	if changed("gallery") {
		cfg.Gallery.URL = f.gallery
	}
	if changed("attempts") {
		cfg.Retry.Attempts = f.attempts
	}
	if changed("delay") {
		cfg.Retry.Delay = f.delay
	}
	if changed("deadline") {
		cfg.Retry.Deadline = f.deadline
	}
	if changed("forever") {
		cfg.Retry.Forever = f.forever
	}
	if changed("feed") {
		cfg.Install.Feed = f.feed
	}
	if changed("repository") {
		cfg.Install.Repository = f.repository
	}
	if changed("meta-package") {
		cfg.Install.MetaPackage = f.meta
	}
	if changed("no-index-tool") {
		cfg.Tool.Disabled = f.noTool
	}
	if changed("module-root") {
		root := f.moduleRoot
		cfg.Install.ModuleRoot = &root
	}
	cfg.WithDefaults()
	return cfg.Validate()
}

// cleanDest cleans a destination path. A blank path stays empty so
// validation rejects it instead of it becoming ".".
func cleanDest(dest string) string {
	if strings.TrimSpace(dest) == "" {
		return ""
	}
	return filepath.Clean(dest)
}

// options builds the pipeline options. Values missing from both flags and
// config are prompted for on a terminal; without one the run fails.
func (c *CLI) options(cmd *cobra.Command, f *runFlags, action pipeline.Action) (pipeline.Options, error) {
	cfg := c.conf()
	changed := cmd.Flags().Changed

	if action == "" {
		var err error
		if action, err = c.chooseAction(changed("action"), f.action); err != nil {
			return pipeline.Options{}, err
		}
	}

	dest := cfg.Download.Dest
	switch {
	case changed("dest"):
		dest = f.dest
	case c.interactive():
		d, err := c.prompt.Input("Destination directory", cfg.Download.Dest)
		if err != nil {
			return pipeline.Options{}, err
		}
		dest = d
	}

	opts := pipeline.Options{
		Action:  action,
		Package: cfg.Download.Package,
		Version: cfg.Download.Version,
		Dest:    cleanDest(dest),
		Feed:    cfg.Install.Feed,
		Graph:   cfg.Download.Graph,
	}
	if action.Installs() {
		root, err := c.chooseModuleRoot()
		if err != nil {
			return pipeline.Options{}, err
		}
		opts.ModuleRoot = root
	}
	return opts, opts.Validate()
}

func (c *CLI) chooseAction(given bool, value string) (pipeline.Action, error) {
	if given {
		return pipeline.ParseAction(value)
	}
	if !c.interactive() {
		return "", perrors.Wrap(perrors.ErrCodeInvalidAction, pipeline.ErrInvalidAction,
			"no action given; pass --action download, install or both")
	}
	labels := make([]string, len(pipeline.Actions))
	for i, a := range pipeline.Actions {
		labels[i] = a.Describe()
	}
	i, err := c.prompt.Select("What should pkgferry do?", labels)
	if err != nil {
		return "", err
	}
	return pipeline.Actions[i], nil
}

// chooseModuleRoot picks the install root from PSModulePath. Without any
// candidates the package manager's default location is used.
func (c *CLI) chooseModuleRoot() (string, error) {
	logger := c.Logger
	candidates := install.Candidates()
	if len(candidates) == 0 {
		logger.Warn("PSModulePath is empty, installing into the default scope")
		return "", nil
	}
	if idx := c.conf().Install.ModuleRoot; idx != nil {
		return install.SelectRoot(candidates, *idx)
	}
	if !c.interactive() {
		return "", perrors.Wrap(perrors.ErrCodeInvalidSelection, install.ErrInvalidSelection,
			"no module root selected; pass --module-root (0-%d) or set install.module_root", len(candidates)-1)
	}
	i, err := c.prompt.Select("Install modules into", candidates)
	if err != nil {
		return "", err
	}
	return install.SelectRoot(candidates, i)
}

// printResult summarizes a pipeline run on stdout.
func printResult(res *pipeline.Result) {
	if r := res.Resolve; r != nil {
		printSuccess("Resolved %s", StyleHighlight.Render(r.Root.String()))
		printCounts(
			fmt.Sprintf("%d packages", len(r.Identities)),
			fmt.Sprintf("%d downloaded", r.Downloaded),
			fmt.Sprintf("%d present", r.Present),
		)
		for _, f := range r.Failed {
			printWarning("%s: %s", f.Identity, f.Message)
		}
		for _, s := range r.Skipped {
			printDetail("skipped %s %s (%s)", s.Dependency.ID, s.Dependency.Range, s.Reason)
		}
		if res.GraphPath != "" {
			printFile(res.GraphPath)
		}
	}
	if s := res.Install; s != nil {
		printSuccess("Installed %d packages", len(s.Installed))
		for _, id := range s.Skipped {
			printDetail("skipped %s", id)
		}
		for _, id := range s.Failed {
			printWarning("failed to install %s", id)
		}
	}
}
