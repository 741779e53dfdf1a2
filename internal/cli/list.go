package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pkgferry/pkg/httputil"
	"github.com/matzehuels/pkgferry/pkg/install"
	"github.com/matzehuels/pkgferry/pkg/integrations"
	"github.com/matzehuels/pkgferry/pkg/repository"
)

// listCommand creates the list command.
func (c *CLI) listCommand() *cobra.Command {
	var (
		refresh bool
		local   string
		roots   bool
	)
	cmd := &cobra.Command{
		Use:   "list [package]",
		Short: "List gallery versions, downloaded artifacts or module roots",
		Example: `  pkgferry list Microsoft.Graph
  pkgferry list --local ./packages
  pkgferry list --local http://feedhost:8624
  pkgferry list --roots`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case roots:
				return listRoots()
			case local != "":
				return c.listLocal(cmd, local)
			case len(args) == 1:
				return c.listVersions(cmd, args[0], refresh)
			}
			return fmt.Errorf("pass a package name, --local or --roots")
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the metadata cache")
	cmd.Flags().StringVar(&local, "local", "", "list the artifacts in a download directory, feed directory or served feed URL")
	cmd.Flags().BoolVar(&roots, "roots", false, "list the PSModulePath entries --module-root indexes")
	return cmd
}

func (c *CLI) listVersions(cmd *cobra.Command, name string, refresh bool) error {
	ctx := cmd.Context()
	backend := c.newCache(ctx)
	defer backend.Close()
	client := c.newGallery(ctx, backend)

	sp := startSpinner(ctx, os.Stderr, c.interactive(), "Querying "+client.BaseURL())
	versions, err := client.Versions(ctx, name, refresh)
	if err != nil {
		return sp.fail(err)
	}
	sp.succeed("%s: %s versions", StyleHighlight.Render(name), StyleNumber.Render(strconv.Itoa(len(versions))))
	for _, v := range versions {
		label := v.Version
		switch {
		case v.IsLatest:
			label += StyleSuccess.Render("  latest")
		case v.IsPrerelease:
			label += StyleDim.Render("  prerelease")
		}
		fmt.Println("  " + label)
	}
	return nil
}

func (c *CLI) listLocal(cmd *cobra.Command, dir string) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	var (
		ix  *repository.Index
		err error
	)
	if strings.HasPrefix(dir, "http://") || strings.HasPrefix(dir, "https://") {
		client := integrations.NewClient(nil, "feed:", 0,
			map[string]string{"User-Agent": userAgent(c.conf())},
			integrations.WithFetcher(httputil.NewFetcher(c.conf().RetryPolicy(), logger)))
		sp := startSpinner(ctx, os.Stderr, c.interactive(), "Fetching "+dir)
		if ix, err = repository.FetchIndex(ctx, client, dir); err != nil {
			return sp.fail(err)
		}
		sp.stop()
	} else {
		ix, err = repository.ScanIndex(dir, logger)
	}
	if err != nil {
		return err
	}
	if len(ix.Packages) == 0 {
		printInfo("No artifacts in %s", dir)
		return nil
	}
	for _, p := range ix.Packages {
		printKeyValue(p.Version, p.Name)
	}
	printCounts(fmt.Sprintf("%d artifacts", len(ix.Packages)))
	return nil
}

func listRoots() error {
	roots := install.Candidates()
	if len(roots) == 0 {
		printWarning("PSModulePath is empty")
		return nil
	}
	for i, r := range roots {
		printKeyValue(strconv.Itoa(i), r)
	}
	return nil
}
