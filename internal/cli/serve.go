package cli

import (
	"net"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pkgferry/pkg/repository"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr  string
		feed  string
		build string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a local feed over HTTP",
		Long: `Serve a feed directory with the subset of the NuGet v2 protocol pkgferry
itself speaks. Other machines can then point --gallery at this server and
download without internet access.

With --build the feed is first rebuilt from the given download directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			cfg := c.conf()
			if !cmd.Flags().Changed("addr") {
				addr = cfg.Serve.Addr
			}
			if !cmd.Flags().Changed("feed") {
				feed = cfg.Install.Feed
			}

			if build != "" {
				ix, err := c.newBuilder(ctx).Build(ctx, build, feed)
				if err != nil {
					return err
				}
				printSuccess("Built feed with %d packages", len(ix.Packages))
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			printInfo("Serving %s at %s", StyleValue.Render(feed), StyleLink.Render("http://"+ln.Addr().String()))
			printDetail("Press ctrl+c to stop")
			return repository.NewServer(feed, logger).Serve(ctx, ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&feed, "feed", "", "feed directory (default from config)")
	cmd.Flags().StringVar(&build, "build", "", "rebuild the feed from this download directory first")
	return cmd
}
