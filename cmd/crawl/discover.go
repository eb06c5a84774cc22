package crawl

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/cmd/common"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/discovery"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/domain"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/metrics"
)

type discoverFlags struct {
	objectType int
	pageSize   int
	delay      time.Duration
}

func newDiscoverObjectsCmd() *cobra.Command {
	var f discoverFlags
	cmd := &cobra.Command{
		Use:   "discover-objects",
		Short: "Discover objects of one type",
		Long: `Page through the Metasys object listing for one type and record every object
not seen before. Already discovered objects are left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiscover(cmd, domain.KindObject, f)
		},
	}
	cmd.Flags().IntVar(&f.objectType, "type", 0, "object type code (default from crawler.default_object_type)")
	addPagingFlags(cmd, &f)
	return cmd
}

func newListNetworkDevicesCmd() *cobra.Command {
	var f discoverFlags
	cmd := &cobra.Command{
		Use:   "list-network-devices",
		Short: "Discover network devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiscover(cmd, domain.KindNetworkDevice, f)
		},
	}
	addPagingFlags(cmd, &f)
	return cmd
}

func addPagingFlags(cmd *cobra.Command, f *discoverFlags) {
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "items per page (default from crawler.page_size)")
	cmd.Flags().DurationVar(&f.delay, "delay", 0, "delay between pages (default from crawler.page_delay)")
}

func runDiscover(cmd *cobra.Command, kind domain.Kind, f discoverFlags) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return err
	}
	defer deps.Close()

	ctx := cmd.Context()
	cc := deps.Config.Crawler
	opts := discovery.Options{
		Kind:      kind,
		PageSize:  common.FlagOr(cmd, "page-size", f.pageSize, cc.PageSize),
		PageDelay: common.FlagOr(cmd, "delay", f.delay, cc.PageDelay),
	}
	if kind == domain.KindObject {
		opts.Type = common.FlagOr(cmd, "type", f.objectType, cc.DefaultObjectType)
	}

	walker, err := deps.App.Discovery(ctx, deps.Logger)
	if err != nil {
		return err
	}
	started := time.Now()
	res, err := walker.Discover(ctx, opts)
	deps.App.Metrics.StageDone(metrics.StageDiscover, started, err)
	deps.App.PushMetrics(ctx)
	if err != nil {
		return fmt.Errorf("discover %s: %w", kind, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d pages, %d seen, %d new\n", kind, res.Pages, res.Seen, res.Inserted)
	return nil
}
