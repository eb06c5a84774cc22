package crawl

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/cmd/common"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/domain"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/enrichment"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/metrics"
)

func newDeepEnrichCmd() *cobra.Command {
	var (
		prefix  string
		refresh bool
		source  string
		delay   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "deep-enrich",
		Short: "Fetch and store the details of discovered entities",
		Long: `Fetch the detail payload of every selected entity. By default only entities that
never succeeded are fetched; --refresh revisits all of them. A failing entity is
recorded and the walk continues.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, err := domain.ParseKind(source)
			if err != nil {
				return err
			}

			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}
			defer deps.Close()

			ctx := cmd.Context()
			walker, err := deps.App.Enrichment(ctx, deps.Logger)
			if err != nil {
				return err
			}

			started := time.Now()
			res, err := walker.Enrich(ctx, enrichment.Options{
				Kind:             kind,
				Prefix:           prefix,
				OnlyUnsuccessful: !refresh,
				ItemDelay:        common.FlagOr(cmd, "delay", delay, deps.Config.Crawler.ItemDelay),
			})
			deps.App.Metrics.StageDone(metrics.StageEnrich, started, err)
			deps.App.PushMetrics(ctx)
			if err != nil {
				return fmt.Errorf("enrich %s: %w", kind, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d selected, %d enriched, %d failed\n",
				kind, res.Selected, res.Succeeded, res.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only entities whose item reference starts with this")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "also revisit entities that already succeeded")
	cmd.Flags().StringVar(&source, "source", string(domain.KindObject), "objects or network-devices")
	cmd.Flags().DurationVar(&delay, "delay", 0, "delay between entities (default from crawler.item_delay)")
	return cmd
}
