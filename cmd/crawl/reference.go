package crawl

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/cmd/common"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/metrics"
)

func newGetReferenceSetCmd() *cobra.Command {
	var (
		id       int64
		pageSize int
		delay    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "get-reference-set",
		Short: "Load an enumeration set into the reference table",
		Long: `Load the members of a Metasys enumeration set into the reference table. The
publisher resolves object type codes through this table, so load the object
type set (508) before publishing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}
			defer deps.Close()

			ctx := cmd.Context()
			loader, err := deps.App.ReferenceLoader(ctx)
			if err != nil {
				return err
			}

			cc := deps.Config.Crawler
			enumSet := common.FlagOr(cmd, "id", id, cc.DefaultEnumSet)
			started := time.Now()
			res, err := loader.LoadReferenceSet(ctx, enumSet,
				common.FlagOr(cmd, "page-size", pageSize, cc.EnumSetPageSize),
				common.FlagOr(cmd, "delay", delay, cc.PageDelay),
			)
			deps.App.Metrics.StageDone(metrics.StageReference, started, err)
			deps.App.PushMetrics(ctx)
			if err != nil {
				return fmt.Errorf("load reference set %d: %w", enumSet, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "enumset %d: %d pages, %d entries stored\n", enumSet, res.Pages, res.Stored)
			return nil
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "enumeration set id (default from crawler.default_enumset)")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "members per page (default from crawler.enumset_page_size)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "delay between pages (default from crawler.page_delay)")
	return cmd
}
