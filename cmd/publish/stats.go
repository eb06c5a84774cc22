package publish

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/cmd/common"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/domain"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show crawl state and publish statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}
			defer deps.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			entities, err := deps.App.Entities(ctx)
			if err != nil {
				return err
			}
			t := common.NewTable(out, "Kind", "Total", "Crawled", "Failed", "Untested", "Synced", "Pending")
			for _, kind := range []domain.Kind{domain.KindObject, domain.KindNetworkDevice} {
				s, sumErr := entities.Summarize(ctx, kind)
				if sumErr != nil {
					return sumErr
				}
				t.AppendRow([]any{kind, s.Total, s.Crawled, s.Failed, s.Untested, s.Synced, s.Pending})
			}
			t.Render()

			refs, err := deps.App.References(ctx)
			if err != nil {
				return err
			}
			counts, err := refs.CountByEnumSet(ctx)
			if err != nil {
				return err
			}
			if len(counts) > 0 {
				sets := make([]int64, 0, len(counts))
				for id := range counts {
					sets = append(sets, id)
				}
				slices.Sort(sets)

				fmt.Fprintln(out)
				et := common.NewTable(out, "Enum set", "Entries")
				for _, id := range sets {
					et.AppendRow([]any{id, counts[id]})
				}
				et.Render()
			}

			if deps.Config.Redis.URL == "" {
				return nil
			}
			tracker, err := deps.App.Tracker(ctx)
			if err != nil {
				return err
			}
			stats, err := tracker.GetStats(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintln(out)
			rt := common.NewTable(out, "Real estate", "Published", "Skipped", "Errors")
			for _, re := range stats.RealEstates {
				rt.AppendRow([]any{re.Name, re.Published, re.Skipped, re.Errors})
			}
			rt.AppendFooter([]any{"Total", stats.TotalPublished, stats.TotalSkipped, stats.TotalErrors})
			rt.Render()

			if !stats.LastSync.IsZero() {
				fmt.Fprintf(out, "Last sync: %s\n", stats.LastSync.Format(time.RFC3339))
			}
			return nil
		},
	}
}
