// Package publish implements the commands that read the local store: publishing to
// EntraOS, classification and statistics.
package publish

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/cmd/common"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/metrics"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/publisher"
)

// Commands returns the publish commands for the root command.
func Commands() []*cobra.Command {
	return []*cobra.Command{newPublishCmd(), newClassifyCmd(), newStatsCmd()}
}

func newPublishCmd() *cobra.Command {
	var opts publisher.Options
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish enriched objects to the EntraOS BAS metadata API",
		Long: `Publish enriched objects. Without --prefix or --real-estate only objects crawled
since their last sync are sent. The first rejected record stops the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}
			defer deps.Close()

			ctx := cmd.Context()
			pub, err := deps.App.Publisher(ctx, deps.Logger)
			if err != nil {
				return err
			}

			started := time.Now()
			res, err := pub.Publish(ctx, opts)
			deps.App.Metrics.StageDone(metrics.StagePublish, started, err)
			deps.App.PushMetrics(ctx)
			if err != nil {
				return fmt.Errorf("publish: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d selected, %d published, %d skipped\n", res.Selected, res.Published, res.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "only objects whose item reference starts with this")
	cmd.Flags().StringVar(&opts.RealEstate, "real-estate", "", "only objects in buildings mapped to this real estate")
	return cmd
}
