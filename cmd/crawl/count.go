package crawl

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/cmd/common"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/logger"
)

func newCountTypesCmd() *cobra.Command {
	var from, to int
	cmd := &cobra.Command{
		Use:   "count-types",
		Short: "Count objects per type code in a range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if from < 0 || to < from {
				return errors.New("--to must be greater than or equal to --from")
			}

			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}
			defer deps.Close()

			client, err := deps.App.Metasys()
			if err != nil {
				return err
			}

			t := common.NewTable(cmd.OutOrStdout(), "Type", "Objects")
			total := 0
			for typ := from; typ <= to; typ++ {
				n, countErr := client.CountObjects(cmd.Context(), typ)
				if countErr != nil {
					return fmt.Errorf("count type %d: %w", typ, countErr)
				}
				deps.Logger.Debug("Counted type", logger.Int("type", typ), logger.Int("objects", n))
				if n == 0 {
					continue
				}
				total += n
				t.AppendRow([]any{typ, n})
			}
			t.AppendFooter([]any{"Total", total})
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&from, "from", 0, "first type code")
	cmd.Flags().IntVar(&to, "to", 0, "last type code (inclusive)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
