package publish

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/cmd/common"
)

func newClassifyCmd() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Guess building, floor, room and sensor type of enriched objects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}
			defer deps.Close()

			store, err := deps.App.Entities(cmd.Context())
			if err != nil {
				return err
			}
			results, err := deps.App.Classifier().Run(cmd.Context(), store, prefix)
			if err != nil {
				return err
			}

			t := common.NewTable(cmd.OutOrStdout(),
				"Item reference", "Real estate", "Building", "Floor", "Room", "Type", "Confidence")
			for _, r := range results {
				floor := ""
				if r.Guess.Floor != nil {
					floor = strconv.Itoa(*r.Guess.Floor)
				}
				t.AppendRow([]any{
					r.Object.ItemReference, r.Guess.RealEstate, r.Guess.Building,
					floor, r.Guess.Room, r.Guess.Type, strconv.FormatFloat(r.Guess.Confidence, 'f', 2, 64),
				})
			}
			t.AppendFooter([]any{"", "", "", "", "", "Objects", len(results)})
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only objects whose item reference starts with this")
	return cmd
}
