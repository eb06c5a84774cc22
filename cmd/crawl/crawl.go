// Package crawl implements the commands that read from Metasys: discovery,
// enrichment, type counting and reference sets.
package crawl

import (
	"github.com/spf13/cobra"
)

// Commands returns the crawl commands for the root command.
func Commands() []*cobra.Command {
	return []*cobra.Command{
		newDiscoverObjectsCmd(),
		newListNetworkDevicesCmd(),
		newDeepEnrichCmd(),
		newCountTypesCmd(),
		newGetReferenceSetCmd(),
	}
}
