package common

import "github.com/spf13/cobra"

// FlagOr returns value when the named flag was set on the command line, else def.
// Configuration supplies the defaults; flags override them per invocation.
func FlagOr[T any](cmd *cobra.Command, name string, value, def T) T {
	if cmd.Flags().Changed(name) {
		return value
	}
	return def
}
