// Package cmd implements the metasys-crawler command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/cmd/common"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/cmd/crawl"
	cmdpublish "github.com/entraeiendom/entraos-metasys-crawler-cli/cmd/publish"
	cmdschedule "github.com/entraeiendom/entraos-metasys-crawler-cli/cmd/schedule"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/cmd/store"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "metasys-crawler",
	Short: "Crawl Metasys metadata and publish it to EntraOS",
	Long: `metasys-crawler discovers objects and network devices in a Metasys installation,
fetches their details and publishes them to the EntraOS BAS metadata API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command. It is cancelled on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String(common.KeyConfig, "", "config file (default is $CONFIG_PATH or ./config.yaml)")
	flags.Bool(common.KeyDebug, false, "enable debug logging")
	flags.String(common.KeyLogLevel, "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "metasys-crawler version %s\n", Version)
		},
	})

	rootCmd.AddCommand(crawl.Commands()...)
	rootCmd.AddCommand(cmdpublish.Commands()...)
	rootCmd.AddCommand(store.Commands()...)
	rootCmd.AddCommand(cmdschedule.Command(Version))
}

// initConfig binds the global flags so common.NewCommandDeps can read them.
func initConfig() {
	for _, key := range []string{common.KeyConfig, common.KeyDebug, common.KeyLogLevel} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind %s flag: %v\n", key, err)
		}
	}
	if err := viper.BindEnv(common.KeyConfig, "CONFIG_PATH"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind CONFIG_PATH: %v\n", err)
	}
}
