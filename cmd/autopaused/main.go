package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/younsl/autopaused/internal/config"
	"github.com/younsl/autopaused/internal/version"
)

var (
	configPath  string
	showVersion bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "autopaused",
		Short: "Pause idle GPU instances and track the savings",
		Long: `autopaused watches GPU utilization of provisioned instances, pauses
instances that stay idle past a dwell threshold and reports the money
saved while they were paused.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Println(version.Get())
				return nil
			}
			return cmd.Help()
		},
	}

	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "Show version information")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		fmt.Sprintf("Path to config file (default: %s/config.toml)", config.Home()))

	rootCmd.AddCommand(
		newServeCmd(),
		newScanCmd(),
		newSavingsCmd(),
		newSelectCmd(),
	)
	return rootCmd
}
