// Package cli implements the nonagon command-line entrypoint using
// Cobra, grounded on Tutu-Engine's internal/cli (root command +
// per-subcommand files, flags bound in init()).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nonagon/core/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "nonagon",
	Short:         "nonagon — community-play quest-tracking coordination core",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
}

// Execute runs the root command. Called from cmd/nonagon/main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig merges the command's own flags on top of the layered
// defaults/file/env config, the way the teacher's config.Load(path,
// flags) composes a koanf.Koanf across all four providers.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	return config.Load(configPath, flags)
}
