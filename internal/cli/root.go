// Package cli implements the hill binary's subcommands, grounded on
// the teacher's cobra-based internal/cli but restructured around a
// node process (serve, createuser, dump, recover) instead of a
// single-process REPL — the core is driven over the wire protocol by
// internal/server, not typed directly into a local map store.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hill/internal/config"
)

var (
	homeFlag   string
	configFlag string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "hill",
	Short: "Hill - a PM-backed distributed key-value store node",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(homeFlag, configFlag)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

// Execute runs the hill command tree, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&homeFlag, "home", "", "hill home directory (overrides HILL_HOME)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to config.yaml (default <home>/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(createUserCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(recoverCmd)
}
