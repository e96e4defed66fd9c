package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "hah",
		Short: "HAH - indentation-based markup compiler",
		Long: `hah compiles HAH documents, a terse indentation-based markup language,
into server-side page source with embedded host code.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&globalFlags.configPath, "config", "c", "", "Path to hah.yaml (defaults to ./hah.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.verbose, "verbose", "v", false, "Log parser and cache activity")

	rootCmd.AddCommand(newCompileCommand())
	rootCmd.AddCommand(newDevCommand())
	rootCmd.AddCommand(newViewCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
