// Package main is the entry point for the quench CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quench",
		Short: "Quench dataset refinement pipeline",
		Long:  `Quench refines JSONL datasets by running a recipe of ops: LLM-powered mappers that rewrite records and filters that drop low-quality ones.`,
	}

	cmd.AddCommand(runCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}
