// Command icfctl inspects the ICF result tables and renders dashboard
// charts without starting the server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "icfctl",
		Short: "Inspect ICF paired-pulse results and render dashboard charts",
		Long: `icfctl loads the four result tables written by the analysis pipeline
(trials, subject-level, group-level and participants) and reports on them
or renders any dashboard chart to a PNG or SVG file.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file (defaults are used when omitted)")
	rootCmd.PersistentFlags().String("data-dir", "", "Read the tables from this directory (overrides the configured source)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInspectCmd(),
		newSubjectCmd(),
		newRenderCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				writeJSON(cmd, map[string]string{"version": version})
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "icfctl version %s\n", version)
		},
	}
}
