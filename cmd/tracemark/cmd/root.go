// Package cmd provides the command-line interface for tracemark.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use: "tracemark",
	Short: "Tracemark CLI tool can perform common tasks related to " +
		"working with recorded timelines.",
	Long: `Tracemark CLI tool can perform common tasks related to working ` +
		`with recorded timelines. Currently, it supports inspecting ` +
		`recording databases and running a demo workload.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
