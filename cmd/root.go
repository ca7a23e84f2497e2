package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldops/visitwatch/internal/build"
)

var rootCmd = &cobra.Command{
	Use:     "visitwatch",
	Short:   "Visit schedule change detection and notification",
	Long:    "Visitwatch compares captured visit schedules, classifies the differences, and delivers them immediately or as daily digests.",
	Version: build.String(),
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(flushCmd)
}
