package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sitcom-match",
	Short: "Farcaster sitcom character match backend",
	Long: `sitcom-match serves the Mini App backend: it collects a Farcaster
user's profile and casts, asks a language model which sitcom character
they resemble, and validates the answer against a fixed catalog.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, analyzeCmd, envCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
