// Command wish is the wish protocol requester CLI: it dials a
// responder, drives one KNOCK-through-GIFT exchange, and prints the
// result.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configDir   string
	environment string
)

var rootCmd = &cobra.Command{
	Use:   "wish",
	Short: "wish sends a request to a wish protocol responder",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "config", "directory containing environment config files")
	rootCmd.PersistentFlags().StringVar(&environment, "env", "", "environment name (default: $WISH_ENV or development)")

	// Subcommands register themselves in their own files:
	// - request.go: requestCmd
	// - keyring.go: keyringCmd
}
