// Command wishd is the wish protocol responder daemon: it loads its
// configuration, opens a listener, and runs server.Server against
// every accepted channel.
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
	Use:   "wishd",
	Short: "wishd is the wish protocol responder daemon",
	Long: `wishd accepts KNOCK connections, runs them through the seven-stage
wish protocol state machine, and consults a policy engine and
abuse-control state to decide what to grant.`,
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
	// - serve.go: serveCmd
	// - keyring.go: keyringCmd
}
