package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wish-project/wishd/config"
	"github.com/wish-project/wishd/keyring"
)

var keyringCmd = &cobra.Command{
	Use:   "keyring",
	Short: "Manage the on-disk keyring of known agent identities",
}

var keyringAddCmd = &cobra.Command{
	Use:   "add <agent-id> <public-key-hex>",
	Short: "Add or replace a known agent's public key",
	Args:  cobra.ExactArgs(2),
	RunE:  runKeyringAdd,
}

var keyringListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known agent identities",
	Args:  cobra.NoArgs,
	RunE:  runKeyringList,
}

func init() {
	rootCmd.AddCommand(keyringCmd)
	keyringCmd.AddCommand(keyringAddCmd)
	keyringCmd.AddCommand(keyringListCmd)
}

func openKeyring() (*keyring.Keyring, error) {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDir, Environment: environment, SkipValidation: true})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return keyring.Load(cfg.Keyring.Path)
}

func runKeyringAdd(cmd *cobra.Command, args []string) error {
	pub, err := hex.DecodeString(args[1])
	if err != nil {
		return fmt.Errorf("decode public key: %w", err)
	}
	kr, err := openKeyring()
	if err != nil {
		return err
	}
	if err := kr.Add(args[0], pub); err != nil {
		return fmt.Errorf("add entry: %w", err)
	}
	fmt.Printf("added %s\n", args[0])
	return nil
}

func runKeyringList(cmd *cobra.Command, args []string) error {
	kr, err := openKeyring()
	if err != nil {
		return err
	}
	for _, e := range kr.List() {
		fmt.Printf("%s\t%s\n", e.AgentID, hex.EncodeToString(e.PublicKey))
	}
	return nil
}
