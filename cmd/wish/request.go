package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wish-project/wishd/client"
	"github.com/wish-project/wishd/config"
	"github.com/wish-project/wishd/transport/tcp"
	"github.com/wish-project/wishd/transport/ws"
	"github.com/wish-project/wishd/wire"
)

var (
	task        string
	arg         string
	responderID string
)

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Send one request to a responder and print the result",
	Args:  cobra.NoArgs,
	RunE:  runRequest,
}

func init() {
	rootCmd.AddCommand(requestCmd)
	requestCmd.Flags().StringVar(&task, "task", "", "task name to request (required)")
	requestCmd.Flags().StringVar(&arg, "arg", "", "task argument")
	requestCmd.Flags().StringVar(&responderID, "responder-id", "", "responder's agent id (required)")
	requestCmd.MarkFlagRequired("task")
	requestCmd.MarkFlagRequired("responder-id")
}

func runRequest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDir, Environment: environment})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Network.DialTimeout)
	defer cancel()

	conn, err := dial(ctx, cfg)
	if err != nil {
		return fmt.Errorf("dial responder: %w", err)
	}
	defer conn.Close()

	wishPayload := map[string]any{"task": task}
	if arg != "" {
		wishPayload["arg"] = arg
	}

	result, err := client.Request(conn, client.Options{
		RequesterID: cfg.Agent.ID,
		ResponderID: responderID,
		WishPayload: wishPayload,
		OnProgress: func(prog uint64) {
			fmt.Printf("progress: %d%%\n", prog)
		},
	})
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	return printResult(result)
}

func dial(ctx context.Context, cfg *config.Config) (io.ReadWriteCloser, error) {
	var tlsConfig *tls.Config
	if cfg.Network.TLSCertPath != "" {
		tlsConfig = &tls.Config{}
	}

	switch cfg.Network.Transport {
	case "tcp":
		conn, err := tcp.Dial(ctx, cfg.Network.DialAddr, tlsConfig)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case "ws":
		return ws.Dial(ctx, cfg.Network.DialAddr)
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Network.Transport)
	}
}

func printResult(msg wire.Message) error {
	out, err := json.MarshalIndent(map[string]any{
		"stage":   msg.Stage.String(),
		"payload": msg.Payload,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
