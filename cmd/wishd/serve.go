package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wish-project/wishd/config"
	"github.com/wish-project/wishd/internal/logger"
	"github.com/wish-project/wishd/internal/metrics"
	"github.com/wish-project/wishd/server"
	"github.com/wish-project/wishd/storage/postgres"
	"github.com/wish-project/wishd/transport/tcp"
	"github.com/wish-project/wishd/transport/ws"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the responder daemon",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDir, Environment: environment})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.NewDefaultLogger()
	log.SetLevel(parseLevel(cfg.Logging.Level))
	log.Info("starting wishd", logger.String("agent", cfg.Agent.ID), logger.String("transport", cfg.Network.Transport))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	audit, err := postgres.NewStore(ctx, cfg.Storage.PostgresDSN, log)
	if err != nil {
		log.Warn("audit log unavailable, continuing without it", logger.Error(err))
		audit = nil
	}
	if audit != nil {
		defer audit.Close()
	}

	srv := server.New(server.Config{
		ID:         cfg.Agent.ID,
		PolicyPath: cfg.Policy.Path,
		Logger:     log,
		AuditLog:   auditAdapter{audit},
	})
	defer srv.Close()

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Addr); err != nil {
				log.Error("metrics server stopped", logger.Error(err))
			}
		}()
	}

	var tlsConfig *tls.Config
	if cfg.Network.TLSCertPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.Network.TLSCertPath, cfg.Network.TLSKeyPath)
		if err != nil {
			return fmt.Errorf("load tls keypair: %w", err)
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	switch cfg.Network.Transport {
	case "tcp":
		ln, err := tcp.Listen(cfg.Network.ListenAddr, tlsConfig)
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		log.Info("listening", logger.String("addr", cfg.Network.ListenAddr))
		return srv.Serve(ctx, ln)
	case "ws":
		return serveWS(ctx, srv, cfg, log)
	default:
		return fmt.Errorf("unsupported transport %q", cfg.Network.Transport)
	}
}

func parseLevel(s string) logger.Level {
	switch s {
	case "debug":
		return logger.DebugLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	case "fatal":
		return logger.FatalLevel
	default:
		return logger.InfoLevel
	}
}

// auditAdapter satisfies server.AuditLog over an optional
// postgres.AuditLog, which is nil when the store could not be
// constructed. A nil audit field is itself also valid: server.Server
// treats a nil server.AuditLog as "recording disabled".
type auditAdapter struct {
	log postgres.AuditLog
}

func (a auditAdapter) Record(ctx context.Context, o server.AuditOutcome) {
	if a.log == nil {
		return
	}
	a.log.Record(ctx, postgres.Outcome{
		RequesterID: o.RequesterID,
		ResponderID: o.ResponderID,
		FinalStage:  o.FinalStage,
		Accepted:    o.Accepted,
		Duration:    o.Duration,
	})
}
