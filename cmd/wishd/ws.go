package main

import (
	"context"
	"net/http"

	"github.com/wish-project/wishd/config"
	"github.com/wish-project/wishd/internal/logger"
	"github.com/wish-project/wishd/server"
	"github.com/wish-project/wishd/transport/ws"
)

// serveWS runs the responder over WebSocket: each upgraded connection
// is handed to srv's responder state machine on its own goroutine,
// matching the per-connection model Serve uses for plain TCP.
func serveWS(ctx context.Context, srv *server.Server, cfg *config.Config, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/wish", func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r)
		if err != nil {
			log.Warn("websocket upgrade failed", logger.Error(err))
			return
		}
		go func() {
			defer conn.Close()
			srv.HandleConn(ctx, conn)
		}()
	})

	httpSrv := &http.Server{Addr: cfg.Network.ListenAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		httpSrv.Close()
	}()
	log.Info("listening", logger.String("addr", cfg.Network.ListenAddr))
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
