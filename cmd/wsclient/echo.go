package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/LLIEPJIOK/service-mesh/wsclient/pkg/logger"
	"github.com/LLIEPJIOK/service-mesh/wsclient/pkg/ws/wstest"
)

func newEchoCmd() *cobra.Command {
	var (
		addr     string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Serve a local echo WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger.New(cmd.ErrOrStderr(), logLevel)
			if err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}

			cfg := wstest.DefaultServerConfig()
			cfg.Logger = log
			cfg.ReceivedBuffer = 0
			server := wstest.NewServer(cfg)

			srv := &http.Server{
				Addr:              addr,
				Handler:           server,
				ErrorLog:          server.ErrorLog(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				server.CloseAll(websocket.CloseGoingAway, "server shutting down")
				_ = srv.Shutdown(ctx)
			}()

			log.Info("echo server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	return cmd
}
