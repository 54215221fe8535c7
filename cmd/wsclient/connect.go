package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/LLIEPJIOK/service-mesh/wsclient/pkg/config"
	"github.com/LLIEPJIOK/service-mesh/wsclient/pkg/logger"
	"github.com/LLIEPJIOK/service-mesh/wsclient/pkg/ws"
)

func newConnectCmd() *cobra.Command {
	var (
		label       string
		logLevel    string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "connect [url]",
		Short: "Connect to a WebSocket server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(nil)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.URL = args[0]
			}
			if cmd.Flags().Changed("label") {
				cfg.Label = label
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			if cfg.URL == "" {
				return errors.New("url is required (argument or WS_CLIENT_URL)")
			}

			return runConnect(cmd.Context(), cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&label, "label", "default", "connection label used in logs")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve /metrics on")

	return cmd
}

func runConnect(ctx context.Context, cmd *cobra.Command, cfg config.Config) error {
	log, err := logger.New(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	metrics, err := ws.NewMetrics(cfg.MetricsNamespace, reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	clientCfg, err := cfg.ClientConfig(log, metrics)
	if err != nil {
		return err
	}

	client := ws.NewClient(clientCfg)
	defer client.Close()

	opened := make(chan ws.Connection, 1)
	ended := make(chan ws.EndType, 1)

	if _, err := client.Connect(cfg.URL, cfg.Label,
		func(c ws.Connection) { opened <- c },
		func(_ ws.Connection, end ws.EndType) { ended <- end },
		func(_ ws.Connection, msg string) { printf(cmd, "%s\n", msg) },
	); err != nil {
		return err
	}

	var conn ws.Connection
	select {
	case conn = <-opened:
		log.Info("connected", "url", cfg.URL, "label", cfg.Label)
	case end := <-ended:
		return fmt.Errorf("connection %s", end)
	case <-ctx.Done():
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// Чтение stdin нельзя отменить, поэтому оно живёт вне errgroup.
	piped := make(chan error, 1)
	go func() {
		piped <- pipeLines(cmd.InOrStdin(), client, conn)
	}()

	g.Go(func() error {
		select {
		case end := <-ended:
			log.Info("connection ended", "type", end.String())
			return errConnectionEnded
		case err := <-piped:
			_ = client.CloseConnection(conn)
			<-ended
			if err != nil {
				return err
			}
			return errConnectionEnded
		case <-ctx.Done():
			_ = client.CloseConnection(conn)
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errConnectionEnded) {
		return err
	}
	return nil
}

var errConnectionEnded = errors.New("connection ended")

// pipeLines отправляет каждую строку r как отдельное сообщение.
func pipeLines(r io.Reader, client *ws.Client, conn ws.Connection) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := client.Send(conn, scanner.Text()); err != nil {
			if errors.Is(err, ws.ErrInvalidState) {
				return nil
			}
			return err
		}
	}
	return scanner.Err()
}
