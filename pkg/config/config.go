package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v7"

	"github.com/LLIEPJIOK/service-mesh/wsclient/pkg/ws"
)

type Config struct {
	LogLevel         string        `env:"WS_CLIENT_LOG_LEVEL"         envDefault:"info"`
	URL              string        `env:"WS_CLIENT_URL"               envDefault:""`
	Label            string        `env:"WS_CLIENT_LABEL"             envDefault:"default"`
	HandshakeTimeout time.Duration `env:"WS_CLIENT_HANDSHAKE_TIMEOUT" envDefault:"45s"`
	CloseTimeout     time.Duration `env:"WS_CLIENT_CLOSE_TIMEOUT"     envDefault:"5s"`
	WriteTimeout     time.Duration `env:"WS_CLIENT_WRITE_TIMEOUT"     envDefault:"10s"`
	ReadLimit        int64         `env:"WS_CLIENT_READ_LIMIT"        envDefault:"33554432"`
	LogPayloads      bool          `env:"WS_CLIENT_LOG_PAYLOADS"      envDefault:"false"`
	MetricsAddr      string        `env:"WS_CLIENT_METRICS_ADDR"      envDefault:""`
	MetricsNamespace string        `env:"WS_CLIENT_METRICS_NAMESPACE" envDefault:"wsclient"`
	TLS              TLSEnv
}

// Load читает конфигурацию из окружения процесса либо из environment,
// если он не nil.
func Load(environment map[string]string) (Config, error) {
	var cfg Config

	opts := env.Options{Environment: environment}
	if err := env.Parse(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// ClientConfig собирает ws.ClientConfig. TLS init берётся из TLS_* переменных,
// если они заданы, иначе используется ws.DefaultTLSInit.
func (c Config) ClientConfig(logger *slog.Logger, metrics *ws.Metrics) (ws.ClientConfig, error) {
	cfg := ws.DefaultClientConfig()
	cfg.HandshakeTimeout = c.HandshakeTimeout
	cfg.CloseTimeout = c.CloseTimeout
	cfg.WriteTimeout = c.WriteTimeout
	cfg.ReadLimit = c.ReadLimit
	cfg.Logger = logger
	cfg.Metrics = metrics

	if c.LogPayloads {
		cfg.AccessChannels |= ws.AccessMessagePayload
	}

	if !c.TLS.Empty() {
		tlsCfg, err := c.TLS.Decode()
		if err != nil {
			return ws.ClientConfig{}, err
		}
		cfg.TLSInit = tlsCfg.Handler()
	}

	return cfg, nil
}
