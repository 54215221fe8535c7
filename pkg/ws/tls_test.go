package ws

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTLSInit(t *testing.T) {
	pool := x509.NewCertPool()

	cases := []struct {
		desc    string
		load    func() (*x509.CertPool, error)
		roots   *x509.CertPool
		logLine string
	}{
		{
			desc:    "system roots loaded",
			load:    func() (*x509.CertPool, error) { return pool, nil },
			roots:   pool,
			logLine: "loaded built-in root certificates",
		},
		{
			desc:    "system roots unavailable",
			load:    func() (*x509.CertPool, error) { return nil, errors.New("no roots") },
			roots:   nil,
			logLine: "could not load built-in root certificates",
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			orig := loadRootCAs
			loadRootCAs = tc.load
			defer func() { loadRootCAs = orig }()

			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			cfg, err := DefaultTLSInit(logger)(Connection{Label: "roots"})
			require.NoError(t, err)

			assert.Same(t, tc.roots, cfg.RootCAs)
			assert.False(t, cfg.InsecureSkipVerify, "peer must be verified")
			assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
			assert.Contains(t, buf.String(), tc.logLine)
			assert.Contains(t, buf.String(), `"websocket":"roots"`)
		})
	}
}

func TestTLSConfig_Build(t *testing.T) {
	pool := x509.NewCertPool()

	cfg, err := (&TLSConfig{RootCAs: pool, ServerName: "example.com"}).Build()
	require.NoError(t, err)
	assert.Same(t, pool, cfg.RootCAs)
	assert.Equal(t, "example.com", cfg.ServerName)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.Empty(t, cfg.Certificates)

	cfg, err = (&TLSConfig{MinVersion: tls.VersionTLS13}).Build()
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)
}

func TestTLSConfig_BuildInvalidKeyPair(t *testing.T) {
	cases := []struct {
		desc string
		cfg  TLSConfig
	}{
		{desc: "certificate without key", cfg: TLSConfig{CertificatePEM: []byte("not a cert")}},
		{desc: "key without certificate", cfg: TLSConfig{PrivateKeyPEM: []byte("not a key")}},
		{desc: "garbage pair", cfg: TLSConfig{CertificatePEM: []byte("a"), PrivateKeyPEM: []byte("b")}},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := tc.cfg.Build()
			assert.ErrorIs(t, err, ErrInvalidCert)

			_, err = tc.cfg.Handler()(Connection{})
			assert.ErrorIs(t, err, ErrInvalidCert)
		})
	}
}
