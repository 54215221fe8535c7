package config

import (
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/LLIEPJIOK/service-mesh/wsclient/pkg/ws"
)

var ErrIncompleteKeyPair = errors.New("TLS_CERT and TLS_KEY must be set together")

// TLSEnv - TLS материалы из окружения, каждый в base64 от PEM.
// TLS_CERT и TLS_KEY нужны только для mTLS, TLS_CA заменяет системные CA.
type TLSEnv struct {
	CertB64    string `env:"TLS_CERT"        envDefault:""`
	KeyB64     string `env:"TLS_KEY"         envDefault:""`
	CAB64      string `env:"TLS_CA"          envDefault:""`
	ServerName string `env:"TLS_SERVER_NAME" envDefault:""`
}

func (t TLSEnv) Empty() bool {
	return t.CertB64 == "" && t.KeyB64 == "" && t.CAB64 == "" && t.ServerName == ""
}

func (t TLSEnv) Decode() (*ws.TLSConfig, error) {
	if (t.CertB64 == "") != (t.KeyB64 == "") {
		return nil, ErrIncompleteKeyPair
	}

	cfg := &ws.TLSConfig{ServerName: t.ServerName}

	if t.CertB64 != "" {
		certPEM, err := base64.StdEncoding.DecodeString(t.CertB64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode TLS_CERT: %w", err)
		}

		keyPEM, err := base64.StdEncoding.DecodeString(t.KeyB64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode TLS_KEY: %w", err)
		}

		cfg.CertificatePEM = certPEM
		cfg.PrivateKeyPEM = keyPEM
	}

	if t.CAB64 != "" {
		caPEM, err := base64.StdEncoding.DecodeString(t.CAB64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode TLS_CA: %w", err)
		}

		rootCAs := x509.NewCertPool()
		if !rootCAs.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}

		cfg.RootCAs = rootCAs
	}

	return cfg, nil
}
