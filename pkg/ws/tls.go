package ws

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
)

// TLSInitHandler создаёт TLS конфигурацию для wss соединения перед dial.
// Ошибка переводит соединение в Failed.
type TLSInitHandler func(conn Connection) (*tls.Config, error)

// loadRootCAs подменяется в тестах.
var loadRootCAs = x509.SystemCertPool

// DefaultTLSInit загружает системные корневые сертификаты и требует
// проверку сертификата сервера. Если загрузить их не удалось, ошибка
// логируется и соединение продолжается без собственного пула.
func DefaultTLSInit(logger *slog.Logger) TLSInitHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(conn Connection) (*tls.Config, error) {
		cfg := &tls.Config{MinVersion: tls.VersionTLS12}

		pool, err := loadRootCAs()
		if err != nil || pool == nil {
			logger.Error("could not load built-in root certificates",
				slog.String("websocket", conn.Label), "error", err)
		} else {
			logger.Debug("loaded built-in root certificates", slog.String("websocket", conn.Label))
			cfg.RootCAs = pool
		}

		return cfg, nil
	}
}

type TLSConfig struct {
	CertificatePEM []byte         // Клиентский сертификат в PEM (для mTLS, опционально)
	PrivateKeyPEM  []byte         // Приватный ключ в PEM
	RootCAs        *x509.CertPool // Доверенные CA; nil - системные
	ServerName     string         // Переопределяет SNI и имя для проверки
	MinVersion     uint16         // По умолчанию TLS 1.2
}

func (c *TLSConfig) Build() (*tls.Config, error) {
	cfg := &tls.Config{
		RootCAs:    c.RootCAs,
		ServerName: c.ServerName,
		MinVersion: c.MinVersion,
	}
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}

	if len(c.CertificatePEM) > 0 || len(c.PrivateKeyPEM) > 0 {
		pair, err := tls.X509KeyPair(c.CertificatePEM, c.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCert, err)
		}
		cfg.Certificates = []tls.Certificate{pair}
	}

	return cfg, nil
}

func (c *TLSConfig) Handler() TLSInitHandler {
	return func(Connection) (*tls.Config, error) {
		return c.Build()
	}
}
