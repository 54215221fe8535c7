package ws

import "errors"

var (
	ErrInvalidURL        = errors.New("invalid url")
	ErrClientClosed      = errors.New("client closed")
	ErrInvalidConnection = errors.New("invalid connection")
	ErrInvalidState      = errors.New("invalid connection state")
	ErrTLSInit           = errors.New("tls init failed")
	ErrInvalidCert       = errors.New("invalid certificate")
)
