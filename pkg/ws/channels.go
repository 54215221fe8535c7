package ws

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
)

// AccessChannel - битовая маска каналов access-лога клиента.
type AccessChannel uint32

const (
	AccessConnect AccessChannel = 1 << iota
	AccessDisconnect
	AccessControl
	AccessHandshake
	AccessMessageHeader
	AccessMessagePayload
	AccessFail
	AccessEndpoint
)

const (
	AccessNone AccessChannel = 0
	AccessAll                = AccessConnect | AccessDisconnect | AccessControl | AccessHandshake |
		AccessMessageHeader | AccessMessagePayload | AccessFail | AccessEndpoint
)

var accessNames = []struct {
	ch   AccessChannel
	name string
}{
	{AccessConnect, "connect"},
	{AccessDisconnect, "disconnect"},
	{AccessControl, "control"},
	{AccessHandshake, "handshake"},
	{AccessMessageHeader, "message_header"},
	{AccessMessagePayload, "message_payload"},
	{AccessFail, "fail"},
	{AccessEndpoint, "endpoint"},
}

func (a AccessChannel) String() string {
	if a == AccessNone {
		return "none"
	}

	var names []string
	for _, n := range accessNames {
		if a&n.ch != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// ErrorChannel - битовая маска каналов error-лога клиента.
type ErrorChannel uint32

const (
	ErrorDevel ErrorChannel = 1 << iota
	ErrorLibrary
	ErrorInfo
	ErrorWarn
	ErrorRecoverable
	ErrorFatal
)

const (
	ErrorNone ErrorChannel = 0
	ErrorAll               = ErrorDevel | ErrorLibrary | ErrorInfo | ErrorWarn | ErrorRecoverable | ErrorFatal
)

var errorNames = []struct {
	ch    ErrorChannel
	name  string
	level slog.Level
}{
	{ErrorDevel, "devel", slog.LevelDebug},
	{ErrorLibrary, "library", slog.LevelError},
	{ErrorInfo, "info", slog.LevelInfo},
	{ErrorWarn, "warn", slog.LevelWarn},
	{ErrorRecoverable, "recoverable", slog.LevelError},
	{ErrorFatal, "fatal", slog.LevelError},
}

func (e ErrorChannel) String() string {
	if e == ErrorNone {
		return "none"
	}

	var names []string
	for _, n := range errorNames {
		if e&n.ch != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

func (e ErrorChannel) level() slog.Level {
	for _, n := range errorNames {
		if e&n.ch != 0 {
			return n.level
		}
	}
	return slog.LevelError
}

type logChannels struct {
	access       atomic.Uint32
	errors       atomic.Uint32
	accessLogger *slog.Logger
	errorLogger  *slog.Logger
}

func newLogChannels(cfg ClientConfig) *logChannels {
	base := cfg.Logger.With(slog.String("component", "websocket_client"))

	l := &logChannels{
		accessLogger: cfg.AccessLogger,
		errorLogger:  cfg.ErrorLogger,
	}
	if l.accessLogger == nil {
		l.accessLogger = base
	}
	if l.errorLogger == nil {
		l.errorLogger = base
	}

	l.access.Store(uint32(cfg.AccessChannels))
	l.errors.Store(uint32(cfg.ErrorChannels))

	return l
}

func (l *logChannels) logAccess(ch AccessChannel, msg string, args ...any) {
	if AccessChannel(l.access.Load())&ch == 0 {
		return
	}
	l.accessLogger.Info(msg, append([]any{slog.String("channel", ch.String())}, args...)...)
}

func (l *logChannels) logError(ch ErrorChannel, msg string, args ...any) {
	if ErrorChannel(l.errors.Load())&ch == 0 {
		return
	}
	l.errorLogger.Log(
		context.Background(),
		ch.level(),
		msg,
		append([]any{slog.String("channel", ch.String())}, args...)...,
	)
}
