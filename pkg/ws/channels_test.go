package ws

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logLine struct {
	Level   string `json:"level"`
	Msg     string `json:"msg"`
	Channel string `json:"channel"`
}

func readLines(t *testing.T, buf *bytes.Buffer) []logLine {
	t.Helper()

	var lines []logLine
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var l logLine
		require.NoError(t, json.Unmarshal([]byte(raw), &l))
		lines = append(lines, l)
	}
	return lines
}

func TestAccessChannel_String(t *testing.T) {
	cases := []struct {
		ch   AccessChannel
		want string
	}{
		{AccessNone, "none"},
		{AccessConnect, "connect"},
		{AccessConnect | AccessDisconnect, "connect|disconnect"},
		{AccessMessagePayload, "message_payload"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.ch.String())
	}
	assert.Len(t, strings.Split(AccessAll.String(), "|"), len(accessNames))
}

func TestErrorChannel_String(t *testing.T) {
	assert.Equal(t, "none", ErrorNone.String())
	assert.Equal(t, "warn|fatal", (ErrorWarn | ErrorFatal).String())
	assert.Len(t, strings.Split(ErrorAll.String(), "|"), len(errorNames))
}

func TestLogChannels_AccessMask(t *testing.T) {
	var buf bytes.Buffer
	logs := newTestLogChannels(&buf, AccessAll&^AccessMessagePayload, ErrorNone)

	logs.logAccess(AccessConnect, "connection established")
	logs.logAccess(AccessMessagePayload, "message payload")

	logs.access.Or(uint32(AccessMessagePayload))
	logs.logAccess(AccessMessagePayload, "message payload")

	logs.access.And(^uint32(AccessConnect))
	logs.logAccess(AccessConnect, "connection established")

	lines := readLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, logLine{Level: "INFO", Msg: "connection established", Channel: "connect"}, lines[0])
	assert.Equal(t, logLine{Level: "INFO", Msg: "message payload", Channel: "message_payload"}, lines[1])
}

func TestLogChannels_ErrorLevels(t *testing.T) {
	cases := []struct {
		ch    ErrorChannel
		level string
	}{
		{ErrorDevel, "DEBUG"},
		{ErrorInfo, "INFO"},
		{ErrorWarn, "WARN"},
		{ErrorLibrary, "ERROR"},
		{ErrorRecoverable, "ERROR"},
		{ErrorFatal, "ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.ch.String(), func(t *testing.T) {
			var buf bytes.Buffer
			logs := newTestLogChannels(&buf, AccessNone, ErrorAll)

			logs.logError(tc.ch, "entry")

			lines := readLines(t, &buf)
			require.Len(t, lines, 1)
			assert.Equal(t, tc.level, lines[0].Level)
			assert.Equal(t, tc.ch.String(), lines[0].Channel)
		})
	}
}

func TestLogChannels_ErrorMask(t *testing.T) {
	var buf bytes.Buffer
	logs := newTestLogChannels(&buf, AccessNone, ErrorAll&^ErrorDevel)

	logs.logError(ErrorDevel, "hidden")
	logs.logError(ErrorWarn, "shown")

	lines := readLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0].Msg)
}

func TestClient_ChannelSetters(t *testing.T) {
	var buf bytes.Buffer
	logs := newTestLogChannels(&buf, AccessNone, ErrorNone)

	client := &Client{logs: logs}

	client.SetAccessChannels(AccessConnect | AccessFail)
	client.ClearAccessChannels(AccessConnect)
	assert.Equal(t, AccessFail, client.AccessChannels())

	client.SetErrorChannels(ErrorAll)
	client.ClearErrorChannels(ErrorDevel)
	assert.Equal(t, ErrorAll&^ErrorDevel, client.ErrorChannels())
}

func TestLogChannels_SeparateSinks(t *testing.T) {
	var accessBuf, errorBuf bytes.Buffer
	accessLogs := newTestLogChannels(&accessBuf, AccessNone, ErrorNone)
	errorLogs := newTestLogChannels(&errorBuf, AccessNone, ErrorNone)

	logs := newLogChannels(ClientConfig{
		Logger:         accessLogs.accessLogger,
		AccessLogger:   accessLogs.accessLogger,
		ErrorLogger:    errorLogs.errorLogger,
		AccessChannels: AccessAll,
		ErrorChannels:  ErrorAll,
	})

	logs.logAccess(AccessEndpoint, "client started")
	logs.logError(ErrorWarn, "close handshake timed out")

	assert.Contains(t, accessBuf.String(), "client started")
	assert.NotContains(t, accessBuf.String(), "close handshake timed out")
	assert.Contains(t, errorBuf.String(), "close handshake timed out")
}
