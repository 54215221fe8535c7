package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// EndType описывает, как завершилось соединение.
type EndType int

const (
	// Closed - соединение было открыто и затем закрыто (любой стороной).
	Closed EndType = iota
	// Failed - соединение так и не открылось.
	Failed
)

func (t EndType) String() string {
	switch t {
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("EndType(%d)", int(t))
	}
}

type (
	OpenedFunc  func(conn Connection)
	EndedFunc   func(conn Connection, end EndType)
	MessageFunc func(conn Connection, message string)
)

var connectionIDCounter atomic.Uint64

var errCloseTimeout = errors.New("close handshake timed out")

// Connection идентифицирует соединение: метка для логов + непрозрачный handle.
// Нулевое значение невалидно.
type Connection struct {
	Label  string
	handle *connection
}

func (c Connection) Valid() bool {
	return c.handle != nil
}

func (c Connection) ID() uint64 {
	if c.handle == nil {
		return 0
	}
	return c.handle.id
}

func (c Connection) String() string {
	return fmt.Sprintf("%s#%d", c.Label, c.ID())
}

type connState int32

const (
	stateConnecting connState = iota
	stateOpen
	stateClosing
	stateClosed
)

type connection struct {
	id     uint64
	label  string
	url    *url.URL
	logger *slog.Logger

	onOpen    OpenedFunc
	onEnded   EndedFunc
	onMessage MessageFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      connState
	ws         *websocket.Conn
	err        error
	closeTimer *time.Timer

	writeMu sync.Mutex
}

func newConnection(u *url.URL, label string, logger *slog.Logger) *connection {
	ctx, cancel := context.WithCancel(context.Background())
	id := connectionIDCounter.Add(1)

	return &connection{
		id:     id,
		label:  label,
		url:    u,
		logger: logger.With(slog.String("websocket", label), slog.Uint64("connection_id", id)),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (h *connection) public() Connection {
	return Connection{Label: h.label, handle: h}
}

func (h *connection) setErrLocked(err error) {
	if h.err == nil && err != nil {
		h.err = err
	}
}

func (h *connection) fail(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state = stateClosed
	h.setErrLocked(err)
	h.cancel()
}

// attach переводит соединение в open. Возвращает false, если соединение
// было отменено во время dial.
func (h *connection) attach(ws *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.ctx.Err(); err != nil {
		h.state = stateClosed
		h.setErrLocked(err)
		return false
	}

	h.ws = ws
	h.state = stateOpen
	return true
}

func (h *connection) finish(err error) {
	h.mu.Lock()
	if !isNormalClose(err) {
		h.setErrLocked(err)
	}
	h.state = stateClosed
	if h.closeTimer != nil {
		h.closeTimer.Stop()
	}
	ws := h.ws
	h.mu.Unlock()

	h.cancel()
	if ws != nil {
		_ = ws.Close()
	}
}

func (h *connection) lastErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *connection) openConn() (*websocket.Conn, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ws, h.state == stateOpen
}

func (h *connection) close(code int, reason string, timeout time.Duration) error {
	h.mu.Lock()

	switch h.state {
	case stateConnecting:
		h.mu.Unlock()
		h.cancel()
		return nil

	case stateOpen:
		h.state = stateClosing
		ws := h.ws
		h.closeTimer = time.AfterFunc(timeout, func() { h.teardown(errCloseTimeout) })
		h.mu.Unlock()

		msg := websocket.FormatCloseMessage(code, reason)
		if err := ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeout)); err != nil {
			h.teardown(err)
			return fmt.Errorf("failed to write close frame: %w", err)
		}
		return nil

	default:
		h.mu.Unlock()
		return ErrInvalidState
	}
}

// teardown закрывает транспорт без close handshake.
func (h *connection) teardown(err error) {
	h.mu.Lock()
	h.setErrLocked(err)
	ws := h.ws
	h.mu.Unlock()

	h.cancel()
	if ws != nil {
		_ = ws.Close()
	}
}

func isNormalClose(err error) bool {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return false
	}
	return closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway
}
