package ws

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultCloseTimeout = 5 * time.Second

// ClientConfig - настройки Client. Начинайте с DefaultClientConfig:
// нулевые AccessChannels и ErrorChannels означают AccessNone и ErrorNone,
// то есть логирование по каналам выключено. Пустые Logger, CloseTimeout и
// TLSInit NewClient заполняет значениями по умолчанию.
type ClientConfig struct {
	HandshakeTimeout time.Duration
	CloseTimeout     time.Duration
	WriteTimeout     time.Duration
	ReadLimit        int64
	ReadBufferSize   int
	WriteBufferSize  int
	Header           http.Header
	Subprotocols     []string
	Proxy            func(*http.Request) (*url.URL, error)
	EventQueueSize   int
	TLSInit          TLSInitHandler
	AccessChannels   AccessChannel
	ErrorChannels    ErrorChannel
	Logger           *slog.Logger
	AccessLogger     *slog.Logger
	ErrorLogger      *slog.Logger
	Metrics          *Metrics
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 45 * time.Second,
		CloseTimeout:     defaultCloseTimeout,
		WriteTimeout:     10 * time.Second,
		ReadLimit:        32 << 20,
		EventQueueSize:   256,
		AccessChannels:   AccessAll &^ AccessMessagePayload,
		ErrorChannels:    ErrorAll,
		Logger:           slog.Default(),
	}
}

// Client владеет event loop и всеми соединениями, открытыми через Connect.
// Колбэки всех соединений вызываются последовательно на горутине event loop,
// поэтому вызывать Close из колбэка нельзя.
type Client struct {
	cfg    ClientConfig
	dialer websocket.Dialer
	logger *slog.Logger
	logs   *logChannels
	loop   *eventLoop

	mu        sync.Mutex
	closed    bool
	conns     map[*connection]struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = defaultCloseTimeout
	}
	if cfg.TLSInit == nil {
		cfg.TLSInit = DefaultTLSInit(cfg.Logger)
	}

	logs := newLogChannels(cfg)

	c := &Client{
		cfg: cfg,
		dialer: websocket.Dialer{
			Proxy:            cfg.Proxy,
			HandshakeTimeout: cfg.HandshakeTimeout,
			ReadBufferSize:   cfg.ReadBufferSize,
			WriteBufferSize:  cfg.WriteBufferSize,
			Subprotocols:     cfg.Subprotocols,
		},
		logger: cfg.Logger,
		logs:   logs,
		loop:   newEventLoop(cfg.EventQueueSize, logs),
		conns:  make(map[*connection]struct{}),
	}

	go c.loop.run()

	c.logs.logAccess(AccessEndpoint, "client started")

	return c
}

// Connect создаёт соединение и начинает его асинхронное открытие.
// Ошибка возвращается только если соединение не удалось инициализировать;
// в этом случае ни один колбэк не будет вызван.
func (c *Client) Connect(
	rawURL, label string,
	onOpen OpenedFunc,
	onEnded EndedFunc,
	onMessage MessageFunc,
) (Connection, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		c.logger.Error("connection initialization error",
			slog.String("websocket", label), "error", err)
		return Connection{}, err
	}

	h := newConnection(u, label, c.logger)
	h.onOpen = onOpen
	h.onEnded = onEnded
	h.onMessage = onMessage

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		h.cancel()
		c.logger.Error("connection initialization error",
			slog.String("websocket", label), "error", ErrClientClosed)
		return Connection{}, ErrClientClosed
	}
	c.conns[h] = struct{}{}
	c.wg.Add(1)
	c.mu.Unlock()

	go c.serve(h)

	return h.public(), nil
}

// Send отправляет текстовое сообщение.
func (c *Client) Send(conn Connection, message string) error {
	err := c.send(conn, message)
	c.cfg.Metrics.messageSent(err)

	if err != nil {
		c.connLogger(conn).Error("send message error", "error", err)
		c.logs.logError(ErrorRecoverable, "send failed", slog.String("websocket", conn.Label), "error", err)
	}

	return err
}

func (c *Client) send(conn Connection, message string) error {
	h := conn.handle
	if h == nil {
		return ErrInvalidConnection
	}

	ws, ok := h.openConn()
	if !ok {
		return ErrInvalidState
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		if err := ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// CloseConnection начинает нормальное закрытие (1000) соединения.
// Соединение в процессе открытия отменяется и завершается как Failed.
func (c *Client) CloseConnection(conn Connection) error {
	var err error
	if conn.handle == nil {
		err = ErrInvalidConnection
	} else {
		err = conn.handle.close(websocket.CloseNormalClosure, "", c.cfg.CloseTimeout)
	}

	if err != nil {
		c.connLogger(conn).Error("connection close error", "error", err)
		c.logs.logError(ErrorRecoverable, "close failed", slog.String("websocket", conn.Label), "error", err)
	}

	return err
}

// Close закрывает все соединения, дожидается их завершения и доставки
// оставшихся событий, затем останавливает event loop.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		conns := make([]*connection, 0, len(c.conns))
		for h := range c.conns {
			conns = append(conns, h)
		}
		c.mu.Unlock()

		// Соединения в closing уже ждут своего таймера.
		for _, h := range conns {
			_ = h.close(websocket.CloseNormalClosure, "", c.cfg.CloseTimeout)
		}

		c.wg.Wait()
		c.loop.stop()

		c.logs.logAccess(AccessEndpoint, "client stopped")
	})

	return nil
}

// Done закрывается после остановки event loop.
func (c *Client) Done() <-chan struct{} {
	return c.loop.done
}

func (c *Client) AccessChannels() AccessChannel {
	return AccessChannel(c.logs.access.Load())
}

func (c *Client) SetAccessChannels(ch AccessChannel) {
	c.logs.access.Or(uint32(ch))
}

func (c *Client) ClearAccessChannels(ch AccessChannel) {
	c.logs.access.And(^uint32(ch))
}

func (c *Client) ErrorChannels() ErrorChannel {
	return ErrorChannel(c.logs.errors.Load())
}

func (c *Client) SetErrorChannels(ch ErrorChannel) {
	c.logs.errors.Or(uint32(ch))
}

func (c *Client) ClearErrorChannels(ch ErrorChannel) {
	c.logs.errors.And(^uint32(ch))
}

func (c *Client) serve(h *connection) {
	defer c.release(h)

	ws, err := c.dial(h)
	if err != nil {
		h.fail(err)
		c.loop.post(func() { c.handleFail(h) })
		return
	}

	if !h.attach(ws) {
		_ = ws.Close()
		c.loop.post(func() { c.handleFail(h) })
		return
	}

	c.logs.logAccess(AccessConnect, "connection established",
		slog.String("websocket", h.label), slog.String("url", h.url.Redacted()))
	c.loop.post(func() { c.handleOpen(h) })

	c.readLoop(h, ws)

	c.loop.post(func() { c.handleClose(h) })
}

func (c *Client) release(h *connection) {
	c.mu.Lock()
	delete(c.conns, h)
	c.mu.Unlock()
	c.wg.Done()
}

func (c *Client) dial(h *connection) (*websocket.Conn, error) {
	dialer := c.dialer

	if h.url.Scheme == "wss" {
		tlsCfg, err := c.cfg.TLSInit(h.public())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTLSInit, err)
		}
		dialer.TLSClientConfig = tlsCfg
	}

	c.logs.logAccess(AccessHandshake, "sending handshake request",
		slog.String("websocket", h.label), slog.String("url", h.url.Redacted()))

	ws, resp, err := dialer.DialContext(h.ctx, h.url.String(), c.cfg.Header.Clone())
	if err != nil {
		c.logs.logError(ErrorLibrary, "dial failed", slog.String("websocket", h.label), "error", err)
		if resp != nil {
			return nil, fmt.Errorf("handshake failed: status=%d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	c.logs.logAccess(AccessHandshake, "handshake response",
		slog.String("websocket", h.label),
		slog.Int("status", resp.StatusCode),
		slog.String("subprotocol", ws.Subprotocol()))

	return ws, nil
}

func (c *Client) readLoop(h *connection, ws *websocket.Conn) {
	if c.cfg.ReadLimit > 0 {
		ws.SetReadLimit(c.cfg.ReadLimit)
	}

	pingHandler := ws.PingHandler()
	ws.SetPingHandler(func(data string) error {
		c.logs.logAccess(AccessControl, "control frame received",
			slog.String("websocket", h.label), slog.String("opcode", "ping"), slog.Int("size", len(data)))
		return pingHandler(data)
	})

	pongHandler := ws.PongHandler()
	ws.SetPongHandler(func(data string) error {
		c.logs.logAccess(AccessControl, "control frame received",
			slog.String("websocket", h.label), slog.String("opcode", "pong"), slog.Int("size", len(data)))
		return pongHandler(data)
	})

	closeHandler := ws.CloseHandler()
	ws.SetCloseHandler(func(code int, text string) error {
		c.logs.logAccess(AccessControl, "control frame received",
			slog.String("websocket", h.label), slog.String("opcode", "close"),
			slog.Int("code", code), slog.String("reason", text))
		return closeHandler(code, text)
	})

	for {
		opcode, data, err := ws.ReadMessage()
		if err != nil {
			if !isNormalClose(err) {
				c.logs.logError(ErrorLibrary, "read failed", slog.String("websocket", h.label), "error", err)
			}

			code := websocket.CloseAbnormalClosure
			if closeErr, ok := err.(*websocket.CloseError); ok {
				code = closeErr.Code
			}
			c.logs.logAccess(AccessDisconnect, "connection closed",
				slog.String("websocket", h.label), slog.Int("code", code))

			h.finish(err)
			return
		}

		c.cfg.Metrics.messageReceived(len(data))
		c.logs.logAccess(AccessMessageHeader, "message received",
			slog.String("websocket", h.label), slog.Int("opcode", opcode), slog.Int("size", len(data)))
		c.logs.logAccess(AccessMessagePayload, "message payload",
			slog.String("websocket", h.label), slog.String("payload", string(data)))

		payload := string(data)
		c.loop.post(func() { c.handleMessage(h, payload) })
	}
}

func (c *Client) handleOpen(h *connection) {
	h.logger.Debug("opened")
	c.cfg.Metrics.connectionOpened()

	if h.onOpen != nil {
		h.onOpen(h.public())
	}
}

func (c *Client) handleClose(h *connection) {
	h.logger.Debug("closed")
	if err := h.lastErr(); err != nil {
		h.logger.Debug("close reason", "error", err)
	}
	c.cfg.Metrics.connectionEnded(Closed)

	if h.onEnded != nil {
		h.onEnded(h.public(), Closed)
	}
}

func (c *Client) handleFail(h *connection) {
	h.logger.Error("failed")
	err := h.lastErr()
	if err != nil {
		h.logger.Error("failure reason", "error", err)
	}
	c.logs.logAccess(AccessFail, "connection failed",
		slog.String("websocket", h.label), "error", err)
	c.cfg.Metrics.connectionEnded(Failed)

	if h.onEnded != nil {
		h.onEnded(h.public(), Failed)
	}
}

func (c *Client) handleMessage(h *connection, payload string) {
	h.logger.Debug("message received", slog.String("payload", payload))

	if h.onMessage != nil {
		h.onMessage(h.public(), payload)
	}
}

func (c *Client) connLogger(conn Connection) *slog.Logger {
	if conn.handle != nil {
		return conn.handle.logger
	}
	return c.logger.With(slog.String("websocket", conn.Label))
}

func parseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	return u, nil
}
