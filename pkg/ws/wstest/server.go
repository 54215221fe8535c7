// Package wstest содержит echo WebSocket сервер для тестов и локального запуска клиента.
package wstest

import (
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LLIEPJIOK/service-mesh/wsclient/pkg/logger"
)

type ServerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
	Logger          *slog.Logger
	Echo            bool
	ReceivedBuffer  int
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
		Logger:          slog.Default(),
		Echo:            true,
		ReceivedBuffer:  256,
	}
}

type peer struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

type Server struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
	echo     bool
	received chan string

	mu    sync.Mutex
	peers map[*peer]struct{}
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var received chan string
	if cfg.ReceivedBuffer > 0 {
		received = make(chan string, cfg.ReceivedBuffer)
	}

	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		logger:   cfg.Logger,
		echo:     cfg.Echo,
		received: received,
		peers:    make(map[*peer]struct{}),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	p := &peer{conn: conn}

	s.mu.Lock()
	s.peers[p] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.peers, p)
		s.mu.Unlock()
	}()

	s.logger.Info("client connected", "remote_addr", conn.RemoteAddr())
	defer s.logger.Info("client disconnected", "remote_addr", conn.RemoteAddr())

	s.handleConnection(p)
}

func (s *Server) handleConnection(p *peer) {
	for {
		opcode, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
			) {
				s.logger.Error("read error", "error", err)
			}

			return
		}

		if s.received != nil {
			select {
			case s.received <- string(data):
			default:
				s.logger.Warn("received buffer full, dropping message")
			}
		}

		if s.echo {
			s.write(p, opcode, data)
		}
	}
}

func (s *Server) write(p *peer, opcode int, data []byte) bool {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if err := p.conn.WriteMessage(opcode, data); err != nil {
		s.logger.Error("failed to write message", "error", err)
		return false
	}
	return true
}

// Received отдаёт сообщения, полученные от всех клиентов.
// Nil, если ReceivedBuffer <= 0.
func (s *Server) Received() <-chan string {
	return s.received
}

func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Broadcast отправляет текстовое сообщение всем клиентам и возвращает
// число успешных отправок.
func (s *Server) Broadcast(msg string) int {
	sent := 0
	for _, p := range s.snapshot() {
		if s.write(p, websocket.TextMessage, []byte(msg)) {
			sent++
		}
	}
	return sent
}

// CloseAll начинает close handshake со всеми клиентами.
func (s *Server) CloseAll(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	for _, p := range s.snapshot() {
		if err := p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
			s.logger.Error("failed to write close frame", "error", err)
		}
	}
}

// DropAll рвёт транспорт без close handshake.
func (s *Server) DropAll() {
	for _, p := range s.snapshot() {
		_ = p.conn.Close()
	}
}

// ErrorLog направляет вывод http.Server в slog.
func (s *Server) ErrorLog() *log.Logger {
	return log.New(logger.NewLineWriter(s.logger, slog.LevelError, "[WebsocketServer]"), "", 0)
}

func (s *Server) snapshot() []*peer {
	s.mu.Lock()
	defer s.mu.Unlock()

	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	return peers
}

// Start запускает s на httptest сервере; tls включает StartTLS.
func Start(s *Server, tls bool) *httptest.Server {
	ts := httptest.NewUnstartedServer(s)
	ts.Config.ErrorLog = s.ErrorLog()

	if tls {
		ts.StartTLS()
	} else {
		ts.Start()
	}

	return ts
}

// URL переводит адрес httptest сервера в ws:// или wss://.
func URL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}
