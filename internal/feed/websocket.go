package feed

import (
	"log/slog"
	"sync"
	"time"

	"unibox/internal/domain"

	"github.com/gorilla/websocket"
)

// WSConfig configures the WebSocket connector.
type WSConfig struct {
	URL                  string // ws:// or wss:// endpoint
	MaxReconnectAttempts int    // default 5
	BaseReconnectDelay   time.Duration

	Scheduler Scheduler
	Handler   Handler
	Logger    *slog.Logger

	// Dialer overrides the websocket dialer in tests.
	Dialer *websocket.Dialer
}

// WS is a realtime connector over a WebSocket. The remote side sends one
// JSON-encoded message per frame. Reconnects follow the same capped
// exponential backoff as the simulated connector.
type WS struct {
	cfg WSConfig

	mu             sync.Mutex
	status         Status
	attempts       int
	conn           *websocket.Conn
	reconnectTimer Timer
}

// NewWS creates a WebSocket connector.
func NewWS(cfg WSConfig) *WS {
	if cfg.Scheduler == nil {
		cfg.Scheduler = SystemScheduler()
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if cfg.BaseReconnectDelay <= 0 {
		cfg.BaseReconnectDelay = defaultBaseReconnectDelay
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &WS{cfg: cfg, status: StatusDisconnected}
}

// Status returns the current connectivity state.
func (w *WS) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Connect starts dialing. No-op while connecting or connected.
func (w *WS) Connect() {
	w.mu.Lock()
	if w.status == StatusConnected || w.status == StatusConnecting {
		w.mu.Unlock()
		return
	}
	notify := w.setStatusLocked(StatusConnecting)
	w.mu.Unlock()
	notify()

	go w.dial()
}

// Disconnect closes the connection, cancels any pending reconnect, and is
// idempotent.
func (w *WS) Disconnect() {
	w.mu.Lock()
	notify := w.setStatusLocked(StatusDisconnected)
	if w.reconnectTimer != nil {
		w.reconnectTimer.Stop()
		w.reconnectTimer = nil
	}
	conn := w.conn
	w.conn = nil
	w.attempts = 0
	w.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	notify()
}

func (w *WS) dial() {
	conn, _, err := w.cfg.Dialer.Dial(w.cfg.URL, nil)

	w.mu.Lock()
	if w.status != StatusConnecting {
		// Disconnected while dialing.
		w.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		notify := w.setStatusLocked(StatusError)
		terminal := w.scheduleReconnectLocked()
		w.mu.Unlock()
		notify()
		w.reportError(err)
		if terminal {
			w.reportError(ErrMaxReconnects)
		}
		return
	}

	w.conn = conn
	w.attempts = 0
	notify := w.setStatusLocked(StatusConnected)
	w.mu.Unlock()
	notify()

	go w.readLoop(conn)
}

func (w *WS) readLoop(conn *websocket.Conn) {
	for {
		var msg domain.Message
		if err := conn.ReadJSON(&msg); err != nil {
			w.mu.Lock()
			if w.status != StatusConnected || w.conn != conn {
				// Deliberate close or an already-superseded connection.
				w.mu.Unlock()
				return
			}
			w.conn = nil
			notify := w.setStatusLocked(StatusError)
			terminal := w.scheduleReconnectLocked()
			w.mu.Unlock()
			conn.Close()
			notify()
			w.reportError(err)
			if terminal {
				w.reportError(ErrMaxReconnects)
			}
			return
		}
		if w.cfg.Handler.OnMessage != nil {
			w.cfg.Handler.OnMessage(msg)
		}
	}
}

func (w *WS) scheduleReconnectLocked() (terminal bool) {
	if w.attempts >= w.cfg.MaxReconnectAttempts {
		return true
	}
	if w.reconnectTimer != nil {
		w.reconnectTimer.Stop()
	}
	delay := w.cfg.BaseReconnectDelay * (1 << w.attempts)
	w.attempts++
	w.cfg.Logger.Debug("websocket reconnect scheduled", "attempt", w.attempts, "delay", delay)
	w.reconnectTimer = w.cfg.Scheduler.AfterFunc(delay, w.Connect)
	return false
}

func (w *WS) setStatusLocked(st Status) func() {
	if w.status == st {
		return func() {}
	}
	w.status = st
	cb := w.cfg.Handler.OnStatus
	if cb == nil {
		return func() {}
	}
	return func() { cb(st) }
}

func (w *WS) reportError(err error) {
	w.cfg.Logger.Warn("websocket feed error", "url", w.cfg.URL, "err", err)
	if w.cfg.Handler.OnError != nil {
		w.cfg.Handler.OnError(err)
	}
}
