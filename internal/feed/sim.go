package feed

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"unibox/internal/domain"
)

// Simulated delivery cadence: the first message after a connect lands
// quickly so the user sees a live inbox, later ones arrive at a steadier
// pace.
const (
	simConnectDelay   = 500 * time.Millisecond
	firstArrivalMin   = 1 * time.Second
	firstArrivalSpan  = 1 * time.Second
	steadyArrivalMin  = 3 * time.Second
	steadyArrivalSpan = 5 * time.Second
)

// SimConfig configures the simulated connector.
type SimConfig struct {
	// Generate produces the next arriving message. Required.
	Generate func() domain.Message
	// FailureRate is the probability in [0,1] that a connection attempt
	// fails. Zero disables failure injection; negative values select the
	// default of 0.1.
	FailureRate float64
	// MaxReconnectAttempts caps scheduled reconnects before the connector
	// gives up with a terminal error status. Default 5.
	MaxReconnectAttempts int
	// BaseReconnectDelay is the backoff base; attempt n waits
	// base * 2^n. Default 1s.
	BaseReconnectDelay time.Duration
	// ConnectDelay simulates connection establishment. Default 500ms.
	ConnectDelay time.Duration

	Scheduler Scheduler
	Handler   Handler
	Logger    *slog.Logger

	// Rand overrides the randomness source (failure injection and arrival
	// jitter) in tests.
	Rand func() float64
}

// Sim is a simulated realtime connector. It exercises the full state
// machine of a reconnecting streaming client without a network: connect
// delay, injected connection failures, capped exponential backoff, and
// randomized message arrivals.
type Sim struct {
	cfg SimConfig

	mu           sync.Mutex
	status       Status
	attempts     int
	firstArrival bool

	connectTimer   Timer
	messageTimer   Timer
	reconnectTimer Timer
}

// NewSim creates a simulated connector. Zero-valued config fields get
// defaults; Generate must be set.
func NewSim(cfg SimConfig) *Sim {
	if cfg.Scheduler == nil {
		cfg.Scheduler = SystemScheduler()
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if cfg.BaseReconnectDelay <= 0 {
		cfg.BaseReconnectDelay = defaultBaseReconnectDelay
	}
	if cfg.ConnectDelay <= 0 {
		cfg.ConnectDelay = simConnectDelay
	}
	if cfg.FailureRate < 0 {
		cfg.FailureRate = 0.1
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Float64
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Sim{cfg: cfg, status: StatusDisconnected}
}

// Status returns the current connectivity state.
func (s *Sim) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Connect starts a connection attempt. It is a no-op while already
// connecting or connected.
func (s *Sim) Connect() {
	s.mu.Lock()
	if s.status == StatusConnected || s.status == StatusConnecting {
		s.mu.Unlock()
		return
	}
	notify := s.setStatusLocked(StatusConnecting)
	s.connectTimer = s.cfg.Scheduler.AfterFunc(s.cfg.ConnectDelay, s.finishConnect)
	s.mu.Unlock()
	notify()
}

// Disconnect cancels every pending timer and transitions to disconnected.
// It is idempotent; no previously scheduled timer fires afterward.
func (s *Sim) Disconnect() {
	s.mu.Lock()
	notify := s.setStatusLocked(StatusDisconnected)
	s.stopTimersLocked()
	s.attempts = 0
	s.mu.Unlock()
	notify()
}

func (s *Sim) finishConnect() {
	s.mu.Lock()
	if s.status != StatusConnecting {
		// Disconnected while the attempt was in flight.
		s.mu.Unlock()
		return
	}

	if s.cfg.Rand() < s.cfg.FailureRate {
		notify := s.setStatusLocked(StatusError)
		terminal := s.scheduleReconnectLocked()
		s.mu.Unlock()
		notify()
		s.reportError(ErrConnectFailed)
		if terminal {
			s.reportError(ErrMaxReconnects)
		}
		return
	}

	notify := s.setStatusLocked(StatusConnected)
	s.attempts = 0
	s.firstArrival = true
	s.scheduleNextArrivalLocked()
	s.mu.Unlock()
	notify()
}

func (s *Sim) deliver() {
	s.mu.Lock()
	if s.status != StatusConnected {
		s.mu.Unlock()
		return
	}
	msg := s.cfg.Generate()
	s.scheduleNextArrivalLocked()
	s.mu.Unlock()

	if s.cfg.Handler.OnMessage != nil {
		s.cfg.Handler.OnMessage(msg)
	}
}

func (s *Sim) scheduleNextArrivalLocked() {
	var delay time.Duration
	if s.firstArrival {
		s.firstArrival = false
		delay = firstArrivalMin + time.Duration(s.cfg.Rand()*float64(firstArrivalSpan))
	} else {
		delay = steadyArrivalMin + time.Duration(s.cfg.Rand()*float64(steadyArrivalSpan))
	}
	s.messageTimer = s.cfg.Scheduler.AfterFunc(delay, s.deliver)
}

// scheduleReconnectLocked arms the backoff timer for the next attempt and
// reports whether the retry budget is exhausted instead.
func (s *Sim) scheduleReconnectLocked() (terminal bool) {
	if s.attempts >= s.cfg.MaxReconnectAttempts {
		return true
	}
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
	}
	delay := s.cfg.BaseReconnectDelay * (1 << s.attempts)
	s.attempts++
	s.cfg.Logger.Debug("feed reconnect scheduled", "attempt", s.attempts, "delay", delay)
	s.reconnectTimer = s.cfg.Scheduler.AfterFunc(delay, s.Connect)
	return false
}

func (s *Sim) stopTimersLocked() {
	for _, t := range []Timer{s.connectTimer, s.messageTimer, s.reconnectTimer} {
		if t != nil {
			t.Stop()
		}
	}
	s.connectTimer, s.messageTimer, s.reconnectTimer = nil, nil, nil
}

// setStatusLocked records a transition and returns the notification to run
// after the lock is released. Re-entering the current state notifies
// nothing.
func (s *Sim) setStatusLocked(st Status) func() {
	if s.status == st {
		return func() {}
	}
	s.status = st
	cb := s.cfg.Handler.OnStatus
	if cb == nil {
		return func() {}
	}
	return func() { cb(st) }
}

func (s *Sim) reportError(err error) {
	s.cfg.Logger.Warn("feed error", "err", err)
	if s.cfg.Handler.OnError != nil {
		s.cfg.Handler.OnError(err)
	}
}
