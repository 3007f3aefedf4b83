// Package feed delivers a live best-effort stream of newly-arrived
// messages and connectivity transitions to the sync engine. Connectors
// share one status state machine and capped exponential backoff; the
// transport behind them (simulated or WebSocket) is interchangeable
// without touching merge or store logic.
package feed

import (
	"errors"
	"time"

	"unibox/internal/domain"
)

// Status is the connector's connectivity state.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// Handler receives connector callbacks. OnStatus fires exactly once per
// actual state transition; a transition into the current state is never
// reported. All fields are optional.
type Handler struct {
	OnMessage func(domain.Message)
	OnStatus  func(Status)
	OnError   func(error)
}

// Connector is the realtime feed boundary.
type Connector interface {
	Connect()
	Disconnect()
	Status() Status
}

var (
	// ErrConnectFailed reports a failed connection attempt; a reconnect is
	// scheduled unless the attempt budget is exhausted.
	ErrConnectFailed = errors.New("feed: connection failed")
	// ErrMaxReconnects reports that the retry budget is exhausted and the
	// connector has stopped. The store stays usable with the data it has.
	ErrMaxReconnects = errors.New("feed: max reconnection attempts reached")
)

// Reconnect policy defaults shared by connectors.
const (
	defaultMaxReconnectAttempts = 5
	defaultBaseReconnectDelay   = time.Second
)
