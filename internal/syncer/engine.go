package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"unibox/internal/bus"
	"unibox/internal/domain"
	"unibox/internal/feed"
	"unibox/internal/store"
)

// Engine routes realtime arrivals into the store and drives the periodic
// bulk refresh. A streamed message already present in the store is dropped
// silently instead of re-inserted.
type Engine struct {
	store     *store.Store
	refresher *Refresher
	events    *bus.Bus
	logger    *slog.Logger

	mu         sync.Mutex
	feedStatus feed.Status
}

// NewEngine creates the sync engine.
func NewEngine(st *store.Store, refresher *Refresher, events *bus.Bus, logger *slog.Logger) *Engine {
	return &Engine{
		store:      st,
		refresher:  refresher,
		events:     events,
		logger:     logger,
		feedStatus: feed.StatusDisconnected,
	}
}

// FeedHandler returns the callbacks a feed connector should be built with.
func (e *Engine) FeedHandler() feed.Handler {
	return feed.Handler{
		OnMessage: e.handleArrival,
		OnStatus:  e.handleFeedStatus,
		OnError:   e.handleFeedError,
	}
}

// FeedStatus returns the last observed feed connectivity state.
func (e *Engine) FeedStatus() feed.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feedStatus
}

// Run performs an initial refresh and then refreshes on every interval
// tick until ctx is cancelled. Refresh failures are absorbed: the store
// stays usable with whatever data it has.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	if err := e.refresher.Refresh(ctx); err != nil {
		e.logger.Warn("initial refresh failed", "err", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.refresher.Refresh(ctx); err != nil {
				e.logger.Warn("periodic refresh failed", "err", err)
			}
		}
	}
}

func (e *Engine) handleArrival(msg domain.Message) {
	if e.store.Has(msg.ID) {
		e.events.Emit(bus.Event{
			Type:    bus.EventDuplicateDropped,
			Source:  "engine",
			Payload: map[string]any{"id": msg.ID},
		})
		return
	}
	e.store.InsertFront(msg)
	e.events.Emit(bus.Event{
		Type:    bus.EventMessageMerged,
		Source:  "engine",
		Payload: map[string]any{"message": msg},
	})
}

func (e *Engine) handleFeedStatus(st feed.Status) {
	e.mu.Lock()
	e.feedStatus = st
	e.mu.Unlock()
	e.logger.Info("feed status changed", "status", st)
	e.events.Emit(bus.Event{
		Type:    bus.EventFeedStatus,
		Source:  "engine",
		Payload: map[string]any{"status": string(st)},
	})
}

func (e *Engine) handleFeedError(err error) {
	e.logger.Warn("feed error", "err", err)
}
