// Package syncer keeps the message store consistent across its three
// input channels: the periodic bulk fetch, the realtime feed, and
// locally-initiated optimistic mutations.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"unibox/internal/bus"
	"unibox/internal/domain"
	"unibox/internal/merge"
	"unibox/internal/store"
)

// reconcileEvery throttles post-mutation background refreshes so a burst
// of user actions does not hammer the bulk source.
const reconcileEvery = 10 // seconds

// Refresher owns the bulk-fetch path. At most one refresh is in flight;
// starting another, or superseding before an optimistic write, cancels it
// and discards its result.
type Refresher struct {
	source  domain.BulkSource
	store   *store.Store
	events  *bus.Bus
	logger  *slog.Logger
	limiter *rate.Limiter

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc

	wg sync.WaitGroup
}

// NewRefresher creates a refresher reading from source into st.
func NewRefresher(source domain.BulkSource, st *store.Store, events *bus.Bus, logger *slog.Logger) *Refresher {
	return &Refresher{
		source:  source,
		store:   st,
		events:  events,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(1.0/reconcileEvery), 1),
	}
}

// Refresh fetches the full message set and merges it into the store. If
// the refresh is superseded while the fetch is in flight, the result is
// discarded and no error is returned: the newer writer owns the store.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.gen++
	gen := r.gen
	r.mu.Unlock()
	defer cancel()

	messages, err := r.source.FetchMessages(ctx)

	r.mu.Lock()
	current := r.gen == gen
	if current {
		r.cancel = nil
	}
	r.mu.Unlock()

	if !current {
		return nil
	}
	if err != nil {
		r.events.Emit(bus.Event{
			Type:    bus.EventRefreshFailed,
			Source:  "refresher",
			Payload: map[string]any{"source": r.source.Name(), "err": err.Error()},
		})
		return fmt.Errorf("bulk fetch from %s: %w", r.source.Name(), err)
	}

	r.store.SetAll(merge.Merge(r.store.All(), messages))
	return nil
}

// Supersede cancels any in-flight refresh so a stale result cannot
// overwrite a newer local write. Safe to call with nothing in flight.
func (r *Refresher) Supersede() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// Reconcile triggers a background refresh to pick up server-side effects
// of a settled mutation. Calls beyond the rate limit are dropped; the next
// periodic refresh covers them.
func (r *Refresher) Reconcile() {
	if !r.limiter.Allow() {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.Refresh(context.Background()); err != nil {
			r.logger.Warn("background reconcile failed", "err", err)
		}
	}()
}

// Wait blocks until background reconciles have finished.
func (r *Refresher) Wait() {
	r.wg.Wait()
}
