package syncer

import (
	"context"
	"log/slog"
	"sync"

	"unibox/internal/bus"
	"unibox/internal/domain"
	"unibox/internal/store"
)

// Coordinator applies read/archive/delete mutations optimistically: the
// local store changes immediately, the remote call settles in the
// background, and a remote failure reverses the local change exactly.
// The rollback context is captured when the mutation is issued, so racing
// mutations on the same message cannot corrupt each other's rollback data.
type Coordinator struct {
	store     *store.Store
	api       domain.MutationAPI
	refresher *Refresher
	events    *bus.Bus
	logger    *slog.Logger

	wg sync.WaitGroup
}

// NewCoordinator creates a mutation coordinator.
func NewCoordinator(st *store.Store, api domain.MutationAPI, refresher *Refresher, events *bus.Bus, logger *slog.Logger) *Coordinator {
	return &Coordinator{store: st, api: api, refresher: refresher, events: events, logger: logger}
}

// MarkRead marks the message read locally and issues the remote call.
// Unknown ids are ignored.
func (c *Coordinator) MarkRead(ctx context.Context, id string) {
	msg, ok := c.store.Get(id)
	if !ok {
		return
	}
	wasRead := msg.IsRead

	c.refresher.Supersede()
	c.store.MarkRead(id)

	c.settle(ctx, "mark-read", id,
		func(ctx context.Context) error { return c.api.MarkRead(ctx, id) },
		func() {
			if !wasRead {
				c.store.MarkUnread(id)
			}
		})
}

// Archive removes the message locally and issues the remote call; on
// failure the captured record is re-inserted.
func (c *Coordinator) Archive(ctx context.Context, id string) {
	msg, ok := c.store.Get(id)
	if !ok {
		return
	}

	c.refresher.Supersede()
	c.store.Remove(id)

	c.settle(ctx, "archive", id,
		func(ctx context.Context) error { return c.api.Archive(ctx, id) },
		func() { c.store.InsertFront(msg) })
}

// Delete removes the message locally and issues the remote call; on
// failure the captured record is re-inserted.
func (c *Coordinator) Delete(ctx context.Context, id string) {
	msg, ok := c.store.Get(id)
	if !ok {
		return
	}

	c.refresher.Supersede()
	c.store.Remove(id)

	c.settle(ctx, "delete", id,
		func(ctx context.Context) error { return c.api.Delete(ctx, id) },
		func() { c.store.InsertFront(msg) })
}

// settle runs the remote call in the background. Failure rolls the local
// change back; success needs no further action. Either way a background
// reconcile follows, picking up server-side effects the optimistic write
// could not know about.
//
// Settlement outlives the caller: an HTTP request context ends as soon as
// the optimistic write is acknowledged, and a remote call on it would be
// cancelled mid-flight and rolled back every time.
func (c *Coordinator) settle(ctx context.Context, op, id string, remote func(context.Context) error, rollback func()) {
	ctx = context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := remote(ctx); err != nil {
			c.logger.Warn("remote mutation rejected, rolling back", "op", op, "id", id, "err", err)
			rollback()
			c.events.Emit(bus.Event{
				Type:    bus.EventMutationRollback,
				Source:  "coordinator",
				Payload: map[string]any{"op": op, "id": id, "err": err.Error()},
			})
		}
		c.refresher.Reconcile()
	}()
}

// Wait blocks until all in-flight mutations have settled.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}
