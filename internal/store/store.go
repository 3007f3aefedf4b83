// Package store holds the canonical in-memory message collection plus the
// persisted filter and theme preferences. The message store is the single
// source of truth: every component reads and writes through its operation
// set, and each mutation is persisted write-behind to the durable blob
// store without ever failing the caller.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"unibox/internal/domain"
	"unibox/internal/merge"
)

// MessagesKey is the blob key the message collection is persisted under.
const MessagesKey = "message-storage"

// Patch is a partial update applied to a single record. Nil fields are
// left untouched.
type Patch struct {
	IsRead   *bool
	IsUrgent *bool
	Priority *float64
	Preview  *string
}

// Store is the sole writable holder of the current message collection.
// All operations are safe for concurrent use and leave the collection
// with exactly one record per ID.
type Store struct {
	mu       sync.RWMutex
	messages []domain.Message
	seq      uint64 // snapshot sequence, guards write-behind ordering

	blobs  domain.BlobStore // nil disables persistence
	logger *slog.Logger

	persistMu    sync.Mutex
	lastPersist  uint64
	pending      sync.WaitGroup
	onPersistErr func(error)
}

// New creates an empty store. blobs may be nil for a purely in-memory
// store (tests, dry runs).
func New(blobs domain.BlobStore, logger *slog.Logger) *Store {
	return &Store{blobs: blobs, logger: logger}
}

// OnPersistError registers a callback invoked when a write-behind persist
// fails. Must be called before the store is shared.
func (s *Store) OnPersistError(fn func(error)) {
	s.onPersistErr = fn
}

// Load rehydrates the collection from durable storage. An absent blob
// leaves the store empty; a corrupt blob is reported so the caller can
// decide whether to proceed with an empty session.
func (s *Store) Load() error {
	if s.blobs == nil {
		return nil
	}
	data, err := s.blobs.Get(MessagesKey)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	if data == nil {
		return nil
	}
	var messages []domain.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return fmt.Errorf("decode messages: %w", err)
	}
	s.mu.Lock()
	s.messages = merge.Deduplicate(messages)
	s.mu.Unlock()
	return nil
}

// All returns a copy of the current collection.
func (s *Store) All() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Get returns the record matching id.
func (s *Store) Get(id string) (domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Message{}, false
}

// Has reports whether a record with the given id exists.
func (s *Store) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Len returns the number of live records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Unread returns the number of unread records.
func (s *Store) Unread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.messages {
		if !m.IsRead {
			n++
		}
	}
	return n
}

// SetAll replaces the entire collection. Input duplicates are resolved by
// recency before the collection is stored.
func (s *Store) SetAll(messages []domain.Message) {
	s.mu.Lock()
	s.messages = merge.Deduplicate(messages)
	s.persistLocked()
	s.mu.Unlock()
}

// InsertFront adds one message at the head, so a freshly streamed message
// is visually first before ranking. Inserting an existing ID resolves to a
// single record chosen by recency.
func (s *Store) InsertFront(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.messages {
		if m.ID == msg.ID {
			if !msg.Timestamp.Before(m.Timestamp) {
				s.messages[i] = msg
				s.persistLocked()
			}
			return
		}
	}
	s.messages = append([]domain.Message{msg}, s.messages...)
	s.persistLocked()
}

// Patch applies a partial update to the record matching id. Absent id is a
// no-op, not an error.
func (s *Store) Patch(id string, p Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID != id {
			continue
		}
		if p.IsRead != nil {
			s.messages[i].IsRead = *p.IsRead
		}
		if p.IsUrgent != nil {
			s.messages[i].IsUrgent = *p.IsUrgent
		}
		if p.Priority != nil {
			s.messages[i].Priority = *p.Priority
		}
		if p.Preview != nil {
			s.messages[i].Preview = *p.Preview
		}
		s.persistLocked()
		return
	}
}

// Remove deletes the record matching id. Absent id is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			s.persistLocked()
			return
		}
	}
}

// MarkRead marks the record matching id as read.
func (s *Store) MarkRead(id string) {
	read := true
	s.Patch(id, Patch{IsRead: &read})
}

// MarkUnread marks the record matching id as unread.
func (s *Store) MarkUnread(id string) {
	read := false
	s.Patch(id, Patch{IsRead: &read})
}

// Clear empties the collection.
func (s *Store) Clear() {
	s.mu.Lock()
	s.messages = nil
	s.persistLocked()
	s.mu.Unlock()
}

// Flush blocks until all pending write-behind persists have settled.
func (s *Store) Flush() {
	s.pending.Wait()
}

// persistLocked snapshots the collection and schedules a background write.
// Stale snapshots are skipped by sequence so an older write can never
// clobber a newer one. Failures are logged and reported, never returned
// into the mutating call path.
func (s *Store) persistLocked() {
	if s.blobs == nil {
		return
	}
	s.seq++
	seq := s.seq
	snapshot := make([]domain.Message, len(s.messages))
	copy(snapshot, s.messages)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		data, err := json.Marshal(snapshot)
		if err != nil {
			s.reportPersistError(fmt.Errorf("encode messages: %w", err))
			return
		}

		s.persistMu.Lock()
		defer s.persistMu.Unlock()
		if seq <= s.lastPersist {
			return // a newer snapshot already landed
		}
		if err := s.blobs.Set(MessagesKey, data); err != nil {
			s.reportPersistError(fmt.Errorf("persist messages: %w", err))
			return
		}
		s.lastPersist = seq
	}()
}

func (s *Store) reportPersistError(err error) {
	s.logger.Warn("message persistence failed, in-memory store stays authoritative", "err", err)
	if s.onPersistErr != nil {
		s.onPersistErr(err)
	}
}
