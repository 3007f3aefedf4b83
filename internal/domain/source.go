package domain

import "context"

// BulkSource delivers the current full message set on demand. It has no
// ordering relationship to the realtime feed; results from both paths go
// through deduplication before reaching the store.
type BulkSource interface {
	Name() string
	FetchMessages(ctx context.Context) ([]Message, error)
}

// MutationAPI is the remote acknowledgment endpoint for locally-initiated
// mutations. Each call resolves or fails with no payload; a failure only
// drives the caller's rollback decision.
type MutationAPI interface {
	MarkRead(ctx context.Context, id string) error
	Archive(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// BlobStore is an opaque durable key-value store. Get returns nil for an
// absent key. The engine serializes each logical store (messages, filters,
// theme) as a single blob under a fixed key.
type BlobStore interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Remove(key string) error
}
