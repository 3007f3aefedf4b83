package bus

import (
	"log/slog"
	"os"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestBus_EmitAndReceive(t *testing.T) {
	b := New(testLogger())

	var got []Event
	b.On(EventMessageMerged, func(e Event) { got = append(got, e) })

	b.Emit(Event{Type: EventMessageMerged, Payload: map[string]any{"id": "m1"}})
	b.Emit(Event{Type: EventFeedStatus})

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Payload["id"] != "m1" {
		t.Errorf("unexpected payload: %v", got[0].Payload)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("timestamp should be auto-set")
	}
}

func TestBus_Wildcard(t *testing.T) {
	b := New(testLogger())

	count := 0
	b.On("*", func(e Event) { count++ })

	b.Emit(Event{Type: EventMessageMerged})
	b.Emit(Event{Type: EventMutationRollback})

	if count != 2 {
		t.Errorf("expected 2, got %d", count)
	}
}

func TestBus_Off(t *testing.T) {
	b := New(testLogger())

	count := 0
	id := b.On(EventPersistError, func(e Event) { count++ })

	b.Emit(Event{Type: EventPersistError})
	b.Off(EventPersistError, id)
	b.Emit(Event{Type: EventPersistError})

	if count != 1 {
		t.Errorf("expected 1 after unsubscribe, got %d", count)
	}
}

func TestBus_IDsNotReusedAfterOff(t *testing.T) {
	b := New(testLogger())

	first, second := 0, 0
	idA := b.On(EventFeedStatus, func(e Event) {})
	b.On(EventFeedStatus, func(e Event) { first++ })

	b.Off(EventFeedStatus, idA)
	idC := b.On(EventFeedStatus, func(e Event) { second++ })

	// Removing the newest registration must not take out the survivor.
	b.Off(EventFeedStatus, idC)
	b.Emit(Event{Type: EventFeedStatus})

	if first != 1 {
		t.Errorf("surviving handler should still fire, got %d", first)
	}
	if second != 0 {
		t.Errorf("removed handler must not fire, got %d", second)
	}
}

func TestBus_PanicRecovery(t *testing.T) {
	b := New(testLogger())

	b.On(EventRefreshFailed, func(e Event) { panic("observer bug") })

	delivered := false
	b.On(EventRefreshFailed, func(e Event) { delivered = true })

	// Must not panic the caller, and later handlers still run.
	b.Emit(Event{Type: EventRefreshFailed})
	if !delivered {
		t.Error("second handler should still run after a panic in the first")
	}
}
