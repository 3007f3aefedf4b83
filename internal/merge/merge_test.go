package merge

import (
	"reflect"
	"testing"
	"time"

	"unibox/internal/domain"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func msg(id string, ts time.Time) domain.Message {
	return domain.Message{
		ID:        id,
		Source:    domain.SourceEmail,
		Sender:    "Jane Doe",
		Subject:   "Q4 Planning",
		Timestamp: ts,
		Priority:  0.5,
	}
}

func ids(messages []domain.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.ID
	}
	return out
}

func TestDeduplicate_UniqueIDs(t *testing.T) {
	in := []domain.Message{
		msg("a", base),
		msg("b", base.Add(time.Minute)),
		msg("a", base.Add(2*time.Minute)),
		msg("c", base),
		msg("b", base.Add(-time.Minute)),
	}

	out := Deduplicate(in)

	seen := map[string]bool{}
	for _, m := range out {
		if seen[m.ID] {
			t.Fatalf("duplicate id %q in output", m.ID)
		}
		seen[m.ID] = true
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 distinct messages, got %d", len(out))
	}
}

func TestDeduplicate_LatestTimestampWins(t *testing.T) {
	older := msg("a", base)
	newer := msg("a", base.Add(time.Hour))
	newer.Subject = "updated"

	out := Deduplicate([]domain.Message{newer, older})
	if len(out) != 1 {
		t.Fatalf("expected 1 message, got %d", len(out))
	}
	if out[0].Subject != "updated" {
		t.Errorf("expected newest record to survive, got %q", out[0].Subject)
	}

	// Same pair, other input order.
	out = Deduplicate([]domain.Message{older, newer})
	if out[0].Subject != "updated" {
		t.Errorf("expected newest record to survive regardless of order, got %q", out[0].Subject)
	}
}

func TestDeduplicate_EqualTimestampLastWins(t *testing.T) {
	first := msg("a", base)
	first.Subject = "first"
	second := msg("a", base)
	second.Subject = "second"

	out := Deduplicate([]domain.Message{first, second})
	if out[0].Subject != "second" {
		t.Errorf("expected later input record to win the tie, got %q", out[0].Subject)
	}
}

func TestDeduplicate_FirstAppearanceOrder(t *testing.T) {
	in := []domain.Message{
		msg("a", base),
		msg("b", base),
		msg("c", base),
		// Newer version of "a" arrives last; it must replace the record
		// in place, not move it to the back.
		msg("a", base.Add(time.Hour)),
	}

	out := Deduplicate(in)
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(ids(out), want) {
		t.Errorf("expected order %v, got %v", want, ids(out))
	}
	if !out[0].Timestamp.Equal(base.Add(time.Hour)) {
		t.Error("surviving record should be the newer version")
	}
}

func TestDeduplicate_Empty(t *testing.T) {
	if out := Deduplicate(nil); len(out) != 0 {
		t.Errorf("expected empty output, got %d messages", len(out))
	}
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	existing := []domain.Message{msg("a", base), msg("b", base)}
	incoming := []domain.Message{msg("a", base.Add(time.Hour))}

	existingCopy := append([]domain.Message(nil), existing...)
	incomingCopy := append([]domain.Message(nil), incoming...)

	Merge(existing, incoming)

	if !reflect.DeepEqual(existing, existingCopy) {
		t.Error("existing slice was mutated")
	}
	if !reflect.DeepEqual(incoming, incomingCopy) {
		t.Error("incoming slice was mutated")
	}
}

func TestMerge_Idempotent(t *testing.T) {
	existing := []domain.Message{msg("a", base), msg("b", base.Add(time.Minute))}
	incoming := []domain.Message{msg("a", base.Add(time.Hour)), msg("c", base)}

	once := Merge(existing, incoming)
	twice := Merge(once, incoming)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("merge not idempotent:\nonce:  %v\ntwice: %v", ids(once), ids(twice))
	}
}

func TestMerge_NewerSideWinsEitherWay(t *testing.T) {
	older := msg("a", base)
	newer := msg("a", base.Add(time.Hour))

	left := Merge([]domain.Message{older}, []domain.Message{newer})
	right := Merge([]domain.Message{newer}, []domain.Message{older})

	if len(left) != 1 || len(right) != 1 {
		t.Fatalf("expected single record on both sides, got %d and %d", len(left), len(right))
	}
	if !left[0].Timestamp.Equal(newer.Timestamp) || !right[0].Timestamp.Equal(newer.Timestamp) {
		t.Error("newer version must survive no matter which side carries it")
	}
}
