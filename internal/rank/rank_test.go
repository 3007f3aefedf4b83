package rank

import (
	"reflect"
	"testing"
	"time"

	"unibox/internal/domain"
)

var now = time.Date(2025, 6, 8, 9, 0, 0, 0, time.UTC)

func msg(id string, priority float64, ts time.Time) domain.Message {
	return domain.Message{ID: id, Source: domain.SourceSlack, Priority: priority, Timestamp: ts}
}

func ids(messages []domain.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.ID
	}
	return out
}

func TestRankAt_DoesNotMutateInput(t *testing.T) {
	in := []domain.Message{
		msg("low", 0.1, now.Add(-time.Hour)),
		msg("high", 0.9, now.Add(-2*time.Hour)),
	}
	before := append([]domain.Message(nil), in...)

	for _, mode := range []Mode{ModePriority, ModeTime, ModeBoth} {
		RankAt(in, mode, now)
		if !reflect.DeepEqual(in, before) {
			t.Fatalf("mode %s mutated its input", mode)
		}
	}
}

func TestRankAt_PriorityMode(t *testing.T) {
	in := []domain.Message{
		msg("a", 0.3, now.Add(-time.Hour)),
		msg("b", 0.9, now.Add(-3*time.Hour)),
		msg("c", 0.5, now.Add(-2*time.Hour)),
	}

	out := RankAt(in, ModePriority, now)
	want := []string{"b", "c", "a"}
	if !reflect.DeepEqual(ids(out), want) {
		t.Errorf("expected %v, got %v", want, ids(out))
	}
}

func TestRankAt_PriorityMode_TimestampTiebreak(t *testing.T) {
	in := []domain.Message{
		msg("older", 0.5, now.Add(-2*time.Hour)),
		msg("newer", 0.5, now.Add(-time.Hour)),
	}

	out := RankAt(in, ModePriority, now)
	if out[0].ID != "newer" {
		t.Errorf("equal priority should break ties by recency, got %v", ids(out))
	}
}

func TestRankAt_TimeMode(t *testing.T) {
	in := []domain.Message{
		msg("mid", 0.9, now.Add(-2*time.Hour)),
		msg("new", 0.1, now.Add(-time.Minute)),
		msg("old", 0.9, now.Add(-48*time.Hour)),
	}

	out := RankAt(in, ModeTime, now)
	want := []string{"new", "mid", "old"}
	if !reflect.DeepEqual(ids(out), want) {
		t.Errorf("expected %v, got %v", want, ids(out))
	}
}

func TestRankAt_BothMode_PriorityOutweighsRecency(t *testing.T) {
	// A: high priority, one day old. B: low priority, one hour old.
	a := msg("a", 0.9, now.Add(-24*time.Hour))
	b := msg("b", 0.3, now.Add(-time.Hour))

	out := RankAt([]domain.Message{b, a}, ModeBoth, now)
	if out[0].ID != "a" {
		t.Errorf("high priority should win despite being older, got %v", ids(out))
	}
}

func TestRankAt_BothMode_StaleMessageLoses(t *testing.T) {
	stale := msg("stale", 0.6, now.Add(-8*24*time.Hour))
	fresh := msg("fresh", 0.6, now.Add(-time.Hour))

	if r := Recency(stale, now); r != 0 {
		t.Fatalf("message beyond the 7-day horizon must have recency 0, got %v", r)
	}
	out := RankAt([]domain.Message{stale, fresh}, ModeBoth, now)
	if out[0].ID != "fresh" {
		t.Errorf("equal priority: recent message should rank first, got %v", ids(out))
	}
}

func TestRankAt_EmptyAndSingle(t *testing.T) {
	for _, mode := range []Mode{ModePriority, ModeTime, ModeBoth} {
		if out := RankAt(nil, mode, now); len(out) != 0 {
			t.Errorf("mode %s: expected empty output", mode)
		}
		single := []domain.Message{msg("only", 0.4, now)}
		out := RankAt(single, mode, now)
		if len(out) != 1 || out[0].ID != "only" {
			t.Errorf("mode %s: expected the single message back, got %v", mode, ids(out))
		}
	}
}

func TestRecency_Bounds(t *testing.T) {
	if r := Recency(msg("future", 0.5, now.Add(time.Hour)), now); r != 1 {
		t.Errorf("future timestamp should score 1, got %v", r)
	}
	r := Recency(msg("half", 0.5, now.Add(-recencyHorizon/2)), now)
	if r < 0.49 || r > 0.51 {
		t.Errorf("half-horizon age should score about 0.5, got %v", r)
	}
}

func TestClampPriority(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-0.5, 0}, {0, 0}, {0.42, 0.42}, {1, 1}, {3.7, 1},
	}
	for _, c := range cases {
		if got := ClampPriority(c.in); got != c.want {
			t.Errorf("ClampPriority(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestRankAt_ClampsOutOfRangePriority(t *testing.T) {
	// An out-of-range priority must not outrank a legitimate 1.0.
	in := []domain.Message{
		msg("broken", 9.9, now.Add(-2*time.Hour)),
		msg("top", 1.0, now.Add(-time.Hour)),
	}
	out := RankAt(in, ModePriority, now)
	if out[0].ID != "top" {
		t.Errorf("clamped priorities tie at 1.0, newest should win: got %v", ids(out))
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeBoth {
		t.Errorf("empty mode should default to both, got %v, %v", m, err)
	}
	if _, err := ParseMode("bogus"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
