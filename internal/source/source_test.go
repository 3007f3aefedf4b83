package source

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"unibox/internal/domain"
)

func TestGenerator_MessageShape(t *testing.T) {
	gen := NewGenerator(42)

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		m := gen.Message()
		if m.ID == "" || seen[m.ID] {
			t.Fatalf("ids must be unique and non-empty, got %q", m.ID)
		}
		seen[m.ID] = true
		if m.Priority < 0 || m.Priority > 1 {
			t.Errorf("priority out of range: %v", m.Priority)
		}
		age := time.Since(m.Timestamp)
		if age < 0 || age > 7*24*time.Hour+time.Minute {
			t.Errorf("timestamp outside the last week: %v", m.Timestamp)
		}
		valid := false
		for _, s := range domain.Sources {
			if m.Source == s {
				valid = true
			}
		}
		if !valid {
			t.Errorf("unknown source %q", m.Source)
		}
	}
}

func TestSim_FetchBatchSize(t *testing.T) {
	gen := NewGenerator(7)
	src := NewSim(gen, 5, 8)
	src.delay = 0

	for i := 0; i < 10; i++ {
		batch, err := src.FetchMessages(context.Background())
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if len(batch) < 5 || len(batch) > 8 {
			t.Errorf("batch size %d outside [5,8]", len(batch))
		}
	}
}

func TestSim_FetchHonorsCancellation(t *testing.T) {
	src := NewSim(NewGenerator(7), 5, 8)
	src.delay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.FetchMessages(ctx); err == nil {
		t.Error("expected context error")
	}
}

func TestSimAPI_FailureInjection(t *testing.T) {
	gen := NewGenerator(3)

	always := NewSimAPI(gen, 1.0)
	always.delay = 0
	if err := always.MarkRead(context.Background(), "a"); err == nil {
		t.Error("failure rate 1.0 must reject")
	}

	never := NewSimAPI(gen, 0)
	never.delay = 0
	if err := never.Archive(context.Background(), "a"); err != nil {
		t.Errorf("failure rate 0 must succeed, got %v", err)
	}
}

func TestParseSlackTimestamp(t *testing.T) {
	ts, err := parseSlackTimestamp("1718000000.000200")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ts.Unix() != 1718000000 {
		t.Errorf("unexpected time %v", ts)
	}
	if _, err := parseSlackTimestamp("not-a-ts"); err == nil {
		t.Error("expected error for malformed timestamp")
	}
}

func TestSplitText(t *testing.T) {
	subject, preview := splitText("Deploy failed\nThe canary rollout hit an error budget violation.")
	if subject != "Deploy failed" {
		t.Errorf("unexpected subject %q", subject)
	}
	if preview != "The canary rollout hit an error budget violation." {
		t.Errorf("unexpected preview %q", preview)
	}

	subject, preview = splitText("single line")
	if subject != "single line" || preview != "single line" {
		t.Errorf("single-line split wrong: %q / %q", subject, preview)
	}
}

func TestTruncate_RuneSafe(t *testing.T) {
	long := strings.Repeat("héllo wörld ", 10) // 120 runes, multi-byte throughout
	got := truncate(long, 80)
	if utf8.RuneCountInString(got) != 80 {
		t.Errorf("expected 80 runes, got %d", utf8.RuneCountInString(got))
	}
	if !utf8.ValidString(got) {
		t.Error("truncation split a rune")
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("expected ellipsis suffix, got %q", got)
	}

	if got := truncate("short", 80); got != "short" {
		t.Errorf("short input must pass through, got %q", got)
	}
}

func TestSlackPriority_Bounds(t *testing.T) {
	if p := slackPriority("hello"); p != 0.4 {
		t.Errorf("baseline priority should be 0.4, got %v", p)
	}
	p := slackPriority("<!channel> URGENT: prod down, respond ASAP")
	if p < 0.89 || p > 0.91 {
		t.Errorf("boosted priority should be about 0.9, got %v", p)
	}
}
