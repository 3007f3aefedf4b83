// Package source provides BulkSource implementations: a simulated
// generator for development and demos, and a Slack adapter reading real
// channel history.
package source

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"unibox/internal/domain"

	"github.com/google/uuid"
)

var senders = []string{
	"Jane Doe", "John Smith", "Sarah Johnson", "Mike Chen", "Emily Davis",
	"David Wilson", "Lisa Anderson", "Robert Taylor", "Jennifer Brown", "Michael Martinez",
}

var subjects = []string{
	"Q4 Planning", "Meeting Notes", "Quick question", "Project Update", "Team Sync",
	"Action Items", "Follow-up Required", "Important Announcement", "Weekly Report",
	"Urgent: Please Review", "New Feature Proposal", "Budget Discussion",
	"Client Feedback", "Deadline Reminder", "Status Update",
}

var previews = []string{
	"Hey, can we sync on the Q4 roadmap? I have some ideas about the new features we discussed.",
	"Here are the notes from yesterday's meeting. Please review and let me know if you have any questions.",
	"Are you available for a quick call this afternoon?",
	"I noticed we have mutual connections and would love to connect.",
	"The project is progressing well. Here's the latest update on our milestones.",
	"Could you please review the attached document and provide feedback?",
	"We need to discuss the upcoming deadline and resource allocation.",
	"Great work on the recent deliverables! Let's schedule a celebration.",
	"I have a few questions about the implementation approach.",
	"The client has requested some changes. Let's discuss how to proceed.",
	"Here's the weekly summary of our team's accomplishments.",
	"We're running into some technical challenges. Need your input.",
	"The budget proposal has been approved. Next steps outlined below.",
	"Reminder: The deadline for submissions is approaching.",
	"New feature request from stakeholders. Let's prioritize this.",
}

// Generator produces synthetic messages with a realistic shape: timestamps
// within the last week, priorities skewed toward the low end with an
// occasional high-priority burst, and a sprinkle of urgent/VIP flags.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewGenerator creates a generator seeded from seed (pass 0 for a
// time-based seed).
func NewGenerator(seed uint64) *Generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now: time.Now,
	}
}

// Message generates one message.
func (g *Generator) Message() domain.Message {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	age := time.Duration(g.rng.Float64() * float64(7*24*time.Hour))

	var priority float64
	if g.rng.Float64() < 0.3 {
		priority = 0.6 + g.rng.Float64()*0.4 // occasional high priority
	} else {
		priority = g.rng.Float64() * 0.6
	}

	return domain.Message{
		ID:        "msg_" + uuid.NewString(),
		Source:    domain.Sources[g.rng.IntN(len(domain.Sources))],
		Sender:    senders[g.rng.IntN(len(senders))],
		Subject:   subjects[g.rng.IntN(len(subjects))],
		Preview:   previews[g.rng.IntN(len(previews))],
		Timestamp: now.Add(-age),
		Priority:  float64(int(priority*100)) / 100,
		IsRead:    g.rng.Float64() < 0.6,
		IsUrgent:  g.rng.Float64() < 0.2,
		SenderVIP: g.rng.Float64() < 0.15,
	}
}

// Sim is a BulkSource that fabricates a batch of messages per fetch,
// standing in for the backend during development.
type Sim struct {
	gen      *Generator
	delay    time.Duration
	minBatch int
	maxBatch int
}

// NewSim creates a simulated bulk source producing between minBatch and
// maxBatch messages per fetch after a short simulated network delay.
func NewSim(gen *Generator, minBatch, maxBatch int) *Sim {
	if minBatch <= 0 {
		minBatch = 10
	}
	if maxBatch < minBatch {
		maxBatch = minBatch + 40
	}
	return &Sim{gen: gen, delay: 500 * time.Millisecond, minBatch: minBatch, maxBatch: maxBatch}
}

func (s *Sim) Name() string { return "sim" }

// FetchMessages generates a fresh batch, honoring ctx cancellation during
// the simulated delay.
func (s *Sim) FetchMessages(ctx context.Context) ([]domain.Message, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}

	s.gen.mu.Lock()
	n := s.minBatch + s.gen.rng.IntN(s.maxBatch-s.minBatch+1)
	s.gen.mu.Unlock()

	out := make([]domain.Message, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s.gen.Message())
	}
	return out, nil
}

// SimAPI is a MutationAPI that acknowledges after a short delay and fails
// a configurable fraction of calls, for exercising rollback paths.
type SimAPI struct {
	gen         *Generator
	delay       time.Duration
	failureRate float64
}

// NewSimAPI creates a simulated remote mutation endpoint.
func NewSimAPI(gen *Generator, failureRate float64) *SimAPI {
	return &SimAPI{gen: gen, delay: 200 * time.Millisecond, failureRate: failureRate}
}

func (a *SimAPI) call(ctx context.Context, op string) error {
	if a.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.delay):
		}
	}
	a.gen.mu.Lock()
	fail := a.gen.rng.Float64() < a.failureRate
	a.gen.mu.Unlock()
	if fail {
		return &RejectedError{Op: op}
	}
	return nil
}

func (a *SimAPI) MarkRead(ctx context.Context, id string) error { return a.call(ctx, "mark-read") }
func (a *SimAPI) Archive(ctx context.Context, id string) error  { return a.call(ctx, "archive") }
func (a *SimAPI) Delete(ctx context.Context, id string) error   { return a.call(ctx, "delete") }

// RejectedError reports a simulated remote rejection.
type RejectedError struct {
	Op string
}

func (e *RejectedError) Error() string {
	return "remote " + e.Op + " rejected"
}
