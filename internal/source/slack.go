package source

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"unibox/internal/domain"

	"github.com/slack-go/slack"
)

const slackDefaultLimit = 50

// Slack is a BulkSource reading recent history from one Slack channel.
type Slack struct {
	client    *slack.Client
	channelID string
	limit     int
	logger    *slog.Logger
}

// NewSlack creates a Slack bulk source for the given channel.
func NewSlack(botToken, channelID string, logger *slog.Logger) *Slack {
	return &Slack{
		client:    slack.New(botToken),
		channelID: channelID,
		limit:     slackDefaultLimit,
		logger:    logger,
	}
}

func (s *Slack) Name() string { return "slack" }

// FetchMessages pulls recent channel history and adapts it into inbox
// messages. Entries without a parseable timestamp are skipped.
func (s *Slack) FetchMessages(ctx context.Context) ([]domain.Message, error) {
	resp, err := s.client.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: s.channelID,
		Limit:     s.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("slack history: %w", err)
	}

	out := make([]domain.Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ts, err := parseSlackTimestamp(m.Timestamp)
		if err != nil {
			s.logger.Debug("skipping slack message with bad timestamp", "ts", m.Timestamp)
			continue
		}
		out = append(out, adaptSlackMessage(m, ts, s.channelID))
	}
	return out, nil
}

func adaptSlackMessage(m slack.Message, ts time.Time, channelID string) domain.Message {
	subject, preview := splitText(m.Text)
	return domain.Message{
		ID:        "slack_" + channelID + "_" + m.Timestamp,
		Source:    domain.SourceSlack,
		Sender:    senderName(m),
		Subject:   subject,
		Preview:   preview,
		Timestamp: ts,
		Priority:  slackPriority(m.Text),
		IsUrgent:  strings.Contains(m.Text, "<!channel>") || strings.Contains(m.Text, "<!here>"),
	}
}

func senderName(m slack.Message) string {
	if m.Username != "" {
		return m.Username
	}
	return m.User
}

// slackPriority is a coarse stand-in for a backend-assigned score until
// the upstream service provides one.
func slackPriority(text string) float64 {
	p := 0.4
	lower := strings.ToLower(text)
	if strings.Contains(text, "<!channel>") || strings.Contains(text, "<!here>") {
		p += 0.3
	}
	if strings.Contains(lower, "urgent") || strings.Contains(lower, "asap") {
		p += 0.2
	}
	if p > 1 {
		p = 1
	}
	return p
}

// splitText uses the first line as the subject and the remainder, or the
// full text when single-line, as the preview.
func splitText(text string) (subject, preview string) {
	text = strings.TrimSpace(text)
	line, rest, found := strings.Cut(text, "\n")
	if !found {
		return truncate(line, 80), line
	}
	return truncate(line, 80), strings.TrimSpace(rest)
}

// truncate shortens to at most max runes. Slack text is UTF-8, so cutting
// on bytes could split a rune.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

// parseSlackTimestamp converts Slack's "seconds.sequence" format.
func parseSlackTimestamp(ts string) (time.Time, error) {
	secStr, _, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse slack timestamp %q: %w", ts, err)
	}
	return time.Unix(sec, 0).UTC(), nil
}
