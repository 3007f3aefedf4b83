// Package notify pushes alerts about urgent inbox activity to Telegram.
package notify

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"unibox/internal/bus"
	"unibox/internal/domain"
)

// Telegram sends urgent-message alerts to a single chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

// NewTelegram creates a notifier for the given bot token and chat.
func NewTelegram(token string, chatID int64, logger *slog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	logger.Info("telegram notifier ready", "bot", bot.Self.UserName)
	return &Telegram{bot: bot, chatID: chatID, logger: logger}, nil
}

// Notify sends a short alert for one message. Send failures are logged,
// not returned; an unreachable notifier must not stall the sync loop.
func (t *Telegram) Notify(m domain.Message) {
	text := fmt.Sprintf("Urgent %s message from %s\n%s\n%s", m.Source, m.Sender, m.Subject, m.Preview)
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Error("telegram send failed", "error", err)
	}
}

// Subscribe wires the notifier to merged-message events, alerting on
// urgent unread arrivals only.
func (t *Telegram) Subscribe(events *bus.Bus) {
	events.On(bus.EventMessageMerged, func(e bus.Event) {
		m, ok := e.Payload["message"].(domain.Message)
		if !ok {
			return
		}
		if m.IsUrgent && !m.IsRead {
			t.Notify(m)
		}
	})
}
