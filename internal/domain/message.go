package domain

import "time"

// Source identifies the system a message originated from.
type Source string

const (
	SourceSlack    Source = "slack"
	SourceEmail    Source = "email"
	SourceWhatsApp Source = "whatsapp"
	SourceLinkedIn Source = "linkedin"
)

// Sources lists every known message origin.
var Sources = []Source{SourceSlack, SourceEmail, SourceWhatsApp, SourceLinkedIn}

// Message is a single inbox entry aggregated from one of the sources.
// ID is the identity key for deduplication. IsRead is the only field
// mutated locally after ingestion; everything else is immutable once
// the message is created.
type Message struct {
	ID        string    `json:"id"`
	Source    Source    `json:"source"`
	Sender    string    `json:"sender"`
	Subject   string    `json:"subject"`
	Preview   string    `json:"preview"`
	Timestamp time.Time `json:"timestamp"`
	Priority  float64   `json:"priority"` // 0-1 scale, assigned by the originating system
	IsRead    bool      `json:"isRead"`
	IsUrgent  bool      `json:"isUrgent"`
	SenderVIP bool      `json:"senderVIP"`
}
