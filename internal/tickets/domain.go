package tickets

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Priority is fixed when a ticket is opened.
type Priority string

const (
	PriorityNormal Priority = "Normal"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

// IsValid checks if the priority is known.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// ParsePriority matches raw case-insensitively. German labels are accepted too.
func ParsePriority(raw string) (Priority, error) {
	candidate := strings.ToLower(norm.NFC.String(strings.TrimSpace(raw)))
	switch candidate {
	case "", "normal":
		return PriorityNormal, nil
	case "high", "hoch":
		return PriorityHigh, nil
	case "urgent", "dringend":
		return PriorityUrgent, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPriority, raw)
}

// Status of a case.
type Status string

const (
	StatusOpen   Status = "Open"
	StatusClosed Status = "Closed"
)

// MessageType distinguishes operator entries from generated ones.
type MessageType string

const (
	MessageUser   MessageType = "user"
	MessageSystem MessageType = "system"
)

// Message is one entry of the append-only ticket thread.
type Message struct {
	ID        string      `json:"id"`
	Author    string      `json:"author"`
	Text      string      `json:"text"`
	Timestamp time.Time   `json:"timestamp"`
	Type      MessageType `json:"type"`
}

// Ticket is a case opened against a receipt batch.
type Ticket struct {
	ID        string    `json:"id"`
	ReceiptID string    `json:"receiptId"`
	Subject   string    `json:"subject"`
	Priority  Priority  `json:"priority"`
	Status    Status    `json:"status"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsOpen reports whether the case is still being worked on.
func (t Ticket) IsOpen() bool {
	return t.Status == StatusOpen
}

// LastActivity returns the timestamp of the newest message.
func (t Ticket) LastActivity() time.Time {
	if len(t.Messages) == 0 {
		return t.CreatedAt
	}
	return t.Messages[len(t.Messages)-1].Timestamp
}

// System message texts.
const (
	closedText   = "Vorgang geschlossen."
	reopenedText = "Vorgang wieder eröffnet."
)

var (
	// ErrNotFound indicates the ticket does not exist.
	ErrNotFound = errors.New("tickets: ticket not found")
	// ErrReceiptNotFound rejects tickets for unknown batches.
	ErrReceiptNotFound = errors.New("tickets: receipt batch not found")
	// ErrInvalidState rejects transitions the case cannot take from its current state.
	ErrInvalidState = errors.New("tickets: invalid ticket state")
	// ErrInvalidPriority rejects unknown priorities.
	ErrInvalidPriority = errors.New("tickets: invalid priority")
)
