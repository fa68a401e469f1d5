package receiving

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Status is the goods-receipt header status.
type Status string

const (
	StatusBooked        Status = "Gebucht"
	StatusInProgress    Status = "In Bearbeitung"
	StatusChecked       Status = "Geprüft"
	StatusProject       Status = "Projekt"
	StatusQuarantine    Status = "Quarantäne"
	StatusDamaged       Status = "Beschädigt"
	StatusOverDelivery  Status = "Übermenge"
	StatusUnderDelivery Status = "Untermenge"
	StatusPartial       Status = "Teillieferung"
	StatusComplaint     Status = "Reklamation"
	StatusRejected      Status = "Abgelehnt"
	StatusReturned      Status = "Rücklieferung"
	StatusMisdelivered  Status = "Falsch geliefert"
)

// Statuses lists every selectable status in display order.
var Statuses = []Status{
	StatusBooked,
	StatusInProgress,
	StatusChecked,
	StatusProject,
	StatusQuarantine,
	StatusDamaged,
	StatusOverDelivery,
	StatusUnderDelivery,
	StatusPartial,
	StatusComplaint,
	StatusRejected,
	StatusReturned,
	StatusMisdelivered,
}

// Tone groups statuses by their display colour.
type Tone string

const (
	TonePositive  Tone = "positive"
	ToneAttention Tone = "attention"
)

// transitions is the allowed status graph. Gebucht has no outgoing edges.
var transitions = buildTransitions()

func buildTransitions() map[Status]map[Status]struct{} {
	table := make(map[Status]map[Status]struct{}, len(Statuses))
	for _, from := range Statuses {
		targets := make(map[Status]struct{})
		if from != StatusBooked {
			for _, to := range Statuses {
				if to != from {
					targets[to] = struct{}{}
				}
			}
		}
		table[from] = targets
	}
	return table
}

// IsValid checks if the status is part of the enumeration.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsBooked reports whether the ledger has been applied.
func (s Status) IsBooked() bool {
	return s == StatusBooked
}

// CanTransitionTo reports whether next may follow s.
func (s Status) CanTransitionTo(next Status) bool {
	targets, ok := transitions[s]
	if !ok {
		return false
	}
	_, ok = targets[next]
	return ok
}

// Tone returns the display group of the status.
func (s Status) Tone() Tone {
	if s == StatusBooked {
		return TonePositive
	}
	return ToneAttention
}

// ParseStatus matches raw against the enumeration, ignoring case and Unicode composition.
func ParseStatus(raw string) (Status, error) {
	candidate := norm.NFC.String(strings.TrimSpace(raw))
	for _, status := range Statuses {
		if strings.EqualFold(string(status), candidate) {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}
