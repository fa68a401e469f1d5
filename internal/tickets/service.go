package tickets

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/odyssey-erp/wareneingang/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTicket(ctx context.Context, id string) (Ticket, error)
	ListTickets(ctx context.Context) ([]Ticket, error)
}

// ReceiptLookup confirms that a batch exists before a case is opened against it.
type ReceiptLookup interface {
	ReceiptExists(ctx context.Context, batchID string) (bool, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts lifecycle events.
type MetricsPort interface {
	TicketEvent(event string)
}

// Options carries the injectable collaborators.
type Options struct {
	IDs     shared.IDFunc
	Clock   shared.Clock
	Logger  *slog.Logger
	Metrics MetricsPort
}

// Service runs the ticket state machine.
type Service struct {
	repo     RepositoryPort
	receipts ReceiptLookup
	audit    AuditPort
	metrics  MetricsPort
	ids      shared.IDFunc
	now      shared.Clock
	logger   *slog.Logger
}

// NewService constructs the ticket service. receipts may be nil to skip the batch check.
func NewService(repo RepositoryPort, receipts ReceiptLookup, audit AuditPort, opts Options) *Service {
	ids, clock := shared.OrDefault(opts.IDs, opts.Clock)
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, receipts: receipts, audit: audit, metrics: opts.Metrics, ids: ids, now: clock, logger: logger}
}

// CreateInput opens a case.
type CreateInput struct {
	ReceiptID   string `validate:"required"`
	Subject     string `validate:"required"`
	Priority    Priority
	Description string `validate:"required"`
	Author      string
}

// ReplyInput appends to a case and optionally closes it.
type ReplyInput struct {
	Author string
	Text   string
	Close  bool
}

// CreateTicket opens a case seeded with the reporter's description.
func (s *Service) CreateTicket(ctx context.Context, input CreateInput) (Ticket, error) {
	input.ReceiptID = strings.TrimSpace(input.ReceiptID)
	input.Subject = strings.TrimSpace(input.Subject)
	input.Description = strings.TrimSpace(input.Description)
	if err := shared.Validate(input); err != nil {
		return Ticket{}, err
	}
	if input.Priority == "" {
		input.Priority = PriorityNormal
	}
	if !input.Priority.IsValid() {
		return Ticket{}, fmt.Errorf("%w: %q", ErrInvalidPriority, input.Priority)
	}
	if s.receipts != nil {
		ok, err := s.receipts.ReceiptExists(ctx, input.ReceiptID)
		if err != nil {
			return Ticket{}, err
		}
		if !ok {
			return Ticket{}, fmt.Errorf("%w: %s", ErrReceiptNotFound, input.ReceiptID)
		}
	}
	now := s.now()
	ticket := Ticket{
		ID:        s.ids(),
		ReceiptID: input.ReceiptID,
		Subject:   input.Subject,
		Priority:  input.Priority,
		Status:    StatusOpen,
		CreatedAt: now,
		Messages: []Message{{
			ID:        s.ids(),
			Author:    s.author(ctx, input.Author),
			Text:      input.Description,
			Timestamp: now,
			Type:      MessageUser,
		}},
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		tx.Save(ticket)
		return nil
	})
	if err != nil {
		return Ticket{}, err
	}
	s.recordAudit(ctx, "TICKET_CREATE", ticket.ID, map[string]any{"receipt_id": ticket.ReceiptID, "priority": ticket.Priority})
	s.count("opened")
	s.logger.InfoContext(ctx, "ticket opened", slog.String("ticket_id", ticket.ID), slog.String("receipt_id", ticket.ReceiptID))
	return ticket, nil
}

// ReplyTicket appends a user message. With Close set the text may be empty, and a system
// message closes the case after the reply.
func (s *Service) ReplyTicket(ctx context.Context, id string, input ReplyInput) (Ticket, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" && !input.Close {
		return Ticket{}, shared.NewValidationError("Text", "is required")
	}
	author := s.author(ctx, input.Author)
	var updated Ticket
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ticket, ok := tx.Get(id)
		if !ok {
			return ErrNotFound
		}
		if !ticket.IsOpen() {
			return fmt.Errorf("%w: %s is %s", ErrInvalidState, id, ticket.Status)
		}
		if text != "" {
			s.appendMessage(&ticket, author, text, MessageUser)
		}
		if input.Close {
			s.appendMessage(&ticket, author, closedText, MessageSystem)
			ticket.Status = StatusClosed
		}
		tx.Save(ticket)
		updated = ticket
		return nil
	})
	if err != nil {
		return Ticket{}, err
	}
	if input.Close {
		s.recordAudit(ctx, "TICKET_CLOSE", id, nil)
		s.count("closed")
	}
	return updated, nil
}

// ReopenTicket moves a closed case back to Open.
func (s *Service) ReopenTicket(ctx context.Context, id string, author string) (Ticket, error) {
	author = s.author(ctx, author)
	var updated Ticket
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ticket, ok := tx.Get(id)
		if !ok {
			return ErrNotFound
		}
		if ticket.IsOpen() {
			return fmt.Errorf("%w: %s is already open", ErrInvalidState, id)
		}
		s.appendMessage(&ticket, author, reopenedText, MessageSystem)
		ticket.Status = StatusOpen
		tx.Save(ticket)
		updated = ticket
		return nil
	})
	if err != nil {
		return Ticket{}, err
	}
	s.recordAudit(ctx, "TICKET_REOPEN", id, nil)
	s.count("reopened")
	return updated, nil
}

// GetTicket returns one ticket.
func (s *Service) GetTicket(ctx context.Context, id string) (Ticket, error) {
	return s.repo.GetTicket(ctx, id)
}

// ListByReceipt returns the tickets of a batch, most recent activity first.
func (s *Service) ListByReceipt(ctx context.Context, receiptID string) ([]Ticket, error) {
	all, err := s.repo.ListTickets(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Ticket, 0)
	for _, ticket := range all {
		if ticket.ReceiptID == receiptID {
			out = append(out, ticket)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActivity().After(out[j].LastActivity())
	})
	return out, nil
}

// HasOpenTicket reports whether any case on the batch is open.
func (s *Service) HasOpenTicket(ctx context.Context, receiptID string) (bool, error) {
	tickets, err := s.ListByReceipt(ctx, receiptID)
	if err != nil {
		return false, err
	}
	for _, ticket := range tickets {
		if ticket.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

// appendMessage keeps thread timestamps strictly increasing even when the clock does not advance.
func (s *Service) appendMessage(ticket *Ticket, author, text string, kind MessageType) {
	ts := s.now()
	if n := len(ticket.Messages); n > 0 {
		last := ticket.Messages[n-1].Timestamp
		if !ts.After(last) {
			ts = last.Add(time.Millisecond)
		}
	}
	ticket.Messages = append(ticket.Messages, Message{
		ID:        s.ids(),
		Author:    author,
		Text:      text,
		Timestamp: ts,
		Type:      kind,
	})
}

func (s *Service) count(event string) {
	if s.metrics != nil {
		s.metrics.TicketEvent(event)
	}
}

func (s *Service) author(ctx context.Context, author string) string {
	if strings.TrimSpace(author) != "" {
		return author
	}
	return shared.ActorFromContext(ctx)
}

func (s *Service) recordAudit(ctx context.Context, action string, ticketID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Actor: shared.ActorFromContext(ctx), Action: action, Entity: "ticket", EntityID: ticketID, Meta: meta})
}
