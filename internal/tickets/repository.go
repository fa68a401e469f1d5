package tickets

import (
	"context"
	"sync"

	"github.com/odyssey-erp/wareneingang/internal/platform/blob"
)

// CollectionName is the blob key suffix of the ticket list.
const CollectionName = "tickets"

// TxRepository exposes transactional operations.
type TxRepository interface {
	Get(id string) (Ticket, bool)
	Save(ticket Ticket)
}

// Repository keeps tickets in memory and mirrors them to a blob store.
type Repository struct {
	mu      sync.Mutex
	store   blob.Store
	key     string
	tickets []Ticket
}

// NewRepository constructs a repository writing under prefix.
func NewRepository(store blob.Store, prefix string) *Repository {
	return &Repository{store: store, key: blob.Key(prefix, CollectionName)}
}

// Load reads the persisted tickets.
func (r *Repository) Load(ctx context.Context) error {
	var tickets []Ticket
	if err := blob.LoadJSON(ctx, r.store, r.key, &tickets); err != nil {
		return err
	}
	r.mu.Lock()
	r.tickets = tickets
	r.mu.Unlock()
	return nil
}

// GetTicket returns a copy of the ticket.
func (r *Repository) GetTicket(ctx context.Context, id string) (Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.ID == id {
			return cloneTicket(ticket), nil
		}
	}
	return Ticket{}, ErrNotFound
}

// ListTickets returns copies of all tickets in creation order.
func (r *Repository) ListTickets(ctx context.Context) ([]Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Ticket, 0, len(r.tickets))
	for _, ticket := range r.tickets {
		out = append(out, cloneTicket(ticket))
	}
	return out, nil
}

// WithTx applies fn to a working copy and persists it when fn succeeds.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{tickets: append([]Ticket(nil), r.tickets...)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := blob.SaveJSON(ctx, r.store, r.key, tx.tickets); err != nil {
		return err
	}
	r.tickets = tx.tickets
	return nil
}

type memoryTx struct {
	tickets []Ticket
}

func (tx *memoryTx) Get(id string) (Ticket, bool) {
	for _, ticket := range tx.tickets {
		if ticket.ID == id {
			return cloneTicket(ticket), true
		}
	}
	return Ticket{}, false
}

func (tx *memoryTx) Save(ticket Ticket) {
	for i := range tx.tickets {
		if tx.tickets[i].ID == ticket.ID {
			tx.tickets[i] = ticket
			return
		}
	}
	tx.tickets = append(tx.tickets, ticket)
}

func cloneTicket(ticket Ticket) Ticket {
	ticket.Messages = append([]Message(nil), ticket.Messages...)
	return ticket
}
