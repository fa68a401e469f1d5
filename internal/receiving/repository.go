package receiving

import (
	"context"
	"sort"
	"sync"

	"github.com/odyssey-erp/wareneingang/internal/platform/blob"
)

// Blob key suffixes of the receiving collections.
const (
	HeadersCollection  = "receipts"
	ItemsCollection    = "receipt_items"
	CommentsCollection = "receipt_comments"
)

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetHeader(batchID string) (ReceiptHeader, bool)
	SaveHeader(header ReceiptHeader)
	InsertItems(items []ReceiptItem)
	InsertComment(comment ReceiptComment)
}

type snapshot struct {
	headers  []ReceiptHeader
	items    []ReceiptItem
	comments []ReceiptComment
}

func (s snapshot) clone() snapshot {
	return snapshot{
		headers:  append([]ReceiptHeader(nil), s.headers...),
		items:    append([]ReceiptItem(nil), s.items...),
		comments: append([]ReceiptComment(nil), s.comments...),
	}
}

// Repository keeps receipt batches in memory and mirrors them to a blob store.
type Repository struct {
	mu     sync.Mutex
	store  blob.Store
	prefix string
	state  snapshot
}

// NewRepository constructs a repository writing under prefix.
func NewRepository(store blob.Store, prefix string) *Repository {
	return &Repository{store: store, prefix: prefix}
}

// Load reads the persisted collections.
func (r *Repository) Load(ctx context.Context) error {
	var next snapshot
	if err := blob.LoadJSON(ctx, r.store, blob.Key(r.prefix, HeadersCollection), &next.headers); err != nil {
		return err
	}
	if err := blob.LoadJSON(ctx, r.store, blob.Key(r.prefix, ItemsCollection), &next.items); err != nil {
		return err
	}
	if err := blob.LoadJSON(ctx, r.store, blob.Key(r.prefix, CommentsCollection), &next.comments); err != nil {
		return err
	}
	r.mu.Lock()
	r.state = next
	r.mu.Unlock()
	return nil
}

// GetReceipt returns a batch with its lines and comments.
func (r *Repository) GetReceipt(ctx context.Context, batchID string) (Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var receipt Receipt
	found := false
	for _, header := range r.state.headers {
		if header.BatchID == batchID {
			receipt.Header = header
			found = true
			break
		}
	}
	if !found {
		return Receipt{}, ErrNotFound
	}
	for _, item := range r.state.items {
		if item.BatchID == batchID {
			receipt.Items = append(receipt.Items, item)
		}
	}
	for _, comment := range r.state.comments {
		if comment.BatchID == batchID {
			receipt.Comments = append(receipt.Comments, comment)
		}
	}
	sort.SliceStable(receipt.Comments, func(i, j int) bool {
		return receipt.Comments[i].Timestamp.Before(receipt.Comments[j].Timestamp)
	})
	return receipt, nil
}

// ListHeaders returns all headers, newest first.
func (r *Repository) ListHeaders(ctx context.Context) ([]ReceiptHeader, error) {
	r.mu.Lock()
	headers := append([]ReceiptHeader(nil), r.state.headers...)
	r.mu.Unlock()
	sort.SliceStable(headers, func(i, j int) bool {
		return headers[i].Timestamp.After(headers[j].Timestamp)
	})
	return headers, nil
}

// Exists reports whether batchID is known.
func (r *Repository) Exists(ctx context.Context, batchID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, header := range r.state.headers {
		if header.BatchID == batchID {
			return true, nil
		}
	}
	return false, nil
}

// WithTx applies fn to a working copy and persists all collections when fn succeeds.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{state: r.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := blob.SaveJSON(ctx, r.store, blob.Key(r.prefix, HeadersCollection), tx.state.headers); err != nil {
		return err
	}
	if err := blob.SaveJSON(ctx, r.store, blob.Key(r.prefix, ItemsCollection), tx.state.items); err != nil {
		return err
	}
	if err := blob.SaveJSON(ctx, r.store, blob.Key(r.prefix, CommentsCollection), tx.state.comments); err != nil {
		return err
	}
	r.state = tx.state
	return nil
}

type memoryTx struct {
	state snapshot
}

func (tx *memoryTx) GetHeader(batchID string) (ReceiptHeader, bool) {
	for _, header := range tx.state.headers {
		if header.BatchID == batchID {
			return header, true
		}
	}
	return ReceiptHeader{}, false
}

func (tx *memoryTx) SaveHeader(header ReceiptHeader) {
	for i := range tx.state.headers {
		if tx.state.headers[i].BatchID == header.BatchID {
			tx.state.headers[i] = header
			return
		}
	}
	tx.state.headers = append(tx.state.headers, header)
}

func (tx *memoryTx) InsertItems(items []ReceiptItem) {
	tx.state.items = append(tx.state.items, items...)
}

func (tx *memoryTx) InsertComment(comment ReceiptComment) {
	tx.state.comments = append(tx.state.comments, comment)
}
