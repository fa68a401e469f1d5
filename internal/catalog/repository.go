package catalog

import (
	"context"
	"sync"

	"github.com/odyssey-erp/wareneingang/internal/platform/blob"
)

// CollectionName is the blob key suffix holding the stock table.
const CollectionName = "inventory"

// TxRepository exposes mutations available inside WithTx.
type TxRepository interface {
	FindBySKU(sku string) (StockItem, bool)
	Upsert(item StockItem)
	ReplaceAll(items []StockItem)
}

// Repository keeps the stock table in memory and mirrors it to a blob store.
type Repository struct {
	mu    sync.Mutex
	store blob.Store
	key   string
	items []StockItem
}

// NewRepository constructs a Repository writing under prefix.
func NewRepository(store blob.Store, prefix string) *Repository {
	return &Repository{store: store, key: blob.Key(prefix, CollectionName)}
}

// Load reads the persisted stock table.
func (r *Repository) Load(ctx context.Context) error {
	var items []StockItem
	if err := blob.LoadJSON(ctx, r.store, r.key, &items); err != nil {
		return err
	}
	r.mu.Lock()
	r.items = items
	r.mu.Unlock()
	return nil
}

// List returns a copy of all stock items.
func (r *Repository) List(ctx context.Context) ([]StockItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StockItem(nil), r.items...), nil
}

// FindBySKU looks up a stock item by its natural key.
func (r *Repository) FindBySKU(ctx context.Context, sku string) (StockItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.SKU == sku {
			return item, nil
		}
	}
	return StockItem{}, ErrNotFound
}

// WithTx applies fn to a working copy and persists it when fn succeeds.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{items: append([]StockItem(nil), r.items...)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := blob.SaveJSON(ctx, r.store, r.key, tx.items); err != nil {
		return err
	}
	r.items = tx.items
	return nil
}

type memoryTx struct {
	items []StockItem
}

func (tx *memoryTx) FindBySKU(sku string) (StockItem, bool) {
	for _, item := range tx.items {
		if item.SKU == sku {
			return item, true
		}
	}
	return StockItem{}, false
}

func (tx *memoryTx) Upsert(item StockItem) {
	for i := range tx.items {
		if tx.items[i].SKU == item.SKU {
			tx.items[i] = item
			return
		}
	}
	tx.items = append(tx.items, item)
}

func (tx *memoryTx) ReplaceAll(items []StockItem) {
	tx.items = append([]StockItem(nil), items...)
}
