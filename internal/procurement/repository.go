package procurement

import (
	"context"
	"sync"

	"github.com/odyssey-erp/wareneingang/internal/platform/blob"
)

// CollectionName is the blob key suffix holding purchase orders.
const CollectionName = "purchase_orders"

// TxRepository exposes transactional operations.
type TxRepository interface {
	Get(id string) (PurchaseOrder, bool)
	Save(order PurchaseOrder)
}

// Repository keeps purchase orders in memory and mirrors them to a blob store.
type Repository struct {
	mu     sync.Mutex
	store  blob.Store
	key    string
	orders []PurchaseOrder
}

// NewRepository constructs a repository writing under prefix.
func NewRepository(store blob.Store, prefix string) *Repository {
	return &Repository{store: store, key: blob.Key(prefix, CollectionName)}
}

// Load reads persisted purchase orders.
func (r *Repository) Load(ctx context.Context) error {
	var orders []PurchaseOrder
	if err := blob.LoadJSON(ctx, r.store, r.key, &orders); err != nil {
		return err
	}
	r.mu.Lock()
	r.orders = orders
	r.mu.Unlock()
	return nil
}

// GetOrder returns a copy of the order.
func (r *Repository) GetOrder(ctx context.Context, id string) (PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.orders {
		if order.ID == id {
			return cloneOrder(order), nil
		}
	}
	return PurchaseOrder{}, ErrNotFound
}

// ListOrders returns copies of all orders in creation order.
func (r *Repository) ListOrders(ctx context.Context) ([]PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PurchaseOrder, 0, len(r.orders))
	for _, order := range r.orders {
		out = append(out, cloneOrder(order))
	}
	return out, nil
}

// WithTx applies fn to a working copy and persists it when fn succeeds.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{}
	for _, order := range r.orders {
		tx.orders = append(tx.orders, cloneOrder(order))
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := blob.SaveJSON(ctx, r.store, r.key, tx.orders); err != nil {
		return err
	}
	r.orders = tx.orders
	return nil
}

type memoryTx struct {
	orders []PurchaseOrder
}

func (tx *memoryTx) Get(id string) (PurchaseOrder, bool) {
	for _, order := range tx.orders {
		if order.ID == id {
			return cloneOrder(order), true
		}
	}
	return PurchaseOrder{}, false
}

func (tx *memoryTx) Save(order PurchaseOrder) {
	for i := range tx.orders {
		if tx.orders[i].ID == order.ID {
			tx.orders[i] = cloneOrder(order)
			return
		}
	}
	tx.orders = append(tx.orders, cloneOrder(order))
}

func cloneOrder(order PurchaseOrder) PurchaseOrder {
	order.Items = append([]PurchaseOrderItem(nil), order.Items...)
	if order.ExpectedDeliveryDate != nil {
		d := *order.ExpectedDeliveryDate
		order.ExpectedDeliveryDate = &d
	}
	return order
}
