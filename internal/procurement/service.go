package procurement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/wareneingang/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id string) (PurchaseOrder, error)
	ListOrders(ctx context.Context) ([]PurchaseOrder, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages purchase orders.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   shared.Clock
}

// NewService constructs the procurement service.
func NewService(repo RepositoryPort, audit AuditPort, clock shared.Clock) *Service {
	if clock == nil {
		clock = shared.Now
	}
	return &Service{repo: repo, audit: audit, now: clock}
}

// CreateOrderInput describes a new purchase order.
type CreateOrderInput struct {
	ID                   string `validate:"required"`
	Supplier             string `validate:"required"`
	ExpectedDeliveryDate *time.Time
	Items                []OrderItemInput `validate:"required,min=1,dive"`
}

// OrderItemInput describes one ordered line.
type OrderItemInput struct {
	SKU      string `validate:"required"`
	Name     string
	Quantity int `validate:"gt=0"`
}

// CreateOrder persists a new order in status Offen.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (PurchaseOrder, error) {
	input.ID = strings.TrimSpace(input.ID)
	input.Supplier = strings.TrimSpace(input.Supplier)
	if err := shared.Validate(input); err != nil {
		return PurchaseOrder{}, err
	}
	order := PurchaseOrder{
		ID:                   input.ID,
		Supplier:             input.Supplier,
		Status:               POStatusOpen,
		DateCreated:          s.now(),
		ExpectedDeliveryDate: input.ExpectedDeliveryDate,
	}
	for _, line := range input.Items {
		order.Items = append(order.Items, PurchaseOrderItem{SKU: strings.TrimSpace(line.SKU), Name: line.Name, QuantityExpected: line.Quantity})
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, exists := tx.Get(order.ID); exists {
			return fmt.Errorf("%w: %s", ErrDuplicateID, order.ID)
		}
		tx.Save(order)
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "PO_CREATE", order.ID, map[string]any{"supplier": order.Supplier, "lines": len(order.Items)})
	return order, nil
}

// GetOrder returns one order.
func (s *Service) GetOrder(ctx context.Context, id string) (PurchaseOrder, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders returns every order.
func (s *Service) ListOrders(ctx context.Context) ([]PurchaseOrder, error) {
	return s.repo.ListOrders(ctx)
}

// ListLinkable returns orders a goods receipt may still be linked to.
func (s *Service) ListLinkable(ctx context.Context) ([]PurchaseOrder, error) {
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PurchaseOrder, 0, len(orders))
	for _, order := range orders {
		if order.Status.Linkable() {
			out = append(out, order)
		}
	}
	return out, nil
}

// UpdateStatus sets the order status manually.
func (s *Service) UpdateStatus(ctx context.Context, id string, status POStatus) (PurchaseOrder, error) {
	if !status.IsValid() {
		return PurchaseOrder{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	var updated PurchaseOrder
	var previous POStatus
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, ok := tx.Get(id)
		if !ok {
			return ErrNotFound
		}
		previous = order.Status
		order.Status = status
		tx.Save(order)
		updated = order
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "PO_STATUS", id, map[string]any{"from": previous, "to": status})
	return updated, nil
}

// RecordReceipt adds booked quantities to the order lines and rolls the order status forward.
// Skus not on the order are ignored. Cancelled orders are left untouched.
func (s *Service) RecordReceipt(ctx context.Context, orderID string, received []ReceivedQuantity) (PurchaseOrder, error) {
	var updated PurchaseOrder
	var previous POStatus
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, ok := tx.Get(orderID)
		if !ok {
			return ErrNotFound
		}
		previous = order.Status
		if order.Status == POStatusCancelled {
			updated = order
			return nil
		}
		for _, r := range received {
			creditLines(order.Items, r)
		}
		order.Status = deriveStatus(order)
		tx.Save(order)
		updated = order
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "PO_SYNC", orderID, map[string]any{"from": previous, "to": updated.Status})
	return updated, nil
}

// creditLines fills the open quantity of each line carrying r.SKU in order; any remainder goes to the last one.
func creditLines(items []PurchaseOrderItem, r ReceivedQuantity) {
	if r.Qty <= 0 {
		return
	}
	remaining, last := r.Qty, -1
	for i := range items {
		if items[i].SKU != r.SKU {
			continue
		}
		last = i
		open := items[i].QuantityExpected - items[i].QuantityReceived
		if open <= 0 {
			continue
		}
		take := min(open, remaining)
		items[i].QuantityReceived += take
		remaining -= take
		if remaining == 0 {
			return
		}
	}
	if last >= 0 {
		items[last].QuantityReceived += remaining
	}
}

func deriveStatus(order PurchaseOrder) POStatus {
	if order.FullyReceived() {
		return POStatusClosed
	}
	for _, item := range order.Items {
		if item.QuantityReceived > 0 {
			return POStatusPartial
		}
	}
	return order.Status
}

func (s *Service) recordAudit(ctx context.Context, action string, orderID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Actor: shared.ActorFromContext(ctx), Action: action, Entity: "purchase_order", EntityID: orderID, Meta: meta})
}
