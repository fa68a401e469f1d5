package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/odyssey-erp/wareneingang/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context) ([]StockItem, error)
	FindBySKU(ctx context.Context, sku string) (StockItem, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Options carries the injectable collaborators.
type Options struct {
	IDs    shared.IDFunc
	Clock  shared.Clock
	Logger *slog.Logger
}

// Service owns the master stock table.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	ids    shared.IDFunc
	now    shared.Clock
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, opts Options) *Service {
	ids, clock := shared.OrDefault(opts.IDs, opts.Clock)
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, ids: ids, now: clock, logger: logger}
}

// List returns all stock items ordered by sku.
func (s *Service) List(ctx context.Context) ([]StockItem, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].SKU < items[j].SKU })
	return items, nil
}

// FindBySKU returns the stock item for sku or ErrNotFound.
func (s *Service) FindBySKU(ctx context.Context, sku string) (StockItem, error) {
	return s.repo.FindBySKU(ctx, strings.TrimSpace(sku))
}

// BelowMinimum lists items at or below their reorder threshold.
func (s *Service) BelowMinimum(ctx context.Context) ([]StockItem, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]StockItem, 0)
	for _, item := range items {
		if item.BelowMinimum() {
			out = append(out, item)
		}
	}
	return out, nil
}

// EnsureItem creates a zero-stock item for an unknown sku. The bool reports whether it was created.
func (s *Service) EnsureItem(ctx context.Context, input NewItemInput) (StockItem, bool, error) {
	input.SKU = strings.TrimSpace(input.SKU)
	input.Name = strings.TrimSpace(input.Name)
	if err := shared.Validate(input); err != nil {
		return StockItem{}, false, err
	}
	var (
		result  StockItem
		created bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if existing, ok := tx.FindBySKU(input.SKU); ok {
			result = existing
			return nil
		}
		result = StockItem{
			ID:                s.ids(),
			SKU:               input.SKU,
			Name:              input.Name,
			System:            input.System,
			Category:          input.Category,
			WarehouseLocation: input.Location,
			LastUpdated:       s.now(),
			Status:            ItemStatusActive,
		}
		tx.Upsert(result)
		created = true
		return nil
	})
	if err != nil {
		return StockItem{}, false, err
	}
	if created {
		s.recordAudit(ctx, "STOCK_CREATE", result.SKU, map[string]any{"name": result.Name})
	}
	return result, created, nil
}

// ApplyReceipt adds booked receipt quantities to the stock table.
// Lines whose sku has no stock item are skipped and reported in ApplyResult.Missing.
// Callers must apply a batch at most once.
func (s *Service) ApplyReceipt(ctx context.Context, updates []LedgerUpdate) (ApplyResult, error) {
	var result ApplyResult
	now := s.now()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		touched := make(map[string]int)
		for _, update := range updates {
			if update.Qty <= 0 {
				continue
			}
			item, ok := tx.FindBySKU(update.SKU)
			if !ok {
				result.Missing = append(result.Missing, update.SKU)
				continue
			}
			item.StockLevel += update.Qty
			if update.Location != "" {
				item.WarehouseLocation = update.Location
			}
			item.LastUpdated = now
			item.Status = ItemStatusBooked
			tx.Upsert(item)
			if idx, seen := touched[item.SKU]; seen {
				result.Updated[idx] = item
				continue
			}
			touched[item.SKU] = len(result.Updated)
			result.Updated = append(result.Updated, item)
		}
		return nil
	})
	if err != nil {
		return ApplyResult{}, err
	}
	for _, sku := range result.Missing {
		s.logger.WarnContext(ctx, "ledger update skipped unknown sku", slog.String("sku", sku))
	}
	return result, nil
}

// AdjustLevel sets the stock level of sku after a manual count.
func (s *Service) AdjustLevel(ctx context.Context, sku string, level int) (StockItem, error) {
	if level < 0 {
		return StockItem{}, ErrNegativeLevel
	}
	var (
		updated  StockItem
		previous int
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, ok := tx.FindBySKU(sku)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, sku)
		}
		previous = item.StockLevel
		item.StockLevel = level
		item.LastUpdated = s.now()
		tx.Upsert(item)
		updated = item
		return nil
	})
	if err != nil {
		return StockItem{}, err
	}
	s.recordAudit(ctx, "STOCK_ADJUST", sku, map[string]any{"from": previous, "to": level})
	return updated, nil
}

// ReplaceAll swaps the whole stock table, as a bulk import does.
func (s *Service) ReplaceAll(ctx context.Context, items []StockItem) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		tx.ReplaceAll(items)
		return nil
	})
}

func (s *Service) recordAudit(ctx context.Context, action string, sku string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Actor: shared.ActorFromContext(ctx), Action: action, Entity: "stock_item", EntityID: sku, Meta: meta})
}
