package receiving

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/wareneingang/internal/catalog"
	"github.com/odyssey-erp/wareneingang/internal/procurement"
	"github.com/odyssey-erp/wareneingang/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetReceipt(ctx context.Context, batchID string) (Receipt, error)
	ListHeaders(ctx context.Context) ([]ReceiptHeader, error)
	Exists(ctx context.Context, batchID string) (bool, error)
}

// LedgerPort exposes the stock table operations the workflow drives.
type LedgerPort interface {
	EnsureItem(ctx context.Context, input catalog.NewItemInput) (catalog.StockItem, bool, error)
	ApplyReceipt(ctx context.Context, updates []catalog.LedgerUpdate) (catalog.ApplyResult, error)
}

// OrderPort exposes the purchase orders a receipt can link to.
type OrderPort interface {
	GetOrder(ctx context.Context, id string) (procurement.PurchaseOrder, error)
	RecordReceipt(ctx context.Context, orderID string, received []procurement.ReceivedQuantity) (procurement.PurchaseOrder, error)
}

// TicketPort reports open cases against a batch.
type TicketPort interface {
	HasOpenTicket(ctx context.Context, receiptID string) (bool, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives workflow counters.
type MetricsPort interface {
	ReceiptSubmitted(suggested string)
	StatusChanged(to string)
	LedgerApplied(updated, missing int)
}

// Options carries optional collaborators and switches.
type Options struct {
	IDs     shared.IDFunc
	Clock   shared.Clock
	Logger  *slog.Logger
	Tickets TicketPort
	Locker  shared.Locker
	Metrics MetricsPort

	// SyncOrders rolls linked purchase orders forward when a receipt is booked.
	SyncOrders bool
}

// Service runs the goods-receipt status workflow.
type Service struct {
	repo       RepositoryPort
	ledger     LedgerPort
	orders     OrderPort
	audit      AuditPort
	tickets    TicketPort
	locker     shared.Locker
	metrics    MetricsPort
	syncOrders bool
	ids        shared.IDFunc
	now        shared.Clock
	logger     *slog.Logger
}

// NewService constructs the receiving workflow.
func NewService(repo RepositoryPort, ledger LedgerPort, orders OrderPort, audit AuditPort, opts Options) *Service {
	ids, clock := shared.OrDefault(opts.IDs, opts.Clock)
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		ledger:     ledger,
		orders:     orders,
		audit:      audit,
		tickets:    opts.Tickets,
		locker:     opts.Locker,
		metrics:    opts.Metrics,
		syncOrders: opts.SyncOrders,
		ids:        ids,
		now:        clock,
		logger:     logger,
	}
}

// HeaderInput is the operator-entered receipt header.
type HeaderInput struct {
	LieferscheinNr    string `validate:"required"`
	BestellNr         string
	Lieferdatum       time.Time
	Lieferant         string
	WarehouseLocation string
	CreatedByName     string
}

// SubmitInput is a complete receipt draft ready for booking.
type SubmitInput struct {
	Header HeaderInput
	Lines  []CartLine `validate:"dive"`
	// Status overrides the suggested status when set.
	Status Status
}

// CommentInput is an operator note on a batch.
type CommentInput struct {
	Author string
	Text   string      `validate:"required"`
	Type   CommentType `validate:"omitempty,oneof=note call email"`
}

// Preview reconciles a draft against its linked order without persisting anything.
func (s *Service) Preview(ctx context.Context, draft Draft) (Reconciliation, error) {
	if len(draft.Lines) == 0 {
		return Reconciliation{}, ErrEmptyCart
	}
	orderID := strings.TrimSpace(draft.BestellNr)
	lines, _, err := s.resolveOrder(ctx, orderID, draft.Lines, false)
	if err != nil {
		return Reconciliation{}, err
	}
	return Reconcile(lines, orderID != ""), nil
}

// SubmitReceipt persists a new batch in status In Bearbeitung and finalizes it to the
// operator's override, or to the suggested status when none is given.
func (s *Service) SubmitReceipt(ctx context.Context, input SubmitInput) (Receipt, Reconciliation, error) {
	header := input.Header
	header.LieferscheinNr = strings.TrimSpace(header.LieferscheinNr)
	header.BestellNr = strings.TrimSpace(header.BestellNr)
	if len(input.Lines) == 0 {
		return Receipt{}, Reconciliation{}, ErrEmptyCart
	}
	if err := shared.Validate(SubmitInput{Header: header, Lines: input.Lines}); err != nil {
		return Receipt{}, Reconciliation{}, err
	}
	if input.Status != "" && !input.Status.IsValid() {
		return Receipt{}, Reconciliation{}, fmt.Errorf("%w: %q", ErrInvalidStatus, input.Status)
	}

	lines, order, err := s.resolveOrder(ctx, header.BestellNr, input.Lines, true)
	if err != nil {
		return Receipt{}, Reconciliation{}, err
	}
	if header.Lieferant == "" && order != nil {
		header.Lieferant = order.Supplier
	}
	rec := Reconcile(lines, order != nil)

	for _, line := range lines {
		_, created, err := s.ledger.EnsureItem(ctx, catalog.NewItemInput{
			SKU:      line.SKU,
			Name:     defaultString(line.Name, line.SKU),
			Location: defaultString(line.TargetLocation, header.WarehouseLocation),
		})
		if err != nil {
			return Receipt{}, Reconciliation{}, fmt.Errorf("receiving: create stock item %s: %w", line.SKU, err)
		}
		if created {
			s.logger.InfoContext(ctx, "stock item created from receipt", slog.String("sku", line.SKU))
		}
	}

	now := s.now()
	actor := defaultString(header.CreatedByName, shared.ActorFromContext(ctx))
	lieferdatum := header.Lieferdatum
	if lieferdatum.IsZero() {
		lieferdatum = now
	}
	stored := ReceiptHeader{
		BatchID:           s.ids(),
		LieferscheinNr:    header.LieferscheinNr,
		BestellNr:         header.BestellNr,
		Lieferdatum:       lieferdatum,
		Lieferant:         header.Lieferant,
		WarehouseLocation: header.WarehouseLocation,
		Status:            StatusInProgress,
		Timestamp:         now,
		ItemCount:         len(lines),
		CreatedByName:     actor,
	}
	items := make([]ReceiptItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, ReceiptItem{
			ID:             s.ids(),
			BatchID:        stored.BatchID,
			SKU:            line.SKU,
			Name:           defaultString(line.Name, line.SKU),
			Quantity:       line.QuantityReceived,
			TargetLocation: defaultString(line.TargetLocation, header.WarehouseLocation),
			IsDamaged:      line.IsDamaged,
			IssueNotes:     line.IssueNotes,
		})
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		tx.SaveHeader(stored)
		tx.InsertItems(items)
		tx.InsertComment(s.systemComment(stored.BatchID, actor, fmt.Sprintf("Wareneingang erfasst: Lieferschein %s, %d Positionen.", stored.LieferscheinNr, len(items))))
		return nil
	})
	if err != nil {
		return Receipt{}, Reconciliation{}, err
	}
	s.recordAudit(ctx, "RECEIPT_CREATE", stored.BatchID, map[string]any{"lieferschein": stored.LieferscheinNr, "bestellung": stored.BestellNr, "suggested": rec.Suggested})
	if s.metrics != nil {
		s.metrics.ReceiptSubmitted(string(rec.Suggested))
	}

	final := rec.Suggested
	if input.Status != "" {
		final = input.Status
	}
	if final != stored.Status {
		if _, err := s.FinalizeReceiptStatus(ctx, stored.BatchID, final); err != nil {
			return Receipt{}, Reconciliation{}, err
		}
	}
	receipt, err := s.repo.GetReceipt(ctx, stored.BatchID)
	if err != nil {
		return Receipt{}, Reconciliation{}, err
	}
	return receipt, rec, nil
}

// FinalizeReceiptStatus moves a batch to next. Entering Gebucht applies the batch to the stock
// table exactly once; a booked batch rejects every further change.
func (s *Service) FinalizeReceiptStatus(ctx context.Context, batchID string, next Status) (ReceiptHeader, error) {
	if !next.IsValid() {
		return ReceiptHeader{}, fmt.Errorf("%w: %q", ErrInvalidStatus, next)
	}
	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, shared.ReceiptLockKey(batchID))
		if err != nil {
			return ReceiptHeader{}, err
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				s.logger.WarnContext(ctx, "release receipt lock", slog.String("batch_id", batchID), slog.Any("error", err))
			}
		}()
	}

	receipt, err := s.repo.GetReceipt(ctx, batchID)
	if err != nil {
		return ReceiptHeader{}, err
	}
	previous := receipt.Header.Status
	if previous == next {
		return receipt.Header, nil
	}
	if !previous.CanTransitionTo(next) {
		return ReceiptHeader{}, fmt.Errorf("%w: %s -> %s", ErrBookedImmutable, previous, next)
	}

	actor := shared.ActorFromContext(ctx)
	var (
		updated   ReceiptHeader
		applied   catalog.ApplyResult
		unchanged bool
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		header, ok := tx.GetHeader(batchID)
		if !ok {
			return ErrNotFound
		}
		previous = header.Status
		if previous == next {
			updated, unchanged = header, true
			return nil
		}
		if !previous.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrBookedImmutable, previous, next)
		}
		header.Status = next
		tx.SaveHeader(header)
		text := fmt.Sprintf("Status geändert: %s -> %s", previous, next)
		if next.IsBooked() {
			result, err := s.ledger.ApplyReceipt(ctx, ledgerUpdates(header, receipt.Items))
			if err != nil {
				return fmt.Errorf("receiving: apply ledger: %w", err)
			}
			applied = result
			text = bookingComment(previous, result)
		}
		tx.InsertComment(s.systemComment(batchID, actor, text))
		updated = header
		return nil
	})
	if err != nil {
		if next.IsBooked() && len(applied.Updated) > 0 {
			s.logger.ErrorContext(ctx, "stock applied but receipt status not persisted", slog.String("batch_id", batchID), slog.Any("error", err))
		}
		return ReceiptHeader{}, err
	}
	if unchanged {
		return updated, nil
	}

	s.recordAudit(ctx, "RECEIPT_STATUS", batchID, map[string]any{"from": previous, "to": next})
	if s.metrics != nil {
		s.metrics.StatusChanged(string(next))
		if next.IsBooked() {
			s.metrics.LedgerApplied(len(applied.Updated), len(applied.Missing))
		}
	}
	if next.IsBooked() {
		for _, sku := range applied.Missing {
			s.logger.WarnContext(ctx, "booked receipt line has no stock item", slog.String("batch_id", batchID), slog.String("sku", sku))
		}
		s.recordAudit(ctx, "RECEIPT_BOOKED", batchID, map[string]any{"updated": len(applied.Updated), "missing": applied.Missing})
		s.syncOrder(ctx, updated, receipt.Items)
	}
	return updated, nil
}

// ReviewReceipt re-derives the suggestion for a stored batch. An open ticket pulls it to Falsch geliefert.
func (s *Service) ReviewReceipt(ctx context.Context, batchID string) (Reconciliation, error) {
	receipt, err := s.repo.GetReceipt(ctx, batchID)
	if err != nil {
		return Reconciliation{}, err
	}
	lines := make([]CartLine, 0, len(receipt.Items))
	for _, item := range receipt.Items {
		lines = append(lines, CartLine{
			SKU:              item.SKU,
			Name:             item.Name,
			QuantityReceived: item.Quantity,
			IsDamaged:        item.IsDamaged,
			IssueNotes:       item.IssueNotes,
			TargetLocation:   item.TargetLocation,
		})
	}
	lines, _, err = s.resolveOrder(ctx, receipt.Header.BestellNr, lines, false)
	if err != nil {
		return Reconciliation{}, err
	}
	rec := Reconcile(lines, receipt.Header.Linked())
	if s.tickets != nil {
		open, err := s.tickets.HasOpenTicket(ctx, batchID)
		if err != nil {
			return Reconciliation{}, err
		}
		rec.OpenTicket = open
		if open {
			rec.Suggested = StatusMisdelivered
		}
	}
	return rec, nil
}

// AddComment appends an operator note, call or email record to the batch trail.
func (s *Service) AddComment(ctx context.Context, batchID string, input CommentInput) (ReceiptComment, error) {
	input.Text = strings.TrimSpace(input.Text)
	if err := shared.Validate(input); err != nil {
		return ReceiptComment{}, err
	}
	comment := ReceiptComment{
		ID:        s.ids(),
		BatchID:   batchID,
		Author:    defaultString(input.Author, shared.ActorFromContext(ctx)),
		Text:      input.Text,
		Type:      CommentType(defaultString(string(input.Type), string(CommentNote))),
		Timestamp: s.now(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, ok := tx.GetHeader(batchID); !ok {
			return ErrNotFound
		}
		tx.InsertComment(comment)
		return nil
	})
	if err != nil {
		return ReceiptComment{}, err
	}
	return comment, nil
}

// GetReceipt returns one batch.
func (s *Service) GetReceipt(ctx context.Context, batchID string) (Receipt, error) {
	return s.repo.GetReceipt(ctx, batchID)
}

// ListReceipts returns all headers, newest first.
func (s *Service) ListReceipts(ctx context.Context) ([]ReceiptHeader, error) {
	return s.repo.ListHeaders(ctx)
}

// ListComments returns the batch trail in timestamp order.
func (s *Service) ListComments(ctx context.Context, batchID string) ([]ReceiptComment, error) {
	receipt, err := s.repo.GetReceipt(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return receipt.Comments, nil
}

// ReceiptExists reports whether batchID is known.
func (s *Service) ReceiptExists(ctx context.Context, batchID string) (bool, error) {
	return s.repo.Exists(ctx, batchID)
}

func (s *Service) resolveOrder(ctx context.Context, orderID string, lines []CartLine, requireLinkable bool) ([]CartLine, *procurement.PurchaseOrder, error) {
	if orderID == "" {
		return lines, nil, nil
	}
	if s.orders == nil {
		return nil, nil, errors.New("receiving: purchase orders not configured")
	}
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("receiving: linked order %s: %w", orderID, err)
	}
	if requireLinkable && !order.Status.Linkable() {
		return nil, nil, fmt.Errorf("%w: %s (%s)", ErrOrderNotLinkable, order.ID, order.Status)
	}
	return ResolveOrdered(lines, order), &order, nil
}

func (s *Service) syncOrder(ctx context.Context, header ReceiptHeader, items []ReceiptItem) {
	if !s.syncOrders || !header.Linked() || s.orders == nil {
		return
	}
	received := make([]procurement.ReceivedQuantity, 0, len(items))
	for _, item := range items {
		received = append(received, procurement.ReceivedQuantity{SKU: item.SKU, Qty: item.Quantity})
	}
	order, err := s.orders.RecordReceipt(ctx, header.BestellNr, received)
	if err != nil {
		s.logger.WarnContext(ctx, "purchase order sync failed", slog.String("batch_id", header.BatchID), slog.String("order_id", header.BestellNr), slog.Any("error", err))
		return
	}
	s.logger.InfoContext(ctx, "purchase order synced", slog.String("order_id", order.ID), slog.String("status", string(order.Status)))
}

func (s *Service) systemComment(batchID, author, text string) ReceiptComment {
	return ReceiptComment{
		ID:        s.ids(),
		BatchID:   batchID,
		Author:    author,
		Text:      text,
		Type:      CommentSystem,
		Timestamp: s.now(),
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, batchID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Actor: shared.ActorFromContext(ctx), Action: action, Entity: "goods_receipt", EntityID: batchID, Meta: meta})
}

func ledgerUpdates(header ReceiptHeader, items []ReceiptItem) []catalog.LedgerUpdate {
	updates := make([]catalog.LedgerUpdate, 0, len(items))
	for _, item := range items {
		updates = append(updates, catalog.LedgerUpdate{
			SKU:      item.SKU,
			Qty:      item.Quantity,
			Location: defaultString(item.TargetLocation, header.WarehouseLocation),
		})
	}
	return updates
}

func bookingComment(previous Status, result catalog.ApplyResult) string {
	text := fmt.Sprintf("Status geändert: %s -> %s. Bestand aktualisiert (%d Artikel).", previous, StatusBooked, len(result.Updated))
	if len(result.Missing) > 0 {
		text += " Ohne Lagerartikel übersprungen: " + strings.Join(result.Missing, ", ") + "."
	}
	return text
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
