package receiving

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/wareneingang/internal/catalog"
	"github.com/odyssey-erp/wareneingang/internal/platform/blob"
	"github.com/odyssey-erp/wareneingang/internal/procurement"
	"github.com/odyssey-erp/wareneingang/internal/shared"
)

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func (a *recordingAudit) actions() []string {
	out := make([]string, 0, len(a.logs))
	for _, log := range a.logs {
		out = append(out, log.Action)
	}
	return out
}

type stubTickets struct {
	open map[string]bool
}

func (s stubTickets) HasOpenTicket(ctx context.Context, receiptID string) (bool, error) {
	return s.open[receiptID], nil
}

type recordingLocker struct {
	keys     []string
	released int
	err      error
}

func (l *recordingLocker) Lock(ctx context.Context, key string) (shared.Unlock, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.keys = append(l.keys, key)
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

type fixture struct {
	svc     *Service
	repo    *Repository
	store   *blob.Memory
	catalog *catalog.Service
	orders  *procurement.Service
	audit   *recordingAudit
}

func tickingClock(start time.Time) shared.Clock {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func sequentialIDs(prefix string) shared.IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func newFixture(t *testing.T, configure func(*Options), seed ...catalog.StockItem) *fixture {
	t.Helper()
	store := blob.NewMemory()
	clock := tickingClock(time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC))
	audit := &recordingAudit{}

	stock := catalog.NewService(catalog.NewRepository(store, "test"), audit, catalog.Options{IDs: sequentialIDs("item"), Clock: clock})
	if len(seed) > 0 {
		require.NoError(t, stock.ReplaceAll(context.Background(), seed))
	}
	orders := procurement.NewService(procurement.NewRepository(store, "test"), audit, clock)

	opts := Options{IDs: sequentialIDs("rc"), Clock: clock}
	if configure != nil {
		configure(&opts)
	}
	repo := NewRepository(store, "test")
	return &fixture{
		svc:     NewService(repo, stock, orders, audit, opts),
		repo:    repo,
		store:   store,
		catalog: stock,
		orders:  orders,
		audit:   audit,
	}
}

func (f *fixture) createOrder(t *testing.T, id string, items ...procurement.OrderItemInput) {
	t.Helper()
	_, err := f.orders.CreateOrder(context.Background(), procurement.CreateOrderInput{ID: id, Supplier: "Batterie Süd GmbH", Items: items})
	require.NoError(t, err)
}

func (f *fixture) stockLevel(t *testing.T, sku string) int {
	t.Helper()
	item, err := f.catalog.FindBySKU(context.Background(), sku)
	require.NoError(t, err)
	return item.StockLevel
}

func filter() catalog.StockItem {
	return catalog.StockItem{ID: "X", SKU: "X", Name: "Filter", StockLevel: 10, WarehouseLocation: "R1", Status: catalog.ItemStatusActive}
}

func TestSubmitReceiptBooksExactDeliveryOnce(t *testing.T) {
	f := newFixture(t, nil, filter())
	ctx := context.Background()
	f.createOrder(t, "PO-1", procurement.OrderItemInput{SKU: "X", Quantity: 5})

	receipt, rec, err := f.svc.SubmitReceipt(ctx, SubmitInput{
		Header: HeaderInput{LieferscheinNr: "LS-1", BestellNr: "PO-1", WarehouseLocation: "A"},
		Lines:  []CartLine{{SKU: "X", QuantityReceived: 5}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusBooked, rec.Suggested)
	require.Equal(t, BannerPerfect, rec.Banner)
	require.Equal(t, StatusBooked, receipt.Header.Status)
	require.Equal(t, "Batterie Süd GmbH", receipt.Header.Lieferant)
	require.Equal(t, 1, receipt.Header.ItemCount)
	require.Len(t, receipt.Comments, 2)
	require.Equal(t, CommentSystem, receipt.Comments[1].Type)
	require.Contains(t, receipt.Comments[1].Text, "Bestand aktualisiert")
	require.Equal(t, 15, f.stockLevel(t, "X"))

	item, err := f.catalog.FindBySKU(ctx, "X")
	require.NoError(t, err)
	require.Equal(t, "A", item.WarehouseLocation)
	require.Equal(t, catalog.ItemStatusBooked, item.Status)

	// Re-finalizing the same batch must not apply the ledger again.
	header, err := f.svc.FinalizeReceiptStatus(ctx, receipt.Header.BatchID, StatusBooked)
	require.NoError(t, err)
	require.Equal(t, StatusBooked, header.Status)
	require.Equal(t, 15, f.stockLevel(t, "X"))

	_, err = f.svc.FinalizeReceiptStatus(ctx, receipt.Header.BatchID, StatusComplaint)
	require.ErrorIs(t, err, ErrBookedImmutable)
	require.Equal(t, 15, f.stockLevel(t, "X"))

	comments, err := f.svc.ListComments(ctx, receipt.Header.BatchID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	require.Equal(t, []string{"RECEIPT_CREATE", "RECEIPT_STATUS", "RECEIPT_BOOKED"}, f.audit.actions()[len(f.audit.actions())-3:])
}

func TestPartialDeliveryBooksLater(t *testing.T) {
	f := newFixture(t, nil, filter())
	ctx := context.Background()
	f.createOrder(t, "PO-2", procurement.OrderItemInput{SKU: "X", Quantity: 10})

	receipt, rec, err := f.svc.SubmitReceipt(ctx, SubmitInput{
		Header: HeaderInput{LieferscheinNr: "LS-2", BestellNr: "PO-2"},
		Lines:  []CartLine{{SKU: "X", QuantityReceived: 8}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusPartial, rec.Suggested)
	require.Equal(t, BannerPartial, rec.Banner)
	require.Equal(t, 2, rec.TotalShortage)
	require.Equal(t, StatusPartial, receipt.Header.Status)
	require.Equal(t, 10, f.stockLevel(t, "X"))

	_, err = f.svc.FinalizeReceiptStatus(ctx, receipt.Header.BatchID, StatusBooked)
	require.NoError(t, err)
	require.Equal(t, 18, f.stockLevel(t, "X"))

	_, err = f.svc.FinalizeReceiptStatus(ctx, receipt.Header.BatchID, StatusBooked)
	require.NoError(t, err)
	require.Equal(t, 18, f.stockLevel(t, "X"))
}

func TestSubmitReceiptOverrideStatus(t *testing.T) {
	f := newFixture(t, nil, filter())
	ctx := context.Background()

	receipt, rec, err := f.svc.SubmitReceipt(ctx, SubmitInput{
		Header: HeaderInput{LieferscheinNr: "LS-3"},
		Lines:  []CartLine{{SKU: "X", QuantityReceived: 2}},
		Status: StatusQuarantine,
	})
	require.NoError(t, err)
	require.Equal(t, StatusBooked, rec.Suggested)
	require.Equal(t, StatusQuarantine, receipt.Header.Status)
	require.Equal(t, 10, f.stockLevel(t, "X"))
}

func TestSubmitReceiptCreatesUnknownItems(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	receipt, _, err := f.svc.SubmitReceipt(ctx, SubmitInput{
		Header: HeaderInput{LieferscheinNr: "LS-4", WarehouseLocation: "B2"},
		Lines:  []CartLine{{SKU: "NEW-1", Name: "Akku 24V", QuantityReceived: 3}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusBooked, receipt.Header.Status)

	item, err := f.catalog.FindBySKU(ctx, "NEW-1")
	require.NoError(t, err)
	require.Equal(t, 3, item.StockLevel)
	require.Equal(t, "Akku 24V", item.Name)
	require.Equal(t, "B2", item.WarehouseLocation)
}

func TestBookingSkipsItemsRemovedAfterIntake(t *testing.T) {
	f := newFixture(t, nil, filter())
	ctx := context.Background()

	receipt, _, err := f.svc.SubmitReceipt(ctx, SubmitInput{
		Header: HeaderInput{LieferscheinNr: "LS-5"},
		Lines:  []CartLine{{SKU: "X", QuantityReceived: 1}, {SKU: "GONE", QuantityReceived: 4}},
		Status: StatusInProgress,
	})
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, receipt.Header.Status)
	require.NoError(t, f.catalog.ReplaceAll(ctx, []catalog.StockItem{filter()}))

	header, err := f.svc.FinalizeReceiptStatus(ctx, receipt.Header.BatchID, StatusBooked)
	require.NoError(t, err)
	require.Equal(t, StatusBooked, header.Status)
	require.Equal(t, 11, f.stockLevel(t, "X"))
	_, err = f.catalog.FindBySKU(ctx, "GONE")
	require.ErrorIs(t, err, catalog.ErrNotFound)

	comments, err := f.svc.ListComments(ctx, receipt.Header.BatchID)
	require.NoError(t, err)
	require.Contains(t, comments[len(comments)-1].Text, "GONE")
}

func TestSubmitReceiptRejectsInvalidInput(t *testing.T) {
	f := newFixture(t, nil, filter())
	ctx := context.Background()
	f.createOrder(t, "PO-9", procurement.OrderItemInput{SKU: "X", Quantity: 1})
	_, err := f.orders.UpdateStatus(ctx, "PO-9", procurement.POStatusCancelled)
	require.NoError(t, err)

	_, _, err = f.svc.SubmitReceipt(ctx, SubmitInput{Header: HeaderInput{LieferscheinNr: "LS"}})
	require.ErrorIs(t, err, ErrEmptyCart)

	_, _, err = f.svc.SubmitReceipt(ctx, SubmitInput{Header: HeaderInput{LieferscheinNr: " "}, Lines: []CartLine{{SKU: "X", QuantityReceived: 1}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, _, err = f.svc.SubmitReceipt(ctx, SubmitInput{Header: HeaderInput{LieferscheinNr: "LS"}, Lines: []CartLine{{SKU: "X", QuantityReceived: -1}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, _, err = f.svc.SubmitReceipt(ctx, SubmitInput{Header: HeaderInput{LieferscheinNr: "LS"}, Lines: []CartLine{{SKU: "X", QuantityReceived: 1}}, Status: "Verloren"})
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, _, err = f.svc.SubmitReceipt(ctx, SubmitInput{Header: HeaderInput{LieferscheinNr: "LS", BestellNr: "PO-9"}, Lines: []CartLine{{SKU: "X", QuantityReceived: 1}}})
	require.ErrorIs(t, err, ErrOrderNotLinkable)

	_, _, err = f.svc.SubmitReceipt(ctx, SubmitInput{Header: HeaderInput{LieferscheinNr: "LS", BestellNr: "PO-404"}, Lines: []CartLine{{SKU: "X", QuantityReceived: 1}}})
	require.ErrorIs(t, err, procurement.ErrNotFound)

	headers, err := f.svc.ListReceipts(ctx)
	require.NoError(t, err)
	require.Empty(t, headers)
	require.Equal(t, 10, f.stockLevel(t, "X"))
}

func TestFinalizeRejectsUnknownStatusAndBatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.FinalizeReceiptStatus(ctx, "missing", StatusChecked)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.FinalizeReceiptStatus(ctx, "missing", Status("Verloren"))
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestPurchaseOrderSyncOnBooking(t *testing.T) {
	lines := []CartLine{{SKU: "X", QuantityReceived: 10}, {SKU: "Y", QuantityReceived: 4}}
	items := []procurement.OrderItemInput{{SKU: "X", Quantity: 10}, {SKU: "Y", Quantity: 4}}

	t.Run("enabled", func(t *testing.T) {
		f := newFixture(t, func(o *Options) { o.SyncOrders = true }, filter())
		ctx := context.Background()
		f.createOrder(t, "PO-S", items...)

		_, _, err := f.svc.SubmitReceipt(ctx, SubmitInput{Header: HeaderInput{LieferscheinNr: "LS", BestellNr: "PO-S"}, Lines: lines})
		require.NoError(t, err)
		order, err := f.orders.GetOrder(ctx, "PO-S")
		require.NoError(t, err)
		require.Equal(t, procurement.POStatusClosed, order.Status)
		require.Equal(t, 10, order.Items[0].QuantityReceived)
	})

	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, nil, filter())
		ctx := context.Background()
		f.createOrder(t, "PO-S", items...)

		_, _, err := f.svc.SubmitReceipt(ctx, SubmitInput{Header: HeaderInput{LieferscheinNr: "LS", BestellNr: "PO-S"}, Lines: lines})
		require.NoError(t, err)
		order, err := f.orders.GetOrder(ctx, "PO-S")
		require.NoError(t, err)
		require.Equal(t, procurement.POStatusOpen, order.Status)
		require.Zero(t, order.Items[0].QuantityReceived)
	})

	t.Run("duplicate order lines", func(t *testing.T) {
		f := newFixture(t, func(o *Options) { o.SyncOrders = true }, filter())
		ctx := context.Background()
		f.createOrder(t, "PO-D", procurement.OrderItemInput{SKU: "X", Quantity: 5}, procurement.OrderItemInput{SKU: "X", Quantity: 5})

		_, rec, err := f.svc.SubmitReceipt(ctx, SubmitInput{
			Header: HeaderInput{LieferscheinNr: "LS-D", BestellNr: "PO-D"},
			Lines:  []CartLine{{SKU: "X", QuantityReceived: 10}},
		})
		require.NoError(t, err)
		require.Equal(t, StatusBooked, rec.Suggested)
		require.Equal(t, BannerPerfect, rec.Banner)
		order, err := f.orders.GetOrder(ctx, "PO-D")
		require.NoError(t, err)
		require.Equal(t, procurement.POStatusClosed, order.Status)
		require.Equal(t, 5, order.Items[0].QuantityReceived)
		require.Equal(t, 5, order.Items[1].QuantityReceived)
	})
}

func TestReviewReceiptWithOpenTicket(t *testing.T) {
	tickets := stubTickets{open: map[string]bool{}}
	f := newFixture(t, func(o *Options) { o.Tickets = tickets }, filter())
	ctx := context.Background()
	f.createOrder(t, "PO-R", procurement.OrderItemInput{SKU: "X", Quantity: 3})

	receipt, _, err := f.svc.SubmitReceipt(ctx, SubmitInput{
		Header: HeaderInput{LieferscheinNr: "LS-R", BestellNr: "PO-R"},
		Lines:  []CartLine{{SKU: "X", QuantityReceived: 3}},
		Status: StatusChecked,
	})
	require.NoError(t, err)

	rec, err := f.svc.ReviewReceipt(ctx, receipt.Header.BatchID)
	require.NoError(t, err)
	require.Equal(t, StatusBooked, rec.Suggested)
	require.False(t, rec.OpenTicket)

	tickets.open[receipt.Header.BatchID] = true
	rec, err = f.svc.ReviewReceipt(ctx, receipt.Header.BatchID)
	require.NoError(t, err)
	require.True(t, rec.OpenTicket)
	require.Equal(t, StatusMisdelivered, rec.Suggested)
}

func TestPreviewDoesNotPersist(t *testing.T) {
	f := newFixture(t, nil, filter())
	ctx := context.Background()
	f.createOrder(t, "PO-P", procurement.OrderItemInput{SKU: "X", Quantity: 4})

	rec, err := f.svc.Preview(ctx, Draft{BestellNr: "PO-P", Lines: []CartLine{{SKU: "X", QuantityReceived: 6}}})
	require.NoError(t, err)
	require.Equal(t, StatusOverDelivery, rec.Suggested)
	require.Equal(t, 2, rec.TotalOverage)
	require.Equal(t, BannerNone, rec.Banner)

	_, err = f.svc.Preview(ctx, Draft{})
	require.ErrorIs(t, err, ErrEmptyCart)

	headers, err := f.svc.ListReceipts(ctx)
	require.NoError(t, err)
	require.Empty(t, headers)
}

func TestAddComment(t *testing.T) {
	f := newFixture(t, nil, filter())
	ctx := shared.ContextWithActor(context.Background(), "Lena")

	receipt, _, err := f.svc.SubmitReceipt(ctx, SubmitInput{
		Header: HeaderInput{LieferscheinNr: "LS-C"},
		Lines:  []CartLine{{SKU: "X", QuantityReceived: 1}},
		Status: StatusComplaint,
	})
	require.NoError(t, err)
	require.Equal(t, "Lena", receipt.Header.CreatedByName)

	comment, err := f.svc.AddComment(ctx, receipt.Header.BatchID, CommentInput{Text: "Lieferant angerufen", Type: CommentCall})
	require.NoError(t, err)
	require.Equal(t, "Lena", comment.Author)
	require.Equal(t, CommentCall, comment.Type)

	comment, err = f.svc.AddComment(ctx, receipt.Header.BatchID, CommentInput{Author: "Tom", Text: "Foto angehängt"})
	require.NoError(t, err)
	require.Equal(t, CommentNote, comment.Type)

	_, err = f.svc.AddComment(ctx, receipt.Header.BatchID, CommentInput{Text: "x", Type: CommentSystem})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.svc.AddComment(ctx, receipt.Header.BatchID, CommentInput{Text: "  "})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.svc.AddComment(ctx, "missing", CommentInput{Text: "x"})
	require.ErrorIs(t, err, ErrNotFound)

	comments, err := f.svc.ListComments(ctx, receipt.Header.BatchID)
	require.NoError(t, err)
	require.Len(t, comments, 4)
	for i := 1; i < len(comments); i++ {
		require.True(t, comments[i].Timestamp.After(comments[i-1].Timestamp))
	}
	require.Equal(t, "Foto angehängt", comments[3].Text)
}

func TestFinalizeTakesBatchLock(t *testing.T) {
	locker := &recordingLocker{}
	f := newFixture(t, func(o *Options) { o.Locker = locker }, filter())
	ctx := context.Background()

	receipt, _, err := f.svc.SubmitReceipt(ctx, SubmitInput{
		Header: HeaderInput{LieferscheinNr: "LS-L"},
		Lines:  []CartLine{{SKU: "X", QuantityReceived: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{shared.ReceiptLockKey(receipt.Header.BatchID)}, locker.keys)
	require.Equal(t, 1, locker.released)

	locker.err = errors.New("locked")
	_, err = f.svc.FinalizeReceiptStatus(ctx, receipt.Header.BatchID, StatusChecked)
	require.EqualError(t, err, "locked")
}

func TestRepositoryReloadsPersistedReceipts(t *testing.T) {
	f := newFixture(t, nil, filter())
	ctx := context.Background()

	receipt, _, err := f.svc.SubmitReceipt(ctx, SubmitInput{
		Header: HeaderInput{LieferscheinNr: "LS-P"},
		Lines:  []CartLine{{SKU: "X", QuantityReceived: 2, IssueNotes: "Karton nass"}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusMisdelivered, receipt.Header.Status)

	reloaded := NewRepository(f.store, "test")
	require.NoError(t, reloaded.Load(ctx))
	got, err := reloaded.GetReceipt(ctx, receipt.Header.BatchID)
	require.NoError(t, err)
	require.Equal(t, receipt.Header.BatchID, got.Header.BatchID)
	require.Equal(t, StatusMisdelivered, got.Header.Status)
	require.Len(t, got.Items, 1)
	require.Equal(t, "Karton nass", got.Items[0].IssueNotes)
	require.Len(t, got.Comments, 2)

	exists, err := f.svc.ReceiptExists(ctx, receipt.Header.BatchID)
	require.NoError(t, err)
	require.True(t, exists)
}

// staleReads serves receipts from a snapshot taken before another writer moved the batch on.
type staleReads struct {
	*Repository
	snapshot Receipt
}

func (r staleReads) GetReceipt(ctx context.Context, batchID string) (Receipt, error) {
	return r.snapshot, nil
}

func TestFinalizeRecordsStatusSeenInsideTransaction(t *testing.T) {
	f := newFixture(t, nil, filter())
	ctx := context.Background()
	receipt, _, err := f.svc.SubmitReceipt(ctx, SubmitInput{
		Header: HeaderInput{LieferscheinNr: "LS-C"},
		Lines:  []CartLine{{SKU: "X", QuantityReceived: 1}},
		Status: StatusInProgress,
	})
	require.NoError(t, err)
	batch := receipt.Header.BatchID

	_, err = f.svc.FinalizeReceiptStatus(ctx, batch, StatusQuarantine)
	require.NoError(t, err)

	audit := &recordingAudit{}
	stale := NewService(staleReads{Repository: f.repo, snapshot: receipt}, f.catalog, f.orders, audit, Options{IDs: sequentialIDs("stale"), Clock: tickingClock(time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC))})
	_, err = stale.FinalizeReceiptStatus(ctx, batch, StatusComplaint)
	require.NoError(t, err)

	comments, err := f.svc.ListComments(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, "Status geändert: Quarantäne -> Reklamation", comments[len(comments)-1].Text)
	require.Len(t, audit.logs, 1)
	require.Equal(t, StatusQuarantine, audit.logs[0].Meta["from"])

	_, err = stale.FinalizeReceiptStatus(ctx, batch, StatusComplaint)
	require.NoError(t, err)
	require.Len(t, audit.logs, 1)
}

func TestBlankIssueNoteStillFlagsLine(t *testing.T) {
	f := newFixture(t, nil, filter())
	ctx := context.Background()
	receipt, rec, err := f.svc.SubmitReceipt(ctx, SubmitInput{
		Header: HeaderInput{LieferscheinNr: "LS-W"},
		Lines:  []CartLine{{SKU: "X", QuantityReceived: 1, IssueNotes: " "}},
		Status: StatusInProgress,
	})
	require.NoError(t, err)
	require.Equal(t, StatusMisdelivered, rec.Suggested)
	require.Equal(t, " ", receipt.Items[0].IssueNotes)

	review, err := f.svc.ReviewReceipt(ctx, receipt.Header.BatchID)
	require.NoError(t, err)
	require.Equal(t, StatusMisdelivered, review.Suggested)
}
