package observability

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Metrics collects Prometheus counters for the receiving workflow.
type Metrics struct {
	registry      *prometheus.Registry
	receiptsTotal *prometheus.CounterVec
	statusChanges *prometheus.CounterVec
	ledgerLines   *prometheus.CounterVec
	ticketEvents  *prometheus.CounterVec
}

// NewMetrics initialises the registry and the workflow counters.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	receipts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wareneingang_receipts_submitted_total",
		Help: "Submitted receipt batches by suggested status.",
	}, []string{"suggested"})
	changes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wareneingang_receipt_status_changes_total",
		Help: "Receipt status transitions by target status.",
	}, []string{"to"})
	ledger := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wareneingang_ledger_lines_total",
		Help: "Booked receipt lines by outcome.",
	}, []string{"outcome"})
	tickets := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wareneingang_ticket_events_total",
		Help: "Ticket lifecycle events.",
	}, []string{"event"})
	registry.MustRegister(receipts, changes, ledger, tickets)
	return &Metrics{
		registry:      registry,
		receiptsTotal: receipts,
		statusChanges: changes,
		ledgerLines:   ledger,
		ticketEvents:  tickets,
	}
}

// ReceiptSubmitted counts a new batch.
func (m *Metrics) ReceiptSubmitted(suggested string) {
	if m == nil {
		return
	}
	m.receiptsTotal.WithLabelValues(suggested).Inc()
}

// StatusChanged counts a header transition.
func (m *Metrics) StatusChanged(to string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(to).Inc()
}

// LedgerApplied counts lines applied to and skipped by the stock table.
func (m *Metrics) LedgerApplied(updated, missing int) {
	if m == nil {
		return
	}
	m.ledgerLines.WithLabelValues("updated").Add(float64(updated))
	m.ledgerLines.WithLabelValues("missing").Add(float64(missing))
}

// TicketEvent counts opened, closed and reopened cases.
func (m *Metrics) TicketEvent(event string) {
	if m == nil {
		return
	}
	m.ticketEvents.WithLabelValues(event).Inc()
}

// Registerer exposes the registry for custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// WriteText dumps every collected family in the Prometheus text format.
func (m *Metrics) WriteText(w io.Writer) error {
	if m == nil {
		return nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(w, family); err != nil {
			return err
		}
	}
	return nil
}
