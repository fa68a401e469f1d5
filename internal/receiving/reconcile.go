package receiving

import "github.com/odyssey-erp/wareneingang/internal/procurement"

// Banner is the pre-submit delivery feedback shown while the cart is edited.
type Banner string

const (
	BannerNone    Banner = ""
	BannerPartial Banner = "partial"
	BannerPerfect Banner = "perfect"
)

// LineDelta compares one line against its ordered quantity.
type LineDelta struct {
	SKU      string
	Received int
	Ordered  int
	// HasOrder is false when the line has no ordered quantity; such lines carry no shortage or overage.
	HasOrder bool
	Shortage int
	Overage  int
}

// Reconciliation is the review-step result for a cart.
type Reconciliation struct {
	Lines         []LineDelta
	LinkedPO      bool
	TotalOrdered  int
	TotalReceived int
	TotalShortage int
	TotalOverage  int
	HasIssues     bool
	OpenTicket    bool
	Suggested     Status
	Banner        Banner
}

// ComputeLineDelta returns shortage and overage of line.
func ComputeLineDelta(line CartLine) LineDelta {
	delta := LineDelta{SKU: line.SKU, Received: line.QuantityReceived}
	if line.QuantityOrdered == nil {
		return delta
	}
	delta.HasOrder = true
	delta.Ordered = *line.QuantityOrdered
	delta.Shortage = max(0, delta.Ordered-delta.Received)
	delta.Overage = max(0, delta.Received-delta.Ordered)
	return delta
}

// SuggestStatus derives the advisory status of a cart. The first matching rule wins:
// flagged lines, then unlinked receipts, then the ordered/received totals.
func SuggestStatus(cart []CartLine, linkedPO bool) Status {
	for _, line := range cart {
		if line.HasIssue() {
			return StatusMisdelivered
		}
	}
	if !linkedPO {
		return StatusBooked
	}
	var ordered, received int
	for _, line := range cart {
		received += line.QuantityReceived
		if line.QuantityOrdered != nil {
			ordered += *line.QuantityOrdered
		}
	}
	switch {
	case received < ordered:
		return StatusPartial
	case received > ordered:
		return StatusOverDelivery
	default:
		return StatusBooked
	}
}

// DeliveryFeedbackBanner returns BannerPartial when any line is short, BannerPerfect when every line
// matches its ordered quantity exactly and BannerNone otherwise, including pure over-delivery.
func DeliveryFeedbackBanner(cart []CartLine, linkedPO bool) Banner {
	if !linkedPO || len(cart) == 0 {
		return BannerNone
	}
	perfect := true
	for _, line := range cart {
		delta := ComputeLineDelta(line)
		if delta.Shortage > 0 {
			return BannerPartial
		}
		if !delta.HasOrder || delta.Overage > 0 {
			perfect = false
		}
	}
	if perfect {
		return BannerPerfect
	}
	return BannerNone
}

// Reconcile runs every check of the review step over cart.
func Reconcile(cart []CartLine, linkedPO bool) Reconciliation {
	rec := Reconciliation{
		Lines:     make([]LineDelta, 0, len(cart)),
		LinkedPO:  linkedPO,
		Suggested: SuggestStatus(cart, linkedPO),
		Banner:    DeliveryFeedbackBanner(cart, linkedPO),
	}
	for _, line := range cart {
		delta := ComputeLineDelta(line)
		rec.Lines = append(rec.Lines, delta)
		rec.TotalReceived += delta.Received
		if line.HasIssue() {
			rec.HasIssues = true
		}
		if !delta.HasOrder {
			continue
		}
		rec.TotalOrdered += delta.Ordered
		rec.TotalShortage += delta.Shortage
		rec.TotalOverage += delta.Overage
	}
	return rec
}

// ResolveOrdered fills QuantityOrdered from order for every line whose sku is on it.
// Lines for skus the order does not carry keep a nil ordered quantity.
func ResolveOrdered(cart []CartLine, order procurement.PurchaseOrder) []CartLine {
	out := make([]CartLine, len(cart))
	for i, line := range cart {
		if line.QuantityOrdered == nil {
			if expected, ok := order.ExpectedQuantity(line.SKU); ok {
				qty := expected
				line.QuantityOrdered = &qty
			}
		}
		out[i] = line
	}
	return out
}
