package procurement

import (
	"errors"
	"time"
)

// POStatus is the purchase order lifecycle status.
type POStatus string

const (
	POStatusOpen      POStatus = "Offen"
	POStatusPartial   POStatus = "Teilweise geliefert"
	POStatusClosed    POStatus = "Abgeschlossen"
	POStatusCancelled POStatus = "Storniert"
)

// IsValid checks if the status is known.
func (s POStatus) IsValid() bool {
	switch s {
	case POStatusOpen, POStatusPartial, POStatusClosed, POStatusCancelled:
		return true
	default:
		return false
	}
}

// Linkable reports whether a goods receipt may still reference an order in this status.
func (s POStatus) Linkable() bool {
	return s != POStatusClosed && s != POStatusCancelled
}

// PurchaseOrder is a procurement request with its ordered lines.
type PurchaseOrder struct {
	ID                   string              `json:"id"`
	Supplier             string              `json:"supplier"`
	Status               POStatus            `json:"status"`
	DateCreated          time.Time           `json:"dateCreated"`
	ExpectedDeliveryDate *time.Time          `json:"expectedDeliveryDate,omitempty"`
	Items                []PurchaseOrderItem `json:"items"`
}

// PurchaseOrderItem is one ordered sku.
type PurchaseOrderItem struct {
	SKU              string `json:"sku"`
	Name             string `json:"name"`
	QuantityExpected int    `json:"quantityExpected"`
	// QuantityReceived is the running total over all booked receipts referencing the order.
	QuantityReceived int `json:"quantityReceived"`
}

// ExpectedQuantity returns the ordered quantity for sku, summed over duplicate lines.
func (o PurchaseOrder) ExpectedQuantity(sku string) (int, bool) {
	total, found := 0, false
	for _, item := range o.Items {
		if item.SKU == sku {
			total += item.QuantityExpected
			found = true
		}
	}
	return total, found
}

// FullyReceived reports whether every line received at least what was ordered.
func (o PurchaseOrder) FullyReceived() bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, item := range o.Items {
		if item.QuantityReceived < item.QuantityExpected {
			return false
		}
	}
	return true
}

// ReceivedQuantity is a booked quantity for one sku of an order.
type ReceivedQuantity struct {
	SKU string
	Qty int
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("procurement: purchase order not found")
	// ErrDuplicateID rejects a second order with the same business key.
	ErrDuplicateID = errors.New("procurement: purchase order id already exists")
	// ErrInvalidStatus rejects unknown order statuses.
	ErrInvalidStatus = errors.New("procurement: invalid purchase order status")
)
