package receiving

import (
	"errors"
	"time"
)

// ReceiptHeader is one delivery event (a goods-receipt batch).
type ReceiptHeader struct {
	BatchID           string    `json:"batchId"`
	LieferscheinNr    string    `json:"lieferscheinNr"`
	BestellNr         string    `json:"bestellNr,omitempty"`
	Lieferdatum       time.Time `json:"lieferdatum"`
	Lieferant         string    `json:"lieferant"`
	WarehouseLocation string    `json:"warehouseLocation"`
	Status            Status    `json:"status"`
	Timestamp         time.Time `json:"timestamp"`
	ItemCount         int       `json:"itemCount"`
	CreatedByName     string    `json:"createdByName"`
}

// Linked reports whether the batch references a purchase order.
func (h ReceiptHeader) Linked() bool {
	return h.BestellNr != ""
}

// ReceiptItem is one received line of a batch.
type ReceiptItem struct {
	ID             string `json:"id"`
	BatchID        string `json:"batchId"`
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	TargetLocation string `json:"targetLocation"`
	IsDamaged      bool   `json:"isDamaged,omitempty"`
	IssueNotes     string `json:"issueNotes,omitempty"`
}

// CommentType classifies entries in the receipt trail.
type CommentType string

const (
	CommentNote   CommentType = "note"
	CommentCall   CommentType = "call"
	CommentEmail  CommentType = "email"
	CommentSystem CommentType = "system"
)

// ReceiptComment is an immutable entry in a batch's trail.
type ReceiptComment struct {
	ID        string      `json:"id"`
	BatchID   string      `json:"batchId"`
	Author    string      `json:"author"`
	Text      string      `json:"text"`
	Type      CommentType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// Receipt bundles a header with its lines and trail.
type Receipt struct {
	Header   ReceiptHeader    `json:"header"`
	Items    []ReceiptItem    `json:"items"`
	Comments []ReceiptComment `json:"comments"`
}

// CartLine is one line of a receipt draft.
type CartLine struct {
	SKU              string `validate:"required"`
	Name             string
	QuantityReceived int `validate:"gte=0"`
	// QuantityOrdered is nil when the receipt has no linked order or the sku is not on it.
	QuantityOrdered *int
	IsDamaged       bool
	IssueNotes      string
	TargetLocation  string
}

// HasIssue reports whether the line was flagged as damaged or carries any issue note, blank ones included.
func (l CartLine) HasIssue() bool {
	return l.IsDamaged || l.IssueNotes != ""
}

// Draft is a receipt under construction, before it is persisted.
type Draft struct {
	BestellNr string
	Lines     []CartLine
}

var (
	// ErrNotFound indicates the batch does not exist.
	ErrNotFound = errors.New("receiving: receipt not found")
	// ErrEmptyCart rejects receipts without lines.
	ErrEmptyCart = errors.New("receiving: receipt needs at least one line")
	// ErrInvalidStatus rejects statuses outside the enumeration.
	ErrInvalidStatus = errors.New("receiving: invalid receipt status")
	// ErrBookedImmutable rejects any status change after booking.
	ErrBookedImmutable = errors.New("receiving: booked receipt cannot change status")
	// ErrOrderNotLinkable rejects links to closed or cancelled purchase orders.
	ErrOrderNotLinkable = errors.New("receiving: purchase order is closed or cancelled")
)
