package catalog

import (
	"errors"
	"time"
)

// ItemStatus marks how a stock item was last touched.
type ItemStatus string

const (
	// ItemStatusActive is the status of imported and newly created items.
	ItemStatusActive ItemStatus = "Active"
	// ItemStatusBooked is set once a goods receipt has been booked onto the item.
	ItemStatusBooked ItemStatus = "Gebucht"
)

// StockItem is a stocked article keyed by SKU.
type StockItem struct {
	ID                string     `json:"id"`
	SKU               string     `json:"sku"`
	Name              string     `json:"name"`
	System            string     `json:"system"`
	Category          string     `json:"category"`
	StockLevel        int        `json:"stockLevel"`
	MinStock          int        `json:"minStock"`
	WarehouseLocation string     `json:"warehouseLocation,omitempty"`
	Manufacturer      string     `json:"manufacturer,omitempty"`
	IsAkku            bool       `json:"isAkku"`
	CapacityAh        float64    `json:"capacityAh,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	LastUpdated       time.Time  `json:"lastUpdated"`
	Status            ItemStatus `json:"status"`
}

// BelowMinimum reports whether the item reached its reorder threshold.
func (i StockItem) BelowMinimum() bool {
	return i.StockLevel <= i.MinStock
}

// LedgerUpdate is one booked receipt line headed for the stock table.
type LedgerUpdate struct {
	SKU      string
	Qty      int
	Location string
}

// ApplyResult reports what a ledger application touched.
type ApplyResult struct {
	Updated []StockItem
	// Missing lists skus that had no stock item; their quantities were not applied.
	Missing []string
}

// NewItemInput describes an ad-hoc stock item created during order or receipt entry.
type NewItemInput struct {
	SKU      string `validate:"required"`
	Name     string `validate:"required"`
	System   string
	Category string
	Location string
}

var (
	// ErrNotFound indicates the sku has no stock item.
	ErrNotFound = errors.New("catalog: stock item not found")
	// ErrNegativeLevel rejects manual corrections below zero.
	ErrNegativeLevel = errors.New("catalog: stock level must be >= 0")
	// ErrImportNotArray rejects import payloads that are not a JSON array.
	ErrImportNotArray = errors.New("catalog: import payload must be an array of records")
	// ErrImportMissingSKU rejects import payloads whose first record has no sku column.
	ErrImportMissingSKU = errors.New("catalog: import records must carry a sku field")
	// ErrImportEmpty rejects import payloads without records.
	ErrImportEmpty = errors.New("catalog: import payload contains no records")
)
