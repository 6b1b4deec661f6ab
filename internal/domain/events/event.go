// Package events provides the in-process distribution hub for committed
// stock changes. The hub is a fan-out of already-committed facts: it holds
// no locks across delivery and never affects the originating commit.
package events

import (
	"time"

	"bookledger/internal/core/id"
)

// EventType tags the kind of stock change being announced.
type EventType string

const (
	EventStockMovement    EventType = "stock_movement"
	EventStockReversal    EventType = "stock_reversal"
	EventTransferExecuted EventType = "transfer_executed"
	EventTransferReceived EventType = "transfer_received"
	EventValuationChange  EventType = "valuation_change"
)

// StockChange announces one committed change to an inventory snapshot.
type StockChange struct {
	Type          EventType `json:"type"`
	InventoryID   id.ID     `json:"inventoryId"`
	TitleID       id.ID     `json:"titleId"`
	WarehouseID   id.ID     `json:"warehouseId"`
	PreviousStock int64     `json:"previousStock"`
	NewStock      int64     `json:"newStock"`
	ChangeAmount  int64     `json:"changeAmount"`
	Reason        string    `json:"reason"`
	Timestamp     time.Time `json:"timestamp"`
}

// Delta returns the absolute magnitude of the stock change.
func (e StockChange) Delta() int64 {
	d := e.ChangeAmount
	if d < 0 {
		return -d
	}
	return d
}
