// Package ledger provides the stock ledger: every stock-affecting event is an
// immutable, append-only StockMovement, and the Inventory snapshot for each
// (title, warehouse) pair is derived from the signed sum of its committed
// movements. The Service in this package is the single committer of ledger
// state; corrections are made by appending compensating reversal entries,
// never by editing history.
package ledger

import (
	"time"

	"bookledger/internal/core/id"
	"bookledger/internal/core/types"
)

// MovementType tags the business event behind a ledger entry.
type MovementType string

const (
	// TypeReceipt is an inbound delivery from a printer or supplier
	TypeReceipt MovementType = "RECEIPT"
	// TypeReprint is an inbound delivery of a reprint run
	TypeReprint MovementType = "REPRINT"
	// TypeSale is an outbound sale through a channel
	TypeSale MovementType = "SALE"
	// TypeTransfer is one leg of an inter-warehouse transfer
	TypeTransfer MovementType = "WAREHOUSE_TRANSFER"
	// TypeAdjustment is a manual stock correction (requires notes)
	TypeAdjustment MovementType = "ADJUSTMENT"
	// TypeWriteOff removes damaged or unsellable stock
	TypeWriteOff MovementType = "WRITE_OFF"
	// TypeFreeCopy is an outbound review/promotional copy
	TypeFreeCopy MovementType = "FREE_COPY"
)

// ValidMovementType reports whether t is a known movement type.
func ValidMovementType(t MovementType) bool {
	switch t {
	case TypeReceipt, TypeReprint, TypeSale, TypeTransfer,
		TypeAdjustment, TypeWriteOff, TypeFreeCopy:
		return true
	}
	return false
}

// IsInboundType reports whether the type always increases stock.
func IsInboundType(t MovementType) bool {
	return t == TypeReceipt || t == TypeReprint
}

// IsOutboundType reports whether the type always decreases stock.
func IsOutboundType(t MovementType) bool {
	return t == TypeSale || t == TypeWriteOff || t == TypeFreeCopy
}

// CanOversell reports whether the type may push current stock below the
// reserved floor. Only manual corrections may: everything else is blocked by
// the available-stock check.
func CanOversell(t MovementType) bool {
	return t == TypeAdjustment || t == TypeWriteOff
}

// StockMovement is one immutable ledger entry. Once committed it is never
// mutated; a correction appends a reversal entry pointing back via ReversalOf.
type StockMovement struct {
	ID id.ID `db:"id" json:"id"`

	TitleID     id.ID `db:"title_id" json:"titleId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	Type MovementType `db:"movement_type" json:"movementType"`

	// Quantity is signed: positive = inbound, negative = outbound
	Quantity int64 `db:"quantity" json:"quantity"`

	// MovementDate is the business date of the event
	MovementDate time.Time `db:"movement_date" json:"movementDate"`

	// Channel is set for sales (online, retail, wholesale, export)
	Channel string `db:"channel" json:"channel,omitempty"`

	// UnitCost and Price are the point-in-time cost snapshot used by
	// FIFO/LIFO layer consumption
	UnitCost *types.Money `db:"unit_cost" json:"unitCost,omitempty"`
	Price    *types.Money `db:"price" json:"price,omitempty"`

	// Transfer legs carry both endpoints so the pair is reconstructible
	// from the ledger alone
	SourceWarehouseID      *id.ID `db:"source_warehouse_id" json:"sourceWarehouseId,omitempty"`
	DestinationWarehouseID *id.ID `db:"destination_warehouse_id" json:"destinationWarehouseId,omitempty"`

	// Reference correlates related entries (transfer pairs, import batches)
	Reference string `db:"reference" json:"reference,omitempty"`

	Notes   string `db:"notes" json:"notes,omitempty"`
	ActorID string `db:"actor_id" json:"actorId,omitempty"`

	// ReversalOf points at the entry this movement compensates
	ReversalOf *id.ID `db:"reversal_of" json:"reversalOf,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// IsReversal reports whether this entry compensates another.
func (m *StockMovement) IsReversal() bool {
	return m.ReversalOf != nil
}

// IsInbound reports whether this entry increases stock.
func (m *StockMovement) IsInbound() bool {
	return m.Quantity > 0
}

// Inventory is the derived snapshot for one (title, warehouse) pair.
// Invariant: CurrentStock equals the signed sum of all committed movement
// quantities for the pair. Mutated only by ledger.Service, inside the same
// transaction that appends the movement.
type Inventory struct {
	ID id.ID `db:"id" json:"id"`

	TitleID     id.ID `db:"title_id" json:"titleId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	// CurrentStock may go negative for oversold states
	CurrentStock int64 `db:"current_stock" json:"currentStock"`

	// ReservedStock is earmarked for pending transfers, never negative
	ReservedStock int64 `db:"reserved_stock" json:"reservedStock"`

	// Cached valuation fields, refreshed on inbound commits and by the
	// valuation engine
	AverageCost types.Money `db:"average_cost" json:"averageCost"`
	TotalValue  types.Money `db:"total_value" json:"totalValue"`

	LastMovementAt time.Time `db:"last_movement_at" json:"lastMovementAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// Available returns stock not earmarked by reservations.
func (inv *Inventory) Available() int64 {
	return inv.CurrentStock - inv.ReservedStock
}
