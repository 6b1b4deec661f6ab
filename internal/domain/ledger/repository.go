package ledger

import (
	"context"
	"time"

	"bookledger/internal/core/id"
)

// Repository defines persistence operations for the stock ledger.
// Implementations must provide atomic read-modify-write on one snapshot row:
// GetSnapshotForUpdate takes a row lock (or equivalent) so two concurrent
// commits against the same (title, warehouse) pair cannot interleave.
type Repository interface {
	// Movement operations (append-only: no update, no delete)

	// InsertMovement appends one ledger entry
	InsertMovement(ctx context.Context, m *StockMovement) error

	// GetMovement retrieves one entry by id
	GetMovement(ctx context.Context, movementID id.ID) (*StockMovement, error)

	// ListMovements retrieves entries matching the filter, ordered by
	// movement date (ascending unless filter says otherwise)
	ListMovements(ctx context.Context, filter MovementFilter) ([]*StockMovement, error)

	// SumQuantities returns the signed sum of committed quantities for a
	// pair (used to verify the ledger-derivation invariant)
	SumQuantities(ctx context.Context, titleID, warehouseID id.ID) (int64, error)

	// Snapshot operations

	// GetSnapshot returns the snapshot for a pair, NotFound if absent
	GetSnapshot(ctx context.Context, titleID, warehouseID id.ID) (*Inventory, error)

	// GetSnapshotForUpdate returns the snapshot with a row lock. A pair
	// that has never moved gets a zero-value snapshot created within the
	// ambient transaction, so the lock is real even on the first movement
	GetSnapshotForUpdate(ctx context.Context, titleID, warehouseID id.ID) (*Inventory, error)

	// UpsertSnapshot persists the snapshot (insert on first movement)
	UpsertSnapshot(ctx context.Context, inv *Inventory) error

	// ListSnapshots returns snapshots matching the filter
	ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]*Inventory, error)
}

// MovementFilter narrows ListMovements.
type MovementFilter struct {
	TitleID     *id.ID
	WarehouseID *id.ID
	Types       []MovementType
	Reference   string
	ReversalOf  *id.ID
	From        *time.Time
	To          *time.Time
	Descending  bool
	Limit       int
	Offset      int
}

// SnapshotFilter narrows ListSnapshots.
type SnapshotFilter struct {
	WarehouseID *id.ID
	TitleID     *id.ID
	ExcludeZero bool
	Limit       int
	Offset      int
}
