package ledger

import (
	"time"

	"bookledger/internal/core/apperror"
	"bookledger/internal/core/id"
	"bookledger/internal/core/types"
)

// MovementRequest describes one stock-affecting event to commit.
type MovementRequest struct {
	TitleID     id.ID        `json:"titleId"`
	WarehouseID id.ID        `json:"warehouseId"`
	Type        MovementType `json:"movementType"`

	// Quantity is signed: positive = inbound, negative = outbound
	Quantity int64 `json:"quantity"`

	// MovementDate defaults to now when zero
	MovementDate time.Time `json:"movementDate,omitempty"`

	Channel  string       `json:"channel,omitempty"`
	UnitCost *types.Money `json:"unitCost,omitempty"`
	Price    *types.Money `json:"price,omitempty"`

	SourceWarehouseID      *id.ID `json:"sourceWarehouseId,omitempty"`
	DestinationWarehouseID *id.ID `json:"destinationWarehouseId,omitempty"`

	Reference string `json:"referenceNumber,omitempty"`
	Notes     string `json:"notes,omitempty"`
	ActorID   string `json:"actorId,omitempty"`

	// ReleaseReservation is set by the transfer orchestrator on the outbound
	// leg: the committed decrement consumes an existing reservation instead
	// of free stock.
	ReleaseReservation bool `json:"-"`
}

// MovementResult is the outcome of one committed movement.
type MovementResult struct {
	Movement *StockMovement     `json:"movement"`
	Snapshot *Inventory         `json:"inventory"`
	Warnings []apperror.Warning `json:"warnings,omitempty"`
}

// ValidationResult reports rule evaluation without committing.
type ValidationResult struct {
	IsValid  bool               `json:"isValid"`
	Errors   []apperror.Warning `json:"errors,omitempty"`
	Warnings []apperror.Warning `json:"warnings,omitempty"`
}

// BatchOptions controls ProcessBatch behavior.
type BatchOptions struct {
	// ContinueOnError isolates failures per row instead of aborting the batch
	ContinueOnError bool `json:"continueOnError"`

	// ValidateOnly runs the rule set without committing anything
	ValidateOnly bool `json:"validateOnly"`
}

// BatchError records one failed row in a batch.
type BatchError struct {
	Index int                `json:"index"`
	Error *apperror.AppError `json:"error"`
}

// BatchResult aggregates a batch run.
type BatchResult struct {
	Attempted int                `json:"attempted"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Results   []*MovementResult  `json:"results,omitempty"`
	Errors    []BatchError       `json:"errors,omitempty"`
	Warnings  []apperror.Warning `json:"warnings,omitempty"`
}

// RollbackRequest describes a compensation of a committed movement.
type RollbackRequest struct {
	Reason   string `json:"reason"`
	Approver string `json:"approver,omitempty"`

	// CreateReversal false performs a dry run: the original entry is located
	// and validated but no compensating entry is committed.
	CreateReversal bool `json:"createReversal"`
}
