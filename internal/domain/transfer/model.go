// Package transfer orchestrates inter-warehouse stock moves. A transfer is a
// workflow record layered over the ledger: the two WAREHOUSE_TRANSFER entries
// it produces are the source of truth for stock, while the record carries the
// workflow state, estimates and tracking metadata.
package transfer

import (
	"time"

	"bookledger/internal/core/id"
	"bookledger/internal/core/types"
)

// Status is the workflow state of a transfer.
type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusApproved  Status = "APPROVED"
	StatusInTransit Status = "IN_TRANSIT"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// transitions is the allowed state machine. Any pair not listed is rejected.
var transitions = map[Status][]Status{
	StatusRequested: {StatusApproved, StatusCancelled},
	StatusApproved:  {StatusInTransit, StatusCancelled},
	StatusInTransit: {StatusCompleted},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Priority drives cost and duration estimates.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// ValidPriority reports whether p is a known priority.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Tracking is carrier metadata attached while a transfer is in transit.
type Tracking struct {
	Carrier         string     `db:"carrier" json:"carrier,omitempty"`
	TrackingNumber  string     `db:"tracking_number" json:"trackingNumber,omitempty"`
	CurrentLocation string     `db:"current_location" json:"currentLocation,omitempty"`
	ETA             *time.Time `db:"eta" json:"eta,omitempty"`
}

// Analytics is computed once at completion.
type Analytics struct {
	// ActualDuration is wall time between execution and completion
	ActualDuration time.Duration `db:"actual_duration" json:"actualDuration"`

	// OnTime is true when completion beat the estimate (or the tracked ETA)
	OnTime bool `db:"on_time" json:"onTime"`

	// EfficiencyScore is estimated/actual as a 0-100 score, 100 = on budget
	EfficiencyScore int `db:"efficiency_score" json:"efficiencyScore"`
}

// Transfer is one inter-warehouse move workflow record.
type Transfer struct {
	ID        id.ID  `db:"id" json:"id"`
	Reference string `db:"reference" json:"reference"`

	TitleID                id.ID `db:"title_id" json:"titleId"`
	SourceWarehouseID      id.ID `db:"source_warehouse_id" json:"sourceWarehouseId"`
	DestinationWarehouseID id.ID `db:"destination_warehouse_id" json:"destinationWarehouseId"`

	Quantity int64    `db:"quantity" json:"quantity"`
	Priority Priority `db:"priority" json:"priority"`
	Status   Status   `db:"status" json:"status"`

	CostEstimate      types.Money   `db:"cost_estimate" json:"costEstimate"`
	EstimatedDuration time.Duration `db:"estimated_duration" json:"estimatedDuration"`

	// UnitCost is the source pair's average cost captured at execution,
	// carried onto the inbound leg so destination valuation blends correctly.
	UnitCost *types.Money `db:"unit_cost" json:"unitCost,omitempty"`

	RequestedBy string     `db:"requested_by" json:"requestedBy"`
	RequestedAt time.Time  `db:"requested_at" json:"requestedAt"`
	ApprovedBy  string     `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt  *time.Time `db:"approved_at" json:"approvedAt,omitempty"`

	// ScheduledFor is an optional planned execution time set at approval
	ScheduledFor *time.Time `db:"scheduled_for" json:"scheduledFor,omitempty"`

	ExecutedBy  string     `db:"executed_by" json:"executedBy,omitempty"`
	ExecutedAt  *time.Time `db:"executed_at" json:"executedAt,omitempty"`
	CompletedBy string     `db:"completed_by" json:"completedBy,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`

	CancelledBy  string     `db:"cancelled_by" json:"cancelledBy,omitempty"`
	CancelledAt  *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CancelReason string     `db:"cancel_reason" json:"cancelReason,omitempty"`

	Tracking  Tracking   `db:"-" json:"tracking"`
	Analytics *Analytics `db:"-" json:"analytics,omitempty"`

	// Ledger correlation: both legs carry Reference, these close the loop
	OutboundMovementID *id.ID `db:"outbound_movement_id" json:"outboundMovementId,omitempty"`
	InboundMovementID  *id.ID `db:"inbound_movement_id" json:"inboundMovementId,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// IsTerminal reports whether the transfer can change state again.
func (t *Transfer) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusCancelled
}
