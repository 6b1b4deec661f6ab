// Package warehouse provides the Warehouse catalog.
// Warehouses are stock locations with an operational status and the set of
// sales channels they may fulfill.
package warehouse

import (
	"context"
	"time"

	"bookledger/internal/core/apperror"
	"bookledger/internal/core/id"
)

// Status defines the operational state of a warehouse.
type Status string

const (
	StatusActive      Status = "active"
	StatusInactive    Status = "inactive"
	StatusMaintenance Status = "maintenance"
)

// Warehouse represents a stock location.
type Warehouse struct {
	ID id.ID `db:"id" json:"id"`

	// Code is the unique short identifier used in imports and references
	Code string `db:"code" json:"code"`

	Name    string `db:"name" json:"name"`
	Address string `db:"address" json:"address,omitempty"`

	Status Status `db:"status" json:"status"`

	// Channels lists the sales channels this warehouse may fulfill
	// (e.g. "online", "retail", "wholesale", "export")
	Channels []string `db:"channels" json:"channels"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewWarehouse creates a new Warehouse with required fields.
func NewWarehouse(code, name string) *Warehouse {
	now := time.Now().UTC()
	return &Warehouse{
		ID:        id.New(),
		Code:      code,
		Name:      name,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks warehouse invariants.
func (w *Warehouse) Validate(ctx context.Context) error {
	if w.Code == "" {
		return apperror.NewValidation("code is required").WithDetail("field", "code")
	}
	if w.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	switch w.Status {
	case StatusActive, StatusInactive, StatusMaintenance:
	default:
		return apperror.NewValidation("invalid warehouse status").
			WithDetail("field", "status").
			WithDetail("value", string(w.Status))
	}
	return nil
}

// IsOperational returns true if the warehouse can take stock movements.
func (w *Warehouse) IsOperational() bool {
	return w.Status == StatusActive
}

// ServesChannel returns true if the warehouse fulfills the given channel.
// An empty channel list means the warehouse serves every channel.
func (w *Warehouse) ServesChannel(channel string) bool {
	if len(w.Channels) == 0 {
		return true
	}
	for _, c := range w.Channels {
		if c == channel {
			return true
		}
	}
	return false
}
