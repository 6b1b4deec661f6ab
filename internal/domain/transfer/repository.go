package transfer

import (
	"context"

	"bookledger/internal/core/id"
)

// Repository defines persistence operations for transfer workflow records.
type Repository interface {
	// Create persists a new transfer record
	Create(ctx context.Context, t *Transfer) error

	// Update persists workflow state changes
	Update(ctx context.Context, t *Transfer) error

	// GetByID retrieves a transfer by id, NotFound if absent
	GetByID(ctx context.Context, transferID id.ID) (*Transfer, error)

	// GetByReference retrieves a transfer by its reference number
	GetByReference(ctx context.Context, reference string) (*Transfer, error)

	// List retrieves transfers matching the filter, newest first
	List(ctx context.Context, filter ListFilter) ([]*Transfer, error)
}

// ListFilter narrows List.
type ListFilter struct {
	Status                 *Status
	TitleID                *id.ID
	SourceWarehouseID      *id.ID
	DestinationWarehouseID *id.ID
	Limit                  int
	Offset                 int
}
