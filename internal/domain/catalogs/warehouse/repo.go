package warehouse

import (
	"context"

	"bookledger/internal/core/id"
)

// Repository defines persistence operations for the Warehouse catalog.
type Repository interface {
	Create(ctx context.Context, w *Warehouse) error
	Update(ctx context.Context, w *Warehouse) error
	GetByID(ctx context.Context, warehouseID id.ID) (*Warehouse, error)
	GetByCode(ctx context.Context, code string) (*Warehouse, error)
	List(ctx context.Context, filter ListFilter) ([]*Warehouse, error)
	Delete(ctx context.Context, warehouseID id.ID) error
}

// ListFilter narrows List results.
type ListFilter struct {
	Status  *Status
	Channel string
	Limit   int
	Offset  int
}
