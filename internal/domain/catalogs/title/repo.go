package title

import (
	"context"

	"bookledger/internal/core/id"
)

// Repository defines persistence operations for the Title catalog.
type Repository interface {
	Create(ctx context.Context, t *Title) error
	Update(ctx context.Context, t *Title) error
	GetByID(ctx context.Context, titleID id.ID) (*Title, error)
	GetByISBN(ctx context.Context, isbn string) (*Title, error)
	List(ctx context.Context, filter ListFilter) ([]*Title, error)
	Delete(ctx context.Context, titleID id.ID) error
}

// ListFilter narrows List results.
type ListFilter struct {
	Search     string
	ActiveOnly bool
	Limit      int
	Offset     int
}
