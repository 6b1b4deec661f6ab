package warehouse

import (
	"context"

	"bookledger/internal/core/apperror"
	"bookledger/internal/core/id"
	"bookledger/pkg/logger"
)

// Service provides business logic for the Warehouse catalog.
type Service struct {
	repo Repository
}

// NewService creates a new Warehouse service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates and persists a new warehouse.
func (s *Service) Create(ctx context.Context, w *Warehouse) error {
	if err := w.Validate(ctx); err != nil {
		return err
	}

	if existing, err := s.repo.GetByCode(ctx, w.Code); err == nil && existing != nil {
		return apperror.NewDuplicate("warehouse", "code", w.Code)
	}

	if err := s.repo.Create(ctx, w); err != nil {
		return err
	}

	logger.Info(ctx, "warehouse created", "id", w.ID, "code", w.Code)
	return nil
}

// Update validates and persists warehouse changes.
func (s *Service) Update(ctx context.Context, w *Warehouse) error {
	if err := w.Validate(ctx); err != nil {
		return err
	}
	return s.repo.Update(ctx, w)
}

// GetByID retrieves a warehouse.
func (s *Service) GetByID(ctx context.Context, warehouseID id.ID) (*Warehouse, error) {
	return s.repo.GetByID(ctx, warehouseID)
}

// GetByCode retrieves a warehouse by its short code.
func (s *Service) GetByCode(ctx context.Context, code string) (*Warehouse, error) {
	return s.repo.GetByCode(ctx, code)
}

// List retrieves warehouses with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Warehouse, error) {
	return s.repo.List(ctx, filter)
}

// Delete removes a warehouse. Cascades to its inventory snapshots at the store level.
func (s *Service) Delete(ctx context.Context, warehouseID id.ID) error {
	if _, err := s.repo.GetByID(ctx, warehouseID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, warehouseID)
}
