package title

import (
	"context"

	"bookledger/internal/core/apperror"
	"bookledger/internal/core/id"
	"bookledger/pkg/logger"
)

// Service provides business logic for the Title catalog.
type Service struct {
	repo Repository
}

// NewService creates a new Title service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates and persists a new title.
func (s *Service) Create(ctx context.Context, t *Title) error {
	if err := t.Validate(ctx); err != nil {
		return err
	}

	if existing, err := s.repo.GetByISBN(ctx, t.ISBN); err == nil && existing != nil {
		return apperror.NewDuplicate("title", "isbn", t.ISBN)
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return err
	}

	logger.Info(ctx, "title created", "id", t.ID, "isbn", t.ISBN)
	return nil
}

// Update validates and persists title changes. ISBN is immutable.
func (s *Service) Update(ctx context.Context, t *Title) error {
	if err := t.Validate(ctx); err != nil {
		return err
	}

	current, err := s.repo.GetByID(ctx, t.ID)
	if err != nil {
		return err
	}
	if current.ISBN != t.ISBN {
		return apperror.NewValidation("isbn cannot be changed").WithDetail("field", "isbn")
	}

	return s.repo.Update(ctx, t)
}

// GetByID retrieves a title.
func (s *Service) GetByID(ctx context.Context, titleID id.ID) (*Title, error) {
	return s.repo.GetByID(ctx, titleID)
}

// GetByISBN retrieves a title by catalog identifier.
func (s *Service) GetByISBN(ctx context.Context, isbn string) (*Title, error) {
	return s.repo.GetByISBN(ctx, isbn)
}

// List retrieves titles with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Title, error) {
	return s.repo.List(ctx, filter)
}

// Delete removes a title. Cascades to its inventory snapshots at the store level.
func (s *Service) Delete(ctx context.Context, titleID id.ID) error {
	if _, err := s.repo.GetByID(ctx, titleID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, titleID)
}
