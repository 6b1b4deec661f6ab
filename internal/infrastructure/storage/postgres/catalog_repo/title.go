// Package catalog_repo provides PostgreSQL implementations for the catalog
// repositories (titles and warehouses).
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"bookledger/internal/core/apperror"
	"bookledger/internal/core/id"
	"bookledger/internal/domain/catalogs/title"
	"bookledger/internal/infrastructure/storage/postgres"
)

const titlesTable = "cat_titles"

var _ title.Repository = (*TitleRepo)(nil)

// TitleRepo implements title.Repository.
type TitleRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewTitleRepo creates a new title catalog repository.
func NewTitleRepo(txm *postgres.TxManager) *TitleRepo {
	return &TitleRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var titleColumns = []string{
	"id", "isbn", "name", "publisher", "rrp", "unit_cost",
	"low_stock_threshold", "active", "created_at", "updated_at",
}

// Create persists a new title.
func (r *TitleRepo) Create(ctx context.Context, t *title.Title) error {
	q := r.builder.Insert(titlesTable).
		Columns(titleColumns...).
		Values(
			t.ID, t.ISBN, t.Name, t.Publisher, t.RRP, t.UnitCost,
			t.LowStockThreshold, t.Active, t.CreatedAt, t.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert title: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate("title", "isbn", t.ISBN)
		}
		return fmt.Errorf("insert title: %w", err)
	}

	return nil
}

// Update persists title changes. Identity columns are never touched.
func (r *TitleRepo) Update(ctx context.Context, t *title.Title) error {
	q := r.builder.Update(titlesTable).
		Set("name", t.Name).
		Set("publisher", t.Publisher).
		Set("rrp", t.RRP).
		Set("unit_cost", t.UnitCost).
		Set("low_stock_threshold", t.LowStockThreshold).
		Set("active", t.Active).
		Set("updated_at", t.UpdatedAt).
		Where(squirrel.Eq{"id": t.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update title: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update title: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("title", t.ID.String())
	}

	return nil
}

// GetByID retrieves a title by id.
func (r *TitleRepo) GetByID(ctx context.Context, titleID id.ID) (*title.Title, error) {
	return r.getOne(ctx, squirrel.Eq{"id": titleID}, titleID.String())
}

// GetByISBN retrieves a title by ISBN.
func (r *TitleRepo) GetByISBN(ctx context.Context, isbn string) (*title.Title, error) {
	return r.getOne(ctx, squirrel.Eq{"isbn": isbn}, isbn)
}

func (r *TitleRepo) getOne(ctx context.Context, where squirrel.Eq, key string) (*title.Title, error) {
	q := r.builder.Select(titleColumns...).
		From(titlesTable).
		Where(where).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get title: %w", err)
	}

	var t title.Title
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("title", key)
		}
		return nil, fmt.Errorf("get title: %w", err)
	}

	return &t, nil
}

// List retrieves titles matching the filter, ordered by name.
func (r *TitleRepo) List(ctx context.Context, filter title.ListFilter) ([]*title.Title, error) {
	q := r.builder.Select(titleColumns...).From(titlesTable)

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"isbn": pattern},
		})
	}
	if filter.ActiveOnly {
		q = q.Where(squirrel.Eq{"active": true})
	}

	q = q.OrderBy("name ASC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list titles: %w", err)
	}

	var titles []*title.Title
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &titles, sql, args...); err != nil {
		return nil, fmt.Errorf("list titles: %w", err)
	}

	return titles, nil
}

// Delete removes a title. Fails with a conflict if the ledger references it.
func (r *TitleRepo) Delete(ctx context.Context, titleID id.ID) error {
	q := r.builder.Delete(titlesTable).Where(squirrel.Eq{"id": titleID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete title: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return apperror.NewConflict("title has ledger entries and cannot be deleted")
		}
		return fmt.Errorf("delete title: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("title", titleID.String())
	}

	return nil
}
