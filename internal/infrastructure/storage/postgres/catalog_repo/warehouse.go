package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"bookledger/internal/core/apperror"
	"bookledger/internal/core/id"
	"bookledger/internal/domain/catalogs/warehouse"
	"bookledger/internal/infrastructure/storage/postgres"
)

const warehousesTable = "cat_warehouses"

var _ warehouse.Repository = (*WarehouseRepo)(nil)

// WarehouseRepo implements warehouse.Repository. The channels column is a
// text[]; pgx maps it to []string directly.
type WarehouseRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewWarehouseRepo creates a new warehouse catalog repository.
func NewWarehouseRepo(txm *postgres.TxManager) *WarehouseRepo {
	return &WarehouseRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var warehouseColumns = []string{
	"id", "code", "name", "address", "status", "channels",
	"created_at", "updated_at",
}

// Create persists a new warehouse.
func (r *WarehouseRepo) Create(ctx context.Context, w *warehouse.Warehouse) error {
	q := r.builder.Insert(warehousesTable).
		Columns(warehouseColumns...).
		Values(w.ID, w.Code, w.Name, w.Address, w.Status, w.Channels, w.CreatedAt, w.UpdatedAt)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert warehouse: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate("warehouse", "code", w.Code)
		}
		return fmt.Errorf("insert warehouse: %w", err)
	}

	return nil
}

// Update persists warehouse changes. Code is immutable once created.
func (r *WarehouseRepo) Update(ctx context.Context, w *warehouse.Warehouse) error {
	q := r.builder.Update(warehousesTable).
		Set("name", w.Name).
		Set("address", w.Address).
		Set("status", w.Status).
		Set("channels", w.Channels).
		Set("updated_at", w.UpdatedAt).
		Where(squirrel.Eq{"id": w.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update warehouse: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update warehouse: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("warehouse", w.ID.String())
	}

	return nil
}

// GetByID retrieves a warehouse by id.
func (r *WarehouseRepo) GetByID(ctx context.Context, warehouseID id.ID) (*warehouse.Warehouse, error) {
	return r.getOne(ctx, squirrel.Eq{"id": warehouseID}, warehouseID.String())
}

// GetByCode retrieves a warehouse by its short code.
func (r *WarehouseRepo) GetByCode(ctx context.Context, code string) (*warehouse.Warehouse, error) {
	return r.getOne(ctx, squirrel.Eq{"code": code}, code)
}

func (r *WarehouseRepo) getOne(ctx context.Context, where squirrel.Eq, key string) (*warehouse.Warehouse, error) {
	q := r.builder.Select(warehouseColumns...).
		From(warehousesTable).
		Where(where).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get warehouse: %w", err)
	}

	var w warehouse.Warehouse
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &w, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("warehouse", key)
		}
		return nil, fmt.Errorf("get warehouse: %w", err)
	}

	return &w, nil
}

// List retrieves warehouses matching the filter, ordered by code.
func (r *WarehouseRepo) List(ctx context.Context, filter warehouse.ListFilter) ([]*warehouse.Warehouse, error) {
	q := r.builder.Select(warehouseColumns...).From(warehousesTable)

	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.Channel != "" {
		// Empty channels array means the warehouse serves every channel.
		q = q.Where(squirrel.Or{
			squirrel.Expr("channels = '{}'"),
			squirrel.Expr("? = ANY(channels)", filter.Channel),
		})
	}

	q = q.OrderBy("code ASC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list warehouses: %w", err)
	}

	var warehouses []*warehouse.Warehouse
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &warehouses, sql, args...); err != nil {
		return nil, fmt.Errorf("list warehouses: %w", err)
	}

	return warehouses, nil
}

// Delete removes a warehouse. Fails with a conflict if stock references it.
func (r *WarehouseRepo) Delete(ctx context.Context, warehouseID id.ID) error {
	q := r.builder.Delete(warehousesTable).Where(squirrel.Eq{"id": warehouseID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete warehouse: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return apperror.NewConflict("warehouse has ledger entries and cannot be deleted")
		}
		return fmt.Errorf("delete warehouse: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("warehouse", warehouseID.String())
	}

	return nil
}
