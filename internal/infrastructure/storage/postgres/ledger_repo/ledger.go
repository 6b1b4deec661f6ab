// Package ledger_repo provides the PostgreSQL implementation of the stock
// ledger repository: append-only movements plus derived inventory snapshots.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"bookledger/internal/core/apperror"
	"bookledger/internal/core/id"
	"bookledger/internal/domain/ledger"
	"bookledger/internal/infrastructure/storage/postgres"
)

const (
	movementsTable = "stock_movements"
	snapshotsTable = "inventory_snapshots"
)

// Compile-time check.
var _ ledger.Repository = (*LedgerRepo)(nil)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewLedgerRepo creates a new ledger repository.
func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var movementColumns = []string{
	"id", "title_id", "warehouse_id", "movement_type", "quantity",
	"movement_date", "channel", "unit_cost", "price",
	"source_warehouse_id", "destination_warehouse_id",
	"reference", "notes", "actor_id", "reversal_of", "created_at",
}

// InsertMovement appends one ledger entry. The table carries no UPDATE or
// DELETE path in this codebase: corrections are compensating entries.
func (r *LedgerRepo) InsertMovement(ctx context.Context, m *ledger.StockMovement) error {
	q := r.builder.Insert(movementsTable).
		Columns(movementColumns...).
		Values(
			m.ID, m.TitleID, m.WarehouseID, m.Type, m.Quantity,
			m.MovementDate, m.Channel, m.UnitCost, m.Price,
			m.SourceWarehouseID, m.DestinationWarehouseID,
			m.Reference, m.Notes, m.ActorID, m.ReversalOf, m.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert movement: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate("stock movement", "id", m.ID.String())
		}
		return fmt.Errorf("insert movement: %w", err)
	}

	return nil
}

// GetMovement retrieves one entry by id.
func (r *LedgerRepo) GetMovement(ctx context.Context, movementID id.ID) (*ledger.StockMovement, error) {
	q := r.builder.Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"id": movementID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get movement: %w", err)
	}

	var m ledger.StockMovement
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &m, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock movement", movementID.String())
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}

	return &m, nil
}

// ListMovements retrieves entries matching the filter.
func (r *LedgerRepo) ListMovements(ctx context.Context, filter ledger.MovementFilter) ([]*ledger.StockMovement, error) {
	q := r.builder.Select(movementColumns...).From(movementsTable)

	if filter.TitleID != nil {
		q = q.Where(squirrel.Eq{"title_id": *filter.TitleID})
	}
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if len(filter.Types) > 0 {
		q = q.Where(squirrel.Eq{"movement_type": filter.Types})
	}
	if filter.Reference != "" {
		q = q.Where(squirrel.Eq{"reference": filter.Reference})
	}
	if filter.ReversalOf != nil {
		q = q.Where(squirrel.Eq{"reversal_of": *filter.ReversalOf})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"movement_date": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.LtOrEq{"movement_date": *filter.To})
	}

	// Secondary order on created_at keeps same-day entries in commit order.
	if filter.Descending {
		q = q.OrderBy("movement_date DESC", "created_at DESC")
	} else {
		q = q.OrderBy("movement_date ASC", "created_at ASC")
	}

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list movements: %w", err)
	}

	var movements []*ledger.StockMovement
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}

	return movements, nil
}

// SumQuantities returns the signed sum of committed quantities for a pair.
func (r *LedgerRepo) SumQuantities(ctx context.Context, titleID, warehouseID id.ID) (int64, error) {
	sql := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM stock_movements
		WHERE title_id = $1 AND warehouse_id = $2
	`

	var sum int64
	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, titleID, warehouseID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum quantities: %w", err)
	}

	return sum, nil
}

var snapshotColumns = []string{
	"id", "title_id", "warehouse_id", "current_stock", "reserved_stock",
	"average_cost", "total_value", "last_movement_at", "updated_at",
}

// GetSnapshot returns the snapshot for a pair, NotFound if absent.
func (r *LedgerRepo) GetSnapshot(ctx context.Context, titleID, warehouseID id.ID) (*ledger.Inventory, error) {
	q := r.builder.Select(snapshotColumns...).
		From(snapshotsTable).
		Where(squirrel.Eq{"title_id": titleID, "warehouse_id": warehouseID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get snapshot: %w", err)
	}

	var inv ledger.Inventory
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &inv, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("inventory snapshot", titleID.String()+"/"+warehouseID.String())
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	return &inv, nil
}

const lockSnapshotSQL = `
	SELECT id, title_id, warehouse_id, current_stock, reserved_stock,
	       average_cost, total_value, last_movement_at, updated_at
	FROM inventory_snapshots
	WHERE title_id = $1 AND warehouse_id = $2
	FOR UPDATE
`

// seedSnapshotSQL materializes the row for a pair's first movement. FOR UPDATE
// cannot lock a row that does not exist, so returning a zero-value snapshot
// from memory would let two inaugural movements both read stock 0 and the
// later upsert overwrite the earlier one. DO NOTHING makes a concurrent
// seeder fall through to the locking re-read, where the two serialize.
const seedSnapshotSQL = `
	INSERT INTO inventory_snapshots
		(id, title_id, warehouse_id, current_stock, reserved_stock,
		 average_cost, total_value, last_movement_at, updated_at)
	VALUES ($1, $2, $3, 0, 0, 0, 0, now(), now())
	ON CONFLICT (title_id, warehouse_id) DO NOTHING
`

// GetSnapshotForUpdate returns the snapshot with a row lock. A pair that has
// never moved gets a zero-value row seeded inside the caller's transaction,
// so the returned snapshot is always backed by a real lock.
func (r *LedgerRepo) GetSnapshotForUpdate(ctx context.Context, titleID, warehouseID id.ID) (*ledger.Inventory, error) {
	querier := r.txm.GetQuerier(ctx)

	var inv ledger.Inventory
	err := pgxscan.Get(ctx, querier, &inv, lockSnapshotSQL, titleID, warehouseID)
	if err == nil {
		return &inv, nil
	}
	if !pgxscan.NotFound(err) {
		return nil, fmt.Errorf("get snapshot for update: %w", err)
	}

	if _, err := querier.Exec(ctx, seedSnapshotSQL, id.New(), titleID, warehouseID); err != nil {
		return nil, fmt.Errorf("seed snapshot: %w", err)
	}
	if err := pgxscan.Get(ctx, querier, &inv, lockSnapshotSQL, titleID, warehouseID); err != nil {
		return nil, fmt.Errorf("lock seeded snapshot: %w", err)
	}

	return &inv, nil
}

// UpsertSnapshot persists the snapshot. The (title_id, warehouse_id) pair is
// unique; the first movement inserts, later ones update in place.
func (r *LedgerRepo) UpsertSnapshot(ctx context.Context, inv *ledger.Inventory) error {
	sql := `
		INSERT INTO inventory_snapshots
			(id, title_id, warehouse_id, current_stock, reserved_stock,
			 average_cost, total_value, last_movement_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (title_id, warehouse_id) DO UPDATE SET
			current_stock    = EXCLUDED.current_stock,
			reserved_stock   = EXCLUDED.reserved_stock,
			average_cost     = EXCLUDED.average_cost,
			total_value      = EXCLUDED.total_value,
			last_movement_at = EXCLUDED.last_movement_at,
			updated_at       = EXCLUDED.updated_at
	`

	querier := r.txm.GetQuerier(ctx)
	_, err := querier.Exec(ctx, sql,
		inv.ID, inv.TitleID, inv.WarehouseID, inv.CurrentStock, inv.ReservedStock,
		inv.AverageCost, inv.TotalValue, inv.LastMovementAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}

	return nil
}

// ListSnapshots returns snapshots matching the filter, heaviest stock first.
func (r *LedgerRepo) ListSnapshots(ctx context.Context, filter ledger.SnapshotFilter) ([]*ledger.Inventory, error) {
	q := r.builder.Select(snapshotColumns...).From(snapshotsTable)

	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.TitleID != nil {
		q = q.Where(squirrel.Eq{"title_id": *filter.TitleID})
	}
	if filter.ExcludeZero {
		q = q.Where(squirrel.Or{
			squirrel.NotEq{"current_stock": 0},
			squirrel.NotEq{"reserved_stock": 0},
		})
	}

	q = q.OrderBy("current_stock DESC", "title_id ASC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list snapshots: %w", err)
	}

	var snapshots []*ledger.Inventory
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &snapshots, sql, args...); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	return snapshots, nil
}
