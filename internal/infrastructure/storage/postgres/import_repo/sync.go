package import_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"bookledger/internal/core/apperror"
	"bookledger/internal/core/id"
	"bookledger/internal/domain/imports"
	"bookledger/internal/infrastructure/storage/postgres"
)

var syncColumns = []string{
	"id", "name", "cron_expr", "source_uri", "enabled",
	"last_run_at", "next_run_at", "created_at", "updated_at",
}

// CreateSyncConfig persists a new sync configuration.
func (r *ImportRepo) CreateSyncConfig(ctx context.Context, cfg *imports.SyncConfig) error {
	q := r.builder.Insert(syncsTable).
		Columns(syncColumns...).
		Values(
			cfg.ID, cfg.Name, cfg.CronExpr, cfg.SourceURI, cfg.Enabled,
			cfg.LastRunAt, cfg.NextRunAt, cfg.CreatedAt, cfg.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert sync config: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate("sync configuration", "name", cfg.Name)
		}
		return fmt.Errorf("insert sync config: %w", err)
	}

	return nil
}

// UpdateSyncConfig persists run bookkeeping changes.
func (r *ImportRepo) UpdateSyncConfig(ctx context.Context, cfg *imports.SyncConfig) error {
	q := r.builder.Update(syncsTable).
		Set("name", cfg.Name).
		Set("cron_expr", cfg.CronExpr).
		Set("source_uri", cfg.SourceURI).
		Set("enabled", cfg.Enabled).
		Set("last_run_at", cfg.LastRunAt).
		Set("next_run_at", cfg.NextRunAt).
		Set("updated_at", cfg.UpdatedAt).
		Where(squirrel.Eq{"id": cfg.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update sync config: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update sync config: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("sync configuration", cfg.ID.String())
	}

	return nil
}

// GetSyncConfig retrieves a sync configuration by id.
func (r *ImportRepo) GetSyncConfig(ctx context.Context, configID id.ID) (*imports.SyncConfig, error) {
	q := r.builder.Select(syncColumns...).
		From(syncsTable).
		Where(squirrel.Eq{"id": configID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get sync config: %w", err)
	}

	var cfg imports.SyncConfig
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &cfg, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("sync configuration", configID.String())
		}
		return nil, fmt.Errorf("get sync config: %w", err)
	}

	return &cfg, nil
}

// ListSyncConfigs retrieves all sync configurations.
func (r *ImportRepo) ListSyncConfigs(ctx context.Context, enabledOnly bool) ([]*imports.SyncConfig, error) {
	q := r.builder.Select(syncColumns...).From(syncsTable)

	if enabledOnly {
		q = q.Where(squirrel.Eq{"enabled": true})
	}

	q = q.OrderBy("name ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sync configs: %w", err)
	}

	var configs []*imports.SyncConfig
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &configs, sql, args...); err != nil {
		return nil, fmt.Errorf("list sync configs: %w", err)
	}

	return configs, nil
}

// ListDueSyncConfigs retrieves enabled configurations whose next run is at or
// before the given instant, soonest first.
func (r *ImportRepo) ListDueSyncConfigs(ctx context.Context, now time.Time) ([]*imports.SyncConfig, error) {
	q := r.builder.Select(syncColumns...).
		From(syncsTable).
		Where(squirrel.Eq{"enabled": true}).
		Where(squirrel.LtOrEq{"next_run_at": now}).
		OrderBy("next_run_at ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list due sync configs: %w", err)
	}

	var configs []*imports.SyncConfig
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &configs, sql, args...); err != nil {
		return nil, fmt.Errorf("list due sync configs: %w", err)
	}

	return configs, nil
}
