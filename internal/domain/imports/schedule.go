package imports

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"bookledger/internal/core/apperror"
	"bookledger/internal/core/id"
	"bookledger/pkg/logger"
)

// ScheduleImport registers a recurring import. The cron expression is
// validated and NextRunAt computed up front so due checks are a plain
// timestamp comparison.
func (s *Service) ScheduleImport(ctx context.Context, cfg SyncConfig) (*SyncConfig, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if strings.TrimSpace(cfg.SourceURI) == "" {
		return nil, apperror.NewValidation("sourceUri is required").WithDetail("field", "sourceUri")
	}

	schedule, err := cron.ParseStandard(cfg.CronExpr)
	if err != nil {
		return nil, apperror.NewValidation("invalid cron expression").
			WithDetail("field", "cronExpr").
			WithDetail("value", cfg.CronExpr).
			WithCause(err)
	}

	now := time.Now().UTC()
	cfg.ID = id.New()
	cfg.Enabled = true
	cfg.NextRunAt = schedule.Next(now)
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	if err := s.repo.CreateSyncConfig(ctx, &cfg); err != nil {
		return nil, err
	}

	logger.Info(ctx, "import scheduled",
		"config_id", cfg.ID,
		"name", cfg.Name,
		"cron", cfg.CronExpr,
		"next_run_at", cfg.NextRunAt,
	)
	return &cfg, nil
}

// ListSyncConfigs lists sync configurations, optionally only enabled ones.
func (s *Service) ListSyncConfigs(ctx context.Context, enabledOnly bool) ([]*SyncConfig, error) {
	return s.repo.ListSyncConfigs(ctx, enabledOnly)
}

// GetDueSyncConfigurations lists enabled configurations whose next run is due.
func (s *Service) GetDueSyncConfigurations(ctx context.Context, now time.Time) ([]*SyncConfig, error) {
	return s.repo.ListDueSyncConfigs(ctx, now)
}

// RunScheduledSyncs advances the bookkeeping for every due configuration:
// LastRunAt is stamped and NextRunAt recomputed from the cron expression.
// Fetching and importing the source file is the runner's job; it receives the
// due configurations and reports per-config outcomes itself.
func (s *Service) RunScheduledSyncs(ctx context.Context, now time.Time) ([]*SyncConfig, error) {
	due, err := s.repo.ListDueSyncConfigs(ctx, now)
	if err != nil {
		return nil, err
	}

	var advanced []*SyncConfig
	for _, cfg := range due {
		schedule, err := cron.ParseStandard(cfg.CronExpr)
		if err != nil {
			// A stored expression that no longer parses is disabled rather
			// than retried forever.
			cfg.Enabled = false
			cfg.UpdatedAt = now
			if uerr := s.repo.UpdateSyncConfig(ctx, cfg); uerr != nil {
				return nil, uerr
			}
			logger.Error(ctx, "sync configuration disabled: unparseable cron expression",
				"config_id", cfg.ID,
				"cron", cfg.CronExpr,
			)
			continue
		}

		ts := now
		cfg.LastRunAt = &ts
		cfg.NextRunAt = schedule.Next(now)
		cfg.UpdatedAt = now
		if err := s.repo.UpdateSyncConfig(ctx, cfg); err != nil {
			return nil, err
		}
		advanced = append(advanced, cfg)

		logger.Info(ctx, "scheduled sync due",
			"config_id", cfg.ID,
			"name", cfg.Name,
			"next_run_at", cfg.NextRunAt,
		)
	}

	return advanced, nil
}
