package imports

import (
	"context"
	"time"

	"bookledger/internal/core/id"
)

// Repository defines persistence operations for import jobs and sync
// configurations.
type Repository interface {
	// CreateJob persists a new import job
	CreateJob(ctx context.Context, job *Job) error

	// UpdateJob persists job progress and final counters
	UpdateJob(ctx context.Context, job *Job) error

	// GetJob retrieves a job by id, NotFound if absent
	GetJob(ctx context.Context, jobID id.ID) (*Job, error)

	// ListJobs retrieves jobs matching the filter, newest first
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)

	// CreateSyncConfig persists a new sync configuration
	CreateSyncConfig(ctx context.Context, cfg *SyncConfig) error

	// UpdateSyncConfig persists run bookkeeping changes
	UpdateSyncConfig(ctx context.Context, cfg *SyncConfig) error

	// GetSyncConfig retrieves a sync configuration by id
	GetSyncConfig(ctx context.Context, configID id.ID) (*SyncConfig, error)

	// ListSyncConfigs retrieves all sync configurations
	ListSyncConfigs(ctx context.Context, enabledOnly bool) ([]*SyncConfig, error)

	// ListDueSyncConfigs retrieves enabled configurations with NextRunAt at
	// or before the given instant
	ListDueSyncConfigs(ctx context.Context, now time.Time) ([]*SyncConfig, error)
}

// JobFilter narrows ListJobs.
type JobFilter struct {
	Status *JobStatus
	Limit  int
	Offset int
}
