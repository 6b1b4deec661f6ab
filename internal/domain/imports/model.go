// Package imports provides the bulk CSV import pipeline for monthly
// movement files, plus cron-driven sync scheduling bookkeeping.
package imports

import (
	"time"

	"bookledger/internal/core/apperror"
	"bookledger/internal/core/id"
	"bookledger/internal/domain/ledger"
)

// JobStatus is the lifecycle state of an import job.
type JobStatus string

const (
	StatusPending             JobStatus = "pending"
	StatusProcessing          JobStatus = "processing"
	StatusCompleted           JobStatus = "completed"
	StatusCompletedWithErrors JobStatus = "completed_with_errors"
	StatusFailed              JobStatus = "failed"
)

// RowError records one rejected row of an import file.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Job is one import run. Jobs are immutable once finished: a retry creates a
// new job pointing back via RetryOf.
type Job struct {
	ID        id.ID  `db:"id" json:"id"`
	Reference string `db:"reference" json:"reference"`

	FileName string    `db:"file_name" json:"fileName"`
	Status   JobStatus `db:"status" json:"status"`

	TotalRows    int `db:"total_rows" json:"totalRows"`
	SuccessCount int `db:"success_count" json:"successCount"`
	FailureCount int `db:"failure_count" json:"failureCount"`
	SkippedCount int `db:"skipped_count" json:"skippedCount"`

	// TotalQuantity is the absolute number of units moved by committed rows
	TotalQuantity int64 `db:"total_quantity" json:"totalQuantity"`

	// ByType breaks committed units down per movement type
	ByType map[ledger.MovementType]int64 `db:"by_type" json:"byType,omitempty"`

	// ByWarehouse breaks committed units down per warehouse code
	ByWarehouse map[string]WarehouseBreakdown `db:"by_warehouse" json:"byWarehouse,omitempty"`

	Errors   []RowError         `db:"-" json:"errors,omitempty"`
	Warnings []apperror.Warning `db:"-" json:"warnings,omitempty"`

	// Payload retains the raw file so a failed job can be retried
	Payload []byte `db:"payload" json:"-"`

	// RetryOf points at the job this one retries
	RetryOf *id.ID `db:"retry_of" json:"retryOf,omitempty"`

	CreatedBy  string     `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	StartedAt  *time.Time `db:"started_at" json:"startedAt,omitempty"`
	FinishedAt *time.Time `db:"finished_at" json:"finishedAt,omitempty"`
}

// WarehouseBreakdown splits one warehouse's committed units by direction.
type WarehouseBreakdown struct {
	Inbound  int64 `json:"inbound"`
	Outbound int64 `json:"outbound"`
}

// recordCommitted folds one committed movement into the job's quantity
// aggregates.
func (j *Job) recordCommitted(req ledger.MovementRequest, warehouseCode string) {
	qty := req.Quantity
	if qty < 0 {
		qty = -qty
	}
	j.TotalQuantity += qty

	if j.ByType == nil {
		j.ByType = make(map[ledger.MovementType]int64)
	}
	j.ByType[req.Type] += qty

	if j.ByWarehouse == nil {
		j.ByWarehouse = make(map[string]WarehouseBreakdown)
	}
	b := j.ByWarehouse[warehouseCode]
	if req.Quantity > 0 {
		b.Inbound += qty
	} else {
		b.Outbound += qty
	}
	j.ByWarehouse[warehouseCode] = b
}

// SyncConfig is a scheduled recurring import. The pipeline only does the
// cron bookkeeping; fetching the source file is the runner's concern.
type SyncConfig struct {
	ID   id.ID  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`

	// CronExpr is a standard 5-field cron expression
	CronExpr string `db:"cron_expr" json:"cronExpr"`

	// SourceURI locates the file to import on each run
	SourceURI string `db:"source_uri" json:"sourceUri"`

	Enabled bool `db:"enabled" json:"enabled"`

	LastRunAt *time.Time `db:"last_run_at" json:"lastRunAt,omitempty"`
	NextRunAt time.Time  `db:"next_run_at" json:"nextRunAt"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
