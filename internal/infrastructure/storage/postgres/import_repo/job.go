// Package import_repo provides the PostgreSQL implementation of the import
// pipeline repository: jobs, their per-row issues, and sync configurations.
package import_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"bookledger/internal/core/apperror"
	"bookledger/internal/core/id"
	"bookledger/internal/domain/imports"
	"bookledger/internal/infrastructure/storage/postgres"
)

const (
	jobsTable   = "import_jobs"
	issuesTable = "import_job_issues"
	syncsTable  = "import_sync_configs"
)

var _ imports.Repository = (*ImportRepo)(nil)

// ImportRepo implements imports.Repository. Row errors and warnings live in a
// child table written with COPY; a finished job with thousands of rejected
// rows is one bulk write, not thousands of INSERTs.
type ImportRepo struct {
	txm      *postgres.TxManager
	inserter *postgres.BatchInserter
	builder  squirrel.StatementBuilderType
}

// NewImportRepo creates a new import repository.
func NewImportRepo(txm *postgres.TxManager) *ImportRepo {
	return &ImportRepo{
		txm:      txm,
		inserter: postgres.NewBatchInserter(txm),
		builder:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var jobColumns = []string{
	"id", "reference", "file_name", "status",
	"total_rows", "success_count", "failure_count", "skipped_count",
	"total_quantity", "by_type", "by_warehouse",
	"payload", "retry_of", "created_by", "created_at", "started_at", "finished_at",
}

const (
	severityError   = "error"
	severityWarning = "warning"
)

var issueColumns = []string{"job_id", "severity", "code", "row_num", "field", "message"}

// CreateJob persists a new import job. Issues are written by UpdateJob once
// the run has produced them.
func (r *ImportRepo) CreateJob(ctx context.Context, job *imports.Job) error {
	q := r.builder.Insert(jobsTable).
		Columns(jobColumns...).
		Values(
			job.ID, job.Reference, job.FileName, job.Status,
			job.TotalRows, job.SuccessCount, job.FailureCount, job.SkippedCount,
			job.TotalQuantity, job.ByType, job.ByWarehouse,
			job.Payload, job.RetryOf, job.CreatedBy, job.CreatedAt, job.StartedAt, job.FinishedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert job: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate("import job", "reference", job.Reference)
		}
		return fmt.Errorf("insert job: %w", err)
	}

	return nil
}

// UpdateJob persists job progress and replaces its recorded issues.
// Counters and issues are written in one transaction so a job row never shows
// failures its issue list does not explain.
func (r *ImportRepo) UpdateJob(ctx context.Context, job *imports.Job) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.builder.Update(jobsTable).
			Set("status", job.Status).
			Set("total_rows", job.TotalRows).
			Set("success_count", job.SuccessCount).
			Set("failure_count", job.FailureCount).
			Set("skipped_count", job.SkippedCount).
			Set("total_quantity", job.TotalQuantity).
			Set("by_type", job.ByType).
			Set("by_warehouse", job.ByWarehouse).
			Set("started_at", job.StartedAt).
			Set("finished_at", job.FinishedAt).
			Where(squirrel.Eq{"id": job.ID})

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build update job: %w", err)
		}

		querier := r.txm.GetQuerier(ctx)
		result, err := querier.Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("update job: %w", err)
		}
		if result.RowsAffected() == 0 {
			return apperror.NewNotFound("import job", job.ID.String())
		}

		if _, err := querier.Exec(ctx, "DELETE FROM "+issuesTable+" WHERE job_id = $1", job.ID); err != nil {
			return fmt.Errorf("clear job issues: %w", err)
		}

		rows := make([][]any, 0, len(job.Errors)+len(job.Warnings))
		for _, e := range job.Errors {
			rows = append(rows, []any{job.ID, severityError, "", e.Row, e.Field, e.Message})
		}
		for _, w := range job.Warnings {
			rows = append(rows, []any{job.ID, severityWarning, w.Code, w.Row, w.Field, w.Message})
		}
		if len(rows) == 0 {
			return nil
		}

		if _, err := r.inserter.CopyFromSlice(ctx, issuesTable, issueColumns, rows); err != nil {
			return fmt.Errorf("copy job issues: %w", err)
		}
		return nil
	})
}

// GetJob retrieves a job by id, including its recorded issues.
func (r *ImportRepo) GetJob(ctx context.Context, jobID id.ID) (*imports.Job, error) {
	q := r.builder.Select(jobColumns...).
		From(jobsTable).
		Where(squirrel.Eq{"id": jobID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get job: %w", err)
	}

	var job imports.Job
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &job, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("import job", jobID.String())
		}
		return nil, fmt.Errorf("get job: %w", err)
	}

	if err := r.loadIssues(ctx, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs retrieves jobs matching the filter, newest first. Issue lists are
// not loaded here; the list view shows counters only.
func (r *ImportRepo) ListJobs(ctx context.Context, filter imports.JobFilter) ([]*imports.Job, error) {
	q := r.builder.Select(jobColumns...).From(jobsTable)

	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}

	q = q.OrderBy("created_at DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list jobs: %w", err)
	}

	var jobs []*imports.Job
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &jobs, sql, args...); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	return jobs, nil
}

type dbIssue struct {
	Severity string `db:"severity"`
	Code     string `db:"code"`
	RowNum   int    `db:"row_num"`
	Field    string `db:"field"`
	Message  string `db:"message"`
}

func (r *ImportRepo) loadIssues(ctx context.Context, job *imports.Job) error {
	q := r.builder.Select("severity", "code", "row_num", "field", "message").
		From(issuesTable).
		Where(squirrel.Eq{"job_id": job.ID}).
		OrderBy("row_num ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build load issues: %w", err)
	}

	var issues []*dbIssue
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &issues, sql, args...); err != nil {
		return fmt.Errorf("load issues: %w", err)
	}

	for _, issue := range issues {
		switch issue.Severity {
		case severityWarning:
			job.Warnings = append(job.Warnings, apperror.Warning{
				Code:    issue.Code,
				Message: issue.Message,
				Field:   issue.Field,
				Row:     issue.RowNum,
			})
		default:
			job.Errors = append(job.Errors, imports.RowError{
				Row:     issue.RowNum,
				Message: issue.Message,
				Field:   issue.Field,
			})
		}
	}
	return nil
}
