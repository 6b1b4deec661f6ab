package imports

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"bookledger/internal/core/apperror"
	"bookledger/internal/core/id"
	"bookledger/internal/domain/catalogs/title"
	"bookledger/internal/domain/catalogs/warehouse"
	"bookledger/internal/domain/ledger"
	"bookledger/pkg/logger"
	"bookledger/pkg/refnum"
)

// defaultBatchSize is the chunk size handed to the movement service.
const defaultBatchSize = 50

// Options controls one import run.
type Options struct {
	// BatchSize overrides the default commit chunk size
	BatchSize int `json:"batchSize,omitempty"`

	// ContinueOnError isolates failures per row instead of stopping the
	// import at the first failed chunk. Commits are chunk-atomic either
	// way: chunks committed before a stop stay committed.
	ContinueOnError bool `json:"continueOnError"`

	// DryRun validates and resolves everything but commits nothing
	DryRun bool `json:"dryRun"`

	CreatedBy string `json:"createdBy,omitempty"`
}

// Service runs bulk imports through the movement service.
type Service struct {
	repo       Repository
	movements  *ledger.Service
	titles     title.Repository
	warehouses warehouse.Repository
	refs       *refnum.Generator
}

// NewService creates a new import pipeline service.
func NewService(repo Repository, movements *ledger.Service, titles title.Repository, warehouses warehouse.Repository, refs *refnum.Generator) *Service {
	return &Service{
		repo:       repo,
		movements:  movements,
		titles:     titles,
		warehouses: warehouses,
		refs:       refs,
	}
}

// ValidationReport is the outcome of a validate-only pass over a file.
type ValidationReport struct {
	TotalRows int                `json:"totalRows"`
	ValidRows int                `json:"validRows"`
	Errors    []RowError         `json:"errors,omitempty"`
	Warnings  []apperror.Warning `json:"warnings,omitempty"`
}

// ValidateCSV parses the file and runs the full movement rule set on every
// row without committing anything.
func (s *Service) ValidateCSV(ctx context.Context, r io.Reader) (*ValidationReport, error) {
	rows, rowErrs, err := ParseFile(r)
	if err != nil {
		return nil, err
	}

	report := &ValidationReport{
		TotalRows: len(rows) + len(rowErrs),
		Errors:    rowErrs,
	}
	report.Warnings = append(report.Warnings, advisories(rows)...)

	for _, row := range rows {
		req, _, rerr := s.resolveRow(ctx, row)
		if rerr != nil {
			report.Errors = append(report.Errors, *rerr)
			continue
		}
		if row.Quantity == 0 {
			// Zero rows are skipped at import time, not failed.
			report.ValidRows++
			continue
		}
		vr := s.movements.ValidateMovement(ctx, req)
		if !vr.IsValid {
			for _, e := range vr.Errors {
				report.Errors = append(report.Errors, RowError{Row: row.Line, Message: e.Message, Field: e.Field})
			}
			continue
		}
		for _, w := range vr.Warnings {
			w.Row = row.Line
			report.Warnings = append(report.Warnings, w)
		}
		report.ValidRows++
	}

	return report, nil
}

// ProcessMonthlyImport runs a full import: parse, resolve catalog references,
// and commit in chunks through the movement service. The raw payload is
// retained on the job so a failed run can be retried.
func (s *Service) ProcessMonthlyImport(ctx context.Context, fileName string, r io.Reader, opts Options) (*Job, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, apperror.NewValidation("file is not readable").WithCause(err)
	}

	now := time.Now().UTC()
	job := &Job{
		ID:        id.New(),
		Reference: s.nextReference(ctx, now),
		FileName:  fileName,
		Status:    StatusPending,
		Payload:   payload,
		CreatedBy: opts.CreatedBy,
		CreatedAt: now,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	s.run(ctx, job, opts)

	if err := s.repo.UpdateJob(ctx, job); err != nil {
		return nil, err
	}

	logger.Info(ctx, "import finished",
		"job_id", job.ID,
		"reference", job.Reference,
		"status", string(job.Status),
		"succeeded", job.SuccessCount,
		"failed", job.FailureCount,
	)
	return job, nil
}

// RetryImport creates a new job from a finished job's retained payload.
// The original job is never re-run or mutated.
func (s *Service) RetryImport(ctx context.Context, jobID id.ID, opts Options) (*Job, error) {
	orig, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if orig.Status == StatusPending || orig.Status == StatusProcessing {
		return nil, apperror.NewInvalidStateTransition("import job", string(orig.Status), "retry")
	}
	if len(orig.Payload) == 0 {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "original job retained no payload")
	}

	now := time.Now().UTC()
	job := &Job{
		ID:        id.New(),
		Reference: s.nextReference(ctx, now),
		FileName:  orig.FileName,
		Status:    StatusPending,
		Payload:   orig.Payload,
		RetryOf:   &orig.ID,
		CreatedBy: opts.CreatedBy,
		CreatedAt: now,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	s.run(ctx, job, opts)

	if err := s.repo.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob retrieves one import job.
func (s *Service) GetJob(ctx context.Context, jobID id.ID) (*Job, error) {
	return s.repo.GetJob(ctx, jobID)
}

// ListJobs retrieves import jobs matching the filter.
func (s *Service) ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error) {
	return s.repo.ListJobs(ctx, filter)
}

// run executes the parse-resolve-commit pipeline, mutating the job in place.
func (s *Service) run(ctx context.Context, job *Job, opts Options) {
	started := time.Now().UTC()
	job.Status = StatusProcessing
	job.StartedAt = &started

	rows, rowErrs, err := ParseFile(bytes.NewReader(job.Payload))
	if err != nil {
		job.Status = StatusFailed
		job.Errors = append(job.Errors, RowError{Row: 0, Message: err.Error()})
		s.finish(job)
		return
	}

	job.TotalRows = len(rows) + len(rowErrs)
	job.Errors = append(job.Errors, rowErrs...)
	job.FailureCount += len(rowErrs)
	job.Warnings = append(job.Warnings, advisories(rows)...)

	var reqs []ledger.MovementRequest
	var reqLines []int
	var reqCodes []string
	for _, row := range rows {
		if row.Quantity == 0 {
			// Already flagged by advisories; skipped, not failed.
			job.SkippedCount++
			continue
		}
		req, code, rerr := s.resolveRow(ctx, row)
		if rerr != nil {
			job.Errors = append(job.Errors, *rerr)
			job.FailureCount++
			continue
		}
		req.ActorID = job.CreatedBy
		reqs = append(reqs, req)
		reqLines = append(reqLines, row.Line)
		reqCodes = append(reqCodes, code)
	}

	if opts.DryRun {
		for i := range reqs {
			vr := s.movements.ValidateMovement(ctx, reqs[i])
			if vr.IsValid {
				job.SuccessCount++
				continue
			}
			job.FailureCount++
			job.Errors = append(job.Errors, RowError{Row: reqLines[i], Message: vr.Errors[0].Message, Field: vr.Errors[0].Field})
		}
		s.finish(job)
		return
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	for start := 0; start < len(reqs); start += batchSize {
		end := start + batchSize
		if end > len(reqs) {
			end = len(reqs)
		}
		chunk := reqs[start:end]

		res, err := s.movements.ProcessBatch(ctx, chunk, ledger.BatchOptions{ContinueOnError: opts.ContinueOnError})
		if err != nil && !opts.ContinueOnError {
			// Chunk aborted atomically: every row in it counts as failed,
			// and the import stops here. Earlier chunks stay committed.
			job.FailureCount += len(chunk)
			for _, be := range res.Errors {
				job.Errors = append(job.Errors, RowError{Row: reqLines[start+be.Index], Message: be.Error.Message})
			}
			if remaining := len(reqs) - end; remaining > 0 {
				job.Errors = append(job.Errors, RowError{
					Row:     reqLines[end],
					Message: fmt.Sprintf("import stopped, %d later rows not attempted", remaining),
				})
			}
			job.Status = StatusFailed
			break
		}
		job.SuccessCount += res.Succeeded
		job.FailureCount += res.Failed
		failed := make(map[int]struct{}, len(res.Errors))
		for _, be := range res.Errors {
			job.Errors = append(job.Errors, RowError{Row: reqLines[start+be.Index], Message: be.Error.Message})
			failed[be.Index] = struct{}{}
		}
		for i := range chunk {
			if _, ok := failed[i]; ok {
				continue
			}
			job.recordCommitted(chunk[i], reqCodes[start+i])
		}
	}

	s.finish(job)
}

func (s *Service) finish(job *Job) {
	finished := time.Now().UTC()
	job.FinishedAt = &finished

	if job.Status == StatusFailed {
		return
	}
	switch {
	case job.FailureCount == 0:
		job.Status = StatusCompleted
	case job.SuccessCount > 0:
		job.Status = StatusCompletedWithErrors
	default:
		job.Status = StatusFailed
	}
}

// resolveRow maps catalog references (ISBN, warehouse code) to ids and builds
// the movement request. The warehouse code is returned alongside so committed
// rows can be attributed in the job's per-warehouse breakdown.
func (s *Service) resolveRow(ctx context.Context, row Row) (ledger.MovementRequest, string, *RowError) {
	t, err := s.titles.GetByISBN(ctx, row.ISBN)
	if err != nil {
		return ledger.MovementRequest{}, "", &RowError{
			Row:     row.Line,
			Message: fmt.Sprintf("unknown isbn %q", row.ISBN),
			Field:   "isbn",
		}
	}
	wh, err := s.warehouses.GetByCode(ctx, row.WarehouseCode)
	if err != nil {
		return ledger.MovementRequest{}, "", &RowError{
			Row:     row.Line,
			Message: fmt.Sprintf("unknown warehouse code %q", row.WarehouseCode),
			Field:   "warehouseCode",
		}
	}

	req := ledger.MovementRequest{
		TitleID:      t.ID,
		WarehouseID:  wh.ID,
		Type:         ledger.MovementType(row.MovementType),
		Quantity:     row.Quantity,
		MovementDate: row.MovementDate,
		UnitCost:     row.UnitCost,
		Price:        row.RRP,
		Reference:    row.Reference,
	}
	return req, wh.Code, nil
}

// advisories computes file-level warnings: duplicate references, zero
// quantities, and suspiciously large ones.
func advisories(rows []Row) []apperror.Warning {
	var warns []apperror.Warning

	seen := make(map[string]int)
	for _, row := range rows {
		if row.Reference == "" {
			continue
		}
		if first, ok := seen[row.Reference]; ok {
			warns = append(warns, apperror.Warning{
				Code:    apperror.CodeDuplicateReference,
				Message: fmt.Sprintf("reference %q already used at row %d", row.Reference, first),
				Field:   "referenceNumber",
				Row:     row.Line,
			})
			continue
		}
		seen[row.Reference] = row.Line
	}

	for _, row := range rows {
		if row.Quantity == 0 {
			warns = append(warns, apperror.Warning{
				Code:    apperror.CodeZeroQuantity,
				Message: "zero-quantity row will be skipped",
				Field:   "quantity",
				Row:     row.Line,
			})
			continue
		}
		if row.Quantity >= largeQuantityThreshold || row.Quantity <= -largeQuantityThreshold {
			warns = append(warns, apperror.Warning{
				Code:    apperror.CodeLargeQuantity,
				Message: fmt.Sprintf("quantity %d exceeds review threshold", row.Quantity),
				Field:   "quantity",
				Row:     row.Line,
			})
		}
	}

	return warns
}

func (s *Service) nextReference(ctx context.Context, now time.Time) string {
	if s.refs == nil {
		return "IMP-" + id.New().String()
	}
	ref, err := s.refs.Next(ctx, refnum.DefaultConfig("IMP"), nil, now)
	if err != nil {
		logger.Warn(ctx, "reference generation failed, using uuid fallback", "error", err)
		return "IMP-" + id.New().String()
	}
	return ref
}
