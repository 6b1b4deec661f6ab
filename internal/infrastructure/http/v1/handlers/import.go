package handlers

import (
	"mime/multipart"
	"time"

	"github.com/gin-gonic/gin"

	"bookledger/internal/core/apperror"
	"bookledger/internal/domain/imports"
	"bookledger/internal/infrastructure/http/v1/dto"
)

// ImportHandler handles HTTP requests for the bulk import pipeline.
type ImportHandler struct {
	*BaseHandler
	service *imports.Service
}

// NewImportHandler creates a new import handler.
func NewImportHandler(base *BaseHandler, service *imports.Service) *ImportHandler {
	return &ImportHandler{BaseHandler: base, service: service}
}

// options are read from the multipart form so the file and its run settings
// travel in one request.
func (h *ImportHandler) parseOptions(c *gin.Context) imports.Options {
	return imports.Options{
		BatchSize:       h.ParseIntQuery(c, "batchSize", 0),
		ContinueOnError: c.Request.FormValue("continueOnError") == "true",
		DryRun:          c.Request.FormValue("dryRun") == "true",
		CreatedBy:       h.GetActorID(c),
	}
}

func (h *ImportHandler) openUpload(c *gin.Context) (multipart.File, string, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.Error(c, apperror.NewValidation("multipart field 'file' is required").WithCause(err))
		return nil, "", false
	}
	f, err := fileHeader.Open()
	if err != nil {
		h.Error(c, apperror.NewValidation("uploaded file is not readable").WithCause(err))
		return nil, "", false
	}
	return f, fileHeader.Filename, true
}

// Upload handles POST /imports
// Accepts a plain or gzip-compressed movement CSV as multipart field "file".
func (h *ImportHandler) Upload(c *gin.Context) {
	f, name, ok := h.openUpload(c)
	if !ok {
		return
	}
	defer f.Close()

	job, err := h.service.ProcessMonthlyImport(c.Request.Context(), name, f, h.parseOptions(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, job)
}

// Validate handles POST /imports/validate
// Parses and rule-checks the file without committing anything.
func (h *ImportHandler) Validate(c *gin.Context) {
	f, _, ok := h.openUpload(c)
	if !ok {
		return
	}
	defer f.Close()

	report, err := h.service.ValidateCSV(c.Request.Context(), f)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, report)
}

// Retry handles POST /imports/:id/retry
func (h *ImportHandler) Retry(c *gin.Context) {
	jobID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	// The body is optional: an empty retry re-runs with default options.
	var opts imports.Options
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &opts) {
		return
	}
	if opts.CreatedBy == "" {
		opts.CreatedBy = h.GetActorID(c)
	}

	job, err := h.service.RetryImport(c.Request.Context(), jobID, opts)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, job)
}

// Get handles GET /imports/:id
func (h *ImportHandler) Get(c *gin.Context) {
	jobID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	job, err := h.service.GetJob(c.Request.Context(), jobID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, job)
}

// List handles GET /imports
func (h *ImportHandler) List(c *gin.Context) {
	filter := imports.JobFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}
	if statusStr := c.Query("status"); statusStr != "" {
		status := imports.JobStatus(statusStr)
		filter.Status = &status
	}

	jobs, err := h.service.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{Items: jobs, Count: len(jobs)})
}

// Schedule handles POST /imports/schedules
func (h *ImportHandler) Schedule(c *gin.Context) {
	var cfg imports.SyncConfig
	if !h.BindJSON(c, &cfg) {
		return
	}

	created, err := h.service.ScheduleImport(c.Request.Context(), cfg)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, created)
}

// ListSchedules handles GET /imports/schedules
func (h *ImportHandler) ListSchedules(c *gin.Context) {
	due := c.Query("due") == "true"

	if due {
		configs, err := h.service.GetDueSyncConfigurations(c.Request.Context(), time.Now().UTC())
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, dto.ListResponse{Items: configs, Count: len(configs)})
		return
	}

	configs, err := h.service.ListSyncConfigs(c.Request.Context(), c.Query("enabledOnly") == "true")
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: configs, Count: len(configs)})
}

// RunDueSchedules handles POST /imports/schedules/run-due
// Advances the cron bookkeeping for every due configuration and returns them.
func (h *ImportHandler) RunDueSchedules(c *gin.Context) {
	advanced, err := h.service.RunScheduledSyncs(c.Request.Context(), time.Now().UTC())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{Items: advanced, Count: len(advanced)})
}
