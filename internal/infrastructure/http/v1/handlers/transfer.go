package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"bookledger/internal/domain/transfer"
	"bookledger/internal/infrastructure/http/v1/dto"
)

// TransferHandler handles HTTP requests for the transfer workflow.
type TransferHandler struct {
	*BaseHandler
	service *transfer.Service
}

// NewTransferHandler creates a new transfer handler.
func NewTransferHandler(base *BaseHandler, service *transfer.Service) *TransferHandler {
	return &TransferHandler{BaseHandler: base, service: service}
}

// Create handles POST /transfers
func (h *TransferHandler) Create(c *gin.Context) {
	var req transfer.CreateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.RequestedBy == "" {
		req.RequestedBy = h.GetActorID(c)
	}

	t, err := h.service.CreateTransferRequest(c.Request.Context(), req)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, t)
}

// Approve handles POST /transfers/:id/approve
func (h *TransferHandler) Approve(c *gin.Context) {
	transferID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		ApprovedBy   string     `json:"approvedBy"`
		ScheduledFor *time.Time `json:"scheduledFor"`
	}
	if !h.BindJSON(c, &req) {
		return
	}
	if req.ApprovedBy == "" {
		req.ApprovedBy = h.GetActorID(c)
	}

	t, err := h.service.ApproveTransfer(c.Request.Context(), transferID, req.ApprovedBy, req.ScheduledFor)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, t)
}

// Execute handles POST /transfers/:id/execute
func (h *TransferHandler) Execute(c *gin.Context) {
	transferID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		ExecutedBy string `json:"executedBy"`
	}
	if !h.BindJSON(c, &req) {
		return
	}
	if req.ExecutedBy == "" {
		req.ExecutedBy = h.GetActorID(c)
	}

	t, err := h.service.ExecuteTransfer(c.Request.Context(), transferID, req.ExecutedBy)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, t)
}

// UpdateTracking handles PUT /transfers/:id/tracking
func (h *TransferHandler) UpdateTracking(c *gin.Context) {
	transferID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var tracking transfer.Tracking
	if !h.BindJSON(c, &tracking) {
		return
	}

	t, err := h.service.UpdateTransferTracking(c.Request.Context(), transferID, tracking)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, t)
}

// Complete handles POST /transfers/:id/complete
func (h *TransferHandler) Complete(c *gin.Context) {
	transferID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		CompletedBy string `json:"completedBy"`
	}
	if !h.BindJSON(c, &req) {
		return
	}
	if req.CompletedBy == "" {
		req.CompletedBy = h.GetActorID(c)
	}

	t, err := h.service.CompleteTransfer(c.Request.Context(), transferID, req.CompletedBy)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, t)
}

// Cancel handles POST /transfers/:id/cancel
func (h *TransferHandler) Cancel(c *gin.Context) {
	transferID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Reason      string `json:"reason" binding:"required"`
		CancelledBy string `json:"cancelledBy"`
	}
	if !h.BindJSON(c, &req) {
		return
	}
	if req.CancelledBy == "" {
		req.CancelledBy = h.GetActorID(c)
	}

	t, err := h.service.CancelTransfer(c.Request.Context(), transferID, req.Reason, req.CancelledBy)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, t)
}

// Get handles GET /transfers/:id
func (h *TransferHandler) Get(c *gin.Context) {
	transferID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	t, err := h.service.GetTransfer(c.Request.Context(), transferID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, t)
}

// List handles GET /transfers
func (h *TransferHandler) List(c *gin.Context) {
	filter := transfer.ListFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	var ok bool
	if filter.TitleID, ok = h.ParseIDQuery(c, "titleId"); !ok {
		return
	}
	if filter.SourceWarehouseID, ok = h.ParseIDQuery(c, "sourceWarehouseId"); !ok {
		return
	}
	if filter.DestinationWarehouseID, ok = h.ParseIDQuery(c, "destinationWarehouseId"); !ok {
		return
	}
	if statusStr := c.Query("status"); statusStr != "" {
		status := transfer.Status(statusStr)
		filter.Status = &status
	}

	transfers, err := h.service.ListTransfers(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{Items: transfers, Count: len(transfers)})
}
