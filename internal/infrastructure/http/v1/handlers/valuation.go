package handlers

import (
	"github.com/gin-gonic/gin"

	"bookledger/internal/core/apperror"
	"bookledger/internal/core/id"
	"bookledger/internal/domain/valuation"
)

// ValuationHandler handles HTTP requests for inventory valuation.
type ValuationHandler struct {
	*BaseHandler
	service *valuation.Service
}

// NewValuationHandler creates a new valuation handler.
func NewValuationHandler(base *BaseHandler, service *valuation.Service) *ValuationHandler {
	return &ValuationHandler{BaseHandler: base, service: service}
}

// Compare handles GET /valuation/:titleId/:warehouseId
// Runs all three costing methods side by side without persisting anything.
func (h *ValuationHandler) Compare(c *gin.Context) {
	titleID, warehouseID, ok := h.parsePair(c)
	if !ok {
		return
	}

	comparison, err := h.service.CalculateTitleWarehouseValuation(c.Request.Context(), titleID, warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, comparison)
}

// Apply handles POST /valuation/:titleId/:warehouseId/apply
// Recalculates with the chosen method and persists the cached snapshot fields.
func (h *ValuationHandler) Apply(c *gin.Context) {
	titleID, warehouseID, ok := h.parsePair(c)
	if !ok {
		return
	}

	var req struct {
		Method valuation.Method `json:"method" binding:"required"`
	}
	if !h.BindJSON(c, &req) {
		return
	}
	if !valuation.ValidMethod(req.Method) {
		h.Error(c, apperror.NewValidation("unknown costing method").WithDetail("value", string(req.Method)))
		return
	}

	inv, err := h.service.UpdateInventoryValuation(c.Request.Context(), titleID, warehouseID, req.Method)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, inv)
}

// Adjust handles POST /valuation/adjustments
func (h *ValuationHandler) Adjust(c *gin.Context) {
	var adj valuation.Adjustment
	if !h.BindJSON(c, &adj) {
		return
	}
	if adj.Approver == "" {
		adj.Approver = h.GetActorID(c)
	}

	inv, err := h.service.CreateValuationAdjustment(c.Request.Context(), adj)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, inv)
}

// Aging handles GET /valuation/aging
func (h *ValuationHandler) Aging(c *gin.Context) {
	warehouseID, ok := h.ParseIDQuery(c, "warehouseId")
	if !ok {
		return
	}

	report, err := h.service.GenerateAgingReport(c.Request.Context(), warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, report)
}

func (h *ValuationHandler) parsePair(c *gin.Context) (id.ID, id.ID, bool) {
	titleID, ok := h.ParseIDParam(c, "titleId")
	if !ok {
		return id.Nil(), id.Nil(), false
	}
	warehouseID, ok := h.ParseIDParam(c, "warehouseId")
	if !ok {
		return id.Nil(), id.Nil(), false
	}
	return titleID, warehouseID, true
}
