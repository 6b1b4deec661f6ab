package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bookledger/internal/core/apperror"
	"bookledger/internal/domain/ledger"
	"bookledger/internal/infrastructure/http/v1/dto"
)

// MovementHandler handles HTTP requests for the stock ledger.
type MovementHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewMovementHandler creates a new movement handler.
func NewMovementHandler(base *BaseHandler, service *ledger.Service) *MovementHandler {
	return &MovementHandler{BaseHandler: base, service: service}
}

// Record handles POST /movements
func (h *MovementHandler) Record(c *gin.Context) {
	var req ledger.MovementRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.ActorID == "" {
		req.ActorID = h.GetActorID(c)
	}

	result, err := h.service.RecordMovement(c.Request.Context(), req)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// Batch handles POST /movements/batch
func (h *MovementHandler) Batch(c *gin.Context) {
	var req struct {
		Movements []ledger.MovementRequest `json:"movements" binding:"required"`
		Options   ledger.BatchOptions      `json:"options"`
	}
	if !h.BindJSON(c, &req) {
		return
	}

	actorID := h.GetActorID(c)
	for i := range req.Movements {
		if req.Movements[i].ActorID == "" {
			req.Movements[i].ActorID = actorID
		}
	}

	result, err := h.service.ProcessBatch(c.Request.Context(), req.Movements, req.Options)
	if err != nil && result == nil {
		h.Error(c, err)
		return
	}

	// An aborted batch still returns its per-row outcome.
	h.OK(c, result)
}

// Validate handles POST /movements/validate
func (h *MovementHandler) Validate(c *gin.Context) {
	var req ledger.MovementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	h.OK(c, h.service.ValidateMovement(c.Request.Context(), req))
}

// Rollback handles POST /movements/:id/rollback
func (h *MovementHandler) Rollback(c *gin.Context) {
	movementID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req ledger.RollbackRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.Approver == "" {
		req.Approver = h.GetActorID(c)
	}

	result, err := h.service.RollbackMovement(c.Request.Context(), movementID, req)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// History handles GET /movements
func (h *MovementHandler) History(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}

	movements, err := h.service.MovementHistory(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{Items: movements, Count: len(movements)})
}

func (h *MovementHandler) parseFilter(c *gin.Context) (ledger.MovementFilter, bool) {
	filter := ledger.MovementFilter{
		Reference:  c.Query("reference"),
		Descending: c.Query("order") == "desc",
		Limit:      h.ParseIntQuery(c, "limit", 100),
		Offset:     h.ParseIntQuery(c, "offset", 0),
	}

	var ok bool
	if filter.TitleID, ok = h.ParseIDQuery(c, "titleId"); !ok {
		return filter, false
	}
	if filter.WarehouseID, ok = h.ParseIDQuery(c, "warehouseId"); !ok {
		return filter, false
	}

	if typesStr := c.Query("types"); typesStr != "" {
		for _, t := range strings.Split(typesStr, ",") {
			mt := ledger.MovementType(strings.ToUpper(strings.TrimSpace(t)))
			if !ledger.ValidMovementType(mt) {
				h.Error(c, apperror.NewValidation("unknown movement type").WithDetail("value", string(mt)))
				return filter, false
			}
			filter.Types = append(filter.Types, mt)
		}
	}

	for key, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		if val := c.Query(key); val != "" {
			parsed, err := time.Parse(time.RFC3339, val)
			if err != nil {
				parsed, err = time.Parse("2006-01-02", val)
			}
			if err != nil {
				h.Error(c, apperror.NewValidation(key+" must be RFC3339 or YYYY-MM-DD"))
				return filter, false
			}
			*dst = &parsed
		}
	}

	return filter, true
}
