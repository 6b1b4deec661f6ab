package handlers

import (
	"github.com/gin-gonic/gin"

	"bookledger/internal/core/id"
	"bookledger/internal/domain/ledger"
	"bookledger/internal/infrastructure/http/v1/dto"
)

// StockHandler handles HTTP requests for inventory snapshots and reservations.
type StockHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, service *ledger.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, service: service}
}

// GetSnapshot handles GET /stock/:titleId/:warehouseId
func (h *StockHandler) GetSnapshot(c *gin.Context) {
	titleID, warehouseID, ok := h.parsePair(c)
	if !ok {
		return
	}

	inv, err := h.service.GetSnapshot(c.Request.Context(), titleID, warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, inv)
}

// ListSnapshots handles GET /stock
func (h *StockHandler) ListSnapshots(c *gin.Context) {
	filter := ledger.SnapshotFilter{
		ExcludeZero: c.Query("excludeZero") != "false",
		Limit:       h.ParseIntQuery(c, "limit", 100),
		Offset:      h.ParseIntQuery(c, "offset", 0),
	}

	var ok bool
	if filter.WarehouseID, ok = h.ParseIDQuery(c, "warehouseId"); !ok {
		return
	}
	if filter.TitleID, ok = h.ParseIDQuery(c, "titleId"); !ok {
		return
	}

	snapshots, err := h.service.ListSnapshots(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{Items: snapshots, Count: len(snapshots)})
}

// reservationRequest is shared by reserve and release.
type reservationRequest struct {
	TitleID     id.ID `json:"titleId" binding:"required"`
	WarehouseID id.ID `json:"warehouseId" binding:"required"`
	Quantity    int64 `json:"quantity" binding:"required"`
}

// Reserve handles POST /stock/reservations
func (h *StockHandler) Reserve(c *gin.Context) {
	var req reservationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	inv, err := h.service.ReserveStock(c.Request.Context(), req.TitleID, req.WarehouseID, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, inv)
}

// Release handles POST /stock/reservations/release
func (h *StockHandler) Release(c *gin.Context) {
	var req reservationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	inv, err := h.service.ReleaseReservation(c.Request.Context(), req.TitleID, req.WarehouseID, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, inv)
}

// Verify handles GET /stock/:titleId/:warehouseId/verify
func (h *StockHandler) Verify(c *gin.Context) {
	titleID, warehouseID, ok := h.parsePair(c)
	if !ok {
		return
	}

	check, err := h.service.VerifySnapshot(c.Request.Context(), titleID, warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, check)
}

// LowStock handles GET /stock/low
func (h *StockHandler) LowStock(c *gin.Context) {
	warehouseID, ok := h.ParseIDQuery(c, "warehouseId")
	if !ok {
		return
	}

	lines, err := h.service.LowStockReport(c.Request.Context(), warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{Items: lines, Count: len(lines)})
}

func (h *StockHandler) parsePair(c *gin.Context) (id.ID, id.ID, bool) {
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
