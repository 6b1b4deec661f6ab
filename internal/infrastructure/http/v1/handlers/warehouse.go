package handlers

import (
	"github.com/gin-gonic/gin"

	"bookledger/internal/domain/catalogs/warehouse"
	"bookledger/internal/infrastructure/http/v1/dto"
)

// WarehouseHandler handles HTTP requests for the Warehouse catalog.
type WarehouseHandler struct {
	*BaseHandler
	service *warehouse.Service
}

// NewWarehouseHandler creates a new warehouse catalog handler.
func NewWarehouseHandler(base *BaseHandler, service *warehouse.Service) *WarehouseHandler {
	return &WarehouseHandler{BaseHandler: base, service: service}
}

// Create handles POST /catalog/warehouses
func (h *WarehouseHandler) Create(c *gin.Context) {
	var req dto.CreateWarehouseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	w := req.ToWarehouse()
	if err := h.service.Create(c.Request.Context(), w); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, w.ID.String())
}

// Get handles GET /catalog/warehouses/:id
func (h *WarehouseHandler) Get(c *gin.Context) {
	warehouseID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	w, err := h.service.GetByID(c.Request.Context(), warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, w)
}

// Update handles PUT /catalog/warehouses/:id
func (h *WarehouseHandler) Update(c *gin.Context) {
	warehouseID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateWarehouseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	w, err := h.service.GetByID(ctx, warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.Apply(w)
	if err := h.service.Update(ctx, w); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, w)
}

// List handles GET /catalog/warehouses
func (h *WarehouseHandler) List(c *gin.Context) {
	filter := warehouse.ListFilter{
		Channel: c.Query("channel"),
		Limit:   h.ParseIntQuery(c, "limit", 50),
		Offset:  h.ParseIntQuery(c, "offset", 0),
	}
	if statusStr := c.Query("status"); statusStr != "" {
		status := warehouse.Status(statusStr)
		filter.Status = &status
	}

	warehouses, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{Items: warehouses, Count: len(warehouses)})
}

// Delete handles DELETE /catalog/warehouses/:id
func (h *WarehouseHandler) Delete(c *gin.Context) {
	warehouseID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), warehouseID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}
