package handlers

import (
	"github.com/gin-gonic/gin"

	"bookledger/internal/domain/catalogs/title"
	"bookledger/internal/infrastructure/http/v1/dto"
)

// TitleHandler handles HTTP requests for the Title catalog.
type TitleHandler struct {
	*BaseHandler
	service *title.Service
}

// NewTitleHandler creates a new title catalog handler.
func NewTitleHandler(base *BaseHandler, service *title.Service) *TitleHandler {
	return &TitleHandler{BaseHandler: base, service: service}
}

// Create handles POST /catalog/titles
func (h *TitleHandler) Create(c *gin.Context) {
	var req dto.CreateTitleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	t := req.ToTitle()
	if err := h.service.Create(c.Request.Context(), t); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, t.ID.String())
}

// Get handles GET /catalog/titles/:id
func (h *TitleHandler) Get(c *gin.Context) {
	titleID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	t, err := h.service.GetByID(c.Request.Context(), titleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, t)
}

// GetByISBN handles GET /catalog/titles/isbn/:isbn
func (h *TitleHandler) GetByISBN(c *gin.Context) {
	t, err := h.service.GetByISBN(c.Request.Context(), c.Param("isbn"))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, t)
}

// Update handles PUT /catalog/titles/:id
func (h *TitleHandler) Update(c *gin.Context) {
	titleID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateTitleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	t, err := h.service.GetByID(ctx, titleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.Apply(t)
	if err := h.service.Update(ctx, t); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, t)
}

// List handles GET /catalog/titles
func (h *TitleHandler) List(c *gin.Context) {
	filter := title.ListFilter{
		Search:     c.Query("search"),
		ActiveOnly: c.Query("activeOnly") == "true",
		Limit:      h.ParseIntQuery(c, "limit", 50),
		Offset:     h.ParseIntQuery(c, "offset", 0),
	}

	titles, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{Items: titles, Count: len(titles)})
}

// Delete handles DELETE /catalog/titles/:id
func (h *TitleHandler) Delete(c *gin.Context) {
	titleID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), titleID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}
