package dto

import (
	"bookledger/internal/core/types"
	"bookledger/internal/domain/catalogs/title"
	"bookledger/internal/domain/catalogs/warehouse"
)

// --- Title DTOs ---

// CreateTitleRequest for creating titles.
type CreateTitleRequest struct {
	ISBN              string       `json:"isbn" binding:"required"`
	Name              string       `json:"name" binding:"required"`
	Publisher         string       `json:"publisher"`
	RRP               *types.Money `json:"rrp"`
	UnitCost          *types.Money `json:"unitCost"`
	LowStockThreshold *int64       `json:"lowStockThreshold"`
}

// ToTitle builds a domain title from the request.
func (r *CreateTitleRequest) ToTitle() *title.Title {
	t := title.NewTitle(r.ISBN, r.Name)
	t.Publisher = r.Publisher
	if r.RRP != nil {
		t.RRP = *r.RRP
	}
	if r.UnitCost != nil {
		t.UnitCost = *r.UnitCost
	}
	t.LowStockThreshold = r.LowStockThreshold
	return t
}

// UpdateTitleRequest for updating titles. Nil fields are left unchanged;
// identity (ID, ISBN) is immutable.
type UpdateTitleRequest struct {
	Name              *string      `json:"name"`
	Publisher         *string      `json:"publisher"`
	RRP               *types.Money `json:"rrp"`
	UnitCost          *types.Money `json:"unitCost"`
	LowStockThreshold *int64       `json:"lowStockThreshold"`
	Active            *bool        `json:"active"`
}

// Apply copies set fields onto the title.
func (r *UpdateTitleRequest) Apply(t *title.Title) {
	if r.Name != nil {
		t.Name = *r.Name
	}
	if r.Publisher != nil {
		t.Publisher = *r.Publisher
	}
	if r.RRP != nil {
		t.RRP = *r.RRP
	}
	if r.UnitCost != nil {
		t.UnitCost = *r.UnitCost
	}
	if r.LowStockThreshold != nil {
		t.LowStockThreshold = r.LowStockThreshold
	}
	if r.Active != nil {
		t.Active = *r.Active
	}
}

// --- Warehouse DTOs ---

// CreateWarehouseRequest for creating warehouses.
type CreateWarehouseRequest struct {
	Code     string   `json:"code" binding:"required"`
	Name     string   `json:"name" binding:"required"`
	Address  string   `json:"address"`
	Channels []string `json:"channels"`
}

// ToWarehouse builds a domain warehouse from the request.
func (r *CreateWarehouseRequest) ToWarehouse() *warehouse.Warehouse {
	w := warehouse.NewWarehouse(r.Code, r.Name)
	w.Address = r.Address
	w.Channels = r.Channels
	return w
}

// UpdateWarehouseRequest for updating warehouses. Code is immutable.
type UpdateWarehouseRequest struct {
	Name     *string           `json:"name"`
	Address  *string           `json:"address"`
	Status   *warehouse.Status `json:"status"`
	Channels *[]string         `json:"channels"`
}

// Apply copies set fields onto the warehouse.
func (r *UpdateWarehouseRequest) Apply(w *warehouse.Warehouse) {
	if r.Name != nil {
		w.Name = *r.Name
	}
	if r.Address != nil {
		w.Address = *r.Address
	}
	if r.Status != nil {
		w.Status = *r.Status
	}
	if r.Channels != nil {
		w.Channels = *r.Channels
	}
}
