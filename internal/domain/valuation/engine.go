// Package valuation derives monetary stock valuations from ledger cost
// layers. The calculation functions are pure: they take a chronologically
// ordered slice of inbound movements and a target remaining quantity, and
// never touch storage.
package valuation

import (
	"time"

	"github.com/shopspring/decimal"

	"bookledger/internal/core/types"
	"bookledger/internal/domain/ledger"
)

// Method selects a costing policy.
type Method string

const (
	MethodFIFO            Method = "FIFO"
	MethodLIFO            Method = "LIFO"
	MethodWeightedAverage Method = "WEIGHTED_AVERAGE"
)

// ValidMethod reports whether m is a known costing method.
func ValidMethod(m Method) bool {
	switch m {
	case MethodFIFO, MethodLIFO, MethodWeightedAverage:
		return true
	}
	return false
}

// Layer is one consumed cost layer in a valuation breakdown.
type Layer struct {
	Quantity int64       `json:"quantity"`
	UnitCost types.Money `json:"unitCost"`
	Subtotal types.Money `json:"subtotal"`
	Date     time.Time   `json:"date"`
}

// Result is a computed valuation projection. Not persisted, except for the
// cached summary fields written back onto the inventory snapshot.
type Result struct {
	Method          Method      `json:"method"`
	Layers          []Layer     `json:"layers"`
	TotalValue      types.Money `json:"totalValue"`
	BlendedUnitCost types.Money `json:"blendedUnitCost"`

	// RemainingStock is the quantity that was valued
	RemainingStock int64 `json:"remainingStock"`

	// UncoveredStock is the portion of RemainingStock no cost layer covers
	UncoveredStock int64 `json:"uncoveredStock"`
}

// costLayers extracts usable cost layers from movements: inbound quantity
// with a positive unit cost. Order is preserved.
func costLayers(movements []*ledger.StockMovement) []Layer {
	layers := make([]Layer, 0, len(movements))
	for _, m := range movements {
		if m.Quantity <= 0 {
			continue
		}
		if m.UnitCost == nil || !m.UnitCost.IsPositive() {
			continue
		}
		layers = append(layers, Layer{
			Quantity: m.Quantity,
			UnitCost: *m.UnitCost,
			Date:     m.MovementDate,
		})
	}
	return layers
}

// CalculateFIFO consumes cost layers oldest-first until remainingStock units
// are covered.
func CalculateFIFO(movements []*ledger.StockMovement, remainingStock int64) Result {
	return consumeLayers(MethodFIFO, costLayers(movements), remainingStock)
}

// CalculateLIFO consumes cost layers newest-first.
func CalculateLIFO(movements []*ledger.StockMovement, remainingStock int64) Result {
	layers := costLayers(movements)
	reversed := make([]Layer, len(layers))
	for i, l := range layers {
		reversed[len(layers)-1-i] = l
	}
	return consumeLayers(MethodLIFO, reversed, remainingStock)
}

// CalculateWeightedAverage collapses all inbound layers into one blended unit
// cost applied uniformly to remainingStock.
func CalculateWeightedAverage(movements []*ledger.StockMovement, remainingStock int64) Result {
	res := Result{Method: MethodWeightedAverage, RemainingStock: remainingStock}
	if remainingStock <= 0 {
		res.RemainingStock = maxInt64(remainingStock, 0)
		return res
	}

	layers := costLayers(movements)
	if len(layers) == 0 {
		res.UncoveredStock = remainingStock
		return res
	}

	var totalQty int64
	totalCost := decimal.Zero
	for _, l := range layers {
		totalQty += l.Quantity
		totalCost = totalCost.Add(l.UnitCost.Mul(decimal.NewFromInt(l.Quantity)))
	}

	blended := totalCost.DivRound(decimal.NewFromInt(totalQty), types.CurrencyScale)
	total := types.RoundCurrency(blended.Mul(decimal.NewFromInt(remainingStock)))

	res.BlendedUnitCost = blended
	res.TotalValue = total
	res.Layers = []Layer{{
		Quantity: remainingStock,
		UnitCost: blended,
		Subtotal: total,
		Date:     layers[0].Date,
	}}
	return res
}

// Calculate dispatches to the chosen method.
func Calculate(method Method, movements []*ledger.StockMovement, remainingStock int64) Result {
	switch method {
	case MethodLIFO:
		return CalculateLIFO(movements, remainingStock)
	case MethodWeightedAverage:
		return CalculateWeightedAverage(movements, remainingStock)
	default:
		return CalculateFIFO(movements, remainingStock)
	}
}

func consumeLayers(method Method, ordered []Layer, remainingStock int64) Result {
	res := Result{Method: method, RemainingStock: maxInt64(remainingStock, 0)}
	if remainingStock <= 0 {
		return res
	}

	left := remainingStock
	total := decimal.Zero
	for _, l := range ordered {
		if left == 0 {
			break
		}
		take := l.Quantity
		if take > left {
			take = left
		}
		subtotal := types.RoundCurrency(l.UnitCost.Mul(decimal.NewFromInt(take)))
		res.Layers = append(res.Layers, Layer{
			Quantity: take,
			UnitCost: l.UnitCost,
			Subtotal: subtotal,
			Date:     l.Date,
		})
		total = total.Add(subtotal)
		left -= take
	}

	res.UncoveredStock = left
	res.TotalValue = total
	if covered := remainingStock - left; covered > 0 {
		res.BlendedUnitCost = total.DivRound(decimal.NewFromInt(remainingStock), types.CurrencyScale)
	}
	return res
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
