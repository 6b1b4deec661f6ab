package valuation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookledger/internal/core/id"
	"bookledger/internal/core/types"
	"bookledger/internal/domain/ledger"
)

// Three receipts for the same pair: 100 @ 8.00, then 50 @ 9.00, then
// 75 @ 8.50. 105 units have since shipped, leaving 120 on hand.
func receiptHistory(t *testing.T) []*ledger.StockMovement {
	t.Helper()
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	mk := func(qty int64, cost string, day int) *ledger.StockMovement {
		c := types.MustMoney(cost)
		return &ledger.StockMovement{
			ID:           id.New(),
			Type:         ledger.TypeReceipt,
			Quantity:     qty,
			UnitCost:     &c,
			MovementDate: base.AddDate(0, 0, day),
		}
	}
	sale := &ledger.StockMovement{
		ID:           id.New(),
		Type:         ledger.TypeSale,
		Quantity:     -105,
		MovementDate: base.AddDate(0, 0, 40),
	}
	return []*ledger.StockMovement{
		mk(100, "8.00", 0),
		mk(50, "9.00", 10),
		mk(75, "8.50", 20),
		sale,
	}
}

func TestCalculateFIFO(t *testing.T) {
	res := CalculateFIFO(receiptHistory(t), 120)

	require.Len(t, res.Layers, 2)
	assert.Equal(t, int64(100), res.Layers[0].Quantity)
	assert.True(t, res.Layers[0].UnitCost.Equal(types.MustMoney("8.00")))
	assert.True(t, res.Layers[0].Subtotal.Equal(types.MustMoney("800.00")))
	assert.Equal(t, int64(20), res.Layers[1].Quantity)
	assert.True(t, res.Layers[1].UnitCost.Equal(types.MustMoney("9.00")))
	assert.True(t, res.Layers[1].Subtotal.Equal(types.MustMoney("180.00")))

	assert.True(t, res.TotalValue.Equal(types.MustMoney("980.00")), "got %s", res.TotalValue)
	assert.True(t, res.BlendedUnitCost.Equal(types.MustMoney("8.17")), "got %s", res.BlendedUnitCost)
	assert.Equal(t, int64(120), res.RemainingStock)
	assert.Zero(t, res.UncoveredStock)
}

func TestCalculateLIFO(t *testing.T) {
	res := CalculateLIFO(receiptHistory(t), 120)

	require.Len(t, res.Layers, 2)
	assert.Equal(t, int64(75), res.Layers[0].Quantity)
	assert.True(t, res.Layers[0].UnitCost.Equal(types.MustMoney("8.50")))
	assert.True(t, res.Layers[0].Subtotal.Equal(types.MustMoney("637.50")))
	assert.Equal(t, int64(45), res.Layers[1].Quantity)
	assert.True(t, res.Layers[1].UnitCost.Equal(types.MustMoney("9.00")))
	assert.True(t, res.Layers[1].Subtotal.Equal(types.MustMoney("405.00")))

	assert.True(t, res.TotalValue.Equal(types.MustMoney("1042.50")), "got %s", res.TotalValue)
	assert.Zero(t, res.UncoveredStock)
}

func TestCalculateWeightedAverage(t *testing.T) {
	res := CalculateWeightedAverage(receiptHistory(t), 120)

	// 1887.50 total receipt cost across 225 units
	assert.True(t, res.BlendedUnitCost.Equal(types.MustMoney("8.39")), "got %s", res.BlendedUnitCost)
	assert.True(t, res.TotalValue.Equal(types.MustMoney("1006.80")), "got %s", res.TotalValue)
	require.Len(t, res.Layers, 1)
	assert.Equal(t, int64(120), res.Layers[0].Quantity)
}

func TestCalculateSkipsUncostedMovements(t *testing.T) {
	free := &ledger.StockMovement{
		ID:           id.New(),
		Type:         ledger.TypeFreeCopy,
		Quantity:     30,
		MovementDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	history := append(receiptHistory(t), free)

	res := CalculateFIFO(history, 120)
	assert.True(t, res.TotalValue.Equal(types.MustMoney("980.00")))
}

func TestCalculateStockExceedsLayers(t *testing.T) {
	res := CalculateFIFO(receiptHistory(t), 300)

	assert.Equal(t, int64(75), res.UncoveredStock)
	assert.True(t, res.TotalValue.Equal(types.MustMoney("1887.50")), "got %s", res.TotalValue)
	// blended cost still divides over the full requested quantity
	assert.True(t, res.BlendedUnitCost.Equal(types.MustMoney("6.29")), "got %s", res.BlendedUnitCost)
}

func TestCalculateZeroStock(t *testing.T) {
	for _, m := range []Method{MethodFIFO, MethodLIFO, MethodWeightedAverage} {
		res := Calculate(m, receiptHistory(t), 0)
		assert.Empty(t, res.Layers, string(m))
		assert.True(t, res.TotalValue.IsZero() || res.TotalValue.Equal(types.ZeroMoney()), string(m))
	}
}

func TestCalculateNoHistory(t *testing.T) {
	res := CalculateWeightedAverage(nil, 40)
	assert.Equal(t, int64(40), res.UncoveredStock)
	assert.Empty(t, res.Layers)
}

func TestValidMethod(t *testing.T) {
	assert.True(t, ValidMethod(MethodFIFO))
	assert.True(t, ValidMethod(MethodLIFO))
	assert.True(t, ValidMethod(MethodWeightedAverage))
	assert.False(t, ValidMethod(Method("AVERAGE")))
}

func TestClassifyAge(t *testing.T) {
	cases := []struct {
		days   int
		band   AgeBand
		action RecommendedAction
	}{
		{10, BandLow, ActionNone},
		{89, BandLow, ActionNone},
		{90, BandMedium, ActionMonitor},
		{179, BandMedium, ActionMonitor},
		{180, BandHigh, ActionDiscount},
		{364, BandHigh, ActionDiscount},
		{365, BandCritical, ActionWriteOff},
		{900, BandCritical, ActionWriteOff},
	}
	for _, tc := range cases {
		band, action := classifyAge(tc.days)
		assert.Equal(t, tc.band, band, "days=%d", tc.days)
		assert.Equal(t, tc.action, action, "days=%d", tc.days)
	}
}

func TestOldestUnconsumedDate(t *testing.T) {
	history := receiptHistory(t)

	// 105 shipped consumes the whole first layer and 5 of the second, so
	// the second receipt anchors the age.
	got := oldestUnconsumedDate(history)
	assert.Equal(t, time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC), got)

	// fully consumed history has no anchor
	soldOut := []*ledger.StockMovement{
		history[0],
		{ID: id.New(), Type: ledger.TypeSale, Quantity: -100, MovementDate: history[0].MovementDate.AddDate(0, 0, 5)},
	}
	assert.True(t, oldestUnconsumedDate(soldOut).IsZero())
}
