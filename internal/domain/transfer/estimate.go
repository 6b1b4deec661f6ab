package transfer

import (
	"time"

	"github.com/shopspring/decimal"

	"bookledger/internal/core/types"
)

// Estimation constants. Base covers fixed dispatch overhead, handling is
// charged per unit, and the priority multiplier prices expedited service.
var (
	baseDispatchFee = decimal.NewFromFloat(25.00)
	handlingPerUnit = decimal.NewFromFloat(0.15)
)

var priorityMultiplier = map[Priority]decimal.Decimal{
	PriorityLow:    decimal.NewFromFloat(0.90),
	PriorityNormal: decimal.NewFromInt(1),
	PriorityHigh:   decimal.NewFromFloat(1.25),
	PriorityUrgent: decimal.NewFromFloat(1.50),
}

var priorityDuration = map[Priority]time.Duration{
	PriorityLow:    7 * 24 * time.Hour,
	PriorityNormal: 4 * 24 * time.Hour,
	PriorityHigh:   2 * 24 * time.Hour,
	PriorityUrgent: 24 * time.Hour,
}

// EstimateCost prices a transfer: (base + units * handling) * priority.
func EstimateCost(quantity int64, priority Priority) types.Money {
	mult, ok := priorityMultiplier[priority]
	if !ok {
		mult = decimal.NewFromInt(1)
	}
	raw := baseDispatchFee.Add(handlingPerUnit.Mul(decimal.NewFromInt(quantity))).Mul(mult)
	return types.RoundCurrency(raw)
}

// EstimateDuration returns the expected transit time for a priority.
func EstimateDuration(priority Priority) time.Duration {
	if d, ok := priorityDuration[priority]; ok {
		return d
	}
	return priorityDuration[PriorityNormal]
}

// scoreEfficiency compares actual transit time against the estimate.
// 100 means at or under budget, degrading proportionally when over.
func scoreEfficiency(estimated, actual time.Duration) int {
	if actual <= 0 {
		return 100
	}
	if actual <= estimated {
		return 100
	}
	score := int(float64(estimated) / float64(actual) * 100)
	if score < 0 {
		score = 0
	}
	return score
}
