package valuation

import (
	"context"
	"sort"
	"time"

	"bookledger/internal/core/id"
	"bookledger/internal/core/types"
	"bookledger/internal/domain/ledger"
)

// AgeBand classifies how long the oldest remaining stock has been held.
type AgeBand string

const (
	BandLow      AgeBand = "LOW"      // under 90 days
	BandMedium   AgeBand = "MEDIUM"   // 90 to 180 days
	BandHigh     AgeBand = "HIGH"     // 180 to 365 days
	BandCritical AgeBand = "CRITICAL" // over a year
)

// RecommendedAction maps an age band to the suggested disposition.
type RecommendedAction string

const (
	ActionNone     RecommendedAction = "NONE"
	ActionMonitor  RecommendedAction = "MONITOR"
	ActionDiscount RecommendedAction = "DISCOUNT"
	ActionWriteOff RecommendedAction = "WRITE_OFF"
)

// AgingLine is one (title, warehouse) pair in an aging report.
type AgingLine struct {
	TitleID     id.ID `json:"titleId"`
	WarehouseID id.ID `json:"warehouseId"`

	CurrentStock int64       `json:"currentStock"`
	TotalValue   types.Money `json:"totalValue"`

	// OldestLayerDate is the receipt date of the oldest unconsumed FIFO layer
	OldestLayerDate time.Time `json:"oldestLayerDate"`
	AgeDays         int       `json:"ageDays"`

	Band   AgeBand           `json:"band"`
	Action RecommendedAction `json:"recommendedAction"`
}

// AgingReport lists stocked pairs ordered oldest-first.
type AgingReport struct {
	GeneratedAt time.Time   `json:"generatedAt"`
	Lines       []AgingLine `json:"lines"`
}

// GenerateAgingReport walks every stocked snapshot (optionally scoped to one
// warehouse), FIFO-simulates its history to find the oldest unconsumed cost
// layer, and bands the result. Pairs with no stock are skipped; pairs whose
// history has no usable cost layers age from their last movement.
func (s *Service) GenerateAgingReport(ctx context.Context, warehouseID *id.ID) (*AgingReport, error) {
	snapshots, err := s.repo.ListSnapshots(ctx, ledger.SnapshotFilter{
		WarehouseID: warehouseID,
		ExcludeZero: true,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	report := &AgingReport{GeneratedAt: now, Lines: make([]AgingLine, 0, len(snapshots))}

	for _, inv := range snapshots {
		if inv.CurrentStock <= 0 {
			continue
		}

		history, err := s.inboundHistory(ctx, inv.TitleID, inv.WarehouseID)
		if err != nil {
			return nil, err
		}

		oldest := oldestUnconsumedDate(history)
		if oldest.IsZero() {
			oldest = inv.LastMovementAt
			if oldest.IsZero() {
				oldest = inv.UpdatedAt
			}
		}

		ageDays := int(now.Sub(oldest).Hours() / 24)
		band, action := classifyAge(ageDays)

		report.Lines = append(report.Lines, AgingLine{
			TitleID:         inv.TitleID,
			WarehouseID:     inv.WarehouseID,
			CurrentStock:    inv.CurrentStock,
			TotalValue:      inv.TotalValue,
			OldestLayerDate: oldest,
			AgeDays:         ageDays,
			Band:            band,
			Action:          action,
		})
	}

	sort.SliceStable(report.Lines, func(i, j int) bool {
		return report.Lines[i].OldestLayerDate.Before(report.Lines[j].OldestLayerDate)
	})

	return report, nil
}

// oldestUnconsumedDate runs a FIFO simulation: outbound quantities consume
// the oldest inbound layers first, and the receipt date of the first layer
// still holding units is the age anchor.
func oldestUnconsumedDate(movements []*ledger.StockMovement) time.Time {
	type inLayer struct {
		qty  int64
		date time.Time
	}

	var layers []inLayer
	var consumed int64
	for _, m := range movements {
		if m.Quantity > 0 {
			layers = append(layers, inLayer{qty: m.Quantity, date: m.MovementDate})
		} else if m.Quantity < 0 {
			consumed += -m.Quantity
		}
	}

	for _, l := range layers {
		if consumed >= l.qty {
			consumed -= l.qty
			continue
		}
		return l.date
	}
	return time.Time{}
}

func classifyAge(ageDays int) (AgeBand, RecommendedAction) {
	switch {
	case ageDays < 90:
		return BandLow, ActionNone
	case ageDays < 180:
		return BandMedium, ActionMonitor
	case ageDays < 365:
		return BandHigh, ActionDiscount
	default:
		return BandCritical, ActionWriteOff
	}
}
