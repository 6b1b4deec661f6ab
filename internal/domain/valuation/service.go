package valuation

import (
	"context"
	"strings"
	"time"

	"bookledger/internal/core/apperror"
	"bookledger/internal/core/id"
	"bookledger/internal/core/tx"
	"bookledger/internal/core/types"
	"bookledger/internal/domain/events"
	"bookledger/internal/domain/ledger"
	"bookledger/pkg/logger"
)

// DefaultMethod is the policy default recommended to callers.
const DefaultMethod = MethodFIFO

// Service runs valuation calculations against the ledger and writes chosen
// results back onto inventory snapshots.
type Service struct {
	repo      ledger.Repository
	movements *ledger.Service
	txm       tx.Manager
	hub       *events.Hub
}

// NewService creates a new valuation service.
func NewService(repo ledger.Repository, movements *ledger.Service, txm tx.Manager, hub *events.Hub) *Service {
	return &Service{
		repo:      repo,
		movements: movements,
		txm:       txm,
		hub:       hub,
	}
}

// Comparison holds all three methods side by side with a recommendation.
type Comparison struct {
	TitleID     id.ID `json:"titleId"`
	WarehouseID id.ID `json:"warehouseId"`

	CurrentStock int64 `json:"currentStock"`

	FIFO            Result `json:"fifo"`
	LIFO            Result `json:"lifo"`
	WeightedAverage Result `json:"weightedAverage"`

	Recommended Method `json:"recommended"`
}

// CalculateTitleWarehouseValuation loads the snapshot and its inbound
// movement history and runs all three costing methods.
func (s *Service) CalculateTitleWarehouseValuation(ctx context.Context, titleID, warehouseID id.ID) (*Comparison, error) {
	inv, err := s.repo.GetSnapshot(ctx, titleID, warehouseID)
	if err != nil {
		return nil, err
	}

	history, err := s.inboundHistory(ctx, titleID, warehouseID)
	if err != nil {
		return nil, err
	}

	remaining := inv.CurrentStock
	if remaining < 0 {
		// Oversold pairs carry no value to apportion.
		remaining = 0
	}

	return &Comparison{
		TitleID:         titleID,
		WarehouseID:     warehouseID,
		CurrentStock:    inv.CurrentStock,
		FIFO:            CalculateFIFO(history, remaining),
		LIFO:            CalculateLIFO(history, remaining),
		WeightedAverage: CalculateWeightedAverage(history, remaining),
		Recommended:     DefaultMethod,
	}, nil
}

// UpdateInventoryValuation persists the chosen method's blended unit cost and
// total value onto the snapshot.
func (s *Service) UpdateInventoryValuation(ctx context.Context, titleID, warehouseID id.ID, method Method) (*ledger.Inventory, error) {
	if !ValidMethod(method) {
		return nil, apperror.NewValidation("unknown valuation method").
			WithDetail("field", "method").
			WithDetail("value", string(method))
	}

	history, err := s.inboundHistory(ctx, titleID, warehouseID)
	if err != nil {
		return nil, err
	}

	var inv *ledger.Inventory
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		// Snapshot must already exist: valuation never lazily creates pairs.
		if _, err := s.repo.GetSnapshot(ctx, titleID, warehouseID); err != nil {
			return err
		}

		inv, err = s.repo.GetSnapshotForUpdate(ctx, titleID, warehouseID)
		if err != nil {
			return err
		}

		remaining := inv.CurrentStock
		if remaining < 0 {
			remaining = 0
		}
		result := Calculate(method, history, remaining)

		inv.AverageCost = result.BlendedUnitCost
		inv.TotalValue = result.TotalValue
		inv.UpdatedAt = time.Now().UTC()
		return s.repo.UpsertSnapshot(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.Publish(events.StockChange{
			Type:          events.EventValuationChange,
			InventoryID:   inv.ID,
			TitleID:       titleID,
			WarehouseID:   warehouseID,
			PreviousStock: inv.CurrentStock,
			NewStock:      inv.CurrentStock,
			Reason:        "valuation updated: " + string(method),
			Timestamp:     time.Now().UTC(),
		})
	}

	logger.Info(ctx, "inventory valuation updated",
		"title_id", titleID,
		"warehouse_id", warehouseID,
		"method", string(method),
		"total_value", inv.TotalValue,
	)

	return inv, nil
}

// AdjustmentType selects the kind of manual valuation correction.
type AdjustmentType string

const (
	// AdjustmentWriteDown reduces the carried value without touching stock
	AdjustmentWriteDown AdjustmentType = "WRITE_DOWN"
	// AdjustmentWriteOff removes remaining stock and zeroes the valuation
	AdjustmentWriteOff AdjustmentType = "WRITE_OFF"
)

// Adjustment describes a manual write-down or write-off.
type Adjustment struct {
	TitleID     id.ID          `json:"titleId"`
	WarehouseID id.ID          `json:"warehouseId"`
	Type        AdjustmentType `json:"type"`

	// Amount is the value reduction for a write-down
	Amount types.Money `json:"amount,omitempty"`

	Reason   string `json:"reason"`
	Approver string `json:"approver,omitempty"`
}

// CreateValuationAdjustment applies a manual write-down or write-off.
// A write-down only re-values the snapshot. A write-off also removes the
// remaining stock, which goes through the movement service as a WRITE_OFF
// ledger entry so the ledger-derivation invariant holds.
func (s *Service) CreateValuationAdjustment(ctx context.Context, adj Adjustment) (*ledger.Inventory, error) {
	if strings.TrimSpace(adj.Reason) == "" {
		return nil, apperror.NewValidation("adjustment reason is required").WithDetail("field", "reason")
	}

	switch adj.Type {
	case AdjustmentWriteDown:
		return s.applyWriteDown(ctx, adj)
	case AdjustmentWriteOff:
		return s.applyWriteOff(ctx, adj)
	default:
		return nil, apperror.NewValidation("unknown adjustment type").
			WithDetail("field", "type").
			WithDetail("value", string(adj.Type))
	}
}

func (s *Service) applyWriteDown(ctx context.Context, adj Adjustment) (*ledger.Inventory, error) {
	if !adj.Amount.IsPositive() {
		return nil, apperror.NewValidation("write-down amount must be positive").WithDetail("field", "amount")
	}

	var inv *ledger.Inventory
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetSnapshot(ctx, adj.TitleID, adj.WarehouseID); err != nil {
			return err
		}

		var err error
		inv, err = s.repo.GetSnapshotForUpdate(ctx, adj.TitleID, adj.WarehouseID)
		if err != nil {
			return err
		}

		inv.TotalValue = inv.TotalValue.Sub(adj.Amount)
		if inv.TotalValue.IsNegative() {
			inv.TotalValue = types.ZeroMoney()
		}
		if inv.CurrentStock > 0 {
			inv.AverageCost = inv.TotalValue.DivRound(types.MoneyFromInt(inv.CurrentStock), types.CurrencyScale)
		}
		inv.UpdatedAt = time.Now().UTC()
		return s.repo.UpsertSnapshot(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "valuation write-down applied",
		"title_id", adj.TitleID,
		"warehouse_id", adj.WarehouseID,
		"amount", adj.Amount,
		"reason", adj.Reason,
	)
	return inv, nil
}

func (s *Service) applyWriteOff(ctx context.Context, adj Adjustment) (*ledger.Inventory, error) {
	inv, err := s.repo.GetSnapshot(ctx, adj.TitleID, adj.WarehouseID)
	if err != nil {
		return nil, err
	}

	if inv.CurrentStock > 0 {
		res, err := s.movements.RecordMovement(ctx, ledger.MovementRequest{
			TitleID:     adj.TitleID,
			WarehouseID: adj.WarehouseID,
			Type:        ledger.TypeWriteOff,
			Quantity:    -inv.CurrentStock,
			Notes:       "valuation write-off: " + adj.Reason,
			ActorID:     adj.Approver,
		})
		if err != nil {
			return nil, err
		}
		inv = res.Snapshot
	}

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.repo.GetSnapshotForUpdate(ctx, adj.TitleID, adj.WarehouseID)
		if err != nil {
			return err
		}
		inv.AverageCost = types.ZeroMoney()
		inv.TotalValue = types.ZeroMoney()
		inv.UpdatedAt = time.Now().UTC()
		return s.repo.UpsertSnapshot(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "valuation write-off applied",
		"title_id", adj.TitleID,
		"warehouse_id", adj.WarehouseID,
		"reason", adj.Reason,
	)
	return inv, nil
}

// inboundHistory loads the chronological movement history for a pair.
// Layer extraction happens in the pure calculation functions.
func (s *Service) inboundHistory(ctx context.Context, titleID, warehouseID id.ID) ([]*ledger.StockMovement, error) {
	return s.repo.ListMovements(ctx, ledger.MovementFilter{
		TitleID:     &titleID,
		WarehouseID: &warehouseID,
	})
}
