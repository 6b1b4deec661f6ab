package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bookledger/internal/core/apperror"
	appctx "bookledger/internal/core/context"
	"bookledger/internal/core/id"
	"bookledger/internal/core/tx"
	"bookledger/internal/core/types"
	"bookledger/internal/domain/catalogs/title"
	"bookledger/internal/domain/catalogs/warehouse"
	"bookledger/internal/domain/events"
	"bookledger/pkg/logger"
)

// futureDateSlack tolerates clock skew between callers and the server.
const futureDateSlack = 5 * time.Minute

// Service is the movement service: the single committer of ledger state.
// Every commit appends the ledger entry and updates the derived snapshot as
// one atomic unit, then announces the change on the distribution hub.
type Service struct {
	repo       Repository
	titles     title.Repository
	warehouses warehouse.Repository
	txm        tx.Manager
	hub        *events.Hub
}

// NewService creates a new movement service. The hub may be nil (no event
// distribution, used by CLI tooling).
func NewService(
	repo Repository,
	titles title.Repository,
	warehouses warehouse.Repository,
	txm tx.Manager,
	hub *events.Hub,
) *Service {
	return &Service{
		repo:       repo,
		titles:     titles,
		warehouses: warehouses,
		txm:        txm,
		hub:        hub,
	}
}

// RecordMovement validates and commits one stock movement. The ledger entry
// and the inventory snapshot update persist together or not at all.
func (s *Service) RecordMovement(ctx context.Context, req MovementRequest) (*MovementResult, error) {
	req = withDefaults(ctx, req)

	_, _, warnings, err := s.checkForCommit(ctx, req)
	if err != nil {
		return nil, err
	}

	m := newMovement(req)

	var (
		inv *Inventory
		ev  events.StockChange
	)
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var txErr error
		inv, ev, txErr = s.applyMovement(ctx, m, req.ReleaseReservation)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.publish(ev)

	logger.Info(ctx, "movement recorded",
		"movement_id", m.ID,
		"type", string(m.Type),
		"title_id", m.TitleID,
		"warehouse_id", m.WarehouseID,
		"quantity", m.Quantity,
		"stock", inv.CurrentStock,
	)

	return &MovementResult{Movement: m, Snapshot: inv, Warnings: warnings}, nil
}

// ProcessBatch commits a set of movements. With ContinueOnError false the
// whole batch runs in one transaction and the first failure aborts it leaving
// no partial commits; with ContinueOnError true each row is attempted
// independently. ValidateOnly performs no commits at all.
func (s *Service) ProcessBatch(ctx context.Context, reqs []MovementRequest, opts BatchOptions) (*BatchResult, error) {
	res := &BatchResult{Attempted: len(reqs)}

	if opts.ValidateOnly {
		for i, req := range reqs {
			vr := s.ValidateMovement(ctx, req)
			res.Warnings = append(res.Warnings, tagRows(vr.Warnings, i)...)
			if vr.IsValid {
				res.Succeeded++
				continue
			}
			res.Failed++
			res.Errors = append(res.Errors, BatchError{
				Index: i,
				Error: apperror.NewValidation(vr.Errors[0].Message).WithDetail("row", i),
			})
		}
		return res, nil
	}

	if opts.ContinueOnError {
		for i, req := range reqs {
			mr, err := s.RecordMovement(ctx, req)
			if err != nil {
				res.Failed++
				res.Errors = append(res.Errors, BatchError{Index: i, Error: asAppError(err)})
				continue
			}
			res.Succeeded++
			res.Results = append(res.Results, mr)
			res.Warnings = append(res.Warnings, tagRows(mr.Warnings, i)...)
		}
		return res, nil
	}

	// All-or-nothing: one transaction for the whole batch. Events are held
	// back until the commit succeeds.
	var (
		pending []events.StockChange
		results []*MovementResult
	)
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		for i, req := range reqs {
			req = withDefaults(ctx, req)
			_, _, warnings, err := s.checkForCommit(ctx, req)
			if err != nil {
				res.Errors = append(res.Errors, BatchError{Index: i, Error: asAppError(err)})
				return fmt.Errorf("row %d: %w", i, err)
			}

			m := newMovement(req)
			inv, ev, err := s.applyMovement(ctx, m, req.ReleaseReservation)
			if err != nil {
				res.Errors = append(res.Errors, BatchError{Index: i, Error: asAppError(err)})
				return fmt.Errorf("row %d: %w", i, err)
			}

			pending = append(pending, ev)
			results = append(results, &MovementResult{Movement: m, Snapshot: inv, Warnings: warnings})
			res.Warnings = append(res.Warnings, tagRows(warnings, i)...)
		}
		return nil
	})
	if err != nil {
		res.Failed = len(res.Errors)
		return res, err
	}

	for _, ev := range pending {
		s.publish(ev)
	}
	res.Succeeded = len(results)
	res.Results = results
	return res, nil
}

// RollbackMovement compensates a committed movement by appending a reversal
// entry with negated quantity (and swapped transfer endpoints). History is
// never edited: the original entry stays in the ledger untouched.
func (s *Service) RollbackMovement(ctx context.Context, movementID id.ID, req RollbackRequest) (*MovementResult, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, apperror.NewValidation("rollback reason is required").WithDetail("field", "reason")
	}

	orig, err := s.repo.GetMovement(ctx, movementID)
	if err != nil {
		return nil, err
	}

	rev := reversalOf(ctx, orig, req)

	if !req.CreateReversal {
		// Dry run: report what would be appended without committing.
		return &MovementResult{Movement: rev}, nil
	}

	var (
		inv *Inventory
		ev  events.StockChange
	)
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var txErr error
		inv, ev, txErr = s.applyMovement(ctx, rev, false)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.publish(ev)

	logger.Info(ctx, "movement rolled back",
		"movement_id", orig.ID,
		"reversal_id", rev.ID,
		"reason", req.Reason,
	)

	return &MovementResult{Movement: rev, Snapshot: inv}, nil
}

// ValidateMovement runs the full rule set without committing. Used by the
// request layer and the bulk import pipeline.
func (s *Service) ValidateMovement(ctx context.Context, req MovementRequest) *ValidationResult {
	req = withDefaults(ctx, req)
	res := &ValidationResult{IsValid: true}

	var t *title.Title
	if id.IsNil(req.TitleID) {
		res.Errors = append(res.Errors, apperror.Warning{
			Code: apperror.CodeValidation, Message: "title is required", Field: "titleId",
		})
	} else if found, err := s.titles.GetByID(ctx, req.TitleID); err != nil {
		res.Errors = append(res.Errors, apperror.Warning{
			Code: apperror.CodeNotFound, Message: "title not found", Field: "titleId",
		})
	} else {
		t = found
	}

	var wh *warehouse.Warehouse
	if id.IsNil(req.WarehouseID) {
		res.Errors = append(res.Errors, apperror.Warning{
			Code: apperror.CodeValidation, Message: "warehouse is required", Field: "warehouseId",
		})
	} else if found, err := s.warehouses.GetByID(ctx, req.WarehouseID); err != nil {
		res.Errors = append(res.Errors, apperror.Warning{
			Code: apperror.CodeNotFound, Message: "warehouse not found", Field: "warehouseId",
		})
	} else {
		wh = found
	}

	errs, warns := movementRules(req, t, wh)
	res.Errors = append(res.Errors, errs...)
	res.Warnings = append(res.Warnings, warns...)
	res.IsValid = len(res.Errors) == 0
	return res
}

// ReserveStock earmarks available stock for a pending transfer or order.
// Fails with InsufficientStock if available stock does not cover the quantity.
func (s *Service) ReserveStock(ctx context.Context, titleID, warehouseID id.ID, qty int64) (*Inventory, error) {
	if qty <= 0 {
		return nil, apperror.NewValidation("reservation quantity must be positive").WithDetail("field", "quantity")
	}

	var inv *Inventory
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.repo.GetSnapshotForUpdate(ctx, titleID, warehouseID)
		if err != nil {
			return err
		}
		if inv.Available() < qty {
			return apperror.NewInsufficientStock(titleID.String(), warehouseID.String(), qty, inv.Available())
		}
		inv.ReservedStock += qty
		inv.UpdatedAt = time.Now().UTC()
		return s.repo.UpsertSnapshot(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ReleaseReservation returns earmarked stock to the available pool.
// Rejects a release larger than the outstanding reservation so a double
// release cannot free stock twice.
func (s *Service) ReleaseReservation(ctx context.Context, titleID, warehouseID id.ID, qty int64) (*Inventory, error) {
	if qty <= 0 {
		return nil, apperror.NewValidation("release quantity must be positive").WithDetail("field", "quantity")
	}

	var inv *Inventory
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.repo.GetSnapshotForUpdate(ctx, titleID, warehouseID)
		if err != nil {
			return err
		}
		if inv.ReservedStock < qty {
			return apperror.NewConflict("release exceeds reserved stock").
				WithDetail("reserved", inv.ReservedStock).
				WithDetail("requested", qty)
		}
		inv.ReservedStock -= qty
		inv.UpdatedAt = time.Now().UTC()
		return s.repo.UpsertSnapshot(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// GetSnapshot returns the inventory snapshot for a pair.
func (s *Service) GetSnapshot(ctx context.Context, titleID, warehouseID id.ID) (*Inventory, error) {
	return s.repo.GetSnapshot(ctx, titleID, warehouseID)
}

// ListSnapshots returns snapshots matching the filter.
func (s *Service) ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]*Inventory, error) {
	return s.repo.ListSnapshots(ctx, filter)
}

// MovementHistory returns ledger entries matching the filter.
func (s *Service) MovementHistory(ctx context.Context, filter MovementFilter) ([]*StockMovement, error) {
	return s.repo.ListMovements(ctx, filter)
}

// SnapshotCheck reports whether one snapshot matches its ledger derivation.
type SnapshotCheck struct {
	TitleID       id.ID `json:"titleId"`
	WarehouseID   id.ID `json:"warehouseId"`
	SnapshotStock int64 `json:"snapshotStock"`
	LedgerSum     int64 `json:"ledgerSum"`
	Consistent    bool  `json:"consistent"`
}

// VerifySnapshot recomputes a snapshot from the signed sum of committed
// movements and reports drift. A missing snapshot is consistent only with an
// empty ledger for the pair.
func (s *Service) VerifySnapshot(ctx context.Context, titleID, warehouseID id.ID) (*SnapshotCheck, error) {
	check := &SnapshotCheck{TitleID: titleID, WarehouseID: warehouseID}

	sum, err := s.repo.SumQuantities(ctx, titleID, warehouseID)
	if err != nil {
		return nil, err
	}
	check.LedgerSum = sum

	inv, err := s.repo.GetSnapshot(ctx, titleID, warehouseID)
	if err != nil {
		if apperror.IsNotFound(err) {
			check.Consistent = sum == 0
			return check, nil
		}
		return nil, err
	}

	check.SnapshotStock = inv.CurrentStock
	check.Consistent = inv.CurrentStock == sum
	return check, nil
}

// LowStockLine pairs a snapshot with its title for low-stock listings.
type LowStockLine struct {
	Title    *title.Title `json:"title"`
	Snapshot *Inventory   `json:"inventory"`
}

// LowStockReport lists snapshots at or below their title's low-stock
// threshold, optionally filtered by warehouse.
func (s *Service) LowStockReport(ctx context.Context, warehouseID *id.ID) ([]LowStockLine, error) {
	snaps, err := s.repo.ListSnapshots(ctx, SnapshotFilter{WarehouseID: warehouseID})
	if err != nil {
		return nil, err
	}

	var lines []LowStockLine
	for _, inv := range snaps {
		t, err := s.titles.GetByID(ctx, inv.TitleID)
		if err != nil {
			continue
		}
		if t.LowStockThreshold == nil {
			continue
		}
		if inv.CurrentStock <= *t.LowStockThreshold {
			lines = append(lines, LowStockLine{Title: t, Snapshot: inv})
		}
	}
	return lines, nil
}

// --- internals ---

func withDefaults(ctx context.Context, req MovementRequest) MovementRequest {
	if req.MovementDate.IsZero() {
		req.MovementDate = time.Now().UTC()
	}
	if req.ActorID == "" {
		req.ActorID = appctx.GetActorID(ctx)
	}
	return req
}

func newMovement(req MovementRequest) *StockMovement {
	return &StockMovement{
		ID:                     id.New(),
		TitleID:                req.TitleID,
		WarehouseID:            req.WarehouseID,
		Type:                   req.Type,
		Quantity:               req.Quantity,
		MovementDate:           req.MovementDate,
		Channel:                req.Channel,
		UnitCost:               req.UnitCost,
		Price:                  req.Price,
		SourceWarehouseID:      req.SourceWarehouseID,
		DestinationWarehouseID: req.DestinationWarehouseID,
		Reference:              req.Reference,
		Notes:                  req.Notes,
		ActorID:                req.ActorID,
		CreatedAt:              time.Now().UTC(),
	}
}

func reversalOf(ctx context.Context, orig *StockMovement, req RollbackRequest) *StockMovement {
	now := time.Now().UTC()

	actor := req.Approver
	if actor == "" {
		actor = appctx.GetActorID(ctx)
	}

	notes := "reversal: " + req.Reason
	if req.Approver != "" {
		notes += " (approved by " + req.Approver + ")"
	}

	rev := &StockMovement{
		ID:           id.New(),
		TitleID:      orig.TitleID,
		WarehouseID:  orig.WarehouseID,
		Type:         orig.Type,
		Quantity:     -orig.Quantity,
		MovementDate: now,
		Channel:      orig.Channel,
		UnitCost:     orig.UnitCost,
		Price:        orig.Price,
		Reference:    orig.Reference,
		Notes:        notes,
		ActorID:      actor,
		ReversalOf:   &orig.ID,
		CreatedAt:    now,
	}

	// Transfer legs swap endpoints so the compensation reads correctly.
	rev.SourceWarehouseID = orig.DestinationWarehouseID
	rev.DestinationWarehouseID = orig.SourceWarehouseID

	return rev
}

// checkForCommit runs lookups and rules, failing fast with an AppError.
func (s *Service) checkForCommit(ctx context.Context, req MovementRequest) (*title.Title, *warehouse.Warehouse, []apperror.Warning, error) {
	if id.IsNil(req.TitleID) {
		return nil, nil, nil, apperror.NewValidation("title is required").WithDetail("field", "titleId")
	}
	if id.IsNil(req.WarehouseID) {
		return nil, nil, nil, apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}

	t, err := s.titles.GetByID(ctx, req.TitleID)
	if err != nil {
		return nil, nil, nil, err
	}
	wh, err := s.warehouses.GetByID(ctx, req.WarehouseID)
	if err != nil {
		return nil, nil, nil, err
	}

	errs, warns := movementRules(req, t, wh)
	if len(errs) > 0 {
		first := errs[0]
		if first.Code == apperror.CodeBusinessRule {
			return nil, nil, nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, first.Message)
		}
		return nil, nil, nil, apperror.NewValidation(first.Message).WithDetail("field", first.Field)
	}

	return t, wh, warns, nil
}

// movementRules evaluates the shared rule set. Nil title/warehouse are
// skipped (their absence is reported by the caller).
func movementRules(req MovementRequest, t *title.Title, wh *warehouse.Warehouse) (errs, warns []apperror.Warning) {
	fail := func(message, field string) {
		errs = append(errs, apperror.Warning{Code: apperror.CodeValidation, Message: message, Field: field})
	}

	if !ValidMovementType(req.Type) {
		fail(fmt.Sprintf("unknown movement type %q", req.Type), "movementType")
		return errs, warns
	}

	if req.Quantity == 0 {
		fail("quantity must not be zero", "quantity")
	}
	if IsInboundType(req.Type) && req.Quantity < 0 {
		fail(fmt.Sprintf("%s movements must have positive quantity", req.Type), "quantity")
	}
	if IsOutboundType(req.Type) && req.Quantity > 0 {
		fail(fmt.Sprintf("%s movements must have negative quantity", req.Type), "quantity")
	}

	if !req.MovementDate.IsZero() && req.MovementDate.After(time.Now().Add(futureDateSlack)) {
		fail("movement date cannot be in the future", "movementDate")
	}

	if req.Type == TypeTransfer {
		switch {
		case req.SourceWarehouseID == nil || req.DestinationWarehouseID == nil:
			fail("transfer movements require source and destination warehouses", "sourceWarehouseId")
		case *req.SourceWarehouseID == *req.DestinationWarehouseID:
			fail("transfer source and destination must differ", "destinationWarehouseId")
		case req.WarehouseID != *req.SourceWarehouseID && req.WarehouseID != *req.DestinationWarehouseID:
			fail("transfer movement warehouse must be one of its endpoints", "warehouseId")
		case req.WarehouseID == *req.SourceWarehouseID && req.Quantity > 0:
			fail("outbound transfer leg must have negative quantity", "quantity")
		case req.WarehouseID == *req.DestinationWarehouseID && req.Quantity < 0:
			fail("inbound transfer leg must have positive quantity", "quantity")
		}
	}

	if req.Type == TypeAdjustment && strings.TrimSpace(req.Notes) == "" {
		fail("adjustment movements require a notes justification", "notes")
	}

	if req.UnitCost != nil && req.UnitCost.IsNegative() {
		fail("unit cost must not be negative", "unitCost")
	}
	if req.Price != nil && req.Price.IsNegative() {
		fail("price must not be negative", "price")
	}

	if wh != nil && wh.Status == warehouse.StatusInactive {
		errs = append(errs, apperror.Warning{
			Code:    apperror.CodeBusinessRule,
			Message: fmt.Sprintf("warehouse %s is not operational", wh.Code),
			Field:   "warehouseId",
		})
	}

	if req.Channel != "" && wh != nil && !wh.ServesChannel(req.Channel) {
		warns = append(warns, apperror.Warning{
			Code:    apperror.CodeChannelMismatch,
			Message: fmt.Sprintf("warehouse %s does not service channel %q", wh.Code, req.Channel),
			Field:   "channel",
		})
	}

	if t != nil && !t.Active {
		warns = append(warns, apperror.Warning{
			Code:    apperror.CodeBusinessRule,
			Message: fmt.Sprintf("title %s is inactive", t.ISBN),
			Field:   "titleId",
		})
	}

	return errs, warns
}

// applyMovement appends one entry and re-derives the snapshot. Must run
// inside a transaction: the snapshot read takes a row lock so concurrent
// commits against the same pair serialize.
func (s *Service) applyMovement(ctx context.Context, m *StockMovement, releaseReservation bool) (*Inventory, events.StockChange, error) {
	inv, err := s.repo.GetSnapshotForUpdate(ctx, m.TitleID, m.WarehouseID)
	if err != nil {
		return nil, events.StockChange{}, err
	}

	previous := inv.CurrentStock

	// Reversals compensate history and bypass the availability check.
	if m.Quantity < 0 && !CanOversell(m.Type) && !m.IsReversal() {
		available := inv.Available()
		if releaseReservation {
			// The reservation already earmarked this stock.
			available = inv.CurrentStock
		}
		if -m.Quantity > available {
			return nil, events.StockChange{}, apperror.NewInsufficientStock(
				m.TitleID.String(), m.WarehouseID.String(), -m.Quantity, available,
			)
		}
	}

	if err := s.repo.InsertMovement(ctx, m); err != nil {
		return nil, events.StockChange{}, err
	}

	inv.CurrentStock += m.Quantity

	if releaseReservation && m.Quantity < 0 {
		release := -m.Quantity
		if release > inv.ReservedStock {
			return nil, events.StockChange{}, apperror.NewConflict("reservation release exceeds reserved stock").
				WithDetail("reserved", inv.ReservedStock).
				WithDetail("release", release)
		}
		inv.ReservedStock -= release
	}

	if m.Quantity > 0 && m.UnitCost != nil && m.UnitCost.IsPositive() {
		inv.AverageCost = blendAverageCost(previous, inv.AverageCost, m.Quantity, *m.UnitCost)
	}
	inv.TotalValue = types.RoundCurrency(inv.AverageCost.Mul(decimal.NewFromInt(inv.CurrentStock)))

	if m.MovementDate.After(inv.LastMovementAt) {
		inv.LastMovementAt = m.MovementDate
	}
	inv.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpsertSnapshot(ctx, inv); err != nil {
		return nil, events.StockChange{}, err
	}

	ev := events.StockChange{
		Type:          eventTypeFor(m),
		InventoryID:   inv.ID,
		TitleID:       m.TitleID,
		WarehouseID:   m.WarehouseID,
		PreviousStock: previous,
		NewStock:      inv.CurrentStock,
		ChangeAmount:  m.Quantity,
		Reason:        string(m.Type),
		Timestamp:     time.Now().UTC(),
	}
	if m.IsReversal() {
		ev.Reason = "reversal of " + m.ReversalOf.String()
	}

	return inv, ev, nil
}

func eventTypeFor(m *StockMovement) events.EventType {
	switch {
	case m.IsReversal():
		return events.EventStockReversal
	case m.Type == TypeTransfer && m.Quantity < 0:
		return events.EventTransferExecuted
	case m.Type == TypeTransfer && m.Quantity > 0:
		return events.EventTransferReceived
	default:
		return events.EventStockMovement
	}
}

// blendAverageCost folds an inbound cost layer into the cached average.
func blendAverageCost(previousStock int64, previousAvg types.Money, qty int64, unitCost types.Money) types.Money {
	if previousStock <= 0 || previousAvg.IsZero() {
		return unitCost
	}
	existing := previousAvg.Mul(decimal.NewFromInt(previousStock))
	incoming := unitCost.Mul(decimal.NewFromInt(qty))
	total := previousStock + qty
	if total <= 0 {
		return unitCost
	}
	return existing.Add(incoming).DivRound(decimal.NewFromInt(total), types.CurrencyScale)
}

func (s *Service) publish(ev events.StockChange) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(ev)
}

func asAppError(err error) *apperror.AppError {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr
	}
	return apperror.NewInternal(err)
}

func tagRows(warns []apperror.Warning, row int) []apperror.Warning {
	if len(warns) == 0 {
		return nil
	}
	tagged := make([]apperror.Warning, len(warns))
	for i, w := range warns {
		w.Row = row
		tagged[i] = w
	}
	return tagged
}
