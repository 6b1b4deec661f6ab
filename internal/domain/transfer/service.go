package transfer

import (
	"context"
	"strings"
	"time"

	"bookledger/internal/core/apperror"
	"bookledger/internal/core/id"
	"bookledger/internal/domain/catalogs/warehouse"
	"bookledger/internal/domain/ledger"
	"bookledger/pkg/logger"
	"bookledger/pkg/refnum"
)

// Service drives the transfer workflow. All stock effects go through the
// movement service, which is the single committer of ledger state; this
// service only sequences the workflow around it.
type Service struct {
	repo       Repository
	movements  *ledger.Service
	warehouses warehouse.Repository
	refs       *refnum.Generator
}

// NewService creates a new transfer orchestration service.
func NewService(repo Repository, movements *ledger.Service, warehouses warehouse.Repository, refs *refnum.Generator) *Service {
	return &Service{
		repo:       repo,
		movements:  movements,
		warehouses: warehouses,
		refs:       refs,
	}
}

// CreateRequest describes a new transfer request.
type CreateRequest struct {
	TitleID                id.ID    `json:"titleId"`
	SourceWarehouseID      id.ID    `json:"sourceWarehouseId"`
	DestinationWarehouseID id.ID    `json:"destinationWarehouseId"`
	Quantity               int64    `json:"quantity"`
	Priority               Priority `json:"priority,omitempty"`
	RequestedBy            string   `json:"requestedBy,omitempty"`
}

// CreateTransferRequest validates the endpoints, reserves stock at the source
// and records a REQUESTED transfer with cost and duration estimates.
func (s *Service) CreateTransferRequest(ctx context.Context, req CreateRequest) (*Transfer, error) {
	if req.Quantity <= 0 {
		return nil, apperror.NewValidation("transfer quantity must be positive").WithDetail("field", "quantity")
	}
	if req.SourceWarehouseID == req.DestinationWarehouseID {
		return nil, apperror.NewValidation("transfer source and destination must differ").
			WithDetail("field", "destinationWarehouseId")
	}
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}
	if !ValidPriority(req.Priority) {
		return nil, apperror.NewValidation("unknown priority").
			WithDetail("field", "priority").
			WithDetail("value", string(req.Priority))
	}

	source, err := s.warehouses.GetByID(ctx, req.SourceWarehouseID)
	if err != nil {
		return nil, err
	}
	dest, err := s.warehouses.GetByID(ctx, req.DestinationWarehouseID)
	if err != nil {
		return nil, err
	}
	if source.Status == warehouse.StatusInactive {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "source warehouse "+source.Code+" is not operational")
	}
	if dest.Status == warehouse.StatusInactive {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "destination warehouse "+dest.Code+" is not operational")
	}

	// Source pair must already exist: a transfer cannot be the first
	// movement a pair ever sees.
	if _, err := s.movements.GetSnapshot(ctx, req.TitleID, req.SourceWarehouseID); err != nil {
		return nil, err
	}

	// Reservation enforces available stock (current - reserved).
	if _, err := s.movements.ReserveStock(ctx, req.TitleID, req.SourceWarehouseID, req.Quantity); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t := &Transfer{
		ID:                     id.New(),
		Reference:              s.nextReference(ctx, now),
		TitleID:                req.TitleID,
		SourceWarehouseID:      req.SourceWarehouseID,
		DestinationWarehouseID: req.DestinationWarehouseID,
		Quantity:               req.Quantity,
		Priority:               req.Priority,
		Status:                 StatusRequested,
		CostEstimate:           EstimateCost(req.Quantity, req.Priority),
		EstimatedDuration:      EstimateDuration(req.Priority),
		RequestedBy:            req.RequestedBy,
		RequestedAt:            now,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if err := s.repo.Create(ctx, t); err != nil {
		// Created reservation must not leak when the record cannot be saved.
		if _, relErr := s.movements.ReleaseReservation(ctx, req.TitleID, req.SourceWarehouseID, req.Quantity); relErr != nil {
			logger.Error(ctx, "orphaned reservation after failed transfer create",
				"title_id", req.TitleID,
				"warehouse_id", req.SourceWarehouseID,
				"quantity", req.Quantity,
				"error", relErr,
			)
		}
		return nil, err
	}

	logger.Info(ctx, "transfer requested",
		"transfer_id", t.ID,
		"reference", t.Reference,
		"quantity", t.Quantity,
		"priority", string(t.Priority),
	)
	return t, nil
}

// ApproveTransfer moves REQUESTED to APPROVED, recording the approver and an
// optional execution schedule.
func (s *Service) ApproveTransfer(ctx context.Context, transferID id.ID, approver string, scheduledFor *time.Time) (*Transfer, error) {
	t, err := s.requireStatus(ctx, transferID, StatusApproved)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t.Status = StatusApproved
	t.ApprovedBy = approver
	t.ApprovedAt = &now
	t.ScheduledFor = scheduledFor
	t.UpdatedAt = now

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	logger.Info(ctx, "transfer approved", "transfer_id", t.ID, "approver", approver)
	return t, nil
}

// ExecuteTransfer moves APPROVED to IN_TRANSIT by committing the outbound
// ledger leg at the source. The reservation taken at request time converts
// into the actual decrement.
func (s *Service) ExecuteTransfer(ctx context.Context, transferID id.ID, executor string) (*Transfer, error) {
	t, err := s.requireStatus(ctx, transferID, StatusInTransit)
	if err != nil {
		return nil, err
	}

	// Capture the source cost before the decrement so the inbound leg can
	// carry it to the destination.
	if snap, err := s.movements.GetSnapshot(ctx, t.TitleID, t.SourceWarehouseID); err == nil && snap.AverageCost.IsPositive() {
		cost := snap.AverageCost
		t.UnitCost = &cost
	}

	res, err := s.movements.RecordMovement(ctx, ledger.MovementRequest{
		TitleID:                t.TitleID,
		WarehouseID:            t.SourceWarehouseID,
		Type:                   ledger.TypeTransfer,
		Quantity:               -t.Quantity,
		SourceWarehouseID:      &t.SourceWarehouseID,
		DestinationWarehouseID: &t.DestinationWarehouseID,
		Reference:              t.Reference,
		ActorID:                executor,
		ReleaseReservation:     true,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t.Status = StatusInTransit
	t.ExecutedBy = executor
	t.ExecutedAt = &now
	t.OutboundMovementID = &res.Movement.ID
	t.UpdatedAt = now

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	logger.Info(ctx, "transfer executed",
		"transfer_id", t.ID,
		"reference", t.Reference,
		"outbound_movement_id", res.Movement.ID,
	)
	return t, nil
}

// UpdateTransferTracking attaches carrier metadata to an in-transit transfer
// without changing workflow state.
func (s *Service) UpdateTransferTracking(ctx context.Context, transferID id.ID, tracking Tracking) (*Transfer, error) {
	t, err := s.repo.GetByID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if t.Status != StatusInTransit {
		return nil, apperror.NewInvalidStateTransition("transfer", string(t.Status), "tracking update")
	}

	t.Tracking = tracking
	t.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// CompleteTransfer moves IN_TRANSIT to COMPLETED by committing the inbound
// ledger leg at the destination and computing delivery analytics.
func (s *Service) CompleteTransfer(ctx context.Context, transferID id.ID, completer string) (*Transfer, error) {
	t, err := s.requireStatus(ctx, transferID, StatusCompleted)
	if err != nil {
		return nil, err
	}

	res, err := s.movements.RecordMovement(ctx, ledger.MovementRequest{
		TitleID:                t.TitleID,
		WarehouseID:            t.DestinationWarehouseID,
		Type:                   ledger.TypeTransfer,
		Quantity:               t.Quantity,
		UnitCost:               t.UnitCost,
		SourceWarehouseID:      &t.SourceWarehouseID,
		DestinationWarehouseID: &t.DestinationWarehouseID,
		Reference:              t.Reference,
		ActorID:                completer,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t.Status = StatusCompleted
	t.CompletedBy = completer
	t.CompletedAt = &now
	t.InboundMovementID = &res.Movement.ID
	t.Analytics = s.computeAnalytics(t, now)
	t.UpdatedAt = now

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	logger.Info(ctx, "transfer completed",
		"transfer_id", t.ID,
		"reference", t.Reference,
		"inbound_movement_id", res.Movement.ID,
		"on_time", t.Analytics.OnTime,
	)
	return t, nil
}

// CancelTransfer cancels a transfer still in REQUESTED or APPROVED and
// releases the source reservation. A transfer that already produced ledger
// entries cannot be cancelled, only reversed movement by movement.
func (s *Service) CancelTransfer(ctx context.Context, transferID id.ID, reason, actor string) (*Transfer, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperror.NewValidation("cancellation reason is required").WithDetail("field", "reason")
	}

	t, err := s.requireStatus(ctx, transferID, StatusCancelled)
	if err != nil {
		return nil, err
	}

	// Status transitions guard the release: a second cancel never reaches
	// this point, so the reservation is released exactly once.
	if _, err := s.movements.ReleaseReservation(ctx, t.TitleID, t.SourceWarehouseID, t.Quantity); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t.Status = StatusCancelled
	t.CancelledBy = actor
	t.CancelledAt = &now
	t.CancelReason = reason
	t.UpdatedAt = now

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	logger.Info(ctx, "transfer cancelled", "transfer_id", t.ID, "reason", reason)
	return t, nil
}

// GetTransfer retrieves one transfer by id.
func (s *Service) GetTransfer(ctx context.Context, transferID id.ID) (*Transfer, error) {
	return s.repo.GetByID(ctx, transferID)
}

// ListTransfers retrieves transfers matching the filter.
func (s *Service) ListTransfers(ctx context.Context, filter ListFilter) ([]*Transfer, error) {
	return s.repo.List(ctx, filter)
}

// requireStatus loads the transfer and checks the state machine allows
// moving to the target status.
func (s *Service) requireStatus(ctx context.Context, transferID id.ID, target Status) (*Transfer, error) {
	t, err := s.repo.GetByID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(t.Status, target) {
		return nil, apperror.NewInvalidStateTransition("transfer", string(t.Status), string(target))
	}
	return t, nil
}

func (s *Service) computeAnalytics(t *Transfer, completedAt time.Time) *Analytics {
	a := &Analytics{EfficiencyScore: 100, OnTime: true}
	if t.ExecutedAt == nil {
		return a
	}

	a.ActualDuration = completedAt.Sub(*t.ExecutedAt)

	deadline := t.ExecutedAt.Add(t.EstimatedDuration)
	if t.Tracking.ETA != nil {
		deadline = *t.Tracking.ETA
	}
	a.OnTime = !completedAt.After(deadline)
	a.EfficiencyScore = scoreEfficiency(t.EstimatedDuration, a.ActualDuration)
	return a
}

// nextReference draws the next TRF number, falling back to the transfer's
// UUID when no generator is wired (tests, dry runs).
func (s *Service) nextReference(ctx context.Context, now time.Time) string {
	if s.refs == nil {
		return "TRF-" + id.New().String()
	}
	ref, err := s.refs.Next(ctx, refnum.DefaultConfig("TRF"), nil, now)
	if err != nil {
		logger.Warn(ctx, "reference generation failed, using uuid fallback", "error", err)
		return "TRF-" + id.New().String()
	}
	return ref
}
