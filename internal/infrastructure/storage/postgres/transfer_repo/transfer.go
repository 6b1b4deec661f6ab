// Package transfer_repo provides the PostgreSQL implementation of the
// transfer workflow repository.
package transfer_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"bookledger/internal/core/apperror"
	"bookledger/internal/core/id"
	"bookledger/internal/core/types"
	"bookledger/internal/domain/transfer"
	"bookledger/internal/infrastructure/storage/postgres"
)

const transfersTable = "transfers"

var _ transfer.Repository = (*TransferRepo)(nil)

// TransferRepo implements transfer.Repository.
type TransferRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewTransferRepo creates a new transfer repository.
func NewTransferRepo(txm *postgres.TxManager) *TransferRepo {
	return &TransferRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// dbTransfer is the flat row shape: tracking and analytics live in dedicated
// columns rather than nested structs.
type dbTransfer struct {
	ID        id.ID  `db:"id"`
	Reference string `db:"reference"`

	TitleID                id.ID `db:"title_id"`
	SourceWarehouseID      id.ID `db:"source_warehouse_id"`
	DestinationWarehouseID id.ID `db:"destination_warehouse_id"`

	Quantity int64             `db:"quantity"`
	Priority transfer.Priority `db:"priority"`
	Status   transfer.Status   `db:"status"`

	CostEstimate         types.Money `db:"cost_estimate"`
	EstimatedDurationSec int64       `db:"estimated_duration_sec"`

	UnitCost *types.Money `db:"unit_cost"`

	RequestedBy string     `db:"requested_by"`
	RequestedAt time.Time  `db:"requested_at"`
	ApprovedBy  string     `db:"approved_by"`
	ApprovedAt  *time.Time `db:"approved_at"`

	ScheduledFor *time.Time `db:"scheduled_for"`

	ExecutedBy  string     `db:"executed_by"`
	ExecutedAt  *time.Time `db:"executed_at"`
	CompletedBy string     `db:"completed_by"`
	CompletedAt *time.Time `db:"completed_at"`

	CancelledBy  string     `db:"cancelled_by"`
	CancelledAt  *time.Time `db:"cancelled_at"`
	CancelReason string     `db:"cancel_reason"`

	Carrier         string     `db:"carrier"`
	TrackingNumber  string     `db:"tracking_number"`
	CurrentLocation string     `db:"current_location"`
	ETA             *time.Time `db:"eta"`

	ActualDurationSec *int64 `db:"actual_duration_sec"`
	OnTime            *bool  `db:"on_time"`
	EfficiencyScore   *int   `db:"efficiency_score"`

	OutboundMovementID *id.ID `db:"outbound_movement_id"`
	InboundMovementID  *id.ID `db:"inbound_movement_id"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

var transferColumns = []string{
	"id", "reference", "title_id", "source_warehouse_id", "destination_warehouse_id",
	"quantity", "priority", "status", "cost_estimate", "estimated_duration_sec",
	"unit_cost", "requested_by", "requested_at", "approved_by", "approved_at",
	"scheduled_for", "executed_by", "executed_at", "completed_by", "completed_at",
	"cancelled_by", "cancelled_at", "cancel_reason",
	"carrier", "tracking_number", "current_location", "eta",
	"actual_duration_sec", "on_time", "efficiency_score",
	"outbound_movement_id", "inbound_movement_id",
	"created_at", "updated_at",
}

func toRow(t *transfer.Transfer) *dbTransfer {
	row := &dbTransfer{
		ID:                     t.ID,
		Reference:              t.Reference,
		TitleID:                t.TitleID,
		SourceWarehouseID:      t.SourceWarehouseID,
		DestinationWarehouseID: t.DestinationWarehouseID,
		Quantity:               t.Quantity,
		Priority:               t.Priority,
		Status:                 t.Status,
		CostEstimate:           t.CostEstimate,
		EstimatedDurationSec:   int64(t.EstimatedDuration / time.Second),
		UnitCost:               t.UnitCost,
		RequestedBy:            t.RequestedBy,
		RequestedAt:            t.RequestedAt,
		ApprovedBy:             t.ApprovedBy,
		ApprovedAt:             t.ApprovedAt,
		ScheduledFor:           t.ScheduledFor,
		ExecutedBy:             t.ExecutedBy,
		ExecutedAt:             t.ExecutedAt,
		CompletedBy:            t.CompletedBy,
		CompletedAt:            t.CompletedAt,
		CancelledBy:            t.CancelledBy,
		CancelledAt:            t.CancelledAt,
		CancelReason:           t.CancelReason,
		Carrier:                t.Tracking.Carrier,
		TrackingNumber:         t.Tracking.TrackingNumber,
		CurrentLocation:        t.Tracking.CurrentLocation,
		ETA:                    t.Tracking.ETA,
		OutboundMovementID:     t.OutboundMovementID,
		InboundMovementID:      t.InboundMovementID,
		CreatedAt:              t.CreatedAt,
		UpdatedAt:              t.UpdatedAt,
	}
	if t.Analytics != nil {
		sec := int64(t.Analytics.ActualDuration / time.Second)
		onTime := t.Analytics.OnTime
		score := t.Analytics.EfficiencyScore
		row.ActualDurationSec = &sec
		row.OnTime = &onTime
		row.EfficiencyScore = &score
	}
	return row
}

func fromRow(row *dbTransfer) *transfer.Transfer {
	t := &transfer.Transfer{
		ID:                     row.ID,
		Reference:              row.Reference,
		TitleID:                row.TitleID,
		SourceWarehouseID:      row.SourceWarehouseID,
		DestinationWarehouseID: row.DestinationWarehouseID,
		Quantity:               row.Quantity,
		Priority:               row.Priority,
		Status:                 row.Status,
		CostEstimate:           row.CostEstimate,
		EstimatedDuration:      time.Duration(row.EstimatedDurationSec) * time.Second,
		UnitCost:               row.UnitCost,
		RequestedBy:            row.RequestedBy,
		RequestedAt:            row.RequestedAt,
		ApprovedBy:             row.ApprovedBy,
		ApprovedAt:             row.ApprovedAt,
		ScheduledFor:           row.ScheduledFor,
		ExecutedBy:             row.ExecutedBy,
		ExecutedAt:             row.ExecutedAt,
		CompletedBy:            row.CompletedBy,
		CompletedAt:            row.CompletedAt,
		CancelledBy:            row.CancelledBy,
		CancelledAt:            row.CancelledAt,
		CancelReason:           row.CancelReason,
		Tracking: transfer.Tracking{
			Carrier:         row.Carrier,
			TrackingNumber:  row.TrackingNumber,
			CurrentLocation: row.CurrentLocation,
			ETA:             row.ETA,
		},
		OutboundMovementID: row.OutboundMovementID,
		InboundMovementID:  row.InboundMovementID,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
	if row.ActualDurationSec != nil {
		t.Analytics = &transfer.Analytics{
			ActualDuration: time.Duration(*row.ActualDurationSec) * time.Second,
		}
		if row.OnTime != nil {
			t.Analytics.OnTime = *row.OnTime
		}
		if row.EfficiencyScore != nil {
			t.Analytics.EfficiencyScore = *row.EfficiencyScore
		}
	}
	return t
}

func rowValues(row *dbTransfer) []any {
	return []any{
		row.ID, row.Reference, row.TitleID, row.SourceWarehouseID, row.DestinationWarehouseID,
		row.Quantity, row.Priority, row.Status, row.CostEstimate, row.EstimatedDurationSec,
		row.UnitCost, row.RequestedBy, row.RequestedAt, row.ApprovedBy, row.ApprovedAt,
		row.ScheduledFor, row.ExecutedBy, row.ExecutedAt, row.CompletedBy, row.CompletedAt,
		row.CancelledBy, row.CancelledAt, row.CancelReason,
		row.Carrier, row.TrackingNumber, row.CurrentLocation, row.ETA,
		row.ActualDurationSec, row.OnTime, row.EfficiencyScore,
		row.OutboundMovementID, row.InboundMovementID,
		row.CreatedAt, row.UpdatedAt,
	}
}

// Create persists a new transfer record.
func (r *TransferRepo) Create(ctx context.Context, t *transfer.Transfer) error {
	row := toRow(t)
	q := r.builder.Insert(transfersTable).
		Columns(transferColumns...).
		Values(rowValues(row)...)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert transfer: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate("transfer", "reference", t.Reference)
		}
		return fmt.Errorf("insert transfer: %w", err)
	}

	return nil
}

// Update persists workflow state changes. Identity and request columns stay
// as created; everything the workflow mutates is written back.
func (r *TransferRepo) Update(ctx context.Context, t *transfer.Transfer) error {
	row := toRow(t)
	q := r.builder.Update(transfersTable).
		Set("status", row.Status).
		Set("unit_cost", row.UnitCost).
		Set("approved_by", row.ApprovedBy).
		Set("approved_at", row.ApprovedAt).
		Set("scheduled_for", row.ScheduledFor).
		Set("executed_by", row.ExecutedBy).
		Set("executed_at", row.ExecutedAt).
		Set("completed_by", row.CompletedBy).
		Set("completed_at", row.CompletedAt).
		Set("cancelled_by", row.CancelledBy).
		Set("cancelled_at", row.CancelledAt).
		Set("cancel_reason", row.CancelReason).
		Set("carrier", row.Carrier).
		Set("tracking_number", row.TrackingNumber).
		Set("current_location", row.CurrentLocation).
		Set("eta", row.ETA).
		Set("actual_duration_sec", row.ActualDurationSec).
		Set("on_time", row.OnTime).
		Set("efficiency_score", row.EfficiencyScore).
		Set("outbound_movement_id", row.OutboundMovementID).
		Set("inbound_movement_id", row.InboundMovementID).
		Set("updated_at", row.UpdatedAt).
		Where(squirrel.Eq{"id": row.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update transfer: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("transfer", t.ID.String())
	}

	return nil
}

// GetByID retrieves a transfer by id.
func (r *TransferRepo) GetByID(ctx context.Context, transferID id.ID) (*transfer.Transfer, error) {
	return r.getOne(ctx, squirrel.Eq{"id": transferID}, transferID.String())
}

// GetByReference retrieves a transfer by its reference number.
func (r *TransferRepo) GetByReference(ctx context.Context, reference string) (*transfer.Transfer, error) {
	return r.getOne(ctx, squirrel.Eq{"reference": reference}, reference)
}

func (r *TransferRepo) getOne(ctx context.Context, where squirrel.Eq, key string) (*transfer.Transfer, error) {
	q := r.builder.Select(transferColumns...).
		From(transfersTable).
		Where(where).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get transfer: %w", err)
	}

	var row dbTransfer
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("transfer", key)
		}
		return nil, fmt.Errorf("get transfer: %w", err)
	}

	return fromRow(&row), nil
}

// List retrieves transfers matching the filter, newest first.
func (r *TransferRepo) List(ctx context.Context, filter transfer.ListFilter) ([]*transfer.Transfer, error) {
	q := r.builder.Select(transferColumns...).From(transfersTable)

	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.TitleID != nil {
		q = q.Where(squirrel.Eq{"title_id": *filter.TitleID})
	}
	if filter.SourceWarehouseID != nil {
		q = q.Where(squirrel.Eq{"source_warehouse_id": *filter.SourceWarehouseID})
	}
	if filter.DestinationWarehouseID != nil {
		q = q.Where(squirrel.Eq{"destination_warehouse_id": *filter.DestinationWarehouseID})
	}

	q = q.OrderBy("requested_at DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list transfers: %w", err)
	}

	var rows []*dbTransfer
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}

	transfers := make([]*transfer.Transfer, len(rows))
	for i, row := range rows {
		transfers[i] = fromRow(row)
	}
	return transfers, nil
}
