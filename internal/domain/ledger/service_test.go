package ledger

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookledger/internal/core/apperror"
	"bookledger/internal/core/id"
	"bookledger/internal/core/types"
	"bookledger/internal/domain/catalogs/title"
	"bookledger/internal/domain/catalogs/warehouse"
	"bookledger/internal/domain/events"
)

// --- in-memory fakes ---

type memRepo struct {
	movements []*StockMovement
	snapshots map[string]*Inventory
}

func newMemRepo() *memRepo {
	return &memRepo{snapshots: make(map[string]*Inventory)}
}

func pairKey(titleID, warehouseID id.ID) string {
	return titleID.String() + "|" + warehouseID.String()
}

func (r *memRepo) InsertMovement(ctx context.Context, m *StockMovement) error {
	cp := *m
	r.movements = append(r.movements, &cp)
	return nil
}

func (r *memRepo) GetMovement(ctx context.Context, movementID id.ID) (*StockMovement, error) {
	for _, m := range r.movements {
		if m.ID == movementID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("movement", movementID.String())
}

func (r *memRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]*StockMovement, error) {
	var out []*StockMovement
	for _, m := range r.movements {
		if filter.TitleID != nil && m.TitleID != *filter.TitleID {
			continue
		}
		if filter.WarehouseID != nil && m.WarehouseID != *filter.WarehouseID {
			continue
		}
		if filter.Reference != "" && m.Reference != filter.Reference {
			continue
		}
		if len(filter.Types) > 0 {
			found := false
			for _, t := range filter.Types {
				if m.Type == t {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if filter.Descending {
			return out[i].MovementDate.After(out[j].MovementDate)
		}
		return out[i].MovementDate.Before(out[j].MovementDate)
	})
	return out, nil
}

func (r *memRepo) SumQuantities(ctx context.Context, titleID, warehouseID id.ID) (int64, error) {
	var sum int64
	for _, m := range r.movements {
		if m.TitleID == titleID && m.WarehouseID == warehouseID {
			sum += m.Quantity
		}
	}
	return sum, nil
}

func (r *memRepo) GetSnapshot(ctx context.Context, titleID, warehouseID id.ID) (*Inventory, error) {
	if inv, ok := r.snapshots[pairKey(titleID, warehouseID)]; ok {
		cp := *inv
		return &cp, nil
	}
	return nil, apperror.NewNotFound("inventory", pairKey(titleID, warehouseID))
}

func (r *memRepo) GetSnapshotForUpdate(ctx context.Context, titleID, warehouseID id.ID) (*Inventory, error) {
	if inv, ok := r.snapshots[pairKey(titleID, warehouseID)]; ok {
		cp := *inv
		return &cp, nil
	}
	// A never-moved pair gets its row seeded under the lock.
	seed := &Inventory{
		ID:          id.New(),
		TitleID:     titleID,
		WarehouseID: warehouseID,
		AverageCost: types.ZeroMoney(),
		TotalValue:  types.ZeroMoney(),
	}
	r.snapshots[pairKey(titleID, warehouseID)] = seed
	cp := *seed
	return &cp, nil
}

func (r *memRepo) UpsertSnapshot(ctx context.Context, inv *Inventory) error {
	cp := *inv
	r.snapshots[pairKey(inv.TitleID, inv.WarehouseID)] = &cp
	return nil
}

func (r *memRepo) ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]*Inventory, error) {
	var out []*Inventory
	for _, inv := range r.snapshots {
		if filter.WarehouseID != nil && inv.WarehouseID != *filter.WarehouseID {
			continue
		}
		if filter.TitleID != nil && inv.TitleID != *filter.TitleID {
			continue
		}
		if filter.ExcludeZero && inv.CurrentStock == 0 {
			continue
		}
		cp := *inv
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memRepo) clone() *memRepo {
	cp := newMemRepo()
	for _, m := range r.movements {
		mc := *m
		cp.movements = append(cp.movements, &mc)
	}
	for k, inv := range r.snapshots {
		ic := *inv
		cp.snapshots[k] = &ic
	}
	return cp
}

// fakeTx restores repository state when the transaction function fails, so
// all-or-nothing semantics are observable in tests.
type fakeTx struct {
	repo *memRepo
}

func (t *fakeTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	saved := t.repo.clone()
	if err := fn(ctx); err != nil {
		t.repo.movements = saved.movements
		t.repo.snapshots = saved.snapshots
		return err
	}
	return nil
}

type memTitles struct {
	byID map[id.ID]*title.Title
}

func (r *memTitles) Create(ctx context.Context, t *title.Title) error { r.byID[t.ID] = t; return nil }
func (r *memTitles) Update(ctx context.Context, t *title.Title) error { r.byID[t.ID] = t; return nil }
func (r *memTitles) GetByID(ctx context.Context, titleID id.ID) (*title.Title, error) {
	if t, ok := r.byID[titleID]; ok {
		return t, nil
	}
	return nil, apperror.NewNotFound("title", titleID.String())
}
func (r *memTitles) GetByISBN(ctx context.Context, isbn string) (*title.Title, error) {
	for _, t := range r.byID {
		if t.ISBN == isbn {
			return t, nil
		}
	}
	return nil, apperror.NewNotFound("title", isbn)
}
func (r *memTitles) List(ctx context.Context, filter title.ListFilter) ([]*title.Title, error) {
	var out []*title.Title
	for _, t := range r.byID {
		out = append(out, t)
	}
	return out, nil
}
func (r *memTitles) Delete(ctx context.Context, titleID id.ID) error {
	delete(r.byID, titleID)
	return nil
}

type memWarehouses struct {
	byID map[id.ID]*warehouse.Warehouse
}

func (r *memWarehouses) Create(ctx context.Context, w *warehouse.Warehouse) error {
	r.byID[w.ID] = w
	return nil
}
func (r *memWarehouses) Update(ctx context.Context, w *warehouse.Warehouse) error {
	r.byID[w.ID] = w
	return nil
}
func (r *memWarehouses) GetByID(ctx context.Context, warehouseID id.ID) (*warehouse.Warehouse, error) {
	if w, ok := r.byID[warehouseID]; ok {
		return w, nil
	}
	return nil, apperror.NewNotFound("warehouse", warehouseID.String())
}
func (r *memWarehouses) GetByCode(ctx context.Context, code string) (*warehouse.Warehouse, error) {
	for _, w := range r.byID {
		if w.Code == code {
			return w, nil
		}
	}
	return nil, apperror.NewNotFound("warehouse", code)
}
func (r *memWarehouses) List(ctx context.Context, filter warehouse.ListFilter) ([]*warehouse.Warehouse, error) {
	var out []*warehouse.Warehouse
	for _, w := range r.byID {
		out = append(out, w)
	}
	return out, nil
}
func (r *memWarehouses) Delete(ctx context.Context, warehouseID id.ID) error {
	delete(r.byID, warehouseID)
	return nil
}

// --- fixture ---

type fixture struct {
	svc       *Service
	repo      *memRepo
	hub       *events.Hub
	published []events.StockChange

	title     *title.Title
	warehouse *warehouse.Warehouse
	secondary *warehouse.Warehouse
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{repo: newMemRepo()}

	f.title = title.NewTitle("9781234567897", "The Go Workshop")
	f.warehouse = warehouse.NewWarehouse("LDN", "London DC")
	f.warehouse.Channels = []string{"online", "retail"}
	f.secondary = warehouse.NewWarehouse("MAN", "Manchester DC")

	titles := &memTitles{byID: map[id.ID]*title.Title{f.title.ID: f.title}}
	warehouses := &memWarehouses{byID: map[id.ID]*warehouse.Warehouse{
		f.warehouse.ID: f.warehouse,
		f.secondary.ID: f.secondary,
	}}

	f.hub = events.NewHub(nil)
	f.hub.Subscribe(events.Subscription{
		SubscriberID: "test-capture",
		Handler: func(e events.StockChange) {
			f.published = append(f.published, e)
		},
	})

	f.svc = NewService(f.repo, titles, warehouses, &fakeTx{repo: f.repo}, f.hub)
	return f
}

func (f *fixture) receive(t *testing.T, qty int64, cost string) *MovementResult {
	t.Helper()
	c := types.MustMoney(cost)
	res, err := f.svc.RecordMovement(context.Background(), MovementRequest{
		TitleID:     f.title.ID,
		WarehouseID: f.warehouse.ID,
		Type:        TypeReceipt,
		Quantity:    qty,
		UnitCost:    &c,
	})
	require.NoError(t, err)
	return res
}

// --- tests ---

func TestRecordMovementCreatesSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.receive(t, 100, "8.00")

	assert.Equal(t, int64(100), res.Snapshot.CurrentStock)
	assert.True(t, res.Snapshot.AverageCost.Equal(types.MustMoney("8.00")))
	assert.True(t, res.Snapshot.TotalValue.Equal(types.MustMoney("800.00")))

	// snapshot equals the signed sum of committed movements
	check, err := f.svc.VerifySnapshot(ctx, f.title.ID, f.warehouse.ID)
	require.NoError(t, err)
	assert.True(t, check.Consistent)

	require.Len(t, f.published, 1)
	assert.Equal(t, events.EventStockMovement, f.published[0].Type)
	assert.Equal(t, int64(0), f.published[0].PreviousStock)
	assert.Equal(t, int64(100), f.published[0].NewStock)
}

func TestRecordMovementInsufficientStock(t *testing.T) {
	f := newFixture(t)
	f.receive(t, 10, "8.00")

	_, err := f.svc.RecordMovement(context.Background(), MovementRequest{
		TitleID:     f.title.ID,
		WarehouseID: f.warehouse.ID,
		Type:        TypeSale,
		Quantity:    -50,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// failed commit leaves no trace in the ledger
	sum, _ := f.repo.SumQuantities(context.Background(), f.title.ID, f.warehouse.ID)
	assert.Equal(t, int64(10), sum)
}

func TestAdjustmentMayOversell(t *testing.T) {
	f := newFixture(t)
	f.receive(t, 10, "8.00")

	res, err := f.svc.RecordMovement(context.Background(), MovementRequest{
		TitleID:     f.title.ID,
		WarehouseID: f.warehouse.ID,
		Type:        TypeAdjustment,
		Quantity:    -50,
		Notes:       "stocktake correction",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-40), res.Snapshot.CurrentStock)
}

func TestAdjustmentRequiresNotes(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RecordMovement(context.Background(), MovementRequest{
		TitleID:     f.title.ID,
		WarehouseID: f.warehouse.ID,
		Type:        TypeAdjustment,
		Quantity:    5,
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestRecordMovementDirectionRules(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		typ  MovementType
		qty  int64
	}{
		{"zero quantity", TypeReceipt, 0},
		{"negative receipt", TypeReceipt, -5},
		{"positive sale", TypeSale, 5},
		{"unknown type", MovementType("DONATION"), 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.RecordMovement(context.Background(), MovementRequest{
				TitleID:     f.title.ID,
				WarehouseID: f.warehouse.ID,
				Type:        tc.typ,
				Quantity:    tc.qty,
			})
			assert.Error(t, err)
		})
	}
}

func TestRecordMovementFutureDateRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RecordMovement(context.Background(), MovementRequest{
		TitleID:      f.title.ID,
		WarehouseID:  f.warehouse.ID,
		Type:         TypeReceipt,
		Quantity:     10,
		MovementDate: time.Now().Add(48 * time.Hour),
	})
	require.Error(t, err)
}

func TestRecordMovementBlendsAverageCost(t *testing.T) {
	f := newFixture(t)
	f.receive(t, 100, "8.00")
	res := f.receive(t, 50, "9.00")

	// (100*8 + 50*9) / 150 = 8.33
	assert.True(t, res.Snapshot.AverageCost.Equal(types.MustMoney("8.33")), "got %s", res.Snapshot.AverageCost)
	assert.Equal(t, int64(150), res.Snapshot.CurrentStock)
}

func TestRecordMovementChannelMismatchWarning(t *testing.T) {
	f := newFixture(t)
	f.receive(t, 100, "8.00")

	res, err := f.svc.RecordMovement(context.Background(), MovementRequest{
		TitleID:     f.title.ID,
		WarehouseID: f.warehouse.ID,
		Type:        TypeSale,
		Quantity:    -5,
		Channel:     "export",
	})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, apperror.CodeChannelMismatch, res.Warnings[0].Code)
	// warning never blocks the commit
	assert.Equal(t, int64(95), res.Snapshot.CurrentStock)
}

func TestRecordMovementInactiveWarehouseRejected(t *testing.T) {
	f := newFixture(t)
	f.warehouse.Status = warehouse.StatusInactive

	_, err := f.svc.RecordMovement(context.Background(), MovementRequest{
		TitleID:     f.title.ID,
		WarehouseID: f.warehouse.ID,
		Type:        TypeReceipt,
		Quantity:    10,
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeBusinessRule, appErr.Code)
}

func TestRollbackMovement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.receive(t, 100, "8.00")

	rb, err := f.svc.RollbackMovement(ctx, res.Movement.ID, RollbackRequest{
		Reason:         "posted to wrong warehouse",
		Approver:       "ops-lead",
		CreateReversal: true,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(-100), rb.Movement.Quantity)
	require.NotNil(t, rb.Movement.ReversalOf)
	assert.Equal(t, res.Movement.ID, *rb.Movement.ReversalOf)
	assert.Equal(t, int64(0), rb.Snapshot.CurrentStock)

	// original entry is still in the ledger untouched
	orig, err := f.repo.GetMovement(ctx, res.Movement.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), orig.Quantity)

	check, err := f.svc.VerifySnapshot(ctx, f.title.ID, f.warehouse.ID)
	require.NoError(t, err)
	assert.True(t, check.Consistent)
}

func TestRollbackMovementDryRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.receive(t, 100, "8.00")

	rb, err := f.svc.RollbackMovement(ctx, res.Movement.ID, RollbackRequest{
		Reason:         "checking impact",
		CreateReversal: false,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-100), rb.Movement.Quantity)
	assert.Nil(t, rb.Snapshot)

	// nothing committed
	sum, _ := f.repo.SumQuantities(ctx, f.title.ID, f.warehouse.ID)
	assert.Equal(t, int64(100), sum)
}

func TestRollbackMovementRequiresReason(t *testing.T) {
	f := newFixture(t)
	res := f.receive(t, 10, "8.00")

	_, err := f.svc.RollbackMovement(context.Background(), res.Movement.ID, RollbackRequest{CreateReversal: true})
	require.Error(t, err)
}

func TestRollbackMovementSwapsTransferEndpoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.receive(t, 100, "8.00")

	out, err := f.svc.RecordMovement(ctx, MovementRequest{
		TitleID:                f.title.ID,
		WarehouseID:            f.warehouse.ID,
		Type:                   TypeTransfer,
		Quantity:               -40,
		SourceWarehouseID:      &f.warehouse.ID,
		DestinationWarehouseID: &f.secondary.ID,
	})
	require.NoError(t, err)

	rb, err := f.svc.RollbackMovement(ctx, out.Movement.ID, RollbackRequest{
		Reason:         "shipment never left",
		CreateReversal: true,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(40), rb.Movement.Quantity)
	assert.Equal(t, f.secondary.ID, *rb.Movement.SourceWarehouseID)
	assert.Equal(t, f.warehouse.ID, *rb.Movement.DestinationWarehouseID)
}

func TestProcessBatchAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reqs := []MovementRequest{
		{TitleID: f.title.ID, WarehouseID: f.warehouse.ID, Type: TypeReceipt, Quantity: 100},
		{TitleID: f.title.ID, WarehouseID: f.warehouse.ID, Type: TypeSale, Quantity: -500},
	}

	res, err := f.svc.ProcessBatch(ctx, reqs, BatchOptions{})
	require.Error(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)

	// first row must not survive the aborted batch
	sum, _ := f.repo.SumQuantities(ctx, f.title.ID, f.warehouse.ID)
	assert.Equal(t, int64(0), sum)
	assert.Empty(t, f.published)
}

func TestProcessBatchContinueOnError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reqs := []MovementRequest{
		{TitleID: f.title.ID, WarehouseID: f.warehouse.ID, Type: TypeReceipt, Quantity: 100},
		{TitleID: f.title.ID, WarehouseID: f.warehouse.ID, Type: TypeSale, Quantity: -500},
		{TitleID: f.title.ID, WarehouseID: f.warehouse.ID, Type: TypeSale, Quantity: -20},
	}

	res, err := f.svc.ProcessBatch(ctx, reqs, BatchOptions{ContinueOnError: true})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, apperror.CodeInsufficientStock, res.Errors[0].Error.Code)

	sum, _ := f.repo.SumQuantities(ctx, f.title.ID, f.warehouse.ID)
	assert.Equal(t, int64(80), sum)
}

func TestProcessBatchValidateOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reqs := []MovementRequest{
		{TitleID: f.title.ID, WarehouseID: f.warehouse.ID, Type: TypeReceipt, Quantity: 100},
		{TitleID: f.title.ID, WarehouseID: f.warehouse.ID, Type: TypeReceipt, Quantity: -1},
	}

	res, err := f.svc.ProcessBatch(ctx, reqs, BatchOptions{ValidateOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)

	// validation never touches the ledger
	assert.Empty(t, f.repo.movements)
}

func TestReserveAndReleaseStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.receive(t, 100, "8.00")

	inv, err := f.svc.ReserveStock(ctx, f.title.ID, f.warehouse.ID, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(30), inv.ReservedStock)
	assert.Equal(t, int64(70), inv.Available())

	// a sale may only consume available stock
	_, err = f.svc.RecordMovement(ctx, MovementRequest{
		TitleID:     f.title.ID,
		WarehouseID: f.warehouse.ID,
		Type:        TypeSale,
		Quantity:    -80,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	inv, err = f.svc.ReleaseReservation(ctx, f.title.ID, f.warehouse.ID, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(0), inv.ReservedStock)

	_, err = f.svc.RecordMovement(ctx, MovementRequest{
		TitleID:     f.title.ID,
		WarehouseID: f.warehouse.ID,
		Type:        TypeSale,
		Quantity:    -80,
	})
	require.NoError(t, err)
}

func TestReserveStockInsufficient(t *testing.T) {
	f := newFixture(t)
	f.receive(t, 10, "8.00")

	_, err := f.svc.ReserveStock(context.Background(), f.title.ID, f.warehouse.ID, 50)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))
}

func TestReleaseReservationOverRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.receive(t, 100, "8.00")

	_, err := f.svc.ReserveStock(ctx, f.title.ID, f.warehouse.ID, 20)
	require.NoError(t, err)

	_, err = f.svc.ReleaseReservation(ctx, f.title.ID, f.warehouse.ID, 50)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeConflict, appErr.Code)
}

func TestValidateMovementCollectsAllErrors(t *testing.T) {
	f := newFixture(t)

	res := f.svc.ValidateMovement(context.Background(), MovementRequest{
		TitleID:     id.New(), // unknown
		WarehouseID: f.warehouse.ID,
		Type:        TypeSale,
		Quantity:    5, // wrong sign
	})

	assert.False(t, res.IsValid)
	assert.GreaterOrEqual(t, len(res.Errors), 2)
}

func TestVerifySnapshotMissingPair(t *testing.T) {
	f := newFixture(t)

	check, err := f.svc.VerifySnapshot(context.Background(), id.New(), f.warehouse.ID)
	require.NoError(t, err)
	assert.True(t, check.Consistent, "empty ledger and missing snapshot agree")
}

func TestLowStockReport(t *testing.T) {
	f := newFixture(t)
	threshold := int64(20)
	f.title.LowStockThreshold = &threshold
	f.receive(t, 15, "8.00")

	lines, err := f.svc.LowStockReport(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, f.title.ID, lines[0].Title.ID)
	assert.Equal(t, int64(15), lines[0].Snapshot.CurrentStock)
}

func TestTransferLegRules(t *testing.T) {
	f := newFixture(t)
	f.receive(t, 100, "8.00")

	// missing endpoints
	_, err := f.svc.RecordMovement(context.Background(), MovementRequest{
		TitleID:     f.title.ID,
		WarehouseID: f.warehouse.ID,
		Type:        TypeTransfer,
		Quantity:    -10,
	})
	require.Error(t, err)

	// same source and destination
	_, err = f.svc.RecordMovement(context.Background(), MovementRequest{
		TitleID:                f.title.ID,
		WarehouseID:            f.warehouse.ID,
		Type:                   TypeTransfer,
		Quantity:               -10,
		SourceWarehouseID:      &f.warehouse.ID,
		DestinationWarehouseID: &f.warehouse.ID,
	})
	require.Error(t, err)

	// outbound leg with inbound sign
	_, err = f.svc.RecordMovement(context.Background(), MovementRequest{
		TitleID:                f.title.ID,
		WarehouseID:            f.warehouse.ID,
		Type:                   TypeTransfer,
		Quantity:               10,
		SourceWarehouseID:      &f.warehouse.ID,
		DestinationWarehouseID: &f.secondary.ID,
	})
	require.Error(t, err)
}
