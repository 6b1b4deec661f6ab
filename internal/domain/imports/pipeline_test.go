package imports

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookledger/internal/core/apperror"
	"bookledger/internal/core/id"
	"bookledger/internal/core/types"
	"bookledger/internal/domain/catalogs/title"
	"bookledger/internal/domain/catalogs/warehouse"
	"bookledger/internal/domain/ledger"
)

// --- in-memory fakes ---

type memJobs struct {
	jobs    map[id.ID]*Job
	configs map[id.ID]*SyncConfig
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: make(map[id.ID]*Job), configs: make(map[id.ID]*SyncConfig)}
}

func (r *memJobs) CreateJob(ctx context.Context, job *Job) error {
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memJobs) UpdateJob(ctx context.Context, job *Job) error {
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memJobs) GetJob(ctx context.Context, jobID id.ID) (*Job, error) {
	if j, ok := r.jobs[jobID]; ok {
		cp := *j
		return &cp, nil
	}
	return nil, apperror.NewNotFound("import job", jobID.String())
}

func (r *memJobs) ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error) {
	var out []*Job
	for _, j := range r.jobs {
		if filter.Status != nil && j.Status != *filter.Status {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memJobs) CreateSyncConfig(ctx context.Context, cfg *SyncConfig) error {
	cp := *cfg
	r.configs[cfg.ID] = &cp
	return nil
}

func (r *memJobs) UpdateSyncConfig(ctx context.Context, cfg *SyncConfig) error {
	cp := *cfg
	r.configs[cfg.ID] = &cp
	return nil
}

func (r *memJobs) GetSyncConfig(ctx context.Context, configID id.ID) (*SyncConfig, error) {
	if c, ok := r.configs[configID]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, apperror.NewNotFound("sync configuration", configID.String())
}

func (r *memJobs) ListSyncConfigs(ctx context.Context, enabledOnly bool) ([]*SyncConfig, error) {
	var out []*SyncConfig
	for _, c := range r.configs {
		if enabledOnly && !c.Enabled {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memJobs) ListDueSyncConfigs(ctx context.Context, now time.Time) ([]*SyncConfig, error) {
	var out []*SyncConfig
	for _, c := range r.configs {
		if !c.Enabled || c.NextRunAt.After(now) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

type memLedgerRepo struct {
	movements []*ledger.StockMovement
	snapshots map[string]*ledger.Inventory
}

func pairKey(titleID, warehouseID id.ID) string {
	return titleID.String() + "|" + warehouseID.String()
}

func (r *memLedgerRepo) InsertMovement(ctx context.Context, m *ledger.StockMovement) error {
	cp := *m
	r.movements = append(r.movements, &cp)
	return nil
}

func (r *memLedgerRepo) GetMovement(ctx context.Context, movementID id.ID) (*ledger.StockMovement, error) {
	for _, m := range r.movements {
		if m.ID == movementID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("movement", movementID.String())
}

func (r *memLedgerRepo) ListMovements(ctx context.Context, filter ledger.MovementFilter) ([]*ledger.StockMovement, error) {
	var out []*ledger.StockMovement
	for _, m := range r.movements {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memLedgerRepo) SumQuantities(ctx context.Context, titleID, warehouseID id.ID) (int64, error) {
	var sum int64
	for _, m := range r.movements {
		if m.TitleID == titleID && m.WarehouseID == warehouseID {
			sum += m.Quantity
		}
	}
	return sum, nil
}

func (r *memLedgerRepo) GetSnapshot(ctx context.Context, titleID, warehouseID id.ID) (*ledger.Inventory, error) {
	if inv, ok := r.snapshots[pairKey(titleID, warehouseID)]; ok {
		cp := *inv
		return &cp, nil
	}
	return nil, apperror.NewNotFound("inventory", pairKey(titleID, warehouseID))
}

func (r *memLedgerRepo) GetSnapshotForUpdate(ctx context.Context, titleID, warehouseID id.ID) (*ledger.Inventory, error) {
	if inv, ok := r.snapshots[pairKey(titleID, warehouseID)]; ok {
		cp := *inv
		return &cp, nil
	}
	// A never-moved pair gets its row seeded under the lock.
	seed := &ledger.Inventory{
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

func (r *memLedgerRepo) UpsertSnapshot(ctx context.Context, inv *ledger.Inventory) error {
	cp := *inv
	r.snapshots[pairKey(inv.TitleID, inv.WarehouseID)] = &cp
	return nil
}

func (r *memLedgerRepo) ListSnapshots(ctx context.Context, filter ledger.SnapshotFilter) ([]*ledger.Inventory, error) {
	var out []*ledger.Inventory
	for _, inv := range r.snapshots {
		cp := *inv
		out = append(out, &cp)
	}
	return out, nil
}

type passTx struct{}

func (passTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memTitles struct{ byISBN map[string]*title.Title }

func (r *memTitles) Create(ctx context.Context, t *title.Title) error {
	r.byISBN[t.ISBN] = t
	return nil
}
func (r *memTitles) Update(ctx context.Context, t *title.Title) error { return nil }
func (r *memTitles) GetByID(ctx context.Context, titleID id.ID) (*title.Title, error) {
	for _, t := range r.byISBN {
		if t.ID == titleID {
			return t, nil
		}
	}
	return nil, apperror.NewNotFound("title", titleID.String())
}
func (r *memTitles) GetByISBN(ctx context.Context, isbn string) (*title.Title, error) {
	if t, ok := r.byISBN[isbn]; ok {
		return t, nil
	}
	return nil, apperror.NewNotFound("title", isbn)
}
func (r *memTitles) List(ctx context.Context, filter title.ListFilter) ([]*title.Title, error) {
	return nil, nil
}
func (r *memTitles) Delete(ctx context.Context, titleID id.ID) error { return nil }

type memWarehouses struct{ byCode map[string]*warehouse.Warehouse }

func (r *memWarehouses) Create(ctx context.Context, w *warehouse.Warehouse) error {
	r.byCode[w.Code] = w
	return nil
}
func (r *memWarehouses) Update(ctx context.Context, w *warehouse.Warehouse) error { return nil }
func (r *memWarehouses) GetByID(ctx context.Context, warehouseID id.ID) (*warehouse.Warehouse, error) {
	for _, w := range r.byCode {
		if w.ID == warehouseID {
			return w, nil
		}
	}
	return nil, apperror.NewNotFound("warehouse", warehouseID.String())
}
func (r *memWarehouses) GetByCode(ctx context.Context, code string) (*warehouse.Warehouse, error) {
	if w, ok := r.byCode[code]; ok {
		return w, nil
	}
	return nil, apperror.NewNotFound("warehouse", code)
}
func (r *memWarehouses) List(ctx context.Context, filter warehouse.ListFilter) ([]*warehouse.Warehouse, error) {
	return nil, nil
}
func (r *memWarehouses) Delete(ctx context.Context, warehouseID id.ID) error { return nil }

// --- fixture ---

type fixture struct {
	svc        *Service
	jobs       *memJobs
	ledgerRepo *memLedgerRepo
	titles     *memTitles
	warehouses *memWarehouses

	title     *title.Title
	warehouse *warehouse.Warehouse
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		jobs:       newMemJobs(),
		ledgerRepo: &memLedgerRepo{snapshots: make(map[string]*ledger.Inventory)},
		titles:     &memTitles{byISBN: make(map[string]*title.Title)},
		warehouses: &memWarehouses{byCode: make(map[string]*warehouse.Warehouse)},
	}

	f.title = title.NewTitle("9781234567897", "The Go Workshop")
	f.titles.byISBN[f.title.ISBN] = f.title
	f.warehouse = warehouse.NewWarehouse("LDN", "London DC")
	f.warehouses.byCode[f.warehouse.Code] = f.warehouse

	movements := ledger.NewService(f.ledgerRepo, f.titles, f.warehouses, passTx{}, nil)
	f.svc = NewService(f.jobs, movements, f.titles, f.warehouses, nil)
	return f
}

// --- tests ---

func TestProcessMonthlyImportHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	file := strings.Join([]string{
		sampleHeaderWithCosts,
		"9781234567897,LDN,RECEIPT,500,2026-01-05,PO-1,19.99,8.00",
		"9781234567897,LDN,SALE,-120,2026-01-20,SO-1,,",
		"9781234567897,LDN,FREE_COPY,-5,2026-01-25,FC-1,,",
	}, "\n")

	job, err := f.svc.ProcessMonthlyImport(ctx, "jan.csv", strings.NewReader(file), Options{})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 3, job.TotalRows)
	assert.Equal(t, 3, job.SuccessCount)
	assert.Zero(t, job.FailureCount)
	assert.NotEmpty(t, job.Reference)
	require.NotNil(t, job.FinishedAt)

	sum, _ := f.ledgerRepo.SumQuantities(ctx, f.title.ID, f.warehouse.ID)
	assert.Equal(t, int64(375), sum)
}

func TestProcessMonthlyImportContinueOnError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	file := strings.Join([]string{
		sampleHeader,
		"9781234567897,LDN,RECEIPT,100,2026-01-05,PO-1",
		"9999999999999,LDN,RECEIPT,50,2026-01-06,PO-2", // unknown isbn
		"9781234567897,XXX,RECEIPT,50,2026-01-07,PO-3", // unknown warehouse
	}, "\n")

	job, err := f.svc.ProcessMonthlyImport(ctx, "jan.csv", strings.NewReader(file), Options{ContinueOnError: true})
	require.NoError(t, err)

	assert.Equal(t, StatusCompletedWithErrors, job.Status)
	assert.Equal(t, 1, job.SuccessCount)
	assert.Equal(t, 2, job.FailureCount)
	require.Len(t, job.Errors, 2)
	assert.Equal(t, 3, job.Errors[0].Row)
	assert.Equal(t, "isbn", job.Errors[0].Field)
	assert.Equal(t, 4, job.Errors[1].Row)
	assert.Equal(t, "warehouseCode", job.Errors[1].Field)
}

func TestProcessMonthlyImportSkipsZeroQuantityRows(t *testing.T) {
	f := newFixture(t)

	file := strings.Join([]string{
		sampleHeader,
		"9781234567897,LDN,RECEIPT,100,2026-01-05,PO-1",
		"9781234567897,LDN,SALE,0,2026-01-06,SO-1",
	}, "\n")

	job, err := f.svc.ProcessMonthlyImport(context.Background(), "jan.csv", strings.NewReader(file), Options{})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 1, job.SuccessCount)
	assert.Equal(t, 1, job.SkippedCount)

	found := false
	for _, w := range job.Warnings {
		if w.Code == apperror.CodeZeroQuantity {
			found = true
			assert.Equal(t, 3, w.Row)
		}
	}
	assert.True(t, found, "zero-quantity skip is reported")
}

func TestProcessMonthlyImportQuantityBreakdowns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.warehouses.byCode["MAN"] = warehouse.NewWarehouse("MAN", "Manchester DC")

	file := strings.Join([]string{
		sampleHeaderWithCosts,
		"9781234567897,LDN,RECEIPT,500,2026-01-05,PO-1,19.99,8.00",
		"9781234567897,LDN,SALE,-120,2026-01-20,SO-1,,",
		"9781234567897,LDN,FREE_COPY,-5,2026-01-25,FC-1,,",
		"9781234567897,MAN,RECEIPT,50,2026-01-10,PO-2,,9.00",
	}, "\n")

	job, err := f.svc.ProcessMonthlyImport(ctx, "jan.csv", strings.NewReader(file), Options{})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, job.Status)

	assert.Equal(t, int64(675), job.TotalQuantity)

	assert.Equal(t, int64(550), job.ByType[ledger.TypeReceipt])
	assert.Equal(t, int64(120), job.ByType[ledger.TypeSale])
	assert.Equal(t, int64(5), job.ByType[ledger.TypeFreeCopy])

	require.Contains(t, job.ByWarehouse, "LDN")
	require.Contains(t, job.ByWarehouse, "MAN")
	assert.Equal(t, WarehouseBreakdown{Inbound: 500, Outbound: 125}, job.ByWarehouse["LDN"])
	assert.Equal(t, WarehouseBreakdown{Inbound: 50}, job.ByWarehouse["MAN"])
}

func TestProcessMonthlyImportBreakdownsExcludeFailedRows(t *testing.T) {
	f := newFixture(t)

	file := strings.Join([]string{
		sampleHeader,
		"9781234567897,LDN,RECEIPT,100,2026-01-05,PO-1",
		"9781234567897,LDN,SALE,-500,2026-01-20,SO-1", // exceeds stock
	}, "\n")

	job, err := f.svc.ProcessMonthlyImport(context.Background(), "jan.csv", strings.NewReader(file), Options{ContinueOnError: true})
	require.NoError(t, err)

	assert.Equal(t, int64(100), job.TotalQuantity)
	assert.Zero(t, job.ByType[ledger.TypeSale])
	assert.Equal(t, WarehouseBreakdown{Inbound: 100}, job.ByWarehouse["LDN"])
}

func TestProcessMonthlyImportStopsAtFailedChunk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	file := strings.Join([]string{
		sampleHeader,
		"9781234567897,LDN,RECEIPT,100,2026-01-05,PO-1",
		"9781234567897,LDN,SALE,-500,2026-01-20,SO-1", // exceeds stock
		"9781234567897,LDN,RECEIPT,50,2026-01-25,PO-2",
	}, "\n")

	job, err := f.svc.ProcessMonthlyImport(ctx, "jan.csv", strings.NewReader(file), Options{BatchSize: 1})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, 1, job.SuccessCount)
	assert.Equal(t, 1, job.FailureCount)

	// rows past the failed chunk were never attempted
	assert.Len(t, f.ledgerRepo.movements, 1)
	found := false
	for _, e := range job.Errors {
		if strings.Contains(e.Message, "not attempted") {
			found = true
		}
	}
	assert.True(t, found, "stop is reported on the job")
}

func TestProcessMonthlyImportDryRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	file := sampleHeader + "\n9781234567897,LDN,RECEIPT,100,2026-01-05,PO-1\n"

	job, err := f.svc.ProcessMonthlyImport(ctx, "jan.csv", strings.NewReader(file), Options{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 1, job.SuccessCount)
	assert.Empty(t, f.ledgerRepo.movements, "dry run commits nothing")
}

func TestProcessMonthlyImportChunks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lines := []string{sampleHeader}
	for i := 0; i < 5; i++ {
		lines = append(lines, "9781234567897,LDN,RECEIPT,10,2026-01-05,PO-chunk")
	}

	job, err := f.svc.ProcessMonthlyImport(ctx, "jan.csv", strings.NewReader(strings.Join(lines, "\n")), Options{BatchSize: 2})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 5, job.SuccessCount)
	assert.Len(t, f.ledgerRepo.movements, 5)
}

func TestProcessMonthlyImportMalformedFileFails(t *testing.T) {
	f := newFixture(t)

	job, err := f.svc.ProcessMonthlyImport(context.Background(), "bad.csv", strings.NewReader("not,a,movement\nfile"), Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.NotEmpty(t, job.Errors)
}

func TestRetryImport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// first run fails every row: the warehouse is not in the catalog yet
	file := sampleHeader + "\n9781234567897,MAN,RECEIPT,100,2026-01-05,PO-1\n"
	orig, err := f.svc.ProcessMonthlyImport(ctx, "jan.csv", strings.NewReader(file), Options{ContinueOnError: true})
	require.NoError(t, err)
	require.Equal(t, StatusFailed, orig.Status)

	f.warehouses.byCode["MAN"] = warehouse.NewWarehouse("MAN", "Manchester DC")

	retry, err := f.svc.RetryImport(ctx, orig.ID, Options{})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, retry.Status)
	require.NotNil(t, retry.RetryOf)
	assert.Equal(t, orig.ID, *retry.RetryOf)

	// the original job record is untouched
	stored, err := f.svc.GetJob(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
}

func TestValidateCSVAdvisories(t *testing.T) {
	f := newFixture(t)

	file := strings.Join([]string{
		sampleHeader,
		"9781234567897,LDN,RECEIPT,100,2026-01-05,PO-1",
		"9781234567897,LDN,RECEIPT,50,2026-01-06,PO-1",    // duplicate reference
		"9781234567897,LDN,RECEIPT,20000,2026-01-07,PO-2", // huge quantity
	}, "\n")

	report, err := f.svc.ValidateCSV(context.Background(), strings.NewReader(file))
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalRows)
	assert.Equal(t, 3, report.ValidRows)
	assert.Empty(t, report.Errors)

	codes := make(map[string]int)
	for _, w := range report.Warnings {
		codes[w.Code]++
	}
	assert.Equal(t, 1, codes[apperror.CodeDuplicateReference])
	assert.Equal(t, 1, codes[apperror.CodeLargeQuantity])

	assert.Empty(t, f.ledgerRepo.movements, "validation commits nothing")
}

func TestValidateCSVZeroQuantityWarning(t *testing.T) {
	f := newFixture(t)

	file := strings.Join([]string{
		sampleHeader,
		"9781234567897,LDN,SALE,0,2026-01-06,SO-1",
	}, "\n")

	report, err := f.svc.ValidateCSV(context.Background(), strings.NewReader(file))
	require.NoError(t, err)

	assert.Equal(t, 1, report.ValidRows)
	require.NotEmpty(t, report.Warnings)

	found := false
	for _, w := range report.Warnings {
		if w.Code == apperror.CodeZeroQuantity {
			found = true
			assert.Equal(t, 2, w.Row)
		}
	}
	assert.True(t, found, "zero-quantity rows warn at validation time")
}

func TestScheduleImport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg, err := f.svc.ScheduleImport(ctx, SyncConfig{
		Name:      "monthly sales feed",
		CronExpr:  "0 2 1 * *",
		SourceURI: "sftp://feeds/sales.csv.gz",
	})
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.True(t, cfg.NextRunAt.After(time.Now()))

	_, err = f.svc.ScheduleImport(ctx, SyncConfig{
		Name:      "broken",
		CronExpr:  "every tuesday",
		SourceURI: "sftp://feeds/x.csv",
	})
	require.Error(t, err)
}

func TestRunScheduledSyncs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg, err := f.svc.ScheduleImport(ctx, SyncConfig{
		Name:      "daily feed",
		CronExpr:  "0 3 * * *",
		SourceURI: "sftp://feeds/daily.csv",
	})
	require.NoError(t, err)

	// nothing due yet
	due, err := f.svc.RunScheduledSyncs(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, due)

	// jump past the next run
	later := cfg.NextRunAt.Add(time.Minute)
	due, err = f.svc.RunScheduledSyncs(ctx, later)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.NotNil(t, due[0].LastRunAt)
	assert.True(t, due[0].NextRunAt.After(later))
}
