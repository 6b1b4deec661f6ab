package refnum

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

type mockQuerier struct {
	mu           sync.Mutex
	currentValue int64
	calls        int
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	var increment int64 = 1
	if len(args) == 2 {
		if val, ok := args[1].(int64); ok {
			increment = val
		}
	}
	m.currentValue += increment
	return &mockRow{val: m.currentValue}
}

func TestNext_Strict(t *testing.T) {
	q := &mockQuerier{}
	gen := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("TRF")
	period := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	num, err := gen.Next(ctx, cfg, nil, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "TRF-2026-00001" {
		t.Errorf("expected TRF-2026-00001, got %s", num)
	}

	num, err = gen.Next(ctx, cfg, nil, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "TRF-2026-00002" {
		t.Errorf("expected TRF-2026-00002, got %s", num)
	}
}

func TestNext_Cached(t *testing.T) {
	q := &mockQuerier{}
	gen := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("IMP")
	period := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	opts := &Options{Strategy: StrategyCached, RangeSize: 10}

	num, err := gen.Next(ctx, cfg, opts, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "IMP-2026-00001" {
		t.Errorf("expected IMP-2026-00001, got %s", num)
	}
	if q.currentValue != 10 {
		t.Errorf("expected DB value 10 after range allocation, got %d", q.currentValue)
	}

	// subsequent numbers come from the cached range without DB calls
	callsAfterAlloc := q.calls
	for i := 2; i <= 10; i++ {
		num, err = gen.Next(ctx, cfg, opts, period)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if num != "IMP-2026-00010" {
		t.Errorf("expected IMP-2026-00010, got %s", num)
	}
	if q.calls != callsAfterAlloc {
		t.Errorf("expected no DB calls while range lasts, got %d extra", q.calls-callsAfterAlloc)
	}

	// 11th draws a fresh range
	num, err = gen.Next(ctx, cfg, opts, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "IMP-2026-00011" {
		t.Errorf("expected IMP-2026-00011, got %s", num)
	}
	if q.currentValue != 20 {
		t.Errorf("expected DB value 20 after second allocation, got %d", q.currentValue)
	}
}

func TestBuildKey_ResetPeriods(t *testing.T) {
	gen := New(&mockQuerier{})
	period := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		reset string
		want  string
	}{
		{"year", "TRF_2026"},
		{"month", "TRF_2026_03"},
		{"never", "TRF"},
	}
	for _, tc := range cases {
		cfg := Config{Prefix: "TRF", ResetPeriod: tc.reset}
		if got := gen.buildKey(cfg, period); got != tc.want {
			t.Errorf("reset=%s: expected %s, got %s", tc.reset, tc.want, got)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	gen := New(&mockQuerier{})
	period := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	cfg := Config{Prefix: "TRF", IncludeYear: true, PadWidth: 5}
	if got := gen.formatNumber(cfg, period, 42); got != "TRF-2026-00042" {
		t.Errorf("expected TRF-2026-00042, got %s", got)
	}

	cfg.IncludeYear = false
	if got := gen.formatNumber(cfg, period, 7); got != "TRF-00007" {
		t.Errorf("expected TRF-00007, got %s", got)
	}
}
