package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-health/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-health/pkg/models"
)

// fakeProfiler answers aggregate queries from in-memory rows. Errors are
// injected per "Method:column" key, or "Method" for table-level calls. A
// blocked key waits for its context to end.
type fakeProfiler struct {
	mu      sync.Mutex
	columns []datasource.ColumnMetadata
	rows    []map[string]any
	errs    map[string]error
	block   map[string]bool
	calls   map[string]int

	// delay holds every call open so overlapping calls can be counted.
	delay    time.Duration
	inFlight int
	peak     int
}

func newFakeProfiler(columns []datasource.ColumnMetadata, rows []map[string]any) *fakeProfiler {
	return &fakeProfiler{
		columns: columns,
		rows:    rows,
		errs:    map[string]error{},
		block:   map[string]bool{},
		calls:   map[string]int{},
	}
}

var _ datasource.TableProfiler = (*fakeProfiler)(nil)

func (f *fakeProfiler) record(ctx context.Context, key string) error {
	f.mu.Lock()
	f.calls[key]++
	err, blocked, delay := f.errs[key], f.block[key], f.delay
	f.inFlight++
	f.peak = max(f.peak, f.inFlight)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if blocked {
		<-ctx.Done()
		return ctx.Err()
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeProfiler) peakInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

func (f *fakeProfiler) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeProfiler) DefaultSchema() string { return "public" }

func (f *fakeProfiler) CountRecords(ctx context.Context, schemaName, tableName string) (int64, error) {
	if err := f.record(ctx, "CountRecords"); err != nil {
		return 0, err
	}
	return int64(len(f.rows)), nil
}

func (f *fakeProfiler) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	if err := f.record(ctx, "DiscoverColumns"); err != nil {
		return nil, err
	}
	return f.columns, nil
}

func (f *fakeProfiler) CountNonNull(ctx context.Context, schemaName, tableName, columnName string) (int64, error) {
	if err := f.record(ctx, "CountNonNull:"+columnName); err != nil {
		return 0, err
	}
	var n int64
	for _, row := range f.rows {
		if row[columnName] != nil {
			n++
		}
	}
	return n, nil
}

func (f *fakeProfiler) CountDistinct(ctx context.Context, schemaName, tableName, columnName string) (int64, error) {
	if err := f.record(ctx, "CountDistinct:"+columnName); err != nil {
		return 0, err
	}
	seen := map[string]bool{}
	for _, row := range f.rows {
		if v := row[columnName]; v != nil {
			seen[fmt.Sprint(v)] = true
		}
	}
	return int64(len(seen)), nil
}

func (f *fakeProfiler) DateRange(ctx context.Context, schemaName, tableName, columnName string) (*datasource.DateRange, error) {
	if err := f.record(ctx, "DateRange:"+columnName); err != nil {
		return nil, err
	}
	var rng *datasource.DateRange
	for _, row := range f.rows {
		t, ok := datasource.ParseTimeValue(row[columnName])
		if !ok {
			continue
		}
		if rng == nil {
			rng = &datasource.DateRange{Oldest: t, Latest: t}
			continue
		}
		if t.Before(rng.Oldest) {
			rng.Oldest = t
		}
		if t.After(rng.Latest) {
			rng.Latest = t
		}
	}
	return rng, nil
}

func (f *fakeProfiler) SampleRecords(ctx context.Context, schemaName, tableName string, columns []string, limit int) ([]map[string]any, error) {
	if err := f.record(ctx, "SampleRecords"); err != nil {
		return nil, err
	}
	var out []map[string]any
	for _, row := range f.rows {
		if len(out) >= limit {
			break
		}
		r := make(map[string]any, len(columns))
		for _, c := range columns {
			r[c] = row[c]
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeProfiler) SampleValues(ctx context.Context, schemaName, tableName, columnName string, limit int) ([]any, error) {
	if err := f.record(ctx, "SampleValues:"+columnName); err != nil {
		return nil, err
	}
	var out []any
	for _, row := range f.rows {
		if len(out) >= limit {
			break
		}
		if v := row[columnName]; v != nil {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeProfiler) Close() error { return nil }

// testNow is the fixed clock of service tests.
var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

var scenarioRegions = []string{"North", "South", "East", "West", "Central"}

// scenarioProfiler is 100 SRS events: event_id unique, region 20% null with
// five distinct values, reported_date latest 10 days before testNow.
func scenarioProfiler() *fakeProfiler {
	columns := []datasource.ColumnMetadata{
		{ColumnName: "id", DataType: "integer", IsPrimaryKey: true, OrdinalPosition: 1},
		{ColumnName: "event_id", DataType: "character varying", OrdinalPosition: 2},
		{ColumnName: "region", DataType: "character varying", IsNullable: true, OrdinalPosition: 3},
		{ColumnName: "reported_date", DataType: "date", OrdinalPosition: 4},
	}
	latest := time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)
	rows := make([]map[string]any, 100)
	for i := range rows {
		var region any
		if i >= 20 {
			region = scenarioRegions[i%5]
		}
		rows[i] = map[string]any{
			"id":            int64(i + 1),
			"event_id":      fmt.Sprintf("EV-%04d", i+1),
			"region":        region,
			"reported_date": latest.AddDate(0, 0, -(i % 30)),
		}
	}
	return newFakeProfiler(columns, rows)
}

func scenarioSemantics() SemanticProvider {
	return NewStaticSemanticProvider(map[string]models.SchemaSemantics{
		"unsafe_events_srs": {
			"event_id":      {Description: "Unique identifier for the safety event", DataType: "string"},
			"region":        {Description: "Name of the region", UniqueValues: scenarioRegions, UniqueCount: 5},
			"reported_date": {Description: "Date when the event was reported", DataType: "date"},
		},
	})
}

// newTestService builds a service on a fixed clock. A nil selector uses one
// without a model client.
func newTestService(t *testing.T, profiler datasource.TableProfiler, selector DimensionSelector, metrics *Metrics) *dataHealthService {
	t.Helper()
	return newTestServiceWithConfig(t, profiler, selector, metrics, DataHealthConfig{})
}

func newTestServiceWithConfig(t *testing.T, profiler datasource.TableProfiler, selector DimensionSelector, metrics *Metrics, cfg DataHealthConfig) *dataHealthService {
	t.Helper()
	if selector == nil {
		selector = NewDimensionSelector(nil, SelectorConfig{}, metrics, zap.NewNop())
	}
	svc, ok := NewDataHealthService(profiler, scenarioSemantics(), selector, cfg, metrics, zap.NewNop()).(*dataHealthService)
	require.True(t, ok)
	svc.now = func() time.Time { return testNow }
	return svc
}
