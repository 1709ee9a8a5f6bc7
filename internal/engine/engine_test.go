package engine

import (
	"LightCount/internal/config"
	"LightCount/internal/model"
	"LightCount/internal/period"
	"LightCount/internal/query"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utc(y int, mo time.Month, d, h, mi int) time.Time {
	return time.Date(y, mo, d, h, mi, 0, 0, time.UTC)
}

func newTestEngine(t *testing.T, store model.StorageGateway, now time.Time, opts ...func(*Options)) *Engine {
	t.Helper()
	o := Options{Now: func() time.Time { return now }}
	for _, fn := range opts {
		fn(&o)
	}
	e, err := New(store, nil, o)
	require.NoError(t, err)
	return e
}

func window(t *testing.T, begin, end time.Time) period.Window {
	t.Helper()
	n, err := period.NewNormalizer(period.DefaultInterval, time.UTC)
	require.NoError(t, err)
	w, err := n.Normalize(&begin, &end, period.None)
	require.NoError(t, err)
	return w
}

func monthWindow(t *testing.T, y int, mo time.Month) period.Window {
	t.Helper()
	n, err := period.NewNormalizer(period.DefaultInterval, time.UTC)
	require.NoError(t, err)
	begin := utc(y, mo, 1, 0, 0)
	w, err := n.Normalize(&begin, nil, period.Month)
	require.NoError(t, err)
	return w
}

// steady returns one row per interval in [from, to) for 10.0.0.1 on vlan 4,
// node 1.
func steady(from, to time.Time, inBps, outBps uint64) []model.RawRow {
	ip, _ := model.ParseIPv4("10.0.0.1")
	var rows []model.RawRow
	for ts := from; ts.Before(to); ts = ts.Add(period.DefaultInterval) {
		rows = append(rows, model.RawRow{
			Unixtime: ts.Unix(), NodeID: 1, VlanID: 4, IP: ip,
			InBps: inBps, OutBps: outBps, InPps: inBps / 100, OutPps: outBps / 100,
		})
	}
	return rows
}

func TestNew_Defaults(t *testing.T) {
	e, err := New(query.NewMemoryStore(nil, nil), nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 300*time.Second, e.Interval())
	assert.Equal(t, 3*time.Hour, e.opts.ExportChunk)
	assert.Equal(t, 95, e.opts.Percentile)

	_, err = New(query.NewMemoryStore(nil, nil), nil, Options{Interval: 7 * time.Minute})
	assert.Error(t, err)
	_, err = New(query.NewMemoryStore(nil, nil), nil, Options{ExportChunk: 7 * time.Minute})
	assert.Error(t, err)
	_, err = New(query.NewMemoryStore(nil, nil), nil, Options{Percentile: 100})
	assert.Error(t, err)
}

func TestCompileQueries(t *testing.T) {
	store := query.NewMemoryStore(map[uint32]string{1: "core1"}, nil)
	e := newTestEngine(t, store, utc(2024, 2, 1, 0, 0))
	w := window(t, utc(2024, 1, 1, 0, 0), utc(2024, 1, 2, 0, 0))
	ctx := context.Background()

	results, err := e.CompileQueries(ctx, w, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "everything", results[0].Human())
	assert.Equal(t, "everything", results[0].ValuesName())

	results, err = e.CompileQueries(ctx, w, []string{"vlan 4 and node core1", "ip 10.0.0.1"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "vlan# 4 MON core1 (1)", results[0].ValuesName())
	assert.Equal(t, "ip 10.0.0.1", results[1].Human())

	_, err = e.CompileQueries(ctx, w, []string{"vlan 4", "node"})
	var perr *model.ParseError
	assert.ErrorAs(t, err, &perr)

	w.Interval = time.Minute
	_, err = e.CompileQueries(ctx, w, nil)
	var violation *model.InvariantViolation
	assert.ErrorAs(t, err, &violation)
}

func TestResample_EmptyStore(t *testing.T) {
	e := newTestEngine(t, query.NewMemoryStore(nil, nil), utc(2024, 1, 1, 12, 2))
	w := window(t, utc(2024, 1, 1, 0, 0), utc(2024, 1, 2, 0, 0))

	s, err := e.Resample(context.Background(), nil, w, period.DefaultInterval, model.InBps)
	require.NoError(t, err)
	require.Len(t, s, 289)

	// Slots before now minus one interval (11:57) are zero, the rest unknown.
	for i, x := range s {
		if x.Time.Before(utc(2024, 1, 1, 11, 57)) {
			assert.True(t, x.Known, "slot %d", i)
			assert.Zero(t, x.Value, "slot %d", i)
		} else {
			assert.False(t, x.Known, "slot %d", i)
		}
	}
	assert.Equal(t, 144, s.Known())
	assert.Equal(t, w.Begin, s[0].Time)
	assert.Equal(t, w.End, s[len(s)-1].Time)
}

func TestResample_Coarse(t *testing.T) {
	begin := utc(2024, 1, 1, 0, 0)
	rows := []model.RawRow{
		{Unixtime: begin.Unix(), InBps: 1200},
		{Unixtime: begin.Add(5 * time.Minute).Unix(), InBps: 600},
		{Unixtime: begin.Add(10 * time.Minute).Unix(), InBps: 600},
		{Unixtime: begin.Add(time.Hour).Unix(), InBps: 2400},
	}
	e := newTestEngine(t, query.NewMemoryStore(nil, rows), utc(2024, 2, 1, 0, 0))
	w := window(t, begin, begin.Add(2*time.Hour))

	s, err := e.Resample(context.Background(), nil, w, time.Hour, model.InBps)
	require.NoError(t, err)
	require.Len(t, s, 3)
	// 00:00 holds its own row; 00:05 and 00:10 land on 01:00 together with
	// the 01:00 row; every slot is averaged over twelve intervals.
	assert.Equal(t, 100.0, s[0].Value)
	assert.Equal(t, 300.0, s[1].Value)
	assert.Equal(t, 0.0, s[2].Value)
	assert.True(t, s[2].Known)

	_, err = e.Resample(context.Background(), nil, w, 7*time.Minute, model.InBps)
	var usage *model.UsageError
	assert.ErrorAs(t, err, &usage)
}

func TestResample_DropsRowsInUnknownSlots(t *testing.T) {
	begin := utc(2024, 1, 1, 0, 0)
	rows := steady(begin, begin.Add(time.Hour), 10, 10)
	e := newTestEngine(t, query.NewMemoryStore(nil, rows), begin.Add(30*time.Minute))
	w := window(t, begin, begin.Add(time.Hour))

	s, err := e.Resample(context.Background(), nil, w, period.DefaultInterval, model.InBps)
	require.NoError(t, err)
	for _, x := range s {
		if x.Known {
			assert.Equal(t, 10.0, x.Value)
		} else {
			assert.Zero(t, x.Value)
		}
	}
	assert.Equal(t, 5, s.Known())
}

type stubStore struct {
	*query.MemoryStore
	points []model.Point
}

func (s stubStore) SumByUnixtime(ctx context.Context, cond model.Condition, field model.Field, begin, end int64) ([]model.Point, error) {
	return s.points, nil
}

func TestResample_Violations(t *testing.T) {
	begin := utc(2024, 1, 1, 0, 0)
	w := window(t, begin, begin.Add(time.Hour))
	var violation *model.InvariantViolation

	outside := stubStore{MemoryStore: query.NewMemoryStore(nil, nil), points: []model.Point{{Unixtime: begin.Add(2 * time.Hour).Unix(), Value: 1}}}
	e := newTestEngine(t, outside, utc(2024, 2, 1, 0, 0))
	_, err := e.Resample(context.Background(), nil, w, period.DefaultInterval, model.InBps)
	assert.ErrorAs(t, err, &violation)

	unordered := stubStore{MemoryStore: query.NewMemoryStore(nil, nil), points: []model.Point{
		{Unixtime: begin.Add(10 * time.Minute).Unix(), Value: 1},
		{Unixtime: begin.Add(5 * time.Minute).Unix(), Value: 1},
	}}
	e = newTestEngine(t, unordered, utc(2024, 2, 1, 0, 0))
	_, err = e.Resample(context.Background(), nil, w, period.DefaultInterval, model.InBps)
	assert.ErrorAs(t, err, &violation)
}

func TestResult_ViewsAndPeaks(t *testing.T) {
	begin := utc(2024, 1, 1, 0, 0)
	at := func(slot int) int64 { return begin.Add(time.Duration(slot) * period.DefaultInterval).Unix() }
	rows := []model.RawRow{
		{Unixtime: at(1), InBps: 10, OutBps: 5, InPps: 3, OutPps: 1},
		{Unixtime: at(2), InBps: 1, OutBps: 1, InPps: 9, OutPps: 9},
		{Unixtime: at(3), InBps: 5, OutBps: 10, InPps: 1, OutPps: 1},
	}
	e := newTestEngine(t, query.NewMemoryStore(nil, rows), utc(2024, 2, 1, 0, 0))
	results, err := e.CompileQueries(context.Background(), window(t, begin, begin.Add(time.Hour)), nil)
	require.NoError(t, err)
	r := results[0]
	ctx := context.Background()

	in, err := r.InBps(ctx)
	require.NoError(t, err)
	assert.Equal(t, 80.0, in[1].Value)

	io, err := r.IOBps(ctx)
	require.NoError(t, err)
	assert.Equal(t, 120.0, io[1].Value)
	assert.Equal(t, 120.0, io[3].Value)

	peak, err := r.MaxIOBps(ctx)
	require.NoError(t, err)
	assert.Equal(t, begin.Add(5*time.Minute), peak.Time, "ties resolve to the earliest slot")
	assert.Equal(t, 80.0, peak.In)
	assert.Equal(t, 40.0, peak.Out)
	assert.Equal(t, 120.0, peak.Total)

	pps, err := r.MaxIOPps(ctx)
	require.NoError(t, err)
	assert.Equal(t, begin.Add(10*time.Minute), pps.Time)
	assert.Equal(t, 9.0, pps.In)
}

func TestResult_UnknownPropagates(t *testing.T) {
	a := Series{{Known: true, Value: 1}, {Known: false}, {Known: true, Value: 2}}
	b := Series{{Known: true, Value: 1}, {Known: true, Value: 5}, {Known: false}}
	s, err := combine(a, b)
	require.NoError(t, err)
	assert.Equal(t, Series{{Known: true, Value: 2}, {}, {}}, s)

	_, err = combine(a, b[:2])
	var violation *model.InvariantViolation
	assert.ErrorAs(t, err, &violation)
}

func TestResult_NoSamples(t *testing.T) {
	begin := utc(2024, 1, 1, 0, 0)
	e := newTestEngine(t, query.NewMemoryStore(nil, nil), begin)
	results, err := e.CompileQueries(context.Background(), window(t, begin, begin.Add(time.Hour)), nil)
	require.NoError(t, err)

	_, err = results[0].MaxIOBps(context.Background())
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestResult_Memoized(t *testing.T) {
	begin := utc(2024, 1, 1, 0, 0)
	store := query.NewMemoryStore(nil, steady(begin, begin.Add(time.Hour), 100, 50))
	e := newTestEngine(t, store, utc(2024, 2, 1, 0, 0))
	results, err := e.CompileQueries(context.Background(), window(t, begin, begin.Add(time.Hour)), nil)
	require.NoError(t, err)
	r := results[0]

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.IOBps(context.Background())
			assert.NoError(t, err)
			_, err = r.MaxIOBps(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 2, store.Queries(), "in_bps and out_bps are fetched once each")

	_, err = r.InBps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, store.Queries())
}

func TestPercentile(t *testing.T) {
	s := make(Series, 100)
	for i := range s {
		// Descending so sorting matters.
		s[i] = Sample{Known: true, Value: float64((100 - i) * 10)}
	}
	assert.Equal(t, 950.0, percentile(s, 95))
	assert.Equal(t, 10.0, percentile(s, 1))

	s[0] = Sample{}
	// The unknown sample counts as zero and shifts everything up by one.
	assert.Equal(t, 940.0, percentile(s, 95))

	assert.Equal(t, 7.0, percentile(Series{{Known: true, Value: 7}}, 95))
	assert.Zero(t, percentile(nil, 95))
}

func TestBilling_ClosedMonth(t *testing.T) {
	w := monthWindow(t, 2024, time.February)
	rows := steady(w.Begin, w.End, 100, 50)
	// The fencepost belongs to March and must not count.
	rows = append(rows, model.RawRow{Unixtime: w.End.Unix(), InBps: 1 << 40})

	e := newTestEngine(t, query.NewMemoryStore(nil, rows), utc(2024, 4, 1, 0, 0))
	results, err := e.CompileQueries(context.Background(), w, nil)
	require.NoError(t, err)

	bv, err := results[0].Billing(context.Background())
	require.NoError(t, err)
	assert.False(t, bv.IsEstimate)
	assert.Equal(t, 29*288, bv.Samples)
	assert.Equal(t, 800.0, bv.In)
	assert.Equal(t, 400.0, bv.Out)
	assert.Equal(t, 800.0, bv.Billable)
	assert.Equal(t, SideIn, bv.Side)
	assert.Equal(t, 95, bv.Percentile)
	assert.Equal(t, w.Begin, bv.Begin)
}

func TestBilling_KeepFencepost(t *testing.T) {
	w := monthWindow(t, 2024, time.February)
	e := newTestEngine(t, query.NewMemoryStore(nil, steady(w.Begin, w.End, 10, 20)), utc(2024, 4, 1, 0, 0),
		func(o *Options) { o.KeepFencepost = true })
	results, err := e.CompileQueries(context.Background(), w, nil)
	require.NoError(t, err)

	bv, err := results[0].Billing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 29*288+1, bv.Samples)
	assert.Equal(t, SideOut, bv.Side)
	assert.Equal(t, 160.0, bv.Billable)
}

func TestBilling_Estimate(t *testing.T) {
	w := monthWindow(t, 2024, time.February)
	now := utc(2024, 2, 15, 0, 0)
	e := newTestEngine(t, query.NewMemoryStore(nil, steady(w.Begin, now, 100, 100)), now)
	results, err := e.CompileQueries(context.Background(), w, nil)
	require.NoError(t, err)

	bv, err := results[0].Billing(context.Background())
	require.NoError(t, err)
	assert.True(t, bv.IsEstimate)
	assert.Equal(t, 14*288, bv.Samples)
	assert.Equal(t, 800.0, bv.Billable)
	assert.Equal(t, SideIn, bv.Side, "ties bill inbound")
}

func TestBilling_IgnoresDisplaySampleSize(t *testing.T) {
	w := monthWindow(t, 2024, time.February)
	rows := steady(w.Begin, w.End, 100, 100)
	for i := range rows {
		if i%10 == 0 {
			rows[i].InBps = 100000
		}
	}
	store := query.NewMemoryStore(nil, rows)
	e := newTestEngine(t, store, utc(2024, 4, 1, 0, 0))

	hourly, err := w.WithSampleSize(time.Hour)
	require.NoError(t, err)
	results, err := e.CompileQueries(context.Background(), hourly, nil)
	require.NoError(t, err)
	r := results[0]

	in, err := r.InBps(context.Background())
	require.NoError(t, err)
	assert.Len(t, in, 29*24+1)

	bv, err := r.Billing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 29*288, bv.Samples)
	assert.Equal(t, 800000.0, bv.In)
	assert.Equal(t, 800.0, bv.Out)
	assert.Equal(t, 800000.0, bv.Billable)

	queries := store.Queries()
	_, err = r.Billing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, queries, store.Queries())
}

func TestResult_CancelledComputationIsRetried(t *testing.T) {
	begin := utc(2024, 1, 1, 0, 0)
	store := query.NewMemoryStore(nil, steady(begin, begin.Add(time.Hour), 100, 50))
	e := newTestEngine(t, store, utc(2024, 2, 1, 0, 0))
	results, err := e.CompileQueries(context.Background(), window(t, begin, begin.Add(time.Hour)), nil)
	require.NoError(t, err)
	r := results[0]

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.InBps(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	in, err := r.InBps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 800.0, in[1].Value)
}

func TestResult_DataErrorIsKept(t *testing.T) {
	begin := utc(2024, 1, 1, 0, 0)
	store := query.NewMemoryStore(nil, steady(begin, begin.Add(time.Hour), 100, 50))
	e := newTestEngine(t, store, utc(2024, 2, 1, 0, 0))
	results, err := e.CompileQueries(context.Background(), window(t, begin, begin.Add(time.Hour)), nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	var dataErr *model.DataError
	_, err = results[0].InBps(context.Background())
	assert.ErrorAs(t, err, &dataErr)
	_, err = results[0].InBps(context.Background())
	assert.ErrorAs(t, err, &dataErr)
}

func TestBilling_NotAMonth(t *testing.T) {
	e := newTestEngine(t, query.NewMemoryStore(nil, nil), utc(2024, 4, 1, 0, 0))
	results, err := e.CompileQueries(context.Background(), window(t, utc(2024, 1, 1, 0, 0), utc(2024, 1, 8, 0, 0)), nil)
	require.NoError(t, err)

	_, err = results[0].Billing(context.Background())
	var usage *model.UsageError
	assert.ErrorAs(t, err, &usage)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.KeepFencepost = true
	opts := OptionsFromConfig(cfg.Engine)
	assert.Equal(t, 5*time.Minute, opts.Interval)
	assert.Equal(t, 3*time.Hour, opts.ExportChunk)
	assert.Equal(t, 95, opts.Percentile)
	assert.True(t, opts.KeepFencepost)

	_, err := New(query.NewMemoryStore(nil, nil), nil, opts)
	require.NoError(t, err)
}
