package engine

import (
	"LightCount/internal/filter"
	"LightCount/internal/model"
	"LightCount/internal/period"
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoSamples is returned by peak lookups over a series without a single
// known sample.
var ErrNoSamples = errors.New("no known samples in window")

// Peak is the grid point where the combined in+out rate is highest.
type Peak struct {
	Time  time.Time `json:"time"`
	In    float64   `json:"in"`
	Out   float64   `json:"out"`
	Total float64   `json:"total"`
}

// memo holds the outcome of a computation that runs at most once. A
// computation cut short by its context is not kept, so the next caller
// retries with its own context.
type memo[T any] struct {
	mu    sync.Mutex
	done  bool
	value T
	err   error
}

func (m *memo[T]) get(compute func() (T, error)) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return m.value, m.err
	}
	value, err := compute()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return value, err
	}
	m.value, m.err, m.done = value, err, true
	return value, err
}

type view = memo[Series]

// Result is one compiled query over one window. Its series are fetched on
// first use and kept for the lifetime of the Result, datastore errors
// included; it is safe for concurrent use.
type Result struct {
	Query     string
	Predicate *filter.Predicate
	Window    period.Window

	engine *Engine

	inBps, outBps, inPps, outPps, ioBps, ioPps view

	// Billing always works on the native sample interval.
	nativeInBps, nativeOutBps view
	billing                   memo[BillingValue]
}

func newResult(e *Engine, query string, pred *filter.Predicate, w period.Window) *Result {
	return &Result{Query: query, Predicate: pred, Window: w, engine: e}
}

// Human is the normalised filter expression.
func (r *Result) Human() string {
	return r.Predicate.Human()
}

// ValuesName labels the traffic the query selects.
func (r *Result) ValuesName() string {
	return filter.ValuesName(r.Predicate)
}

func (r *Result) resample(ctx context.Context, field model.Field) (Series, error) {
	return r.engine.Resample(ctx, r.Predicate, r.Window, r.Window.SampleSize, field)
}

// InBps is the inbound rate in bits per second.
func (r *Result) InBps(ctx context.Context) (Series, error) {
	return r.inBps.get(func() (Series, error) {
		s, err := r.resample(ctx, model.InBps)
		if err != nil {
			return nil, err
		}
		return scale(s, 8), nil
	})
}

// OutBps is the outbound rate in bits per second.
func (r *Result) OutBps(ctx context.Context) (Series, error) {
	return r.outBps.get(func() (Series, error) {
		s, err := r.resample(ctx, model.OutBps)
		if err != nil {
			return nil, err
		}
		return scale(s, 8), nil
	})
}

// InPps is the inbound rate in packets per second.
func (r *Result) InPps(ctx context.Context) (Series, error) {
	return r.inPps.get(func() (Series, error) {
		return r.resample(ctx, model.InPps)
	})
}

// OutPps is the outbound rate in packets per second.
func (r *Result) OutPps(ctx context.Context) (Series, error) {
	return r.outPps.get(func() (Series, error) {
		return r.resample(ctx, model.OutPps)
	})
}

// IOBps is InBps+OutBps; a slot unknown on either side is unknown.
func (r *Result) IOBps(ctx context.Context) (Series, error) {
	return r.ioBps.get(func() (Series, error) {
		return r.sum(ctx, r.InBps, r.OutBps)
	})
}

// IOPps is InPps+OutPps; a slot unknown on either side is unknown.
func (r *Result) IOPps(ctx context.Context) (Series, error) {
	return r.ioPps.get(func() (Series, error) {
		return r.sum(ctx, r.InPps, r.OutPps)
	})
}

func (r *Result) sum(ctx context.Context, a, b func(context.Context) (Series, error)) (Series, error) {
	sa, err := a(ctx)
	if err != nil {
		return nil, err
	}
	sb, err := b(ctx)
	if err != nil {
		return nil, err
	}
	return combine(sa, sb)
}

// MaxIOBps returns the first grid point with the highest combined bit rate.
func (r *Result) MaxIOBps(ctx context.Context) (Peak, error) {
	return r.peak(ctx, r.IOBps, r.InBps, r.OutBps)
}

// MaxIOPps returns the first grid point with the highest combined packet rate.
func (r *Result) MaxIOPps(ctx context.Context) (Peak, error) {
	return r.peak(ctx, r.IOPps, r.InPps, r.OutPps)
}

func (r *Result) peak(ctx context.Context, io, in, out func(context.Context) (Series, error)) (Peak, error) {
	total, err := io(ctx)
	if err != nil {
		return Peak{}, err
	}
	best := -1
	for i, s := range total {
		if s.Known && (best < 0 || s.Value > total[best].Value) {
			best = i
		}
	}
	if best < 0 {
		return Peak{}, ErrNoSamples
	}

	sin, err := in(ctx)
	if err != nil {
		return Peak{}, err
	}
	sout, err := out(ctx)
	if err != nil {
		return Peak{}, err
	}
	return Peak{
		Time:  total[best].Time,
		In:    sin[best].Value,
		Out:   sout[best].Value,
		Total: total[best].Value,
	}, nil
}
