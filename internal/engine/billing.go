package engine

import (
	"LightCount/internal/model"
	"context"
	"sort"
	"time"
)

// Side names the traffic direction a billing value was taken from.
type Side string

const (
	SideIn  Side = "in"
	SideOut Side = "out"
)

// BillingValue is the percentile rate of a calendar month. Billable is the
// larger of In and Out, Side tells which one; ties go to in.
type BillingValue struct {
	In         float64   `json:"in"`
	Out        float64   `json:"out"`
	Billable   float64   `json:"billable"`
	Side       Side      `json:"side"`
	IsEstimate bool      `json:"is_estimate"`
	Percentile int       `json:"percentile"`
	Samples    int       `json:"samples"`
	Begin      time.Time `json:"begin"`
	End        time.Time `json:"end"`
}

// Billing computes the billing percentile over the Result's month at the
// native sample interval, regardless of the window's sample size. While the
// month is still running the value is an estimate over the samples before
// now. Otherwise the trailing fencepost, which belongs to the next month, is
// left out.
func (r *Result) Billing(ctx context.Context) (BillingValue, error) {
	return r.billing.get(func() (BillingValue, error) {
		return r.computeBilling(ctx)
	})
}

// nativeBps is the bit rate of field at the engine's sample interval,
// whatever sample size the Result's window was given for display.
func (r *Result) nativeBps(ctx context.Context, v *view, field model.Field, display func(context.Context) (Series, error)) (Series, error) {
	if r.Window.SampleSize == r.engine.opts.Interval {
		return display(ctx)
	}
	return v.get(func() (Series, error) {
		s, err := r.engine.Resample(ctx, r.Predicate, r.Window, r.engine.opts.Interval, field)
		if err != nil {
			return nil, err
		}
		return scale(s, 8), nil
	})
}

func (r *Result) computeBilling(ctx context.Context) (BillingValue, error) {
	if !r.Window.IsCalendarMonth() {
		return BillingValue{}, model.Usagef("billing is only defined for a calendar month, not %s - %s",
			r.Window.Begin.Format("2006-01-02 15:04"), r.Window.End.Format("2006-01-02 15:04"))
	}

	in, err := r.nativeBps(ctx, &r.nativeInBps, model.InBps, r.InBps)
	if err != nil {
		return BillingValue{}, err
	}
	out, err := r.nativeBps(ctx, &r.nativeOutBps, model.OutBps, r.OutBps)
	if err != nil {
		return BillingValue{}, err
	}

	now := r.engine.opts.Now()
	estimate := r.Window.End.After(now)
	in = r.billingSamples(in, now, estimate)
	out = r.billingSamples(out, now, estimate)

	p := r.engine.opts.Percentile
	bv := BillingValue{
		In:         percentile(in, p),
		Out:        percentile(out, p),
		IsEstimate: estimate,
		Percentile: p,
		Samples:    len(in),
		Begin:      r.Window.Begin,
		End:        r.Window.End,
	}
	if bv.In >= bv.Out {
		bv.Billable, bv.Side = bv.In, SideIn
	} else {
		bv.Billable, bv.Side = bv.Out, SideOut
	}
	return bv, nil
}

func (r *Result) billingSamples(s Series, now time.Time, estimate bool) Series {
	if estimate {
		for i, x := range s {
			if !x.Time.Before(now) {
				return s[:i]
			}
		}
		return s
	}
	if r.engine.opts.KeepFencepost || len(s) == 0 {
		return s
	}
	return s[:len(s)-1]
}

// percentile returns the p-th percentile of s with unknown samples counted as
// zero: the value at index ceil(n*p/100)-1 of the sorted samples.
func percentile(s Series, p int) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	values := make([]float64, n)
	for i, x := range s {
		if x.Known {
			values[i] = x.Value
		}
	}
	sort.Float64s(values)
	idx := (n*p+99)/100 - 1
	if idx < 0 {
		idx = 0
	}
	return values[idx]
}
