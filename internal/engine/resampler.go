package engine

import (
	"LightCount/internal/model"
	"LightCount/internal/period"
	"context"
	"math"
	"time"
)

// Sample is one grid point of a resampled series. Known is false when the
// slot lies too close to now to tell missing traffic from missing data.
type Sample struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
	Known bool      `json:"known"`
}

// Series is a resampled rate series over a window, both fenceposts included.
type Series []Sample

// Known returns the number of known samples.
func (s Series) Known() int {
	n := 0
	for _, x := range s {
		if x.Known {
			n++
		}
	}
	return n
}

// Resample reads field for the rows matching cond over w and lays the sums
// out on a grid of sampleSize steps from w.Begin to w.End inclusive. Each
// row lands in the first slot at or after its timestamp. Slots within one
// interval of now are unknown and swallow their rows. For coarse grids the
// slot sums are divided by sampleSize/Interval so values stay rates.
func (e *Engine) Resample(ctx context.Context, cond model.Condition, w period.Window, sampleSize time.Duration, field model.Field) (Series, error) {
	w, err := w.WithSampleSize(sampleSize)
	if err != nil {
		return nil, err
	}
	if w.Interval != e.opts.Interval {
		return nil, model.Violationf("window interval %v does not match the engine interval %v", w.Interval, e.opts.Interval)
	}

	loc := w.Location()
	begin, end := w.Begin.Unix(), w.End.Unix()
	step := int64(sampleSize / time.Second)
	cutoff := e.opts.Now().Add(-e.opts.Interval).Unix()

	series := make(Series, w.Samples())
	for i := range series {
		ts := begin + int64(i)*step
		series[i] = Sample{Time: time.Unix(ts, 0).In(loc), Known: ts < cutoff}
	}

	points, err := e.store.SumByUnixtime(ctx, cond, field, begin, end)
	if err != nil {
		return nil, err
	}

	cursor := 0
	last := int64(math.MinInt64)
	for _, p := range points {
		if p.Unixtime < begin || p.Unixtime > end {
			return nil, model.Violationf("row at %d outside window [%d, %d]", p.Unixtime, begin, end)
		}
		if p.Unixtime < last {
			return nil, model.Violationf("row at %d after row at %d", p.Unixtime, last)
		}
		last = p.Unixtime
		for begin+int64(cursor)*step < p.Unixtime {
			cursor++
		}
		if series[cursor].Known {
			series[cursor].Value += float64(p.Value)
		}
	}

	if divisor := float64(sampleSize / e.opts.Interval); divisor > 1 {
		for i := range series {
			if series[i].Known {
				series[i].Value /= divisor
			}
		}
	}
	return series, nil
}

func scale(s Series, factor float64) Series {
	out := make(Series, len(s))
	for i, x := range s {
		out[i] = x
		if x.Known {
			out[i].Value *= factor
		}
	}
	return out
}

func combine(a, b Series) (Series, error) {
	if len(a) != len(b) {
		return nil, model.Violationf("series lengths differ: %d and %d", len(a), len(b))
	}
	out := make(Series, len(a))
	for i := range a {
		if !a[i].Time.Equal(b[i].Time) {
			return nil, model.Violationf("series grids differ at %d", i)
		}
		out[i] = Sample{Time: a[i].Time, Known: a[i].Known && b[i].Known}
		if out[i].Known {
			out[i].Value = a[i].Value + b[i].Value
		}
	}
	return out, nil
}
