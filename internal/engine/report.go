package engine

import (
	"context"
	"errors"
	"time"
)

// Report is the summary printed by the stat command and published to NATS.
type Report struct {
	Query      string        `json:"query"`
	Human      string        `json:"human"`
	ValuesName string        `json:"values_name"`
	Period     string        `json:"period"`
	Begin      time.Time     `json:"begin"`
	End        time.Time     `json:"end"`
	SampleSize int64         `json:"sample_size_seconds"`
	PeakBps    *Peak         `json:"peak_bps,omitempty"`
	PeakPps    *Peak         `json:"peak_pps,omitempty"`
	Billing    *BillingValue `json:"billing,omitempty"`
}

// BuildReport collects the peaks of r and, for calendar months, its billing
// value. Peaks are left out when the window has no known samples yet.
func BuildReport(ctx context.Context, r *Result) (*Report, error) {
	rep := &Report{
		Query:      r.Query,
		Human:      r.Human(),
		ValuesName: r.ValuesName(),
		Period:     r.Window.Granularity.String(),
		Begin:      r.Window.Begin,
		End:        r.Window.End,
		SampleSize: int64(r.Window.SampleSize / time.Second),
	}

	bps, err := r.MaxIOBps(ctx)
	switch {
	case errors.Is(err, ErrNoSamples):
	case err != nil:
		return nil, err
	default:
		rep.PeakBps = &bps
	}

	pps, err := r.MaxIOPps(ctx)
	switch {
	case errors.Is(err, ErrNoSamples):
	case err != nil:
		return nil, err
	default:
		rep.PeakPps = &pps
	}

	if r.Window.IsCalendarMonth() {
		bv, err := r.Billing(ctx)
		if err != nil {
			return nil, err
		}
		rep.Billing = &bv
	}
	return rep, nil
}
