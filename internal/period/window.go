package period

import (
	"LightCount/internal/model"
	"time"
)

// Window is a validated query time range. Begin and End are expressed in the
// location the window was normalised in; both are grid points, so a series
// over the window holds (End-Begin)/SampleSize+1 samples.
type Window struct {
	Begin       time.Time
	End         time.Time
	Granularity Granularity
	SampleSize  time.Duration
	Interval    time.Duration
}

// Validate checks the window invariants and reports a violation as
// *model.InvariantViolation.
func (w Window) Validate() error {
	if w.Interval <= 0 {
		return model.Violationf("sample interval %v is not positive", w.Interval)
	}
	if w.SampleSize <= 0 || w.SampleSize%w.Interval != 0 {
		return model.Violationf("sample size %v is not a multiple of the interval %v", w.SampleSize, w.Interval)
	}
	if !w.Begin.Before(w.End) {
		return model.Violationf("window begin %v is not before end %v", w.Begin, w.End)
	}
	size := int64(w.SampleSize / time.Second)
	if w.Begin.Unix()%size != 0 {
		return model.Violationf("window begin %v is not aligned to %v", w.Begin, w.SampleSize)
	}
	if (w.End.Unix()-w.Begin.Unix())%size != 0 {
		return model.Violationf("window span %v is not a multiple of %v", w.End.Sub(w.Begin), w.SampleSize)
	}
	return nil
}

// WithSampleSize returns the window resampled at size. A size that does not
// fit the window is a usage error since it comes from the caller.
func (w Window) WithSampleSize(size time.Duration) (Window, error) {
	if size <= 0 || size%w.Interval != 0 {
		return Window{}, model.Usagef("sample size %v must be a positive multiple of %v", size, w.Interval)
	}
	secs := int64(size / time.Second)
	if w.Begin.Unix()%secs != 0 || (w.End.Unix()-w.Begin.Unix())%secs != 0 {
		return Window{}, model.Usagef("sample size %v does not divide the window %v - %v", size, w.Begin, w.End)
	}
	w.SampleSize = size
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// Duration is End-Begin.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Begin)
}

// Samples is the number of grid points, both fenceposts included.
func (w Window) Samples() int {
	return int(w.Duration()/w.SampleSize) + 1
}

// IsCalendarMonth reports whether the window spans exactly one calendar month
// in its own location.
func (w Window) IsCalendarMonth() bool {
	b := w.Begin
	if b.Day() != 1 || b.Hour() != 0 || b.Minute() != 0 || b.Second() != 0 || b.Nanosecond() != 0 {
		return false
	}
	return w.End.Equal(b.AddDate(0, 1, 0))
}

// Location is the time zone the window was normalised in.
func (w Window) Location() *time.Location {
	return w.Begin.Location()
}
