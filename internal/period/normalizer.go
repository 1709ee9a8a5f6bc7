package period

import (
	"LightCount/internal/model"
	"fmt"
	"time"
)

// DefaultInterval is the native sample interval of sample_tbl.
const DefaultInterval = 300 * time.Second

// Normalizer derives query windows on the sample grid of one datastore.
type Normalizer struct {
	Interval time.Duration
	Location *time.Location
}

// NewNormalizer validates interval and returns a Normalizer working in loc.
// A nil loc means UTC.
func NewNormalizer(interval time.Duration, loc *time.Location) (*Normalizer, error) {
	if err := ValidateInterval(interval); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{Interval: interval, Location: loc}, nil
}

// ValidateInterval checks that interval is a whole number of minutes that
// divides one hour.
func ValidateInterval(interval time.Duration) error {
	if interval < time.Minute || interval%time.Minute != 0 || time.Hour%interval != 0 {
		return fmt.Errorf("sample interval %v must be a whole number of minutes dividing one hour", interval)
	}
	return nil
}

// Round snaps t down to the sample interval and truncates it to the start of
// its g bucket. With up set, the result moves to the next bucket boundary
// unless the snapped time already is one.
func (n *Normalizer) Round(t time.Time, g Granularity, up bool) time.Time {
	t = t.In(n.Location)
	step := int(n.Interval / time.Minute)
	y, mo, d := t.Date()
	h, mi := t.Hour(), t.Minute()
	snapped := time.Date(y, mo, d, h, mi-mi%step, 0, 0, n.Location)

	var start time.Time
	switch g {
	case Hour:
		start = time.Date(y, mo, d, h, 0, 0, 0, n.Location)
	case TwelveHours:
		start = time.Date(y, mo, d, h-h%12, 0, 0, 0, n.Location)
	case Day:
		start = time.Date(y, mo, d, 0, 0, 0, 0, n.Location)
	case Week:
		// Weeks start on Monday.
		offset := (int(t.Weekday()) + 6) % 7
		start = time.Date(y, mo, d-offset, 0, 0, 0, 0, n.Location)
	case Month:
		start = time.Date(y, mo, 1, 0, 0, 0, 0, n.Location)
	case Year:
		start = time.Date(y, time.January, 1, 0, 0, 0, 0, n.Location)
	default:
		return snapped
	}

	if up && !start.Equal(snapped) {
		start = n.Add(start, g, 1)
	}
	return start
}

// Add moves t by k buckets of g. Hours are absolute; the larger buckets use
// wall-clock arithmetic in the normaliser's location.
func (n *Normalizer) Add(t time.Time, g Granularity, k int) time.Time {
	t = t.In(n.Location)
	switch g {
	case Hour:
		return t.Add(time.Duration(k) * time.Hour)
	case TwelveHours:
		y, mo, d := t.Date()
		return time.Date(y, mo, d, t.Hour()+12*k, t.Minute(), t.Second(), t.Nanosecond(), n.Location)
	case Day:
		return t.AddDate(0, 0, k)
	case Week:
		return t.AddDate(0, 0, 7*k)
	case Month:
		return t.AddDate(0, k, 0)
	case Year:
		return t.AddDate(k, 0, 0)
	}
	return t.Add(time.Duration(k) * n.Interval)
}

// Normalize builds a window from exactly two of begin, end and g:
//
//   - end and g: the window is the g bucket ending at end rounded up;
//   - begin and g: the window is the g bucket starting at begin rounded down;
//   - begin and end: both are snapped down to the sample interval.
//
// Any other combination is a *model.UsageError.
func (n *Normalizer) Normalize(begin, end *time.Time, g Granularity) (Window, error) {
	given := 0
	if begin != nil {
		given++
	}
	if end != nil {
		given++
	}
	if g != None {
		given++
	}
	if given != 2 {
		return Window{}, model.Usagef("exactly two of begin, end and period must be given, got %d", given)
	}

	var b, e time.Time
	switch {
	case begin == nil:
		e = n.Round(*end, g, true)
		b = n.Add(e, g, -1)
	case end == nil:
		b = n.Round(*begin, g, false)
		e = n.Add(b, g, 1)
	default:
		b = n.Round(*begin, None, false)
		e = n.Round(*end, None, false)
		if !b.Before(e) {
			return Window{}, model.Usagef("begin %s is not before end %s",
				b.Format("2006-01-02 15:04"), e.Format("2006-01-02 15:04"))
		}
	}

	w := Window{Begin: b, End: e, Granularity: g, SampleSize: n.Interval, Interval: n.Interval}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}
