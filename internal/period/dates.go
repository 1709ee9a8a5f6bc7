package period

import (
	"LightCount/internal/model"
	"os"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006 15:04",
	"1/2/2006",
}

// ParseDate accepts "YYYY-mm-dd [HH:MM]", "mm/dd/yyyy [HH:MM]" or RFC 3339.
// Dates without an offset are taken in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, model.Usagef("invalid date %q: dates should be in this format: mm/dd/yyyy OR YYYY-mm-dd [HH:MM]", s)
}

// DefaultLocation returns the zone named by $TZ, else the one in
// /etc/timezone, else UTC.
func DefaultLocation() *time.Location {
	if name := strings.TrimSpace(os.Getenv("TZ")); name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if data, err := os.ReadFile("/etc/timezone"); err == nil {
		if loc, err := time.LoadLocation(strings.TrimSpace(string(data))); err == nil {
			return loc
		}
	}
	return time.UTC
}

// LoadLocation resolves a time zone name. The empty name yields def.
func LoadLocation(name string, def *time.Location) (*time.Location, error) {
	if name == "" {
		return def, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, model.Usagef("invalid time zone %q: %v", name, err)
	}
	return loc, nil
}

// Request is an unparsed window selection as typed by a user. Empty fields
// are omitted.
type Request struct {
	Begin       string
	End         string
	Granularity string
	TimeZone    string
}

// Resolve turns a Request into a Window, filling in the usual defaults: a
// missing period is a month unless both dates are given, and a missing end is
// now unless a begin date is given.
func Resolve(req Request, interval time.Duration, defaultLoc *time.Location, now time.Time) (Window, error) {
	loc, err := LoadLocation(req.TimeZone, defaultLoc)
	if err != nil {
		return Window{}, err
	}
	n, err := NewNormalizer(interval, loc)
	if err != nil {
		return Window{}, err
	}

	g, err := ParseGranularity(req.Granularity)
	if err != nil {
		return Window{}, err
	}

	var begin, end *time.Time
	if req.Begin != "" {
		t, err := ParseDate(req.Begin, loc)
		if err != nil {
			return Window{}, err
		}
		begin = &t
	}
	if req.End != "" {
		t, err := ParseDate(req.End, loc)
		if err != nil {
			return Window{}, err
		}
		end = &t
	}
	if begin != nil && end != nil && g != None {
		return Window{}, model.Usagef("specify at most one date and a period or two dates")
	}

	if g == None && (begin == nil || end == nil) {
		g = Month
	}
	if begin == nil && end == nil {
		t := now.In(loc)
		end = &t
	}
	return n.Normalize(begin, end, g)
}
