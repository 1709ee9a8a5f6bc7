package period

import (
	"LightCount/internal/model"
	"strings"
)

// Granularity is the calendar bucket a window is rounded to.
type Granularity int

const (
	// None means the window was given by explicit begin and end dates.
	None Granularity = iota
	Hour
	TwelveHours
	Day
	Week
	Month
	Year
)

var granularityNames = map[Granularity]string{
	None:        "",
	Hour:        "hour",
	TwelveHours: "12h",
	Day:         "day",
	Week:        "week",
	Month:       "month",
	Year:        "year",
}

func (g Granularity) String() string {
	if name, ok := granularityNames[g]; ok {
		if name == "" {
			return "none"
		}
		return name
	}
	return "unknown"
}

// KnownGranularities lists the accepted period tokens in ascending size.
func KnownGranularities() []string {
	return []string{"hour", "12h", "day", "week", "month", "year"}
}

// ParseGranularity maps a period token to its Granularity. The empty string
// yields None.
func ParseGranularity(s string) (Granularity, error) {
	token := strings.ToLower(strings.TrimSpace(s))
	if token == "" {
		return None, nil
	}
	for g, name := range granularityNames {
		if name != "" && name == token {
			return g, nil
		}
	}
	return None, model.Usagef("unknown period %q (expected one of %s)", s, strings.Join(KnownGranularities(), ", "))
}
