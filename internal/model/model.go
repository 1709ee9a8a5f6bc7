package model

import (
	"fmt"
	"time"
)

// Field names one of the rate columns of sample_tbl.
type Field string

const (
	InPps  Field = "in_pps"
	InBps  Field = "in_bps" // stored as bytes per second
	OutPps Field = "out_pps"
	OutBps Field = "out_bps" // stored as bytes per second
)

// Valid reports whether f is a known rate column. Only valid fields may be
// interpolated into SQL.
func (f Field) Valid() bool {
	switch f {
	case InPps, InBps, OutPps, OutBps:
		return true
	}
	return false
}

// RawRow is one stored sample: the averaged rates of a single
// (node, vlan, ip) combination during one native sample interval.
type RawRow struct {
	Unixtime int64
	NodeID   uint32
	VlanID   uint16
	IP       uint32
	InPps    uint64
	InBps    uint64
	OutPps   uint64
	OutBps   uint64
}

// Value returns the column of the row named by f.
func (r RawRow) Value(f Field) (uint64, error) {
	switch f {
	case InPps:
		return r.InPps, nil
	case InBps:
		return r.InBps, nil
	case OutPps:
		return r.OutPps, nil
	case OutBps:
		return r.OutBps, nil
	}
	return 0, fmt.Errorf("unknown field: %s", f)
}

// Point is SUM(field) over all rows matching a predicate that share one
// native-interval timestamp.
type Point struct {
	Unixtime int64
	Value    uint64
}

// ExportRow is a stored sample in its human-readable export form.
type ExportRow struct {
	Unixtime int64
	NodeName string
	VlanID   uint16
	IP       string
	InPps    uint64
	InBps    uint64
	OutPps   uint64
	OutBps   uint64
}

// Time returns the row timestamp in loc.
func (r ExportRow) Time(loc *time.Location) time.Time {
	return time.Unix(r.Unixtime, 0).In(loc)
}
