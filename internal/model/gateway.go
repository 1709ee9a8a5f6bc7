package model

import "context"

// Condition is a compiled row filter. It renders as a parameterised SQL
// boolean expression over the sample_tbl columns ip, node_id and vlan_id, and
// can evaluate the same condition in memory.
type Condition interface {
	// Where returns the SQL expression and its positional arguments. An empty
	// expression matches every row.
	Where() (string, []interface{})
	// Match evaluates the condition against a single row.
	Match(row RawRow) bool
}

// NodeResolver maps monitoring node names to ids and back.
type NodeResolver interface {
	// NodeID returns ErrNotFound when no node carries the name.
	NodeID(ctx context.Context, name string) (uint32, error)
	// NodeName returns ErrNotFound when the id is not registered.
	NodeName(ctx context.Context, id uint32) (string, error)
}

// StorageGateway executes the aggregate queries the engine needs against
// sample_tbl and node_tbl. Implementations report failures as *DataError and
// never retry.
type StorageGateway interface {
	NodeResolver

	// SumByUnixtime returns SUM(field) per unixtime for the rows matching
	// cond with begin <= unixtime <= end, in ascending unixtime order.
	SumByUnixtime(ctx context.Context, cond Condition, field Field, begin, end int64) ([]Point, error)

	// ExportRows returns the rows matching cond with begin <= unixtime < end,
	// ordered by unixtime, ip, vlan_id and node_id.
	ExportRows(ctx context.Context, cond Condition, begin, end int64) ([]ExportRow, error)

	Close() error
}
