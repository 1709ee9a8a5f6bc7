package model

// RowSink receives exported rows in ascending (unixtime, ip, vlan, node) order.
type RowSink interface {
	// WriteRow persists a single row. An error aborts the export.
	WriteRow(row ExportRow) error
}
