package engine

import (
	"LightCount/internal/model"
	"LightCount/internal/period"
	"context"
	"fmt"
	"time"
)

// ProgressFunc is told after every export chunk how many of the total
// chunks are done.
type ProgressFunc func(done, total int)

// ExportRows streams the raw samples matching cond in [w.Begin, w.End) to
// sink, ordered by timestamp, ip, vlan and node. The window is fetched in
// chunks of the configured export span; progress, when set, is called after
// each chunk. It returns the number of rows written.
func (e *Engine) ExportRows(ctx context.Context, cond model.Condition, w period.Window, sink model.RowSink, progress ProgressFunc) (int, error) {
	if err := w.Validate(); err != nil {
		return 0, err
	}

	begin, end := w.Begin.Unix(), w.End.Unix()
	chunk := int64(e.opts.ExportChunk / time.Second)
	total := int((end - begin + chunk - 1) / chunk)

	written := 0
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		from := begin + int64(i)*chunk
		to := from + chunk
		if to > end {
			to = end
		}

		rows, err := e.store.ExportRows(ctx, cond, from, to)
		if err != nil {
			return written, err
		}
		for _, row := range rows {
			if err := sink.WriteRow(row); err != nil {
				return written, fmt.Errorf("failed to write row at %d: %w", row.Unixtime, err)
			}
			written++
		}
		if progress != nil {
			progress(i+1, total)
		}
	}
	return written, nil
}
