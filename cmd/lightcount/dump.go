package main

import (
	"LightCount/internal/engine"
	"LightCount/internal/export"
	"LightCount/internal/period"
	"context"
	"fmt"
	"io"
)

// runDump writes the raw samples of the single query over win to path as CSV.
func runDump(ctx context.Context, out io.Writer, eng *engine.Engine, win period.Window, queries []string, path string) error {
	results, err := eng.CompileQueries(ctx, win, queries)
	if err != nil {
		return err
	}
	r := results[0]

	w, err := export.NewCSVWriter(path, win.Location())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Writing data to %s ...   0%%", path)
	_, err = eng.ExportRows(ctx, r.Predicate, win, w, func(done, total int) {
		fmt.Fprintf(out, "\b\b\b\b%3d%%", 100*done/total)
	})
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(out)
		return err
	}
	fmt.Fprintln(out, " done")
	return nil
}
