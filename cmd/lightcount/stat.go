package main

import (
	"LightCount/internal/config"
	"LightCount/internal/engine"
	"LightCount/internal/format"
	"LightCount/internal/period"
	"LightCount/internal/publish"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
)

const dateLayout = "2006-01-02 15:04 MST"

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// runStat prints the peak and billing values of every query and returns the
// reports it printed.
func runStat(ctx context.Context, out io.Writer, eng *engine.Engine, win period.Window, queries []string) ([]*engine.Report, error) {
	results, err := eng.CompileQueries(ctx, win, queries)
	if err != nil {
		return nil, err
	}

	reports := make([]*engine.Report, 0, len(results))
	for _, r := range results {
		rep, err := engine.BuildReport(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", r.Query, err)
		}
		reports = append(reports, rep)
	}

	fmt.Fprintf(out, "Selected period (%s) between %s and %s:\n",
		win.Granularity, win.Begin.Format(dateLayout), win.End.Format(dateLayout))
	fmt.Fprintln(out, renderReports(reports))
	return reports, nil
}

func renderReports(reports []*engine.Report) string {
	headers := []string{"Query", "Max bps at", "In", "Out", "Max pps at", "In", "Out", "Billing"}
	t := ltable.New().
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().PaddingRight(1)
		}).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(true).
		BorderColumn(false)

	for _, rep := range reports {
		row := []string{rep.Human, "-", "-", "-", "-", "-", "-", "-"}
		if p := rep.PeakBps; p != nil {
			row[1] = formatTime(p.Time)
			row[2] = formatBps(p.In)
			row[3] = formatBps(p.Out)
		}
		if p := rep.PeakPps; p != nil {
			row[4] = formatTime(p.Time)
			row[5] = format.FormatPps(p.In)
			row[6] = format.FormatPps(p.Out)
		}
		if b := rep.Billing; b != nil {
			row[7] = formatBilling(b)
		}
		t.Row(row...)
	}
	return t.Render()
}

// formatBps shows the scaled rate followed by the exact one.
func formatBps(bps float64) string {
	return format.FormatBps(bps) + dimStyle.Render(" ("+format.FormatRaw(bps)+")")
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

// formatBilling renders e.g. "1.5 Mbit/s (1572864) [95th, in]", marked when
// estimated.
func formatBilling(b *engine.BillingValue) string {
	s := fmt.Sprintf("%s [%dth, %s]", formatBps(b.Billable), b.Percentile, b.Side)
	if b.IsEstimate {
		s += dimStyle.Render(" estimate")
	}
	return s
}

func publishReports(cfg config.PublishConfig, reports []*engine.Report) error {
	pub, err := publish.NewPublisher(cfg)
	if err != nil {
		return err
	}
	defer pub.Close()

	for _, rep := range reports {
		if err := pub.PublishReport(rep); err != nil {
			return err
		}
	}
	log.Printf("Published %d reports to %s", len(reports), cfg.Subject)
	return nil
}
