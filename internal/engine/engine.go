package engine

import (
	"LightCount/internal/config"
	"LightCount/internal/filter"
	"LightCount/internal/model"
	"LightCount/internal/period"
	"context"
	"fmt"
	"log"
	"time"
)

// Options tunes an Engine. Zero fields take their defaults.
type Options struct {
	// Interval is the native sample interval of the datastore (300s).
	Interval time.Duration
	// ExportChunk is the time span fetched per export query (3h).
	ExportChunk time.Duration
	// Percentile is the billing percentile (95).
	Percentile int
	// KeepFencepost keeps the first sample of the next month when billing a
	// closed month.
	KeepFencepost bool
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// OptionsFromConfig maps the engine section of the configuration file.
func OptionsFromConfig(cfg config.EngineConfig) Options {
	return Options{
		Interval:      cfg.Interval(),
		ExportChunk:   cfg.ChunkDuration(),
		Percentile:    cfg.Percentile,
		KeepFencepost: cfg.KeepFencepost,
	}
}

// Engine compiles filter expressions into Results and serves their derived
// series from one StorageGateway.
type Engine struct {
	store    model.StorageGateway
	compiler *filter.Compiler
	opts     Options
}

// New creates an engine over store. hosts resolves names for the host filter
// field; nil uses the system resolver.
func New(store model.StorageGateway, hosts filter.HostResolver, opts Options) (*Engine, error) {
	if opts.Interval == 0 {
		opts.Interval = period.DefaultInterval
	}
	if err := period.ValidateInterval(opts.Interval); err != nil {
		return nil, err
	}
	if opts.ExportChunk == 0 {
		opts.ExportChunk = 3 * time.Hour
	}
	if opts.ExportChunk < opts.Interval || opts.ExportChunk%opts.Interval != 0 {
		return nil, fmt.Errorf("export chunk %v must be a multiple of the sample interval %v", opts.ExportChunk, opts.Interval)
	}
	if opts.Percentile == 0 {
		opts.Percentile = 95
	}
	if opts.Percentile < 1 || opts.Percentile > 99 {
		return nil, fmt.Errorf("percentile %d must be between 1 and 99", opts.Percentile)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:    store,
		compiler: filter.NewCompiler(store, hosts),
		opts:     opts,
	}, nil
}

// Interval returns the native sample interval.
func (e *Engine) Interval() time.Duration {
	return e.opts.Interval
}

// Normalizer returns a window normalizer on the engine's sample grid.
func (e *Engine) Normalizer(loc *time.Location) (*period.Normalizer, error) {
	return period.NewNormalizer(e.opts.Interval, loc)
}

// Now returns the engine clock.
func (e *Engine) Now() time.Time {
	return e.opts.Now()
}

// Compile parses a single filter expression.
func (e *Engine) Compile(ctx context.Context, text string) (*filter.Predicate, error) {
	return e.compiler.Parse(ctx, text)
}

// CompileQueries builds one Result per filter expression over window. An
// empty list yields the single everything query.
func (e *Engine) CompileQueries(ctx context.Context, window period.Window, filters []string) ([]*Result, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if window.Interval != e.opts.Interval {
		return nil, model.Violationf("window interval %v does not match the engine interval %v", window.Interval, e.opts.Interval)
	}
	if len(filters) == 0 {
		filters = []string{""}
	}

	results := make([]*Result, 0, len(filters))
	for _, text := range filters {
		pred, err := e.compiler.Parse(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", text, err)
		}
		results = append(results, newResult(e, text, pred, window))
	}
	log.Printf("Compiled %d queries for %s - %s", len(results), window.Begin.Format(time.RFC3339), window.End.Format(time.RFC3339))
	return results, nil
}

// Close releases the datastore connection.
func (e *Engine) Close() error {
	return e.store.Close()
}
