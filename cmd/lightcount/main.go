package main

import (
	"LightCount/internal/config"
	"LightCount/internal/engine"
	"LightCount/internal/model"
	"LightCount/internal/period"
	"LightCount/internal/query"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"
)

// queryList collects repeated -q flags.
type queryList []string

func (q *queryList) String() string {
	return strings.Join(*q, "; ")
}

func (q *queryList) Set(v string) error {
	*q = append(*q, v)
	return nil
}

type options struct {
	configPath string
	queries    queryList
	period     string
	begin      string
	end        string
	timeZone   string
	sample     time.Duration
	publish    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "configs/config.yaml", "path to the configuration file")
	flag.Var(&opts.queries, "q", "filter expression, may be repeated")
	flag.StringVar(&opts.period, "t", "", "period: "+strings.Join(period.KnownGranularities(), ", "))
	flag.StringVar(&opts.begin, "begin", "", "begin date (YYYY-MM-DD [HH:MM] or MM/DD/YYYY [HH:MM])")
	flag.StringVar(&opts.end, "end", "", "end date (YYYY-MM-DD [HH:MM] or MM/DD/YYYY [HH:MM])")
	flag.StringVar(&opts.timeZone, "z", "", "time zone of the given dates")
	flag.DurationVar(&opts.sample, "sample", 0, "sample size for the peak values (e.g. 5m, 1h)")
	flag.BoolVar(&opts.publish, "publish", false, "publish the stat reports to NATS")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] stat | dump FILE\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Filter expressions combine ip, net, node, host and vlan terms with and, or, not and parentheses.")
		fmt.Fprintln(os.Stderr, "Dump files ending in .zst are zstd compressed.")
		fmt.Fprintln(os.Stderr)
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, opts, flag.Args())
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for bad input and 1 for every other failure.
func exitCode(err error) int {
	if model.IsUserError(err) {
		return 2
	}
	return 1
}

func run(ctx context.Context, opts options, args []string) error {
	if len(args) == 0 {
		flag.Usage()
		return model.Usagef("no command given")
	}
	cmd := args[0]
	switch {
	case cmd == "stat" && len(args) == 1:
	case cmd == "dump" && len(args) == 2:
		if len(opts.queries) > 1 {
			return model.Usagef("dump takes at most one query, got %d", len(opts.queries))
		}
	case cmd == "stat" || cmd == "dump":
		return model.Usagef("wrong number of arguments for %s", cmd)
	default:
		return model.Usagef("unknown command %q", cmd)
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if errors.Is(err, os.ErrNotExist) && opts.configPath == "configs/config.yaml" {
		log.Printf("No configuration at %s, using defaults", opts.configPath)
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return err
	}

	defaultLoc := period.DefaultLocation()
	if cfg.Engine.TimeZone != "" {
		if defaultLoc, err = period.LoadLocation(cfg.Engine.TimeZone, defaultLoc); err != nil {
			return err
		}
	}

	store, err := query.Open(cfg.Storage)
	if err != nil {
		return err
	}
	eng, err := engine.New(store, nil, engine.OptionsFromConfig(cfg.Engine))
	if err != nil {
		store.Close()
		return err
	}
	defer eng.Close()

	win, err := period.Resolve(period.Request{
		Begin:       opts.begin,
		End:         opts.end,
		Granularity: opts.period,
		TimeZone:    opts.timeZone,
	}, eng.Interval(), defaultLoc, eng.Now())
	if err != nil {
		return err
	}

	if cmd == "dump" {
		return runDump(ctx, os.Stdout, eng, win, opts.queries, args[1])
	}

	if opts.sample != 0 {
		if win, err = win.WithSampleSize(opts.sample); err != nil {
			return err
		}
	}
	reports, err := runStat(ctx, os.Stdout, eng, win, opts.queries)
	if err != nil {
		return err
	}
	if opts.publish || cfg.Publish.Enabled {
		return publishReports(cfg.Publish, reports)
	}
	return nil
}
