package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/sitewatch/internal/config"
	"github.com/hamed0406/sitewatch/internal/console"
	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/httpapi"
	apimw "github.com/hamed0406/sitewatch/internal/httpapi/middleware"
	"github.com/hamed0406/sitewatch/internal/logging"
	"github.com/hamed0406/sitewatch/internal/metrics"
	"github.com/hamed0406/sitewatch/internal/probe"
	"github.com/hamed0406/sitewatch/internal/report"
	"github.com/hamed0406/sitewatch/internal/scheduler"
	"github.com/hamed0406/sitewatch/internal/tracker"
)

func main() {
	os.Exit(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

type flags struct {
	ConfigPath string
	ReportDate string
	NoConsole  bool
	LogStderr  bool
	ShowHelp   bool
}

// parseArgs loads the config file named by --config, then lets explicitly
// set flags override it.
func parseArgs(args []string, stderr io.Writer) (config.Config, flags, error) {
	var f flags
	var (
		interval   time.Duration
		storeKind  string
		storePath  string
		reportDir  string
		format     string
		addr       string
		logDir     string
		logLevel   string
		errorsDown bool
	)

	fs := pflag.NewFlagSet(args[0], pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&f.ConfigPath, "config", "c", "", "YAML config file")
	fs.DurationVarP(&interval, "interval", "i", 0, "poll interval (default 1s)")
	fs.StringVar(&storeKind, "store", "", "event store: file, memory or postgres")
	fs.StringVar(&storePath, "store-path", "", "event log path for the file store")
	fs.StringVarP(&reportDir, "report-dir", "o", "", "directory for report files")
	fs.StringVar(&format, "format", "", "report format: csv or xlsx")
	fs.StringVar(&addr, "addr", "", "HTTP API listen address (empty disables)")
	fs.StringVar(&logDir, "log-dir", "", "directory for the rotated JSON log")
	fs.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	fs.BoolVar(&errorsDown, "count-error-as-down", false, "count probe errors as downtime in reports")
	fs.StringVar(&f.ReportDate, "report", "", "write the report for `DATE` (YYYY-MM-DD or \"today\") and exit")
	fs.BoolVar(&f.NoConsole, "no-console", false, "do not read commands from stdin")
	fs.BoolVar(&f.LogStderr, "log-stderr", false, "also write logs to stderr")
	fs.BoolVarP(&f.ShowHelp, "help", "h", false, "show this help")

	if err := fs.Parse(args[1:]); err != nil {
		return config.Config{}, f, err
	}
	if f.ShowHelp {
		fs.PrintDefaults()
		return config.Config{}, f, nil
	}

	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return config.Config{}, f, err
	}
	if fs.Changed("interval") {
		cfg.Poll.Interval = interval
	}
	if fs.Changed("store") {
		cfg.Store.Kind = storeKind
	}
	if fs.Changed("store-path") {
		cfg.Store.Path = storePath
	}
	if fs.Changed("report-dir") {
		cfg.Report.Dir = reportDir
	}
	if fs.Changed("format") {
		cfg.Report.Format = format
	}
	if fs.Changed("addr") {
		cfg.API.Addr = addr
	}
	if fs.Changed("log-dir") {
		cfg.LogDir = logDir
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if fs.Changed("count-error-as-down") {
		cfg.Report.CountErrorAsDown = errorsDown
	}
	return cfg, f, cfg.Validate()
}

func run(args []string, stdin *os.File, stdout, stderr io.Writer) int {
	cfg, f, err := parseArgs(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 2
	}
	if f.ShowHelp {
		return 0
	}

	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel, f.LogStderr)
	if err != nil {
		fmt.Fprintln(stderr, "error: logger:", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("store_open_failed", zap.String("kind", cfg.Store.Kind), zap.Error(err))
		fmt.Fprintln(stderr, "error:", err)
		_ = logger.Sync()
		return 1
	}
	defer func() {
		if err := multierr.Combine(store.Close(), logger.Sync()); err != nil {
			fmt.Fprintln(stderr, "shutdown:", err)
		}
	}()

	loc, _ := cfg.Location() // validated
	format, _ := report.ParseFormat(cfg.Report.Format)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	engine := report.NewEngine(store, logger,
		report.WithLocation(loc),
		report.WithDir(cfg.Report.Dir),
		report.WithFormat(format),
		report.WithPolicy(report.DowntimePolicy{CountErrorAsDown: cfg.Report.CountErrorAsDown}),
		report.WithMetrics(m),
	)

	if f.ReportDate != "" {
		return writeOnce(ctx, engine, f.ReportDate, stdout, stderr)
	}

	targets := make([]domain.TargetID, len(cfg.Targets))
	for i, t := range cfg.Targets {
		targets[i] = domain.TargetID(t)
	}
	tr := tracker.New(store, targets)

	pollOpts := []scheduler.Option{
		scheduler.WithInterval(cfg.Poll.Interval),
		scheduler.WithProbeTimeout(cfg.ProbeTimeout()),
		scheduler.WithConcurrency(cfg.Poll.Concurrency),
		scheduler.WithMetrics(m),
	}
	if cfg.Poll.DNSOnError {
		pollOpts = append(pollOpts, scheduler.WithDNSDiagnostics(nil))
	}
	poller := scheduler.NewPoller(logger, tr, probe.NewHTTPChecker(cfg.ProbeTimeout(), cfg.Poll.InsecureTLS), targets, pollOpts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		poller.Run(gctx)
		return nil
	})

	if cfg.Report.Schedule != "" {
		c, err := report.ScheduleDaily(gctx, cfg.Report.Schedule, engine)
		if err != nil {
			logger.Error("report_schedule_invalid", zap.Error(err))
			return 1
		}
		c.Start()
		logger.Info("report_schedule_started", zap.String("spec", cfg.Report.Schedule))
		g.Go(func() error {
			<-gctx.Done()
			<-c.Stop().Done()
			return nil
		})
	}

	if cfg.API.Addr != "" {
		api := httpapi.NewServer(logger, targets, tr, engine, m.Handler())
		srv := &http.Server{
			Addr: cfg.API.Addr,
			Handler: api.Router(httpapi.RouterOptions{
				Keys:           apimw.Keys{Read: cfg.API.ReadKeys, Write: cfg.API.WriteKeys},
				AllowedOrigins: cfg.API.AllowedOrigins,
				RatePerMin:     cfg.API.RatePerMin,
				Burst:          cfg.API.Burst,
				TrustedProxies: trustedProxies(cfg.API.TrustedProxies),
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("api_listen", zap.String("addr", cfg.API.Addr))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("api: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}

	// Not part of the group: a read blocked on stdin cannot be interrupted.
	if !f.NoConsole && (cfg.Console || console.IsTerminal(stdin)) {
		con := console.New(stdin, stdout, engine, logger)
		go func() {
			err := con.Run(gctx)
			switch {
			case errors.Is(err, console.ErrExit):
				cancel()
			case err != nil:
				logger.Warn("console_read_error", zap.Error(err))
			default:
				logger.Info("console_eof")
			}
		}()
	}

	if err := g.Wait(); err != nil {
		logger.Error("sitewatch_failed", zap.Error(err))
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	logger.Info("sitewatch_stopped")
	return 0
}

// trustedProxies parses entries already checked by config.Validate.
func trustedProxies(list []string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(list))
	for _, s := range list {
		if p, err := config.ParsePrefix(s); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func writeOnce(ctx context.Context, engine *report.Engine, raw string, stdout, stderr io.Writer) int {
	if raw == "today" {
		raw = ""
	}
	day, err := report.ParseDate(raw, time.Now(), engine.Location())
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 2
	}
	path, rep, err := engine.WriteReport(ctx, day)
	switch {
	case errors.Is(err, report.ErrNoData):
		fmt.Fprintf(stdout, "no data for %s\n", report.FormatDate(day))
		return 0
	case err != nil:
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	fmt.Fprintf(stdout, "%s (%d targets)\n", path, len(rep.Rows))
	return 0
}
