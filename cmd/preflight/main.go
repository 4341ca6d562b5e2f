// cmd/preflight/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/config"
	"github.com/hamed0406/sitewatch/internal/repo/postgres"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet(args[0], pflag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.StringP("config", "c", "", "YAML config file")
	connect := fs.Bool("connect", false, "try to reach the postgres store")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	fail := func(msg string) { fmt.Fprintln(stderr, "✖", msg) }
	warn := func(msg string) { fmt.Fprintln(stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Fprintln(stdout, "✔", msg) }

	cfg, err := config.Load(*path)
	if err != nil {
		fail(err.Error())
		return 1
	}
	if err := cfg.Validate(); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			fail(line)
		}
		return 1
	}

	if len(cfg.Targets) == 0 {
		warn("no targets: the poller will idle every cycle")
	} else {
		ok(fmt.Sprintf("%d targets, every %s (probe timeout %s)", len(cfg.Targets), cfg.Poll.Interval, cfg.ProbeTimeout()))
	}
	if cfg.ProbeTimeout() > cfg.Poll.Interval {
		warn("probe timeout exceeds the interval; slow cycles will skip ticks")
	}

	switch cfg.Store.Kind {
	case config.StoreMemory:
		warn("store=memory: transitions are lost on exit and reports only cover this run")
	case config.StoreFile:
		ok("store=file " + cfg.Store.Path)
	case config.StorePostgres:
		ok("store=postgres")
		if *connect {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Store.ConnectTimeout+time.Second)
			defer cancel()
			s, err := postgres.New(ctx, cfg.Store.DatabaseURL, zap.NewNop(), cfg.Store.ConnectTimeout)
			if err != nil {
				fail("postgres unreachable: " + err.Error())
				return 1
			}
			_ = s.Close()
			ok("postgres reachable, schema ready")
		}
	}

	ok(fmt.Sprintf("reports: %s into %s", cfg.Report.Format, cfg.Report.Dir))
	if cfg.Report.Schedule == "" {
		warn("report.schedule empty: reports are written only on demand")
	} else {
		ok("report schedule " + cfg.Report.Schedule)
	}
	if cfg.Report.CountErrorAsDown {
		ok("probe errors count as downtime")
	}

	if cfg.API.Addr == "" {
		warn("API disabled (no api.addr / API_ADDR)")
	} else {
		ok("API on " + cfg.API.Addr)
		if len(cfg.API.WriteKeys) == 0 {
			warn("no API write keys: anyone reaching the API can write report files")
		}
		if len(cfg.API.AllowedOrigins) == 0 {
			warn("ALLOWED_ORIGINS empty: CORS allows every origin")
		}
	}

	ok("preflight passed")
	return 0
}
