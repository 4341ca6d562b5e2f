// Package report rebuilds per-day availability from the transition log and
// writes report artifacts.
package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/metrics"
	"github.com/hamed0406/sitewatch/internal/repo"
)

// ErrNoData means the store holds no events for the requested day. It is not
// a store failure.
var ErrNoData = errors.New("no data")

type Engine struct {
	store   repo.EventStore
	log     *zap.Logger
	metrics *metrics.Metrics

	loc    *time.Location
	dir    string
	format Format
	policy DowntimePolicy
	now    func() time.Time
}

type Option func(*Engine)

// WithLocation sets the time zone that defines calendar days. Default time.Local.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

// WithDir sets the directory report artifacts are written to. Default ".".
func WithDir(dir string) Option {
	return func(e *Engine) { e.dir = dir }
}

func WithFormat(f Format) Option {
	return func(e *Engine) { e.format = f }
}

func WithPolicy(p DowntimePolicy) Option {
	return func(e *Engine) { e.policy = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store repo.EventStore, log *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		log:    log,
		loc:    time.Local,
		dir:    ".",
		format: FormatCSV,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	return e
}

func (e *Engine) Location() *time.Location { return e.loc }

// Today returns midnight of the current day in the engine's location.
func (e *Engine) Today() time.Time {
	return e.midnight(e.now())
}

func (e *Engine) midnight(t time.Time) time.Time {
	y, m, d := t.In(e.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.loc)
}

// ReportFor computes the report for the calendar day containing day.
func (e *Engine) ReportFor(ctx context.Context, day time.Time) (domain.DailyReport, error) {
	day = e.midnight(day)
	events, err := e.store.QueryDay(ctx, day)
	if err != nil {
		e.metrics.ObserveReport("error")
		return domain.DailyReport{}, fmt.Errorf("report %s: %w", FormatDate(day), err)
	}
	if len(events) == 0 {
		e.metrics.ObserveReport("no_data")
		return domain.DailyReport{}, fmt.Errorf("report %s: %w", FormatDate(day), ErrNoData)
	}
	e.metrics.ObserveReport("ok")
	return domain.DailyReport{Date: day, Rows: Reconstruct(day, events, e.policy)}, nil
}

// WriteReport computes the report for day and writes it, replacing any
// previous artifact for the same date. Nothing is written on ErrNoData or a
// store failure.
func (e *Engine) WriteReport(ctx context.Context, day time.Time) (string, domain.DailyReport, error) {
	rep, err := e.ReportFor(ctx, day)
	if err != nil {
		return "", domain.DailyReport{}, err
	}
	path := filepath.Join(e.dir, ArtifactName(rep.Date, e.format))
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", domain.DailyReport{}, fmt.Errorf("create report dir: %w", err)
	}
	if err := writeAtomic(path, rep, e.format); err != nil {
		e.log.Error("report_write_error", zap.String("path", path), zap.Error(err))
		return "", domain.DailyReport{}, err
	}
	e.log.Info("report_written",
		zap.String("date", FormatDate(rep.Date)),
		zap.String("path", path),
		zap.Int("rows", len(rep.Rows)),
	)
	return path, rep, nil
}

// WritePreviousDay writes the report for yesterday, treating ErrNoData as a
// non-event.
func (e *Engine) WritePreviousDay(ctx context.Context) {
	day := e.Today().AddDate(0, 0, -1)
	_, _, err := e.WriteReport(ctx, day)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoData):
		e.log.Info("report_no_data", zap.String("date", FormatDate(day)))
	default:
		e.log.Warn("report_scheduled_error", zap.String("date", FormatDate(day)), zap.Error(err))
	}
}
