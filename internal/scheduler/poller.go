package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/metrics"
	"github.com/hamed0406/sitewatch/internal/probe"
)

// Observer persists a classification when it is a transition.
// *tracker.Tracker implements it.
type Observer interface {
	Observe(ctx context.Context, target domain.TargetID, status domain.Status, at time.Time) (bool, error)
}

type Poller struct {
	Logger      *zap.Logger
	Tracker     Observer
	Checker     probe.Checker
	Targets     []domain.TargetID
	Interval    time.Duration
	Timeout     time.Duration
	Concurrency int

	metrics  *metrics.Metrics
	now      func() time.Time
	resolver probe.Resolver
	dns      bool
}

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) { p.Interval = d }
}

// WithProbeTimeout bounds each probe. Defaults to the interval.
func WithProbeTimeout(d time.Duration) Option {
	return func(p *Poller) { p.Timeout = d }
}

// WithConcurrency caps parallel probes per cycle. Defaults to one per target.
func WithConcurrency(n int) Option {
	return func(p *Poller) { p.Concurrency = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Poller) { p.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// WithDNSDiagnostics logs a resolver diagnosis whenever a target turns to
// StatusError. A nil resolver uses the OS resolver.
func WithDNSDiagnostics(r probe.Resolver) Option {
	return func(p *Poller) {
		p.dns = true
		p.resolver = r
	}
}

func NewPoller(
	logger *zap.Logger,
	tracker Observer,
	checker probe.Checker,
	targets []domain.TargetID,
	opts ...Option,
) *Poller {
	p := &Poller{
		Logger:   logger,
		Tracker:  tracker,
		Checker:  checker,
		Targets:  append([]domain.TargetID(nil), targets...),
		Interval: time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Interval <= 0 {
		p.Interval = time.Second
	}
	if p.Timeout <= 0 {
		p.Timeout = p.Interval
	}
	if p.Concurrency < 1 || p.Concurrency > len(p.Targets) {
		p.Concurrency = len(p.Targets)
	}
	if p.Concurrency < 1 {
		p.Concurrency = 1
	}
	return p
}

// Run does an immediate pass, then one cycle per tick until ctx is
// cancelled. Ticks missed by a slow cycle are dropped.
func (p *Poller) Run(ctx context.Context) {
	t := time.NewTicker(p.Interval)
	defer t.Stop()

	p.Logger.Info("poller_started",
		zap.Int("targets", len(p.Targets)),
		zap.Duration("interval", p.Interval),
		zap.Duration("probe_timeout", p.Timeout),
	)

	p.RecordPoll(ctx)

	for {
		select {
		case <-ctx.Done():
			p.Logger.Info("poller_stopped")
			return
		case <-t.C:
			p.RecordPoll(ctx)
		}
	}
}

// RecordPoll runs one cycle: every target is probed once and each result is
// handed to the tracker. Cancellation is checked before the cycle and before
// each probe starts; probes already in flight finish (bounded by the probe
// timeout) and their results are recorded, so a stop never leaves a cycle
// half-written.
func (p *Poller) RecordPoll(ctx context.Context) {
	if ctx.Err() != nil || len(p.Targets) == 0 {
		return
	}
	start := time.Now()
	cycleID := uuid.NewString()

	sem := make(chan struct{}, p.Concurrency)
	var wg sync.WaitGroup

	for _, tgt := range p.Targets {
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(t domain.TargetID) {
			defer func() { <-sem }()
			defer wg.Done()
			p.pollOne(ctx, cycleID, t)
		}(tgt)
	}

	wg.Wait()
	p.metrics.ObserveCycle(time.Since(start))
}

func (p *Poller) pollOne(ctx context.Context, cycleID string, t domain.TargetID) {
	// Detached from ctx: a stop request must not turn an in-flight probe
	// into a spurious StatusError.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.Timeout)
	defer cancel()

	out := p.Checker.Check(pctx, string(t))
	if !out.Status.Valid() {
		out.Status = domain.StatusError
	}
	p.metrics.ObserveProbe(out.Status, out.LatencyMS)

	// The probe may have used up its whole budget; the write gets its own.
	wctx, wcancel := context.WithTimeout(context.WithoutCancel(ctx), p.Timeout)
	defer wcancel()
	emitted, err := p.Tracker.Observe(wctx, t, out.Status, p.now())
	if err != nil {
		p.metrics.ObserveAppendError()
		p.Logger.Warn("poll_append_error",
			zap.String("cycle_id", cycleID),
			zap.String("target", string(t)),
			zap.Stringer("status", out.Status),
			zap.Error(err),
		)
		return
	}
	if !emitted {
		p.Logger.Debug("poll_checked",
			zap.String("cycle_id", cycleID),
			zap.String("target", string(t)),
			zap.Stringer("status", out.Status),
			zap.Int("http_status", out.StatusCode),
			zap.Float64("latency_ms", out.LatencyMS),
		)
		return
	}

	p.metrics.ObserveTransition(out.Status)
	p.Logger.Info("poll_transition",
		zap.String("cycle_id", cycleID),
		zap.String("target", string(t)),
		zap.Stringer("status", out.Status),
		zap.Int("http_status", out.StatusCode),
		zap.Float64("latency_ms", out.LatencyMS),
		zap.String("reason", out.Message),
	)
	if p.dns && out.Status == domain.StatusError {
		dns := probe.CheckDNS(wctx, p.resolver, probe.HostOf(string(t)))
		p.Logger.Info("dns_check",
			zap.String("target", string(t)),
			zap.String("domain", dns.Domain),
			zap.String("class", dns.Class),
			zap.Bool("has_a_or_aaaa", dns.HasAOrAAAA),
			zap.Strings("nameservers", dns.Nameservers),
			zap.String("cname", dns.CNAME),
			zap.String("resolver_error", dns.ResolverError),
		)
	}
}
