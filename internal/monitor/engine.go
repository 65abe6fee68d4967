// Package monitor runs the probes for one or many URLs and assembles
// timestamped composite results.
package monitor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/iter"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/sitehealth/internal/domain"
	"github.com/hamed0406/sitehealth/internal/probe"
)

// DefaultTimeout bounds every probe when no WithTimeout option is given.
const DefaultTimeout = 30 * time.Second

// PingProber reports ICMP reachability. It must not fail.
type PingProber interface {
	Ping(ctx context.Context, target string) domain.PingResult
}

// HTTPProber performs a single GET or HEAD request.
type HTTPProber interface {
	Probe(ctx context.Context, target, method string) (domain.HTTPCheckResult, error)
}

// Engine is a stateless probing primitive. It is safe for concurrent use.
type Engine struct {
	workerID       string
	timeout        time.Duration
	maxConcurrency int
	logger         *zap.Logger
	pinger         PingProber
	http           HTTPProber
	now            func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the budget applied independently to each probe.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMaxConcurrency caps how many URLs MonitorURLs checks at once.
// Zero or less means one goroutine per URL.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) { e.maxConcurrency = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithPinger(p PingProber) Option {
	return func(e *Engine) { e.pinger = p }
}

func WithHTTPProber(h HTTPProber) Option {
	return func(e *Engine) { e.http = h }
}

// WithClock overrides the source of CheckedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an Engine that tags every result with workerID.
// Without WithPinger/WithHTTPProber it uses unprivileged ICMP with the system
// resolver and the default HTTP prober.
func New(workerID string, opts ...Option) *Engine {
	e := &Engine{
		workerID: workerID,
		timeout:  DefaultTimeout,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.pinger == nil {
		e.pinger = &probe.Pinger{Timeout: e.timeout}
	}
	if e.http == nil {
		e.http = probe.NewHTTPProber(e.timeout, "sitehealth/"+workerID)
	}
	return e
}

func (e *Engine) WorkerID() string { return e.workerID }

func (e *Engine) Timeout() time.Duration { return e.timeout }

// MonitorURL pings, GETs and HEADs target concurrently and returns the
// composite result. A failing probe only degrades its own field. The only
// error is a malformed target, reported before any probe starts.
func (e *Engine) MonitorURL(ctx context.Context, target string) (domain.SiteMonitorResult, error) {
	if _, err := probe.ParseTarget(target); err != nil {
		return domain.SiteMonitorResult{}, err
	}
	return e.monitor(ctx, target), nil
}

// MonitorURLs checks every target concurrently and returns results in input
// order. Every target is validated first; if any is malformed nothing is probed.
func (e *Engine) MonitorURLs(ctx context.Context, targets []string) ([]domain.SiteMonitorResult, error) {
	var errs error
	for i, t := range targets {
		if _, err := probe.ParseTarget(t); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("targets[%d]: %w", i, err))
		}
	}
	if errs != nil {
		return nil, errs
	}
	if len(targets) == 0 {
		return []domain.SiteMonitorResult{}, nil
	}

	limit := e.maxConcurrency
	if limit <= 0 || limit > len(targets) {
		limit = len(targets)
	}

	start := time.Now()
	mapper := iter.Mapper[string, domain.SiteMonitorResult]{MaxGoroutines: limit}
	results := mapper.Map(targets, func(t *string) domain.SiteMonitorResult {
		return e.monitor(ctx, *t)
	})

	up := 0
	for _, r := range results {
		if r.IsUp {
			up++
		}
	}
	e.logger.Info("batch_finished",
		zap.String("worker_id", e.workerID),
		zap.Int("targets", len(targets)),
		zap.Int("up", up),
		zap.Int("concurrency", limit),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results, nil
}

func (e *Engine) monitor(ctx context.Context, target string) domain.SiteMonitorResult {
	checkedAt := e.now().UTC()

	var (
		ping      domain.PingResult
		get, head domain.HTTPCheckResult
	)
	var wg conc.WaitGroup
	wg.Go(func() { ping = e.runPing(ctx, target) })
	wg.Go(func() { get = e.runHTTP(ctx, target, http.MethodGet) })
	wg.Go(func() { head = e.runHTTP(ctx, target, http.MethodHead) })
	wg.Wait()

	e.logger.Debug("target_checked",
		zap.String("url", target),
		zap.Bool("up", get.IsUp),
		zap.Bool("ping_up", ping.IsUp),
		zap.Int("get_status", get.StatusCode),
		zap.Int("head_status", head.StatusCode),
		zap.Float64("get_ms", get.ResponseTimeMS),
	)

	return domain.SiteMonitorResult{
		URL:       target,
		CheckedAt: checkedAt,
		WorkerID:  e.workerID,
		IsUp:      get.IsUp,
		PingCheck: ping,
		GetCheck:  get,
		HeadCheck: head,
	}
}

// Each probe gets its own timeout scope so one expiring never cancels a sibling.

func (e *Engine) runPing(ctx context.Context, target string) domain.PingResult {
	pctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var out domain.PingResult
	if err := e.guard("ping", target, func() { out = e.pinger.Ping(pctx, target) }); err != nil {
		return domain.FailedPing(err)
	}
	return out
}

func (e *Engine) runHTTP(ctx context.Context, target, method string) domain.HTTPCheckResult {
	hctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var (
		out domain.HTTPCheckResult
		err error
	)
	if perr := e.guard(method, target, func() { out, err = e.http.Probe(hctx, target, method) }); perr != nil {
		err = perr
	}
	if err != nil {
		e.logger.Debug("probe_failed",
			zap.String("probe", method),
			zap.String("url", target),
			zap.Error(err),
		)
		return domain.FailedHTTPCheck(err)
	}
	return out
}

// guard runs fn and turns a panic into an error.
func (e *Engine) guard(name, target string, fn func()) error {
	var pc panics.Catcher
	pc.Try(fn)
	r := pc.Recovered()
	if r == nil {
		return nil
	}
	e.logger.Warn("probe_panic_recovered",
		zap.String("probe", name),
		zap.String("url", target),
		zap.Any("panic", r.Value),
	)
	return fmt.Errorf("%s probe panicked: %v", name, r.Value)
}
