// Package poller watches the submission source and hands every new
// submission to a sink exactly once per process lifetime.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/cancetinn/ldm-discord/model"
)

// Lister lists every submission the source knows about.
type Lister interface {
	List(ctx context.Context) ([]model.Submission, error)
}

// Sink receives each new submission.
type Sink interface {
	Surface(ctx context.Context, sub model.Submission) error
}

// HealthReporter is told whether the last cycle succeeded.
type HealthReporter interface {
	SetHealthy(healthy bool)
}

// Poller periodically lists the source and hands new submissions to the sink.
type Poller struct {
	lister Lister
	sink   Sink
	cfg    model.Poll
	health HealthReporter
	logger *slog.Logger

	cycle sync.Mutex

	mu          sync.RWMutex
	wm          Watermark
	initialized bool
	failures    int
}

// New creates a Poller. health may be nil.
func New(lister Lister, sink Sink, cfg model.Poll, health HealthReporter, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{lister: lister, sink: sink, cfg: cfg, health: health, logger: logger}
}

// Init sets the watermark to the newest submission currently in the source,
// so submissions that existed before startup are not re-posted.
func (p *Poller) Init(ctx context.Context) error {
	subs, err := p.lister.List(ctx)
	if err != nil {
		p.report(false)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sub := range subs {
		p.wm.Advance(sub)
	}
	p.initialized = true
	p.logger.Info("poller initialized", "watermark", p.wm.At(), "existing", len(subs))
	p.report(true)
	return nil
}

// PollOnce runs a single cycle and returns how many submissions were handed off.
// A failed hand-off stops the cycle; that submission is retried next cycle.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	p.cycle.Lock()
	defer p.cycle.Unlock()

	if !p.Initialized() {
		if err := p.Init(ctx); err != nil {
			return 0, fmt.Errorf("init watermark: %w", err)
		}
		return 0, nil
	}

	subs, err := p.lister.List(ctx)
	if err != nil {
		p.report(false)
		return 0, err
	}
	model.SortBySubmittedAt(subs)

	handed := 0
	for _, sub := range subs {
		p.mu.RLock()
		admit := p.wm.Admits(sub)
		p.mu.RUnlock()
		if !admit {
			continue
		}

		if err := p.sink.Surface(ctx, sub); err != nil {
			p.report(false)
			return handed, fmt.Errorf("hand off submission %s: %w", sub.ID, err)
		}

		p.mu.Lock()
		p.wm.Advance(sub)
		p.mu.Unlock()
		handed++
	}

	if handed > 0 {
		p.logger.Info("new submissions handed off", "count", handed, "watermark", p.Watermark())
	}
	p.report(true)
	return handed, nil
}

// Run polls until ctx is cancelled. Consecutive failures stretch the delay.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "interval", p.cfg.Interval)
	for {
		delay := p.cfg.Interval
		if _, err := p.PollOnce(ctx); err != nil {
			p.mu.Lock()
			p.failures++
			failures := p.failures
			p.mu.Unlock()

			delay = Backoff(p.cfg, failures)
			p.logger.Error("poll cycle failed", "error", err, "failures", failures, "retry_in", delay)
		} else {
			p.mu.Lock()
			p.failures = 0
			p.mu.Unlock()
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("poller stopped")
			return nil
		case <-timer.C:
		}
	}
}

// Watermark returns the current watermark time.
func (p *Poller) Watermark() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.wm.At()
}

// Initialized reports whether Init has succeeded.
func (p *Poller) Initialized() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.initialized
}

// Backoff returns the delay after the given number of consecutive failures:
// interval * factor^failures, capped at MaxBackoff.
func Backoff(cfg model.Poll, failures int) time.Duration {
	if failures <= 0 {
		return cfg.Interval
	}
	factor := cfg.BackoffFactor
	if factor < 1 {
		factor = 1
	}

	delay := float64(cfg.Interval) * math.Pow(factor, float64(failures))
	if cfg.MaxBackoff > 0 && delay > float64(cfg.MaxBackoff) {
		return cfg.MaxBackoff
	}
	if delay > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

func (p *Poller) report(healthy bool) {
	if p.health != nil {
		p.health.SetHealthy(healthy)
	}
}
