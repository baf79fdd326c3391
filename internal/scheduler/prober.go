package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/live"
	"github.com/hamed0406/pingmonitor/internal/metrics"
	"github.com/hamed0406/pingmonitor/internal/probe"
	"github.com/hamed0406/pingmonitor/internal/repo"
)

// Prober runs one probe per tick and commits each result: store, then live
// feed, then failure tracker.
type Prober struct {
	Logger   *zap.Logger
	Probe    probe.Prober
	Results  repo.ResultStore
	Feed     *live.Feed
	Tracker  *FailureTracker
	Metrics  *metrics.Metrics
	Interval time.Duration

	slots    *semaphore.Weighted
	commitMu sync.Mutex
	inflight sync.WaitGroup
}

// NewProber sizes the overlap allowance so a probe that runs for the whole
// timeout still leaves a slot for the next tick.
func NewProber(
	logger *zap.Logger,
	p probe.Prober,
	rs repo.ResultStore,
	feed *live.Feed,
	tracker *FailureTracker,
	m *metrics.Metrics,
	interval time.Duration,
	timeout time.Duration,
) *Prober {
	if interval <= 0 {
		interval = time.Second
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	slots := int64((timeout+interval-1)/interval) + 1
	return &Prober{
		Logger:   logger,
		Probe:    p,
		Results:  rs,
		Feed:     feed,
		Tracker:  tracker,
		Metrics:  m,
		Interval: interval,
		slots:    semaphore.NewWeighted(slots),
	}
}

// Run starts the loop. It does an immediate pass, then runs each tick.
// Stops when ctx is cancelled and waits for in-flight probes.
func (p *Prober) Run(ctx context.Context) {
	t := time.NewTicker(p.Interval)
	defer t.Stop()

	p.Logger.Info("prober_started", zap.Duration("interval", p.Interval))

	// immediate pass
	p.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			p.inflight.Wait()
			p.Logger.Info("prober_stopped")
			return
		case <-t.C:
			p.tick(ctx)
		}
	}
}

func (p *Prober) tick(ctx context.Context) {
	if !p.slots.TryAcquire(1) {
		p.Metrics.TickSkipped()
		p.Logger.Warn("probe_tick_skipped")
		return
	}
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		defer p.slots.Release(1)

		r := p.Probe.Probe(ctx)
		if ctx.Err() != nil {
			// shutting down; the outcome says nothing about the target
			return
		}
		p.commit(ctx, r)
	}()
}

func (p *Prober) commit(ctx context.Context, r domain.ProbeResult) {
	p.commitMu.Lock()
	defer p.commitMu.Unlock()

	if err := p.Results.Append(ctx, &r); err != nil {
		p.Metrics.PersistError()
		p.Logger.Error("probe_persist_error", zap.String("status", string(r.Status)), zap.Error(err))
		return
	}
	p.Feed.Update(r)
	p.Tracker.Observe(r)
	p.Metrics.ObserveProbe(r)

	fields := []zap.Field{
		zap.Int64("id", r.ID),
		zap.String("status", string(r.Status)),
		zap.Time("ts", r.Timestamp),
	}
	if r.LatencyMS != nil {
		fields = append(fields, zap.Float64("latency_ms", *r.LatencyMS))
	}
	p.Logger.Debug("probe_committed", fields...)
}
