package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/clock"
	"github.com/hamed0406/pingmonitor/internal/metrics"
	"github.com/hamed0406/pingmonitor/internal/repo"
)

// Retention deletes results older than Days once a day at a local wall time.
type Retention struct {
	store   repo.ResultStore
	zone    *clock.Zone
	days    int
	hour    uint
	minute  uint
	log     *zap.Logger
	metrics *metrics.Metrics

	sched gocron.Scheduler
}

// NewRetention parses at as "HH:MM" in zone. days < 1 disables pruning.
func NewRetention(store repo.ResultStore, zone *clock.Zone, days int, at string, log *zap.Logger, m *metrics.Metrics) (*Retention, error) {
	h, min, err := ParseClock(at)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Retention{store: store, zone: zone, days: days, hour: h, minute: min, log: log, metrics: m}, nil
}

// ParseClock parses "HH:MM" (24h).
func ParseClock(s string) (hour, minute uint, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	return uint(h), uint(m), nil
}

// Cutoff is the oldest timestamp kept at the current instant.
func (r *Retention) Cutoff() time.Time {
	return r.zone.Now().AddDate(0, 0, -r.days)
}

// PruneOnce deletes every row older than Cutoff.
func (r *Retention) PruneOnce(ctx context.Context) (int64, error) {
	if r.days < 1 {
		return 0, nil
	}
	cutoff := r.Cutoff()
	start := time.Now()
	n, err := r.store.Prune(ctx, cutoff)
	r.metrics.Pruned(n)
	if err != nil {
		r.log.Error("retention_prune_error", zap.Int64("deleted", n), zap.Error(err))
		return n, err
	}
	r.log.Info("retention_pruned",
		zap.Int64("deleted", n),
		zap.Time("cutoff", cutoff),
		zap.Duration("took", time.Since(start)),
	)
	return n, nil
}

// Start schedules the daily job and runs one prune immediately.
func (r *Retention) Start(ctx context.Context) error {
	if r.days < 1 {
		r.log.Info("retention_disabled")
		return nil
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(r.zone.Location()))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(r.hour, r.minute, 0))),
		gocron.NewTask(func() { _, _ = r.PruneOnce(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("create retention job: %w", err)
	}
	s.Start()
	r.sched = s
	r.log.Info("retention_scheduled", zap.Int("days", r.days), zap.String("at", fmt.Sprintf("%02d:%02d", r.hour, r.minute)))

	go func() { _, _ = r.PruneOnce(ctx) }()
	return nil
}

func (r *Retention) Stop() error {
	if r.sched == nil {
		return nil
	}
	if err := r.sched.Shutdown(); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	r.sched = nil
	return nil
}
