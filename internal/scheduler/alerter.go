package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/metrics"
	"github.com/hamed0406/pingmonitor/internal/notify"
)

type AlerterConfig struct {
	Threshold       int
	Cooldown        time.Duration
	AlertOnRecovery bool
	NotifyTimeout   time.Duration
	// Target names the monitored endpoint in notifications.
	Target string
}

// FailureTracker counts consecutive failed probes and notifies once the run
// reaches Threshold, at most once per Cooldown. The clock it compares against
// is the timestamp of the observed result.
type FailureTracker struct {
	cfg      AlerterConfig
	notifier notify.Notifier
	log      *zap.Logger
	metrics  *metrics.Metrics

	// Context, when set, adds a diagnostic line to down notifications. It
	// runs on the notification goroutine.
	Context func(ctx context.Context) string

	mu       sync.Mutex
	state    domain.StreakState
	since    time.Time
	notified bool // a down alert went out during the current streak

	inflight sync.WaitGroup
}

func NewFailureTracker(n notify.Notifier, cfg AlerterConfig, log *zap.Logger, m *metrics.Metrics) *FailureTracker {
	if cfg.Threshold < 1 {
		cfg.Threshold = 10
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FailureTracker{cfg: cfg, notifier: n, log: log, metrics: m}
}

// Observe folds one committed result into the streak. Results must be
// observed in commit order.
func (t *FailureTracker) Observe(r domain.ProbeResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r.Status == domain.Success {
		if t.notified && t.cfg.AlertOnRecovery {
			t.dispatch("recovered", notify.Alert{
				Kind:     notify.Recovered,
				Target:   t.cfg.Target,
				Failures: t.state.ConsecutiveFailures,
				At:       r.Timestamp,
				Since:    t.since,
			})
		}
		t.state.ConsecutiveFailures = 0
		t.since = time.Time{}
		t.notified = false
		t.metrics.SetStreak(0)
		return
	}

	t.state.ConsecutiveFailures++
	if t.state.ConsecutiveFailures == 1 {
		t.since = r.Timestamp
	}
	t.metrics.SetStreak(t.state.ConsecutiveFailures)

	if t.state.ConsecutiveFailures < t.cfg.Threshold {
		return
	}
	last := t.state.LastNotification
	if last != nil && r.Timestamp.Sub(*last) < t.cfg.Cooldown {
		t.log.Debug("notify_suppressed",
			zap.Int("consecutive_failures", t.state.ConsecutiveFailures),
			zap.Time("last_notification", *last),
		)
		return
	}
	at := r.Timestamp
	t.state.LastNotification = &at
	t.notified = true
	t.dispatch("down", notify.Alert{
		Kind:     notify.Down,
		Target:   t.cfg.Target,
		Failures: t.state.ConsecutiveFailures,
		At:       r.Timestamp,
		Since:    t.since,
	})
}

// dispatch sends on its own goroutine; callers hold t.mu.
func (t *FailureTracker) dispatch(kind string, a notify.Alert) {
	t.log.Info("notify_dispatch",
		zap.String("kind", kind),
		zap.Int("consecutive_failures", a.Failures),
		zap.Time("at", a.At),
	)
	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), t.cfg.NotifyTimeout)
		defer cancel()

		if a.Kind == notify.Down && t.Context != nil {
			a.Context = t.Context(ctx)
		}
		title, text := notify.FormatAlert(a)
		err := t.notifier.Send(ctx, title, text)
		t.metrics.Notified(kind, err)
		if err != nil {
			t.log.Warn("notify_error", zap.String("kind", kind), zap.Error(err))
		}
	}()
}

// Snapshot returns a copy of the streak state.
func (t *FailureTracker) Snapshot() domain.StreakState {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state
	if s.LastNotification != nil {
		v := *s.LastNotification
		s.LastNotification = &v
	}
	return s
}

// Wait blocks until every dispatched notification has returned.
func (t *FailureTracker) Wait() { t.inflight.Wait() }
