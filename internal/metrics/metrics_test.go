package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

func TestMetrics_ObserveProbe(t *testing.T) {
	m := New()
	m.ObserveProbe(domain.NewSuccess(12 * time.Millisecond))
	require.Equal(t, 1.0, testutil.ToFloat64(m.up))
	m.ObserveProbe(domain.NewFailure())
	require.Equal(t, 0.0, testutil.ToFloat64(m.up))

	require.Equal(t, 1.0, testutil.ToFloat64(m.probes.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.probes.WithLabelValues("failed")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveProbe(domain.NewFailure())
	m.SetStreak(3)
	m.Notified("down", nil)
	m.TickSkipped()
	m.PersistError()
	m.Pruned(5)
	m.RegisterFeed(func() int { return 0 }, func() uint64 { return 0 })
}

func TestMetrics_HandlerExposesCollectors(t *testing.T) {
	m := New()
	m.SetStreak(4)
	m.Notified("down", errors.New("boom"))
	m.RegisterFeed(func() int { return 2 }, func() uint64 { return 7 })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		"pingmonitor_consecutive_failures 4",
		`pingmonitor_notifications_total{kind="down",result="error"} 1`,
		"pingmonitor_live_subscribers 2",
		"pingmonitor_live_dropped_total 7",
	} {
		require.True(t, strings.Contains(out, want), "missing %q", want)
	}
}
