package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/clock"
	"github.com/hamed0406/pingmonitor/internal/domain"
	apimw "github.com/hamed0406/pingmonitor/internal/httpapi/middleware"
	"github.com/hamed0406/pingmonitor/internal/live"
	"github.com/hamed0406/pingmonitor/internal/metrics"
	"github.com/hamed0406/pingmonitor/internal/query"
)

// StreakReporter exposes the failure tracker's current state.
type StreakReporter interface {
	Snapshot() domain.StreakState
}

// SiteInfo is what the dashboard shows about the monitored endpoint.
type SiteInfo struct {
	Title    string
	Host     string
	Port     int
	Interval time.Duration
}

type Server struct {
	Logger  *zap.Logger
	Query   *query.Service
	Feed    *live.Feed
	Streak  StreakReporter
	Live    http.Handler
	Metrics *metrics.Metrics
	Zone    *clock.Zone
	Info    SiteInfo
}

func NewServer(
	l *zap.Logger,
	q *query.Service,
	feed *live.Feed,
	streak StreakReporter,
	hub http.Handler,
	m *metrics.Metrics,
	zone *clock.Zone,
	info SiteInfo,
) *Server {
	return &Server{
		Logger:  l,
		Query:   q,
		Feed:    feed,
		Streak:  streak,
		Live:    hub,
		Metrics: m,
		Zone:    zone,
		Info:    info,
	}
}

// Router mounts the API. Read endpoints share one per-IP rate limit; the
// websocket and metrics endpoints are not limited.
func (s *Server) Router(allowedOrigins []string, publicRPM, publicBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", s.Metrics.Handler())
	if s.Live != nil {
		r.Handle("/ws", s.Live)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RateLimit(publicRPM, publicBurst))
		r.Get("/config", s.handleConfig)
		r.Get("/current-status", s.handleCurrentStatus)
		r.Get("/ping-data", s.wrap(s.handlePingData))
		r.Get("/hourly", s.wrap(s.handleHourly))
		r.Get("/outages", s.wrap(s.handleOutages))
		r.Get("/streak", s.handleStreak)
	})

	return r
}
