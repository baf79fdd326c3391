package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"

	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/query"
)

type configResponse struct {
	Title        string `json:"title"`
	IP           string `json:"ip"`
	Port         int    `json:"port"`
	PingInterval int64  `json:"pingInterval"`
	Timezone     string `json:"timezone"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, configResponse{
		Title:        s.Info.Title,
		IP:           s.Info.Host,
		Port:         s.Info.Port,
		PingInterval: s.Info.Interval.Milliseconds(),
		Timezone:     s.Zone.Name(),
	})
}

func (s *Server) handleCurrentStatus(w http.ResponseWriter, r *http.Request) {
	latest, ok := s.Feed.Latest()
	if !ok {
		render.JSON(w, r, map[string]string{"status": "initializing"})
		return
	}
	render.JSON(w, r, latest)
}

func (s *Server) handleStreak(w http.ResponseWriter, r *http.Request) {
	st := s.Streak.Snapshot()
	var last *string
	if st.LastNotification != nil {
		v := s.Zone.Format(*st.LastNotification)
		last = &v
	}
	render.JSON(w, r, map[string]any{
		"consecutive_failures": st.ConsecutiveFailures,
		"last_notification":    last,
	})
}

func (s *Server) handlePingData(w http.ResponseWriter, r *http.Request) error {
	f, err := s.parseFilter(r)
	if err != nil {
		return err
	}
	page, err := s.Query.History(r.Context(), f)
	if err != nil {
		return err
	}
	render.JSON(w, r, page)
	return nil
}

func (s *Server) handleHourly(w http.ResponseWriter, r *http.Request) error {
	hours, err := intParam(r, "hours", query.DefaultWindowHours)
	if err != nil {
		return err
	}
	end, err := s.timeParam(r, "end", s.Zone.Now())
	if err != nil {
		return err
	}
	h, err := s.Query.HourlyAverages(r.Context(), end, hours)
	if err != nil {
		return err
	}
	render.JSON(w, r, h)
	return nil
}

func (s *Server) handleOutages(w http.ResponseWriter, r *http.Request) error {
	hours, err := intParam(r, "hours", query.DefaultWindowHours)
	if err != nil {
		return err
	}
	limit, err := intParam(r, "limit", 10)
	if err != nil {
		return err
	}
	min := 5 * time.Minute
	if v := r.URL.Query().Get("min"); v != "" {
		d, perr := parseDuration(v)
		if perr != nil {
			return invalid("min: %q is not a duration", v)
		}
		min = d
	}
	end, err := s.timeParam(r, "end", s.Zone.Now())
	if err != nil {
		return err
	}

	runs, err := s.Query.Outages(r.Context(), end, hours, min, limit)
	if err != nil {
		return err
	}
	views := make([]query.OutageView, 0, len(runs))
	for _, o := range runs {
		views = append(views, s.Query.View(o))
	}
	render.JSON(w, r, map[string]any{"outages": views})
	return nil
}

// parseFilter reads page, limit, startDate, endDate and status. limit=0 or
// limit=all returns every matching row without pagination.
func (s *Server) parseFilter(r *http.Request) (domain.Filter, error) {
	q := r.URL.Query()
	f := domain.Filter{Page: 1, PageSize: query.DefaultPageSize}

	page, err := intParam(r, "page", 1)
	if err != nil {
		return f, err
	}
	if page < 1 {
		return f, invalid("page must be at least 1")
	}
	f.Page = page

	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		if strings.EqualFold(v, "all") {
			f.PageSize = 0
		} else {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return f, invalid("limit: %q is not a non-negative integer", v)
			}
			f.PageSize = n
		}
	}

	if v := q.Get("startDate"); v != "" {
		t, err := s.Zone.Parse(v)
		if err != nil {
			return f, invalid("startDate: %v", err)
		}
		f.Start = &t
	}
	if v := q.Get("endDate"); v != "" {
		t, err := s.Zone.Parse(v)
		if err != nil {
			return f, invalid("endDate: %v", err)
		}
		if isBareDate(v) {
			// a bare end date covers that whole local day
			t = t.AddDate(0, 0, 1).Add(-time.Millisecond)
		}
		f.End = &t
	}
	if f.Start != nil && f.End != nil && f.Start.After(*f.End) {
		return f, invalid("startDate is after endDate")
	}

	if v := q.Get("status"); v != "" {
		st, err := domain.ParseOutcome(v)
		if err != nil {
			return f, invalid("status: %v", err)
		}
		f.Status = &st
	}
	return f, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, invalid("%s: %q is not an integer", name, v)
	}
	return n, nil
}

func (s *Server) timeParam(r *http.Request, name string, def time.Time) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	t, err := s.Zone.Parse(v)
	if err != nil {
		return time.Time{}, invalid("%s: %v", name, err)
	}
	return t, nil
}

// parseDuration accepts Go durations ("90s", "5m") or plain seconds.
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func isBareDate(v string) bool {
	_, err := time.Parse("2006-01-02", strings.TrimSpace(v))
	return err == nil
}
