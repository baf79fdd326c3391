// Package query serves read-side views over the result store: paginated
// history, hourly latency averages with failure counts, and outage ranges.
package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/clock"
	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/repo"
)

const (
	MaxWindowHours     = 720
	DefaultWindowHours = 24
	DefaultPageSize    = 100
)

var (
	ErrInvalidWindow = errors.New("window hours must be between 1 and 720")
	ErrInvalidFilter = errors.New("invalid filter")
)

type Service struct {
	store repo.ResultStore
	zone  *clock.Zone
	log   *zap.Logger
}

func NewService(store repo.ResultStore, zone *clock.Zone, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, zone: zone, log: log}
}

// Page is one history response. Pagination is nil when the filter asked for
// every row.
type Page struct {
	Data       []domain.ProbeResult `json:"data"`
	Pagination *domain.Pagination   `json:"pagination,omitempty"`
}

func (s *Service) History(ctx context.Context, f domain.Filter) (Page, error) {
	if f.Start != nil && f.End != nil && f.Start.After(*f.End) {
		return Page{}, fmt.Errorf("%w: start is after end", ErrInvalidFilter)
	}
	if f.PageSize < 0 {
		return Page{}, fmt.Errorf("%w: negative page size", ErrInvalidFilter)
	}
	if f.Page < 1 {
		f.Page = 1
	}
	rows, total, err := s.store.Query(ctx, f)
	if err != nil {
		return Page{}, err
	}
	p := Page{Data: rows}
	if f.Paginated() {
		pg := domain.NewPagination(total, f.Page, f.PageSize)
		p.Pagination = &pg
	}
	return p, nil
}

// HourlyPoint is one entry of the averages series; AvgPing is nil for an hour
// with no successful probe.
type HourlyPoint struct {
	Hour    string   `json:"hour"`
	AvgPing *float64 `json:"avg_ping"`
}

type FailurePoint struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

type Hourly struct {
	Averages []HourlyPoint  `json:"averages"`
	Failures []FailurePoint `json:"failures"`
}

// HourStarts returns windowHours contiguous local hour starts, oldest first,
// the last one being the hour that contains end.
func (s *Service) HourStarts(end time.Time, windowHours int) ([]time.Time, error) {
	if windowHours < 1 || windowHours > MaxWindowHours {
		return nil, ErrInvalidWindow
	}
	last := s.zone.HourFloor(end)
	out := make([]time.Time, windowHours)
	for i := range out {
		out[i] = last.Add(-time.Duration(windowHours-1-i) * time.Hour)
	}
	return out, nil
}

func (s *Service) HourlyAverages(ctx context.Context, end time.Time, windowHours int) (Hourly, error) {
	starts, err := s.HourStarts(end, windowHours)
	if err != nil {
		return Hourly{}, err
	}
	rows, err := s.window(ctx, starts[0], starts[len(starts)-1].Add(time.Hour))
	if err != nil {
		return Hourly{}, err
	}
	buckets := Bucketize(rows, starts)

	h := Hourly{
		Averages: make([]HourlyPoint, 0, len(buckets)),
		Failures: make([]FailurePoint, 0),
	}
	for _, b := range buckets {
		label := s.zone.Format(b.HourStart)
		pt := HourlyPoint{Hour: label}
		if avg, ok := b.Average(); ok {
			v := math.Round(avg*100) / 100
			pt.AvgPing = &v
		}
		h.Averages = append(h.Averages, pt)
		if b.FailureCount > 0 {
			h.Failures = append(h.Failures, FailurePoint{Hour: label, Count: b.FailureCount})
		}
	}
	return h, nil
}

// Bucketize assigns rows to the hour buckets starting at hourStarts (sorted,
// one hour apart). Rows outside [hourStarts[0], last+1h) are ignored.
func Bucketize(rows []domain.ProbeResult, hourStarts []time.Time) []domain.HourlyBucket {
	out := make([]domain.HourlyBucket, len(hourStarts))
	for i, hs := range hourStarts {
		out[i].HourStart = hs
	}
	if len(hourStarts) == 0 {
		return out
	}
	end := hourStarts[len(hourStarts)-1].Add(time.Hour)
	for _, r := range rows {
		if r.Timestamp.Before(hourStarts[0]) || !r.Timestamp.Before(end) {
			continue
		}
		// first bucket starting after r, minus one
		i := sort.Search(len(hourStarts), func(i int) bool {
			return hourStarts[i].After(r.Timestamp)
		}) - 1
		b := &out[i]
		if r.Status == domain.Success && r.LatencyMS != nil {
			b.SuccessCount++
			b.TotalLatencyMS += *r.LatencyMS
		} else {
			b.FailureCount++
		}
	}
	return out
}

// OutageView is the wire form of domain.Outage.
type OutageView struct {
	Start    string  `json:"start"`
	End      string  `json:"end"`
	Duration float64 `json:"duration_seconds"`
	Failures int     `json:"failures"`
	Ongoing  bool    `json:"ongoing"`
}

// Outages reports runs of consecutive failures inside the window that lasted
// at least minDuration, newest first, at most limit of them (0 = all).
func (s *Service) Outages(ctx context.Context, end time.Time, windowHours int, minDuration time.Duration, limit int) ([]domain.Outage, error) {
	if windowHours < 1 || windowHours > MaxWindowHours {
		return nil, ErrInvalidWindow
	}
	if minDuration < 0 || limit < 0 {
		return nil, fmt.Errorf("%w: negative outage bound", ErrInvalidFilter)
	}
	rows, err := s.window(ctx, end.Add(-time.Duration(windowHours)*time.Hour), end.Add(time.Millisecond))
	if err != nil {
		return nil, err
	}
	runs := FindOutages(rows, minDuration)
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// FindOutages scans rows (any order) and returns failure runs of at least
// minDuration, newest first. A run that reaches the newest row is Ongoing.
func FindOutages(rows []domain.ProbeResult, minDuration time.Duration) []domain.Outage {
	asc := make([]domain.ProbeResult, len(rows))
	copy(asc, rows)
	sort.SliceStable(asc, func(i, j int) bool {
		if asc[i].Timestamp.Equal(asc[j].Timestamp) {
			return asc[i].ID < asc[j].ID
		}
		return asc[i].Timestamp.Before(asc[j].Timestamp)
	})

	var (
		out []domain.Outage
		cur *domain.Outage
	)
	flush := func() {
		if cur != nil && cur.Duration() >= minDuration {
			out = append(out, *cur)
		}
		cur = nil
	}
	for _, r := range asc {
		if r.Status != domain.Failure {
			flush()
			continue
		}
		if cur == nil {
			cur = &domain.Outage{Start: r.Timestamp}
		}
		cur.End = r.Timestamp
		cur.Failures++
	}
	if cur != nil {
		cur.Ongoing = true
		flush()
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (s *Service) View(o domain.Outage) OutageView {
	return OutageView{
		Start:    s.zone.Format(o.Start),
		End:      s.zone.Format(o.End),
		Duration: o.Duration().Seconds(),
		Failures: o.Failures,
		Ongoing:  o.Ongoing,
	}
}

// window loads every row with from <= ts < to.
func (s *Service) window(ctx context.Context, from, to time.Time) ([]domain.ProbeResult, error) {
	last := to.Add(-time.Millisecond)
	rows, _, err := s.store.Query(ctx, domain.Filter{Start: &from, End: &last})
	if err != nil {
		return nil, err
	}
	s.log.Debug("query_window", zap.Time("from", from), zap.Time("to", to), zap.Int("rows", len(rows)))
	return rows, nil
}
