package domain

import "time"

// Filter selects probe results. PageSize 0 disables pagination.
type Filter struct {
	Start    *time.Time
	End      *time.Time
	Status   *Outcome
	Page     int
	PageSize int
}

// Paginated reports whether Page/PageSize apply.
func (f Filter) Paginated() bool { return f.PageSize > 0 }

// Offset is the row offset of Page (1-based).
func (f Filter) Offset() int {
	if !f.Paginated() || f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// Match applies the filter predicate to one row. Used by the in-memory store
// and by tests; SQL stores express the same predicate in their WHERE clause.
func (f Filter) Match(r ProbeResult) bool {
	if f.Start != nil && r.Timestamp.Before(*f.Start) {
		return false
	}
	if f.End != nil && r.Timestamp.After(*f.End) {
		return false
	}
	if f.Status != nil && r.Status != *f.Status {
		return false
	}
	return true
}

// Pagination is the metadata returned alongside a page.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// NewPagination computes Pages = ceil(total/limit).
func NewPagination(total, page, limit int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Total: total, Page: page, Limit: limit, Pages: pages}
}

// HourlyBucket aggregates one local hour. Derived, never persisted.
type HourlyBucket struct {
	HourStart      time.Time
	SuccessCount   int
	FailureCount   int
	TotalLatencyMS float64
}

// Average returns the mean success latency; ok is false for a gap.
func (b HourlyBucket) Average() (avg float64, ok bool) {
	if b.SuccessCount == 0 {
		return 0, false
	}
	return b.TotalLatencyMS / float64(b.SuccessCount), true
}

// Outage is a run of consecutive failed probes.
type Outage struct {
	Start    time.Time
	End      time.Time
	Failures int
	Ongoing  bool
}

// Duration is End - Start.
func (o Outage) Duration() time.Duration { return o.End.Sub(o.Start) }
