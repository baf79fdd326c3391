package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hamed0406/pingmonitor/internal/clock"
	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/repo"
)

// Store keeps the probe log in a slice ordered by append. It is the store
// used by tests and by STORE=memory.
type Store struct {
	zone *clock.Zone

	mu     sync.RWMutex
	rows   []domain.ProbeResult
	nextID int64
	last   time.Time
}

func New(zone *clock.Zone) *Store {
	return &Store{
		zone:   zone,
		rows:   make([]domain.ProbeResult, 0, 1024),
		nextID: 1,
	}
}

func (m *Store) Append(ctx context.Context, r *domain.ProbeResult) error {
	if err := r.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.zone.Now()
	if ts.Before(m.last) {
		ts = m.last
	}
	m.last = ts

	r.ID = m.nextID
	r.Timestamp = ts
	m.nextID++
	m.rows = append(m.rows, clone(*r))
	return nil
}

func (m *Store) Get(ctx context.Context, id int64) (*domain.ProbeResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// ids are appended in order; prune only removes a prefix
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].ID == id {
			r := clone(m.rows[i])
			return &r, nil
		}
		if m.rows[i].ID < id {
			break
		}
	}
	return nil, repo.ErrNotFound
}

func (m *Store) Latest(ctx context.Context) (*domain.ProbeResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.rows) == 0 {
		return nil, repo.ErrNotFound
	}
	r := clone(m.rows[len(m.rows)-1])
	return &r, nil
}

func (m *Store) Query(ctx context.Context, f domain.Filter) ([]domain.ProbeResult, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	offset := f.Offset()
	out := make([]domain.ProbeResult, 0)
	total := 0
	for i := len(m.rows) - 1; i >= 0; i-- {
		r := m.rows[i]
		if !f.Match(r) {
			continue
		}
		if total >= offset && (!f.Paginated() || len(out) < f.PageSize) {
			out = append(out, clone(r))
		}
		total++
	}
	return out, total, nil
}

func (m *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	var deleted int64
	for {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		n := m.pruneBatch(olderThan)
		deleted += int64(n)
		if n < repo.PruneBatchSize {
			return deleted, nil
		}
	}
}

func (m *Store) pruneBatch(olderThan time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for n < len(m.rows) && n < repo.PruneBatchSize && m.rows[n].Timestamp.Before(olderThan) {
		n++
	}
	if n > 0 {
		m.rows = append(m.rows[:0:0], m.rows[n:]...)
	}
	return n
}

func (m *Store) Close() error { return nil }

func clone(r domain.ProbeResult) domain.ProbeResult {
	if r.LatencyMS != nil {
		v := *r.LatencyMS
		r.LatencyMS = &v
	}
	return r
}
