// Package repotest holds the behavioural contract every repo.ResultStore
// adapter must satisfy. Adapter packages call Run from their own tests.
package repotest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hamed0406/pingmonitor/internal/clock"
	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/repo"
)

// FakeClock is a manually advanced time source for clock.Zone.WithNow.
type FakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewFakeClock(t time.Time) *FakeClock { return &FakeClock{t: t} }

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// Opener builds a fresh, empty store bound to zone.
type Opener func(t *testing.T, zone *clock.Zone) repo.ResultStore

var base = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T, open Opener) (repo.ResultStore, *FakeClock, *clock.Zone) {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	fc := NewFakeClock(base)
	z, err := clock.New(loc.String())
	require.NoError(t, err)
	z = z.WithNow(fc.Now)
	s := open(t, z)
	t.Cleanup(func() { _ = s.Close() })
	return s, fc, z
}

func appendN(t *testing.T, s repo.ResultStore, fc *FakeClock, n int, step time.Duration, mk func(i int) domain.ProbeResult) []domain.ProbeResult {
	t.Helper()
	out := make([]domain.ProbeResult, 0, n)
	for i := 0; i < n; i++ {
		r := mk(i)
		require.NoError(t, s.Append(context.Background(), &r))
		out = append(out, r)
		fc.Advance(step)
	}
	return out
}

func alternating(i int) domain.ProbeResult {
	if i%3 == 0 {
		return domain.NewFailure()
	}
	return domain.NewSuccess(time.Duration(i+1) * time.Millisecond)
}

// Run executes the contract against stores produced by open.
func Run(t *testing.T, open Opener) {
	ctx := context.Background()

	t.Run("AppendAssignsMonotonicIDsAndTimestamps", func(t *testing.T) {
		s, fc, z := setup(t, open)
		a := domain.NewSuccess(5 * time.Millisecond)
		require.NoError(t, s.Append(ctx, &a))

		fc.Advance(-time.Minute) // wall clock stepped backwards
		b := domain.NewFailure()
		require.NoError(t, s.Append(ctx, &b))

		require.Greater(t, b.ID, a.ID)
		require.False(t, b.Timestamp.Before(a.Timestamp), "timestamps must not go backwards")
		require.Equal(t, z.Location().String(), a.Timestamp.Location().String())
	})

	t.Run("RejectsInvalidResult", func(t *testing.T) {
		s, _, _ := setup(t, open)
		lat := 3.0
		bad := domain.ProbeResult{Status: domain.Failure, LatencyMS: &lat}
		err := s.Append(ctx, &bad)
		require.True(t, errors.Is(err, domain.ErrInvalidResult), "got %v", err)
		_, total, err := s.Query(ctx, domain.Filter{})
		require.NoError(t, err)
		require.Zero(t, total)
	})

	t.Run("GetRoundTripIsByteIdentical", func(t *testing.T) {
		s, fc, z := setup(t, open)
		fc.Advance(123456789 * time.Nanosecond)
		in := domain.NewSuccess(12345678 * time.Nanosecond)
		require.NoError(t, s.Append(ctx, &in))

		got, err := s.Get(ctx, in.ID)
		require.NoError(t, err)
		require.True(t, got.Timestamp.Equal(in.Timestamp))
		require.Equal(t, z.FormatStorage(in.Timestamp), z.FormatStorage(got.Timestamp))
		require.Equal(t, *in.LatencyMS, *got.LatencyMS)
		require.Equal(t, in.Status, got.Status)

		wantJSON, _ := json.Marshal(in)
		gotJSON, _ := json.Marshal(got)
		require.JSONEq(t, string(wantJSON), string(gotJSON))

		_, err = s.Get(ctx, in.ID+1000)
		require.ErrorIs(t, err, repo.ErrNotFound)
	})

	t.Run("LatestEmptyAndFilled", func(t *testing.T) {
		s, fc, _ := setup(t, open)
		_, err := s.Latest(ctx)
		require.ErrorIs(t, err, repo.ErrNotFound)

		rows := appendN(t, s, fc, 3, time.Second, alternating)
		got, err := s.Latest(ctx)
		require.NoError(t, err)
		require.Equal(t, rows[2].ID, got.ID)
	})

	t.Run("StatusFilterCounts", func(t *testing.T) {
		s, fc, _ := setup(t, open)
		appendN(t, s, fc, 30, time.Second, alternating)

		_, all, err := s.Query(ctx, domain.Filter{})
		require.NoError(t, err)
		ok := domain.Success
		okRows, okTotal, err := s.Query(ctx, domain.Filter{Status: &ok})
		require.NoError(t, err)
		bad := domain.Failure
		_, badTotal, err := s.Query(ctx, domain.Filter{Status: &bad})
		require.NoError(t, err)

		require.Equal(t, 30, all)
		require.Equal(t, 10, badTotal)
		require.Equal(t, all-badTotal, okTotal)
		for _, r := range okRows {
			require.Equal(t, domain.Success, r.Status)
			require.NotNil(t, r.LatencyMS)
		}
	})

	t.Run("PaginationInvariant", func(t *testing.T) {
		s, fc, _ := setup(t, open)
		appendN(t, s, fc, 23, time.Second, alternating)

		for _, size := range []int{1, 5, 7, 23, 50} {
			p := domain.NewPagination(23, 1, size)
			seen := map[int64]bool{}
			for page := 1; page <= p.Pages; page++ {
				rows, total, err := s.Query(ctx, domain.Filter{Page: page, PageSize: size})
				require.NoError(t, err)
				require.Equal(t, 23, total)
				want := size
				if page == p.Pages && 23%size != 0 {
					want = 23 % size
				}
				require.Len(t, rows, want, "size=%d page=%d", size, page)
				for _, r := range rows {
					require.False(t, seen[r.ID], "row %d on two pages", r.ID)
					seen[r.ID] = true
				}
			}
			require.Len(t, seen, 23)
		}

		rows, total, err := s.Query(ctx, domain.Filter{Page: 99, PageSize: 10})
		require.NoError(t, err)
		require.Equal(t, 23, total)
		require.Empty(t, rows)

		rows, total, err = s.Query(ctx, domain.Filter{Page: 3, PageSize: 0})
		require.NoError(t, err)
		require.Equal(t, 23, total)
		require.Len(t, rows, 23, "PageSize 0 returns every row")
	})

	t.Run("NewestFirst", func(t *testing.T) {
		s, fc, _ := setup(t, open)
		appendN(t, s, fc, 10, time.Second, alternating)
		rows, _, err := s.Query(ctx, domain.Filter{})
		require.NoError(t, err)
		for i := 1; i < len(rows); i++ {
			require.False(t, rows[i].Timestamp.After(rows[i-1].Timestamp))
			require.Less(t, rows[i].ID, rows[i-1].ID)
		}
	})

	t.Run("RangeFilterInclusive", func(t *testing.T) {
		s, fc, _ := setup(t, open)
		rows := appendN(t, s, fc, 10, time.Minute, alternating)

		start, end := rows[2].Timestamp, rows[5].Timestamp
		got, total, err := s.Query(ctx, domain.Filter{Start: &start, End: &end})
		require.NoError(t, err)
		require.Equal(t, 4, total)
		require.Equal(t, rows[5].ID, got[0].ID)
		require.Equal(t, rows[2].ID, got[3].ID)

		_, total, err = s.Query(ctx, domain.Filter{Start: &start})
		require.NoError(t, err)
		require.Equal(t, 8, total)

		_, total, err = s.Query(ctx, domain.Filter{End: &end})
		require.NoError(t, err)
		require.Equal(t, 6, total)

		// bounds in another zone denote the same instants
		utcStart := start.UTC()
		_, total, err = s.Query(ctx, domain.Filter{Start: &utcStart, End: &end})
		require.NoError(t, err)
		require.Equal(t, 4, total)
	})

	t.Run("PruneIsIdempotent", func(t *testing.T) {
		s, fc, _ := setup(t, open)
		rows := appendN(t, s, fc, 10, time.Hour, alternating)

		cutoff := rows[4].Timestamp
		n, err := s.Prune(ctx, cutoff)
		require.NoError(t, err)
		require.EqualValues(t, 4, n)

		n, err = s.Prune(ctx, cutoff)
		require.NoError(t, err)
		require.Zero(t, n)

		_, total, err := s.Query(ctx, domain.Filter{})
		require.NoError(t, err)
		require.Equal(t, 6, total)
		_, err = s.Get(ctx, rows[4].ID)
		require.NoError(t, err, "row exactly at the cutoff is kept")
	})

	t.Run("PruneSpansBatches", func(t *testing.T) {
		s, fc, _ := setup(t, open)
		n := 2*repo.PruneBatchSize + 7
		appendN(t, s, fc, n, time.Second, alternating)
		deleted, err := s.Prune(ctx, fc.Now().Add(time.Hour))
		require.NoError(t, err)
		require.EqualValues(t, n, deleted)
	})

	t.Run("AppendDuringPrune", func(t *testing.T) {
		s, fc, _ := setup(t, open)
		appendN(t, s, fc, repo.PruneBatchSize+50, time.Millisecond, alternating)
		cutoff := fc.Now()
		fc.Advance(time.Hour)

		var wg sync.WaitGroup
		errs := make(chan error, 100)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				r := domain.NewFailure()
				if err := s.Append(ctx, &r); err != nil {
					errs <- err
				}
			}
		}()
		_, err := s.Prune(ctx, cutoff)
		wg.Wait()
		close(errs)
		require.NoError(t, err)
		for e := range errs {
			require.NoError(t, e)
		}
		_, total, err := s.Query(ctx, domain.Filter{})
		require.NoError(t, err)
		require.Equal(t, 50, total)
	})
}
