package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hamed0406/pingmonitor/internal/clock"
	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/repo"
	"github.com/hamed0406/pingmonitor/internal/repo/repotest"
)

func TestSQLiteStore_Contract(t *testing.T) {
	repotest.Run(t, func(t *testing.T, z *clock.Zone) repo.ResultStore {
		s, err := New(context.Background(), filepath.Join(t.TempDir(), "ping.db"), z)
		require.NoError(t, err)
		return s
	})
}

func TestSQLiteStore_ReopenKeepsRowsAndMonotonicClock(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "ping.db")
	fc := repotest.NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	z, err := clock.New("UTC")
	require.NoError(t, err)
	z = z.WithNow(fc.Now)

	s, err := New(ctx, path, z)
	require.NoError(t, err)
	first := domain.NewSuccess(4 * time.Millisecond)
	require.NoError(t, s.Append(ctx, &first))
	require.NoError(t, s.Close())

	fc.Advance(-time.Hour)
	s, err = New(ctx, path, z)
	require.NoError(t, err)
	defer s.Close()

	second := domain.NewFailure()
	require.NoError(t, s.Append(ctx, &second))
	require.Greater(t, second.ID, first.ID)
	require.False(t, second.Timestamp.Before(first.Timestamp))
}

func TestSQLiteStore_TextColumnIsLocalTime(t *testing.T) {
	ctx := context.Background()
	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	at := time.Date(2025, 6, 1, 3, 4, 5, 678_000_000, time.UTC)
	z := clock.Fixed(loc, at)

	s, err := New(ctx, filepath.Join(t.TempDir(), "ping.db"), z)
	require.NoError(t, err)
	defer s.Close()

	r := domain.NewFailure()
	require.NoError(t, s.Append(ctx, &r))

	var text string
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT timestamp FROM ping_results WHERE id = ?`, r.ID).Scan(&text))
	require.Equal(t, "2025-06-01 10:04:05.678", text)
}
