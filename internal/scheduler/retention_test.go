package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/hamed0406/pingmonitor/internal/clock"
	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/repo/memory"
	"github.com/hamed0406/pingmonitor/internal/repo/repotest"
)

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("03:30")
	if err != nil || h != 3 || m != 30 {
		t.Fatalf("got %d:%d err=%v", h, m, err)
	}
	for _, bad := range []string{"", "3", "24:00", "12:60", "aa:bb"} {
		if _, _, err := ParseClock(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestRetention_PruneOnce(t *testing.T) {
	fc := repotest.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	z, _ := clock.New("UTC")
	z = z.WithNow(fc.Now)
	store := memory.New(z)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		r := domain.NewFailure()
		if err := store.Append(ctx, &r); err != nil {
			t.Fatal(err)
		}
		fc.Advance(24 * time.Hour)
	}
	// now = day 10; keeping 7 days drops days 0..2
	ret, err := NewRetention(store, z, 7, "03:00", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	n, err := ret.PruneOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows pruned, got %d", n)
	}
	n, _ = ret.PruneOnce(ctx)
	if n != 0 {
		t.Fatalf("second prune should delete nothing, got %d", n)
	}
}

func TestRetention_DisabledAndStartStop(t *testing.T) {
	z, _ := clock.New("UTC")
	store := memory.New(z)

	off, err := NewRetention(store, z, 0, "03:00", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := off.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := off.Stop(); err != nil {
		t.Fatal(err)
	}

	on, err := NewRetention(store, z, 30, "04:15", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := on.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := on.Stop(); err != nil {
		t.Fatal(err)
	}

	if _, err := NewRetention(store, z, 30, "4pm", nil, nil); err == nil {
		t.Fatal("expected invalid time error")
	}
}
