package memory

import (
	"context"
	"testing"
	"time"

	"github.com/hamed0406/pingmonitor/internal/clock"
	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/repo"
	"github.com/hamed0406/pingmonitor/internal/repo/repotest"
)

func TestMemoryStore_Contract(t *testing.T) {
	repotest.Run(t, func(t *testing.T, z *clock.Zone) repo.ResultStore {
		return New(z)
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New(clock.Fixed(time.UTC, time.Now()))

	r := domain.NewSuccess(10 * time.Millisecond)
	if err := s.Append(ctx, &r); err != nil {
		t.Fatalf("Append: %v", err)
	}
	*r.LatencyMS = 999 // caller mutates its copy

	got, err := s.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if *got.LatencyMS != 10 {
		t.Fatalf("stored row was mutated: %v", *got.LatencyMS)
	}
}
